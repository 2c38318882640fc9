// Package auth implements the portal's authentication primitives:
// password identities, e-mailed one-time codes and revocable sessions.
//
// A sign-in is two steps. SignIn checks the password but does not open a
// session; the caller then asks for a login challenge and the session is
// only issued once VerifyOTP accepts the code. Sessions are HS256 JWTs
// whose ID is also stored server-side, so SignOut revokes them.
package auth
