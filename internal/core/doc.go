// Package core provides the domain logic of the registry portal.
//
// This package holds everything that is independent of transport and of the
// concrete backend: the property file and user types in both their storage
// and view shapes, the translation between those shapes, CNIC normalization,
// batched upserts, CSV import parsing, audit entries and user-facing error
// mapping. Web handlers, the portal session layer and tests use it without
// modification.
//
// # Storage and view shapes
//
// A [PropertyFileRecord] mirrors a row of the property_files table: snake_case
// columns, every column except the file number nullable. A [PropertyFile] is
// what the portal hands to clients: camelCase JSON, no nulls. [ToView] and
// [ToStore] translate between the two:
//
//	rec := core.ToStore(file)   // owner_cnic_normalized derived here
//	file = core.ToView(rec)     // NULL text becomes "-", NULL numeric becomes 0
//
// Numeric and identity fields round-trip exactly. Display placeholders do not
// need to invert.
//
// # CNIC matching
//
// National ID numbers are entered with inconsistent punctuation. Every
// equality comparison and every filter sent to the backend goes through
// [NormalizeCNIC], which keeps only the digits:
//
//	core.NormalizeCNIC("12345-6789012-3") == core.NormalizeCNIC("1234567890123")
//
// # Bulk sync
//
// [BulkSync] pushes view records to the backend in sequential batches of
// [DefaultSyncBatchSize], each an upsert keyed on file number. The first
// failing batch aborts the run; batches already committed stay committed and
// the returned [*BatchError] says how far the run got.
//
// # CSV import
//
// Import layouts are registered at init time using [Register] (see the
// tables subpackage). [ParseImport] reads an uploaded CSV file, locates the
// header row, validates each row against the layout's field specs and builds
// records. Invalid rows are skipped and reported with their line numbers.
//
// # Error Handling
//
// Technical errors are mapped to user-friendly messages using [MapError].
// Each error category has a unique code for support reference:
//
//   - AUTH001-AUTH006: Sign-in, sign-up and session errors
//   - OTP001-OTP003: One-time code errors
//   - DB001-DB008: Database errors
//   - SYNC001-SYNC002: Cloud sync errors
//   - IMP001-IMP006: Import errors
//   - RATE001: Rate limiting
package core
