package web

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/JonMunkholm/RegistryPortal/internal/core"
	"github.com/JonMunkholm/RegistryPortal/internal/portal"
	"github.com/go-playground/validator/v10"
)

const maxJSONBody = 1 << 20

var errInvalidRequest = errors.New("invalid request")

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	// cnic accepts any formatting as long as some digits remain.
	_ = v.RegisterValidation("cnic", func(fl validator.FieldLevel) bool {
		return core.NormalizeCNIC(fl.Field().String()) != ""
	})
	return v
}

// decodeJSON reads a size-limited JSON body into dst and validates it.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxJSONBody))
	if err := dec.Decode(dst); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("%w: %v", errInvalidRequest, err)
	}
	if err := validate.Struct(dst); err != nil {
		return fmt.Errorf("%w: %v", errInvalidRequest, err)
	}
	return nil
}

type registerRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
	Name     string `json:"name" validate:"required,max=120"`
	CNIC     string `json:"cnic" validate:"required,cnic"`
	Phone    string `json:"phone" validate:"omitempty,max=32"`
}

type cnicRequest struct {
	CNIC string `json:"cnic" validate:"required"`
}

type signInRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type challengeRequest struct {
	Email string `json:"email" validate:"required,email"`
}

type verifyRequest struct {
	Email string `json:"email" validate:"required,email"`
	Code  string `json:"code" validate:"required,numeric"`
	Type  string `json:"type" validate:"omitempty,oneof=email signup"`
}

type verifyResponse struct {
	Token string              `json:"token"`
	State portal.SessionState `json:"session"`
}

type profileRequest struct {
	Name  *string `json:"name" validate:"omitempty,min=1,max=120"`
	Phone *string `json:"phone" validate:"omitempty,max=32"`
}

type userUpdateRequest struct {
	Name   *string `json:"name" validate:"omitempty,min=1,max=120"`
	Phone  *string `json:"phone" validate:"omitempty,max=32"`
	CNIC   *string `json:"cnic" validate:"omitempty,cnic"`
	Role   *string `json:"role" validate:"omitempty,oneof=ADMIN CLIENT"`
	Status *string `json:"status" validate:"omitempty,oneof=Active Suspended"`
}

func (req userUpdateRequest) update() portal.UserUpdate {
	upd := portal.UserUpdate{
		Name:   req.Name,
		Phone:  req.Phone,
		CNIC:   req.CNIC,
		Status: req.Status,
	}
	if req.Role != nil {
		role := core.Role(*req.Role)
		upd.Role = &role
	}
	return upd
}

type importRequest struct {
	Users       []core.User         `json:"users"`
	Files       []core.PropertyFile `json:"files"`
	Destructive bool                `json:"destructive"`
}

type noticeRequest struct {
	Title    string `json:"title" validate:"required,max=200"`
	Body     string `json:"body" validate:"required"`
	Category string `json:"category" validate:"omitempty,max=64"`
}

type messageRequest struct {
	Recipients []string `json:"recipients" validate:"required,min=1,dive,required"`
	Subject    string   `json:"subject" validate:"required,max=200"`
	Body       string   `json:"body" validate:"required"`
}
