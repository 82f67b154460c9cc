package server

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/tiendafacil/tienda/cmd/tiendaapi/internal/server/response"
	"github.com/tiendafacil/tienda/cmd/tiendaapi/internal/services/iam"
	"github.com/tiendafacil/tienda/cmd/tiendaapi/internal/services/validation"
)

// maxBodyBytes caps auth request bodies.
const maxBodyBytes = 64 << 10

// LoginRequest is the body of POST /api/v1/auth/login.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// HandleRegister creates a principal and returns its first credential pair.
func HandleRegister(svc iamService, v *validation.Validator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var in iam.RegisterInput
		if !decodeBody(w, r, v, validation.SchemaRegister, &in) {
			return
		}

		tokens, err := svc.Register(r.Context(), in)
		if err != nil {
			response.Error(w, r, err)
			return
		}
		response.Created(w, tokens)
	}
}

// HandleLogin exchanges email and password for a new credential pair.
func HandleLogin(svc iamService, v *validation.Validator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req LoginRequest
		if !decodeBody(w, r, v, validation.SchemaLogin, &req) {
			return
		}

		tokens, err := svc.Login(r.Context(), req.Email, req.Password)
		if err != nil {
			response.Error(w, r, err)
			return
		}
		response.OK(w, tokens)
	}
}

// HandleRefresh issues a new access credential for the refresh credential in
// the Authorization header.
func HandleRefresh(svc iamService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tokens, err := svc.Refresh(r.Context(), r.Header.Get("Authorization"))
		if err != nil {
			response.Error(w, r, err)
			return
		}
		response.OK(w, tokens)
	}
}

// HandleLogout revokes the credential in the Authorization header.
func HandleLogout(svc iamService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		msg, err := svc.Logout(r.Context(), r.Header.Get("Authorization"))
		if err != nil {
			response.Error(w, r, err)
			return
		}
		response.OK(w, msg)
	}
}

// decodeBody validates the body against schema and decodes it into dst.
// It writes the error response and returns false on failure.
func decodeBody(w http.ResponseWriter, r *http.Request, v *validation.Validator, schema string, dst any) bool {
	raw, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			response.Invalid(w, []string{"body: exceeds the maximum size"})
			return false
		}
		response.Invalid(w, []string{"body: could not be read"})
		return false
	}

	msgs, err := v.Body(schema, raw)
	if err != nil {
		response.Error(w, r, err)
		return false
	}
	if len(msgs) > 0 {
		response.Invalid(w, msgs)
		return false
	}

	if err := json.Unmarshal(raw, dst); err != nil {
		response.Invalid(w, []string{"body: " + err.Error()})
		return false
	}
	return true
}
