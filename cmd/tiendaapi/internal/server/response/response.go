// Package response writes the JSON envelope shared by every endpoint.
package response

import (
	"encoding/json"
	"net/http"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/hlog"

	"github.com/tiendafacil/tienda/cmd/tiendaapi/internal/services/iam"
)

// Envelope messages
const (
	MsgOK           = "The request was processed successfully."
	MsgInternal     = iam.InternalMessage
	MsgInvalidBody  = "Errors were detected in the request body."
	MsgUnauthorized = "Full authentication is required to access this resource"
	MsgForbidden    = "Access is denied"
)

// Envelope is the body of every API response.
type Envelope struct {
	Message  string `json:"message"`
	Code     int    `json:"code"`
	Response any    `json:"response"`
}

// Write encodes an envelope with status.
func Write(w http.ResponseWriter, status int, message string, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(Envelope{Message: message, Code: status, Response: payload})
}

// OK writes a 200 envelope around payload.
func OK(w http.ResponseWriter, payload any) {
	Write(w, http.StatusOK, MsgOK, payload)
}

// Created writes a 201 envelope around payload.
func Created(w http.ResponseWriter, payload any) {
	Write(w, http.StatusCreated, MsgOK, payload)
}

// Invalid writes a 400 envelope listing field messages.
func Invalid(w http.ResponseWriter, msgs []string) {
	Write(w, http.StatusBadRequest, MsgInvalidBody, msgs)
}

// Unauthorized writes a 401 envelope.
func Unauthorized(w http.ResponseWriter) {
	Write(w, http.StatusUnauthorized, MsgUnauthorized, []string{MsgUnauthorized})
}

// Forbidden writes a 403 envelope.
func Forbidden(w http.ResponseWriter) {
	Write(w, http.StatusForbidden, MsgForbidden, []string{MsgForbidden})
}

// Error writes err as an envelope. An *iam.Error keeps its status and messages;
// anything else is logged and answered with a generic 500.
func Error(w http.ResponseWriter, r *http.Request, err error) {
	e, ok := iam.AsError(err)
	if !ok {
		e = iam.Internal(err)
	}

	if e.Kind == iam.KindInternal {
		logger(r).Error().Err(err).Str("method", r.Method).Str("path", r.URL.Path).Msg("internal error")
		Write(w, e.Status, MsgInternal, []string{MsgInternal})
		return
	}

	message := e.Messages[0]
	if e.Kind == iam.KindValidation {
		message = MsgInvalidBody
	}
	Write(w, e.Status, message, e.Messages)
}

func logger(r *http.Request) *zerolog.Logger {
	return hlog.FromRequest(r)
}
