package apiutil

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/codr1/Shuttlers/internal/api/authz"
	"github.com/codr1/Shuttlers/internal/models"
)

type FieldError struct {
	Field  string
	Reason string
}

func (e FieldError) Error() string {
	return fmt.Sprintf("%s %s", e.Field, e.Reason)
}

type HandlerError struct {
	Status  int
	Code    string
	Message string
	Err     error
}

func (e HandlerError) Error() string {
	return e.Message
}

func (e HandlerError) Unwrap() error {
	return e.Err
}

// ErrorBody is the JSON shape of every error response.
type ErrorBody struct {
	Error ErrorDetail `json:"error"`
}

type ErrorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Field   string `json:"field,omitempty"`
}

func DecodeJSON(r *http.Request, dst any) error {
	if r.Body == nil {
		return FieldError{Field: "body", Reason: "is required"}
	}
	defer r.Body.Close()

	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()

	if err := decoder.Decode(dst); err != nil {
		return FieldError{Field: "body", Reason: "is not valid JSON: " + err.Error()}
	}
	if err := decoder.Decode(&struct{}{}); err != io.EOF {
		return FieldError{Field: "body", Reason: "must hold a single JSON object"}
	}
	return nil
}

func WriteJSON(w http.ResponseWriter, status int, payload any) error {
	var buf bytes.Buffer
	encoder := json.NewEncoder(&buf)
	if err := encoder.Encode(payload); err != nil {
		return err
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, err := w.Write(buf.Bytes())
	return err
}

// kinds maps domain error kinds to HTTP status and reason code. Order matters
// only where one sentinel could wrap another.
var kinds = []struct {
	err    error
	status int
	code   string
}{
	{models.ErrNotFound, http.StatusNotFound, "not_found"},
	{models.ErrValidation, http.StatusBadRequest, "validation"},
	{models.ErrConflict, http.StatusConflict, "conflict"},
	{models.ErrAlreadyCancelled, http.StatusConflict, "already_cancelled"},
	{models.ErrInvalidState, http.StatusConflict, "invalid_state"},
	{models.ErrForbidden, http.StatusForbidden, "forbidden"},
	{models.ErrDuplicate, http.StatusConflict, "duplicate"},
	{models.ErrTooEarly, http.StatusUnprocessableEntity, "too_early"},
	{models.ErrInvalidWinner, http.StatusUnprocessableEntity, "invalid_winner"},
	{models.ErrDuplicatePlayer, http.StatusUnprocessableEntity, "duplicate_player"},
	{models.ErrNotPending, http.StatusConflict, "not_pending"},
	{authz.ErrUnauthenticated, http.StatusUnauthorized, "unauthenticated"},
	{authz.ErrForbidden, http.StatusForbidden, "forbidden"},
}

// Classify returns the status, reason code and client-safe detail for err.
func Classify(err error) (int, ErrorDetail) {
	var he HandlerError
	if errors.As(err, &he) {
		return he.Status, ErrorDetail{Code: he.Code, Message: he.Message}
	}
	var fe FieldError
	if errors.As(err, &fe) {
		return http.StatusBadRequest, ErrorDetail{Code: "validation", Message: fe.Error(), Field: fe.Field}
	}
	var ve *models.ValidationError
	if errors.As(err, &ve) {
		return http.StatusBadRequest, ErrorDetail{Code: "validation", Message: ve.Error(), Field: ve.Field}
	}
	for _, k := range kinds {
		if errors.Is(err, k.err) {
			return k.status, ErrorDetail{Code: k.code, Message: err.Error()}
		}
	}
	return http.StatusInternalServerError, ErrorDetail{Code: "internal", Message: "Internal Server Error"}
}

// WriteError writes the reason-coded response for err. Unclassified errors
// are logged and reported as internal.
func WriteError(w http.ResponseWriter, r *http.Request, err error) {
	status, detail := Classify(err)
	logger := log.Ctx(r.Context())
	if status >= http.StatusInternalServerError {
		logger.Error().Err(err).Str("path", r.URL.Path).Msg("Request failed")
	} else {
		logger.Debug().Err(err).Int("status", status).Str("code", detail.Code).Msg("Request rejected")
	}
	if writeErr := WriteJSON(w, status, ErrorBody{Error: detail}); writeErr != nil {
		logger.Error().Err(writeErr).Msg("Failed to write error response")
	}
}

// Respond writes payload or logs the write failure.
func Respond(w http.ResponseWriter, r *http.Request, status int, payload any) {
	if err := WriteJSON(w, status, payload); err != nil {
		log.Ctx(r.Context()).Error().Err(err).Str("path", r.URL.Path).Msg("Failed to write response")
	}
}

// RequireUser writes 401 and returns nil when the request is anonymous.
func RequireUser(w http.ResponseWriter, r *http.Request) *authz.AuthUser {
	user, err := authz.RequireUser(r.Context())
	if err != nil {
		log.Ctx(r.Context()).Warn().Str("path", r.URL.Path).Msg("Access denied: unauthenticated")
		WriteError(w, r, err)
		return nil
	}
	return user
}

// RequireAdmin writes 401 or 403 and returns nil unless the caller is an admin.
func RequireAdmin(w http.ResponseWriter, r *http.Request) *authz.AuthUser {
	logger := log.Ctx(r.Context())
	user, err := authz.RequireAdmin(r.Context())
	if err != nil {
		logEvent := logger.Warn().Str("path", r.URL.Path)
		if u := authz.UserFromContext(r.Context()); u != nil {
			logEvent = logEvent.Int64("user_id", u.ID)
		}
		if errors.Is(err, authz.ErrForbidden) {
			logEvent.Msg("Admin access denied: forbidden")
		} else {
			logEvent.Msg("Admin access denied: unauthenticated")
		}
		WriteError(w, r, err)
		return nil
	}
	return user
}
