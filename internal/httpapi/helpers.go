package httpapi

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"opendesk.org/internal/audit"
	"opendesk.org/internal/auth"
)

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, r *http.Request, code int, msg string) {
	writeErrorCode(w, r, code, "", msg)
}

// writeErrorCode emits the error envelope. The code field is the stable
// machine-readable denial code; it is omitted for plain validation errors.
func writeErrorCode(w http.ResponseWriter, r *http.Request, status int, code, msg string) {
	payload := map[string]any{
		"error": msg,
	}
	if code != "" {
		payload["code"] = code
	}
	if rid := audit.RequestIDFromContext(r.Context()); rid != "" {
		payload["request_id"] = rid
	}
	writeJSON(w, status, payload)
}

func methodNotAllowed(w http.ResponseWriter, r *http.Request, allowed ...string) {
	w.Header().Set("Allow", strings.Join(allowed, ", "))
	writeError(w, r, http.StatusMethodNotAllowed, "method not allowed")
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	reader := http.MaxBytesReader(w, r.Body, 1<<20)
	defer reader.Close()
	dec := json.NewDecoder(reader)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return errors.New("request body is required")
		}
		return err
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		if err == nil {
			return errors.New("unexpected data after JSON body")
		}
		return err
	}
	return nil
}

// handleDomainError maps engine errors onto HTTP statuses. Typed denials keep
// their code on the wire; session/refresh denials all collapse to 401 so the
// response does not reveal whether a token was expired, revoked or stolen.
func handleDomainError(w http.ResponseWriter, r *http.Request, err error) {
	var denial *auth.Error
	if errors.As(err, &denial) {
		switch denial.Code {
		case auth.CodeInvalidStatusTransition:
			writeErrorCode(w, r, http.StatusConflict, denial.Code, denial.Message)
		case auth.CodeSessionNotFound, auth.CodeSessionExpired, auth.CodeSessionRevoked, auth.CodeInvalidRefreshToken:
			writeErrorCode(w, r, http.StatusUnauthorized, denial.Code, denial.Message)
		default:
			// FORBIDDEN and FORBIDDEN_FIELD_<FIELD>.
			writeErrorCode(w, r, http.StatusForbidden, denial.Code, denial.Message)
		}
		return
	}
	switch {
	case errors.Is(err, auth.ErrInvalidInput):
		writeError(w, r, http.StatusBadRequest, err.Error())
	case errors.Is(err, auth.ErrNotFound):
		writeError(w, r, http.StatusNotFound, err.Error())
	case errors.Is(err, auth.ErrConflict):
		writeError(w, r, http.StatusConflict, err.Error())
	case errors.Is(err, auth.ErrUnauthorized), errors.Is(err, auth.ErrInvalidToken):
		writeError(w, r, http.StatusUnauthorized, "unauthorized")
	default:
		writeError(w, r, http.StatusInternalServerError, "internal error")
	}
}
