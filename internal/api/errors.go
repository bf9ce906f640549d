package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/canny86/FilaCore/internal/certs"
	"github.com/canny86/FilaCore/internal/command"
	"github.com/canny86/FilaCore/internal/filament"
	"github.com/canny86/FilaCore/internal/printer"
)

// Error represents a structured error response.
type Error struct {
	Status  int    `json:"status"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Error codes. Clients may rely on these; messages may change.
const (
	ErrCodeBadRequest         = "bad_request"
	ErrCodeValidation         = "validation_error"
	ErrCodeInvalidSlot        = "invalid_slot"
	ErrCodeNotFound           = "not_found"
	ErrCodeFilamentNotFound   = "filament_not_found"
	ErrCodeNoActivePrinter    = "no_active_printer"
	ErrCodeDuplicateSerial    = "duplicate_serial"
	ErrCodeDuplicateName      = "duplicate_name"
	ErrCodePrinterBusy        = "printer_busy"
	ErrCodeCertificateMissing = "certificate_missing"
	ErrCodeCertificateFailed  = "certificate_failed"
	ErrCodeConnectFailed      = "connect_failed"
	ErrCodeTimeout            = "timeout"
	ErrCodeUnauthorized       = "unauthorised"
	ErrCodeForbidden          = "forbidden"
	ErrCodeInternal           = "internal_error"
)

// writeJSON writes a JSON response with the given status code and payload.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		//nolint:errcheck // Best-effort write to response; connection may be closed
		json.NewEncoder(w).Encode(v)
	}
}

// writeError writes a structured error response.
func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, Error{
		Status:  status,
		Code:    code,
		Message: message,
	})
}

// writeBadRequest writes a 400 error response.
func writeBadRequest(w http.ResponseWriter, message string) {
	writeError(w, http.StatusBadRequest, ErrCodeBadRequest, message)
}

// writeUnauthorized writes a 401 error response.
func writeUnauthorized(w http.ResponseWriter, message string) {
	writeError(w, http.StatusUnauthorized, ErrCodeUnauthorized, message)
}

// writeInternalError writes a 500 error response.
func writeInternalError(w http.ResponseWriter, message string) {
	writeError(w, http.StatusInternalServerError, ErrCodeInternal, message)
}

// errorMapping ties a sentinel error to its response. Order matters: the
// first match wins, so more specific errors come first.
var errorMapping = []struct {
	target error
	status int
	code   string
}{
	{command.ErrInvalidSlot, http.StatusBadRequest, ErrCodeInvalidSlot},
	{command.ErrFilamentNotFound, http.StatusNotFound, ErrCodeFilamentNotFound},
	{command.ErrCertificateMissing, http.StatusPreconditionFailed, ErrCodeCertificateMissing},
	{command.ErrConnectFailed, http.StatusBadGateway, ErrCodeConnectFailed},
	{command.ErrTimeout, http.StatusGatewayTimeout, ErrCodeTimeout},
	{command.ErrBusy, http.StatusConflict, ErrCodePrinterBusy},
	{printer.ErrNoActivePrinter, http.StatusConflict, ErrCodeNoActivePrinter},
	{printer.ErrDuplicateSerial, http.StatusConflict, ErrCodeDuplicateSerial},
	{printer.ErrDuplicateName, http.StatusConflict, ErrCodeDuplicateName},
	{printer.ErrInvalidPrinter, http.StatusBadRequest, ErrCodeValidation},
	{printer.ErrNotFound, http.StatusNotFound, ErrCodeNotFound},
	{filament.ErrInvalidFilament, http.StatusBadRequest, ErrCodeValidation},
	{filament.ErrProfilesNotFound, http.StatusNotFound, ErrCodeNotFound},
	{filament.ErrNotFound, http.StatusNotFound, ErrCodeNotFound},
	{certs.ErrInvalidName, http.StatusBadRequest, ErrCodeValidation},
	{certs.ErrTimeout, http.StatusBadGateway, ErrCodeCertificateFailed},
	{certs.ErrNoOutput, http.StatusBadGateway, ErrCodeCertificateFailed},
	{certs.ErrNoCertificates, http.StatusBadGateway, ErrCodeCertificateFailed},
	{certs.ErrProcess, http.StatusBadGateway, ErrCodeCertificateFailed},
}

// writeDomainError maps err onto a structured response. Unknown errors are
// logged and reported as internal errors without detail.
func (s *Server) writeDomainError(w http.ResponseWriter, r *http.Request, err error) {
	if status, code, ok := classifyError(err); ok {
		writeError(w, status, code, err.Error())
		return
	}

	if errors.Is(err, context.Canceled) {
		// Client went away; nobody is reading the response.
		s.logger.Debug("request cancelled", "path", r.URL.Path, "error", err)
		return
	}

	s.logger.Error("request failed", "method", r.Method, "path", r.URL.Path,
		"request_id", requestIDFrom(r.Context()), "error", err)
	writeInternalError(w, "internal server error")
}

// classifyError returns the status and code mapped to err, if any.
func classifyError(err error) (status int, code string, ok bool) {
	for _, m := range errorMapping {
		if errors.Is(err, m.target) {
			return m.status, m.code, true
		}
	}
	return 0, "", false
}
