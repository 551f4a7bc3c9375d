package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/MeKo-Tech/qrengine/internal/encoder"
	"github.com/MeKo-Tech/qrengine/internal/pdf"
	"github.com/MeKo-Tech/qrengine/internal/pipeline"
	"github.com/MeKo-Tech/qrengine/internal/preprocess"
	"github.com/MeKo-Tech/qrengine/internal/render"
)

// Error codes returned in the detail object of error responses.
const (
	CodeValidation              = "validation_error"
	CodeStyledImageRequired     = "styled_image_required"
	CodeFinalSizePNGOnly        = "final_size_png_only"
	CodeInvalidColor            = "invalid_color"
	CodeInvalidEmbeddedImage    = "invalid_embedded_image"
	CodeInvalidColorMaskImage   = "invalid_color_mask_image"
	CodeInvalidColorCombination = "invalid_color_combination"
	CodeCapacityExceeded        = "capacity_exceeded"
	CodeUnsupportedStyle        = "unsupported_style"
	CodeInvalidImage            = "invalid_image"
	CodeInputTooLarge           = "input_too_large"
	CodePDFEncrypted            = "pdf_encrypted"
	CodeTimeout                 = "timeout"
	CodeGenerationFailed        = "generation_failed"
	CodeScanFailed              = "scan_failed"
	CodeRateLimitExceeded       = "rate_limit_exceeded"
	CodeQuotaExceeded           = "quota_exceeded"
	CodeMethodNotAllowed        = "method_not_allowed"
)

// APIError is the detail object of an error response.
type APIError struct {
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Context map[string]any `json:"context"`
}

// ErrorResponse wraps APIError as {"detail": {...}}.
type ErrorResponse struct {
	Detail APIError `json:"detail"`
}

// ValidationError is a malformed request field. It is the caller's fault and
// never retried.
type ValidationError struct {
	Code    string
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return e.Field + ": " + e.Message
}

func invalid(code, field, format string, args ...any) *ValidationError {
	return &ValidationError{Code: code, Field: field, Message: fmt.Sprintf(format, args...)}
}

// classify maps an error to its HTTP status and detail object. op is
// "generate" or "scan" and selects the fallback code.
func classify(err error, op string) (int, APIError) {
	detail := APIError{Message: err.Error(), Context: map[string]any{}}

	var (
		vErr   *ValidationError
		capErr *encoder.CapacityError
		stErr  *render.StyleError
		rlErr  *RateLimitError
		qErr   *QuotaExceededError
	)
	switch {
	case errors.As(err, &vErr):
		detail.Code = vErr.Code
		if vErr.Field != "" {
			detail.Context["field"] = vErr.Field
		}
		return http.StatusBadRequest, detail
	case errors.As(err, &rlErr):
		detail.Code = CodeRateLimitExceeded
		detail.Context["type"] = rlErr.Type
		detail.Context["limit"] = rlErr.Limit
		detail.Context["retry_after"] = rlErr.RetryAfter.Seconds()
		return http.StatusTooManyRequests, detail
	case errors.As(err, &qErr):
		detail.Code = CodeQuotaExceeded
		detail.Context["type"] = qErr.Type
		detail.Context["limit"] = qErr.Limit
		detail.Context["used"] = qErr.Used
		detail.Context["resets"] = qErr.Resets.Format(time.RFC3339)
		return http.StatusTooManyRequests, detail
	case errors.As(err, &capErr):
		detail.Code = CodeCapacityExceeded
		detail.Context["bytes"] = capErr.Bytes
		detail.Context["error_correction"] = capErr.Level.String()
		return http.StatusUnprocessableEntity, detail
	case errors.Is(err, encoder.ErrCapacityExceeded):
		detail.Code = CodeCapacityExceeded
		return http.StatusUnprocessableEntity, detail
	case errors.As(err, &stErr):
		detail.Code = CodeUnsupportedStyle
		detail.Context["field"] = stErr.Field
		detail.Context["value"] = stErr.Value
		return http.StatusUnprocessableEntity, detail
	case errors.Is(err, render.ErrInvalidLogo):
		detail.Code = CodeInvalidEmbeddedImage
		return http.StatusBadRequest, detail
	case errors.Is(err, pipeline.ErrInvalidRequest):
		detail.Code = CodeValidation
		return http.StatusBadRequest, detail
	case errors.Is(err, preprocess.ErrInputTooLarge):
		detail.Code = CodeInputTooLarge
		return http.StatusRequestEntityTooLarge, detail
	case errors.Is(err, preprocess.ErrUnreadableImage), errors.Is(err, preprocess.ErrInvalidBase64):
		detail.Code = CodeInvalidImage
		return http.StatusBadRequest, detail
	case errors.Is(err, pdf.ErrPassword):
		detail.Code = CodePDFEncrypted
		return http.StatusBadRequest, detail
	case errors.Is(err, context.DeadlineExceeded):
		detail.Code = CodeTimeout
		return http.StatusGatewayTimeout, detail
	}

	if op == "generate" {
		detail.Code = CodeGenerationFailed
	} else {
		detail.Code = CodeScanFailed
	}
	return http.StatusInternalServerError, detail
}

// writeError classifies err and writes the error response.
func writeError(w http.ResponseWriter, r *http.Request, err error, op string) {
	status, detail := classify(err, op)
	if status >= http.StatusInternalServerError {
		slog.Error("Request failed", "op", op, "path", r.URL.Path, "request_id", requestIDFrom(r.Context()), "error", err)
	} else {
		slog.Debug("Request rejected", "op", op, "code", detail.Code, "error", err)
	}

	var rlErr *RateLimitError
	var qErr *QuotaExceededError
	switch {
	case errors.As(err, &rlErr):
		w.Header().Set("X-RateLimit-Type", rlErr.Type)
		w.Header().Set("X-RateLimit-Limit", strconv.Itoa(rlErr.Limit))
		w.Header().Set("Retry-After", fmt.Sprintf("%.0f", rlErr.RetryAfter.Seconds()))
	case errors.As(err, &qErr):
		w.Header().Set("X-Quota-Type", qErr.Type)
		w.Header().Set("X-Quota-Limit", strconv.FormatInt(qErr.Limit, 10))
		w.Header().Set("X-Quota-Used", strconv.FormatInt(qErr.Used, 10))
		w.Header().Set("X-Quota-Resets", qErr.Resets.UTC().Format(http.TimeFormat))
	}
	writeJSON(w, status, ErrorResponse{Detail: detail})
}

// writeJSON encodes v with the given status.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("Failed to encode response", "error", err)
	}
}

// methodNotAllowed writes a 405 with the allowed method.
func methodNotAllowed(w http.ResponseWriter, allow string) {
	w.Header().Set("Allow", allow)
	writeJSON(w, http.StatusMethodNotAllowed, ErrorResponse{Detail: APIError{
		Code:    CodeMethodNotAllowed,
		Message: "method not allowed",
		Context: map[string]any{"allow": allow},
	}})
}
