package errors

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// ErrorType represents different categories of errors.
type ErrorType string

const (
	ErrorTypeNotFound  ErrorType = "not_found"
	ErrorTypeBuild     ErrorType = "build"
	ErrorTypeLifecycle ErrorType = "lifecycle"
	ErrorTypeConfig    ErrorType = "config"
	ErrorTypeInternal  ErrorType = "internal"
)

// Common error codes.
const (
	ErrCodeEntryNotFound      = "ERR_ENTRY_NOT_FOUND"
	ErrCodeCompilerInvocation = "ERR_COMPILER_INVOCATION"
	ErrCodeCompilation        = "ERR_COMPILATION"
	ErrCodeAssetNotFound      = "ERR_ASSET_NOT_FOUND"
	ErrCodePageNotFound       = "ERR_PAGE_NOT_FOUND"
	ErrCodeBind               = "ERR_BIND"
	ErrCodeNotRunning         = "ERR_NOT_RUNNING"
	ErrCodeConfigInvalid      = "ERR_CONFIG_INVALID"
	ErrCodeInternalError      = "ERR_INTERNAL"
)

// PageWithError is a structured error type with context.
type PageWithError struct {
	Type        ErrorType
	Code        string
	Message     string
	Cause       error
	Context     map[string]interface{}
	Diagnostics []Diagnostic
}

// Error implements the error interface.
func (e *PageWithError) Error() string {
	var parts []string

	if e.Code != "" {
		parts = append(parts, fmt.Sprintf("[%s]", e.Code))
	}

	parts = append(parts, e.Message)

	result := strings.Join(parts, " ")

	if len(e.Diagnostics) > 0 {
		result += fmt.Sprintf(" (%d diagnostics)", len(e.Diagnostics))
	}

	if e.Cause != nil {
		result += fmt.Sprintf(": %v", e.Cause)
	}

	return result
}

// Unwrap returns the underlying cause error.
func (e *PageWithError) Unwrap() error {
	return e.Cause
}

// Is implements error comparison. Two errors match when they share type and code,
// so callers can compare against sentinels such as ErrEntryNotFound.
func (e *PageWithError) Is(target error) bool {
	var t *PageWithError
	if errors.As(target, &t) {
		return e.Type == t.Type && e.Code == t.Code
	}

	return false
}

// WithContext adds context information to the error.
func (e *PageWithError) WithContext(key string, value interface{}) *PageWithError {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value

	return e
}

// Sentinels usable with errors.Is.
var (
	ErrEntryNotFound      = &PageWithError{Type: ErrorTypeNotFound, Code: ErrCodeEntryNotFound}
	ErrCompilerInvocation = &PageWithError{Type: ErrorTypeBuild, Code: ErrCodeCompilerInvocation}
	ErrCompilation        = &PageWithError{Type: ErrorTypeBuild, Code: ErrCodeCompilation}
	ErrAssetNotFound      = &PageWithError{Type: ErrorTypeNotFound, Code: ErrCodeAssetNotFound}
	ErrPageNotFound       = &PageWithError{Type: ErrorTypeNotFound, Code: ErrCodePageNotFound}
	ErrBind               = &PageWithError{Type: ErrorTypeLifecycle, Code: ErrCodeBind}
	ErrNotRunning         = &PageWithError{Type: ErrorTypeLifecycle, Code: ErrCodeNotRunning}
	ErrConfigInvalid      = &PageWithError{Type: ErrorTypeConfig, Code: ErrCodeConfigInvalid}
)

// Error creation functions

// EntryNotFound reports a source module that does not exist on disk.
func EntryNotFound(path string, cause error) *PageWithError {
	return &PageWithError{
		Type:    ErrorTypeNotFound,
		Code:    ErrCodeEntryNotFound,
		Message: fmt.Sprintf("entry module %q does not exist", path),
		Cause:   cause,
	}
}

// CompilerInvocation reports a bundler that could not run at all.
func CompilerInvocation(entry string, cause error) *PageWithError {
	return &PageWithError{
		Type:    ErrorTypeBuild,
		Code:    ErrCodeCompilerInvocation,
		Message: fmt.Sprintf("failed to invoke the compiler for %q", entry),
		Cause:   cause,
	}
}

// Compilation reports a module graph with real diagnostics.
func Compilation(entry string, diagnostics []Diagnostic) *PageWithError {
	return &PageWithError{
		Type:        ErrorTypeBuild,
		Code:        ErrCodeCompilation,
		Message:     fmt.Sprintf("failed to compile %q", entry),
		Diagnostics: diagnostics,
	}
}

// AssetNotFound reports a path absent from the asset store.
func AssetNotFound(path string) *PageWithError {
	return &PageWithError{
		Type:    ErrorTypeNotFound,
		Code:    ErrCodeAssetNotFound,
		Message: "asset not found: " + path,
	}
}

// PageNotFound reports an unknown page id.
func PageNotFound(id string) *PageWithError {
	return &PageWithError{
		Type:    ErrorTypeNotFound,
		Code:    ErrCodePageNotFound,
		Message: "page not found: " + id,
	}
}

// Bind reports a listener that could not be established.
func Bind(addr string, cause error) *PageWithError {
	return &PageWithError{
		Type:    ErrorTypeLifecycle,
		Code:    ErrCodeBind,
		Message: "failed to bind " + addr,
		Cause:   cause,
	}
}

// NotRunning reports a close on a server that is not listening.
func NotRunning() *PageWithError {
	return &PageWithError{
		Type:    ErrorTypeLifecycle,
		Code:    ErrCodeNotRunning,
		Message: "failed to close the server: server is not running",
	}
}

// ConfigInvalid reports an invalid configuration value.
func ConfigInvalid(message string, cause error) *PageWithError {
	return &PageWithError{
		Type:    ErrorTypeConfig,
		Code:    ErrCodeConfigInvalid,
		Message: message,
		Cause:   cause,
	}
}

// Internal reports an unexpected failure while serving a request.
func Internal(message string, cause error) *PageWithError {
	return &PageWithError{
		Type:    ErrorTypeInternal,
		Code:    ErrCodeInternalError,
		Message: message,
		Cause:   cause,
	}
}

// IsNotFound checks if an error describes a missing resource.
func IsNotFound(err error) bool {
	var pe *PageWithError
	if errors.As(err, &pe) {
		return pe.Type == ErrorTypeNotFound
	}

	return false
}

// IsBuildError checks if an error is build-related.
func IsBuildError(err error) bool {
	var pe *PageWithError
	if errors.As(err, &pe) {
		return pe.Type == ErrorTypeBuild
	}

	return false
}

// DiagnosticsOf returns the compiler diagnostics carried by err, if any.
func DiagnosticsOf(err error) []Diagnostic {
	var pe *PageWithError
	if errors.As(err, &pe) {
		return pe.Diagnostics
	}

	return nil
}

// HTTPStatus maps an error onto the status code the preview server answers with.
func HTTPStatus(err error) int {
	if err == nil {
		return http.StatusOK
	}
	if IsNotFound(err) {
		return http.StatusNotFound
	}

	return http.StatusInternalServerError
}

// errorPayload is the JSON body written for failed requests.
type errorPayload struct {
	Error       string       `json:"error"`
	Code        string       `json:"code,omitempty"`
	Diagnostics []Diagnostic `json:"diagnostics,omitempty"`
}

// WriteJSON writes err as a structured JSON response with the matching status code.
func WriteJSON(w http.ResponseWriter, err error) {
	payload := errorPayload{Error: err.Error()}

	var pe *PageWithError
	if errors.As(err, &pe) {
		payload.Code = pe.Code
		payload.Diagnostics = pe.Diagnostics
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(HTTPStatus(err))
	_ = json.NewEncoder(w).Encode(payload)
}

// ErrorHandler provides centralized error handling.
type ErrorHandler struct {
	logger Logger
}

// Logger interface for error logging.
type Logger interface {
	Error(ctx context.Context, err error, msg string, fields ...interface{})
	Warn(ctx context.Context, err error, msg string, fields ...interface{})
}

// NewErrorHandler creates a new error handler.
func NewErrorHandler(logger Logger) *ErrorHandler {
	return &ErrorHandler{logger: logger}
}

// Handle logs an error at a level matching its category.
func (h *ErrorHandler) Handle(ctx context.Context, err error) {
	if err == nil || h.logger == nil {
		return
	}

	var pe *PageWithError
	if !errors.As(err, &pe) {
		h.logger.Error(ctx, err, "Unhandled error occurred")
		return
	}

	switch pe.Type {
	case ErrorTypeNotFound:
		h.logger.Warn(ctx, err, "Resource not found", "code", pe.Code)
	case ErrorTypeBuild:
		h.logger.Warn(ctx, err, "Build error occurred",
			"code", pe.Code,
			"diagnostics", len(pe.Diagnostics))
	default:
		h.logger.Error(ctx, err, "Error occurred",
			"type", pe.Type,
			"code", pe.Code)
	}
}
