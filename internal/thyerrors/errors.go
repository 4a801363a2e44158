// Package thyerrors defines the error taxonomy shared across Thymos's
// subsystems (versioning, concepts, tools, pubsub, supervisor). Every kind
// implements RecoverableError so the CLI output layer can surface code,
// context, and a suggested action without type-switching on call sites.
package thyerrors

import "fmt"

// RecoverableError is implemented by enriched errors that carry structured
// context and remediation hints.
type RecoverableError interface {
	error
	ErrorCode() string
	Context() map[string]string
	SuggestedAction() string
}

// Kind is the closed taxonomy of error kinds from the error handling design.
type Kind string

const (
	KindNotFound         Kind = "NOT_FOUND"
	KindAlreadyExists    Kind = "ALREADY_EXISTS"
	KindInvalidArgument  Kind = "INVALID_ARGUMENT"
	KindValidation       Kind = "VALIDATION"
	KindCapabilityDenied Kind = "CAPABILITY_DENIED"
	KindTimeout          Kind = "TIMEOUT"
	KindRateLimited      Kind = "RATE_LIMITED"
	KindTransient        Kind = "TRANSIENT"
	KindConflict         Kind = "CONFLICT"
	KindConfiguration    Kind = "CONFIGURATION"
	KindInternal         Kind = "INTERNAL"
	KindCancelled        Kind = "CANCELLED"
)

// retryable holds the kinds the spec classifies as safe to retry.
var retryable = map[Kind]bool{
	KindTimeout:     true,
	KindRateLimited: true,
	KindTransient:   true,
}

// Retryable reports whether errors of this kind may be retried by the caller.
func (k Kind) Retryable() bool {
	return retryable[k]
}

// Error is the concrete RecoverableError implementation for every taxonomy
// kind. Construct with New or one of the kind-specific helpers below.
type Error struct {
	kind    Kind
	message string
	ctx     map[string]string
	action  string
	wrapped error
}

// New builds a taxonomy error of the given kind.
func New(kind Kind, message string) *Error {
	return &Error{kind: kind, message: message}
}

// Newf builds a taxonomy error with a formatted message.
func Newf(kind Kind, format string, args ...any) *Error {
	return &Error{kind: kind, message: fmt.Sprintf(format, args...)}
}

// WithContext attaches structured context key/value pairs.
func (e *Error) WithContext(ctx map[string]string) *Error {
	e.ctx = ctx
	return e
}

// WithAction sets the suggested remediation.
func (e *Error) WithAction(action string) *Error {
	e.action = action
	return e
}

// WithWrapped sets the underlying cause for errors.Unwrap.
func (e *Error) WithWrapped(cause error) *Error {
	e.wrapped = cause
	return e
}

func (e *Error) Error() string {
	if e.wrapped != nil {
		return fmt.Sprintf("%s: %s: %v", e.kind, e.message, e.wrapped)
	}
	return fmt.Sprintf("%s: %s", e.kind, e.message)
}

func (e *Error) Unwrap() error { return e.wrapped }

func (e *Error) ErrorCode() string { return string(e.kind) }

func (e *Error) Context() map[string]string {
	if e.ctx == nil {
		return map[string]string{}
	}
	return e.ctx
}

func (e *Error) SuggestedAction() string { return e.action }

// Kind returns the taxonomy kind of this error.
func (e *Error) Kind() Kind { return e.kind }

// Is lets errors.Is match against a bare Kind sentinel comparison by kind,
// and lets two *Error values of the same kind and message compare equal.
func (e *Error) Is(target error) bool {
	other, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.kind == other.kind && (other.message == "" || e.message == other.message)
}

// NotFound builds a NotFound error for a missing named resource.
func NotFound(resource, id string) *Error {
	return Newf(KindNotFound, "%s %q not found", resource, id).
		WithContext(map[string]string{"resource": resource, "id": id})
}

// AlreadyExists builds an AlreadyExists error for a duplicate named resource.
func AlreadyExists(resource, id string) *Error {
	return Newf(KindAlreadyExists, "%s %q already exists", resource, id).
		WithContext(map[string]string{"resource": resource, "id": id})
}

// Internal wraps an unexpected invariant violation, including lock poisoning.
func Internal(message string, cause error) *Error {
	return New(KindInternal, message).WithWrapped(cause)
}
