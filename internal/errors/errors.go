package errors

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

type Code codes.Code

const (
	CodeInvalidArgument    = Code(codes.InvalidArgument)
	CodeNotFound           = Code(codes.NotFound)
	CodeAlreadyExists      = Code(codes.AlreadyExists)
	CodeFailedPrecondition = Code(codes.FailedPrecondition)
	CodeResourceExhausted  = Code(codes.ResourceExhausted)
	CodeUnavailable        = Code(codes.Unavailable)
	CodeInternal           = Code(codes.Internal)
	CodeUnauthenticated    = Code(codes.Unauthenticated)
	CodePermissionDenied   = Code(codes.PermissionDenied)
)

var code2http = map[Code]int{
	CodeInvalidArgument:    http.StatusBadRequest,
	CodeNotFound:           http.StatusNotFound,
	CodeAlreadyExists:      http.StatusConflict,
	CodeFailedPrecondition: http.StatusConflict,
	CodeResourceExhausted:  http.StatusTooManyRequests,
	CodeUnavailable:        http.StatusServiceUnavailable,
	CodeInternal:           http.StatusInternalServerError,
	CodeUnauthenticated:    http.StatusUnauthorized,
	CodePermissionDenied:   http.StatusForbidden,
}

// Reason classifies an error for callers that need to react to it, e.g. to suggest waiting for tokens.
type Reason string

const (
	ReasonUnknown            Reason = ""
	ReasonValidation         Reason = "VALIDATION"
	ReasonNotFound           Reason = "NOT_FOUND"
	ReasonAlreadySolved      Reason = "ALREADY_SOLVED"
	ReasonAlreadyGaveUp      Reason = "ALREADY_GAVE_UP"
	ReasonNotStarted         Reason = "NOT_STARTED"
	ReasonDuplicateGuess     Reason = "DUPLICATE_GUESS"
	ReasonRateLimited        Reason = "RATE_LIMITED"
	ReasonNoHintsLeft        Reason = "NO_HINTS_LEFT"
	ReasonExternalService    Reason = "EXTERNAL_SERVICE"
	ReasonInvariantViolation Reason = "INVARIANT_VIOLATION"
)

type Error struct {
	Code    Code   `json:"code"`
	Reason  Reason `json:"reason,omitempty"`
	Message string `json:"message"`
	err     error
}

func New(code Code, opts ...Option) *Error {
	e := &Error{
		Code:    code,
		Message: codes.Code(code).String(),
	}

	for _, opt := range opts {
		opt.apply(e)
	}

	return e
}

func (e *Error) Error() string {
	s := fmt.Sprintf("code: %d, message: %s", e.Code, e.Message)
	if e.Reason != ReasonUnknown {
		s += fmt.Sprintf(", reason: %s", e.Reason)
	}
	if e.err != nil {
		s += fmt.Sprintf(", err: %s", e.err)
	}

	return s
}

func (e *Error) Unwrap() error {
	return e.err
}

func (e *Error) GRPCStatus() *status.Status {
	return status.New(codes.Code(e.Code), e.Message)
}

func (e *Error) HTTPStatusCode() int {
	if c, ok := code2http[e.Code]; ok {
		return c
	}

	return http.StatusInternalServerError
}

func Convert(err error) *Error {
	var e *Error
	if !errors.As(err, &e) {
		return Internal(err)
	}

	return e
}

// ReasonOf returns the reason of the first *Error in err's chain.
func ReasonOf(err error) Reason {
	var e *Error
	if !errors.As(err, &e) {
		return ReasonUnknown
	}

	return e.Reason
}

func Internal(err error) *Error {
	return New(CodeInternal, WithCause(err))
}

func Validation(format string, args ...any) *Error {
	return New(CodeInvalidArgument, WithReason(ReasonValidation), WithMessagef(format, args...))
}

// InvalidFields converts a struct validation failure into a VALIDATION error listing each field by its
// lowercase name and failed rule, e.g. "invalid request: word: required". Other errors are internal.
func InvalidFields(err error, format string, args ...any) *Error {
	var ve validator.ValidationErrors
	if !errors.As(err, &ve) {
		return Internal(err)
	}

	fields := make([]string, 0, len(ve))
	for _, fe := range ve {
		f := strings.ToLower(fe.Field()) + ": " + fe.Tag()
		if fe.Param() != "" {
			f += "=" + fe.Param()
		}
		fields = append(fields, f)
	}

	return New(CodeInvalidArgument,
		WithReason(ReasonValidation),
		WithMessagef("%s: %s", fmt.Sprintf(format, args...), strings.Join(fields, ", ")),
		WithCause(err),
	)
}

func NotFound(format string, args ...any) *Error {
	return New(CodeNotFound, WithReason(ReasonNotFound), WithMessagef(format, args...))
}

func ExternalService(err error) *Error {
	return New(CodeUnavailable,
		WithReason(ReasonExternalService),
		WithMessagef("word service is unavailable, please try again later"),
		WithCause(err),
	)
}

func InvariantViolation(err error, format string, args ...any) *Error {
	return New(CodeInternal,
		WithReason(ReasonInvariantViolation),
		WithMessagef(format, args...),
		WithCause(err),
	)
}

type Option interface {
	apply(*Error)
}

type optionFunc func(*Error)

func (f optionFunc) apply(e *Error) {
	f(e)
}

func WithCause(err error) Option {
	return optionFunc(func(e *Error) {
		e.err = err
	})
}

func WithMessagef(format string, args ...any) Option {
	return optionFunc(func(e *Error) {
		e.Message = fmt.Sprintf(format, args...)
	})
}

func WithReason(r Reason) Option {
	return optionFunc(func(e *Error) {
		e.Reason = r
	})
}
