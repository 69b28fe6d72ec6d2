// Package apperrors implements the error-kind taxonomy from spec.md §7 as a
// Go type usable with errors.Is/errors.As across every package boundary,
// instead of string-matching or broad catch-all handling.
package apperrors

import "fmt"

// Kind enumerates the error taxonomy from spec.md §7.
type Kind string

const (
	InvalidIntent            Kind = "invalid_intent"
	Unauthenticated          Kind = "unauthenticated"
	NoAdapters               Kind = "no_adapters"
	PartialConnectivity      Kind = "partial_connectivity"
	SchemaIntrospectionError Kind = "schema_introspection_error"
	ConnectionLost           Kind = "connection_lost"
	ModelTransport           Kind = "model_transport"
	InvalidJSON              Kind = "invalid_json"
	InvalidPlan              Kind = "invalid_plan"
	QueryValidation          Kind = "query_validation"
	MissingCollection        Kind = "missing_collection"
	UnsupportedQuery         Kind = "unsupported_query"
	InvalidCollectionName    Kind = "invalid_collection_name"
	RowLimitTruncation       Kind = "row_limit_truncation"
)

// HTTPStatus returns the documented HTTP-equivalent status for a Kind. This
// core never runs an HTTP server (spec.md §1 places routing out of scope);
// the CLI entrypoint uses this purely to report outcomes the way an HTTP
// front end would.
func (k Kind) HTTPStatus() int {
	switch k {
	case InvalidIntent:
		return 422
	case Unauthenticated:
		return 401
	case NoAdapters:
		return 503
	case ModelTransport:
		return 502
	case InvalidJSON, InvalidPlan:
		return 500
	case QueryValidation:
		return 422
	case MissingCollection, UnsupportedQuery, InvalidCollectionName:
		return 400
	default:
		return 500
	}
}

// Error wraps an underlying error with a Kind and the operation that
// produced it, mirroring the teacher's fmt.Errorf("...: %w") wrapping
// convention but carrying a typed, matchable Kind alongside the message.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Op, e.Kind)
	}
	return fmt.Sprintf("%s: %s: %v", e.Op, e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches any *Error target with the same Kind, so
// errors.Is(err, apperrors.Of(kind)) finds an error of that kind anywhere in
// the chain. A bare Kind value is not an error and cannot be the target.
func (e *Error) Is(target error) bool {
	var te *Error
	if t, ok := target.(*Error); ok {
		te = t
	} else {
		return false
	}
	return e.Kind == te.Kind
}

// New constructs an *Error for kind with op and an optional wrapped cause.
func New(kind Kind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

// Of is a sentinel value usable with errors.Is(err, apperrors.Of(kind)) when
// only the kind (not operation or cause) needs to match.
func Of(kind Kind) *Error { return &Error{Kind: kind} }
