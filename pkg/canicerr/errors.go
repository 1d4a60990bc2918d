package canicerr

import "fmt"

// Kind is the internal taxonomy a package-level error belongs to.
type Kind int

const (
	// KindInfra covers host-call/codec failures: opaque at the boundary.
	KindInfra Kind = iota
	// KindOps covers operational preconditions (not root, missing env).
	KindOps
	// KindWorkflow covers invariant violations during orchestration.
	KindWorkflow
	// KindPolicy covers sharding/auth policy refusals.
	KindPolicy
	// KindStorage covers registry/lookup failures, duplicates, slot clashes.
	KindStorage
)

func (k Kind) String() string {
	switch k {
	case KindInfra:
		return "infra"
	case KindOps:
		return "ops"
	case KindWorkflow:
		return "workflow"
	case KindPolicy:
		return "policy"
	case KindStorage:
		return "storage"
	default:
		return "unknown"
	}
}

// PublicKind is the small set of shapes exposed across the API boundary.
type PublicKind int

const (
	PublicInternal PublicKind = iota
	PublicForbidden
	PublicNotFound
	PublicInvariant
)

func (k PublicKind) String() string {
	switch k {
	case PublicInternal:
		return "internal"
	case PublicForbidden:
		return "forbidden"
	case PublicNotFound:
		return "not_found"
	case PublicInvariant:
		return "invariant"
	default:
		return "internal"
	}
}

// Error is the typed error every package constructs; it carries the
// internal Kind plus enough context to be logged, and knows how to
// summarize itself across the public boundary.
type Error struct {
	Kind    Kind
	Op      string
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Op, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Op, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// Public maps an internal error onto the stable public envelope. Policy
// and Storage kinds are typed (forbidden/not-found); everything else is
// summarized into an opaque internal message, never leaking internals.
func (e *Error) Public() PublicError {
	switch e.Kind {
	case KindPolicy:
		return PublicError{Kind: PublicForbidden, Message: e.Message}
	case KindStorage:
		return PublicError{Kind: PublicNotFound, Message: e.Message}
	case KindWorkflow:
		return PublicError{Kind: PublicInvariant, Message: e.Message}
	default:
		return PublicError{Kind: PublicInternal, Message: e.Op + ": " + e.Message}
	}
}

// New constructs a typed Error.
func New(kind Kind, op, message string, cause error) *Error {
	return &Error{Kind: kind, Op: op, Message: message, Err: cause}
}

// PublicError is the boundary-facing error shape returned to callers of
// the endpoint surface.
type PublicError struct {
	Kind    PublicKind
	Message string
}

func (e PublicError) Error() string {
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// ToPublic converts any error into a PublicError, defaulting to an opaque
// internal message when err isn't one of our typed errors.
func ToPublic(op string, err error) PublicError {
	if err == nil {
		return PublicError{}
	}
	var typed *Error
	if e, ok := err.(*Error); ok {
		typed = e
	}
	if typed != nil {
		return typed.Public()
	}
	return PublicError{Kind: PublicInternal, Message: op + ": " + err.Error()}
}
