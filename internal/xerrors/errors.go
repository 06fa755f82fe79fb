// Package xerrors defines the four error kinds of the translation
// subsystem (spec §7), following the teacher's errors.go convention of
// a small enum with a String() method rather than ad-hoc error strings.
package xerrors

import "fmt"

// Kind classifies a translation-subsystem failure.
type Kind int

const (
	// KindOutOfMemory: the pool or a realloc-equivalent failed.
	KindOutOfMemory Kind = iota
	// KindGuestFault: a host signal during translated execution that
	// corresponds to a guest exception.
	KindGuestFault
	// KindUntranslatable: the translator hit an opcode it does not handle.
	KindUntranslatable
	// KindInvalidatedUnderfoot: a lookup found a slot concurrently freed.
	// Only reachable if the invalidation-ordering contract is violated;
	// always fatal.
	KindInvalidatedUnderfoot
)

func (k Kind) String() string {
	switch k {
	case KindOutOfMemory:
		return "out of memory"
	case KindGuestFault:
		return "guest fault"
	case KindUntranslatable:
		return "untranslatable"
	case KindInvalidatedUnderfoot:
		return "invalidated underfoot"
	default:
		return "unknown"
	}
}

// Error wraps a Kind with the context that triggered it.
type Error struct {
	Kind   Kind
	Detail string
}

func (e *Error) Error() string {
	if e.Detail == "" {
		return e.Kind.String()
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Detail)
}

// Fatal reports whether the propagation policy (spec §7) requires the
// context to be torn down before the process aborts.
func (e *Error) Fatal() bool {
	return e.Kind == KindInvalidatedUnderfoot
}

// New constructs an Error of the given kind.
func New(k Kind, format string, args ...any) *Error {
	return &Error{Kind: k, Detail: fmt.Sprintf(format, args...)}
}
