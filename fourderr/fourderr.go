// Package fourderr defines the single error hierarchy raised across the
// go-fourd driver. Server-reported errors, driver misuse, malformed
// responses, connect failures, login failures and failed statement sends
// surface as the typed errors below. Socket read failures while parsing a
// response or reading rows, and failed FETCH-RESULT or CLOSE-STATEMENT
// sends, are returned as stdlib errors wrapped with fmt.Errorf and carry
// no Kind; a cancelled context's error is returned as is.
package fourderr

import (
	"errors"
	"fmt"
)

// Kind identifies a position in the error hierarchy. Kinds form a small,
// closed lattice mirroring a conventional database-API exception taxonomy.
type Kind int

const (
	KindWarning Kind = iota
	KindError
	KindInterfaceError
	KindDatabaseError
	KindDataError
	KindOperationalError
	KindIntegrityError
	KindInternalError
	KindProgrammingError
	KindNotSupportedError
)

func (k Kind) String() string {
	switch k {
	case KindWarning:
		return "Warning"
	case KindError:
		return "Error"
	case KindInterfaceError:
		return "InterfaceError"
	case KindDatabaseError:
		return "DatabaseError"
	case KindDataError:
		return "DataError"
	case KindOperationalError:
		return "OperationalError"
	case KindIntegrityError:
		return "IntegrityError"
	case KindInternalError:
		return "InternalError"
	case KindProgrammingError:
		return "ProgrammingError"
	case KindNotSupportedError:
		return "NotSupportedError"
	}
	return "Error"
}

// isDatabaseError reports whether k descends from DatabaseError, the branch
// that carries server-reported Code/ComponentCode/Description.
func (k Kind) isDatabaseError() bool {
	switch k {
	case KindDatabaseError, KindDataError, KindOperationalError, KindIntegrityError,
		KindInternalError, KindProgrammingError, KindNotSupportedError:
		return true
	}
	return false
}

// Base is the common representation for every error in the hierarchy.
type Base struct {
	Kind          Kind
	Code          int
	ComponentCode int
	Description   string
	Wrapped       error
}

func (e *Base) Error() string {
	if !e.Kind.isDatabaseError() || (e.Code == 0 && e.ComponentCode == 0 && e.Description == "") {
		if e.Wrapped != nil {
			return fmt.Sprintf("fourd: %s: %v", e.Kind, e.Wrapped)
		}
		return fmt.Sprintf("fourd: %s", e.Kind)
	}
	return fmt.Sprintf("4D error %d (component %d): %s", e.Code, e.ComponentCode, e.Description)
}

func (e *Base) Unwrap() error { return e.Wrapped }

// Is reports whether target is a *Base with the same Kind, so callers can
// write errors.Is(err, fourderr.New(fourderr.KindProgrammingError, "")).
func (e *Base) Is(target error) bool {
	t, ok := target.(*Base)
	if !ok {
		return false
	}
	return e.Kind == t.Kind
}

// New constructs a plain error of the given kind with a free-text message.
func New(kind Kind, msg string) *Base {
	return &Base{Kind: kind, Description: msg}
}

// Wrap constructs an error of the given kind wrapping an underlying cause.
func Wrap(kind Kind, msg string, cause error) *Base {
	if msg != "" {
		cause = fmt.Errorf("%s: %w", msg, cause)
	}
	return &Base{Kind: kind, Wrapped: cause}
}

// Server constructs a DatabaseError (or the most specific subtype
// dispatchServerKind selects) from a server response's error headers.
func Server(code, componentCode int, description string) *Base {
	return &Base{
		Kind:          dispatchServerKind(code, componentCode, description),
		Code:          code,
		ComponentCode: componentCode,
		Description:   description,
	}
}

// 4D component codes known to indicate a constraint violation (unique key,
// mandatory field, foreign key) rather than a generic database error. 4D
// reports these under the "DB4D" component.
const integrityComponentCode = 3

// dispatchServerKind routes a server-reported error to the most specific
// DatabaseError subtype the taxonomy in spec §7 names. Unmatched codes fall
// back to the plain DatabaseError kind.
func dispatchServerKind(code, componentCode int, description string) Kind {
	if componentCode == integrityComponentCode {
		return KindIntegrityError
	}
	return KindDatabaseError
}

// AsOperational recasts err as a KindOperationalError, preserving
// Code/ComponentCode/Description when err already carries them (e.g. a
// server rejection surfaced during LOGIN must report as OperationalError
// regardless of the component code dispatchServerKind would otherwise
// pick — spec §8 scenario 6). Errors that aren't already a *Base are
// wrapped as a plain OperationalError.
func AsOperational(msg string, err error) *Base {
	var fe *Base
	if errors.As(err, &fe) {
		return &Base{
			Kind:          KindOperationalError,
			Code:          fe.Code,
			ComponentCode: fe.ComponentCode,
			Description:   fe.Description,
			Wrapped:       fe.Wrapped,
		}
	}
	return WrapOperational(msg, err)
}

// Convenience constructors for the common call sites.

func Warning(msg string) *Base          { return New(KindWarning, msg) }
func InterfaceError(msg string) *Base    { return New(KindInterfaceError, msg) }
func DataError(msg string) *Base         { return New(KindDataError, msg) }
func InternalError(msg string) *Base     { return New(KindInternalError, msg) }
func ProgrammingError(msg string) *Base  { return New(KindProgrammingError, msg) }
func NotSupportedError(msg string) *Base { return New(KindNotSupportedError, msg) }
func OperationalError(msg string) *Base  { return New(KindOperationalError, msg) }
func OperationalErrorf(format string, args ...any) *Base {
	return New(KindOperationalError, fmt.Sprintf(format, args...))
}
func WrapOperational(msg string, cause error) *Base {
	return Wrap(KindOperationalError, msg, cause)
}
