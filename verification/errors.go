package verification

import (
	"fmt"
	"strings"
)

// Kind classifies verification failures.
type Kind int

const (
	// KindStructure: a mandatory field is missing or empty, or an all-or-none
	// field group is incomplete.
	KindStructure Kind = iota + 1
	// KindUnresolvedReference: an object or element reference cannot be found.
	KindUnresolvedReference
	// KindDigestMismatch: a certificate, CRL, policy or timestamp digest does
	// not match.
	KindDigestMismatch
	// KindDuplicateProperty: a property that may appear once appears twice.
	KindDuplicateProperty
	// KindUnsupportedFeature: attribute certificate or attribute revocation
	// references, several tokens in one timestamp, OCSP references.
	KindUnsupportedFeature
	// KindVerifierUnavailable: no verifier is registered for a property.
	KindVerifierUnavailable
	// KindFormInconsistency: the property set matches no XAdES form, or
	// matches a form without its mandatory base.
	KindFormInconsistency
	// KindTimeCoherence: a timestamp ordering rule is violated.
	KindTimeCoherence
	// KindInvalidTimeStamp: a timestamp token signature or structure is
	// rejected.
	KindInvalidTimeStamp
	// KindInvalidProperty: a value-level rule of a property failed.
	KindInvalidProperty
	// KindCannotAccumulate: the digest input of a timestamp cannot be built.
	KindCannotAccumulate
	// KindCounterSignature: a countersignature failed; the cause is wrapped.
	KindCounterSignature
)

// String returns the name of the kind.
func (k Kind) String() string {
	switch k {
	case KindStructure:
		return "StructureError"
	case KindUnresolvedReference:
		return "UnresolvedReference"
	case KindDigestMismatch:
		return "DigestMismatch"
	case KindDuplicateProperty:
		return "DuplicateProperty"
	case KindUnsupportedFeature:
		return "UnsupportedFeature"
	case KindVerifierUnavailable:
		return "VerifierUnavailable"
	case KindFormInconsistency:
		return "FormInconsistency"
	case KindTimeCoherence:
		return "TimeCoherenceViolation"
	case KindInvalidTimeStamp:
		return "InvalidTimeStamp"
	case KindInvalidProperty:
		return "InvalidProperty"
	case KindCannotAccumulate:
		return "CannotAccumulate"
	case KindCounterSignature:
		return "CounterSignature"
	default:
		return fmt.Sprintf("unknown kind (%d)", int(k))
	}
}

// Error is a verification failure. Property names the qualifying property
// (or qualified element name) the failure is attached to, Rule describes the
// violated rule and Ref the offending reference, when there is one.
type Error struct {
	Kind     Kind
	Property string
	Rule     string
	Ref      string
	Err      error
}

// Sentinels matching any Error of the corresponding kind with errors.Is.
var (
	ErrStructure              = &Error{Kind: KindStructure}
	ErrUnresolvedReference    = &Error{Kind: KindUnresolvedReference}
	ErrDigestMismatch         = &Error{Kind: KindDigestMismatch}
	ErrDuplicateProperty      = &Error{Kind: KindDuplicateProperty}
	ErrUnsupportedFeature     = &Error{Kind: KindUnsupportedFeature}
	ErrVerifierUnavailable    = &Error{Kind: KindVerifierUnavailable}
	ErrFormInconsistency      = &Error{Kind: KindFormInconsistency}
	ErrTimeCoherenceViolation = &Error{Kind: KindTimeCoherence}
	ErrInvalidTimeStamp       = &Error{Kind: KindInvalidTimeStamp}
	ErrInvalidProperty        = &Error{Kind: KindInvalidProperty}
	ErrCannotAccumulate       = &Error{Kind: KindCannotAccumulate}
	ErrCounterSignature       = &Error{Kind: KindCounterSignature}
)

func (e *Error) Error() string {
	var sb strings.Builder
	if e.Property != "" {
		sb.WriteString(e.Property)
		sb.WriteString(": ")
	}
	sb.WriteString(e.Kind.String())
	if e.Rule != "" {
		sb.WriteString(": ")
		sb.WriteString(e.Rule)
	}
	if e.Ref != "" {
		fmt.Fprintf(&sb, " (%s)", e.Ref)
	}
	if e.Err != nil {
		sb.WriteString(": ")
		sb.WriteString(e.Err.Error())
	}
	return sb.String()
}

// Is matches sentinels by kind.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind && t.Property == "" && t.Rule == "" && t.Ref == "" && t.Err == nil
}

func (e *Error) Unwrap() error {
	return e.Err
}

func newError(kind Kind, property, rule string, err error) *Error {
	return &Error{Kind: kind, Property: property, Rule: rule, Err: err}
}

func refError(kind Kind, property, rule, ref string) *Error {
	return &Error{Kind: kind, Property: property, Rule: rule, Ref: ref}
}
