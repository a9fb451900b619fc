package verification

import (
	"context"
	"crypto/x509"
	"time"

	"github.com/beevik/etree"
	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"

	"github.com/georgepadayatti/goxades/policy"
	"github.com/georgepadayatti/goxades/properties"
	"github.com/georgepadayatti/goxades/timestamps"
	"github.com/georgepadayatti/goxades/xmlsig"
)

// PropertyVerifier checks the XAdES rules of one property and returns the
// verified property.
type PropertyVerifier interface {
	VerifyProperty(ctx context.Context, in PropertyInput, vc *Context) (properties.QualifyingProperty, error)
}

// PropertyVerifierFunc adapts a function to PropertyVerifier.
type PropertyVerifierFunc func(ctx context.Context, in PropertyInput, vc *Context) (properties.QualifyingProperty, error)

// VerifyProperty calls f.
func (f PropertyVerifierFunc) VerifyProperty(ctx context.Context, in PropertyInput, vc *Context) (properties.QualifyingProperty, error) {
	return f(ctx, in, vc)
}

// StructureVerifier checks the mandatory fields of a caller-defined property.
type StructureVerifier interface {
	VerifyStructure(data properties.DataObject) error
}

// StructureVerifierFunc adapts a function to StructureVerifier.
type StructureVerifierFunc func(data properties.DataObject) error

// VerifyStructure calls f.
func (f StructureVerifierFunc) VerifyStructure(data properties.DataObject) error {
	return f(data)
}

// PropertySetChecker runs on the whole property set after the per-property
// structure checks.
type PropertySetChecker interface {
	CheckPropertySet(data []properties.DataObject) error
}

// PropertySetCheckerFunc adapts a function to PropertySetChecker.
type PropertySetCheckerFunc func(data []properties.DataObject) error

// CheckPropertySet calls f.
func (f PropertySetCheckerFunc) CheckPropertySet(data []properties.DataObject) error {
	return f(data)
}

// SignatureVerifier runs after form classification with the verified facts
// of the whole signature.
type SignatureVerifier interface {
	VerifySignature(ctx context.Context, result *Result) error
}

// SignatureVerifierFunc adapts a function to SignatureVerifier.
type SignatureVerifierFunc func(ctx context.Context, result *Result) error

// VerifySignature calls f.
func (f SignatureVerifierFunc) VerifySignature(ctx context.Context, result *Result) error {
	return f(ctx, result)
}

// CounterSignatureResolver turns the ds:Signature of a CounterSignature
// property into verification input.
type CounterSignatureResolver interface {
	ResolveCounterSignature(ctx context.Context, signature *etree.Element) (*Input, error)
}

// ValidationDataRegistry receives certificates and CRLs decoded from
// CertificateValues and RevocationValues.
type ValidationDataRegistry interface {
	AddCertificates(certs []*x509.Certificate)
	AddCRLs(crls []*x509.RevocationList)
}

// Option configures a Verifier.
type Option func(*Verifier)

// WithLogger sets the logger. The default discards everything.
func WithLogger(l *zap.Logger) Option {
	return func(v *Verifier) {
		v.logger = l
	}
}

// WithMetrics sets the metrics recorder.
func WithMetrics(m MetricsRecorder) Option {
	return func(v *Verifier) {
		v.metrics = m
	}
}

// WithDigestProvider replaces the message digest provider.
func WithDigestProvider(p xmlsig.MessageDigestProvider) Option {
	return func(v *Verifier) {
		v.digests = p
	}
}

// WithTimeStampVerifier sets the timestamp token verifier. Without one every
// timestamp property fails with VerifierUnavailable.
func WithTimeStampVerifier(tv timestamps.TokenVerifier) Option {
	return func(v *Verifier) {
		v.timeStamps = tv
	}
}

// WithPolicyProvider sets the provider of signature policy documents.
func WithPolicyProvider(p policy.DocumentProvider) Option {
	return func(v *Verifier) {
		v.policies = p
	}
}

// WithCounterSignatureResolver sets how countersignatures are loaded.
func WithCounterSignatureResolver(r CounterSignatureResolver) Option {
	return func(v *Verifier) {
		v.counterSignatures = r
	}
}

// WithValidationDataRegistry sets the registry that receives decoded
// certificate and revocation values.
func WithValidationDataRegistry(r ValidationDataRegistry) Option {
	return func(v *Verifier) {
		v.registry = r
	}
}

// WithPropertyVerifier registers pv for properties named name. It takes
// precedence over the built-in verifier and is required for OtherData.
func WithPropertyVerifier(name string, pv PropertyVerifier) Option {
	return func(v *Verifier) {
		v.propertyVerifiers[name] = pv
	}
}

// WithElementVerifier registers pv for generic elements with the qualified
// name "{namespace}local".
func WithElementVerifier(qualifiedName string, pv PropertyVerifier) Option {
	return func(v *Verifier) {
		v.elementVerifiers[qualifiedName] = pv
	}
}

// WithStructureVerifier registers sv for properties named name. It runs in
// addition to the built-in structure checks.
func WithStructureVerifier(name string, sv StructureVerifier) Option {
	return func(v *Verifier) {
		v.structureVerifiers[name] = sv
	}
}

// WithPropertySetChecker adds a check over the whole property set.
func WithPropertySetChecker(c PropertySetChecker) Option {
	return func(v *Verifier) {
		v.setCheckers = append(v.setCheckers, c)
	}
}

// WithSignatureVerifier adds a whole-signature check that runs after the
// ones already installed, TimeStampCoherenceVerifier first.
func WithSignatureVerifier(sv SignatureVerifier) Option {
	return func(v *Verifier) {
		v.signatureVerifiers = append(v.signatureVerifiers, sv)
	}
}

// WithSignatureVerifiers replaces the whole-signature checks, including the
// default TimeStampCoherenceVerifier.
func WithSignatureVerifiers(svs ...SignatureVerifier) Option {
	return func(v *Verifier) {
		v.signatureVerifiers = append([]SignatureVerifier(nil), svs...)
	}
}

// RequireSigningCertificate makes the SigningCertificate property mandatory.
func RequireSigningCertificate() Option {
	return func(v *Verifier) {
		v.requireSigningCertificate = true
	}
}

// WithClock sets the clock used for time sanity checks.
func WithClock(c clockwork.Clock) Option {
	return func(v *Verifier) {
		v.clock = c
	}
}

// WithSigningTimeTolerance sets how far in the future of the clock a
// SigningTime may be.
func WithSigningTimeTolerance(d time.Duration) Option {
	return func(v *Verifier) {
		v.signingTimeTolerance = d
	}
}

// WithConcurrency bounds the number of signatures VerifyAll checks at once.
func WithConcurrency(n int) Option {
	return func(v *Verifier) {
		if n > 0 {
			v.concurrency = n
		}
	}
}
