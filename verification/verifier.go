// Package verification verifies the XAdES qualifying properties of a
// signature and classifies its form.
//
// A run checks the structure of every property, verifies each property
// against the XAdES rules in document order, classifies the form from the
// verified property names and finally applies whole-signature checks such as
// timestamp coherence. Any failure ends the run with an *Error.
package verification

import (
	"context"
	"crypto/x509"
	"errors"
	"fmt"
	"time"

	"github.com/beevik/etree"
	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"

	"github.com/georgepadayatti/goxades/policy"
	"github.com/georgepadayatti/goxades/properties"
	"github.com/georgepadayatti/goxades/timestamps"
	"github.com/georgepadayatti/goxades/xmlsig"
)

// PropertyInput is one parsed property and, when it came from XML, its
// element.
type PropertyInput struct {
	Data    properties.DataObject
	Element *etree.Element
}

// PropertyInfo pairs a verified property with its source.
type PropertyInfo struct {
	Property properties.QualifyingProperty
	Data     properties.DataObject
	Element  *etree.Element
}

// Input is everything needed to verify one signature.
type Input struct {
	// Signature is required by timestamps and countersignatures.
	Signature *xmlsig.Signature
	// Properties in document order.
	Properties []PropertyInput
	Context    *Context
	// Resolver resolves same-document references for timestamp inputs.
	Resolver xmlsig.ReferenceResolver
}

// Result holds the verified facts of a signature.
type Result struct {
	RunID       string
	Form        Form
	Properties  []PropertyInfo
	DataObjects []*RawDataObjectDesc
	// SigningCertificate is the leaf of the verification context.
	SigningCertificate *x509.Certificate
}

// Find returns the verified properties named name, in document order.
func (r *Result) Find(name string) []PropertyInfo {
	var out []PropertyInfo
	for _, p := range r.Properties {
		if p.Property.Name() == name {
			out = append(out, p)
		}
	}
	return out
}

// QualifyingProperties returns the verified properties.
func (r *Result) QualifyingProperties() []properties.QualifyingProperty {
	out := make([]properties.QualifyingProperty, len(r.Properties))
	for i, p := range r.Properties {
		out[i] = p.Property
	}
	return out
}

// Verifier verifies qualifying properties. It is immutable after New and
// safe for concurrent use.
type Verifier struct {
	logger            *zap.Logger
	metrics           MetricsRecorder
	digests           xmlsig.MessageDigestProvider
	timeStamps        timestamps.TokenVerifier
	policies          policy.DocumentProvider
	counterSignatures CounterSignatureResolver
	registry          ValidationDataRegistry

	propertyVerifiers  map[string]PropertyVerifier
	elementVerifiers   map[string]PropertyVerifier
	structureVerifiers map[string]StructureVerifier
	setCheckers        []PropertySetChecker
	signatureVerifiers []SignatureVerifier

	requireSigningCertificate bool
	clock                     clockwork.Clock
	signingTimeTolerance      time.Duration
	concurrency               int
}

// New creates a Verifier.
func New(opts ...Option) *Verifier {
	v := &Verifier{
		logger:               zap.NewNop(),
		metrics:              NewNoopMetricsRecorder(),
		digests:              xmlsig.DefaultDigestProvider{},
		propertyVerifiers:    make(map[string]PropertyVerifier),
		elementVerifiers:     make(map[string]PropertyVerifier),
		structureVerifiers:   make(map[string]StructureVerifier),
		clock:                clockwork.NewRealClock(),
		signingTimeTolerance: 5 * time.Minute,
		concurrency:          4,
		signatureVerifiers:   []SignatureVerifier{TimeStampCoherenceVerifier{}},
	}
	for _, opt := range opts {
		opt(v)
	}
	if v.requireSigningCertificate {
		v.setCheckers = append([]PropertySetChecker{PropertySetCheckerFunc(requireSigningCertificate)}, v.setCheckers...)
	}
	return v
}

// Verify verifies the qualifying properties of one signature.
func (v *Verifier) Verify(ctx context.Context, in *Input) (*Result, error) {
	start := v.clock.Now()
	runID := uuid.NewString()
	logger := v.logger.With(zap.String("run_id", runID))

	result, err := v.verify(ctx, in, runID, logger)
	elapsed := v.clock.Since(start)
	if err != nil {
		kind := "error"
		var verr *Error
		if errors.As(err, &verr) {
			kind = verr.Kind.String()
			v.metrics.RecordPropertyFailure(verr.Property, kind)
		}
		v.metrics.RecordVerification("", kind, elapsed)
		logger.Debug("verification failed", zap.Error(err))
		return nil, err
	}
	v.metrics.RecordVerification(result.Form.String(), "", elapsed)
	logger.Debug("verification succeeded",
		zap.Stringer("form", result.Form),
		zap.Int("properties", len(result.Properties)),
		zap.Duration("elapsed", elapsed),
	)
	return result, nil
}

func (v *Verifier) verify(ctx context.Context, in *Input, runID string, logger *zap.Logger) (*Result, error) {
	if in == nil || in.Context == nil {
		return nil, newError(KindStructure, "", "verification context is required", nil)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if err := v.verifyStructure(in.Properties); err != nil {
		return nil, err
	}
	logger.Debug("structure verified", zap.Int("properties", len(in.Properties)))

	r := &run{v: v, in: in, vc: in.Context, logger: logger}
	for _, p := range in.Properties {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		qp, err := r.verifyProperty(ctx, p)
		if err != nil {
			return nil, err
		}
		r.verified = append(r.verified, PropertyInfo{Property: qp, Data: p.Data, Element: p.Element})
		logger.Debug("property verified",
			zap.String("property", qp.Name()),
			zap.Stringer("kind", qp.Kind()),
		)
	}

	names := make([]string, len(r.verified))
	for i, p := range r.verified {
		names[i] = p.Property.Name()
	}
	form, err := ClassifyForm(names, v.requireSigningCertificate)
	if err != nil {
		return nil, err
	}
	logger.Debug("form classified", zap.Stringer("form", form))

	result := &Result{
		RunID:              runID,
		Form:               form,
		Properties:         r.verified,
		DataObjects:        in.Context.SignedObjects().Objects(),
		SigningCertificate: in.Context.SigningCertificate(),
	}
	for _, sv := range v.signatureVerifiers {
		if err := sv.VerifySignature(ctx, result); err != nil {
			var verr *Error
			if errors.As(err, &verr) {
				return nil, err
			}
			return nil, newError(KindInvalidProperty, "", "signature verifier rejected the signature", err)
		}
	}
	return result, nil
}

// run is the state of one verification.
type run struct {
	v        *Verifier
	in       *Input
	vc       *Context
	logger   *zap.Logger
	verified []PropertyInfo
}

// verifyProperty dispatches to the verifier for the property. Registered
// verifiers take precedence over the built-in ones.
func (r *run) verifyProperty(ctx context.Context, in PropertyInput) (properties.QualifyingProperty, error) {
	name := in.Data.PropertyName()
	if pv, ok := r.v.propertyVerifiers[name]; ok {
		return r.custom(ctx, name, pv, in)
	}

	switch d := in.Data.(type) {
	case *properties.SigningTimeData:
		return r.verifySigningTime(d)
	case *properties.SigningCertificateData:
		return r.verifySigningCertificate(d)
	case *properties.SignaturePolicyData:
		return r.verifySignaturePolicy(ctx, d)
	case *properties.SignatureProductionPlaceData:
		return r.verifyProductionPlace(d)
	case *properties.SignerRoleData:
		return r.verifySignerRole(d)
	case *properties.DataObjectFormatData:
		return r.verifyDataObjectFormat(d)
	case *properties.CommitmentTypeData:
		return r.verifyCommitmentType(d)
	case *properties.AllDataObjectsTimeStampData:
		return r.verifyAllDataObjectsTimeStamp(ctx, d)
	case *properties.IndividualDataObjectsTimeStampData:
		return r.verifyIndividualDataObjectsTimeStamp(ctx, d)
	case *properties.SignatureTimeStampData:
		return r.verifySignatureTimeStamp(ctx, d)
	case *properties.SigAndRefsTimeStampData:
		return r.verifySigAndRefsTimeStamp(ctx, d, in.Element)
	case *properties.ArchiveTimeStampData:
		return r.verifyArchiveTimeStamp(ctx, d, in.Element)
	case *properties.CompleteCertificateRefsData:
		return r.verifyCompleteCertificateRefs(d)
	case *properties.CompleteRevocationRefsData:
		return r.verifyCompleteRevocationRefs(d)
	case *properties.CertificateValuesData:
		return r.verifyCertificateValues(d)
	case *properties.RevocationValuesData:
		return r.verifyRevocationValues(d)
	case *properties.CounterSignatureData:
		return r.verifyCounterSignature(ctx, d)
	case *properties.GenericElementData:
		pv, ok := r.v.elementVerifiers[d.QualifiedName()]
		if !ok {
			return nil, newError(KindVerifierUnavailable, d.QualifiedName(), "no verifier registered for element", nil)
		}
		return r.custom(ctx, d.QualifiedName(), pv, in)
	case *properties.OtherData:
		return nil, newError(KindVerifierUnavailable, d.Name, "no verifier registered for property", nil)
	default:
		return nil, newError(KindVerifierUnavailable, name, fmt.Sprintf("no verifier for %T", in.Data), nil)
	}
}

func (r *run) custom(ctx context.Context, name string, pv PropertyVerifier, in PropertyInput) (properties.QualifyingProperty, error) {
	qp, err := pv.VerifyProperty(ctx, in, r.vc)
	if err != nil {
		var verr *Error
		if errors.As(err, &verr) {
			return nil, err
		}
		return nil, newError(KindInvalidProperty, name, "rejected by registered verifier", err)
	}
	if qp == nil {
		return nil, newError(KindInvalidProperty, name, "registered verifier returned no property", nil)
	}
	return qp, nil
}
