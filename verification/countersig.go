package verification

import (
	"context"

	"go.uber.org/zap"

	"github.com/georgepadayatti/goxades/generated/etsi"
	"github.com/georgepadayatti/goxades/properties"
)

// verifyCounterSignature verifies the embedded signature with the same
// verifier. The countersignature must reference the SignatureValue of the
// signature it counter-signs.
func (r *run) verifyCounterSignature(ctx context.Context, d *properties.CounterSignatureData) (properties.QualifyingProperty, error) {
	const name = properties.CounterSignatureName
	if r.v.counterSignatures == nil {
		return nil, newError(KindVerifierUnavailable, name, "no countersignature resolver", nil)
	}
	if r.in.Signature == nil {
		return nil, newError(KindCounterSignature, name, "countersigned signature is not available", nil)
	}

	in, err := r.v.counterSignatures.ResolveCounterSignature(ctx, d.Signature)
	if err != nil {
		return nil, newError(KindCounterSignature, name, "loading countersignature", err)
	}
	if in == nil || in.Signature == nil {
		return nil, newError(KindCounterSignature, name, "countersignature resolver returned no signature", nil)
	}
	if !r.countersigns(in) {
		return nil, newError(KindCounterSignature, name, "countersignature does not reference the SignatureValue", nil)
	}

	result, err := r.v.Verify(ctx, in)
	if err != nil {
		return nil, newError(KindCounterSignature, name, "countersignature is not valid", err)
	}
	r.logger.Debug("countersignature verified",
		zap.String("countersignature_run_id", result.RunID),
		zap.Stringer("form", result.Form),
	)
	return &properties.CounterSignature{
		Form:               result.Form.String(),
		SigningCertificate: result.SigningCertificate,
		Properties:         result.QualifyingProperties(),
	}, nil
}

// countersigns reports whether a CountersignedSignature reference of in
// resolves to the SignatureValue of the signature being verified.
func (r *run) countersigns(in *Input) bool {
	if in.Resolver == nil {
		return false
	}
	for _, ref := range in.Signature.References {
		if ref.Type != etsi.CountersignedSignatureType {
			continue
		}
		target, err := in.Resolver.Resolve(ref.URI)
		if err == nil && target == r.in.Signature.SignatureValue {
			return true
		}
	}
	return false
}
