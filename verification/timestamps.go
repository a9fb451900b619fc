package verification

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/beevik/etree"
	"go.uber.org/zap"

	"github.com/georgepadayatti/goxades/digestinput"
	"github.com/georgepadayatti/goxades/generated/etsi"
	"github.com/georgepadayatti/goxades/properties"
	"github.com/georgepadayatti/goxades/timestamps"
	"github.com/georgepadayatti/goxades/xmlsig"
)

// accumulate fills the digest input of a timestamp property.
type accumulate func(acc *digestinput.Accumulator) error

// verifyTimeStamp builds the digest input of a timestamp with fill and
// checks the token against it.
func (r *run) verifyTimeStamp(ctx context.Context, name string, base *properties.BaseTimeStampData, fill accumulate) (time.Time, error) {
	if len(base.Tokens) != 1 {
		return time.Time{}, newError(KindUnsupportedFeature, name,
			fmt.Sprintf("%d encapsulated timestamp tokens", len(base.Tokens)), nil)
	}
	if r.v.timeStamps == nil {
		return time.Time{}, newError(KindVerifierUnavailable, name, "no timestamp token verifier", nil)
	}
	if r.in.Signature == nil {
		return time.Time{}, newError(KindCannotAccumulate, name, "signature is not available", nil)
	}

	acc, err := digestinput.New(base.CanonicalizationAlgorithm, r.in.Resolver)
	if err != nil {
		return time.Time{}, wrapAs(KindCannotAccumulate, name, "canonicalization algorithm", err)
	}
	if err := fill(acc); err != nil {
		return time.Time{}, wrapAs(KindCannotAccumulate, name, "building timestamp input", err)
	}

	token, err := xmlsig.DecodeBase64(string(base.Tokens[0]))
	if err != nil {
		return time.Time{}, newError(KindInvalidTimeStamp, name, "token is not base64", err)
	}
	at, err := r.v.timeStamps.Verify(ctx, token, acc.Bytes())
	if err != nil {
		if errors.Is(err, timestamps.ErrDigestMismatch) {
			return time.Time{}, newError(KindDigestMismatch, name, "token does not cover the timestamp input", err)
		}
		return time.Time{}, newError(KindInvalidTimeStamp, name, "token verification failed", err)
	}
	r.logger.Debug("timestamp verified",
		zap.String("property", name),
		zap.Time("time", at),
		zap.Int("input_bytes", acc.Len()),
		zap.Stringer("input_digest", acc.Fingerprint()),
	)
	return at, nil
}

func (r *run) verifySignatureTimeStamp(ctx context.Context, d *properties.SignatureTimeStampData) (properties.QualifyingProperty, error) {
	at, err := r.verifyTimeStamp(ctx, properties.SignatureTimeStampName, &d.BaseTimeStampData, func(acc *digestinput.Accumulator) error {
		return acc.AddNode(r.in.Signature.SignatureValue)
	})
	if err != nil {
		return nil, err
	}
	return &properties.SignatureTimeStamp{Time: at}, nil
}

// verifyAllDataObjectsTimeStamp covers every signed data object in
// SignedInfo order.
func (r *run) verifyAllDataObjectsTimeStamp(ctx context.Context, d *properties.AllDataObjectsTimeStampData) (properties.QualifyingProperty, error) {
	objects := r.vc.SignedObjects().Objects()
	at, err := r.verifyTimeStamp(ctx, properties.AllDataObjectsTimeStampName, &d.BaseTimeStampData, func(acc *digestinput.Accumulator) error {
		for _, obj := range objects {
			if err := acc.AddReference(obj.Reference); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	p := &properties.AllDataObjectsTimeStamp{Time: at}
	for _, obj := range objects {
		obj.attach(p)
	}
	return p, nil
}

// verifyIndividualDataObjectsTimeStamp covers the included data objects in
// the order of the includes.
func (r *run) verifyIndividualDataObjectsTimeStamp(ctx context.Context, d *properties.IndividualDataObjectsTimeStampData) (properties.QualifyingProperty, error) {
	const name = properties.IndividualDataObjectsTimeStampName
	objects := make([]*RawDataObjectDesc, 0, len(d.Includes))
	for _, uri := range d.Includes {
		obj, ok := r.vc.SignedObjects().Lookup(uri)
		if !ok {
			return nil, refError(KindUnresolvedReference, name, "include does not name a signed data object", uri)
		}
		objects = append(objects, obj)
	}

	at, err := r.verifyTimeStamp(ctx, name, &d.BaseTimeStampData, func(acc *digestinput.Accumulator) error {
		for _, obj := range objects {
			if err := acc.AddReference(obj.Reference); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	p := &properties.IndividualDataObjectsTimeStamp{Time: at, Includes: d.Includes}
	for _, obj := range objects {
		obj.attach(p)
	}
	return p, nil
}

// verifySigAndRefsTimeStamp covers the SignatureValue and the unsigned
// properties preceding the timestamp element that the X form seals.
func (r *run) verifySigAndRefsTimeStamp(ctx context.Context, d *properties.SigAndRefsTimeStampData, el *etree.Element) (properties.QualifyingProperty, error) {
	const name = properties.SigAndRefsTimeStampName
	at, err := r.verifyTimeStamp(ctx, name, &d.BaseTimeStampData, func(acc *digestinput.Accumulator) error {
		siblings, err := precedingSiblings(name, el)
		if err != nil {
			return err
		}
		if err := acc.AddNode(r.in.Signature.SignatureValue); err != nil {
			return err
		}

		var certRefs, revRefs bool
		for _, s := range siblings {
			switch s.Tag {
			case etsi.SignatureTimeStampTag, etsi.CounterSignatureTag:
			case etsi.CompleteCertificateRefsTag:
				if certRefs {
					return newError(KindDuplicateProperty, name, "more than one CompleteCertificateRefs", nil)
				}
				certRefs = true
			case etsi.CompleteRevocationRefsTag:
				if revRefs {
					return newError(KindDuplicateProperty, name, "more than one CompleteRevocationRefs", nil)
				}
				revRefs = true
			case etsi.AttributeCertificateRefsTag, etsi.AttributeRevocationRefsTag:
				return newError(KindUnsupportedFeature, name, s.Tag+" in timestamp input", nil)
			default:
				continue
			}
			if err := acc.AddNode(s); err != nil {
				return err
			}
		}
		if !certRefs {
			return newError(KindUnresolvedReference, name, "no preceding CompleteCertificateRefs", nil)
		}
		if !revRefs {
			return newError(KindUnresolvedReference, name, "no preceding CompleteRevocationRefs", nil)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &properties.SigAndRefsTimeStamp{Time: at}, nil
}

// verifyArchiveTimeStamp covers the signed data, the signature elements,
// the unsigned properties preceding the timestamp element and the ds:Object
// elements other than the one holding the qualifying properties.
func (r *run) verifyArchiveTimeStamp(ctx context.Context, d *properties.ArchiveTimeStampData, el *etree.Element) (properties.QualifyingProperty, error) {
	const name = properties.ArchiveTimeStampName
	sig := r.in.Signature
	at, err := r.verifyTimeStamp(ctx, name, &d.BaseTimeStampData, func(acc *digestinput.Accumulator) error {
		siblings, err := precedingSiblings(name, el)
		if err != nil {
			return err
		}
		for _, ref := range sig.References {
			if err := acc.AddReference(ref); err != nil {
				return err
			}
		}
		for _, node := range []*etree.Element{sig.SignedInfo, sig.SignatureValue, sig.KeyInfo} {
			if node == nil {
				continue
			}
			if err := acc.AddNode(node); err != nil {
				return err
			}
		}

		seen := make(map[string]bool)
		for _, s := range siblings {
			switch s.Tag {
			case etsi.SignatureTimeStampTag, etsi.CounterSignatureTag,
				etsi.SigAndRefsTimeStampTag, etsi.RefsOnlyTimeStampTag, etsi.ArchiveTimeStampTag:
			case etsi.CompleteCertificateRefsTag, etsi.CompleteRevocationRefsTag,
				etsi.CertificateValuesTag, etsi.RevocationValuesTag:
				if seen[s.Tag] {
					return newError(KindDuplicateProperty, name, "more than one "+s.Tag, nil)
				}
				seen[s.Tag] = true
			case etsi.AttributeCertificateRefsTag, etsi.AttributeRevocationRefsTag,
				etsi.AttrAuthoritiesCertValuesTag, etsi.AttributeRevocationValuesTag:
				return newError(KindUnsupportedFeature, name, s.Tag+" in timestamp input", nil)
			default:
				continue
			}
			if err := acc.AddNode(s); err != nil {
				return err
			}
		}
		for _, tag := range []string{etsi.CertificateValuesTag, etsi.RevocationValuesTag} {
			if !seen[tag] {
				return newError(KindUnresolvedReference, name, "no preceding "+tag, nil)
			}
		}

		qpObject := sig.QualifyingPropertiesObject()
		for _, obj := range sig.Objects {
			if obj == qpObject {
				continue
			}
			if err := acc.AddNode(obj); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &properties.ArchiveTimeStamp{Time: at}, nil
}

// precedingSiblings returns the XAdES elements before el in its
// UnsignedSignatureProperties container, in document order.
func precedingSiblings(name string, el *etree.Element) ([]*etree.Element, error) {
	if el == nil {
		return nil, newError(KindCannotAccumulate, name, "timestamp element is not available", nil)
	}
	parent := el.Parent()
	if parent == nil {
		return nil, newError(KindCannotAccumulate, name, "timestamp element has no container", nil)
	}
	var out []*etree.Element
	for _, child := range parent.ChildElements() {
		if child == el {
			return out, nil
		}
		if xmlsig.IsXAdESNamespace(child.NamespaceURI()) {
			out = append(out, child)
		}
	}
	return nil, newError(KindCannotAccumulate, name, "timestamp element not found in its container", nil)
}
