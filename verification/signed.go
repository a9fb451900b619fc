package verification

import (
	"bytes"
	"context"
	"crypto/x509"
	"errors"
	"fmt"

	"github.com/georgepadayatti/goxades/certvalidator"
	"github.com/georgepadayatti/goxades/generated/w3c"
	"github.com/georgepadayatti/goxades/properties"
	"github.com/georgepadayatti/goxades/xmlsig"
)

func (r *run) verifySigningTime(d *properties.SigningTimeData) (properties.QualifyingProperty, error) {
	limit := r.v.clock.Now().Add(r.v.signingTimeTolerance)
	if d.Time.After(limit) {
		return nil, newError(KindInvalidProperty, properties.SigningTimeName,
			fmt.Sprintf("signing time %s is in the future", d.Time.UTC().Format("2006-01-02T15:04:05Z")), nil)
	}
	return &properties.SigningTime{Time: d.Time}, nil
}

// verifySigningCertificate locates the reference to the signing certificate
// by issuer and serial and checks its digest. References to other
// certificates of the path must verify too; certificates of the path without
// a reference are accepted, references outside the path are not.
func (r *run) verifySigningCertificate(d *properties.SigningCertificateData) (properties.QualifyingProperty, error) {
	const name = properties.SigningCertificateName
	chain := r.vc.Certificates()
	leaf := chain[0]

	used := make([]bool, len(d.CertRefs))
	idx := findCertRef(d.CertRefs, used, leaf)
	if idx < 0 {
		return nil, newError(KindInvalidProperty, name, "no reference to the signing certificate", nil)
	}
	ref := d.CertRefs[idx]

	if is := r.vc.IssuerSerial(); is != nil {
		if !sameIssuerSerial(*is, ref) {
			return nil, newError(KindInvalidProperty, name,
				fmt.Sprintf("KeyInfo issuer/serial %s does not match the signing certificate reference", is), nil)
		}
	}
	if err := r.checkCertDigest(name, ref, leaf); err != nil {
		return nil, err
	}
	used[idx] = true
	referenced := []*x509.Certificate{leaf}

	for _, cert := range chain[1:] {
		i := findCertRef(d.CertRefs, used, cert)
		if i < 0 {
			continue
		}
		if err := r.checkCertDigest(name, d.CertRefs[i], cert); err != nil {
			return nil, err
		}
		used[i] = true
		referenced = append(referenced, cert)
	}

	if len(referenced) < len(d.CertRefs) {
		return nil, newError(KindInvalidProperty, name,
			fmt.Sprintf("%d of %d references do not match certificates of the certification path",
				len(d.CertRefs)-len(referenced), len(d.CertRefs)), nil)
	}
	return &properties.SigningCertificate{Certificates: referenced}, nil
}

// findCertRef returns the first unused reference naming cert by issuer and
// serial, or -1.
func findCertRef(refs []properties.CertRef, used []bool, cert *x509.Certificate) int {
	for i, ref := range refs {
		if used[i] {
			continue
		}
		is := certvalidator.IssuerSerial{IssuerDN: ref.IssuerDN, SerialNumber: ref.SerialNumber}
		if is.Matches(cert) {
			return i
		}
	}
	return -1
}

func sameIssuerSerial(is certvalidator.IssuerSerial, ref properties.CertRef) bool {
	if is.SerialNumber == nil || ref.SerialNumber == nil || is.SerialNumber.Cmp(ref.SerialNumber) != 0 {
		return false
	}
	a, err := certvalidator.ParseDN(is.IssuerDN)
	if err != nil {
		return false
	}
	b, err := certvalidator.ParseDN(ref.IssuerDN)
	if err != nil {
		return false
	}
	return a.Equal(b)
}

func (r *run) checkCertDigest(name string, ref properties.CertRef, cert *x509.Certificate) error {
	return r.checkDigest(name, ref.DigestAlgorithm, ref.DigestValue, cert.Raw,
		fmt.Sprintf("certificate %s", cert.Subject))
}

// checkDigest compares want with the digest of data under alg.
func (r *run) checkDigest(name, alg string, want, data []byte, what string) error {
	got, err := xmlsig.Digest(r.v.digests, alg, data)
	if err != nil {
		if errors.Is(err, xmlsig.ErrUnsupportedAlgorithm) {
			return newError(KindUnsupportedFeature, name, "digest algorithm", err)
		}
		return newError(KindInvalidProperty, name, "computing digest", err)
	}
	if !bytes.Equal(got, want) {
		return newError(KindDigestMismatch, name, fmt.Sprintf("digest of %s does not match", what), nil)
	}
	return nil
}

func (r *run) verifySignaturePolicy(ctx context.Context, d *properties.SignaturePolicyData) (properties.QualifyingProperty, error) {
	const name = properties.SignaturePolicyIdentifierName
	if d.Implied {
		return &properties.SignaturePolicy{Implied: true}, nil
	}
	if r.v.policies == nil {
		return nil, refError(KindInvalidProperty, name, "no policy document provider", d.Identifier)
	}
	doc, err := r.v.policies.Document(ctx, d.Identifier)
	if err != nil {
		e := newError(KindInvalidProperty, name, "policy document not available", err)
		e.Ref = d.Identifier
		return nil, e
	}
	if err := r.checkDigest(name, d.DigestAlgorithm, d.DigestValue, doc, "policy document "+d.Identifier); err != nil {
		return nil, err
	}
	return &properties.SignaturePolicy{
		Identifier:   d.Identifier,
		Description:  d.Description,
		LocationURLs: d.LocationURLs,
	}, nil
}

func (r *run) verifyProductionPlace(d *properties.SignatureProductionPlaceData) (properties.QualifyingProperty, error) {
	return &properties.SignatureProductionPlace{
		City:            d.City,
		StateOrProvince: d.StateOrProvince,
		PostalCode:      d.PostalCode,
		CountryName:     d.CountryName,
	}, nil
}

func (r *run) verifySignerRole(d *properties.SignerRoleData) (properties.QualifyingProperty, error) {
	if len(d.CertifiedRoles) > 0 {
		return nil, newError(KindUnsupportedFeature, properties.SignerRoleName, "certified roles (attribute certificates)", nil)
	}
	return &properties.SignerRole{ClaimedRoles: d.ClaimedRoles}, nil
}

// verifyDataObjectFormat attaches the format to the data object it names.
// A data object has at most one format, and a format must agree with the
// MimeType and Encoding of a ds:Object it describes.
func (r *run) verifyDataObjectFormat(d *properties.DataObjectFormatData) (properties.QualifyingProperty, error) {
	const name = properties.DataObjectFormatName
	obj, ok := r.vc.SignedObjects().Lookup(d.ObjectRef)
	if !ok {
		return nil, refError(KindUnresolvedReference, name, "object reference does not name a signed data object", d.ObjectRef)
	}
	if obj.HasProperty(name) {
		return nil, refError(KindDuplicateProperty, name, "data object already has a format", d.ObjectRef)
	}
	if t := obj.Target; t != nil && t.Tag == "Object" && t.NamespaceURI() == w3c.Namespace {
		if mt := t.SelectAttrValue("MimeType", ""); mt != "" && d.MimeType != "" && mt != d.MimeType {
			return nil, refError(KindInvalidProperty, name,
				fmt.Sprintf("mime type %q does not match ds:Object mime type %q", d.MimeType, mt), d.ObjectRef)
		}
		if enc := t.SelectAttrValue("Encoding", ""); enc != "" && d.Encoding != "" && enc != d.Encoding {
			return nil, refError(KindInvalidProperty, name,
				fmt.Sprintf("encoding %q does not match ds:Object encoding %q", d.Encoding, enc), d.ObjectRef)
		}
	}

	p := &properties.DataObjectFormat{
		ObjectRef:         d.ObjectRef,
		Description:       d.Description,
		MimeType:          d.MimeType,
		Encoding:          d.Encoding,
		Identifier:        d.Identifier,
		DocumentationURIs: d.DocumentationURIs,
	}
	obj.attach(p)
	return p, nil
}

// verifyCommitmentType attaches the commitment to every data object it
// applies to. All references are resolved before any is attached.
func (r *run) verifyCommitmentType(d *properties.CommitmentTypeData) (properties.QualifyingProperty, error) {
	const name = properties.CommitmentTypeIndicationName
	var targets []*RawDataObjectDesc
	if d.AllSignedDataObjects {
		targets = r.vc.SignedObjects().Objects()
	} else {
		for _, ref := range d.ObjectRefs {
			obj, ok := r.vc.SignedObjects().Lookup(ref)
			if !ok {
				return nil, refError(KindUnresolvedReference, name, "object reference does not name a signed data object", ref)
			}
			targets = append(targets, obj)
		}
	}

	p := &properties.CommitmentType{
		URI:                  d.URI,
		Description:          d.Description,
		ObjectRefs:           d.ObjectRefs,
		AllSignedDataObjects: d.AllSignedDataObjects,
		Qualifiers:           d.Qualifiers,
	}
	for _, obj := range targets {
		obj.attach(p)
	}
	return p, nil
}
