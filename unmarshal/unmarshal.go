// Package unmarshal turns the XML of a XAdES signature into verification
// input: property data objects for every qualifying property element, and a
// verification context built from the signature's key material.
package unmarshal

import (
	"fmt"
	"math/big"
	"slices"
	"strings"

	"github.com/beevik/etree"
	"github.com/russellhaering/goxmldsig/etreeutils"

	"github.com/georgepadayatti/goxades/generated/etsi"
	"github.com/georgepadayatti/goxades/generated/w3c"
	"github.com/georgepadayatti/goxades/properties"
	"github.com/georgepadayatti/goxades/verification"
	"github.com/georgepadayatti/goxades/xmlsig"
)

type decodeFunc func(ctx etreeutils.NSContext, el *etree.Element) (properties.DataObject, error)

// decoders holds the elements with a dedicated data object, by local name.
var decoders = map[string]decodeFunc{
	etsi.SigningTimeTag:                    decodeSigningTime,
	etsi.SigningCertificateTag:             decodeSigningCertificate,
	etsi.SignaturePolicyIdentifierTag:      decodeSignaturePolicy,
	etsi.SignatureProductionPlaceTag:       decodeProductionPlace,
	etsi.SignerRoleTag:                     decodeSignerRole,
	etsi.DataObjectFormatTag:               decodeDataObjectFormat,
	etsi.CommitmentTypeIndicationTag:       decodeCommitmentType,
	etsi.AllDataObjectsTimeStampTag:        decodeAllDataObjectsTimeStamp,
	etsi.IndividualDataObjectsTimeStampTag: decodeIndividualDataObjectsTimeStamp,
	etsi.SignatureTimeStampTag:             decodeSignatureTimeStamp,
	etsi.SigAndRefsTimeStampTag:            decodeSigAndRefsTimeStamp,
	etsi.ArchiveTimeStampTag:               decodeArchiveTimeStamp,
	etsi.CompleteCertificateRefsTag:        decodeCompleteCertificateRefs,
	etsi.CompleteRevocationRefsTag:         decodeCompleteRevocationRefs,
	etsi.CertificateValuesTag:              decodeCertificateValues,
	etsi.RevocationValuesTag:               decodeRevocationValues,
	etsi.CounterSignatureTag:               decodeCounterSignature,
}

// timeStampTags may appear under the 1.4.1 namespace. Their content model is
// the 1.3.2 XAdESTimeStampType.
var timeStampTags = map[string]bool{
	etsi.AllDataObjectsTimeStampTag:        true,
	etsi.IndividualDataObjectsTimeStampTag: true,
	etsi.SignatureTimeStampTag:             true,
	etsi.SigAndRefsTimeStampTag:            true,
	etsi.ArchiveTimeStampTag:               true,
}

var propertyContainers = map[string][]string{
	etsi.SignedPropertiesTag:   {etsi.SignedSignaturePropertiesTag, etsi.SignedDataObjectPropertiesTag},
	etsi.UnsignedPropertiesTag: {etsi.UnsignedSignaturePropertiesTag, etsi.UnsignedDataObjectPropertiesTag},
}

// Properties returns the qualifying properties of sig in document order.
// Elements without a dedicated data object become GenericElementData. A
// signature without QualifyingProperties has no properties.
func Properties(sig *xmlsig.Signature) ([]verification.PropertyInput, error) {
	if sig == nil || sig.QualifyingProperties == nil {
		return nil, nil
	}

	var out []verification.PropertyInput
	for _, group := range sig.QualifyingProperties.ChildElements() {
		containers, ok := propertyContainers[group.Tag]
		if !ok || !xmlsig.IsXAdESNamespace(group.NamespaceURI()) {
			continue
		}
		for _, container := range group.ChildElements() {
			if !xmlsig.IsXAdESNamespace(container.NamespaceURI()) || !slices.Contains(containers, container.Tag) {
				continue
			}
			for _, el := range container.ChildElements() {
				data, err := Element(el)
				if err != nil {
					return nil, err
				}
				out = append(out, verification.PropertyInput{Data: data, Element: el})
			}
		}
	}
	return out, nil
}

// Element decodes one qualifying property element.
func Element(el *etree.Element) (properties.DataObject, error) {
	ns := el.NamespaceURI()
	decode, ok := decoders[el.Tag]
	switch {
	case !ok:
		return &properties.GenericElementData{Element: el}, nil
	case ns == etsi.XAdESNamespace:
	case ns == etsi.XAdES141Namespace && timeStampTags[el.Tag]:
	default:
		return &properties.GenericElementData{Element: el}, nil
	}

	ctx, err := etreeutils.NSBuildParentContext(el)
	if err != nil {
		return nil, malformed(el.Tag, err)
	}
	return decode(ctx, el)
}

func decodeSigningTime(ctx etreeutils.NSContext, el *etree.Element) (properties.DataObject, error) {
	var st etsi.SigningTime
	if err := etreeutils.NSUnmarshalElement(ctx, el, &st); err != nil {
		return nil, malformed(el.Tag, err)
	}
	return &properties.SigningTimeData{Time: st.Value}, nil
}

func decodeSigningCertificate(ctx etreeutils.NSContext, el *etree.Element) (properties.DataObject, error) {
	var sc etsi.SigningCertificate
	if err := etreeutils.NSUnmarshalElement(ctx, el, &sc); err != nil {
		return nil, malformed(el.Tag, err)
	}
	refs, err := certRefs(el.Tag, sc.Cert)
	if err != nil {
		return nil, err
	}
	return &properties.SigningCertificateData{CertRefs: refs}, nil
}

func decodeSignaturePolicy(ctx etreeutils.NSContext, el *etree.Element) (properties.DataObject, error) {
	var spi etsi.SignaturePolicyIdentifier
	if err := etreeutils.NSUnmarshalElement(ctx, el, &spi); err != nil {
		return nil, malformed(el.Tag, err)
	}
	if spi.SignaturePolicyImplied != nil {
		return &properties.SignaturePolicyData{Implied: true}, nil
	}

	data := &properties.SignaturePolicyData{}
	id := spi.SignaturePolicyId
	if id == nil {
		return data, nil
	}
	if id.SigPolicyId != nil {
		data.Identifier = identifier(id.SigPolicyId)
		data.Description = id.SigPolicyId.Description
	}
	alg, value, err := digestAlgAndValue(el.Tag, id.SigPolicyHash)
	if err != nil {
		return nil, err
	}
	data.DigestAlgorithm = alg
	data.DigestValue = value
	data.LocationURLs = trimAll(id.SPURI)
	return data, nil
}

func decodeProductionPlace(ctx etreeutils.NSContext, el *etree.Element) (properties.DataObject, error) {
	var spp etsi.SignatureProductionPlace
	if err := etreeutils.NSUnmarshalElement(ctx, el, &spp); err != nil {
		return nil, malformed(el.Tag, err)
	}
	return &properties.SignatureProductionPlaceData{
		City:            strings.TrimSpace(spp.City),
		StateOrProvince: strings.TrimSpace(spp.StateOrProvince),
		PostalCode:      strings.TrimSpace(spp.PostalCode),
		CountryName:     strings.TrimSpace(spp.CountryName),
	}, nil
}

func decodeSignerRole(ctx etreeutils.NSContext, el *etree.Element) (properties.DataObject, error) {
	var sr etsi.SignerRole
	if err := etreeutils.NSUnmarshalElement(ctx, el, &sr); err != nil {
		return nil, malformed(el.Tag, err)
	}
	data := &properties.SignerRoleData{}
	for _, role := range sr.ClaimedRoles {
		data.ClaimedRoles = append(data.ClaimedRoles, strings.TrimSpace(role.Content))
	}
	for _, role := range sr.CertifiedRoles {
		data.CertifiedRoles = append(data.CertifiedRoles, []byte(role.Value))
	}
	return data, nil
}

func decodeDataObjectFormat(ctx etreeutils.NSContext, el *etree.Element) (properties.DataObject, error) {
	var dof etsi.DataObjectFormat
	if err := etreeutils.NSUnmarshalElement(ctx, el, &dof); err != nil {
		return nil, malformed(el.Tag, err)
	}
	data := &properties.DataObjectFormatData{
		ObjectRef:   dof.ObjectReference,
		Description: strings.TrimSpace(dof.Description),
		MimeType:    strings.TrimSpace(dof.MimeType),
		Encoding:    strings.TrimSpace(dof.Encoding),
	}
	if oid := dof.ObjectIdentifier; oid != nil {
		data.Identifier = identifier(oid)
		if oid.DocumentationReferences != nil {
			data.DocumentationURIs = trimAll(oid.DocumentationReferences.DocumentationReference)
		}
	}
	return data, nil
}

func decodeCommitmentType(ctx etreeutils.NSContext, el *etree.Element) (properties.DataObject, error) {
	var cti etsi.CommitmentTypeIndication
	if err := etreeutils.NSUnmarshalElement(ctx, el, &cti); err != nil {
		return nil, malformed(el.Tag, err)
	}
	data := &properties.CommitmentTypeData{
		ObjectRefs:           trimAll(cti.ObjectReference),
		AllSignedDataObjects: cti.AllSignedDataObjects != nil,
	}
	if cti.CommitmentTypeId != nil {
		data.URI = identifier(cti.CommitmentTypeId)
		data.Description = cti.CommitmentTypeId.Description
	}
	for _, q := range cti.CommitmentTypeQualifiers {
		data.Qualifiers = append(data.Qualifiers, strings.TrimSpace(q.Content))
	}
	return data, nil
}

func decodeAllDataObjectsTimeStamp(ctx etreeutils.NSContext, el *etree.Element) (properties.DataObject, error) {
	ts, base, err := timeStamp(ctx, el)
	if err != nil {
		return nil, err
	}
	if len(ts.Include) > 0 {
		return nil, malformed(el.Tag, fmt.Errorf("unexpected Include"))
	}
	return &properties.AllDataObjectsTimeStampData{BaseTimeStampData: base}, nil
}

func decodeIndividualDataObjectsTimeStamp(ctx etreeutils.NSContext, el *etree.Element) (properties.DataObject, error) {
	ts, base, err := timeStamp(ctx, el)
	if err != nil {
		return nil, err
	}
	data := &properties.IndividualDataObjectsTimeStampData{BaseTimeStampData: base}
	for _, inc := range ts.Include {
		data.Includes = append(data.Includes, inc.URI)
	}
	return data, nil
}

func decodeSignatureTimeStamp(ctx etreeutils.NSContext, el *etree.Element) (properties.DataObject, error) {
	_, base, err := timeStamp(ctx, el)
	if err != nil {
		return nil, err
	}
	return &properties.SignatureTimeStampData{BaseTimeStampData: base}, nil
}

func decodeSigAndRefsTimeStamp(ctx etreeutils.NSContext, el *etree.Element) (properties.DataObject, error) {
	_, base, err := timeStamp(ctx, el)
	if err != nil {
		return nil, err
	}
	return &properties.SigAndRefsTimeStampData{BaseTimeStampData: base}, nil
}

func decodeArchiveTimeStamp(ctx etreeutils.NSContext, el *etree.Element) (properties.DataObject, error) {
	_, base, err := timeStamp(ctx, el)
	if err != nil {
		return nil, err
	}
	return &properties.ArchiveTimeStampData{BaseTimeStampData: base}, nil
}

// timeStamp decodes the XAdESTimeStampType content shared by all timestamp
// properties. Tokens keep their base64 text.
func timeStamp(ctx etreeutils.NSContext, el *etree.Element) (*etsi.XAdESTimeStampType, properties.BaseTimeStampData, error) {
	var ts etsi.XAdESTimeStampType
	if err := etreeutils.NSUnmarshalElement(ctx, el, &ts); err != nil {
		return nil, properties.BaseTimeStampData{}, malformed(el.Tag, err)
	}
	if len(ts.XMLTimeStamp) > 0 {
		return nil, properties.BaseTimeStampData{}, &verification.Error{
			Kind:     verification.KindUnsupportedFeature,
			Property: el.Tag,
			Rule:     "XML timestamps are not supported",
		}
	}

	base := properties.BaseTimeStampData{CanonicalizationAlgorithm: xmlsig.DefaultCanonicalizationAlgorithm}
	if ts.CanonicalizationMethod != nil && ts.CanonicalizationMethod.Algorithm != "" {
		base.CanonicalizationAlgorithm = ts.CanonicalizationMethod.Algorithm
	}
	for _, tok := range ts.EncapsulatedTimeStamp {
		base.Tokens = append(base.Tokens, []byte(tok.Value))
	}
	return &ts, base, nil
}

func decodeCompleteCertificateRefs(ctx etreeutils.NSContext, el *etree.Element) (properties.DataObject, error) {
	var ccr etsi.CompleteCertificateRefs
	if err := etreeutils.NSUnmarshalElement(ctx, el, &ccr); err != nil {
		return nil, malformed(el.Tag, err)
	}
	data := &properties.CompleteCertificateRefsData{}
	if ccr.CertRefs != nil {
		refs, err := certRefs(el.Tag, ccr.CertRefs.Cert)
		if err != nil {
			return nil, err
		}
		data.CertRefs = refs
	}
	return data, nil
}

func decodeCompleteRevocationRefs(ctx etreeutils.NSContext, el *etree.Element) (properties.DataObject, error) {
	var crr etsi.CompleteRevocationRefs
	if err := etreeutils.NSUnmarshalElement(ctx, el, &crr); err != nil {
		return nil, malformed(el.Tag, err)
	}
	if len(crr.OtherRefs) > 0 {
		return nil, &verification.Error{
			Kind:     verification.KindUnsupportedFeature,
			Property: el.Tag,
			Rule:     "OtherRefs are not supported",
		}
	}

	data := &properties.CompleteRevocationRefsData{}
	for _, ref := range crr.CRLRefs {
		alg, value, err := digestAlgAndValue(el.Tag, ref.DigestAlgAndValue)
		if err != nil {
			return nil, err
		}
		crl := properties.CRLRef{DigestAlgorithm: alg, DigestValue: value}
		if id := ref.CRLIdentifier; id != nil {
			crl.IssuerDN = strings.TrimSpace(id.Issuer)
			if id.IssueTime != nil {
				crl.IssueTime = *id.IssueTime
			}
			if n := strings.TrimSpace(id.Number); n != "" {
				number, ok := new(big.Int).SetString(n, 10)
				if !ok {
					return nil, malformed(el.Tag, fmt.Errorf("invalid CRL number %q", n))
				}
				crl.Number = number
			}
		}
		data.CRLRefs = append(data.CRLRefs, crl)
	}
	for _, ref := range crr.OCSPRefs {
		alg, value, err := digestAlgAndValue(el.Tag, ref.DigestAlgAndValue)
		if err != nil {
			return nil, err
		}
		ocsp := properties.OCSPRef{DigestAlgorithm: alg, DigestValue: value}
		if id := ref.OCSPIdentifier; id != nil {
			if id.ProducedAt != nil {
				ocsp.ProducedAt = *id.ProducedAt
			}
			if r := id.ResponderID; r != nil {
				ocsp.ResponderByName = strings.TrimSpace(r.ByName)
				if r.ByKey != "" {
					key, err := xmlsig.DecodeBase64(r.ByKey)
					if err != nil {
						return nil, malformed(el.Tag, err)
					}
					ocsp.ResponderByKey = key
				}
			}
		}
		data.OCSPRefs = append(data.OCSPRefs, ocsp)
	}
	return data, nil
}

func decodeCertificateValues(ctx etreeutils.NSContext, el *etree.Element) (properties.DataObject, error) {
	var cv etsi.CertificateValues
	if err := etreeutils.NSUnmarshalElement(ctx, el, &cv); err != nil {
		return nil, malformed(el.Tag, err)
	}
	if len(cv.OtherCertificate) > 0 {
		return nil, &verification.Error{
			Kind:     verification.KindUnsupportedFeature,
			Property: el.Tag,
			Rule:     "OtherCertificate is not supported",
		}
	}
	data := &properties.CertificateValuesData{}
	for _, c := range cv.EncapsulatedX509Certificate {
		data.Certificates = append(data.Certificates, []byte(c.Value))
	}
	return data, nil
}

func decodeRevocationValues(ctx etreeutils.NSContext, el *etree.Element) (properties.DataObject, error) {
	var rv etsi.RevocationValues
	if err := etreeutils.NSUnmarshalElement(ctx, el, &rv); err != nil {
		return nil, malformed(el.Tag, err)
	}
	if len(rv.OtherValues) > 0 {
		return nil, &verification.Error{
			Kind:     verification.KindUnsupportedFeature,
			Property: el.Tag,
			Rule:     "OtherValues are not supported",
		}
	}
	data := &properties.RevocationValuesData{}
	for _, crl := range rv.CRLValues {
		data.CRLs = append(data.CRLs, []byte(crl.Value))
	}
	for _, resp := range rv.OCSPValues {
		data.OCSPResponses = append(data.OCSPResponses, []byte(resp.Value))
	}
	return data, nil
}

// decodeCounterSignature keeps the embedded signature as an element; the
// countersignature resolver parses it when the property is verified.
func decodeCounterSignature(_ etreeutils.NSContext, el *etree.Element) (properties.DataObject, error) {
	var sig *etree.Element
	for _, child := range el.ChildElements() {
		if child.Tag != "Signature" || child.NamespaceURI() != w3c.Namespace {
			return nil, malformed(el.Tag, fmt.Errorf("unexpected element %s", child.FullTag()))
		}
		if sig != nil {
			return nil, malformed(el.Tag, fmt.Errorf("more than one ds:Signature"))
		}
		sig = child
	}
	return &properties.CounterSignatureData{Signature: sig}, nil
}

func certRefs(property string, certs []etsi.CertIDType) ([]properties.CertRef, error) {
	refs := make([]properties.CertRef, 0, len(certs))
	for _, c := range certs {
		alg, value, err := digestAlgAndValue(property, c.CertDigest)
		if err != nil {
			return nil, err
		}
		ref := properties.CertRef{DigestAlgorithm: alg, DigestValue: value}
		if c.IssuerSerial != nil {
			ref.IssuerDN = strings.TrimSpace(c.IssuerSerial.X509IssuerName)
			serial, err := c.IssuerSerial.Serial()
			if err != nil {
				return nil, malformed(property, err)
			}
			ref.SerialNumber = serial
		}
		refs = append(refs, ref)
	}
	return refs, nil
}

func digestAlgAndValue(property string, d *etsi.DigestAlgAndValueType) (string, []byte, error) {
	if d == nil {
		return "", nil, nil
	}
	var alg string
	if d.DigestMethod != nil {
		alg = d.DigestMethod.Algorithm
	}
	if d.DigestValue == nil {
		return alg, nil, nil
	}
	value, err := xmlsig.DecodeBase64(d.DigestValue.Value)
	if err != nil {
		return "", nil, malformed(property, fmt.Errorf("digest value: %w", err))
	}
	return alg, value, nil
}

func identifier(oid *etsi.ObjectIdentifierType) string {
	if oid == nil || oid.Identifier == nil {
		return ""
	}
	return strings.TrimSpace(oid.Identifier.Value)
}

func trimAll(values []string) []string {
	var out []string
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}

func malformed(property string, err error) error {
	return &verification.Error{
		Kind:     verification.KindStructure,
		Property: property,
		Rule:     "malformed element",
		Err:      err,
	}
}
