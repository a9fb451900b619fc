package verification

import (
	"errors"
	"fmt"

	"github.com/georgepadayatti/goxades/properties"
)

// verifyStructure runs the built-in and registered structure checks over
// every property, then the property set checkers.
func (v *Verifier) verifyStructure(in []PropertyInput) error {
	data := make([]properties.DataObject, 0, len(in))
	for _, p := range in {
		if p.Data == nil {
			return newError(KindStructure, "", "nil property data", nil)
		}
		name := p.Data.PropertyName()
		if rule := checkStructure(p.Data); rule != "" {
			return newError(KindStructure, name, rule, nil)
		}
		if sv, ok := v.structureVerifiers[name]; ok {
			if err := sv.VerifyStructure(p.Data); err != nil {
				return wrapAs(KindStructure, name, "rejected by registered structure verifier", err)
			}
		}
		data = append(data, p.Data)
	}

	if err := checkCardinality(data); err != nil {
		return err
	}
	for _, c := range v.setCheckers {
		if err := c.CheckPropertySet(data); err != nil {
			return wrapAs(KindStructure, "", "property set rejected", err)
		}
	}
	return nil
}

// wrapAs keeps *Error values and wraps anything else with kind.
func wrapAs(kind Kind, property, rule string, err error) error {
	var verr *Error
	if errors.As(err, &verr) {
		return err
	}
	return newError(kind, property, rule, err)
}

// singletons may appear at most once per signature.
var singletons = []string{
	properties.SigningTimeName,
	properties.SigningCertificateName,
	properties.SignaturePolicyIdentifierName,
	properties.SignatureProductionPlaceName,
	properties.SignerRoleName,
	properties.CompleteCertificateRefsName,
	properties.CompleteRevocationRefsName,
}

func checkCardinality(data []properties.DataObject) error {
	counts := make(map[string]int)
	for _, d := range data {
		counts[d.PropertyName()]++
	}
	for _, name := range singletons {
		if counts[name] > 1 {
			return newError(KindDuplicateProperty, name, fmt.Sprintf("appears %d times", counts[name]), nil)
		}
	}
	return nil
}

func requireSigningCertificate(data []properties.DataObject) error {
	for _, d := range data {
		if _, ok := d.(*properties.SigningCertificateData); ok {
			return nil
		}
	}
	return newError(KindStructure, properties.SigningCertificateName, "signing certificate property is required", nil)
}

// checkStructure returns the violated rule, or "" when data is well formed.
func checkStructure(data properties.DataObject) string {
	switch d := data.(type) {
	case *properties.SigningTimeData:
		if d.Time.IsZero() {
			return "signing time is missing"
		}
	case *properties.SigningCertificateData:
		return checkCertRefs(d.CertRefs)
	case *properties.SignaturePolicyData:
		explicit := []bool{d.Identifier != "", d.DigestAlgorithm != "", len(d.DigestValue) > 0}
		if d.Implied {
			if explicit[0] || explicit[1] || explicit[2] {
				return "implied policy must not carry an identifier or digest"
			}
			return ""
		}
		if !(explicit[0] && explicit[1] && explicit[2]) {
			return "policy identifier, digest algorithm and digest value must be all present"
		}
	case *properties.SignatureProductionPlaceData:
		if d.City == "" && d.StateOrProvince == "" && d.PostalCode == "" && d.CountryName == "" {
			return "production place has no components"
		}
	case *properties.SignerRoleData:
		if len(d.ClaimedRoles) == 0 && len(d.CertifiedRoles) == 0 {
			return "no claimed or certified roles"
		}
		for _, role := range d.ClaimedRoles {
			if role == "" {
				return "empty claimed role"
			}
		}
		for _, role := range d.CertifiedRoles {
			if len(role) == 0 {
				return "empty certified role"
			}
		}
	case *properties.DataObjectFormatData:
		if d.ObjectRef == "" {
			return "object reference is missing"
		}
		if d.MimeType == "" && d.Description == "" && d.Identifier == "" {
			return "one of mime type, description or identifier is required"
		}
	case *properties.CommitmentTypeData:
		if d.URI == "" {
			return "commitment type identifier is missing"
		}
		if d.AllSignedDataObjects == (len(d.ObjectRefs) > 0) {
			return "exactly one of object references or all signed data objects is required"
		}
		for _, ref := range d.ObjectRefs {
			if ref == "" {
				return "empty object reference"
			}
		}
	case *properties.IndividualDataObjectsTimeStampData:
		if rule := checkTimeStamp(&d.BaseTimeStampData); rule != "" {
			return rule
		}
		if len(d.Includes) == 0 {
			return "no includes"
		}
		for _, inc := range d.Includes {
			if inc == "" {
				return "empty include URI"
			}
		}
	case properties.TimeStampDataObject:
		return checkTimeStamp(d.TimeStampBase())
	case *properties.CompleteCertificateRefsData:
		return checkCertRefs(d.CertRefs)
	case *properties.CompleteRevocationRefsData:
		if len(d.CRLRefs) == 0 && len(d.OCSPRefs) == 0 {
			return "no revocation references"
		}
		for _, ref := range d.CRLRefs {
			if ref.IssuerDN == "" || ref.IssueTime.IsZero() {
				return "CRL reference without issuer or issue time"
			}
			if ref.DigestAlgorithm == "" || len(ref.DigestValue) == 0 {
				return "CRL reference without digest"
			}
		}
		for _, ref := range d.OCSPRefs {
			if ref.ProducedAt.IsZero() || (ref.ResponderByName == "" && len(ref.ResponderByKey) == 0) {
				return "OCSP reference without responder or production time"
			}
		}
	case *properties.CertificateValuesData:
		if len(d.Certificates) == 0 {
			return "no certificates"
		}
		for _, c := range d.Certificates {
			if len(c) == 0 {
				return "empty encapsulated certificate"
			}
		}
	case *properties.RevocationValuesData:
		if len(d.CRLs) == 0 && len(d.OCSPResponses) == 0 {
			return "no revocation values"
		}
		for _, v := range append(append([][]byte{}, d.CRLs...), d.OCSPResponses...) {
			if len(v) == 0 {
				return "empty encapsulated revocation value"
			}
		}
	case *properties.CounterSignatureData:
		if d.Signature == nil {
			return "countersignature element is missing"
		}
	case *properties.GenericElementData:
		if d.Element == nil {
			return "element is missing"
		}
	case *properties.OtherData:
		if d.Name == "" {
			return "property name is missing"
		}
	}
	return ""
}

func checkCertRefs(refs []properties.CertRef) string {
	if len(refs) == 0 {
		return "no certificate references"
	}
	for _, ref := range refs {
		if ref.IssuerDN == "" || ref.SerialNumber == nil {
			return "certificate reference without issuer or serial number"
		}
		if ref.DigestAlgorithm == "" || len(ref.DigestValue) == 0 {
			return "certificate reference without digest"
		}
	}
	return ""
}

func checkTimeStamp(ts *properties.BaseTimeStampData) string {
	if ts.CanonicalizationAlgorithm == "" {
		return "canonicalization algorithm is missing"
	}
	if len(ts.Tokens) == 0 {
		return "no timestamp tokens"
	}
	for _, tok := range ts.Tokens {
		if len(tok) == 0 {
			return "empty timestamp token"
		}
	}
	return ""
}
