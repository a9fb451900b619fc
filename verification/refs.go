package verification

import (
	"crypto/x509"
	"fmt"

	"go.uber.org/zap"
	"golang.org/x/crypto/ocsp"

	"github.com/georgepadayatti/goxades/certvalidator"
	"github.com/georgepadayatti/goxades/properties"
	"github.com/georgepadayatti/goxades/xmlsig"
)

// verifyCompleteCertificateRefs requires a matching, verified reference for
// every CA certificate of the path.
func (r *run) verifyCompleteCertificateRefs(d *properties.CompleteCertificateRefsData) (properties.QualifyingProperty, error) {
	const name = properties.CompleteCertificateRefsName
	chain := r.vc.Certificates()
	used := make([]bool, len(d.CertRefs))
	for _, cert := range chain[1:] {
		i := findCertRef(d.CertRefs, used, cert)
		if i < 0 {
			return nil, newError(KindInvalidProperty, name,
				fmt.Sprintf("no reference for CA certificate %s", cert.Subject), nil)
		}
		if err := r.checkCertDigest(name, d.CertRefs[i], cert); err != nil {
			return nil, err
		}
		used[i] = true
	}
	return &properties.CompleteCertificateRefs{Certificates: chain[1:]}, nil
}

// verifyCompleteRevocationRefs requires a matching reference for every CRL
// of the certification data. A reference is consumed by the first CRL it
// matches.
func (r *run) verifyCompleteRevocationRefs(d *properties.CompleteRevocationRefsData) (properties.QualifyingProperty, error) {
	const name = properties.CompleteRevocationRefsName
	if len(d.OCSPRefs) > 0 {
		return nil, newError(KindUnsupportedFeature, name, "OCSP references", nil)
	}
	crls := r.vc.CRLs()
	if len(crls) == 0 {
		return nil, newError(KindInvalidProperty, name, "certification data has no CRLs to match", nil)
	}

	used := make([]bool, len(d.CRLRefs))
	for _, crl := range crls {
		i, err := r.matchCRLRef(d.CRLRefs, used, crl)
		if err != nil {
			return nil, err
		}
		used[i] = true
		r.logger.Debug("CRL reference matched",
			zap.String("issuer", crl.Issuer.String()),
			zap.Stringer("number", crl.Number),
		)
	}
	return &properties.CompleteRevocationRefs{CRLs: crls}, nil
}

func (r *run) matchCRLRef(refs []properties.CRLRef, used []bool, crl *x509.RevocationList) (int, error) {
	const name = properties.CompleteRevocationRefsName
	candidates := 0
	for i, ref := range refs {
		if used[i] || !crlRefMatches(ref, crl) {
			continue
		}
		candidates++
		got, err := xmlsig.Digest(r.v.digests, ref.DigestAlgorithm, crl.Raw)
		if err != nil {
			return -1, newError(KindUnsupportedFeature, name, "digest algorithm", err)
		}
		if string(got) == string(ref.DigestValue) {
			return i, nil
		}
	}
	issuer := crl.Issuer.String()
	if candidates > 0 {
		return -1, newError(KindDigestMismatch, name, fmt.Sprintf("digest of CRL from %s does not match", issuer), nil)
	}
	return -1, newError(KindInvalidProperty, name,
		fmt.Sprintf("no reference for CRL from %s issued %s", issuer, crl.ThisUpdate.UTC().Format("2006-01-02T15:04:05Z")), nil)
}

func crlRefMatches(ref properties.CRLRef, crl *x509.RevocationList) bool {
	if !ref.IssueTime.Equal(crl.ThisUpdate) {
		return false
	}
	if ref.Number != nil && crl.Number != nil && ref.Number.Cmp(crl.Number) != 0 {
		return false
	}
	return certvalidator.NameMatches(ref.IssuerDN, crl.RawIssuer)
}

// verifyCertificateValues decodes every encapsulated certificate and hands
// them to the validation data registry.
func (r *run) verifyCertificateValues(d *properties.CertificateValuesData) (properties.QualifyingProperty, error) {
	const name = properties.CertificateValuesName
	certs := make([]*x509.Certificate, 0, len(d.Certificates))
	for i, raw := range d.Certificates {
		der, err := xmlsig.DecodeBase64(string(raw))
		if err != nil {
			return nil, newError(KindInvalidProperty, name, fmt.Sprintf("certificate %d is not base64", i), err)
		}
		cert, err := x509.ParseCertificate(der)
		if err != nil {
			return nil, newError(KindInvalidProperty, name, fmt.Sprintf("certificate %d cannot be decoded", i), err)
		}
		certs = append(certs, cert)
	}
	if r.v.registry != nil {
		r.v.registry.AddCertificates(certs)
	}
	return &properties.CertificateValues{Certificates: certs}, nil
}

// verifyRevocationValues decodes every encapsulated CRL and OCSP response.
// CRLs are handed to the validation data registry.
func (r *run) verifyRevocationValues(d *properties.RevocationValuesData) (properties.QualifyingProperty, error) {
	const name = properties.RevocationValuesName
	crls := make([]*x509.RevocationList, 0, len(d.CRLs))
	for i, raw := range d.CRLs {
		der, err := xmlsig.DecodeBase64(string(raw))
		if err != nil {
			return nil, newError(KindInvalidProperty, name, fmt.Sprintf("CRL %d is not base64", i), err)
		}
		crl, err := x509.ParseRevocationList(der)
		if err != nil {
			return nil, newError(KindInvalidProperty, name, fmt.Sprintf("CRL %d cannot be decoded", i), err)
		}
		crls = append(crls, crl)
	}

	responses := make([]*ocsp.Response, 0, len(d.OCSPResponses))
	for i, raw := range d.OCSPResponses {
		der, err := xmlsig.DecodeBase64(string(raw))
		if err != nil {
			return nil, newError(KindInvalidProperty, name, fmt.Sprintf("OCSP response %d is not base64", i), err)
		}
		resp, err := ocsp.ParseResponse(der, nil)
		if err != nil {
			return nil, newError(KindInvalidProperty, name, fmt.Sprintf("OCSP response %d cannot be decoded", i), err)
		}
		responses = append(responses, resp)
	}

	if r.v.registry != nil && len(crls) > 0 {
		r.v.registry.AddCRLs(crls)
	}
	return &properties.RevocationValues{CRLs: crls, OCSPResponses: responses}, nil
}
