package xmlsig

import (
	"crypto/x509"
	"errors"
	"fmt"

	"github.com/beevik/etree"
	"github.com/moov-io/signedxml"
)

// ErrCoreValidation is returned when the XML-DSig core validation fails.
var ErrCoreValidation = errors.New("XML signature core validation failed")

// CoreVerifier checks the reference digests and the signature value of the
// enveloped signature of a document. It is the core XML-DSig layer that
// qualifying property verification builds on.
type CoreVerifier struct {
	// Certificates are candidate signer certificates in addition to the
	// ones embedded in KeyInfo.
	Certificates []*x509.Certificate
}

// Verify validates the first enveloped signature of doc and returns the
// certificate that verified it.
func (v *CoreVerifier) Verify(doc *etree.Document) (*x509.Certificate, error) {
	xmlContent, err := doc.WriteToString()
	if err != nil {
		return nil, fmt.Errorf("serializing document: %w", err)
	}

	validator, err := signedxml.NewValidator(xmlContent)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCoreValidation, err)
	}

	certValues := make([]x509.Certificate, 0, len(v.Certificates))
	for _, cert := range v.Certificates {
		if cert != nil {
			certValues = append(certValues, *cert)
		}
	}
	validator.Certificates = certValues

	if _, err := validator.ValidateReferences(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCoreValidation, err)
	}

	signingCert := validator.SigningCert()
	if len(signingCert.Raw) == 0 {
		return nil, nil
	}
	return &signingCert, nil
}
