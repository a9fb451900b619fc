package unmarshal

import (
	"context"
	"crypto/x509"
	"errors"
	"fmt"
	"time"

	"github.com/beevik/etree"
	"github.com/jonboulle/clockwork"
	"github.com/russellhaering/goxmldsig/etreeutils"
	"go.uber.org/zap"

	"github.com/georgepadayatti/goxades/certvalidator"
	"github.com/georgepadayatti/goxades/generated/w3c"
	"github.com/georgepadayatti/goxades/properties"
	"github.com/georgepadayatti/goxades/verification"
	"github.com/georgepadayatti/goxades/xmlsig"
)

var (
	// ErrNoSignature is returned when a document holds no ds:Signature.
	ErrNoSignature = errors.New("no ds:Signature found")
	// ErrNoValidator is returned by a Loader without a certificate validator.
	ErrNoValidator = errors.New("no certificate validator configured")
)

// Loader builds verification input from ds:Signature elements. It also
// resolves countersignatures for the verification engine.
type Loader struct {
	validator certvalidator.Validator
	clock     clockwork.Clock
	logger    *zap.Logger
	core      *xmlsig.CoreVerifier
	detached  map[string][]byte
}

// Option configures a Loader.
type Option func(*Loader)

// WithClock sets the clock that provides the certificate validation time.
func WithClock(c clockwork.Clock) Option {
	return func(l *Loader) {
		l.clock = c
	}
}

// WithLogger sets the logger.
func WithLogger(lg *zap.Logger) Option {
	return func(l *Loader) {
		l.logger = lg
	}
}

// WithCoreVerification runs the XML-DSig core validation over the document
// before its signatures are loaded. Extra candidate signer certificates may
// be given.
func WithCoreVerification(certs ...*x509.Certificate) Option {
	return func(l *Loader) {
		l.core = &xmlsig.CoreVerifier{Certificates: certs}
	}
}

// WithDetachedContent makes data available to references with the given URI.
func WithDetachedContent(uri string, data []byte) Option {
	return func(l *Loader) {
		l.detached[uri] = data
	}
}

// NewLoader returns a loader that validates signing certificates with v.
func NewLoader(v certvalidator.Validator, opts ...Option) *Loader {
	l := &Loader{
		validator: v,
		clock:     clockwork.NewRealClock(),
		logger:    zap.NewNop(),
		detached:  make(map[string][]byte),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

var _ verification.CounterSignatureResolver = (*Loader)(nil)

// LoadDocument returns the input of every top-level signature of doc, in
// document order. Signatures nested in other signatures are
// countersignatures and are loaded when their property is verified.
func (l *Loader) LoadDocument(ctx context.Context, doc *etree.Document) ([]*verification.Input, error) {
	root := doc.Root()
	if root == nil {
		return nil, ErrNoSignature
	}
	sigs := topLevelSignatures(root, nil)
	if len(sigs) == 0 {
		return nil, ErrNoSignature
	}

	if l.core != nil {
		cert, err := l.core.Verify(doc)
		if err != nil {
			return nil, err
		}
		if cert != nil {
			l.logger.Debug("core validation succeeded", zap.String("signer", cert.Subject.String()))
		}
	}

	inputs := make([]*verification.Input, 0, len(sigs))
	for _, el := range sigs {
		in, err := l.Load(ctx, el)
		if err != nil {
			return nil, fmt.Errorf("signature %q: %w", el.SelectAttrValue("Id", ""), err)
		}
		inputs = append(inputs, in)
	}
	return inputs, nil
}

// ResolveCounterSignature loads the ds:Signature of a CounterSignature
// property. References resolve against the whole document, so the
// countersigned SignatureValue is reachable.
func (l *Loader) ResolveCounterSignature(ctx context.Context, signature *etree.Element) (*verification.Input, error) {
	return l.Load(ctx, signature)
}

// Load parses el, decodes its qualifying properties and builds the
// verification context from its key material.
func (l *Loader) Load(ctx context.Context, el *etree.Element) (*verification.Input, error) {
	if l.validator == nil {
		return nil, ErrNoValidator
	}
	sig, err := xmlsig.ParseSignature(el)
	if err != nil {
		return nil, err
	}
	props, err := Properties(sig)
	if err != nil {
		return nil, err
	}

	resolver, err := xmlsig.NewDocumentResolver(documentRoot(el))
	if err != nil {
		return nil, fmt.Errorf("indexing document: %w", err)
	}
	for uri, data := range l.detached {
		resolver.AddDetached(uri, data)
	}

	chain, err := l.certificationChain(ctx, sig, props)
	if err != nil {
		return nil, err
	}
	objects := verification.NewSignedObjectsData(sig.DataObjectReferences(), resolver)
	vc, err := verification.NewContext(chain, objects)
	if err != nil {
		return nil, err
	}

	l.logger.Debug("signature loaded",
		zap.String("signature", sig.ID),
		zap.Int("properties", len(props)),
		zap.Int("data_objects", len(objects.Objects())),
		zap.Int("chain_length", len(chain.Chain)),
	)
	return &verification.Input{
		Signature:  sig,
		Properties: props,
		Context:    vc,
		Resolver:   resolver,
	}, nil
}

// certificationChain validates the signing certificate. It is selected by
// the KeyInfo content; without one, the first SigningCertificate reference
// names it.
func (l *Loader) certificationChain(ctx context.Context, sig *xmlsig.Signature, props []verification.PropertyInput) (verification.CertificationChainData, error) {
	ki, err := parseKeyInfo(sig.KeyInfo)
	if err != nil {
		return verification.CertificationChainData{}, err
	}

	pool := append([]*x509.Certificate(nil), ki.certs...)
	for _, p := range props {
		cv, ok := p.Data.(*properties.CertificateValuesData)
		if !ok {
			continue
		}
		for _, raw := range cv.Certificates {
			cert, err := parseCertificate(raw)
			if err != nil {
				return verification.CertificationChainData{}, &verification.Error{
					Kind:     verification.KindInvalidProperty,
					Property: properties.CertificateValuesName,
					Rule:     "undecodable certificate",
					Err:      err,
				}
			}
			pool = append(pool, cert)
		}
	}
	if reg, ok := l.validator.(verification.ValidationDataRegistry); ok && len(ki.crls) > 0 {
		reg.AddCRLs(ki.crls)
	}

	sel := ki.selector()
	if sel.IsEmpty() {
		sel.IssuerSerial = signingCertificateIssuerSerial(props)
	}
	if sel.IsEmpty() && len(pool) > 0 {
		sel.Certificate = pool[0]
	}

	data, err := l.validator.Validate(ctx, sel, l.validationTime(), pool)
	if err != nil {
		return verification.CertificationChainData{}, fmt.Errorf("validating signing certificate: %w", err)
	}
	return verification.CertificationChainData{
		Chain:        data.Chain,
		CRLs:         data.CRLs,
		IssuerSerial: ki.issuerSerial,
	}, nil
}

func (l *Loader) validationTime() time.Time {
	return l.clock.Now()
}

// keyInfo is the signer identification found in ds:KeyInfo.
type keyInfo struct {
	certs        []*x509.Certificate
	crls         []*x509.RevocationList
	issuerSerial *certvalidator.IssuerSerial
	subjectName  string
	ski          []byte
}

func (ki *keyInfo) selector() certvalidator.CertSelector {
	sel := certvalidator.CertSelector{
		IssuerSerial: ki.issuerSerial,
		SubjectName:  ki.subjectName,
		SubjectKeyID: ki.ski,
	}
	if len(ki.certs) > 0 {
		sel.Certificate = ki.certs[0]
	}
	return sel
}

func parseKeyInfo(el *etree.Element) (*keyInfo, error) {
	ki := &keyInfo{}
	if el == nil {
		return ki, nil
	}
	ctx, err := etreeutils.NSBuildParentContext(el)
	if err != nil {
		return nil, err
	}
	var info w3c.KeyInfo
	if err := etreeutils.NSUnmarshalElement(ctx, el, &info); err != nil {
		return nil, fmt.Errorf("decoding ds:KeyInfo: %w", err)
	}

	for _, data := range info.X509Data {
		for _, text := range data.X509Certificate {
			cert, err := parseCertificate([]byte(text))
			if err != nil {
				return nil, fmt.Errorf("ds:X509Certificate: %w", err)
			}
			ki.certs = append(ki.certs, cert)
		}
		for _, text := range data.X509CRL {
			der, err := xmlsig.DecodeBase64(text)
			if err != nil {
				return nil, fmt.Errorf("ds:X509CRL: %w", err)
			}
			crl, err := x509.ParseRevocationList(der)
			if err != nil {
				return nil, fmt.Errorf("ds:X509CRL: %w", err)
			}
			ki.crls = append(ki.crls, crl)
		}
		if ki.issuerSerial == nil && len(data.X509IssuerSerial) > 0 {
			is := data.X509IssuerSerial[0]
			serial, err := is.Serial()
			if err != nil {
				return nil, fmt.Errorf("ds:X509IssuerSerial: %w", err)
			}
			ki.issuerSerial = &certvalidator.IssuerSerial{IssuerDN: is.X509IssuerName, SerialNumber: serial}
		}
		if ki.subjectName == "" && len(data.X509SubjectName) > 0 {
			ki.subjectName = data.X509SubjectName[0]
		}
		if ki.ski == nil && len(data.X509SKI) > 0 {
			ski, err := xmlsig.DecodeBase64(data.X509SKI[0])
			if err != nil {
				return nil, fmt.Errorf("ds:X509SKI: %w", err)
			}
			ki.ski = ski
		}
	}
	return ki, nil
}

func signingCertificateIssuerSerial(props []verification.PropertyInput) *certvalidator.IssuerSerial {
	for _, p := range props {
		sc, ok := p.Data.(*properties.SigningCertificateData)
		if !ok || len(sc.CertRefs) == 0 {
			continue
		}
		ref := sc.CertRefs[0]
		if ref.SerialNumber == nil {
			return nil
		}
		return &certvalidator.IssuerSerial{IssuerDN: ref.IssuerDN, SerialNumber: ref.SerialNumber}
	}
	return nil
}

func parseCertificate(b64 []byte) (*x509.Certificate, error) {
	der, err := xmlsig.DecodeBase64(string(b64))
	if err != nil {
		return nil, err
	}
	return x509.ParseCertificate(der)
}

func documentRoot(el *etree.Element) *etree.Element {
	for el.Parent() != nil && el.Parent().Tag != "" {
		el = el.Parent()
	}
	return el
}

// topLevelSignatures collects ds:Signature elements that are not inside
// another signature.
func topLevelSignatures(el *etree.Element, out []*etree.Element) []*etree.Element {
	if el.Tag == "Signature" && el.NamespaceURI() == w3c.Namespace {
		return append(out, el)
	}
	for _, child := range el.ChildElements() {
		out = topLevelSignatures(child, out)
	}
	return out
}
