package certvalidator

import (
	"bytes"
	"context"
	"crypto/x509"
	"fmt"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"
)

// CertSelector identifies the signing certificate among candidates. Every
// field that is set must match.
type CertSelector struct {
	Certificate  *x509.Certificate
	IssuerSerial *IssuerSerial
	SubjectName  string
	SubjectKeyID []byte
}

// IsEmpty reports whether the selector has no criteria.
func (s CertSelector) IsEmpty() bool {
	return s.Certificate == nil && s.IssuerSerial == nil && s.SubjectName == "" && len(s.SubjectKeyID) == 0
}

// Matches reports whether cert satisfies every criterion of the selector.
func (s CertSelector) Matches(cert *x509.Certificate) bool {
	if cert == nil || s.IsEmpty() {
		return false
	}
	if s.Certificate != nil && !s.Certificate.Equal(cert) {
		return false
	}
	if s.IssuerSerial != nil && !s.IssuerSerial.Matches(cert) {
		return false
	}
	if s.SubjectName != "" && !NameMatches(s.SubjectName, cert.RawSubject) {
		return false
	}
	if len(s.SubjectKeyID) > 0 && !bytes.Equal(s.SubjectKeyID, cert.SubjectKeyId) {
		return false
	}
	return true
}

// ValidationData is the outcome of a successful validation.
type ValidationData struct {
	// Chain is ordered leaf first, trust anchor last.
	Chain []*x509.Certificate
	// CRLs are the revocation lists that covered certificates of the chain.
	CRLs []*x509.RevocationList
	// IssuerSerial is the issuer/serial asserted by the signature's key
	// material, if any.
	IssuerSerial *IssuerSerial
}

// Validator builds and validates the certification path of a signing
// certificate.
type Validator interface {
	Validate(ctx context.Context, sel CertSelector, validationTime time.Time, pool []*x509.Certificate) (*ValidationData, error)
}

// PKIXValidator validates paths offline against configured trust anchors,
// intermediates and CRLs. Certificates and CRLs found in signatures can be
// added while it is in use.
type PKIXValidator struct {
	roots             *x509.CertPool
	rootCount         int
	clock             clockwork.Clock
	logger            *zap.Logger
	requireRevocation bool

	mu            sync.RWMutex
	intermediates []*x509.Certificate
	crls          []*x509.RevocationList
}

// Option configures a PKIXValidator.
type Option func(*PKIXValidator)

// WithIntermediates adds untrusted CA certificates available for path building.
func WithIntermediates(certs ...*x509.Certificate) Option {
	return func(v *PKIXValidator) {
		v.intermediates = append(v.intermediates, certs...)
	}
}

// WithCRLs adds CRLs used for revocation checking.
func WithCRLs(crls ...*x509.RevocationList) Option {
	return func(v *PKIXValidator) {
		v.crls = append(v.crls, crls...)
	}
}

// WithClock sets the clock used when no validation time is given.
func WithClock(c clockwork.Clock) Option {
	return func(v *PKIXValidator) {
		v.clock = c
	}
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(v *PKIXValidator) {
		v.logger = l
	}
}

// RequireRevocation makes validation fail when a non-anchor certificate of
// the path is not covered by any CRL.
func RequireRevocation() Option {
	return func(v *PKIXValidator) {
		v.requireRevocation = true
	}
}

// NewPKIXValidator creates a validator trusting roots.
func NewPKIXValidator(roots []*x509.Certificate, opts ...Option) *PKIXValidator {
	v := &PKIXValidator{
		roots:  x509.NewCertPool(),
		clock:  clockwork.NewRealClock(),
		logger: zap.NewNop(),
	}
	for _, root := range roots {
		if root != nil {
			v.roots.AddCert(root)
			v.rootCount++
		}
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// AddCertificates makes certs available as intermediates for later
// validations.
func (v *PKIXValidator) AddCertificates(certs []*x509.Certificate) {
	v.mu.Lock()
	defer v.mu.Unlock()
	for _, cert := range certs {
		if cert != nil && !containsCert(v.intermediates, cert) {
			v.intermediates = append(v.intermediates, cert)
		}
	}
}

// AddCRLs makes crls available for later revocation checks.
func (v *PKIXValidator) AddCRLs(crls []*x509.RevocationList) {
	v.mu.Lock()
	defer v.mu.Unlock()
	for _, crl := range crls {
		if crl != nil && !containsCRL(v.crls, crl) {
			v.crls = append(v.crls, crl)
		}
	}
}

// Validate locates the certificate selected by sel in pool and the known
// intermediates, builds a path to a trust anchor valid at validationTime and
// checks every non-anchor certificate against the known CRLs. A zero
// validationTime means now.
func (v *PKIXValidator) Validate(ctx context.Context, sel CertSelector, validationTime time.Time, pool []*x509.Certificate) (*ValidationData, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if v.rootCount == 0 {
		return nil, NewPathBuildingError("cannot build path", ErrNoTrustAnchor)
	}
	if validationTime.IsZero() {
		validationTime = v.clock.Now()
	}

	v.mu.RLock()
	intermediates := append([]*x509.Certificate(nil), v.intermediates...)
	crls := append([]*x509.RevocationList(nil), v.crls...)
	v.mu.RUnlock()

	leaf := sel.Certificate
	if leaf == nil {
		leaf = findCertificate(sel, pool, intermediates)
	}
	if leaf == nil {
		return nil, NewPathBuildingError("cannot build path", ErrCertificateNotFound)
	}

	interPool := x509.NewCertPool()
	for _, cert := range pool {
		if cert != nil {
			interPool.AddCert(cert)
		}
	}
	for _, cert := range intermediates {
		interPool.AddCert(cert)
	}

	chains, err := leaf.Verify(x509.VerifyOptions{
		Roots:         v.roots,
		Intermediates: interPool,
		CurrentTime:   validationTime,
		KeyUsages:     []x509.ExtKeyUsage{x509.ExtKeyUsageAny},
	})
	if err != nil {
		return nil, NewPathBuildingError(fmt.Sprintf("no valid path for %q", leaf.Subject.String()), fmt.Errorf("%w: %v", ErrInvalidChain, err))
	}
	chain := chains[0]

	used, err := v.checkRevocation(chain, crls, validationTime)
	if err != nil {
		return nil, err
	}

	v.logger.Debug("certification path validated",
		zap.String("subject", leaf.Subject.String()),
		zap.Int("chain_length", len(chain)),
		zap.Int("crls", len(used)),
		zap.Time("validation_time", validationTime),
	)

	return &ValidationData{
		Chain:        chain,
		CRLs:         used,
		IssuerSerial: sel.IssuerSerial,
	}, nil
}

// checkRevocation returns the CRLs that covered the path.
func (v *PKIXValidator) checkRevocation(chain []*x509.Certificate, crls []*x509.RevocationList, at time.Time) ([]*x509.RevocationList, error) {
	var used []*x509.RevocationList
	for i := 0; i < len(chain)-1; i++ {
		cert, issuer := chain[i], chain[i+1]
		covered := false
		for _, crl := range crls {
			if !bytes.Equal(crl.RawIssuer, issuer.RawSubject) || crl.ThisUpdate.After(at) {
				continue
			}
			if err := crl.CheckSignatureFrom(issuer); err != nil {
				v.logger.Debug("ignoring CRL with bad signature",
					zap.String("issuer", issuer.Subject.String()),
					zap.Error(err),
				)
				continue
			}
			covered = true
			if !containsCRL(used, crl) {
				used = append(used, crl)
			}
			for _, entry := range crl.RevokedCertificateEntries {
				if entry.SerialNumber.Cmp(cert.SerialNumber) == 0 && !entry.RevocationTime.After(at) {
					return nil, &RevokedError{
						Subject:        cert.Subject.String(),
						SerialNumber:   cert.SerialNumber,
						RevocationTime: entry.RevocationTime,
						Reason:         CRLReason(entry.ReasonCode),
					}
				}
			}
		}
		if !covered && v.requireRevocation {
			return nil, NewCRLNoMatchesError(fmt.Sprintf("no CRL covers %q", cert.Subject.String()))
		}
	}
	return used, nil
}

func findCertificate(sel CertSelector, sets ...[]*x509.Certificate) *x509.Certificate {
	for _, set := range sets {
		for _, cert := range set {
			if sel.Matches(cert) {
				return cert
			}
		}
	}
	return nil
}

func containsCert(certs []*x509.Certificate, cert *x509.Certificate) bool {
	for _, c := range certs {
		if c.Equal(cert) {
			return true
		}
	}
	return false
}

func containsCRL(crls []*x509.RevocationList, crl *x509.RevocationList) bool {
	for _, c := range crls {
		if bytes.Equal(c.Raw, crl.Raw) {
			return true
		}
	}
	return false
}
