// Package timestamps verifies RFC 3161 timestamp tokens found in XAdES
// timestamp properties.
package timestamps

import (
	"context"
	"crypto/x509"
	"errors"
	"fmt"
	"time"

	"github.com/notaryproject/tspclient-go"
)

// Errors returned by token verification.
var (
	ErrDigestMismatch   = errors.New("timestamp token does not cover the expected data")
	ErrInvalidSignature = errors.New("timestamp token signature is invalid")
	ErrInvalidStructure = errors.New("malformed timestamp token")
)

// TokenVerifier checks that a DER encoded timestamp token covers data and
// returns the time it asserts.
type TokenVerifier interface {
	Verify(ctx context.Context, token, data []byte) (time.Time, error)
}

// VerifierFunc adapts a function to TokenVerifier.
type VerifierFunc func(ctx context.Context, token, data []byte) (time.Time, error)

// Verify calls f.
func (f VerifierFunc) Verify(ctx context.Context, token, data []byte) (time.Time, error) {
	return f(ctx, token, data)
}

// Verifier validates tokens against a set of trusted TSA roots.
type Verifier struct {
	roots         *x509.CertPool
	intermediates *x509.CertPool
	// maxAccuracy rejects tokens whose accuracy is coarser; zero accepts any.
	maxAccuracy time.Duration
}

// NewVerifier creates a Verifier trusting roots. Intermediates help build
// paths to TSA certificates not embedded in tokens.
func NewVerifier(roots, intermediates []*x509.Certificate, maxAccuracy time.Duration) *Verifier {
	v := &Verifier{
		roots:         x509.NewCertPool(),
		intermediates: x509.NewCertPool(),
		maxAccuracy:   maxAccuracy,
	}
	for _, c := range roots {
		v.roots.AddCert(c)
	}
	for _, c := range intermediates {
		v.intermediates.AddCert(c)
	}
	return v
}

// Verify parses the token, verifies its CMS signature against the trusted
// roots at the time it asserts and checks its message imprint against data.
func (v *Verifier) Verify(ctx context.Context, token, data []byte) (time.Time, error) {
	signed, err := tspclient.ParseSignedToken(token)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %v", ErrInvalidStructure, err)
	}
	info, err := signed.Info()
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %v", ErrInvalidStructure, err)
	}

	opts := x509.VerifyOptions{
		Roots:         v.roots,
		Intermediates: v.intermediates,
		CurrentTime:   info.GenTime,
		KeyUsages:     []x509.ExtKeyUsage{x509.ExtKeyUsageTimeStamping},
	}
	if _, err := signed.Verify(ctx, opts); err != nil {
		return time.Time{}, fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}

	ts, err := info.Validate(data)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %v", ErrDigestMismatch, err)
	}
	if v.maxAccuracy > 0 && ts.Accuracy > v.maxAccuracy {
		return time.Time{}, fmt.Errorf("%w: accuracy %v exceeds %v", ErrInvalidStructure, ts.Accuracy, v.maxAccuracy)
	}
	return ts.Value, nil
}
