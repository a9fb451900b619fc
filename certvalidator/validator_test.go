package certvalidator

import (
	"context"
	"crypto/x509"
	"errors"
	"math/big"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/georgepadayatti/goxades/internal/testpki"
)

func TestCertSelectorMatches(t *testing.T) {
	_, intermediate, leaf := testpki.Chain(t)

	tests := []struct {
		name string
		sel  CertSelector
		want bool
	}{
		{"empty", CertSelector{}, false},
		{"certificate", CertSelector{Certificate: leaf.Cert}, true},
		{"other certificate", CertSelector{Certificate: intermediate.Cert}, false},
		{"issuer serial", CertSelector{IssuerSerial: &IssuerSerial{IssuerDN: intermediate.Cert.Subject.String(), SerialNumber: big.NewInt(4242)}}, true},
		{"subject", CertSelector{SubjectName: "CN=Test Signer,O=goxades test,C=PT"}, true},
		{"ski", CertSelector{SubjectKeyID: leaf.Cert.SubjectKeyId}, len(leaf.Cert.SubjectKeyId) > 0},
		{"subject and wrong serial", CertSelector{
			SubjectName:  "CN=Test Signer,O=goxades test,C=PT",
			IssuerSerial: &IssuerSerial{IssuerDN: intermediate.Cert.Subject.String(), SerialNumber: big.NewInt(1)},
		}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.sel.Matches(leaf.Cert); got != tt.want {
				t.Errorf("Matches() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestPKIXValidatorBuildsChain(t *testing.T) {
	root, intermediate, leaf := testpki.Chain(t)
	v := NewPKIXValidator([]*x509.Certificate{root.Cert})

	sel := CertSelector{IssuerSerial: &IssuerSerial{IssuerDN: intermediate.Cert.Subject.String(), SerialNumber: leaf.Cert.SerialNumber}}
	data, err := v.Validate(context.Background(), sel, time.Time{}, []*x509.Certificate{intermediate.Cert, leaf.Cert})
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}
	want := []*x509.Certificate{leaf.Cert, intermediate.Cert, root.Cert}
	if len(data.Chain) != len(want) {
		t.Fatalf("chain length = %d, want %d", len(data.Chain), len(want))
	}
	for i := range want {
		if !data.Chain[i].Equal(want[i]) {
			t.Errorf("Chain[%d] = %q, want %q", i, data.Chain[i].Subject, want[i].Subject)
		}
	}
	if data.IssuerSerial != sel.IssuerSerial {
		t.Error("IssuerSerial should be carried from the selector")
	}
	if len(data.CRLs) != 0 {
		t.Errorf("CRLs = %d, want none", len(data.CRLs))
	}
}

func TestPKIXValidatorErrors(t *testing.T) {
	root, intermediate, leaf := testpki.Chain(t)
	other := testpki.NewRoot(t, "Unrelated Root")
	ctx := context.Background()

	t.Run("no trust anchors", func(t *testing.T) {
		_, err := NewPKIXValidator(nil).Validate(ctx, CertSelector{Certificate: leaf.Cert}, time.Time{}, nil)
		if !errors.Is(err, ErrNoTrustAnchor) {
			t.Errorf("error = %v, want ErrNoTrustAnchor", err)
		}
	})

	t.Run("certificate not found", func(t *testing.T) {
		v := NewPKIXValidator([]*x509.Certificate{root.Cert})
		_, err := v.Validate(ctx, CertSelector{SubjectName: "CN=Nobody"}, time.Time{}, []*x509.Certificate{leaf.Cert})
		var pbe *PathBuildingError
		if !errors.As(err, &pbe) || !errors.Is(err, ErrCertificateNotFound) {
			t.Errorf("error = %v, want PathBuildingError wrapping ErrCertificateNotFound", err)
		}
	})

	t.Run("untrusted root", func(t *testing.T) {
		v := NewPKIXValidator([]*x509.Certificate{other.Cert})
		_, err := v.Validate(ctx, CertSelector{Certificate: leaf.Cert}, time.Time{}, []*x509.Certificate{intermediate.Cert})
		if !errors.Is(err, ErrInvalidChain) {
			t.Errorf("error = %v, want ErrInvalidChain", err)
		}
	})

	t.Run("missing intermediate", func(t *testing.T) {
		v := NewPKIXValidator([]*x509.Certificate{root.Cert})
		_, err := v.Validate(ctx, CertSelector{Certificate: leaf.Cert}, time.Time{}, nil)
		if !errors.Is(err, ErrInvalidChain) {
			t.Errorf("error = %v, want ErrInvalidChain", err)
		}
	})

	t.Run("expired at validation time", func(t *testing.T) {
		v := NewPKIXValidator([]*x509.Certificate{root.Cert})
		_, err := v.Validate(ctx, CertSelector{Certificate: leaf.Cert}, time.Now().Add(10*365*24*time.Hour), []*x509.Certificate{intermediate.Cert})
		if !errors.Is(err, ErrInvalidChain) {
			t.Errorf("error = %v, want ErrInvalidChain", err)
		}
	})

	t.Run("cancelled context", func(t *testing.T) {
		cctx, cancel := context.WithCancel(ctx)
		cancel()
		v := NewPKIXValidator([]*x509.Certificate{root.Cert})
		if _, err := v.Validate(cctx, CertSelector{Certificate: leaf.Cert}, time.Time{}, nil); !errors.Is(err, context.Canceled) {
			t.Errorf("error = %v, want context.Canceled", err)
		}
	})
}

func TestPKIXValidatorRegistry(t *testing.T) {
	root, intermediate, leaf := testpki.Chain(t)
	v := NewPKIXValidator([]*x509.Certificate{root.Cert})

	v.AddCertificates([]*x509.Certificate{intermediate.Cert, intermediate.Cert})
	crl := intermediate.CRL(t, 1, time.Now().Add(-time.Hour))
	v.AddCRLs([]*x509.RevocationList{crl, crl})

	data, err := v.Validate(context.Background(), CertSelector{Certificate: leaf.Cert}, time.Time{}, nil)
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if len(data.Chain) != 3 {
		t.Errorf("chain length = %d, want 3", len(data.Chain))
	}
	if len(data.CRLs) != 1 || data.CRLs[0] != crl {
		t.Errorf("CRLs = %v, want the registered CRL once", data.CRLs)
	}
}

func TestPKIXValidatorRevocation(t *testing.T) {
	root, intermediate, leaf := testpki.Chain(t)
	now := time.Now()
	clock := clockwork.NewFakeClockAt(now)

	revokedAt := now.Add(-2 * time.Hour)
	revoking := intermediate.CRL(t, 2, now.Add(-time.Hour), x509.RevocationListEntry{
		SerialNumber:   leaf.Cert.SerialNumber,
		RevocationTime: revokedAt,
		ReasonCode:     int(CRLReasonKeyCompromise),
	})

	t.Run("revoked", func(t *testing.T) {
		v := NewPKIXValidator([]*x509.Certificate{root.Cert}, WithIntermediates(intermediate.Cert), WithCRLs(revoking), WithClock(clock))
		_, err := v.Validate(context.Background(), CertSelector{Certificate: leaf.Cert}, time.Time{}, nil)
		var revoked *RevokedError
		if !errors.As(err, &revoked) {
			t.Fatalf("error = %v, want RevokedError", err)
		}
		if revoked.Reason != CRLReasonKeyCompromise {
			t.Errorf("Reason = %v, want %v", revoked.Reason, CRLReasonKeyCompromise)
		}
	})

	t.Run("validated before revocation", func(t *testing.T) {
		v := NewPKIXValidator([]*x509.Certificate{root.Cert}, WithIntermediates(intermediate.Cert), WithCRLs(revoking))
		// The CRL is not yet issued at this time and therefore ignored.
		if _, err := v.Validate(context.Background(), CertSelector{Certificate: leaf.Cert}, revokedAt.Add(-time.Minute), nil); err != nil {
			t.Errorf("Validate before revocation: %v", err)
		}
	})

	t.Run("CRL from another issuer is ignored", func(t *testing.T) {
		stranger := testpki.NewRoot(t, "Test Issuing CA")
		forged := stranger.CRL(t, 3, now.Add(-time.Hour), x509.RevocationListEntry{
			SerialNumber:   leaf.Cert.SerialNumber,
			RevocationTime: revokedAt,
		})
		v := NewPKIXValidator([]*x509.Certificate{root.Cert}, WithIntermediates(intermediate.Cert), WithCRLs(forged), WithClock(clock))
		data, err := v.Validate(context.Background(), CertSelector{Certificate: leaf.Cert}, time.Time{}, nil)
		if err != nil {
			t.Fatalf("Validate: %v", err)
		}
		if len(data.CRLs) != 0 {
			t.Errorf("CRLs = %d, want the forged CRL ignored", len(data.CRLs))
		}
	})

	t.Run("revocation required", func(t *testing.T) {
		v := NewPKIXValidator([]*x509.Certificate{root.Cert}, WithIntermediates(intermediate.Cert), RequireRevocation(), WithClock(clock))
		_, err := v.Validate(context.Background(), CertSelector{Certificate: leaf.Cert}, time.Time{}, nil)
		var noMatch *CRLNoMatchesError
		if !errors.As(err, &noMatch) {
			t.Errorf("error = %v, want CRLNoMatchesError", err)
		}
	})
}
