// Package testpki generates throwaway certificate hierarchies and CRLs for
// tests.
package testpki

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/x509"
	"crypto/x509/pkix"
	"math/big"
	"testing"
	"time"
)

// Authority is a certificate with its private key.
type Authority struct {
	Cert *x509.Certificate
	Key  *ecdsa.PrivateKey
}

// Name returns the subject used for cn.
func Name(cn string) pkix.Name {
	return pkix.Name{
		CommonName:   cn,
		Organization: []string{"goxades test"},
		Country:      []string{"PT"},
	}
}

// NewRoot creates a self-signed CA.
func NewRoot(t testing.TB, cn string) *Authority {
	t.Helper()
	key := newKey(t)
	template := &x509.Certificate{
		SerialNumber:          big.NewInt(1),
		Subject:               Name(cn),
		NotBefore:             time.Now().Add(-24 * time.Hour),
		NotAfter:              time.Now().Add(365 * 24 * time.Hour),
		IsCA:                  true,
		BasicConstraintsValid: true,
		KeyUsage:              x509.KeyUsageCertSign | x509.KeyUsageCRLSign,
	}
	return &Authority{Cert: create(t, template, template, key, key), Key: key}
}

// Issue creates a certificate signed by a. CA certificates can issue further
// certificates and CRLs.
func (a *Authority) Issue(t testing.TB, cn string, serial int64, isCA bool) *Authority {
	t.Helper()
	key := newKey(t)
	template := &x509.Certificate{
		SerialNumber:          big.NewInt(serial),
		Subject:               Name(cn),
		NotBefore:             time.Now().Add(-12 * time.Hour),
		NotAfter:              time.Now().Add(180 * 24 * time.Hour),
		BasicConstraintsValid: true,
		IsCA:                  isCA,
		KeyUsage:              x509.KeyUsageDigitalSignature | x509.KeyUsageContentCommitment,
	}
	if isCA {
		template.KeyUsage = x509.KeyUsageCertSign | x509.KeyUsageCRLSign
	}
	return &Authority{Cert: create(t, template, a.Cert, key, a.Key), Key: key}
}

// CRL creates a CRL issued by a.
func (a *Authority) CRL(t testing.TB, number int64, thisUpdate time.Time, revoked ...x509.RevocationListEntry) *x509.RevocationList {
	t.Helper()
	der, err := x509.CreateRevocationList(rand.Reader, &x509.RevocationList{
		Number:                    big.NewInt(number),
		ThisUpdate:                thisUpdate,
		NextUpdate:                thisUpdate.Add(7 * 24 * time.Hour),
		RevokedCertificateEntries: revoked,
	}, a.Cert, a.Key)
	if err != nil {
		t.Fatalf("CreateRevocationList: %v", err)
	}
	crl, err := x509.ParseRevocationList(der)
	if err != nil {
		t.Fatalf("ParseRevocationList: %v", err)
	}
	return crl
}

// Chain returns a three-certificate path root <- intermediate <- leaf.
func Chain(t testing.TB) (root, intermediate, leaf *Authority) {
	t.Helper()
	root = NewRoot(t, "Test Root CA")
	intermediate = root.Issue(t, "Test Issuing CA", 100, true)
	leaf = intermediate.Issue(t, "Test Signer", 4242, false)
	return root, intermediate, leaf
}

func newKey(t testing.TB) *ecdsa.PrivateKey {
	t.Helper()
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		t.Fatalf("GenerateKey: %v", err)
	}
	return key
}

func create(t testing.TB, template, parent *x509.Certificate, key, signer *ecdsa.PrivateKey) *x509.Certificate {
	t.Helper()
	der, err := x509.CreateCertificate(rand.Reader, template, parent, &key.PublicKey, signer)
	if err != nil {
		t.Fatalf("CreateCertificate: %v", err)
	}
	cert, err := x509.ParseCertificate(der)
	if err != nil {
		t.Fatalf("ParseCertificate: %v", err)
	}
	return cert
}
