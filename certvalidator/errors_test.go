package certvalidator

import (
	"errors"
	"math/big"
	"strings"
	"testing"
	"time"
)

func TestCRLReasonString(t *testing.T) {
	tests := []struct {
		reason   CRLReason
		expected string
	}{
		{CRLReasonUnspecified, "unspecified"},
		{CRLReasonKeyCompromise, "key compromise"},
		{CRLReasonCACompromise, "CA compromise"},
		{CRLReasonAffiliationChanged, "affiliation changed"},
		{CRLReasonSuperseded, "superseded"},
		{CRLReasonCessationOfOperation, "cessation of operation"},
		{CRLReasonCertificateHold, "certificate hold"},
		{CRLReasonRemoveFromCRL, "remove from CRL"},
		{CRLReasonPrivilegeWithdrawn, "privilege withdrawn"},
		{CRLReasonAACompromise, "AA compromise"},
		{CRLReason(99), "unknown reason (99)"},
	}

	for _, tt := range tests {
		t.Run(tt.expected, func(t *testing.T) {
			if got := tt.reason.String(); got != tt.expected {
				t.Errorf("CRLReason.String() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestPathBuildingError(t *testing.T) {
	err := NewPathBuildingError("could not build path", ErrNoTrustAnchor)
	if err.Error() != "could not build path: no trust anchor configured" {
		t.Errorf("PathBuildingError.Error() = %v", err.Error())
	}
	if !errors.Is(err, ErrNoTrustAnchor) {
		t.Error("PathBuildingError should unwrap to its cause")
	}

	bare := NewPathBuildingError("no path", nil)
	if bare.Error() != "no path" {
		t.Errorf("PathBuildingError.Error() = %v, want %v", bare.Error(), "no path")
	}
}

func TestCRLNoMatchesError(t *testing.T) {
	err := NewCRLNoMatchesError("no CRL")
	if err.Error() != "no CRL" {
		t.Errorf("CRLNoMatchesError.Error() = %v, want %v", err.Error(), "no CRL")
	}
	var base *CRLNoMatchesError
	if !errors.As(error(err), &base) {
		t.Error("errors.As should find CRLNoMatchesError")
	}
}

func TestRevokedError(t *testing.T) {
	err := &RevokedError{
		Subject:        "CN=Test",
		SerialNumber:   big.NewInt(7),
		RevocationTime: time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC),
		Reason:         CRLReasonKeyCompromise,
	}
	msg := err.Error()
	for _, want := range []string{"CN=Test", "serial 7", "2024-01-02T03:04:05Z", "key compromise"} {
		if !strings.Contains(msg, want) {
			t.Errorf("RevokedError.Error() = %q, missing %q", msg, want)
		}
	}
}
