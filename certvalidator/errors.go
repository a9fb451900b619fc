// Package certvalidator provides offline X.509 certificate path validation.
// This file contains error types for certificate validation.
package certvalidator

import (
	"errors"
	"fmt"
	"math/big"
	"time"
)

// Common errors
var (
	ErrCertificateNotFound = errors.New("signing certificate not found")
	ErrNoTrustAnchor       = errors.New("no trust anchor configured")
	ErrInvalidChain        = errors.New("invalid certificate chain")
)

// CRLReason represents the reason for certificate revocation.
type CRLReason int

const (
	CRLReasonUnspecified          CRLReason = 0
	CRLReasonKeyCompromise        CRLReason = 1
	CRLReasonCACompromise         CRLReason = 2
	CRLReasonAffiliationChanged   CRLReason = 3
	CRLReasonSuperseded           CRLReason = 4
	CRLReasonCessationOfOperation CRLReason = 5
	CRLReasonCertificateHold      CRLReason = 6
	CRLReasonRemoveFromCRL        CRLReason = 8
	CRLReasonPrivilegeWithdrawn   CRLReason = 9
	CRLReasonAACompromise         CRLReason = 10
)

// String returns a human-readable representation of the CRL reason.
func (r CRLReason) String() string {
	switch r {
	case CRLReasonUnspecified:
		return "unspecified"
	case CRLReasonKeyCompromise:
		return "key compromise"
	case CRLReasonCACompromise:
		return "CA compromise"
	case CRLReasonAffiliationChanged:
		return "affiliation changed"
	case CRLReasonSuperseded:
		return "superseded"
	case CRLReasonCessationOfOperation:
		return "cessation of operation"
	case CRLReasonCertificateHold:
		return "certificate hold"
	case CRLReasonRemoveFromCRL:
		return "remove from CRL"
	case CRLReasonPrivilegeWithdrawn:
		return "privilege withdrawn"
	case CRLReasonAACompromise:
		return "AA compromise"
	default:
		return fmt.Sprintf("unknown reason (%d)", r)
	}
}

// PathBuildingError occurs when no valid path from the signing certificate
// to a trust anchor can be built.
type PathBuildingError struct {
	Message string
	Err     error
}

// NewPathBuildingError creates a new PathBuildingError.
func NewPathBuildingError(message string, err error) *PathBuildingError {
	return &PathBuildingError{Message: message, Err: err}
}

func (e *PathBuildingError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *PathBuildingError) Unwrap() error {
	return e.Err
}

// CRLValidationError occurs when the CRLs of a path cannot be used.
type CRLValidationError struct {
	Message string
}

func (e *CRLValidationError) Error() string {
	return e.Message
}

// NewCRLValidationError creates a new CRLValidationError.
func NewCRLValidationError(message string) *CRLValidationError {
	return &CRLValidationError{Message: message}
}

// CRLNoMatchesError occurs when no CRL covers a certificate of the path and
// revocation information is required.
type CRLNoMatchesError struct {
	CRLValidationError
}

// NewCRLNoMatchesError creates a new CRLNoMatchesError.
func NewCRLNoMatchesError(message string) *CRLNoMatchesError {
	return &CRLNoMatchesError{CRLValidationError: CRLValidationError{Message: message}}
}

// RevokedError reports a certificate of the path that a CRL lists as revoked
// before the validation time.
type RevokedError struct {
	Subject        string
	SerialNumber   *big.Int
	RevocationTime time.Time
	Reason         CRLReason
}

func (e *RevokedError) Error() string {
	return fmt.Sprintf("certificate %q (serial %s) revoked at %s: %s",
		e.Subject, e.SerialNumber, e.RevocationTime.UTC().Format(time.RFC3339), e.Reason)
}
