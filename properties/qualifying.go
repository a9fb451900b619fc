package properties

import (
	"crypto/x509"
	"fmt"
	"time"

	"golang.org/x/crypto/ocsp"
)

// Kind tells where a qualifying property lives in the XAdES structure.
type Kind int

const (
	SignedSignatureProperty Kind = iota + 1
	SignedDataObjectProperty
	UnsignedSignatureProperty
	UnsignedDataObjectProperty
)

// String returns a human-readable representation of the kind.
func (k Kind) String() string {
	switch k {
	case SignedSignatureProperty:
		return "signed signature property"
	case SignedDataObjectProperty:
		return "signed data object property"
	case UnsignedSignatureProperty:
		return "unsigned signature property"
	case UnsignedDataObjectProperty:
		return "unsigned data object property"
	default:
		return fmt.Sprintf("unknown kind (%d)", int(k))
	}
}

// QualifyingProperty is a verified property.
type QualifyingProperty interface {
	Name() string
	Kind() Kind
}

// TimeStampProperty is implemented by every verified timestamp.
type TimeStampProperty interface {
	QualifyingProperty
	Timestamp() time.Time
}

// SigningTime is the claimed signing time. XAdES gives it no proof value.
type SigningTime struct {
	Time time.Time
}

// SigningCertificate holds the chain certificates the property referenced,
// leaf first.
type SigningCertificate struct {
	Certificates []*x509.Certificate
}

// SignaturePolicy is either implied or an explicit policy whose document
// digest matched.
type SignaturePolicy struct {
	Implied      bool
	Identifier   string
	Description  string
	LocationURLs []string
}

type SignatureProductionPlace struct {
	City            string
	StateOrProvince string
	PostalCode      string
	CountryName     string
}

type SignerRole struct {
	ClaimedRoles []string
}

// DataObjectFormat is attached to the signed data object it describes.
type DataObjectFormat struct {
	ObjectRef         string
	Description       string
	MimeType          string
	Encoding          string
	Identifier        string
	DocumentationURIs []string
}

// CommitmentType is attached to every signed data object it applies to.
type CommitmentType struct {
	URI                  string
	Description          string
	ObjectRefs           []string
	AllSignedDataObjects bool
	Qualifiers           []string
}

type AllDataObjectsTimeStamp struct {
	Time time.Time
}

type IndividualDataObjectsTimeStamp struct {
	Time     time.Time
	Includes []string
}

type SignatureTimeStamp struct {
	Time time.Time
}

type SigAndRefsTimeStamp struct {
	Time time.Time
}

type ArchiveTimeStamp struct {
	Time time.Time
}

// CompleteCertificateRefs holds the CA certificates whose references matched.
type CompleteCertificateRefs struct {
	Certificates []*x509.Certificate
}

// CompleteRevocationRefs holds the CRLs whose references matched.
type CompleteRevocationRefs struct {
	CRLs []*x509.RevocationList
}

type CertificateValues struct {
	Certificates []*x509.Certificate
}

type RevocationValues struct {
	CRLs          []*x509.RevocationList
	OCSPResponses []*ocsp.Response
}

// CounterSignature is a countersignature that verified with the same rules
// as the signature it counter-signs.
type CounterSignature struct {
	Form               string
	SigningCertificate *x509.Certificate
	Properties         []QualifyingProperty
}

// GenericProperty is returned by caller-supplied verifiers for properties
// without a dedicated type.
type GenericProperty struct {
	PropertyName string
	PropertyKind Kind
	Value        any
}

func (*SigningTime) Name() string                    { return SigningTimeName }
func (*SigningCertificate) Name() string             { return SigningCertificateName }
func (*SignaturePolicy) Name() string                { return SignaturePolicyIdentifierName }
func (*SignatureProductionPlace) Name() string       { return SignatureProductionPlaceName }
func (*SignerRole) Name() string                     { return SignerRoleName }
func (*DataObjectFormat) Name() string               { return DataObjectFormatName }
func (*CommitmentType) Name() string                 { return CommitmentTypeIndicationName }
func (*AllDataObjectsTimeStamp) Name() string        { return AllDataObjectsTimeStampName }
func (*IndividualDataObjectsTimeStamp) Name() string { return IndividualDataObjectsTimeStampName }
func (*SignatureTimeStamp) Name() string             { return SignatureTimeStampName }
func (*SigAndRefsTimeStamp) Name() string            { return SigAndRefsTimeStampName }
func (*ArchiveTimeStamp) Name() string               { return ArchiveTimeStampName }
func (*CompleteCertificateRefs) Name() string        { return CompleteCertificateRefsName }
func (*CompleteRevocationRefs) Name() string         { return CompleteRevocationRefsName }
func (*CertificateValues) Name() string              { return CertificateValuesName }
func (*RevocationValues) Name() string               { return RevocationValuesName }
func (*CounterSignature) Name() string               { return CounterSignatureName }
func (p *GenericProperty) Name() string              { return p.PropertyName }

func (*SigningTime) Kind() Kind                    { return SignedSignatureProperty }
func (*SigningCertificate) Kind() Kind             { return SignedSignatureProperty }
func (*SignaturePolicy) Kind() Kind                { return SignedSignatureProperty }
func (*SignatureProductionPlace) Kind() Kind       { return SignedSignatureProperty }
func (*SignerRole) Kind() Kind                     { return SignedSignatureProperty }
func (*DataObjectFormat) Kind() Kind               { return SignedDataObjectProperty }
func (*CommitmentType) Kind() Kind                 { return SignedDataObjectProperty }
func (*AllDataObjectsTimeStamp) Kind() Kind        { return SignedDataObjectProperty }
func (*IndividualDataObjectsTimeStamp) Kind() Kind { return SignedDataObjectProperty }
func (*SignatureTimeStamp) Kind() Kind             { return UnsignedSignatureProperty }
func (*SigAndRefsTimeStamp) Kind() Kind            { return UnsignedSignatureProperty }
func (*ArchiveTimeStamp) Kind() Kind               { return UnsignedSignatureProperty }
func (*CompleteCertificateRefs) Kind() Kind        { return UnsignedSignatureProperty }
func (*CompleteRevocationRefs) Kind() Kind         { return UnsignedSignatureProperty }
func (*CertificateValues) Kind() Kind              { return UnsignedSignatureProperty }
func (*RevocationValues) Kind() Kind               { return UnsignedSignatureProperty }
func (*CounterSignature) Kind() Kind               { return UnsignedSignatureProperty }
func (p *GenericProperty) Kind() Kind              { return p.PropertyKind }

func (p *AllDataObjectsTimeStamp) Timestamp() time.Time        { return p.Time }
func (p *IndividualDataObjectsTimeStamp) Timestamp() time.Time { return p.Time }
func (p *SignatureTimeStamp) Timestamp() time.Time             { return p.Time }
func (p *SigAndRefsTimeStamp) Timestamp() time.Time            { return p.Time }
func (p *ArchiveTimeStamp) Timestamp() time.Time               { return p.Time }
