// Package properties defines the XAdES qualifying property model.
//
// Two families live here. DataObject values are the low-level form produced
// by an unmarshaller: they mirror the XML and carry no trust. QualifyingProperty
// values are produced only by the verification engine after every rule for
// the property passed; holding one is the assertion that it verified.
package properties

import (
	"math/big"
	"time"

	"github.com/beevik/etree"
)

// DataObject is the parsed, unverified form of a qualifying property.
//
// The set of implementations is closed. Callers that need their own property
// types use OtherData, which carries an arbitrary value under a name.
type DataObject interface {
	// PropertyName is the XAdES element local name, or the custom name for
	// OtherData.
	PropertyName() string
	dataObject()
}

// CertRef binds a reference to exactly one certificate by issuer and serial
// and asserts its digest.
type CertRef struct {
	IssuerDN        string
	SerialNumber    *big.Int
	DigestAlgorithm string
	DigestValue     []byte
}

// CRLRef binds a reference to exactly one CRL by issuer and issue time.
// Number is optional.
type CRLRef struct {
	IssuerDN        string
	IssueTime       time.Time
	Number          *big.Int
	DigestAlgorithm string
	DigestValue     []byte
}

// OCSPRef references an OCSP response.
type OCSPRef struct {
	ResponderByName string
	ResponderByKey  []byte
	ProducedAt      time.Time
	DigestAlgorithm string
	DigestValue     []byte
}

// SigningTimeData is the claimed signing time.
type SigningTimeData struct {
	Time time.Time
}

// SigningCertificateData lists references to the signing certificate and,
// optionally, other certificates of its path.
type SigningCertificateData struct {
	CertRefs []CertRef
}

// SignaturePolicyData identifies the signature policy. Either Implied is set
// or the identifier and policy digest are given.
type SignaturePolicyData struct {
	Implied         bool
	Identifier      string
	Description     string
	DigestAlgorithm string
	DigestValue     []byte
	LocationURLs    []string
}

// SignatureProductionPlaceData is the claimed place of signing.
type SignatureProductionPlaceData struct {
	City            string
	StateOrProvince string
	PostalCode      string
	CountryName     string
}

// SignerRoleData holds claimed roles as text and certified roles as raw
// attribute certificates.
type SignerRoleData struct {
	ClaimedRoles   []string
	CertifiedRoles [][]byte
}

// DataObjectFormatData describes the format of one signed data object.
type DataObjectFormatData struct {
	ObjectRef         string
	Description       string
	MimeType          string
	Encoding          string
	Identifier        string
	DocumentationURIs []string
}

// CommitmentTypeData indicates the signer's commitment. The commitment
// applies either to all signed data objects or to the listed references.
type CommitmentTypeData struct {
	URI                  string
	Description          string
	ObjectRefs           []string
	AllSignedDataObjects bool
	Qualifiers           []string
}

// BaseTimeStampData is shared by every timestamp property. Tokens hold the
// base64 text of each EncapsulatedTimeStamp exactly as found in the XML.
type BaseTimeStampData struct {
	CanonicalizationAlgorithm string
	Tokens                    [][]byte
}

// TimeStampBase returns the shared timestamp fields.
func (d *BaseTimeStampData) TimeStampBase() *BaseTimeStampData { return d }

// TimeStampDataObject is implemented by every timestamp variant.
type TimeStampDataObject interface {
	DataObject
	TimeStampBase() *BaseTimeStampData
}

type AllDataObjectsTimeStampData struct {
	BaseTimeStampData
}

// IndividualDataObjectsTimeStampData covers the data objects named by
// Includes, in the order given.
type IndividualDataObjectsTimeStampData struct {
	BaseTimeStampData
	Includes []string
}

type SignatureTimeStampData struct {
	BaseTimeStampData
}

type SigAndRefsTimeStampData struct {
	BaseTimeStampData
}

type ArchiveTimeStampData struct {
	BaseTimeStampData
}

// CompleteCertificateRefsData references the CA certificates of the path.
type CompleteCertificateRefsData struct {
	CertRefs []CertRef
}

// CompleteRevocationRefsData references the revocation data of the path.
type CompleteRevocationRefsData struct {
	CRLRefs  []CRLRef
	OCSPRefs []OCSPRef
}

// CertificateValuesData holds base64 encoded certificates.
type CertificateValuesData struct {
	Certificates [][]byte
}

// RevocationValuesData holds base64 encoded CRLs and OCSP responses.
type RevocationValuesData struct {
	CRLs          [][]byte
	OCSPResponses [][]byte
}

// CounterSignatureData wraps the ds:Signature carried by a CounterSignature
// property.
type CounterSignatureData struct {
	Signature *etree.Element
}

// GenericElementData is any qualifying property element without a dedicated
// variant. It is verified by a verifier registered for its qualified name.
type GenericElementData struct {
	Element *etree.Element
}

// QualifiedName returns the element name in "{namespace}local" form.
func (d *GenericElementData) QualifiedName() string {
	if d.Element == nil {
		return ""
	}
	return QualifiedName(d.Element.NamespaceURI(), d.Element.Tag)
}

// OtherData carries a caller-defined property.
type OtherData struct {
	Name  string
	Value any
}

// QualifiedName formats a namespace and local name as "{namespace}local".
func QualifiedName(namespace, local string) string {
	if namespace == "" {
		return local
	}
	return "{" + namespace + "}" + local
}

func (*SigningTimeData) PropertyName() string        { return SigningTimeName }
func (*SigningCertificateData) PropertyName() string { return SigningCertificateName }
func (*SignaturePolicyData) PropertyName() string    { return SignaturePolicyIdentifierName }
func (*SignatureProductionPlaceData) PropertyName() string {
	return SignatureProductionPlaceName
}
func (*SignerRoleData) PropertyName() string              { return SignerRoleName }
func (*DataObjectFormatData) PropertyName() string        { return DataObjectFormatName }
func (*CommitmentTypeData) PropertyName() string          { return CommitmentTypeIndicationName }
func (*AllDataObjectsTimeStampData) PropertyName() string { return AllDataObjectsTimeStampName }
func (*IndividualDataObjectsTimeStampData) PropertyName() string {
	return IndividualDataObjectsTimeStampName
}
func (*SignatureTimeStampData) PropertyName() string      { return SignatureTimeStampName }
func (*SigAndRefsTimeStampData) PropertyName() string     { return SigAndRefsTimeStampName }
func (*ArchiveTimeStampData) PropertyName() string        { return ArchiveTimeStampName }
func (*CompleteCertificateRefsData) PropertyName() string { return CompleteCertificateRefsName }
func (*CompleteRevocationRefsData) PropertyName() string  { return CompleteRevocationRefsName }
func (*CertificateValuesData) PropertyName() string       { return CertificateValuesName }
func (*RevocationValuesData) PropertyName() string        { return RevocationValuesName }
func (*CounterSignatureData) PropertyName() string        { return CounterSignatureName }
func (d *GenericElementData) PropertyName() string        { return d.QualifiedName() }
func (d *OtherData) PropertyName() string                 { return d.Name }

func (*SigningTimeData) dataObject()                    {}
func (*SigningCertificateData) dataObject()             {}
func (*SignaturePolicyData) dataObject()                {}
func (*SignatureProductionPlaceData) dataObject()       {}
func (*SignerRoleData) dataObject()                     {}
func (*DataObjectFormatData) dataObject()               {}
func (*CommitmentTypeData) dataObject()                 {}
func (*AllDataObjectsTimeStampData) dataObject()        {}
func (*IndividualDataObjectsTimeStampData) dataObject() {}
func (*SignatureTimeStampData) dataObject()             {}
func (*SigAndRefsTimeStampData) dataObject()            {}
func (*ArchiveTimeStampData) dataObject()               {}
func (*CompleteCertificateRefsData) dataObject()        {}
func (*CompleteRevocationRefsData) dataObject()         {}
func (*CertificateValuesData) dataObject()              {}
func (*RevocationValuesData) dataObject()               {}
func (*CounterSignatureData) dataObject()               {}
func (*GenericElementData) dataObject()                 {}
func (*OtherData) dataObject()                          {}
