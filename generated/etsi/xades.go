// Package etsi provides ETSI XML structures for electronic signatures.
//
// Implements the XAdES (XML Advanced Electronic Signatures) property
// elements defined in ETSI TS 101 903 V1.3.2 that a verifier decodes one at a
// time. Container elements (SignedProperties, UnsignedSignatureProperties,
// ...) are walked with etree instead, since their child order matters.
package etsi

import (
	"encoding/xml"
	"time"

	"github.com/georgepadayatti/goxades/generated/w3c"
)

// XAdES namespaces
const (
	XAdESNamespace    = "http://uri.etsi.org/01903/v1.3.2#"
	XAdES141Namespace = "http://uri.etsi.org/01903/v1.4.1#"
)

// Reference types used in ds:Reference/@Type.
const (
	SignedPropertiesType       = "http://uri.etsi.org/01903#SignedProperties"
	CountersignedSignatureType = "http://uri.etsi.org/01903#CountersignedSignature"
)

// QualifierType represents the OID qualifier type.
type QualifierType string

const (
	QualifierOIDAsURI QualifierType = "OIDAsURI"
	QualifierOIDAsURN QualifierType = "OIDAsURN"
)

// AnyType contains wildcard content.
type AnyType struct {
	Content string `xml:",innerxml"`
}

// DigestAlgAndValueType contains a digest algorithm and value.
type DigestAlgAndValueType struct {
	DigestMethod *w3c.DigestMethod `xml:"http://www.w3.org/2000/09/xmldsig# DigestMethod"`
	DigestValue  *w3c.DigestValue  `xml:"http://www.w3.org/2000/09/xmldsig# DigestValue"`
}

// EncapsulatedPKIDataType contains encapsulated PKI data.
type EncapsulatedPKIDataType struct {
	Value    string `xml:",chardata"`
	ID       string `xml:"Id,attr,omitempty"`
	Encoding string `xml:"Encoding,attr,omitempty"`
}

// IncludeType specifies an include reference.
type IncludeType struct {
	URI            string `xml:"URI,attr"`
	ReferencedData *bool  `xml:"referencedData,attr,omitempty"`
}

// IdentifierType contains an identifier with optional qualifier.
type IdentifierType struct {
	Value     string        `xml:",chardata"`
	Qualifier QualifierType `xml:"Qualifier,attr,omitempty"`
}

// DocumentationReferencesType contains documentation references.
type DocumentationReferencesType struct {
	DocumentationReference []string `xml:"http://uri.etsi.org/01903/v1.3.2# DocumentationReference"`
}

// ObjectIdentifierType contains an object identifier.
type ObjectIdentifierType struct {
	Identifier              *IdentifierType              `xml:"http://uri.etsi.org/01903/v1.3.2# Identifier"`
	Description             string                       `xml:"http://uri.etsi.org/01903/v1.3.2# Description,omitempty"`
	DocumentationReferences *DocumentationReferencesType `xml:"http://uri.etsi.org/01903/v1.3.2# DocumentationReferences,omitempty"`
}

// SigningTime contains the signing time.
type SigningTime struct {
	XMLName xml.Name  `xml:"http://uri.etsi.org/01903/v1.3.2# SigningTime"`
	Value   time.Time `xml:",chardata"`
}

// CertIDType identifies a certificate.
type CertIDType struct {
	CertDigest   *DigestAlgAndValueType `xml:"http://uri.etsi.org/01903/v1.3.2# CertDigest"`
	IssuerSerial *w3c.X509IssuerSerial  `xml:"http://uri.etsi.org/01903/v1.3.2# IssuerSerial"`
	URI          string                 `xml:"URI,attr,omitempty"`
}

// CertIDListType contains a list of certificate IDs.
type CertIDListType struct {
	Cert []CertIDType `xml:"http://uri.etsi.org/01903/v1.3.2# Cert"`
}

// SigningCertificate is the element form of CertIDListType.
type SigningCertificate struct {
	XMLName xml.Name `xml:"http://uri.etsi.org/01903/v1.3.2# SigningCertificate"`
	CertIDListType
}

// SignaturePolicyIdType identifies a signature policy.
type SignaturePolicyIdType struct {
	SigPolicyId   *ObjectIdentifierType  `xml:"http://uri.etsi.org/01903/v1.3.2# SigPolicyId"`
	SigPolicyHash *DigestAlgAndValueType `xml:"http://uri.etsi.org/01903/v1.3.2# SigPolicyHash"`
	// SPURI qualifiers, in document order.
	SPURI []string `xml:"http://uri.etsi.org/01903/v1.3.2# SigPolicyQualifiers>SigPolicyQualifier>SPURI"`
}

// SignaturePolicyIdentifier is the element form.
type SignaturePolicyIdentifier struct {
	XMLName                xml.Name               `xml:"http://uri.etsi.org/01903/v1.3.2# SignaturePolicyIdentifier"`
	SignaturePolicyId      *SignaturePolicyIdType `xml:"http://uri.etsi.org/01903/v1.3.2# SignaturePolicyId,omitempty"`
	SignaturePolicyImplied *struct{}              `xml:"http://uri.etsi.org/01903/v1.3.2# SignaturePolicyImplied,omitempty"`
}

// SignatureProductionPlace identifies where a signature was produced.
type SignatureProductionPlace struct {
	XMLName         xml.Name `xml:"http://uri.etsi.org/01903/v1.3.2# SignatureProductionPlace"`
	City            string   `xml:"http://uri.etsi.org/01903/v1.3.2# City,omitempty"`
	StateOrProvince string   `xml:"http://uri.etsi.org/01903/v1.3.2# StateOrProvince,omitempty"`
	PostalCode      string   `xml:"http://uri.etsi.org/01903/v1.3.2# PostalCode,omitempty"`
	CountryName     string   `xml:"http://uri.etsi.org/01903/v1.3.2# CountryName,omitempty"`
}

// SignerRole contains signer role information.
type SignerRole struct {
	XMLName        xml.Name                  `xml:"http://uri.etsi.org/01903/v1.3.2# SignerRole"`
	ClaimedRoles   []AnyType                 `xml:"http://uri.etsi.org/01903/v1.3.2# ClaimedRoles>ClaimedRole"`
	CertifiedRoles []EncapsulatedPKIDataType `xml:"http://uri.etsi.org/01903/v1.3.2# CertifiedRoles>CertifiedRole"`
}

// DataObjectFormat describes data object format.
type DataObjectFormat struct {
	XMLName          xml.Name              `xml:"http://uri.etsi.org/01903/v1.3.2# DataObjectFormat"`
	Description      string                `xml:"http://uri.etsi.org/01903/v1.3.2# Description,omitempty"`
	ObjectIdentifier *ObjectIdentifierType `xml:"http://uri.etsi.org/01903/v1.3.2# ObjectIdentifier,omitempty"`
	MimeType         string                `xml:"http://uri.etsi.org/01903/v1.3.2# MimeType,omitempty"`
	Encoding         string                `xml:"http://uri.etsi.org/01903/v1.3.2# Encoding,omitempty"`
	ObjectReference  string                `xml:"ObjectReference,attr"`
}

// CommitmentTypeIndication indicates commitment type.
type CommitmentTypeIndication struct {
	XMLName                  xml.Name              `xml:"http://uri.etsi.org/01903/v1.3.2# CommitmentTypeIndication"`
	CommitmentTypeId         *ObjectIdentifierType `xml:"http://uri.etsi.org/01903/v1.3.2# CommitmentTypeId"`
	ObjectReference          []string              `xml:"http://uri.etsi.org/01903/v1.3.2# ObjectReference,omitempty"`
	AllSignedDataObjects     *struct{}             `xml:"http://uri.etsi.org/01903/v1.3.2# AllSignedDataObjects,omitempty"`
	CommitmentTypeQualifiers []AnyType             `xml:"http://uri.etsi.org/01903/v1.3.2# CommitmentTypeQualifiers>CommitmentTypeQualifier"`
}

// XAdESTimeStampType is shared by all XAdES timestamp properties. The
// element name is taken from the enclosing element, so one binding decodes
// every timestamp kind.
type XAdESTimeStampType struct {
	XMLName                xml.Name
	Include                []IncludeType               `xml:"http://uri.etsi.org/01903/v1.3.2# Include,omitempty"`
	CanonicalizationMethod *w3c.CanonicalizationMethod `xml:"http://www.w3.org/2000/09/xmldsig# CanonicalizationMethod,omitempty"`
	EncapsulatedTimeStamp  []EncapsulatedPKIDataType   `xml:"http://uri.etsi.org/01903/v1.3.2# EncapsulatedTimeStamp,omitempty"`
	XMLTimeStamp           []AnyType                   `xml:"http://uri.etsi.org/01903/v1.3.2# XMLTimeStamp,omitempty"`
	ID                     string                      `xml:"Id,attr,omitempty"`
}

// CompleteCertificateRefs is the element form.
type CompleteCertificateRefs struct {
	XMLName  xml.Name        `xml:"http://uri.etsi.org/01903/v1.3.2# CompleteCertificateRefs"`
	CertRefs *CertIDListType `xml:"http://uri.etsi.org/01903/v1.3.2# CertRefs"`
	ID       string          `xml:"Id,attr,omitempty"`
}

// CRLIdentifierType identifies a CRL.
type CRLIdentifierType struct {
	Issuer    string     `xml:"http://uri.etsi.org/01903/v1.3.2# Issuer"`
	IssueTime *time.Time `xml:"http://uri.etsi.org/01903/v1.3.2# IssueTime"`
	Number    string     `xml:"http://uri.etsi.org/01903/v1.3.2# Number,omitempty"`
	URI       string     `xml:"URI,attr,omitempty"`
}

// CRLRefType references a CRL.
type CRLRefType struct {
	DigestAlgAndValue *DigestAlgAndValueType `xml:"http://uri.etsi.org/01903/v1.3.2# DigestAlgAndValue"`
	CRLIdentifier     *CRLIdentifierType     `xml:"http://uri.etsi.org/01903/v1.3.2# CRLIdentifier,omitempty"`
}

// ResponderIDType identifies an OCSP responder.
type ResponderIDType struct {
	ByName string `xml:"http://uri.etsi.org/01903/v1.3.2# ByName,omitempty"`
	ByKey  string `xml:"http://uri.etsi.org/01903/v1.3.2# ByKey,omitempty"`
}

// OCSPIdentifierType identifies an OCSP response.
type OCSPIdentifierType struct {
	ResponderID *ResponderIDType `xml:"http://uri.etsi.org/01903/v1.3.2# ResponderID"`
	ProducedAt  *time.Time       `xml:"http://uri.etsi.org/01903/v1.3.2# ProducedAt"`
	URI         string           `xml:"URI,attr,omitempty"`
}

// OCSPRefType references an OCSP response.
type OCSPRefType struct {
	OCSPIdentifier    *OCSPIdentifierType    `xml:"http://uri.etsi.org/01903/v1.3.2# OCSPIdentifier"`
	DigestAlgAndValue *DigestAlgAndValueType `xml:"http://uri.etsi.org/01903/v1.3.2# DigestAlgAndValue,omitempty"`
}

// CompleteRevocationRefs is the element form.
type CompleteRevocationRefs struct {
	XMLName   xml.Name      `xml:"http://uri.etsi.org/01903/v1.3.2# CompleteRevocationRefs"`
	CRLRefs   []CRLRefType  `xml:"http://uri.etsi.org/01903/v1.3.2# CRLRefs>CRLRef"`
	OCSPRefs  []OCSPRefType `xml:"http://uri.etsi.org/01903/v1.3.2# OCSPRefs>OCSPRef"`
	OtherRefs []AnyType     `xml:"http://uri.etsi.org/01903/v1.3.2# OtherRefs>OtherRef"`
	ID        string        `xml:"Id,attr,omitempty"`
}

// CertificateValues contains certificate values.
type CertificateValues struct {
	XMLName                     xml.Name                  `xml:"http://uri.etsi.org/01903/v1.3.2# CertificateValues"`
	EncapsulatedX509Certificate []EncapsulatedPKIDataType `xml:"http://uri.etsi.org/01903/v1.3.2# EncapsulatedX509Certificate,omitempty"`
	OtherCertificate            []AnyType                 `xml:"http://uri.etsi.org/01903/v1.3.2# OtherCertificate,omitempty"`
	ID                          string                    `xml:"Id,attr,omitempty"`
}

// RevocationValues contains revocation values.
type RevocationValues struct {
	XMLName     xml.Name                  `xml:"http://uri.etsi.org/01903/v1.3.2# RevocationValues"`
	CRLValues   []EncapsulatedPKIDataType `xml:"http://uri.etsi.org/01903/v1.3.2# CRLValues>EncapsulatedCRLValue"`
	OCSPValues  []EncapsulatedPKIDataType `xml:"http://uri.etsi.org/01903/v1.3.2# OCSPValues>EncapsulatedOCSPValue"`
	OtherValues []AnyType                 `xml:"http://uri.etsi.org/01903/v1.3.2# OtherValues>OtherValue"`
	ID          string                    `xml:"Id,attr,omitempty"`
}

// Element local names, in the order ETSI TS 101 903 lists them.
const (
	QualifyingPropertiesTag           = "QualifyingProperties"
	SignedPropertiesTag               = "SignedProperties"
	SignedSignaturePropertiesTag      = "SignedSignatureProperties"
	SignedDataObjectPropertiesTag     = "SignedDataObjectProperties"
	UnsignedPropertiesTag             = "UnsignedProperties"
	UnsignedSignaturePropertiesTag    = "UnsignedSignatureProperties"
	UnsignedDataObjectPropertiesTag   = "UnsignedDataObjectProperties"
	SigningTimeTag                    = "SigningTime"
	SigningCertificateTag             = "SigningCertificate"
	SignaturePolicyIdentifierTag      = "SignaturePolicyIdentifier"
	SignatureProductionPlaceTag       = "SignatureProductionPlace"
	SignerRoleTag                     = "SignerRole"
	DataObjectFormatTag               = "DataObjectFormat"
	CommitmentTypeIndicationTag       = "CommitmentTypeIndication"
	AllDataObjectsTimeStampTag        = "AllDataObjectsTimeStamp"
	IndividualDataObjectsTimeStampTag = "IndividualDataObjectsTimeStamp"
	CounterSignatureTag               = "CounterSignature"
	SignatureTimeStampTag             = "SignatureTimeStamp"
	CompleteCertificateRefsTag        = "CompleteCertificateRefs"
	CompleteRevocationRefsTag         = "CompleteRevocationRefs"
	AttributeCertificateRefsTag       = "AttributeCertificateRefs"
	AttributeRevocationRefsTag        = "AttributeRevocationRefs"
	SigAndRefsTimeStampTag            = "SigAndRefsTimeStamp"
	RefsOnlyTimeStampTag              = "RefsOnlyTimeStamp"
	CertificateValuesTag              = "CertificateValues"
	RevocationValuesTag               = "RevocationValues"
	AttrAuthoritiesCertValuesTag      = "AttrAuthoritiesCertValues"
	AttributeRevocationValuesTag      = "AttributeRevocationValues"
	ArchiveTimeStampTag               = "ArchiveTimeStamp"
)
