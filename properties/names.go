package properties

// Property names. They equal the local names of the XAdES elements so that
// errors and reports can be matched against ETSI TS 101 903 directly.
const (
	SigningTimeName                    = "SigningTime"
	SigningCertificateName             = "SigningCertificate"
	SignaturePolicyIdentifierName      = "SignaturePolicyIdentifier"
	SignatureProductionPlaceName       = "SignatureProductionPlace"
	SignerRoleName                     = "SignerRole"
	DataObjectFormatName               = "DataObjectFormat"
	CommitmentTypeIndicationName       = "CommitmentTypeIndication"
	AllDataObjectsTimeStampName        = "AllDataObjectsTimeStamp"
	IndividualDataObjectsTimeStampName = "IndividualDataObjectsTimeStamp"
	CounterSignatureName               = "CounterSignature"
	SignatureTimeStampName             = "SignatureTimeStamp"
	CompleteCertificateRefsName        = "CompleteCertificateRefs"
	CompleteRevocationRefsName         = "CompleteRevocationRefs"
	AttributeCertificateRefsName       = "AttributeCertificateRefs"
	AttributeRevocationRefsName        = "AttributeRevocationRefs"
	SigAndRefsTimeStampName            = "SigAndRefsTimeStamp"
	RefsOnlyTimeStampName              = "RefsOnlyTimeStamp"
	CertificateValuesName              = "CertificateValues"
	RevocationValuesName               = "RevocationValues"
	AttrAuthoritiesCertValuesName      = "AttrAuthoritiesCertValues"
	AttributeRevocationValuesName      = "AttributeRevocationValues"
	ArchiveTimeStampName               = "ArchiveTimeStamp"
)
