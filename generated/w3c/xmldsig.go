// Package w3c provides W3C XML Digital Signature structures.
//
// Only the elements the XAdES property decoder reads are bound here. The
// signature tree itself is handled through etree so that document order and
// canonicalization stay intact.
// https://www.w3.org/TR/xmldsig-core/
package w3c

import (
	"encoding/xml"
	"fmt"
	"math/big"
	"strings"
)

// Namespace is the XML Digital Signature namespace.
const Namespace = "http://www.w3.org/2000/09/xmldsig#"

// CanonicalizationMethod specifies the canonicalization algorithm.
type CanonicalizationMethod struct {
	XMLName   xml.Name `xml:"http://www.w3.org/2000/09/xmldsig# CanonicalizationMethod"`
	Algorithm string   `xml:"Algorithm,attr"`
}

// DigestMethod specifies the digest algorithm.
type DigestMethod struct {
	XMLName   xml.Name `xml:"http://www.w3.org/2000/09/xmldsig# DigestMethod"`
	Algorithm string   `xml:"Algorithm,attr"`
}

// DigestValue contains the base64 digest value.
type DigestValue struct {
	XMLName xml.Name `xml:"http://www.w3.org/2000/09/xmldsig# DigestValue"`
	Value   string   `xml:",chardata"`
}

// X509IssuerSerial contains X509 issuer and serial number. The serial is
// kept textual because certificate serials routinely exceed 64 bits.
type X509IssuerSerial struct {
	X509IssuerName   string `xml:"http://www.w3.org/2000/09/xmldsig# X509IssuerName"`
	X509SerialNumber string `xml:"http://www.w3.org/2000/09/xmldsig# X509SerialNumber"`
}

// Serial parses the decimal serial number.
func (s *X509IssuerSerial) Serial() (*big.Int, error) {
	n, ok := new(big.Int).SetString(strings.TrimSpace(s.X509SerialNumber), 10)
	if !ok {
		return nil, fmt.Errorf("invalid X509SerialNumber %q", s.X509SerialNumber)
	}
	return n, nil
}

// X509Data contains X509 certificate data.
type X509Data struct {
	XMLName          xml.Name           `xml:"http://www.w3.org/2000/09/xmldsig# X509Data"`
	X509IssuerSerial []X509IssuerSerial `xml:"http://www.w3.org/2000/09/xmldsig# X509IssuerSerial,omitempty"`
	X509SKI          []string           `xml:"http://www.w3.org/2000/09/xmldsig# X509SKI,omitempty"`
	X509SubjectName  []string           `xml:"http://www.w3.org/2000/09/xmldsig# X509SubjectName,omitempty"`
	X509Certificate  []string           `xml:"http://www.w3.org/2000/09/xmldsig# X509Certificate,omitempty"`
	X509CRL          []string           `xml:"http://www.w3.org/2000/09/xmldsig# X509CRL,omitempty"`
}

// KeyInfo contains key information.
type KeyInfo struct {
	XMLName  xml.Name   `xml:"http://www.w3.org/2000/09/xmldsig# KeyInfo"`
	ID       string     `xml:"Id,attr,omitempty"`
	KeyName  []string   `xml:"http://www.w3.org/2000/09/xmldsig# KeyName,omitempty"`
	X509Data []X509Data `xml:"http://www.w3.org/2000/09/xmldsig# X509Data,omitempty"`
}

// Common algorithm URIs
const (
	// Canonicalization algorithms
	AlgC14N                = "http://www.w3.org/TR/2001/REC-xml-c14n-20010315"
	AlgC14NWithComments    = "http://www.w3.org/TR/2001/REC-xml-c14n-20010315#WithComments"
	AlgC14N11              = "http://www.w3.org/2006/12/xml-c14n11"
	AlgC14N11WithComments  = "http://www.w3.org/2006/12/xml-c14n11#WithComments"
	AlgExcC14N             = "http://www.w3.org/2001/10/xml-exc-c14n#"
	AlgExcC14NWithComments = "http://www.w3.org/2001/10/xml-exc-c14n#WithComments"

	// Digest algorithms
	AlgSHA1     = "http://www.w3.org/2000/09/xmldsig#sha1"
	AlgSHA224   = "http://www.w3.org/2001/04/xmldsig-more#sha224"
	AlgSHA256   = "http://www.w3.org/2001/04/xmlenc#sha256"
	AlgSHA384   = "http://www.w3.org/2001/04/xmldsig-more#sha384"
	AlgSHA512   = "http://www.w3.org/2001/04/xmlenc#sha512"
	AlgSHA3_256 = "http://www.w3.org/2007/05/xmldsig-more#sha3-256"
	AlgSHA3_384 = "http://www.w3.org/2007/05/xmldsig-more#sha3-384"
	AlgSHA3_512 = "http://www.w3.org/2007/05/xmldsig-more#sha3-512"

	// Transform algorithms
	AlgEnvelopedSignature = "http://www.w3.org/2000/09/xmldsig#enveloped-signature"
	AlgXPath              = "http://www.w3.org/TR/1999/REC-xpath-19991116"
	AlgXPathFilter2       = "http://www.w3.org/2002/06/xmldsig-filter2"
	AlgXSLT               = "http://www.w3.org/TR/1999/REC-xslt-19991116"
	AlgBase64             = "http://www.w3.org/2000/09/xmldsig#base64"
)
