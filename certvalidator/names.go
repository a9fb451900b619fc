package certvalidator

import (
	"crypto/x509"
	"encoding/asn1"
	"encoding/hex"
	"errors"
	"fmt"
	"math/big"
	"sort"
	"strings"

	ldapv3 "github.com/go-ldap/ldap/v3"
	"golang.org/x/text/unicode/norm"
)

// ErrMalformedDN is returned for a distinguished name string that is not
// valid RFC 4514 syntax.
var ErrMalformedDN = errors.New("malformed distinguished name")

// attributeTypes maps the RFC 4514 keywords, and the common aliases seen in
// XML-DSig X509IssuerName values, to attribute type OIDs.
var attributeTypes = map[string]string{
	"CN":                     "2.5.4.3",
	"SURNAME":                "2.5.4.4",
	"SN":                     "2.5.4.4",
	"SERIALNUMBER":           "2.5.4.5",
	"C":                      "2.5.4.6",
	"L":                      "2.5.4.7",
	"ST":                     "2.5.4.8",
	"S":                      "2.5.4.8",
	"STREET":                 "2.5.4.9",
	"O":                      "2.5.4.10",
	"OU":                     "2.5.4.11",
	"T":                      "2.5.4.12",
	"TITLE":                  "2.5.4.12",
	"POSTALCODE":             "2.5.4.17",
	"GIVENNAME":              "2.5.4.42",
	"GN":                     "2.5.4.42",
	"G":                      "2.5.4.42",
	"INITIALS":               "2.5.4.43",
	"GENERATIONQUALIFIER":    "2.5.4.44",
	"DNQUALIFIER":            "2.5.4.46",
	"PSEUDONYM":              "2.5.4.65",
	"ORGANIZATIONIDENTIFIER": "2.5.4.97",
	"DC":                     "0.9.2342.19200300.100.1.25",
	"UID":                    "0.9.2342.19200300.100.1.1",
	"E":                      "1.2.840.113549.1.9.1",
	"EMAILADDRESS":           "1.2.840.113549.1.9.1",
}

type dnAttribute struct {
	oid   string
	value string
}

// DistinguishedName is a name normalized for comparison. RDNs are kept in
// ASN.1 order (most significant first); attribute values are NFKC
// normalized, case folded and have their white space collapsed.
type DistinguishedName struct {
	rdns [][]dnAttribute
}

// String returns the canonical form used for comparison.
func (n DistinguishedName) String() string {
	parts := make([]string, len(n.rdns))
	for i, rdn := range n.rdns {
		attrs := make([]string, len(rdn))
		for j, a := range rdn {
			attrs[j] = a.oid + "=" + a.value
		}
		parts[i] = strings.Join(attrs, "+")
	}
	return strings.Join(parts, ",")
}

// Equal reports whether both names are the same after normalization.
func (n DistinguishedName) Equal(other DistinguishedName) bool {
	return n.String() == other.String()
}

// ParseDN parses an RFC 4514 (or RFC 2253) distinguished name string.
func ParseDN(s string) (DistinguishedName, error) {
	dn, err := ldapv3.ParseDN(s)
	if err != nil {
		return DistinguishedName{}, fmt.Errorf("%w: %q: %v", ErrMalformedDN, s, err)
	}
	// The string form lists the least significant RDN first.
	rdns := make([][]dnAttribute, len(dn.RDNs))
	for i, r := range dn.RDNs {
		rdn := make([]dnAttribute, 0, len(r.Attributes))
		for _, a := range r.Attributes {
			oid, err := attributeOID(a.Type)
			if err != nil {
				return DistinguishedName{}, fmt.Errorf("%w: %q: %v", ErrMalformedDN, s, err)
			}
			value, err := unquote(a.Value)
			if err != nil {
				return DistinguishedName{}, fmt.Errorf("%w: %q: %v", ErrMalformedDN, s, err)
			}
			rdn = append(rdn, dnAttribute{oid: oid, value: normalizeValue(value)})
		}
		sortRDN(rdn)
		rdns[len(rdns)-1-i] = rdn
	}
	return DistinguishedName{rdns: rdns}, nil
}

// unquote strips the RFC 2253 quotes some producers still put around
// X509IssuerName values.
func unquote(v string) (string, error) {
	if !strings.HasPrefix(v, `"`) {
		return v, nil
	}
	if len(v) < 2 || !strings.HasSuffix(v, `"`) {
		return "", errors.New("unterminated quoted value")
	}
	return v[1 : len(v)-1], nil
}

type rawAttribute struct {
	Type  asn1.ObjectIdentifier
	Value asn1.RawValue
}

// rawRDNSET is a SET OF attributes; the suffix makes encoding/asn1 use the
// SET tag.
type rawRDNSET []rawAttribute

// NameFromDER builds the comparable form of a DER encoded Name, such as
// Certificate.RawIssuer or RevocationList.RawIssuer.
func NameFromDER(der []byte) (DistinguishedName, error) {
	var seq []rawRDNSET
	rest, err := asn1.Unmarshal(der, &seq)
	if err != nil {
		return DistinguishedName{}, fmt.Errorf("%w: %v", ErrMalformedDN, err)
	}
	if len(rest) > 0 {
		return DistinguishedName{}, fmt.Errorf("%w: trailing data after name", ErrMalformedDN)
	}
	rdns := make([][]dnAttribute, 0, len(seq))
	for _, set := range seq {
		rdn := make([]dnAttribute, 0, len(set))
		for _, a := range set {
			rdn = append(rdn, dnAttribute{oid: a.Type.String(), value: berValue(a.Value.FullBytes)})
		}
		sortRDN(rdn)
		rdns = append(rdns, rdn)
	}
	return DistinguishedName{rdns: rdns}, nil
}

// NameMatches reports whether the distinguished name string dn denotes the
// DER encoded name. Unparseable input never matches.
func NameMatches(dn string, der []byte) bool {
	want, err := ParseDN(dn)
	if err != nil {
		return false
	}
	got, err := NameFromDER(der)
	if err != nil {
		return false
	}
	return want.Equal(got)
}

// IssuerSerial identifies a certificate by issuer name and serial number, as
// XML-DSig X509IssuerSerial and XAdES IssuerSerial do.
type IssuerSerial struct {
	IssuerDN     string
	SerialNumber *big.Int
}

// Matches reports whether cert has this issuer and serial number.
func (is IssuerSerial) Matches(cert *x509.Certificate) bool {
	if cert == nil || is.SerialNumber == nil || cert.SerialNumber == nil {
		return false
	}
	return is.SerialNumber.Cmp(cert.SerialNumber) == 0 && NameMatches(is.IssuerDN, cert.RawIssuer)
}

func (is IssuerSerial) String() string {
	return fmt.Sprintf("%s / %s", is.IssuerDN, is.SerialNumber)
}

func normalizeValue(v string) string {
	v = strings.ToLower(norm.NFKC.String(v))
	return strings.Join(strings.Fields(v), " ")
}

// berValue turns an encoded attribute value into its comparable text. String
// types compare by content; anything else by its encoding.
func berValue(b []byte) string {
	var v any
	if rest, err := asn1.Unmarshal(b, &v); err == nil && len(rest) == 0 {
		if s, ok := v.(string); ok {
			return normalizeValue(s)
		}
	}
	return "#" + hex.EncodeToString(b)
}

func sortRDN(rdn []dnAttribute) {
	sort.Slice(rdn, func(i, j int) bool {
		if rdn[i].oid != rdn[j].oid {
			return rdn[i].oid < rdn[j].oid
		}
		return rdn[i].value < rdn[j].value
	})
}

func attributeOID(t string) (string, error) {
	if t == "" {
		return "", errors.New("empty attribute type")
	}
	upper := strings.ToUpper(t)
	upper = strings.TrimPrefix(upper, "OID.")
	if oid, ok := attributeTypes[upper]; ok {
		return oid, nil
	}
	if upper[0] < '0' || upper[0] > '9' {
		return "", fmt.Errorf("unknown attribute type %q", t)
	}
	for _, arc := range strings.Split(upper, ".") {
		if arc == "" || strings.Trim(arc, "0123456789") != "" {
			return "", fmt.Errorf("invalid attribute OID %q", t)
		}
	}
	return upper, nil
}
