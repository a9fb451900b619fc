// Package xmlsig provides the XML-DSig view the XAdES verifier works on.
//
// It does not verify the core signature by itself (see CoreVerifier). It
// exposes the signature elements in document order, resolves same-document
// references and turns references into the octets or node-sets that digests
// and timestamp inputs are computed over.
package xmlsig

import (
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"github.com/beevik/etree"
	dsig "github.com/russellhaering/goxmldsig"

	"github.com/georgepadayatti/goxades/generated/etsi"
	"github.com/georgepadayatti/goxades/generated/w3c"
)

// Errors returned when the signature tree is malformed.
var (
	ErrNotSignature       = errors.New("element is not a ds:Signature")
	ErrMissingSignedInfo  = errors.New("ds:SignedInfo not found")
	ErrMissingSigValue    = errors.New("ds:SignatureValue not found")
	ErrMalformedReference = errors.New("malformed ds:Reference")
)

// Transform is one ds:Transform of a reference.
type Transform struct {
	Algorithm string
	// PrefixList is the InclusiveNamespaces PrefixList of exclusive c14n.
	PrefixList string
	Element    *etree.Element
}

// Reference is one ds:Reference of SignedInfo.
type Reference struct {
	ID              string
	URI             string
	Type            string
	Transforms      []Transform
	DigestAlgorithm string
	DigestValue     []byte
	Element         *etree.Element
}

// Signature is a parsed ds:Signature. Elements point into the original
// document; they must not be modified.
type Signature struct {
	ID                        string
	Element                   *etree.Element
	SignedInfo                *etree.Element
	SignatureValue            *etree.Element
	KeyInfo                   *etree.Element
	CanonicalizationAlgorithm string
	References                []*Reference
	Objects                   []*etree.Element
	// QualifyingProperties is nil for a signature without XAdES properties.
	QualifyingProperties *etree.Element
}

// ParseSignature builds the view of a ds:Signature element.
func ParseSignature(el *etree.Element) (*Signature, error) {
	if el == nil || el.Tag != dsig.SignatureTag || el.NamespaceURI() != w3c.Namespace {
		return nil, ErrNotSignature
	}

	sig := &Signature{
		ID:      el.SelectAttrValue("Id", ""),
		Element: el,
	}
	for _, child := range el.ChildElements() {
		if child.NamespaceURI() != w3c.Namespace {
			continue
		}
		switch child.Tag {
		case dsig.SignedInfoTag:
			sig.SignedInfo = child
		case dsig.SignatureValueTag:
			sig.SignatureValue = child
		case dsig.KeyInfoTag:
			sig.KeyInfo = child
		case "Object":
			sig.Objects = append(sig.Objects, child)
		}
	}
	if sig.SignedInfo == nil {
		return nil, ErrMissingSignedInfo
	}
	if sig.SignatureValue == nil {
		return nil, ErrMissingSigValue
	}

	for _, child := range sig.SignedInfo.ChildElements() {
		if child.NamespaceURI() != w3c.Namespace {
			continue
		}
		switch child.Tag {
		case dsig.CanonicalizationMethodTag:
			sig.CanonicalizationAlgorithm = child.SelectAttrValue(dsig.AlgorithmAttr, "")
		case dsig.ReferenceTag:
			ref, err := parseReference(child)
			if err != nil {
				return nil, err
			}
			sig.References = append(sig.References, ref)
		}
	}

	for _, obj := range sig.Objects {
		for _, child := range obj.ChildElements() {
			if child.Tag == etsi.QualifyingPropertiesTag && IsXAdESNamespace(child.NamespaceURI()) {
				sig.QualifyingProperties = child
				break
			}
		}
		if sig.QualifyingProperties != nil {
			break
		}
	}

	return sig, nil
}

func parseReference(el *etree.Element) (*Reference, error) {
	ref := &Reference{
		ID:      el.SelectAttrValue("Id", ""),
		URI:     el.SelectAttrValue(dsig.URIAttr, ""),
		Type:    el.SelectAttrValue("Type", ""),
		Element: el,
	}

	for _, child := range el.ChildElements() {
		if child.NamespaceURI() != w3c.Namespace {
			continue
		}
		switch child.Tag {
		case dsig.TransformsTag:
			for _, t := range child.ChildElements() {
				if t.Tag != dsig.TransformTag {
					continue
				}
				tr := Transform{
					Algorithm: t.SelectAttrValue(dsig.AlgorithmAttr, ""),
					Element:   t,
				}
				for _, inc := range t.ChildElements() {
					if inc.Tag == dsig.InclusiveNamespacesTag {
						tr.PrefixList = inc.SelectAttrValue(dsig.PrefixListAttr, "")
					}
				}
				ref.Transforms = append(ref.Transforms, tr)
			}
		case dsig.DigestMethodTag:
			ref.DigestAlgorithm = child.SelectAttrValue(dsig.AlgorithmAttr, "")
		case dsig.DigestValueTag:
			v, err := DecodeBase64(child.Text())
			if err != nil {
				return nil, fmt.Errorf("%w: digest value of %q: %v", ErrMalformedReference, ref.URI, err)
			}
			ref.DigestValue = v
		}
	}
	if ref.DigestAlgorithm == "" {
		return nil, fmt.Errorf("%w: %q has no DigestMethod", ErrMalformedReference, ref.URI)
	}
	return ref, nil
}

// SignedPropertiesReference returns the reference covering the XAdES
// SignedProperties, if any.
func (s *Signature) SignedPropertiesReference() *Reference {
	for _, ref := range s.References {
		if ref.Type == etsi.SignedPropertiesType {
			return ref
		}
	}
	return nil
}

// DataObjectReferences returns every reference except the one covering
// SignedProperties, in SignedInfo order.
func (s *Signature) DataObjectReferences() []*Reference {
	refs := make([]*Reference, 0, len(s.References))
	for _, ref := range s.References {
		if ref.Type == etsi.SignedPropertiesType {
			continue
		}
		refs = append(refs, ref)
	}
	return refs
}

// UnsignedSignatureProperties returns the UnsignedSignatureProperties
// container, or nil.
func (s *Signature) UnsignedSignatureProperties() *etree.Element {
	if s.QualifyingProperties == nil {
		return nil
	}
	up := xadesChild(s.QualifyingProperties, etsi.UnsignedPropertiesTag)
	if up == nil {
		return nil
	}
	return xadesChild(up, etsi.UnsignedSignaturePropertiesTag)
}

// QualifyingPropertiesObject returns the ds:Object that carries the
// QualifyingProperties.
func (s *Signature) QualifyingPropertiesObject() *etree.Element {
	if s.QualifyingProperties == nil {
		return nil
	}
	return s.QualifyingProperties.Parent()
}

func xadesChild(el *etree.Element, tag string) *etree.Element {
	for _, child := range el.ChildElements() {
		if child.Tag == tag && IsXAdESNamespace(child.NamespaceURI()) {
			return child
		}
	}
	return nil
}

// IsXAdESNamespace reports whether ns is one of the XAdES property namespaces.
func IsXAdESNamespace(ns string) bool {
	return ns == etsi.XAdESNamespace || ns == etsi.XAdES141Namespace
}

// DecodeBase64 decodes base64 text as found in XML, ignoring whitespace.
func DecodeBase64(s string) ([]byte, error) {
	clean := strings.Map(func(r rune) rune {
		switch r {
		case ' ', '\t', '\r', '\n':
			return -1
		}
		return r
	}, s)
	return base64.StdEncoding.DecodeString(clean)
}
