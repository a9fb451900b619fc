package verification

import (
	"crypto/x509"
	"errors"
	"strings"

	"github.com/beevik/etree"

	"github.com/georgepadayatti/goxades/certvalidator"
	"github.com/georgepadayatti/goxades/properties"
	"github.com/georgepadayatti/goxades/xmlsig"
)

// CertificationChainData is the validated certification path of the signer.
type CertificationChainData struct {
	// Chain is ordered leaf first. The first entry is the signing certificate.
	Chain []*x509.Certificate
	CRLs  []*x509.RevocationList
	// IssuerSerial is the issuer/serial asserted by the signature's KeyInfo.
	IssuerSerial *certvalidator.IssuerSerial
}

// RawDataObjectDesc is one signed data object: a ds:Reference other than the
// one covering SignedProperties, and the data object properties that apply
// to it.
type RawDataObjectDesc struct {
	Reference *xmlsig.Reference
	// Target is the element the reference points to, or nil for detached or
	// unresolvable content.
	Target *etree.Element

	props []properties.QualifyingProperty
}

// Transforms returns the transform chain of the reference.
func (d *RawDataObjectDesc) Transforms() []xmlsig.Transform {
	return d.Reference.Transforms
}

// Properties returns the data object properties attached to the object.
func (d *RawDataObjectDesc) Properties() []properties.QualifyingProperty {
	return append([]properties.QualifyingProperty(nil), d.props...)
}

// HasProperty reports whether a property named name is attached.
func (d *RawDataObjectDesc) HasProperty(name string) bool {
	for _, p := range d.props {
		if p.Name() == name {
			return true
		}
	}
	return false
}

func (d *RawDataObjectDesc) attach(p properties.QualifyingProperty) {
	d.props = append(d.props, p)
}

// SignedObjectsData indexes the signed data objects of a signature.
type SignedObjectsData struct {
	objects   []*RawDataObjectDesc
	byID      map[string]*RawDataObjectDesc
	byElement map[*etree.Element]*RawDataObjectDesc
}

// NewSignedObjectsData builds the index over refs, which must not include the
// SignedProperties reference. When resolver is not nil, same-document targets
// are resolved so that properties can inspect them.
func NewSignedObjectsData(refs []*xmlsig.Reference, resolver xmlsig.ReferenceResolver) *SignedObjectsData {
	s := &SignedObjectsData{
		byID:      make(map[string]*RawDataObjectDesc),
		byElement: make(map[*etree.Element]*RawDataObjectDesc),
	}
	for _, ref := range refs {
		obj := &RawDataObjectDesc{Reference: ref}
		if resolver != nil && (ref.URI == "" || strings.HasPrefix(ref.URI, "#")) {
			if el, err := resolver.Resolve(ref.URI); err == nil {
				obj.Target = el
			}
		}
		s.objects = append(s.objects, obj)
		if ref.ID != "" {
			s.byID[ref.ID] = obj
		}
		if ref.Element != nil {
			s.byElement[ref.Element] = obj
		}
	}
	return s
}

// Objects returns the data objects in SignedInfo order.
func (s *SignedObjectsData) Objects() []*RawDataObjectDesc {
	return append([]*RawDataObjectDesc(nil), s.objects...)
}

// Lookup resolves a "#id" reference to the ds:Reference with that Id.
func (s *SignedObjectsData) Lookup(uri string) (*RawDataObjectDesc, bool) {
	id, ok := strings.CutPrefix(uri, "#")
	if !ok || id == "" {
		return nil, false
	}
	obj, ok := s.byID[id]
	return obj, ok
}

// LookupElement returns the data object whose ds:Reference is el.
func (s *SignedObjectsData) LookupElement(el *etree.Element) (*RawDataObjectDesc, bool) {
	obj, ok := s.byElement[el]
	return obj, ok
}

// Context is the per-signature view shared by property verifiers. Apart from
// the property back-references of data objects it does not change once built.
type Context struct {
	chain         []*x509.Certificate
	crls          []*x509.RevocationList
	issuerSerial  *certvalidator.IssuerSerial
	signedObjects *SignedObjectsData
}

// NewContext creates a verification context. The chain must hold at least
// the signing certificate.
func NewContext(chain CertificationChainData, objects *SignedObjectsData) (*Context, error) {
	if len(chain.Chain) == 0 || chain.Chain[0] == nil {
		return nil, errors.New("certification chain has no signing certificate")
	}
	if objects == nil {
		objects = NewSignedObjectsData(nil, nil)
	}
	return &Context{
		chain:         append([]*x509.Certificate(nil), chain.Chain...),
		crls:          append([]*x509.RevocationList(nil), chain.CRLs...),
		issuerSerial:  chain.IssuerSerial,
		signedObjects: objects,
	}, nil
}

// SigningCertificate returns the leaf of the chain.
func (c *Context) SigningCertificate() *x509.Certificate {
	return c.chain[0]
}

// Certificates returns the chain, leaf first.
func (c *Context) Certificates() []*x509.Certificate {
	return append([]*x509.Certificate(nil), c.chain...)
}

// CRLs returns the revocation lists of the chain.
func (c *Context) CRLs() []*x509.RevocationList {
	return append([]*x509.RevocationList(nil), c.crls...)
}

// IssuerSerial returns the issuer/serial asserted by KeyInfo, or nil.
func (c *Context) IssuerSerial() *certvalidator.IssuerSerial {
	return c.issuerSerial
}

// SignedObjects returns the signed data object index.
func (c *Context) SignedObjects() *SignedObjectsData {
	return c.signedObjects
}
