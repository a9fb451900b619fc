package xmlsig

import (
	"errors"
	"fmt"
	"strings"

	"github.com/beevik/etree"
	dsig "github.com/russellhaering/goxmldsig"

	"github.com/georgepadayatti/goxades/generated/w3c"
)

// ErrUnsupportedTransform is returned for transforms this package does not
// implement (XPath, XPath Filter 2.0, XSLT).
var ErrUnsupportedTransform = errors.New("unsupported transform")

// ReferenceData is a dereferenced reference after its transforms: either a
// node-set rooted at Node or an octet stream.
type ReferenceData struct {
	Node   *etree.Element
	Octets []byte

	// origin is the document element Node was copied from.
	origin *etree.Element
}

// IsNodeSet reports whether the data is still a node-set.
func (d *ReferenceData) IsNodeSet() bool {
	return d.Node != nil
}

// Bytes returns the octets, canonicalizing a node-set with alg first.
func (d *ReferenceData) Bytes(alg string) ([]byte, error) {
	if !d.IsNodeSet() {
		return d.Octets, nil
	}
	c, err := NewCanonicalizer(alg, "")
	if err != nil {
		return nil, err
	}
	// Node is already a private detached copy.
	return c.Canonicalize(d.Node.Copy())
}

// Dereference resolves ref and applies its transforms in order.
func Dereference(ref *Reference, res ReferenceResolver) (*ReferenceData, error) {
	data, err := resolveData(ref, res)
	if err != nil {
		return nil, err
	}
	for _, tr := range ref.Transforms {
		data, err = applyTransform(ref, tr, data)
		if err != nil {
			return nil, err
		}
	}
	return data, nil
}

// ReferenceOctets dereferences ref and returns the octets its digest is
// computed over.
func ReferenceOctets(ref *Reference, res ReferenceResolver) ([]byte, error) {
	data, err := Dereference(ref, res)
	if err != nil {
		return nil, err
	}
	return data.Bytes(DefaultCanonicalizationAlgorithm)
}

func resolveData(ref *Reference, res ReferenceResolver) (*ReferenceData, error) {
	if ref.URI == "" || strings.HasPrefix(ref.URI, "#") {
		el, err := res.Resolve(ref.URI)
		if err != nil {
			return nil, err
		}
		node, err := Detach(el)
		if err != nil {
			return nil, err
		}
		return &ReferenceData{Node: node, origin: el}, nil
	}
	octets, ok := res.(OctetResolver)
	if !ok {
		return nil, fmt.Errorf("%w: %q is not a same-document reference", ErrUnresolvedURI, ref.URI)
	}
	data, err := octets.ResolveOctets(ref.URI)
	if err != nil {
		return nil, err
	}
	return &ReferenceData{Octets: data}, nil
}

func applyTransform(ref *Reference, tr Transform, data *ReferenceData) (*ReferenceData, error) {
	switch {
	case tr.Algorithm == w3c.AlgEnvelopedSignature:
		if !data.IsNodeSet() {
			return nil, fmt.Errorf("%w: enveloped signature over octets", ErrUnsupportedTransform)
		}
		removeEnvelopingSignature(ref, data)
		return data, nil

	case IsCanonicalizationAlgorithm(tr.Algorithm):
		node := data.Node
		if !data.IsNodeSet() {
			doc := etree.NewDocument()
			if err := doc.ReadFromBytes(data.Octets); err != nil {
				return nil, fmt.Errorf("parsing octets for canonicalization: %w", err)
			}
			node = doc.Root()
		}
		c, err := NewCanonicalizer(tr.Algorithm, tr.PrefixList)
		if err != nil {
			return nil, err
		}
		out, err := c.Canonicalize(node)
		if err != nil {
			return nil, err
		}
		return &ReferenceData{Octets: out}, nil

	case tr.Algorithm == w3c.AlgBase64:
		text := string(data.Octets)
		if data.IsNodeSet() {
			var sb strings.Builder
			collectText(data.Node, &sb)
			text = sb.String()
		}
		out, err := DecodeBase64(text)
		if err != nil {
			return nil, fmt.Errorf("base64 transform: %w", err)
		}
		return &ReferenceData{Octets: out}, nil

	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedTransform, tr.Algorithm)
	}
}

// removeEnvelopingSignature drops the ds:Signature containing ref from the
// node-set, if the node-set contains it.
func removeEnvelopingSignature(ref *Reference, data *ReferenceData) {
	sig := ref.Element
	for sig != nil && !(sig.Tag == dsig.SignatureTag && sig.NamespaceURI() == w3c.Namespace) {
		sig = sig.Parent()
	}
	if sig == nil || data.origin == nil {
		return
	}
	if sig == data.origin {
		data.Node = nil
		data.Octets = []byte{}
		return
	}

	// Child indices from origin down to sig, mirrored on the copy.
	var path []int
	for el := sig; el != data.origin; el = el.Parent() {
		parent := el.Parent()
		if parent == nil {
			return
		}
		path = append(path, childIndex(parent, el))
	}

	target := data.Node
	for i := len(path) - 1; i >= 0; i-- {
		tok := target.Child[path[i]]
		next, ok := tok.(*etree.Element)
		if !ok {
			return
		}
		target = next
	}
	if parent := target.Parent(); parent != nil {
		parent.RemoveChild(target)
	}
}

func childIndex(parent *etree.Element, el *etree.Element) int {
	for i, tok := range parent.Child {
		if tok == etree.Token(el) {
			return i
		}
	}
	return -1
}

func collectText(el *etree.Element, sb *strings.Builder) {
	for _, tok := range el.Child {
		switch t := tok.(type) {
		case *etree.CharData:
			sb.WriteString(t.Data)
		case *etree.Element:
			collectText(t, sb)
		}
	}
}
