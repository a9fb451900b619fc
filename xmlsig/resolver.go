package xmlsig

import (
	"errors"
	"fmt"
	"strings"

	"github.com/beevik/etree"
)

// ErrUnresolvedURI is returned when a reference URI cannot be resolved.
var ErrUnresolvedURI = errors.New("reference URI cannot be resolved")

// ReferenceResolver resolves same-document reference URIs.
type ReferenceResolver interface {
	// Resolve returns the element a "#id" style URI points to. The empty URI
	// resolves to the document element.
	Resolve(uri string) (*etree.Element, error)
}

// OctetResolver is implemented by resolvers that also serve detached
// content for URIs outside the document.
type OctetResolver interface {
	ResolveOctets(uri string) ([]byte, error)
}

// DocumentResolver indexes the ID attributes of a document.
type DocumentResolver struct {
	root     *etree.Element
	ids      map[string]*etree.Element
	detached map[string][]byte
}

// idAttributes are the attribute names treated as IDs. XML-DSig and XAdES
// both use "Id"; SAML style documents use "ID".
var idAttributes = []string{"Id", "ID", "id"}

// NewDocumentResolver builds a resolver over the tree rooted at root.
// Duplicate IDs are rejected since they make reference resolution ambiguous.
func NewDocumentResolver(root *etree.Element) (*DocumentResolver, error) {
	if root == nil {
		return nil, errors.New("nil document root")
	}
	r := &DocumentResolver{
		root: root,
		ids:  make(map[string]*etree.Element),
	}
	if err := r.index(root); err != nil {
		return nil, err
	}
	return r, nil
}

func (r *DocumentResolver) index(el *etree.Element) error {
	for _, name := range idAttributes {
		attr := el.SelectAttr(name)
		if attr == nil || attr.Space != "" {
			continue
		}
		if prev, ok := r.ids[attr.Value]; ok && prev != el {
			return fmt.Errorf("duplicate ID %q", attr.Value)
		}
		r.ids[attr.Value] = el
	}
	for _, child := range el.ChildElements() {
		if err := r.index(child); err != nil {
			return err
		}
	}
	return nil
}

// AddDetached registers detached content for an external URI.
func (r *DocumentResolver) AddDetached(uri string, data []byte) {
	if r.detached == nil {
		r.detached = make(map[string][]byte)
	}
	r.detached[uri] = data
}

// Resolve implements ReferenceResolver.
func (r *DocumentResolver) Resolve(uri string) (*etree.Element, error) {
	switch {
	case uri == "" || uri == "#xpointer(/)":
		return r.root, nil
	case strings.HasPrefix(uri, "#xpointer(id('") && strings.HasSuffix(uri, "'))"):
		return r.lookup(uri, strings.TrimSuffix(strings.TrimPrefix(uri, "#xpointer(id('"), "'))"))
	case strings.HasPrefix(uri, "#"):
		return r.lookup(uri, uri[1:])
	default:
		return nil, fmt.Errorf("%w: %q is not a same-document reference", ErrUnresolvedURI, uri)
	}
}

func (r *DocumentResolver) lookup(uri, id string) (*etree.Element, error) {
	el, ok := r.ids[id]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnresolvedURI, uri)
	}
	return el, nil
}

// ResolveOctets implements OctetResolver.
func (r *DocumentResolver) ResolveOctets(uri string) ([]byte, error) {
	data, ok := r.detached[uri]
	if !ok {
		return nil, fmt.Errorf("%w: no detached content for %q", ErrUnresolvedURI, uri)
	}
	return data, nil
}
