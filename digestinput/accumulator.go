// Package digestinput builds the octet stream a XAdES timestamp token is
// expected to cover.
//
// Nodes and references are canonicalized as they are added and their octets
// concatenated in call order. Callers are responsible for adding them in the
// order ETSI TS 101 903 prescribes for the timestamp kind.
package digestinput

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/beevik/etree"
	"github.com/opencontainers/go-digest"
	dsig "github.com/russellhaering/goxmldsig"

	"github.com/georgepadayatti/goxades/xmlsig"
)

// ErrCannotAccumulate is returned when a node or reference cannot be added.
var ErrCannotAccumulate = errors.New("cannot add data to timestamp digest input")

// Accumulator collects timestamp digest input.
type Accumulator struct {
	algorithm     string
	canonicalizer dsig.Canonicalizer
	resolver      xmlsig.ReferenceResolver
	buf           bytes.Buffer
}

// New returns an accumulator canonicalizing with c14nAlgorithm. The resolver
// is used by AddReference.
func New(c14nAlgorithm string, resolver xmlsig.ReferenceResolver) (*Accumulator, error) {
	c, err := xmlsig.NewCanonicalizer(c14nAlgorithm, "")
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCannotAccumulate, err)
	}
	return &Accumulator{
		algorithm:     c14nAlgorithm,
		canonicalizer: c,
		resolver:      resolver,
	}, nil
}

// Algorithm returns the canonicalization algorithm URI.
func (a *Accumulator) Algorithm() string {
	return a.algorithm
}

// AddNode appends the canonical form of el.
func (a *Accumulator) AddNode(el *etree.Element) error {
	if el == nil {
		return fmt.Errorf("%w: nil element", ErrCannotAccumulate)
	}
	out, err := xmlsig.Canonicalize(a.canonicalizer, el)
	if err != nil {
		return fmt.Errorf("%w: canonicalizing <%s>: %v", ErrCannotAccumulate, el.FullTag(), err)
	}
	a.buf.Write(out)
	return nil
}

// AddReference appends the data of ref after its transforms. A result that
// is still a node-set is canonicalized with the accumulator's algorithm.
func (a *Accumulator) AddReference(ref *xmlsig.Reference) error {
	if ref == nil {
		return fmt.Errorf("%w: nil reference", ErrCannotAccumulate)
	}
	if a.resolver == nil {
		return fmt.Errorf("%w: no reference resolver", ErrCannotAccumulate)
	}
	data, err := xmlsig.Dereference(ref, a.resolver)
	if err != nil {
		return fmt.Errorf("%w: reference %q: %v", ErrCannotAccumulate, ref.URI, err)
	}
	out, err := data.Bytes(a.algorithm)
	if err != nil {
		return fmt.Errorf("%w: reference %q: %v", ErrCannotAccumulate, ref.URI, err)
	}
	a.buf.Write(out)
	return nil
}

// Bytes returns the accumulated input.
func (a *Accumulator) Bytes() []byte {
	return bytes.Clone(a.buf.Bytes())
}

// Len returns the number of accumulated bytes.
func (a *Accumulator) Len() int {
	return a.buf.Len()
}

// Fingerprint returns the sha256 digest of the accumulated input, for logs.
func (a *Accumulator) Fingerprint() digest.Digest {
	return digest.FromBytes(a.buf.Bytes())
}
