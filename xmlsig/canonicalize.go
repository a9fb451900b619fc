package xmlsig

import (
	"fmt"

	"github.com/beevik/etree"
	dsig "github.com/russellhaering/goxmldsig"
	"github.com/russellhaering/goxmldsig/etreeutils"
)

// DefaultCanonicalizationAlgorithm is used when a node-set must be turned
// into octets and no algorithm was specified (XML-DSig 4.4.3.2).
const DefaultCanonicalizationAlgorithm = string(dsig.CanonicalXML10RecAlgorithmId)

// IsCanonicalizationAlgorithm reports whether alg names a supported
// canonicalization algorithm.
func IsCanonicalizationAlgorithm(alg string) bool {
	switch dsig.AlgorithmID(alg) {
	case dsig.CanonicalXML10RecAlgorithmId,
		dsig.CanonicalXML10WithCommentsAlgorithmId,
		dsig.CanonicalXML11AlgorithmId,
		dsig.CanonicalXML11WithCommentsAlgorithmId,
		dsig.CanonicalXML10ExclusiveAlgorithmId,
		dsig.CanonicalXML10ExclusiveWithCommentsAlgorithmId:
		return true
	}
	return false
}

// NewCanonicalizer returns a canonicalizer for the algorithm URI. The prefix
// list only applies to exclusive canonicalization.
func NewCanonicalizer(alg, prefixList string) (dsig.Canonicalizer, error) {
	switch dsig.AlgorithmID(alg) {
	case dsig.CanonicalXML10RecAlgorithmId:
		return dsig.MakeC14N10RecCanonicalizer(), nil
	case dsig.CanonicalXML10WithCommentsAlgorithmId:
		return dsig.MakeC14N10WithCommentsCanonicalizer(), nil
	case dsig.CanonicalXML11AlgorithmId:
		return dsig.MakeC14N11Canonicalizer(), nil
	case dsig.CanonicalXML11WithCommentsAlgorithmId:
		return dsig.MakeC14N11WithCommentsCanonicalizer(), nil
	case dsig.CanonicalXML10ExclusiveAlgorithmId:
		return dsig.MakeC14N10ExclusiveCanonicalizerWithPrefixList(prefixList), nil
	case dsig.CanonicalXML10ExclusiveWithCommentsAlgorithmId:
		return dsig.MakeC14N10ExclusiveWithCommentsCanonicalizerWithPrefixList(prefixList), nil
	default:
		return nil, fmt.Errorf("%w: canonicalization %q", ErrUnsupportedAlgorithm, alg)
	}
}

// Canonicalize serializes el, with the namespaces in scope at its position
// in the document, using c. The document is left untouched.
func Canonicalize(c dsig.Canonicalizer, el *etree.Element) ([]byte, error) {
	switch c.Algorithm() {
	case dsig.CanonicalXML10RecAlgorithmId, dsig.CanonicalXML10WithCommentsAlgorithmId:
		// Works on a copy and also inherits xml:* attributes from ancestors.
		return c.Canonicalize(el)
	}
	detached, err := Detach(el)
	if err != nil {
		return nil, err
	}
	return c.Canonicalize(detached)
}

// Detach returns a parentless copy of el that declares every namespace in
// scope at el.
func Detach(el *etree.Element) (*etree.Element, error) {
	ctx, err := etreeutils.NSBuildParentContext(el)
	if err != nil {
		return nil, err
	}
	return etreeutils.NSDetatch(ctx, el)
}
