package xmlsig

import (
	"crypto"
	_ "crypto/sha1"
	_ "crypto/sha256"
	_ "crypto/sha512"
	"errors"
	"fmt"
	"hash"

	"golang.org/x/crypto/sha3"

	"github.com/georgepadayatti/goxades/generated/w3c"
)

// ErrUnsupportedAlgorithm is returned for algorithm URIs without an
// implementation.
var ErrUnsupportedAlgorithm = errors.New("unsupported algorithm")

// MessageDigestProvider maps digest algorithm URIs to hash functions.
type MessageDigestProvider interface {
	Hash(algorithmURI string) (hash.Hash, error)
}

// DefaultDigestProvider supports the SHA-1, SHA-2 and SHA-3 URIs of XML-DSig
// and its "more" algorithms RFC.
type DefaultDigestProvider struct {
	// DisallowSHA1 rejects SHA-1 digests.
	DisallowSHA1 bool
}

var digestAlgorithms = map[string]crypto.Hash{
	w3c.AlgSHA1:   crypto.SHA1,
	w3c.AlgSHA224: crypto.SHA224,
	w3c.AlgSHA256: crypto.SHA256,
	w3c.AlgSHA384: crypto.SHA384,
	w3c.AlgSHA512: crypto.SHA512,
}

// Hash implements MessageDigestProvider.
func (p DefaultDigestProvider) Hash(algorithmURI string) (hash.Hash, error) {
	switch algorithmURI {
	case w3c.AlgSHA3_256:
		return sha3.New256(), nil
	case w3c.AlgSHA3_384:
		return sha3.New384(), nil
	case w3c.AlgSHA3_512:
		return sha3.New512(), nil
	}
	h, ok := digestAlgorithms[algorithmURI]
	if !ok || (p.DisallowSHA1 && h == crypto.SHA1) {
		return nil, fmt.Errorf("%w: digest %q", ErrUnsupportedAlgorithm, algorithmURI)
	}
	return h.New(), nil
}

// Digest hashes data with the algorithm named by algorithmURI.
func Digest(p MessageDigestProvider, algorithmURI string, data []byte) ([]byte, error) {
	h, err := p.Hash(algorithmURI)
	if err != nil {
		return nil, err
	}
	h.Write(data)
	return h.Sum(nil), nil
}
