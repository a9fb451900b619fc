// Package policy provides signature policy documents to the verifier of the
// SignaturePolicyIdentifier property.
package policy

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
)

// ErrPolicyNotAvailable is returned when no document is known for a policy
// identifier.
var ErrPolicyNotAvailable = errors.New("signature policy document not available")

// DocumentProvider returns the document of a signature policy.
type DocumentProvider interface {
	Document(ctx context.Context, identifier string) ([]byte, error)
}

// MapProvider serves documents held in memory.
type MapProvider struct {
	mu   sync.RWMutex
	docs map[string][]byte
}

// NewMapProvider creates a provider with the given documents.
func NewMapProvider(docs map[string][]byte) *MapProvider {
	p := &MapProvider{docs: make(map[string][]byte, len(docs))}
	for id, doc := range docs {
		p.docs[id] = doc
	}
	return p
}

// Add registers doc under identifier, replacing any previous document.
func (p *MapProvider) Add(identifier string, doc []byte) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.docs[identifier] = doc
}

// Document implements DocumentProvider.
func (p *MapProvider) Document(_ context.Context, identifier string) ([]byte, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	doc, ok := p.docs[identifier]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrPolicyNotAvailable, identifier)
	}
	return doc, nil
}

// FileProvider reads policy documents from files, keyed by identifier.
type FileProvider struct {
	Files map[string]string
}

// Document implements DocumentProvider.
func (p *FileProvider) Document(ctx context.Context, identifier string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	path, ok := p.Files[identifier]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrPolicyNotAvailable, identifier)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %q: %v", ErrPolicyNotAvailable, identifier, err)
	}
	return data, nil
}
