package mocks

import (
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/ocgrimoire/grimoire-api/internal/media/images"
)

// MockImageIngester records ingested and removed names in memory.
type MockImageIngester struct {
	IngestFn func(ctx context.Context, up images.Upload) (*images.Result, error)
	RemoveFn func(ctx context.Context, name string) error

	mu      sync.Mutex
	counter int
	stored  map[string]bool
	removed []string
}

// NewMockImageIngester creates an empty ingester.
func NewMockImageIngester() *MockImageIngester {
	return &MockImageIngester{stored: make(map[string]bool)}
}

// Ingest drains the upload and stores a generated name.
func (m *MockImageIngester) Ingest(ctx context.Context, up images.Upload) (*images.Result, error) {
	if m.IngestFn != nil {
		return m.IngestFn(ctx, up)
	}
	if up.Data != nil {
		if _, err := io.Copy(io.Discard, up.Data); err != nil {
			return nil, err
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.counter++
	name := fmt.Sprintf("image_%d.jpg", m.counter)
	m.stored[name] = true
	return &images.Result{
		Name:     name,
		BlurHash: "LEHV6nWB2yk8pyo0adR*.7kCMdnj",
		Width:    images.CoverWidth,
		Height:   images.CoverHeight,
	}, nil
}

// Remove forgets name.
func (m *MockImageIngester) Remove(ctx context.Context, name string) error {
	if m.RemoveFn != nil {
		return m.RemoveFn(ctx, name)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.stored, name)
	m.removed = append(m.removed, name)
	return nil
}

// Stored returns the names currently held.
func (m *MockImageIngester) Stored() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	names := make([]string, 0, len(m.stored))
	for name := range m.stored {
		names = append(names, name)
	}
	return names
}

// Removed returns every name passed to Remove, in order.
func (m *MockImageIngester) Removed() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.removed...)
}
