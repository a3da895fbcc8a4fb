package images

import (
	"bytes"
	"context"
	"encoding/binary"
	"hash/crc32"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"

	"github.com/ocgrimoire/grimoire-api/internal/worker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// memStore is an in-memory BlobStore that counts writes.
type memStore struct {
	mu       sync.Mutex
	blobs    map[string][]byte
	writes   int
	failNext error
}

func newMemStore() *memStore {
	return &memStore{blobs: make(map[string][]byte)}
}

func (m *memStore) Write(_ context.Context, name string, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.writes++
	if m.failNext != nil {
		err := m.failNext
		m.failNext = nil
		return err
	}
	m.blobs[name] = append([]byte(nil), data...)
	return nil
}

func (m *memStore) Remove(_ context.Context, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.blobs, name)
	return nil
}

func (m *memStore) snapshot() (map[string][]byte, int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string][]byte, len(m.blobs))
	for k, v := range m.blobs {
		out[k] = v
	}
	return out, m.writes
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestPipeline(t *testing.T) (*Pipeline, *memStore) {
	t.Helper()
	pool := worker.NewPool(worker.Config{WorkerCount: 2}, testLogger())
	pool.Start()
	t.Cleanup(pool.Stop)

	store := newMemStore()
	return NewPipeline(store, pool, testLogger()), store
}

func gradient(w, h int) image.Image {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{R: uint8(x % 256), G: uint8(y % 256), B: 128, A: 255})
		}
	}
	return img
}

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, gradient(w, h)))
	return buf.Bytes()
}

func jpegBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, jpeg.Encode(&buf, gradient(w, h), &jpeg.Options{Quality: 90}))
	return buf.Bytes()
}

// padPNG inserts a private ancillary chunk of n bytes after IHDR, producing a
// valid PNG whose payload size is dominated by the padding.
func padPNG(t *testing.T, data []byte, n int) []byte {
	t.Helper()
	const ihdrEnd = 8 + 4 + 4 + 13 + 4
	require.Greater(t, len(data), ihdrEnd)

	typ := []byte("prVt")
	body := make([]byte, n)

	var chunk bytes.Buffer
	_ = binary.Write(&chunk, binary.BigEndian, uint32(n))
	chunk.Write(typ)
	chunk.Write(body)
	crc := crc32.NewIEEE()
	_, _ = crc.Write(typ)
	_, _ = crc.Write(body)
	_ = binary.Write(&chunk, binary.BigEndian, crc.Sum32())

	out := make([]byte, 0, len(data)+chunk.Len())
	out = append(out, data[:ihdrEnd]...)
	out = append(out, chunk.Bytes()...)
	out = append(out, data[ihdrEnd:]...)
	return out
}

func TestPipeline_Ingest(t *testing.T) {
	t.Run("rejects a pdf without writing a blob", func(t *testing.T) {
		p, store := newTestPipeline(t)

		_, err := p.Ingest(context.Background(), Upload{
			Filename:    "notes.pdf",
			ContentType: "application/pdf",
			Data:        strings.NewReader("%PDF-1.4\n..."),
		})

		require.ErrorIs(t, err, ErrUnsupportedType)
		blobs, writes := store.snapshot()
		assert.Empty(t, blobs)
		assert.Zero(t, writes)
	})

	t.Run("rejects a pdf declared as png", func(t *testing.T) {
		p, store := newTestPipeline(t)

		_, err := p.Ingest(context.Background(), Upload{
			Filename:    "cover.png",
			ContentType: "image/png",
			Data:        strings.NewReader("%PDF-1.4\n%âãÏÓ\n1 0 obj\n"),
		})

		require.ErrorIs(t, err, ErrUnsupportedType)
		_, writes := store.snapshot()
		assert.Zero(t, writes)
	})

	t.Run("rejects a payload over the limit", func(t *testing.T) {
		p, store := newTestPipeline(t)
		data := padPNG(t, pngBytes(t, 10, 10), 5<<20)

		_, err := p.Ingest(context.Background(), Upload{
			Filename:    "big.png",
			ContentType: "image/png",
			Data:        bytes.NewReader(data),
		})

		require.ErrorIs(t, err, ErrPayloadTooLarge)
		_, writes := store.snapshot()
		assert.Zero(t, writes)
	})

	t.Run("accepts a 3 MiB png and stores a 500x643 jpeg", func(t *testing.T) {
		p, store := newTestPipeline(t)
		data := padPNG(t, pngBytes(t, 800, 600), 3<<20)
		require.Greater(t, len(data), 3<<20)

		res, err := p.Ingest(context.Background(), Upload{
			Filename:    "../../etc/My Cover!.PNG",
			ContentType: "image/png",
			Data:        bytes.NewReader(data),
		})
		require.NoError(t, err)

		assert.Equal(t, CoverWidth, res.Width)
		assert.Equal(t, CoverHeight, res.Height)
		assert.NotEmpty(t, res.BlurHash)
		assert.True(t, strings.HasPrefix(res.Name, "my_cover_"), res.Name)
		assert.True(t, strings.HasSuffix(res.Name, ".jpg"), res.Name)
		assert.NoError(t, ValidateName(res.Name))

		blobs, _ := store.snapshot()
		require.Contains(t, blobs, res.Name)
		cfg, format, err := image.DecodeConfig(bytes.NewReader(blobs[res.Name]))
		require.NoError(t, err)
		assert.Equal(t, "jpeg", format)
		assert.Equal(t, CoverWidth, cfg.Width)
		assert.Equal(t, CoverHeight, cfg.Height)
	})

	t.Run("accepts image/jpg and content type parameters", func(t *testing.T) {
		p, _ := newTestPipeline(t)

		res, err := p.Ingest(context.Background(), Upload{
			Filename:    "tall.jpeg",
			ContentType: "image/jpg; charset=binary",
			Data:        bytes.NewReader(jpegBytes(t, 300, 1200)),
		})
		require.NoError(t, err)
		assert.Equal(t, CoverWidth, res.Width)
	})

	t.Run("corrupt image removes the blob", func(t *testing.T) {
		p, store := newTestPipeline(t)
		data := pngBytes(t, 40, 40)
		truncated := data[:len(data)/2]

		_, err := p.Ingest(context.Background(), Upload{
			Filename:    "broken.png",
			ContentType: "image/png",
			Data:        bytes.NewReader(truncated),
		})

		require.ErrorIs(t, err, ErrCorruptImage)
		assert.True(t, IsClientError(err))
		blobs, writes := store.snapshot()
		assert.Empty(t, blobs)
		assert.Equal(t, 1, writes)
	})

	t.Run("store failure is not a client error", func(t *testing.T) {
		p, store := newTestPipeline(t)
		store.failNext = io.ErrShortWrite

		_, err := p.Ingest(context.Background(), Upload{
			Filename:    "a.png",
			ContentType: "image/png",
			Data:        bytes.NewReader(pngBytes(t, 20, 20)),
		})

		require.ErrorIs(t, err, io.ErrShortWrite)
		assert.False(t, IsClientError(err))
	})
}

// detachedRunner starts the job and reports cancellation without waiting for
// it, like a pool whose caller gave up.
type detachedRunner struct {
	done chan struct{}
}

func (r *detachedRunner) Do(ctx context.Context, job worker.Job) error {
	go func() {
		defer close(r.done)
		_ = job(context.Background())
	}()
	return context.Canceled
}

// secondWriteFails fails every write after the first.
type secondWriteFails struct {
	*memStore
}

func (s secondWriteFails) Write(ctx context.Context, name string, data []byte) error {
	s.mu.Lock()
	n := s.writes
	s.mu.Unlock()
	if n >= 1 {
		s.mu.Lock()
		s.writes++
		s.mu.Unlock()
		return io.ErrShortWrite
	}
	return s.memStore.Write(ctx, name, data)
}

func TestPipeline_Ingest_CancelledJobLeavesNoBlob(t *testing.T) {
	store := newMemStore()
	runner := &detachedRunner{done: make(chan struct{})}
	p := NewPipeline(store, runner, testLogger())

	_, err := p.Ingest(context.Background(), Upload{
		Filename:    "late.png",
		ContentType: "image/png",
		Data:        bytes.NewReader(pngBytes(t, 200, 200)),
	})
	require.ErrorIs(t, err, context.Canceled)

	<-runner.done
	blobs, writes := store.snapshot()
	assert.Empty(t, blobs)
	assert.Equal(t, 1, writes)
}

func TestPipeline_Ingest_TranscodedWriteFailureRemovesBlob(t *testing.T) {
	pool := worker.NewPool(worker.Config{WorkerCount: 1}, testLogger())
	pool.Start()
	t.Cleanup(pool.Stop)

	store := newMemStore()
	p := NewPipeline(secondWriteFails{store}, pool, testLogger())

	_, err := p.Ingest(context.Background(), Upload{
		Filename:    "a.png",
		ContentType: "image/png",
		Data:        bytes.NewReader(pngBytes(t, 20, 20)),
	})

	require.ErrorIs(t, err, io.ErrShortWrite)
	assert.False(t, IsClientError(err))
	blobs, writes := store.snapshot()
	assert.Empty(t, blobs)
	assert.Equal(t, 2, writes)
}

func TestPipeline_Remove(t *testing.T) {
	p, store := newTestPipeline(t)
	require.NoError(t, store.Write(context.Background(), "a_1_x.jpg", []byte("x")))

	require.NoError(t, p.Remove(context.Background(), "a_1_x.jpg"))
	require.NoError(t, p.Remove(context.Background(), ""))

	blobs, _ := store.snapshot()
	assert.Empty(t, blobs)
}

func TestCoverFit(t *testing.T) {
	tests := []struct {
		name string
		w, h int
	}{
		{"wide", 1600, 400},
		{"tall", 200, 2000},
		{"exact", CoverWidth, CoverHeight},
		{"tiny", 3, 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := coverFit(gradient(tt.w, tt.h), CoverWidth, CoverHeight)
			assert.Equal(t, CoverWidth, out.Bounds().Dx())
			assert.Equal(t, CoverHeight, out.Bounds().Dy())
		})
	}
}

func TestComputeBlurHash(t *testing.T) {
	hash, err := ComputeBlurHash(gradient(500, 643))
	require.NoError(t, err)
	// 4x3 components encode to 1+1+4+2*(4*3-1) characters.
	assert.Len(t, hash, 28)
}
