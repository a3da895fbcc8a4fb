package images

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/ocgrimoire/grimoire-api/internal/platform/logger"
	"github.com/ocgrimoire/grimoire-api/internal/redact"
	"github.com/ocgrimoire/grimoire-api/internal/worker"
)

// MaxUploadBytes is the largest accepted image payload.
const MaxUploadBytes = 4 << 20

var acceptedTypes = map[string]struct{}{
	"image/jpeg": {},
	"image/jpg":  {},
	"image/png":  {},
}

// Upload is an image as received from a client.
type Upload struct {
	Filename    string
	ContentType string
	Data        io.Reader
}

// Result describes a stored, transcoded image.
type Result struct {
	Name     string
	BlurHash string
	Width    int
	Height   int
}

// Runner executes a job and waits for it. *worker.Pool satisfies it.
type Runner interface {
	Do(ctx context.Context, job worker.Job) error
}

// Pipeline validates, persists and transcodes uploads.
type Pipeline struct {
	store    BlobStore
	runner   Runner
	logger   *slog.Logger
	maxBytes int64
	now      func() time.Time
}

// NewPipeline creates a Pipeline writing to store and transcoding on runner.
func NewPipeline(store BlobStore, runner Runner, logger *slog.Logger) *Pipeline {
	if store == nil {
		panic("store cannot be nil")
	}
	if runner == nil {
		panic("runner cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Pipeline{
		store:    store,
		runner:   runner,
		logger:   logger.With(slog.String("component", "image_pipeline")),
		maxBytes: MaxUploadBytes,
		now:      time.Now,
	}
}

// Ingest runs an upload through the pipeline. Nothing is left in the store
// when it returns an error.
func (p *Pipeline) Ingest(ctx context.Context, up Upload) (*Result, error) {
	log := logger.FromContextOrDefault(ctx, p.logger)

	if !acceptedType(up.ContentType) {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedType, up.ContentType)
	}
	if up.Data == nil {
		return nil, fmt.Errorf("%w: empty payload", ErrCorruptImage)
	}

	data, err := io.ReadAll(io.LimitReader(up.Data, p.maxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read upload: %w", err)
	}
	if int64(len(data)) > p.maxBytes {
		return nil, ErrPayloadTooLarge
	}

	sniffed := mimetype.Detect(data)
	if !sniffed.Is("image/jpeg") && !sniffed.Is("image/png") {
		return nil, fmt.Errorf("%w: content is %s", ErrUnsupportedType, sniffed.String())
	}

	name, err := NewName(up.Filename, p.now())
	if err != nil {
		return nil, fmt.Errorf("failed to generate image name: %w", err)
	}

	if err := p.store.Write(ctx, name, data); err != nil {
		return nil, fmt.Errorf("failed to persist image: %w", err)
	}

	var cover transcoded
	err = p.runner.Do(ctx, func(jobCtx context.Context) error {
		var err error
		cover, err = transcode(jobCtx, data)
		return err
	})
	if err != nil {
		// The job may still be running after a cancelled Do; it never touches
		// the store, so removing the raw blob here is final.
		p.rollback(log, name)
		return nil, err
	}

	if err := p.store.Write(ctx, name, cover.data); err != nil {
		p.rollback(log, name)
		return nil, fmt.Errorf("failed to replace image with transcoded cover: %w", err)
	}

	log.Debug("image ingested",
		slog.String("name", name),
		slog.Int("bytes", len(data)),
		slog.String("detected", sniffed.String()))
	return &Result{
		Name:     name,
		BlurHash: cover.blurHash,
		Width:    CoverWidth,
		Height:   CoverHeight,
	}, nil
}

type transcoded struct {
	data     []byte
	blurHash string
}

// transcode decodes data and renders the JPEG cover and its blurhash.
func transcode(ctx context.Context, data []byte) (transcoded, error) {
	src, err := decode(data)
	if err != nil {
		return transcoded{}, err
	}
	if err := ctx.Err(); err != nil {
		return transcoded{}, err
	}

	cover := coverFit(src, CoverWidth, CoverHeight)
	encoded, err := encodeJPEG(cover, JPEGQuality)
	if err != nil {
		return transcoded{}, err
	}

	hash, err := ComputeBlurHash(cover)
	if err != nil {
		return transcoded{}, err
	}
	return transcoded{data: encoded, blurHash: hash}, nil
}

// rollback removes a partially ingested blob. It runs on a fresh context so
// that a cancelled request still cleans up.
func (p *Pipeline) rollback(log *slog.Logger, name string) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := p.store.Remove(ctx, name); err != nil {
		log.Error("failed to remove image after ingestion failure",
			slog.String("name", name),
			slog.String("error", redact.Error(err)))
	}
}

// Remove deletes a previously ingested image. An empty name is a no-op.
func (p *Pipeline) Remove(ctx context.Context, name string) error {
	if name == "" {
		return nil
	}
	if err := p.store.Remove(ctx, name); err != nil {
		return fmt.Errorf("failed to remove image %q: %w", name, err)
	}
	return nil
}

// IsClientError reports whether err was caused by the upload itself rather
// than by the server.
func IsClientError(err error) bool {
	return errors.Is(err, ErrUnsupportedType) ||
		errors.Is(err, ErrPayloadTooLarge) ||
		errors.Is(err, ErrCorruptImage)
}

func acceptedType(contentType string) bool {
	mediaType := strings.ToLower(strings.TrimSpace(contentType))
	if i := strings.IndexByte(mediaType, ';'); i >= 0 {
		mediaType = strings.TrimSpace(mediaType[:i])
	}
	_, ok := acceptedTypes[mediaType]
	return ok
}
