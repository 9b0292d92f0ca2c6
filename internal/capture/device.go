// Package capture models camera access as a scoped resource.
package capture

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	_ "image/jpeg" // register decoders for uploaded frames
	_ "image/png"
	"io"
	"log/slog"
	"sync"

	"github.com/ashureev/rollcall/internal/domain"
)

// Device opens camera streams.
type Device interface {
	Open(ctx context.Context) (Stream, error)
}

// Stream yields frames until it returns io.EOF. Close stops the underlying
// tracks and must be safe to call more than once.
type Stream interface {
	Frame(ctx context.Context) (image.Image, error)
	Close() error
}

// Use acquires a stream, runs fn with it and always releases it, whatever
// fn returns (including when ctx is cancelled or fn panics). Failure to
// acquire wraps domain.ErrCameraUnavailable, except for an unreadable
// image, which surfaces as domain.ErrInvalidImage.
func Use(ctx context.Context, dev Device, fn func(ctx context.Context, s Stream) error) error {
	if dev == nil {
		return fmt.Errorf("%w: no device", domain.ErrCameraUnavailable)
	}
	stream, err := dev.Open(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if errors.Is(err, domain.ErrInvalidImage) {
			return err
		}
		return fmt.Errorf("%w: %v", domain.ErrCameraUnavailable, err)
	}
	defer func() {
		if closeErr := stream.Close(); closeErr != nil {
			slog.Debug("Failed to release camera stream", "error", closeErr)
		}
	}()
	return fn(ctx, stream)
}

// StillDevice serves a single uploaded image as a one-frame stream.
type StillDevice struct {
	data []byte
}

// NewStillDevice wraps encoded image bytes (JPEG or PNG).
func NewStillDevice(data []byte) *StillDevice {
	return &StillDevice{data: data}
}

// Open decodes the image. Empty or undecodable data wraps
// domain.ErrInvalidImage.
func (d *StillDevice) Open(ctx context.Context) (Stream, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(d.data) == 0 {
		return nil, fmt.Errorf("%w: empty", domain.ErrInvalidImage)
	}
	img, _, err := image.Decode(bytes.NewReader(d.data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrInvalidImage, err)
	}
	return &stillStream{img: img}, nil
}

type stillStream struct {
	mu     sync.Mutex
	img    image.Image
	served bool
	closed bool
}

func (s *stillStream) Frame(ctx context.Context) (image.Image, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, errors.New("stream closed")
	}
	if s.served {
		return nil, io.EOF
	}
	s.served = true
	return s.img, nil
}

func (s *stillStream) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	s.img = nil
	return nil
}
