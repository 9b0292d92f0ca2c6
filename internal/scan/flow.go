// Package scan runs the attendee side of attendance: read camera frames,
// find the attendance code, and redeem it.
package scan

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/ashureev/rollcall/internal/capture"
	"github.com/ashureev/rollcall/internal/domain"
	"github.com/ashureev/rollcall/internal/token"
)

// Redeemer validates a scanned payload and records the attendee.
type Redeemer interface {
	Redeem(ctx context.Context, payload []byte, attendeeID string) (domain.RedeemResult, error)
}

// Flow scans until one code is redeemed. Rejected codes are reported and
// scanning resumes with the next frame.
type Flow struct {
	redeemer Redeemer
	onReject func(error)
}

// Option configures a Flow.
type Option func(*Flow)

// OnReject is called for each rejected code before scanning resumes.
func OnReject(fn func(error)) Option {
	return func(f *Flow) { f.onReject = fn }
}

// NewFlow creates a scan flow.
func NewFlow(r Redeemer, opts ...Option) *Flow {
	f := &Flow{redeemer: r, onReject: func(error) {}}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Run reads frames from dev until a code is redeemed, the stream ends or
// ctx is cancelled. The camera is released on every path. When the stream
// ends without success the last rejection is returned, or
// domain.ErrNoCodeFound if no code was seen.
func (f *Flow) Run(ctx context.Context, dev capture.Device, attendeeID string) (domain.RedeemResult, error) {
	var result domain.RedeemResult
	err := capture.Use(ctx, dev, func(ctx context.Context, s capture.Stream) error {
		var (
			lastReject  error
			lastPayload []byte
		)
		for {
			frame, err := s.Frame(ctx)
			if errors.Is(err, io.EOF) {
				if lastReject != nil {
					return lastReject
				}
				return domain.ErrNoCodeFound
			}
			if err != nil {
				return fmt.Errorf("read frame: %w", err)
			}

			payload, err := token.DecodeImage(frame)
			if err != nil {
				continue
			}
			if lastReject != nil && bytes.Equal(payload, lastPayload) {
				continue
			}

			res, err := f.redeemer.Redeem(ctx, payload, attendeeID)
			if err == nil {
				result = res
				return nil
			}
			if !domain.IsScanRejection(err) {
				return err
			}
			slog.Debug("Scan rejected, resuming", "attendee_id", attendeeID, "error", err)
			f.onReject(err)
			lastReject, lastPayload = err, payload
		}
	})
	if err != nil {
		return domain.RedeemResult{}, err
	}
	return result, nil
}
