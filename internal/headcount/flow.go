package headcount

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image/jpeg"

	"github.com/ashureev/rollcall/internal/capture"
	"github.com/ashureev/rollcall/internal/domain"
)

const jpegQuality = 85

// Estimate captures one still frame from dev, releases the device and asks
// the oracle for a count. The oracle is called once.
func Estimate(ctx context.Context, dev capture.Device, oracle Oracle) (int, error) {
	var buf bytes.Buffer
	err := capture.Use(ctx, dev, func(ctx context.Context, s capture.Stream) error {
		frame, err := s.Frame(ctx)
		if err != nil {
			return fmt.Errorf("capture frame: %w", err)
		}
		return jpeg.Encode(&buf, frame, &jpeg.Options{Quality: jpegQuality})
	})
	if err != nil {
		return 0, err
	}
	n, err := oracle.Estimate(ctx, buf.Bytes())
	if errors.Is(err, context.DeadlineExceeded) && !errors.Is(err, domain.ErrOracleUnavailable) {
		return 0, fmt.Errorf("%w: %v", domain.ErrOracleUnavailable, err)
	}
	return n, err
}
