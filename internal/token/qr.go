package token

import (
	"errors"
	"fmt"
	"image"

	"github.com/makiuchi-d/gozxing"
	zxingqr "github.com/makiuchi-d/gozxing/qrcode"
	qrcode "github.com/skip2/go-qrcode"

	"github.com/ashureev/rollcall/internal/domain"
)

// DefaultQRSize is the rendered QR edge length in pixels.
const DefaultQRSize = 288

// RenderPNG encodes a token as a PNG QR code with high error correction.
func RenderPNG(t domain.Token, size int) ([]byte, error) {
	if size <= 0 {
		size = DefaultQRSize
	}
	data, err := Encode(t)
	if err != nil {
		return nil, err
	}
	png, err := qrcode.Encode(string(data), qrcode.High, size)
	if err != nil {
		return nil, fmt.Errorf("render qr: %w", err)
	}
	return png, nil
}

// DecodeImage extracts the text of the first QR code found in img.
func DecodeImage(img image.Image) ([]byte, error) {
	if img == nil {
		return nil, errors.New("decode qr: nil image")
	}
	bmp, err := gozxing.NewBinaryBitmapFromImage(img)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrNoCodeFound, err)
	}
	result, err := zxingqr.NewQRCodeReader().Decode(bmp, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrNoCodeFound, err)
	}
	return []byte(result.GetText()), nil
}
