// Package qr reads location codes out of photos and renders printable labels.
package qr

import (
	"bytes"
	"fmt"
	"image"
	"image/color"

	"github.com/disintegration/imaging"
	"github.com/makiuchi-d/gozxing"
	"github.com/makiuchi-d/gozxing/qrcode"
)

// Decoder extracts the text of the first QR code found in an image.
type Decoder struct{}

func NewDecoder() *Decoder { return &Decoder{} }

// Decode returns the QR payload, or "" when the data is not an image or no
// code could be read. It never panics.
func (d *Decoder) Decode(data []byte) string {
	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return ""
	}
	for _, prepare := range passes {
		if text := decodeImage(prepare(img)); text != "" {
			return text
		}
	}
	return ""
}

// passes are tried in order until one yields a code.
var passes = []func(image.Image) image.Image{
	func(img image.Image) image.Image { return img },
	enhance,
	func(img image.Image) image.Image { return imaging.Invert(enhance(img)) },
}

// enhance boosts a low-contrast or blurry phone photo.
func enhance(img image.Image) image.Image {
	gray := imaging.Grayscale(img)
	if w := gray.Bounds().Dx(); w < 400 {
		gray = imaging.Resize(gray, w*2, 0, imaging.Lanczos)
	}
	contrast := imaging.AdjustContrast(gray, 60)
	return imaging.Sharpen(contrast, 1.5)
}

func decodeImage(img image.Image) (text string) {
	defer func() {
		if recover() != nil {
			text = ""
		}
	}()
	bmp, err := gozxing.NewBinaryBitmapFromImage(img)
	if err != nil {
		return ""
	}
	hints := map[gozxing.DecodeHintType]interface{}{
		gozxing.DecodeHintType_TRY_HARDER: true,
	}
	result, err := qrcode.NewQRCodeReader().Decode(bmp, hints)
	if err != nil {
		return ""
	}
	return result.GetText()
}

// Label renders token as a PNG QR code of size×size pixels on a white
// background.
func Label(token string, size int) ([]byte, error) {
	if token == "" {
		return nil, fmt.Errorf("render label: empty token")
	}
	if size < 64 {
		size = 64
	}
	matrix, err := qrcode.NewQRCodeWriter().Encode(token, gozxing.BarcodeFormat_QR_CODE, size, size, nil)
	if err != nil {
		return nil, fmt.Errorf("render label: %w", err)
	}
	canvas := imaging.New(matrix.GetWidth(), matrix.GetHeight(), color.White)
	canvas = imaging.Overlay(canvas, matrix, image.Pt(0, 0), 1.0)

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, canvas, imaging.PNG); err != nil {
		return nil, fmt.Errorf("encode label: %w", err)
	}
	return buf.Bytes(), nil
}
