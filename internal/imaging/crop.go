package imaging

import (
	"bytes"
	"fmt"
	"image"
	"image/jpeg"

	"golang.org/x/image/draw"

	"github.com/zombor/quicktotal/internal/geometry"
)

// Crop copies the part of img inside rect into a new image whose bounds
// start at the origin. rect is clamped to the image bounds first.
func Crop(img image.Image, rect image.Rectangle) (image.Image, error) {
	r := geometry.ClampTo(rect.Canon(), img.Bounds())
	if r.Empty() {
		return nil, fmt.Errorf("crop %v lies outside image bounds %v", rect, img.Bounds())
	}
	dst := image.NewRGBA(image.Rect(0, 0, r.Dx(), r.Dy()))
	draw.Draw(dst, dst.Bounds(), img, r.Min, draw.Src)
	return dst, nil
}

// CropJPEG decodes data, crops it and re-encodes the result as JPEG.
// This is what replacing a pending file with its cropped version produces.
func CropJPEG(data []byte, contentType string, rect image.Rectangle) ([]byte, error) {
	img, err := Decode(data, contentType)
	if err != nil {
		return nil, err
	}
	cropped, err := Crop(img, rect)
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, cropped, &jpeg.Options{Quality: 92}); err != nil {
		return nil, fmt.Errorf("encoding JPEG: %w", err)
	}
	return buf.Bytes(), nil
}

// Thumbnail scales img down so its longest side is at most maxSide.
// Smaller images are returned unchanged.
func Thumbnail(img image.Image, maxSide int) image.Image {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	if w <= maxSide && h <= maxSide {
		return img
	}
	if w >= h {
		h = h * maxSide / w
		w = maxSide
	} else {
		w = w * maxSide / h
		h = maxSide
	}
	if w < 1 {
		w = 1
	}
	if h < 1 {
		h = 1
	}
	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.ApproxBiLinear.Scale(dst, dst.Bounds(), img, b, draw.Src, nil)
	return dst
}
