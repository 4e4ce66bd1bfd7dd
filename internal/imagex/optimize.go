// Package imagex recompresses images to fit the remote store's per-asset
// size ceiling. Large uncompressed photos are the primary upload source, so
// every asset goes through Optimize before upload.
package imagex

import (
	"bytes"
	"fmt"
	"image"
	_ "image/gif"
	"image/jpeg"
	_ "image/png"

	"golang.org/x/image/draw"

	"github.com/nadavital/cauldron/internal/common"
)

// qualities are tried in order before dimensions are reduced.
var qualities = []int{80, 60, 40}

// minDimension is the floor below which downscaling gives up.
const minDimension = 200

// Optimize re-encodes data as JPEG so the result does not exceed
// targetBytes. The source is first clamped to maxDimension on its longer
// side, then encoded at decreasing quality; if still oversized, pixel
// dimensions are reduced proportionally and encoding retried. Returns
// common.ErrCompressionFailed for undecodable input and
// common.ErrAssetTooLarge when no combination fits.
func Optimize(data []byte, maxDimension, targetBytes int) ([]byte, error) {
	src, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: decode: %v", common.ErrCompressionFailed, err)
	}

	img := scaleDown(src, maxDimension)

	for _, q := range qualities {
		out, err := encodeJPEG(img, q)
		if err != nil {
			return nil, err
		}
		if len(out) <= targetBytes {
			return out, nil
		}
	}

	// Lowest quality did not fit; shrink dimensions until it does or until
	// the floor is reached.
	dim := longerSide(img)
	for {
		dim = dim * 7 / 10
		if dim < minDimension {
			return nil, common.ErrAssetTooLarge
		}
		img = scaleDown(img, dim)
		out, err := encodeJPEG(img, qualities[len(qualities)-1])
		if err != nil {
			return nil, err
		}
		if len(out) <= targetBytes {
			return out, nil
		}
	}
}

func longerSide(img image.Image) int {
	b := img.Bounds()
	if b.Dx() > b.Dy() {
		return b.Dx()
	}
	return b.Dy()
}

// scaleDown returns img resized so its longer side is at most maxDim,
// preserving aspect ratio. Images already within bounds are returned as-is.
func scaleDown(img image.Image, maxDim int) image.Image {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	if maxDim <= 0 || (w <= maxDim && h <= maxDim) {
		return img
	}

	var nw, nh int
	if w > h {
		nw = maxDim
		nh = h * maxDim / w
	} else {
		nh = maxDim
		nw = w * maxDim / h
	}
	if nw < 1 {
		nw = 1
	}
	if nh < 1 {
		nh = 1
	}

	dst := image.NewRGBA(image.Rect(0, 0, nw, nh))
	draw.CatmullRom.Scale(dst, dst.Bounds(), img, b, draw.Over, nil)
	return dst
}

func encodeJPEG(img image.Image, quality int) ([]byte, error) {
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: quality}); err != nil {
		return nil, fmt.Errorf("%w: encode: %v", common.ErrCompressionFailed, err)
	}
	return buf.Bytes(), nil
}
