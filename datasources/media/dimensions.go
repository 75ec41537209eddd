/*
	Timelinize
	Copyright (c) 2013 Matthew Holt

	This program is free software: you can redistribute it and/or modify
	it under the terms of the GNU Affero General Public License as published
	by the Free Software Foundation, either version 3 of the License, or
	(at your option) any later version.

	This program is distributed in the hope that it will be useful,
	but WITHOUT ANY WARRANTY; without even the implied warranty of
	MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
	GNU Affero General Public License for more details.

	You should have received a copy of the GNU Affero General Public License
	along with this program.  If not, see <https://www.gnu.org/licenses/>.
*/

package media

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"image"
	_ "image/gif" // register decoders for DecodeDimensions
	_ "image/jpeg"
	_ "image/png"
	"math"

	_ "github.com/gen2brain/avif"
	"github.com/timelinize/mediaimport/catalog"
	"go.n16f.net/thumbhash"
	_ "golang.org/x/image/bmp"
	"golang.org/x/image/draw"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// DecodeDimensions reads the pixel dimensions from an image header without
// decoding the pixels. It is best-effort: unsupported formats return false.
func DecodeDimensions(data []byte) (catalog.Dimensions, bool) {
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil || cfg.Width <= 0 || cfg.Height <= 0 {
		return catalog.Dimensions{}, false
	}
	return catalog.Dimensions{Width: cfg.Width, Height: cfg.Height}, true
}

// FitWithin scales d down, keeping its aspect ratio, so neither edge
// exceeds maxEdge. Dimensions that already fit are returned unchanged.
// Both results are even, as video encoders require.
func FitWithin(d catalog.Dimensions, maxEdge int) catalog.Dimensions {
	if d.Width <= 0 || d.Height <= 0 || maxEdge <= 0 {
		return d
	}
	if d.Width <= maxEdge && d.Height <= maxEdge {
		return d
	}
	scale := float64(maxEdge) / float64(max(d.Width, d.Height))
	even := func(v float64) int {
		n := int(math.Round(v/2)) * 2
		return max(n, 2)
	}
	return catalog.Dimensions{
		Width:  even(float64(d.Width) * scale),
		Height: even(float64(d.Height) * scale),
	}
}

// thumbhash only needs a tiny image
const thumbhashMaxEdge = 100

// Thumbhash decodes a thumbnail image and computes its ThumbHash. Like the
// hashes of the library UI, the exact aspect ratio is prepended as a
// big-endian float32 because the hash can only recover it approximately.
func Thumbhash(thumbnail []byte) ([]byte, error) {
	img, _, err := image.Decode(bytes.NewReader(thumbnail))
	if err != nil {
		return nil, fmt.Errorf("decoding thumbnail: %w", err)
	}
	b := img.Bounds()
	if b.Dx() == 0 || b.Dy() == 0 {
		return nil, fmt.Errorf("empty thumbnail")
	}

	small := FitWithin(catalog.Dimensions{Width: b.Dx(), Height: b.Dy()}, thumbhashMaxEdge)
	if small.Width != b.Dx() || small.Height != b.Dy() {
		dst := image.NewRGBA(image.Rect(0, 0, small.Width, small.Height))
		draw.BiLinear.Scale(dst, dst.Bounds(), img, b, draw.Src, nil)
		img = dst
	}

	aspectRatio := float32(b.Dx()) / float32(b.Dy())
	var pre [4]byte
	binary.BigEndian.PutUint32(pre[:], math.Float32bits(aspectRatio))

	return append(pre[:], thumbhash.EncodeImage(img)...), nil
}
