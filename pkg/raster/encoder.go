// Package raster converts decoded container planes into losslessly
// encoded 8-bit grayscale PNG images.
package raster

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/png"

	"github.com/BradhamLab/oif/pkg/oif"
)

// ErrEncode indicates a plane cannot be converted to the output raster
// format.
var ErrEncode = errors.New("plane encode failed")

// EncodePNG converts one plane to an 8-bit grayscale PNG. Sample values
// are linearly rescaled from the container-declared intensity range
// [0, 2^ValidBits-1] onto [0, 255]; an 8-bit plane passes through
// unchanged. Output dimensions always equal the plane's dimensions.
func EncodePNG(p *oif.Plane) ([]byte, error) {
	if p.Width <= 0 || p.Height <= 0 {
		return nil, fmt.Errorf("%w: plane has zero area (%dx%d)", ErrEncode, p.Width, p.Height)
	}
	if len(p.Samples) != p.Width*p.Height {
		return nil, fmt.Errorf("%w: plane has %d samples for %dx%d pixels", ErrEncode, len(p.Samples), p.Width, p.Height)
	}
	if p.SampleType != oif.SampleUint8 && p.SampleType != oif.SampleUint16 {
		return nil, fmt.Errorf("%w: no mapping for sample type %s", ErrEncode, p.SampleType)
	}
	if p.ValidBits < 1 || p.ValidBits > 16 {
		return nil, fmt.Errorf("%w: no mapping for %d-bit samples", ErrEncode, p.ValidBits)
	}

	// Truncating linear map onto the 8-bit range, anchored at the
	// declared bit depth rather than the observed range so that the
	// same intensity always encodes to the same gray level.
	maxSample := float64(uint32(1)<<uint(p.ValidBits) - 1)
	quotient := 255.0 / maxSample

	img := image.NewGray(image.Rect(0, 0, p.Width, p.Height))
	for i, v := range p.Samples {
		scaled := float64(v) * quotient
		if scaled > 255 {
			scaled = 255
		}
		img.Pix[i] = uint8(scaled)
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEncode, err)
	}
	return buf.Bytes(), nil
}
