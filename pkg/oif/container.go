package oif

import (
	"fmt"
	"image"
	"image/color"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/image/tiff"
)

// dataDirSuffix is appended to the container path to locate the plane
// data directory ("embryo07.oif" -> "embryo07.oif.files").
const dataDirSuffix = ".files"

// Container is an open OIF container. Open parses the main settings
// document; DiscoverAxes must succeed before planes can be read.
//
// A Container is not safe for concurrent use.
type Container struct {
	path     string
	settings *Settings
	index    *planeIndex
	layout   AxisLayout
	closed   bool
}

// Open opens the container at path and parses its settings document.
func Open(path string) (*Container, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFormat, err)
	}
	defer f.Close()

	settings, err := ParseSettings(f)
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}

	return &Container{path: path, settings: settings}, nil
}

// Path returns the container file path.
func (c *Container) Path() string { return c.path }

// Basename returns the container file name without its extension.
func (c *Container) Basename() string {
	name := filepath.Base(c.path)
	return strings.TrimSuffix(name, filepath.Ext(name))
}

// Settings returns the parsed main settings document.
func (c *Container) Settings() *Settings { return c.settings }

// DiscoverAxes enumerates the plane table and fixes the axis layout.
// It fails when the data directory is missing, the table cannot be
// parsed, or the container declares zero channels or depth slices.
func (c *Container) DiscoverAxes() (AxisLayout, error) {
	if c.closed {
		return AxisLayout{}, ErrClosed
	}
	if c.index != nil {
		return c.layout, nil
	}

	dataDir := c.path + dataDirSuffix
	info, err := os.Stat(dataDir)
	if err != nil || !info.IsDir() {
		return AxisLayout{}, fmt.Errorf("%w: data directory %s not found", ErrFormat, dataDir)
	}

	idx, err := buildIndex(dataDir)
	if err != nil {
		return AxisLayout{}, err
	}
	if idx.channels < 1 || idx.depths < 1 {
		return AxisLayout{}, fmt.Errorf("%w: container declares %d channels and %d depth slices", ErrFormat, idx.channels, idx.depths)
	}

	layout := AxisLayout{
		ChannelCount: idx.channels,
		DepthCount:   idx.depths,
		ValidBits:    16,
	}
	if bits, ok := c.settings.Int(sectionReference, keyValidBits); ok {
		layout.ValidBits = bits
	}
	switch {
	case layout.ValidBits >= 1 && layout.ValidBits <= 8:
		layout.SampleType = SampleUint8
	case layout.ValidBits >= 9 && layout.ValidBits <= 16:
		layout.SampleType = SampleUint16
	default:
		return AxisLayout{}, fmt.Errorf("%w: unsupported sample bit depth %d", ErrFormat, layout.ValidBits)
	}

	w, wok := c.settings.Int(sectionReference, keyImageWidth)
	h, hok := c.settings.Int(sectionReference, keyImageHeight)
	if wok && hok {
		layout.PlaneWidth, layout.PlaneHeight = w, h
	} else {
		// Older acquisitions omit the geometry keys; take it from the
		// first plane's TIFF header instead.
		layout.PlaneWidth, layout.PlaneHeight, err = idx.probeGeometry()
		if err != nil {
			return AxisLayout{}, err
		}
	}
	if layout.PlaneWidth < 1 || layout.PlaneHeight < 1 {
		return AxisLayout{}, fmt.Errorf("%w: invalid plane geometry %dx%d", ErrFormat, layout.PlaneWidth, layout.PlaneHeight)
	}

	c.index = idx
	c.layout = layout
	return layout, nil
}

// probeGeometry reads the TIFF header of one indexed plane.
func (idx *planeIndex) probeGeometry() (width, height int, err error) {
	var path string
	for _, p := range idx.files {
		path = p
		break
	}
	f, err := os.Open(path)
	if err != nil {
		return 0, 0, fmt.Errorf("%w: probing plane geometry: %v", ErrFormat, err)
	}
	defer f.Close()
	cfg, err := tiff.DecodeConfig(f)
	if err != nil {
		return 0, 0, fmt.Errorf("%w: probing plane geometry in %s: %v", ErrFormat, path, err)
	}
	return cfg.Width, cfg.Height, nil
}

// Layout returns the discovered axis layout. DiscoverAxes must have
// succeeded first.
func (c *Container) Layout() AxisLayout { return c.layout }

// CaptureDate returns the acquisition timestamp, if recorded.
func (c *Container) CaptureDate() (string, bool) { return c.settings.captureDate() }

// WidthConvert returns the per-pixel width calibration with unit.
func (c *Container) WidthConvert() (string, bool) {
	return c.settings.convert(keyWidthConvert, keyWidthUnit)
}

// HeightConvert returns the per-pixel height calibration with unit.
func (c *Container) HeightConvert() (string, bool) {
	return c.settings.convert(keyHeightConvert, keyHeightUnit)
}

// DepthConvert returns the Z step size with unit.
func (c *Container) DepthConvert() (string, bool) { return c.settings.depthConvert() }

// ReadPlane decodes the plane at the given zero-based coordinates.
func (c *Container) ReadPlane(channel, depth int) (*Plane, error) {
	if c.closed {
		return nil, ErrClosed
	}
	if c.index == nil {
		return nil, fmt.Errorf("%w: axes not discovered", ErrPlaneRead)
	}
	if channel < 0 || channel >= c.layout.ChannelCount || depth < 0 || depth >= c.layout.DepthCount {
		return nil, &PlaneError{Channel: channel, Depth: depth,
			Err: fmt.Errorf("out of bounds (%d channels, %d depth slices)", c.layout.ChannelCount, c.layout.DepthCount)}
	}
	path, ok := c.index.lookup(channel, depth)
	if !ok {
		return nil, &PlaneError{Channel: channel, Depth: depth, Err: fmt.Errorf("missing from container index")}
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, &PlaneError{Channel: channel, Depth: depth, Path: path, Err: err}
	}
	defer f.Close()

	img, err := tiff.Decode(f)
	if err != nil {
		return nil, &PlaneError{Channel: channel, Depth: depth, Path: path, Err: err}
	}
	bounds := img.Bounds()
	if bounds.Dx() != c.layout.PlaneWidth || bounds.Dy() != c.layout.PlaneHeight {
		return nil, &PlaneError{Channel: channel, Depth: depth, Path: path,
			Err: fmt.Errorf("plane is %dx%d, container declares %dx%d",
				bounds.Dx(), bounds.Dy(), c.layout.PlaneWidth, c.layout.PlaneHeight)}
	}

	plane := &Plane{
		Channel:    channel,
		Depth:      depth,
		Width:      bounds.Dx(),
		Height:     bounds.Dy(),
		Samples:    make([]uint16, bounds.Dx()*bounds.Dy()),
		SampleType: c.layout.SampleType,
		ValidBits:  c.layout.ValidBits,
	}
	fillSamples(plane, img)
	return plane, nil
}

// fillSamples widens the decoded image into the plane's row-major
// sample grid. Gray and Gray16 are the formats the acquisition software
// writes; anything else goes through the Gray16 color model.
func fillSamples(p *Plane, img image.Image) {
	bounds := img.Bounds()
	switch src := img.(type) {
	case *image.Gray16:
		i := 0
		for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
			row := src.Pix[(y-bounds.Min.Y)*src.Stride:]
			for x := 0; x < p.Width; x++ {
				p.Samples[i] = uint16(row[2*x])<<8 | uint16(row[2*x+1])
				i++
			}
		}
	case *image.Gray:
		i := 0
		for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
			row := src.Pix[(y-bounds.Min.Y)*src.Stride:]
			for x := 0; x < p.Width; x++ {
				p.Samples[i] = uint16(row[x])
				i++
			}
		}
	default:
		i := 0
		for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
			for x := bounds.Min.X; x < bounds.Max.X; x++ {
				g := color.Gray16Model.Convert(img.At(x, y)).(color.Gray16)
				p.Samples[i] = g.Y
				i++
			}
		}
	}
}

// Close releases the container. It is idempotent; a second call is a
// no-op. Reads after Close fail with ErrClosed.
func (c *Container) Close() error {
	if c.closed {
		return nil
	}
	c.closed = true
	c.index = nil
	return nil
}
