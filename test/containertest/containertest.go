// Package containertest synthesizes OIF containers on disk for tests.
//
// A synthetic container is a real UTF-16 settings document plus a data
// directory of Gray16 TIFF planes, so tests exercise the same decode
// paths as production containers.
//
// Usage:
//
//	path := containertest.Write(t, t.TempDir(), containertest.Spec{
//	    Basename: "embryo07",
//	    Channels: 2,
//	    Depths:   3,
//	})
package containertest

import (
	"fmt"
	"image"
	"os"
	"path/filepath"
	"testing"

	"golang.org/x/image/tiff"
	"golang.org/x/text/encoding/unicode"
)

// Spec describes the synthetic container to write.
type Spec struct {
	Basename string

	// Channels and Depths are the axis extents. Default 2 and 3.
	Channels int
	Depths   int

	// Width and Height are the plane geometry. Default 8x6.
	Width  int
	Height int

	// ValidBits is the declared sample bit depth. Default 12.
	ValidBits int

	// CaptureDate, when set, is recorded in the settings document.
	CaptureDate string

	// OmitGeometryKeys drops ImageWidth/ImageHeight from the settings
	// so discovery must probe a plane's TIFF header.
	OmitGeometryKeys bool

	// OmitPlanes lists zero-based (channel, depth) pairs whose TIFF
	// files are not written, punching holes in the plane table.
	OmitPlanes [][2]int
}

func (s *Spec) applyDefaults() {
	if s.Basename == "" {
		s.Basename = "sample"
	}
	if s.Channels == 0 {
		s.Channels = 2
	}
	if s.Depths == 0 {
		s.Depths = 3
	}
	if s.Width == 0 {
		s.Width = 8
	}
	if s.Height == 0 {
		s.Height = 6
	}
	if s.ValidBits == 0 {
		s.ValidBits = 12
	}
}

// PlaneValue is the deterministic sample value written at (x, y) of the
// zero-based (channel, depth) plane. Tests use it to verify decoded and
// rescaled pixel content.
func PlaneValue(validBits, channel, depth, x, y int) uint16 {
	max := uint32(1)<<uint(validBits) - 1
	v := uint32(x + 13*y + 101*channel + 211*depth)
	return uint16(v % (max + 1))
}

// Write materializes the container under dir and returns the path of
// the .oif settings file.
func Write(t *testing.T, dir string, spec Spec) string {
	t.Helper()
	spec.applyDefaults()

	oifPath := filepath.Join(dir, spec.Basename+".oif")
	writeSettings(t, oifPath, spec)

	dataDir := oifPath + ".files"
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		t.Fatalf("creating data dir: %v", err)
	}

	omitted := make(map[[2]int]bool, len(spec.OmitPlanes))
	for _, p := range spec.OmitPlanes {
		omitted[p] = true
	}

	for c := 0; c < spec.Channels; c++ {
		for z := 0; z < spec.Depths; z++ {
			if omitted[[2]int{c, z}] {
				continue
			}
			name := fmt.Sprintf("s_C%03dZ%03d.tif", c+1, z+1)
			writePlane(t, filepath.Join(dataDir, name), spec, c, z)
		}
	}

	// Sidecar files live alongside planes; discovery must skip them.
	if err := os.WriteFile(filepath.Join(dataDir, "s_C001Z001.pty"), []byte("sidecar"), 0o644); err != nil {
		t.Fatalf("writing sidecar: %v", err)
	}

	return oifPath
}

// WriteSettingsOnly writes just the .oif settings document, with no
// data directory.
func WriteSettingsOnly(t *testing.T, dir string, spec Spec) string {
	t.Helper()
	spec.applyDefaults()
	oifPath := filepath.Join(dir, spec.Basename+".oif")
	writeSettings(t, oifPath, spec)
	return oifPath
}

func writeSettings(t *testing.T, path string, spec Spec) {
	t.Helper()

	text := "[Version Info]\r\n" +
		"FileVersion=\"2.0.0.0\"\r\n"
	if spec.CaptureDate != "" {
		text += "[Acquisition Parameters Common]\r\n" +
			"ImageCaputreDate='" + spec.CaptureDate + "'\r\n"
	}
	text += "[Reference Image Parameter]\r\n" +
		fmt.Sprintf("ValidBitCounts=%d\r\n", spec.ValidBits) +
		"WidthConvertValue=1.656\r\n" +
		"WidthUnit=\"um\"\r\n" +
		"HeightConvertValue=1.656\r\n" +
		"HeightUnit=\"um\"\r\n"
	if !spec.OmitGeometryKeys {
		text += fmt.Sprintf("ImageWidth=%d\r\n", spec.Width) +
			fmt.Sprintf("ImageHeight=%d\r\n", spec.Height)
	}
	text += "[Axis Parameter Common]\r\n" +
		"AxisOrder=\"XYZ\"\r\n" +
		"[Axis 2 Parameters Common]\r\n" +
		"Interval=1.2\r\n" +
		"UnitName=\"um\"\r\n"

	enc := unicode.UTF16(unicode.LittleEndian, unicode.UseBOM).NewEncoder()
	data, err := enc.Bytes([]byte(text))
	if err != nil {
		t.Fatalf("encoding settings as UTF-16: %v", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("writing settings: %v", err)
	}
}

func writePlane(t *testing.T, path string, spec Spec, channel, depth int) {
	t.Helper()

	img := image.NewGray16(image.Rect(0, 0, spec.Width, spec.Height))
	for y := 0; y < spec.Height; y++ {
		for x := 0; x < spec.Width; x++ {
			v := PlaneValue(spec.ValidBits, channel, depth, x, y)
			i := y*img.Stride + 2*x
			img.Pix[i] = byte(v >> 8)
			img.Pix[i+1] = byte(v)
		}
	}

	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("creating plane %s: %v", path, err)
	}
	defer f.Close()
	if err := tiff.Encode(f, img, nil); err != nil {
		t.Fatalf("encoding plane %s: %v", path, err)
	}
}
