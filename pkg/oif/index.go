package oif

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
)

// planeNamePattern matches the per-plane TIFF names written by the
// acquisition software, e.g. "s_C001Z004.tif" or "s_C002Z010T001.tif".
// Axis components are optional in the name; their absence is diagnosed
// after enumeration.
var planeNamePattern = regexp.MustCompile(`(?i)^s_(?:C(\d+))?(?:Z(\d+))?(?:T(\d+))?\.tif$`)

// planeKey addresses one plane by zero-based (channel, depth) indices.
type planeKey struct {
	c, z int
}

// planeIndex is the fully parsed table of contents of a container's data
// directory: a mapping from plane coordinates to file paths plus the
// axis extents implied by the enumerated names.
type planeIndex struct {
	dir      string
	files    map[planeKey]string
	channels int
	depths   int
}

// buildIndex enumerates dataDir and parses every plane file name into
// the index. The whole table is built before any plane is read because
// axis extents come from the names, not from file order or position.
func buildIndex(dataDir string) (*planeIndex, error) {
	entries, err := os.ReadDir(dataDir)
	if err != nil {
		return nil, fmt.Errorf("%w: reading data directory %s: %v", ErrFormat, dataDir, err)
	}

	idx := &planeIndex{dir: dataDir, files: make(map[planeKey]string)}
	sawChannel := false
	sawDepth := false

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		m := planeNamePattern.FindStringSubmatch(entry.Name())
		if m == nil {
			// Sidecar files (.pty, .lut, .roi) live alongside the planes.
			continue
		}
		c, z, t := m[1], m[2], m[3]
		if t != "" {
			if n, _ := strconv.Atoi(t); n > 1 {
				return nil, fmt.Errorf("%w: %s: time series with more than one point are not supported", ErrFormat, entry.Name())
			}
		}
		if c == "" || z == "" {
			if c != "" {
				sawChannel = true
			}
			if z != "" {
				sawDepth = true
			}
			continue
		}
		sawChannel, sawDepth = true, true

		// Names are 1-based; the index is 0-based.
		ci, _ := strconv.Atoi(c)
		zi, _ := strconv.Atoi(z)
		if ci < 1 || zi < 1 {
			return nil, fmt.Errorf("%w: %s: plane indices start at 1", ErrFormat, entry.Name())
		}
		key := planeKey{c: ci - 1, z: zi - 1}
		if prev, dup := idx.files[key]; dup {
			return nil, fmt.Errorf("%w: duplicate plane (channel %d, z %d): %s and %s", ErrFormat, key.c, key.z, prev, entry.Name())
		}
		idx.files[key] = filepath.Join(dataDir, entry.Name())
		if ci > idx.channels {
			idx.channels = ci
		}
		if zi > idx.depths {
			idx.depths = zi
		}
	}

	if len(idx.files) == 0 {
		switch {
		case sawChannel && !sawDepth:
			return nil, fmt.Errorf("%w: container has no depth axis", ErrFormat)
		case sawDepth && !sawChannel:
			return nil, fmt.Errorf("%w: container has no channel axis", ErrFormat)
		default:
			return nil, fmt.Errorf("%w: no image planes found in %s", ErrFormat, dataDir)
		}
	}
	return idx, nil
}

// lookup returns the file path for a plane, or "" when the coordinate is
// inside the axis extents but the file was absent from the enumeration.
func (idx *planeIndex) lookup(channel, depth int) (string, bool) {
	p, ok := idx.files[planeKey{c: channel, z: depth}]
	return p, ok
}
