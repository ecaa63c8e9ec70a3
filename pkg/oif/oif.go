// Package oif reads Olympus OIF microscopy containers.
//
// An OIF acquisition is a UTF-16 encoded main settings document plus a
// sibling data directory (<name>.oif.files) holding one TIFF per
// (channel, z-slice) plane. Opening a container parses the settings
// document; axis discovery then enumerates the data directory into a
// complete plane table before any plane is read. Channel and depth
// indices are zero-based and contiguous, assigned by the enumeration
// order found in that table.
package oif

import (
	"errors"
	"fmt"
)

// Sentinel errors returned by container operations. Wrapped errors carry
// detail; callers should match with errors.Is.
var (
	// ErrFormat indicates the container cannot be opened or its plane
	// index cannot be parsed.
	ErrFormat = errors.New("unreadable OIF container")

	// ErrPlaneRead indicates a specific (channel, depth) plane is out of
	// bounds, missing, or corrupt.
	ErrPlaneRead = errors.New("plane read failed")

	// ErrClosed indicates an operation on a closed container.
	ErrClosed = errors.New("container is closed")
)

// SampleType identifies the per-pixel sample encoding of decoded planes.
type SampleType int

const (
	SampleUnknown SampleType = iota
	SampleUint8
	SampleUint16
)

// String returns a short name for the sample type.
func (s SampleType) String() string {
	switch s {
	case SampleUint8:
		return "uint8"
	case SampleUint16:
		return "uint16"
	default:
		return "unknown"
	}
}

// ByteSize returns the storage size of one sample in bytes.
func (s SampleType) ByteSize() int {
	if s == SampleUint8 {
		return 1
	}
	return 2
}

// AxisLayout is the discovered shape of a container: how many channels
// and depth slices it holds and the geometry of each 2D plane. It is
// fixed once discovery succeeds.
type AxisLayout struct {
	ChannelCount int
	DepthCount   int
	PlaneWidth   int
	PlaneHeight  int
	SampleType   SampleType

	// ValidBits is the sample bit depth declared by the acquisition
	// (e.g. 12 for a 12-bit detector stored in 16-bit samples).
	ValidBits int
}

// PlaneBytes returns the in-memory size of one decoded plane.
func (l AxisLayout) PlaneBytes() int64 {
	return int64(l.PlaneWidth) * int64(l.PlaneHeight) * int64(l.SampleType.ByteSize())
}

// Plane is the raw 2D sample grid for one (channel, depth) pair.
// Samples are row-major, one value per pixel, widened to uint16
// regardless of the source sample type.
type Plane struct {
	Channel int
	Depth   int
	Width   int
	Height  int
	Samples []uint16

	SampleType SampleType
	ValidBits  int
}

// PlaneError reports a failure reading one plane. It matches
// ErrPlaneRead under errors.Is.
type PlaneError struct {
	Channel int
	Depth   int
	Path    string
	Err     error
}

func (e *PlaneError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("plane (channel %d, z %d): %v", e.Channel, e.Depth, e.Err)
	}
	return fmt.Sprintf("plane (channel %d, z %d) %s: %v", e.Channel, e.Depth, e.Path, e.Err)
}

func (e *PlaneError) Unwrap() error { return e.Err }

// Is reports ErrPlaneRead so callers can match the whole class.
func (e *PlaneError) Is(target error) bool { return target == ErrPlaneRead }
