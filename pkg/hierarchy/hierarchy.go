// Package hierarchy computes and materializes the output directory tree
// for an extracted container: one parent directory per sample, one
// subdirectory per channel, one PNG per depth slice.
//
// All paths derive solely from the container basename and the discovered
// axis layout. Stain names never appear in paths; they belong to the
// metadata record.
package hierarchy

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/BradhamLab/oif/pkg/oif"
)

// ErrFilesystem indicates directory or file creation was denied, or a
// path collides with an existing non-directory.
var ErrFilesystem = errors.New("filesystem operation failed")

// MetadataFileName is the metadata record file written into the parent
// directory.
const MetadataFileName = "metadata.json"

// LabelConvention maps zero-based channel indices to the external
// channel labels used for directory names and stain-map keys. The
// default convention labels channel 0 as "1".
type LabelConvention struct {
	Base int
}

// DefaultLabels returns the 1-based labeling convention.
func DefaultLabels() LabelConvention {
	return LabelConvention{Base: 1}
}

// Channel returns the label for a zero-based channel index.
func (lc LabelConvention) Channel(index int) string {
	return strconv.Itoa(index + lc.Base)
}

// Layout is the computed set of output paths for one extraction run.
type Layout struct {
	ParentDir   string
	ChannelDirs map[int]string

	depthCount int
}

// NewLayout computes all output paths for the given container shape.
// The parent directory is outRoot/<prefix><basename>; each channel
// directory is named by the label convention alone.
func NewLayout(outRoot, prefix, basename string, axes oif.AxisLayout, labels LabelConvention) *Layout {
	parent := filepath.Join(outRoot, prefix+basename)
	dirs := make(map[int]string, axes.ChannelCount)
	for c := 0; c < axes.ChannelCount; c++ {
		dirs[c] = filepath.Join(parent, labels.Channel(c))
	}
	return &Layout{
		ParentDir:   parent,
		ChannelDirs: dirs,
		depthCount:  axes.DepthCount,
	}
}

// PlanePath returns the file path for a zero-based (channel, depth)
// pair: <channel dir>/z<depth>.png.
func (l *Layout) PlanePath(channel, depth int) string {
	return filepath.Join(l.ChannelDirs[channel], "z"+strconv.Itoa(depth)+".png")
}

// MetadataPath returns the metadata record path inside the parent
// directory.
func (l *Layout) MetadataPath() string {
	return filepath.Join(l.ParentDir, MetadataFileName)
}

// PlaneCount returns the total number of plane files the layout covers.
func (l *Layout) PlaneCount() int {
	return len(l.ChannelDirs) * l.depthCount
}

// Ensure creates the parent directory and every channel directory.
// Pre-existing directories are fine; a path occupied by a non-directory
// or a creation denial is an ErrFilesystem.
func (l *Layout) Ensure() error {
	if err := ensureDir(l.ParentDir); err != nil {
		return err
	}
	for c := 0; c < len(l.ChannelDirs); c++ {
		if err := ensureDir(l.ChannelDirs[c]); err != nil {
			return err
		}
	}
	return nil
}

func ensureDir(dir string) error {
	if info, err := os.Stat(dir); err == nil && !info.IsDir() {
		return fmt.Errorf("%w: %s exists and is not a directory", ErrFilesystem, dir)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("%w: creating %s: %v", ErrFilesystem, dir, err)
	}
	return nil
}

// WritePlane writes encoded plane bytes to the plane's path,
// overwriting any existing file. Last write wins; re-running a
// conversion converges to the same file set.
func (l *Layout) WritePlane(channel, depth int, data []byte) error {
	path := l.PlanePath(channel, depth)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("%w: writing %s: %v", ErrFilesystem, path, err)
	}
	return nil
}
