// Package pipeline sequences one container extraction: open, discover
// axes, build the output hierarchy, extract every plane in channel-major
// order, then write the metadata record.
//
// A run moves through the states Idle, Opened, Discovered, Extracting,
// MetadataWritten, Closed; any failure moves it to the terminal Failed
// state. Extraction is strictly sequential and fail-fast: the first
// plane that cannot be read, encoded, or written aborts the run before
// the metadata record exists, so a metadata record always describes a
// complete file set. The container is closed on every exit path.
package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/BradhamLab/oif/pkg/hierarchy"
	"github.com/BradhamLab/oif/pkg/job"
	"github.com/BradhamLab/oif/pkg/metadata"
	"github.com/BradhamLab/oif/pkg/oif"
	"github.com/BradhamLab/oif/pkg/raster"
)

// State is a pipeline run state.
type State int

const (
	StateIdle State = iota
	StateOpened
	StateDiscovered
	StateExtracting
	StateMetadataWritten
	StateClosed
	StateFailed
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateOpened:
		return "opened"
	case StateDiscovered:
		return "discovered"
	case StateExtracting:
		return "extracting"
	case StateMetadataWritten:
		return "metadata-written"
	case StateClosed:
		return "closed"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Result reports the outcome of one run.
type Result struct {
	RunID         string
	State         State
	Basename      string
	Layout        oif.AxisLayout
	PlanesWritten int
	ParentDir     string
	MetadataPath  string
	Elapsed       time.Duration

	// FailedStage names the stage a failed run stopped in.
	FailedStage string
}

// Config configures a Pipeline.
type Config struct {
	// Labels is the channel label convention for directory names.
	// Nil means the default 1-based convention; a zero-based convention
	// is configured explicitly with &LabelConvention{Base: 0}.
	Labels *hierarchy.LabelConvention

	// Logger receives structured progress logs. Nil means no logging.
	Logger *zap.Logger
}

// Pipeline converts containers into directory trees. Safe to reuse
// across runs; each run is independent.
type Pipeline struct {
	labels hierarchy.LabelConvention
	logger *zap.Logger
}

// New creates a Pipeline.
func New(cfg Config) *Pipeline {
	labels := hierarchy.DefaultLabels()
	if cfg.Labels != nil {
		labels = *cfg.Labels
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Pipeline{labels: labels, logger: logger}
}

// Run executes one extraction for the given job descriptor. On failure
// the returned error names the failing stage; the Result always reports
// the terminal state reached.
func (p *Pipeline) Run(ctx context.Context, d *job.Descriptor) (*Result, error) {
	start := time.Now()
	res := &Result{RunID: uuid.New().String(), State: StateIdle}
	log := p.logger.With(zap.String("run_id", res.RunID), zap.String("container", d.OIFFile))

	container, err := oif.Open(d.OIFFile)
	if err != nil {
		return p.fail(res, log, "open container", err, start)
	}
	defer container.Close()
	res.State = StateOpened
	res.Basename = container.Basename()
	log.Info("Opened container", zap.String("basename", res.Basename))

	axes, err := container.DiscoverAxes()
	if err != nil {
		return p.fail(res, log, "discover axes", err, start)
	}
	res.State = StateDiscovered
	res.Layout = axes
	log.Info("Discovered axes",
		zap.Int("channels", axes.ChannelCount),
		zap.Int("depth_slices", axes.DepthCount),
		zap.Int("plane_width", axes.PlaneWidth),
		zap.Int("plane_height", axes.PlaneHeight),
		zap.String("sample_type", axes.SampleType.String()),
		zap.Int("valid_bits", axes.ValidBits))

	if len(d.Stains) != axes.ChannelCount {
		log.Warn("Stain map does not match discovered channel count",
			zap.Int("stain_entries", len(d.Stains)),
			zap.Int("channels", axes.ChannelCount))
	}

	layout := hierarchy.NewLayout(d.OutDir, d.Prefix, res.Basename, axes, p.labels)
	res.ParentDir = layout.ParentDir
	if err := layout.Ensure(); err != nil {
		return p.fail(res, log, "create hierarchy", err, start)
	}
	res.State = StateExtracting

	for c := 0; c < axes.ChannelCount; c++ {
		for z := 0; z < axes.DepthCount; z++ {
			if err := ctx.Err(); err != nil {
				return p.fail(res, log, "extract planes", err, start)
			}
			plane, err := container.ReadPlane(c, z)
			if err != nil {
				return p.fail(res, log, "read plane", err, start)
			}
			encoded, err := raster.EncodePNG(plane)
			if err != nil {
				return p.fail(res, log, "encode plane", err, start)
			}
			if err := layout.WritePlane(c, z, encoded); err != nil {
				return p.fail(res, log, "write plane", err, start)
			}
			res.PlanesWritten++
			log.Debug("Wrote plane",
				zap.Int("channel", c),
				zap.Int("z", z),
				zap.String("path", layout.PlanePath(c, z)))
		}
	}
	log.Info("Extracted planes", zap.Int("planes", res.PlanesWritten))

	record := metadata.Assemble(d, res.Basename, axes, acquisitionFacts(container))
	if err := record.WriteFile(layout.MetadataPath()); err != nil {
		return p.fail(res, log, "write metadata", err, start)
	}
	res.State = StateMetadataWritten
	res.MetadataPath = layout.MetadataPath()

	if err := container.Close(); err != nil {
		return p.fail(res, log, "close container", err, start)
	}
	res.State = StateClosed
	res.Elapsed = time.Since(start)
	log.Info("Run complete",
		zap.Int("planes", res.PlanesWritten),
		zap.String("metadata", res.MetadataPath),
		zap.Duration("elapsed", res.Elapsed))
	return res, nil
}

// acquisitionFacts collects the optional settings-derived metadata.
func acquisitionFacts(c *oif.Container) metadata.Acquisition {
	var acq metadata.Acquisition
	acq.CaptureDate, _ = c.CaptureDate()
	acq.WidthConvert, _ = c.WidthConvert()
	acq.HeightConvert, _ = c.HeightConvert()
	acq.DepthConvert, _ = c.DepthConvert()
	return acq
}

func (p *Pipeline) fail(res *Result, log *zap.Logger, stage string, err error, start time.Time) (*Result, error) {
	res.State = StateFailed
	res.FailedStage = stage
	res.Elapsed = time.Since(start)
	log.Error("Run failed", zap.String("stage", stage), zap.Error(err))
	return res, fmt.Errorf("%s: %w", stage, err)
}
