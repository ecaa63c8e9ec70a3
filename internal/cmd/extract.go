package cmd

import (
	"fmt"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/BradhamLab/oif/internal/observability"
	"github.com/BradhamLab/oif/pkg/hierarchy"
	"github.com/BradhamLab/oif/pkg/job"
	"github.com/BradhamLab/oif/pkg/oif"
	"github.com/BradhamLab/oif/pkg/pipeline"
)

var extractCmd = &cobra.Command{
	Use:   "extract",
	Short: "Run an extraction job from a descriptor file",
	Long: `Run an extraction job as defined in a JSON or YAML job descriptor.

The descriptor names the container to extract, the stain annotations per
channel, collection metadata, and the output root.

Example:
  oiftree extract --job embryo07.json
  oiftree extract --job embryo07.json --out /data/converted
  oiftree extract --job embryo07.yaml --dry-run`,
	RunE: runExtract,
}

var (
	extractJobPath string
	extractOut     string
	extractQuiet   bool
	extractDryRun  bool
)

func init() {
	rootCmd.AddCommand(extractCmd)

	extractCmd.Flags().StringVarP(&extractJobPath, "job", "j", "", "Path to job descriptor (required)")
	extractCmd.Flags().StringVarP(&extractOut, "out", "o", "", "Override output root")
	extractCmd.Flags().BoolVarP(&extractQuiet, "quiet", "q", false, "Suppress the success summary")
	extractCmd.Flags().BoolVar(&extractDryRun, "dry-run", false, "Validate the job and show the plan without writing anything")

	_ = extractCmd.MarkFlagRequired("job")
}

func runExtract(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	d, err := job.Load(extractJobPath)
	if err != nil {
		observability.CLILogger.Error("Failed to load job descriptor",
			zap.String("path", extractJobPath),
			zap.Error(err))
		return exitError("invalid job descriptor", err)
	}

	observability.CLILogger.Debug("Loaded job descriptor",
		zap.String("path", extractJobPath),
		zap.String("container", d.OIFFile),
		zap.String("out_dir", d.OutDir),
		zap.Int("stain_entries", len(d.Stains)))

	if extractOut != "" {
		d.OutDir = extractOut
	}

	if extractDryRun {
		return showExtractPlan(cmd, d)
	}

	p := pipeline.New(pipeline.Config{
		Labels: &hierarchy.LabelConvention{Base: toolConfig.LabelBase},
		Logger: observability.CLILogger,
	})
	res, err := p.Run(ctx, d)
	if err != nil {
		color.New(color.FgRed, color.Bold).Fprintf(cmd.ErrOrStderr(), "✗ extraction failed in stage %q\n", res.FailedStage)
		return err
	}

	if !extractQuiet {
		color.New(color.FgGreen).Fprintf(cmd.OutOrStdout(), "✓ extracted %s\n", res.Basename)
		fmt.Fprintf(cmd.OutOrStdout(), "  planes:    %d (%d channels × %d z-slices)\n",
			res.PlanesWritten, res.Layout.ChannelCount, res.Layout.DepthCount)
		fmt.Fprintf(cmd.OutOrStdout(), "  output:    %s\n", res.ParentDir)
		fmt.Fprintf(cmd.OutOrStdout(), "  metadata:  %s\n", res.MetadataPath)
		fmt.Fprintf(cmd.OutOrStdout(), "  elapsed:   %s\n", res.Elapsed.Round(time.Millisecond))
	}
	return nil
}

// showExtractPlan validates that the container is readable and prints
// what the run would write, without writing anything.
func showExtractPlan(cmd *cobra.Command, d *job.Descriptor) error {
	container, err := oif.Open(d.OIFFile)
	if err != nil {
		return exitError("open container", err)
	}
	defer container.Close()

	axes, err := container.DiscoverAxes()
	if err != nil {
		return exitError("discover axes", err)
	}

	labels := hierarchy.LabelConvention{Base: toolConfig.LabelBase}
	layout := hierarchy.NewLayout(d.OutDir, d.Prefix, container.Basename(), axes, labels)

	out := cmd.OutOrStdout()
	fmt.Fprintln(out, "=== Extraction Plan (dry-run) ===")
	fmt.Fprintln(out)
	fmt.Fprintf(out, "Container:   %s\n", d.OIFFile)
	fmt.Fprintf(out, "Basename:    %s\n", container.Basename())
	fmt.Fprintf(out, "Channels:    %d\n", axes.ChannelCount)
	fmt.Fprintf(out, "Z slices:    %d\n", axes.DepthCount)
	fmt.Fprintf(out, "Plane:       %dx%d %s (%d valid bits)\n",
		axes.PlaneWidth, axes.PlaneHeight, axes.SampleType, axes.ValidBits)
	fmt.Fprintln(out)
	fmt.Fprintf(out, "Output root: %s\n", d.OutDir)
	fmt.Fprintf(out, "Parent dir:  %s\n", layout.ParentDir)
	fmt.Fprintf(out, "Plane files: %d\n", layout.PlaneCount())
	fmt.Fprintf(out, "Metadata:    %s\n", layout.MetadataPath())
	if len(d.Stains) > 0 {
		fmt.Fprintln(out)
		fmt.Fprintln(out, "Stains:")
		for c := 0; c < axes.ChannelCount; c++ {
			label := labels.Channel(c)
			if stain, ok := d.Stains[label]; ok {
				fmt.Fprintf(out, "  %s: %s\n", label, stain)
			} else {
				fmt.Fprintf(out, "  %s: (none supplied)\n", label)
			}
		}
	}
	if len(d.Stains) != axes.ChannelCount {
		fmt.Fprintln(out)
		fmt.Fprintf(out, "Note: %d stain entries supplied for %d discovered channels.\n",
			len(d.Stains), axes.ChannelCount)
	}
	fmt.Fprintln(out)
	fmt.Fprintln(out, "Job validated successfully. Remove --dry-run to execute.")
	return nil
}
