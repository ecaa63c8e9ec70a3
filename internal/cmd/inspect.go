package cmd

import (
	"encoding/json"
	"fmt"
	"text/tabwriter"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/BradhamLab/oif/internal/observability"
	"github.com/BradhamLab/oif/pkg/oif"
)

var inspectCmd = &cobra.Command{
	Use:   "inspect <file.oif>",
	Short: "Show a container's axis layout and acquisition facts",
	Long: `Inspect an OIF container without extracting it.

Prints the discovered axis layout (channels, z slices, plane geometry,
sample type) and the acquisition facts found in the settings document.

Examples:
  oiftree inspect embryo07.oif
  oiftree inspect embryo07.oif --json`,
	Args: cobra.ExactArgs(1),
	RunE: runInspect,
}

var inspectJSON bool

func init() {
	rootCmd.AddCommand(inspectCmd)

	inspectCmd.Flags().BoolVar(&inspectJSON, "json", false, "Output as JSON")
}

// containerReport is the JSON shape of inspect output.
type containerReport struct {
	Path          string `json:"path"`
	Basename      string `json:"basename"`
	ChannelCount  int    `json:"channel_count"`
	DepthCount    int    `json:"depth_count"`
	PlaneWidth    int    `json:"plane_width"`
	PlaneHeight   int    `json:"plane_height"`
	SampleType    string `json:"sample_type"`
	ValidBits     int    `json:"valid_bits"`
	PlaneBytes    int64  `json:"plane_bytes"`
	CaptureDate   string `json:"capture_date,omitempty"`
	WidthConvert  string `json:"width_convert,omitempty"`
	HeightConvert string `json:"height_convert,omitempty"`
	DepthConvert  string `json:"depth_convert,omitempty"`
}

func runInspect(cmd *cobra.Command, args []string) error {
	path := args[0]

	container, err := oif.Open(path)
	if err != nil {
		observability.CLILogger.Error("Failed to open container", zap.String("path", path), zap.Error(err))
		return exitError("open container", err)
	}
	defer container.Close()

	axes, err := container.DiscoverAxes()
	if err != nil {
		observability.CLILogger.Error("Failed to discover axes", zap.String("path", path), zap.Error(err))
		return exitError("discover axes", err)
	}

	report := containerReport{
		Path:         path,
		Basename:     container.Basename(),
		ChannelCount: axes.ChannelCount,
		DepthCount:   axes.DepthCount,
		PlaneWidth:   axes.PlaneWidth,
		PlaneHeight:  axes.PlaneHeight,
		SampleType:   axes.SampleType.String(),
		ValidBits:    axes.ValidBits,
		PlaneBytes:   axes.PlaneBytes(),
	}
	report.CaptureDate, _ = container.CaptureDate()
	report.WidthConvert, _ = container.WidthConvert()
	report.HeightConvert, _ = container.HeightConvert()
	report.DepthConvert, _ = container.DepthConvert()

	if inspectJSON {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(report)
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintf(w, "Path:\t%s\n", report.Path)
	fmt.Fprintf(w, "Basename:\t%s\n", report.Basename)
	fmt.Fprintf(w, "Channels:\t%d\n", report.ChannelCount)
	fmt.Fprintf(w, "Z slices:\t%d\n", report.DepthCount)
	fmt.Fprintf(w, "Plane:\t%dx%d\n", report.PlaneWidth, report.PlaneHeight)
	fmt.Fprintf(w, "Sample type:\t%s (%d valid bits)\n", report.SampleType, report.ValidBits)
	fmt.Fprintf(w, "Plane size:\t%s\n", humanize.Bytes(uint64(report.PlaneBytes)))
	if report.CaptureDate != "" {
		fmt.Fprintf(w, "Captured:\t%s\n", report.CaptureDate)
	}
	if report.WidthConvert != "" {
		fmt.Fprintf(w, "Pixel width:\t%s\n", report.WidthConvert)
	}
	if report.HeightConvert != "" {
		fmt.Fprintf(w, "Pixel height:\t%s\n", report.HeightConvert)
	}
	if report.DepthConvert != "" {
		fmt.Fprintf(w, "Z step:\t%s\n", report.DepthConvert)
	}
	return w.Flush()
}
