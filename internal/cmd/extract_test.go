package cmd

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BradhamLab/oif/test/containertest"
)

// executeCommand runs the root command with args and returns combined
// stdout output. Flag variables persist across invocations, so each
// call resets them first.
func executeCommand(t *testing.T, args ...string) (string, error) {
	t.Helper()

	extractJobPath = ""
	extractOut = ""
	extractQuiet = false
	extractDryRun = false
	inspectJSON = false

	out := new(bytes.Buffer)
	rootCmd.SetOut(out)
	rootCmd.SetErr(out)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return out.String(), err
}

func writeJobDescriptor(t *testing.T, oifPath, outDir string) string {
	t.Helper()
	d := map[string]any{
		"oif_file":  oifPath,
		"stains":    map[string]string{"1": "DAPI", "2": "phalloidin"},
		"person":    "D. Hatch",
		"hpf":       24,
		"treatment": "control",
		"out_dir":   outDir,
	}
	data, err := json.Marshal(d)
	require.NoError(t, err)
	path := filepath.Join(t.TempDir(), "job.json")
	require.NoError(t, os.WriteFile(path, data, 0o644))
	return path
}

func TestExtractCommand(t *testing.T) {
	oifPath := containertest.Write(t, t.TempDir(), containertest.Spec{Basename: "embryo07", Channels: 2, Depths: 2})
	outDir := t.TempDir()
	jobPath := writeJobDescriptor(t, oifPath, outDir)

	out, err := executeCommand(t, "extract", "--job", jobPath)
	require.NoError(t, err)

	assert.Contains(t, out, "extracted embryo07")
	assert.Contains(t, out, "4 (2 channels")

	_, err = os.Stat(filepath.Join(outDir, "embryo07", "metadata.json"))
	assert.NoError(t, err)
	_, err = os.Stat(filepath.Join(outDir, "embryo07", "2", "z1.png"))
	assert.NoError(t, err)
}

func TestExtractCommandOutOverride(t *testing.T) {
	oifPath := containertest.Write(t, t.TempDir(), containertest.Spec{Basename: "embryo07", Channels: 1, Depths: 1})
	jobPath := writeJobDescriptor(t, oifPath, t.TempDir())
	override := t.TempDir()

	_, err := executeCommand(t, "extract", "--job", jobPath, "--out", override)
	require.NoError(t, err)

	_, err = os.Stat(filepath.Join(override, "embryo07", "1", "z0.png"))
	assert.NoError(t, err)
}

func TestExtractCommandQuiet(t *testing.T) {
	oifPath := containertest.Write(t, t.TempDir(), containertest.Spec{Basename: "embryo07", Channels: 1, Depths: 1})
	jobPath := writeJobDescriptor(t, oifPath, t.TempDir())

	out, err := executeCommand(t, "extract", "--job", jobPath, "--quiet")
	require.NoError(t, err)
	assert.Empty(t, out)
}

func TestExtractCommandDryRun(t *testing.T) {
	oifPath := containertest.Write(t, t.TempDir(), containertest.Spec{Basename: "embryo07"})
	outDir := t.TempDir()
	jobPath := writeJobDescriptor(t, oifPath, outDir)

	out, err := executeCommand(t, "extract", "--job", jobPath, "--dry-run")
	require.NoError(t, err)

	assert.Contains(t, out, "Extraction Plan (dry-run)")
	assert.Contains(t, out, "Basename:    embryo07")
	assert.Contains(t, out, "Channels:    2")
	assert.Contains(t, out, "Plane files: 6")
	assert.Contains(t, out, "metadata.json")
	assert.Contains(t, out, "1: DAPI")

	entries, err := os.ReadDir(outDir)
	require.NoError(t, err)
	assert.Empty(t, entries, "dry-run must not write anything")
}

func TestExtractCommandErrors(t *testing.T) {
	t.Run("InvalidDescriptor", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "job.json")
		require.NoError(t, os.WriteFile(path, []byte(`{"oif_file": "x.oif"}`), 0o644))

		_, err := executeCommand(t, "extract", "--job", path)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "invalid job descriptor")
	})

	t.Run("MissingContainer", func(t *testing.T) {
		jobPath := writeJobDescriptor(t, filepath.Join(t.TempDir(), "gone.oif"), t.TempDir())
		_, err := executeCommand(t, "extract", "--job", jobPath)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "open container")
	})
}

func TestInspectCommand(t *testing.T) {
	oifPath := containertest.Write(t, t.TempDir(), containertest.Spec{
		Basename:    "embryo07",
		Channels:    2,
		Depths:      3,
		CaptureDate: "2019-04-02 14:02:51",
	})

	t.Run("Table", func(t *testing.T) {
		out, err := executeCommand(t, "inspect", oifPath)
		require.NoError(t, err)
		assert.Contains(t, out, "embryo07")
		assert.Contains(t, out, "2019-04-02 14:02:51")
		assert.Contains(t, out, "8x6")
	})

	t.Run("JSON", func(t *testing.T) {
		out, err := executeCommand(t, "inspect", oifPath, "--json")
		require.NoError(t, err)

		var report containerReport
		require.NoError(t, json.Unmarshal([]byte(out), &report))
		assert.Equal(t, "embryo07", report.Basename)
		assert.Equal(t, 2, report.ChannelCount)
		assert.Equal(t, 3, report.DepthCount)
		assert.Equal(t, 12, report.ValidBits)
		assert.Equal(t, "uint16", report.SampleType)
		assert.Equal(t, "1.2 um", report.DepthConvert)
	})

	t.Run("MissingFile", func(t *testing.T) {
		_, err := executeCommand(t, "inspect", filepath.Join(t.TempDir(), "gone.oif"))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "open container")
	})
}
