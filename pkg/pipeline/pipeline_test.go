package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BradhamLab/oif/pkg/hierarchy"
	"github.com/BradhamLab/oif/pkg/job"
	"github.com/BradhamLab/oif/test/containertest"
)

func testDescriptor(oifPath, outDir string) *job.Descriptor {
	return &job.Descriptor{
		OIFFile:   oifPath,
		Stains:    map[string]string{"1": "DAPI", "2": "phalloidin"},
		Person:    "D. Hatch",
		HPF:       24,
		Treatment: "control",
		OutDir:    outDir,
	}
}

// collectFiles returns all file paths under root, relative to root.
func collectFiles(t *testing.T, root string) map[string][]byte {
	t.Helper()
	files := make(map[string][]byte)
	err := filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		files[rel] = data
		return nil
	})
	require.NoError(t, err)
	return files
}

func TestRun(t *testing.T) {
	spec := containertest.Spec{Basename: "embryo07", Channels: 2, Depths: 3}
	oifPath := containertest.Write(t, t.TempDir(), spec)
	outDir := t.TempDir()

	p := New(Config{})
	res, err := p.Run(context.Background(), testDescriptor(oifPath, outDir))
	require.NoError(t, err)

	t.Run("Result", func(t *testing.T) {
		assert.Equal(t, StateClosed, res.State)
		assert.Equal(t, "embryo07", res.Basename)
		assert.Equal(t, 6, res.PlanesWritten)
		assert.Equal(t, 2, res.Layout.ChannelCount)
		assert.Equal(t, 3, res.Layout.DepthCount)
		assert.NotEmpty(t, res.RunID)
		assert.Equal(t, filepath.Join(outDir, "embryo07"), res.ParentDir)
	})

	t.Run("ExactFileSet", func(t *testing.T) {
		files := collectFiles(t, outDir)
		expected := []string{"embryo07/metadata.json"}
		for c := 1; c <= 2; c++ {
			for z := 0; z < 3; z++ {
				expected = append(expected, fmt.Sprintf("embryo07/%d/z%d.png", c, z))
			}
		}
		assert.Len(t, files, len(expected), "no extra files")
		for _, name := range expected {
			assert.Contains(t, files, filepath.FromSlash(name))
		}
	})

	t.Run("MetadataContents", func(t *testing.T) {
		data, err := os.ReadFile(res.MetadataPath)
		require.NoError(t, err)

		var decoded map[string]any
		require.NoError(t, json.Unmarshal(data, &decoded))
		assert.Equal(t, "D. Hatch", decoded["person"])
		assert.Equal(t, float64(24), decoded["hpf"])
		assert.Equal(t, "control", decoded["treatment"])
		assert.Equal(t, map[string]any{"1": "DAPI", "2": "phalloidin"}, decoded["stains"])
		assert.Equal(t, float64(2), decoded["channel_count"])
		assert.Equal(t, float64(3), decoded["depth_count"])
		assert.Equal(t, "embryo07", decoded["basename"])
	})
}

func TestRunDeterministic(t *testing.T) {
	oifPath := containertest.Write(t, t.TempDir(), containertest.Spec{Basename: "embryo07"})
	outA := t.TempDir()
	outB := t.TempDir()

	p := New(Config{})
	_, err := p.Run(context.Background(), testDescriptor(oifPath, outA))
	require.NoError(t, err)
	_, err = p.Run(context.Background(), testDescriptor(oifPath, outB))
	require.NoError(t, err)

	filesA := collectFiles(t, outA)
	filesB := collectFiles(t, outB)
	require.Equal(t, len(filesA), len(filesB))
	for name, data := range filesA {
		assert.Equal(t, data, filesB[name], "file %s must be byte-identical across runs", name)
	}
}

func TestRunPrefix(t *testing.T) {
	oifPath := containertest.Write(t, t.TempDir(), containertest.Spec{Basename: "embryo07", Channels: 1, Depths: 1})
	outDir := t.TempDir()

	d := testDescriptor(oifPath, outDir)
	d.Prefix = "run3_"
	res, err := New(Config{}).Run(context.Background(), d)
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(outDir, "run3_embryo07"), res.ParentDir)
	_, err = os.Stat(filepath.Join(outDir, "run3_embryo07", "1", "z0.png"))
	assert.NoError(t, err)
}

func TestRunZeroBasedLabels(t *testing.T) {
	oifPath := containertest.Write(t, t.TempDir(), containertest.Spec{Basename: "embryo07", Channels: 2, Depths: 1})
	outDir := t.TempDir()

	p := New(Config{Labels: &hierarchy.LabelConvention{Base: 0}})
	res, err := p.Run(context.Background(), testDescriptor(oifPath, outDir))
	require.NoError(t, err)
	assert.Equal(t, 2, res.PlanesWritten)

	// Channel directories are 0 and 1, not the default 1 and 2.
	_, err = os.Stat(filepath.Join(outDir, "embryo07", "0", "z0.png"))
	assert.NoError(t, err)
	_, err = os.Stat(filepath.Join(outDir, "embryo07", "1", "z0.png"))
	assert.NoError(t, err)
	_, err = os.Stat(filepath.Join(outDir, "embryo07", "2"))
	assert.True(t, os.IsNotExist(err))
}

func TestRunRerunConverges(t *testing.T) {
	oifPath := containertest.Write(t, t.TempDir(), containertest.Spec{Basename: "embryo07"})
	outDir := t.TempDir()
	d := testDescriptor(oifPath, outDir)

	p := New(Config{})
	_, err := p.Run(context.Background(), d)
	require.NoError(t, err)
	first := collectFiles(t, outDir)

	_, err = p.Run(context.Background(), d)
	require.NoError(t, err)
	second := collectFiles(t, outDir)

	require.Equal(t, len(first), len(second), "re-run must not add or drop files")
	for name, data := range first {
		assert.Equal(t, data, second[name], "file %s", name)
	}
}

func TestRunFailures(t *testing.T) {
	t.Run("MissingContainer", func(t *testing.T) {
		d := testDescriptor(filepath.Join(t.TempDir(), "missing.oif"), t.TempDir())
		res, err := New(Config{}).Run(context.Background(), d)
		require.Error(t, err)
		assert.Equal(t, StateFailed, res.State)
		assert.Equal(t, "open container", res.FailedStage)
		assert.Contains(t, err.Error(), "open container")
	})

	t.Run("MissingDataDir", func(t *testing.T) {
		oifPath := containertest.WriteSettingsOnly(t, t.TempDir(), containertest.Spec{})
		d := testDescriptor(oifPath, t.TempDir())
		res, err := New(Config{}).Run(context.Background(), d)
		require.Error(t, err)
		assert.Equal(t, StateFailed, res.State)
		assert.Equal(t, "discover axes", res.FailedStage)
	})

	t.Run("PlaneHoleFailsWithoutMetadata", func(t *testing.T) {
		// A hole in the plane table fails the run mid-extraction; the
		// metadata record must never exist for a failed run.
		oifPath := containertest.Write(t, t.TempDir(), containertest.Spec{
			Basename: "embryo07", Channels: 2, Depths: 2,
			OmitPlanes: [][2]int{{1, 1}},
		})
		outDir := t.TempDir()
		res, err := New(Config{}).Run(context.Background(), testDescriptor(oifPath, outDir))
		require.Error(t, err)
		assert.Equal(t, StateFailed, res.State)
		assert.Equal(t, "read plane", res.FailedStage)

		_, statErr := os.Stat(filepath.Join(outDir, "embryo07", "metadata.json"))
		assert.True(t, os.IsNotExist(statErr), "metadata.json must not be written on failure")

		// Planes before the failing one remain; that is documented
		// behavior, not a guarantee either way.
		assert.Greater(t, res.PlanesWritten, 0)
	})

	t.Run("CanceledContext", func(t *testing.T) {
		oifPath := containertest.Write(t, t.TempDir(), containertest.Spec{})
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		res, err := New(Config{}).Run(ctx, testDescriptor(oifPath, t.TempDir()))
		require.Error(t, err)
		assert.Equal(t, StateFailed, res.State)
	})

	t.Run("OutputRootCollision", func(t *testing.T) {
		oifPath := containertest.Write(t, t.TempDir(), containertest.Spec{Basename: "embryo07"})
		outDir := t.TempDir()
		require.NoError(t, os.WriteFile(filepath.Join(outDir, "embryo07"), []byte("in the way"), 0o644))

		res, err := New(Config{}).Run(context.Background(), testDescriptor(oifPath, outDir))
		require.Error(t, err)
		assert.Equal(t, "create hierarchy", res.FailedStage)
	})
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "idle", StateIdle.String())
	assert.Equal(t, "closed", StateClosed.String())
	assert.Equal(t, "failed", StateFailed.String())
	assert.Equal(t, "unknown", State(99).String())
}
