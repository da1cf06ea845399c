package main

import (
	"bytes"
	"fmt"
	"image/color"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/disintegration/imaging"
	"github.com/stretchr/testify/require"

	"github.com/ironsheep/threat-augment/internal/config"
)

func runApp(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out, errOut bytes.Buffer
	app := newApp()
	app.Writer = &out
	app.ErrWriter = &errOut
	err := app.Run(append([]string{"threat-augment"}, args...))
	return out.String(), err
}

func TestInspect(t *testing.T) {
	path := filepath.Join(t.TempDir(), "chip.png")
	require.NoError(t, imaging.Save(imaging.New(10, 10, color.NRGBA{R: 255, A: 255}), path))

	out, err := runApp(t, "inspect", "--count", "1", path)
	require.NoError(t, err)
	require.Contains(t, out, "10x10")
	require.Contains(t, out, "#F0000")
	require.Contains(t, out, "100.00%")
}

func TestInspect_RequiresPath(t *testing.T) {
	_, err := runApp(t, "inspect")
	require.Error(t, err)
}

func TestCrop_MissingPaths(t *testing.T) {
	_, err := runApp(t, "crop")
	require.ErrorContains(t, err, "missing paths")
}

func TestCrop_InvalidFlag(t *testing.T) {
	_, err := runApp(t, "--log-level", "chatty", "crop")
	require.ErrorContains(t, err, "invalid configuration")
}

// writeDataset lays out a 300x300 positive with one 60x60 box per category
// and a single 300x300 negative, returning the global path flags.
func writeDataset(t *testing.T, categories ...string) (flags []string, output string) {
	t.Helper()
	root := t.TempDir()
	positives := filepath.Join(root, "positive")
	negatives := filepath.Join(root, "negative")
	output = filepath.Join(root, "output")
	require.NoError(t, os.MkdirAll(positives, 0755))
	require.NoError(t, os.MkdirAll(negatives, 0755))
	require.NoError(t, imaging.Save(imaging.New(300, 300, color.NRGBA{R: 40, G: 90, B: 200, A: 255}), filepath.Join(positives, "img1.png")))
	require.NoError(t, imaging.Save(imaging.New(300, 300, color.NRGBA{R: 128, G: 128, B: 128, A: 255}), filepath.Join(negatives, "neg.png")))

	csv := "img_name,object_type,xmin,ymin,xmax,ymax\n"
	for i, category := range categories {
		csv += fmt.Sprintf("img1.png,%s,%d,0,%d,60\n", category, i*60, i*60+60)
	}
	csvPath := filepath.Join(root, "gt_data.csv")
	require.NoError(t, os.WriteFile(csvPath, []byte(csv), 0644))

	return []string{
		"--seed", "9",
		"--log-level", "error",
		"--image-root", positives,
		"--negatives", negatives,
		"--annotations", csvPath,
		"--output", output,
	}, output
}

// The runs below use 300/60 on both axes, a ratio of 5 and scales of 1 or 2,
// so the rotated chip always fits a centered placement on the 300x300
// negative.
var runFlags = []string{"run", "--min-height", "10", "--min-width", "10", "--placement", "center", "--format", "png"}

func TestRun_FromFlags(t *testing.T) {
	global, output := writeDataset(t, "Gun")

	out, err := runApp(t, append(append(global, "--category", "Gun"), runFlags...)...)
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(out, "Gun: 1 chips cropped"), out)

	_, err = os.Stat(filepath.Join(output, "synthetic", "Gun", "img1_0.png"))
	require.NoError(t, err)
}

func TestRun_EveryCategoryWhenUnset(t *testing.T) {
	global, output := writeDataset(t, "Gun", "Knife")

	out, err := runApp(t, append(global, runFlags...)...)
	require.NoError(t, err)
	require.Contains(t, out, "Gun: 2 chips cropped")
	require.Contains(t, out, "Knife: 2 chips cropped")

	for _, p := range []string{"Gun/img1_0.png", "Knife/img1_1.png"} {
		_, err = os.Stat(filepath.Join(output, "synthetic", filepath.FromSlash(p)))
		require.NoError(t, err)
	}
}

func TestStages_RequireCategory(t *testing.T) {
	global, _ := writeDataset(t, "Gun")

	for _, stage := range []string{"calibrate", "filter", "compose"} {
		t.Run(stage, func(t *testing.T) {
			_, err := runApp(t, append(global, stage)...)
			require.ErrorContains(t, err, "category cannot be empty")
		})
	}
}

func TestConfigInit(t *testing.T) {
	path := filepath.Join(t.TempDir(), "threat-augment.json")

	out, err := runApp(t, "config", "init", path)
	require.NoError(t, err)
	require.Contains(t, out, path)

	cfg, err := config.LoadFromFile(path)
	require.NoError(t, err)
	require.Equal(t, config.Default(), cfg)

	_, err = runApp(t, "config", "init", path)
	require.ErrorContains(t, err, "already exists")

	_, err = runApp(t, "config", "init", "--force", path)
	require.NoError(t, err)
}
