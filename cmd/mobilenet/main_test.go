package main

import (
	"bytes"
	"errors"
	"image"
	"image/color"
	"image/png"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/born-ml/mobilenet/internal/config"
	"github.com/born-ml/mobilenet/internal/modelstore"
)

// execute runs the root command with an isolated config file.
func execute(t *testing.T, cfgPath string, args ...string) (string, error) {
	t.Helper()
	for _, env := range []string{
		"BORN_MODELS_ROOT", "BORN_MODELS_BASE_URL", "BORN_MODELS_MANIFEST",
		"MOBILENET_DEVICE", "MOBILENET_WORKERS", "MOBILENET_LOG_LEVEL",
	} {
		t.Setenv(env, "")
	}

	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(io.Discard)
	cmd.SetArgs(append([]string{"--config", cfgPath}, args...))
	err := cmd.Execute()
	return out.String(), err
}

// writeConfig saves a config whose model store lives under dir.
func writeConfig(t *testing.T, dir, manifest string) string {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.Models.Root = filepath.Join(dir, "models")
	cfg.Models.Manifest = manifest
	cfg.Logging.Level = "error"
	path := filepath.Join(dir, "mobilenet.yaml")
	require.NoError(t, cfg.Save(path))
	return path
}

func writePNG(t *testing.T, path string, w, h int) {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetRGBA(x, y, color.RGBA{R: uint8(x * 4), G: uint8(y * 4), B: 90, A: 255})
		}
	}
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()
	require.NoError(t, png.Encode(f, img))
}

func TestVersionCmd(t *testing.T) {
	out, err := execute(t, writeConfig(t, t.TempDir(), ""), "version")
	require.NoError(t, err)
	assert.Contains(t, out, "mobilenet v"+Version)
}

func TestVariantsCmd(t *testing.T) {
	out, err := execute(t, writeConfig(t, t.TempDir(), ""), "variants")
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 5)
	assert.Contains(t, lines[0], "PARAMS")
	for i, want := range []string{"3504960", "2627592", "1964736", "1516392"} {
		assert.Contains(t, lines[i+1], want)
	}
	assert.Contains(t, lines[4], "mobilenetv2_wd4")
}

func TestSummaryCmd(t *testing.T) {
	cfgPath := writeConfig(t, t.TempDir(), "")

	out, err := execute(t, cfgPath, "summary", "mobilenetv2_wd4", "--in-size", "96")
	require.NoError(t, err)
	assert.Contains(t, out, "features.init_block")
	assert.Contains(t, out, "features.stage5.unit4")
	assert.Contains(t, out, "3x3")
	assert.Contains(t, out, "trainable parameters: 1516392")

	out, err = execute(t, cfgPath, "summary", "--width", "1.4", "--classes", "10")
	require.NoError(t, err)
	assert.Contains(t, out, "7x7")

	_, err = execute(t, cfgPath, "summary", "mobilenetv2_w9")
	assert.Error(t, err)

	_, err = execute(t, cfgPath, "summary", "--width", "0")
	assert.Error(t, err)
}

func TestExportAndPredict(t *testing.T) {
	dir := t.TempDir()
	cfgPath := writeConfig(t, dir, "")
	weights := filepath.Join(dir, "wd4.safetensors")
	manifest := filepath.Join(dir, "models.yaml")

	out, err := execute(t, cfgPath, "export", "mobilenetv2_wd4", "-o", weights,
		"--manifest", manifest, "--release", "v0.1.0", "--error", "0.4927")
	require.NoError(t, err)
	fields := strings.Fields(out)
	require.Len(t, fields, 2)
	assert.Len(t, fields[0], 64)
	assert.Equal(t, weights, fields[1])

	m, err := modelstore.LoadManifest(manifest)
	require.NoError(t, err)
	e, err := m.Lookup("mobilenetv2_wd4")
	require.NoError(t, err)
	assert.Equal(t, fields[0], e.SHA256)
	assert.Equal(t, "0.4927", e.Error)

	img := filepath.Join(dir, "pattern.png")
	writePNG(t, img, 40, 30)
	labels := filepath.Join(dir, "labels.txt")
	require.NoError(t, os.WriteFile(labels, []byte("tench\ngoldfish\n"), 0o644))

	out, err = execute(t, cfgPath, "predict", img, img,
		"--variant", "mobilenetv2_wd4", "--weights", weights, "--in-size", "32",
		"--labels", labels, "--top", "3")
	require.NoError(t, err)
	assert.Equal(t, 2, strings.Count(out, img))
	assert.Equal(t, 2, strings.Count(out, "  3. "))
	assert.NotContains(t, out, "  4. ")
}

func TestExport_Errors(t *testing.T) {
	dir := t.TempDir()
	cfgPath := writeConfig(t, dir, "")

	_, err := execute(t, cfgPath, "export", "mobilenetv2_w9")
	assert.Error(t, err)

	_, err = execute(t, cfgPath, "export", "mobilenetv2_wd4", "-o", filepath.Join(dir, "x.safetensors"),
		"--from", filepath.Join(dir, "missing.safetensors"))
	assert.Error(t, err)

	// A manifest entry needs an error tag.
	_, err = execute(t, cfgPath, "export", "mobilenetv2_wd4", "-o", filepath.Join(dir, "y.safetensors"),
		"--manifest", filepath.Join(dir, "models.yaml"), "--release", "v0.1.0")
	assert.True(t, errors.Is(err, modelstore.ErrInvalidManifest))
}

func TestFetchAndPredictPretrained(t *testing.T) {
	dir := t.TempDir()
	weights := filepath.Join(dir, "upload.safetensors")
	manifest := filepath.Join(dir, "models.yaml")

	out, err := execute(t, writeConfig(t, dir, ""), "export", "mobilenetv2_wd4", "-o", weights)
	require.NoError(t, err)
	sum := strings.Fields(out)[0]

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.ServeFile(w, r, weights)
	}))
	defer srv.Close()

	m := &modelstore.Manifest{}
	require.NoError(t, m.Add(modelstore.Entry{
		Name: "mobilenetv2_wd4", Error: "0.4927", SHA256: sum, URL: srv.URL + "/wd4.safetensors",
	}))
	require.NoError(t, m.Save(manifest))
	cfgPath := writeConfig(t, dir, manifest)

	out, err = execute(t, cfgPath, "fetch", "--all")
	require.NoError(t, err)
	assert.Contains(t, out, "mobilenetv2_wd4")
	assert.Contains(t, out, filepath.Join(dir, "models"))

	img := filepath.Join(dir, "pattern.png")
	writePNG(t, img, 32, 32)
	out, err = execute(t, cfgPath, "predict", img, "--variant", "mobilenetv2_wd4", "--pretrained", "--in-size", "32", "--top", "1")
	require.NoError(t, err)
	assert.Contains(t, out, "1. class ")

	_, err = execute(t, cfgPath, "fetch")
	assert.True(t, errors.Is(err, errNoModels))

	_, err = execute(t, cfgPath, "fetch", "mobilenetv2_w1")
	assert.True(t, errors.Is(err, modelstore.ErrUnknownModel))

	out, err = execute(t, cfgPath, "fetch", "--purge")
	require.NoError(t, err)
	assert.Empty(t, out)
	cached, err := filepath.Glob(filepath.Join(dir, "models", "*.safetensors"))
	require.NoError(t, err)
	assert.Empty(t, cached)
}

func TestPredict_Errors(t *testing.T) {
	dir := t.TempDir()
	cfgPath := writeConfig(t, dir, "")
	img := filepath.Join(dir, "pattern.png")
	writePNG(t, img, 16, 16)

	_, err := execute(t, cfgPath, "predict")
	assert.Error(t, err)

	_, err = execute(t, cfgPath, "predict", filepath.Join(dir, "missing.png"))
	assert.Error(t, err)

	_, err = execute(t, cfgPath, "predict", img, "--pretrained", "--weights", "w.safetensors")
	assert.ErrorContains(t, err, "mutually exclusive")

	_, err = execute(t, cfgPath, "predict", img, "--in-size", "32", "--device", "tpu")
	assert.True(t, errors.Is(err, errDeviceUnavailable))

	if runtime.GOOS != "windows" {
		_, err = execute(t, cfgPath, "predict", img, "--in-size", "32", "--device", "webgpu")
		assert.True(t, errors.Is(err, errDeviceUnavailable))
	}
}

func TestInvalidConfig(t *testing.T) {
	_, err := execute(t, writeConfig(t, t.TempDir(), ""), "--workers", "-2", "variants")
	assert.True(t, errors.Is(err, config.ErrInvalidConfig))
}
