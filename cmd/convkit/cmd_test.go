package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/born-ml/convkit/record"
)

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := NewCLI()
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func writeConfig(t *testing.T, dir, name, src string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(src), 0o644))
	return path
}

const conv2dConfig = `
kind: conv2d
config:
  channels: [3, 8]
  kernel_size: [3, 3]
  stride: [2, 2]
  padding: same
`

func TestInitInspectForward(t *testing.T) {
	t.Setenv("CONVKIT_PRECISION", "")
	dir := t.TempDir()
	cfg := writeConfig(t, dir, "stem.yaml", conv2dConfig)

	out, err := run(t, "init", cfg)
	require.NoError(t, err)
	ckptPath := filepath.Join(dir, "stem.ckpt")
	assert.Contains(t, out, "Conv2d {ch_in: 3, ch_out: 8")
	assert.Contains(t, out, ckptPath)

	ckpt, err := record.RecorderFor(ckptPath).Load(ckptPath)
	require.NoError(t, err)
	assert.Equal(t, "conv2d", ckpt.ModuleType)
	assert.Equal(t, record.Full, ckpt.Precision)
	assert.Equal(t, "stem.yaml", ckpt.Metadata["source"])

	out, err = run(t, "inspect", ckptPath)
	require.NoError(t, err)
	assert.Contains(t, out, "conv2d")
	assert.Contains(t, out, "224") // 8*3*3*3 + 8
	assert.Contains(t, out, "f32 [8 3 3 3]")
	assert.Contains(t, out, "cpu:0")

	out, err = run(t, "forward", ckptPath, "--shape", "1,3,28,28")
	require.NoError(t, err)
	assert.Contains(t, out, "[1 3 28 28]")
	assert.Contains(t, out, "[1 8 14 14]")
}

func TestConvert(t *testing.T) {
	dir := t.TempDir()
	cfg := writeConfig(t, dir, "up.yaml", `
kind: conv_transpose2d
config:
  channels: [4, 2]
  kernel_size: [2, 2]
  stride: [2, 2]
`)
	ckptPath := filepath.Join(dir, "up.ckpt")
	_, err := run(t, "init", cfg, "-o", ckptPath, "-p", "full")
	require.NoError(t, err)

	jsonPath := filepath.Join(dir, "up.json")
	out, err := run(t, "convert", ckptPath, jsonPath, "--precision", "half")
	require.NoError(t, err)
	assert.Contains(t, out, "(full)")
	assert.Contains(t, out, "(half)")

	ckpt, err := record.RecorderFor(jsonPath).Load(jsonPath)
	require.NoError(t, err)
	assert.Equal(t, record.Half, ckpt.Precision)
	weight, err := ckpt.Item.Child("weight")
	require.NoError(t, err)
	w, err := weight.Tensor("param")
	require.NoError(t, err)
	assert.Equal(t, "f16", w.DType)
	assert.Equal(t, []int{4, 2, 2, 2}, w.Shape)

	out, err = run(t, "forward", jsonPath, "--shape", "1,4,5,5", "--fill", "ones")
	require.NoError(t, err)
	assert.Contains(t, out, "[1 2 10 10]")
}

func TestDeformForward(t *testing.T) {
	dir := t.TempDir()
	cfg := writeConfig(t, dir, "deform.yaml", `
kind: deform_conv2d
config:
  channels: [2, 4]
  kernel_size: [3, 3]
  offset_groups: 2
`)
	ckptPath := filepath.Join(dir, "deform.json")
	_, err := run(t, "init", cfg, "-o", ckptPath)
	require.NoError(t, err)

	out, err := run(t, "forward", ckptPath, "--shape", "2,2,6,6")
	require.NoError(t, err)
	assert.Contains(t, out, "[2 4 4 4]")
}

func TestErrors(t *testing.T) {
	dir := t.TempDir()

	_, err := run(t, "init", writeConfig(t, dir, "bad.yaml", "kind: conv4d\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unknown layer kind "conv4d"`)

	_, err = run(t, "init", writeConfig(t, dir, "groups.yaml", `
kind: conv1d
config:
  channels_in: 5
  channels_out: 4
  kernel_size: 3
  groups: 2
`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "groups")

	cfg := writeConfig(t, dir, "ok.yaml", conv2dConfig)
	_, err = run(t, "init", cfg, "-p", "quarter")
	require.Error(t, err)

	_, err = run(t, "init", cfg)
	require.NoError(t, err)
	ckptPath := filepath.Join(dir, "ok.ckpt")

	_, err = run(t, "forward", ckptPath, "--shape", "1,3,28")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "expects a 4D input")

	_, err = run(t, "forward", ckptPath, "--shape", "1,4,28,28")
	require.Error(t, err)
	assert.True(t, strings.HasPrefix(err.Error(), "forward:"), err.Error())

	_, err = run(t, "inspect", filepath.Join(dir, "missing.ckpt"))
	require.Error(t, err)
}

func TestKindsAndVersion(t *testing.T) {
	out, err := run(t, "kinds")
	require.NoError(t, err)
	for _, name := range kindNames() {
		assert.Contains(t, out, name)
	}
	assert.Contains(t, out, "[batch, channels, _, _, _]")

	out, err = run(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "convkit version is")
}
