package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/born-ml/vision/internal/checkpoint"
	"github.com/born-ml/vision/internal/cifar"
)

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := NewCLI()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return stdout.String(), err
}

func writeConfig(t *testing.T, doc string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(doc), 0o600))
	return path
}

func TestVersion(t *testing.T) {
	out, err := run(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "convnext "+version)
}

func TestSmoke(t *testing.T) {
	out, err := run(t, "smoke", "--channels", "4", "--batch", "2", "--height", "8", "--width", "8", "--drop-path", "0.1", "--repeat", "2")
	require.NoError(t, err)
	assert.Contains(t, out, "input:        (2, 4, 8, 8)")
	assert.Contains(t, out, "output eval:  (2, 4, 8, 8)")
	assert.Contains(t, out, "output train: (2, 4, 8, 8)")
	assert.Contains(t, out, "ok")
}

func TestSmoke_InvalidBlock(t *testing.T) {
	_, err := run(t, "smoke", "--kernel-size", "4")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "kernel size")
}

func TestSmoke_ConfigFile(t *testing.T) {
	path := writeConfig(t, "block:\n  channels: 3\n  kernel_size: 3\n")
	out, err := run(t, "smoke", "--config", path, "--batch", "1", "--height", "5", "--width", "5")
	require.NoError(t, err)
	assert.Contains(t, out, "input:        (1, 3, 5, 5)")
	assert.Contains(t, out, "kernel_size=3")
}

func TestParams_Block(t *testing.T) {
	out, err := run(t, "params")
	require.NoError(t, err)
	for _, name := range []string{"dwconv.depthwise.weight", "norm.scale", "pwconv1.weight", "pwconv2.bias"} {
		assert.Contains(t, out, name)
	}
	// 16 channels: 1,072 dwsep + 32 norm + 2,128 pointwise.
	assert.Contains(t, out, "total: 3,232 parameters")
}

func TestParams_Model(t *testing.T) {
	path := writeConfig(t, "model:\n  name: resnet\n  depths: [1, 1, 1]\n  dims: [4, 8, 16]\n  eps: 1e-5\n")
	out, err := run(t, "params", "model", "--config", path)
	require.NoError(t, err)
	assert.Contains(t, out, "layer2.0.shortcut.0.weight")
	assert.Contains(t, out, "fc.bias")

	_, err = run(t, "params", "everything")
	assert.Error(t, err)
}

func TestExport(t *testing.T) {
	output := filepath.Join(t.TempDir(), "block.safetensors")
	out, err := run(t, "export", "--output", output, "--half", "--seed", "3")
	require.NoError(t, err)
	assert.Contains(t, out, "in 10 tensors")

	f, err := checkpoint.ReadFile(output)
	require.NoError(t, err)
	assert.Equal(t, "block", f.Metadata["kind"])
	assert.Contains(t, f.Metadata["config"], "seed: 3")
	assert.Equal(t, "F16", f.DTypes["pwconv1.weight"])

	_, err = run(t, "export")
	assert.Error(t, err)
}

func writeTestBatch(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	var buf bytes.Buffer
	for i := 0; i < 5; i++ {
		rec := make([]byte, cifar.RecordSize)
		rec[0] = byte(i % 2)
		rec[1] = byte(i * 40)
		buf.Write(rec)
	}
	require.NoError(t, os.WriteFile(filepath.Join(dir, "test_batch.bin"), buf.Bytes(), 0o600))
	return dir
}

func TestCIFAR(t *testing.T) {
	dir := writeTestBatch(t)
	out, err := run(t, "cifar", "--dir", dir, "--batch-size", "2")
	require.NoError(t, err)
	assert.Contains(t, out, "test examples: 5")
	assert.Contains(t, out, "plane")
	assert.Contains(t, out, "converted 5 examples in 3 batches of 2")
	assert.NotContains(t, out, "accuracy:")

	_, err = run(t, "cifar", "--dir", t.TempDir())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "test_batch.bin")
}

func TestCIFAR_PredictFromExportedCheckpoint(t *testing.T) {
	dir := writeTestBatch(t)
	path := writeConfig(t, "model:\n  name: resnet\n  depths: [1]\n  dims: [4]\n  eps: 1e-5\n")
	weights := filepath.Join(t.TempDir(), "resnet.safetensors")

	_, err := run(t, "export", "model", "--config", path, "--output", weights, "--seed", "3")
	require.NoError(t, err)

	// A different seed initializes different weights; the checkpoint replaces them.
	out, err := run(t, "cifar", "--dir", dir, "--batch-size", "2", "--config", path,
		"--seed", "9", "--predict", "--checkpoint", weights)
	require.NoError(t, err)
	assert.Contains(t, out, "loaded weights from "+weights)
	assert.Contains(t, out, "accuracy:")

	_, err = run(t, "cifar", "--dir", dir, "--config", path, "--predict")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "--checkpoint")

	// Block weights do not fit the model.
	blockWeights := filepath.Join(t.TempDir(), "block.safetensors")
	_, err = run(t, "export", "--output", blockWeights)
	require.NoError(t, err)
	_, err = run(t, "cifar", "--dir", dir, "--config", path, "--predict", "--checkpoint", blockWeights)
	require.Error(t, err)
	assert.Contains(t, err.Error(), blockWeights)
}
