package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/born-ml/vision/internal/nn"
)

func TestDefault_IsValid(t *testing.T) {
	require.NoError(t, Default().Validate())
	require.NoError(t, DefaultResNetConfig().Validate())
	require.NoError(t, DefaultViTConfig().Validate())
}

func TestParse_Empty(t *testing.T) {
	cfg, err := Parse(nil)
	require.NoError(t, err)
	if diff := cmp.Diff(Default(), cfg); diff != "" {
		t.Errorf("empty document should yield defaults (-want +got):\n%s", diff)
	}
}

func TestParse_Overrides(t *testing.T) {
	doc := `
seed: 42
block:
  channels: 32
  drop_path: 0.2
model:
  name: resnet
  depths: [1, 1]
  dims: [8, 16]
data:
  batch_size: 64
  normalization: cifar10
`
	cfg, err := Parse([]byte(doc))
	require.NoError(t, err)

	want := Default()
	want.Seed = 42
	want.Block.Channels = 32
	want.Block.DropPath = 0.2
	want.Model.Name = ModelResNet
	want.Model.Depths = []int{1, 1}
	want.Model.Dims = []int{8, 16}
	want.Data.BatchSize = 64
	want.Data.Normalization = NormalizationCIFAR10
	if diff := cmp.Diff(want, cfg); diff != "" {
		t.Errorf("config mismatch (-want +got):\n%s", diff)
	}
}

func TestParse_UnknownField(t *testing.T) {
	_, err := Parse([]byte("block:\n  chanels: 3\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "chanels")
}

func TestParse_Invalid(t *testing.T) {
	tests := []struct {
		name string
		doc  string
		msg  string
	}{
		{"even kernel", "block: {kernel_size: 4}", "block"},
		{"drop path", "block: {drop_path: 1.0}", "drop path"},
		{"model name", "model: {name: perceiver}", `unknown model "perceiver"`},
		{"vit stages", "model: {name: vit, patch_size: 4, image_size: 32, num_heads: 4}", "single stage"},
		{"vit patch", "model: {name: vit, depths: [2], dims: [16], patch_size: 5, image_size: 32, num_heads: 4}", "patch_size"},
		{"vit heads", "model: {name: vit, depths: [2], dims: [16], patch_size: 4, image_size: 32, num_heads: 3}", "num_heads"},
		{"stage mismatch", "model: {depths: [1], dims: [8, 16]}", "equal length"},
		{"batch size", "data: {batch_size: 0}", "batch_size"},
		{"normalization", "data: {normalization: imagenet}", "imagenet"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.doc))
			require.Error(t, err)
			assert.True(t, errors.Is(err, nn.ErrInvalidConfig), "got %v", err)
			assert.Contains(t, err.Error(), tt.msg)
		})
	}
}

func TestParse_ViT(t *testing.T) {
	doc := `
model:
  name: vit
  depths: [2]
  dims: [16]
  widening_factor: 2
  image_size: 32
  patch_size: 8
  num_heads: 2
`
	cfg, err := Parse([]byte(doc))
	require.NoError(t, err)
	assert.Equal(t, ModelViT, cfg.Model.Name)
	assert.Equal(t, 8, cfg.Model.PatchSize)
	assert.Equal(t, 2, cfg.Model.NumHeads)

	data, err := Marshal(cfg)
	require.NoError(t, err)
	assert.Contains(t, string(data), "patch_size: 8")

	data, err = Marshal(Default())
	require.NoError(t, err)
	assert.NotContains(t, string(data), "patch_size", "ViT fields are omitted for other models")
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")

	cfg := Default()
	cfg.Seed = 7
	cfg.Model = DefaultResNetConfig()
	data, err := Marshal(cfg)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, data, 0o600))

	loaded, err := Load(path)
	require.NoError(t, err)
	if diff := cmp.Diff(cfg, loaded); diff != "" {
		t.Errorf("round trip mismatch (-want +got):\n%s", diff)
	}

	_, err = Load(filepath.Join(dir, "missing.yaml"))
	require.Error(t, err)
	assert.True(t, os.IsNotExist(errors.Cause(err)))
}
