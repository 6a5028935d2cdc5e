// Package config loads component settings from YAML.
package config

import (
	"bytes"
	"io"
	"os"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/born-ml/vision/internal/nn"
)

// Model names understood by models.New.
const (
	ModelConvNeXt = "convnext"
	ModelResNet   = "resnet"
	ModelViT      = "vit"
)

// Normalization presets understood by DataConfig.
const (
	NormalizationDefault = "default"
	NormalizationCIFAR10 = "cifar10"
)

// Config is the root configuration document.
type Config struct {
	Block nn.BlockConfig `yaml:"block"`
	Model ModelConfig    `yaml:"model"`
	Data  DataConfig     `yaml:"data"`
	Seed  int64          `yaml:"seed"`
}

// ModelConfig describes a classifier. Depths and Dims list the number of
// blocks and the width of every stage.
//
// A ViT has a single stage: Depths[0] transformer blocks of width Dims[0],
// WideningFactor as the feed-forward expansion and ImageSize, PatchSize and
// NumHeads describing the tokenization and attention.
type ModelConfig struct {
	Name           string  `yaml:"name"`
	InChannels     int     `yaml:"in_channels"`
	NumClasses     int     `yaml:"num_classes"`
	Depths         []int   `yaml:"depths"`
	Dims           []int   `yaml:"dims"`
	KernelSize     int     `yaml:"kernel_size"`
	WideningFactor int     `yaml:"widening_factor"`
	DropPathRate   float64 `yaml:"drop_path_rate"`
	Eps            float64 `yaml:"eps"`
	ImageSize      int     `yaml:"image_size,omitempty"`
	PatchSize      int     `yaml:"patch_size,omitempty"`
	NumHeads       int     `yaml:"num_heads,omitempty"`
}

// DataConfig describes how CIFAR-10 batches are read.
type DataConfig struct {
	Dir           string `yaml:"dir"`
	BatchSize     int    `yaml:"batch_size"`
	Shuffle       bool   `yaml:"shuffle"`
	DropLast      bool   `yaml:"drop_last"`
	Normalization string `yaml:"normalization"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Block: nn.DefaultBlockConfig(16),
		Model: DefaultModelConfig(),
		Data: DataConfig{
			Dir:           "./data",
			BatchSize:     16,
			Shuffle:       true,
			DropLast:      true,
			Normalization: NormalizationDefault,
		},
		Seed: 0,
	}
}

// DefaultModelConfig returns a small ConvNeXt for 32×32 inputs.
func DefaultModelConfig() ModelConfig {
	return ModelConfig{
		Name:           ModelConvNeXt,
		InChannels:     3,
		NumClasses:     10,
		Depths:         []int{2, 2, 2},
		Dims:           []int{32, 64, 128},
		KernelSize:     7,
		WideningFactor: 4,
		DropPathRate:   0.1,
		Eps:            1e-6,
	}
}

// DefaultResNetConfig returns the CIFAR ResNet-20 layout.
func DefaultResNetConfig() ModelConfig {
	return ModelConfig{
		Name:       ModelResNet,
		InChannels: 3,
		NumClasses: 10,
		Depths:     []int{3, 3, 3},
		Dims:       []int{16, 32, 64},
		Eps:        1e-5,
	}
}

// DefaultViTConfig returns a six-block Vision Transformer over 4×4 patches
// of 32×32 images.
func DefaultViTConfig() ModelConfig {
	return ModelConfig{
		Name:           ModelViT,
		InChannels:     3,
		NumClasses:     10,
		Depths:         []int{6},
		Dims:           []int{128},
		WideningFactor: 2,
		DropPathRate:   0.1,
		Eps:            1e-6,
		ImageSize:      32,
		PatchSize:      4,
		NumHeads:       4,
	}
}

// Load reads and validates the configuration file at path.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, errors.Wrapf(err, "reading config %q", path)
	}
	cfg, err := Parse(data)
	if err != nil {
		return Config{}, errors.WithMessagef(err, "config %q", path)
	}
	return cfg, nil
}

// Parse decodes a YAML document on top of Default and validates the result.
// Unknown keys are rejected.
func Parse(data []byte) (Config, error) {
	cfg := Default()
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return Config{}, errors.Wrap(err, "decoding yaml")
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Marshal encodes cfg as YAML.
func Marshal(cfg Config) ([]byte, error) {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(cfg); err != nil {
		return nil, errors.Wrap(err, "encoding yaml")
	}
	if err := enc.Close(); err != nil {
		return nil, errors.Wrap(err, "encoding yaml")
	}
	return buf.Bytes(), nil
}

// Validate checks every section.
func (c Config) Validate() error {
	if err := c.Block.Validate(); err != nil {
		return errors.WithMessage(err, "block")
	}
	if err := c.Model.Validate(); err != nil {
		return errors.WithMessage(err, "model")
	}
	if err := c.Data.Validate(); err != nil {
		return errors.WithMessage(err, "data")
	}
	return nil
}

// Validate checks the model description. Errors wrap nn.ErrInvalidConfig.
func (m ModelConfig) Validate() error {
	invalid := func(format string, args ...any) error {
		return errors.Wrapf(nn.ErrInvalidConfig, format, args...)
	}
	switch m.Name {
	case ModelConvNeXt, ModelResNet, ModelViT:
	default:
		return invalid("unknown model %q", m.Name)
	}
	switch {
	case m.InChannels <= 0:
		return invalid("in_channels must be positive, got %d", m.InChannels)
	case m.NumClasses <= 0:
		return invalid("num_classes must be positive, got %d", m.NumClasses)
	case len(m.Depths) == 0 || len(m.Depths) != len(m.Dims):
		return invalid("depths and dims must be non-empty and of equal length, got %d and %d", len(m.Depths), len(m.Dims))
	case !(m.Eps > 0):
		return invalid("eps must be positive, got %g", m.Eps)
	}
	for i := range m.Depths {
		if m.Depths[i] <= 0 || m.Dims[i] <= 0 {
			return invalid("stage %d: depth and dim must be positive, got %d and %d", i, m.Depths[i], m.Dims[i])
		}
	}
	if m.Name == ModelConvNeXt {
		block := nn.BlockConfig{
			Channels:       m.Dims[0],
			KernelSize:     m.KernelSize,
			WideningFactor: m.WideningFactor,
			DropPath:       m.DropPathRate,
			Eps:            m.Eps,
		}
		if err := block.Validate(); err != nil {
			return err
		}
	}
	if m.Name == ModelViT {
		return m.validateViT(invalid)
	}
	return nil
}

func (m ModelConfig) validateViT(invalid func(format string, args ...any) error) error {
	switch {
	case len(m.Depths) != 1:
		return invalid("vit: expected a single stage, got %d", len(m.Depths))
	case m.PatchSize <= 0 || m.ImageSize <= 0 || m.ImageSize%m.PatchSize != 0:
		return invalid("vit: image_size %d must be a positive multiple of patch_size %d", m.ImageSize, m.PatchSize)
	case m.NumHeads <= 0 || m.Dims[0]%m.NumHeads != 0:
		return invalid("vit: dim %d must be divisible by num_heads %d", m.Dims[0], m.NumHeads)
	case m.WideningFactor <= 0:
		return invalid("vit: widening_factor must be positive, got %d", m.WideningFactor)
	case !(m.DropPathRate >= 0 && m.DropPathRate < 1):
		return invalid("vit: drop_path_rate must be in [0, 1), got %g", m.DropPathRate)
	}
	return nil
}

// Validate checks the data section.
func (d DataConfig) Validate() error {
	if d.BatchSize <= 0 {
		return errors.Wrapf(nn.ErrInvalidConfig, "batch_size must be positive, got %d", d.BatchSize)
	}
	switch d.Normalization {
	case NormalizationDefault, NormalizationCIFAR10:
	default:
		return errors.Wrapf(nn.ErrInvalidConfig, "unknown normalization %q", d.Normalization)
	}
	return nil
}
