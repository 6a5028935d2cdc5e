// Package models assembles image classifiers from the nn building blocks.
package models

import (
	"math/rand"
	"strings"

	"github.com/pkg/errors"
	"k8s.io/klog/v2"

	"github.com/born-ml/vision/internal/config"
	"github.com/born-ml/vision/internal/nn"
	"github.com/born-ml/vision/internal/tensor"
)

// Classifier maps [N, C, H, W] images to [N, NumClasses] logits.
type Classifier[B tensor.Backend] interface {
	nn.Module[B]
	Name() string
	NumClasses() int
}

// New builds the classifier named by cfg.Name.
func New[B tensor.Backend](cfg config.ModelConfig, backend B, rng *rand.Rand) (Classifier[B], error) {
	rng = nn.RandOrDefault(rng)

	var (
		model Classifier[B]
		err   error
	)
	switch cfg.Name {
	case config.ModelConvNeXt:
		model, err = NewConvNeXt(cfg, backend, rng)
	case config.ModelResNet:
		model, err = NewResNet(cfg, backend, rng)
	case config.ModelViT:
		model, err = NewViT(cfg, backend, rng)
	default:
		return nil, errors.Wrapf(nn.ErrInvalidConfig, "unknown model %q", cfg.Name)
	}
	if err != nil {
		return nil, errors.WithMessagef(err, "building %s", cfg.Name)
	}
	klog.V(1).Infof("built %s: %d parameters in %d tensors",
		model.Name(), nn.CountParameters[B](model), len(model.Parameters()))
	return model, nil
}

func isWeight(name string) bool {
	return name == "weight" || strings.HasSuffix(name, ".weight")
}

func isBias(name string) bool {
	return name == "bias" || strings.HasSuffix(name, ".bias")
}
