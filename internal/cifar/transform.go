package cifar

import (
	"image"
	"image/color"
	"math"

	"github.com/pkg/errors"

	"github.com/born-ml/vision/internal/parallel"
	"github.com/born-ml/vision/internal/tensor"
)

// Normalization holds per-channel statistics applied after scaling pixels to
// [0, 1]: x' = (x - Mean[c]) / Std[c].
type Normalization struct {
	Mean [Channels]float32
	Std  [Channels]float32
}

var (
	// DefaultNormalization maps [0, 1] to [-1, 1].
	DefaultNormalization = Normalization{
		Mean: [Channels]float32{0.5, 0.5, 0.5},
		Std:  [Channels]float32{0.5, 0.5, 0.5},
	}
	// CIFAR10Statistics are the channel statistics of the training set.
	CIFAR10Statistics = Normalization{
		Mean: [Channels]float32{0.4914, 0.4822, 0.4465},
		Std:  [Channels]float32{0.2470, 0.2435, 0.2616},
	}
)

// NormalizationByName returns "default" or "cifar10" statistics.
func NormalizationByName(name string) (Normalization, error) {
	switch name {
	case "", "default":
		return DefaultNormalization, nil
	case "cifar10":
		return CIFAR10Statistics, nil
	}
	return Normalization{}, errors.Errorf("unknown normalization %q", name)
}

// ToTensor converts examples to a normalized [N, 3, 32, 32] float32 tensor
// and returns their labels.
func ToTensor[B tensor.Backend](examples []Example, norm Normalization, backend B) (*tensor.Tensor[float32, B], []int) {
	out := tensor.Zeros[float32](tensor.Shape{len(examples), Channels, Height, Width}, backend)
	data := out.Data()
	labels := make([]int, len(examples))

	var scale, offset [Channels]float32
	for c := 0; c < Channels; c++ {
		scale[c] = 1 / (255 * norm.Std[c])
		offset[c] = norm.Mean[c] / norm.Std[c]
	}

	parallel.For(len(examples), func(i int) {
		ex := &examples[i]
		labels[i] = ex.Label
		dst := data[i*PixelSize : (i+1)*PixelSize]
		for j, v := range ex.Pixels {
			c := j / PlaneSize
			dst[j] = float32(v)*scale[c] - offset[c]
		}
	}, workerConfig(backend))
	return out, labels
}

// workerConfig follows the backend's parallelism when it reports one.
func workerConfig(backend any) parallel.Config {
	cfg := parallel.DefaultConfig()
	if w, ok := backend.(interface{ Workers() int }); ok {
		cfg.Workers = w.Workers()
	}
	return cfg
}

// Predict returns the arg-max class of every row of [N, classes] logits.
func Predict[B tensor.Backend](logits *tensor.Tensor[float32, B]) []int {
	shape := logits.Shape()
	if len(shape) != 2 {
		panic("cifar: expected 2D logits [N, classes]")
	}
	data := logits.Data()
	n, classes := shape[0], shape[1]
	preds := make([]int, n)
	for i := 0; i < n; i++ {
		row := data[i*classes : (i+1)*classes]
		best := 0
		for j, v := range row {
			if v > row[best] {
				best = j
			}
		}
		preds[i] = best
	}
	return preds
}

// TensorToImage undoes the normalization of sample index of a [N, 3, H, W]
// tensor and returns it as an RGB image.
func TensorToImage[B tensor.Backend](t *tensor.Tensor[float32, B], index int, norm Normalization) (*image.NRGBA, error) {
	shape := t.Shape()
	if len(shape) != 4 || shape[1] != Channels {
		return nil, errors.Errorf("expected [N, %d, H, W] tensor, got %v", Channels, shape)
	}
	if index < 0 || index >= shape[0] {
		return nil, errors.Errorf("index %d out of range for batch of %d", index, shape[0])
	}
	h, w := shape[2], shape[3]
	plane := h * w
	data := t.Data()[index*Channels*plane : (index+1)*Channels*plane]

	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			var rgb [Channels]uint8
			for c := 0; c < Channels; c++ {
				v := (data[c*plane+y*w+x]*norm.Std[c] + norm.Mean[c]) * 255
				rgb[c] = clampByte(v)
			}
			img.SetNRGBA(x, y, color.NRGBA{R: rgb[0], G: rgb[1], B: rgb[2], A: 255})
		}
	}
	return img, nil
}

// ToImage returns the example as an RGB image.
func ToImage(ex Example) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, Width, Height))
	for y := 0; y < Height; y++ {
		for x := 0; x < Width; x++ {
			img.SetNRGBA(x, y, color.NRGBA{R: ex.At(0, y, x), G: ex.At(1, y, x), B: ex.At(2, y, x), A: 255})
		}
	}
	return img
}

// FromImage converts a 32×32 image to an Example. Alpha is ignored.
func FromImage(img image.Image, label int) (Example, error) {
	b := img.Bounds()
	if b.Dx() != Width || b.Dy() != Height {
		return Example{}, errors.Errorf("image is %dx%d, want %dx%d", b.Dx(), b.Dy(), Width, Height)
	}
	if label < 0 || label >= NumClasses {
		return Example{}, errors.Errorf("label %d out of range", label)
	}
	ex := Example{Label: label}
	for y := 0; y < Height; y++ {
		for x := 0; x < Width; x++ {
			c := color.NRGBAModel.Convert(img.At(b.Min.X+x, b.Min.Y+y)).(color.NRGBA)
			ex.Pixels[y*Width+x] = c.R
			ex.Pixels[PlaneSize+y*Width+x] = c.G
			ex.Pixels[2*PlaneSize+y*Width+x] = c.B
		}
	}
	return ex, nil
}

func clampByte(v float32) uint8 {
	r := math.Round(float64(v))
	switch {
	case r <= 0 || math.IsNaN(r):
		return 0
	case r >= 255:
		return 255
	}
	return uint8(r)
}
