// Package checkpoint saves and loads module state in the SafeTensors format.
//
//	[8 bytes: header size N (uint64 LE)]
//	[N bytes: JSON header, space padded to a multiple of 8]
//	[tensor data: raw little-endian bytes, tensors sorted by name]
//
// The header maps every tensor name to its dtype, shape and
// [begin, end) byte offsets within the data section. Free-form string
// metadata is stored under "__metadata__".
package checkpoint

import (
	"github.com/pkg/errors"

	"github.com/born-ml/vision/internal/nn"
	"github.com/born-ml/vision/internal/tensor"
)

const metadataKey = "__metadata__"

// Limits applied when reading.
const (
	MaxHeaderSize    = 100 * 1024 * 1024
	MaxTensorCount   = 100_000
	MaxTensorNameLen = 4096
)

// Errors returned by Load. They match nn.LoadStateDict errors with errors.Is.
var (
	ErrMissingTensor = nn.ErrMissingState
	ErrShapeMismatch = nn.ErrShapeMismatch
)

// ErrUnsupportedDType is wrapped when a file holds a dtype this package cannot
// decode.
var ErrUnsupportedDType = errors.New("unsupported dtype")

// tensorHeader is the header entry of a single tensor.
type tensorHeader struct {
	DType       string   `json:"dtype"`
	Shape       []int64  `json:"shape"`
	DataOffsets [2]int64 `json:"data_offsets"`
}

const (
	dtypeF16 = "F16"
	dtypeF32 = "F32"
	dtypeF64 = "F64"
	dtypeI64 = "I64"
	dtypeU8  = "U8"
)

func dtypeName(dt tensor.DataType) (string, error) {
	switch dt {
	case tensor.Float32:
		return dtypeF32, nil
	case tensor.Float64:
		return dtypeF64, nil
	case tensor.Int64:
		return dtypeI64, nil
	case tensor.Uint8:
		return dtypeU8, nil
	}
	return "", errors.Wrapf(ErrUnsupportedDType, "%s", dt)
}

// storedDType returns the in-memory dtype of a file dtype and its element
// size in the file.
func storedDType(name string) (tensor.DataType, int, error) {
	switch name {
	case dtypeF16:
		return tensor.Float32, 2, nil
	case dtypeF32:
		return tensor.Float32, 4, nil
	case dtypeF64:
		return tensor.Float64, 8, nil
	case dtypeI64:
		return tensor.Int64, 8, nil
	case dtypeU8:
		return tensor.Uint8, 1, nil
	}
	return 0, 0, errors.Wrapf(ErrUnsupportedDType, "%q", name)
}
