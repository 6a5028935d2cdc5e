package checkpoint

import (
	"bufio"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/pkg/errors"
	"github.com/x448/float16"
	"k8s.io/klog/v2"

	"github.com/born-ml/vision/internal/nn"
	"github.com/born-ml/vision/internal/tensor"
)

// File is a decoded checkpoint.
type File struct {
	Tensors  map[string]*tensor.RawTensor
	Metadata map[string]string
	// DTypes records the stored dtype of every tensor, e.g. "F16".
	DTypes map[string]string
}

// Load reads path into the parameters and buffers of m. Every entry of m must
// be present with the same shape; extra tensors are ignored.
func Load[B tensor.Backend](path string, m nn.Module[B]) error {
	f, err := ReadFile(path)
	if err != nil {
		return err
	}
	if err := nn.LoadStateDict(m, f.Tensors); err != nil {
		return errors.WithMessagef(err, "loading checkpoint %q", path)
	}
	klog.V(1).Infof("loaded %d tensors from %s", len(f.Tensors), path)
	return nil
}

// ReadFile decodes the checkpoint at path.
func ReadFile(path string) (*File, error) {
	//nolint:gosec // G304: checkpoint paths are chosen by the caller
	fh, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "opening checkpoint %q", path)
	}
	defer fh.Close()

	f, err := Read(bufio.NewReader(fh))
	if err != nil {
		return nil, errors.WithMessagef(err, "reading checkpoint %q", path)
	}
	return f, nil
}

// Read decodes a checkpoint from r. F16 tensors are widened to float32.
func Read(r io.Reader) (*File, error) {
	var headerSize uint64
	if err := binary.Read(r, binary.LittleEndian, &headerSize); err != nil {
		return nil, errors.Wrap(err, "reading header size")
	}
	if headerSize > MaxHeaderSize {
		return nil, &ValidationError{
			Type:    "header_too_large",
			Details: fmt.Sprintf("%d bytes, max %d", headerSize, MaxHeaderSize),
		}
	}
	headerJSON := make([]byte, headerSize)
	if _, err := io.ReadFull(r, headerJSON); err != nil {
		return nil, errors.Wrap(err, "reading header")
	}

	var entries map[string]json.RawMessage
	if err := json.Unmarshal(headerJSON, &entries); err != nil {
		return nil, errors.Wrap(err, "decoding header")
	}

	f := &File{
		Tensors:  make(map[string]*tensor.RawTensor, len(entries)),
		Metadata: map[string]string{},
		DTypes:   make(map[string]string, len(entries)),
	}
	headers := make(map[string]tensorHeader, len(entries))
	spans := make([]span, 0, len(entries))
	for name, entry := range entries {
		if name == metadataKey {
			if err := json.Unmarshal(entry, &f.Metadata); err != nil {
				return nil, errors.Wrap(err, "decoding metadata")
			}
			continue
		}
		if err := validateName(name); err != nil {
			return nil, err
		}
		var h tensorHeader
		if err := json.Unmarshal(entry, &h); err != nil {
			return nil, errors.Wrapf(err, "decoding header of %s", name)
		}
		headers[name] = h
		spans = append(spans, span{name: name, begin: h.DataOffsets[0], end: h.DataOffsets[1]})
	}

	data, err := io.ReadAll(r)
	if err != nil {
		return nil, errors.Wrap(err, "reading tensor data")
	}
	if err := validateSpans(spans, int64(len(data))); err != nil {
		return nil, err
	}

	for name, h := range headers {
		raw, err := decodeTensor(name, h, data[h.DataOffsets[0]:h.DataOffsets[1]])
		if err != nil {
			return nil, err
		}
		f.Tensors[name] = raw
		f.DTypes[name] = h.DType
	}
	return f, nil
}

func decodeTensor(name string, h tensorHeader, data []byte) (*tensor.RawTensor, error) {
	dtype, elemSize, err := storedDType(h.DType)
	if err != nil {
		return nil, errors.WithMessagef(err, "tensor %s", name)
	}
	shape := make(tensor.Shape, len(h.Shape))
	for i, d := range h.Shape {
		shape[i] = int(d)
	}
	if err := shape.Validate(); err != nil {
		return nil, errors.WithMessagef(err, "tensor %s", name)
	}
	if want := shape.NumElements() * elemSize; want != len(data) {
		return nil, &ValidationError{
			Type:    "size_mismatch",
			Tensor:  name,
			Details: fmt.Sprintf("shape %v needs %d bytes, data_offsets cover %d", shape, want, len(data)),
		}
	}

	raw, err := tensor.NewRaw(shape, dtype, tensor.CPU)
	if err != nil {
		return nil, errors.WithMessagef(err, "tensor %s", name)
	}
	if h.DType == dtypeF16 {
		values := raw.AsFloat32()
		for i := range values {
			values[i] = float16.Frombits(binary.LittleEndian.Uint16(data[2*i:])).Float32()
		}
		return raw, nil
	}
	copy(raw.Data(), data)
	return raw, nil
}
