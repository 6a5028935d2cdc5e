package checkpoint

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"encoding/json"
	"io"
	"os"
	"sort"

	"github.com/pkg/errors"
	"github.com/x448/float16"
	"k8s.io/klog/v2"

	"github.com/born-ml/vision/internal/nn"
	"github.com/born-ml/vision/internal/tensor"
)

// Options control how tensors are written.
type Options struct {
	// Half stores float32 tensors as IEEE 754 half precision (F16). They are
	// widened back to float32 when read.
	Half bool
	// Metadata is stored under "__metadata__".
	Metadata map[string]string
}

// Save writes the parameters and buffers of m to path.
func Save[B tensor.Backend](path string, m nn.Module[B], opts Options) error {
	if err := WriteFile(path, nn.StateDict(m), opts); err != nil {
		return err
	}
	klog.V(1).Infof("saved %d tensors (%d parameters) to %s", len(nn.State(m)), nn.CountParameters(m), path)
	return nil
}

// WriteFile writes tensors to path, replacing any existing file.
func WriteFile(path string, tensors map[string]*tensor.RawTensor, opts Options) error {
	//nolint:gosec // G304: checkpoint paths are chosen by the caller
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrapf(err, "creating checkpoint %q", path)
	}
	bw := bufio.NewWriter(f)
	if err := Write(bw, tensors, opts); err != nil {
		_ = f.Close()
		return errors.WithMessagef(err, "writing checkpoint %q", path)
	}
	if err := bw.Flush(); err != nil {
		_ = f.Close()
		return errors.Wrapf(err, "writing checkpoint %q", path)
	}
	return errors.Wrapf(f.Close(), "closing checkpoint %q", path)
}

// Write encodes tensors to w. Tensors are laid out in name order.
func Write(w io.Writer, tensors map[string]*tensor.RawTensor, opts Options) error {
	names := make([]string, 0, len(tensors))
	for name := range tensors {
		if err := validateName(name); err != nil {
			return err
		}
		names = append(names, name)
	}
	sort.Strings(names)

	header := make(map[string]any, len(names)+1)
	if len(opts.Metadata) > 0 {
		header[metadataKey] = opts.Metadata
	}
	var offset int64
	for _, name := range names {
		raw := tensors[name]
		dtype, err := dtypeName(raw.DType())
		if err != nil {
			return errors.WithMessagef(err, "tensor %s", name)
		}
		size := int64(raw.ByteSize())
		if opts.Half && raw.DType() == tensor.Float32 {
			dtype = dtypeF16
			size = int64(raw.NumElements() * 2)
		}
		shape := make([]int64, len(raw.Shape()))
		for i, d := range raw.Shape() {
			shape[i] = int64(d)
		}
		header[name] = tensorHeader{DType: dtype, Shape: shape, DataOffsets: [2]int64{offset, offset + size}}
		offset += size
	}

	headerJSON, err := json.Marshal(header)
	if err != nil {
		return errors.Wrap(err, "encoding header")
	}
	if pad := len(headerJSON) % 8; pad != 0 {
		headerJSON = append(headerJSON, bytes.Repeat([]byte{' '}, 8-pad)...)
	}

	if err := binary.Write(w, binary.LittleEndian, uint64(len(headerJSON))); err != nil {
		return errors.Wrap(err, "writing header size")
	}
	if _, err := w.Write(headerJSON); err != nil {
		return errors.Wrap(err, "writing header")
	}
	for _, name := range names {
		raw := tensors[name]
		data := raw.Data()
		if opts.Half && raw.DType() == tensor.Float32 {
			data = encodeHalf(raw.AsFloat32())
		}
		if _, err := w.Write(data); err != nil {
			return errors.Wrapf(err, "writing tensor %s", name)
		}
	}
	return nil
}

func encodeHalf(values []float32) []byte {
	out := make([]byte, 2*len(values))
	for i, v := range values {
		binary.LittleEndian.PutUint16(out[2*i:], float16.Fromfloat32(v).Bits())
	}
	return out
}
