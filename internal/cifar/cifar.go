// Package cifar reads the CIFAR-10 binary distribution and converts it to
// normalized image tensors.
//
// The binary version stores every example as one label byte followed by
// 3072 pixel bytes: the 1024 red values of the 32×32 image in row-major
// order, then green, then blue.
package cifar

import (
	"bufio"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

// Image geometry.
const (
	Height     = 32
	Width      = 32
	Channels   = 3
	PlaneSize  = Height * Width
	PixelSize  = Channels * PlaneSize
	RecordSize = 1 + PixelSize
	NumClasses = 10
)

// BatchesDir is the directory name created by extracting the binary archive.
const BatchesDir = "cifar-10-batches-bin"

// ErrShortRecord is wrapped when a file ends inside a record.
var ErrShortRecord = errors.New("short cifar record")

// Labels are the class names indexed by label.
var Labels = [NumClasses]string{
	"plane", "car", "bird", "cat", "deer", "dog", "frog", "horse", "ship", "truck",
}

// LabelName returns the class name of label, or "" when out of range.
func LabelName(label int) string {
	if label < 0 || label >= NumClasses {
		return ""
	}
	return Labels[label]
}

// Example is one labelled image in planar RGB layout.
type Example struct {
	Label  int
	Pixels [PixelSize]byte
}

// At returns the value of channel c at row y, column x.
func (e *Example) At(c, y, x int) byte {
	return e.Pixels[c*PlaneSize+y*Width+x]
}

// Partition selects the training or the test files.
type Partition int

const (
	Train Partition = iota
	Test
)

// String returns the partition name.
func (p Partition) String() string {
	switch p {
	case Train:
		return "train"
	case Test:
		return "test"
	default:
		return "unknown"
	}
}

// ParsePartition maps "train" or "test" to a Partition.
func ParsePartition(s string) (Partition, error) {
	switch strings.ToLower(s) {
	case "train":
		return Train, nil
	case "test":
		return Test, nil
	}
	return 0, errors.Errorf("unknown partition %q, want train or test", s)
}

// Files returns the batch file names of the partition.
func (p Partition) Files() []string {
	if p == Test {
		return []string{"test_batch.bin"}
	}
	return []string{
		"data_batch_1.bin", "data_batch_2.bin", "data_batch_3.bin", "data_batch_4.bin", "data_batch_5.bin",
	}
}

// Decode reads records from r until EOF.
func Decode(r io.Reader) ([]Example, error) {
	br := bufio.NewReaderSize(r, RecordSize*64)
	var examples []Example
	var record [RecordSize]byte
	for {
		n, err := io.ReadFull(br, record[:])
		if errors.Is(err, io.EOF) {
			return examples, nil
		}
		if errors.Is(err, io.ErrUnexpectedEOF) {
			return examples, errors.Wrapf(ErrShortRecord, "record %d: got %d of %d bytes", len(examples), n, RecordSize)
		}
		if err != nil {
			return examples, errors.Wrapf(err, "record %d", len(examples))
		}
		label := int(record[0])
		if label >= NumClasses {
			return examples, errors.Errorf("record %d: label %d out of range", len(examples), label)
		}
		ex := Example{Label: label}
		copy(ex.Pixels[:], record[1:])
		examples = append(examples, ex)
	}
}

// ReadBatchFile reads every record of a binary batch file.
func ReadBatchFile(path string) ([]Example, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "opening batch file %q", path)
	}
	defer f.Close()

	examples, err := Decode(f)
	if err != nil {
		return nil, errors.WithMessagef(err, "reading batch file %q", path)
	}
	klog.V(1).Infof("read %d examples from %s", len(examples), path)
	return examples, nil
}

// Load reads all batch files of a partition. dir is either the extracted
// batches directory or its parent.
func Load(dir string, p Partition) ([]Example, error) {
	dir = resolveDir(dir)
	var examples []Example
	for _, name := range p.Files() {
		batch, err := ReadBatchFile(filepath.Join(dir, name))
		if err != nil {
			return nil, err
		}
		examples = append(examples, batch...)
	}
	return examples, nil
}

// ReadLabelNames reads batches.meta.txt, one class name per line.
func ReadLabelNames(dir string) ([]string, error) {
	path := filepath.Join(resolveDir(dir), "batches.meta.txt")
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "reading label names %q", path)
	}
	var names []string
	for _, line := range strings.Split(string(data), "\n") {
		if line = strings.TrimSpace(line); line != "" {
			names = append(names, line)
		}
	}
	return names, nil
}

func resolveDir(dir string) string {
	nested := filepath.Join(dir, BatchesDir)
	if info, err := os.Stat(nested); err == nil && info.IsDir() {
		return nested
	}
	return dir
}

// CountLabels returns the number of examples of every class.
func CountLabels(examples []Example) [NumClasses]int {
	var counts [NumClasses]int
	for i := range examples {
		counts[examples[i].Label]++
	}
	return counts
}
