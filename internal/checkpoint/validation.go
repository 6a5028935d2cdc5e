package checkpoint

import (
	"fmt"
	"sort"
	"strings"
)

// ValidationError describes a malformed header.
type ValidationError struct {
	Type    string // e.g. "offset_overlap", "out_of_bounds"
	Tensor  string
	Tensor2 string // second tensor of an overlap
	Details string
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	if e.Tensor2 != "" {
		return fmt.Sprintf("%s: tensors %q and %q: %s", e.Type, e.Tensor, e.Tensor2, e.Details)
	}
	if e.Tensor != "" {
		return fmt.Sprintf("%s: tensor %q: %s", e.Type, e.Tensor, e.Details)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Details)
}

type span struct {
	name       string
	begin, end int64
}

// validateSpans rejects negative, out-of-bounds and overlapping data ranges.
func validateSpans(spans []span, dataSize int64) error {
	if len(spans) > MaxTensorCount {
		return &ValidationError{
			Type:    "too_many_tensors",
			Details: fmt.Sprintf("got %d, max %d", len(spans), MaxTensorCount),
		}
	}
	sorted := append([]span(nil), spans...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].begin < sorted[j].begin })

	for i, s := range sorted {
		if s.begin < 0 || s.end < s.begin {
			return &ValidationError{
				Type:    "negative_offset",
				Tensor:  s.name,
				Details: fmt.Sprintf("data_offsets [%d, %d]", s.begin, s.end),
			}
		}
		if s.end > dataSize {
			return &ValidationError{
				Type:    "out_of_bounds",
				Tensor:  s.name,
				Details: fmt.Sprintf("end %d > data size %d", s.end, dataSize),
			}
		}
		if i < len(sorted)-1 && s.end > sorted[i+1].begin {
			next := sorted[i+1]
			return &ValidationError{
				Type:    "offset_overlap",
				Tensor:  s.name,
				Tensor2: next.name,
				Details: fmt.Sprintf("regions [%d-%d] and [%d-%d] overlap", s.begin, s.end, next.begin, next.end),
			}
		}
	}
	return nil
}

func validateName(name string) error {
	switch {
	case name == "":
		return &ValidationError{Type: "invalid_name", Details: "empty tensor name"}
	case len(name) > MaxTensorNameLen:
		return &ValidationError{
			Type:    "name_too_long",
			Tensor:  name[:64] + "...",
			Details: fmt.Sprintf("length %d > max %d", len(name), MaxTensorNameLen),
		}
	case strings.Contains(name, "\x00"):
		return &ValidationError{Type: "invalid_name", Tensor: name, Details: "contains null byte"}
	}
	return nil
}
