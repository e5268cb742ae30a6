package checkpoint

import (
	"bufio"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/born-ml/born/tensor"
)

// Metadata keys written by the model packages.
const (
	MetadataFormat  = "format"
	MetadataModel   = "model"
	MetadataWidth   = "width"
	MetadataClasses = "classes"
)

// maxTensorNameLen bounds names accepted by the writer.
const maxTensorNameLen = 1024

// headerAlignment pads the JSON header so tensor data starts 8-byte aligned.
const headerAlignment = 8

type tensorHeader struct {
	DType       string   `json:"dtype"`
	Shape       []int    `json:"shape"`
	DataOffsets [2]int64 `json:"data_offsets"`
}

// Write encodes stateDict as SafeTensors. Tensors are laid out in sorted
// name order so the same weights always produce the same bytes.
func Write(w io.Writer, stateDict map[string]*tensor.RawTensor, metadata map[string]string) error {
	if len(stateDict) == 0 {
		return ErrEmptyStateDict
	}

	names := make([]string, 0, len(stateDict))
	for name := range stateDict {
		if err := validateTensorName(name); err != nil {
			return &TensorError{Tensor: name, Err: err}
		}
		names = append(names, name)
	}
	sort.Strings(names)

	header := make(map[string]any, len(names)+1)
	if len(metadata) > 0 {
		header["__metadata__"] = metadata
	}

	var offset int64
	for _, name := range names {
		raw := stateDict[name]
		dtype, err := safeTensorsDType(raw.DType())
		if err != nil {
			return &TensorError{Tensor: name, Err: err}
		}
		size := int64(raw.ByteSize())
		header[name] = tensorHeader{
			DType:       dtype,
			Shape:       append([]int(nil), raw.Shape()...),
			DataOffsets: [2]int64{offset, offset + size},
		}
		offset += size
	}

	headerJSON, err := json.Marshal(header)
	if err != nil {
		return fmt.Errorf("failed to marshal header: %w", err)
	}
	if pad := len(headerJSON) % headerAlignment; pad != 0 {
		headerJSON = append(headerJSON, strings.Repeat(" ", headerAlignment-pad)...)
	}

	if err := binary.Write(w, binary.LittleEndian, uint64(len(headerJSON))); err != nil {
		return fmt.Errorf("failed to write header size: %w", err)
	}
	if _, err := w.Write(headerJSON); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}
	for _, name := range names {
		if _, err := w.Write(stateDict[name].Data()); err != nil {
			return fmt.Errorf("failed to write tensor %s: %w", name, err)
		}
	}
	return nil
}

// WriteFile writes stateDict to path. The file is written next to its
// destination and renamed into place, so readers never see a partial file.
func WriteFile(path string, stateDict map[string]*tensor.RawTensor, metadata map[string]string) (err error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tmp.Close()           // Already failing
			_ = os.Remove(tmp.Name()) // Best effort cleanup
		}
	}()

	buf := bufio.NewWriter(tmp)
	if err := Write(buf, stateDict, metadata); err != nil {
		return err
	}
	if err := buf.Flush(); err != nil {
		return fmt.Errorf("failed to flush: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		return fmt.Errorf("failed to sync: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("failed to move into place: %w", err)
	}
	return nil
}

func validateTensorName(name string) error {
	switch {
	case name == "" || name == "__metadata__":
		return ErrInvalidTensorName
	case len(name) > maxTensorNameLen:
		return fmt.Errorf("%w: length %d > max %d", ErrInvalidTensorName, len(name), maxTensorNameLen)
	case strings.ContainsRune(name, 0):
		return fmt.Errorf("%w: contains null byte", ErrInvalidTensorName)
	}
	return nil
}

func safeTensorsDType(dt tensor.DataType) (string, error) {
	switch dt {
	case tensor.Float32:
		return "F32", nil
	case tensor.Float64:
		return "F64", nil
	default:
		return "", fmt.Errorf("%w: %v", ErrUnsupportedDType, dt)
	}
}
