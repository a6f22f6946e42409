package serialization

import (
	"bufio"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/born-ml/armanet/internal/tensor"
)

// Read decodes a .born stream, verifying the checksum and header before
// any tensor is built.
func Read(r io.Reader) (map[string]*tensor.RawTensor, Header, error) {
	fixed := make([]byte, FixedHeaderSize)
	if _, err := io.ReadFull(r, fixed); err != nil {
		return nil, Header{}, fmt.Errorf("failed to read fixed header: %w", err)
	}
	if string(fixed[0:4]) != MagicBytes {
		return nil, Header{}, fmt.Errorf("%w: got %q", ErrInvalidMagic, fixed[0:4])
	}
	if v := binary.LittleEndian.Uint32(fixed[4:8]); v != FormatVersion {
		return nil, Header{}, fmt.Errorf("%w: got %d, expected %d", ErrUnsupportedVersion, v, FormatVersion)
	}
	headerSize := binary.LittleEndian.Uint64(fixed[16:24])
	dataSize := binary.LittleEndian.Uint64(fixed[24:32])
	var stored [ChecksumSize]byte
	copy(stored[:], fixed[ChecksumOffset:ChecksumOffset+ChecksumSize])

	if headerSize > MaxHeaderSize {
		return nil, Header{}, ErrHeaderTooLarge
	}
	headerJSON := make([]byte, headerSize)
	if _, err := io.ReadFull(r, headerJSON); err != nil {
		return nil, Header{}, fmt.Errorf("failed to read header: %w", err)
	}
	var header Header
	if err := json.Unmarshal(headerJSON, &header); err != nil {
		return nil, Header{}, fmt.Errorf("failed to parse header JSON: %w", err)
	}

	end := int64(FixedHeaderSize) + int64(headerSize) //nolint:gosec // bounded by MaxHeaderSize
	if _, err := io.CopyN(io.Discard, r, alignUp(end)-end); err != nil {
		return nil, Header{}, fmt.Errorf("failed to read padding: %w", err)
	}

	// The data size is untrusted; let ReadAll grow the buffer as bytes arrive.
	data, err := io.ReadAll(io.LimitReader(r, int64(dataSize))) //nolint:gosec // compared below
	if err != nil {
		return nil, Header{}, fmt.Errorf("failed to read tensor data: %w", err)
	}
	if uint64(len(data)) != dataSize {
		return nil, Header{}, fmt.Errorf("truncated tensor data: got %d bytes, expected %d", len(data), dataSize)
	}
	if ComputeChecksum(data) != stored {
		return nil, Header{}, ErrChecksumMismatch
	}
	if err := ValidateHeader(&header, int64(len(data))); err != nil {
		return nil, Header{}, fmt.Errorf("validation failed: %w", err)
	}

	stateDict := make(map[string]*tensor.RawTensor, len(header.Tensors))
	for _, meta := range header.Tensors {
		dt, _ := dtypeOf(meta)
		raw, err := tensor.NewRaw(tensor.Shape(meta.Shape), dt, tensor.CPU)
		if err != nil {
			return nil, Header{}, fmt.Errorf("tensor %s: %w", meta.Name, err)
		}
		copy(raw.Data(), data[meta.Offset:meta.Offset+meta.Size])
		stateDict[meta.Name] = raw
	}
	return stateDict, header, nil
}

// ReadFile reads a .born file from disk.
func ReadFile(path string) (map[string]*tensor.RawTensor, Header, error) {
	f, err := os.Open(path) //nolint:gosec // user-supplied model path
	if err != nil {
		return nil, Header{}, fmt.Errorf("failed to open file: %w", err)
	}
	defer func() { _ = f.Close() }()

	sd, header, err := Read(bufio.NewReader(f))
	if err != nil {
		return nil, Header{}, fmt.Errorf("%s: %w", path, err)
	}
	return sd, header, nil
}
