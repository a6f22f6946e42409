package dataset

import (
	"bufio"
	"compress/gzip"
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// IDX magic numbers.
const (
	idxImagesMagic = 0x00000803
	idxLabelsMagic = 0x00000801
)

// maxIDXBytes bounds the payload an IDX header may announce.
const maxIDXBytes = 1 << 31

// MNIST normalization constants.
var (
	MNISTMean = []float64{0.1307}
	MNISTStd  = []float64{0.3081}
)

// LoadMNIST reads the IDX files from dir: train-{images-idx3,labels-idx1}-ubyte
// or the t10k- pair for the test split. Gzipped copies (".gz") are used
// when the plain files are absent. limit > 0 keeps only the first limit
// examples. Pixels are scaled to [0, 1] and normalized.
func LoadMNIST(dir string, train bool, limit int) (*Images, error) {
	prefix := "t10k"
	if train {
		prefix = "train"
	}

	images, rows, cols, err := readIDXImages(filepath.Join(dir, prefix+"-images-idx3-ubyte"), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to load images: %w", err)
	}
	labels, err := readIDXLabels(filepath.Join(dir, prefix+"-labels-idx1-ubyte"), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to load labels: %w", err)
	}
	n := len(images) / (rows * cols)
	if n != len(labels) {
		return nil, fmt.Errorf("%w: image count (%d) != label count (%d)", ErrFormat, n, len(labels))
	}

	d := &Images{
		Name:     "MNIST",
		Channels: 1,
		Height:   rows,
		Width:    cols,
		Classes:  10,
		Pixels:   make([]float32, len(images)),
		Labels:   make([]int32, n),
	}
	for i, p := range images {
		d.Pixels[i] = float32(p) / 255
	}
	for i, l := range labels {
		d.Labels[i] = int32(l)
	}
	if err := d.Validate(); err != nil {
		return nil, err
	}
	d.Normalize(MNISTMean, MNISTStd)
	return d, nil
}

// openMaybeGzip opens path, or path+".gz" through a gzip reader.
func openMaybeGzip(path string) (io.ReadCloser, error) {
	f, err := os.Open(path) //nolint:gosec // dataset path from config
	if err == nil {
		return f, nil
	}
	gz, gzErr := os.Open(path + ".gz") //nolint:gosec // dataset path from config
	if gzErr != nil {
		return nil, err
	}
	zr, err := gzip.NewReader(bufio.NewReader(gz))
	if err != nil {
		_ = gz.Close()
		return nil, fmt.Errorf("%s.gz: %w", path, err)
	}
	return struct {
		io.Reader
		io.Closer
	}{zr, gz}, nil
}

// readIDXImages reads an IDX3 image file:
//
//	magic 0x00000803, count, rows, cols (uint32 BE), then count*rows*cols bytes
func readIDXImages(path string, limit int) (pixels []byte, rows, cols int, err error) {
	f, err := openMaybeGzip(path)
	if err != nil {
		return nil, 0, 0, err
	}
	defer func() { _ = f.Close() }()

	var hdr [4]uint32
	if err := binary.Read(f, binary.BigEndian, &hdr); err != nil {
		return nil, 0, 0, fmt.Errorf("failed to read header: %w", err)
	}
	if hdr[0] != idxImagesMagic {
		return nil, 0, 0, fmt.Errorf("%w: magic %#x, want %#x", ErrFormat, hdr[0], idxImagesMagic)
	}
	count, rows, cols := int(hdr[1]), int(hdr[2]), int(hdr[3])
	if rows == 0 || cols == 0 || rows > 4096 || cols > 4096 {
		return nil, 0, 0, fmt.Errorf("%w: image size %dx%d", ErrFormat, rows, cols)
	}
	if limit > 0 && limit < count {
		count = limit
	}

	pixels, err = readPayload(f, int64(count)*int64(rows)*int64(cols))
	if err != nil {
		return nil, 0, 0, fmt.Errorf("failed to read %d images: %w", count, err)
	}
	return pixels, rows, cols, nil
}

// readIDXLabels reads an IDX1 label file:
//
//	magic 0x00000801, count (uint32 BE), then count bytes
func readIDXLabels(path string, limit int) ([]byte, error) {
	f, err := openMaybeGzip(path)
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()

	var hdr [2]uint32
	if err := binary.Read(f, binary.BigEndian, &hdr); err != nil {
		return nil, fmt.Errorf("failed to read header: %w", err)
	}
	if hdr[0] != idxLabelsMagic {
		return nil, fmt.Errorf("%w: magic %#x, want %#x", ErrFormat, hdr[0], idxLabelsMagic)
	}
	count := int(hdr[1])
	if limit > 0 && limit < count {
		count = limit
	}

	labels, err := readPayload(f, int64(count))
	if err != nil {
		return nil, fmt.Errorf("failed to read %d labels: %w", count, err)
	}
	return labels, nil
}

// readPayload reads exactly n bytes from r. The buffer grows with the
// bytes actually present, not with n.
func readPayload(r io.Reader, n int64) ([]byte, error) {
	if n > maxIDXBytes {
		return nil, fmt.Errorf("%w: header announces %d bytes", ErrFormat, n)
	}
	data, err := io.ReadAll(io.LimitReader(r, n))
	if err != nil {
		return nil, err
	}
	if int64(len(data)) != n {
		return nil, fmt.Errorf("%w: truncated payload, %d of %d bytes", ErrFormat, len(data), n)
	}
	return data, nil
}
