package dataset

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"path/filepath"
)

// CIFAR geometry.
const (
	cifarSize  = 32
	cifarPixel = 3 * cifarSize * cifarSize
)

// CIFAR normalization constants.
var (
	CIFARMean = []float64{0.4914, 0.4822, 0.4465}
	CIFARStd  = []float64{0.2470, 0.2435, 0.2616}
)

// LoadCIFAR reads the binary release of CIFAR-10 (classes 10) or
// CIFAR-100 (classes 100) from dir.
//
// CIFAR-10 records are <label byte><3072 pixel bytes> spread over
// data_batch_1..5.bin and test_batch.bin. CIFAR-100 records carry a coarse
// and a fine label byte before the pixels, in train.bin and test.bin; the
// fine label is used.
func LoadCIFAR(dir string, classes int, train bool, limit int) (*Images, error) {
	var files []string
	labelBytes := 1
	switch classes {
	case 10:
		if train {
			for i := 1; i <= 5; i++ {
				files = append(files, fmt.Sprintf("data_batch_%d.bin", i))
			}
		} else {
			files = []string{"test_batch.bin"}
		}
	case 100:
		labelBytes = 2
		files = []string{"test.bin"}
		if train {
			files = []string{"train.bin"}
		}
	default:
		return nil, fmt.Errorf("cifar: unsupported class count %d", classes)
	}

	d := &Images{
		Name:     fmt.Sprintf("CIFAR%d", classes),
		Channels: 3,
		Height:   cifarSize,
		Width:    cifarSize,
		Classes:  classes,
	}
	for _, name := range files {
		remaining := 0
		if limit > 0 {
			remaining = limit - d.Len()
			if remaining <= 0 {
				break
			}
		}
		if err := readCIFARFile(filepath.Join(dir, name), labelBytes, remaining, d); err != nil {
			return nil, fmt.Errorf("cifar: %s: %w", name, err)
		}
	}
	if err := d.Validate(); err != nil {
		return nil, err
	}
	d.Normalize(CIFARMean, CIFARStd)
	return d, nil
}

// readCIFARFile appends up to limit records (all when limit is 0) to d.
func readCIFARFile(path string, labelBytes, limit int, d *Images) error {
	f, err := openMaybeGzip(path)
	if err != nil {
		return err
	}
	defer func() { _ = f.Close() }()

	r := bufio.NewReaderSize(f, 1<<16)
	record := make([]byte, labelBytes+cifarPixel)
	for n := 0; limit == 0 || n < limit; n++ {
		if _, err := io.ReadFull(r, record); err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			if errors.Is(err, io.ErrUnexpectedEOF) {
				return fmt.Errorf("%w: truncated record %d", ErrFormat, n)
			}
			return err
		}
		d.Labels = append(d.Labels, int32(record[labelBytes-1]))
		for _, p := range record[labelBytes:] {
			d.Pixels = append(d.Pixels, float32(p)/255)
		}
	}
	return nil
}
