// Package dataset loads labelled image sets into memory as normalized
// float32 NCHW data.
package dataset

import (
	"errors"
	"fmt"
	"math/rand"

	"gonum.org/v1/gonum/stat"
)

// ErrFormat reports a file that does not match the expected layout.
var ErrFormat = errors.New("invalid dataset file")

// Images is an in-memory image classification set.
type Images struct {
	Name     string
	Channels int
	Height   int
	Width    int
	Classes  int

	Pixels []float32 // [N, C, H, W]
	Labels []int32   // [N]
}

// Len returns the number of examples.
func (d *Images) Len() int { return len(d.Labels) }

// ExampleSize returns C*H*W.
func (d *Images) ExampleSize() int { return d.Channels * d.Height * d.Width }

// Example returns the pixels of example i without copying.
func (d *Images) Example(i int) []float32 {
	n := d.ExampleSize()
	return d.Pixels[i*n : (i+1)*n]
}

// Gather copies the examples at idx into a contiguous batch.
func (d *Images) Gather(idx []int) ([]float32, []int32) {
	n := d.ExampleSize()
	x := make([]float32, len(idx)*n)
	y := make([]int32, len(idx))
	for b, i := range idx {
		copy(x[b*n:(b+1)*n], d.Example(i))
		y[b] = d.Labels[i]
	}
	return x, y
}

// Head returns a view of the first n examples.
func (d *Images) Head(n int) *Images {
	if n <= 0 || n >= d.Len() {
		return d
	}
	out := *d
	out.Pixels = d.Pixels[:n*d.ExampleSize()]
	out.Labels = d.Labels[:n]
	return &out
}

// Validate checks the buffer sizes and label range.
func (d *Images) Validate() error {
	if d.Channels <= 0 || d.Height <= 0 || d.Width <= 0 || d.Classes <= 0 {
		return fmt.Errorf("%w: %s has shape %dx%dx%d with %d classes",
			ErrFormat, d.Name, d.Channels, d.Height, d.Width, d.Classes)
	}
	if len(d.Pixels) != d.Len()*d.ExampleSize() {
		return fmt.Errorf("%w: %s has %d pixels for %d examples", ErrFormat, d.Name, len(d.Pixels), d.Len())
	}
	for i, l := range d.Labels {
		if l < 0 || int(l) >= d.Classes {
			return fmt.Errorf("%w: %s label %d at %d outside [0, %d)", ErrFormat, d.Name, l, i, d.Classes)
		}
	}
	return nil
}

// ChannelStats returns the per-channel mean and standard deviation.
func (d *Images) ChannelStats() (mean, std []float64) {
	plane := d.Height * d.Width
	mean = make([]float64, d.Channels)
	std = make([]float64, d.Channels)
	vals := make([]float64, 0, d.Len()*plane)
	for c := 0; c < d.Channels; c++ {
		vals = vals[:0]
		for i := 0; i < d.Len(); i++ {
			for _, v := range d.Example(i)[c*plane : (c+1)*plane] {
				vals = append(vals, float64(v))
			}
		}
		mean[c], std[c] = stat.PopMeanStdDev(vals, nil)
	}
	return mean, std
}

// Normalize maps each channel to (x - mean) / std in place.
func (d *Images) Normalize(mean, std []float64) {
	plane := d.Height * d.Width
	for i := 0; i < d.Len(); i++ {
		ex := d.Example(i)
		for c := 0; c < d.Channels; c++ {
			m, s := float32(mean[c]), float32(std[c])
			if s == 0 {
				s = 1
			}
			for j := c * plane; j < (c+1)*plane; j++ {
				ex[j] = (ex[j] - m) / s
			}
		}
	}
}

// Batches splits [0, n) into batches of size batchSize, shuffled when rng
// is non-nil. The last batch may be short; dropLast discards it.
func Batches(n, batchSize int, rng *rand.Rand, dropLast bool) [][]int {
	if batchSize <= 0 {
		batchSize = n
	}
	order := make([]int, n)
	for i := range order {
		order[i] = i
	}
	if rng != nil {
		rng.Shuffle(n, func(i, j int) { order[i], order[j] = order[j], order[i] })
	}

	var out [][]int
	for start := 0; start < n; start += batchSize {
		end := min(start+batchSize, n)
		if dropLast && end-start < batchSize {
			break
		}
		out = append(out, order[start:end])
	}
	return out
}
