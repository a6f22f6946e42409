package dataset

import (
	"math"
	"math/rand"
)

// Synthetic generates n learnable examples: each class is a fixed random
// pattern, and examples are that pattern plus Gaussian noise.
func Synthetic(n, channels, size, classes int, seed int64) *Images {
	rng := rand.New(rand.NewSource(seed)) //nolint:gosec // reproducible test data
	d := &Images{
		Name:     "synthetic",
		Channels: channels,
		Height:   size,
		Width:    size,
		Classes:  classes,
		Pixels:   make([]float32, n*channels*size*size),
		Labels:   make([]int32, n),
	}

	dim := d.ExampleSize()
	patterns := make([][]float32, classes)
	for c := range patterns {
		patterns[c] = make([]float32, dim)
		fx, fy := 1+rng.Float64()*2, 1+rng.Float64()*2
		phase := rng.Float64() * 2 * math.Pi
		for i := range patterns[c] {
			ch, rem := i/(size*size), i%(size*size)
			y, x := float64(rem/size), float64(rem%size)
			v := math.Sin(fx*x/float64(size)*2*math.Pi+phase+float64(ch)) * math.Cos(fy*y/float64(size)*2*math.Pi)
			patterns[c][i] = float32(v)
		}
	}

	for i := 0; i < n; i++ {
		label := i % classes
		d.Labels[i] = int32(label)
		ex := d.Example(i)
		for j, p := range patterns[label] {
			ex[j] = p + float32(rng.NormFloat64()*0.3)
		}
	}
	return d
}
