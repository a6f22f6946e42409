package tensor

import (
	"math"
	"math/rand"
)

// Zeros creates a zero-filled tensor.
func Zeros[T DType, B Backend](shape Shape, b B) *Tensor[T, B] {
	raw, err := NewRaw(shape, inferDataType[T](), b.Device())
	if err != nil {
		panic(err)
	}
	return New[T, B](raw, b)
}

// Full creates a tensor with every element set to value.
func Full[T DType, B Backend](shape Shape, value T, b B) *Tensor[T, B] {
	t := Zeros[T, B](shape, b)
	data := t.Data()
	for i := range data {
		data[i] = value
	}
	return t
}

// Ones creates a tensor filled with ones. Only numeric element types.
func Ones[T ~float32 | ~float64 | ~int32 | ~int64 | ~uint8, B Backend](shape Shape, b B) *Tensor[T, B] {
	return Full[T, B](shape, 1, b)
}

// Randn draws standard normal values with the Box-Muller transform.
// math/rand is enough for weight initialization.
func Randn[T ~float32 | ~float64, B Backend](shape Shape, b B) *Tensor[T, B] {
	return RandnWith[T](rand.Float64, shape, b)
}

// RandnWith is Randn with an explicit uniform source, for reproducible runs.
func RandnWith[T ~float32 | ~float64, B Backend](uniform func() float64, shape Shape, b B) *Tensor[T, B] {
	t := Zeros[T, B](shape, b)
	data := t.Data()
	for i := 0; i < len(data); i += 2 {
		u1 := uniform()
		for u1 == 0 {
			u1 = uniform()
		}
		u2 := uniform()
		r := math.Sqrt(-2 * math.Log(u1))
		data[i] = T(r * math.Cos(2*math.Pi*u2))
		if i+1 < len(data) {
			data[i+1] = T(r * math.Sin(2*math.Pi*u2))
		}
	}
	return t
}

// Rand draws uniform values in [low, high).
func Rand[T ~float32 | ~float64, B Backend](shape Shape, low, high T, b B) *Tensor[T, B] {
	t := Zeros[T, B](shape, b)
	data := t.Data()
	for i := range data {
		data[i] = low + T(rand.Float64())*(high-low) //nolint:gosec // not security sensitive
	}
	return t
}
