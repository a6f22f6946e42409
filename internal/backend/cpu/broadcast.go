package cpu

import "github.com/born-ml/armanet/internal/tensor"

// broadcastStrides returns strides that map an index in outShape back into
// inShape; broadcast and left-padded dimensions get stride 0.
func broadcastStrides(inShape, outShape tensor.Shape) []int {
	strides := make([]int, len(outShape))
	orig := inShape.ComputeStrides()
	offset := len(outShape) - len(inShape)
	for i := range outShape {
		j := i - offset
		if j >= 0 && inShape[j] != 1 {
			strides[i] = orig[j]
		}
	}
	return strides
}

// flatIndex converts a flat output index into a flat input index.
func flatIndex(outIdx int, outStrides, inStrides []int) int {
	idx := 0
	for i, s := range outStrides {
		idx += (outIdx / s) * inStrides[i]
		outIdx %= s
	}
	return idx
}

type binaryFunc func(a, b float32) float32

// binaryBroadcast applies f over the broadcast of a and b into dst.
func binaryBroadcast(dst, a, b []float32, aShape, bShape, outShape tensor.Shape, f binaryFunc) {
	outStrides := outShape.ComputeStrides()
	aStrides := broadcastStrides(aShape, outShape)
	bStrides := broadcastStrides(bShape, outShape)
	for i := range dst {
		dst[i] = f(a[flatIndex(i, outStrides, aStrides)], b[flatIndex(i, outStrides, bStrides)])
	}
}
