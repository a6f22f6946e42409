package cpu

import (
	"fmt"
	"math"

	"github.com/born-ml/armanet/internal/tensor"
)

// LogSoftmax normalizes the last dimension of x with the log-sum-exp trick.
func (cpu *CPUBackend) LogSoftmax(x *tensor.RawTensor) *tensor.RawTensor {
	requireFloat32("logsoftmax", x)
	shape := x.Shape()
	if len(shape) == 0 {
		panic("logsoftmax: scalar input")
	}
	classes := shape[len(shape)-1]
	out := cpu.alloc("logsoftmax", shape, tensor.Float32)

	src, dst := x.AsFloat32(), out.AsFloat32()
	for r := 0; r < len(src)/classes; r++ {
		row := src[r*classes : (r+1)*classes]
		maxVal := row[0]
		for _, v := range row[1:] {
			maxVal = max(maxVal, v)
		}
		var sum float64
		for _, v := range row {
			sum += math.Exp(float64(v - maxVal))
		}
		lse := float32(math.Log(sum)) + maxVal
		for i, v := range row {
			dst[r*classes+i] = v - lse
		}
	}
	return out
}

// LogSoftmaxBackward computes g - softmax * sum(g) per row, where softmax
// is recovered as exp(output).
func (cpu *CPUBackend) LogSoftmaxBackward(output, grad *tensor.RawTensor) *tensor.RawTensor {
	requireFloat32("logsoftmax backward", output, grad)
	shape := output.Shape()
	classes := shape[len(shape)-1]
	out := cpu.alloc("logsoftmax backward", shape, tensor.Float32)

	y, g, dst := output.AsFloat32(), grad.AsFloat32(), out.AsFloat32()
	for r := 0; r < len(y)/classes; r++ {
		lo, hi := r*classes, (r+1)*classes
		var sum float32
		for _, v := range g[lo:hi] {
			sum += v
		}
		for i := lo; i < hi; i++ {
			dst[i] = g[i] - float32(math.Exp(float64(y[i])))*sum
		}
	}
	return out
}

// NLLLoss returns the scalar mean of -logProbs[i, targets[i]] for
// logProbs [N,classes] and int32 targets [N].
func (cpu *CPUBackend) NLLLoss(logProbs, targets *tensor.RawTensor) *tensor.RawTensor {
	n, classes := checkNLL("nllloss", logProbs, targets)
	out := cpu.alloc("nllloss", tensor.Shape{}, tensor.Float32)

	lp, tg := logProbs.AsFloat32(), targets.AsInt32()
	var sum float64
	for i := 0; i < n; i++ {
		sum -= float64(lp[i*classes+int(tg[i])])
	}
	out.AsFloat32()[0] = float32(sum / float64(n))
	return out
}

// NLLLossBackward scatters -grad/N onto the target entries.
func (cpu *CPUBackend) NLLLossBackward(logProbs, targets, grad *tensor.RawTensor) *tensor.RawTensor {
	n, classes := checkNLL("nllloss backward", logProbs, targets)
	requireFloat32("nllloss backward", grad)
	out := cpu.alloc("nllloss backward", logProbs.Shape(), tensor.Float32)

	g := grad.AsFloat32()[0] / float32(n)
	dst, tg := out.AsFloat32(), targets.AsInt32()
	for i := 0; i < n; i++ {
		dst[i*classes+int(tg[i])] = -g
	}
	return out
}

func checkNLL(op string, logProbs, targets *tensor.RawTensor) (n, classes int) {
	requireFloat32(op, logProbs)
	ls := logProbs.Shape()
	if len(ls) != 2 {
		panic(fmt.Sprintf("%s: log-probabilities must be 2D [N,classes], got %v", op, ls))
	}
	if targets.DType() != tensor.Int32 || !targets.Shape().Equal(tensor.Shape{ls[0]}) {
		panic(fmt.Sprintf("%s: targets must be int32 [%d], got %s %v", op, ls[0], targets.DType(), targets.Shape()))
	}
	n, classes = ls[0], ls[1]
	for i, t := range targets.AsInt32() {
		if t < 0 || int(t) >= classes {
			panic(fmt.Sprintf("%s: target %d at index %d out of range [0,%d)", op, t, i, classes))
		}
	}
	return n, classes
}
