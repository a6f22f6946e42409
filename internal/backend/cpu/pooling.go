package cpu

import (
	"fmt"

	"github.com/born-ml/armanet/internal/tensor"
)

// GlobalAvgPool2D averages every [H,W] plane of x, returning [N,C].
func (cpu *CPUBackend) GlobalAvgPool2D(x *tensor.RawTensor) *tensor.RawTensor {
	requireFloat32("globalavgpool2d", x)
	n, c, h, w := require4D("globalavgpool2d", x)
	out := cpu.alloc("globalavgpool2d", tensor.Shape{n, c}, tensor.Float32)

	src, dst := x.AsFloat32(), out.AsFloat32()
	plane := h * w
	for i := range dst {
		var sum float32
		for _, v := range src[i*plane : (i+1)*plane] {
			sum += v
		}
		dst[i] = sum / float32(plane)
	}
	return out
}

// GlobalAvgPool2DBackward spreads grad [N,C] evenly over each input plane.
func (cpu *CPUBackend) GlobalAvgPool2DBackward(input, grad *tensor.RawTensor) *tensor.RawTensor {
	requireFloat32("globalavgpool2d backward", input, grad)
	n, c, h, w := require4D("globalavgpool2d backward", input)
	if !grad.Shape().Equal(tensor.Shape{n, c}) {
		panic(fmt.Sprintf("globalavgpool2d backward: grad shape %v, want [%d %d]", grad.Shape(), n, c))
	}
	out := cpu.alloc("globalavgpool2d backward", input.Shape(), tensor.Float32)

	g, dst := grad.AsFloat32(), out.AsFloat32()
	plane := h * w
	for i, v := range g {
		share := v / float32(plane)
		for j := i * plane; j < (i+1)*plane; j++ {
			dst[j] = share
		}
	}
	return out
}
