package ops

import "github.com/born-ml/armanet/internal/tensor"

// MatMulOp is output = a @ b for 2-D operands.
type MatMulOp struct {
	inputs []*tensor.RawTensor
	output *tensor.RawTensor
}

// NewMatMulOp records a matrix product.
func NewMatMulOp(a, b, output *tensor.RawTensor) *MatMulOp {
	return &MatMulOp{inputs: binaryInputs(a, b), output: output}
}

// Backward returns (g @ bᵀ, aᵀ @ g).
func (op *MatMulOp) Backward(outputGrad *tensor.RawTensor, backend tensor.Backend) []*tensor.RawTensor {
	a, b := op.inputs[0], op.inputs[1]
	return []*tensor.RawTensor{
		backend.MatMul(outputGrad, backend.Transpose(b)),
		backend.MatMul(backend.Transpose(a), outputGrad),
	}
}

// Inputs returns [a, b].
func (op *MatMulOp) Inputs() []*tensor.RawTensor { return op.inputs }

// Output returns a @ b.
func (op *MatMulOp) Output() *tensor.RawTensor { return op.output }

// TransposeOp permutes axes.
type TransposeOp struct {
	input  *tensor.RawTensor
	output *tensor.RawTensor
	axes   []int
}

// NewTransposeOp records a permutation. axes must be explicit.
func NewTransposeOp(input, output *tensor.RawTensor, axes []int) *TransposeOp {
	return &TransposeOp{input: input, output: output, axes: append([]int(nil), axes...)}
}

// Backward applies the inverse permutation to g.
func (op *TransposeOp) Backward(outputGrad *tensor.RawTensor, backend tensor.Backend) []*tensor.RawTensor {
	inverse := make([]int, len(op.axes))
	for i, ax := range op.axes {
		inverse[ax] = i
	}
	return []*tensor.RawTensor{backend.Transpose(outputGrad, inverse...)}
}

// Inputs returns [x].
func (op *TransposeOp) Inputs() []*tensor.RawTensor { return []*tensor.RawTensor{op.input} }

// Output returns the permuted tensor.
func (op *TransposeOp) Output() *tensor.RawTensor { return op.output }

// ReshapeOp changes the shape without touching data.
type ReshapeOp struct {
	input  *tensor.RawTensor
	output *tensor.RawTensor
}

// NewReshapeOp records a reshape.
func NewReshapeOp(input, output *tensor.RawTensor) *ReshapeOp {
	return &ReshapeOp{input: input, output: output}
}

// Backward reshapes g back to the input shape.
func (op *ReshapeOp) Backward(outputGrad *tensor.RawTensor, backend tensor.Backend) []*tensor.RawTensor {
	return []*tensor.RawTensor{backend.Reshape(outputGrad, op.input.Shape())}
}

// Inputs returns [x].
func (op *ReshapeOp) Inputs() []*tensor.RawTensor { return []*tensor.RawTensor{op.input} }

// Output returns the reshaped view.
func (op *ReshapeOp) Output() *tensor.RawTensor { return op.output }

// SumOp reduces one dimension, or every element when dim is nil.
type SumOp struct {
	input   *tensor.RawTensor
	output  *tensor.RawTensor
	dim     *int
	keepDim bool
}

// NewSumOp records a full reduction.
func NewSumOp(input, output *tensor.RawTensor) *SumOp {
	return &SumOp{input: input, output: output}
}

// NewSumDimOp records a reduction along dim.
func NewSumDimOp(input, output *tensor.RawTensor, dim int, keepDim bool) *SumOp {
	if dim < 0 {
		dim += len(input.Shape())
	}
	return &SumOp{input: input, output: output, dim: &dim, keepDim: keepDim}
}

// Backward broadcasts g back over the reduced dimension.
func (op *SumOp) Backward(outputGrad *tensor.RawTensor, backend tensor.Backend) []*tensor.RawTensor {
	g := outputGrad
	if op.dim != nil && !op.keepDim {
		shape := op.input.Shape().Clone()
		shape[*op.dim] = 1
		g = backend.Reshape(g, shape)
	}
	zeros := tensor.MustRaw(op.input.Shape(), tensor.Float32, op.input.Device())
	return []*tensor.RawTensor{backend.Add(zeros, g)}
}

// Inputs returns [x].
func (op *SumOp) Inputs() []*tensor.RawTensor { return []*tensor.RawTensor{op.input} }

// Output returns the reduced tensor.
func (op *SumOp) Output() *tensor.RawTensor { return op.output }
