package autodiff

import (
	"github.com/born-ml/armanet/internal/autodiff/ops"
	"github.com/born-ml/armanet/internal/tensor"
)

// GradientTape records operations in execution order and replays them in
// reverse to compute gradients.
//
//	tape.StartRecording()
//	loss := model.Forward(x) ...
//	grads := tape.Backward(seed, backend)
type GradientTape struct {
	operations []ops.Operation
	recording  bool
}

// NewGradientTape creates an empty, non-recording tape.
func NewGradientTape() *GradientTape {
	return &GradientTape{operations: make([]ops.Operation, 0, 256)}
}

// StartRecording enables recording.
func (t *GradientTape) StartRecording() { t.recording = true }

// StopRecording disables recording. Recorded operations are kept.
func (t *GradientTape) StopRecording() { t.recording = false }

// IsRecording reports whether operations are being recorded.
func (t *GradientTape) IsRecording() bool { return t.recording }

// Record appends op while recording.
func (t *GradientTape) Record(op ops.Operation) {
	if t.recording {
		t.operations = append(t.operations, op)
	}
}

// Clear drops every recorded operation.
func (t *GradientTape) Clear() {
	clear(t.operations)
	t.operations = t.operations[:0]
}

// NumOps returns the number of recorded operations.
func (t *GradientTape) NumOps() int { return len(t.operations) }

// Backward seeds the output of the last recorded operation with outputGrad
// and walks the tape backwards. The result maps every tensor that received
// a gradient to that gradient; gradients of tensors used more than once are
// summed.
func (t *GradientTape) Backward(outputGrad *tensor.RawTensor, backend tensor.Backend) map[*tensor.RawTensor]*tensor.RawTensor {
	grads := make(map[*tensor.RawTensor]*tensor.RawTensor)
	if len(t.operations) == 0 {
		return grads
	}

	wasRecording := t.recording
	t.recording = false
	defer func() { t.recording = wasRecording }()

	grads[t.operations[len(t.operations)-1].Output()] = outputGrad

	for i := len(t.operations) - 1; i >= 0; i-- {
		op := t.operations[i]
		g, ok := grads[op.Output()]
		if !ok {
			continue
		}
		for j, inputGrad := range op.Backward(g, backend) {
			if inputGrad == nil {
				continue
			}
			input := op.Inputs()[j]
			if existing, ok := grads[input]; ok {
				grads[input] = backend.Add(existing, inputGrad)
			} else {
				grads[input] = inputGrad
			}
		}
	}

	return grads
}
