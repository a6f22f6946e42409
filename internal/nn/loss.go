package nn

import (
	"fmt"

	"github.com/born-ml/armanet/internal/tensor"
)

// NLLLoss is the mean negative log-likelihood of integer class targets
// under log-probabilities, the loss paired with a LogSoftmax output.
//
//	loss := nn.NewNLLLoss(backend).Forward(model.Forward(x), labels)
type NLLLoss[B tensor.Backend] struct {
	backend B
}

// NewNLLLoss creates the loss.
func NewNLLLoss[B tensor.Backend](backend B) *NLLLoss[B] {
	return &NLLLoss[B]{backend: backend}
}

// Forward returns a scalar loss for logProbs [N, classes] and int32
// targets [N].
func (l *NLLLoss[B]) Forward(logProbs *tensor.Tensor[float32, B], targets *tensor.Tensor[int32, B]) *tensor.Tensor[float32, B] {
	ls, ts := logProbs.Shape(), targets.Shape()
	if len(ls) != 2 || len(ts) != 1 || ls[0] != ts[0] {
		panic(fmt.Sprintf("nll_loss: expected logProbs [N, C] and targets [N], got %v and %v", ls, ts))
	}
	return tensor.New[float32, B](l.backend.NLLLoss(logProbs.Raw(), targets.Raw()), l.backend)
}

// Accuracy returns the fraction of rows whose argmax equals the target.
func Accuracy[B tensor.Backend](logProbs *tensor.Tensor[float32, B], targets *tensor.Tensor[int32, B]) float64 {
	pred := logProbs.Argmax(1).Data()
	want := targets.Data()
	if len(pred) == 0 {
		return 0
	}
	correct := 0
	for i, p := range pred {
		if p == want[i] {
			correct++
		}
	}
	return float64(correct) / float64(len(pred))
}
