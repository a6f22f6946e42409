package serialization

import (
	"time"

	"github.com/born-ml/armanet/internal/tensor"
)

// Format constants.
const (
	MagicBytes      = "BORN"
	FormatVersion   = 2
	HeaderAlignment = 64
	FixedHeaderSize = 0x40
	ChecksumOffset  = 0x20
	ChecksumSize    = 32
)

// Flags stored in the fixed header.
const (
	FlagHasOptimizer uint32 = 1 << 1 // optimizer buffers included
	FlagHasMetadata  uint32 = 1 << 2 // custom metadata included
)

// Header is the JSON header of a .born file.
type Header struct {
	FormatVersion  int               `json:"format_version"`
	Producer       string            `json:"producer"`
	ModelType      string            `json:"model_type"`
	CreatedAt      time.Time         `json:"created_at"`
	Tensors        []TensorMeta      `json:"tensors"`
	Metadata       map[string]string `json:"metadata"`
	CheckpointMeta *CheckpointMeta   `json:"checkpoint,omitempty"`
}

// CheckpointMeta is the training state stored with a checkpoint.
type CheckpointMeta struct {
	Epoch         int            `json:"epoch"`
	Step          int64          `json:"step"`
	Loss          float64        `json:"loss"`
	Accuracy      float64        `json:"accuracy"`
	OptimizerType string         `json:"optimizer_type"`
	TrainingMeta  map[string]any `json:"training_meta,omitempty"`
}

// TensorMeta locates one tensor in the data section.
type TensorMeta struct {
	Name   string `json:"name"`   // e.g. "layer1.0.conv1.ma.weight"
	DType  string `json:"dtype"`  // tensor.DataType.String()
	Shape  []int  `json:"shape"`  // row-major dimensions
	Offset int64  `json:"offset"` // bytes from the start of the data section
	Size   int64  `json:"size"`   // bytes
}

func alignUp(n int64) int64 {
	return (n + HeaderAlignment - 1) / HeaderAlignment * HeaderAlignment
}

func dtypeOf(meta TensorMeta) (tensor.DataType, bool) {
	return tensor.ParseDataType(meta.DType)
}
