package serialization

import (
	"fmt"
	"strings"

	"github.com/born-ml/armanet/internal/tensor"
)

// State dict prefixes used inside checkpoint files.
const (
	modelPrefix     = "model."
	optimizerPrefix = "optimizer."
)

// Checkpoint is a model snapshot with optimizer buffers and training
// progress.
type Checkpoint struct {
	ModelType string
	Model     map[string]*tensor.RawTensor
	Optimizer map[string]*tensor.RawTensor
	Meta      CheckpointMeta
	Metadata  map[string]string
}

// SaveCheckpoint writes c to path.
func SaveCheckpoint(path string, c Checkpoint) error {
	sd := make(map[string]*tensor.RawTensor, len(c.Model)+len(c.Optimizer))
	for k, v := range c.Model {
		sd[modelPrefix+k] = v
	}
	for k, v := range c.Optimizer {
		sd[optimizerPrefix+k] = v
	}
	meta := c.Meta
	header := Header{
		ModelType:      c.ModelType,
		Metadata:       c.Metadata,
		CheckpointMeta: &meta,
	}
	if err := WriteFile(path, sd, header); err != nil {
		return fmt.Errorf("save checkpoint: %w", err)
	}
	return nil
}

// LoadCheckpoint reads a file written by SaveCheckpoint.
func LoadCheckpoint(path string) (Checkpoint, error) {
	sd, header, err := ReadFile(path)
	if err != nil {
		return Checkpoint{}, fmt.Errorf("load checkpoint: %w", err)
	}
	if header.CheckpointMeta == nil {
		return Checkpoint{}, fmt.Errorf("load checkpoint: %s: %w", path, ErrNotCheckpoint)
	}

	c := Checkpoint{
		ModelType: header.ModelType,
		Model:     make(map[string]*tensor.RawTensor),
		Optimizer: make(map[string]*tensor.RawTensor),
		Meta:      *header.CheckpointMeta,
		Metadata:  header.Metadata,
	}
	for name, raw := range sd {
		switch {
		case strings.HasPrefix(name, modelPrefix):
			c.Model[strings.TrimPrefix(name, modelPrefix)] = raw
		case strings.HasPrefix(name, optimizerPrefix):
			c.Optimizer[strings.TrimPrefix(name, optimizerPrefix)] = raw
		}
	}
	return c, nil
}

// LoadModel reads model tensors from either a checkpoint or a plain
// weights file.
func LoadModel(path string) (map[string]*tensor.RawTensor, Header, error) {
	sd, header, err := ReadFile(path)
	if err != nil {
		return nil, Header{}, err
	}
	if header.CheckpointMeta == nil {
		return sd, header, nil
	}
	model := make(map[string]*tensor.RawTensor)
	for name, raw := range sd {
		if rest, ok := strings.CutPrefix(name, modelPrefix); ok {
			model[rest] = raw
		}
	}
	return model, header, nil
}
