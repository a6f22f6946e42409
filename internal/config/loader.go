// Package config loads YAML run files for the armanet CLI.
//
//	model:
//	  arch: ResNet18
//	  arma: true
//	  dataset: CIFAR10
//	data:
//	  source: cifar10
//	  dir: ./data/cifar-10-batches-bin
//	train:
//	  epochs: 30
//	  batch_size: 128
//	  optimizer: {name: sgd, lr: 0.1, momentum: 0.9, weight_decay: 5e-4}
//	  schedule: {name: cosine}
//	checkpoint:
//	  dir: ./checkpoints
package config

import (
	"os"

	"gopkg.in/yaml.v3"

	"github.com/born-ml/armanet/internal/dataset"
	"github.com/born-ml/armanet/internal/resnet"
	"github.com/born-ml/armanet/internal/train"
)

// Run is a validated run file.
type Run struct {
	Model     resnet.Config
	Data      dataset.Source
	TestLimit int
	Train     train.Config
	Resume    string // checkpoint to continue from
	Workers   int    // 0 uses every core
}

// Default returns the run used when no file is given: a short ARMA
// ResNet18 run on synthetic CIFAR-shaped data.
func Default() Run {
	run, err := MapRun("", YAMLRun{})
	if err != nil {
		panic(err)
	}
	return run
}

// Load reads and validates the run file at path.
func Load(path string) (Run, error) {
	b, err := os.ReadFile(path) //nolint:gosec // path from flags
	if err != nil {
		return Run{}, &OpError{
			Op:   "config.load_run",
			Kind: KindNotFound,
			Path: path,
			Err:  err,
		}
	}
	return Parse(path, b)
}

// Parse decodes and validates a run file held in memory. path is only used
// in errors.
func Parse(path string, b []byte) (Run, error) {
	var dto YAMLRun
	if err := yaml.Unmarshal(b, &dto); err != nil {
		return Run{}, &OpError{
			Op:   "config.load_run",
			Kind: KindInvalidConfig,
			Path: path,
			Err:  err,
		}
	}
	return MapRun(path, dto)
}
