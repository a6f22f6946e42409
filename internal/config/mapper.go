package config

import (
	"fmt"
	"strings"

	"github.com/born-ml/armanet/internal/dataset"
	"github.com/born-ml/armanet/internal/optim"
	"github.com/born-ml/armanet/internal/resnet"
	"github.com/born-ml/armanet/internal/train"
)

// Largest synthetic image side; ImageNet-sized synthetic data is shrunk.
const maxSyntheticSize = 32

// Source names accepted in data.source, keyed to the model dataset they feed.
var sourceDatasets = map[string]resnet.Dataset{
	"mnist":    resnet.MNIST,
	"cifar10":  resnet.CIFAR10,
	"cifar100": resnet.CIFAR100,
}

// MapRun fills defaults into dto and validates it.
func MapRun(path string, dto YAMLRun) (Run, error) {
	model, err := mapModel(path, dto.Model)
	if err != nil {
		return Run{}, err
	}
	spec, _ := resnet.LookupDataset(model.Dataset)

	data, err := mapData(path, dto.Data, model.Dataset, spec)
	if err != nil {
		return Run{}, err
	}

	tc, err := mapTrain(path, dto.Train, dto.Checkpoint)
	if err != nil {
		return Run{}, err
	}

	if dto.Workers < 0 {
		return Run{}, invalidField(path, "workers", "workers must not be negative")
	}

	return Run{
		Model:     model,
		Data:      data,
		TestLimit: dto.Data.TestLimit,
		Train:     tc,
		Resume:    strings.TrimSpace(dto.Checkpoint.Resume),
		Workers:   dto.Workers,
	}, nil
}

func mapModel(path string, m YAMLModel) (resnet.Config, error) {
	cfg := resnet.DefaultConfig()
	if s := strings.TrimSpace(m.Arch); s != "" {
		cfg.Arch = resnet.Arch(s)
	}
	if s := strings.TrimSpace(m.Dataset); s != "" {
		cfg.Dataset = resnet.Dataset(s)
	}
	if m.ARMA != nil {
		cfg.ARMA = *m.ARMA
	}
	cfg.RFInit = m.RFInit
	if m.WKernelSize != nil {
		cfg.WKernelSize = *m.WKernelSize
	}
	if m.AKernelSize != nil {
		cfg.AKernelSize = *m.AKernelSize
	}

	if _, err := resnet.LookupArch(cfg.Arch); err != nil {
		return cfg, modelError(path, "model.arch", err)
	}
	if _, err := resnet.LookupDataset(cfg.Dataset); err != nil {
		return cfg, modelError(path, "model.dataset", err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, modelError(path, "model", err)
	}
	return cfg, nil
}

func modelError(path, field string, err error) error {
	return &OpError{Op: "config.map_run", Kind: KindInvalidConfig, Path: path, Field: field, Err: err}
}

func mapData(path string, d YAMLData, ds resnet.Dataset, spec resnet.DatasetSpec) (dataset.Source, error) {
	src := dataset.Source{
		Name:  strings.ToLower(strings.TrimSpace(d.Source)),
		Dir:   d.Dir,
		Limit: d.Limit,
		Seed:  d.Seed,
	}
	if src.Name == "" {
		src.Name = "synthetic"
	}
	if d.Limit < 0 || d.TestLimit < 0 {
		return src, invalidField(path, "data.limit", "limits must not be negative")
	}

	if src.Name == "synthetic" {
		size := d.ImageSize
		if size == 0 {
			size = min(spec.ImageSize, maxSyntheticSize)
		}
		if size < 1 {
			return src, invalidField(path, "data.image_size", "image size must be positive")
		}
		src.Channels = spec.Channels
		src.Size = size
		src.Classes = spec.Classes
		if src.Limit == 0 {
			src.Limit = 512
		}
		return src, nil
	}

	want, ok := sourceDatasets[src.Name]
	if !ok {
		return src, invalidField(path, "data.source", fmt.Sprintf("unknown source %q", d.Source))
	}
	if want != ds {
		return src, invalidField(path, "data.source",
			fmt.Sprintf("source %s feeds %s models, model dataset is %s", src.Name, want, ds))
	}
	if strings.TrimSpace(src.Dir) == "" {
		return src, invalidField(path, "data.dir", "data dir is required for "+src.Name)
	}
	return src, nil
}

func mapTrain(path string, t YAMLTrain, c YAMLCheckpoint) (train.Config, error) {
	cfg := train.DefaultConfig()
	if t.Epochs != 0 {
		cfg.Epochs = t.Epochs
	}
	if t.BatchSize != 0 {
		cfg.BatchSize = t.BatchSize
	}
	if t.Seed != nil {
		cfg.Seed = *t.Seed
	}
	if cfg.Epochs < 0 {
		return cfg, invalidField(path, "train.epochs", "epochs must be positive")
	}
	if cfg.BatchSize < 0 {
		return cfg, invalidField(path, "train.batch_size", "batch size must be positive")
	}

	opt, err := mapOptimizer(path, t.Optimizer, cfg.Optimizer)
	if err != nil {
		return cfg, err
	}
	cfg.Optimizer = opt

	sched, err := mapSchedule(path, t.Schedule, opt.LR, cfg.Epochs)
	if err != nil {
		return cfg, err
	}
	cfg.Schedule = sched

	if c.Every < 0 {
		return cfg, invalidField(path, "checkpoint.every", "checkpoint interval must not be negative")
	}
	cfg.CheckpointDir = strings.TrimSpace(c.Dir)
	cfg.CheckpointEvery = c.Every
	return cfg, nil
}

func mapOptimizer(path string, o YAMLOptimizer, def optim.Config) (optim.Config, error) {
	cfg := def
	switch name := strings.ToLower(strings.TrimSpace(o.Name)); name {
	case "", "sgd":
		cfg.Name = "sgd"
	case "adam":
		cfg = optim.Config{Name: name, LR: 1e-3}
	default:
		return cfg, invalidField(path, "train.optimizer.name", fmt.Sprintf("unknown optimizer %q", o.Name))
	}
	if o.LR != nil {
		cfg.LR = *o.LR
	}
	if o.Momentum != nil {
		cfg.Momentum = *o.Momentum
	}
	if o.WeightDecay != nil {
		cfg.WeightDecay = *o.WeightDecay
	}

	if cfg.LR <= 0 {
		return cfg, invalidField(path, "train.optimizer.lr", "learning rate must be positive")
	}
	if cfg.Momentum < 0 || cfg.Momentum >= 1 {
		return cfg, invalidField(path, "train.optimizer.momentum", "momentum must be in [0, 1)")
	}
	if cfg.WeightDecay < 0 {
		return cfg, invalidField(path, "train.optimizer.weight_decay", "weight decay must not be negative")
	}
	return cfg, nil
}

func mapSchedule(path string, s YAMLSchedule, lr float32, epochs int) (optim.Schedule, error) {
	switch strings.ToLower(strings.TrimSpace(s.Name)) {
	case "", "constant":
		return optim.ConstantLR{Base: lr}, nil
	case "step":
		step := optim.StepLR{Base: lr, StepSize: s.StepSize, Gamma: s.Gamma}
		if step.StepSize == 0 {
			step.StepSize = 30
		}
		if step.Gamma == 0 {
			step.Gamma = 0.1
		}
		if step.StepSize < 0 || step.Gamma < 0 {
			return nil, invalidField(path, "train.schedule", "step schedule needs positive step_size and gamma")
		}
		return step, nil
	case "cosine":
		if s.MinLR < 0 || s.MinLR > lr {
			return nil, invalidField(path, "train.schedule.min_lr", "min_lr must be in [0, lr]")
		}
		return optim.CosineLR{Base: lr, Min: s.MinLR, Epochs: epochs}, nil
	default:
		return nil, invalidField(path, "train.schedule.name", fmt.Sprintf("unknown schedule %q", s.Name))
	}
}
