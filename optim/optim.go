// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package optim exposes the optimizers and learning rate schedules.
//
//	opt := optim.NewSGD(model.Parameters(), optim.SGDConfig{LR: 0.1, Momentum: 0.9}, backend)
//	opt.Step(grads)
package optim

import (
	"github.com/born-ml/armanet/internal/nn"
	"github.com/born-ml/armanet/internal/optim"
	"github.com/born-ml/armanet/internal/tensor"
)

// Optimizer updates parameters from gradients.
type Optimizer = optim.Optimizer

// Config selects an optimizer by name.
type Config = optim.Config

// New builds the optimizer named by cfg.Name ("sgd" or "adam").
func New[B tensor.Backend](params []*nn.Parameter[B], cfg Config, backend B) (Optimizer, error) {
	return optim.New(params, cfg, backend)
}

// SGD is stochastic gradient descent with momentum and weight decay.
type SGD[B tensor.Backend] = optim.SGD[B]

// SGDConfig holds SGD hyperparameters.
type SGDConfig = optim.SGDConfig

// NewSGD creates an SGD optimizer.
func NewSGD[B tensor.Backend](params []*nn.Parameter[B], cfg SGDConfig, backend B) *SGD[B] {
	return optim.NewSGD(params, cfg, backend)
}

// Adam is the Adam optimizer with decoupled weight decay.
type Adam[B tensor.Backend] = optim.Adam[B]

// AdamConfig holds Adam hyperparameters.
type AdamConfig = optim.AdamConfig

// NewAdam creates an Adam optimizer.
func NewAdam[B tensor.Backend](params []*nn.Parameter[B], cfg AdamConfig, backend B) *Adam[B] {
	return optim.NewAdam(params, cfg, backend)
}

// Schedule maps an epoch to a learning rate.
type Schedule = optim.Schedule

// Schedules.
type (
	ConstantLR = optim.ConstantLR
	StepLR     = optim.StepLR
	CosineLR   = optim.CosineLR
)
