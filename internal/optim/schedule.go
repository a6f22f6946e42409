package optim

import "math"

// Schedule maps an epoch index to a learning rate.
type Schedule interface {
	LR(epoch int) float32
}

// EpochBound is a Schedule whose shape depends on the run length.
// Trainers rebind it to their final epoch count.
type EpochBound interface {
	Schedule
	WithEpochs(epochs int) Schedule
}

// ConstantLR keeps the base rate.
type ConstantLR struct {
	Base float32
}

// LR returns Base.
func (c ConstantLR) LR(int) float32 { return c.Base }

// StepLR multiplies the base rate by Gamma every StepSize epochs.
type StepLR struct {
	Base     float32
	StepSize int
	Gamma    float32
}

// LR returns Base * Gamma^(epoch/StepSize).
func (s StepLR) LR(epoch int) float32 {
	if s.StepSize <= 0 {
		return s.Base
	}
	return s.Base * float32(math.Pow(float64(s.Gamma), float64(epoch/s.StepSize)))
}

// CosineLR anneals from Base to Min over Epochs.
type CosineLR struct {
	Base   float32
	Min    float32
	Epochs int
}

// WithEpochs returns c annealing over epochs instead.
func (c CosineLR) WithEpochs(epochs int) Schedule {
	c.Epochs = epochs
	return c
}

// LR returns the annealed rate; epochs past the end stay at Min.
func (c CosineLR) LR(epoch int) float32 {
	if c.Epochs <= 0 || epoch >= c.Epochs {
		return c.Min
	}
	cos := (1 + math.Cos(math.Pi*float64(epoch)/float64(c.Epochs))) / 2
	return c.Min + (c.Base-c.Min)*float32(cos)
}
