package training

import (
	"fmt"
	"math"
)

// LRScheduler picks the learning rate of every epoch. Observe receives the
// validation loss after each epoch so stateful schedules can react to it.
type LRScheduler interface {
	LearningRate(epoch int, baseLR float64) float64
	Observe(valLoss float64)
	Name() string
}

// NewScheduler builds a schedule by name for a run of maxEpochs epochs.
// Known names are constant, step, exponential, cosine and plateau.
func NewScheduler(name string, maxEpochs int) (LRScheduler, error) {
	switch name {
	case "", "constant":
		return ConstantScheduler{}, nil
	case "step":
		return NewStepLRScheduler(max(maxEpochs/3, 1), 0.1), nil
	case "exponential":
		return NewExponentialLRScheduler(0.95), nil
	case "cosine":
		return NewCosineAnnealingLRScheduler(maxEpochs, 0), nil
	case "plateau":
		return NewReduceLROnPlateauScheduler(0.1, 5, 1e-4), nil
	default:
		return nil, fmt.Errorf("unknown learning rate schedule %q", name)
	}
}

// ConstantScheduler keeps the base learning rate
type ConstantScheduler struct{}

func (ConstantScheduler) LearningRate(epoch int, baseLR float64) float64 { return baseLR }

func (ConstantScheduler) Observe(valLoss float64) {}

func (ConstantScheduler) Name() string { return "ConstantLR" }

// StepLRScheduler reduces learning rate by a factor every stepSize epochs
type StepLRScheduler struct {
	StepSize int     // Epochs between LR reductions
	Gamma    float64 // Multiplicative factor of LR decay
}

// NewStepLRScheduler creates a step learning rate scheduler
func NewStepLRScheduler(stepSize int, gamma float64) *StepLRScheduler {
	if stepSize <= 0 {
		stepSize = 30
	}
	if gamma <= 0 || gamma >= 1 {
		gamma = 0.1
	}
	return &StepLRScheduler{StepSize: stepSize, Gamma: gamma}
}

func (s *StepLRScheduler) LearningRate(epoch int, baseLR float64) float64 {
	return baseLR * math.Pow(s.Gamma, float64(epoch/s.StepSize))
}

func (s *StepLRScheduler) Observe(valLoss float64) {}

func (s *StepLRScheduler) Name() string { return "StepLR" }

// ExponentialLRScheduler multiplies the learning rate by Gamma every epoch
type ExponentialLRScheduler struct {
	Gamma float64
}

// NewExponentialLRScheduler creates an exponential learning rate scheduler
func NewExponentialLRScheduler(gamma float64) *ExponentialLRScheduler {
	if gamma <= 0 || gamma >= 1 {
		gamma = 0.95
	}
	return &ExponentialLRScheduler{Gamma: gamma}
}

func (s *ExponentialLRScheduler) LearningRate(epoch int, baseLR float64) float64 {
	return baseLR * math.Pow(s.Gamma, float64(epoch))
}

func (s *ExponentialLRScheduler) Observe(valLoss float64) {}

func (s *ExponentialLRScheduler) Name() string { return "ExponentialLR" }

// CosineAnnealingLRScheduler anneals from the base rate to EtaMin over TMax epochs
type CosineAnnealingLRScheduler struct {
	TMax   int
	EtaMin float64
}

// NewCosineAnnealingLRScheduler creates a cosine annealing scheduler
func NewCosineAnnealingLRScheduler(tMax int, etaMin float64) *CosineAnnealingLRScheduler {
	if tMax <= 0 {
		tMax = 100
	}
	return &CosineAnnealingLRScheduler{TMax: tMax, EtaMin: math.Max(etaMin, 0)}
}

func (s *CosineAnnealingLRScheduler) LearningRate(epoch int, baseLR float64) float64 {
	if epoch >= s.TMax {
		return s.EtaMin
	}
	return s.EtaMin + (baseLR-s.EtaMin)*(1+math.Cos(math.Pi*float64(epoch)/float64(s.TMax)))/2
}

func (s *CosineAnnealingLRScheduler) Observe(valLoss float64) {}

func (s *CosineAnnealingLRScheduler) Name() string { return "CosineAnnealingLR" }

// ReduceLROnPlateauScheduler multiplies the rate by Factor once the validation
// loss has not dropped by more than Threshold for Patience epochs
type ReduceLROnPlateauScheduler struct {
	Factor    float64
	Patience  int
	Threshold float64

	best      float64
	badEpochs int
	scale     float64
	seen      bool
}

// NewReduceLROnPlateauScheduler creates a plateau-based scheduler
func NewReduceLROnPlateauScheduler(factor float64, patience int, threshold float64) *ReduceLROnPlateauScheduler {
	if factor <= 0 || factor >= 1 {
		factor = 0.1
	}
	if patience <= 0 {
		patience = 10
	}
	if threshold < 0 {
		threshold = 1e-4
	}
	return &ReduceLROnPlateauScheduler{
		Factor:    factor,
		Patience:  patience,
		Threshold: threshold,
		scale:     1,
	}
}

func (s *ReduceLROnPlateauScheduler) LearningRate(epoch int, baseLR float64) float64 {
	return baseLR * s.scale
}

func (s *ReduceLROnPlateauScheduler) Observe(valLoss float64) {
	if !s.seen || valLoss < s.best-s.Threshold {
		s.best = valLoss
		s.badEpochs = 0
		s.seen = true
		return
	}

	s.badEpochs++
	if s.badEpochs >= s.Patience {
		s.scale *= s.Factor
		s.badEpochs = 0
	}
}

func (s *ReduceLROnPlateauScheduler) Name() string { return "ReduceLROnPlateau" }
