package training

import (
	"fmt"
	"math"
	"strings"
	"sync"
)

// Optimizer updates a flat parameter vector from its gradient
type Optimizer interface {
	Step(params, grads []float32) error
	GetLR() float64
	SetLR(lr float64)
}

// Adam implements the Adam optimizer over a flat parameter vector
type Adam struct {
	lr          float64
	beta1       float64
	beta2       float64
	eps         float64
	weightDecay float64
	step        int64
	m           []float64 // First moment estimates
	v           []float64 // Second moment estimates
	mutex       sync.RWMutex
}

// NewAdam creates a new Adam optimizer
func NewAdam(lr, beta1, beta2, eps, weightDecay float64) *Adam {
	return &Adam{
		lr:          lr,
		beta1:       beta1,
		beta2:       beta2,
		eps:         eps,
		weightDecay: weightDecay,
	}
}

// NewDefaultAdam uses the usual betas and the Keras epsilon
func NewDefaultAdam(lr float64) *Adam {
	return NewAdam(lr, 0.9, 0.999, 1e-7, 0)
}

// Step performs a single optimization step in place
func (adam *Adam) Step(params, grads []float32) error {
	if len(params) != len(grads) {
		return fmt.Errorf("parameter/gradient size mismatch: %d vs %d", len(params), len(grads))
	}

	adam.mutex.Lock()
	defer adam.mutex.Unlock()

	if adam.m == nil {
		adam.m = make([]float64, len(params))
		adam.v = make([]float64, len(params))
	} else if len(adam.m) != len(params) {
		return fmt.Errorf("optimizer state holds %d parameters, got %d", len(adam.m), len(params))
	}

	adam.step++

	// Bias correction factors
	bias1 := 1.0 - math.Pow(adam.beta1, float64(adam.step))
	bias2 := 1.0 - math.Pow(adam.beta2, float64(adam.step))

	for i, p := range params {
		grad := float64(grads[i])
		if adam.weightDecay > 0 {
			grad += adam.weightDecay * float64(p)
		}

		adam.m[i] = adam.beta1*adam.m[i] + (1-adam.beta1)*grad
		adam.v[i] = adam.beta2*adam.v[i] + (1-adam.beta2)*grad*grad

		mHat := adam.m[i] / bias1
		vHat := adam.v[i] / bias2
		params[i] = float32(float64(p) - adam.lr*mHat/(math.Sqrt(vHat)+adam.eps))
	}

	return nil
}

// Steps returns the number of updates applied so far
func (adam *Adam) Steps() int64 {
	adam.mutex.RLock()
	defer adam.mutex.RUnlock()
	return adam.step
}

// GetLR returns the current learning rate
func (adam *Adam) GetLR() float64 {
	adam.mutex.RLock()
	defer adam.mutex.RUnlock()
	return adam.lr
}

// SetLR sets the learning rate
func (adam *Adam) SetLR(lr float64) {
	adam.mutex.Lock()
	defer adam.mutex.Unlock()
	adam.lr = lr
}

// SGD implements stochastic gradient descent with optional momentum
type SGD struct {
	lr       float64
	momentum float64
	nesterov bool
	velocity []float64
	mutex    sync.RWMutex
}

// NewSGD creates a new SGD optimizer
func NewSGD(lr, momentum float64, nesterov bool) *SGD {
	return &SGD{lr: lr, momentum: momentum, nesterov: nesterov}
}

// Step performs a single optimization step in place
func (sgd *SGD) Step(params, grads []float32) error {
	if len(params) != len(grads) {
		return fmt.Errorf("parameter/gradient size mismatch: %d vs %d", len(params), len(grads))
	}

	sgd.mutex.Lock()
	defer sgd.mutex.Unlock()

	if sgd.momentum == 0 {
		for i, g := range grads {
			params[i] = float32(float64(params[i]) - sgd.lr*float64(g))
		}
		return nil
	}

	if sgd.velocity == nil {
		sgd.velocity = make([]float64, len(params))
	} else if len(sgd.velocity) != len(params) {
		return fmt.Errorf("optimizer state holds %d parameters, got %d", len(sgd.velocity), len(params))
	}

	for i, g := range grads {
		grad := float64(g)
		sgd.velocity[i] = sgd.momentum*sgd.velocity[i] + grad
		update := sgd.velocity[i]
		if sgd.nesterov {
			update = grad + sgd.momentum*sgd.velocity[i]
		}
		params[i] = float32(float64(params[i]) - sgd.lr*update)
	}
	return nil
}

// GetLR returns the current learning rate
func (sgd *SGD) GetLR() float64 {
	sgd.mutex.RLock()
	defer sgd.mutex.RUnlock()
	return sgd.lr
}

// SetLR sets the learning rate
func (sgd *SGD) SetLR(lr float64) {
	sgd.mutex.Lock()
	defer sgd.mutex.Unlock()
	sgd.lr = lr
}

// RMSProp scales each step by a running average of squared gradients
type RMSProp struct {
	lr      float64
	alpha   float64
	eps     float64
	squares []float64
	mutex   sync.RWMutex
}

// NewRMSProp creates a new RMSProp optimizer
func NewRMSProp(lr, alpha, eps float64) *RMSProp {
	return &RMSProp{lr: lr, alpha: alpha, eps: eps}
}

// Step performs a single optimization step in place
func (rms *RMSProp) Step(params, grads []float32) error {
	if len(params) != len(grads) {
		return fmt.Errorf("parameter/gradient size mismatch: %d vs %d", len(params), len(grads))
	}

	rms.mutex.Lock()
	defer rms.mutex.Unlock()

	if rms.squares == nil {
		rms.squares = make([]float64, len(params))
	} else if len(rms.squares) != len(params) {
		return fmt.Errorf("optimizer state holds %d parameters, got %d", len(rms.squares), len(params))
	}

	for i, g := range grads {
		grad := float64(g)
		rms.squares[i] = rms.alpha*rms.squares[i] + (1-rms.alpha)*grad*grad
		params[i] = float32(float64(params[i]) - rms.lr*grad/(math.Sqrt(rms.squares[i])+rms.eps))
	}
	return nil
}

// GetLR returns the current learning rate
func (rms *RMSProp) GetLR() float64 {
	rms.mutex.RLock()
	defer rms.mutex.RUnlock()
	return rms.lr
}

// SetLR sets the learning rate
func (rms *RMSProp) SetLR(lr float64) {
	rms.mutex.Lock()
	defer rms.mutex.Unlock()
	rms.lr = lr
}

// NewOptimizer builds an optimizer by name with its usual defaults. An empty
// name selects Adam.
func NewOptimizer(name string, lr float64) (Optimizer, error) {
	if lr <= 0 {
		return nil, fmt.Errorf("learning rate must be positive, got %v", lr)
	}
	switch strings.ToLower(name) {
	case "", "adam":
		return NewDefaultAdam(lr), nil
	case "sgd":
		return NewSGD(lr, 0, false), nil
	case "momentum":
		return NewSGD(lr, 0.9, true), nil
	case "rmsprop":
		return NewRMSProp(lr, 0.9, 1e-7), nil
	default:
		return nil, fmt.Errorf("unknown optimizer %q", name)
	}
}
