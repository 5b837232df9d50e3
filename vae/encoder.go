package vae

import (
	"fmt"

	"github.com/tsawler/go-zsl/tensor"
)

// Encoder maps one modality's feature vectors to the parameters of a
// diagonal Gaussian over the shared latent space. A single hidden layer with
// ReLU feeds two parallel heads for the mean and the log-variance.
type Encoder struct {
	hidden *Linear
	mu     *Linear
	logvar *Linear
}

// NewEncoder builds an encoder featureDim -> hiddenDim -> (latentDim, latentDim).
func NewEncoder(featureDim, hiddenDim, latentDim int) (*Encoder, error) {
	hidden, err := NewLinear(featureDim, hiddenDim, true)
	if err != nil {
		return nil, fmt.Errorf("encoder hidden layer: %v", err)
	}
	mu, err := NewLinear(hiddenDim, latentDim, true)
	if err != nil {
		return nil, fmt.Errorf("encoder mean head: %v", err)
	}
	logvar, err := NewLinear(hiddenDim, latentDim, true)
	if err != nil {
		return nil, fmt.Errorf("encoder log-variance head: %v", err)
	}
	return &Encoder{hidden: hidden, mu: mu, logvar: logvar}, nil
}

// Forward returns (mu, logvar) with autograd recording enabled.
func (e *Encoder) Forward(x *tensor.Tensor) (*tensor.Tensor, *tensor.Tensor, error) {
	h, err := e.hidden.Forward(x)
	if err != nil {
		return nil, nil, err
	}
	h = tensor.ReLUAutograd(h)
	mu, err := e.mu.Forward(h)
	if err != nil {
		return nil, nil, err
	}
	logvar, err := e.logvar.Forward(h)
	if err != nil {
		return nil, nil, err
	}
	return mu, logvar, nil
}

// Infer returns (mu, logvar) without building an autograd graph.
func (e *Encoder) Infer(x *tensor.Tensor) (*tensor.Tensor, *tensor.Tensor, error) {
	h, err := e.hidden.Infer(x)
	if err != nil {
		return nil, nil, err
	}
	h, err = tensor.ReLU(h)
	if err != nil {
		return nil, nil, fmt.Errorf("encoder activation: %v", err)
	}
	mu, err := e.mu.Infer(h)
	if err != nil {
		return nil, nil, err
	}
	logvar, err := e.logvar.Infer(h)
	if err != nil {
		return nil, nil, err
	}
	return mu, logvar, nil
}

// Parameters returns all trainable tensors of the encoder.
func (e *Encoder) Parameters() []*tensor.Tensor {
	var params []*tensor.Tensor
	params = append(params, e.hidden.Parameters()...)
	params = append(params, e.mu.Parameters()...)
	params = append(params, e.logvar.Parameters()...)
	return params
}

func (e *Encoder) namedParameters(prefix string) []NamedParameter {
	var params []NamedParameter
	params = append(params, e.hidden.namedParameters(prefix+"/hidden")...)
	params = append(params, e.mu.namedParameters(prefix+"/mu")...)
	params = append(params, e.logvar.namedParameters(prefix+"/logvar")...)
	return params
}
