package vae

import (
	"fmt"

	"github.com/tsawler/go-zsl/tensor"
)

// Decoder maps latent vectors back to one modality's feature space through a
// single ReLU hidden layer.
type Decoder struct {
	hidden *Linear
	out    *Linear
}

// NewDecoder builds a decoder latentDim -> hiddenDim -> featureDim.
func NewDecoder(latentDim, hiddenDim, featureDim int) (*Decoder, error) {
	hidden, err := NewLinear(latentDim, hiddenDim, true)
	if err != nil {
		return nil, fmt.Errorf("decoder hidden layer: %v", err)
	}
	out, err := NewLinear(hiddenDim, featureDim, true)
	if err != nil {
		return nil, fmt.Errorf("decoder output layer: %v", err)
	}
	return &Decoder{hidden: hidden, out: out}, nil
}

// Decode reconstructs features from latent codes with autograd recording
// enabled. Cross-alignment calls this with latent codes sampled from a
// different modality's encoder.
func (d *Decoder) Decode(z *tensor.Tensor) (*tensor.Tensor, error) {
	h, err := d.hidden.Forward(z)
	if err != nil {
		return nil, err
	}
	h = tensor.ReLUAutograd(h)
	return d.out.Forward(h)
}

// Reconstruct decodes latent codes without building an autograd graph.
func (d *Decoder) Reconstruct(z *tensor.Tensor) (*tensor.Tensor, error) {
	h, err := d.hidden.Infer(z)
	if err != nil {
		return nil, err
	}
	h, err = tensor.ReLU(h)
	if err != nil {
		return nil, fmt.Errorf("decoder activation: %v", err)
	}
	return d.out.Infer(h)
}

// Parameters returns all trainable tensors of the decoder.
func (d *Decoder) Parameters() []*tensor.Tensor {
	var params []*tensor.Tensor
	params = append(params, d.hidden.Parameters()...)
	params = append(params, d.out.Parameters()...)
	return params
}

func (d *Decoder) namedParameters(prefix string) []NamedParameter {
	var params []NamedParameter
	params = append(params, d.hidden.namedParameters(prefix+"/hidden")...)
	params = append(params, d.out.namedParameters(prefix+"/out")...)
	return params
}
