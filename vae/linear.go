package vae

import (
	"fmt"
	"math"
	"math/rand"

	"github.com/tsawler/go-zsl/tensor"
)

// globalRng seeds weight initialization and latent sampling. Guarded by
// SetRandomSeed for reproducible runs.
var globalRng = rand.New(rand.NewSource(1))

// SetRandomSeed reseeds weight initialization and latent sampling so that
// repeated runs produce identical models.
func SetRandomSeed(seed int64) {
	globalRng = rand.New(rand.NewSource(seed))
}

// Linear is a fully connected layer y = x*W + b operating on CPU tensors.
type Linear struct {
	InFeatures  int
	OutFeatures int
	Weight      *tensor.Tensor
	Bias        *tensor.Tensor
	UseBias     bool
}

// NewLinear creates a linear layer with Xavier-uniform initialized weights
// and zero bias.
func NewLinear(inFeatures, outFeatures int, useBias bool) (*Linear, error) {
	if inFeatures <= 0 || outFeatures <= 0 {
		return nil, fmt.Errorf("invalid layer dimensions %dx%d", inFeatures, outFeatures)
	}

	// Xavier uniform: U(-limit, limit) with limit = sqrt(6 / (fanIn + fanOut)).
	limit := float32(math.Sqrt(6.0 / float64(inFeatures+outFeatures)))
	weightData := make([]float32, inFeatures*outFeatures)
	for i := range weightData {
		weightData[i] = (globalRng.Float32()*2 - 1) * limit
	}

	weight, err := tensor.NewTensor([]int{inFeatures, outFeatures}, tensor.Float32, tensor.CPU, weightData)
	if err != nil {
		return nil, fmt.Errorf("creating weight tensor: %v", err)
	}
	weight.SetRequiresGrad(true)

	l := &Linear{
		InFeatures:  inFeatures,
		OutFeatures: outFeatures,
		Weight:      weight,
		UseBias:     useBias,
	}

	if useBias {
		bias, err := tensor.Zeros([]int{outFeatures}, tensor.Float32, tensor.CPU)
		if err != nil {
			return nil, fmt.Errorf("creating bias tensor: %v", err)
		}
		bias.SetRequiresGrad(true)
		l.Bias = bias
	}

	return l, nil
}

func (l *Linear) checkInput(x *tensor.Tensor) error {
	if len(x.Shape) != 2 || x.Shape[1] != l.InFeatures {
		return fmt.Errorf("linear layer expects input shape [batch, %d], got %v", l.InFeatures, x.Shape)
	}
	return nil
}

// Forward computes x*W + b and records the operations for backpropagation.
func (l *Linear) Forward(x *tensor.Tensor) (*tensor.Tensor, error) {
	if err := l.checkInput(x); err != nil {
		return nil, err
	}

	out := tensor.MatMulAutograd(x, l.Weight)
	if l.UseBias {
		out = tensor.AddAutograd(out, l.Bias)
	}
	return out, nil
}

// Infer computes x*W + b without building an autograd graph. Used on the
// embedding generation path where no gradients are needed.
func (l *Linear) Infer(x *tensor.Tensor) (*tensor.Tensor, error) {
	if err := l.checkInput(x); err != nil {
		return nil, err
	}

	out, err := tensor.MatMul(x, l.Weight)
	if err != nil {
		return nil, fmt.Errorf("linear matmul: %v", err)
	}
	if l.UseBias {
		out, err = tensor.Add(out, l.Bias)
		if err != nil {
			return nil, fmt.Errorf("linear bias add: %v", err)
		}
	}
	return out, nil
}

// Parameters returns the trainable tensors of the layer.
func (l *Linear) Parameters() []*tensor.Tensor {
	if l.UseBias {
		return []*tensor.Tensor{l.Weight, l.Bias}
	}
	return []*tensor.Tensor{l.Weight}
}

// NamedParameter pairs a parameter tensor with a stable path-style name used
// by checkpoints.
type NamedParameter struct {
	Name   string
	Tensor *tensor.Tensor
}

func (l *Linear) namedParameters(prefix string) []NamedParameter {
	params := []NamedParameter{{Name: prefix + "/weight", Tensor: l.Weight}}
	if l.UseBias {
		params = append(params, NamedParameter{Name: prefix + "/bias", Tensor: l.Bias})
	}
	return params
}
