package vae

import (
	"fmt"

	"github.com/tsawler/go-zsl/tensor"
)

// Config describes the architecture of a multi-modal VAE. Every map must
// carry an entry for each listed modality.
type Config struct {
	Modalities    []Modality       `json:"modalities"`
	FeatureDims   map[Modality]int `json:"feature_dims"`
	EncoderHidden map[Modality]int `json:"encoder_hidden"`
	DecoderHidden map[Modality]int `json:"decoder_hidden"`
	LatentSize    int              `json:"latent_size"`
}

// Validate checks the config for missing modalities and non-positive sizes.
func (c Config) Validate() error {
	if len(c.Modalities) < 2 {
		return fmt.Errorf("need at least two modalities, got %d", len(c.Modalities))
	}
	if c.LatentSize <= 0 {
		return fmt.Errorf("latent size must be positive, got %d", c.LatentSize)
	}
	seen := make(map[Modality]bool, len(c.Modalities))
	for _, m := range c.Modalities {
		if seen[m] {
			return fmt.Errorf("duplicate modality %q", m)
		}
		seen[m] = true
		if d, ok := c.FeatureDims[m]; !ok || d <= 0 {
			return fmt.Errorf("modality %q: missing or non-positive feature dim", m)
		}
		if d, ok := c.EncoderHidden[m]; !ok || d <= 0 {
			return fmt.Errorf("modality %q: missing or non-positive encoder hidden dim", m)
		}
		if d, ok := c.DecoderHidden[m]; !ok || d <= 0 {
			return fmt.Errorf("modality %q: missing or non-positive decoder hidden dim", m)
		}
	}
	return nil
}

// Model holds one encoder/decoder pair per modality. All encoders target the
// same latent space, which is what lets cross-alignment decode one modality's
// latent code through another modality's decoder.
type Model struct {
	config   Config
	encoders map[Modality]*Encoder
	decoders map[Modality]*Decoder
}

// ForwardResult carries every per-modality output of a training forward pass.
// All four maps share the modality key set of the input.
type ForwardResult struct {
	Recon  Map
	Mu     Map
	Logvar Map
	Sample Map
}

// NewModel builds encoders and decoders for each modality in config order so
// that a fixed random seed yields identical initial weights.
func NewModel(config Config) (*Model, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid model config: %v", err)
	}

	m := &Model{
		config:   config,
		encoders: make(map[Modality]*Encoder, len(config.Modalities)),
		decoders: make(map[Modality]*Decoder, len(config.Modalities)),
	}

	for _, mod := range config.Modalities {
		enc, err := NewEncoder(config.FeatureDims[mod], config.EncoderHidden[mod], config.LatentSize)
		if err != nil {
			return nil, fmt.Errorf("modality %q: %v", mod, err)
		}
		dec, err := NewDecoder(config.LatentSize, config.DecoderHidden[mod], config.FeatureDims[mod])
		if err != nil {
			return nil, fmt.Errorf("modality %q: %v", mod, err)
		}
		m.encoders[mod] = enc
		m.decoders[mod] = dec
	}

	return m, nil
}

// Forward encodes, reparameterizes, and decodes every modality with autograd
// recording enabled. All inputs must be [batch, featureDim] for their
// modality and must cover exactly the model's modality set.
func (m *Model) Forward(inputs Map) (*ForwardResult, error) {
	keys, err := AlignedKeys(inputs)
	if err != nil {
		return nil, err
	}
	if err := m.checkModalities(keys); err != nil {
		return nil, err
	}

	result := &ForwardResult{
		Recon:  make(Map, len(keys)),
		Mu:     make(Map, len(keys)),
		Logvar: make(Map, len(keys)),
		Sample: make(Map, len(keys)),
	}

	for _, mod := range keys {
		mu, logvar, err := m.encoders[mod].Forward(inputs[mod])
		if err != nil {
			return nil, fmt.Errorf("encoding %q: %v", mod, err)
		}
		z, err := reparameterize(mu, logvar)
		if err != nil {
			return nil, fmt.Errorf("sampling %q: %v", mod, err)
		}
		recon, err := m.decoders[mod].Decode(z)
		if err != nil {
			return nil, fmt.Errorf("decoding %q: %v", mod, err)
		}
		result.Mu[mod] = mu
		result.Logvar[mod] = logvar
		result.Sample[mod] = z
		result.Recon[mod] = recon
	}

	return result, nil
}

// reparameterize draws z = mu + eps * exp(logvar/2) with eps ~ N(0, 1). The
// noise enters as a constant so gradients flow only through mu and logvar.
func reparameterize(mu, logvar *tensor.Tensor) (*tensor.Tensor, error) {
	std := tensor.ExpAutograd(tensor.ScaleAutograd(logvar, 0.5))
	eps, err := tensor.RandomNormal(mu.Shape, 0, 1, globalRng, tensor.CPU)
	if err != nil {
		return nil, err
	}
	return tensor.AddAutograd(mu, tensor.MulAutograd(eps, std)), nil
}

// Encode maps features of one modality into latent space without building an
// autograd graph. With useMean set it returns the deterministic posterior
// mean; otherwise it returns a noisy sample via the reparameterization trick.
func (m *Model) Encode(mod Modality, x *tensor.Tensor, useMean bool) (*tensor.Tensor, error) {
	enc, ok := m.encoders[mod]
	if !ok {
		return nil, fmt.Errorf("unknown modality %q", mod)
	}

	mu, logvar, err := enc.Infer(x)
	if err != nil {
		return nil, fmt.Errorf("encoding %q: %v", mod, err)
	}
	if useMean {
		return mu, nil
	}

	halfLogvar, err := tensor.Scale(logvar, 0.5)
	if err != nil {
		return nil, err
	}
	std, err := tensor.Exp(halfLogvar)
	if err != nil {
		return nil, err
	}
	eps, err := tensor.RandomNormal(mu.Shape, 0, 1, globalRng, tensor.CPU)
	if err != nil {
		return nil, err
	}
	noise, err := tensor.Mul(eps, std)
	if err != nil {
		return nil, err
	}
	return tensor.Add(mu, noise)
}

// Decoder returns the decoder of one modality.
func (m *Model) Decoder(mod Modality) (*Decoder, error) {
	dec, ok := m.decoders[mod]
	if !ok {
		return nil, fmt.Errorf("unknown modality %q", mod)
	}
	return dec, nil
}

// Config returns the architecture the model was built with.
func (m *Model) Config() Config {
	return m.config
}

// Modalities returns the model's modality set in construction order.
func (m *Model) Modalities() []Modality {
	return m.config.Modalities
}

// LatentSize returns the dimensionality of the shared latent space.
func (m *Model) LatentSize() int {
	return m.config.LatentSize
}

// Parameters returns every trainable tensor across all modalities, in a
// deterministic order suitable for an optimizer.
func (m *Model) Parameters() []*tensor.Tensor {
	var params []*tensor.Tensor
	for _, mod := range m.config.Modalities {
		params = append(params, m.encoders[mod].Parameters()...)
		params = append(params, m.decoders[mod].Parameters()...)
	}
	return params
}

// NamedParameters returns every trainable tensor with a stable path-style
// name, e.g. "img/encoder/mu/weight". Checkpoints key weights by these names.
func (m *Model) NamedParameters() []NamedParameter {
	var params []NamedParameter
	for _, mod := range m.config.Modalities {
		params = append(params, m.encoders[mod].namedParameters(string(mod)+"/encoder")...)
		params = append(params, m.decoders[mod].namedParameters(string(mod)+"/decoder")...)
	}
	return params
}

func (m *Model) checkModalities(keys []Modality) error {
	if len(keys) != len(m.config.Modalities) {
		return fmt.Errorf("input covers %d modalities, model has %d", len(keys), len(m.config.Modalities))
	}
	for _, k := range keys {
		if _, ok := m.encoders[k]; !ok {
			return fmt.Errorf("unknown modality %q", k)
		}
	}
	return nil
}
