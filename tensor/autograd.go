package tensor

import (
	"fmt"
	"math"
)

// reduceGradientToShape sums a gradient over broadcast dimensions so it
// matches the shape of the input that was broadcast during the forward pass.
func reduceGradientToShape(grad *Tensor, targetShape []int) (*Tensor, error) {
	if shapesEqual(grad.Shape, targetShape) {
		return grad.Clone()
	}

	// Scalar target: sum everything.
	if len(targetShape) == 1 && targetShape[0] == 1 {
		return Sum(grad)
	}

	// Row-vector target: [batch, n] gradient reduced to [n] by summing over
	// the batch dimension.
	if len(targetShape) == 1 && len(grad.Shape) == 2 && grad.Shape[1] == targetShape[0] {
		batch := grad.Shape[0]
		n := grad.Shape[1]
		data := grad.Data.([]float32)
		out := make([]float32, n)
		for i := 0; i < batch; i++ {
			for j := 0; j < n; j++ {
				out[j] += data[i*n+j]
			}
		}
		return NewTensor([]int{n}, Float32, grad.Device, out)
	}

	return nil, fmt.Errorf("cannot reduce gradient of shape %v to %v", grad.Shape, targetShape)
}

// AddOp implements addition, including the row-vector bias broadcast.
type AddOp struct {
	inputs []*Tensor
}

func (op *AddOp) Forward(inputs ...*Tensor) *Tensor {
	if len(inputs) != 2 {
		panic("AddOp requires exactly 2 inputs")
	}
	op.inputs = inputs

	result, err := Add(inputs[0], inputs[1])
	if err != nil {
		panic(fmt.Sprintf("AddOp forward failed: %v", err))
	}

	result.creator = op
	result.requiresGrad = inputs[0].requiresGrad || inputs[1].requiresGrad
	return result
}

func (op *AddOp) Backward(gradOut *Tensor) []*Tensor {
	gradA, err := reduceGradientToShape(gradOut, op.inputs[0].Shape)
	if err != nil {
		panic(fmt.Sprintf("AddOp backward failed for input A: %v", err))
	}
	gradB, err := reduceGradientToShape(gradOut, op.inputs[1].Shape)
	if err != nil {
		panic(fmt.Sprintf("AddOp backward failed for input B: %v", err))
	}
	return []*Tensor{gradA, gradB}
}

func (op *AddOp) Inputs() []*Tensor {
	return op.inputs
}

// SubOp implements element-wise subtraction.
type SubOp struct {
	inputs []*Tensor
}

func (op *SubOp) Forward(inputs ...*Tensor) *Tensor {
	if len(inputs) != 2 {
		panic("SubOp requires exactly 2 inputs")
	}
	op.inputs = inputs

	result, err := Sub(inputs[0], inputs[1])
	if err != nil {
		panic(fmt.Sprintf("SubOp forward failed: %v", err))
	}

	result.creator = op
	result.requiresGrad = inputs[0].requiresGrad || inputs[1].requiresGrad
	return result
}

func (op *SubOp) Backward(gradOut *Tensor) []*Tensor {
	gradA, err := gradOut.Clone()
	if err != nil {
		panic(fmt.Sprintf("SubOp backward clone failed: %v", err))
	}

	gradB, err := Scale(gradOut, -1)
	if err != nil {
		panic(fmt.Sprintf("SubOp backward negation failed: %v", err))
	}
	return []*Tensor{gradA, gradB}
}

func (op *SubOp) Inputs() []*Tensor {
	return op.inputs
}

// MulOp implements element-wise multiplication of equal-shape tensors.
type MulOp struct {
	inputs []*Tensor
}

func (op *MulOp) Forward(inputs ...*Tensor) *Tensor {
	if len(inputs) != 2 {
		panic("MulOp requires exactly 2 inputs")
	}
	if !shapesEqual(inputs[0].Shape, inputs[1].Shape) {
		panic(fmt.Sprintf("MulOp requires equal shapes, got %v and %v", inputs[0].Shape, inputs[1].Shape))
	}
	op.inputs = inputs

	result, err := Mul(inputs[0], inputs[1])
	if err != nil {
		panic(fmt.Sprintf("MulOp forward failed: %v", err))
	}

	result.creator = op
	result.requiresGrad = inputs[0].requiresGrad || inputs[1].requiresGrad
	return result
}

func (op *MulOp) Backward(gradOut *Tensor) []*Tensor {
	gradA, err := Mul(gradOut, op.inputs[1])
	if err != nil {
		panic(fmt.Sprintf("MulOp backward failed for input A: %v", err))
	}
	gradB, err := Mul(gradOut, op.inputs[0])
	if err != nil {
		panic(fmt.Sprintf("MulOp backward failed for input B: %v", err))
	}
	return []*Tensor{gradA, gradB}
}

func (op *MulOp) Inputs() []*Tensor {
	return op.inputs
}

// MatMulOp implements 2D matrix multiplication.
type MatMulOp struct {
	inputs []*Tensor
}

func (op *MatMulOp) Forward(inputs ...*Tensor) *Tensor {
	if len(inputs) != 2 {
		panic("MatMulOp requires exactly 2 inputs")
	}
	op.inputs = inputs

	result, err := MatMul(inputs[0], inputs[1])
	if err != nil {
		panic(fmt.Sprintf("MatMulOp forward failed: %v", err))
	}

	result.creator = op
	result.requiresGrad = inputs[0].requiresGrad || inputs[1].requiresGrad
	return result
}

func (op *MatMulOp) Backward(gradOut *Tensor) []*Tensor {
	a, b := op.inputs[0], op.inputs[1]

	// d(A @ B)/dA = gradOut @ B^T, d(A @ B)/dB = A^T @ gradOut
	bT, err := Transpose(b)
	if err != nil {
		panic(fmt.Sprintf("MatMulOp backward transpose B failed: %v", err))
	}
	gradA, err := MatMul(gradOut, bT)
	if err != nil {
		panic(fmt.Sprintf("MatMulOp backward failed for input A: %v", err))
	}

	aT, err := Transpose(a)
	if err != nil {
		panic(fmt.Sprintf("MatMulOp backward transpose A failed: %v", err))
	}
	gradB, err := MatMul(aT, gradOut)
	if err != nil {
		panic(fmt.Sprintf("MatMulOp backward failed for input B: %v", err))
	}

	return []*Tensor{gradA, gradB}
}

func (op *MatMulOp) Inputs() []*Tensor {
	return op.inputs
}

// ReLUOp implements the ReLU activation.
type ReLUOp struct {
	inputs []*Tensor
}

func (op *ReLUOp) Forward(inputs ...*Tensor) *Tensor {
	if len(inputs) != 1 {
		panic("ReLUOp requires exactly 1 input")
	}
	op.inputs = inputs

	result, err := ReLU(inputs[0])
	if err != nil {
		panic(fmt.Sprintf("ReLUOp forward failed: %v", err))
	}

	result.creator = op
	result.requiresGrad = inputs[0].requiresGrad
	return result
}

func (op *ReLUOp) Backward(gradOut *Tensor) []*Tensor {
	grad, err := gradOut.Clone()
	if err != nil {
		panic(fmt.Sprintf("ReLUOp backward clone failed: %v", err))
	}

	inputData := op.inputs[0].Data.([]float32)
	gradData := grad.Data.([]float32)
	for i := range gradData {
		if inputData[i] <= 0 {
			gradData[i] = 0
		}
	}

	return []*Tensor{grad}
}

func (op *ReLUOp) Inputs() []*Tensor {
	return op.inputs
}

// ExpOp implements the element-wise exponential.
type ExpOp struct {
	inputs []*Tensor
	output *Tensor
}

func (op *ExpOp) Forward(inputs ...*Tensor) *Tensor {
	if len(inputs) != 1 {
		panic("ExpOp requires exactly 1 input")
	}
	op.inputs = inputs

	result, err := Exp(inputs[0])
	if err != nil {
		panic(fmt.Sprintf("ExpOp forward failed: %v", err))
	}

	op.output = result
	result.creator = op
	result.requiresGrad = inputs[0].requiresGrad
	return result
}

func (op *ExpOp) Backward(gradOut *Tensor) []*Tensor {
	// d exp(x)/dx = exp(x)
	grad, err := Mul(gradOut, op.output)
	if err != nil {
		panic(fmt.Sprintf("ExpOp backward failed: %v", err))
	}
	return []*Tensor{grad}
}

func (op *ExpOp) Inputs() []*Tensor {
	return op.inputs
}

// AbsOp implements the element-wise absolute value. The subgradient at zero
// is taken as zero.
type AbsOp struct {
	inputs []*Tensor
}

func (op *AbsOp) Forward(inputs ...*Tensor) *Tensor {
	if len(inputs) != 1 {
		panic("AbsOp requires exactly 1 input")
	}
	op.inputs = inputs

	result, err := Abs(inputs[0])
	if err != nil {
		panic(fmt.Sprintf("AbsOp forward failed: %v", err))
	}

	result.creator = op
	result.requiresGrad = inputs[0].requiresGrad
	return result
}

func (op *AbsOp) Backward(gradOut *Tensor) []*Tensor {
	grad, err := gradOut.Clone()
	if err != nil {
		panic(fmt.Sprintf("AbsOp backward clone failed: %v", err))
	}

	inputData := op.inputs[0].Data.([]float32)
	gradData := grad.Data.([]float32)
	for i := range gradData {
		switch {
		case inputData[i] < 0:
			gradData[i] = -gradData[i]
		case inputData[i] == 0:
			gradData[i] = 0
		}
	}

	return []*Tensor{grad}
}

func (op *AbsOp) Inputs() []*Tensor {
	return op.inputs
}

// SqrtOp implements the clamped element-wise square root. Where the input
// was clamped to zero the derivative is zero.
type SqrtOp struct {
	inputs []*Tensor
	output *Tensor
}

func (op *SqrtOp) Forward(inputs ...*Tensor) *Tensor {
	if len(inputs) != 1 {
		panic("SqrtOp requires exactly 1 input")
	}
	op.inputs = inputs

	result, err := Sqrt(inputs[0])
	if err != nil {
		panic(fmt.Sprintf("SqrtOp forward failed: %v", err))
	}

	op.output = result
	result.creator = op
	result.requiresGrad = inputs[0].requiresGrad
	return result
}

func (op *SqrtOp) Backward(gradOut *Tensor) []*Tensor {
	// d sqrt(x)/dx = 1 / (2 sqrt(x)) for x > 0
	grad, err := gradOut.Clone()
	if err != nil {
		panic(fmt.Sprintf("SqrtOp backward clone failed: %v", err))
	}

	outputData := op.output.Data.([]float32)
	gradData := grad.Data.([]float32)
	for i := range gradData {
		if outputData[i] > 0 {
			gradData[i] = gradData[i] / (2 * outputData[i])
		} else {
			gradData[i] = 0
		}
	}

	return []*Tensor{grad}
}

func (op *SqrtOp) Inputs() []*Tensor {
	return op.inputs
}

// ScaleOp multiplies by a scalar constant that carries no gradient.
type ScaleOp struct {
	inputs []*Tensor
	factor float64
}

func (op *ScaleOp) Forward(inputs ...*Tensor) *Tensor {
	if len(inputs) != 1 {
		panic("ScaleOp requires exactly 1 input")
	}
	op.inputs = inputs

	result, err := Scale(inputs[0], op.factor)
	if err != nil {
		panic(fmt.Sprintf("ScaleOp forward failed: %v", err))
	}

	result.creator = op
	result.requiresGrad = inputs[0].requiresGrad
	return result
}

func (op *ScaleOp) Backward(gradOut *Tensor) []*Tensor {
	grad, err := Scale(gradOut, op.factor)
	if err != nil {
		panic(fmt.Sprintf("ScaleOp backward failed: %v", err))
	}
	return []*Tensor{grad}
}

func (op *ScaleOp) Inputs() []*Tensor {
	return op.inputs
}

// ShiftOp adds a scalar constant that carries no gradient.
type ShiftOp struct {
	inputs []*Tensor
	addend float64
}

func (op *ShiftOp) Forward(inputs ...*Tensor) *Tensor {
	if len(inputs) != 1 {
		panic("ShiftOp requires exactly 1 input")
	}
	op.inputs = inputs

	result, err := Shift(inputs[0], op.addend)
	if err != nil {
		panic(fmt.Sprintf("ShiftOp forward failed: %v", err))
	}

	result.creator = op
	result.requiresGrad = inputs[0].requiresGrad
	return result
}

func (op *ShiftOp) Backward(gradOut *Tensor) []*Tensor {
	grad, err := gradOut.Clone()
	if err != nil {
		panic(fmt.Sprintf("ShiftOp backward clone failed: %v", err))
	}
	return []*Tensor{grad}
}

func (op *ShiftOp) Inputs() []*Tensor {
	return op.inputs
}

// SumOp reduces all elements to a scalar.
type SumOp struct {
	inputs []*Tensor
}

func (op *SumOp) Forward(inputs ...*Tensor) *Tensor {
	if len(inputs) != 1 {
		panic("SumOp requires exactly 1 input")
	}
	op.inputs = inputs

	result, err := Sum(inputs[0])
	if err != nil {
		panic(fmt.Sprintf("SumOp forward failed: %v", err))
	}

	result.creator = op
	result.requiresGrad = inputs[0].requiresGrad
	return result
}

func (op *SumOp) Backward(gradOut *Tensor) []*Tensor {
	// The scalar gradient flows unchanged to every input element.
	g := gradOut.Data.([]float32)[0]
	in := op.inputs[0]
	data := make([]float32, in.NumElems)
	for i := range data {
		data[i] = g
	}

	grad, err := NewTensor(in.Shape, Float32, in.Device, data)
	if err != nil {
		panic(fmt.Sprintf("SumOp backward failed: %v", err))
	}
	return []*Tensor{grad}
}

func (op *SumOp) Inputs() []*Tensor {
	return op.inputs
}

// SumRowsOp reduces a [batch, n] tensor to one value per row.
type SumRowsOp struct {
	inputs []*Tensor
}

func (op *SumRowsOp) Forward(inputs ...*Tensor) *Tensor {
	if len(inputs) != 1 {
		panic("SumRowsOp requires exactly 1 input")
	}
	op.inputs = inputs

	result, err := SumRows(inputs[0])
	if err != nil {
		panic(fmt.Sprintf("SumRowsOp forward failed: %v", err))
	}

	result.creator = op
	result.requiresGrad = inputs[0].requiresGrad
	return result
}

func (op *SumRowsOp) Backward(gradOut *Tensor) []*Tensor {
	// Each row's gradient is broadcast across that row's elements.
	in := op.inputs[0]
	batch := in.Shape[0]
	n := in.Shape[1]
	g := gradOut.Data.([]float32)

	data := make([]float32, batch*n)
	for i := 0; i < batch; i++ {
		for j := 0; j < n; j++ {
			data[i*n+j] = g[i]
		}
	}

	grad, err := NewTensor(in.Shape, Float32, in.Device, data)
	if err != nil {
		panic(fmt.Sprintf("SumRowsOp backward failed: %v", err))
	}
	return []*Tensor{grad}
}

func (op *SumRowsOp) Inputs() []*Tensor {
	return op.inputs
}

// High-level autograd functions that create and execute operations.

// AddAutograd performs addition with automatic differentiation.
func AddAutograd(a, b *Tensor) *Tensor {
	op := &AddOp{}
	return op.Forward(a, b)
}

// SubAutograd performs subtraction with automatic differentiation.
func SubAutograd(a, b *Tensor) *Tensor {
	op := &SubOp{}
	return op.Forward(a, b)
}

// MulAutograd performs element-wise multiplication with automatic differentiation.
func MulAutograd(a, b *Tensor) *Tensor {
	op := &MulOp{}
	return op.Forward(a, b)
}

// MatMulAutograd performs matrix multiplication with automatic differentiation.
func MatMulAutograd(a, b *Tensor) *Tensor {
	op := &MatMulOp{}
	return op.Forward(a, b)
}

// ReLUAutograd performs ReLU activation with automatic differentiation.
func ReLUAutograd(a *Tensor) *Tensor {
	op := &ReLUOp{}
	return op.Forward(a)
}

// ExpAutograd performs the element-wise exponential with automatic differentiation.
func ExpAutograd(a *Tensor) *Tensor {
	op := &ExpOp{}
	return op.Forward(a)
}

// AbsAutograd performs the element-wise absolute value with automatic differentiation.
func AbsAutograd(a *Tensor) *Tensor {
	op := &AbsOp{}
	return op.Forward(a)
}

// SqrtAutograd performs the clamped square root with automatic differentiation.
func SqrtAutograd(a *Tensor) *Tensor {
	op := &SqrtOp{}
	return op.Forward(a)
}

// ScaleAutograd multiplies by a scalar constant with automatic differentiation.
func ScaleAutograd(a *Tensor, factor float64) *Tensor {
	op := &ScaleOp{factor: factor}
	return op.Forward(a)
}

// ShiftAutograd adds a scalar constant with automatic differentiation.
func ShiftAutograd(a *Tensor, addend float64) *Tensor {
	op := &ShiftOp{addend: addend}
	return op.Forward(a)
}

// SumAutograd reduces all elements to a scalar with automatic differentiation.
func SumAutograd(a *Tensor) *Tensor {
	op := &SumOp{}
	return op.Forward(a)
}

// SumRowsAutograd reduces over the second dimension with automatic differentiation.
func SumRowsAutograd(a *Tensor) *Tensor {
	op := &SumRowsOp{}
	return op.Forward(a)
}

// SquareAutograd squares every element with automatic differentiation.
func SquareAutograd(a *Tensor) *Tensor {
	return MulAutograd(a, a)
}

// IsFinite reports whether every element of a Float32 tensor is finite.
func IsFinite(t *Tensor) bool {
	if t.DType != Float32 {
		return true
	}
	data := t.Data.([]float32)
	for _, v := range data {
		f := float64(v)
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return false
		}
	}
	return true
}
