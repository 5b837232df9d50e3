package tensor

import (
	"fmt"
)

func getIndex(indices []int, strides []int) int {
	index := 0
	for i, idx := range indices {
		index += idx * strides[i]
	}
	return index
}

func getIndicesFromLinear(linearIndex int, shape []int) []int {
	indices := make([]int, len(shape))
	remaining := linearIndex
	for i := len(shape) - 1; i >= 0; i-- {
		indices[i] = remaining % shape[i]
		remaining /= shape[i]
	}
	return indices
}

func MatMul(t1, t2 *Tensor) (*Tensor, error) {
	if err := checkCompatibility(t1, t2); err != nil {
		return nil, err
	}

	if len(t1.Shape) != 2 || len(t2.Shape) != 2 {
		return nil, fmt.Errorf("matmul requires 2D tensors, got %v and %v", t1.Shape, t2.Shape)
	}

	rows1 := t1.Shape[0]
	cols1 := t1.Shape[1]
	rows2 := t2.Shape[0]
	cols2 := t2.Shape[1]

	if cols1 != rows2 {
		return nil, fmt.Errorf("incompatible dimensions for matmul: (%d, %d) x (%d, %d)", rows1, cols1, rows2, cols2)
	}

	result, err := Zeros([]int{rows1, cols2}, t1.DType, t1.Device)
	if err != nil {
		return nil, err
	}

	switch t1.DType {
	case Float32:
		data1 := t1.Data.([]float32)
		data2 := t2.Data.([]float32)
		resultData := result.Data.([]float32)

		for i := 0; i < rows1; i++ {
			for j := 0; j < cols2; j++ {
				var sum float32
				for k := 0; k < cols1; k++ {
					sum += data1[i*cols1+k] * data2[k*cols2+j]
				}
				resultData[i*cols2+j] = sum
			}
		}
	default:
		return nil, fmt.Errorf("unsupported dtype for MatMul: %s", t1.DType)
	}

	return result, nil
}

func Transpose(t *Tensor) (*Tensor, error) {
	if len(t.Shape) != 2 {
		return nil, fmt.Errorf("transpose requires a 2D tensor, got %v", t.Shape)
	}
	if t.DType != Float32 {
		return nil, fmt.Errorf("unsupported dtype for Transpose: %s", t.DType)
	}

	rows := t.Shape[0]
	cols := t.Shape[1]

	result, err := Zeros([]int{cols, rows}, t.DType, t.Device)
	if err != nil {
		return nil, err
	}

	data := t.Data.([]float32)
	resultData := result.Data.([]float32)

	for i := 0; i < rows; i++ {
		for j := 0; j < cols; j++ {
			resultData[j*rows+i] = data[i*cols+j]
		}
	}

	return result, nil
}

// Sum reduces all elements to a single-element tensor.
func Sum(t *Tensor) (*Tensor, error) {
	switch t.DType {
	case Float32:
		data := t.Data.([]float32)
		var sum float32
		for _, v := range data {
			sum += v
		}
		return NewTensor([]int{1}, t.DType, t.Device, []float32{sum})
	case Int32:
		data := t.Data.([]int32)
		var sum int32
		for _, v := range data {
			sum += v
		}
		return NewTensor([]int{1}, t.DType, t.Device, []int32{sum})
	default:
		return nil, fmt.Errorf("unsupported dtype for Sum: %s", t.DType)
	}
}

// SumRows reduces a [batch, n] tensor over its second dimension, yielding one
// value per row.
func SumRows(t *Tensor) (*Tensor, error) {
	if len(t.Shape) != 2 {
		return nil, fmt.Errorf("SumRows requires a 2D tensor, got %v", t.Shape)
	}
	if t.DType != Float32 {
		return nil, fmt.Errorf("unsupported dtype for SumRows: %s", t.DType)
	}

	batch := t.Shape[0]
	n := t.Shape[1]
	data := t.Data.([]float32)

	out := make([]float32, batch)
	for i := 0; i < batch; i++ {
		var sum float32
		for j := 0; j < n; j++ {
			sum += data[i*n+j]
		}
		out[i] = sum
	}

	return NewTensor([]int{batch}, Float32, t.Device, out)
}

// ConcatRows concatenates tensors along their first dimension. All inputs
// must agree on dtype and trailing dimensions; nil and empty inputs are
// rejected.
func ConcatRows(tensors ...*Tensor) (*Tensor, error) {
	if len(tensors) == 0 {
		return nil, fmt.Errorf("ConcatRows requires at least one tensor")
	}

	first := tensors[0]
	totalRows := 0
	for i, t := range tensors {
		if t == nil {
			return nil, fmt.Errorf("ConcatRows input %d is nil", i)
		}
		if t.DType != first.DType {
			return nil, fmt.Errorf("ConcatRows dtype mismatch: %s vs %s", first.DType, t.DType)
		}
		if len(t.Shape) != len(first.Shape) {
			return nil, fmt.Errorf("ConcatRows rank mismatch: %v vs %v", first.Shape, t.Shape)
		}
		for d := 1; d < len(t.Shape); d++ {
			if t.Shape[d] != first.Shape[d] {
				return nil, fmt.Errorf("ConcatRows trailing dimension mismatch: %v vs %v", first.Shape, t.Shape)
			}
		}
		totalRows += t.Shape[0]
	}

	outShape := make([]int, len(first.Shape))
	copy(outShape, first.Shape)
	outShape[0] = totalRows

	result, err := Zeros(outShape, first.DType, first.Device)
	if err != nil {
		return nil, err
	}

	switch first.DType {
	case Float32:
		out := result.Data.([]float32)
		offset := 0
		for _, t := range tensors {
			data := t.Data.([]float32)
			copy(out[offset:offset+len(data)], data)
			offset += len(data)
		}
	case Int32:
		out := result.Data.([]int32)
		offset := 0
		for _, t := range tensors {
			data := t.Data.([]int32)
			copy(out[offset:offset+len(data)], data)
			offset += len(data)
		}
	default:
		return nil, fmt.Errorf("unsupported dtype for ConcatRows: %s", first.DType)
	}

	return result, nil
}

// Row returns a copy of one row of a 2D tensor as a [1, n] tensor.
func Row(t *Tensor, idx int) (*Tensor, error) {
	if len(t.Shape) != 2 {
		return nil, fmt.Errorf("Row requires a 2D tensor, got %v", t.Shape)
	}
	if idx < 0 || idx >= t.Shape[0] {
		return nil, fmt.Errorf("row index %d out of bounds for %d rows", idx, t.Shape[0])
	}
	if t.DType != Float32 {
		return nil, fmt.Errorf("unsupported dtype for Row: %s", t.DType)
	}

	n := t.Shape[1]
	data := t.Data.([]float32)
	row := make([]float32, n)
	copy(row, data[idx*n:(idx+1)*n])

	return NewTensor([]int{1, n}, Float32, t.Device, row)
}
