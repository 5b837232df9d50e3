package tensor

import (
	"reflect"
	"testing"
)

func TestMatMul(t *testing.T) {
	t.Run("Basic 2x2", func(t *testing.T) {
		a, _ := NewTensor([]int{2, 2}, Float32, CPU, []float32{1, 2, 3, 4})
		b, _ := NewTensor([]int{2, 2}, Float32, CPU, []float32{5, 6, 7, 8})

		result, err := MatMul(a, b)
		if err != nil {
			t.Fatalf("MatMul failed: %v", err)
		}

		// [1 2] [5 6]   [19 22]
		// [3 4] [7 8] = [43 50]
		expected := []float32{19, 22, 43, 50}
		if !reflect.DeepEqual(result.Data.([]float32), expected) {
			t.Errorf("MatMul result = %v, expected %v", result.Data, expected)
		}
	})

	t.Run("Rectangular", func(t *testing.T) {
		a, _ := NewTensor([]int{1, 3}, Float32, CPU, []float32{1, 2, 3})
		b, _ := NewTensor([]int{3, 2}, Float32, CPU, []float32{1, 0, 0, 1, 1, 1})

		result, err := MatMul(a, b)
		if err != nil {
			t.Fatalf("MatMul failed: %v", err)
		}

		if !reflect.DeepEqual(result.Shape, []int{1, 2}) {
			t.Errorf("MatMul shape = %v, expected [1 2]", result.Shape)
		}

		expected := []float32{4, 5}
		if !reflect.DeepEqual(result.Data.([]float32), expected) {
			t.Errorf("MatMul result = %v, expected %v", result.Data, expected)
		}
	})

	t.Run("Incompatible dimensions", func(t *testing.T) {
		a, _ := NewTensor([]int{2, 3}, Float32, CPU, []float32{1, 2, 3, 4, 5, 6})
		b, _ := NewTensor([]int{2, 2}, Float32, CPU, []float32{1, 2, 3, 4})

		_, err := MatMul(a, b)
		if err == nil {
			t.Error("Expected error for incompatible dimensions")
		}
	})
}

func TestTranspose(t *testing.T) {
	a, _ := NewTensor([]int{2, 3}, Float32, CPU, []float32{1, 2, 3, 4, 5, 6})

	result, err := Transpose(a)
	if err != nil {
		t.Fatalf("Transpose failed: %v", err)
	}

	if !reflect.DeepEqual(result.Shape, []int{3, 2}) {
		t.Errorf("Transpose shape = %v, expected [3 2]", result.Shape)
	}

	expected := []float32{1, 4, 2, 5, 3, 6}
	if !reflect.DeepEqual(result.Data.([]float32), expected) {
		t.Errorf("Transpose result = %v, expected %v", result.Data, expected)
	}
}

func TestSum(t *testing.T) {
	a, _ := NewTensor([]int{2, 2}, Float32, CPU, []float32{1, 2, 3, 4})

	result, err := Sum(a)
	if err != nil {
		t.Fatalf("Sum failed: %v", err)
	}

	value, err := result.Float64Item()
	if err != nil {
		t.Fatalf("Float64Item failed: %v", err)
	}
	if value != 10 {
		t.Errorf("Sum = %f, expected 10", value)
	}
}

func TestSumRows(t *testing.T) {
	a, _ := NewTensor([]int{2, 3}, Float32, CPU, []float32{1, 2, 3, 4, 5, 6})

	result, err := SumRows(a)
	if err != nil {
		t.Fatalf("SumRows failed: %v", err)
	}

	if !reflect.DeepEqual(result.Shape, []int{2}) {
		t.Errorf("SumRows shape = %v, expected [2]", result.Shape)
	}

	expected := []float32{6, 15}
	if !reflect.DeepEqual(result.Data.([]float32), expected) {
		t.Errorf("SumRows result = %v, expected %v", result.Data, expected)
	}
}

func TestConcatRows(t *testing.T) {
	t.Run("Two 2D tensors", func(t *testing.T) {
		a, _ := NewTensor([]int{2, 2}, Float32, CPU, []float32{1, 2, 3, 4})
		b, _ := NewTensor([]int{1, 2}, Float32, CPU, []float32{5, 6})

		result, err := ConcatRows(a, b)
		if err != nil {
			t.Fatalf("ConcatRows failed: %v", err)
		}

		if !reflect.DeepEqual(result.Shape, []int{3, 2}) {
			t.Errorf("ConcatRows shape = %v, expected [3 2]", result.Shape)
		}

		expected := []float32{1, 2, 3, 4, 5, 6}
		if !reflect.DeepEqual(result.Data.([]float32), expected) {
			t.Errorf("ConcatRows result = %v, expected %v", result.Data, expected)
		}
	})

	t.Run("Labels", func(t *testing.T) {
		a, _ := NewTensor([]int{2}, Int32, CPU, []int32{0, 1})
		b, _ := NewTensor([]int{3}, Int32, CPU, []int32{2, 3, 4})

		result, err := ConcatRows(a, b)
		if err != nil {
			t.Fatalf("ConcatRows failed: %v", err)
		}

		expected := []int32{0, 1, 2, 3, 4}
		if !reflect.DeepEqual(result.Data.([]int32), expected) {
			t.Errorf("ConcatRows result = %v, expected %v", result.Data, expected)
		}
	})

	t.Run("Trailing dimension mismatch", func(t *testing.T) {
		a, _ := NewTensor([]int{2, 2}, Float32, CPU, []float32{1, 2, 3, 4})
		b, _ := NewTensor([]int{2, 3}, Float32, CPU, []float32{1, 2, 3, 4, 5, 6})

		_, err := ConcatRows(a, b)
		if err == nil {
			t.Error("Expected error for trailing dimension mismatch")
		}
	})
}

func TestRow(t *testing.T) {
	a, _ := NewTensor([]int{2, 3}, Float32, CPU, []float32{1, 2, 3, 4, 5, 6})

	row, err := Row(a, 1)
	if err != nil {
		t.Fatalf("Row failed: %v", err)
	}

	expected := []float32{4, 5, 6}
	if !reflect.DeepEqual(row.Data.([]float32), expected) {
		t.Errorf("Row result = %v, expected %v", row.Data, expected)
	}

	if _, err := Row(a, 5); err == nil {
		t.Error("Expected error for out-of-bounds row")
	}
}
