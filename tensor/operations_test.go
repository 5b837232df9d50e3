package tensor

import (
	"math"
	"reflect"
	"testing"
)

func TestCheckCompatibility(t *testing.T) {
	t1 := &Tensor{DType: Float32, Device: CPU}
	t2 := &Tensor{DType: Float32, Device: CPU}
	t3 := &Tensor{DType: Int32, Device: CPU}

	t.Run("Compatible tensors", func(t *testing.T) {
		err := checkCompatibility(t1, t2)
		if err != nil {
			t.Errorf("Expected no error, got %v", err)
		}
	})

	t.Run("Different dtypes", func(t *testing.T) {
		err := checkCompatibility(t1, t3)
		if err == nil {
			t.Error("Expected error for different dtypes")
		}
	})
}

func TestAdd(t *testing.T) {
	t.Run("Equal shapes", func(t *testing.T) {
		a, err := NewTensor([]int{2, 2}, Float32, CPU, []float32{1, 2, 3, 4})
		if err != nil {
			t.Fatalf("Failed to create tensor: %v", err)
		}
		b, err := NewTensor([]int{2, 2}, Float32, CPU, []float32{10, 20, 30, 40})
		if err != nil {
			t.Fatalf("Failed to create tensor: %v", err)
		}

		result, err := Add(a, b)
		if err != nil {
			t.Fatalf("Add failed: %v", err)
		}

		expected := []float32{11, 22, 33, 44}
		if !reflect.DeepEqual(result.Data.([]float32), expected) {
			t.Errorf("Add result = %v, expected %v", result.Data, expected)
		}
	})

	t.Run("Row-vector broadcast", func(t *testing.T) {
		full, _ := NewTensor([]int{2, 3}, Float32, CPU, []float32{1, 2, 3, 4, 5, 6})
		row, _ := NewTensor([]int{3}, Float32, CPU, []float32{10, 20, 30})

		result, err := Add(full, row)
		if err != nil {
			t.Fatalf("Add failed: %v", err)
		}

		expected := []float32{11, 22, 33, 14, 25, 36}
		if !reflect.DeepEqual(result.Data.([]float32), expected) {
			t.Errorf("Broadcast add result = %v, expected %v", result.Data, expected)
		}
	})

	t.Run("Shape mismatch", func(t *testing.T) {
		a, _ := NewTensor([]int{2, 2}, Float32, CPU, []float32{1, 2, 3, 4})
		b, _ := NewTensor([]int{2, 3}, Float32, CPU, []float32{1, 2, 3, 4, 5, 6})

		_, err := Add(a, b)
		if err == nil {
			t.Error("Expected error for mismatched shapes")
		}
	})
}

func TestSub(t *testing.T) {
	a, _ := NewTensor([]int{1, 3}, Float32, CPU, []float32{5, 7, 9})
	b, _ := NewTensor([]int{1, 3}, Float32, CPU, []float32{1, 2, 3})

	result, err := Sub(a, b)
	if err != nil {
		t.Fatalf("Sub failed: %v", err)
	}

	expected := []float32{4, 5, 6}
	if !reflect.DeepEqual(result.Data.([]float32), expected) {
		t.Errorf("Sub result = %v, expected %v", result.Data, expected)
	}
}

func TestMul(t *testing.T) {
	t.Run("Elementwise", func(t *testing.T) {
		a, _ := NewTensor([]int{2, 2}, Float32, CPU, []float32{1, 2, 3, 4})
		b, _ := NewTensor([]int{2, 2}, Float32, CPU, []float32{2, 2, 2, 2})

		result, err := Mul(a, b)
		if err != nil {
			t.Fatalf("Mul failed: %v", err)
		}

		expected := []float32{2, 4, 6, 8}
		if !reflect.DeepEqual(result.Data.([]float32), expected) {
			t.Errorf("Mul result = %v, expected %v", result.Data, expected)
		}
	})

	t.Run("Scalar broadcast", func(t *testing.T) {
		a, _ := NewTensor([]int{2, 2}, Float32, CPU, []float32{1, 2, 3, 4})
		s := FromScalar(0.5, Float32, CPU)

		result, err := Mul(a, s)
		if err != nil {
			t.Fatalf("Mul failed: %v", err)
		}

		expected := []float32{0.5, 1, 1.5, 2}
		if !reflect.DeepEqual(result.Data.([]float32), expected) {
			t.Errorf("Scalar mul result = %v, expected %v", result.Data, expected)
		}
	})
}

func TestReLU(t *testing.T) {
	a, _ := NewTensor([]int{1, 4}, Float32, CPU, []float32{-1, 0, 0.5, 2})

	result, err := ReLU(a)
	if err != nil {
		t.Fatalf("ReLU failed: %v", err)
	}

	expected := []float32{0, 0, 0.5, 2}
	if !reflect.DeepEqual(result.Data.([]float32), expected) {
		t.Errorf("ReLU result = %v, expected %v", result.Data, expected)
	}
}

func TestExp(t *testing.T) {
	a, _ := NewTensor([]int{1, 2}, Float32, CPU, []float32{0, 1})

	result, err := Exp(a)
	if err != nil {
		t.Fatalf("Exp failed: %v", err)
	}

	data := result.Data.([]float32)
	if math.Abs(float64(data[0])-1.0) > 1e-6 {
		t.Errorf("exp(0) = %f, expected 1", data[0])
	}
	if math.Abs(float64(data[1])-math.E) > 1e-5 {
		t.Errorf("exp(1) = %f, expected %f", data[1], math.E)
	}
}

func TestSqrt(t *testing.T) {
	t.Run("Positive values", func(t *testing.T) {
		a, _ := NewTensor([]int{1, 3}, Float32, CPU, []float32{4, 9, 16})

		result, err := Sqrt(a)
		if err != nil {
			t.Fatalf("Sqrt failed: %v", err)
		}

		expected := []float32{2, 3, 4}
		if !reflect.DeepEqual(result.Data.([]float32), expected) {
			t.Errorf("Sqrt result = %v, expected %v", result.Data, expected)
		}
	})

	t.Run("Negative values clamped to zero", func(t *testing.T) {
		// Small negative radicands from floating-point cancellation must not
		// produce NaN.
		a, _ := NewTensor([]int{1, 2}, Float32, CPU, []float32{-1e-7, 4})

		result, err := Sqrt(a)
		if err != nil {
			t.Fatalf("Sqrt failed: %v", err)
		}

		data := result.Data.([]float32)
		if data[0] != 0 {
			t.Errorf("sqrt of negative input = %f, expected 0", data[0])
		}
		if data[1] != 2 {
			t.Errorf("sqrt(4) = %f, expected 2", data[1])
		}
	})
}

func TestScaleAndShift(t *testing.T) {
	a, _ := NewTensor([]int{1, 3}, Float32, CPU, []float32{1, 2, 3})

	scaled, err := Scale(a, 2)
	if err != nil {
		t.Fatalf("Scale failed: %v", err)
	}
	expected := []float32{2, 4, 6}
	if !reflect.DeepEqual(scaled.Data.([]float32), expected) {
		t.Errorf("Scale result = %v, expected %v", scaled.Data, expected)
	}

	shifted, err := Shift(a, 1)
	if err != nil {
		t.Fatalf("Shift failed: %v", err)
	}
	expected = []float32{2, 3, 4}
	if !reflect.DeepEqual(shifted.Data.([]float32), expected) {
		t.Errorf("Shift result = %v, expected %v", shifted.Data, expected)
	}
}

func TestIsFinite(t *testing.T) {
	finite, _ := NewTensor([]int{1, 2}, Float32, CPU, []float32{1, 2})
	if !IsFinite(finite) {
		t.Error("Expected finite tensor to be reported finite")
	}

	nan, _ := NewTensor([]int{1, 2}, Float32, CPU, []float32{float32(math.NaN()), 2})
	if IsFinite(nan) {
		t.Error("Expected NaN tensor to be reported non-finite")
	}

	inf, _ := NewTensor([]int{1, 2}, Float32, CPU, []float32{float32(math.Inf(1)), 2})
	if IsFinite(inf) {
		t.Error("Expected Inf tensor to be reported non-finite")
	}
}
