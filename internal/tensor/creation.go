package tensor

// Zeros creates a tensor filled with zeros on the backend's default device.
//
// Example:
//
//	backend := cpu.New()
//	t := tensor.Zeros[float32](Shape{3, 4}, backend)
func Zeros[T DType, B Backend](shape Shape, b B) *Tensor[T, B] {
	return ZerosOn[T](shape, b, b.Device())
}

// ZerosOn creates a zero tensor on an explicit device.
func ZerosOn[T DType, B Backend](shape Shape, b B, device Device) *Tensor[T, B] {
	var dummy T
	raw, err := NewRaw(shape, inferDataType(dummy), device)
	if err != nil {
		panic(err) // Shape validation should prevent this
	}
	return New[T, B](raw, b)
}

// Ones creates a tensor filled with ones.
func Ones[T DType, B Backend](shape Shape, b B) *Tensor[T, B] {
	return Full[T](shape, 1, b)
}

// Full creates a tensor filled with a specific value.
//
// Example:
//
//	t := tensor.Full[float32](Shape{3, 3}, 3.14, backend)
func Full[T DType, B Backend](shape Shape, value T, b B) *Tensor[T, B] {
	t := Zeros[T, B](shape, b)
	data := t.Data()
	for i := range data {
		data[i] = value
	}
	return t
}

// Arange creates a tensor holding 0, 1, 2, ... in row-major order, scaled by step.
// Handy for deterministic inputs in tests and examples.
func Arange[T DType, B Backend](shape Shape, step T, b B) *Tensor[T, B] {
	t := Zeros[T, B](shape, b)
	data := t.Data()
	for i := range data {
		data[i] = T(i) * step
	}
	return t
}
