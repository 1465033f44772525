package memio

import "unsafe"

func sizeOf[T any]() uintptr {
	var zero T
	return unsafe.Sizeof(zero)
}
