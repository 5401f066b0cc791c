package ws

import (
	"encoding/binary"
	"fmt"
)

// packFrame 把 JSON 与缓冲区打包为二进制帧
func packFrame(head []byte, buffers [][]byte) []byte {
	n := 1 + len(buffers)
	size := 4 * (n + 1)
	offsets := make([]uint32, n)
	offsets[0] = uint32(size)
	size += len(head)
	for i, b := range buffers {
		offsets[i+1] = uint32(size)
		size += len(b)
	}

	out := make([]byte, size)
	binary.BigEndian.PutUint32(out[0:], uint32(n))
	for i, off := range offsets {
		binary.BigEndian.PutUint32(out[4*(i+1):], off)
	}
	copy(out[offsets[0]:], head)
	for i, b := range buffers {
		copy(out[offsets[i+1]:], b)
	}
	return out
}

// unpackFrame 拆开二进制帧；返回的切片引用输入
func unpackFrame(data []byte) ([]byte, [][]byte, error) {
	if len(data) < 8 {
		return nil, nil, fmt.Errorf("%w: %d bytes", ErrBadFrame, len(data))
	}
	n := int(binary.BigEndian.Uint32(data))
	if n < 1 || 4*(n+1) > len(data) {
		return nil, nil, fmt.Errorf("%w: %d segments", ErrBadFrame, n)
	}
	offsets := make([]int, n+1)
	for i := 0; i < n; i++ {
		offsets[i] = int(binary.BigEndian.Uint32(data[4*(i+1):]))
	}
	offsets[n] = len(data)
	for i := 0; i < n; i++ {
		if offsets[i] < 4*(n+1) || offsets[i] > offsets[i+1] {
			return nil, nil, fmt.Errorf("%w: bad offset %d for segment %d", ErrBadFrame, offsets[i], i)
		}
	}

	head := data[offsets[0]:offsets[1]]
	buffers := make([][]byte, n-1)
	for i := 1; i < n; i++ {
		buffers[i-1] = data[offsets[i]:offsets[i+1]]
	}
	return head, buffers, nil
}
