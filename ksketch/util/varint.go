// Copyright © 2023-2024 Wei Shen <shenwei356@gmail.com>
//
// Permission is hereby granted, free of charge, to any person obtaining a copy
// of this software and associated documentation files (the "Software"), to deal
// in the Software without restriction, including without limitation the rights
// to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
// copies of the Software, and to permit persons to whom the Software is
// furnished to do so, subject to the following conditions:
//
// The above copyright notice and this permission notice shall be included in
// all copies or substantial portions of the Software.
//
// THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
// IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
// FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
// AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
// LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
// OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN
// THE SOFTWARE.

package util

import "math/bits"

// CtrlByte2ByteLengths maps a control byte to the byte lengths of the two
// encoded values. Only the lower 6 bits of a control byte are used.
var CtrlByte2ByteLengths [64][2]uint8

func init() {
	for ctrl := 0; ctrl < 64; ctrl++ {
		CtrlByte2ByteLengths[ctrl] = [2]uint8{uint8(ctrl>>3) + 1, uint8(ctrl&7) + 1}
	}
}

// ByteLengthUint64 returns the minimum number of bytes to store an integer.
func ByteLengthUint64(v uint64) int {
	if v == 0 {
		return 1
	}
	return (bits.Len64(v) + 7) >> 3
}

// PutUint64s encodes two uint64s into 2-16 bytes in big-endian,
// and returns the control byte and the encoded byte length.
// The buffer needs at least 16 bytes.
func PutUint64s(buf []byte, v1, v2 uint64) (ctrl byte, n int) {
	n1 := ByteLengthUint64(v1)
	n2 := ByteLengthUint64(v2)
	ctrl = byte((n1-1)<<3 | (n2 - 1))

	for i := n1 - 1; i >= 0; i-- {
		buf[n] = byte(v1 >> (i << 3))
		n++
	}
	for i := n2 - 1; i >= 0; i-- {
		buf[n] = byte(v2 >> (i << 3))
		n++
	}
	return
}

// Uint64s decodes two uint64s encoded by PutUint64s.
// n == 0 means the buffer is too short.
func Uint64s(ctrl byte, buf []byte) (v1, v2 uint64, n int) {
	lens := CtrlByte2ByteLengths[ctrl&63]
	n1, n2 := int(lens[0]), int(lens[1])
	if len(buf) < n1+n2 {
		return 0, 0, 0
	}

	for _, b := range buf[:n1] {
		v1 = v1<<8 | uint64(b)
	}
	for _, b := range buf[n1 : n1+n2] {
		v2 = v2<<8 | uint64(b)
	}
	return v1, v2, n1 + n2
}
