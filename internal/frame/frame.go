// Package frame encodes the length-prefixed frames written to the transport
// and the binary snapshot payload they carry.
//
// Frame layout, little-endian:
//
//	[u32 total_length][u32 terminated][payload]
//
// total_length counts its own four bytes, the flag and the payload.
package frame

import (
	"encoding/binary"
	"fmt"
)

// HeaderSize is the size of the length and flag fields.
const HeaderSize = 8

var order = binary.LittleEndian

// Encode wraps payload into a frame.
func Encode(payload []byte, terminated bool) []byte {
	buf := make([]byte, HeaderSize, HeaderSize+len(payload))
	order.PutUint32(buf[0:4], uint32(HeaderSize+len(payload)))
	var flag uint32
	if terminated {
		flag = 1
	}
	order.PutUint32(buf[4:8], flag)
	return append(buf, payload...)
}

// Decode validates a frame and returns its payload and terminated flag. Bytes
// after total_length are ignored, so a whole transport region may be passed.
func Decode(b []byte) ([]byte, bool, error) {
	if len(b) < HeaderSize {
		return nil, false, fmt.Errorf("frame: short header: %d bytes", len(b))
	}
	total := order.Uint32(b[0:4])
	if total < HeaderSize || int(total) > len(b) {
		return nil, false, fmt.Errorf("frame: bad total length %d for %d bytes", total, len(b))
	}
	terminated := order.Uint32(b[4:8]) != 0
	return b[HeaderSize:total], terminated, nil
}
