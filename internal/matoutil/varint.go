package matoutil

import "fmt"

// PackVarint prepends a variable-length header encoding len(data) using
// the same 7-bits-per-byte, high-bit-continuation scheme as the
// original's mato_pack_packet (_examples/original_source/mato/mato-utils.c),
// corrected here: the original's three-or-more-byte branch duplicated
// the second length byte instead of shifting by 14, which would corrupt
// any size above 16383. This pack/unpack pair is not on the wire
// protocol's hot path — §6 mandates a fixed 4-byte length prefix there —
// it exists for callers that want a compact header for large buffers
// outside the framework's own wire format (e.g. sidecar files).
func PackVarint(data []byte) []byte {
	n := len(data)
	switch {
	case n <= 127:
		out := make([]byte, 1+n)
		out[0] = byte(n)
		copy(out[1:], data)
		return out
	case n <= 16383:
		out := make([]byte, 2+n)
		out[0] = byte(n&0x7f) | 0x80
		out[1] = byte(n >> 7)
		copy(out[2:], data)
		return out
	default:
		out := make([]byte, 3+n)
		out[0] = byte(n&0x7f) | 0x80
		out[1] = byte((n>>7)&0x7f) | 0x80
		out[2] = byte(n >> 14)
		copy(out[3:], data)
		return out
	}
}

// UnpackVarint reverses PackVarint, returning the payload and the
// number of header bytes consumed.
func UnpackVarint(packet []byte) (data []byte, headerLen int, err error) {
	if len(packet) == 0 {
		return nil, 0, fmt.Errorf("mato: empty packet")
	}
	if packet[0]&0x80 == 0 {
		n := int(packet[0])
		if len(packet) < 1+n {
			return nil, 0, fmt.Errorf("mato: truncated packet: want %d bytes, have %d", n, len(packet)-1)
		}
		return packet[1 : 1+n], 1, nil
	}
	if len(packet) < 2 {
		return nil, 0, fmt.Errorf("mato: truncated varint header")
	}
	if packet[1]&0x80 == 0 {
		n := int(packet[0]&0x7f) | int(packet[1])<<7
		if len(packet) < 2+n {
			return nil, 0, fmt.Errorf("mato: truncated packet: want %d bytes, have %d", n, len(packet)-2)
		}
		return packet[2 : 2+n], 2, nil
	}
	if len(packet) < 3 {
		return nil, 0, fmt.Errorf("mato: truncated varint header")
	}
	n := int(packet[0]&0x7f) | int(packet[1]&0x7f)<<7 | int(packet[2])<<14
	if len(packet) < 3+n {
		return nil, 0, fmt.Errorf("mato: truncated packet: want %d bytes, have %d", n, len(packet)-3)
	}
	return packet[3 : 3+n], 3, nil
}
