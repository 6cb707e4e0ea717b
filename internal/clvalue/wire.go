package clvalue

import (
	"encoding/binary"
	"fmt"
	"math"
)

// Canonical tags shared by Option and Result.
const (
	OptionNoneTag byte = 0
	OptionSomeTag byte = 1
	ResultErrTag  byte = 0
	ResultOkTag   byte = 1
)

// AppendU32 appends v as four little-endian bytes.
func AppendU32(dst []byte, v uint32) []byte {
	return binary.LittleEndian.AppendUint32(dst, v)
}

// AppendString appends s with its canonical u32 length prefix.
func AppendString(dst []byte, s string) ([]byte, error) {
	if uint64(len(s)) > math.MaxUint32 {
		return dst, fmt.Errorf("string length %d exceeds u32", len(s))
	}
	dst = AppendU32(dst, uint32(len(s)))
	return append(dst, s...), nil
}

// AppendBytes appends b with its canonical u32 length prefix.
func AppendBytes(dst []byte, b []byte) ([]byte, error) {
	if uint64(len(b)) > math.MaxUint32 {
		return dst, fmt.Errorf("byte length %d exceeds u32", len(b))
	}
	dst = AppendU32(dst, uint32(len(b)))
	return append(dst, b...), nil
}

func take(b []byte, n int) ([]byte, []byte, bool) {
	if n < 0 || len(b) < n {
		return nil, b, false
	}
	return b[:n], b[n:], true
}

func readU8(b []byte) (byte, []byte, bool) {
	if len(b) < 1 {
		return 0, b, false
	}
	return b[0], b[1:], true
}

func readU32(b []byte) (uint32, []byte, bool) {
	if len(b) < 4 {
		return 0, b, false
	}
	return binary.LittleEndian.Uint32(b), b[4:], true
}

// ReadString decodes a canonical length-prefixed string without building a Value.
func ReadString(b []byte) (string, []byte, error) {
	v, rest, err := defaultDecoder.Decode(StringType, b)
	if err != nil {
		return "", b, err
	}
	return v.leaf.(string), rest, nil
}

// ReadBytes decodes a canonical length-prefixed byte sequence.
func ReadBytes(b []byte) ([]byte, []byte, error) {
	n, rest, ok := readU32(b)
	if !ok {
		return nil, b, fmt.Errorf("bytes length: need 4 bytes, have %d", len(b))
	}
	data, rest, ok := take(rest, int(n))
	if !ok {
		return nil, b, fmt.Errorf("bytes body: need %d bytes, have %d", n, len(rest))
	}
	return data, rest, nil
}

// ReadU32 decodes a little-endian u32.
func ReadU32(b []byte) (uint32, []byte, error) {
	n, rest, ok := readU32(b)
	if !ok {
		return 0, b, fmt.Errorf("u32: need 4 bytes, have %d", len(b))
	}
	return n, rest, nil
}
