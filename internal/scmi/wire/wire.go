// Package wire encodes and decodes clock protocol payloads.
//
// Payloads are sequences of 32-bit little-endian words. 64-bit rate
// quantities travel as two words, low word first; that pair encoding is
// shared by every message that carries a rate.
package wire

import (
	"encoding/binary"
	"errors"
	"fmt"
)

const (
	// WordLen is the size of one payload word.
	WordLen = 4

	// RateEntryLen is the size of one (low, high) rate pair.
	RateEntryLen = 8

	// DescribeRatesHeaderLen covers the status and num_rates_flags words
	// that precede the rate entries of a describe-rates response.
	DescribeRatesHeaderLen = 8

	// ClockNameLen is the fixed size of the name field in a clock
	// attributes response. Names are truncated and always null-terminated.
	ClockNameLen = 16
)

// Rate-set request flag bits. Bits outside RateSetFlagsMask are rejected.
const (
	RateSetFlagAsync     uint32 = 1 << 0
	RateSetFlagRoundUp   uint32 = 1 << 1
	RateSetFlagRoundAuto uint32 = 1 << 2
	RateSetFlagsMask            = RateSetFlagAsync | RateSetFlagRoundUp | RateSetFlagRoundAuto
)

// Config-set attribute bits. Bits outside ConfigSetAttributesMask are
// rejected.
const (
	ConfigSetFlagEnable     uint32 = 1 << 0
	ConfigSetAttributesMask        = ConfigSetFlagEnable
	AttributesFlagEnabled   uint32 = 1 << 0
)

// Describe-rates num_rates_flags packing: returned count in bits [11:0],
// format in bit 12, remaining count in bits [31:16].
const (
	NumRatesMask       uint32 = 0xFFF
	RateFormatList     uint32 = 0
	RateFormatRange    uint32 = 1
	rateFormatShift           = 12
	remainingRateShift        = 16
)

var ErrPayloadSize = errors.New("wire: payload size mismatch")

// SplitRate breaks a 64-bit rate into its wire words, low word first.
func SplitRate(rate uint64) (low, high uint32) {
	return uint32(rate), uint32(rate >> 32)
}

// JoinRate reassembles a 64-bit rate from its wire words.
func JoinRate(low, high uint32) uint64 {
	return uint64(low) | uint64(high)<<32
}

// PackNumRates builds the num_rates_flags word of a describe-rates
// response.
func PackNumRates(count uint32, format uint32, remaining uint32) uint32 {
	return (count & NumRatesMask) |
		(format << rateFormatShift) |
		(remaining << remainingRateShift)
}

// UnpackNumRates splits a num_rates_flags word into its fields.
func UnpackNumRates(v uint32) (count uint32, format uint32, remaining uint32) {
	count = v & NumRatesMask
	format = (v >> rateFormatShift) & 0x1
	remaining = v >> remainingRateShift
	return count, format, remaining
}

// PackProtocolAttributes builds the protocol attributes word: the maximum
// number of pending transactions in bits [23:16] and the agent's clock
// count in bits [15:0].
func PackProtocolAttributes(maxPending uint32, clockCount uint32) uint32 {
	return (maxPending&0xFF)<<16 | clockCount&0xFFFF
}

// PackClockAttributes builds a clock attributes word from the running
// state.
func PackClockAttributes(enabled bool) uint32 {
	if enabled {
		return AttributesFlagEnabled
	}
	return 0
}

// EncodeName lays a clock name into its fixed wire field, truncating to
// ClockNameLen-1 bytes so the field is always null-terminated.
func EncodeName(name string) [ClockNameLen]byte {
	var out [ClockNameLen]byte
	copy(out[:ClockNameLen-1], name)
	return out
}

// DecodeName reads a fixed name field back to a string, stopping at the
// first null byte.
func DecodeName(b [ClockNameLen]byte) string {
	for i, c := range b {
		if c == 0 {
			return string(b[:i])
		}
	}
	return string(b[:])
}

// Word reads the i-th payload word. The caller is responsible for the
// payload being long enough.
func Word(b []byte, i int) uint32 {
	return word(b, i*WordLen)
}

func putWord(b []byte, off int, v uint32) {
	binary.LittleEndian.PutUint32(b[off:off+WordLen], v)
}

func word(b []byte, off int) uint32 {
	return binary.LittleEndian.Uint32(b[off : off+WordLen])
}

func checkLen(b []byte, want int) error {
	if len(b) != want {
		return fmt.Errorf("%w: got %d want %d", ErrPayloadSize, len(b), want)
	}
	return nil
}
