package pronto

import (
	"encoding/binary"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Pronto and Broadlink encoding constants.
const (
	// rawPrefix is the leading code of a raw (learned) Pronto code.
	rawPrefix = 0x0000

	// preambleLen is the number of codes before the burst pairs.
	preambleLen = 4

	// carrierUnit converts a Pronto frequency divisor to a carrier period in µs.
	carrierUnit = 0.241246

	// tickNumerator and tickDenominator scale µs to Broadlink ticks (~32.84µs).
	tickNumerator   = 269
	tickDenominator = 8192

	// wideMarker precedes a pulse encoded as two bytes.
	wideMarker = 0x00

	// irType and noRepeat open every IR packet.
	irType   = 0x26
	noRepeat = 0x00

	// transportHeaderLen is the command header the transport prepends before
	// encryption (02 00 00 00). Padding aligns packet+header to blockSize.
	transportHeaderLen = 4
	blockSize          = 16
)

// terminator closes an IR packet.
var terminator = []byte{0x0d, 0x05}

// ToBroadlink converts a Pronto hex string into a Broadlink IR packet.
//
// Parameters:
//   - prontoHex: whitespace-separated 4-digit hex groups, e.g. "0000 006D 0022 0002 ..."
//
// Returns:
//   - []byte: packet ready to hand to the transceiver (without the 4-byte transport header)
//   - error: ErrMalformedCode or ErrUnsupportedFormat
func ToBroadlink(prontoHex string) ([]byte, error) {
	codes, err := ParseCodes(prontoHex)
	if err != nil {
		return nil, err
	}

	pulses, err := ToPulses(codes)
	if err != nil {
		return nil, err
	}

	return EncodePulses(pulses)
}

// ParseCodes splits a Pronto hex string into its 16-bit codes.
func ParseCodes(prontoHex string) ([]uint16, error) {
	fields := strings.Fields(prontoHex)
	if len(fields) == 0 {
		return nil, fmt.Errorf("%w: empty input", ErrMalformedCode)
	}

	codes := make([]uint16, 0, len(fields))
	for i, f := range fields {
		if len(f) != 4 {
			return nil, fmt.Errorf("%w: group %d %q is not 4 hex digits", ErrMalformedCode, i, f)
		}
		v, err := strconv.ParseUint(f, 16, 16)
		if err != nil {
			return nil, fmt.Errorf("%w: group %d %q: %w", ErrMalformedCode, i, f, err)
		}
		codes = append(codes, uint16(v))
	}

	return codes, nil
}

// ToPulses converts raw Pronto codes into pulse durations in microseconds.
//
// Each duration is rounded half-to-even, which is what every previously
// stored code was produced with.
func ToPulses(codes []uint16) ([]int, error) {
	if len(codes) < preambleLen {
		return nil, fmt.Errorf("%w: preamble needs %d codes, got %d", ErrMalformedCode, preambleLen, len(codes))
	}
	if codes[0] != rawPrefix {
		return nil, fmt.Errorf("%w: leading code %04X, want 0000", ErrUnsupportedFormat, codes[0])
	}
	if codes[1] == 0 {
		return nil, fmt.Errorf("%w: zero frequency divisor", ErrMalformedCode)
	}

	pairs := int(codes[2]) + int(codes[3])
	if len(codes) != preambleLen+2*pairs {
		return nil, fmt.Errorf("%w: preamble length mismatch: %d burst pairs need %d codes, got %d",
			ErrMalformedCode, pairs, preambleLen+2*pairs, len(codes))
	}

	// Cycles per microsecond.
	freq := 1 / (float64(codes[1]) * carrierUnit)

	pulses := make([]int, 0, len(codes)-preambleLen)
	for _, c := range codes[preambleLen:] {
		pulses = append(pulses, int(math.RoundToEven(float64(c)/freq)))
	}

	return pulses, nil
}

// EncodePulses builds a Broadlink IR packet from pulse durations in µs.
//
// Tick conversion truncates. Ticks below 256 take one byte; larger values
// are written as a 0x00 marker followed by a big-endian uint16.
func EncodePulses(pulses []int) ([]byte, error) {
	buf := make([]byte, 0, len(pulses)*3)
	for i, p := range pulses {
		if p < 0 {
			return nil, fmt.Errorf("%w: pulse %d is negative", ErrMalformedCode, i)
		}
		ticks := p * tickNumerator / tickDenominator
		switch {
		case ticks < 256:
			buf = append(buf, byte(ticks))
		case ticks <= math.MaxUint16:
			buf = append(buf, wideMarker)
			buf = binary.BigEndian.AppendUint16(buf, uint16(ticks))
		default:
			return nil, fmt.Errorf("%w: pulse %d (%dµs) exceeds 16-bit tick range", ErrMalformedCode, i, p)
		}
	}
	if len(buf) > math.MaxUint16 {
		return nil, fmt.Errorf("%w: encoded pulses exceed %d bytes", ErrMalformedCode, math.MaxUint16)
	}

	packet := make([]byte, 0, len(buf)+2*blockSize)
	packet = append(packet, irType, noRepeat)
	packet = binary.LittleEndian.AppendUint16(packet, uint16(len(buf)))
	packet = append(packet, buf...)
	packet = append(packet, terminator...)

	if rem := (len(packet) + transportHeaderLen) % blockSize; rem != 0 {
		packet = append(packet, make([]byte, blockSize-rem)...)
	}

	return packet, nil
}
