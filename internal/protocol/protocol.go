// Package protocol encodes and decodes the controller wire format.
//
// Every command is a short ASCII opcode optionally followed by a fixed binary
// payload. Local indices, byte counts and brightness readings are 16-bit
// big-endian. Colours are three unsigned bytes in R, G, B order. Only the
// identity reply carries a terminator (a newline).
package protocol

import (
	"encoding/binary"
	"fmt"
	"strings"

	"github.com/banshee-data/display1593/internal/led"
)

// Opcodes.
const (
	OpIdentify   = "ID"
	OpSetOne     = "S"
	OpBatch      = "N"
	OpFrame      = "A"
	OpGet        = "G"
	OpBrightness = "B"
	OpClear      = "CLS"
)

// Reply sizes and limits.
const (
	ColorReplyLen      = 3
	BrightnessReplyLen = 2
	GroupLen           = 5 // 2-byte index + RGB
	MaxLocal           = 0xFFFF
	MaxBrightness      = 1023

	// MaxBatchBytes is the largest N payload whose byte count fits the
	// 16-bit length field, rounded down to whole groups.
	MaxBatchBytes = (0xFFFF / GroupLen) * GroupLen

	// IdentityPrefix starts every valid identity reply.
	IdentityPrefix = "Teensy"
)

// Update is one (local index, colour) pair of a batch command.
type Update struct {
	Local int
	Color led.Color
}

func checkLocal(local int) error {
	if local < 0 || local > MaxLocal {
		return fmt.Errorf("%w: local index %d does not fit 16 bits", led.ErrInvalidLed, local)
	}
	return nil
}

// IdentifyRequest returns the identity request command. The firmware reads
// it as a line, so it carries a trailing newline.
func IdentifyRequest() []byte {
	return []byte(OpIdentify + "\n")
}

// SetOne returns the command setting one LED.
func SetOne(local int, c led.Color) ([]byte, error) {
	if err := checkLocal(local); err != nil {
		return nil, err
	}
	b := make([]byte, 0, 1+GroupLen)
	b = append(b, OpSetOne...)
	b = binary.BigEndian.AppendUint16(b, uint16(local))
	return append(b, c.R, c.G, c.B), nil
}

// Batch returns one or more N commands carrying updates in order. A batch
// whose payload would overflow the 16-bit byte count is split rather than
// truncated. An empty batch yields no commands.
func Batch(updates []Update) ([][]byte, error) {
	for _, u := range updates {
		if err := checkLocal(u.Local); err != nil {
			return nil, err
		}
	}
	perCmd := MaxBatchBytes / GroupLen
	var cmds [][]byte
	for start := 0; start < len(updates); start += perCmd {
		end := min(start+perCmd, len(updates))
		chunk := updates[start:end]
		n := len(chunk) * GroupLen
		b := make([]byte, 0, 3+n)
		b = append(b, OpBatch...)
		b = binary.BigEndian.AppendUint16(b, uint16(n))
		for _, u := range chunk {
			b = binary.BigEndian.AppendUint16(b, uint16(u.Local))
			b = append(b, u.Color.R, u.Color.G, u.Color.B)
		}
		cmds = append(cmds, b)
	}
	return cmds, nil
}

// Frame returns the full-frame command for colours given in local index
// order.
func Frame(colors []led.Color) []byte {
	b := make([]byte, 0, 1+3*len(colors))
	b = append(b, OpFrame...)
	for _, c := range colors {
		b = append(b, c.R, c.G, c.B)
	}
	return b
}

// Get returns the colour query for one LED.
func Get(local int) ([]byte, error) {
	if err := checkLocal(local); err != nil {
		return nil, err
	}
	return binary.BigEndian.AppendUint16([]byte(OpGet), uint16(local)), nil
}

// Brightness returns the ambient light query.
func Brightness() []byte {
	return []byte(OpBrightness)
}

// Clear returns the clear-to-black command.
func Clear() []byte {
	return []byte(OpClear)
}

// ParseIdentity trims the line terminator from an identity reply and checks
// its prefix.
func ParseIdentity(line string) (string, error) {
	id := strings.TrimRight(line, "\r\n")
	if !strings.HasPrefix(id, IdentityPrefix) {
		return "", fmt.Errorf("malformed identity reply %q", line)
	}
	return id, nil
}

// DecodeColor decodes a colour reply.
func DecodeColor(b [ColorReplyLen]byte) led.Color {
	return led.Color{R: b[0], G: b[1], B: b[2]}
}

// DecodeBrightness decodes a brightness reply.
func DecodeBrightness(b [BrightnessReplyLen]byte) uint16 {
	return binary.BigEndian.Uint16(b[:])
}
