package protocol

import (
	"encoding"
	"encoding/binary"
	"errors"
	"fmt"
)

const (
	// HeaderSize is the fixed length of a frame header in bytes.
	HeaderSize = 12
	// MaxPayloadSize is the largest payload a frame may carry, before or after compression.
	MaxPayloadSize = 65535
	// CompressionThreshold is the payload size above which payloads are compressed.
	CompressionThreshold = 512
)

// Flag bits carried in the frame header.
const (
	FlagCompressed uint8 = 0x01
	// FlagEncrypted is reserved for transport encryption and is not accepted yet.
	FlagEncrypted uint8 = 0x02

	knownFlags = FlagCompressed | FlagEncrypted
)

var (
	// ErrIncomplete signals that more bytes are needed before a frame can be decoded.
	// It is not a failure.
	ErrIncomplete = errors.New("protocol: incomplete frame")
	// ErrChecksumMismatch marks a frame whose payload does not match its checksum.
	ErrChecksumMismatch = errors.New("protocol: checksum mismatch")
	// ErrPayloadTooLarge marks a frame whose declared or decoded length exceeds MaxPayloadSize.
	ErrPayloadTooLarge = errors.New("protocol: payload too large")
	// ErrUnsupportedFlags marks a frame with reserved or unknown flag bits set.
	ErrUnsupportedFlags = errors.New("protocol: unsupported flags")
	// ErrCorruptPayload marks a compressed payload that could not be inflated.
	ErrCorruptPayload = errors.New("protocol: corrupt compressed payload")
)

// ChecksumError reports the checksum carried by a frame and the one computed
// from its payload.
type ChecksumError struct {
	Type     PacketType
	Sequence uint32
	Want     uint8
	Got      uint8
}

func (e *ChecksumError) Error() string {
	return fmt.Sprintf("protocol: checksum mismatch on %s seq %d: header %#02x, payload %#02x",
		e.Type, e.Sequence, e.Want, e.Got)
}

// Unwrap lets errors.Is match ErrChecksumMismatch.
func (e *ChecksumError) Unwrap() error { return ErrChecksumMismatch }

// Fatal reports whether err must terminate the connection it was read from.
// Only ErrIncomplete is recoverable.
func Fatal(err error) bool {
	return err != nil && !errors.Is(err, ErrIncomplete)
}

// Frame is one decoded protocol message. Payload is always uncompressed.
type Frame struct {
	Type     PacketType
	Sequence uint32
	Flags    uint8
	Payload  []byte
}

// Checksum returns the low byte of the sum of b.
func Checksum(b []byte) uint8 {
	var sum uint8
	for _, c := range b {
		sum += c
	}
	return sum
}

// Encode builds a wire frame for payload.
//
// Precondition: len(payload) <= MaxPayloadSize.
// Postcondition: Decode of the result yields t, payload, and seq.
func Encode(t PacketType, payload []byte, seq uint32) ([]byte, error) {
	if len(payload) > MaxPayloadSize {
		return nil, fmt.Errorf("encoding %s: %w (%d bytes)", t, ErrPayloadTooLarge, len(payload))
	}

	body := payload
	var flags uint8
	if len(payload) > CompressionThreshold {
		compressed, err := compress(payload)
		if err != nil {
			return nil, fmt.Errorf("encoding %s: %w", t, err)
		}
		if len(compressed) > MaxPayloadSize {
			return nil, fmt.Errorf("encoding %s: %w (%d bytes compressed)", t, ErrPayloadTooLarge, len(compressed))
		}
		body = compressed
		flags |= FlagCompressed
	}

	out := make([]byte, HeaderSize+len(body))
	binary.BigEndian.PutUint16(out[0:2], uint16(t))
	binary.BigEndian.PutUint32(out[2:6], uint32(len(body)))
	binary.BigEndian.PutUint32(out[6:10], seq)
	out[10] = flags
	out[11] = Checksum(payload)
	copy(out[HeaderSize:], body)
	return out, nil
}

// Decode parses the first frame in buf. It returns the frame and the number
// of bytes it occupied. If buf holds less than a full frame, Decode returns
// ErrIncomplete and consumes nothing; every other error is fatal.
func Decode(buf []byte) (Frame, int, error) {
	if len(buf) < HeaderSize {
		return Frame{}, 0, ErrIncomplete
	}
	t := PacketType(binary.BigEndian.Uint16(buf[0:2]))
	length := binary.BigEndian.Uint32(buf[2:6])
	seq := binary.BigEndian.Uint32(buf[6:10])
	flags := buf[10]
	sum := buf[11]

	if length > MaxPayloadSize {
		return Frame{}, 0, fmt.Errorf("decoding %s: %w (declared %d bytes)", t, ErrPayloadTooLarge, length)
	}
	if flags&^knownFlags != 0 || flags&FlagEncrypted != 0 {
		return Frame{}, 0, fmt.Errorf("decoding %s: %w (%#02x)", t, ErrUnsupportedFlags, flags)
	}
	total := HeaderSize + int(length)
	if len(buf) < total {
		return Frame{}, 0, ErrIncomplete
	}

	payload := make([]byte, length)
	copy(payload, buf[HeaderSize:total])
	if flags&FlagCompressed != 0 {
		raw, err := decompress(payload, MaxPayloadSize)
		if err != nil {
			return Frame{}, 0, fmt.Errorf("decoding %s: %w", t, err)
		}
		payload = raw
	}

	if got := Checksum(payload); got != sum {
		return Frame{}, 0, &ChecksumError{Type: t, Sequence: seq, Want: sum, Got: got}
	}

	return Frame{Type: t, Sequence: seq, Flags: flags, Payload: payload}, total, nil
}

// EncodeMessage marshals m and frames it as type t with sequence seq.
func EncodeMessage(t PacketType, m encoding.BinaryMarshaler, seq uint32) ([]byte, error) {
	payload, err := m.MarshalBinary()
	if err != nil {
		return nil, fmt.Errorf("marshalling %s: %w", t, err)
	}
	return Encode(t, payload, seq)
}
