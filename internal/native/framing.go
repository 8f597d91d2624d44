package native

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/goccy/go-json"
)

// MaxMessageSize is the largest frame accepted in either direction.
const MaxMessageSize = 1 << 20

var (
	// ErrMessageTooLarge reports a frame above MaxMessageSize.
	ErrMessageTooLarge = errors.New("native: message too large")
	// ErrNoResponse reports a companion that exited without replying.
	ErrNoResponse = errors.New("native: no response")
)

// WriteMessage encodes v as JSON and writes it as one frame: a 4-byte
// length in native byte order followed by the payload.
func WriteMessage(w io.Writer, v any) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("native: encode: %w", err)
	}
	if len(payload) > MaxMessageSize {
		return fmt.Errorf("%w: %d bytes", ErrMessageTooLarge, len(payload))
	}

	var header [4]byte
	binary.NativeEndian.PutUint32(header[:], uint32(len(payload)))
	if _, err := w.Write(header[:]); err != nil {
		return fmt.Errorf("native: write: %w", err)
	}
	if _, err := w.Write(payload); err != nil {
		return fmt.Errorf("native: write: %w", err)
	}
	return nil
}

// ReadMessage reads one frame and decodes its JSON payload into v. A stream
// that ends before the header yields ErrNoResponse.
func ReadMessage(r io.Reader, v any) error {
	var header [4]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		if errors.Is(err, io.EOF) {
			return ErrNoResponse
		}
		return fmt.Errorf("native: read header: %w", err)
	}

	size := binary.NativeEndian.Uint32(header[:])
	if size > MaxMessageSize {
		return fmt.Errorf("%w: %d bytes", ErrMessageTooLarge, size)
	}

	payload := make([]byte, size)
	if _, err := io.ReadFull(r, payload); err != nil {
		return fmt.Errorf("native: read payload: %w", err)
	}
	if err := json.Unmarshal(payload, v); err != nil {
		return fmt.Errorf("native: decode: %w", err)
	}
	return nil
}
