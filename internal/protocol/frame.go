package protocol

import (
	"encoding/binary"
	"fmt"
	"io"
)

// frameHeaderLen is the 4-byte big-endian length prefix covering the kind
// byte plus payload.
const frameHeaderLen = 4

// ReadFrame reads one length-delimited frame from r and returns its
// payload (kind byte + encoded fields, ready for Decode). It enforces
// MaxMessageSize before allocating a buffer for the payload.
func ReadFrame(r io.Reader) ([]byte, error) {
	var header [frameHeaderLen]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		return nil, err
	}
	n := binary.BigEndian.Uint32(header[:])
	if n > MaxMessageSize {
		return nil, ErrTooLarge
	}
	if n == 0 {
		return nil, ErrTruncated
	}
	payload := make([]byte, n)
	if _, err := io.ReadFull(r, payload); err != nil {
		return nil, err
	}
	return payload, nil
}

// WriteFrame writes payload to w prefixed with its length. payload must
// already be at or under MaxMessageSize.
func WriteFrame(w io.Writer, payload []byte) error {
	if len(payload) > MaxMessageSize {
		return ErrTooLarge
	}
	var header [frameHeaderLen]byte
	binary.BigEndian.PutUint32(header[:], uint32(len(payload)))
	if _, err := w.Write(header[:]); err != nil {
		return fmt.Errorf("protocol: write frame header: %w", err)
	}
	if _, err := w.Write(payload); err != nil {
		return fmt.Errorf("protocol: write frame payload: %w", err)
	}
	return nil
}
