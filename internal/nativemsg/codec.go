package nativemsg

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"io"
)

// MaxMessageSize caps a single frame. Chrome limits host-bound messages to
// 1 MiB, and nothing this host exchanges comes anywhere near that.
const MaxMessageSize = 1 << 20

// ErrTooLarge reports a frame exceeding MaxMessageSize in either direction.
var ErrTooLarge = errors.New("native message exceeds size limit")

// Read decodes one length-prefixed JSON message from r into v. The length
// prefix is a 4-byte unsigned integer in host byte order, per the Chrome
// native messaging protocol. io.EOF is returned unwrapped when the stream
// closes cleanly between messages.
func Read(r io.Reader, v any) error {
	var header [4]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		if errors.Is(err, io.EOF) {
			return io.EOF
		}
		return fmt.Errorf("read message header: %w", err)
	}
	length := binary.NativeEndian.Uint32(header[:])
	if length > MaxMessageSize {
		return fmt.Errorf("%w: %d bytes", ErrTooLarge, length)
	}
	payload := make([]byte, length)
	if _, err := io.ReadFull(r, payload); err != nil {
		return fmt.Errorf("read message body: %w", err)
	}
	if err := json.Unmarshal(payload, v); err != nil {
		return fmt.Errorf("decode message: %w", err)
	}
	return nil
}

// Write encodes v as JSON and writes it to w with the length prefix.
func Write(w io.Writer, v any) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode message: %w", err)
	}
	if len(payload) > MaxMessageSize {
		return fmt.Errorf("%w: %d bytes", ErrTooLarge, len(payload))
	}
	var header [4]byte
	binary.NativeEndian.PutUint32(header[:], uint32(len(payload)))
	if _, err := w.Write(header[:]); err != nil {
		return fmt.Errorf("write message header: %w", err)
	}
	if _, err := w.Write(payload); err != nil {
		return fmt.Errorf("write message body: %w", err)
	}
	return nil
}
