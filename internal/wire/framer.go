package wire

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/nexusfab/fabric/pkg/pool"
)

const (
	HeaderSize     = 4
	MaxMessageSize = 10 * 1024 * 1024
)

var ErrMessageTooLarge = errors.New("wire: message exceeds max message size")

// bufPool reuses the header scratch buffer across frame reads, avoiding an
// allocation per message on the hot path.
var bufPool = pool.NewLitePool(func() *[HeaderSize]byte { return new([HeaderSize]byte) })

// WriteFrame writes a 4-byte big-endian length prefix followed by payload.
func WriteFrame(w io.Writer, payload []byte) error {
	if len(payload) > MaxMessageSize {
		return fmt.Errorf("%w: %d bytes", ErrMessageTooLarge, len(payload))
	}

	header := bufPool.Get()
	defer bufPool.Put(header)

	binary.BigEndian.PutUint32(header[:], uint32(len(payload)))
	if _, err := w.Write(header[:]); err != nil {
		return err
	}
	_, err := w.Write(payload)
	return err
}

// ReadFrame reads one length-prefixed message from r.
func ReadFrame(r io.Reader) ([]byte, error) {
	header := bufPool.Get()
	defer bufPool.Put(header)

	if _, err := io.ReadFull(r, header[:]); err != nil {
		return nil, err
	}
	length := binary.BigEndian.Uint32(header[:])
	if length > MaxMessageSize {
		return nil, fmt.Errorf("%w: %d bytes", ErrMessageTooLarge, length)
	}

	payload := make([]byte, length)
	if _, err := io.ReadFull(r, payload); err != nil {
		return nil, err
	}
	return payload, nil
}

// WriteRequest frames and writes a Request.
func WriteRequest(w io.Writer, req *Request) error {
	data, err := req.MarshalBytes()
	if err != nil {
		return err
	}
	return WriteFrame(w, data)
}

// ReadRequest reads and decodes one framed Request.
func ReadRequest(r io.Reader) (*Request, error) {
	data, err := ReadFrame(r)
	if err != nil {
		return nil, err
	}
	return UnmarshalRequest(data)
}

// WriteResponse frames and writes a Response.
func WriteResponse(w io.Writer, resp *Response) error {
	data, err := resp.MarshalBytes()
	if err != nil {
		return err
	}
	return WriteFrame(w, data)
}

// ReadResponse reads and decodes one framed Response.
func ReadResponse(r io.Reader) (*Response, error) {
	data, err := ReadFrame(r)
	if err != nil {
		return nil, err
	}
	return UnmarshalResponse(data)
}
