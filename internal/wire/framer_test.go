package wire

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteReadFrame_RoundTrips(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteFrame(&buf, []byte(`{"hello":"world"}`)))

	payload, err := ReadFrame(&buf)
	require.NoError(t, err)
	assert.Equal(t, `{"hello":"world"}`, string(payload))
}

func TestWriteFrame_RejectsOversizedPayload(t *testing.T) {
	var buf bytes.Buffer
	big := make([]byte, MaxMessageSize+1)
	err := WriteFrame(&buf, big)
	require.ErrorIs(t, err, ErrMessageTooLarge)
}

func TestReadFrame_RejectsOversizedHeader(t *testing.T) {
	var buf bytes.Buffer
	header := []byte{0xFF, 0xFF, 0xFF, 0xFF}
	buf.Write(header)
	_, err := ReadFrame(&buf)
	require.ErrorIs(t, err, ErrMessageTooLarge)
}

func TestWriteReadRequest_RoundTrips(t *testing.T) {
	var buf bytes.Buffer
	req := NewRequest("planner.CreatePlan", map[string]interface{}{"task_description": "do the thing"})
	require.NoError(t, WriteRequest(&buf, req))

	got, err := ReadRequest(&buf)
	require.NoError(t, err)
	assert.Equal(t, req.Method, got.Method)
	assert.Equal(t, req.ID, got.ID)
	assert.Equal(t, "2.0", got.JSONRPC)
	assert.Equal(t, "do the thing", got.Params["task_description"])
}

func TestWriteReadResponse_RoundTripsSuccessAndError(t *testing.T) {
	var buf bytes.Buffer
	resp := SuccessResponse("abc", map[string]interface{}{"ok": true})
	require.NoError(t, WriteResponse(&buf, resp))

	got, err := ReadResponse(&buf)
	require.NoError(t, err)
	assert.Equal(t, "abc", got.ID)
	assert.Nil(t, got.Error)

	buf.Reset()
	errResp := ErrorResponse("def", CircuitOpen, "breaker open", nil)
	require.NoError(t, WriteResponse(&buf, errResp))

	got, err = ReadResponse(&buf)
	require.NoError(t, err)
	require.NotNil(t, got.Error)
	assert.Equal(t, CircuitOpen, got.Error.Code)
}

func TestReadFrame_PropagatesShortReadError(t *testing.T) {
	r := strings.NewReader("\x00\x00")
	_, err := ReadFrame(r)
	require.Error(t, err)
}
