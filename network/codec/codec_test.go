package codec

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kubovy/serial-communication/network/message"
)

func TestChecksum(t *testing.T) {
	assert.Equal(t, byte(0), Checksum(nil))
	assert.Equal(t, byte(0), Checksum([]byte{}))
	assert.Equal(t, byte(6), Checksum([]byte{1, 2, 3}))
	assert.Equal(t, byte(253), Checksum([]byte{255, 255, 255}))
}

func TestEncode(t *testing.T) {
	frame := Encode(0x10, []byte{0x05})
	assert.Equal(t, []byte{0x15, 0x10, 0x05}, frame)

	ack := Encode(message.KindAck.Tag(), []byte{0x15})
	assert.Equal(t, []byte{0x15, 0x00, 0x15}, ack)

	assert.Equal(t, []byte{0x01, 0x01}, Encode(0x01, nil))
	assert.Equal(t, frame, Seal([]byte{0x10, 0x05}))
}

func TestParseEncoded(t *testing.T) {
	payloads := [][]byte{
		nil,
		{0x00},
		{0x05},
		{0xFF, 0xFF, 0xFF, 0xFF},
		[]byte("living room"),
	}
	for _, p := range payloads {
		f, err := Parse(Encode(0x12, p))
		require.NoError(t, err)
		assert.True(t, f.Valid)
		assert.Equal(t, byte(0x12), f.Tag)
		assert.Equal(t, message.KindLCD, f.Kind())
		assert.Equal(t, len(p), len(f.Payload))
		if len(p) > 0 {
			assert.Equal(t, p, f.Payload)
		}
	}
}

func TestParseEmpty(t *testing.T) {
	_, err := Parse(nil)
	assert.ErrorIs(t, err, ErrEmptyFrame)
	_, err = Parse([]byte{})
	assert.ErrorIs(t, err, ErrEmptyFrame)
}

func TestParseDetectsSingleByteCorruption(t *testing.T) {
	frame := Encode(0x10, []byte{0x05, 0x81, 0x20, 0x7F})
	for i := range frame {
		for _, delta := range []byte{0x01, 0x10, 0x80, 0xFF} {
			corrupted := append([]byte(nil), frame...)
			corrupted[i] += delta
			f, err := Parse(corrupted)
			require.NoError(t, err)
			assert.False(t, f.Valid, "byte %d changed by %#x", i, delta)
		}
	}
}

func TestParseUnknownTagStillValidated(t *testing.T) {
	f, err := Parse(Encode(0x42, []byte{1}))
	require.NoError(t, err)
	assert.True(t, f.Valid)
	assert.Equal(t, message.KindUnknown, f.Kind())
	assert.Equal(t, []byte{0x42, 1}, f.Message())
	assert.Equal(t, 3, f.Len())
}

func TestParseSingleByte(t *testing.T) {
	f, err := Parse([]byte{0x00})
	require.NoError(t, err)
	assert.True(t, f.Valid)
	assert.Empty(t, f.Payload)

	f, err = Parse([]byte{0x07})
	require.NoError(t, err)
	assert.False(t, f.Valid)
}
