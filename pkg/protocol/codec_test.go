package protocol_test

import (
	"bytes"
	"encoding/binary"
	"io"
	"testing"

	"github.com/aretw0/coherence/pkg/protocol"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCodec_RoundTripKinds(t *testing.T) {
	page := bytes.Repeat([]byte{0xAB}, 4096)

	cases := []*protocol.Message{
		protocol.RequestPage(1, 0x10000, 4096),
		protocol.PageReply(1, 0x10000, page),
		protocol.EmptyReply(2, 0x11000, 4096),
		protocol.Invalidate(3, 0x12000),
		protocol.InvalidateAck(3, 0x12000),
	}

	for _, want := range cases {
		t.Run(want.Kind.String(), func(t *testing.T) {
			b, err := protocol.Marshal(want)
			require.NoError(t, err)
			assert.Len(t, b, protocol.HeaderSize+len(want.Data))

			got, err := protocol.Unmarshal(b)
			require.NoError(t, err)
			assert.Equal(t, want.Kind, got.Kind)
			assert.Equal(t, want.ID, got.ID)
			assert.Equal(t, want.Addr, got.Addr)
			assert.Equal(t, want.Size, got.Size)
			assert.Equal(t, want.NoData(), got.NoData())
			assert.Equal(t, len(want.Data), len(got.Data))
			assert.True(t, bytes.Equal(want.Data, got.Data))
		})
	}
}

func TestCodec_EmptyReplyIsZeroFilled(t *testing.T) {
	msg := protocol.EmptyReply(9, 0x2000, 4096)
	assert.True(t, msg.NoData())
	assert.Equal(t, make([]byte, 4096), msg.Data)
}

func TestCodec_StreamOfFrames(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, protocol.Encode(&buf, protocol.RequestPage(1, 0x1000, 4096)))
	require.NoError(t, protocol.Encode(&buf, protocol.PageReply(1, 0x1000, []byte("abcd"))))
	require.NoError(t, protocol.Encode(&buf, protocol.InvalidateAck(2, 0x1000)))

	first, err := protocol.Decode(&buf)
	require.NoError(t, err)
	assert.Equal(t, protocol.KindRequestPage, first.Kind)

	second, err := protocol.Decode(&buf)
	require.NoError(t, err)
	assert.Equal(t, []byte("abcd"), second.Data)

	third, err := protocol.Decode(&buf)
	require.NoError(t, err)
	assert.Equal(t, protocol.KindInvalidateAck, third.Kind)

	_, err = protocol.Decode(&buf)
	assert.ErrorIs(t, err, io.EOF)
}

func TestCodec_EncodeRejects(t *testing.T) {
	t.Run("unknown kind", func(t *testing.T) {
		err := protocol.Encode(io.Discard, &protocol.Message{Kind: 42})
		assert.ErrorIs(t, err, protocol.ErrUnknownKind)
	})

	t.Run("payload on invalidate", func(t *testing.T) {
		msg := protocol.Invalidate(1, 0x1000)
		msg.Data = []byte{1}
		assert.ErrorIs(t, protocol.Encode(io.Discard, msg), protocol.ErrMalformed)
	})

	t.Run("size mismatch", func(t *testing.T) {
		msg := protocol.PageReply(1, 0x1000, []byte{1, 2})
		msg.Size = 3
		assert.ErrorIs(t, protocol.Encode(io.Discard, msg), protocol.ErrMalformed)
	})

	t.Run("oversized", func(t *testing.T) {
		msg := protocol.PageReply(1, 0x1000, make([]byte, protocol.MaxPayload+1))
		assert.ErrorIs(t, protocol.Encode(io.Discard, msg), protocol.ErrPayloadTooLarge)
	})
}

func TestCodec_DecodeRejects(t *testing.T) {
	valid, err := protocol.Marshal(protocol.RequestPage(7, 0x3000, 4096))
	require.NoError(t, err)

	corrupt := func(fn func(b []byte)) []byte {
		b := append([]byte(nil), valid...)
		fn(b)
		return b
	}

	t.Run("magic", func(t *testing.T) {
		_, err := protocol.Unmarshal(corrupt(func(b []byte) { b[0] = 0 }))
		assert.ErrorIs(t, err, protocol.ErrBadMagic)
	})

	t.Run("version", func(t *testing.T) {
		_, err := protocol.Unmarshal(corrupt(func(b []byte) { b[2] = 9 }))
		assert.ErrorIs(t, err, protocol.ErrUnsupportedVersion)
	})

	t.Run("kind", func(t *testing.T) {
		_, err := protocol.Unmarshal(corrupt(func(b []byte) { b[3] = 0 }))
		assert.ErrorIs(t, err, protocol.ErrUnknownKind)
	})

	t.Run("huge length", func(t *testing.T) {
		_, err := protocol.Unmarshal(corrupt(func(b []byte) {
			b[3] = byte(protocol.KindPageReply)
			binary.BigEndian.PutUint32(b[24:28], protocol.MaxPayload+1)
			binary.BigEndian.PutUint32(b[28:32], protocol.MaxPayload+1)
		}))
		assert.ErrorIs(t, err, protocol.ErrPayloadTooLarge)
	})

	t.Run("truncated header", func(t *testing.T) {
		_, err := protocol.Unmarshal(valid[:10])
		assert.ErrorIs(t, err, protocol.ErrMalformed)
	})

	t.Run("truncated payload", func(t *testing.T) {
		b, err := protocol.Marshal(protocol.PageReply(1, 0x1000, []byte("payload")))
		require.NoError(t, err)
		_, err = protocol.Unmarshal(b[:len(b)-2])
		assert.ErrorIs(t, err, protocol.ErrMalformed)
	})

	t.Run("trailing bytes", func(t *testing.T) {
		_, err := protocol.Unmarshal(append(append([]byte(nil), valid...), 0))
		assert.ErrorIs(t, err, protocol.ErrMalformed)
	})
}
