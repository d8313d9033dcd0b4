package framing

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// feedInSplits drives a feed function with every byte of data, split at
// the given boundaries.
func feedInSplits(data []byte, splits []int, feed func([]byte)) {
	prev := 0
	for _, split := range splits {
		feed(data[prev:split])
		prev = split
	}
	feed(data[prev:])
}

// ============================================================================
// Fixed-Length Decoder
// ============================================================================

func TestFixedLengthDecoder(t *testing.T) {
	d, err := NewFixedLengthDecoder(4)
	require.NoError(t, err)

	d.Append([]byte("AAAABBBBCC"))

	assert.Equal(t, []byte("AAAA"), d.Next())
	assert.Equal(t, []byte("BBBB"), d.Next())
	assert.Nil(t, d.Next())

	// Two trailing bytes surface as leftover at close
	err = d.Close()
	require.Error(t, err)
	var leftover *LeftoverBytesError
	require.ErrorAs(t, err, &leftover)
	assert.Equal(t, []byte("CC"), leftover.Bytes)
}

func TestFixedLengthDecoderCleanClose(t *testing.T) {
	d, err := NewFixedLengthDecoder(2)
	require.NoError(t, err)
	d.Append([]byte("ABCD"))
	assert.NotNil(t, d.Next())
	assert.NotNil(t, d.Next())
	require.NoError(t, d.Close())
}

func TestFixedLengthDecoderRejectsZeroLength(t *testing.T) {
	_, err := NewFixedLengthDecoder(0)
	require.Error(t, err)
}

// ============================================================================
// Length-Field Decoder / Encoder
// ============================================================================

func TestLengthFieldRoundTrip(t *testing.T) {
	cases := []struct {
		name        string
		fieldLength int
		endianness  Endianness
	}{
		{"1ByteBig", 1, BigEndian},
		{"2BytesBig", 2, BigEndian},
		{"3BytesBig", 3, BigEndian},
		{"4BytesBig", 4, BigEndian},
		{"8BytesBig", 8, BigEndian},
		{"2BytesLittle", 2, LittleEndian},
		{"3BytesLittle", 3, LittleEndian},
		{"4BytesLittle", 4, LittleEndian},
		{"8BytesLittle", 8, LittleEndian},
	}

	payloads := [][]byte{{}, []byte("x"), []byte("hello"), bytes.Repeat([]byte("ab"), 100)}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			enc, err := NewLengthFieldEncoder(tc.fieldLength, tc.endianness)
			require.NoError(t, err)
			dec, err := NewLengthFieldDecoder(tc.fieldLength, tc.endianness)
			require.NoError(t, err)

			var stream []byte
			for _, p := range payloads {
				framed, err := enc.Encode(p)
				require.NoError(t, err)
				// The prefix must equal the body length in the configured
				// endianness
				length, err := decodeLength(framed[:tc.fieldLength], tc.endianness)
				require.NoError(t, err)
				assert.Equal(t, len(p), length)
				stream = append(stream, framed...)
			}

			dec.Append(stream)
			for _, want := range payloads {
				got, err := dec.Next()
				require.NoError(t, err)
				assert.Equal(t, want, got)
			}
			got, err := dec.Next()
			require.NoError(t, err)
			assert.Nil(t, got)
			require.NoError(t, dec.Close())
		})
	}
}

// TestLengthFieldDecoderSplitInsensitive pins the framer property: the
// decoded frames are independent of how the stream was split into reads.
func TestLengthFieldDecoderSplitInsensitive(t *testing.T) {
	enc, err := NewLengthFieldEncoder(2, BigEndian)
	require.NoError(t, err)

	var stream []byte
	for _, p := range []string{"one", "two", "three"} {
		framed, err := enc.Encode([]byte(p))
		require.NoError(t, err)
		stream = append(stream, framed...)
	}

	splitSets := [][]int{
		{},
		{1},
		{1, 2, 3, 4},
		{5, 6},
		{len(stream) - 1},
	}

	for _, splits := range splitSets {
		dec, err := NewLengthFieldDecoder(2, BigEndian)
		require.NoError(t, err)

		var frames []string
		feedInSplits(stream, splits, func(chunk []byte) {
			dec.Append(chunk)
			for {
				frame, err := dec.Next()
				require.NoError(t, err)
				if frame == nil {
					break
				}
				frames = append(frames, string(frame))
			}
		})

		assert.Equal(t, []string{"one", "two", "three"}, frames, "splits %v", splits)
	}
}

// TestLengthFieldEncoderOverflow drives seed scenario 4: a 1-byte length
// field cannot carry 256 bytes; the write fails and nothing is emitted.
func TestLengthFieldEncoderOverflow(t *testing.T) {
	enc, err := NewLengthFieldEncoder(1, BigEndian)
	require.NoError(t, err)
	assert.Equal(t, uint64(255), enc.MaxFrameLength())

	out, err := enc.Encode(make([]byte, 256))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrMessageTooLong)
	assert.Nil(t, out)

	// 255 bytes still fit
	out, err = enc.Encode(make([]byte, 255))
	require.NoError(t, err)
	assert.Len(t, out, 256)
}

func TestLengthField24BitRange(t *testing.T) {
	enc, err := NewLengthFieldEncoder(3, BigEndian)
	require.NoError(t, err)
	assert.Equal(t, uint64(1<<24-1), enc.MaxFrameLength())
}

func TestLengthFieldRejectsUnsupportedWidth(t *testing.T) {
	_, err := NewLengthFieldEncoder(5, BigEndian)
	require.Error(t, err)
	_, err = NewLengthFieldDecoder(0, BigEndian)
	require.Error(t, err)
}

// ============================================================================
// Line Decoder
// ============================================================================

// TestLineDecoderSpecSequence pins the property from the line decoder
// contract: "A\nB\r\nC\nD" yields A, B, C and reports D as leftover.
func TestLineDecoderSpecSequence(t *testing.T) {
	stream := []byte("A\nB\r\nC\nD")

	splitSets := [][]int{
		{},
		{1}, {2}, {3}, {4}, {5}, {6}, {7},
		{1, 2, 3, 4, 5, 6, 7},
		{3, 5},
	}

	for _, splits := range splitSets {
		d := NewLineDecoder()

		var lines []string
		feedInSplits(stream, splits, func(chunk []byte) {
			d.Append(chunk)
			for {
				line, ok := d.Next()
				if !ok {
					break
				}
				lines = append(lines, string(line))
			}
		})

		assert.Equal(t, []string{"A", "B", "C"}, lines, "splits %v", splits)

		err := d.Close()
		require.Error(t, err, "splits %v", splits)
		var leftover *LeftoverBytesError
		require.ErrorAs(t, err, &leftover)
		assert.Equal(t, []byte("D"), leftover.Bytes)
	}
}

func TestLineDecoderEmptyLines(t *testing.T) {
	d := NewLineDecoder()
	d.Append([]byte("\n\r\nx\n"))

	line, ok := d.Next()
	require.True(t, ok)
	assert.Empty(t, line)

	line, ok = d.Next()
	require.True(t, ok)
	assert.Empty(t, line)

	line, ok = d.Next()
	require.True(t, ok)
	assert.Equal(t, []byte("x"), line)

	require.NoError(t, d.Close())
}

// ============================================================================
// Content-Length Decoder
// ============================================================================

func TestContentLengthBasic(t *testing.T) {
	d := NewContentLengthDecoder()
	d.Append([]byte("Content-Length: 5\r\n\r\nHELLO"))

	payload, err := d.Next()
	require.NoError(t, err)
	assert.Equal(t, []byte("HELLO"), payload)

	payload, err = d.Next()
	require.NoError(t, err)
	assert.Nil(t, payload)
	require.NoError(t, d.Close())
}

func TestContentLengthZeroPayload(t *testing.T) {
	d := NewContentLengthDecoder()
	d.Append([]byte("Content-Length: 0\r\n\r\n"))

	payload, err := d.Next()
	require.NoError(t, err)
	require.NotNil(t, payload)
	assert.Empty(t, payload)
}

// TestContentLengthSplitDelivery drives seed scenario 5: the message
// arrives in three reads split mid-header and mid-payload.
func TestContentLengthSplitDelivery(t *testing.T) {
	d := NewContentLengthDecoder()

	d.Append([]byte("Conte"))
	payload, err := d.Next()
	require.NoError(t, err)
	assert.Nil(t, payload)

	d.Append([]byte("nt-Length: 3\r\n\r\nAB"))
	payload, err = d.Next()
	require.NoError(t, err)
	assert.Nil(t, payload)

	d.Append([]byte("C"))
	payload, err = d.Next()
	require.NoError(t, err)
	assert.Equal(t, []byte("ABC"), payload)
}

func TestContentLengthMissingHeader(t *testing.T) {
	d := NewContentLengthDecoder()
	d.Append([]byte("\r\n"))

	_, err := d.Next()
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrMissingContentLength)
}

func TestContentLengthIllegalValue(t *testing.T) {
	d := NewContentLengthDecoder()
	d.Append([]byte("Content-Length: banana\r\n\r\n"))

	_, err := d.Next()
	require.Error(t, err)

	var illegal *IllegalContentLengthError
	require.ErrorAs(t, err, &illegal)
	assert.Equal(t, "banana", illegal.Raw)
}

func TestContentLengthOtherHeadersSkipped(t *testing.T) {
	d := NewContentLengthDecoder()
	d.Append([]byte("Content-Type: application/json\r\ncontent-length: 2\r\nX-Custom: 7\r\n\r\nok"))

	payload, err := d.Next()
	require.NoError(t, err)
	assert.Equal(t, []byte("ok"), payload)
}

func TestContentLengthHeaderNameCaseAndWhitespace(t *testing.T) {
	d := NewContentLengthDecoder()
	d.Append([]byte("  CONTENT-LENGTH  :   4  \r\n\r\nabcd"))

	payload, err := d.Next()
	require.NoError(t, err)
	assert.Equal(t, []byte("abcd"), payload)
}

func TestContentLengthBackToBackMessages(t *testing.T) {
	d := NewContentLengthDecoder()
	d.Append([]byte("Content-Length: 1\r\n\r\nAContent-Length: 1\r\n\r\nB"))

	first, err := d.Next()
	require.NoError(t, err)
	assert.Equal(t, []byte("A"), first)

	second, err := d.Next()
	require.NoError(t, err)
	assert.Equal(t, []byte("B"), second)

	require.NoError(t, d.Close())
}

func TestContentLengthLeftoverAtClose(t *testing.T) {
	d := NewContentLengthDecoder()
	d.Append([]byte("Content-Length: 10\r\n\r\nhalf"))

	payload, err := d.Next()
	require.NoError(t, err)
	assert.Nil(t, payload)

	err = d.Close()
	require.Error(t, err)
	var leftover *LeftoverBytesError
	require.ErrorAs(t, err, &leftover)
	assert.Equal(t, []byte("half"), leftover.Bytes)
}
