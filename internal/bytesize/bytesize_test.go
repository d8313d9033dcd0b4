package bytesize

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	cases := []struct {
		in   string
		want ByteSize
	}{
		{"1024", 1024},
		{"0", 0},
		{"1B", 1},
		{"1Ki", KiB},
		{"1KiB", KiB},
		{"500Mi", 500 * MiB},
		{"1Gi", GiB},
		{"100MB", 100 * MB},
		{"2T", 2 * TB},
		{"1.5Ki", ByteSize(1536)},
		{"  64Ki  ", 64 * KiB},
	}

	for _, tc := range cases {
		got, err := Parse(tc.in)
		require.NoError(t, err, "input %q", tc.in)
		assert.Equal(t, tc.want, got, "input %q", tc.in)
	}
}

func TestParseErrors(t *testing.T) {
	for _, in := range []string{"", "  ", "abc", "1Xi", "..5", "-1"} {
		_, err := Parse(in)
		assert.Error(t, err, "input %q", in)
	}
}

func TestString(t *testing.T) {
	assert.Equal(t, "512B", ByteSize(512).String())
	assert.Equal(t, "1.00KiB", KiB.String())
	assert.Equal(t, "1.25MiB", (MiB + 256*KiB).String())
	assert.Equal(t, "1.00GiB", GiB.String())
}

func TestUnmarshalText(t *testing.T) {
	var b ByteSize
	require.NoError(t, b.UnmarshalText([]byte("4Ki")))
	assert.Equal(t, 4*KiB, b)

	require.Error(t, b.UnmarshalText([]byte("nope")))
}
