package xmldoc

import (
	"testing"

	"github.com/beevik/etree"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hpungsan/arbor/internal/errors"
)

func TestParseBool(t *testing.T) {
	for _, s := range []string{"1", "true", "True", "TRUE"} {
		assert.True(t, ParseBool(s), s)
	}
	for _, s := range []string{"", "0", "false", "yes", "2"} {
		assert.False(t, ParseBool(s), s)
	}
	assert.Equal(t, "1", FormatBool(true))
	assert.Equal(t, "0", FormatBool(false))
}

func TestParseInt64Lenient(t *testing.T) {
	tests := []struct {
		in   string
		want int64
	}{
		{"", 0},
		{"42", 42},
		{"  -7", -7},
		{"+3", 3},
		{"12abc", 12},
		{"abc", 0},
		{"-", 0},
		{"99999999999999999999", 0},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ParseInt64Lenient(tt.in), "input %q", tt.in)
	}
}

func TestIntAttrStrict(t *testing.T) {
	el := etree.NewElement("codebox")
	el.CreateAttr("frame_width", "500")
	el.CreateAttr("frame_height", "4x0")

	v, err := IntAttrStrict(el, "frame_width")
	require.NoError(t, err)
	assert.Equal(t, 500, v)

	_, err = IntAttrStrict(el, "frame_height")
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrMalformedNumeric))

	_, err = IntAttrStrict(el, "char_offset")
	assert.True(t, errors.Is(err, errors.ErrMalformedNumeric))
}

func TestSplitJoinInts(t *testing.T) {
	assert.Equal(t, []int64{3, 1, 2}, SplitInts("3,1,,2"))
	assert.Nil(t, SplitInts(""))
	assert.Equal(t, "3,1,2", JoinInts([]int64{3, 1, 2}))
	assert.Equal(t, "", JoinInts([]int{}))
}
