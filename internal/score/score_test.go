package score

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func ptr(n int64) *int64 { return &n }

func TestParseToPar(t *testing.T) {
	tests := []struct {
		token string
		want  *int64
	}{
		{"E", ptr(0)},
		{"even", ptr(0)},
		{"EVEN", ptr(0)},
		{" e ", ptr(0)},
		{"+3", ptr(3)},
		{"-3", ptr(-3)},
		{"−3", ptr(-3)}, // U+2212 minus sign
		{"–4", ptr(-4)}, // en dash
		{"—5", ptr(-5)}, // em dash
		{"", nil},
		{"   ", nil},
		{"abc", nil},
		{"0", ptr(0)},
		{"12", ptr(12)},
		{"+2 (T3)", ptr(23)},
		{"-1*", ptr(-1)},
		{"1.5", nil},
		{"2.0", ptr(2)},
		{"Inf", nil},
		{"NaN", nil},
		{"+", nil},
		{"--3", nil},
	}

	for _, tt := range tests {
		t.Run(tt.token, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseToPar(tt.token))
		})
	}
}

func TestParseToParValue(t *testing.T) {
	assert.Nil(t, ParseToParValue(nil))
	assert.Equal(t, ptr(-2), ParseToParValue(float64(-2)))
	assert.Nil(t, ParseToParValue(float64(1.25)))
	assert.Equal(t, ptr(4), ParseToParValue(4))
	assert.Equal(t, ptr(0), ParseToParValue("Even"))
	assert.Nil(t, ParseToParValue(true))
}

func TestParseInteger(t *testing.T) {
	assert.Equal(t, ptr(7), ParseInteger("7"))
	assert.Equal(t, ptr(7), ParseInteger("Hole 7"))
	assert.Nil(t, ParseInteger("E"))
	assert.Nil(t, ParseInteger(""))
}

func TestFormatToPar(t *testing.T) {
	assert.Equal(t, "", FormatToPar(nil))
	assert.Equal(t, "E", FormatToPar(ptr(0)))
	assert.Equal(t, "+3", FormatToPar(ptr(3)))
	assert.Equal(t, "-2", FormatToPar(ptr(-2)))
}

func TestNumericGross(t *testing.T) {
	n, ok := NumericGross(" 72 ")
	assert.True(t, ok)
	assert.Equal(t, int64(72), n)

	_, ok = NumericGross("72*")
	assert.False(t, ok)

	_, ok = NumericGross("")
	assert.False(t, ok)
}
