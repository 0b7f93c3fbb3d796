package tokenizer

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestApproxCount(t *testing.T) {
	tests := []struct {
		text string
		want int
	}{
		{"", 0},
		{"a", 1},
		{"abcd", 1},
		{"abcde", 2},
		{strings.Repeat("x", 400), 100},
	}

	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			got, err := Count(Approx{}, tt.text)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestCountPropagatesError(t *testing.T) {
	tok := new(MockTokenizer)
	tok.On("Encode", "boom").Return(nil, errors.New("bad input")).Once()

	_, err := Count(tok, "boom")
	require.Error(t, err)
	tok.AssertExpectations(t)
}

func TestNewApprox(t *testing.T) {
	tok, err := New(KindApprox, "ignored")
	require.NoError(t, err)
	assert.IsType(t, Approx{}, tok)
}

func TestNewUnknownKind(t *testing.T) {
	_, err := New("sentencepiece", "")
	assert.ErrorIs(t, err, ErrUnknownKind)
}

func TestTiktokenCL100K(t *testing.T) {
	tok, err := NewTiktoken("gpt-4")
	if err != nil {
		t.Skipf("cl100k_base vocabulary unavailable: %v", err)
	}
	assert.Equal(t, "gpt-4", tok.Model())

	n, err := Count(tok, "hello world")
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	// <|endoftext|> is a registered special token and encodes to a single id.
	n, err = Count(tok, "<|endoftext|>")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestTiktokenNilEncoding(t *testing.T) {
	var tok *Tiktoken
	_, err := tok.Encode("text")
	assert.Error(t, err)
}
