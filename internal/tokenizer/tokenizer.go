package tokenizer

import (
	"errors"
	"fmt"
)

// Tokenizer turns text into token ids. The length of the result is the token count.
type Tokenizer interface {
	Encode(text string) ([]int, error)
}

const (
	KindTiktoken = "tiktoken"
	KindApprox   = "approx"
)

var ErrUnknownKind = errors.New("unknown tokenizer kind")

// New builds the tokenizer selected by kind. model is only consulted by tiktoken.
func New(kind, model string) (Tokenizer, error) {
	switch kind {
	case KindTiktoken, "":
		return NewTiktoken(model)
	case KindApprox:
		return Approx{}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownKind, kind)
	}
}

// Count returns the number of tokens tok produces for text.
func Count(tok Tokenizer, text string) (int, error) {
	ids, err := tok.Encode(text)
	if err != nil {
		return 0, err
	}
	return len(ids), nil
}
