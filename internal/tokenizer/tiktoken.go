package tokenizer

import (
	"fmt"

	"github.com/pkoukk/tiktoken-go"
)

// DefaultEncoding is used when the model name is empty or unknown to tiktoken.
const DefaultEncoding = "cl100k_base"

// Tiktoken encodes with an OpenAI BPE vocabulary.
type Tiktoken struct {
	enc   *tiktoken.Tiktoken
	model string
}

// NewTiktoken loads the encoding used by model, falling back to cl100k_base.
// The vocabulary is fetched (and cached by tiktoken-go) on first use.
func NewTiktoken(model string) (*Tiktoken, error) {
	if model != "" {
		if enc, err := tiktoken.EncodingForModel(model); err == nil {
			return &Tiktoken{enc: enc, model: model}, nil
		}
	}
	enc, err := tiktoken.GetEncoding(DefaultEncoding)
	if err != nil {
		return nil, fmt.Errorf("load %s encoding: %w", DefaultEncoding, err)
	}
	return &Tiktoken{enc: enc, model: model}, nil
}

// Encode allows every special token, so chat markers in the text count as single tokens
// where the vocabulary defines them.
func (t *Tiktoken) Encode(text string) ([]int, error) {
	if t == nil || t.enc == nil {
		return nil, fmt.Errorf("tiktoken: encoding not loaded")
	}
	return t.enc.Encode(text, []string{"all"}, nil), nil
}

// Model reports the model name the encoding was selected for.
func (t *Tiktoken) Model() string {
	return t.model
}
