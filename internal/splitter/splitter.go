// Package splitter cuts Markdown into token-bounded chunks that carry their
// heading ancestry and extracted link and image targets.
package splitter

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"unicode/utf8"

	"doc-splitter/internal/logger"
	"doc-splitter/internal/tokenizer"
)

const (
	// DefaultShrinkDivisor shrinks an oversized candidate by span/10 per step.
	DefaultShrinkDivisor = 10
	// DefaultFullnessFloor is the fraction of the limit a chunk must reach
	// before its end may be moved onto a line break.
	DefaultFullnessFloor = 0.8
)

var (
	ErrTokenization       = errors.New("tokenization failed")
	ErrInvalidLimit       = errors.New("token limit must be positive")
	ErrLimitBelowOverhead = errors.New("token limit does not exceed envelope overhead")
)

// Envelope wraps chunk text before counting, standing in for the template the
// chunk will eventually be presented to a model in.
type Envelope struct {
	Prefix string
	Suffix string
}

// ChatEnvelope is a single chat turn followed by an empty assistant turn.
var ChatEnvelope = Envelope{
	Prefix: "<|im_start|>user\n",
	Suffix: "<|im_end|>\n<|im_start|>assistant<|im_end|>",
}

func (e Envelope) Wrap(text string) string {
	return e.Prefix + text + e.Suffix
}

// Options tunes the boundary search. Zero numeric fields take the defaults;
// a zero Envelope counts text unwrapped.
type Options struct {
	ShrinkDivisor int
	FullnessFloor float64
	Envelope      Envelope
	Logger        *slog.Logger
}

// DefaultOptions uses the chat envelope and the default constants.
func DefaultOptions() Options {
	return Options{
		ShrinkDivisor: DefaultShrinkDivisor,
		FullnessFloor: DefaultFullnessFloor,
		Envelope:      ChatEnvelope,
	}
}

// Splitter is immutable after New and safe for concurrent use when its
// tokenizer is.
type Splitter struct {
	tok  tokenizer.Tokenizer
	opts Options
	log  *slog.Logger
}

func New(tok tokenizer.Tokenizer, opts Options) *Splitter {
	if opts.ShrinkDivisor <= 0 {
		opts.ShrinkDivisor = DefaultShrinkDivisor
	}
	if opts.FullnessFloor <= 0 {
		opts.FullnessFloor = DefaultFullnessFloor
	}
	log := opts.Logger
	if log == nil {
		log = logger.Discard()
	}
	return &Splitter{tok: tok, opts: opts, log: log}
}

// CountTokens counts text wrapped in the envelope.
func (s *Splitter) CountTokens(text string) (int, error) {
	n, err := tokenizer.Count(s.tok, s.opts.Envelope.Wrap(text))
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrTokenization, err)
	}
	return n, nil
}

// Overhead approximates the fixed cost of the envelope: the count of a wrapped
// empty string minus the count of an empty string, both measured by CountTokens.
func (s *Splitter) Overhead() (int, error) {
	wrapped, err := s.CountTokens(s.opts.Envelope.Wrap(""))
	if err != nil {
		return 0, err
	}
	empty, err := s.CountTokens("")
	if err != nil {
		return 0, err
	}
	return wrapped - empty, nil
}

// Split partitions text into consecutive chunks whose token count plus the
// envelope overhead stays within limit. The only chunk allowed to exceed it is
// a single rune that is oversized on its own.
func (s *Splitter) Split(text string, limit int) ([]Doc, error) {
	if limit <= 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidLimit, limit)
	}
	docs := []Doc{}
	if text == "" {
		return docs, nil
	}

	overhead, err := s.Overhead()
	if err != nil {
		return nil, err
	}
	// An empty chunk already costs the envelope plus the overhead; a limit at or
	// below that leaves no room for content.
	base, err := s.CountTokens("")
	if err != nil {
		return nil, err
	}
	if limit <= base+overhead {
		return nil, fmt.Errorf("%w: limit %d, envelope %d, overhead %d", ErrLimitBelowOverhead, limit, base, overhead)
	}

	s.log.Info("starting split", "limit", limit, "overhead", overhead, "bytes", len(text))

	var current Headings
	position := 0
	for position < len(text) {
		end, err := s.findChunkEnd(text, position, limit, overhead)
		if err != nil {
			return nil, err
		}
		chunkText := text[position:end]
		tokens, err := s.CountTokens(chunkText)
		if err != nil {
			return nil, err
		}

		current.Merge(ExtractHeaders(chunkText))
		content, urls, images := ExtractURLsAndImages(chunkText)

		docs = append(docs, Doc{
			Text: content,
			Metadata: Metadata{
				Tokens:  tokens,
				Headers: current.Clone(),
				URLs:    orEmpty(urls),
				Images:  orEmpty(images),
			},
			Span: Span{Start: position, End: end},
		})
		s.log.Debug("chunk emitted", "start", position, "end", end, "tokens", tokens)
		position = end
	}

	s.log.Info("split completed", "chunks", len(docs))
	return docs, nil
}

// findChunkEnd returns the end offset of the chunk starting at start. It guesses
// an end proportionally to the token density of the remaining text, shrinks it
// geometrically until the chunk fits, then tries to land on a line break.
func (s *Splitter) findChunkEnd(text string, start, limit, overhead int) (int, error) {
	remaining := text[start:]
	total, err := s.CountTokens(remaining)
	if err != nil {
		return 0, err
	}

	minEnd := start + runeLen(remaining)
	end := len(text)
	if total > 0 {
		if guess := start + int(int64(len(remaining))*int64(limit)/int64(total)); guess < end {
			end = guess
		}
	}
	end = floorRuneStart(text, end, minEnd)

	tokens, err := s.CountTokens(text[start:end])
	if err != nil {
		return 0, err
	}
	for tokens+overhead > limit && end > minEnd {
		s.log.Debug("chunk over limit, shrinking", "start", start, "end", end, "tokens", tokens+overhead)
		step := (end - start) / s.opts.ShrinkDivisor
		if step < 1 {
			step = 1
		}
		end = floorRuneStart(text, end-step, minEnd)
		if tokens, err = s.CountTokens(text[start:end]); err != nil {
			return 0, err
		}
	}

	return s.snapToNewline(text, start, end, limit, overhead)
}

// snapToNewline moves end just past the next line break, or failing that the
// previous one, provided the resulting chunk still fits and is at least
// FullnessFloor of limit. Otherwise end is kept.
func (s *Splitter) snapToNewline(text string, start, end, limit, overhead int) (int, error) {
	floor := int(float64(limit) * s.opts.FullnessFloor)
	acceptable := func(candidate int) (bool, error) {
		tokens, err := s.CountTokens(text[start:candidate])
		if err != nil {
			return false, err
		}
		return tokens+overhead <= limit && tokens >= floor, nil
	}

	if i := strings.IndexByte(text[end:], '\n'); i >= 0 {
		next := end + i + 1
		ok, err := acceptable(next)
		if err != nil {
			return 0, err
		}
		if ok {
			s.log.Debug("extending chunk to next newline", "end", next)
			return next, nil
		}
	}

	if i := strings.LastIndexByte(text[:end], '\n'); i >= 0 && i+1 > start {
		prev := i + 1
		ok, err := acceptable(prev)
		if err != nil {
			return 0, err
		}
		if ok {
			s.log.Debug("reducing chunk to previous newline", "end", prev)
			return prev, nil
		}
	}

	return end, nil
}

// runeLen is the byte length of the first rune of s, at least 1 for non-empty s.
func runeLen(s string) int {
	_, size := utf8.DecodeRuneInString(s)
	return size
}

// floorRuneStart moves i back to the start of the rune containing it, never
// below lo.
func floorRuneStart(text string, i, lo int) int {
	if i <= lo {
		return lo
	}
	for i > lo && i < len(text) && !utf8.RuneStart(text[i]) {
		i--
	}
	return i
}

func orEmpty(items []string) []string {
	if items == nil {
		return []string{}
	}
	return items
}
