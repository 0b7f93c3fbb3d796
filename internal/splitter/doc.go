package splitter

// Doc is one chunk produced by Split.
type Doc struct {
	// Text is the chunk content with link and image targets replaced by
	// {$url<i>} / {$img<i>} placeholders.
	Text     string   `json:"text"`
	Metadata Metadata `json:"metadata"`
	// Span is the byte range of the source text this chunk consumed.
	Span Span `json:"span"`
}

type Metadata struct {
	// Tokens counts the chunk wrapped in the splitter's envelope.
	Tokens int `json:"tokens"`
	// Headers is the heading context as of the end of the chunk.
	Headers Headings `json:"headers"`
	URLs    []string `json:"urls"`
	Images  []string `json:"images"`
}

// Span is a half-open byte range [Start, End).
type Span struct {
	Start int `json:"start"`
	End   int `json:"end"`
}

func (s Span) Len() int {
	return s.End - s.Start
}
