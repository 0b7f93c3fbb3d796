package splitter

import (
	"bytes"
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// Level is an ATX heading depth, H1 through H6.
type Level int

const (
	H1 Level = iota + 1
	H2
	H3
	H4
	H5
	H6
)

const maxLevel = int(H6)

// Key is the metadata key for the level, "h1".."h6".
func (l Level) Key() string {
	return "h" + strconv.Itoa(int(l))
}

func (l Level) valid() bool {
	return l >= H1 && l <= H6
}

func parseLevelKey(key string) (Level, error) {
	if len(key) != 2 || key[0] != 'h' {
		return 0, fmt.Errorf("invalid heading key %q", key)
	}
	l := Level(key[1] - '0')
	if !l.valid() {
		return 0, fmt.Errorf("invalid heading key %q", key)
	}
	return l, nil
}

// Headings tracks heading texts per level. The zero value is empty and ready to use.
type Headings struct {
	levels [maxLevel][]string
}

// Insert appends text to the list kept for level.
func (h *Headings) Insert(level Level, text string) {
	if !level.valid() {
		return
	}
	h.levels[level-1] = append(h.levels[level-1], text)
}

// ClearBelow drops every level deeper than level.
func (h *Headings) ClearBelow(level Level) {
	for l := int(level); l < maxLevel; l++ {
		h.levels[l] = nil
	}
}

// Merge folds headings found in one chunk into the running context. Levels are
// visited shallowest first; each level the chunk introduced is appended and
// invalidates everything deeper.
func (h *Headings) Merge(local Headings) {
	for l := H1; l <= H6; l++ {
		found := local.levels[l-1]
		if len(found) == 0 {
			continue
		}
		for _, text := range found {
			h.Insert(l, text)
		}
		h.ClearBelow(l)
	}
}

// Get returns the texts tracked at level, nil if none.
func (h Headings) Get(level Level) []string {
	if !level.valid() {
		return nil
	}
	return h.levels[level-1]
}

// Len counts tracked headings across all levels.
func (h Headings) Len() int {
	n := 0
	for _, texts := range h.levels {
		n += len(texts)
	}
	return n
}

// Clone returns a deep copy so later mutation of h does not leak into the copy.
func (h Headings) Clone() Headings {
	var out Headings
	for i, texts := range h.levels {
		if len(texts) == 0 {
			continue
		}
		out.levels[i] = append([]string(nil), texts...)
	}
	return out
}

// Map returns the non-empty levels keyed "h1".."h6".
func (h Headings) Map() map[string][]string {
	out := make(map[string][]string)
	for i, texts := range h.levels {
		if len(texts) > 0 {
			out[Level(i+1).Key()] = append([]string(nil), texts...)
		}
	}
	return out
}

// Trail joins the last heading of each tracked level, shallowest first.
func (h Headings) Trail(sep string) string {
	var parts []string
	for _, texts := range h.levels {
		if len(texts) > 0 {
			parts = append(parts, texts[len(texts)-1])
		}
	}
	return strings.Join(parts, sep)
}

// MarshalJSON writes levels in order, omitting empty ones.
func (h Headings) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	first := true
	for i, texts := range h.levels {
		if len(texts) == 0 {
			continue
		}
		if !first {
			buf.WriteByte(',')
		}
		first = false
		val, err := json.Marshal(texts)
		if err != nil {
			return nil, err
		}
		buf.WriteString(strconv.Quote(Level(i + 1).Key()))
		buf.WriteByte(':')
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

func (h *Headings) UnmarshalJSON(data []byte) error {
	var raw map[string][]string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*h = Headings{}
	for key, texts := range raw {
		l, err := parseLevelKey(key)
		if err != nil {
			return err
		}
		if len(texts) > 0 {
			h.levels[l-1] = append([]string(nil), texts...)
		}
	}
	return nil
}

var headerRegex = regexp.MustCompile(`(?m)^(#{1,6})\s+(.*)$`)

// ExtractHeaders collects line-anchored ATX headings in text, in order of appearance.
func ExtractHeaders(text string) Headings {
	var h Headings
	for _, m := range headerRegex.FindAllStringSubmatch(text, -1) {
		h.Insert(Level(len(m[1])), strings.TrimSpace(m[2]))
	}
	return h
}
