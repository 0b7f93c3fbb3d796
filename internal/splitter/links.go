package splitter

import (
	"regexp"
	"strconv"
	"strings"
)

var (
	imageRegex = regexp.MustCompile(`!\[([^\]]*)\]\(([^)]+)\)`)
	// Link text may hold an already rewritten image marker, so linked images keep both targets.
	linkRegex = regexp.MustCompile(`\[((?:[^\[\]]|!\[[^\]]*\])+)\]\(([^)]+)\)`)
)

func imagePlaceholder(i int) string { return "{$img" + strconv.Itoa(i) + "}" }
func urlPlaceholder(i int) string   { return "{$url" + strconv.Itoa(i) + "}" }

// ExtractImages replaces every ![alt](target) with ![alt]({$img<i>}) and returns
// the targets in order of appearance. Run it before ExtractLinks.
func ExtractImages(text string) (string, []string) {
	var images []string
	out := imageRegex.ReplaceAllStringFunc(text, func(match string) string {
		m := imageRegex.FindStringSubmatch(match)
		placeholder := imagePlaceholder(len(images))
		images = append(images, m[2])
		return "![" + m[1] + "](" + placeholder + ")"
	})
	return out, images
}

// ExtractLinks replaces every [text](target) with [text]({$url<i>}) and returns
// the targets in order of appearance. A match directly preceded by '!' is image
// syntax and is left untouched.
func ExtractLinks(text string) (string, []string) {
	var (
		urls []string
		b    strings.Builder
		last int
	)
	for _, loc := range linkRegex.FindAllStringSubmatchIndex(text, -1) {
		start, end := loc[0], loc[1]
		if start > 0 && text[start-1] == '!' {
			continue
		}
		b.WriteString(text[last:start])
		b.WriteString("[")
		b.WriteString(text[loc[2]:loc[3]])
		b.WriteString("](")
		b.WriteString(urlPlaceholder(len(urls)))
		b.WriteString(")")
		urls = append(urls, text[loc[4]:loc[5]])
		last = end
	}
	if urls == nil {
		return text, nil
	}
	b.WriteString(text[last:])
	return b.String(), urls
}

// ExtractURLsAndImages runs the image pass then the link pass over text.
func ExtractURLsAndImages(text string) (content string, urls, images []string) {
	content, images = ExtractImages(text)
	content, urls = ExtractLinks(content)
	return content, urls, images
}

// Expand substitutes the chunk's placeholders back with their targets,
// reconstructing the text as it appeared in the source document.
func Expand(doc Doc) string {
	text := doc.Text
	if len(doc.Metadata.URLs) == 0 && len(doc.Metadata.Images) == 0 {
		return text
	}
	pairs := make([]string, 0, 2*(len(doc.Metadata.URLs)+len(doc.Metadata.Images)))
	for i, u := range doc.Metadata.URLs {
		pairs = append(pairs, "]("+urlPlaceholder(i)+")", "]("+u+")")
	}
	for i, img := range doc.Metadata.Images {
		pairs = append(pairs, "]("+imagePlaceholder(i)+")", "]("+img+")")
	}
	return strings.NewReplacer(pairs...).Replace(text)
}
