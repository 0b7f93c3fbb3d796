// Package report summarises chunk sizes produced for a set of files.
package report

import (
	"fmt"
	"io"
	"slices"
	"strings"

	"doc-splitter/internal/splitter"
)

// Report describes the token sizes of one file's chunks.
type Report struct {
	File            string  `json:"file"`
	AvgChunkSize    float64 `json:"avg_chunk_size"`
	MedianChunkSize int     `json:"median_chunk_size"`
	MinChunkSize    int     `json:"min_chunk_size"`
	MaxChunkSize    int     `json:"max_chunk_size"`
	TotalChunks     int     `json:"total_chunks"`
}

// Summarize computes size statistics over docs. The median is the upper middle
// element for an even count.
func Summarize(file string, docs []splitter.Doc) Report {
	r := Report{File: file, TotalChunks: len(docs)}
	if len(docs) == 0 {
		return r
	}
	sizes := make([]int, len(docs))
	sum := 0
	for i, d := range docs {
		sizes[i] = d.Metadata.Tokens
		sum += d.Metadata.Tokens
	}
	slices.Sort(sizes)
	r.AvgChunkSize = float64(sum) / float64(len(sizes))
	r.MedianChunkSize = sizes[len(sizes)/2]
	r.MinChunkSize = sizes[0]
	r.MaxChunkSize = sizes[len(sizes)-1]
	return r
}

// WriteTable prints reports as a fixed-width table.
func WriteTable(w io.Writer, reports []Report) error {
	if _, err := fmt.Fprintf(w, "%-30s %-15s %-15s %-15s %-15s %-15s\n",
		"File", "Avg Size", "Median Size", "Min Size", "Max Size", "Total Chunks"); err != nil {
		return err
	}
	if _, err := fmt.Fprintln(w, strings.Repeat("-", 105)); err != nil {
		return err
	}
	for _, r := range reports {
		if _, err := fmt.Fprintf(w, "%-30s %-15.2f %-15d %-15d %-15d %-15d\n",
			r.File, r.AvgChunkSize, r.MedianChunkSize, r.MinChunkSize, r.MaxChunkSize, r.TotalChunks); err != nil {
			return err
		}
	}
	return nil
}
