package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/spf13/cobra"

	"doc-splitter/internal/app"
	"doc-splitter/internal/config"
	"doc-splitter/internal/logger"
	"doc-splitter/internal/report"
	"doc-splitter/internal/splitter"
)

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "mdsplit",
		Short: "Split Markdown into token-bounded chunks",
		Long: `mdsplit cuts Markdown documents into chunks that fit a token budget. Each chunk
carries the headings it sits under and the link and image targets it references.

Usage:
  mdsplit split <file|dir> [flags]`,
		SilenceUsage: true,
	}
	root.AddCommand(newSplitCmd())
	return root
}

type splitFlags struct {
	limit     int
	model     string
	tokenizer string
	outDir    string
	verbose   bool
}

func newSplitCmd() *cobra.Command {
	var f splitFlags
	cmd := &cobra.Command{
		Use:   "split <file|dir>",
		Short: "Split a Markdown file, or every Markdown file in a directory",
		Long: `Split writes <name>.json next to each input (or into --out) holding the chunks,
then prints average, median, min and max chunk tokens per file.

Flags left unset fall back to TOKEN_LIMIT, TOKENIZER and TOKENIZER_MODEL.

Examples:
  mdsplit split README.md --limit 512
  mdsplit split ./docs --model gpt-3.5-turbo --out ./chunks
  mdsplit split notes.md --tokenizer approx`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSplit(cmd, args[0], f)
		},
	}
	cmd.Flags().IntVar(&f.limit, "limit", 0, "Token limit per chunk, envelope included (default TOKEN_LIMIT)")
	cmd.Flags().StringVar(&f.model, "model", "", "Model whose BPE encoding counts tokens (default TOKENIZER_MODEL)")
	cmd.Flags().StringVar(&f.tokenizer, "tokenizer", "", "Token counter: tiktoken or approx (default TOKENIZER)")
	cmd.Flags().StringVar(&f.outDir, "out", "", "Directory for JSON output (default: next to each input)")
	cmd.Flags().BoolVarP(&f.verbose, "verbose", "v", false, "Log per-chunk progress to stderr")
	return cmd
}

func runSplit(cmd *cobra.Command, path string, f splitFlags) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if f.limit != 0 {
		cfg.TokenLimit = f.limit
	}
	if f.model != "" {
		cfg.TokenizerModel = f.model
	}
	if f.tokenizer != "" {
		cfg.Tokenizer = f.tokenizer
	}
	if cfg.TokenLimit < 1 {
		return fmt.Errorf("--limit must be positive, got %d", cfg.TokenLimit)
	}

	level := "warn"
	if f.verbose {
		level = "debug"
	}
	log := logger.NewWithWriter(cmd.ErrOrStderr(), level)
	sp, err := app.NewSplitter(cfg, log)
	if err != nil {
		return err
	}

	files, isDir, err := markdownFiles(path)
	if err != nil {
		return err
	}
	if f.outDir != "" {
		if err := os.MkdirAll(f.outDir, 0o755); err != nil {
			return fmt.Errorf("create output dir: %w", err)
		}
	}

	var (
		reports []report.Report
		failed  []string
	)
	for _, file := range files {
		r, err := splitFile(sp, file, cfg.TokenLimit, f.outDir)
		if err != nil {
			if !isDir {
				return err
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "skipping %s: %v\n", file, err)
			failed = append(failed, file)
			continue
		}
		reports = append(reports, r)
	}

	if err := report.WriteTable(cmd.OutOrStdout(), reports); err != nil {
		return err
	}
	if len(failed) > 0 {
		fmt.Fprintf(cmd.ErrOrStderr(), "\n%d/%d files failed\n", len(failed), len(files))
	}
	return nil
}

// markdownFiles lists path itself, or the .md and .markdown files directly inside it.
func markdownFiles(path string) ([]string, bool, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, false, err
	}
	if !info.IsDir() {
		return []string{path}, false, nil
	}
	entries, err := os.ReadDir(path)
	if err != nil {
		return nil, true, err
	}
	var files []string
	for _, e := range entries {
		if e.IsDir() || !isMarkdown(e.Name()) {
			continue
		}
		files = append(files, filepath.Join(path, e.Name()))
	}
	slices.Sort(files)
	if len(files) == 0 {
		return nil, true, fmt.Errorf("no Markdown files in %s", path)
	}
	return files, true, nil
}

func isMarkdown(name string) bool {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".md", ".markdown":
		return true
	}
	return false
}

func splitFile(sp *splitter.Splitter, file string, limit int, outDir string) (report.Report, error) {
	content, err := os.ReadFile(file)
	if err != nil {
		return report.Report{}, err
	}
	docs, err := sp.Split(string(content), limit)
	if err != nil {
		return report.Report{}, fmt.Errorf("split %s: %w", file, err)
	}
	data, err := json.MarshalIndent(docs, "", "  ")
	if err != nil {
		return report.Report{}, err
	}
	if err := os.WriteFile(outputPath(file, outDir), data, 0o644); err != nil {
		return report.Report{}, fmt.Errorf("write chunks: %w", err)
	}
	return report.Summarize(filepath.Base(file), docs), nil
}

func outputPath(file, outDir string) string {
	name := strings.TrimSuffix(filepath.Base(file), filepath.Ext(file)) + ".json"
	if outDir == "" {
		return filepath.Join(filepath.Dir(file), name)
	}
	return filepath.Join(outDir, name)
}
