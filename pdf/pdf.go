// Package pdf extracts text and document metadata from PDF bytes using the
// poppler command line tools.
package pdf

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"strings"
)

// Result holds everything extracted from a PDF.
type Result struct {
	Text        string
	Pages       int
	Title       string
	Author      string
	CreatedDate string
}

// Extractor extracts PDF content via pdftotext and pdfinfo.
type Extractor struct{}

// New creates a PDF extractor.
func New() *Extractor {
	return &Extractor{}
}

// Extract pulls text and metadata from raw PDF bytes. pdftotext runs with
// -layout to keep the physical text layout and -nopgbrk to drop page break
// characters; pdfinfo runs with -rawdates so creation dates arrive in the
// PDF's native D:YYYYMMDD form.
func (e *Extractor) Extract(ctx context.Context, content []byte) (*Result, error) {
	if len(content) == 0 {
		return &Result{}, nil
	}

	if _, err := exec.LookPath("pdftotext"); err != nil {
		return nil, fmt.Errorf("pdftotext not found in PATH: %w", err)
	}

	tmpFile, err := os.CreateTemp("", "iris-*.pdf")
	if err != nil {
		return nil, fmt.Errorf("failed to create temp file: %w", err)
	}
	defer os.Remove(tmpFile.Name())
	defer tmpFile.Close()

	if _, err := tmpFile.Write(content); err != nil {
		return nil, fmt.Errorf("failed to write PDF to temp file: %w", err)
	}
	if err := tmpFile.Close(); err != nil {
		return nil, fmt.Errorf("failed to close temp file: %w", err)
	}

	text, err := runPdftotext(ctx, tmpFile.Name())
	if err != nil {
		return nil, err
	}

	result := &Result{Text: strings.TrimSpace(text)}

	// Metadata is best-effort: a missing or failing pdfinfo still leaves
	// us with the text.
	if info, err := runPdfinfo(ctx, tmpFile.Name()); err == nil {
		parseInfo(info, result)
	}

	return result, nil
}

func runPdftotext(ctx context.Context, path string) (string, error) {
	cmd := exec.CommandContext(ctx, "pdftotext", "-layout", "-nopgbrk", path, "-")

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return "", fmt.Errorf("pdftotext failed: %w (stderr: %s)", err, stderr.String())
	}
	return stdout.String(), nil
}

func runPdfinfo(ctx context.Context, path string) (string, error) {
	if _, err := exec.LookPath("pdfinfo"); err != nil {
		return "", fmt.Errorf("pdfinfo not found in PATH: %w", err)
	}

	cmd := exec.CommandContext(ctx, "pdfinfo", "-rawdates", path)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return "", fmt.Errorf("pdfinfo failed: %w (stderr: %s)", err, stderr.String())
	}
	return stdout.String(), nil
}

// parseInfo fills result from pdfinfo's "Field: value" output.
func parseInfo(info string, result *Result) {
	for _, line := range strings.Split(info, "\n") {
		field, value, ok := strings.Cut(line, ":")
		if !ok {
			continue
		}
		value = strings.TrimSpace(value)

		switch strings.TrimSpace(field) {
		case "Title":
			result.Title = value
		case "Author":
			result.Author = value
		case "Pages":
			if n, err := strconv.Atoi(value); err == nil {
				result.Pages = n
			}
		case "CreationDate":
			result.CreatedDate = strings.TrimPrefix(value, "D:")
		}
	}
}
