// Package parser turns Markdown files into note fields for import.
package parser

import (
	"bytes"
	"errors"
	"path/filepath"
	"strings"
	"time"
	"unicode/utf8"

	"gopkg.in/yaml.v3"
)

// ErrNotText is returned for input that is not UTF-8 text.
var ErrNotText = errors.New("parser: not UTF-8 text")

// frontmatter holds the keys import understands. Unknown keys are ignored.
type frontmatter struct {
	Title   string    `yaml:"title"`
	Pinned  bool      `yaml:"pinned"`
	Created time.Time `yaml:"created"`
}

// Result holds the note fields derived from a Markdown file.
type Result struct {
	Title   string
	Content string
	Pinned  bool
	Created time.Time // zero when the file does not say
}

// Parse derives a note from a Markdown file. The title comes from the
// frontmatter "title", else the first "# " heading (which is then dropped
// from the content), else the file name without extension.
func Parse(name string, data []byte) (*Result, error) {
	if !utf8.Valid(data) {
		return nil, ErrNotText
	}

	fm, body := splitFrontmatter(data)

	res := &Result{
		Title:   strings.TrimSpace(fm.Title),
		Content: body,
		Pinned:  fm.Pinned,
		Created: fm.Created,
	}
	if res.Title == "" {
		res.Title, res.Content = titleFromHeading(body)
	}
	if res.Title == "" {
		res.Title = strings.TrimSuffix(filepath.Base(name), filepath.Ext(name))
	}
	res.Content = strings.TrimSpace(res.Content)
	return res, nil
}

// splitFrontmatter separates YAML frontmatter (between leading --- delimiters)
// from the Markdown body. If no valid frontmatter is found the entire content
// is body.
func splitFrontmatter(data []byte) (frontmatter, string) {
	const delim = "---"
	var fm frontmatter
	trimmed := bytes.TrimLeft(data, "\n\r")

	if !bytes.HasPrefix(trimmed, []byte(delim)) {
		return fm, string(data)
	}

	// Find end delimiter.
	rest := trimmed[len(delim):]
	idx := bytes.Index(rest, []byte("\n"+delim))
	if idx < 0 {
		return fm, string(data)
	}

	yamlBlock := rest[:idx]
	afterDelim := rest[idx+1+len(delim):]
	body := strings.TrimLeft(string(afterDelim), "\n\r")

	if err := yaml.Unmarshal(yamlBlock, &fm); err != nil {
		return frontmatter{}, string(data)
	}
	return fm, body
}

// titleFromHeading returns the text of the first H1 heading and the body
// with that line removed. title is empty if there is no H1.
func titleFromHeading(body string) (title, rest string) {
	lines := strings.Split(body, "\n")
	for i, line := range lines {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "# ") {
			title = strings.TrimSpace(trimmed[2:])
			rest = strings.Join(append(lines[:i:i], lines[i+1:]...), "\n")
			return title, rest
		}
	}
	return "", body
}
