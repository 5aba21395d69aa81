// Package tab reads ASCII guitar tablature, optionally preceded by YAML
// frontmatter, into fret positions.
package tab

import (
	"bytes"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/starford/caged/internal/fretboard"
)

var (
	// ErrNoTab is returned when the input holds no tablature lines.
	ErrNoTab = errors.New("tab: no tablature found")
	// ErrInvalidTab marks tablature that was found but cannot be read.
	ErrInvalidTab = errors.New("tab: invalid tablature")
)

var (
	lineRe = regexp.MustCompile(`^\s*([A-Ga-g][#b]?)?\s*\|([-0-9|hpbrx/\\~().* ]*)$`)
	fretRe = regexp.MustCompile(`\d+`)
)

// Frontmatter carries optional session settings.
type Frontmatter struct {
	Title   string `yaml:"title"`
	Key     string `yaml:"key"`
	Quality string `yaml:"quality"`
	Tuning  string `yaml:"tuning"`
	Shape   string `yaml:"shape"`
}

// Result holds the output of parsing a tab.
type Result struct {
	Frontmatter Frontmatter
	Positions   []fretboard.Position
	Title       string
}

// Parse extracts frontmatter and positions. Each block of consecutive tab
// lines must have exactly numStrings lines, highest string first. Positions
// are deduplicated and keep first-seen order.
func Parse(data []byte, numStrings int) (*Result, error) {
	fm, body := splitFrontmatter(data)

	var (
		blocks [][]string
		cur    []string
	)
	for _, line := range splitLines(body) {
		if m := lineRe.FindStringSubmatch(line); m != nil && containsDash(m[2]) {
			cur = append(cur, m[2])
			continue
		}
		if len(cur) > 0 {
			blocks = append(blocks, cur)
			cur = nil
		}
	}
	if len(cur) > 0 {
		blocks = append(blocks, cur)
	}
	if len(blocks) == 0 {
		return nil, ErrNoTab
	}

	seen := make(map[fretboard.Position]struct{})
	var out []fretboard.Position
	for i, b := range blocks {
		if len(b) != numStrings {
			return nil, fmt.Errorf("%w: block %d has %d lines, want %d", ErrInvalidTab, i+1, len(b), numStrings)
		}
		for row, content := range b {
			str := numStrings - 1 - row
			for _, raw := range fretRe.FindAllString(content, -1) {
				fret, err := strconv.Atoi(raw)
				if err != nil {
					return nil, fmt.Errorf("%w: fret %q: %v", ErrInvalidTab, raw, err)
				}
				p := fretboard.Position{Str: str, Fret: fret}
				if _, dup := seen[p]; dup {
					continue
				}
				seen[p] = struct{}{}
				out = append(out, p)
			}
		}
	}

	return &Result{Frontmatter: fm, Positions: out, Title: fm.Title}, nil
}

// splitFrontmatter separates YAML frontmatter (between leading --- delimiters)
// from the body. Missing or invalid frontmatter leaves the whole input as body.
func splitFrontmatter(data []byte) (Frontmatter, string) {
	const delim = "---"
	trimmed := bytes.TrimLeft(data, "\n\r")
	if !bytes.HasPrefix(trimmed, []byte(delim+"\n")) && !bytes.HasPrefix(trimmed, []byte(delim+"\r\n")) {
		return Frontmatter{}, string(data)
	}
	rest := trimmed[len(delim):]
	idx := bytes.Index(rest, []byte("\n"+delim))
	if idx < 0 {
		return Frontmatter{}, string(data)
	}
	var fm Frontmatter
	if err := yaml.Unmarshal(rest[:idx], &fm); err != nil {
		return Frontmatter{}, string(data)
	}
	return fm, string(rest[idx+1+len(delim):])
}

func splitLines(s string) []string {
	return strings.Split(strings.ReplaceAll(s, "\r\n", "\n"), "\n")
}

func containsDash(s string) bool { return strings.Contains(s, "-") }
