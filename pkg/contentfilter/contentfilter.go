// Package contentfilter implements the forbidden-word scan the HTTP proxy
// runs over the raw request (request line, headers and body) and the
// decoded response body (spec.md §4.J), grounded on
// original_source/include/ContentFilter.hpp's interface — a configurable
// word list checked case-insensitively against those bytes.
package contentfilter

import (
	"bufio"
	"os"
	"strings"
)

// Filter holds a case-insensitive forbidden-word list.
type Filter struct {
	words []string
}

// New returns a Filter matching any of words, case-insensitively.
func New(words []string) *Filter {
	lowered := make([]string, len(words))
	for i, w := range words {
		lowered[i] = strings.ToLower(w)
	}
	return &Filter{words: lowered}
}

// Check scans body for any forbidden word and returns the first match, or
// ("", false) if none is present.
func (f *Filter) Check(body []byte) (matched string, found bool) {
	lower := strings.ToLower(string(body))
	for _, w := range f.words {
		if w == "" {
			continue
		}
		if strings.Contains(lower, w) {
			return w, true
		}
	}
	return "", false
}

// Words returns the configured forbidden words in lowercase.
func (f *Filter) Words() []string {
	return append([]string(nil), f.words...)
}

// LoadWordsFile reads a newline-separated forbidden word list from path.
// Blank lines are skipped; an empty path returns an empty list rather than
// an error, so the filter is simply a no-op when no list is configured.
func LoadWordsFile(path string) ([]string, error) {
	if path == "" {
		return nil, nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var words []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		words = append(words, line)
	}
	return words, scanner.Err()
}
