// Package parser turns upstream HTML and JSON payloads into domain records.
// Every parser is a pure function of its input.
package parser

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"unicode"

	"github.com/PuerkitoBio/goquery"
	"github.com/lebanonrates/backend/internal/domain"
)

// numberPattern prefers a thousands-separated run and falls back to plain digits
var numberPattern = regexp.MustCompile(`\d{1,3}(?:[,.]\d{3})+|\d+`)

// ExtractNumber returns the first integer embedded in text.
// Separators inside the match are dropped, so "1,312,000" and "1.312.000" both yield 1312000.
func ExtractNumber(text string) (int64, bool) {
	match := numberPattern.FindString(text)
	if match == "" {
		return 0, false
	}
	return NormalizeNumber(match)
}

// ExtractNumbers returns every integer embedded in text, in order of appearance
func ExtractNumbers(text string) []int64 {
	var out []int64
	for _, match := range numberPattern.FindAllString(text, -1) {
		if n, ok := NormalizeNumber(match); ok {
			out = append(out, n)
		}
	}
	return out
}

// NormalizeNumber parses an already-scoped numeric capture, ignoring commas, dots and whitespace
func NormalizeNumber(s string) (int64, bool) {
	cleaned := strings.Map(func(r rune) rune {
		if r == ',' || r == '.' || unicode.IsSpace(r) {
			return -1
		}
		return r
	}, s)
	if cleaned == "" {
		return 0, false
	}

	n, err := strconv.ParseInt(cleaned, 10, 64)
	if err != nil {
		return 0, false
	}
	return n, true
}

// leadingInt parses the digits at the start of s after trimming
func leadingInt(s string) (int, bool) {
	s = strings.TrimSpace(s)
	end := 0
	for end < len(s) && s[end] >= '0' && s[end] <= '9' {
		end++
	}
	if end == 0 {
		return 0, false
	}
	n, err := strconv.Atoi(s[:end])
	if err != nil {
		return 0, false
	}
	return n, true
}

// collapseSpace folds whitespace runs into single spaces
func collapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// loadDocument parses html and strips nodes whose text never renders
func loadDocument(html string) (*goquery.Document, error) {
	if strings.TrimSpace(html) == "" {
		return nil, fmt.Errorf("%w: empty document", domain.ErrParseFailed)
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrParseFailed, err)
	}
	doc.Find("script, style, noscript, template").Remove()
	return doc, nil
}

func int64Ptr(v int64) *int64 { return &v }

func stringPtr(v string) *string { return &v }
