package parser

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/lebanonrates/backend/internal/domain"
)

var (
	fuelSectionPattern = regexp.MustCompile(`(?i)today\s+fuel\s+prices`)
	unl95Pattern       = regexp.MustCompile(`(?i)UNL\s*95\s*([0-9,]+)\s*LBP`)
	unl98Pattern       = regexp.MustCompile(`(?i)UNL\s*98\s*([0-9,]+)\s*LBP`)
	lpgPattern         = regexp.MustCompile(`(?i)LPG\s*10\s*KG\s*([0-9,]+)\s*LBP`)
	dieselLabelPattern = regexp.MustCompile(`(?i)Diesel\s*Oil`)
	dieselStopPattern  = regexp.MustCompile(`(?i)LPG|UNL|HOW CAN WE HELP`)
)

const (
	sectionContainerSelector = "div, section, article, main"
	fuelNoteSelector         = `.fuel-note, [class*="note"]`
)

// ParseFuelPrices extracts today's fuel prices from the distributor home page.
// Missing fields stay nil; the call fails only when nothing was found.
func ParseFuelPrices(html string) (*domain.FuelPriceSet, error) {
	doc, err := loadDocument(html)
	if err != nil {
		return nil, err
	}

	var prices domain.FuelPriceSet
	for _, area := range fuelSectionAreas(doc) {
		prices = extractFuel(area.Text(), area)
		if !prices.IsEmpty() {
			break
		}
	}

	if prices.IsEmpty() {
		body := doc.Find("body")
		prices = extractFuel(body.Text(), body)
	}

	if prices.IsEmpty() {
		return nil, fmt.Errorf("%w: no fuel prices found", domain.ErrParseFailed)
	}
	return &prices, nil
}

// fuelSectionAreas returns the containers of the innermost elements titled "Today fuel prices"
func fuelSectionAreas(doc *goquery.Document) []*goquery.Selection {
	var areas []*goquery.Selection
	for _, s := range innermostMatching(doc.Find("body"), fuelSectionPattern) {
		area := s.Closest(sectionContainerSelector)
		if area.Length() == 0 {
			area = s.Parent()
		}
		areas = append(areas, area)
	}
	return areas
}

// innermostMatching returns descendants of scope whose text matches re
// while none of their child elements do
func innermostMatching(scope *goquery.Selection, re *regexp.Regexp) []*goquery.Selection {
	var out []*goquery.Selection
	scope.Find("*").Each(func(_ int, s *goquery.Selection) {
		if !re.MatchString(s.Text()) {
			return
		}
		children := s.Children()
		for i := 0; i < children.Length(); i++ {
			if re.MatchString(children.Eq(i).Text()) {
				return
			}
		}
		out = append(out, s)
	})
	return out
}

func extractFuel(text string, scope *goquery.Selection) domain.FuelPriceSet {
	var prices domain.FuelPriceSet
	prices.UNL95LBP = capturePrice(unl95Pattern, text)
	prices.UNL98LBP = capturePrice(unl98Pattern, text)
	prices.LPG10KgLBP = capturePrice(lpgPattern, text)

	if note := dieselNoteFromElements(scope); note != "" {
		prices.DieselNote = stringPtr(note)
	} else if note := dieselNoteFromText(text); note != "" {
		prices.DieselNote = stringPtr(note)
	}
	return prices
}

func capturePrice(re *regexp.Regexp, text string) *int64 {
	m := re.FindStringSubmatch(text)
	if m == nil {
		return nil
	}
	if n, ok := NormalizeNumber(m[1]); ok {
		return int64Ptr(n)
	}
	return nil
}

// dieselNoteFromElements looks for a note element inside the innermost "Diesel Oil"
// label or among the siblings that follow it
func dieselNoteFromElements(scope *goquery.Selection) string {
	labels := innermostMatching(scope, dieselLabelPattern)
	if len(labels) == 0 {
		return ""
	}
	label := labels[0]

	if text := noteText(label.Find(fuelNoteSelector).First()); text != "" {
		return text
	}

	var found string
	label.NextAll().EachWithBreak(func(_ int, sibling *goquery.Selection) bool {
		note := sibling
		if !sibling.Is(fuelNoteSelector) {
			note = sibling.Find(fuelNoteSelector).First()
		}
		found = noteText(note)
		return found == ""
	})
	return found
}

func noteText(note *goquery.Selection) string {
	if note.Length() == 0 {
		return ""
	}
	return collapseSpace(note.Text())
}

// dieselNoteFromText takes the first line of free text after the "Diesel Oil" label,
// cut at the next fuel label
func dieselNoteFromText(text string) string {
	loc := dieselLabelPattern.FindStringIndex(text)
	if loc == nil {
		return ""
	}

	rest := strings.TrimLeft(text[loc[1]:], " \t\r\n")
	if i := strings.IndexByte(rest, '\n'); i >= 0 {
		rest = rest[:i]
	}
	if stop := dieselStopPattern.FindStringIndex(rest); stop != nil {
		rest = rest[:stop[0]]
	}
	return collapseSpace(rest)
}
