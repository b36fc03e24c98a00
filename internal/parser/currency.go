package parser

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
	"github.com/lebanonrates/backend/internal/domain"
)

// Plausible LBP per USD bounds, exclusive on both ends
const (
	minRateLBP int64 = 10000
	maxRateLBP int64 = 1000000
)

// Proximity window around a candidate number, in characters
const (
	contextBefore = 50
	contextAfter  = 100
)

// RateQuote is a partial buy/sell extraction
type RateQuote struct {
	Buy  *int64
	Sell *int64
}

func (q RateQuote) complete() bool {
	return q.Buy != nil && q.Sell != nil
}

// merge fills only the sides still missing in q
func (q RateQuote) merge(other RateQuote) RateQuote {
	if q.Buy == nil {
		q.Buy = other.Buy
	}
	if q.Sell == nil {
		q.Sell = other.Sell
	}
	return q
}

type ratePage struct {
	doc  *goquery.Document
	text string
}

type rateStrategy struct {
	name string
	run  func(p *ratePage) RateQuote
}

// rateStrategies run in order until both sides are known
var rateStrategies = []rateStrategy{
	{name: "phrase", run: phraseQuote},
	{name: "structure", run: structuralQuote},
	{name: "proximity", run: proximityQuote},
	{name: "range", run: rangeQuote},
}

var (
	buyPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)Buy\s+1\s+USD\s+at\s+([\d,.]+)\s*LBP`),
		regexp.MustCompile(`(?i)Buy\s+1\s+\$\s+at\s+([\d,.]+)\s*LBP`),
		regexp.MustCompile(`شراء\s+1\s+دولار\s+بسعر\s+([\d,.]+)`),
		regexp.MustCompile(`(?i)Buy.*?(\d{1,3}(?:[,.]?\d{3})+).*?LBP`),
	}
	sellPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)Sell\s+1\s+USD\s+at\s+([\d,.]+)\s*LBP`),
		regexp.MustCompile(`(?i)Sell\s+1\s+\$\s+at\s+([\d,.]+)\s*LBP`),
		regexp.MustCompile(`بيع\s+1\s+دولار\s+بسعر\s+([\d,.]+)`),
		regexp.MustCompile(`(?i)Sell.*?(\d{1,3}(?:[,.]?\d{3})+).*?LBP`),
	}
)

const rateElementSelector = `[class*="buy"], [class*="sell"], [class*="rate"], [id*="rate"], [data-buy], [data-sell]`

// ParseExchangeRate extracts the USD/LBP buy and sell quote from a rate page
func ParseExchangeRate(html string) (domain.ExchangeRate, error) {
	doc, err := loadDocument(html)
	if err != nil {
		return domain.ExchangeRate{}, err
	}

	page := &ratePage{
		doc:  doc,
		text: collapseSpace(doc.Find("body").Text()),
	}
	quote := resolveQuote(page, rateStrategies)

	if quote.Buy == nil && quote.Sell == nil {
		return domain.ExchangeRate{}, fmt.Errorf("%w: no USD/LBP quote found", domain.ErrParseFailed)
	}

	var rate int64
	if quote.Buy != nil {
		rate = *quote.Buy
	} else {
		rate = *quote.Sell
	}

	out := domain.ExchangeRate{Rate: rate, Buy: rate, Sell: rate}
	if quote.Buy != nil {
		out.Buy = *quote.Buy
	}
	if quote.Sell != nil {
		out.Sell = *quote.Sell
	}
	return out, nil
}

func resolveQuote(page *ratePage, strategies []rateStrategy) RateQuote {
	var quote RateQuote
	for _, s := range strategies {
		if quote.complete() {
			break
		}
		quote = quote.merge(s.run(page))
	}
	return quote
}

func inRateRange(n int64) bool {
	return n > minRateLBP && n < maxRateLBP
}

func phraseQuote(p *ratePage) RateQuote {
	return RateQuote{
		Buy:  firstPhraseMatch(p.text, buyPatterns),
		Sell: firstPhraseMatch(p.text, sellPatterns),
	}
}

// firstPhraseMatch tries each pattern in turn; an out-of-range capture moves on to the next one
func firstPhraseMatch(text string, patterns []*regexp.Regexp) *int64 {
	for _, re := range patterns {
		m := re.FindStringSubmatch(text)
		if m == nil {
			continue
		}
		if n, ok := NormalizeNumber(m[1]); ok && inRateRange(n) {
			return int64Ptr(n)
		}
	}
	return nil
}

func structuralQuote(p *ratePage) RateQuote {
	var q RateQuote
	p.doc.Find(rateElementSelector).Each(func(_ int, s *goquery.Selection) {
		n, ok := ExtractNumber(s.Text())
		if !ok || !inRateRange(n) {
			return
		}

		switch elementRole(s) {
		case "buy":
			if q.Buy == nil {
				q.Buy = int64Ptr(n)
			}
		case "sell":
			if q.Sell == nil {
				q.Sell = int64Ptr(n)
			}
		}
	})
	return q
}

// elementRole classifies a rate element by its class, id and data attributes
func elementRole(s *goquery.Selection) string {
	class := strings.ToLower(s.AttrOr("class", ""))
	id := strings.ToLower(s.AttrOr("id", ""))

	if strings.Contains(class, "buy") || strings.Contains(id, "buy") || s.AttrOr("data-buy", "") != "" {
		return "buy"
	}
	if strings.Contains(class, "sell") || strings.Contains(id, "sell") || s.AttrOr("data-sell", "") != "" {
		return "sell"
	}
	return ""
}

type rateCandidate struct {
	value   int64
	context string
}

// rateCandidates lists every in-range number in text with its surrounding context
func rateCandidates(text string) []rateCandidate {
	var out []rateCandidate
	for _, loc := range numberPattern.FindAllStringIndex(text, -1) {
		n, ok := NormalizeNumber(text[loc[0]:loc[1]])
		if !ok || !inRateRange(n) {
			continue
		}
		out = append(out, rateCandidate{
			value:   n,
			context: strings.ToLower(runeWindow(text, loc[0], contextBefore, contextAfter)),
		})
	}
	return out
}

// runeWindow returns up to before runes preceding offset and after runes from offset on
func runeWindow(text string, offset, before, after int) string {
	start := offset
	for i := 0; i < before && start > 0; i++ {
		_, size := utf8.DecodeLastRuneInString(text[:start])
		start -= size
	}
	end := offset
	for i := 0; i < after && end < len(text); i++ {
		_, size := utf8.DecodeRuneInString(text[end:])
		end += size
	}
	return text[start:end]
}

func proximityQuote(p *ratePage) RateQuote {
	var q RateQuote
	for _, c := range rateCandidates(p.text) {
		if q.Buy == nil && (strings.Contains(c.context, "buy") || strings.Contains(c.context, "شراء")) {
			q.Buy = int64Ptr(c.value)
		}
		if q.Sell == nil && (strings.Contains(c.context, "sell") || strings.Contains(c.context, "بيع")) {
			q.Sell = int64Ptr(c.value)
		}
	}
	return q
}

// rangeQuote assumes buy is below sell and takes the two smallest distinct plausible values
func rangeQuote(p *ratePage) RateQuote {
	seen := make(map[int64]bool)
	var values []int64
	for _, c := range rateCandidates(p.text) {
		if !seen[c.value] {
			seen[c.value] = true
			values = append(values, c.value)
		}
	}
	sort.Slice(values, func(i, j int) bool { return values[i] < values[j] })

	switch {
	case len(values) >= 2:
		return RateQuote{Buy: int64Ptr(values[0]), Sell: int64Ptr(values[1])}
	case len(values) == 1:
		return RateQuote{Buy: int64Ptr(values[0]), Sell: int64Ptr(values[0])}
	default:
		return RateQuote{}
	}
}
