package parser

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/lebanonrates/backend/internal/domain"
)

// RawGoldItem is one entry of the bullion dealer's price feed
type RawGoldItem struct {
	Name  string
	Price string
}

// UnmarshalJSON accepts name|itemname and itempr|itemprice|price, as strings or numbers.
// Entries that are not objects decode to an empty item, which normalization skips.
func (r *RawGoldItem) UnmarshalJSON(b []byte) error {
	*r = RawGoldItem{}
	trimmed := bytes.TrimSpace(b)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return nil
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(trimmed, &fields); err != nil {
		return err
	}
	r.Name = firstField(fields, "name", "itemname")
	r.Price = firstField(fields, "itempr", "itemprice", "price")
	return nil
}

func firstField(fields map[string]json.RawMessage, keys ...string) string {
	for _, key := range keys {
		raw, ok := fields[key]
		if !ok {
			continue
		}
		var s string
		if err := json.Unmarshal(raw, &s); err == nil {
			if s != "" {
				return s
			}
			continue
		}
		var n json.Number
		dec := json.NewDecoder(bytes.NewReader(raw))
		dec.UseNumber()
		if err := dec.Decode(&n); err != nil || n.String() == "" {
			continue
		}
		// exponent forms such as 4.35e6 would not survive the digit filter in parseGoldPrice
		if v, err := strconv.ParseFloat(n.String(), 64); err == nil {
			return strconv.FormatFloat(v, 'f', -1, 64)
		}
		return n.String()
	}
	return ""
}

type goldRule struct {
	key      string
	label    string
	keywords []string
}

// goldRules are evaluated in order; the first rule whose keywords all occur wins
var goldRules = []goldRule{
	{key: "gold_14k_1g_buy", label: "We Buy 1g Gold 14 Karat", keywords: []string{"14", "karat"}},
	{key: "gold_18k_1g_buy", label: "We Buy 1g Gold 18 karat", keywords: []string{"18", "karat"}},
	{key: "gold_21k_1g_buy", label: "We Buy 1g Gold 21 Karat", keywords: []string{"21", "karat"}},
	{key: "gold_24k_1g_buy", label: "We Buy 1g Gold 24 Karat", keywords: []string{"24", "karat"}},
	{key: "gold_lira_8g_buy", label: "We Buy Gold Coin 8g (LIRA)", keywords: []string{"lira", "8g"}},
	{key: "silver_999_1g_buy", label: "We Buy 1g Silver 999", keywords: []string{"silver", "999"}},
}

// GoldKeys lists every normalized key in output order
func GoldKeys() []string {
	keys := make([]string, len(goldRules))
	for i, rule := range goldRules {
		keys[i] = rule.key
	}
	return keys
}

// GoldKey maps a raw dealer item name onto its normalized key
func GoldKey(name string) (string, bool) {
	lower := strings.ToLower(strings.TrimSpace(name))
	if lower == "" {
		return "", false
	}
	for _, rule := range goldRules {
		if containsAll(lower, rule.keywords) {
			return rule.key, true
		}
	}
	return "", false
}

func containsAll(s string, words []string) bool {
	for _, w := range words {
		if !strings.Contains(s, w) {
			return false
		}
	}
	return true
}

// ParseGoldPayload decodes the dealer feed, which must be a JSON array
func ParseGoldPayload(body []byte) ([]RawGoldItem, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 || trimmed[0] != '[' {
		return nil, fmt.Errorf("%w: expected JSON array", domain.ErrParseFailed)
	}

	var items []RawGoldItem
	if err := json.Unmarshal(trimmed, &items); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrParseFailed, err)
	}
	return items, nil
}

// parseGoldPrice keeps digits, dots and minus signs before parsing
func parseGoldPrice(s string) (float64, bool) {
	cleaned := strings.Map(func(r rune) rune {
		if (r >= '0' && r <= '9') || r == '.' || r == '-' {
			return r
		}
		return -1
	}, s)
	if cleaned == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(cleaned, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

// NormalizeGold maps raw dealer entries onto the fixed set of expected items.
// USD prices are derived only when usdRate is positive.
func NormalizeGold(raw []RawGoldItem, usdRate float64, fetchedAt time.Time) domain.GoldSnapshot {
	matched := make(map[string]domain.GoldItem, len(goldRules))
	for _, entry := range raw {
		key, ok := GoldKey(entry.Name)
		if !ok {
			continue
		}
		if _, seen := matched[key]; seen {
			continue
		}
		price, ok := parseGoldPrice(entry.Price)
		if !ok {
			continue
		}
		lbp := int64(math.Round(price))
		matched[key] = domain.GoldItem{
			Key:      key,
			PriceLBP: &lbp,
			RawName:  stringPtr(entry.Name),
			RawPrice: stringPtr(entry.Price),
		}
	}

	items := make([]domain.GoldItem, 0, len(goldRules))
	for _, rule := range goldRules {
		item, ok := matched[rule.key]
		if !ok {
			item = domain.GoldItem{Key: rule.key}
		}
		item.Label = rule.label
		items = append(items, item)
	}

	snapshot := domain.GoldSnapshot{
		Source:    domain.GoldSourceLebanor,
		FetchedAt: fetchedAt,
		Items:     items,
	}
	return snapshot.WithUSDRate(usdRate)
}
