package parser

import (
	"fmt"
	"strings"
	"testing"

	"github.com/lebanonrates/backend/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func lottoHomeHTML(drawInfo string, balls ...int) string {
	var items strings.Builder
	for _, b := range balls {
		fmt.Fprintf(&items, "      <li class=\"ball\">%d</li>\n", b)
	}
	return fmt.Sprintf(`<html><body>
<div class="header"><a href="/">LLDJ</a></div>
<div class="homelotoresults">
  <h2 class="hometitle">Loto Latest Results</h2>
  <span class="drawinfo">%s</span>
  <ul class="loto ballslist">
%s  </ul>
</div>
</body></html>`, drawInfo, items.String())
}

const lottoResultsPageHTML = `<html><body>
<form>
  <input type="hidden" id="resultdateinput" class="loto" value="2384">
  <input type="text" id="chooseresultdrawdate" value="Draw # 2384 - 15 January, 2026">
</form>
<div class="drawresultheader">
  <ul class="list ballslist pseudoclear">
    <li class="ball">1</li>
    <li class="ball">20</li>
    <li class="ball">27</li>
    <li class="ball">29</li>
    <li class="ball">31</li>
    <li class="ball">37</li>
    <li class="ball">4</li>
  </ul>
</div>
</body></html>`

func TestParseLottoDraw(t *testing.T) {
	tests := []struct {
		name string
		html string
		want domain.LottoDraw
	}{
		{
			name: "home page section",
			html: lottoHomeHTML("Draw #2384 | 15/01/2026", 1, 20, 27, 29, 31, 37, 4),
			want: domain.LottoDraw{DrawNumber: 2384, DrawDate: "15/01/2026", Numbers: []int{1, 20, 27, 29, 31, 37, 4}},
		},
		{
			name: "dedicated results page",
			html: lottoResultsPageHTML,
			want: domain.LottoDraw{DrawNumber: 2384, DrawDate: "15/01/2026", Numbers: []int{1, 20, 27, 29, 31, 37, 4}},
		},
		{
			name: "out of range balls are dropped",
			html: lottoHomeHTML("Draw #2384 | 15/01/2026", 1, 20, 99, 0, 27, 29, 31, 37, 4),
			want: domain.LottoDraw{DrawNumber: 2384, DrawDate: "15/01/2026", Numbers: []int{1, 20, 27, 29, 31, 37, 4}},
		},
		{
			name: "single digit date parts are padded",
			html: lottoHomeHTML("Draw #2390 | 3/2/2026", 5, 6, 7, 8, 9, 10, 11),
			want: domain.LottoDraw{DrawNumber: 2390, DrawDate: "03/02/2026", Numbers: []int{5, 6, 7, 8, 9, 10, 11}},
		},
		{
			name: "month name date",
			html: lottoHomeHTML("Draw #2391 | 5 Feb, 2026", 2, 12, 22, 32, 42, 43, 44),
			want: domain.LottoDraw{DrawNumber: 2391, DrawDate: "05/02/2026", Numbers: []int{2, 12, 22, 32, 42, 43, 44}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseLottoDraw(tt.html)
			require.NoError(t, err)
			assert.Equal(t, tt.want, *got)
		})
	}
}

func TestParseLottoDraw_Rejected(t *testing.T) {
	tests := []struct {
		name string
		html string
	}{
		{name: "empty document", html: ""},
		{name: "too few balls", html: lottoHomeHTML("Draw #2384 | 15/01/2026", 1, 20, 27)},
		{name: "too many balls", html: lottoHomeHTML("Draw #2384 | 15/01/2026", 1, 20, 27, 29, 31, 37, 4, 8)},
		{name: "missing date", html: lottoHomeHTML("Draw #2384", 1, 20, 27, 29, 31, 37, 4)},
		{name: "missing draw number", html: lottoHomeHTML("15/01/2026", 1, 20, 27, 29, 31, 37, 4)},
		{name: "unrelated page", html: `<html><body><h2>Welcome</h2><p>No results today</p></body></html>`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseLottoDraw(tt.html)
			assert.Nil(t, got)
			assert.ErrorIs(t, err, domain.ErrParseFailed)
		})
	}
}

func TestMonthNumber(t *testing.T) {
	tests := []struct {
		token string
		want  int
	}{
		{"January", 1},
		{"jan", 1},
		{"Feb", 2},
		{"Mar", 3},
		{"May", 5},
		{"Sept", 9},
		{"december", 12},
		{"ja", 0},
		{"foo", 0},
	}

	for _, tt := range tests {
		t.Run(tt.token, func(t *testing.T) {
			assert.Equal(t, tt.want, monthNumber(tt.token))
		})
	}
}
