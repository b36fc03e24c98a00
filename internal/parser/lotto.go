package parser

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/go-playground/validator/v10"
	"github.com/lebanonrates/backend/internal/domain"
)

const (
	lottoBallCount = 7
	lottoBallMin   = 1
	lottoBallMax   = 49

	lottoHeadingSelector  = "h2, h3, .hometitle, .titleinfo, .drawinfo, .draw"
	drawIDInputSelector   = "input#resultdateinput.loto"
	drawDateInputSelector = "input#chooseresultdrawdate"
)

var (
	lottoHeadingPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)loto.*latest.*results?`),
		regexp.MustCompile(`(?i)results?.*of.*draw`),
	}
	drawNumberPattern  = regexp.MustCompile(`(?i)draw\s*#?\s*(\d+)`)
	numericDatePattern = regexp.MustCompile(`(\d{1,2})/(\d{1,2})/(\d{4})`)
	textDatePattern    = regexp.MustCompile(`(?i)(\d{1,2})\s+([a-z]+),?\s+(\d{4})`)

	// ball selectors scoped to a "latest results" section on the home page
	sectionBallSelectors = []string{
		"ul.loto.ballslist li.ball",
		"ul.ballslist.loto li.ball",
		".loto.ballslist li.ball",
		"ul.loto li.ball",
		".homelotoresults li.ball",
		".loto li.ball",
	}

	// ball selectors applied to the whole dedicated results page
	pageBallSelectors = []string{
		"ul.loto.ballslist li.ball",
		"ul.ballslist.loto li.ball",
		".loto.ballslist li.ball",
		"ul.loto li.ball",
		"ul.ballslist.pseudoclear li.ball",
		".drawresultheader ul.ballslist li.ball",
	}

	monthNames = []string{
		"january", "february", "march", "april", "may", "june",
		"july", "august", "september", "october", "november", "december",
	}

	drawValidator = validator.New()
)

// ParseLottoDraw extracts the latest Loto draw from either the lottery home page
// or its dedicated results page. Anything short of a complete draw is an error.
func ParseLottoDraw(html string) (*domain.LottoDraw, error) {
	doc, err := loadDocument(html)
	if err != nil {
		return nil, err
	}

	draw := &domain.LottoDraw{}
	found := parseLottoSection(doc, draw)
	if !found || len(draw.Numbers) < lottoBallCount {
		parseLottoPage(doc, draw)
	}

	if err := drawValidator.Struct(draw); err != nil {
		return nil, fmt.Errorf("%w: incomplete draw: %v", domain.ErrParseFailed, err)
	}
	return draw, nil
}

// parseLottoSection reads the home page block introduced by a "latest results" heading
func parseLottoSection(doc *goquery.Document, draw *domain.LottoDraw) bool {
	found := false
	doc.Find(lottoHeadingSelector).EachWithBreak(func(_ int, heading *goquery.Selection) bool {
		if !isLottoHeading(heading.Text()) {
			return true
		}
		found = true

		container := heading.Closest(sectionContainerSelector)
		if container.Length() == 0 {
			container = heading.Parent()
		}
		text := container.Text()

		if draw.DrawNumber == 0 {
			draw.DrawNumber = matchDrawNumber(text)
		}
		if draw.DrawDate == "" {
			draw.DrawDate = matchNumericDate(text)
		}
		if draw.DrawDate == "" {
			draw.DrawDate = matchTextDate(text)
		}

		if balls := ballNumbers(container, sectionBallSelectors); len(balls) > 0 {
			draw.Numbers = balls
			return false
		}
		return true
	})
	return found
}

// parseLottoPage fills whatever the section pass left missing from page-wide markers
func parseLottoPage(doc *goquery.Document, draw *domain.LottoDraw) {
	bodyText := doc.Find("body").Text()

	if draw.DrawNumber == 0 {
		if input := doc.Find(drawIDInputSelector).First(); input.Length() > 0 {
			draw.DrawNumber, _ = leadingInt(input.AttrOr("value", ""))
		} else {
			draw.DrawNumber = matchDrawNumber(bodyText)
		}
	}

	if draw.DrawDate == "" {
		if input := doc.Find(drawDateInputSelector).First(); input.Length() > 0 {
			draw.DrawDate = matchTextDate(input.AttrOr("value", ""))
		}
		if draw.DrawDate == "" {
			draw.DrawDate = matchNumericDate(bodyText)
		}
	}

	if balls := ballNumbers(doc.Selection, pageBallSelectors); len(balls) > 0 {
		draw.Numbers = balls
	}
}

func isLottoHeading(text string) bool {
	text = collapseSpace(text)
	for _, re := range lottoHeadingPatterns {
		if re.MatchString(text) {
			return true
		}
	}
	return false
}

// ballNumbers returns the in-range balls of the first selector that yields any
func ballNumbers(scope *goquery.Selection, selectors []string) []int {
	for _, sel := range selectors {
		var balls []int
		scope.Find(sel).Each(func(_ int, ball *goquery.Selection) {
			n, ok := leadingInt(ball.Text())
			if ok && n >= lottoBallMin && n <= lottoBallMax {
				balls = append(balls, n)
			}
		})
		if len(balls) > 0 {
			return balls
		}
	}
	return nil
}

func matchDrawNumber(text string) int {
	m := drawNumberPattern.FindStringSubmatch(text)
	if m == nil {
		return 0
	}
	n, _ := leadingInt(m[1])
	return n
}

// matchNumericDate finds a D/M/YYYY date and zero-pads it
func matchNumericDate(text string) string {
	m := numericDatePattern.FindStringSubmatch(text)
	if m == nil {
		return ""
	}
	day, _ := leadingInt(m[1])
	month, _ := leadingInt(m[2])
	return fmt.Sprintf("%02d/%02d/%s", day, month, m[3])
}

// matchTextDate finds a "15 January, 2026" style date
func matchTextDate(text string) string {
	m := textDatePattern.FindStringSubmatch(text)
	if m == nil {
		return ""
	}
	month := monthNumber(m[2])
	if month == 0 {
		return ""
	}
	day, _ := leadingInt(m[1])
	return fmt.Sprintf("%02d/%02d/%s", day, month, m[3])
}

// monthNumber resolves a month name or an abbreviation of at least three letters
func monthNumber(token string) int {
	token = strings.ToLower(token)
	if len(token) < 3 {
		return 0
	}
	for i, name := range monthNames {
		if strings.HasPrefix(name, token) {
			return i + 1
		}
	}
	return 0
}
