// Package holdings recovers a best-effort list of positions from the rendered
// portfolio page. Results are advisory: they may be incomplete and may
// contain false positives.
package holdings

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
)

// Source tags the strategy that produced a record.
type Source string

const (
	SourceStructured Source = "structured"
	SourceHeuristic  Source = "heuristic"
)

var (
	tickerRe     = regexp.MustCompile(`^[A-Z0-9]{3,5}$`)
	hasLetterRe  = regexp.MustCompile(`[A-Z]`)
	tokenRe      = regexp.MustCompile(`\b[A-Z]{3,5}\b`)
	whitespaceRe = regexp.MustCompile(`\s+`)
)

const (
	rowSelector  = `tr, [role="row"]`
	cellSelector = `td, th, [role="cell"], [role="gridcell"]`
)

// Options tune extraction.
type Options struct {
	// IgnoreTokens are upper-case words the heuristic strategy never reports.
	IgnoreTokens []string `yaml:"ignore_tokens"`
	// Currency is the ISO code used to render position values.
	Currency string `yaml:"currency"`
}

// DefaultOptions returns the ignore set and currency for an ASX brokerage.
func DefaultOptions() Options {
	return Options{
		IgnoreTokens: []string{
			// currencies
			"AUD", "USD", "NZD", "EUR", "GBP", "CAD", "JPY", "HKD", "SGD", "CNY",
			// instrument types and venues
			"ETF", "ETFS", "ASX", "NYSE", "LIC", "REIT", "CDI", "ADR", "FUND", "CASH",
			// trade actions
			"BUY", "SELL", "HOLD", "LIMIT", "MARKET", "ORDER",
			// page chrome
			"TOTAL", "VALUE", "UNITS", "PRICE", "COST", "GAIN", "LOSS", "CHANGE",
			"FAQ", "HELP", "MENU", "HOME", "LOG", "OUT", "NEW", "ALL", "THE", "AND", "FOR",
		},
		Currency: "AUD",
	}
}

// Extract parses renderedHTML and returns the positions it can find. The
// structured strategy reads table rows; only when it yields nothing does the
// heuristic strategy mine upper-case tokens from the visible text. An empty
// result is not an error.
func Extract(renderedHTML string, opts Options) ([]Record, error) {
	root, err := html.Parse(strings.NewReader(renderedHTML))
	if err != nil {
		return nil, fmt.Errorf("parse rendered page: %w", err)
	}
	doc := goquery.NewDocumentFromNode(root)

	structured := extractStructured(doc, opts)
	if len(structured) > 0 {
		return Merge(structured, nil), nil
	}
	return Merge(nil, extractHeuristic(doc, opts)), nil
}

func extractStructured(doc *goquery.Document, opts Options) []Record {
	var out []Record
	doc.Find(rowSelector).Each(func(_ int, row *goquery.Selection) {
		cells := rowCells(row)
		if len(cells) < 3 {
			return
		}
		ticker := cells[0]
		if !IsTicker(ticker) {
			return
		}
		rec := Record{Ticker: ticker, RawRow: cells, Source: SourceStructured}
		rec.fillNumbers(cells[1:], opts.Currency)
		out = append(out, rec)
	})
	return out
}

// rowCells returns the normalized text of the cell-like children of row.
// ARIA rows built from plain divs count every element child as a cell.
func rowCells(row *goquery.Selection) []string {
	cells := row.ChildrenFiltered(cellSelector)
	if cells.Length() == 0 && goquery.NodeName(row) != "tr" {
		cells = row.Children()
	}
	texts := make([]string, 0, cells.Length())
	cells.Each(func(_ int, c *goquery.Selection) {
		texts = append(texts, normalize(c.Text()))
	})
	return texts
}

func extractHeuristic(doc *goquery.Document, opts Options) []Record {
	body := doc.Find("body")
	if body.Length() == 0 {
		return nil
	}
	body = body.Clone()
	body.Find("script, style, noscript, template").Remove()

	ignore := make(map[string]struct{}, len(opts.IgnoreTokens))
	for _, t := range opts.IgnoreTokens {
		ignore[strings.ToUpper(strings.TrimSpace(t))] = struct{}{}
	}

	text := visibleText(body)
	var out []Record
	seen := make(map[string]struct{})
	for _, tok := range tokenRe.FindAllString(text, -1) {
		if _, skip := ignore[tok]; skip {
			continue
		}
		if _, dup := seen[tok]; dup {
			continue
		}
		seen[tok] = struct{}{}
		out = append(out, Record{Ticker: tok, Source: SourceHeuristic})
	}
	return out
}

// visibleText flattens sel so adjacent elements never glue their words
// together, which would hide tokens from the word-boundary regex.
func visibleText(sel *goquery.Selection) string {
	var b strings.Builder
	for _, n := range sel.Nodes {
		collectText(n, &b)
	}
	return b.String()
}

func collectText(n *html.Node, b *strings.Builder) {
	if n.Type == html.TextNode {
		b.WriteString(n.Data)
		b.WriteByte(' ')
		return
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		collectText(c, b)
	}
}

// IsTicker reports whether s looks like an exchange code: 3 to 5 upper-case
// letters or digits with at least one letter.
func IsTicker(s string) bool {
	return tickerRe.MatchString(s) && hasLetterRe.MatchString(s)
}

func normalize(s string) string {
	return strings.TrimSpace(whitespaceRe.ReplaceAllString(s, " "))
}
