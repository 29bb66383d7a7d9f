package scrape

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"
)

// HTMLScrapeSource scrapes the live-trading table from a financial portal
// (merolagani-style markup). It is the secondary source when the JSON API is
// unavailable.
type HTMLScrapeSource struct {
	pageURL    string
	httpClient *http.Client
	logger     *zap.Logger
}

// NewHTMLScrapeSource creates a portal scraper with its own HTTP client.
func NewHTMLScrapeSource(pageURL string, timeout time.Duration, logger *zap.Logger) *HTMLScrapeSource {
	return &HTMLScrapeSource{
		pageURL:    pageURL,
		httpClient: newHTTPClient(timeout, false, logger),
		logger:     logger,
	}
}

// Name implements DataSource.
func (s *HTMLScrapeSource) Name() string { return "html_scrape" }

// Fetch downloads the portal page and extracts stock rows from the first
// table that looks like a live-trading table.
func (s *HTMLScrapeSource) Fetch(ctx context.Context) ([]RawRecord, error) {
	start := time.Now()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.pageURL, nil)
	if err != nil {
		return nil, ErrConnection
	}
	setBrowserHeaders(req)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		s.logger.Warn("Portal request failed",
			zap.String("url", s.pageURL),
			zap.Duration("elapsed", time.Since(start)),
			zap.Error(err))
		return nil, classifyRequestError(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		s.logger.Warn("Portal returned unexpected status",
			zap.String("url", s.pageURL),
			zap.Int("status", resp.StatusCode))
		return nil, &UnexpectedStatusError{Code: resp.StatusCode}
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, ErrUnparsableBody
	}

	records := parseTradingTable(doc)
	if len(records) == 0 {
		s.logger.Warn("No live-trading table found in portal page", zap.String("url", s.pageURL))
		return nil, ErrNoMatchingElement
	}

	s.logger.Debug("Portal scrape succeeded",
		zap.Int("count", len(records)),
		zap.Duration("elapsed", time.Since(start)))
	return records, nil
}

// headerIndexes maps the trading-table header cells to raw record keys. Only
// symbol, LTP and % change are positionally reliable across portal revisions;
// the page has carried Open/High/Low/Qty between them, so every column is
// resolved by its header name and unrecognized ones are ignored.
func headerIndexes(header *goquery.Selection) map[string]int {
	idx := make(map[string]int)
	header.Find("th, td").Each(func(i int, cell *goquery.Selection) {
		text := strings.ToLower(strings.TrimSpace(cell.Text()))
		switch {
		case strings.Contains(text, "symbol"):
			idx["symbol"] = i
		case strings.Contains(text, "ltp"):
			idx["ltp"] = i
		case strings.Contains(text, "%") || strings.Contains(text, "percent"):
			idx["percentageChange"] = i
		case strings.Contains(text, "prev"):
			idx["previousClose"] = i
		case strings.Contains(text, "change"):
			// plain "Change" column; the percent variant matched above
			idx["pointChange"] = i
		}
	})
	return idx
}

// parseTradingTable walks every table on the page and keeps rows from the
// first one whose header names a symbol and an LTP column, extracting only
// the fields that header actually declares.
func parseTradingTable(doc *goquery.Document) []RawRecord {
	var records []RawRecord

	doc.Find("table").EachWithBreak(func(_ int, table *goquery.Selection) bool {
		idx := headerIndexes(table.Find("tr").First())
		symbolCol, hasSymbol := idx["symbol"]
		_, hasLTP := idx["ltp"]
		if !hasSymbol || !hasLTP {
			return true // keep looking
		}

		table.Find("tr").Each(func(i int, row *goquery.Selection) {
			if i == 0 {
				return // header row
			}
			cols := row.Find("td")
			if cols.Length() <= idx["ltp"] || cols.Length() <= symbolCol {
				return
			}

			rec := RawRecord{}
			for key, col := range idx {
				if col < cols.Length() {
					rec[key] = strings.TrimSpace(cols.Eq(col).Text())
				}
			}
			if title, ok := cols.Eq(symbolCol).Find("a").Attr("title"); ok {
				rec["securityName"] = strings.TrimSpace(title)
			}
			records = append(records, rec)
		})
		return false
	})

	return records
}
