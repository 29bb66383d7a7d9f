package scrape

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"
)

// LiveAPISource pulls today's price data from the unofficial NEPSE JSON API.
// The API exposes separate top-gainers and top-losers endpoints; one fetch
// merges both into a single payload.
type LiveAPISource struct {
	baseURL     string
	gainersPath string
	losersPath  string
	httpClient  *http.Client
	logger      *zap.Logger
}

// LiveAPIConfig carries the per-source settings resolved from configuration.
type LiveAPIConfig struct {
	BaseURL            string
	GainersPath        string
	LosersPath         string
	Timeout            time.Duration
	InsecureSkipVerify bool
}

// NewLiveAPISource creates a live API source with its own scoped HTTP client.
func NewLiveAPISource(cfg LiveAPIConfig, logger *zap.Logger) *LiveAPISource {
	if cfg.GainersPath == "" {
		cfg.GainersPath = "/api/nots/top-ten/top-gainer"
	}
	if cfg.LosersPath == "" {
		cfg.LosersPath = "/api/nots/top-ten/top-loser"
	}
	return &LiveAPISource{
		baseURL:     cfg.BaseURL,
		gainersPath: cfg.GainersPath,
		losersPath:  cfg.LosersPath,
		httpClient:  newHTTPClient(cfg.Timeout, cfg.InsecureSkipVerify, logger),
		logger:      logger,
	}
}

// Name implements DataSource.
func (s *LiveAPISource) Name() string { return "live_api" }

// Fetch retrieves gainers and losers and merges them. A failure on either
// endpoint fails the whole attempt: a half payload would skew rankings.
func (s *LiveAPISource) Fetch(ctx context.Context) ([]RawRecord, error) {
	var merged []RawRecord
	for _, path := range []string{s.gainersPath, s.losersPath} {
		records, err := s.fetchList(ctx, s.baseURL+path)
		if err != nil {
			return nil, err
		}
		merged = append(merged, records...)
	}
	return merged, nil
}

func (s *LiveAPISource) fetchList(ctx context.Context, reqURL string) ([]RawRecord, error) {
	start := time.Now()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	setBrowserHeaders(req)
	req.Header.Set("Accept", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		s.logger.Warn("Live API request failed",
			zap.String("url", reqURL),
			zap.Duration("elapsed", time.Since(start)),
			zap.Error(err))
		return nil, classifyRequestError(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		s.logger.Warn("Live API returned unexpected status",
			zap.String("url", reqURL),
			zap.Int("status", resp.StatusCode),
			zap.Duration("elapsed", time.Since(start)))
		return nil, &UnexpectedStatusError{Code: resp.StatusCode}
	}

	records, err := decodeRecordList(resp.Body)
	if err != nil {
		s.logger.Warn("Live API body could not be decoded",
			zap.String("url", reqURL),
			zap.Error(err))
		return nil, ErrUnparsableBody
	}

	s.logger.Debug("Live API fetch succeeded",
		zap.String("url", reqURL),
		zap.Int("count", len(records)),
		zap.Duration("elapsed", time.Since(start)))
	return records, nil
}

// decodeRecordList accepts either a bare JSON array or an object wrapping the
// array under a conventional key; the unofficial API has shipped both shapes.
func decodeRecordList(r io.Reader) ([]RawRecord, error) {
	var raw interface{}
	if err := json.NewDecoder(r).Decode(&raw); err != nil {
		return nil, err
	}

	switch v := raw.(type) {
	case []interface{}:
		return toRecords(v)
	case map[string]interface{}:
		for _, key := range []string{"data", "content", "result"} {
			if list, ok := v[key].([]interface{}); ok {
				return toRecords(list)
			}
		}
	}
	return nil, fmt.Errorf("unrecognized payload shape")
}

func toRecords(list []interface{}) ([]RawRecord, error) {
	records := make([]RawRecord, 0, len(list))
	for _, item := range list {
		m, ok := item.(map[string]interface{})
		if !ok {
			continue
		}
		records = append(records, RawRecord(m))
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("payload contained no records")
	}
	return records, nil
}
