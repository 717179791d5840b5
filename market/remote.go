package market

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/scriptrack/scriptrack/log"
	"github.com/scriptrack/scriptrack/portfolio"
)

// The feed format: `// [{"e": "NSE", "t": "INFY", "l": "1,520.30", "c": "+12.10", "cp": "0.80"}]`
type jsonQuote struct {
	Exchange  string `json:"e"`
	Ticker    string `json:"t"`
	Last      string `json:"l"`
	Change    string `json:"c"`
	ChangePct string `json:"cp"`
}

func (q jsonQuote) symbol() string {
	if q.Exchange == "" {
		return q.Ticker
	}
	return q.Exchange + ":" + q.Ticker
}

func (q jsonQuote) toQuote() (SymbolQuote, error) {
	sq := SymbolQuote{Symbol: q.symbol()}
	var err error
	if sq.Rate, err = portfolio.ParseAmount(q.Last); err != nil {
		return sq, fmt.Errorf("invalid price %q for %s: %w", q.Last, sq.Symbol, err)
	}
	if sq.Change, err = portfolio.ParseAmount(q.Change); err != nil {
		return sq, fmt.Errorf("invalid change %q for %s: %w", q.Change, sq.Symbol, err)
	}
	if sq.ChangePct, err = portfolio.ParseAmount(q.ChangePct); err != nil {
		return sq, fmt.Errorf("invalid change pct %q for %s: %w", q.ChangePct, sq.Symbol, err)
	}
	return sq, nil
}

// DecodeQuotesJson decodes a quote feed body, which may be prefixed by "//".
func DecodeQuotesJson(body []byte) ([]SymbolQuote, error) {
	body = bytes.TrimSpace(body)
	body = bytes.TrimSpace(bytes.TrimPrefix(body, []byte("//")))

	var raw []jsonQuote
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("Failed to decode quotes: %w", err)
	}
	quotes := make([]SymbolQuote, 0, len(raw))
	for _, r := range raw {
		q, err := r.toQuote()
		if err != nil {
			return nil, err
		}
		quotes = append(quotes, q)
	}
	return quotes, nil
}

type HTTPQuoteLoader struct {
	BaseURL string
	Client  *http.Client
	// Per attempt.
	Timeout  time.Duration
	Attempts int
	// Wait before the n-th retry is n * Backoff.
	Backoff time.Duration
}

func NewHTTPQuoteLoader(baseURL string, timeout time.Duration, attempts int, backoff time.Duration) *HTTPQuoteLoader {
	return &HTTPQuoteLoader{
		BaseURL:  baseURL,
		Client:   http.DefaultClient,
		Timeout:  timeout,
		Attempts: attempts,
		Backoff:  backoff,
	}
}

func (l *HTTPQuoteLoader) quotesUrl(symbols []string) (string, error) {
	u, err := url.Parse(l.BaseURL)
	if err != nil {
		return "", fmt.Errorf("Invalid quotes url %q: %w", l.BaseURL, err)
	}
	q := u.Query()
	q.Set("q", strings.Join(symbols, ","))
	u.RawQuery = q.Encode()
	return u.String(), nil
}

func (l *HTTPQuoteLoader) fetchOnce(ctx context.Context, quotesUrl string) ([]SymbolQuote, error) {
	if l.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, l.Timeout)
		defer cancel()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, quotesUrl, nil)
	if err != nil {
		return nil, err
	}
	client := l.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("Error getting quotes: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("Error status: %s", resp.Status)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("Error reading quotes: %w", err)
	}
	return DecodeQuotesJson(body)
}

// GetRemoteQuotes fetches all symbols in one request, retrying failed
// attempts. Cancelling ctx aborts immediately.
func (l *HTTPQuoteLoader) GetRemoteQuotes(ctx context.Context, symbols []string) ([]SymbolQuote, error) {
	if len(symbols) == 0 {
		return nil, nil
	}
	quotesUrl, err := l.quotesUrl(symbols)
	if err != nil {
		return nil, err
	}
	attempts := l.Attempts
	if attempts < 1 {
		attempts = 1
	}

	var lastErr error
	for attempt := 0; attempt < attempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(l.Backoff * time.Duration(attempt)):
			}
		}
		log.L().Debug("fetching quotes", zap.String("url", quotesUrl), zap.Int("attempt", attempt+1))
		quotes, err := l.fetchOnce(ctx, quotesUrl)
		if err == nil {
			return quotes, nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		lastErr = err
		log.L().Warn("quote fetch failed", zap.Int("attempt", attempt+1), zap.Error(err))
	}
	return nil, fmt.Errorf("Failed to fetch quotes after %d attempts: %w", attempts, lastErr)
}
