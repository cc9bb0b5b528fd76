// internal/market/provider.go
package market

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"
	"go.uber.org/zap"
)

// Идентификаторы монет у провайдера.
const (
	CoinSolana  = "solana"
	CoinBitcoin = "bitcoin"
	CoinUSDC    = "usd-coin"
	CoinUSDT    = "tether"
)

// CoinQuote - котировка монеты в USD.
type CoinQuote struct {
	USD       float64 `json:"usd"`
	Volume24h float64 `json:"usd_24h_vol"`
	Change24h float64 `json:"usd_24h_change"`
}

// QuoteSource загружает котировки монет.
type QuoteSource interface {
	FetchQuotes(ctx context.Context) (map[string]CoinQuote, error)
}

// APIError - ответ провайдера с кодом ошибки.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("market api error %d: %s", e.StatusCode, e.Message)
}

// IsRetryable сообщает, имеет ли смысл повторять запрос.
func (e *APIError) IsRetryable() bool {
	return e.StatusCode >= 500 || e.StatusCode == http.StatusTooManyRequests
}

// CoinGeckoClient обращается к эндпоинту simple/price.
type CoinGeckoClient struct {
	baseURL    string
	httpClient *http.Client
	retries    int
	logger     *zap.Logger
}

// NewCoinGeckoClient создает клиента провайдера рыночных данных.
func NewCoinGeckoClient(baseURL string, timeout time.Duration, retries int, logger *zap.Logger) *CoinGeckoClient {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &CoinGeckoClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
		retries:    retries,
		logger:     logger.Named("coingecko"),
	}
}

// FetchQuotes загружает котировки SOL, BTC, USDC и USDT с повторами.
func (c *CoinGeckoClient) FetchQuotes(ctx context.Context) (map[string]CoinQuote, error) {
	notify := func(err error, d time.Duration) {
		c.logger.Warn("Retrying market data request", zap.Error(err), zap.Duration("backoff", d))
	}

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = 200 * time.Millisecond
	policy.MaxInterval = 2 * time.Second

	return backoff.Retry(ctx, func() (map[string]CoinQuote, error) {
		quotes, err := c.fetchOnce(ctx)
		if err == nil {
			return quotes, nil
		}
		var apiErr *APIError
		if errors.As(err, &apiErr) && !apiErr.IsRetryable() {
			return nil, backoff.Permanent(err)
		}
		return nil, err
	},
		backoff.WithBackOff(policy),
		backoff.WithMaxTries(uint(c.retries+1)),
		backoff.WithNotify(notify),
	)
}

func (c *CoinGeckoClient) fetchOnce(ctx context.Context) (map[string]CoinQuote, error) {
	query := url.Values{}
	query.Set("ids", strings.Join([]string{CoinSolana, CoinBitcoin, CoinUSDC, CoinUSDT}, ","))
	query.Set("vs_currencies", "usd")
	query.Set("include_24hr_vol", "true")
	query.Set("include_24hr_change", "true")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/simple/price?"+query.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode >= 400 {
		return nil, &APIError{StatusCode: resp.StatusCode, Message: http.StatusText(resp.StatusCode)}
	}

	var quotes map[string]CoinQuote
	if err := json.Unmarshal(body, &quotes); err != nil {
		return nil, backoff.Permanent(fmt.Errorf("decode response: %w", err))
	}
	if q, ok := quotes[CoinSolana]; !ok || q.USD <= 0 {
		return nil, backoff.Permanent(errors.New("response has no solana price"))
	}
	return quotes, nil
}
