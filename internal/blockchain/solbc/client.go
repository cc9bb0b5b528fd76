// internal/blockchain/solbc/client.go
package solbc

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// ErrNoEndpoints возвращается, если список RPC пуст.
var ErrNoEndpoints = errors.New("no rpc endpoints configured")

// balanceRPC - часть *rpc.Client, нужная для запроса баланса.
type balanceRPC interface {
	GetBalance(ctx context.Context, account solana.PublicKey, commitment rpc.CommitmentType) (*rpc.GetBalanceResult, error)
}

// RPCRecorder получает длительность каждого RPC-вызова и отказы узлов.
type RPCRecorder interface {
	RecordRPCLatency(method, endpoint string, duration time.Duration)
	RecordRPCError(method, endpoint string)
}

type nopRecorder struct{}

func (nopRecorder) RecordRPCLatency(string, string, time.Duration) {}
func (nopRecorder) RecordRPCError(string, string)                  {}

type endpoint struct {
	url string
	rpc balanceRPC
}

// Client – тонкий адаптер к Solana RPC с перебором узлов по кругу.
type Client struct {
	endpoints  []*endpoint
	next       uint32
	commitment rpc.CommitmentType
	timeout    time.Duration
	retries    int
	metrics    RPCRecorder
	logger     *zap.Logger
}

// Options настраивает клиента.
type Options struct {
	Commitment     string
	RequestTimeout time.Duration
	Retries        int
	Metrics        RPCRecorder
}

// NewClient создаёт клиента для списка RPC URL.
func NewClient(rpcURLs []string, opts Options, logger *zap.Logger) (*Client, error) {
	if len(rpcURLs) == 0 {
		return nil, ErrNoEndpoints
	}
	endpoints := make([]*endpoint, 0, len(rpcURLs))
	for _, u := range rpcURLs {
		endpoints = append(endpoints, &endpoint{url: u, rpc: rpc.New(u)})
	}
	return newClient(endpoints, opts, logger), nil
}

func newClient(endpoints []*endpoint, opts Options, logger *zap.Logger) *Client {
	commitment := rpc.CommitmentType(opts.Commitment)
	if commitment == "" {
		commitment = rpc.CommitmentConfirmed
	}
	timeout := opts.RequestTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	metrics := opts.Metrics
	if metrics == nil {
		metrics = nopRecorder{}
	}
	return &Client{
		endpoints:  endpoints,
		commitment: commitment,
		timeout:    timeout,
		retries:    opts.Retries,
		metrics:    metrics,
		logger:     logger.Named("solbc-client"),
	}
}

func (c *Client) pick() *endpoint {
	i := atomic.AddUint32(&c.next, 1) - 1
	return c.endpoints[int(i)%len(c.endpoints)]
}

// GetBalance возвращает баланс адреса в SOL. При ошибке узла запрос
// повторяется на следующем узле.
func (c *Client) GetBalance(ctx context.Context, address string) (float64, error) {
	pubkey, err := ParseAddress(address)
	if err != nil {
		return 0, err
	}

	notify := func(err error, d time.Duration) {
		c.logger.Debug("Retrying GetBalance", zap.String("address", address), zap.Error(err), zap.Duration("backoff", d))
	}

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = 100 * time.Millisecond
	policy.MaxInterval = time.Second

	lamports, err := backoff.Retry(ctx, func() (uint64, error) {
		ep := c.pick()
		callCtx, cancel := context.WithTimeout(ctx, c.timeout)
		defer cancel()

		start := time.Now()
		result, err := ep.rpc.GetBalance(callCtx, pubkey, c.commitment)
		c.metrics.RecordRPCLatency("getBalance", ep.url, time.Since(start))
		if err != nil {
			c.metrics.RecordRPCError("getBalance", ep.url)
			return 0, fmt.Errorf("%s: %w", ep.url, err)
		}
		return result.Value, nil
	},
		backoff.WithBackOff(policy),
		backoff.WithMaxTries(uint(c.retries+1)),
		backoff.WithNotify(notify),
	)
	if err != nil {
		c.logger.Warn("GetBalance failed", zap.String("address", address), zap.Error(err))
		return 0, err
	}
	return LamportsToSOL(lamports), nil
}

// LamportsToSOL переводит лампорты в SOL без потери точности до округления в float.
func LamportsToSOL(lamports uint64) float64 {
	return decimal.NewFromUint64(lamports).Shift(-9).InexactFloat64()
}
