// internal/market/pairs.go
package market

import (
	"fmt"
	"strings"
)

// Pair - торговая пара вида BASE/QUOTE.
type Pair string

const (
	PairSOLUSD  Pair = "SOL/USD"
	PairSOLUSDC Pair = "SOL/USDC"
	PairSOLUSDT Pair = "SOL/USDT"
	PairBTCSOL  Pair = "BTC/SOL"
)

// SupportedPairs возвращает список поддерживаемых пар в стабильном порядке.
func SupportedPairs() []Pair {
	return []Pair{PairSOLUSD, PairSOLUSDC, PairSOLUSDT, PairBTCSOL}
}

// referencePrices - опорные цены на случай недоступности провайдера.
var referencePrices = map[Pair]float64{
	PairSOLUSD:  150.0,
	PairSOLUSDC: 149.8,
	PairSOLUSDT: 149.9,
}

const defaultReferencePrice = 100.0

// ErrUnsupportedPair возвращается для пар вне списка.
type ErrUnsupportedPair struct {
	Raw string
}

func (e *ErrUnsupportedPair) Error() string {
	return fmt.Sprintf("unsupported market pair: %s", e.Raw)
}

// ParsePair нормализует запись пары: регистр и разделители "-", "_", "/" не важны.
func ParsePair(raw string) (Pair, error) {
	normalized := strings.ToUpper(strings.TrimSpace(raw))
	normalized = strings.NewReplacer("-", "/", "_", "/").Replace(normalized)
	p := Pair(normalized)
	if !p.Supported() {
		return "", &ErrUnsupportedPair{Raw: raw}
	}
	return p, nil
}

// Supported сообщает, входит ли пара в список поддерживаемых.
func (p Pair) Supported() bool {
	for _, s := range SupportedPairs() {
		if s == p {
			return true
		}
	}
	return false
}

// Base возвращает базовый актив.
func (p Pair) Base() string {
	base, _, _ := strings.Cut(string(p), "/")
	return base
}

// Quote возвращает котируемый актив.
func (p Pair) Quote() string {
	_, quote, _ := strings.Cut(string(p), "/")
	return quote
}

func (p Pair) String() string {
	return string(p)
}

// ReferencePrice возвращает опорную цену пары.
func ReferencePrice(p Pair) float64 {
	if price, ok := referencePrices[p]; ok {
		return price
	}
	return defaultReferencePrice
}

// ReferenceTokenPrice - опорная цена токена в USD для исполнения сделок.
func ReferenceTokenPrice(token string) float64 {
	switch strings.ToUpper(token) {
	case "SOL":
		return 150.0
	case "BTC":
		return 60000.0
	default:
		return 1.0
	}
}
