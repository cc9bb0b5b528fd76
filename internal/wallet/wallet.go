// ==================================
// File: internal/wallet/wallet.go
// ==================================
package wallet

import (
	"time"

	"github.com/rovshanmuradov/solana-market-nexus/internal/storage/models"
	"github.com/shopspring/decimal"
)

const (
	// StatusLowBalance выставляется кошельку с балансом ниже минимального.
	StatusLowBalance = "Low Balance"
	// AtRiskTrustScore - порог доверия, ниже которого кошелёк считается рискованным.
	AtRiskTrustScore = 80.0
	// TrustWindow - окно, за которое считаются сделки строки.
	TrustWindow = 24 * time.Hour
)

// Row - строка таблицы кошельков на дашборде.
type Row struct {
	ID                   string  `json:"id"`
	Address              string  `json:"address"`
	Label                *string `json:"label,omitempty"`
	AllocationPercentage float64 `json:"allocation_percentage"`
	Balance              float64 `json:"balance"`
	BalanceStale         bool    `json:"balance_stale,omitempty"`
	Status               string  `json:"status"`
	Trades24h            int     `json:"trades_24h"`
	Volume24h            float64 `json:"volume_24h"`
	TrustScore           float64 `json:"trust_score"`
}

// AtRisk сообщает, требует ли кошелёк внимания. Баланс, не полученный
// из сети, не считается низким.
func (r Row) AtRisk(minBalance float64) bool {
	lowBalance := !r.BalanceStale && r.Balance < minBalance
	return lowBalance || r.TrustScore < AtRiskTrustScore
}

// Balance - баланс кошелька и признак того, что он не получен из сети.
type Balance struct {
	SOL   float64
	Stale bool
}

// BuildRow собирает строку кошелька из баланса и сделок за последние сутки.
// В txs должны быть только сделки этого кошелька.
func BuildRow(w *models.Wallet, balance Balance, txs []*models.Transaction, minBalance float64) Row {
	volume := decimal.Zero
	successful := 0
	for _, tx := range txs {
		if tx.Status != models.TxStatusSuccess {
			continue
		}
		successful++
		volume = volume.Add(decimal.NewFromFloat(tx.Amount).Mul(decimal.NewFromFloat(tx.Price)))
	}

	status := w.Status
	if status == "" {
		status = models.WalletStatusActive
	}
	if !balance.Stale && balance.SOL < minBalance {
		status = StatusLowBalance
	}

	return Row{
		ID:                   w.ID,
		Address:              w.Address,
		Label:                w.Label,
		AllocationPercentage: w.AllocationPercentage,
		Balance:              balance.SOL,
		BalanceStale:         balance.Stale,
		Status:               status,
		Trades24h:            len(txs),
		Volume24h:            volume.Round(2).InexactFloat64(),
		TrustScore:           TrustScore(successful, len(txs)),
	}
}

// TrustScore - доля успешных сделок в процентах; без сделок доверие полное.
func TrustScore(successful, total int) float64 {
	if total == 0 {
		return 100
	}
	score := decimal.NewFromInt(int64(successful)).
		Div(decimal.NewFromInt(int64(total))).
		Mul(decimal.NewFromInt(100))
	return score.Round(2).InexactFloat64()
}

// Overview - сводка по всем кошелькам пользователя.
type Overview struct {
	TotalWallets      int     `json:"total_wallets"`
	TotalBalance      float64 `json:"total_balance"`
	WalletsAtRisk     int     `json:"wallets_at_risk"`
	AverageTrustScore float64 `json:"average_trust_score"`
	Trades24h         int     `json:"trades_24h"`
	Volume24h         float64 `json:"volume_24h"`
}

// Summarize считает сводку по строкам кошельков.
func Summarize(rows []Row, minBalance float64) Overview {
	ov := Overview{TotalWallets: len(rows)}
	if len(rows) == 0 {
		return ov
	}

	total := decimal.Zero
	volume := decimal.Zero
	trust := 0.0
	for _, r := range rows {
		total = total.Add(decimal.NewFromFloat(r.Balance))
		volume = volume.Add(decimal.NewFromFloat(r.Volume24h))
		trust += r.TrustScore
		ov.Trades24h += r.Trades24h
		if r.AtRisk(minBalance) {
			ov.WalletsAtRisk++
		}
	}

	ov.TotalBalance = total.InexactFloat64()
	ov.Volume24h = volume.Round(2).InexactFloat64()
	ov.AverageTrustScore = decimal.NewFromFloat(trust / float64(len(rows))).Round(2).InexactFloat64()
	return ov
}
