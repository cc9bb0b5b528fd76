package monitor

import (
	"github.com/rovshanmuradov/solana-market-nexus/internal/storage/models"
	"github.com/shopspring/decimal"
)

// TransactionStats - сводка журнала транзакций для дашборда.
type TransactionStats struct {
	TotalTransactions int     `json:"total_transactions"`
	SuccessfulCount   int     `json:"successful_count"`
	FailedCount       int     `json:"failed_count"`
	PendingCount      int     `json:"pending_count"`
	FailureRate       float64 `json:"failure_rate"`
	BuyCount          int     `json:"buy_count"`
	SellCount         int     `json:"sell_count"`
	TotalVolume       float64 `json:"total_volume"`
	AverageSlippage   float64 `json:"average_slippage"`
}

// Summarize считает статистику транзакций:
//   - доля неудачных = failed / total × 100, 0 для пустого списка;
//   - покупки и продажи считаются только по успешным сделкам;
//   - средний slippage берётся по транзакциям, где он указан.
func Summarize(txs []*models.Transaction) TransactionStats {
	stats := TransactionStats{TotalTransactions: len(txs)}
	if len(txs) == 0 {
		return stats
	}

	volume := decimal.Zero
	slippageSum := decimal.Zero
	slippageCount := 0

	for _, tx := range txs {
		switch tx.Status {
		case models.TxStatusSuccess:
			stats.SuccessfulCount++
			volume = volume.Add(decimal.NewFromFloat(tx.Amount).Mul(decimal.NewFromFloat(tx.Price)))
			switch tx.Action {
			case models.ActionBuy:
				stats.BuyCount++
			case models.ActionSell:
				stats.SellCount++
			}
		case models.TxStatusFailed:
			stats.FailedCount++
		case models.TxStatusPending:
			stats.PendingCount++
		}

		if tx.Slippage != nil {
			slippageSum = slippageSum.Add(decimal.NewFromFloat(*tx.Slippage))
			slippageCount++
		}
	}

	// Без округления: точность отображения выбирает клиент.
	stats.FailureRate = float64(stats.FailedCount) * 100 / float64(len(txs))
	stats.TotalVolume = volume.Round(2).InexactFloat64()
	if slippageCount > 0 {
		stats.AverageSlippage = slippageSum.Div(decimal.NewFromInt(int64(slippageCount))).Round(4).InexactFloat64()
	}
	return stats
}
