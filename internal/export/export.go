package export

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/rovshanmuradov/solana-market-nexus/internal/monitor"
	"github.com/rovshanmuradov/solana-market-nexus/internal/storage/models"
	"go.uber.org/zap"
)

// ExportFormat represents the export file format
type ExportFormat string

const (
	FormatCSV  ExportFormat = "csv"
	FormatJSON ExportFormat = "json"
)

// ParseFormat разбирает формат выгрузки; пустая строка означает CSV.
func ParseFormat(raw string) (ExportFormat, error) {
	switch ExportFormat(strings.ToLower(strings.TrimSpace(raw))) {
	case "", FormatCSV:
		return FormatCSV, nil
	case FormatJSON:
		return FormatJSON, nil
	default:
		return "", fmt.Errorf("unsupported format: %s", raw)
	}
}

// ContentType возвращает MIME-тип формата.
func (f ExportFormat) ContentType() string {
	if f == FormatJSON {
		return "application/json"
	}
	return "text/csv"
}

// ExportOptions configures the export behavior
type ExportOptions struct {
	Format       ExportFormat
	StartTime    time.Time
	EndTime      time.Time
	TokenFilter  string // Filter by token symbol
	ActionFilter string // Filter by action (buy/sell)
	OnlySuccess  bool   // Only export successful trades
}

// CSVHeaders returns the header row of a transaction export
func CSVHeaders() []string {
	return []string{
		"id", "created_at", "wallet_address", "action", "token",
		"amount", "price", "total", "status", "slippage", "transaction_hash",
	}
}

func csvRow(tx *models.Transaction) []string {
	slippage := ""
	if tx.Slippage != nil {
		slippage = strconv.FormatFloat(*tx.Slippage, 'f', -1, 64)
	}
	hash := ""
	if tx.TransactionHash != nil {
		hash = *tx.TransactionHash
	}
	return []string{
		tx.ID,
		tx.CreatedAt.UTC().Format(time.RFC3339),
		tx.WalletAddress,
		tx.Action,
		tx.Token,
		strconv.FormatFloat(tx.Amount, 'f', -1, 64),
		strconv.FormatFloat(tx.Price, 'f', -1, 64),
		strconv.FormatFloat(tx.Notional(), 'f', 2, 64),
		tx.Status,
		slippage,
		hash,
	}
}

// TradeExporter handles trade export functionality
type TradeExporter struct {
	logger *zap.Logger
	now    func() time.Time
}

// NewTradeExporter creates a new trade exporter
func NewTradeExporter(logger *zap.Logger) *TradeExporter {
	return &TradeExporter{
		logger: logger.Named("export"),
		now:    time.Now,
	}
}

// ExportTrades writes filtered transactions to w, oldest first, and
// returns the number of exported rows.
func (te *TradeExporter) ExportTrades(w io.Writer, txs []*models.Transaction, options ExportOptions) (int, error) {
	// Filter trades
	filtered := te.filterTrades(txs, options)

	// Sort by timestamp
	sort.SliceStable(filtered, func(i, j int) bool {
		return filtered[i].CreatedAt.Before(filtered[j].CreatedAt)
	})

	var err error
	switch options.Format {
	case FormatCSV, "":
		err = te.exportToCSV(w, filtered)
	case FormatJSON:
		err = te.exportToJSON(w, filtered)
	default:
		err = fmt.Errorf("unsupported format: %s", options.Format)
	}
	if err != nil {
		return 0, err
	}

	te.logger.Debug("Trades exported",
		zap.Int("count", len(filtered)),
		zap.String("format", string(options.Format)))
	return len(filtered), nil
}

// filterTrades applies filters to the trade list
func (te *TradeExporter) filterTrades(txs []*models.Transaction, options ExportOptions) []*models.Transaction {
	filtered := make([]*models.Transaction, 0, len(txs))

	for _, tx := range txs {
		// Time filter
		if !options.StartTime.IsZero() && tx.CreatedAt.Before(options.StartTime) {
			continue
		}
		if !options.EndTime.IsZero() && tx.CreatedAt.After(options.EndTime) {
			continue
		}
		if options.TokenFilter != "" && !strings.EqualFold(tx.Token, options.TokenFilter) {
			continue
		}
		if options.ActionFilter != "" && !strings.EqualFold(tx.Action, options.ActionFilter) {
			continue
		}
		if options.OnlySuccess && tx.Status != models.TxStatusSuccess {
			continue
		}
		filtered = append(filtered, tx)
	}

	return filtered
}

// Filename builds the download name of an export
func (te *TradeExporter) Filename(options ExportOptions) string {
	prefix := "transactions_all"
	if options.ActionFilter != "" {
		prefix = fmt.Sprintf("transactions_%s", strings.ToLower(options.ActionFilter))
	}
	return fmt.Sprintf("%s_%s.%s", prefix, te.now().UTC().Format("20060102_150405"), options.Format)
}

func (te *TradeExporter) exportToCSV(w io.Writer, txs []*models.Transaction) error {
	writer := csv.NewWriter(w)

	if err := writer.Write(CSVHeaders()); err != nil {
		return fmt.Errorf("failed to write CSV headers: %w", err)
	}
	for _, tx := range txs {
		if err := writer.Write(csvRow(tx)); err != nil {
			return fmt.Errorf("failed to write trade: %w", err)
		}
	}

	writer.Flush()
	return writer.Error()
}

func (te *TradeExporter) exportToJSON(w io.Writer, txs []*models.Transaction) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")

	exportData := struct {
		ExportTime time.Time                `json:"export_time"`
		TradeCount int                      `json:"trade_count"`
		Summary    monitor.TransactionStats `json:"summary"`
		Trades     []*models.Transaction    `json:"trades"`
	}{
		ExportTime: te.now().UTC(),
		TradeCount: len(txs),
		Summary:    monitor.Summarize(txs),
		Trades:     txs,
	}

	if err := encoder.Encode(exportData); err != nil {
		return fmt.Errorf("failed to encode JSON: %w", err)
	}
	return nil
}
