// internal/wallet/sort.go
package wallet

import (
	"fmt"
	"sort"
	"strings"
)

// Direction - направление сортировки таблицы.
type Direction string

const (
	Asc  Direction = "asc"
	Desc Direction = "desc"
)

// Колонки таблицы кошельков.
const (
	ColumnAddress    = "address"
	ColumnLabel      = "label"
	ColumnStatus     = "status"
	ColumnBalance    = "balance"
	ColumnAllocation = "allocation_percentage"
	ColumnTrades     = "trades_24h"
	ColumnVolume     = "volume_24h"
	ColumnTrust      = "trust_score"
)

var numericColumns = map[string]func(Row) float64{
	ColumnBalance:    func(r Row) float64 { return r.Balance },
	ColumnAllocation: func(r Row) float64 { return r.AllocationPercentage },
	ColumnTrades:     func(r Row) float64 { return float64(r.Trades24h) },
	ColumnVolume:     func(r Row) float64 { return r.Volume24h },
	ColumnTrust:      func(r Row) float64 { return r.TrustScore },
}

var textColumns = map[string]func(Row) string{
	ColumnAddress: func(r Row) string { return r.Address },
	ColumnStatus:  func(r Row) string { return r.Status },
	ColumnLabel: func(r Row) string {
		if r.Label == nil {
			return ""
		}
		return *r.Label
	},
}

// ParseDirection разбирает направление; пустая строка - по убыванию.
func ParseDirection(raw string) (Direction, error) {
	switch Direction(strings.ToLower(strings.TrimSpace(raw))) {
	case "", Desc:
		return Desc, nil
	case Asc:
		return Asc, nil
	default:
		return "", fmt.Errorf("invalid sort direction: %s", raw)
	}
}

// ValidColumn сообщает, можно ли сортировать по колонке.
func ValidColumn(column string) bool {
	_, numeric := numericColumns[column]
	_, text := textColumns[column]
	return numeric || text
}

// SortRows сортирует строки на месте: числовые колонки сравниваются как
// числа, остальные лексикографически. Сортировка стабильная.
func SortRows(rows []Row, column string, dir Direction) error {
	var less func(a, b Row) bool
	if num, ok := numericColumns[column]; ok {
		less = func(a, b Row) bool { return num(a) < num(b) }
	} else if text, ok := textColumns[column]; ok {
		less = func(a, b Row) bool { return text(a) < text(b) }
	} else {
		return fmt.Errorf("unknown sort column: %s", column)
	}

	sort.SliceStable(rows, func(i, j int) bool {
		if dir == Asc {
			return less(rows[i], rows[j])
		}
		return less(rows[j], rows[i])
	})
	return nil
}
