// internal/wallet/import.go
package wallet

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/rovshanmuradov/solana-market-nexus/internal/blockchain/solbc"
)

// ImportRecord - кошелёк, прочитанный из CSV.
type ImportRecord struct {
	Line       int
	Label      string
	Address    string
	Allocation float64
}

// ImportError описывает отклонённую строку CSV.
type ImportError struct {
	Line   int    `json:"line"`
	Reason string `json:"reason"`
}

func (e ImportError) Error() string {
	return fmt.Sprintf("line %d: %s", e.Line, e.Reason)
}

// ReadCSV читает кошельки из CSV с колонками: [Label, Address, Allocation].
// Первая строка считается заголовком. Некорректные строки не прерывают
// чтение и возвращаются списком ошибок.
func ReadCSV(r io.Reader) ([]ImportRecord, []ImportError, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	// заголовок
	_, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return nil, nil, fmt.Errorf("CSV file is empty or missing data")
	}
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read CSV: %w", err)
	}

	var (
		records []ImportRecord
		rejects []ImportError
		line    = 1
	)
	for {
		fields, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		line++
		if err != nil {
			return nil, nil, fmt.Errorf("failed to read CSV: %w", err)
		}

		rec, reason := parseRecord(line, fields)
		if reason != "" {
			rejects = append(rejects, ImportError{Line: line, Reason: reason})
			continue
		}
		records = append(records, rec)
	}

	if len(records) == 0 && len(rejects) == 0 {
		return nil, nil, fmt.Errorf("CSV file is empty or missing data")
	}
	return records, rejects, nil
}

func parseRecord(line int, fields []string) (ImportRecord, string) {
	if len(fields) < 2 || len(fields) > 3 {
		return ImportRecord{}, fmt.Sprintf("expected 2 or 3 columns, got %d", len(fields))
	}

	rec := ImportRecord{
		Line:    line,
		Label:   strings.TrimSpace(fields[0]),
		Address: strings.TrimSpace(fields[1]),
	}
	if !solbc.IsValidAddress(rec.Address) {
		return ImportRecord{}, "Invalid Solana address"
	}

	if len(fields) == 3 && strings.TrimSpace(fields[2]) != "" {
		alloc, err := strconv.ParseFloat(strings.TrimSpace(fields[2]), 64)
		if err != nil {
			return ImportRecord{}, fmt.Sprintf("invalid allocation: %s", fields[2])
		}
		if alloc < 0 || alloc > 100 {
			return ImportRecord{}, "allocation must be between 0 and 100"
		}
		rec.Allocation = alloc
	}
	return rec, ""
}
