// internal/api/handlers.go
package api

import (
	"bytes"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/rovshanmuradov/solana-market-nexus/internal/apperr"
	"github.com/rovshanmuradov/solana-market-nexus/internal/export"
	"github.com/rovshanmuradov/solana-market-nexus/internal/market"
	"github.com/rovshanmuradov/solana-market-nexus/internal/service"
	"github.com/rovshanmuradov/solana-market-nexus/internal/storage/models"
	"github.com/rovshanmuradov/solana-market-nexus/internal/strategy"
)

const defaultTriggeredLimit = 50

// ---- auth ----

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req service.RegisterRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	resp, err := s.auth.Register(r.Context(), req)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, resp)
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req service.LoginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	resp, err := s.auth.Login(r.Context(), req)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// ---- wallets ----

func (s *Server) listWallets(w http.ResponseWriter, r *http.Request, userID string) {
	wallets, err := s.wallets.List(r.Context(), userID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, wallets)
}

func (s *Server) addWallet(w http.ResponseWriter, r *http.Request, userID string) {
	var req service.AddWalletRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	wallet, err := s.wallets.Add(r.Context(), userID, req)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, wallet)
}

func (s *Server) removeWallet(w http.ResponseWriter, r *http.Request, userID string) {
	if err := s.wallets.Remove(r.Context(), userID, r.PathValue("id")); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) walletBalance(w http.ResponseWriter, r *http.Request, userID string) {
	balance, err := s.wallets.Balance(r.Context(), userID, r.PathValue("id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, balance)
}

func (s *Server) walletRows(w http.ResponseWriter, r *http.Request, userID string) {
	q := r.URL.Query()
	rows, err := s.wallets.Rows(r.Context(), userID, q.Get("sort"), q.Get("dir"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rows)
}

func (s *Server) walletOverview(w http.ResponseWriter, r *http.Request, userID string) {
	overview, err := s.wallets.Overview(r.Context(), userID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, overview)
}

func (s *Server) importWallets(w http.ResponseWriter, r *http.Request, userID string) {
	body := http.MaxBytesReader(w, r.Body, maxBodyBytes)
	result, err := s.wallets.Import(r.Context(), userID, body)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// ---- trading ----

func (s *Server) listStrategies(w http.ResponseWriter, r *http.Request, userID string) {
	strategies, err := s.trading.ListStrategies(r.Context(), userID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, strategies)
}

func (s *Server) createStrategy(w http.ResponseWriter, r *http.Request, userID string) {
	var params strategy.Params
	if err := decodeJSON(w, r, &params); err != nil {
		s.writeError(w, r, err)
		return
	}
	st, err := s.trading.CreateStrategy(r.Context(), userID, params)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, st)
}

func (s *Server) updateStrategy(w http.ResponseWriter, r *http.Request, userID string) {
	var params strategy.Params
	if err := decodeJSON(w, r, &params); err != nil {
		s.writeError(w, r, err)
		return
	}
	st, err := s.trading.UpdateStrategy(r.Context(), userID, r.PathValue("id"), params)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

func (s *Server) strategyTemplates(w http.ResponseWriter, r *http.Request, _ string) {
	writeJSON(w, http.StatusOK, s.trading.Templates())
}

func (s *Server) executeTrade(w http.ResponseWriter, r *http.Request, userID string) {
	var req service.TradeRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	tx, err := s.trading.ExecuteTrade(r.Context(), userID, req)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, tx)
}

func (s *Server) listTransactions(w http.ResponseWriter, r *http.Request, userID string) {
	limit, err := queryInt(r, "limit", 0)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	txs, err := s.trading.ListTransactions(r.Context(), userID, service.TransactionQuery{
		Limit:    limit,
		WalletID: r.URL.Query().Get("wallet_id"),
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, txs)
}

func (s *Server) transactionStats(w http.ResponseWriter, r *http.Request, userID string) {
	stats, err := s.trading.TransactionStats(r.Context(), userID, r.URL.Query().Get("wallet_id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

// exportOptions разбирает format, token, action, only_success, start и end (RFC3339).
func exportOptions(r *http.Request) (export.ExportOptions, error) {
	q := r.URL.Query()
	format, err := export.ParseFormat(q.Get("format"))
	if err != nil {
		return export.ExportOptions{}, apperr.BadRequest("Format must be csv or json")
	}
	opts := export.ExportOptions{
		Format:       format,
		TokenFilter:  q.Get("token"),
		ActionFilter: q.Get("action"),
	}
	if raw := q.Get("only_success"); raw != "" {
		v, err := strconv.ParseBool(raw)
		if err != nil {
			return opts, apperr.BadRequest("Invalid only_success parameter")
		}
		opts.OnlySuccess = v
	}
	for name, dst := range map[string]*time.Time{"start": &opts.StartTime, "end": &opts.EndTime} {
		if raw := q.Get(name); raw != "" {
			t, err := time.Parse(time.RFC3339, raw)
			if err != nil {
				return opts, apperr.BadRequestf("Invalid %s parameter", name)
			}
			*dst = t
		}
	}
	return opts, nil
}

func (s *Server) exportTransactions(w http.ResponseWriter, r *http.Request, userID string) {
	opts, err := exportOptions(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	var buf bytes.Buffer
	if _, err := s.trading.ExportTransactions(r.Context(), userID, r.URL.Query().Get("wallet_id"), &buf, opts); err != nil {
		s.writeError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", opts.Format.ContentType())
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", s.trading.ExportFilename(opts)))
	w.WriteHeader(http.StatusOK)
	_, _ = buf.WriteTo(w)
}

// ---- market ----

func (s *Server) orderBook(w http.ResponseWriter, r *http.Request, _ string) {
	pair, err := market.ParsePair(r.PathValue("pair"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	book, err := s.market.OrderBook(r.Context(), pair)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, book)
}

func (s *Server) marketPrice(w http.ResponseWriter, r *http.Request, _ string) {
	pair, err := market.ParsePair(r.PathValue("pair"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	price, err := s.market.Price(r.Context(), pair)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, price)
}

func (s *Server) marketData(w http.ResponseWriter, r *http.Request, _ string) {
	pair, err := market.ParsePair(r.PathValue("symbol"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	record, err := s.market.MarketData(r.Context(), pair)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, record)
}

func (s *Server) latestPrices(w http.ResponseWriter, r *http.Request, _ string) {
	prices, err := s.market.LatestPrices(r.Context())
	if err != nil {
		s.writeError(w, r, apperr.Internal("Database error", err))
		return
	}
	writeJSON(w, http.StatusOK, prices)
}

// ---- alerts ----

func (s *Server) listAlerts(w http.ResponseWriter, r *http.Request, userID string) {
	alerts, err := s.alerts.List(r.Context(), userID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, alerts)
}

func (s *Server) createAlert(w http.ResponseWriter, r *http.Request, userID string) {
	var req service.AlertRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	alert, err := s.alerts.Create(r.Context(), userID, req)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, alert)
}

func (s *Server) deleteAlert(w http.ResponseWriter, r *http.Request, userID string) {
	if err := s.alerts.Delete(r.Context(), userID, r.PathValue("id")); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) triggeredAlerts(w http.ResponseWriter, r *http.Request, userID string) {
	limit, err := queryInt(r, "limit", defaultTriggeredLimit)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, s.alerts.Triggered(userID, limit))
}

// ---- settings ----

func (s *Server) getSettings(w http.ResponseWriter, r *http.Request, userID string) {
	settings, err := s.settings.Get(r.Context(), userID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, settings)
}

func (s *Server) updateSettings(w http.ResponseWriter, r *http.Request, userID string) {
	var patch models.SettingsPatch
	if err := decodeJSON(w, r, &patch); err != nil {
		s.writeError(w, r, err)
		return
	}
	settings, err := s.settings.Update(r.Context(), userID, patch)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, settings)
}
