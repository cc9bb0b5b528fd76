// internal/api/respond.go
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/rovshanmuradov/solana-market-nexus/internal/apperr"
	"github.com/rovshanmuradov/solana-market-nexus/internal/auth"
	"github.com/rovshanmuradov/solana-market-nexus/internal/market"
	"go.uber.org/zap"
)

const maxBodyBytes = 1 << 20

type errorBody struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v == nil {
		return
	}
	_ = json.NewEncoder(w).Encode(v)
}

// writeError переводит ошибку в статус и тело {"error": "..."}.
// Внутренние причины в ответ не попадают, только в лог.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	var unsupported *market.ErrUnsupportedPair
	if errors.As(err, &unsupported) {
		err = apperr.BadRequest("Invalid market pair")
	}

	kind := apperr.KindOf(err)
	if kind == apperr.KindInternal || kind == apperr.KindUnavailable {
		fields := []zap.Field{
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.String("request_id", requestIDFrom(r.Context())),
			zap.Error(err),
		}
		if userID, ok := auth.UserIDFrom(r.Context()); ok {
			fields = append(fields, zap.String("user_id", userID))
		}
		s.logger.Error("Request failed", fields...)
	}
	writeJSON(w, kind.HTTPStatus(), errorBody{Error: apperr.Message(err)})
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst interface{}) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return apperr.BadRequest("Invalid request body")
	}
	return nil
}

// queryInt читает неотрицательное целое из query; пустое значение - def.
func queryInt(r *http.Request, name string, def int) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 0 {
		return 0, apperr.BadRequestf("Invalid %s parameter", name)
	}
	return v, nil
}
