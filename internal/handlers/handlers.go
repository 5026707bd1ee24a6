package handlers

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"tendertrack/db"
	"tendertrack/internal/blob"
	"tendertrack/internal/tracking"
)

// Handler связывает HTTP-слой с хранилищем, файловым хранилищем и трекером
// поставок.
type Handler struct {
	Store   StorageInterface
	Tracker TrackerInterface
	Blobs   blob.Store
	Secret  []byte
	Log     *zap.Logger
}

func NewHandler(store StorageInterface, tracker TrackerInterface, blobs blob.Store, secret []byte, log *zap.Logger) *Handler {
	return &Handler{Store: store, Tracker: tracker, Blobs: blobs, Secret: secret, Log: log}
}

// TrackerInterface — ядро трекинга, как его видят хендлеры.
type TrackerInterface interface {
	RecordStageArtifact(ctx context.Context, consigneeID int, stage tracking.Stage, in tracking.ArtifactInput) (*db.StageArtifact, error)
	RemoveStageLocator(ctx context.Context, consigneeID int, stage tracking.Stage, locator string) error
	ResolveAccessory(ctx context.Context, consigneeID int, item string) (db.AccessoryState, error)
}

// PingHandler отвечает "ok" как проверка живости сервера.
func (h *Handler) PingHandler(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok"))
}

// writeJSON кодирует v с JSON content type.
func writeJSON(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

// writeError переводит типизированные ошибки трекера в статус-коды.
// Всё неожиданное — 500 с общим сообщением.
func (h *Handler) writeError(w http.ResponseWriter, err error, fallback string) {
	switch {
	case errors.Is(err, tracking.ErrNotFound), errors.Is(err, sql.ErrNoRows):
		http.Error(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, tracking.ErrValidation):
		http.Error(w, err.Error(), http.StatusBadRequest)
	default:
		h.Log.Error(fallback, zap.Error(err))
		http.Error(w, fallback, http.StatusInternalServerError)
	}
}

// RequestLogger пишет одну структурированную строку на запрос.
func RequestLogger(log *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)
			log.Info("request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Duration("took", time.Since(start)))
		})
	}
}
