package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/gobwas/ws"
	"github.com/goccy/go-json"
	"go.uber.org/zap"

	"github.com/alexlondon07/cryptostream/cmd/api/internal/cacheaside"
	"github.com/alexlondon07/cryptostream/cmd/api/internal/hub"
	"github.com/alexlondon07/cryptostream/cmd/api/internal/repository"
)

const dateLayout = "2006-01-02"

type symbolsResponse struct {
	Symbols []string `json:"symbols"`
	Count   int      `json:"count"`
	Message string   `json:"message"`
}

type errorResponse struct {
	Error string `json:"error"`
}

type Handler struct {
	store       repository.CryptoStore
	coordinator *cacheaside.Coordinator
	alertHub    *hub.Hub
	logger      *zap.Logger
}

func NewHandler(store repository.CryptoStore, coordinator *cacheaside.Coordinator, alertHub *hub.Hub, logger *zap.Logger) *Handler {
	return &Handler{
		store:       store,
		coordinator: coordinator,
		alertHub:    alertHub,
		logger:      logger,
	}
}

// Routes wires every endpoint onto a fresh mux.
func (h *Handler) Routes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/v1/crypto/symbols", h.getSymbols)
	mux.HandleFunc("GET /api/v1/crypto/prices", h.getAllPrices)
	mux.HandleFunc("GET /api/v1/crypto/prices/{symbol}", h.getPrice)
	mux.HandleFunc("GET /api/v1/crypto/stats/{symbol}", h.getStats)
	mux.HandleFunc("GET /api/v1/news/{date}", h.getNews)
	mux.HandleFunc("GET /ws/alerts", h.streamAlerts)
	return mux
}

func (h *Handler) getSymbols(w http.ResponseWriter, r *http.Request) {
	symbols, err := h.store.ListSymbols(r.Context())
	if err != nil {
		h.serverError(w, "list symbols", err)
		return
	}
	h.writeJSON(w, http.StatusOK, symbolsResponse{
		Symbols: symbols,
		Count:   len(symbols),
		Message: "Available cryptocurrency symbols",
	})
}

func (h *Handler) getAllPrices(w http.ResponseWriter, r *http.Request) {
	events, err := h.store.GetAllCurrentPrices(r.Context())
	if err != nil {
		h.serverError(w, "get all prices", err)
		return
	}
	h.writeJSON(w, http.StatusOK, events)
}

func (h *Handler) getPrice(w http.ResponseWriter, r *http.Request) {
	symbol := r.PathValue("symbol")
	event, err := h.store.GetCurrentPrice(r.Context(), symbol)
	if errors.Is(err, repository.ErrNotFound) {
		h.writeJSON(w, http.StatusNotFound, errorResponse{Error: "not found"})
		return
	}
	if err != nil {
		h.serverError(w, "get price", err)
		return
	}
	h.writeJSON(w, http.StatusOK, event)
}

func (h *Handler) getStats(w http.ResponseWriter, r *http.Request) {
	symbol := r.PathValue("symbol")
	stats, err := h.store.GetStats(r.Context(), symbol)
	if errors.Is(err, repository.ErrNotFound) {
		h.writeJSON(w, http.StatusNotFound, errorResponse{Error: "not found"})
		return
	}
	if err != nil {
		h.serverError(w, "get stats", err)
		return
	}

	// Offset bookkeeping is internal, not part of the read contract.
	stats.AppliedOffsets = nil
	h.writeJSON(w, http.StatusOK, stats)
}

func (h *Handler) getNews(w http.ResponseWriter, r *http.Request) {
	date := r.PathValue("date")
	if _, err := time.Parse(dateLayout, date); err != nil {
		h.writeJSON(w, http.StatusBadRequest, errorResponse{Error: "date must be YYYY-MM-DD"})
		return
	}

	payload, err := h.coordinator.Read(r.Context(), date)
	if errors.Is(err, repository.ErrNotFound) {
		// A miss is never an error, even while backfill is in flight.
		h.writeJSON(w, http.StatusNotFound, errorResponse{Error: "not found"})
		return
	}
	if err != nil {
		h.serverError(w, "get news", err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write(payload)
}

func (h *Handler) streamAlerts(w http.ResponseWriter, r *http.Request) {
	conn, _, _, err := ws.UpgradeHTTP(r, w)
	if err != nil {
		h.logger.Warn("Websocket upgrade failed", zap.Error(err))
		return
	}

	client := hub.NewClient(conn, h.alertHub, h.logger)
	client.Start()
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.logger.Error("Response encode failed", zap.Error(err))
	}
}

func (h *Handler) serverError(w http.ResponseWriter, op string, err error) {
	h.logger.Error("Request failed", zap.String("op", op), zap.Error(err))
	h.writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "internal error"})
}
