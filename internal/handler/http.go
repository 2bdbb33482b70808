package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"playerMarket/internal/domain"
	"playerMarket/internal/handler/mw"
	"playerMarket/internal/usecase"
)

const defaultPlayerListLimit = 3

type Handler struct {
	service *usecase.Service
	trades  *usecase.Coordinator
}

func NewHandler(service *usecase.Service, trades *usecase.Coordinator) *Handler {
	return &Handler{service: service, trades: trades}
}

func (h *Handler) Register(r chi.Router) {
	r.Get("/", h.rootHandler)

	r.Post("/api/auth", h.auth)
	r.Get("/api/players", h.listPlayers)

	r.Group(func(r chi.Router) {
		r.Use(mw.JWTAuthMiddleware)
		r.Get("/api/me", h.getInfo)
		r.Post("/api/trade", h.trade)
	})
}

func (h *Handler) rootHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write([]byte(`
<html>
<head>
  <title>Player Market</title>
</head>
<body style="font-family: sans-serif;">
  <h1>Player Market</h1>
  <ul>
    <li>Register or log in: <strong>POST /api/auth</strong></li>
    <li>List players: <strong>GET /api/players</strong></li>
    <li>Your coins, goods and trade history: <strong>GET /api/me</strong> (JWT)</li>
    <li>Buy goods from another player: <strong>POST /api/trade</strong> (JWT)</li>
  </ul>
  <p>Protected endpoints require the header
    <code>Authorization: Bearer &lt;token&gt;</code>
  </p>
</body>
</html>
`))
}

type authRequest struct {
	Name     string `json:"name"`
	Password string `json:"password"`
}

type authResponse struct {
	Token string `json:"token"`
}

func (h *Handler) auth(w http.ResponseWriter, r *http.Request) {
	var req authRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, `{"errors":"bad request"}`, http.StatusBadRequest)
		return
	}
	player, err := h.service.RegisterOrLogin(r.Context(), req.Name, req.Password)
	if err != nil {
		if errors.Is(err, usecase.ErrInvalidCredentials) {
			http.Error(w, `{"errors":"invalid credentials"}`, http.StatusUnauthorized)
			return
		}
		if errors.Is(err, usecase.ErrWeakPassword) {
			http.Error(w, `{"errors":"weak password"}`, http.StatusBadRequest)
			return
		}
		http.Error(w, `{"errors":"`+err.Error()+`"}`, http.StatusInternalServerError)
		return
	}

	token, err := mw.GenerateJWT(player.ID, player.Name)
	if err != nil {
		http.Error(w, `{"errors":"internal error"}`, http.StatusInternalServerError)
		return
	}

	writeJSON(w, authResponse{Token: token})
}

func (h *Handler) getInfo(w http.ResponseWriter, r *http.Request) {
	playerID := mw.MustGetPlayerID(r.Context())
	info, err := h.service.GetInfo(r.Context(), playerID)
	if err != nil {
		if errors.Is(err, domain.ErrPlayerNotFound) {
			http.Error(w, `{"errors":"player not found"}`, http.StatusNotFound)
			return
		}
		http.Error(w, `{"errors":"`+err.Error()+`"}`, http.StatusInternalServerError)
		return
	}
	writeJSON(w, info)
}

func (h *Handler) listPlayers(w http.ResponseWriter, r *http.Request) {
	list, err := h.service.ListPlayers(r.Context(), defaultPlayerListLimit)
	if err != nil {
		http.Error(w, `{"errors":"`+err.Error()+`"}`, http.StatusInternalServerError)
		return
	}
	writeJSON(w, list)
}

type tradeRequest struct {
	SellerID int `json:"sellerId"`
	Amount   int `json:"amount"`
	Price    int `json:"price"`
}

type tradeResponse struct {
	TradeID  string `json:"tradeId"`
	BuyerID  int    `json:"buyerId"`
	SellerID int    `json:"sellerId"`
	Amount   int    `json:"amount"`
	Price    int    `json:"price"`
}

// trade buys goods from another player; the authenticated player is the
// buyer.
func (h *Handler) trade(w http.ResponseWriter, r *http.Request) {
	buyerID := mw.MustGetPlayerID(r.Context())

	var req tradeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, `{"errors":"bad request"}`, http.StatusBadRequest)
		return
	}

	outcome, err := h.trades.Trade(r.Context(), buyerID, req.SellerID, req.Amount, req.Price)
	if err != nil {
		switch {
		case errors.Is(err, usecase.ErrNotEnoughCoins):
			http.Error(w, `{"errors":"not enough coins"}`, http.StatusBadRequest)
		case errors.Is(err, usecase.ErrNotEnoughGoods):
			http.Error(w, `{"errors":"not enough goods"}`, http.StatusBadRequest)
		case errors.Is(err, usecase.ErrSelfTrade),
			errors.Is(err, usecase.ErrInvalidAmount),
			errors.Is(err, usecase.ErrInvalidPrice):
			http.Error(w, `{"errors":"`+err.Error()+`"}`, http.StatusBadRequest)
		case errors.Is(err, domain.ErrPlayerNotFound):
			http.Error(w, `{"errors":"player not found"}`, http.StatusNotFound)
		case errors.Is(err, usecase.ErrStoreUnavailable):
			http.Error(w, `{"errors":"store unavailable, try again later"}`, http.StatusServiceUnavailable)
		default:
			http.Error(w, `{"errors":"internal error"}`, http.StatusInternalServerError)
		}
		return
	}

	writeJSON(w, tradeResponse{
		TradeID:  outcome.TradeID.String(),
		BuyerID:  outcome.BuyerID,
		SellerID: outcome.SellerID,
		Amount:   outcome.Amount,
		Price:    outcome.Price,
	})
}

func writeJSON(w http.ResponseWriter, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(data)
}
