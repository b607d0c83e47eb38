package match

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/tradeduel/match-engine/internal/apperr"
	"github.com/tradeduel/match-engine/internal/model"
)

// --- Request/Response types ---

// CreateMatchRequest is the JSON body for POST /matches.
type CreateMatchRequest struct {
	CreatorID       string          `json:"creator_id"`
	InitialBalance  decimal.Decimal `json:"initial_balance"`  // 0 → configured default
	DurationMinutes int             `json:"duration_minutes"` // 0 → configured default
	Symbols         []string        `json:"symbols"`          // empty → configured default
}

// JoinMatchRequest is the JSON body for POST /matches/{matchID}/join.
type JoinMatchRequest struct {
	UserID string `json:"user_id"`
}

// StartMatchRequest is the JSON body for POST /matches/{matchID}/start.
type StartMatchRequest struct {
	UserID string `json:"user_id"`
}

// PlaceOrderRequest is the JSON body for POST /matches/{matchID}/orders.
type PlaceOrderRequest struct {
	PlayerID         string           `json:"player_id"`
	Symbol           string           `json:"symbol"`
	Type             string           `json:"type"`
	Side             string           `json:"side"`
	Quantity         decimal.Decimal  `json:"quantity"`
	LimitPrice       *decimal.Decimal `json:"limit_price,omitempty"`
	TriggerPrice     *decimal.Decimal `json:"trigger_price,omitempty"`
	LinkedPositionID string           `json:"linked_position_id,omitempty"`
}

// equityPoint is one row of the equity history response.
type equityPoint struct {
	Timestamp string `json:"timestamp"`
	Equity    string `json:"equity"`
}

// --- HTTP Handlers ---

// HandleCreateMatch handles POST /api/v1/matches
func (s *Service) HandleCreateMatch(w http.ResponseWriter, r *http.Request) {
	var req CreateMatchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, apperr.Validation("invalid request body"))
		return
	}

	m, err := s.Create(r.Context(), req.CreatorID, req.InitialBalance, req.DurationMinutes, req.Symbols)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, m)
}

// HandleGetMatch handles GET /api/v1/matches/{matchID}
func (s *Service) HandleGetMatch(w http.ResponseWriter, r *http.Request) {
	m, err := s.GetMatch(r.Context(), chi.URLParam(r, "matchID"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, m)
}

// HandleJoinMatch handles POST /api/v1/matches/{matchID}/join
func (s *Service) HandleJoinMatch(w http.ResponseWriter, r *http.Request) {
	var req JoinMatchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, apperr.Validation("invalid request body"))
		return
	}

	m, err := s.Join(r.Context(), chi.URLParam(r, "matchID"), req.UserID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, m)
}

// HandleStartMatch handles POST /api/v1/matches/{matchID}/start
func (s *Service) HandleStartMatch(w http.ResponseWriter, r *http.Request) {
	var req StartMatchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, apperr.Validation("invalid request body"))
		return
	}

	m, err := s.Start(r.Context(), chi.URLParam(r, "matchID"), req.UserID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, m)
}

// HandlePlaceOrder handles POST /api/v1/matches/{matchID}/orders
func (s *Service) HandlePlaceOrder(w http.ResponseWriter, r *http.Request) {
	var req PlaceOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, apperr.Validation("invalid request body"))
		return
	}
	if req.PlayerID == "" {
		writeError(w, apperr.Validation("player_id is required"))
		return
	}

	o, err := s.PlaceOrder(r.Context(), OrderRequest{
		MatchID:          chi.URLParam(r, "matchID"),
		PlayerID:         req.PlayerID,
		Symbol:           req.Symbol,
		Type:             model.OrderType(req.Type),
		Side:             model.OrderSide(req.Side),
		Quantity:         req.Quantity,
		LimitPrice:       req.LimitPrice,
		TriggerPrice:     req.TriggerPrice,
		LinkedPositionID: req.LinkedPositionID,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, o)
}

// HandleCancelOrder handles DELETE /api/v1/orders/{orderID}
func (s *Service) HandleCancelOrder(w http.ResponseWriter, r *http.Request) {
	o, err := s.CancelOrder(r.Context(), chi.URLParam(r, "orderID"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, o)
}

// HandleEndMatch handles POST /api/v1/matches/{matchID}/end
func (s *Service) HandleEndMatch(w http.ResponseWriter, r *http.Request) {
	m, err := s.End(r.Context(), chi.URLParam(r, "matchID"), "forfeit")
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, m)
}

// HandleEquityHistory handles GET /api/v1/matches/{matchID}/equity/{playerID}
// No samples yet is a legitimate empty result, never an error; a store
// failure is a 500, never an empty 200.
func (s *Service) HandleEquityHistory(w http.ResponseWriter, r *http.Request) {
	samples, err := s.EquityHistory(r.Context(),
		chi.URLParam(r, "matchID"), chi.URLParam(r, "playerID"))
	if err != nil {
		writeError(w, err)
		return
	}

	points := make([]equityPoint, 0, len(samples))
	for _, sm := range samples {
		points = append(points, equityPoint{
			Timestamp: sm.Timestamp.UTC().Format("2006-01-02T15:04:05.000Z"),
			Equity:    sm.Equity.String(),
		})
	}
	writeJSON(w, http.StatusOK, points)
}

// HandleGetOrders handles GET /api/v1/matches/{matchID}/orders/{playerID}?status=
func (s *Service) HandleGetOrders(w http.ResponseWriter, r *http.Request) {
	status := model.OrderStatus(r.URL.Query().Get("status"))
	orders, err := s.Orders(r.Context(),
		chi.URLParam(r, "matchID"), chi.URLParam(r, "playerID"), status)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, orders)
}

// HandleOngoingMatches handles GET /api/v1/players/{playerID}/matches
func (s *Service) HandleOngoingMatches(w http.ResponseWriter, r *http.Request) {
	matches, err := s.OngoingMatches(r.Context(), chi.URLParam(r, "playerID"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, matches)
}

// HandleLeaderboard handles GET /api/v1/leaderboard?limit=10
func (s *Service) HandleLeaderboard(w http.ResponseWriter, r *http.Request) {
	limit := 10
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeError(w, apperr.Validation("limit must be a non-negative integer"))
			return
		}
		limit = n
	}

	entries, err := s.Leaderboard(r.Context(), limit)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, entries)
}

// Routes mounts every handler on a chi router under /api/v1.
func (s *Service) Routes(r chi.Router) {
	r.Post("/matches", s.HandleCreateMatch)
	r.Get("/matches/{matchID}", s.HandleGetMatch)
	r.Post("/matches/{matchID}/join", s.HandleJoinMatch)
	r.Post("/matches/{matchID}/start", s.HandleStartMatch)
	r.Post("/matches/{matchID}/end", s.HandleEndMatch)
	r.Post("/matches/{matchID}/orders", s.HandlePlaceOrder)
	r.Get("/matches/{matchID}/orders/{playerID}", s.HandleGetOrders)
	r.Get("/matches/{matchID}/equity/{playerID}", s.HandleEquityHistory)
	r.Delete("/orders/{orderID}", s.HandleCancelOrder)
	r.Get("/players/{playerID}/matches", s.HandleOngoingMatches)
	r.Get("/leaderboard", s.HandleLeaderboard)
}

// --- JSON helpers ---

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError maps domain error kinds to HTTP statuses.
func writeError(w http.ResponseWriter, err error) {
	status := apperr.HTTPStatus(err)
	msg := err.Error()
	var e *apperr.Error
	if errors.As(err, &e) {
		msg = e.Msg
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
