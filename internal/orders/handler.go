package orders

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/bitmex-tools/feedrelay/internal/account"
	"github.com/bitmex-tools/feedrelay/internal/model"
)

// Handler serves the /orders HTTP surface.
type Handler struct {
	accounts account.Store
	store    Store
	client   *Client
	logger   *slog.Logger
}

// NewHandler creates the orders HTTP handler.
func NewHandler(accounts account.Store, store Store, client *Client, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		accounts: accounts,
		store:    store,
		client:   client,
		logger:   logger,
	}
}

// orderJSON is the response shape for one order record.
type orderJSON struct {
	OrderID   string  `json:"order_id"`
	Symbol    string  `json:"symbol"`
	Volume    int64   `json:"volume"`
	Timestamp string  `json:"timestamp"`
	Side      string  `json:"side"`
	Price     float64 `json:"price"`
	Account   string  `json:"account"`
}

func toJSON(o model.Order) orderJSON {
	return orderJSON{
		OrderID:   o.OrderID,
		Symbol:    o.Symbol,
		Volume:    o.Volume,
		Timestamp: o.Timestamp,
		Side:      o.Side,
		Price:     o.Price,
		Account:   o.Account,
	}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		h.list(w, r)
	case http.MethodPost:
		h.place(w, r)
	default:
		h.writeError(w, http.StatusMethodNotAllowed, fmt.Sprintf("Method %q is not allowed", r.Method))
	}
}

// list returns every order held by the requested account.
func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	accountName := r.URL.Query().Get("account")
	if accountName == "" {
		h.writeError(w, http.StatusNotFound, "Missed mandatory 'account' parameter for the request")
		return
	}

	exists, err := h.accounts.Exists(r.Context(), accountName)
	if err != nil {
		h.logger.Error("account lookup failed", "account", accountName, "error", err)
		h.writeError(w, http.StatusInternalServerError, fmt.Sprintf("Failed to validate account '%s'", accountName))
		return
	}
	if !exists {
		h.writeError(w, http.StatusNotFound, fmt.Sprintf("Can not find this account name: '%s'", accountName))
		return
	}

	orders, err := h.store.ListByAccount(r.Context(), accountName)
	if err != nil {
		h.logger.Error("order listing failed", "account", accountName, "error", err)
		h.writeError(w, http.StatusInternalServerError, "Failed to load orders")
		return
	}

	out := make([]orderJSON, 0, len(orders))
	for _, o := range orders {
		out = append(out, toJSON(o))
	}
	h.writeJSON(w, http.StatusOK, out)
}

// placeRequestJSON is the request shape for order creation.
type placeRequestJSON struct {
	Account string  `json:"account"`
	Symbol  string  `json:"symbol"`
	Volume  int64   `json:"volume"`
	Side    string  `json:"side"`
	Price   float64 `json:"price"`
}

// place forwards one order to the exchange and persists the accepted
// record locally.
func (h *Handler) place(w http.ResponseWriter, r *http.Request) {
	var req placeRequestJSON
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, fmt.Sprintf("Failed to decode incoming data: %v", err))
		return
	}

	if req.Account == "" {
		h.writeError(w, http.StatusNotFound, "Missed mandatory 'account' parameter for the request")
		return
	}
	if req.Side != model.SideBuy && req.Side != model.SideSell {
		h.writeError(w, http.StatusBadRequest,
			fmt.Sprintf("Got unknown side: '%s'. Available sides are: [%s %s]", req.Side, model.SideBuy, model.SideSell))
		return
	}
	if req.Symbol == "" || req.Volume <= 0 {
		h.writeError(w, http.StatusBadRequest, "Order requires a symbol and a positive volume")
		return
	}

	cred, err := h.accounts.Find(r.Context(), req.Account)
	if errors.Is(err, account.ErrNotFound) {
		h.writeError(w, http.StatusNotFound, fmt.Sprintf("Can not find this account name: '%s'", req.Account))
		return
	}
	if err != nil {
		h.logger.Error("account lookup failed", "account", req.Account, "error", err)
		h.writeError(w, http.StatusInternalServerError, fmt.Sprintf("Failed to validate account '%s'", req.Account))
		return
	}

	order, err := h.client.PlaceOrder(r.Context(), cred, PlaceRequest{
		Symbol: req.Symbol,
		Volume: req.Volume,
		Side:   req.Side,
		Price:  req.Price,
	})
	if err != nil {
		h.logger.Error("order placement failed", "account", req.Account, "symbol", req.Symbol, "error", err)
		var apiErr *APIError
		if errors.As(err, &apiErr) {
			h.writeError(w, http.StatusBadGateway, fmt.Sprintf("Exchange rejected the order: %s", apiErr.Message))
			return
		}
		h.writeError(w, http.StatusBadGateway, "Failed to reach the exchange")
		return
	}

	if err := h.store.Insert(r.Context(), order); err != nil {
		// The exchange accepted the order; report success but log the
		// missing local record.
		h.logger.Error("order record insert failed", "order_id", order.OrderID, "error", err)
	}

	h.logger.Info("order placed",
		"account", order.Account,
		"order_id", order.OrderID,
		"symbol", order.Symbol,
		"side", order.Side,
	)
	h.writeJSON(w, http.StatusCreated, toJSON(order))
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.logger.Debug("response write failed", "error", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, msg string) {
	h.writeJSON(w, status, map[string]string{"error": msg})
}
