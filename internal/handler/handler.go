package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/nexypass/nexypass-backend/internal/connectivity"
	"github.com/nexypass/nexypass-backend/internal/infrastructure/auth"
	"github.com/nexypass/nexypass-backend/internal/models"
	service "github.com/nexypass/nexypass-backend/internal/services"
	"github.com/nexypass/nexypass-backend/internal/syncer"
	pkgerrors "github.com/nexypass/nexypass-backend/pkg/errors"
)

type Handler struct {
	service service.Storefront
	sync    *syncer.Scheduler
	monitor *connectivity.Monitor
}

func NewHandler(s service.Storefront, sync *syncer.Scheduler, monitor *connectivity.Monitor) *Handler {
	return &Handler{service: s, sync: sync, monitor: monitor}
}

type errorResponse struct {
	Error string `json:"error"`
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, pkgerrors.ErrNotFound),
		errors.Is(err, pkgerrors.ErrUserNotFound),
		errors.Is(err, pkgerrors.ErrProductNotFound):
		status = http.StatusNotFound
	case errors.Is(err, pkgerrors.ErrInvalidCredentials):
		status = http.StatusUnauthorized
	case errors.Is(err, pkgerrors.ErrUserNotApproved):
		status = http.StatusForbidden
	case errors.Is(err, pkgerrors.ErrInvalidInput),
		errors.Is(err, pkgerrors.ErrInvalidAmount),
		errors.Is(err, pkgerrors.ErrInsufficientFunds),
		errors.Is(err, pkgerrors.ErrNoStockAvailable),
		errors.Is(err, pkgerrors.ErrProductInactive),
		errors.Is(err, pkgerrors.ErrRequestNotPending):
		status = http.StatusBadRequest
	}
	h.writeJSON(w, status, errorResponse{Error: err.Error()})
}

func (h *Handler) RegisterPublicRoutes(r *mux.Router) {
	r.HandleFunc("/login", h.Login).Methods("POST")
	r.HandleFunc("/health", h.Health).Methods("GET")
}

func (h *Handler) RegisterProtectedRoutes(r *mux.Router) {
	r.HandleFunc("/products", h.ListProducts).Methods("GET")
	r.HandleFunc("/products/{id}/stock", h.AvailableStock).Methods("GET")
	r.HandleFunc("/purchase", h.Purchase).Methods("POST")
	r.HandleFunc("/orders", h.UserOrders).Methods("GET")
	r.HandleFunc("/transactions", h.Transactions).Methods("GET")
	r.HandleFunc("/recharges", h.CreateRecharge).Methods("POST")
	r.HandleFunc("/connection", h.ConnectionStatus).Methods("GET")

	r.HandleFunc("/products", auth.RequireAdmin(h.AddProduct)).Methods("POST")
	r.HandleFunc("/products/{id}", auth.RequireAdmin(h.UpdateProduct)).Methods("PATCH")
	r.HandleFunc("/products/{id}", auth.RequireAdmin(h.DeleteProduct)).Methods("DELETE")
	r.HandleFunc("/products/{id}/stock", auth.RequireAdmin(h.AddStock)).Methods("POST")
	r.HandleFunc("/users", auth.RequireAdmin(h.ListUsers)).Methods("GET")
	r.HandleFunc("/users/{id}/approve", auth.RequireAdmin(h.ApproveUser)).Methods("POST")
	r.HandleFunc("/users/{id}", auth.RequireAdmin(h.RejectUser)).Methods("DELETE")
	r.HandleFunc("/users/{id}/balance", auth.RequireAdmin(h.AddUserBalance)).Methods("POST")
	r.HandleFunc("/recharges/pending", auth.RequireAdmin(h.PendingRecharges)).Methods("GET")
	r.HandleFunc("/recharges/{id}/approve", auth.RequireAdmin(h.ApproveRecharge)).Methods("POST")
	r.HandleFunc("/recharges/{id}/reject", auth.RequireAdmin(h.RejectRecharge)).Methods("POST")
	r.HandleFunc("/stats", auth.RequireAdmin(h.GetStats)).Methods("GET")
	r.HandleFunc("/sync", auth.RequireAdmin(h.ForceSync)).Methods("POST")
}

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeJSON(w, http.StatusBadRequest, errorResponse{Error: "bad request"})
		return
	}
	token, user, err := h.service.Login(r.Context(), req.Username, req.Password)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]any{"token": token, "user": user})
}

func (h *Handler) ListProducts(w http.ResponseWriter, r *http.Request) {
	products, err := h.service.ListProducts(r.Context())
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, products)
}

func (h *Handler) AddProduct(w http.ResponseWriter, r *http.Request) {
	var product models.Product
	if err := json.NewDecoder(r.Body).Decode(&product); err != nil {
		h.writeJSON(w, http.StatusBadRequest, errorResponse{Error: "bad request"})
		return
	}
	created, err := h.service.AddProduct(r.Context(), &product)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusCreated, created)
}

func (h *Handler) UpdateProduct(w http.ResponseWriter, r *http.Request) {
	var patch map[string]any
	if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
		h.writeJSON(w, http.StatusBadRequest, errorResponse{Error: "bad request"})
		return
	}
	updated, err := h.service.UpdateProduct(r.Context(), mux.Vars(r)["id"], patch)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, updated)
}

func (h *Handler) DeleteProduct(w http.ResponseWriter, r *http.Request) {
	if err := h.service.DeleteProduct(r.Context(), mux.Vars(r)["id"]); err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]string{})
}

func (h *Handler) AddStock(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Credentials string `json:"credentials"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeJSON(w, http.StatusBadRequest, errorResponse{Error: "bad request"})
		return
	}
	item, err := h.service.AddStock(r.Context(), mux.Vars(r)["id"], req.Credentials)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusCreated, item)
}

func (h *Handler) AvailableStock(w http.ResponseWriter, r *http.Request) {
	count, err := h.service.AvailableStock(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]int{"available": count})
}

func (h *Handler) Purchase(w http.ResponseWriter, r *http.Request) {
	userID, _ := r.Context().Value("user_id").(string)
	var req struct {
		ProductID     string `json:"product_id"`
		CustomerName  string `json:"customer_name"`
		CustomerPhone string `json:"customer_phone"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeJSON(w, http.StatusBadRequest, errorResponse{Error: "bad request"})
		return
	}
	order, err := h.service.Purchase(r.Context(), userID, req.ProductID, req.CustomerName, req.CustomerPhone)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusCreated, order)
}

func (h *Handler) UserOrders(w http.ResponseWriter, r *http.Request) {
	userID, _ := r.Context().Value("user_id").(string)
	orders, err := h.service.UserOrders(r.Context(), userID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, orders)
}

func (h *Handler) Transactions(w http.ResponseWriter, r *http.Request) {
	userID, _ := r.Context().Value("user_id").(string)
	txns, err := h.service.Transactions(r.Context(), userID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, txns)
}

func (h *Handler) CreateRecharge(w http.ResponseWriter, r *http.Request) {
	userID, _ := r.Context().Value("user_id").(string)
	var req struct {
		Amount float64 `json:"amount"`
		Method string  `json:"method"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeJSON(w, http.StatusBadRequest, errorResponse{Error: "bad request"})
		return
	}
	request, err := h.service.CreateRechargeRequest(r.Context(), userID, req.Amount, req.Method)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusCreated, request)
}

func (h *Handler) ListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.service.ListUsers(r.Context())
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, users)
}

func (h *Handler) ApproveUser(w http.ResponseWriter, r *http.Request) {
	user, err := h.service.ApproveUser(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, user)
}

func (h *Handler) RejectUser(w http.ResponseWriter, r *http.Request) {
	if err := h.service.RejectUser(r.Context(), mux.Vars(r)["id"]); err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]string{})
}

func (h *Handler) AddUserBalance(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Amount float64 `json:"amount"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeJSON(w, http.StatusBadRequest, errorResponse{Error: "bad request"})
		return
	}
	user, err := h.service.AddUserBalance(r.Context(), mux.Vars(r)["id"], req.Amount)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, user)
}

func (h *Handler) PendingRecharges(w http.ResponseWriter, r *http.Request) {
	pending, err := h.service.PendingRecharges(r.Context())
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, pending)
}

func (h *Handler) ApproveRecharge(w http.ResponseWriter, r *http.Request) {
	if err := h.service.ApproveRecharge(r.Context(), mux.Vars(r)["id"]); err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]string{})
}

func (h *Handler) RejectRecharge(w http.ResponseWriter, r *http.Request) {
	if err := h.service.RejectRecharge(r.Context(), mux.Vars(r)["id"]); err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]string{})
}

func (h *Handler) GetStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.service.Stats(r.Context())
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, stats)
}

// ForceSync triggers a reconciliation cycle synchronously; operator/debug use.
func (h *Handler) ForceSync(w http.ResponseWriter, r *http.Request) {
	if err := h.sync.SyncNow(r.Context()); err != nil {
		h.writeJSON(w, http.StatusServiceUnavailable, errorResponse{Error: err.Error()})
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]string{"status": "synced"})
}

func (h *Handler) ConnectionStatus(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, map[string]any{
		"online":  h.monitor.IsReachable(),
		"quality": h.monitor.Quality(),
	})
}
