package httpx

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/ariefcatur/go-order-fulfillment/internal/clock"
	"github.com/ariefcatur/go-order-fulfillment/internal/customers"
	"github.com/ariefcatur/go-order-fulfillment/internal/fulfillment"
	"github.com/ariefcatur/go-order-fulfillment/internal/inventory"
	"github.com/ariefcatur/go-order-fulfillment/internal/orders"
	"github.com/ariefcatur/go-order-fulfillment/internal/redisx"
)

const idempotencyHeader = "Idempotency-Key"

type IdempotencyStore interface {
	Begin(ctx context.Context, key string) (orderID string, claimed bool, err error)
	Complete(ctx context.Context, key, orderID string) error
	Abort(ctx context.Context, key string) error
}

type StatusCache interface {
	Get(ctx context.Context, orderID string) (redisx.StatusEntry, bool, error)
	Put(ctx context.Context, orderID string, e redisx.StatusEntry) error
}

type ProcessQueue interface {
	EnqueueProcess(ctx context.Context, orderID string, method orders.PaymentMethod) (string, error)
}

type StockView interface {
	Stock(productID string) (inventory.Stock, bool)
}

// Handler serves the order, customer and inventory endpoints. Idem, Status
// and Queue are optional.
type Handler struct {
	Coord     *fulfillment.Coordinator
	Customers customers.Store
	Stock     StockView
	Idem      IdempotencyStore
	Status    StatusCache
	Queue     ProcessQueue
	Clock     clock.Clock
	Log       *zap.Logger
}

func (h *Handler) Register(r chi.Router) {
	if h.Clock == nil {
		h.Clock = clock.NewSystem()
	}
	if h.Log == nil {
		h.Log = zap.NewNop()
	}

	r.Post("/customers", h.registerCustomer)
	r.Route("/customers/{id}", func(r chi.Router) {
		r.Get("/", h.getCustomer)
		r.Post("/activate", h.customerOp(h.Coord.ActivateCustomer))
		r.Post("/deactivate", h.customerOp(h.Coord.DeactivateCustomer))
		r.Post("/points/spend", h.spendPoints)
	})

	r.Route("/orders", func(r chi.Router) {
		r.Post("/", h.createOrder)
		r.Get("/", h.listOrders)
		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", h.getOrder)
			r.Get("/status", h.getStatus)
			r.Post("/items", h.addItem)
			r.Delete("/items/{productID}", h.removeItem)
			r.Put("/priority", h.setPriority)
			r.Post("/process", h.process)
			r.Post("/complete", h.transition(h.Coord.CompleteOrder))
			r.Post("/ship", h.transition(h.Coord.ShipOrder))
			r.Post("/cancel", h.transition(h.Coord.CancelOrder))
		})
	})

	r.Get("/inventory/{productID}", h.getStock)
}

type registerCustomerReq struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Name  string `json:"name"`
}

func (h *Handler) registerCustomer(w http.ResponseWriter, r *http.Request) {
	var req registerCustomerReq
	if err := decode(r, &req); err != nil {
		badRequest(w, "invalid json")
		return
	}
	req.Email = strings.TrimSpace(req.Email)
	if req.ID == "" {
		req.ID = "CUST-" + strings.ToUpper(uuid.NewString()[:8])
	}
	c, err := customers.New(req.ID, req.Email, req.Name, h.Clock.Now())
	if err != nil {
		writeError(w, err)
		return
	}
	if exists, err := h.Customers.Exists(r.Context(), c.ID); err != nil {
		writeError(w, err)
		return
	} else if exists {
		writeJSON(w, http.StatusConflict, errorResp{Error: "customer already exists", Kind: fulfillment.KindInvalidState})
		return
	}
	if err := h.Customers.Save(r.Context(), c); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, customerResp(c))
}

type customerView struct {
	customers.Customer
	Tier         customers.Tier  `json:"tier"`
	DiscountRate decimal.Decimal `json:"discount_rate"`
}

func customerResp(c customers.Customer) customerView {
	return customerView{Customer: c, Tier: c.Tier(), DiscountRate: c.DiscountRate()}
}

func (h *Handler) getCustomer(w http.ResponseWriter, r *http.Request) {
	c, err := h.Customers.FindByID(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, customerResp(c))
}

func (h *Handler) customerOp(fn func(ctx context.Context, customerID string) (customers.Customer, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c, err := fn(r.Context(), chi.URLParam(r, "id"))
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, customerResp(c))
	}
}

type spendPointsReq struct {
	Points int `json:"points"`
}

func (h *Handler) spendPoints(w http.ResponseWriter, r *http.Request) {
	var req spendPointsReq
	if err := decode(r, &req); err != nil {
		badRequest(w, "invalid json")
		return
	}
	if req.Points <= 0 {
		badRequest(w, "points must be positive")
		return
	}
	c, err := h.Coord.SpendLoyaltyPoints(r.Context(), chi.URLParam(r, "id"), req.Points)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, customerResp(c))
}

type createOrderReq struct {
	CustomerID string `json:"customer_id"`
}

func (h *Handler) createOrder(w http.ResponseWriter, r *http.Request) {
	var req createOrderReq
	if err := decode(r, &req); err != nil {
		badRequest(w, "invalid json")
		return
	}
	if req.CustomerID == "" {
		badRequest(w, "missing customer_id")
		return
	}
	ctx := r.Context()

	key := r.Header.Get(idempotencyHeader)
	if key != "" && h.Idem != nil {
		existing, claimed, err := h.Idem.Begin(ctx, key)
		switch {
		case errors.Is(err, redisx.ErrInFlight):
			writeJSON(w, http.StatusConflict, errorResp{Error: err.Error(), Kind: fulfillment.KindInvalidState, Retryable: true})
			return
		case err != nil:
			// The store stays authoritative; a cache outage only loses dedup.
			h.Log.Warn("idempotency lookup failed", zap.String("key", key), zap.Error(err))
			key = ""
		case !claimed:
			o, err := h.Coord.GetOrder(ctx, existing)
			if err != nil {
				writeError(w, err)
				return
			}
			writeJSON(w, http.StatusOK, o.Snapshot())
			return
		}
	} else {
		key = ""
	}

	o, err := h.Coord.CreateOrder(ctx, req.CustomerID)
	if err != nil {
		if key != "" {
			_ = h.Idem.Abort(ctx, key)
		}
		writeError(w, err)
		return
	}
	if key != "" {
		if err := h.Idem.Complete(ctx, key, o.ID()); err != nil {
			h.Log.Warn("idempotency complete failed", zap.String("key", key), zap.Error(err))
		}
	}
	writeJSON(w, http.StatusCreated, o.Snapshot())
}

func (h *Handler) listOrders(w http.ResponseWriter, r *http.Request) {
	var (
		list []*orders.Order
		err  error
	)
	q := r.URL.Query()
	switch {
	case q.Get("customer_id") != "":
		list, err = h.Coord.GetCustomerOrders(r.Context(), q.Get("customer_id"))
	case strings.EqualFold(q.Get("status"), string(orders.StatusPending)):
		list, err = h.Coord.GetPendingOrders(r.Context())
	default:
		badRequest(w, "filter by customer_id or status=pending")
		return
	}
	if err != nil {
		writeError(w, err)
		return
	}
	out := make([]orders.Snapshot, 0, len(list))
	for _, o := range list {
		out = append(out, o.Snapshot())
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *Handler) getOrder(w http.ResponseWriter, r *http.Request) {
	o, err := h.Coord.GetOrder(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, o.Snapshot())
}

type statusResp struct {
	OrderID   string        `json:"order_id"`
	Status    orders.Status `json:"status"`
	UpdatedAt time.Time     `json:"updated_at"`
	Cached    bool          `json:"cached"`
}

func (h *Handler) getStatus(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	if h.Status != nil {
		e, ok, err := h.Status.Get(ctx, id)
		if err != nil {
			h.Log.Warn("status cache read failed", zap.String("order_id", id), zap.Error(err))
		}
		if ok {
			writeJSON(w, http.StatusOK, statusResp{OrderID: id, Status: e.Status, UpdatedAt: e.UpdatedAt, Cached: true})
			return
		}
	}

	o, err := h.Coord.GetOrder(ctx, id)
	if err != nil {
		writeError(w, err)
		return
	}
	e := redisx.StatusEntry{Status: o.Status(), UpdatedAt: h.Clock.Now()}
	if h.Status != nil {
		if err := h.Status.Put(ctx, id, e); err != nil {
			h.Log.Warn("status cache write failed", zap.String("order_id", id), zap.Error(err))
		}
	}
	writeJSON(w, http.StatusOK, statusResp{OrderID: id, Status: e.Status, UpdatedAt: e.UpdatedAt})
}

type addItemReq struct {
	ProductID   string          `json:"product_id"`
	ProductName string          `json:"product_name"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	Quantity    int             `json:"quantity"`
}

func (h *Handler) addItem(w http.ResponseWriter, r *http.Request) {
	var req addItemReq
	if err := decode(r, &req); err != nil {
		badRequest(w, "invalid json")
		return
	}
	if req.UnitPrice.IsNegative() {
		badRequest(w, "unit_price must not be negative")
		return
	}
	o, err := h.Coord.AddItem(r.Context(), fulfillment.AddItemInput{
		OrderID:     chi.URLParam(r, "id"),
		ProductID:   req.ProductID,
		ProductName: req.ProductName,
		UnitPrice:   req.UnitPrice,
		Quantity:    req.Quantity,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, o.Snapshot())
}

func (h *Handler) removeItem(w http.ResponseWriter, r *http.Request) {
	o, err := h.Coord.RemoveItem(r.Context(), chi.URLParam(r, "id"), chi.URLParam(r, "productID"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, o.Snapshot())
}

func (h *Handler) setPriority(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Priority bool `json:"priority"`
	}
	if err := decode(r, &req); err != nil {
		badRequest(w, "invalid json")
		return
	}
	o, err := h.Coord.SetPriority(r.Context(), chi.URLParam(r, "id"), req.Priority)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, o.Snapshot())
}

type processReq struct {
	PaymentMethod orders.PaymentMethod `json:"payment_method"`
	Async         bool                 `json:"async"`
}

type processAccepted struct {
	OrderID   string `json:"order_id"`
	CommandID string `json:"command_id"`
}

func (h *Handler) process(w http.ResponseWriter, r *http.Request) {
	var req processReq
	if err := decode(r, &req); err != nil {
		badRequest(w, "invalid json")
		return
	}
	id := chi.URLParam(r, "id")
	if !req.PaymentMethod.Recognized() {
		writeError(w, orders.ErrInvalidPaymentMethod)
		return
	}

	if req.Async {
		if h.Queue == nil {
			badRequest(w, "async processing is not enabled")
			return
		}
		if _, err := h.Coord.GetOrder(r.Context(), id); err != nil {
			writeError(w, err)
			return
		}
		cmdID, err := h.Queue.EnqueueProcess(r.Context(), id, req.PaymentMethod)
		if err != nil {
			h.Log.Error("enqueue process failed", zap.String("order_id", id), zap.Error(err))
			writeJSON(w, http.StatusServiceUnavailable, errorResp{Error: "queue unavailable", Kind: fulfillment.KindInternal, Retryable: true})
			return
		}
		writeJSON(w, http.StatusAccepted, processAccepted{OrderID: id, CommandID: cmdID})
		return
	}

	rc, err := h.Coord.ProcessOrder(r.Context(), id, req.PaymentMethod)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rc)
}

func (h *Handler) transition(fn func(ctx context.Context, orderID string) (*orders.Order, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		o, err := fn(r.Context(), chi.URLParam(r, "id"))
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, o.Snapshot())
	}
}

func (h *Handler) getStock(w http.ResponseWriter, r *http.Request) {
	pid := chi.URLParam(r, "productID")
	st, ok := h.Stock.Stock(pid)
	if !ok {
		writeJSON(w, http.StatusNotFound, errorResp{Error: "unknown product " + pid, Kind: fulfillment.KindNotFound})
		return
	}
	writeJSON(w, http.StatusOK, st)
}
