package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"
	"github.com/tokokita/api/internal/database"
	"github.com/tokokita/api/internal/enum"
	"github.com/tokokita/api/internal/service"
	"github.com/tokokita/api/internal/ws"
)

// OrderServicer owns the transactional order operations.
// Satisfied by *service.OrderService.
type OrderServicer interface {
	CreateOrder(ctx context.Context, req service.CreateOrderRequest) (*service.CreateOrderResult, error)
	UpdateOrder(ctx context.Context, req service.UpdateOrderRequest) (*database.Order, error)
	DeleteOrder(ctx context.Context, orderID int64) error
}

// OrderStore defines the read-side database methods needed by order handlers.
type OrderStore interface {
	ListOrders(ctx context.Context, arg database.ListOrdersParams) ([]database.ListOrdersRow, error)
	CountOrders(ctx context.Context, arg database.CountOrdersParams) (int64, error)
	ListAllOrders(ctx context.Context, arg database.ListAllOrdersParams) ([]database.ListAllOrdersRow, error)
	GetOrder(ctx context.Context, id int64) (database.GetOrderRow, error)
	ListOrderDetailsByOrder(ctx context.Context, orderID int64) ([]database.ListOrderDetailsByOrderRow, error)
	ListOrderDetailsByOrderIDs(ctx context.Context, orderIDs []int64) ([]database.ListOrderDetailsByOrderRow, error)
	UserExists(ctx context.Context, id int64) (bool, error)
	ShopExists(ctx context.Context, id int64) (bool, error)
}

// Broadcaster pushes order events to connected shop clients.
type Broadcaster interface {
	BroadcastToShop(shopID int64, event ws.Event)
}

// OrderHandler handles order CRUD endpoints.
type OrderHandler struct {
	svc   OrderServicer
	store OrderStore
	hub   Broadcaster
}

// NewOrderHandler creates a new OrderHandler.
func NewOrderHandler(svc OrderServicer, store OrderStore, hub Broadcaster) *OrderHandler {
	return &OrderHandler{svc: svc, store: store, hub: hub}
}

// RegisterRoutes registers order endpoints on the given Chi router.
// Expected to be mounted at /orders.
func (h *OrderHandler) RegisterRoutes(r chi.Router) {
	r.Get("/", h.List)
	r.Get("/all", h.ListAll)
	r.Post("/", h.Create)
	r.Get("/{id}", h.Get)
	r.Put("/{id}", h.Update)
	r.Delete("/{id}", h.Delete)
}

// --- Request / Response types ---

type orderDetailRequest struct {
	ID                 int64  `json:"id"`
	ItemID             *int64 `json:"item_id"`
	Type               string `json:"type"`
	NeededAmount       string `json:"neededAmount"`
	NumOfItems         string `json:"num_of_items"`
	TotalPricePerUnits string `json:"total_price_per_units"`
}

type orderRequest struct {
	CashierID         *int64               `json:"cashier_id"`
	ShopID            *int64               `json:"shop_id"`
	TotalSellingPrice string               `json:"total_selling_price"`
	TotalActualPrice  string               `json:"total_actual_price"`
	OrderDetails      []orderDetailRequest `json:"order_details"`
}

type orderResponse struct {
	ID                int64     `json:"id"`
	CashierID         int64     `json:"cashier_id"`
	ShopID            int64     `json:"shop_id"`
	TotalSellingPrice string    `json:"total_selling_price"`
	TotalActualPrice  string    `json:"total_actual_price"`
	CreatedAt         time.Time `json:"created_at"`
	UpdatedAt         time.Time `json:"updated_at"`
}

type orderWithNamesResponse struct {
	orderResponse
	CashierName string `json:"cashier_name"`
	ShopName    string `json:"shop_name"`
}

type orderDetailResponse struct {
	ID                 int64         `json:"id"`
	OrderID            int64         `json:"order_id"`
	ItemID             int64         `json:"item_id"`
	Type               string        `json:"type"`
	NeededAmount       string        `json:"neededAmount"`
	NumOfItems         string        `json:"num_of_items"`
	TotalPricePerUnits string        `json:"total_price_per_units"`
	Item               *itemResponse `json:"item,omitempty"`
	CreatedAt          time.Time     `json:"created_at"`
	UpdatedAt          time.Time     `json:"updated_at"`
}

type orderWithDetailsResponse struct {
	orderWithNamesResponse
	OrderDetails []orderDetailResponse `json:"order_details"`
}

type orderListResponse struct {
	Data    []orderWithDetailsResponse `json:"data"`
	Page    int                        `json:"page"`
	PerPage int                        `json:"per_page"`
	Total   int64                      `json:"total"`
}

func toOrderResponse(o database.Order) orderResponse {
	return orderResponse{
		ID:                o.ID,
		CashierID:         o.CashierID,
		ShopID:            o.ShopID,
		TotalSellingPrice: numericToString(o.TotalSellingPrice),
		TotalActualPrice:  numericToString(o.TotalActualPrice),
		CreatedAt:         o.CreatedAt,
		UpdatedAt:         o.UpdatedAt,
	}
}

func toOrderDetailResponse(d database.OrderDetail, item *database.Item) orderDetailResponse {
	resp := orderDetailResponse{
		ID:                 d.ID,
		OrderID:            d.OrderID,
		ItemID:             d.ItemID,
		Type:               d.Type,
		NeededAmount:       numericToString(d.NeededAmount),
		NumOfItems:         numericToString(d.NumOfItems),
		TotalPricePerUnits: numericToString(d.TotalPricePerUnits),
		CreatedAt:          d.CreatedAt,
		UpdatedAt:          d.UpdatedAt,
	}
	if item != nil {
		ir := toItemResponse(*item)
		resp.Item = &ir
	}
	return resp
}

// --- Validation ---

type parsedOrder struct {
	cashierID         int64
	shopID            int64
	totalSellingPrice decimal.Decimal
	totalActualPrice  decimal.Decimal
	details           []service.OrderDetailRequest
}

func validateOrderRequest(req orderRequest) (parsedOrder, fieldErrors) {
	fe := fieldErrors{}
	var p parsedOrder

	if req.CashierID == nil {
		fe.add("cashier_id", "cashier_id is required")
	} else {
		p.cashierID = *req.CashierID
	}

	if req.ShopID == nil {
		fe.add("shop_id", "shop_id is required")
	} else {
		p.shopID = *req.ShopID
	}

	p.totalSellingPrice = requireNonNegative(fe, "total_selling_price", req.TotalSellingPrice)
	p.totalActualPrice = requireNonNegative(fe, "total_actual_price", req.TotalActualPrice)

	if len(req.OrderDetails) == 0 {
		fe.add("order_details", "order_details are required")
	}

	for i, d := range req.OrderDetails {
		key := func(field string) string {
			return fmt.Sprintf("order_details.%d.%s", i, field)
		}

		var detail service.OrderDetailRequest
		detail.ID = d.ID

		if d.ItemID == nil {
			fe.add(key("item_id"), "item_id is required")
		} else {
			detail.ItemID = *d.ItemID
		}

		if d.Type == "" {
			fe.add(key("type"), "type is required")
		} else if !enum.IsValidUnitType(d.Type) {
			fe.add(key("type"), "type must be one of QTY, G, Kalang, L, ML")
		}
		detail.Type = d.Type

		detail.NeededAmount = requireNonNegative(fe, key("neededAmount"), d.NeededAmount)
		detail.NumOfItems = requireNonNegative(fe, key("num_of_items"), d.NumOfItems)
		detail.TotalPricePerUnits = requireNonNegative(fe, key("total_price_per_units"), d.TotalPricePerUnits)

		p.details = append(p.details, detail)
	}

	return p, fe
}

// checkReferences verifies the cashier and shop exist. Appends to fe.
func (h *OrderHandler) checkReferences(ctx context.Context, p parsedOrder, fe fieldErrors) error {
	if _, ok := fe["cashier_id"]; !ok {
		exists, err := h.store.UserExists(ctx, p.cashierID)
		if err != nil {
			return fmt.Errorf("check cashier exists: %w", err)
		}
		if !exists {
			fe.add("cashier_id", "cashier does not exist")
		}
	}
	if _, ok := fe["shop_id"]; !ok {
		exists, err := h.store.ShopExists(ctx, p.shopID)
		if err != nil {
			return fmt.Errorf("check shop exists: %w", err)
		}
		if !exists {
			fe.add("shop_id", "shop does not exist")
		}
	}
	return nil
}

// --- Handlers ---

// List returns a page of orders with cashier and shop names. Supports
// exact cashier_id / shop_id filters and three created_at range filters
// (date, week, month) which are AND-combined when more than one is given.
func (h *OrderHandler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	page, perPage := parsePagination(r)

	cashierID, ok := parseOptionalInt(w, q.Get("filter[cashier_id]"), "filter[cashier_id]")
	if !ok {
		return
	}
	shopID, ok := parseOptionalInt(w, q.Get("filter[shop_id]"), "filter[shop_id]")
	if !ok {
		return
	}

	params := database.ListOrdersParams{
		CashierID: cashierID,
		ShopID:    shopID,
		Limit:     int32(perPage),
		Offset:    int32((page - 1) * perPage),
	}

	// A malformed date range is ignored rather than rejected, so a bad
	// value degrades to an unfiltered listing.
	if s := q.Get("filter[date]"); s != "" {
		if from, to, err := parseDateRange(s); err != nil {
			log.Printf("ignoring malformed date filter %q: %v", s, err)
		} else {
			params.DateFrom = from
			params.DateTo = to
		}
	}

	if s := q.Get("filter[week]"); s != "" {
		from, to, err := parseWeek(s)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid week filter"})
			return
		}
		params.WeekFrom = from
		params.WeekTo = to
	}

	if s := q.Get("filter[month]"); s != "" {
		from, to, err := parseMonth(s)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid month filter"})
			return
		}
		params.MonthFrom = from
		params.MonthTo = to
	}

	orders, err := h.store.ListOrders(r.Context(), params)
	if err != nil {
		log.Printf("ERROR: list orders: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	total, err := h.store.CountOrders(r.Context(), database.CountOrdersParams{
		CashierID: params.CashierID,
		ShopID:    params.ShopID,
		DateFrom:  params.DateFrom,
		DateTo:    params.DateTo,
		WeekFrom:  params.WeekFrom,
		WeekTo:    params.WeekTo,
		MonthFrom: params.MonthFrom,
		MonthTo:   params.MonthTo,
	})
	if err != nil {
		log.Printf("ERROR: count orders: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	detailsByOrder, err := h.detailsForOrders(r.Context(), orders)
	if err != nil {
		log.Printf("ERROR: list order details: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	data := make([]orderWithDetailsResponse, len(orders))
	for i, row := range orders {
		data[i] = orderWithDetailsResponse{
			orderWithNamesResponse: orderWithNamesResponse{
				orderResponse: toOrderResponse(row.Order),
				CashierName:   row.CashierName,
				ShopName:      row.ShopName,
			},
			OrderDetails: detailsByOrder[row.ID],
		}
	}

	writeJSON(w, http.StatusOK, orderListResponse{
		Data:    data,
		Page:    page,
		PerPage: perPage,
		Total:   total,
	})
}

// ListAll returns every matching order without pagination, with shop names
// but not cashier names.
func (h *OrderHandler) ListAll(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	cashierID, ok := parseOptionalInt(w, q.Get("filter[cashier_id]"), "filter[cashier_id]")
	if !ok {
		return
	}
	shopID, ok := parseOptionalInt(w, q.Get("filter[shop_id]"), "filter[shop_id]")
	if !ok {
		return
	}

	orders, err := h.store.ListAllOrders(r.Context(), database.ListAllOrdersParams{
		CashierID: cashierID,
		ShopID:    shopID,
	})
	if err != nil {
		log.Printf("ERROR: list all orders: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	type allRow struct {
		orderResponse
		ShopName string `json:"shop_name"`
	}
	resp := make([]allRow, len(orders))
	for i, row := range orders {
		resp[i] = allRow{
			orderResponse: toOrderResponse(row.Order),
			ShopName:      row.ShopName,
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

// Create records a sale: the order row, its detail lines, and the stock
// decrement on every referenced item happen in one transaction.
func (h *OrderHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req orderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	p, fe := validateOrderRequest(req)
	if err := h.checkReferences(r.Context(), p, fe); err != nil {
		log.Printf("ERROR: create order: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}
	if len(fe) > 0 {
		writeValidationErrors(w, fe)
		return
	}

	result, err := h.svc.CreateOrder(r.Context(), service.CreateOrderRequest{
		CashierID:         p.cashierID,
		ShopID:            p.shopID,
		TotalSellingPrice: p.totalSellingPrice,
		TotalActualPrice:  p.totalActualPrice,
		Details:           p.details,
	})
	if err != nil {
		switch {
		case errors.Is(err, service.ErrItemNotFound):
			writeValidationErrors(w, fieldErrors{"order_details": {err.Error()}})
		case errors.Is(err, service.ErrInsufficientStock):
			writeJSON(w, http.StatusConflict, map[string]string{"error": err.Error()})
		case errors.Is(err, service.ErrEmptyDetails):
			writeValidationErrors(w, fieldErrors{"order_details": {"order_details are required"}})
		default:
			log.Printf("ERROR: create order: %v", err)
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		}
		return
	}

	details := make([]orderDetailResponse, len(result.Details))
	for i, d := range result.Details {
		item := d.Item
		details[i] = toOrderDetailResponse(d.Detail, &item)
	}
	resp := struct {
		orderResponse
		OrderDetails []orderDetailResponse `json:"order_details"`
	}{
		orderResponse: toOrderResponse(result.Order),
		OrderDetails:  details,
	}

	writeJSON(w, http.StatusCreated, resp)
	h.broadcast("order.created", result.Order.ShopID, resp)
}

// Get returns a single order with its details and items.
func (h *OrderHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid order ID"})
		return
	}

	resp, err := h.orderWithDetails(r.Context(), id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "Order not found"})
			return
		}
		log.Printf("ERROR: get order: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	writeJSON(w, http.StatusOK, resp)
}

// Update overwrites the order's fields and upserts the details present in
// the payload. Details omitted from the payload are kept, and stock is not
// re-validated.
func (h *OrderHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid order ID"})
		return
	}

	var req orderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	p, fe := validateOrderRequest(req)
	if err := h.checkReferences(r.Context(), p, fe); err != nil {
		log.Printf("ERROR: update order: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}
	if len(fe) > 0 {
		writeValidationErrors(w, fe)
		return
	}

	order, err := h.svc.UpdateOrder(r.Context(), service.UpdateOrderRequest{
		OrderID:           id,
		CashierID:         p.cashierID,
		ShopID:            p.shopID,
		TotalSellingPrice: p.totalSellingPrice,
		TotalActualPrice:  p.totalActualPrice,
		Details:           p.details,
	})
	if err != nil {
		if errors.Is(err, service.ErrOrderNotFound) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "Order not found"})
			return
		}
		log.Printf("ERROR: update order: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	resp, err := h.orderWithDetails(r.Context(), order.ID)
	if err != nil {
		log.Printf("ERROR: reload updated order: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	writeJSON(w, http.StatusOK, resp)
	h.broadcast("order.updated", order.ShopID, resp)
}

// Delete removes the order and its details.
func (h *OrderHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid order ID"})
		return
	}

	order, err := h.store.GetOrder(r.Context(), id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "Order not found"})
			return
		}
		log.Printf("ERROR: get order: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	if err := h.svc.DeleteOrder(r.Context(), id); err != nil {
		if errors.Is(err, service.ErrOrderNotFound) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "Order not found"})
			return
		}
		log.Printf("ERROR: delete order: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	w.WriteHeader(http.StatusNoContent)
	h.broadcast("order.deleted", order.ShopID, map[string]int64{"id": id})
}

// --- Helpers ---

// detailsForOrders batch-loads the details for a page of orders and groups
// them by order id. Orders without details map to an empty slice.
func (h *OrderHandler) detailsForOrders(ctx context.Context, orders []database.ListOrdersRow) (map[int64][]orderDetailResponse, error) {
	byOrder := make(map[int64][]orderDetailResponse, len(orders))
	if len(orders) == 0 {
		return byOrder, nil
	}

	ids := make([]int64, len(orders))
	for i, row := range orders {
		ids[i] = row.ID
		byOrder[row.ID] = []orderDetailResponse{}
	}

	rows, err := h.store.ListOrderDetailsByOrderIDs(ctx, ids)
	if err != nil {
		return nil, err
	}
	for _, row := range rows {
		item := row.Item
		orderID := row.OrderDetail.OrderID
		byOrder[orderID] = append(byOrder[orderID], toOrderDetailResponse(row.OrderDetail, &item))
	}
	return byOrder, nil
}

func (h *OrderHandler) orderWithDetails(ctx context.Context, id int64) (*orderWithDetailsResponse, error) {
	order, err := h.store.GetOrder(ctx, id)
	if err != nil {
		return nil, err
	}
	rows, err := h.store.ListOrderDetailsByOrder(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("list order details: %w", err)
	}

	details := make([]orderDetailResponse, len(rows))
	for i, row := range rows {
		item := row.Item
		details[i] = toOrderDetailResponse(row.OrderDetail, &item)
	}

	return &orderWithDetailsResponse{
		orderWithNamesResponse: orderWithNamesResponse{
			orderResponse: toOrderResponse(order.Order),
			CashierName:   order.CashierName,
			ShopName:      order.ShopName,
		},
		OrderDetails: details,
	}, nil
}

func (h *OrderHandler) broadcast(eventType string, shopID int64, payload interface{}) {
	if h.hub == nil {
		return
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		log.Printf("ERROR: marshal %s event: %v", eventType, err)
		return
	}
	h.hub.BroadcastToShop(shopID, ws.Event{Type: eventType, Payload: raw})
}

// parseDateRange parses a "from,to" pair of YYYY-MM-DD dates into a
// half-open range covering both days.
func parseDateRange(s string) (pgtype.Timestamptz, pgtype.Timestamptz, error) {
	var from, to pgtype.Timestamptz
	parts := strings.Split(s, ",")
	if len(parts) != 2 {
		return from, to, fmt.Errorf("expected from,to got %d parts", len(parts))
	}
	fromT, err := time.Parse("2006-01-02", strings.TrimSpace(parts[0]))
	if err != nil {
		return from, to, err
	}
	toT, err := time.Parse("2006-01-02", strings.TrimSpace(parts[1]))
	if err != nil {
		return from, to, err
	}
	from = pgtype.Timestamptz{Time: fromT, Valid: true}
	to = pgtype.Timestamptz{Time: toT.AddDate(0, 0, 1), Valid: true}
	return from, to, nil
}

// parseWeek resolves a YYYY-MM-DD date to the Monday-start week containing it.
func parseWeek(s string) (pgtype.Timestamptz, pgtype.Timestamptz, error) {
	var from, to pgtype.Timestamptz
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return from, to, err
	}
	offset := (int(t.Weekday()) + 6) % 7
	start := t.AddDate(0, 0, -offset)
	from = pgtype.Timestamptz{Time: start, Valid: true}
	to = pgtype.Timestamptz{Time: start.AddDate(0, 0, 7), Valid: true}
	return from, to, nil
}

// parseMonth resolves a YYYY-MM value to the calendar month range.
func parseMonth(s string) (pgtype.Timestamptz, pgtype.Timestamptz, error) {
	var from, to pgtype.Timestamptz
	t, err := time.Parse("2006-01", s)
	if err != nil {
		return from, to, err
	}
	start := time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
	from = pgtype.Timestamptz{Time: start, Valid: true}
	to = pgtype.Timestamptz{Time: start.AddDate(0, 1, 0), Valid: true}
	return from, to, nil
}
