package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"
	"github.com/tokokita/api/internal/database"
)

const (
	defaultPerPage     = 10
	maxPerPage         = 100
	defaultSearchLimit = 20

	// maxPage keeps (page-1)*perPage inside int32 range for the SQL OFFSET.
	maxPage = math.MaxInt32 / maxPerPage
)

// ItemStore defines the database methods needed by item handlers.
// Satisfied by *database.Queries; narrow interface for testability.
type ItemStore interface {
	ListItems(ctx context.Context, arg database.ListItemsParams) ([]database.ListItemsRow, error)
	CountItems(ctx context.Context, arg database.CountItemsParams) (int64, error)
	SearchItems(ctx context.Context, arg database.SearchItemsParams) ([]database.Item, error)
	ListAllItems(ctx context.Context, arg database.ListAllItemsParams) ([]database.Item, error)
	GetItem(ctx context.Context, id int64) (database.Item, error)
	CreateItem(ctx context.Context, arg database.CreateItemParams) (database.Item, error)
	UpdateItem(ctx context.Context, arg database.UpdateItemParams) (database.Item, error)
	DeleteItem(ctx context.Context, id int64) (int64, error)
	ShopExists(ctx context.Context, id int64) (bool, error)
}

// ItemHandler handles item CRUD endpoints.
type ItemHandler struct {
	store ItemStore
}

// NewItemHandler creates a new ItemHandler.
func NewItemHandler(store ItemStore) *ItemHandler {
	return &ItemHandler{store: store}
}

// RegisterRoutes registers item endpoints on the given Chi router.
// Expected to be mounted at /items.
func (h *ItemHandler) RegisterRoutes(r chi.Router) {
	r.Get("/", h.List)
	r.Get("/search", h.Search)
	r.Get("/all", h.ListAll)
	r.Post("/", h.Create)
	r.Get("/{id}", h.Get)
	r.Put("/{id}", h.Update)
	r.Delete("/{id}", h.Delete)
}

// --- Request / Response types ---

type itemRequest struct {
	ItemID              *int64 `json:"item_id"`
	Name                string `json:"name"`
	Type                string `json:"type"`
	NumOfItems          string `json:"num_of_items"`
	SellingPricePerUnit string `json:"selling_price_per_unit"`
	ActualPricePerUnit  string `json:"actual_price_per_unit"`
	ShopID              *int64 `json:"shop_id"`
}

type itemResponse struct {
	ID                  int64     `json:"id"`
	ItemID              int64     `json:"item_id"`
	Name                string    `json:"name"`
	Type                string    `json:"type"`
	NumOfItems          string    `json:"num_of_items"`
	SellingPricePerUnit string    `json:"selling_price_per_unit"`
	ActualPricePerUnit  string    `json:"actual_price_per_unit"`
	ShopID              int64     `json:"shop_id"`
	CreatedAt           time.Time `json:"created_at"`
	UpdatedAt           time.Time `json:"updated_at"`
}

type itemWithShopResponse struct {
	itemResponse
	ShopName string `json:"shop_name"`
}

// itemListResponse wraps a page of items with pagination metadata.
type itemListResponse struct {
	Data    []itemWithShopResponse `json:"data"`
	Page    int                    `json:"page"`
	PerPage int                    `json:"per_page"`
	Total   int64                  `json:"total"`
}

func toItemResponse(i database.Item) itemResponse {
	return itemResponse{
		ID:                  i.ID,
		ItemID:              i.ItemID,
		Name:                i.Name,
		Type:                i.Type,
		NumOfItems:          numericToString(i.NumOfItems),
		SellingPricePerUnit: numericToString(i.SellingPricePerUnit),
		ActualPricePerUnit:  numericToString(i.ActualPricePerUnit),
		ShopID:              i.ShopID,
		CreatedAt:           i.CreatedAt,
		UpdatedAt:           i.UpdatedAt,
	}
}

// --- Validation ---

// fieldErrors collects per-field validation messages, Laravel-style keys.
type fieldErrors map[string][]string

func (fe fieldErrors) add(field, msg string) {
	fe[field] = append(fe[field], msg)
}

type validationErrorResponse struct {
	Success bool        `json:"success"`
	Errors  fieldErrors `json:"errors"`
}

func writeValidationErrors(w http.ResponseWriter, fe fieldErrors) {
	writeJSON(w, http.StatusUnprocessableEntity, validationErrorResponse{Success: false, Errors: fe})
}

// parsedItem holds an itemRequest after validation.
type parsedItem struct {
	itemID              int64
	name                string
	typ                 string
	numOfItems          decimal.Decimal
	sellingPricePerUnit decimal.Decimal
	actualPricePerUnit  decimal.Decimal
	shopID              int64
}

// validateItemRequest checks required fields and numeric formats.
// maxLen additionally enforces the 255-character cap that only the update
// endpoint applies to name and type.
func validateItemRequest(req itemRequest, maxLen bool) (parsedItem, fieldErrors) {
	fe := fieldErrors{}
	var p parsedItem

	if req.ItemID == nil {
		fe.add("item_id", "item_id is required")
	} else {
		p.itemID = *req.ItemID
	}

	if req.Name == "" {
		fe.add("name", "name is required")
	} else if maxLen && len(req.Name) > 255 {
		fe.add("name", "name must not exceed 255 characters")
	}
	p.name = req.Name

	if req.Type == "" {
		fe.add("type", "type is required")
	} else if maxLen && len(req.Type) > 255 {
		fe.add("type", "type must not exceed 255 characters")
	}
	p.typ = req.Type

	p.numOfItems = requireNonNegative(fe, "num_of_items", req.NumOfItems)
	p.sellingPricePerUnit = requireNonNegative(fe, "selling_price_per_unit", req.SellingPricePerUnit)
	p.actualPricePerUnit = requireNonNegative(fe, "actual_price_per_unit", req.ActualPricePerUnit)

	if req.ShopID == nil {
		fe.add("shop_id", "shop_id is required")
	} else {
		p.shopID = *req.ShopID
	}

	return p, fe
}

func requireNonNegative(fe fieldErrors, field, value string) decimal.Decimal {
	if value == "" {
		fe.add(field, field+" is required")
		return decimal.Zero
	}
	d, err := decimal.NewFromString(value)
	if err != nil {
		fe.add(field, field+" must be numeric")
		return decimal.Zero
	}
	if d.IsNegative() {
		fe.add(field, field+" must be >= 0")
		return decimal.Zero
	}
	return d
}

// --- Handlers ---

// List returns a page of items with shop names, filtered by partial name
// and type match and exact item_id / shop_id.
func (h *ItemHandler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	page, perPage := parsePagination(r)

	itemID, ok := parseOptionalInt(w, q.Get("filter[item_id]"), "filter[item_id]")
	if !ok {
		return
	}
	shopID, ok := parseOptionalInt(w, q.Get("filter[shop_id]"), "filter[shop_id]")
	if !ok {
		return
	}

	params := database.ListItemsParams{
		Name:   q.Get("filter[name]"),
		Type:   q.Get("filter[type]"),
		ItemID: itemID,
		ShopID: shopID,
		Limit:  int32(perPage),
		Offset: int32((page - 1) * perPage),
	}

	items, err := h.store.ListItems(r.Context(), params)
	if err != nil {
		log.Printf("ERROR: list items: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	total, err := h.store.CountItems(r.Context(), database.CountItemsParams{
		Name:   params.Name,
		Type:   params.Type,
		ItemID: params.ItemID,
		ShopID: params.ShopID,
	})
	if err != nil {
		log.Printf("ERROR: count items: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	data := make([]itemWithShopResponse, len(items))
	for i, row := range items {
		data[i] = itemWithShopResponse{
			itemResponse: toItemResponse(row.Item),
			ShopName:     row.ShopName,
		}
	}

	writeJSON(w, http.StatusOK, itemListResponse{
		Data:    data,
		Page:    page,
		PerPage: perPage,
		Total:   total,
	})
}

// Search is a bounded, unpaginated lookup for autocomplete-style clients.
// The shop_id filter applies whenever the parameter is present, even for
// shop_id=0; item_id is only applied when non-empty. Ordered by name.
func (h *ItemHandler) Search(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	params := database.SearchItemsParams{
		Name:  q.Get("name"),
		Limit: defaultSearchLimit,
	}

	if q.Has("shop_id") {
		v, err := strconv.ParseInt(q.Get("shop_id"), 10, 64)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid shop_id"})
			return
		}
		params.ShopID = pgtype.Int8{Int64: v, Valid: true}
	}

	if s := q.Get("item_id"); s != "" {
		v, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid item_id"})
			return
		}
		params.ItemID = pgtype.Int8{Int64: v, Valid: true}
	}

	if s := q.Get("limit"); s != "" {
		if v, err := strconv.Atoi(s); err == nil && v > 0 {
			params.Limit = int32(v)
		}
	}

	items, err := h.store.SearchItems(r.Context(), params)
	if err != nil {
		log.Printf("ERROR: search items: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	resp := make([]itemResponse, len(items))
	for i, item := range items {
		resp[i] = toItemResponse(item)
	}
	writeJSON(w, http.StatusOK, resp)
}

// ListAll returns every matching row without pagination. Meant for small
// reference data sets feeding dropdowns; an unfiltered call returns the
// whole table.
func (h *ItemHandler) ListAll(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	itemID, ok := parseOptionalInt(w, q.Get("filter[item_id]"), "filter[item_id]")
	if !ok {
		return
	}
	shopID, ok := parseOptionalInt(w, q.Get("filter[shop_id]"), "filter[shop_id]")
	if !ok {
		return
	}

	items, err := h.store.ListAllItems(r.Context(), database.ListAllItemsParams{
		Name:   q.Get("filter[name]"),
		ItemID: itemID,
		Type:   q.Get("filter[type]"),
		ShopID: shopID,
	})
	if err != nil {
		log.Printf("ERROR: list all items: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	resp := make([]itemResponse, len(items))
	for i, item := range items {
		resp[i] = toItemResponse(item)
	}
	writeJSON(w, http.StatusOK, resp)
}

// Create adds a new item.
func (h *ItemHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req itemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	p, fe := validateItemRequest(req, false)
	if len(fe) == 0 {
		exists, err := h.store.ShopExists(r.Context(), p.shopID)
		if err != nil {
			log.Printf("ERROR: check shop exists: %v", err)
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
			return
		}
		if !exists {
			fe.add("shop_id", "shop does not exist")
		}
	}
	if len(fe) > 0 {
		writeValidationErrors(w, fe)
		return
	}

	item, err := h.store.CreateItem(r.Context(), database.CreateItemParams{
		ItemID:              p.itemID,
		Name:                p.name,
		Type:                p.typ,
		NumOfItems:          decimalToNumeric(p.numOfItems),
		SellingPricePerUnit: decimalToNumeric(p.sellingPricePerUnit),
		ActualPricePerUnit:  decimalToNumeric(p.actualPricePerUnit),
		ShopID:              p.shopID,
	})
	if err != nil {
		if isForeignKeyViolation(err) {
			writeValidationErrors(w, fieldErrors{"shop_id": {"shop does not exist"}})
			return
		}
		log.Printf("ERROR: create item: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	writeJSON(w, http.StatusCreated, toItemResponse(item))
}

// Get returns a single item by primary key.
func (h *ItemHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid item ID"})
		return
	}

	item, err := h.store.GetItem(r.Context(), id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "Item not found"})
			return
		}
		log.Printf("ERROR: get item: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	writeJSON(w, http.StatusOK, toItemResponse(item))
}

// Update overwrites every field of an existing item.
func (h *ItemHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid item ID"})
		return
	}

	var req itemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	p, fe := validateItemRequest(req, true)
	if len(fe) == 0 {
		exists, err := h.store.ShopExists(r.Context(), p.shopID)
		if err != nil {
			log.Printf("ERROR: check shop exists: %v", err)
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
			return
		}
		if !exists {
			fe.add("shop_id", "shop does not exist")
		}
	}
	if len(fe) > 0 {
		writeValidationErrors(w, fe)
		return
	}

	item, err := h.store.UpdateItem(r.Context(), database.UpdateItemParams{
		ID:                  id,
		ItemID:              p.itemID,
		Name:                p.name,
		Type:                p.typ,
		NumOfItems:          decimalToNumeric(p.numOfItems),
		SellingPricePerUnit: decimalToNumeric(p.sellingPricePerUnit),
		ActualPricePerUnit:  decimalToNumeric(p.actualPricePerUnit),
		ShopID:              p.shopID,
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "Item not found"})
			return
		}
		if isForeignKeyViolation(err) {
			writeValidationErrors(w, fieldErrors{"shop_id": {"shop does not exist"}})
			return
		}
		log.Printf("ERROR: update item: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	writeJSON(w, http.StatusOK, toItemResponse(item))
}

// Delete removes an item.
func (h *ItemHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid item ID"})
		return
	}

	if _, err := h.store.DeleteItem(r.Context(), id); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "Item not found"})
			return
		}
		log.Printf("ERROR: delete item: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// --- Helpers ---

func parsePagination(r *http.Request) (page, perPage int) {
	page = 1
	if s := r.URL.Query().Get("page"); s != "" {
		if v, err := strconv.Atoi(s); err == nil && v > 0 {
			page = v
		}
	}
	if page > maxPage {
		page = maxPage
	}
	perPage = defaultPerPage
	if s := r.URL.Query().Get("per_page"); s != "" {
		if v, err := strconv.Atoi(s); err == nil && v > 0 {
			perPage = v
		}
	}
	if perPage > maxPerPage {
		perPage = maxPerPage
	}
	return page, perPage
}

// parseOptionalInt parses an optional integer query value into a nullable
// bigint filter. Writes a 400 response and returns ok=false on bad input.
func parseOptionalInt(w http.ResponseWriter, s, name string) (pgtype.Int8, bool) {
	if s == "" {
		return pgtype.Int8{}, true
	}
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid " + name})
		return pgtype.Int8{}, false
	}
	return pgtype.Int8{Int64: v, Valid: true}, true
}

func isForeignKeyViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23503"
}

func numericToString(n pgtype.Numeric) string {
	if !n.Valid {
		return "0.00"
	}
	val, err := n.Value()
	if err != nil || val == nil {
		return "0.00"
	}
	d, err := decimal.NewFromString(val.(string))
	if err != nil {
		return "0.00"
	}
	return d.StringFixed(2)
}

func decimalToNumeric(d decimal.Decimal) pgtype.Numeric {
	var n pgtype.Numeric
	_ = n.Scan(d.StringFixed(2))
	return n
}
