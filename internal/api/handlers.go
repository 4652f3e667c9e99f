package api

import (
	"errors"
	"net/http"
	"strconv"
	"sync"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"offsetdb/internal/engine"
	"offsetdb/internal/logging"
	"offsetdb/internal/models"
	"offsetdb/internal/query"
	"offsetdb/internal/types"
)

// Handler serves queries over a database that is loaded in the background.
// Until SetData is called every data route answers 503.
type Handler struct {
	mu sync.RWMutex
	db *engine.Database
	ex *query.Executor

	log *zap.Logger
}

func NewHandler(log *zap.Logger) *Handler {
	return &Handler{log: logging.OrNop(log)}
}

// SetData publishes a loaded database and its executor.
func (h *Handler) SetData(db *engine.Database, ex *query.Executor) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.db, h.ex = db, ex
}

func (h *Handler) data() (*engine.Database, *query.Executor, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if h.db == nil {
		return nil, nil, echo.NewHTTPError(http.StatusServiceUnavailable, "data is still loading")
	}
	return h.db, h.ex, nil
}

func (h *Handler) RegisterRoutes(e *echo.Echo) {
	e.GET("/healthz", h.Health)
	api := e.Group("/api")
	api.GET("/relations", h.GetRelations)
	api.GET("/queries/pricing-summary", h.GetPricingSummary)
	api.GET("/queries/shipping-priority", h.GetShippingPriority)
}

// --- HANDLERS ---
func getPaginationParams(c echo.Context, defaultLimit int) (int, int) {
	limit, err := strconv.Atoi(c.QueryParam("limit"))
	if err != nil || limit <= 0 {
		limit = defaultLimit
	}
	offset, err := strconv.Atoi(c.QueryParam("offset"))
	if err != nil || offset < 0 {
		offset = 0
	}
	return limit, offset
}

func (h *Handler) Health(c echo.Context) error {
	_, _, err := h.data()
	return c.JSON(http.StatusOK, map[string]interface{}{
		"status": "ok",
		"loaded": err == nil,
	})
}

func (h *Handler) GetRelations(c echo.Context) error {
	db, _, err := h.data()
	if err != nil {
		return err
	}
	stats := models.Stats(db)
	total := len(stats)
	limit, offset := getPaginationParams(c, total)

	start := min(offset, total)
	end := min(start+limit, total)

	return c.JSON(http.StatusOK, map[string]interface{}{
		"data":   stats[start:end],
		"total":  total,
		"limit":  limit,
		"offset": offset,
	})
}

// pricing summary, optional ?before=YYYY-MM-DD
func (h *Handler) GetPricingSummary(c echo.Context) error {
	_, ex, err := h.data()
	if err != nil {
		return err
	}
	before := c.QueryParam("before")
	if before != "" {
		if err := validDate(before); err != nil {
			return err
		}
	}
	res, err := ex.PricingSummary(c.Request().Context(), before)
	if err != nil {
		return h.queryError(err)
	}
	return c.JSON(http.StatusOK, models.FromResult(res))
}

// shipping priority, ?segment=&date=&limit= (top 10 by default)
func (h *Handler) GetShippingPriority(c echo.Context) error {
	_, ex, err := h.data()
	if err != nil {
		return err
	}
	segment := c.QueryParam("segment")
	if segment == "" {
		segment = "BUILDING"
	}
	date := c.QueryParam("date")
	if date == "" {
		date = "1995-03-15"
	}
	if err := validDate(date); err != nil {
		return err
	}
	limit, _ := getPaginationParams(c, 10)

	rows, err := ex.ShippingPriority(c.Request().Context(), segment, date, limit)
	if err != nil {
		return h.queryError(err)
	}
	return c.JSON(http.StatusOK, models.FromOrders(rows))
}

func validDate(s string) error {
	if _, err := types.ParseDate([]byte(s)); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return nil
}

func (h *Handler) queryError(err error) error {
	var lookupErr *engine.LookupError
	if errors.As(err, &lookupErr) {
		return echo.NewHTTPError(http.StatusNotFound, lookupErr.Error())
	}
	h.log.Error("query failed", zap.Error(err))
	return echo.NewHTTPError(http.StatusInternalServerError, "query failed").SetInternal(err)
}
