package order

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"gorm.io/gorm"

	"github.com/mstepanov/clothes_shop/internal/models"
	orderservice "github.com/mstepanov/clothes_shop/internal/service/order"
	"github.com/mstepanov/clothes_shop/internal/shoperrors"
	"github.com/mstepanov/clothes_shop/internal/util"
)

func parseIntDefault(s string, def int) int {
	if s == "" {
		return def
	}
	if v, err := strconv.Atoi(s); err == nil {
		return v
	}
	return def
}

func orderIDParam(c echo.Context) (uint, error) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil || id <= 0 {
		return 0, echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	return uint(id), nil
}

// ListAll returns all orders with optional status and date-range filters.
func (h *OrderHandler) ListAll(c echo.Context) error {
	page := parseIntDefault(c.QueryParam("page"), 1)
	size := parseIntDefault(c.QueryParam("size"), 10)
	offset, limit := util.Calculate(page, size)

	q := h.DB.Model(&models.Order{})
	if status := c.QueryParam("status"); status != "" {
		q = q.Where("status = ?", status)
	}
	if from := c.QueryParam("from_date"); from != "" {
		ts, err := time.Parse(time.RFC3339, from)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid from_date")
		}
		q = q.Where("created_at >= ?", ts)
	}
	if to := c.QueryParam("to_date"); to != "" {
		ts, err := time.Parse(time.RFC3339, to)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid to_date")
		}
		q = q.Where("created_at <= ?", ts)
	}

	var orders []models.Order
	if err := q.Preload("Items").
		Order("created_at DESC").
		Offset(offset).Limit(limit).
		Find(&orders).Error; err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	resp := make([]orderResponse, 0, len(orders))
	for i := range orders {
		resp = append(resp, toResponse(&orders[i]))
	}
	return c.JSON(http.StatusOK, resp)
}

// Recent returns orders from the last N days (default 7).
func (h *OrderHandler) Recent(c echo.Context) error {
	days := parseIntDefault(c.QueryParam("days"), 7)
	limit := parseIntDefault(c.QueryParam("limit"), 10)

	var orders []models.Order
	if err := h.DB.Preload("Items").
		Where("created_at >= ?", time.Now().AddDate(0, 0, -days)).
		Order("created_at DESC").
		Limit(limit).
		Find(&orders).Error; err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	resp := make([]orderResponse, 0, len(orders))
	for i := range orders {
		resp = append(resp, toResponse(&orders[i]))
	}
	return c.JSON(http.StatusOK, resp)
}

// Get returns any order by id.
func (h *OrderHandler) Get(c echo.Context) error {
	id, err := orderIDParam(c)
	if err != nil {
		return err
	}

	var o models.Order
	if err := h.DB.Preload("Items").First(&o, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "order not found")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, toResponse(&o))
}

// UpdateStatus applies a guarded transition; backward moves are rejected.
func (h *OrderHandler) UpdateStatus(c echo.Context) error {
	id, err := orderIDParam(c)
	if err != nil {
		return err
	}

	var req struct {
		Status models.OrderStatus `json:"status"`
	}
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	updated, err := orderservice.UpdateStatus(h.DB, id, req.Status)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "order not found")
		}
		return shoperrors.ToHTTP(err)
	}

	h.publish(c, map[string]any{
		"type":    "order_status_updated",
		"userID":  updated.UserID,
		"orderID": updated.ID,
		"status":  updated.Status,
	})
	return c.JSON(http.StatusOK, toResponse(updated))
}

// DashboardSummary aggregates order counts and revenue for the admin
// dashboard.
func (h *OrderHandler) DashboardSummary(c echo.Context) error {
	var totalOrders int64
	if err := h.DB.Model(&models.Order{}).Count(&totalOrders).Error; err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	type statusCount struct {
		Status models.OrderStatus `json:"status"`
		Count  int64              `json:"count"`
	}
	var byStatus []statusCount
	if err := h.DB.Model(&models.Order{}).
		Select("status, COUNT(id) AS count").
		Group("status").
		Scan(&byStatus).Error; err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	sumSince := func(since time.Time) (int64, float64, error) {
		q := h.DB.Model(&models.Order{})
		if !since.IsZero() {
			q = q.Where("created_at >= ?", since)
		}
		var count int64
		if err := q.Count(&count).Error; err != nil {
			return 0, 0, err
		}
		var revenue float64
		q = h.DB.Model(&models.Order{})
		if !since.IsZero() {
			q = q.Where("created_at >= ?", since)
		}
		if err := q.Select("COALESCE(SUM(total_amount), 0)").Scan(&revenue).Error; err != nil {
			return 0, 0, err
		}
		return count, revenue, nil
	}

	_, totalRevenue, err := sumSince(time.Time{})
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	weekCount, weekRevenue, err := sumSince(time.Now().AddDate(0, 0, -7))
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	monthCount, monthRevenue, err := sumSince(time.Now().AddDate(0, 0, -30))
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	var latest []models.Order
	if err := h.DB.Order("created_at DESC").Limit(5).Find(&latest).Error; err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	return c.JSON(http.StatusOK, echo.Map{
		"total_orders":         totalOrders,
		"orders_by_status":     byStatus,
		"total_revenue":        totalRevenue,
		"recent_orders_count":  weekCount,
		"recent_revenue":       weekRevenue,
		"monthly_orders_count": monthCount,
		"monthly_revenue":      monthRevenue,
		"latest_orders":        latest,
	})
}
