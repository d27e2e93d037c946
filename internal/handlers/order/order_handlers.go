package order

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"gorm.io/gorm"

	"github.com/mstepanov/clothes_shop/internal/metrics"
	"github.com/mstepanov/clothes_shop/internal/middleware/auth"
	"github.com/mstepanov/clothes_shop/internal/models"
	"github.com/mstepanov/clothes_shop/internal/mykafka"
	orderservice "github.com/mstepanov/clothes_shop/internal/service/order"
	"github.com/mstepanov/clothes_shop/internal/shoperrors"
	"github.com/mstepanov/clothes_shop/internal/util"
)

type OrderHandler struct {
	DB       *gorm.DB
	Producer *mykafka.Producer
	Metrics  *metrics.Metrics
}

func (h *OrderHandler) publish(c echo.Context, event map[string]any) {
	if h.Producer == nil {
		return
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()
	if err := h.Producer.PublishEvent(ctx, "order_events", fmt.Sprint(event["userID"]), event); err != nil {
		c.Logger().Errorf("Kafka publish error: %v", err)
	}
}

type itemResponse struct {
	ID          uint    `json:"id"`
	ProductID   uint    `json:"product_id"`
	ProductName string  `json:"product_name"`
	Quantity    uint    `json:"quantity"`
	PriceAtTime float64 `json:"price_at_time"`
	Subtotal    float64 `json:"subtotal"`
}

type orderResponse struct {
	ID              uint                 `json:"id"`
	Number          string               `json:"number"`
	Status          models.OrderStatus   `json:"status"`
	TotalAmount     float64              `json:"total_amount"`
	ShippingAddress string               `json:"shipping_address"`
	PaymentMethod   models.PaymentMethod `json:"payment_method"`
	CreatedAt       time.Time            `json:"created_at"`
	UpdatedAt       time.Time            `json:"updated_at"`
	Items           []itemResponse       `json:"items"`
}

func toResponse(o *models.Order) orderResponse {
	resp := orderResponse{
		ID:              o.ID,
		Number:          o.Number,
		Status:          o.Status,
		TotalAmount:     o.TotalAmount,
		ShippingAddress: o.ShippingAddress,
		PaymentMethod:   o.PaymentMethod,
		CreatedAt:       o.CreatedAt,
		UpdatedAt:       o.UpdatedAt,
		Items:           make([]itemResponse, 0, len(o.Items)),
	}
	for _, it := range o.Items {
		resp.Items = append(resp.Items, itemResponse{
			ID:          it.ID,
			ProductID:   it.ProductID,
			ProductName: it.ProductName,
			Quantity:    it.Quantity,
			PriceAtTime: it.PriceAtTime,
			Subtotal:    it.Subtotal(),
		})
	}
	return resp
}

func failureReason(err error) string {
	var (
		notFound   *shoperrors.ProductNotFoundError
		noStock    *shoperrors.InsufficientStockError
		validation *shoperrors.ValidationError
	)
	switch {
	case errors.Is(err, shoperrors.ErrEmptyCart):
		return "empty_cart"
	case errors.As(err, &notFound):
		return "product_not_found"
	case errors.As(err, &noStock):
		return "insufficient_stock"
	case errors.As(err, &validation):
		return "validation"
	default:
		return "internal"
	}
}

// Create converts the caller's cart into an order.
func (h *OrderHandler) Create(c echo.Context) error {
	userID, err := auth.UserID(c)
	if err != nil {
		return err
	}

	var req struct {
		ShippingAddress string               `json:"shipping_address"`
		PaymentMethod   models.PaymentMethod `json:"payment_method"`
	}
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	placed, err := orderservice.Place(h.DB, userID, orderservice.PlaceRequest{
		ShippingAddress: req.ShippingAddress,
		PaymentMethod:   req.PaymentMethod,
	})
	if err != nil {
		if h.Metrics != nil {
			h.Metrics.CheckoutFails.WithLabelValues(failureReason(err)).Inc()
		}
		return shoperrors.ToHTTP(err)
	}

	if h.Metrics != nil {
		h.Metrics.OrdersPlaced.Inc()
		h.Metrics.OrderRevenue.Add(placed.TotalAmount)
	}
	h.publish(c, map[string]any{
		"type":    "order_created",
		"userID":  userID,
		"orderID": placed.ID,
		"number":  placed.Number,
		"total":   placed.TotalAmount,
	})

	return c.JSON(http.StatusCreated, toResponse(placed))
}

// ListMine returns the caller's orders, newest first.
func (h *OrderHandler) ListMine(c echo.Context) error {
	userID, err := auth.UserID(c)
	if err != nil {
		return err
	}

	page := parseIntDefault(c.QueryParam("page"), 1)
	size := parseIntDefault(c.QueryParam("size"), 10)
	offset, limit := util.Calculate(page, size)

	var orders []models.Order
	if err := h.DB.Preload("Items").
		Where("user_id = ?", userID).
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

// GetMine returns one of the caller's orders; other users' orders read as
// not found.
func (h *OrderHandler) GetMine(c echo.Context) error {
	userID, err := auth.UserID(c)
	if err != nil {
		return err
	}

	id, err := orderIDParam(c)
	if err != nil {
		return err
	}

	var o models.Order
	if err := h.DB.Preload("Items").
		Where("id = ? AND user_id = ?", id, userID).
		First(&o).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "order not found")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, toResponse(&o))
}
