package handlers

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"gorm.io/gorm"

	"github.com/mstepanov/clothes_shop/internal/metrics"
	"github.com/mstepanov/clothes_shop/internal/models"
	"github.com/mstepanov/clothes_shop/internal/mykafka"
	"github.com/mstepanov/clothes_shop/internal/service/stock"
	"github.com/mstepanov/clothes_shop/internal/shoperrors"
)

type StockHandler struct {
	DB       *gorm.DB
	Producer *mykafka.Producer
	Metrics  *metrics.Metrics
}

func (h *StockHandler) publish(c echo.Context, event map[string]any) {
	if h.Producer == nil {
		return
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()
	if err := h.Producer.PublishEvent(ctx, "product_events", fmt.Sprint(event["productID"]), event); err != nil {
		c.Logger().Errorf("Kafka publish error: %v", err)
	}
}

// Adjust appends one ledger movement for a product. Quantity and change
// type are validated before anything is written.
func (h *StockHandler) Adjust(c echo.Context) error {
	productID, err := parseIDParam(c, "id")
	if err != nil {
		return err
	}

	var req struct {
		ChangeType models.StockChangeType `json:"change_type"`
		Quantity   int                    `json:"quantity"`
	}
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if req.Quantity <= 0 {
		return shoperrors.ToHTTP(&shoperrors.ValidationError{Field: "quantity", Reason: "must be a positive integer"})
	}

	movement, err := stock.Adjust(h.DB, productID, req.ChangeType, uint(req.Quantity))
	if err != nil {
		return shoperrors.ToHTTP(err)
	}

	if h.Metrics != nil {
		h.Metrics.StockMoves.WithLabelValues(string(movement.ChangeType)).Inc()
	}
	h.publish(c, map[string]any{
		"type":        "stock_adjusted",
		"productID":   productID,
		"change_type": movement.ChangeType,
		"quantity":    movement.Quantity,
	})

	remaining, err := stock.RemainingQuantity(h.DB, productID)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusCreated, echo.Map{
		"movement":   movement,
		"stock_left": remaining,
	})
}

// Movements returns the full ledger history for a product, newest first.
func (h *StockHandler) Movements(c echo.Context) error {
	productID, err := parseIDParam(c, "id")
	if err != nil {
		return err
	}

	movements, err := stock.History(h.DB, productID)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	remaining, err := stock.RemainingQuantity(h.DB, productID)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, echo.Map{
		"movements":  movements,
		"stock_left": remaining,
	})
}
