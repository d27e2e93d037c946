package cart

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/mstepanov/clothes_shop/internal/models"
)

func (h *CartHandler) publish(c echo.Context, event map[string]any) {
	if h.Producer == nil {
		return
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()
	if err := h.Producer.PublishEvent(ctx, "cart_events", fmt.Sprint(event["userID"]), event); err != nil {
		c.Logger().Errorf("Kafka publish error: %v", err)
	}
}

func itemIDParam(c echo.Context) (uint, error) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil || id <= 0 {
		return 0, echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	return uint(id), nil
}

// primaryImage prefers the image flagged primary, falling back to the first
// one uploaded.
func primaryImage(images []models.ProductImage) string {
	for _, img := range images {
		if img.IsPrimary {
			return img.ImageURL
		}
	}
	if len(images) > 0 {
		return images[0].ImageURL
	}
	return ""
}
