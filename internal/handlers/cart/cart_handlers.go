package cart

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"gorm.io/gorm"

	"github.com/mstepanov/clothes_shop/internal/middleware/auth"
	"github.com/mstepanov/clothes_shop/internal/models"
	"github.com/mstepanov/clothes_shop/internal/mykafka"
	"github.com/mstepanov/clothes_shop/internal/service/stock"
	"github.com/mstepanov/clothes_shop/internal/shoperrors"
)

type CartHandler struct {
	DB       *gorm.DB
	Producer *mykafka.Producer
}

type cartLine struct {
	ID           uint    `json:"id"`
	ProductID    uint    `json:"product_id"`
	Quantity     uint    `json:"quantity"`
	ProductName  string  `json:"product_name"`
	ProductPrice float64 `json:"product_price"`
	ProductImage string  `json:"product_image,omitempty"`
	Subtotal     float64 `json:"subtotal"`
}

type cartSummary struct {
	Items       []cartLine `json:"items"`
	TotalItems  int        `json:"total_items"`
	TotalAmount float64    `json:"total_amount"`
}

// GetCart is a read-time projection: prices and names are re-read from the
// catalog on every call, so lines added before a price change show the
// current price. Lines whose product has been deleted are omitted here;
// checkout still rejects them.
func (h *CartHandler) GetCart(c echo.Context) error {
	userID, err := auth.UserID(c)
	if err != nil {
		return err
	}

	var items []models.CartItem
	if err := h.DB.Where("user_id = ?", userID).Order("id ASC").Find(&items).Error; err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	summary := cartSummary{Items: make([]cartLine, 0, len(items))}
	for _, item := range items {
		var product models.Product
		if err := h.DB.Preload("Images").First(&product, item.ProductID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				continue
			}
			return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
		}

		line := cartLine{
			ID:           item.ID,
			ProductID:    product.ID,
			Quantity:     item.Quantity,
			ProductName:  product.Name,
			ProductPrice: product.Price,
			ProductImage: primaryImage(product.Images),
			Subtotal:     product.Price * float64(item.Quantity),
		}
		summary.Items = append(summary.Items, line)
		summary.TotalAmount += line.Subtotal
	}
	summary.TotalItems = len(summary.Items)

	h.publish(c, map[string]any{
		"type":   "get_cart",
		"userID": userID,
	})
	return c.JSON(http.StatusOK, summary)
}

// AddToCart merges into an existing line for the same product instead of
// creating a duplicate, and validates stock against the merged quantity.
func (h *CartHandler) AddToCart(c echo.Context) error {
	userID, err := auth.UserID(c)
	if err != nil {
		return err
	}

	var req struct {
		ProductID uint `json:"product_id"`
		Quantity  uint `json:"quantity"`
	}
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if req.Quantity < 1 {
		req.Quantity = 1
	}

	var product models.Product
	if err := h.DB.First(&product, req.ProductID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return shoperrors.ToHTTP(&shoperrors.ProductNotFoundError{ProductID: req.ProductID})
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	remaining, err := stock.RemainingQuantity(h.DB, product.ID)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	requested := req.Quantity
	var item models.CartItem
	found := h.DB.Where("user_id = ? AND product_id = ?", userID, req.ProductID).First(&item)
	if found.Error == nil {
		requested = item.Quantity + req.Quantity
	} else if !errors.Is(found.Error, gorm.ErrRecordNotFound) {
		return echo.NewHTTPError(http.StatusInternalServerError, found.Error.Error())
	}

	if !product.InStock || remaining < int64(requested) {
		return shoperrors.ToHTTP(&shoperrors.InsufficientStockError{
			ProductID:   product.ID,
			ProductName: product.Name,
			Available:   remaining,
			Requested:   requested,
		})
	}

	if found.Error == nil {
		item.Quantity = requested
		if err := h.DB.Save(&item).Error; err != nil {
			return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
		}
	} else {
		item = models.CartItem{
			UserID:    userID,
			ProductID: req.ProductID,
			Quantity:  req.Quantity,
		}
		if err := h.DB.Create(&item).Error; err != nil {
			return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
		}
	}

	h.publish(c, map[string]any{
		"type":      "cart_item_added",
		"userID":    userID,
		"productID": req.ProductID,
		"quantity":  item.Quantity,
	})
	return c.JSON(http.StatusOK, item)
}

// UpdateItem sets an owned line to an exact quantity after a stock check.
func (h *CartHandler) UpdateItem(c echo.Context) error {
	userID, err := auth.UserID(c)
	if err != nil {
		return err
	}

	id, err := itemIDParam(c)
	if err != nil {
		return err
	}

	var req struct {
		Quantity uint `json:"quantity"`
	}
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if req.Quantity < 1 {
		return shoperrors.ToHTTP(&shoperrors.ValidationError{Field: "quantity", Reason: "must be a positive integer"})
	}

	var item models.CartItem
	if err := h.DB.Where("id = ? AND user_id = ?", id, userID).First(&item).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "cart item not found")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	var product models.Product
	if err := h.DB.First(&product, item.ProductID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return shoperrors.ToHTTP(&shoperrors.ProductNotFoundError{ProductID: item.ProductID})
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	remaining, err := stock.RemainingQuantity(h.DB, product.ID)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	if remaining < int64(req.Quantity) {
		return shoperrors.ToHTTP(&shoperrors.InsufficientStockError{
			ProductID:   product.ID,
			ProductName: product.Name,
			Available:   remaining,
			Requested:   req.Quantity,
		})
	}

	item.Quantity = req.Quantity
	if err := h.DB.Save(&item).Error; err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	h.publish(c, map[string]any{
		"type":         "cart_item_updated",
		"userID":       userID,
		"id":           item.ID,
		"new_quantity": item.Quantity,
	})
	return c.JSON(http.StatusOK, item)
}

// RemoveItem deletes one owned line entirely.
func (h *CartHandler) RemoveItem(c echo.Context) error {
	userID, err := auth.UserID(c)
	if err != nil {
		return err
	}

	id, err := itemIDParam(c)
	if err != nil {
		return err
	}

	var item models.CartItem
	if err := h.DB.Where("id = ? AND user_id = ?", id, userID).First(&item).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "cart item not found")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	if err := h.DB.Delete(&item).Error; err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	h.publish(c, map[string]any{
		"type":         "cart_item_deleted",
		"userID":       userID,
		"deleted_item": id,
	})
	return c.NoContent(http.StatusNoContent)
}

// ClearCart removes every line the user has.
func (h *CartHandler) ClearCart(c echo.Context) error {
	userID, err := auth.UserID(c)
	if err != nil {
		return err
	}

	if err := h.DB.Where("user_id = ?", userID).Delete(&models.CartItem{}).Error; err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	h.publish(c, map[string]any{
		"type":   "cart_cleared",
		"userID": userID,
	})
	return c.NoContent(http.StatusNoContent)
}
