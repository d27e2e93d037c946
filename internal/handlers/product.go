package handlers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/elastic/go-elasticsearch/v9"
	"github.com/labstack/echo/v4"
	"gorm.io/gorm"

	"github.com/mstepanov/clothes_shop/internal/models"
	"github.com/mstepanov/clothes_shop/internal/mykafka"
	"github.com/mstepanov/clothes_shop/internal/service/search"
	"github.com/mstepanov/clothes_shop/internal/service/stock"
	"github.com/mstepanov/clothes_shop/internal/shoperrors"
	"github.com/mstepanov/clothes_shop/internal/util"
)

type ProductHandler struct {
	DB       *gorm.DB
	Producer *mykafka.Producer
	ES       *elasticsearch.Client
	Index    string
}

func (h *ProductHandler) publish(c echo.Context, event map[string]any) {
	if h.Producer == nil {
		return
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()
	if err := h.Producer.PublishEvent(ctx, "product_events", fmt.Sprint(event["productID"]), event); err != nil {
		c.Logger().Errorf("Kafka publish error: %v", err)
	}
}

func (h *ProductHandler) reindex(c echo.Context, p *models.Product) {
	if h.ES == nil {
		return
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()
	if err := search.IndexProduct(ctx, h.ES, h.Index, p); err != nil {
		c.Logger().Errorf("ES index error: %v", err)
	}
}

func (h *ProductHandler) unindex(c echo.Context, productID uint) {
	if h.ES == nil {
		return
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()
	if err := search.RemoveProduct(ctx, h.ES, h.Index, productID); err != nil {
		c.Logger().Errorf("ES delete error: %v", err)
	}
}

func applyFilters(q *gorm.DB, c echo.Context) *gorm.DB {
	if v := c.QueryParam("category_id"); v != "" {
		q = q.Where("category_id = ?", parseIntDefault(v, 0))
	}
	if v := c.QueryParam("min_price"); v != "" {
		q = q.Where("price >= ?", v)
	}
	if v := c.QueryParam("max_price"); v != "" {
		q = q.Where("price <= ?", v)
	}
	if v := c.QueryParam("size"); v != "" {
		q = q.Where("size = ?", v)
	}
	if v := c.QueryParam("gender"); v != "" {
		q = q.Where("gender = ?", v)
	}
	if v := c.QueryParam("in_stock"); v != "" {
		q = q.Where("in_stock = ?", v == "true")
	}
	return q
}

func applySorting(q *gorm.DB, sortBy string) *gorm.DB {
	switch sortBy {
	case "price_low_to_high":
		return q.Order("price ASC")
	case "price_high_to_low":
		return q.Order("price DESC")
	case "best_selling":
		return q.Order("sold_count DESC")
	default:
		return q.Order("created_at DESC")
	}
}

func averageRating(db *gorm.DB, productID uint) (float64, error) {
	var avg float64
	err := db.Model(&models.Review{}).
		Where("product_id = ?", productID).
		Select("COALESCE(AVG(rating), 0)").
		Scan(&avg).Error
	return avg, err
}

func (h *ProductHandler) GetProducts(c echo.Context) error {
	page := parseIntDefault(c.QueryParam("page"), 1)
	size := parseIntDefault(c.QueryParam("size"), util.DefaultPageSize)
	offset, limit := util.Calculate(page, size)

	base := applyFilters(h.DB.Model(&models.Product{}), c)

	var total int64
	if err := base.Count(&total).Error; err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	var items []models.Product
	q := applySorting(applyFilters(h.DB.Model(&models.Product{}), c), c.QueryParam("sort"))
	if err := q.Offset(offset).Limit(limit).Find(&items).Error; err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	return c.JSON(http.StatusOK, map[string]any{
		"data": items,
		"meta": map[string]any{
			"page":        page,
			"size":        limit,
			"total":       total,
			"total_pages": (total + int64(limit) - 1) / int64(limit),
			"has_prev":    page > 1,
			"has_next":    int64(offset+limit) < total,
		},
	})
}

func (h *ProductHandler) GetProduct(c echo.Context) error {
	id, err := parseIDParam(c, "id")
	if err != nil {
		return err
	}

	var product models.Product
	if err := h.DB.Preload("Category").Preload("Images").Preload("Reviews").
		First(&product, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return shoperrors.ToHTTP(&shoperrors.ProductNotFoundError{ProductID: id})
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	remaining, err := stock.RemainingQuantity(h.DB, product.ID)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	avg, err := averageRating(h.DB, product.ID)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	return c.JSON(http.StatusOK, map[string]any{
		"product":        product,
		"category":       product.Category,
		"images":         product.Images,
		"reviews":        product.Reviews,
		"average_rating": avg,
		"stock_left":     remaining,
	})
}

// NewArrivals lists products created in the last 30 days, newest first.
func (h *ProductHandler) NewArrivals(c echo.Context) error {
	limit := parseIntDefault(c.QueryParam("limit"), 12)

	var items []models.Product
	if err := h.DB.Where("created_at >= ?", time.Now().AddDate(0, 0, -30)).
		Order("created_at DESC").Limit(limit).Find(&items).Error; err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, items)
}

// MonthlyFeatured lists the best sellers among products of the last 30 days.
func (h *ProductHandler) MonthlyFeatured(c echo.Context) error {
	limit := parseIntDefault(c.QueryParam("limit"), 12)

	var items []models.Product
	if err := h.DB.Where("created_at >= ?", time.Now().AddDate(0, 0, -30)).
		Order("sold_count DESC").Limit(limit).Find(&items).Error; err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, items)
}

type productRequest struct {
	Name         string               `json:"name"`
	CategoryID   uint                 `json:"category_id"`
	Brand        string               `json:"brand"`
	Weight       float64              `json:"weight"`
	Gender       models.Gender        `json:"gender"`
	Size         models.Size          `json:"size"`
	Description  string               `json:"description"`
	Price        float64              `json:"price"`
	InitialStock uint                 `json:"initial_stock"`
	Images       []productImageCreate `json:"images"`
}

type productImageCreate struct {
	ImageURL  string `json:"image_url"`
	IsPrimary bool   `json:"is_primary"`
}

func (h *ProductHandler) CreateProduct(c echo.Context) error {
	var req productRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if req.Name == "" || req.Price <= 0 {
		return echo.NewHTTPError(http.StatusBadRequest, "name and a positive price are required")
	}

	var category models.Category
	if err := h.DB.First(&category, req.CategoryID).Error; err != nil {
		return echo.NewHTTPError(http.StatusNotFound, fmt.Sprintf("category %d not found", req.CategoryID))
	}

	prod := models.Product{
		Name:        req.Name,
		CategoryID:  req.CategoryID,
		Brand:       req.Brand,
		Weight:      req.Weight,
		Gender:      req.Gender,
		Size:        req.Size,
		Description: req.Description,
		Price:       req.Price,
	}

	txErr := h.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&prod).Error; err != nil {
			return err
		}
		for _, img := range req.Images {
			image := models.ProductImage{
				ProductID: prod.ID,
				ImageURL:  img.ImageURL,
				IsPrimary: img.IsPrimary,
			}
			if err := tx.Create(&image).Error; err != nil {
				return err
			}
		}
		if req.InitialStock > 0 {
			if _, err := stock.Append(tx, prod.ID, models.StockRestock, req.InitialStock); err != nil {
				return err
			}
			prod.InStock = true
		}
		return nil
	})
	if txErr != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, txErr.Error())
	}

	h.publish(c, map[string]any{
		"type":      "product_created",
		"productID": prod.ID,
		"name":      prod.Name,
	})
	h.reindex(c, &prod)

	return c.JSON(http.StatusCreated, prod)
}

func (h *ProductHandler) PatchProduct(c echo.Context) error {
	id, err := parseIDParam(c, "id")
	if err != nil {
		return err
	}

	var req struct {
		Name        *string        `json:"name"`
		CategoryID  *uint          `json:"category_id"`
		Brand       *string        `json:"brand"`
		Weight      *float64       `json:"weight"`
		Gender      *models.Gender `json:"gender"`
		Size        *models.Size   `json:"size"`
		Description *string        `json:"description"`
		Price       *float64       `json:"price"`
	}
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	var prod models.Product
	if err := h.DB.First(&prod, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return shoperrors.ToHTTP(&shoperrors.ProductNotFoundError{ProductID: id})
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	if req.CategoryID != nil {
		var category models.Category
		if err := h.DB.First(&category, *req.CategoryID).Error; err != nil {
			return echo.NewHTTPError(http.StatusNotFound, fmt.Sprintf("category %d not found", *req.CategoryID))
		}
		prod.CategoryID = *req.CategoryID
	}
	if req.Name != nil {
		prod.Name = *req.Name
	}
	if req.Brand != nil {
		prod.Brand = *req.Brand
	}
	if req.Weight != nil {
		prod.Weight = *req.Weight
	}
	if req.Gender != nil {
		prod.Gender = *req.Gender
	}
	if req.Size != nil {
		prod.Size = *req.Size
	}
	if req.Description != nil {
		prod.Description = *req.Description
	}
	if req.Price != nil {
		if *req.Price <= 0 {
			return echo.NewHTTPError(http.StatusBadRequest, "price must be positive")
		}
		prod.Price = *req.Price
	}

	if err := h.DB.Save(&prod).Error; err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	h.publish(c, map[string]any{
		"type":      "product_updated",
		"productID": prod.ID,
		"name":      prod.Name,
	})
	h.reindex(c, &prod)

	return c.JSON(http.StatusOK, prod)
}

// DeleteProduct removes the product and everything referencing it: images,
// stock movements, reviews, cart lines and order lines. The cascade is
// explicit so the ownership policy lives in one place.
func (h *ProductHandler) DeleteProduct(c echo.Context) error {
	id, err := parseIDParam(c, "id")
	if err != nil {
		return err
	}

	txErr := h.DB.Transaction(func(tx *gorm.DB) error {
		var prod models.Product
		if err := tx.First(&prod, id).Error; err != nil {
			return err
		}
		for _, owned := range []interface{}{
			&models.ProductImage{},
			&models.StockMovement{},
			&models.Review{},
			&models.CartItem{},
			&models.OrderItem{},
		} {
			if err := tx.Where("product_id = ?", id).Delete(owned).Error; err != nil {
				return err
			}
		}
		return tx.Delete(&models.Product{}, id).Error
	})
	if txErr != nil {
		if errors.Is(txErr, gorm.ErrRecordNotFound) {
			return shoperrors.ToHTTP(&shoperrors.ProductNotFoundError{ProductID: id})
		}
		return echo.NewHTTPError(http.StatusInternalServerError, txErr.Error())
	}

	h.publish(c, map[string]any{
		"type":      "product_deleted",
		"productID": id,
	})
	h.unindex(c, id)

	return c.NoContent(http.StatusNoContent)
}

// LowStock lists products whose remaining quantity sits under the
// threshold. The whole ledger folds in one grouped query.
func (h *ProductHandler) LowStock(c echo.Context) error {
	threshold := int64(parseIntDefault(c.QueryParam("threshold"), 5))

	remaining, err := stock.RemainingByProduct(h.DB)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	var products []models.Product
	if err := h.DB.Order("id ASC").Find(&products).Error; err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	low := make([]map[string]any, 0)
	for _, p := range products {
		if remaining[p.ID] < threshold {
			low = append(low, map[string]any{
				"product":    p,
				"stock_left": remaining[p.ID],
			})
		}
	}
	return c.JSON(http.StatusOK, low)
}

func (h *ProductHandler) OutOfStock(c echo.Context) error {
	var items []models.Product
	if err := h.DB.Where("in_stock = ?", false).Order("id ASC").Find(&items).Error; err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, items)
}

func (h *ProductHandler) BestSelling(c echo.Context) error {
	limit := parseIntDefault(c.QueryParam("limit"), 10)

	var items []models.Product
	if err := h.DB.Order("sold_count DESC").Limit(limit).Find(&items).Error; err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, items)
}
