package handlers

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"gorm.io/gorm"

	"github.com/mstepanov/clothes_shop/internal/middleware/auth"
	"github.com/mstepanov/clothes_shop/internal/models"
	"github.com/mstepanov/clothes_shop/internal/shoperrors"
)

type ReviewHandler struct {
	DB *gorm.DB
}

func (h *ReviewHandler) CreateReview(c echo.Context) error {
	userID, err := auth.UserID(c)
	if err != nil {
		return err
	}

	productID, err := parseIDParam(c, "id")
	if err != nil {
		return err
	}

	var req struct {
		Rating     int    `json:"rating"`
		ReviewText string `json:"review_text"`
	}
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if req.Rating < 1 || req.Rating > 5 {
		return echo.NewHTTPError(http.StatusBadRequest, "rating must be between 1 and 5")
	}

	var product models.Product
	if err := h.DB.First(&product, productID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return shoperrors.ToHTTP(&shoperrors.ProductNotFoundError{ProductID: productID})
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	review := models.Review{
		ProductID:  productID,
		UserID:     userID,
		Rating:     req.Rating,
		ReviewText: req.ReviewText,
	}
	if err := h.DB.Create(&review).Error; err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusCreated, review)
}

func (h *ReviewHandler) GetProductReviews(c echo.Context) error {
	productID, err := parseIDParam(c, "id")
	if err != nil {
		return err
	}

	var reviews []models.Review
	if err := h.DB.Where("product_id = ?", productID).
		Order("created_at DESC").Find(&reviews).Error; err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, reviews)
}
