package cart

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/mstepanov/clothes_shop/internal/config"
	"github.com/mstepanov/clothes_shop/internal/models"
	"github.com/mstepanov/clothes_shop/internal/service/stock"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, config.Migrate(db))
	return db
}

func seedProduct(t *testing.T, db *gorm.DB, name string, price float64, stockLeft uint) *models.Product {
	t.Helper()
	category := models.Category{Name: "cat-" + name}
	require.NoError(t, db.Create(&category).Error)

	p := models.Product{
		Name:       name,
		CategoryID: category.ID,
		Price:      price,
		Gender:     models.GenderMale,
		Size:       models.SizeM,
	}
	require.NoError(t, db.Create(&p).Error)
	if stockLeft > 0 {
		_, err := stock.Adjust(db, p.ID, models.StockRestock, stockLeft)
		require.NoError(t, err)
	}
	return &p
}

func requestAs(t *testing.T, userID uint, method string, body any) (*httptest.ResponseRecorder, echo.Context) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, "/api/v1/cart", &buf)
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	c := echo.New().NewContext(req, rec)
	c.Set("userID", userID)
	c.Set("role", "user")
	return rec, c
}

func withItemID(c echo.Context, id uint) {
	c.SetParamNames("id")
	c.SetParamValues(strconv.FormatUint(uint64(id), 10))
}

func TestAddToCartCreatesLine(t *testing.T) {
	db := newTestDB(t)
	h := &CartHandler{DB: db}
	p := seedProduct(t, db, "oxford shirt", 45, 10)

	rec, c := requestAs(t, 1, http.MethodPost, map[string]uint{"product_id": p.ID, "quantity": 2})
	require.NoError(t, h.AddToCart(c))
	require.Equal(t, http.StatusOK, rec.Code)

	var line models.CartItem
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &line))
	require.Equal(t, uint(1), line.UserID)
	require.Equal(t, p.ID, line.ProductID)
	require.Equal(t, uint(2), line.Quantity)
}

func TestAddToCartMergesExistingLine(t *testing.T) {
	db := newTestDB(t)
	h := &CartHandler{DB: db}
	p := seedProduct(t, db, "chinos", 55, 10)

	_, c := requestAs(t, 1, http.MethodPost, map[string]uint{"product_id": p.ID, "quantity": 2})
	require.NoError(t, h.AddToCart(c))

	rec, c := requestAs(t, 1, http.MethodPost, map[string]uint{"product_id": p.ID, "quantity": 3})
	require.NoError(t, h.AddToCart(c))
	require.Equal(t, http.StatusOK, rec.Code)

	var line models.CartItem
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &line))
	require.Equal(t, uint(5), line.Quantity)

	var count int64
	require.NoError(t, db.Model(&models.CartItem{}).Where("user_id = ?", 1).Count(&count).Error)
	require.Equal(t, int64(1), count)
}

func TestAddToCartChecksStockAgainstMergedQuantity(t *testing.T) {
	db := newTestDB(t)
	h := &CartHandler{DB: db}
	p := seedProduct(t, db, "trench coat", 180, 4)

	_, c := requestAs(t, 1, http.MethodPost, map[string]uint{"product_id": p.ID, "quantity": 3})
	require.NoError(t, h.AddToCart(c))

	// 3 already in the cart, 2 more would exceed the 4 remaining.
	_, c = requestAs(t, 1, http.MethodPost, map[string]uint{"product_id": p.ID, "quantity": 2})
	err := h.AddToCart(c)

	var httpErr *echo.HTTPError
	require.ErrorAs(t, err, &httpErr)
	require.Equal(t, http.StatusConflict, httpErr.Code)

	var line models.CartItem
	require.NoError(t, db.Where("user_id = ? AND product_id = ?", 1, p.ID).First(&line).Error)
	require.Equal(t, uint(3), line.Quantity)
}

func TestAddToCartUnknownProduct(t *testing.T) {
	db := newTestDB(t)
	h := &CartHandler{DB: db}

	_, c := requestAs(t, 1, http.MethodPost, map[string]uint{"product_id": 42, "quantity": 1})
	err := h.AddToCart(c)

	var httpErr *echo.HTTPError
	require.ErrorAs(t, err, &httpErr)
	require.Equal(t, http.StatusNotFound, httpErr.Code)
}

func TestGetCartProjectsCurrentPrices(t *testing.T) {
	db := newTestDB(t)
	h := &CartHandler{DB: db}
	a := seedProduct(t, db, "linen shirt", 30, 10)
	b := seedProduct(t, db, "loafers", 90, 10)
	require.NoError(t, db.Create(&models.ProductImage{ProductID: a.ID, ImageURL: "https://img/linen.jpg", IsPrimary: true}).Error)
	require.NoError(t, db.Create(&models.CartItem{UserID: 1, ProductID: a.ID, Quantity: 2}).Error)
	require.NoError(t, db.Create(&models.CartItem{UserID: 1, ProductID: b.ID, Quantity: 1}).Error)
	// Another user's line must not leak in.
	require.NoError(t, db.Create(&models.CartItem{UserID: 2, ProductID: b.ID, Quantity: 5}).Error)

	// Price changes after the line was added show up in the projection.
	require.NoError(t, db.Model(&models.Product{}).Where("id = ?", a.ID).Update("price", 35).Error)

	rec, c := requestAs(t, 1, http.MethodGet, nil)
	require.NoError(t, h.GetCart(c))
	require.Equal(t, http.StatusOK, rec.Code)

	var summary cartSummary
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &summary))
	require.Equal(t, 2, summary.TotalItems)
	require.Equal(t, float64(2*35+90), summary.TotalAmount)
	require.Equal(t, float64(70), summary.Items[0].Subtotal)
	require.Equal(t, "https://img/linen.jpg", summary.Items[0].ProductImage)
	require.Empty(t, summary.Items[1].ProductImage)
}

func TestGetCartSkipsDeletedProducts(t *testing.T) {
	db := newTestDB(t)
	h := &CartHandler{DB: db}
	p := seedProduct(t, db, "blazer", 150, 5)
	require.NoError(t, db.Create(&models.CartItem{UserID: 1, ProductID: p.ID, Quantity: 1}).Error)
	require.NoError(t, db.Create(&models.CartItem{UserID: 1, ProductID: 999, Quantity: 1}).Error)

	rec, c := requestAs(t, 1, http.MethodGet, nil)
	require.NoError(t, h.GetCart(c))

	var summary cartSummary
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &summary))
	require.Equal(t, 1, summary.TotalItems)
	require.Equal(t, p.ID, summary.Items[0].ProductID)
}

func TestUpdateItemSetsQuantity(t *testing.T) {
	db := newTestDB(t)
	h := &CartHandler{DB: db}
	p := seedProduct(t, db, "cardigan", 70, 10)
	line := models.CartItem{UserID: 1, ProductID: p.ID, Quantity: 1}
	require.NoError(t, db.Create(&line).Error)

	rec, c := requestAs(t, 1, http.MethodPatch, map[string]uint{"quantity": 4})
	withItemID(c, line.ID)
	require.NoError(t, h.UpdateItem(c))
	require.Equal(t, http.StatusOK, rec.Code)

	var got models.CartItem
	require.NoError(t, db.First(&got, line.ID).Error)
	require.Equal(t, uint(4), got.Quantity)
}

func TestUpdateItemRejectsZeroQuantity(t *testing.T) {
	db := newTestDB(t)
	h := &CartHandler{DB: db}
	p := seedProduct(t, db, "parka", 220, 10)
	line := models.CartItem{UserID: 1, ProductID: p.ID, Quantity: 2}
	require.NoError(t, db.Create(&line).Error)

	_, c := requestAs(t, 1, http.MethodPatch, map[string]uint{"quantity": 0})
	withItemID(c, line.ID)
	err := h.UpdateItem(c)

	var httpErr *echo.HTTPError
	require.ErrorAs(t, err, &httpErr)
	require.Equal(t, http.StatusBadRequest, httpErr.Code)
}

func TestUpdateItemEnforcesOwnership(t *testing.T) {
	db := newTestDB(t)
	h := &CartHandler{DB: db}
	p := seedProduct(t, db, "sneakers", 110, 10)
	line := models.CartItem{UserID: 2, ProductID: p.ID, Quantity: 1}
	require.NoError(t, db.Create(&line).Error)

	_, c := requestAs(t, 1, http.MethodPatch, map[string]uint{"quantity": 3})
	withItemID(c, line.ID)
	err := h.UpdateItem(c)

	var httpErr *echo.HTTPError
	require.ErrorAs(t, err, &httpErr)
	require.Equal(t, http.StatusNotFound, httpErr.Code)
}

func TestRemoveItem(t *testing.T) {
	db := newTestDB(t)
	h := &CartHandler{DB: db}
	p := seedProduct(t, db, "scarf", 25, 10)
	line := models.CartItem{UserID: 1, ProductID: p.ID, Quantity: 1}
	require.NoError(t, db.Create(&line).Error)

	rec, c := requestAs(t, 1, http.MethodDelete, nil)
	withItemID(c, line.ID)
	require.NoError(t, h.RemoveItem(c))
	require.Equal(t, http.StatusNoContent, rec.Code)

	var count int64
	require.NoError(t, db.Model(&models.CartItem{}).Count(&count).Error)
	require.Zero(t, count)
}

func TestRemoveItemEnforcesOwnership(t *testing.T) {
	db := newTestDB(t)
	h := &CartHandler{DB: db}
	p := seedProduct(t, db, "gloves", 20, 10)
	line := models.CartItem{UserID: 2, ProductID: p.ID, Quantity: 1}
	require.NoError(t, db.Create(&line).Error)

	_, c := requestAs(t, 1, http.MethodDelete, nil)
	withItemID(c, line.ID)
	err := h.RemoveItem(c)

	var httpErr *echo.HTTPError
	require.ErrorAs(t, err, &httpErr)
	require.Equal(t, http.StatusNotFound, httpErr.Code)
}

func TestClearCartRemovesOnlyOwnLines(t *testing.T) {
	db := newTestDB(t)
	h := &CartHandler{DB: db}
	p := seedProduct(t, db, "socks", 8, 50)
	require.NoError(t, db.Create(&models.CartItem{UserID: 1, ProductID: p.ID, Quantity: 3}).Error)
	q := seedProduct(t, db, "belt", 30, 50)
	require.NoError(t, db.Create(&models.CartItem{UserID: 1, ProductID: q.ID, Quantity: 1}).Error)
	require.NoError(t, db.Create(&models.CartItem{UserID: 2, ProductID: p.ID, Quantity: 2}).Error)

	rec, c := requestAs(t, 1, http.MethodDelete, nil)
	require.NoError(t, h.ClearCart(c))
	require.Equal(t, http.StatusNoContent, rec.Code)

	var mine, theirs int64
	require.NoError(t, db.Model(&models.CartItem{}).Where("user_id = ?", 1).Count(&mine).Error)
	require.NoError(t, db.Model(&models.CartItem{}).Where("user_id = ?", 2).Count(&theirs).Error)
	require.Zero(t, mine)
	require.Equal(t, int64(1), theirs)
}
