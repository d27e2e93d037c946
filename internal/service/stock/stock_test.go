package stock

import (
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/mstepanov/clothes_shop/internal/config"
	"github.com/mstepanov/clothes_shop/internal/models"
	"github.com/mstepanov/clothes_shop/internal/shoperrors"
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

func createProduct(t *testing.T, db *gorm.DB) *models.Product {
	t.Helper()
	category := models.Category{Name: "shirts"}
	require.NoError(t, db.Where("name = ?", category.Name).FirstOrCreate(&category).Error)

	p := models.Product{
		Name:       "linen shirt",
		CategoryID: category.ID,
		Price:      49.90,
		Gender:     models.GenderMale,
		Size:       models.SizeM,
	}
	require.NoError(t, db.Create(&p).Error)
	return &p
}

func TestRemainingQuantityFoldsLedger(t *testing.T) {
	db := newTestDB(t)
	p := createProduct(t, db)

	_, err := Adjust(db, p.ID, models.StockRestock, 10)
	require.NoError(t, err)
	_, err = Adjust(db, p.ID, models.StockSale, 4)
	require.NoError(t, err)
	_, err = Adjust(db, p.ID, models.StockReturn, 1)
	require.NoError(t, err)
	_, err = Adjust(db, p.ID, models.StockSale, 2)
	require.NoError(t, err)

	remaining, err := RemainingQuantity(db, p.ID)
	require.NoError(t, err)
	require.Equal(t, int64(5), remaining) // 10 - 4 + 1 - 2
}

func TestRemainingQuantityEmptyLedger(t *testing.T) {
	db := newTestDB(t)
	p := createProduct(t, db)

	remaining, err := RemainingQuantity(db, p.ID)
	require.NoError(t, err)
	require.Equal(t, int64(0), remaining)
}

func TestRemainingByProductGroupsWholeLedger(t *testing.T) {
	db := newTestDB(t)
	a := createProduct(t, db)
	b := createProduct(t, db)
	noMoves := createProduct(t, db)

	_, err := Adjust(db, a.ID, models.StockRestock, 10)
	require.NoError(t, err)
	_, err = Adjust(db, a.ID, models.StockSale, 3)
	require.NoError(t, err)
	_, err = Adjust(db, b.ID, models.StockRestock, 2)
	require.NoError(t, err)
	_, err = Adjust(db, b.ID, models.StockSale, 2)
	require.NoError(t, err)

	remaining, err := RemainingByProduct(db)
	require.NoError(t, err)
	require.Equal(t, int64(7), remaining[a.ID])
	require.Equal(t, int64(0), remaining[b.ID])
	require.NotContains(t, remaining, noMoves.ID)
}

func TestAdjustRefreshesInStock(t *testing.T) {
	db := newTestDB(t)
	p := createProduct(t, db)

	_, err := Adjust(db, p.ID, models.StockRestock, 2)
	require.NoError(t, err)

	var got models.Product
	require.NoError(t, db.First(&got, p.ID).Error)
	require.True(t, got.InStock)

	_, err = Adjust(db, p.ID, models.StockSale, 2)
	require.NoError(t, err)

	require.NoError(t, db.First(&got, p.ID).Error)
	require.False(t, got.InStock)
}

func TestAdjustRejectsZeroQuantity(t *testing.T) {
	db := newTestDB(t)
	p := createProduct(t, db)

	_, err := Adjust(db, p.ID, models.StockRestock, 0)

	var validation *shoperrors.ValidationError
	require.ErrorAs(t, err, &validation)
}

func TestAdjustRejectsUnknownKind(t *testing.T) {
	db := newTestDB(t)
	p := createProduct(t, db)

	_, err := Adjust(db, p.ID, models.StockChangeType("Shrinkage"), 3)

	var validation *shoperrors.ValidationError
	require.ErrorAs(t, err, &validation)

	var count int64
	require.NoError(t, db.Model(&models.StockMovement{}).Count(&count).Error)
	require.Zero(t, count)
}

func TestAdjustSaleBeyondRemainingFails(t *testing.T) {
	db := newTestDB(t)
	p := createProduct(t, db)

	_, err := Adjust(db, p.ID, models.StockRestock, 3)
	require.NoError(t, err)

	_, err = Adjust(db, p.ID, models.StockSale, 5)

	var noStock *shoperrors.InsufficientStockError
	require.ErrorAs(t, err, &noStock)
	require.Equal(t, int64(3), noStock.Available)
	require.Equal(t, uint(5), noStock.Requested)

	remaining, err := RemainingQuantity(db, p.ID)
	require.NoError(t, err)
	require.Equal(t, int64(3), remaining)
}

func TestAdjustMissingProduct(t *testing.T) {
	db := newTestDB(t)

	_, err := Adjust(db, 42, models.StockRestock, 1)

	var notFound *shoperrors.ProductNotFoundError
	require.ErrorAs(t, err, &notFound)
	require.Equal(t, uint(42), notFound.ProductID)
}

func TestHistoryNewestFirst(t *testing.T) {
	db := newTestDB(t)
	p := createProduct(t, db)

	_, err := Adjust(db, p.ID, models.StockRestock, 5)
	require.NoError(t, err)
	_, err = Adjust(db, p.ID, models.StockSale, 1)
	require.NoError(t, err)

	movements, err := History(db, p.ID)
	require.NoError(t, err)
	require.Len(t, movements, 2)
	require.Equal(t, models.StockSale, movements[0].ChangeType)
	require.Equal(t, models.StockRestock, movements[1].ChangeType)
}
