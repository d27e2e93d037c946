package stock

import (
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/mstepanov/clothes_shop/internal/models"
	"github.com/mstepanov/clothes_shop/internal/shoperrors"
)

// LockProduct loads a product with a row lock so concurrent checkouts cannot
// both pass the stock check. SQLite (used in tests) serializes writers and
// has no FOR UPDATE, so the clause is only applied on postgres.
func LockProduct(tx *gorm.DB, productID uint) (*models.Product, error) {
	q := tx
	if tx.Dialector.Name() == "postgres" {
		q = q.Clauses(clause.Locking{Strength: "UPDATE"})
	}

	var p models.Product
	if err := q.First(&p, productID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, &shoperrors.ProductNotFoundError{ProductID: productID}
		}
		return nil, err
	}
	return &p, nil
}

// RemainingQuantity folds the whole ledger for one product:
// sum(Restock) + sum(Return) - sum(Sale).
func RemainingQuantity(db *gorm.DB, productID uint) (int64, error) {
	var remaining int64
	err := db.Model(&models.StockMovement{}).
		Where("product_id = ?", productID).
		Select("COALESCE(SUM(CASE WHEN change_type = ? THEN -CAST(quantity AS INTEGER) ELSE CAST(quantity AS INTEGER) END), 0)",
			models.StockSale).
		Scan(&remaining).Error
	if err != nil {
		return 0, err
	}
	return remaining, nil
}

// RemainingByProduct folds the ledger for every product in one grouped
// query. Products with no movements are absent from the map; their
// remaining quantity is zero.
func RemainingByProduct(db *gorm.DB) (map[uint]int64, error) {
	var rows []struct {
		ProductID uint
		Remaining int64
	}
	err := db.Model(&models.StockMovement{}).
		Select("product_id, COALESCE(SUM(CASE WHEN change_type = ? THEN -CAST(quantity AS INTEGER) ELSE CAST(quantity AS INTEGER) END), 0) AS remaining",
			models.StockSale).
		Group("product_id").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	remaining := make(map[uint]int64, len(rows))
	for _, r := range rows {
		remaining[r.ProductID] = r.Remaining
	}
	return remaining, nil
}

func validKind(kind models.StockChangeType) bool {
	switch kind {
	case models.StockRestock, models.StockSale, models.StockReturn:
		return true
	}
	return false
}

// Append writes one movement and refreshes the product's cached in_stock
// flag inside the caller's transaction. The caller must hold the product
// row lock (LockProduct) when the movement is a Sale.
func Append(tx *gorm.DB, productID uint, kind models.StockChangeType, quantity uint) (*models.StockMovement, error) {
	if !validKind(kind) {
		return nil, &shoperrors.ValidationError{Field: "change_type", Reason: "must be Restock, Sale or Return"}
	}
	if quantity == 0 {
		return nil, &shoperrors.ValidationError{Field: "quantity", Reason: "must be a positive integer"}
	}

	movement := models.StockMovement{
		ProductID:  productID,
		ChangeType: kind,
		Quantity:   quantity,
	}
	if err := tx.Create(&movement).Error; err != nil {
		return nil, err
	}

	remaining, err := RemainingQuantity(tx, productID)
	if err != nil {
		return nil, err
	}
	if err := tx.Model(&models.Product{}).
		Where("id = ?", productID).
		Update("in_stock", remaining > 0).Error; err != nil {
		return nil, err
	}
	return &movement, nil
}

// Adjust is the single mutator for manual stock changes. A Sale adjustment
// that would drive remaining quantity negative is rejected before the
// movement is written.
func Adjust(db *gorm.DB, productID uint, kind models.StockChangeType, quantity uint) (*models.StockMovement, error) {
	var movement *models.StockMovement
	err := db.Transaction(func(tx *gorm.DB) error {
		product, err := LockProduct(tx, productID)
		if err != nil {
			return err
		}

		if kind == models.StockSale {
			remaining, err := RemainingQuantity(tx, productID)
			if err != nil {
				return err
			}
			if remaining < int64(quantity) {
				return &shoperrors.InsufficientStockError{
					ProductID:   product.ID,
					ProductName: product.Name,
					Available:   remaining,
					Requested:   quantity,
				}
			}
		}

		movement, err = Append(tx, productID, kind, quantity)
		return err
	})
	if err != nil {
		return nil, err
	}
	return movement, nil
}

// History returns the ledger for one product, newest first.
func History(db *gorm.DB, productID uint) ([]models.StockMovement, error) {
	var movements []models.StockMovement
	err := db.Where("product_id = ?", productID).
		Order("id DESC").
		Find(&movements).Error
	return movements, err
}
