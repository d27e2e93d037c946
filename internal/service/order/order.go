package order

import (
	"sort"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/mstepanov/clothes_shop/internal/models"
	"github.com/mstepanov/clothes_shop/internal/service/stock"
	"github.com/mstepanov/clothes_shop/internal/shoperrors"
)

type PlaceRequest struct {
	ShippingAddress string
	PaymentMethod   models.PaymentMethod
}

func validPaymentMethod(m models.PaymentMethod) bool {
	switch m {
	case models.PaymentCard, models.PaymentCashOnDelivery, models.PaymentPaypal:
		return true
	}
	return false
}

// Place converts the user's cart into a persisted order. The whole sequence
// runs in one transaction: stock checks, order and item rows, Sale
// movements, sold-count bumps and the cart clear commit together or not at
// all. A missing product aborts the checkout instead of dropping the line.
func Place(db *gorm.DB, userID uint, req PlaceRequest) (*models.Order, error) {
	if req.ShippingAddress == "" {
		return nil, &shoperrors.ValidationError{Field: "shipping_address", Reason: "must not be empty"}
	}
	if !validPaymentMethod(req.PaymentMethod) {
		return nil, &shoperrors.ValidationError{Field: "payment_method", Reason: "unknown payment method"}
	}

	var placed models.Order
	txErr := db.Transaction(func(tx *gorm.DB) error {
		var items []models.CartItem
		if err := tx.Where("user_id = ?", userID).Find(&items).Error; err != nil {
			return err
		}
		if len(items) == 0 {
			return shoperrors.ErrEmptyCart
		}

		// Lock products in id order so two concurrent checkouts over the
		// same pair of products cannot deadlock.
		sort.Slice(items, func(i, j int) bool { return items[i].ProductID < items[j].ProductID })

		var total float64
		orderItems := make([]models.OrderItem, 0, len(items))
		for _, it := range items {
			product, err := stock.LockProduct(tx, it.ProductID)
			if err != nil {
				return err
			}

			remaining, err := stock.RemainingQuantity(tx, product.ID)
			if err != nil {
				return err
			}
			if !product.InStock || remaining < int64(it.Quantity) {
				return &shoperrors.InsufficientStockError{
					ProductID:   product.ID,
					ProductName: product.Name,
					Available:   remaining,
					Requested:   it.Quantity,
				}
			}

			total += product.Price * float64(it.Quantity)
			orderItems = append(orderItems, models.OrderItem{
				ProductID:   product.ID,
				ProductName: product.Name,
				Quantity:    it.Quantity,
				PriceAtTime: product.Price,
			})
		}

		placed = models.Order{
			Number:          uuid.NewString(),
			UserID:          userID,
			Status:          models.OrderStatusPending,
			TotalAmount:     total,
			ShippingAddress: req.ShippingAddress,
			PaymentMethod:   req.PaymentMethod,
		}
		if err := tx.Create(&placed).Error; err != nil {
			return err
		}

		for i := range orderItems {
			orderItems[i].OrderID = placed.ID
			if err := tx.Create(&orderItems[i]).Error; err != nil {
				return err
			}
			if _, err := stock.Append(tx, orderItems[i].ProductID, models.StockSale, orderItems[i].Quantity); err != nil {
				return err
			}
			if err := tx.Model(&models.Product{}).
				Where("id = ?", orderItems[i].ProductID).
				UpdateColumn("sold_count", gorm.Expr("sold_count + ?", orderItems[i].Quantity)).Error; err != nil {
				return err
			}
		}

		if err := tx.Where("user_id = ?", userID).Delete(&models.CartItem{}).Error; err != nil {
			return err
		}

		placed.Items = orderItems
		return nil
	})
	if txErr != nil {
		return nil, txErr
	}
	return &placed, nil
}

var statusRank = map[models.OrderStatus]int{
	models.OrderStatusPending:    0,
	models.OrderStatusProcessing: 1,
	models.OrderStatusShipped:    2,
	models.OrderStatusDelivered:  3,
}

// CanTransition allows forward moves only, plus cancellation of any order
// that has not been delivered or already cancelled.
func CanTransition(from, to models.OrderStatus) bool {
	if to == models.OrderStatusCancelled {
		return from != models.OrderStatusDelivered && from != models.OrderStatusCancelled
	}
	fromRank, ok := statusRank[from]
	if !ok {
		return false
	}
	toRank, ok := statusRank[to]
	if !ok {
		return false
	}
	return toRank > fromRank
}

// UpdateStatus applies a guarded status transition.
func UpdateStatus(db *gorm.DB, orderID uint, to models.OrderStatus) (*models.Order, error) {
	var updated models.Order
	err := db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Preload("Items").First(&updated, orderID).Error; err != nil {
			return err
		}
		if !CanTransition(updated.Status, to) {
			return &shoperrors.ValidationError{
				Field:  "status",
				Reason: "cannot move from " + string(updated.Status) + " to " + string(to),
			}
		}
		updated.Status = to
		return tx.Model(&models.Order{}).Where("id = ?", orderID).Update("status", to).Error
	})
	if err != nil {
		return nil, err
	}
	return &updated, nil
}
