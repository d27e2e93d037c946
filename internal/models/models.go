package models

import (
	"time"
)

type User struct {
	ID           uint   `gorm:"primaryKey;autoIncrement" json:"id"`
	Email        string `gorm:"unique;not null"          json:"email"`
	Username     string `gorm:"unique;not null"          json:"username"`
	FirstName    string `json:"first_name"`
	LastName     string `json:"last_name"`
	PasswordHash string `gorm:"not null"                 json:"-"`
	Role         string `gorm:"not null;default:user"    json:"role"`
	PhoneNumber  string `json:"phone_number"`
	IsActive     bool   `gorm:"default:true"             json:"is_active"`
}

type RefreshToken struct {
	ID        uint   `gorm:"primaryKey"      json:"id"`
	Token     string `gorm:"unique;not null" json:"token"`
	UserID    uint   `gorm:"index;not null"  json:"user_id"`
	Role      string `json:"role"`
	ExpiresAt int64  `gorm:"not null"        json:"expires_at"`
	Revoked   bool   `gorm:"default:false"   json:"revoked"`
}

type Category struct {
	ID          uint   `gorm:"primaryKey;autoIncrement" json:"id"`
	Name        string `gorm:"unique;not null;index"    json:"name"`
	Description string `json:"description"`
}

type Gender string

const (
	GenderMale   Gender = "Male"
	GenderFemale Gender = "Female"
	GenderOther  Gender = "Other"
)

type Size string

const (
	SizeS   Size = "S"
	SizeM   Size = "M"
	SizeL   Size = "L"
	SizeXL  Size = "XL"
	SizeXXL Size = "XXL"
)

// InStock is a cached projection of the stock ledger: it must equal
// remaining_quantity > 0 after every movement append. Only the stock
// service writes it.
type Product struct {
	ID          uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	Name        string    `gorm:"not null;index"           json:"name"`
	CategoryID  uint      `gorm:"index;not null"           json:"category_id"`
	Brand       string    `gorm:"index"                    json:"brand"`
	Weight      float64   `json:"weight,omitempty"`
	Gender      Gender    `gorm:"type:varchar(10);index"   json:"gender"`
	Size        Size      `gorm:"type:varchar(5);index"    json:"size"`
	Description string    `json:"description"`
	Price       float64   `gorm:"not null;index"           json:"price"`
	SoldCount   uint      `gorm:"default:0"                json:"sold_count"`
	InStock     bool      `gorm:"default:false;index"      json:"in_stock"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`

	Category       Category        `gorm:"foreignKey:CategoryID"                            json:"-"`
	Images         []ProductImage  `gorm:"foreignKey:ProductID;constraint:OnDelete:CASCADE" json:"-"`
	StockMovements []StockMovement `gorm:"foreignKey:ProductID;constraint:OnDelete:CASCADE" json:"-"`
	Reviews        []Review        `gorm:"foreignKey:ProductID;constraint:OnDelete:CASCADE" json:"-"`
}

type ProductImage struct {
	ID        uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	ProductID uint      `gorm:"index;not null"           json:"product_id"`
	ImageURL  string    `gorm:"not null"                 json:"image_url"`
	IsPrimary bool      `gorm:"default:false"            json:"is_primary"`
	CreatedAt time.Time `json:"created_at"`
}

type StockChangeType string

const (
	StockRestock StockChangeType = "Restock"
	StockSale    StockChangeType = "Sale"
	StockReturn  StockChangeType = "Return"
)

// StockMovement rows are append-only: never updated, never deleted while
// the product exists. Remaining quantity is always recomputed from them.
type StockMovement struct {
	ID         uint            `gorm:"primaryKey;autoIncrement"  json:"id"`
	ProductID  uint            `gorm:"index;not null"            json:"product_id"`
	ChangeType StockChangeType `gorm:"type:varchar(10);not null" json:"change_type"`
	Quantity   uint            `gorm:"not null;check:quantity>0" json:"quantity"`
	CreatedAt  time.Time       `json:"created_at"`
}

type Review struct {
	ID         uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	ProductID  uint      `gorm:"index;not null"           json:"product_id"`
	UserID     uint      `gorm:"index;not null"           json:"user_id"`
	Rating     int       `gorm:"not null"                 json:"rating"`
	ReviewText string    `json:"review_text"`
	CreatedAt  time.Time `json:"created_at"`
}

type CartItem struct {
	ID        uint      `gorm:"primaryKey;autoIncrement"                    json:"id"`
	UserID    uint      `gorm:"index;not null;uniqueIndex:idx_user_product" json:"user_id"`
	ProductID uint      `gorm:"not null;uniqueIndex:idx_user_product"       json:"product_id"`
	Quantity  uint      `gorm:"default:1;check:quantity>0"                  json:"quantity"`
	CreatedAt time.Time `json:"created_at"`
}

type OrderStatus string

const (
	OrderStatusPending    OrderStatus = "Pending"
	OrderStatusProcessing OrderStatus = "Processing"
	OrderStatusShipped    OrderStatus = "Shipped"
	OrderStatusDelivered  OrderStatus = "Delivered"
	OrderStatusCancelled  OrderStatus = "Cancelled"
)

type PaymentMethod string

const (
	PaymentCard           PaymentMethod = "card"
	PaymentCashOnDelivery PaymentMethod = "cash_on_delivery"
	PaymentPaypal         PaymentMethod = "paypal"
)

type Order struct {
	ID              uint          `gorm:"primaryKey;autoIncrement"        json:"id"`
	Number          string        `gorm:"unique;not null"                 json:"number"`
	UserID          uint          `gorm:"index;not null"                  json:"user_id"`
	Status          OrderStatus   `gorm:"type:varchar(12);not null;index" json:"status"`
	TotalAmount     float64       `gorm:"not null"                        json:"total_amount"`
	ShippingAddress string        `gorm:"not null"                        json:"shipping_address"`
	PaymentMethod   PaymentMethod `gorm:"type:varchar(20);not null"       json:"payment_method"`
	CreatedAt       time.Time     `gorm:"index"                           json:"created_at"`
	UpdatedAt       time.Time     `json:"updated_at"`

	Items []OrderItem `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE" json:"items"`
}

// OrderItem is immutable after creation; PriceAtTime snapshots the product
// price so later price edits never change historical order value.
type OrderItem struct {
	ID          uint    `gorm:"primaryKey;autoIncrement" json:"id"`
	OrderID     uint    `gorm:"index;not null"           json:"order_id"`
	ProductID   uint    `gorm:"not null"                 json:"product_id"`
	ProductName string  `gorm:"not null"                 json:"product_name"`
	Quantity    uint    `gorm:"not null"                 json:"quantity"`
	PriceAtTime float64 `gorm:"not null"                 json:"price_at_time"`
}

// Subtotal is a display projection, never stored.
func (i OrderItem) Subtotal() float64 {
	return i.PriceAtTime * float64(i.Quantity)
}
