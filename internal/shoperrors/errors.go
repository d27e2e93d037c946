package shoperrors

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
)

var (
	ErrEmptyCart    = errors.New("cart is empty")
	ErrUnauthorized = errors.New("authentication required")
	ErrForbidden    = errors.New("not enough rights")
)

// ProductNotFoundError reports a product that vanished between cart-add and
// checkout. It aborts the whole operation, never a silent skip.
type ProductNotFoundError struct {
	ProductID uint
}

func (e *ProductNotFoundError) Error() string {
	return fmt.Sprintf("product %d not found", e.ProductID)
}

// InsufficientStockError carries enough detail for the caller to render an
// actionable message.
type InsufficientStockError struct {
	ProductID   uint
	ProductName string
	Available   int64
	Requested   uint
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("not enough stock for product %q: available %d, requested %d",
		e.ProductName, e.Available, e.Requested)
}

type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// ToHTTP maps a domain error to the echo error the transport layer returns.
// Unknown errors become 500s without leaking internals to the client.
func ToHTTP(err error) error {
	var (
		notFound   *ProductNotFoundError
		noStock    *InsufficientStockError
		validation *ValidationError
	)
	switch {
	case errors.Is(err, ErrEmptyCart):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	case errors.Is(err, ErrUnauthorized):
		return echo.NewHTTPError(http.StatusUnauthorized, err.Error())
	case errors.Is(err, ErrForbidden):
		return echo.NewHTTPError(http.StatusForbidden, err.Error())
	case errors.As(err, &notFound):
		return echo.NewHTTPError(http.StatusNotFound, echo.Map{
			"message":    notFound.Error(),
			"product_id": notFound.ProductID,
		})
	case errors.As(err, &noStock):
		return echo.NewHTTPError(http.StatusConflict, echo.Map{
			"message":    noStock.Error(),
			"product_id": noStock.ProductID,
			"available":  noStock.Available,
			"requested":  noStock.Requested,
		})
	case errors.As(err, &validation):
		return echo.NewHTTPError(http.StatusBadRequest, validation.Error())
	default:
		return echo.NewHTTPError(http.StatusInternalServerError, "internal error")
	}
}
