package httpserver

import (
	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/mstepanov/clothes_shop/internal/handlers"
	"github.com/mstepanov/clothes_shop/internal/handlers/cart"
	"github.com/mstepanov/clothes_shop/internal/handlers/order"
	"github.com/mstepanov/clothes_shop/internal/middleware/auth"
)

type Deps struct {
	Guard           *auth.Guard
	AuthHandler     *handlers.AuthHandler
	UserHandler     *handlers.UserHandler
	ProductHandler  *handlers.ProductHandler
	CategoryHandler *handlers.CategoryHandler
	ReviewHandler   *handlers.ReviewHandler
	StockHandler    *handlers.StockHandler
	SearchHandler   *handlers.SearchHandler
	CartHandler     *cart.CartHandler
	OrderHandler    *order.OrderHandler
}

func Register(e *echo.Echo, d *Deps) {
	e.GET("/health/live", func(c echo.Context) error { return c.NoContent(200) })
	e.GET("/health/ready", func(c echo.Context) error { return c.NoContent(200) })
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	v1 := e.Group("/api/v1")

	v1.POST("/register", d.AuthHandler.Register)
	v1.POST("/login", d.AuthHandler.Login)
	v1.POST("/logout", d.AuthHandler.LogOut)
	v1.GET("/search", d.SearchHandler.Search)

	products := v1.Group("/products")
	products.GET("", d.ProductHandler.GetProducts)
	products.GET("/new-arrivals", d.ProductHandler.NewArrivals)
	products.GET("/monthly-featured", d.ProductHandler.MonthlyFeatured)
	products.GET("/:id", d.ProductHandler.GetProduct)
	products.GET("/:id/reviews", d.ReviewHandler.GetProductReviews)
	products.POST("/:id/reviews", d.ReviewHandler.CreateReview, d.Guard.RequireLogin)

	v1.GET("/categories", d.CategoryHandler.GetCategories)

	users := v1.Group("/users", d.Guard.RequireLogin)
	users.GET("/me", d.UserHandler.Profile)
	users.PUT("/password", d.UserHandler.ChangePassword)
	users.PUT("/phone-number/:phone_number", d.UserHandler.ChangePhoneNumber)

	cartGroup := v1.Group("/cart", d.Guard.RequireLogin)
	cartGroup.GET("", d.CartHandler.GetCart)
	cartGroup.POST("", d.CartHandler.AddToCart)
	cartGroup.PUT("/:id", d.CartHandler.UpdateItem)
	cartGroup.DELETE("/:id", d.CartHandler.RemoveItem)
	cartGroup.DELETE("", d.CartHandler.ClearCart)

	orders := v1.Group("/orders", d.Guard.RequireLogin)
	orders.POST("", d.OrderHandler.Create)
	orders.GET("", d.OrderHandler.ListMine)
	orders.GET("/:id", d.OrderHandler.GetMine)

	catalogAdmin := v1.Group("/admin", d.Guard.Require(auth.PermCatalogWrite))
	catalogAdmin.POST("/products", d.ProductHandler.CreateProduct)
	catalogAdmin.PATCH("/products/:id", d.ProductHandler.PatchProduct)
	catalogAdmin.DELETE("/products/:id", d.ProductHandler.DeleteProduct)
	catalogAdmin.POST("/categories", d.CategoryHandler.CreateCategory)
	catalogAdmin.GET("/products/dashboard/low-stock", d.ProductHandler.LowStock)
	catalogAdmin.GET("/products/dashboard/out-of-stock", d.ProductHandler.OutOfStock)
	catalogAdmin.GET("/products/dashboard/best-selling", d.ProductHandler.BestSelling)

	stockAdmin := v1.Group("/admin/stocks", d.Guard.Require(auth.PermStockWrite))
	stockAdmin.POST("/:id", d.StockHandler.Adjust)
	stockAdmin.GET("/:id", d.StockHandler.Movements)

	orderAdmin := v1.Group("/admin/orders", d.Guard.Require(auth.PermOrdersManage))
	orderAdmin.GET("", d.OrderHandler.ListAll)
	orderAdmin.GET("/recent", d.OrderHandler.Recent)
	orderAdmin.GET("/dashboard/summary", d.OrderHandler.DashboardSummary)
	orderAdmin.GET("/:id", d.OrderHandler.Get)
	orderAdmin.PUT("/:id/status", d.OrderHandler.UpdateStatus)

	userAdmin := v1.Group("/admin/users", d.Guard.Require(auth.PermUsersRead))
	userAdmin.GET("", d.UserHandler.ListUsers)
}
