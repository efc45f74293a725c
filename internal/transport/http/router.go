package httpserver

import (
	"github.com/labstack/echo/v4"
	"gorm.io/gorm"

	"github.com/ValeraFCDM/BookShop/internal/handlers"
	"github.com/ValeraFCDM/BookShop/internal/handlers/cart"
	"github.com/ValeraFCDM/BookShop/internal/handlers/order"
	"github.com/ValeraFCDM/BookShop/internal/service/token"
)

type Deps struct {
	DB             *gorm.DB
	AuthHandler    *handlers.AuthHandler
	BookHandler    *handlers.BookHandler
	CatalogHandler *handlers.CatalogHandler
	ReviewHandler  *handlers.ReviewHandler
	SearchHandler  *handlers.SearchHandler
	CartHandler    *cart.CartHandler
	OrderHandler   *order.OrderHandler
	ServiceHandler *token.TokenService
}

func Register(e *echo.Echo, d *Deps) {
	e.GET("/health/live", func(c echo.Context) error { return c.NoContent(200) })
	e.GET("/health/ready", func(c echo.Context) error { return c.NoContent(200) })

	v1 := e.Group("/api/v1")

	v1.POST("/register", d.AuthHandler.Register)
	v1.POST("/login", d.AuthHandler.Login)
	v1.POST("/logout", d.AuthHandler.LogOut)

	v1.GET("/home", d.CatalogHandler.Home)
	v1.GET("/catalog/:section", d.CatalogHandler.Section)
	v1.GET("/search", d.SearchHandler.Search)

	books := v1.Group("/books")
	books.GET("", d.BookHandler.GetBooks)
	books.GET("/:id", d.BookHandler.GetBook)
	books.POST("/:id/reviews", d.ReviewHandler.SubmitReview, d.ServiceHandler.AutoRefreshMiddleware)

	admin := v1.Group("/admin", d.ServiceHandler.AutoRefreshMiddlewareAdmin)
	admin.POST("/books", d.BookHandler.CreateBook)
	admin.POST("/books/import", d.BookHandler.ImportBooks)
	admin.PATCH("/books/:id", d.BookHandler.PatchBook)
	admin.DELETE("/books/:id", d.BookHandler.DeleteBook)

	cartGroup := v1.Group("/cart", d.ServiceHandler.AutoRefreshMiddleware)
	cartGroup.GET("", d.CartHandler.GetCart)
	cartGroup.POST("/items", d.CartHandler.AddToCart)
	cartGroup.PATCH("/items/:id", d.CartHandler.UpdateCount)
	cartGroup.DELETE("/items/:id", d.CartHandler.DeleteItem)
	cartGroup.POST("/checkout", d.OrderHandler.Checkout)

	orders := v1.Group("/orders", d.ServiceHandler.AutoRefreshMiddleware)
	orders.GET("", d.OrderHandler.ListOrders)
	orders.POST("", d.OrderHandler.CreateOrder)
	orders.GET("/draft", d.OrderHandler.GetDraft)
	orders.GET("/pending", d.OrderHandler.GetPending)
	orders.POST("/confirm", d.OrderHandler.ConfirmOrder)
	orders.GET("/:id", d.OrderHandler.GetOrder)
	orders.POST("/:id/cancel", d.OrderHandler.CancelOrder)
}
