package order

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/ValeraFCDM/BookShop/internal/handlers"
	"github.com/ValeraFCDM/BookShop/internal/models"
	"github.com/ValeraFCDM/BookShop/internal/mykafka"
	"github.com/ValeraFCDM/BookShop/internal/util"
)

type OrderHandler struct {
	DB        *gorm.DB
	Producer  *mykafka.Producer
	JWTSecret []byte
}

// Checkout stages the selected cart items into a fresh draft. Any previous
// draft for the user is replaced wholesale; each staged item snapshots the
// book title and price as they are right now.
func (h *OrderHandler) Checkout(c echo.Context) error {
	userID, err := handlers.GetID(c, h.JWTSecret)
	if err != nil {
		return err
	}

	var req struct {
		ItemIDs []uint `json:"item_ids"`
	}
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if len(req.ItemIDs) == 0 {
		return echo.NewHTTPError(http.StatusBadRequest, "select at least one item")
	}

	var staged []models.OrderItem
	txErr := h.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("user_id = ?", userID).Delete(&models.OrderItem{}).Error; err != nil {
			return err
		}

		for _, itemID := range req.ItemIDs {
			var item models.CartItem
			if err := tx.Where("id = ? AND user_id = ?", itemID, userID).First(&item).Error; err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					return echo.NewHTTPError(http.StatusNotFound, "cart item not found")
				}
				return err
			}

			var book models.Book
			if err := tx.First(&book, item.BookID).Error; err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					return echo.NewHTTPError(http.StatusNotFound, "book not found")
				}
				return err
			}

			orderItem := models.OrderItem{
				UserID:     userID,
				BookID:     item.BookID,
				Title:      book.Title,
				Count:      item.Count,
				Price:      book.Price,
				TotalPrice: util.Round2(float64(item.Count) * book.Price),
			}
			if err := tx.Create(&orderItem).Error; err != nil {
				return err
			}
			staged = append(staged, orderItem)
		}
		return nil
	})
	if txErr != nil {
		if he, ok := txErr.(*echo.HTTPError); ok {
			return he
		}
		return echo.NewHTTPError(http.StatusInternalServerError, txErr.Error())
	}

	h.publish(c, map[string]any{
		"type":   "checkout_staged",
		"userID": userID,
		"items":  len(staged),
	})

	return c.JSON(http.StatusOK, echo.Map{
		"items": staged,
		"total": draftTotal(staged),
	})
}

func (h *OrderHandler) GetDraft(c echo.Context) error {
	userID, err := handlers.GetID(c, h.JWTSecret)
	if err != nil {
		return err
	}

	var items []models.OrderItem
	if err := h.DB.Where("user_id = ?", userID).Find(&items).Error; err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	return c.JSON(http.StatusOK, echo.Map{
		"items": items,
		"total": draftTotal(items),
	})
}

// CreateOrder turns the staged draft into a pending order. A previous
// pending order is superseded inside the same transaction, so at most one
// pending order per user can exist at any point.
func (h *OrderHandler) CreateOrder(c echo.Context) error {
	userID, err := handlers.GetID(c, h.JWTSecret)
	if err != nil {
		return err
	}

	var req struct {
		Recipient   string `json:"recipient"    validate:"required,min=3,max=50"`
		PhoneNumber string `json:"phone_number" validate:"required,len=10,number"`
		Delivery    string `json:"delivery"     validate:"required,oneof=courier pickup"`
		Address     string `json:"address"      validate:"required,min=3,max=100"`
		Payment     string `json:"payment"      validate:"required,oneof=card cash"`
	}
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := validate.Struct(req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	var order models.Order
	txErr := h.DB.Transaction(func(tx *gorm.DB) error {
		var items []models.OrderItem
		if err := tx.Where("user_id = ?", userID).Find(&items).Error; err != nil {
			return err
		}
		if len(items) == 0 {
			return echo.NewHTTPError(http.StatusBadRequest, "nothing staged for checkout")
		}

		var stale models.Order
		err := tx.Where("user_id = ? AND status = ?", userID, models.OrderStatusPending).First(&stale).Error
		if err == nil {
			if err := tx.Delete(&stale).Error; err != nil {
				return err
			}
		} else if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}

		books := make(map[uint]int, len(items))
		for _, item := range items {
			books[item.BookID] += item.Count
		}

		order = models.Order{
			UserID:  userID,
			Date:    time.Now(),
			Status:  models.OrderStatusPending,
			Address: req.Address,
			Books:   datatypes.NewJSONType(books),
			Details: datatypes.NewJSONType(models.OrderDetails{
				Recipient:   req.Recipient,
				PhoneNumber: req.PhoneNumber,
				Delivery:    req.Delivery,
				Payment:     req.Payment,
				Total:       draftTotal(items),
			}),
		}
		if err := tx.Create(&order).Error; err != nil {
			return err
		}

		return tx.Model(&models.OrderItem{}).
			Where("user_id = ?", userID).
			Update("order_id", order.ID).Error
	})
	if txErr != nil {
		if he, ok := txErr.(*echo.HTTPError); ok {
			return he
		}
		return echo.NewHTTPError(http.StatusInternalServerError, txErr.Error())
	}

	h.publish(c, map[string]any{
		"type":    "order_created",
		"userID":  userID,
		"orderID": order.ID,
	})

	return c.JSON(http.StatusCreated, order)
}

func (h *OrderHandler) GetPending(c echo.Context) error {
	userID, err := handlers.GetID(c, h.JWTSecret)
	if err != nil {
		return err
	}

	var order models.Order
	if err := h.DB.Where("user_id = ? AND status = ?", userID, models.OrderStatusPending).First(&order).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "no pending order")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	return c.JSON(http.StatusOK, order)
}

// ConfirmOrder finalizes the pending order: the draft items go away, the
// ordered books leave the cart, the status takes the submitted confirmation
// mark and each book's sold counter grows. All four mutations commit or
// roll back together.
func (h *OrderHandler) ConfirmOrder(c echo.Context) error {
	userID, err := handlers.GetID(c, h.JWTSecret)
	if err != nil {
		return err
	}

	var req struct {
		Confirm string `json:"confirm" validate:"required,eq=confirmed"`
	}
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := validate.Struct(req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	var order models.Order
	txErr := h.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("user_id = ? AND status = ?", userID, models.OrderStatusPending).First(&order).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return echo.NewHTTPError(http.StatusNotFound, "no pending order")
			}
			return err
		}

		if err := tx.Where("user_id = ?", userID).Delete(&models.OrderItem{}).Error; err != nil {
			return err
		}

		books := order.Books.Data()
		for bookID := range books {
			// A cart item may already be gone; that is fine.
			if err := tx.Where("user_id = ? AND book_id = ?", userID, bookID).Delete(&models.CartItem{}).Error; err != nil {
				return err
			}
		}

		order.Status = req.Confirm
		if err := tx.Save(&order).Error; err != nil {
			return err
		}

		for bookID, count := range books {
			if err := tx.Model(&models.Book{}).
				Where("id = ?", bookID).
				UpdateColumn("orders_count", gorm.Expr("orders_count + ?", count)).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if txErr != nil {
		if he, ok := txErr.(*echo.HTTPError); ok {
			return he
		}
		return echo.NewHTTPError(http.StatusInternalServerError, txErr.Error())
	}

	h.publish(c, map[string]any{
		"type":    "order_confirmed",
		"userID":  userID,
		"orderID": order.ID,
	})

	return c.JSON(http.StatusOK, order)
}

func (h *OrderHandler) ListOrders(c echo.Context) error {
	userID, err := handlers.GetID(c, h.JWTSecret)
	if err != nil {
		return err
	}

	var orders []models.Order
	if err := h.DB.Where("user_id = ?", userID).Order("id DESC").Find(&orders).Error; err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	return c.JSON(http.StatusOK, orders)
}

type lineItem struct {
	BookID uint    `json:"book_id"`
	Title  string  `json:"title"`
	Count  int     `json:"count"`
	Price  float64 `json:"price"`
	Total  float64 `json:"total"`
}

func (h *OrderHandler) GetOrder(c echo.Context) error {
	userID, err := handlers.GetID(c, h.JWTSecret)
	if err != nil {
		return err
	}

	id, err := strconv.Atoi(c.Param("id"))
	if err != nil || id <= 0 {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}

	var order models.Order
	if err := h.DB.First(&order, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "order not found")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	if order.UserID != userID {
		return echo.NewHTTPError(http.StatusForbidden, "not your order")
	}

	// Line items are resolved against the current catalog price, so the
	// view of an old order shifts when a book is repriced.
	var items []lineItem
	for bookID, count := range order.Books.Data() {
		var book models.Book
		if err := h.DB.First(&book, bookID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				continue
			}
			return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
		}
		items = append(items, lineItem{
			BookID: bookID,
			Title:  book.Title,
			Count:  count,
			Price:  book.Price,
			Total:  util.Round2(book.Price * float64(count)),
		})
	}

	return c.JSON(http.StatusOK, echo.Map{
		"order": order,
		"books": items,
	})
}

func (h *OrderHandler) CancelOrder(c echo.Context) error {
	userID, err := handlers.GetID(c, h.JWTSecret)
	if err != nil {
		return err
	}

	id, err := strconv.Atoi(c.Param("id"))
	if err != nil || id <= 0 {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}

	var order models.Order
	if err := h.DB.First(&order, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "order not found")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	if order.UserID != userID {
		return echo.NewHTTPError(http.StatusForbidden, "not your order")
	}

	order.Status = models.OrderStatusCancelled
	if err := h.DB.Save(&order).Error; err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	h.publish(c, map[string]any{
		"type":    "order_cancelled",
		"userID":  userID,
		"orderID": order.ID,
	})

	return c.JSON(http.StatusOK, order)
}

func draftTotal(items []models.OrderItem) float64 {
	var total float64
	for _, item := range items {
		total += item.TotalPrice
	}
	return util.Round2(total)
}
