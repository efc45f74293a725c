package cart

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"gorm.io/gorm"

	"github.com/ValeraFCDM/BookShop/internal/handlers"
	"github.com/ValeraFCDM/BookShop/internal/models"
	"github.com/ValeraFCDM/BookShop/internal/mykafka"
)

type CartHandler struct {
	DB        *gorm.DB
	Producer  *mykafka.Producer
	JWTSecret []byte
}

// ItemView is a cart row joined with the live catalog fields. Price always
// reflects the current Book price, not the price at add time.
type ItemView struct {
	ID     uint    `json:"id"`
	BookID uint    `json:"book_id"`
	Title  string  `json:"title"`
	Author string  `json:"author"`
	Cover  string  `json:"cover"`
	Price  float64 `json:"price"`
	Count  int     `json:"count"`
}

func (h *CartHandler) GetCart(c echo.Context) error {
	userID, err := handlers.GetID(c, h.JWTSecret)
	if err != nil {
		return err
	}

	var items []ItemView
	if err := h.DB.Model(&models.CartItem{}).
		Select("cart_items.id, cart_items.book_id, books.title, books.author, books.cover, books.price, cart_items.count").
		Joins("JOIN books ON books.id = cart_items.book_id").
		Where("cart_items.user_id = ?", userID).
		Order("cart_items.id ASC").
		Scan(&items).Error; err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	return c.JSON(http.StatusOK, items)
}

func (h *CartHandler) AddToCart(c echo.Context) error {
	userID, err := handlers.GetID(c, h.JWTSecret)
	if err != nil {
		return err
	}

	var req struct {
		BookID uint `json:"book_id"`
	}
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	var book models.Book
	if err := h.DB.First(&book, req.BookID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "book not found")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	var item models.CartItem
	tx := h.DB.Where("user_id = ? AND book_id = ?", userID, req.BookID).First(&item)
	if tx.Error == nil {
		item.Count++
		if err := h.DB.Save(&item).Error; err != nil {
			return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
		}
		h.publish(c, map[string]any{
			"type":   "cart_item_added",
			"userID": userID,
			"bookID": req.BookID,
			"count":  item.Count,
		})
		return c.JSON(http.StatusOK, item)
	}
	if !errors.Is(tx.Error, gorm.ErrRecordNotFound) {
		return echo.NewHTTPError(http.StatusInternalServerError, tx.Error.Error())
	}

	newItem := models.CartItem{
		UserID: userID,
		BookID: req.BookID,
		Count:  1,
	}
	if err := h.DB.Create(&newItem).Error; err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	h.publish(c, map[string]any{
		"type":   "cart_item_added",
		"userID": userID,
		"bookID": req.BookID,
		"count":  newItem.Count,
	})
	return c.JSON(http.StatusOK, newItem)
}

func (h *CartHandler) UpdateCount(c echo.Context) error {
	userID, err := handlers.GetID(c, h.JWTSecret)
	if err != nil {
		return err
	}

	id, err := strconv.Atoi(c.Param("id"))
	if err != nil || id <= 0 {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}

	var req struct {
		Count int `json:"count"`
	}
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if req.Count < 1 || req.Count > 10 {
		return echo.NewHTTPError(http.StatusBadRequest, "count must be between 1 and 10")
	}

	var item models.CartItem
	if err := h.DB.First(&item, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "item not found")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	if item.UserID != userID {
		return echo.NewHTTPError(http.StatusForbidden, "not your cart item")
	}

	item.Count = req.Count
	if err := h.DB.Save(&item).Error; err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	h.publish(c, map[string]any{
		"type":   "cart_item_updated",
		"userID": userID,
		"itemID": item.ID,
		"count":  item.Count,
	})
	return c.JSON(http.StatusOK, item)
}

func (h *CartHandler) DeleteItem(c echo.Context) error {
	userID, err := handlers.GetID(c, h.JWTSecret)
	if err != nil {
		return err
	}

	id, err := strconv.Atoi(c.Param("id"))
	if err != nil || id <= 0 {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}

	var item models.CartItem
	if err := h.DB.First(&item, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "item not found")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	if item.UserID != userID {
		return echo.NewHTTPError(http.StatusForbidden, "not your cart item")
	}

	if err := h.DB.Delete(&item).Error; err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	h.publish(c, map[string]any{
		"type":   "cart_item_deleted",
		"userID": userID,
		"itemID": id,
	})
	return c.JSON(http.StatusOK, map[string]any{"deleted_item": id})
}
