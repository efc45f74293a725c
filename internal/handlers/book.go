package handlers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/elastic/go-elasticsearch/v9"
	"github.com/labstack/echo/v4"
	"gorm.io/gorm"

	"github.com/ValeraFCDM/BookShop/internal/models"
	"github.com/ValeraFCDM/BookShop/internal/mykafka"
	"github.com/ValeraFCDM/BookShop/internal/service/search"
	"github.com/ValeraFCDM/BookShop/internal/util"
)

type BookHandler struct {
	DB        *gorm.DB
	Producer  *mykafka.Producer
	ES        *elasticsearch.Client
	Index     string
	JWTSecret []byte
}

type bookRequest struct {
	Title       string  `json:"title"       validate:"required"`
	Author      string  `json:"author"      validate:"required"`
	Year        int     `json:"year"`
	Price       float64 `json:"price"       validate:"required,gt=0"`
	Genre       string  `json:"genre"`
	Cover       string  `json:"cover"`
	Description string  `json:"description"`
	Rating      float64 `json:"rating"      validate:"gte=0,lte=5"`
	ReviewCount int     `json:"review_count"`
}

type reviewView struct {
	ID       uint   `json:"id"`
	Username string `json:"username"`
	Text     string `json:"text"`
	Rating   int    `json:"rating"`
}

func (h *BookHandler) publish(c echo.Context, event map[string]any) {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()
	if err := h.Producer.PublishEvent(ctx, "book_events", fmt.Sprint(event["bookID"]), event); err != nil {
		c.Logger().Errorf("Kafka publish error: %v", err)
	}
}

func (h *BookHandler) index(c echo.Context, book models.Book) {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()
	if err := search.IndexBook(ctx, h.ES, h.Index, book); err != nil {
		c.Logger().Errorf("ES index error: %v", err)
	}
}

func (h *BookHandler) GetBook(c echo.Context) error {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		return errorResponse(c, http.StatusBadRequest, err)
	}

	var book models.Book
	if err := h.DB.First(&book, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "book not found")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	var reviews []reviewView
	if err := h.DB.Model(&models.Review{}).
		Select("reviews.id, users.username, reviews.text, reviews.rating").
		Joins("JOIN users ON users.id = reviews.user_id").
		Where("reviews.book_id = ?", book.ID).
		Scan(&reviews).Error; err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	resp := echo.Map{
		"book":    book,
		"reviews": reviews,
	}

	// The cart and own-review flags only make sense for a logged-in
	// visitor; anonymous requests get the bare page data.
	if userID, err := GetID(c, h.JWTSecret); err == nil {
		var inCart int64
		h.DB.Model(&models.CartItem{}).
			Where("user_id = ? AND book_id = ?", userID, book.ID).
			Count(&inCart)
		var reviewed int64
		h.DB.Model(&models.Review{}).
			Where("user_id = ? AND book_id = ?", userID, book.ID).
			Count(&reviewed)
		resp["in_cart"] = inCart > 0
		resp["reviewed"] = reviewed > 0
	}

	return c.JSON(http.StatusOK, resp)
}

func (h *BookHandler) GetBooks(c echo.Context) error {
	page := parseIntDefault(c.QueryParam("page"), 1)
	size := parseIntDefault(c.QueryParam("size"), util.DefaultPageSize)

	offset, limit := util.Calculate(page, size)

	var total int64
	if err := h.DB.Model(&models.Book{}).Count(&total).Error; err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	var items []models.Book
	if err := h.DB.Model(&models.Book{}).Order("id ASC").Offset(offset).Limit(limit).Find(&items).Error; err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	return c.JSON(http.StatusOK, map[string]any{
		"data": items,
		"meta": map[string]any{
			"page":        page,
			"size":        limit,
			"total":       total,
			"total_pages": (total + int64(limit) - 1) / int64(limit),
			"has_prev":    page > 1,
			"has_next":    int64(offset+limit) < total,
		},
	})
}

func (h *BookHandler) CreateBook(c echo.Context) error {
	var req bookRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := validate.Struct(req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	book := models.Book{
		Title:       req.Title,
		Author:      req.Author,
		Year:        req.Year,
		Price:       req.Price,
		Genre:       req.Genre,
		Cover:       req.Cover,
		Description: req.Description,
		Rating:      req.Rating,
		ReviewCount: req.ReviewCount,
	}
	if err := h.DB.Create(&book).Error; err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	h.index(c, book)
	h.publish(c, map[string]any{
		"type":   "book_created",
		"bookID": book.ID,
		"title":  book.Title,
	})

	return c.JSON(http.StatusCreated, book)
}

func (h *BookHandler) ImportBooks(c echo.Context) error {
	var reqs []bookRequest
	if err := c.Bind(&reqs); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if len(reqs) == 0 {
		return echo.NewHTTPError(http.StatusBadRequest, "empty import payload")
	}

	books := make([]models.Book, 0, len(reqs))
	txErr := h.DB.Transaction(func(tx *gorm.DB) error {
		for _, req := range reqs {
			if err := validate.Struct(req); err != nil {
				return echo.NewHTTPError(http.StatusBadRequest, err.Error())
			}
			book := models.Book{
				Title:       req.Title,
				Author:      req.Author,
				Year:        req.Year,
				Price:       req.Price,
				Genre:       req.Genre,
				Cover:       req.Cover,
				Description: req.Description,
				Rating:      req.Rating,
				ReviewCount: req.ReviewCount,
			}
			if err := tx.Create(&book).Error; err != nil {
				return err
			}
			books = append(books, book)
		}
		return nil
	})
	if txErr != nil {
		if he, ok := txErr.(*echo.HTTPError); ok {
			return he
		}
		return echo.NewHTTPError(http.StatusInternalServerError, txErr.Error())
	}

	for _, book := range books {
		h.index(c, book)
	}
	h.publish(c, map[string]any{
		"type":   "books_imported",
		"bookID": "bulk",
		"count":  len(books),
	})

	return c.JSON(http.StatusCreated, map[string]any{"imported": len(books)})
}

func (h *BookHandler) PatchBook(c echo.Context) error {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		return errorResponse(c, http.StatusBadRequest, err)
	}

	var req bookRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := validate.Struct(req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	var book models.Book
	if err := h.DB.First(&book, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "book not found")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	book.Title = req.Title
	book.Author = req.Author
	book.Year = req.Year
	book.Price = req.Price
	book.Genre = req.Genre
	book.Cover = req.Cover
	book.Description = req.Description

	if err := h.DB.Save(&book).Error; err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	h.index(c, book)
	h.publish(c, map[string]any{
		"type":   "book_updated",
		"bookID": book.ID,
		"title":  book.Title,
	})

	return c.JSON(http.StatusOK, book)
}

func (h *BookHandler) DeleteBook(c echo.Context) error {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		return errorResponse(c, http.StatusBadRequest, err)
	}

	if err := h.DB.Delete(&models.Book{}, id).Error; err != nil {
		return errorResponse(c, http.StatusInternalServerError, err)
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()
	if err := search.RemoveBook(ctx, h.ES, h.Index, uint(id)); err != nil {
		c.Logger().Errorf("ES remove error: %v", err)
	}

	h.publish(c, map[string]any{
		"type":   "book_deleted",
		"bookID": id,
	})

	return c.NoContent(http.StatusNoContent)
}
