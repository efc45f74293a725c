package handlers

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"gorm.io/gorm"

	"github.com/ValeraFCDM/BookShop/internal/models"
)

type CatalogHandler struct {
	DB *gorm.DB
}

// Storefront sections and the genres shown under each. Sections without
// genres exist in the navigation but have no stock yet.
var catalogSections = map[string][]string{
	"fiction":     {"detective", "adventure", "novel", "science fiction", "fantasy"},
	"non-fiction": {"popular science", "self-development"},
	"children":    {"children"},
	"business":    {"business"},
	"education":   {"history"},
	"foreign":     {},
	"comics":      {},
}

var allGenres = []string{
	"detective", "adventure", "novel", "science fiction", "fantasy",
	"popular science", "self-development", "children", "business", "history",
}

func (h *CatalogHandler) Home(c echo.Context) error {
	var topBooks []models.Book
	if err := h.DB.Order("orders_count DESC").Limit(3).Find(&topBooks).Error; err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, echo.Map{"top_books": topBooks})
}

func (h *CatalogHandler) Section(c echo.Context) error {
	section := c.Param("section")

	var genres []string
	var books []models.Book

	if section == "all" {
		genres = allGenres
		if err := h.DB.Find(&books).Error; err != nil {
			return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
		}
	} else {
		var ok bool
		genres, ok = catalogSections[section]
		if !ok {
			return echo.NewHTTPError(http.StatusNotFound, "unknown catalog section")
		}
		if len(genres) > 0 {
			if err := h.DB.Where("genre IN ?", genres).Find(&books).Error; err != nil {
				return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
			}
		}
	}

	return c.JSON(http.StatusOK, echo.Map{
		"section": section,
		"genres":  genres,
		"books":   books,
	})
}
