package handlers

import (
	"encoding/json"
	"net/http"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/require"

	"github.com/ValeraFCDM/BookShop/internal/models"
)

func seedCatalog(t *testing.T, h *CatalogHandler) {
	books := []models.Book{
		{Title: "Dune", Author: "Frank Herbert", Price: 25, Genre: "science fiction", OrdersCount: 10},
		{Title: "The Hobbit", Author: "J.R.R. Tolkien", Price: 20, Genre: "fantasy", OrdersCount: 30},
		{Title: "Sapiens", Author: "Yuval Noah Harari", Price: 30, Genre: "popular science", OrdersCount: 20},
		{Title: "Good Omens", Author: "Terry Pratchett", Price: 15, Genre: "fantasy", OrdersCount: 5},
	}
	for i := range books {
		require.NoError(t, h.DB.Create(&books[i]).Error)
	}
}

func TestHomeTopBooks(t *testing.T) {
	h := &CatalogHandler{DB: initTestDB(t)}
	seedCatalog(t, h)

	e := echo.New()
	rec, c := doJSONRequest(t, e, http.MethodGet, "/home", nil)
	require.NoError(t, h.Home(c))
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		TopBooks []models.Book `json:"top_books"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.TopBooks, 3)
	require.Equal(t, "The Hobbit", resp.TopBooks[0].Title)
	require.Equal(t, "Sapiens", resp.TopBooks[1].Title)
	require.Equal(t, "Dune", resp.TopBooks[2].Title)
}

func TestCatalogSection(t *testing.T) {
	h := &CatalogHandler{DB: initTestDB(t)}
	seedCatalog(t, h)

	e := echo.New()
	rec, c := doJSONRequest(t, e, http.MethodGet, "/catalog/fiction", nil)
	c.SetParamNames("section")
	c.SetParamValues("fiction")
	require.NoError(t, h.Section(c))
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Section string        `json:"section"`
		Genres  []string      `json:"genres"`
		Books   []models.Book `json:"books"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Equal(t, "fiction", resp.Section)
	require.Len(t, resp.Books, 3)
	for _, book := range resp.Books {
		require.Contains(t, []string{"science fiction", "fantasy"}, book.Genre)
	}
}

func TestCatalogSectionAll(t *testing.T) {
	h := &CatalogHandler{DB: initTestDB(t)}
	seedCatalog(t, h)

	e := echo.New()
	rec, c := doJSONRequest(t, e, http.MethodGet, "/catalog/all", nil)
	c.SetParamNames("section")
	c.SetParamValues("all")
	require.NoError(t, h.Section(c))

	var resp struct {
		Books []models.Book `json:"books"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Books, 4)
}

func TestCatalogSectionUnknown(t *testing.T) {
	h := &CatalogHandler{DB: initTestDB(t)}

	e := echo.New()
	_, c := doJSONRequest(t, e, http.MethodGet, "/catalog/garden", nil)
	c.SetParamNames("section")
	c.SetParamValues("garden")

	err := h.Section(c)
	he, ok := err.(*echo.HTTPError)
	require.True(t, ok, "expected HTTPError")
	require.Equal(t, http.StatusNotFound, he.Code)
}

func TestSearchFallback(t *testing.T) {
	db := initTestDB(t)
	h := &SearchHandler{ES: nil, DB: db, Index: "books"}
	db.Create(&models.Book{Title: "Dune", Author: "Frank Herbert", Price: 25})
	db.Create(&models.Book{Title: "War and Peace", Author: "Leo Tolstoy", Price: 30})

	e := echo.New()
	rec, c := doJSONRequest(t, e, http.MethodGet, "/search?q=dUnE", nil)
	require.NoError(t, h.Search(c))
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Total int64         `json:"total"`
		Books []models.Book `json:"books"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Equal(t, int64(1), resp.Total)
	require.Equal(t, "Dune", resp.Books[0].Title)

	// Author substring matches too.
	rec, c = doJSONRequest(t, e, http.MethodGet, "/search?q=tolst", nil)
	require.NoError(t, h.Search(c))
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Equal(t, int64(1), resp.Total)
	require.Equal(t, "War and Peace", resp.Books[0].Title)
}

func TestSearchMissingQuery(t *testing.T) {
	h := &SearchHandler{DB: initTestDB(t), Index: "books"}

	e := echo.New()
	_, c := doJSONRequest(t, e, http.MethodGet, "/search", nil)

	err := h.Search(c)
	he, ok := err.(*echo.HTTPError)
	require.True(t, ok, "expected HTTPError")
	require.Equal(t, http.StatusBadRequest, he.Code)
}
