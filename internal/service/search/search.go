package search

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/elastic/go-elasticsearch/v9"
	"gorm.io/gorm"

	"github.com/ValeraFCDM/BookShop/internal/models"
)

// Search finds books whose title or author matches the query. With an
// Elasticsearch client it runs a multi_match against the book index;
// without one it falls back to a case-insensitive substring match in the
// relational store.
func Search(ctx context.Context, es *elasticsearch.Client, db *gorm.DB, index, query string, from, size int) (int64, []models.Book, error) {
	if es == nil {
		return searchDB(db, query, from, size)
	}

	body := map[string]interface{}{
		"query": map[string]interface{}{
			"multi_match": map[string]interface{}{
				"query":     query,
				"fields":    []string{"title^2", "author", "description"},
				"fuzziness": "AUTO",
			},
		},
		"from": from,
		"size": size,
	}

	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(body); err != nil {
		return 0, nil, fmt.Errorf("search: encode query: %w", err)
	}

	res, err := es.Search(
		es.Search.WithContext(ctx),
		es.Search.WithIndex(index),
		es.Search.WithBody(&buf),
	)
	if err != nil {
		return 0, nil, fmt.Errorf("search: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return 0, nil, fmt.Errorf("search: %s", res.Status())
	}

	var r struct {
		Hits struct {
			Total struct{ Value int64 } `json:"total"`
			Hits  []struct {
				Source models.Book `json:"_source"`
			} `json:"hits"`
		} `json:"hits"`
	}
	if err := json.NewDecoder(res.Body).Decode(&r); err != nil {
		return 0, nil, err
	}

	books := make([]models.Book, len(r.Hits.Hits))
	for i, hit := range r.Hits.Hits {
		books[i] = hit.Source
	}
	return r.Hits.Total.Value, books, nil
}

func searchDB(db *gorm.DB, query string, from, size int) (int64, []models.Book, error) {
	pattern := "%" + strings.ToLower(query) + "%"
	q := db.Model(&models.Book{}).
		Where("LOWER(title) LIKE ? OR LOWER(author) LIKE ?", pattern, pattern)

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return 0, nil, err
	}

	var books []models.Book
	if err := q.Offset(from).Limit(size).Find(&books).Error; err != nil {
		return 0, nil, err
	}
	return total, books, nil
}

// IndexBook upserts a book document. A nil client is a no-op so the
// service keeps working when search is not configured.
func IndexBook(ctx context.Context, es *elasticsearch.Client, index string, book models.Book) error {
	if es == nil {
		return nil
	}

	data, err := json.Marshal(book)
	if err != nil {
		return fmt.Errorf("index book: %w", err)
	}

	res, err := es.Index(
		index,
		bytes.NewReader(data),
		es.Index.WithDocumentID(strconv.FormatUint(uint64(book.ID), 10)),
		es.Index.WithContext(ctx),
	)
	if err != nil {
		return fmt.Errorf("index book: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return fmt.Errorf("index book: %s", res.Status())
	}
	return nil
}

func RemoveBook(ctx context.Context, es *elasticsearch.Client, index string, id uint) error {
	if es == nil {
		return nil
	}

	res, err := es.Delete(
		index,
		strconv.FormatUint(uint64(id), 10),
		es.Delete.WithContext(ctx),
	)
	if err != nil {
		return fmt.Errorf("remove book: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() && res.StatusCode != 404 {
		return fmt.Errorf("remove book: %s", res.Status())
	}
	return nil
}
