package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/txn2/dataset-lookup/pkg/dataset"
)

// PaginationHeader carries page metadata next to a list body.
const PaginationHeader = "X-Pagination"

// Pagination is the X-Pagination header document.
type Pagination struct {
	Total        int  `json:"total"`
	TotalPages   int  `json:"total_pages"`
	FirstPage    *int `json:"first_page,omitempty"`
	LastPage     *int `json:"last_page,omitempty"`
	Page         *int `json:"page,omitempty"`
	PreviousPage *int `json:"previous_page,omitempty"`
	NextPage     *int `json:"next_page,omitempty"`
}

// NewPagination describes page p of total records.
func NewPagination(p dataset.Page, total int) Pagination {
	pg := Pagination{Total: total}
	if total == 0 {
		return pg
	}
	pg.TotalPages = (total + p.Size - 1) / p.Size
	first, last, page := 1, pg.TotalPages, p.Number
	pg.FirstPage, pg.LastPage, pg.Page = &first, &last, &page
	if page > 1 {
		prev := page - 1
		pg.PreviousPage = &prev
	}
	if page < pg.TotalPages {
		next := page + 1
		pg.NextPage = &next
	}
	return pg
}

// SetPagination writes the X-Pagination header for page p of total records.
func SetPagination(w http.ResponseWriter, p dataset.Page, total int) {
	b, err := json.Marshal(NewPagination(p, total))
	if err != nil {
		return
	}
	w.Header().Set(PaginationHeader, string(b))
}

// parsePage reads page and page_size; absent values take the defaults.
func parsePage(q url.Values) (dataset.Page, error) {
	p := dataset.Page{Number: 1, Size: dataset.DefaultPageSize}
	if v := q.Get("page"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			return p, fmt.Errorf("%w: page must be a positive integer", ErrBadRequest)
		}
		p.Number = n
	}
	if v := q.Get("page_size"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			return p, fmt.Errorf("%w: page_size must be a positive integer", ErrBadRequest)
		}
		p.Size = n
	}
	p.Normalize()
	return p, nil
}
