package api

import (
	"fmt"
	"net/url"
	"strconv"

	"github.com/spf13/cast"
)

// page is the paged list payload. Some endpoints send total as a string.
type page[T any] struct {
	Records []T `json:"records"`
	Total   any `json:"total"`
}

func (p page[T]) unpack() ([]T, int, error) {
	total := 0
	if p.Total != nil {
		n, err := cast.ToIntE(p.Total)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to read page total: %w", err)
		}
		total = n
	}
	records := p.Records
	if records == nil {
		records = []T{}
	}
	return records, total, nil
}

// pageQuery builds page/limit parameters, defaulting to the first page of ten.
func pageQuery(page, limit int) url.Values {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = 10
	}
	return url.Values{
		"page":  {strconv.Itoa(page)},
		"limit": {strconv.Itoa(limit)},
	}
}

// setIf adds key only when value is non-empty.
func setIf(q url.Values, key, value string) {
	if value != "" {
		q.Set(key, value)
	}
}
