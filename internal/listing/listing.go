// Package listing parses the search, filter, sort and paging parameters
// shared by every list endpoint.
package listing

import (
	"net/url"
	"strconv"
	"strings"
)

const (
	DefaultLimit = 25
	MaxLimit     = 200
)

// Params is a parsed list request.
type Params struct {
	Search  string
	Filters map[string]string
	Sort    string
	Desc    bool
	Limit   int
	Offset  int
}

// Spec declares which sort keys and filters a list endpoint accepts.
type Spec struct {
	Sorts       []string
	DefaultSort string
	DefaultDesc bool
	Filters     []string
}

// Page is one page of results plus the unpaged total.
type Page[T any] struct {
	Items  []T `json:"items"`
	Total  int `json:"total"`
	Limit  int `json:"limit"`
	Offset int `json:"offset"`
}

// Parse reads q, search, sort, order, limit, offset and the declared
// filters. Unknown sort keys fall back to the default; the filter value
// "all" means no filter.
func Parse(values url.Values, spec Spec) Params {
	p := Params{
		Search:  strings.TrimSpace(first(values, "q", "search")),
		Filters: make(map[string]string),
		Sort:    spec.DefaultSort,
		Desc:    spec.DefaultDesc,
		Limit:   DefaultLimit,
	}

	if s := values.Get("sort"); s != "" {
		key := strings.TrimPrefix(s, "-")
		for _, allowed := range spec.Sorts {
			if key == allowed {
				p.Sort = key
				p.Desc = strings.HasPrefix(s, "-")
				break
			}
		}
	}
	switch strings.ToLower(values.Get("order")) {
	case "desc":
		p.Desc = true
	case "asc":
		p.Desc = false
	}

	for _, f := range spec.Filters {
		v := strings.TrimSpace(values.Get(f))
		if v == "" || strings.EqualFold(v, "all") {
			continue
		}
		p.Filters[f] = v
	}

	if n, err := strconv.Atoi(values.Get("limit")); err == nil && n > 0 {
		p.Limit = min(n, MaxLimit)
	}
	if n, err := strconv.Atoi(values.Get("offset")); err == nil && n > 0 {
		p.Offset = n
	}
	return p
}

// Filter returns a filter value and whether it was set.
func (p Params) Filter(name string) (string, bool) {
	v, ok := p.Filters[name]
	return v, ok
}

// Window applies offset/limit to an in-memory slice.
func Window[T any](items []T, p Params) []T {
	if p.Offset >= len(items) {
		return []T{}
	}
	end := len(items)
	if p.Limit > 0 && p.Offset+p.Limit < end {
		end = p.Offset + p.Limit
	}
	return items[p.Offset:end]
}

func first(values url.Values, keys ...string) string {
	for _, k := range keys {
		if v := values.Get(k); v != "" {
			return v
		}
	}
	return ""
}
