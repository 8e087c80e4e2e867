// Package query filters, sorts and paginates invoice snapshots for the list
// endpoint.
package query

import (
	"net/url"
	"sort"
	"strconv"
	"strings"

	"github.com/dharsanguruparan/InvoiceDrop/internal/model"
)

// SortField names an orderable invoice attribute.
type SortField string

const (
	SortUploadDate SortField = "uploadDate"
	SortAmount     SortField = "amount"
	SortClientName SortField = "clientName"
)

// SortOrder is asc or desc.
type SortOrder string

const (
	Asc  SortOrder = "asc"
	Desc SortOrder = "desc"
)

// StatusAll disables the status filter.
const StatusAll = "all"

const (
	DefaultPage  = 1
	DefaultLimit = 10
)

// Params configures one list query. Zero Page or Limit fall back to the
// defaults.
type Params struct {
	Page      int
	Limit     int
	SortBy    SortField
	SortOrder SortOrder
	Status    string
	Search    string
}

// Result is one page of invoices plus the filtered total.
type Result struct {
	Data  []model.Invoice `json:"data"`
	Total int             `json:"total"`
	Page  int             `json:"page"`
	Limit int             `json:"limit"`
}

// Run applies status filter, text search, sort and pagination, in that order.
// records is not modified.
func Run(records []model.Invoice, p Params) Result {
	if p.Page < 1 {
		p.Page = DefaultPage
	}
	if p.Limit < 1 {
		p.Limit = DefaultLimit
	}

	filtered := make([]model.Invoice, 0, len(records))
	needle := strings.ToLower(p.Search)
	for _, inv := range records {
		if p.Status != "" && p.Status != StatusAll && string(inv.Status) != p.Status {
			continue
		}
		if needle != "" && !matches(inv, needle) {
			continue
		}
		filtered = append(filtered, inv)
	}

	if less := comparator(filtered, p.SortBy); less != nil {
		if p.SortOrder == Desc {
			asc := less
			less = func(i, j int) bool { return asc(j, i) }
		}
		sort.SliceStable(filtered, less)
	}

	return Result{
		Data:  paginate(filtered, p.Page, p.Limit),
		Total: len(filtered),
		Page:  p.Page,
		Limit: p.Limit,
	}
}

func matches(inv model.Invoice, needle string) bool {
	return strings.Contains(strings.ToLower(inv.FileName), needle) ||
		strings.Contains(strings.ToLower(inv.ClientName), needle)
}

// comparator returns nil for fields that are not orderable; the input order
// is then kept.
func comparator(items []model.Invoice, field SortField) func(i, j int) bool {
	switch field {
	case SortUploadDate:
		return func(i, j int) bool { return items[i].UploadDate.Before(items[j].UploadDate) }
	case SortAmount:
		return func(i, j int) bool { return items[i].Amount < items[j].Amount }
	case SortClientName:
		return func(i, j int) bool { return items[i].ClientName < items[j].ClientName }
	default:
		return nil
	}
}

func paginate(items []model.Invoice, page, limit int) []model.Invoice {
	if page < 1 || limit < 1 {
		return []model.Invoice{}
	}
	// Compare page counts instead of multiplying so huge page/limit values
	// cannot overflow into a valid offset.
	pages := len(items) / limit
	if len(items)%limit != 0 {
		pages++
	}
	if page > pages {
		return []model.Invoice{}
	}
	start := (page - 1) * limit
	end := start + min(limit, len(items)-start)
	return items[start:end]
}

// ParseParams reads list parameters from a query string. page and limit fall
// back to their defaults when absent, non-numeric or below 1. Unknown sortBy
// or sortOrder values are validation errors.
func ParseParams(values url.Values) (Params, error) {
	p := Params{
		Page:      positiveOr(values.Get("page"), DefaultPage),
		Limit:     positiveOr(values.Get("limit"), DefaultLimit),
		SortBy:    SortUploadDate,
		SortOrder: Desc,
		Status:    strings.TrimSpace(values.Get("status")),
		Search:    values.Get("search"),
	}

	if raw := values.Get("sortBy"); raw != "" {
		switch f := SortField(raw); f {
		case SortUploadDate, SortAmount, SortClientName:
			p.SortBy = f
		default:
			return Params{}, model.Validationf("unsupported sortBy %q: use uploadDate, amount or clientName", raw)
		}
	}
	if raw := values.Get("sortOrder"); raw != "" {
		switch o := SortOrder(strings.ToLower(raw)); o {
		case Asc, Desc:
			p.SortOrder = o
		default:
			return Params{}, model.Validationf("unsupported sortOrder %q: use asc or desc", raw)
		}
	}
	return p, nil
}

// Values is the inverse of ParseParams, used by the HTTP client.
func (p Params) Values() url.Values {
	v := url.Values{}
	if p.Page > 0 {
		v.Set("page", strconv.Itoa(p.Page))
	}
	if p.Limit > 0 {
		v.Set("limit", strconv.Itoa(p.Limit))
	}
	if p.SortBy != "" {
		v.Set("sortBy", string(p.SortBy))
	}
	if p.SortOrder != "" {
		v.Set("sortOrder", string(p.SortOrder))
	}
	if p.Status != "" {
		v.Set("status", p.Status)
	}
	if p.Search != "" {
		v.Set("search", p.Search)
	}
	return v
}

func positiveOr(raw string, def int) int {
	n, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil || n < 1 {
		return def
	}
	return n
}
