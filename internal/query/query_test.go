package query

import (
	"fmt"
	"math"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dharsanguruparan/InvoiceDrop/internal/model"
)

var base = time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)

func sample() []model.Invoice {
	return []model.Invoice{
		{ID: "1", FileName: "march.pdf", ClientName: "Acme Corp", Amount: 500, Status: model.StatusPending, UploadDate: base},
		{ID: "2", FileName: "april.pdf", ClientName: "Globex", Amount: 100, Status: model.StatusProcessed, UploadDate: base.Add(time.Minute)},
		{ID: "3", FileName: "ACME-may.pdf", ClientName: "Initech", Amount: 100, Status: model.StatusFailed, UploadDate: base.Add(2 * time.Minute)},
		{ID: "4", FileName: "june.pdf", ClientName: "Umbrella", Amount: 900, Status: model.StatusProcessed, UploadDate: base.Add(3 * time.Minute)},
	}
}

func ids(items []model.Invoice) []string {
	out := make([]string, 0, len(items))
	for _, inv := range items {
		out = append(out, inv.ID)
	}
	return out
}

func TestRunSortByAmountIsStable(t *testing.T) {
	asc := Run(sample(), Params{SortBy: SortAmount, SortOrder: Asc})
	assert.Equal(t, []string{"2", "3", "1", "4"}, ids(asc.Data))

	desc := Run(sample(), Params{SortBy: SortAmount, SortOrder: Desc})
	// The tied pair keeps input order in both directions.
	assert.Equal(t, []string{"4", "1", "2", "3"}, ids(desc.Data))
}

func TestRunDistinctKeysReverse(t *testing.T) {
	asc := ids(Run(sample(), Params{SortBy: SortUploadDate, SortOrder: Asc}).Data)
	desc := ids(Run(sample(), Params{SortBy: SortUploadDate, SortOrder: Desc}).Data)
	require.Len(t, desc, len(asc))
	for i := range asc {
		assert.Equal(t, asc[i], desc[len(desc)-1-i])
	}
}

func TestRunSortByClientName(t *testing.T) {
	res := Run(sample(), Params{SortBy: SortClientName, SortOrder: Asc})
	assert.Equal(t, []string{"1", "2", "3", "4"}, ids(res.Data))
}

func TestRunUnknownSortFieldKeepsOrder(t *testing.T) {
	res := Run(sample(), Params{SortBy: "fileSize", SortOrder: Desc})
	assert.Equal(t, []string{"1", "2", "3", "4"}, ids(res.Data))
}

func TestRunStatusFilter(t *testing.T) {
	none := Run(sample(), Params{SortBy: SortAmount, SortOrder: Asc})
	all := Run(sample(), Params{SortBy: SortAmount, SortOrder: Asc, Status: StatusAll})
	assert.Equal(t, ids(none.Data), ids(all.Data))
	assert.Equal(t, none.Total, all.Total)

	processed := Run(sample(), Params{Status: string(model.StatusProcessed), SortBy: SortUploadDate, SortOrder: Asc})
	assert.Equal(t, []string{"2", "4"}, ids(processed.Data))
	assert.Equal(t, 2, processed.Total)
}

func TestRunSearchIsCaseInsensitiveOnNameOrClient(t *testing.T) {
	res := Run(sample(), Params{Search: "acme", SortBy: SortUploadDate, SortOrder: Asc})
	// "Acme Corp" matches on client name, "ACME-may.pdf" on file name.
	assert.Equal(t, []string{"1", "3"}, ids(res.Data))

	empty := Run(sample(), Params{Search: "", SortBy: SortUploadDate, SortOrder: Asc})
	assert.Equal(t, 4, empty.Total)
}

func TestRunFiltersBeforeSearch(t *testing.T) {
	res := Run(sample(), Params{Status: string(model.StatusFailed), Search: "acme"})
	assert.Equal(t, []string{"3"}, ids(res.Data))
}

func TestRunTotalIndependentOfPagination(t *testing.T) {
	var records []model.Invoice
	for i := 0; i < 23; i++ {
		records = append(records, model.Invoice{ID: fmt.Sprint(i), Amount: int64(i), UploadDate: base})
	}
	for _, limit := range []int{1, 5, 10, 50} {
		seen := 0
		for page := 1; page <= 30; page++ {
			res := Run(records, Params{Page: page, Limit: limit, SortBy: SortAmount, SortOrder: Asc})
			require.Equal(t, 23, res.Total)
			seen += len(res.Data)
		}
		assert.Equal(t, 23, seen, "limit %d", limit)
	}
}

func TestRunPageBeyondLast(t *testing.T) {
	res := Run(sample()[:4], Params{Page: 3, Limit: 10})
	require.NotNil(t, res.Data)
	assert.Empty(t, res.Data)
	assert.Equal(t, 4, res.Total)
	assert.Equal(t, 3, res.Page)
	assert.Equal(t, 10, res.Limit)

	five := append(sample(), model.Invoice{ID: "5"})
	res = Run(five, Params{Page: 3, Limit: 10})
	assert.Empty(t, res.Data)
	assert.Equal(t, 5, res.Total)
}

func TestRunHugePageAndLimit(t *testing.T) {
	five := append(sample(), model.Invoice{ID: "5"})
	tests := []struct {
		name string
		raw  string
	}{
		{"product wraps to first page", "page=4611686018427387905&limit=4"},
		{"offset wraps negative", "page=9223372036854775806&limit=9223372036854775807"},
		{"max page", fmt.Sprintf("page=%d&limit=2", math.MaxInt)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			values, err := url.ParseQuery(tt.raw)
			require.NoError(t, err)
			params, err := ParseParams(values)
			require.NoError(t, err)

			res := Run(five, params)
			require.NotNil(t, res.Data)
			assert.Empty(t, res.Data)
			assert.Equal(t, 5, res.Total)
		})
	}

	res := Run(five, Params{Page: 1, Limit: math.MaxInt})
	assert.Len(t, res.Data, 5)
}

func TestRunPartialLastPage(t *testing.T) {
	res := Run(sample(), Params{Page: 2, Limit: 3, SortBy: SortUploadDate, SortOrder: Asc})
	assert.Equal(t, []string{"4"}, ids(res.Data))
}

func TestRunDoesNotReorderInput(t *testing.T) {
	in := sample()
	Run(in, Params{SortBy: SortAmount, SortOrder: Asc})
	assert.Equal(t, []string{"1", "2", "3", "4"}, ids(in))
}

func TestParseParams(t *testing.T) {
	tests := []struct {
		name  string
		query string
		want  Params
	}{
		{"defaults", "", Params{Page: 1, Limit: 10, SortBy: SortUploadDate, SortOrder: Desc}},
		{"non numeric", "page=abc&limit=x", Params{Page: 1, Limit: 10, SortBy: SortUploadDate, SortOrder: Desc}},
		{"below one", "page=0&limit=-4", Params{Page: 1, Limit: 10, SortBy: SortUploadDate, SortOrder: Desc}},
		{
			"explicit",
			"page=2&limit=5&sortBy=amount&sortOrder=ASC&status=Failed&search=acme",
			Params{Page: 2, Limit: 5, SortBy: SortAmount, SortOrder: Asc, Status: "Failed", Search: "acme"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			values, err := url.ParseQuery(tt.query)
			require.NoError(t, err)
			got, err := ParseParams(values)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseParamsRejectsUnknownSort(t *testing.T) {
	_, err := ParseParams(url.Values{"sortBy": {"fileSize"}})
	assert.True(t, model.IsKind(err, model.ErrValidation))

	_, err = ParseParams(url.Values{"sortOrder": {"sideways"}})
	assert.True(t, model.IsKind(err, model.ErrValidation))
}

func TestParamsValuesRoundTrip(t *testing.T) {
	p := Params{Page: 2, Limit: 5, SortBy: SortClientName, SortOrder: Asc, Status: "Pending", Search: "x"}
	got, err := ParseParams(p.Values())
	require.NoError(t, err)
	assert.Equal(t, p, got)
}
