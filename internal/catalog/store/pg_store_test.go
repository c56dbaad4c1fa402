package store

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPgStore_FindAllQuery(t *testing.T) {
	p := NewPgStore(nil)

	testCases := []struct {
		name      string
		filter    Filter
		wantWhere bool
		wantArgs  []any
	}{
		{name: "no filter", filter: Filter{}, wantArgs: []any{}},
		{name: "kind filter", filter: Filter{Kind: "ebook"}, wantWhere: true, wantArgs: []any{"ebook"}},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			// when
			query, args, err := p.findAllQuery(tc.filter)

			// then
			require.NoError(t, err)
			assert.Contains(t, query, `FROM "books"`)
			assert.Contains(t, query, `ORDER BY "created_at" ASC, "id" ASC`)
			if tc.wantWhere {
				assert.Contains(t, query, `"book_type" = $1`)
			} else {
				assert.NotContains(t, query, "WHERE")
			}
			assert.ElementsMatch(t, tc.wantArgs, args)
		})
	}
}
