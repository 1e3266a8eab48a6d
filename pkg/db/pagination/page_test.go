package pagination

import (
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestPageNormalize(t *testing.T) {
	cases := []struct {
		name string
		in   Page
		want Page
	}{
		{name: "defaults", in: Page{}, want: Page{Page: 1, PerPage: DefaultPerPage}},
		{name: "caps per page", in: Page{Page: 2, PerPage: 1000}, want: Page{Page: 2, PerPage: MaxPerPage}},
		{name: "keeps valid", in: Page{Page: 3, PerPage: 20}, want: Page{Page: 3, PerPage: 20}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, tc.in.Normalize())
		})
	}
}

func TestPageOffsetAndMeta(t *testing.T) {
	p := Page{Page: 3, PerPage: 10}
	assert.Equal(t, 20, p.Offset())
	assert.Equal(t, 10, p.Limit())

	meta := NewPageMeta(p, 41)
	assert.Equal(t, 5, meta.LastPage)
	assert.Equal(t, int64(41), meta.Total)

	empty := NewPageMeta(Page{}, 0)
	assert.Equal(t, 1, empty.LastPage)
}

func TestCursorRoundTripAndTrim(t *testing.T) {
	at := time.Date(2024, 5, 1, 8, 30, 0, 123, time.UTC)
	token := EncodeCursor(Cursor{ID: "42", CreatedAt: at})

	decoded, err := DecodeCursor(token)
	assert.NoError(t, err)
	assert.Equal(t, "42", decoded.ID)
	assert.True(t, at.Equal(decoded.CreatedAt))

	_, err = DecodeCursor("not-a-token")
	assert.ErrorIs(t, err, ErrInvalidCursor)
	_, err = DecodeCursor("%%%")
	assert.ErrorIs(t, err, ErrInvalidCursor)

	rows := []int{5, 4, 3}
	kept, info := Trim(rows, 2, func(n int) Cursor { return Cursor{ID: strconv.Itoa(n), CreatedAt: at} })
	assert.Equal(t, []int{5, 4}, kept)
	assert.True(t, info.HasMore)
	next, err := DecodeCursor(info.NextPageToken)
	assert.NoError(t, err)
	assert.Equal(t, "4", next.ID)

	kept, info = Trim(rows, 3, func(n int) Cursor { return Cursor{} })
	assert.Len(t, kept, 3)
	assert.False(t, info.HasMore)
	assert.Empty(t, info.NextPageToken)

	assert.Equal(t, 50, ClampSize(0, 50, 250))
	assert.Equal(t, 250, ClampSize(900, 50, 250))
}
