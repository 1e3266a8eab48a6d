package claim

import (
	"encoding/json"
	"regexp"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestColorRefAcceptsNumbersAndStrings(t *testing.T) {
	var items []LineItem
	raw := `[{"brand_id":"1","category_id":"2","product_id":"3","color":1,"quantity":2},
	         {"brand_id":"1","category_id":"2","product_id":"3","color":"Merah","quantity":1},
	         {"brand_id":"1","category_id":"2","product_id":"3","quantity":1}]`
	require.NoError(t, json.Unmarshal([]byte(raw), &items))
	require.Len(t, items, 3)

	idx, ok := items[0].Color.Index()
	assert.True(t, ok)
	assert.Equal(t, 1, idx)

	_, ok = items[1].Color.Index()
	assert.False(t, ok)
	assert.Equal(t, ColorRef(""), items[2].Color)
}

func TestResolveColorsIsIdempotent(t *testing.T) {
	colors := func(id snowflake.ID) []string {
		if id == 3 {
			return []string{"Hitam", "Putih"}
		}
		return nil
	}
	items := []LineItem{
		{ProductID: 3, Color: "1", Quantity: 1},
		{ProductID: 3, Color: "5", Quantity: 1},
		{ProductID: 3, Color: "Merah", Quantity: 1},
		{ProductID: 4, Color: "0", Quantity: 1},
	}

	once := ResolveColors(items, colors)
	assert.Equal(t, ColorRef("Putih"), once[0].Color)
	assert.Equal(t, ColorRef("5"), once[1].Color)
	assert.Equal(t, ColorRef("Merah"), once[2].Color)
	assert.Equal(t, ColorRef("0"), once[3].Color)
	assert.Equal(t, ColorRef("1"), items[0].Color, "input must not be mutated")

	twice := ResolveColors(once, colors)
	assert.Equal(t, once, twice)
}

func TestDefaultPrices(t *testing.T) {
	given := int64(5000)
	items := []LineItem{
		{ProductID: 1, Quantity: 2},
		{ProductID: 2, Quantity: 1, Price: &given},
		{ProductID: 9, Quantity: 1},
	}
	out := DefaultPrices(items, func(id snowflake.ID) (int64, bool) {
		if id == 1 {
			return 12000, true
		}
		return 0, false
	})
	assert.Equal(t, int64(24000), out[0].Subtotal())
	assert.Equal(t, int64(5000), out[1].UnitPrice())
	assert.Nil(t, out[2].Price)
}

type fakeRegions map[string]string

func (f fakeRegions) RegionName(kind RegionKind, code string) string {
	return f[string(kind)+":"+code]
}

func (f fakeRegions) PostalCode(village string) string {
	return f["postal:"+village]
}

func TestAddressShapes(t *testing.T) {
	var a Address
	require.NoError(t, json.Unmarshal([]byte(`"Jl. Merdeka 1"`), &a))
	assert.Equal(t, "Jl. Merdeka 1", a.Text)

	require.NoError(t, json.Unmarshal([]byte(`[{"detail":"Jl. A","village":"3171010001"}]`), &a))
	require.Len(t, a.Parts, 1)
	assert.Empty(t, a.Text)

	require.NoError(t, json.Unmarshal([]byte(`{"text":"x","parts":[{"detail":"y"}]}`), &a))
	assert.Equal(t, "x", a.Text)
	assert.Len(t, a.Parts, 1)

	assert.Error(t, json.Unmarshal([]byte(`12`), &a))
}

func TestAddressRender(t *testing.T) {
	regions := fakeRegions{
		"village:V1":  "Gambir",
		"district:D1": "Gambir",
		"city:C1":     "Jakarta Pusat",
		"province:P1": "DKI Jakarta",
		"postal:V1":   "10110",
		"village:V2":  "Menteng",
	}
	a := Address{Parts: []AddressPart{
		{Detail: "Jl. Merdeka 1", Village: "V1", District: "D1", City: "C1", Province: "P1"},
		{Detail: "-", Village: "V2", PostalCode: "10310"},
	}}
	assert.Equal(t,
		"Jl. Merdeka 1, Gambir, Gambir, Jakarta Pusat, DKI Jakarta, 10110 | Menteng, 10310",
		a.Render(regions))

	assert.Equal(t, "Jl. A", Address{Text: " Jl. A "}.Render(nil))
	assert.Equal(t, "x, V9", Address{Parts: []AddressPart{{Detail: "x", Village: "V9"}}}.Render(nil))
	assert.True(t, Address{}.IsZero())
}

func TestNewCode(t *testing.T) {
	now := time.Date(2025, 1, 31, 0, 0, 0, 0, time.UTC)
	code, err := NewCode(PrefixGaransi, now)
	require.NoError(t, err)
	assert.Regexp(t, regexp.MustCompile(`^GAR-20250131[A-Z0-9]{4}$`), code)

	code, err = NewCode(PrefixOrder, now)
	require.NoError(t, err)
	assert.Regexp(t, `^ORD-20250131[A-Z0-9]{4}$`, code)
}
