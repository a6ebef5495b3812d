package model

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestItemIDAcceptsNumbersStringsAndNull(t *testing.T) {
	var items []Item
	raw := `[{"id": 4123456789}, {"id": "abc"}, {"id": null}, {}]`
	require.NoError(t, json.Unmarshal([]byte(raw), &items))

	assert.Equal(t, ItemID("4123456789"), items[0].ID)
	assert.Equal(t, int64(4123456789), items[0].ID.Int64())
	assert.Equal(t, ItemID("abc"), items[1].ID)
	assert.True(t, items[2].ID.IsZero())
	assert.True(t, items[3].ID.IsZero())
}

func TestItemKeepsRaw(t *testing.T) {
	var it Item
	raw := `{"id":1,"title":"Sofa","userLink":"/brands/cool-shop/all"}`
	require.NoError(t, json.Unmarshal([]byte(raw), &it))
	assert.JSONEq(t, raw, string(it.Raw))
	assert.Equal(t, "Sofa", it.Title)
}

func TestHasPromotionMark(t *testing.T) {
	cases := []struct {
		name string
		iva  string
		want bool
	}{
		{"promoted", `{"DateInfoStep":[{"payload":{"vas":[{"title":"XL"},{"title":"Продвинуто"}]}}]}`, true},
		{"second step", `{"DateInfoStep":[{"payload":{}},{"payload":{"vas":[{"title":"Продвинуто"}]}}]}`, true},
		{"other vas", `{"DateInfoStep":[{"payload":{"vas":[{"title":"Выделено"}]}}]}`, false},
		{"no steps", `{"AutoPartsManufacturerStep":[]}`, false},
		{"malformed", `{"DateInfoStep":[{"payload":`, false},
		{"wrong shape", `{"DateInfoStep":"oops"}`, false},
		{"null", `null`, false},
		{"empty", ``, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			it := Item{Iva: json.RawMessage(tc.iva)}
			assert.Equal(t, tc.want, it.HasPromotionMark())
		})
	}
}

func TestItemHelpers(t *testing.T) {
	it := Item{
		Title:         "iPhone 15",
		Description:   "Как НОВЫЙ",
		URLPath:       "/moskva/telefony/iphone_15_123",
		SortTimeStamp: 1_700_000_000_000,
	}
	assert.Equal(t, 0, it.Price())
	assert.Equal(t, "", it.Address())
	assert.Equal(t, "iphone 15 как новый", it.SearchText())
	assert.Equal(t, "https://www.avito.ru/moskva/telefony/iphone_15_123", it.DetailURL("https://www.avito.ru/"))
	assert.True(t, it.PublishedAt().Equal(time.UnixMilli(1_700_000_000_000)))
	assert.True(t, (&Item{}).PublishedAt().IsZero())
}

func TestNewItemDoc(t *testing.T) {
	views := 10
	it := &Item{ID: "7", Title: "Bike", URLPath: "/x/bike_7", PriceDetailed: &Price{Value: 500},
		Geo: &Geo{FormattedAddress: "Москва"}, SellerID: "shop", TotalViews: &views}
	now := time.Now()
	doc := NewItemDoc(it, "https://www.avito.ru", "", now)

	assert.Equal(t, "7", doc.GetID())
	assert.Equal(t, DefaultItemIndex, doc.GetIndex())
	assert.Equal(t, 500, doc.Price)
	assert.Equal(t, "https://www.avito.ru/x/bike_7", doc.URL)
	assert.Equal(t, &views, doc.TotalViews)
	assert.Contains(t, doc.GetTypeMapping().Properties, "price")
}
