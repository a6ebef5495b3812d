package extract

import (
	"html"
	"testing"

	"github.com/LouYuanbo1/listingwatch/internal/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func page(stateJSON string) []byte {
	return []byte(`<html><head>
<script>window.x = 1;</script>
<script type="mime/invalid" data-mfe-state="true">` + html.EscapeString(stateJSON) + `</script>
</head><body></body></html>`)
}

const catalogState = `{"state":{"data":{"catalog":{"items":[
 {"id":101,"title":"Велосипед","description":"почти новый","urlPath":"/moskva/velo_101",
  "priceDetailed":{"value":15000,"string":"15 000 ₽"},"geo":{"formattedAddress":"Москва, Тверская"},
  "sortTimeStamp":1700000000000,"iva":{"UserInfoStep":[{"payload":{"profile":{"link":"\/brands\/bike_shop?src=search"}}}]}},
 {"id":null,"title":"пустышка"},
 {"id":"102","title":"Самокат","priceDetailed":{"value":3000},"isReserved":true}
]}}}}`

func TestParseRecordsFromState(t *testing.T) {
	items, err := ParseRecords(page(catalogState))
	require.NoError(t, err)
	require.Len(t, items, 2)

	assert.Equal(t, "101", items[0].ID.String())
	assert.Equal(t, "Велосипед", items[0].Title)
	assert.Equal(t, 15000, items[0].Price())
	assert.Equal(t, "Москва, Тверская", items[0].Address())
	assert.Equal(t, "bike_shop", items[0].SellerID)

	assert.Equal(t, "102", items[1].ID.String())
	assert.True(t, items[1].IsReserved)
	assert.Empty(t, items[1].SellerID)
}

func TestParseRecordsFromDataKey(t *testing.T) {
	items, err := ParseRecords(page(`{"data":{"catalog":{"items":[{"id":7,"title":"Стол"}]}}}`))
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "7", items[0].ID.String())
}

func TestParseRecordsStatePreferredOverData(t *testing.T) {
	items, err := ParseRecords(page(`{"data":{"catalog":{"items":[{"id":1}]}},"state":{"catalog":{"items":[{"id":2}]}}}`))
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "2", items[0].ID.String())
}

func TestParseRecordsNotFound(t *testing.T) {
	cases := map[string][]byte{
		"no script":       []byte(`<html><body>nothing</body></html>`),
		"no known key":    page(`{"other":{}}`),
		"broken json":     page(`{"state":`),
		"wrong mime type": []byte(`<script type="application/json">{"state":{}}</script>`),
	}
	for name, in := range cases {
		t.Run(name, func(t *testing.T) {
			items, err := ParseRecords(in)
			assert.ErrorIs(t, err, ErrStateNotFound)
			assert.Empty(t, items)
		})
	}
}

func TestParseRecordsSchemaMismatch(t *testing.T) {
	_, err := ParseRecords(page(`{"state":{"data":{"catalog":{"items":[{"id":1,"title":{"bad":true}}]}}}}`))
	assert.ErrorIs(t, err, ErrInvalidCatalog)

	_, err = ParseRecords(page(`{"state":{"data":{"catalog":{"items":"nope"}}}}`))
	assert.ErrorIs(t, err, ErrInvalidCatalog)
}

func TestParseRecordsEmptyCatalog(t *testing.T) {
	items, err := ParseRecords(page(`{"state":{"data":{"catalog":{}}}}`))
	require.NoError(t, err)
	assert.Empty(t, items)
}

func TestExtractRecordsLogsAndReturnsEmpty(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	e := InitExtractor(logger.FromZap(zap.New(core)))

	assert.Empty(t, e.ExtractRecords([]byte(`<html></html>`)))
	assert.Equal(t, 1, logs.FilterLevelExact(zapcore.WarnLevel).Len())

	assert.Empty(t, e.ExtractRecords(page(`{"state":{"catalog":{"items":[{"id":[1]}]}}}`)))
	assert.Equal(t, 1, logs.FilterLevelExact(zapcore.ErrorLevel).Len())

	assert.Len(t, e.ExtractRecords(page(catalogState)), 2)
}

func TestExtractViewCounts(t *testing.T) {
	e := InitExtractor(nil)

	total, today := e.ExtractViewCounts([]byte(`<div>
<span data-marker="item-view/total-views">1 234 просмотра</span>
<span data-marker="item-view/today-views">+12 сегодня</span></div>`))
	require.NotNil(t, total)
	require.NotNil(t, today)
	assert.Equal(t, 1234, *total)
	assert.Equal(t, 12, *today)

	total, today = e.ExtractViewCounts([]byte(`<span data-marker="item-view/total-views">1&nbsp;001 просмотр</span>`))
	require.NotNil(t, total)
	assert.Equal(t, 1001, *total)
	assert.Nil(t, today)

	total, today = e.ExtractViewCounts([]byte(`<html></html>`))
	assert.Nil(t, total)
	assert.Nil(t, today)
}
