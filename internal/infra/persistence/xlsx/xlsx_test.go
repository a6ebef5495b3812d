package xlsx

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/LouYuanbo1/listingwatch/internal/domain/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func TestRunFileName(t *testing.T) {
	assert.Equal(t, filepath.Join("result", "all.xlsx"), RunFileName("result", nil))
	assert.Equal(t, filepath.Join("result", "iphone-чехол.xlsx"), RunFileName("result", []string{"iPhone", "Чехол"}))

	long := RunFileName("result", []string{"абвгдежзийклмнопрстуфхцчшщъыьэюя", "абвгдежзийклмнопрстуфхцчшщъыьэюя"})
	assert.Equal(t, 50, len([]rune(filepath.Base(long)))-len(".xlsx"))

	assert.Equal(t, filepath.Join("out", "a_b.xlsx"), RunFileName("out", []string{"a/b"}))
}

func TestLinkFileName(t *testing.T) {
	assert.Equal(t, filepath.Join("result", "1.xlsx"), LinkFileName("result", 0))
	assert.Equal(t, filepath.Join("result", "3.xlsx"), LinkFileName("result", 2))
}

func TestSinkAppendsAcrossCalls(t *testing.T) {
	path := filepath.Join(t.TempDir(), "result", "all.xlsx")
	s := NewSink(path, "https://market.test")
	views := 42

	require.NoError(t, s.Append(context.Background(), []model.Item{
		{ID: "1", Title: "Велосипед", URLPath: "/item/1", PriceDetailed: &model.Price{Value: 1500}, TotalViews: &views},
	}))
	require.NoError(t, s.Append(context.Background(), []model.Item{
		{ID: "2", Title: "Самокат", URLPath: "/item/2", IsPromotion: true},
	}))
	require.NoError(t, s.Append(context.Background(), nil))

	f, err := excelize.OpenFile(path)
	require.NoError(t, err)
	defer f.Close()
	rows, err := f.GetRows(sheetName)
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, "id", rows[0][0])
	assert.Equal(t, []string{"1", "Велосипед", "1500", "", "https://market.test/item/1", "", "FALSE", "FALSE", "", "42"}, rows[1][:10])
	assert.Equal(t, "2", rows[2][0])
	assert.Equal(t, "TRUE", rows[2][6])
}
