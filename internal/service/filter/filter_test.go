package filter

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"testing"
	"time"

	"github.com/LouYuanbo1/listingwatch/internal/config"
	"github.com/LouYuanbo1/listingwatch/internal/domain/model"
	"github.com/LouYuanbo1/listingwatch/internal/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

var now = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func item(id string, price int, title string) model.Item {
	return model.Item{
		ID:            model.ItemID(id),
		Title:         title,
		PriceDetailed: &model.Price{Value: price},
		SortTimeStamp: now.Add(-time.Minute).UnixMilli(),
	}
}

func ids(items []model.Item) []string {
	out := make([]string, len(items))
	for i, it := range items {
		out[i] = it.ID.String()
	}
	return out
}

func noneViewed(context.Context, *model.Item) (bool, error) { return false, nil }

func newEnv(cfg config.Filter) *Env {
	return &Env{Cfg: cfg, IsViewed: noneViewed, Now: func() time.Time { return now }}
}

func observed() (logger.Logger, *observer.ObservedLogs) {
	core, logs := observer.New(zapcore.DebugLevel)
	return logger.FromZap(zap.New(core)), logs
}

func TestDefaultOrder(t *testing.T) {
	c := NewChain(nil)
	assert.Equal(t, []string{
		"viewed", "price_range", "black_keywords", "white_keywords", "geo",
		"seller", "recent_time", "reserve", "promotion",
	}, c.Names())
}

func TestViewedUsesIDAndPrice(t *testing.T) {
	seen := map[string]bool{"1|100": true}
	env := newEnv(config.Filter{})
	env.IsViewed = func(_ context.Context, it *model.Item) (bool, error) {
		return seen[it.ID.String()+"|"+strconv.Itoa(it.Price())], nil
	}
	items := []model.Item{item("1", 100, "a"), item("1", 90, "b"), item("2", 100, "c")}

	out, err := Viewed(context.Background(), items, env)
	require.NoError(t, err)
	assert.Equal(t, []string{"1", "2"}, ids(out))
	assert.Equal(t, 90, out[0].Price())
}

func TestPriceRange(t *testing.T) {
	env := newEnv(config.Filter{MinPrice: 100, MaxPrice: 500})
	noPrice := item("4", 0, "x")
	noPrice.PriceDetailed = nil
	items := []model.Item{item("1", 99, ""), item("2", 100, ""), item("3", 500, ""), noPrice, item("5", 501, "")}

	out, _ := PriceRange(context.Background(), items, env)
	assert.Equal(t, []string{"2", "3"}, ids(out))

	env.Cfg.MaxPrice = 0
	out, _ = PriceRange(context.Background(), items, env)
	assert.Equal(t, []string{"2", "3", "5"}, ids(out))
}

func TestKeywords(t *testing.T) {
	items := []model.Item{item("1", 1, "iPhone 13 Pro"), item("2", 1, "Чехол для iphone"), item("3", 1, "Samsung")}
	items[2].Description = "не ПОДДЕЛКА"

	env := newEnv(config.Filter{KeysWordWhiteList: []string{"IPHONE", " "}})
	out, _ := WhiteKeywords(context.Background(), items, env)
	assert.Equal(t, []string{"1", "2"}, ids(out))

	env = newEnv(config.Filter{KeysWordBlackList: []string{"чехол", "подделка", ""}})
	out, _ = BlackKeywords(context.Background(), items, env)
	assert.Equal(t, []string{"1"}, ids(out))

	env = newEnv(config.Filter{KeysWordWhiteList: []string{""}})
	out, _ = WhiteKeywords(context.Background(), items, env)
	assert.Len(t, out, 3)
}

func TestGeoIsCaseSensitive(t *testing.T) {
	a, b, c := item("1", 1, ""), item("2", 1, ""), item("3", 1, "")
	a.Geo = &model.Geo{FormattedAddress: "Москва, Арбат"}
	b.Geo = &model.Geo{FormattedAddress: "москва, Арбат"}
	items := []model.Item{a, b, c}

	out, _ := Geo(context.Background(), items, newEnv(config.Filter{Geo: "Москва"}))
	assert.Equal(t, []string{"1"}, ids(out))
}

func TestSeller(t *testing.T) {
	a, b, c := item("1", 1, ""), item("2", 1, ""), item("3", 1, "")
	a.SellerID = "bad_shop"
	b.SellerID = "good_shop"
	out, _ := Seller(context.Background(), []model.Item{a, b, c}, newEnv(config.Filter{SellerBlackList: []string{"bad_shop"}}))
	assert.Equal(t, []string{"2", "3"}, ids(out))
}

func TestRecentTime(t *testing.T) {
	fresh, old, undated := item("1", 1, ""), item("2", 1, ""), item("3", 1, "")
	old.SortTimeStamp = now.Add(-2 * time.Hour).UnixMilli()
	undated.SortTimeStamp = 0
	items := []model.Item{fresh, old, undated}

	out, _ := RecentTime(context.Background(), items, newEnv(config.Filter{MaxAge: 3600}))
	assert.Equal(t, []string{"1"}, ids(out))

	out, _ = RecentTime(context.Background(), items, newEnv(config.Filter{}))
	assert.Len(t, out, 3)

	assert.True(t, IsRecent(now.Add(-time.Hour), now, time.Hour))
	assert.False(t, IsRecent(time.Time{}, now, time.Hour))
}

func TestReserve(t *testing.T) {
	a, b := item("1", 1, ""), item("2", 1, "")
	b.IsReserved = true
	out, _ := Reserve(context.Background(), []model.Item{a, b}, newEnv(config.Filter{IgnoreReserv: true}))
	assert.Equal(t, []string{"1"}, ids(out))
	out, _ = Reserve(context.Background(), []model.Item{a, b}, newEnv(config.Filter{}))
	assert.Len(t, out, 2)
}

func TestPromotionAlwaysSetsFlag(t *testing.T) {
	promoted, plain, broken := item("1", 1, ""), item("2", 1, ""), item("3", 1, "")
	promoted.Iva = json.RawMessage(`{"DateInfoStep":[{"payload":{"vas":[{"title":"Продвинуто"}]}}]}`)
	plain.Iva = json.RawMessage(`{"DateInfoStep":[{"payload":{"vas":[{"title":"XL"}]}}]}`)
	broken.Iva = json.RawMessage(`{"DateInfoStep":`)
	items := []model.Item{promoted, plain, broken}

	out, err := Promotion(context.Background(), items, newEnv(config.Filter{}))
	require.NoError(t, err)
	require.Len(t, out, 3)
	assert.True(t, out[0].IsPromotion)
	assert.False(t, out[1].IsPromotion)
	assert.False(t, out[2].IsPromotion)
	assert.False(t, items[0].IsPromotion, "input must not be modified")

	out, _ = Promotion(context.Background(), items, newEnv(config.Filter{IgnorePromotion: true}))
	assert.Equal(t, []string{"2", "3"}, ids(out))
}

func TestChainPreservesOrder(t *testing.T) {
	items := []model.Item{item("5", 10, "a"), item("3", 600, "b"), item("9", 20, "c"), item("1", 30, "d")}
	c := NewChain(nil)
	out := c.Apply(context.Background(), items, newEnv(config.Filter{MaxPrice: 500}))
	assert.Equal(t, []string{"5", "9", "1"}, ids(out))
}

func TestChainStopsOnEmptyBatch(t *testing.T) {
	log, logs := observed()
	c := NewChain(log)
	items := []model.Item{item("1", 10, "a"), item("2", 20, "b")}

	out := c.Apply(context.Background(), items, newEnv(config.Filter{MinPrice: 1000}))
	assert.Empty(t, out)

	entries := logs.FilterMessage("过滤完成").All()
	require.Len(t, entries, 2)
	assert.Equal(t, "viewed", entries[0].ContextMap()["filter"])
	assert.Equal(t, int64(2), entries[0].ContextMap()["remaining"])
	assert.Equal(t, "price_range", entries[1].ContextMap()["filter"])
	assert.Equal(t, int64(0), entries[1].ContextMap()["remaining"])
}

func TestChainFailOpen(t *testing.T) {
	log, logs := observed()
	items := []model.Item{item("1", 10, "a"), item("2", 20, "b")}
	calledAfter := false

	c := NewChain(log,
		Filter{Name: "erroring", Apply: func(context.Context, []model.Item, *Env) ([]model.Item, error) {
			return nil, errors.New("boom")
		}},
		Filter{Name: "panicking", Apply: func(context.Context, []model.Item, *Env) ([]model.Item, error) {
			panic("nil map")
		}},
		Filter{Name: "after", Apply: func(_ context.Context, in []model.Item, _ *Env) ([]model.Item, error) {
			calledAfter = true
			return in[:1], nil
		}},
	)
	out := c.Apply(context.Background(), items, newEnv(config.Filter{}))
	assert.Equal(t, []string{"1"}, ids(out))
	assert.True(t, calledAfter)
	assert.Equal(t, 1, logs.FilterLevelExact(zapcore.WarnLevel).Len())
	assert.Equal(t, 1, logs.FilterLevelExact(zapcore.ErrorLevel).Len())
}

func TestViewedCallbackErrorFailsOpen(t *testing.T) {
	env := newEnv(config.Filter{})
	env.IsViewed = func(context.Context, *model.Item) (bool, error) { return false, errors.New("db down") }
	items := []model.Item{item("1", 10, "a")}

	out := NewChain(nil, Filter{Name: "viewed", Apply: Viewed}).Apply(context.Background(), items, env)
	assert.Equal(t, []string{"1"}, ids(out))
}
