package filter

import (
	"context"
	"errors"
	"slices"
	"strings"
	"time"

	"github.com/LouYuanbo1/listingwatch/internal/domain/model"
)

// Default is the production filter order.
func Default() []Filter {
	return []Filter{
		{Name: "viewed", Apply: Viewed},
		{Name: "price_range", Apply: PriceRange},
		{Name: "black_keywords", Apply: BlackKeywords},
		{Name: "white_keywords", Apply: WhiteKeywords},
		{Name: "geo", Apply: Geo},
		{Name: "seller", Apply: Seller},
		{Name: "recent_time", Apply: RecentTime},
		{Name: "reserve", Apply: Reserve},
		{Name: "promotion", Apply: Promotion},
	}
}

func keep(items []model.Item, pred func(*model.Item) bool) []model.Item {
	out := make([]model.Item, 0, len(items))
	for i := range items {
		if pred(&items[i]) {
			out = append(out, items[i])
		}
	}
	return out
}

// Viewed drops records whose (id, price) the dedup store already knows.
func Viewed(ctx context.Context, items []model.Item, env *Env) ([]model.Item, error) {
	if env.IsViewed == nil {
		return nil, errors.New("no dedup callback")
	}
	out := make([]model.Item, 0, len(items))
	for i := range items {
		seen, err := env.IsViewed(ctx, &items[i])
		if err != nil {
			return nil, err
		}
		if !seen {
			out = append(out, items[i])
		}
	}
	return out, nil
}

// PriceRange keeps priced records within [MinPrice, MaxPrice]; MaxPrice <= 0 is unbounded.
func PriceRange(_ context.Context, items []model.Item, env *Env) ([]model.Item, error) {
	lo, hi := env.Cfg.MinPrice, env.Cfg.MaxPrice
	return keep(items, func(it *model.Item) bool {
		if it.PriceDetailed == nil {
			return false
		}
		v := it.PriceDetailed.Value
		return v >= lo && (hi <= 0 || v <= hi)
	}), nil
}

func BlackKeywords(_ context.Context, items []model.Item, env *Env) ([]model.Item, error) {
	phrases := normalizePhrases(env.Cfg.KeysWordBlackList)
	if len(phrases) == 0 {
		return items, nil
	}
	return keep(items, func(it *model.Item) bool { return !containsAny(it.SearchText(), phrases) }), nil
}

func WhiteKeywords(_ context.Context, items []model.Item, env *Env) ([]model.Item, error) {
	phrases := normalizePhrases(env.Cfg.KeysWordWhiteList)
	if len(phrases) == 0 {
		return items, nil
	}
	return keep(items, func(it *model.Item) bool { return containsAny(it.SearchText(), phrases) }), nil
}

// Geo is a case-sensitive substring match on the formatted address.
func Geo(_ context.Context, items []model.Item, env *Env) ([]model.Item, error) {
	if env.Cfg.Geo == "" {
		return items, nil
	}
	return keep(items, func(it *model.Item) bool {
		addr := it.Address()
		return addr != "" && strings.Contains(addr, env.Cfg.Geo)
	}), nil
}

// Seller drops blacklisted sellers; records without a known seller pass.
func Seller(_ context.Context, items []model.Item, env *Env) ([]model.Item, error) {
	if len(env.Cfg.SellerBlackList) == 0 {
		return items, nil
	}
	return keep(items, func(it *model.Item) bool {
		return it.SellerID == "" || !slices.Contains(env.Cfg.SellerBlackList, it.SellerID)
	}), nil
}

// RecentTime keeps records published at most MaxAge seconds ago; zero disables it.
func RecentTime(_ context.Context, items []model.Item, env *Env) ([]model.Item, error) {
	if env.Cfg.MaxAge <= 0 {
		return items, nil
	}
	now := env.now()
	maxAge := time.Duration(env.Cfg.MaxAge) * time.Second
	return keep(items, func(it *model.Item) bool { return IsRecent(it.PublishedAt(), now, maxAge) }), nil
}

// IsRecent is false for a zero publish time.
func IsRecent(published, now time.Time, maxAge time.Duration) bool {
	if published.IsZero() {
		return false
	}
	return now.Sub(published) <= maxAge
}

func Reserve(_ context.Context, items []model.Item, env *Env) ([]model.Item, error) {
	if !env.Cfg.IgnoreReserv {
		return items, nil
	}
	return keep(items, func(it *model.Item) bool { return !it.IsReserved }), nil
}

// Promotion sets IsPromotion on every record, then drops promoted ones if configured.
func Promotion(_ context.Context, items []model.Item, env *Env) ([]model.Item, error) {
	out := make([]model.Item, 0, len(items))
	for _, it := range items {
		it.IsPromotion = it.HasPromotionMark()
		if env.Cfg.IgnorePromotion && it.IsPromotion {
			continue
		}
		out = append(out, it)
	}
	return out, nil
}

// normalizePhrases lower-cases the list and drops blank entries.
func normalizePhrases(list []string) []string {
	out := make([]string, 0, len(list))
	for _, p := range list {
		if p = strings.ToLower(strings.TrimSpace(p)); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func containsAny(text string, phrases []string) bool {
	for _, p := range phrases {
		if strings.Contains(text, p) {
			return true
		}
	}
	return false
}
