package extract

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/LouYuanbo1/listingwatch/internal/domain/model"
	"github.com/LouYuanbo1/listingwatch/internal/logger"
	"github.com/PuerkitoBio/goquery"
	"github.com/tidwall/gjson"
	"golang.org/x/net/html"
)

const (
	stateScriptSelector = `script[type="mime/invalid"]`
	totalViewsSelector  = `[data-marker="item-view/total-views"]`
	todayViewsSelector  = `[data-marker="item-view/today-views"]`
)

var (
	ErrStateNotFound  = errors.New("页面中未找到状态JSON")
	ErrInvalidCatalog = errors.New("商品列表格式无效")
)

var sellerSlugRe = regexp.MustCompile(`/brands/([^/?#"'\\\s]+)`)

// catalogPaths are tried in order against the state object.
var catalogPaths = []string{"data.catalog", "catalog"}

type Extractor interface {
	// ExtractRecords never fails: a missing or malformed state yields no records.
	ExtractRecords(page []byte) []model.Item
	// ExtractViewCounts returns nil for a counter whose marker is absent.
	ExtractViewCounts(page []byte) (total, today *int)
}

type extractor struct {
	log logger.Logger
}

func InitExtractor(log logger.Logger) Extractor {
	if log == nil {
		log = logger.NewNop()
	}
	return &extractor{log: log}
}

func (e *extractor) ExtractRecords(page []byte) []model.Item {
	items, err := ParseRecords(page)
	switch {
	case errors.Is(err, ErrStateNotFound):
		e.log.Warn("未找到商品JSON", logger.Error(err))
		return nil
	case err != nil:
		e.log.Error("商品列表校验失败", logger.Error(err))
		return nil
	}
	return items
}

func (e *extractor) ExtractViewCounts(page []byte) (total, today *int) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(page))
	if err != nil {
		e.log.Warn("解析详情页失败", logger.Error(err))
		return nil, nil
	}
	return digitsOf(doc.Find(totalViewsSelector)), digitsOf(doc.Find(todayViewsSelector))
}

// ParseRecords locates the embedded state, decodes catalog.items and cleans them.
func ParseRecords(page []byte) ([]model.Item, error) {
	state, err := findState(page)
	if err != nil {
		return nil, err
	}

	var catalog gjson.Result
	for _, path := range catalogPaths {
		if catalog = state.Get(path); catalog.Exists() {
			break
		}
	}
	itemsRaw := catalog.Get("items")
	if !itemsRaw.Exists() || itemsRaw.Type == gjson.Null {
		return nil, nil
	}
	if !itemsRaw.IsArray() {
		return nil, fmt.Errorf("%w: items is %s", ErrInvalidCatalog, itemsRaw.Type)
	}

	var items []model.Item
	if err := json.Unmarshal([]byte(itemsRaw.Raw), &items); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidCatalog, err)
	}

	kept := items[:0]
	for _, it := range items {
		if it.ID.IsZero() {
			continue
		}
		it.SellerID = sellerSlug(it.Raw)
		kept = append(kept, it)
	}
	return kept, nil
}

// findState returns the "state" object of the first marker script, falling back to "data".
func findState(page []byte) (gjson.Result, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(page))
	if err != nil {
		return gjson.Result{}, fmt.Errorf("%w: %w", ErrStateNotFound, err)
	}

	var (
		state    gjson.Result
		parseErr error
	)
	doc.Find(stateScriptSelector).EachWithBreak(func(_ int, s *goquery.Selection) bool {
		text := strings.TrimSpace(html.UnescapeString(s.Text()))
		if !gjson.Valid(text) {
			parseErr = errors.New("script content is not valid JSON")
			return true
		}
		parsed := gjson.Parse(text)
		for _, key := range []string{"state", "data"} {
			if v := parsed.Get(key); v.Exists() {
				state = v
				return false
			}
		}
		return true
	})
	if state.Exists() {
		return state, nil
	}
	if parseErr != nil {
		return gjson.Result{}, fmt.Errorf("%w: %w", ErrStateNotFound, parseErr)
	}
	return gjson.Result{}, ErrStateNotFound
}

func sellerSlug(raw []byte) string {
	if len(raw) == 0 {
		return ""
	}
	text := strings.ReplaceAll(string(raw), `\/`, "/")
	if m := sellerSlugRe.FindStringSubmatch(text); m != nil {
		return m[1]
	}
	return ""
}

func digitsOf(sel *goquery.Selection) *int {
	if sel.Length() == 0 {
		return nil
	}
	var b strings.Builder
	for _, r := range sel.First().Text() {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	n, err := strconv.Atoi(b.String())
	if err != nil {
		return nil
	}
	return &n
}
