package model

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/tidwall/gjson"
)

// PromotionTitle marks a paid placement inside the iva metadata block.
const PromotionTitle = "Продвинуто"

// Item is one listing entry extracted from a catalog page.
type Item struct {
	ID            ItemID          `json:"id"`
	Title         string          `json:"title"`
	Description   string          `json:"description"`
	URLPath       string          `json:"urlPath"`
	PriceDetailed *Price          `json:"priceDetailed"`
	Geo           *Geo            `json:"geo"`
	IsReserved    bool            `json:"isReserved"`
	SortTimeStamp int64           `json:"sortTimeStamp"`
	Iva           json.RawMessage `json:"iva"`

	// derived
	SellerID    string `json:"-"`
	IsPromotion bool   `json:"-"`
	TotalViews  *int   `json:"-"`
	TodayViews  *int   `json:"-"`

	// Raw keeps the source object for seller lookup.
	Raw json.RawMessage `json:"-"`
}

type Price struct {
	Value      int    `json:"value"`
	String     string `json:"string"`
	FullString string `json:"fullString"`
}

type Geo struct {
	FormattedAddress string `json:"formattedAddress"`
}

// UnmarshalJSON keeps the raw object alongside the decoded fields.
func (i *Item) UnmarshalJSON(data []byte) error {
	type plain Item
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	*i = Item(p)
	i.Raw = append(json.RawMessage(nil), data...)
	return nil
}

// Price returns the listed amount, zero when the block is absent.
func (i *Item) Price() int {
	if i.PriceDetailed == nil {
		return 0
	}
	return i.PriceDetailed.Value
}

func (i *Item) Address() string {
	if i.Geo == nil {
		return ""
	}
	return i.Geo.FormattedAddress
}

// SearchText is the lower-cased title and description used by keyword filters.
func (i *Item) SearchText() string {
	return strings.ToLower(i.Title + " " + i.Description)
}

// PublishedAt is zero when the listing carries no timestamp.
func (i *Item) PublishedAt() time.Time {
	if i.SortTimeStamp <= 0 {
		return time.Time{}
	}
	return time.UnixMilli(i.SortTimeStamp)
}

func (i *Item) DetailURL(baseURL string) string {
	return strings.TrimRight(baseURL, "/") + i.URLPath
}

// HasPromotionMark scans iva.DateInfoStep[].payload.vas[].title for PromotionTitle.
// A missing or malformed block is simply not promoted.
func (i *Item) HasPromotionMark() bool {
	if len(i.Iva) == 0 || !gjson.ValidBytes(i.Iva) {
		return false
	}
	marked := false
	gjson.GetBytes(i.Iva, "DateInfoStep.#.payload.vas.#.title").ForEach(func(_, step gjson.Result) bool {
		step.ForEach(func(_, title gjson.Result) bool {
			if title.Type == gjson.String && title.Str == PromotionTitle {
				marked = true
			}
			return !marked
		})
		return !marked
	})
	return marked
}

// ItemID accepts numeric and string identities; JSON null leaves it empty.
type ItemID string

func (id *ItemID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	switch {
	case bytes.Equal(data, []byte("null")):
		*id = ""
	case len(data) > 0 && data[0] == '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*id = ItemID(s)
	default:
		var n json.Number
		if err := json.Unmarshal(data, &n); err != nil {
			return fmt.Errorf("item id: %w", err)
		}
		*id = ItemID(n.String())
	}
	return nil
}

func (id ItemID) String() string { return string(id) }

func (id ItemID) IsZero() bool { return id == "" || id == "0" }

// Int64 returns the numeric form, or zero for non-numeric ids.
func (id ItemID) Int64() int64 {
	n, _ := strconv.ParseInt(string(id), 10, 64)
	return n
}
