package model

import (
	"time"

	"github.com/elastic/go-elasticsearch/v9/typedapi/types"
)

// Document is what the typed Elasticsearch client can store.
type Document interface {
	*ItemDoc
	GetID() string
	GetIndex() string
	GetTypeMapping() *types.TypeMapping
}

// DefaultItemIndex is used when no index name is configured.
const DefaultItemIndex = "listingwatch-items"

// ItemDoc is the exported form of an Item.
type ItemDoc struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Price       int       `json:"price"`
	Address     string    `json:"address,omitempty"`
	URL         string    `json:"url"`
	SellerID    string    `json:"seller_id,omitempty"`
	IsReserved  bool      `json:"is_reserved"`
	IsPromotion bool      `json:"is_promotion"`
	PublishedAt time.Time `json:"published_at,omitzero"`
	TotalViews  *int      `json:"total_views,omitempty"`
	TodayViews  *int      `json:"today_views,omitempty"`
	CollectedAt time.Time `json:"collected_at"`

	index string
}

func NewItemDoc(item *Item, baseURL, index string, collectedAt time.Time) *ItemDoc {
	return &ItemDoc{
		ID:          item.ID.String(),
		Title:       item.Title,
		Description: item.Description,
		Price:       item.Price(),
		Address:     item.Address(),
		URL:         item.DetailURL(baseURL),
		SellerID:    item.SellerID,
		IsReserved:  item.IsReserved,
		IsPromotion: item.IsPromotion,
		PublishedAt: item.PublishedAt(),
		TotalViews:  item.TotalViews,
		TodayViews:  item.TodayViews,
		CollectedAt: collectedAt,
		index:       index,
	}
}

func (d *ItemDoc) GetID() string {
	return d.ID
}

func (d *ItemDoc) GetIndex() string {
	if d == nil || d.index == "" {
		return DefaultItemIndex
	}
	return d.index
}

func (d *ItemDoc) GetTypeMapping() *types.TypeMapping {
	return &types.TypeMapping{
		Properties: map[string]types.Property{
			"id":           types.NewKeywordProperty(),
			"title":        types.NewTextProperty(),
			"description":  types.NewTextProperty(),
			"price":        types.NewIntegerNumberProperty(),
			"address":      types.NewTextProperty(),
			"url":          types.NewKeywordProperty(),
			"seller_id":    types.NewKeywordProperty(),
			"is_reserved":  types.NewBooleanProperty(),
			"is_promotion": types.NewBooleanProperty(),
			"published_at": types.NewDateProperty(),
			"total_views":  types.NewIntegerNumberProperty(),
			"today_views":  types.NewIntegerNumberProperty(),
			"collected_at": types.NewDateProperty(),
		},
	}
}
