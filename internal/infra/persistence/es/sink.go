package es

import (
	"context"
	"time"

	"github.com/LouYuanbo1/listingwatch/internal/domain/model"
)

// ItemSink exports records as ItemDoc documents, creating the index on first use.
type ItemSink struct {
	client  TypedEsClient[*model.ItemDoc]
	baseURL string
	now     func() time.Time
	ready   bool
}

func NewItemSink(client TypedEsClient[*model.ItemDoc], baseURL string) *ItemSink {
	return &ItemSink{client: client, baseURL: baseURL, now: time.Now}
}

func (s *ItemSink) Append(ctx context.Context, items []model.Item) error {
	if len(items) == 0 {
		return nil
	}
	if !s.ready {
		if err := s.client.CreateIndexWithMapping(ctx); err != nil {
			return err
		}
		s.ready = true
	}
	collected := s.now()
	docs := make([]*model.ItemDoc, len(items))
	for i := range items {
		docs[i] = model.NewItemDoc(&items[i], s.baseURL, s.client.Index(), collected)
	}
	return s.client.BulkIndexDocsWithID(ctx, docs)
}
