package es

import (
	"context"

	"github.com/LouYuanbo1/listingwatch/internal/domain/model"
	"github.com/elastic/go-elasticsearch/v9"
)

/*
// 所有的文档结构体要实现这些函数

	type Document interface {
		GetID() string
		GetIndex() string
		GetTypeMapping() *types.TypeMapping
	}
*/
type TypedEsClient[D model.Document] interface {
	GetClient() *elasticsearch.TypedClient
	Index() string
	CreateIndexWithMapping(ctx context.Context) error
	BulkIndexDocsWithID(ctx context.Context, docs []D) error
}
