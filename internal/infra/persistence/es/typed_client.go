package es

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/LouYuanbo1/listingwatch/internal/config"
	"github.com/LouYuanbo1/listingwatch/internal/domain/model"
	"github.com/LouYuanbo1/listingwatch/internal/logger"
	"github.com/elastic/go-elasticsearch/v9"
	"github.com/elastic/go-elasticsearch/v9/esutil"
)

type typedEsClient[D model.Document] struct {
	client *elasticsearch.TypedClient
	index  string
	log    logger.Logger
	// 特别说明：这个实例仅用于获取mapping，不用于存储数据
	schemaDoc D
}

func InitTypedEsClient[D model.Document](cfg config.Elasticsearch, log logger.Logger) (TypedEsClient[D], error) {
	if log == nil {
		log = logger.NewNop()
	}
	typedClient, err := elasticsearch.NewTypedClient(elasticsearch.Config{
		Username:  cfg.Username,
		Password:  cfg.Password,
		Addresses: []string{cfg.Address},
		Transport: &http.Transport{
			MaxIdleConnsPerHost:   10,
			ResponseHeaderTimeout: 30 * time.Second,
			IdleConnTimeout:       90 * time.Second,
			// 跳过TLS验证（仅在开发环境中使用）
			TLSClientConfig: &tls.Config{InsecureSkipVerify: true},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("初始化Elasticsearch客户端失败: %w", err)
	}
	index := cfg.Index
	if index == "" {
		index = model.DefaultItemIndex
	}
	return &typedEsClient[D]{client: typedClient, index: index, log: log}, nil
}

func (tec *typedEsClient[D]) GetClient() *elasticsearch.TypedClient {
	return tec.client
}

func (tec *typedEsClient[D]) Index() string {
	return tec.index
}

func (tec *typedEsClient[D]) CreateIndexWithMapping(ctx context.Context) error {
	exists, err := tec.client.Indices.Exists(tec.index).Do(ctx)
	if err != nil {
		return fmt.Errorf("检查索引是否存在失败: %w", err)
	}
	if exists {
		tec.log.Debug("索引已存在, 跳过创建", logger.String("index", tec.index))
		return nil
	}

	mapping := tec.schemaDoc.GetTypeMapping()
	if mapping == nil {
		_, err = tec.client.Indices.Create(tec.index).Do(ctx)
	} else {
		_, err = tec.client.Indices.Create(tec.index).Mappings(mapping).Do(ctx)
	}
	if err != nil {
		return fmt.Errorf("创建索引失败: %w", err)
	}
	tec.log.Info("索引已创建", logger.String("index", tec.index))
	return nil
}

func (tec *typedEsClient[D]) BulkIndexDocsWithID(ctx context.Context, docs []D) error {
	if len(docs) == 0 {
		return nil
	}
	bi, err := esutil.NewBulkIndexer(esutil.BulkIndexerConfig{
		Index:         tec.index,       // 目标索引名称
		Client:        tec.client,      // Elasticsearch 客户端
		NumWorkers:    2,               // 并发工作协程数
		FlushBytes:    5 * 1024 * 1024, // 5MB 时自动刷新
		FlushInterval: 30 * time.Second,
		OnError: func(ctx context.Context, err error) {
			tec.log.Error("批量索引出错", logger.Error(err))
		},
	})
	if err != nil {
		return fmt.Errorf("创建批量索引器失败: %w", err)
	}

	var failed atomic.Int64
	for _, doc := range docs {
		data, err := json.Marshal(doc)
		if err != nil {
			tec.log.Warn("序列化文档失败", logger.String("id", doc.GetID()), logger.Error(err))
			failed.Add(1)
			continue
		}
		err = bi.Add(ctx, esutil.BulkIndexerItem{
			Action:     "index",
			DocumentID: doc.GetID(),
			Body:       bytes.NewReader(data),
			OnFailure: func(ctx context.Context, item esutil.BulkIndexerItem, res esutil.BulkIndexerResponseItem, err error) {
				failed.Add(1)
				if err != nil {
					tec.log.Error("索引文档失败", logger.String("id", item.DocumentID), logger.Error(err))
				} else {
					tec.log.Error("索引文档失败", logger.String("id", item.DocumentID), logger.String("reason", res.Error.Reason))
				}
			},
		})
		if err != nil {
			failed.Add(1)
			tec.log.Error("添加文档到批量索引器失败", logger.Error(err))
		}
	}

	// 刷新并关闭批量索引器（确保所有文档都被处理）
	if err := bi.Close(ctx); err != nil {
		return fmt.Errorf("关闭批量索引器失败: %w", err)
	}

	stats := bi.Stats()
	tec.log.Info("批量索引完成", logger.Int64("indexed", int64(stats.NumIndexed)), logger.Int64("failed", failed.Load()))
	if n := failed.Load(); n > 0 {
		return fmt.Errorf("%d 个文档索引失败", n)
	}
	return nil
}
