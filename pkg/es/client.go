// Package es 提供了与 Elasticsearch 交互的客户端功能。
package es

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"quiz-bot-go/internal/config"
	"quiz-bot-go/pkg/log"
	"strings"
	"time"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"
)

var ESClient *elasticsearch.Client

// EventDocument 是分析事件在 Elasticsearch 中的文档结构。
// MetadataText 是 metadata 的 JSON 文本，用于全文检索（例如按推荐档位名搜索）。
type EventDocument struct {
	EventID      string                 `json:"event_id"`
	SessionID    uint                   `json:"session_id"`
	UserID       uint                   `json:"user_id"`
	EventType    string                 `json:"event_type"`
	Metadata     map[string]interface{} `json:"metadata,omitempty"`
	MetadataText string                 `json:"metadata_text,omitempty"`
	CreatedAt    time.Time              `json:"created_at"`
}

// SearchQuery 是事件检索条件，零值字段不参与过滤。
type SearchQuery struct {
	Text      string
	EventType string
	SessionID uint
	From      *time.Time
	To        *time.Time
	Size      int
}

// InitES 初始化 Elasticsearch 客户端
func InitES(esCfg config.ElasticsearchConfig) error {
	cfg := elasticsearch.Config{
		Addresses: strings.Split(esCfg.Addresses, ","),
		Username:  esCfg.Username,
		Password:  esCfg.Password,
		Transport: &http.Transport{
			TLSClientConfig: &tls.Config{InsecureSkipVerify: true},
		},
	}
	client, err := elasticsearch.NewClient(cfg)
	if err != nil {
		return err
	}
	ESClient = client
	return createIndexIfNotExists(esCfg.IndexName)
}

// createIndexIfNotExists 检查索引是否存在，如果不存在则创建它
func createIndexIfNotExists(indexName string) error {
	res, err := ESClient.Indices.Exists([]string{indexName})
	if err != nil {
		log.Errorf("检查索引是否存在时出错: %v", err)
		return err
	}
	defer res.Body.Close()
	// 如果 res.StatusCode 是 200，说明索引已存在
	if !res.IsError() && res.StatusCode == http.StatusOK {
		log.Infof("索引 '%s' 已存在", indexName)
		return nil
	}
	if res.StatusCode != http.StatusNotFound {
		log.Errorf("检查索引 '%s' 是否存在时收到意外的状态码: %d", indexName, res.StatusCode)
		return fmt.Errorf("检查索引是否存在时收到意外的状态码: %d", res.StatusCode)
	}

	mapping := `{
		"mappings": {
			"properties": {
				"event_id": { "type": "keyword" },
				"session_id": { "type": "long" },
				"user_id": { "type": "long" },
				"event_type": { "type": "keyword" },
				"metadata": { "type": "object", "enabled": false },
				"metadata_text": { "type": "text" },
				"created_at": { "type": "date" }
			}
		}
	}`

	createRes, err := ESClient.Indices.Create(
		indexName,
		ESClient.Indices.Create.WithBody(strings.NewReader(mapping)),
	)
	if err != nil {
		log.Errorf("创建索引 '%s' 失败: %v", indexName, err)
		return err
	}
	defer createRes.Body.Close()
	if createRes.IsError() {
		log.Errorf("创建索引 '%s' 时 Elasticsearch 返回错误: %s", indexName, createRes.String())
		return errors.New("创建索引时 Elasticsearch 返回错误")
	}

	log.Infof("索引 '%s' 创建成功", indexName)
	return nil
}

// EventIndex 绑定一个索引名，供分析管道写入和后台检索使用。
type EventIndex struct {
	name string
}

// NewEventIndex 创建一个 EventIndex。调用前需要先 InitES。
func NewEventIndex(indexName string) *EventIndex {
	return &EventIndex{name: indexName}
}

// IndexEvent 以 EventID 作为文档 ID 写入，重复写入会覆盖同一文档。
func (i *EventIndex) IndexEvent(ctx context.Context, doc EventDocument) error {
	if doc.MetadataText == "" && len(doc.Metadata) > 0 {
		if b, err := json.Marshal(doc.Metadata); err == nil {
			doc.MetadataText = string(b)
		}
	}
	docBytes, err := json.Marshal(doc)
	if err != nil {
		return err
	}

	req := esapi.IndexRequest{
		Index:      i.name,
		DocumentID: doc.EventID,
		Body:       bytes.NewReader(docBytes),
	}
	res, err := req.Do(ctx, ESClient)
	if err != nil {
		return err
	}
	defer res.Body.Close()

	if res.IsError() {
		log.Errorf("索引事件到 Elasticsearch 出错: %s", res.String())
		return errors.New("failed to index event")
	}
	return nil
}

// Search 检索事件，返回命中的文档和总数。
func (i *EventIndex) Search(ctx context.Context, q SearchQuery) ([]EventDocument, int64, error) {
	body, err := json.Marshal(buildSearchBody(q))
	if err != nil {
		return nil, 0, err
	}

	res, err := ESClient.Search(
		ESClient.Search.WithContext(ctx),
		ESClient.Search.WithIndex(i.name),
		ESClient.Search.WithBody(bytes.NewReader(body)),
	)
	if err != nil {
		return nil, 0, err
	}
	defer res.Body.Close()
	if res.IsError() {
		log.Errorf("Elasticsearch 检索出错: %s", res.String())
		return nil, 0, errors.New("failed to search events")
	}

	var parsed struct {
		Hits struct {
			Total struct {
				Value int64 `json:"value"`
			} `json:"total"`
			Hits []struct {
				Source EventDocument `json:"_source"`
			} `json:"hits"`
		} `json:"hits"`
	}
	if err := json.NewDecoder(res.Body).Decode(&parsed); err != nil {
		return nil, 0, fmt.Errorf("failed to decode search response: %w", err)
	}

	docs := make([]EventDocument, 0, len(parsed.Hits.Hits))
	for _, h := range parsed.Hits.Hits {
		docs = append(docs, h.Source)
	}
	return docs, parsed.Hits.Total.Value, nil
}

// buildSearchBody 把 SearchQuery 翻译成 bool 查询。
func buildSearchBody(q SearchQuery) map[string]interface{} {
	var must []interface{}
	var filter []interface{}

	if q.Text != "" {
		must = append(must, map[string]interface{}{
			"multi_match": map[string]interface{}{
				"query":  q.Text,
				"fields": []string{"metadata_text", "event_type"},
			},
		})
	}
	if q.EventType != "" {
		filter = append(filter, map[string]interface{}{"term": map[string]interface{}{"event_type": q.EventType}})
	}
	if q.SessionID != 0 {
		filter = append(filter, map[string]interface{}{"term": map[string]interface{}{"session_id": q.SessionID}})
	}
	if q.From != nil || q.To != nil {
		rng := map[string]interface{}{}
		if q.From != nil {
			rng["gte"] = q.From.Format(time.RFC3339)
		}
		if q.To != nil {
			rng["lte"] = q.To.Format(time.RFC3339)
		}
		filter = append(filter, map[string]interface{}{"range": map[string]interface{}{"created_at": rng}})
	}
	if len(must) == 0 {
		must = append(must, map[string]interface{}{"match_all": map[string]interface{}{}})
	}

	size := q.Size
	if size <= 0 {
		size = 50
	}
	return map[string]interface{}{
		"size": size,
		"sort": []interface{}{map[string]interface{}{"created_at": map[string]interface{}{"order": "desc"}}},
		"query": map[string]interface{}{
			"bool": map[string]interface{}{
				"must":   must,
				"filter": filter,
			},
		},
	}
}
