// Package es предоставляет клиент Elasticsearch для поискового индекса.
package es

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"tender-kb-go/internal/config"
	"tender-kb-go/internal/model"
	"tender-kb-go/pkg/log"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"
)

var ESClient *elasticsearch.Client

// InitES инициализирует клиент Elasticsearch.
func InitES(esCfg config.ElasticsearchConfig) error {
	cfg := elasticsearch.Config{
		Addresses: []string{esCfg.Addresses},
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

// createIndexIfNotExists создаёт индекс, если его ещё нет.
func createIndexIfNotExists(indexName string) error {
	res, err := ESClient.Indices.Exists([]string{indexName})
	if err != nil {
		log.Errorf("Ошибка проверки существования индекса: %v", err)
		return err
	}
	if !res.IsError() && res.StatusCode == http.StatusOK {
		log.Infof("Индекс '%s' уже существует", indexName)
		return nil
	}
	if res.StatusCode != http.StatusNotFound {
		log.Errorf("Неожиданный статус при проверке индекса '%s': %d", indexName, res.StatusCode)
		return fmt.Errorf("неожиданный статус при проверке индекса: %d", res.StatusCode)
	}

	// Текстовые поля анализируются русским анализатором.
	mapping := `{
		"mappings": {
			"properties": {
				"doc_id": { "type": "keyword" },
				"entity_type": { "type": "keyword" },
				"entity_id": { "type": "long" },
				"tender_id": { "type": "long" },
				"number": { "type": "keyword" },
				"title": {
					"type": "text",
					"analyzer": "russian"
				},
				"customer": {
					"type": "text",
					"analyzer": "russian"
				},
				"body": {
					"type": "text",
					"analyzer": "russian"
				},
				"stage": { "type": "keyword" },
				"is_archived": { "type": "boolean" }
			}
		}
	}`

	res, err = ESClient.Indices.Create(
		indexName,
		ESClient.Indices.Create.WithBody(strings.NewReader(mapping)),
	)

	if err != nil {
		log.Errorf("Создание индекса '%s' не удалось: %v", indexName, err)
		return err
	}
	if res.IsError() {
		log.Errorf("Elasticsearch вернул ошибку при создании индекса '%s': %s", indexName, res.String())
		return errors.New("Elasticsearch вернул ошибку при создании индекса")
	}

	log.Infof("Индекс '%s' создан", indexName)
	return nil
}

// IndexDocument индексирует один документ.
func IndexDocument(ctx context.Context, indexName string, doc model.EsDocument) error {
	docBytes, err := json.Marshal(doc)
	if err != nil {
		return err
	}

	req := esapi.IndexRequest{
		Index:      indexName,
		DocumentID: doc.DocID,
		Body:       bytes.NewReader(docBytes),
		Refresh:    "true",
	}

	res, err := req.Do(ctx, ESClient)
	if err != nil {
		return err
	}
	defer res.Body.Close()

	if res.IsError() {
		log.Errorf("Ошибка индексации документа в Elasticsearch: %s", res.String())
		return errors.New("не удалось проиндексировать документ")
	}

	return nil
}

// DeleteDocument удаляет документ из индекса. Отсутствие документа не ошибка.
func DeleteDocument(ctx context.Context, indexName, docID string) error {
	req := esapi.DeleteRequest{
		Index:      indexName,
		DocumentID: docID,
		Refresh:    "true",
	}

	res, err := req.Do(ctx, ESClient)
	if err != nil {
		return err
	}
	defer res.Body.Close()

	if res.IsError() && res.StatusCode != http.StatusNotFound {
		log.Errorf("Ошибка удаления документа из Elasticsearch: %s", res.String())
		return errors.New("не удалось удалить документ")
	}

	return nil
}
