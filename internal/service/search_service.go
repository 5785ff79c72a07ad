package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"tender-kb-go/internal/model"
	"tender-kb-go/pkg/log"

	"github.com/elastic/go-elasticsearch/v8"
)

// SearchFilter — параметры полнотекстового поиска.
type SearchFilter struct {
	Query           string
	Stage           string
	EntityType      string
	IncludeArchived bool
	Size            int
}

// SearchService определяет полнотекстовый поиск по тендерам и позициям.
type SearchService interface {
	Search(ctx context.Context, filter SearchFilter) ([]model.SearchResponseDTO, error)
}

// searchService — реализация интерфейса SearchService.
type searchService struct {
	esClient  *elasticsearch.Client
	indexName string
}

// NewSearchService создаёт новый экземпляр SearchService.
func NewSearchService(esClient *elasticsearch.Client, indexName string) SearchService {
	return &searchService{esClient: esClient, indexName: indexName}
}

// Search выполняет полнотекстовый поиск по индексу тендеров.
func (s *searchService) Search(ctx context.Context, filter SearchFilter) ([]model.SearchResponseDTO, error) {
	query := strings.TrimSpace(filter.Query)
	log.Infof("[SearchService] поиск по запросу %q", query)
	if query == "" {
		return []model.SearchResponseDTO{}, nil
	}
	size := filter.Size
	if size <= 0 || size > 50 {
		size = 20
	}

	// 1. Текстовая часть: номер закупки точным совпадением получает
	// наибольший вес, дальше заголовок, заказчик и полный текст.
	must := []map[string]interface{}{
		{
			"multi_match": map[string]interface{}{
				"query":  query,
				"fields": []string{"number^5", "title^3", "customer^2", "body"},
				"type":   "best_fields",
			},
		},
	}

	// 2. Фильтры
	filters := []map[string]interface{}{}
	if !filter.IncludeArchived {
		filters = append(filters, map[string]interface{}{
			"term": map[string]interface{}{"is_archived": false},
		})
	}
	if filter.Stage != "" {
		filters = append(filters, map[string]interface{}{
			"term": map[string]interface{}{"stage": filter.Stage},
		})
	}
	if filter.EntityType != "" {
		filters = append(filters, map[string]interface{}{
			"term": map[string]interface{}{"entity_type": filter.EntityType},
		})
	}

	esQuery := map[string]interface{}{
		"query": map[string]interface{}{
			"bool": map[string]interface{}{
				"must":   must,
				"filter": filters,
			},
		},
		"highlight": map[string]interface{}{
			"fields": map[string]interface{}{
				"body": map[string]interface{}{
					"fragment_size":       160,
					"number_of_fragments": 1,
				},
			},
		},
		"size": size,
	}

	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(esQuery); err != nil {
		return nil, fmt.Errorf("не удалось сериализовать поисковый запрос: %w", err)
	}

	// 3. Запрос в Elasticsearch
	res, err := s.esClient.Search(
		s.esClient.Search.WithContext(ctx),
		s.esClient.Search.WithIndex(s.indexName),
		s.esClient.Search.WithBody(&buf),
		s.esClient.Search.WithTrackTotalHits(true),
	)
	if err != nil {
		log.Errorf("[SearchService] запрос в Elasticsearch завершился ошибкой: %v", err)
		return nil, fmt.Errorf("поиск временно недоступен: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		bodyBytes, _ := io.ReadAll(res.Body)
		log.Errorf("[SearchService] Elasticsearch вернул ошибку, status: %s, body: %s", res.Status(), string(bodyBytes))
		return nil, fmt.Errorf("поиск временно недоступен: %s", res.Status())
	}

	// 4. Разбор ответа
	var esResponse struct {
		Hits struct {
			Hits []struct {
				Source    model.EsDocument    `json:"_source"`
				Score     float64             `json:"_score"`
				Highlight map[string][]string `json:"highlight"`
			} `json:"hits"`
		} `json:"hits"`
	}
	if err := json.NewDecoder(res.Body).Decode(&esResponse); err != nil {
		return nil, fmt.Errorf("не удалось разобрать ответ Elasticsearch: %w", err)
	}

	results := make([]model.SearchResponseDTO, 0, len(esResponse.Hits.Hits))
	for _, hit := range esResponse.Hits.Hits {
		snippet := ""
		if fragments := hit.Highlight["body"]; len(fragments) > 0 {
			snippet = fragments[0]
		} else if len(hit.Source.Body) > 0 {
			snippet = truncateSnippet(hit.Source.Body, 160)
		}
		results = append(results, model.SearchResponseDTO{
			EntityType: hit.Source.EntityType,
			EntityID:   hit.Source.EntityID,
			TenderID:   hit.Source.TenderID,
			Title:      hit.Source.Title,
			Snippet:    snippet,
			Score:      hit.Score,
		})
	}
	log.Infof("[SearchService] поиск по запросу %q вернул %d результатов", query, len(results))
	return results, nil
}

// truncateSnippet укорачивает текст до limit рун, не разрывая руну.
func truncateSnippet(text string, limit int) string {
	runes := []rune(text)
	if len(runes) <= limit {
		return text
	}
	return string(runes[:limit]) + "…"
}
