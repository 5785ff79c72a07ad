// Package pipeline содержит обработчик задач поисковой индексации.
package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"

	"tender-kb-go/internal/config"
	"tender-kb-go/internal/model"
	"tender-kb-go/internal/repository"
	"tender-kb-go/pkg/es"
	"tender-kb-go/pkg/log"
	"tender-kb-go/pkg/tasks"

	"gorm.io/gorm"
)

// Processor превращает задачи из Kafka в документы поискового индекса.
type Processor struct {
	esCfg        config.ElasticsearchConfig
	tenderRepo   repository.TenderRepository
	positionRepo repository.PositionRepository
}

// NewProcessor создаёт новый экземпляр Processor.
func NewProcessor(esCfg config.ElasticsearchConfig, tenderRepo repository.TenderRepository, positionRepo repository.PositionRepository) *Processor {
	return &Processor{
		esCfg:        esCfg,
		tenderRepo:   tenderRepo,
		positionRepo: positionRepo,
	}
}

// Process выполняет одну задачу индексации.
func (p *Processor) Process(ctx context.Context, task tasks.IndexTask) error {
	log.Infof("[Processor] задача %s для %s", task.Action, task.Key())

	if task.Action == tasks.ActionDelete {
		if err := es.DeleteDocument(ctx, p.esCfg.IndexName, task.Key()); err != nil {
			return fmt.Errorf("не удалось удалить документ %s из индекса: %w", task.Key(), err)
		}
		log.Infof("[Processor] документ %s удалён из индекса", task.Key())
		return nil
	}

	var doc model.EsDocument
	var err error
	switch task.EntityType {
	case "tender":
		doc, err = p.tenderDocument(task.EntityID)
	case "position":
		doc, err = p.positionDocument(task.EntityID)
	default:
		return fmt.Errorf("неизвестный тип сущности в задаче индексации: %s", task.EntityType)
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		// Сущность успели удалить, убираем документ из индекса.
		return es.DeleteDocument(ctx, p.esCfg.IndexName, task.Key())
	}
	if err != nil {
		return err
	}

	if err := es.IndexDocument(ctx, p.esCfg.IndexName, doc); err != nil {
		return fmt.Errorf("не удалось проиндексировать документ %s: %w", doc.DocID, err)
	}
	log.Infof("[Processor] документ %s проиндексирован", doc.DocID)
	return nil
}

// tenderDocument собирает поисковый документ тендера.
func (p *Processor) tenderDocument(tenderID uint) (model.EsDocument, error) {
	tender, err := p.tenderRepo.FindByID(tenderID)
	if err != nil {
		return model.EsDocument{}, err
	}
	stage := ""
	if s, err := p.tenderRepo.FindStageByID(tender.StageID); err == nil {
		stage = s.Code
	}

	body := strings.TrimSpace(strings.Join([]string{
		tender.Description,
		flattenJSON(tender.Terms),
	}, "\n"))

	return model.EsDocument{
		DocID:      fmt.Sprintf("tender:%d", tender.ID),
		EntityType: "tender",
		EntityID:   tender.ID,
		TenderID:   tender.ID,
		Number:     tender.Number,
		Title:      tender.Title,
		Customer:   tender.Customer,
		Body:       body,
		Stage:      stage,
		IsArchived: tender.IsArchived,
	}, nil
}

// positionDocument собирает поисковый документ позиции.
func (p *Processor) positionDocument(positionID uint) (model.EsDocument, error) {
	position, err := p.positionRepo.FindByID(positionID)
	if err != nil {
		return model.EsDocument{}, err
	}
	tender, err := p.tenderRepo.FindByID(position.TenderID)
	if err != nil {
		return model.EsDocument{}, err
	}

	body := strings.TrimSpace(strings.Join([]string{
		position.Description,
		flattenJSON(position.TechnicalRequirements),
	}, "\n"))

	return model.EsDocument{
		DocID:      fmt.Sprintf("position:%d", position.ID),
		EntityType: "position",
		EntityID:   position.ID,
		TenderID:   position.TenderID,
		Number:     tender.Number,
		Title:      position.Name,
		Customer:   tender.Customer,
		Body:       body,
		IsArchived: tender.IsArchived,
	}, nil
}

// flattenJSON разворачивает JSON-объект в текст "ключ: значение"
// для полнотекстового индекса.
func flattenJSON(raw []byte) string {
	if len(raw) == 0 {
		return ""
	}
	var data map[string]interface{}
	if err := json.Unmarshal(raw, &data); err != nil {
		return ""
	}
	parts := make([]string, 0, len(data))
	for key, value := range data {
		parts = append(parts, fmt.Sprintf("%s: %v", key, value))
	}
	sort.Strings(parts)
	return strings.Join(parts, "\n")
}
