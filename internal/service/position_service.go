package service

import (
	"encoding/json"
	"errors"

	"tender-kb-go/internal/model"
	"tender-kb-go/internal/repository"
	"tender-kb-go/pkg/kafka"
	"tender-kb-go/pkg/log"
	"tender-kb-go/pkg/tasks"

	"gorm.io/gorm"
)

// Ошибки операций с позициями.
var (
	ErrPositionNotFound       = errors.New("Позиция не найдена")
	ErrUnknownPositionStatus  = errors.New("Недопустимый статус позиции")
	ErrPositionNodeNotSet     = errors.New("Для позиции не выбран узел классификатора")
	ErrPositionTenderMismatch = errors.New("Позиция не принадлежит этому тендеру")
)

var allowedPositionStatuses = map[string]bool{
	model.PositionNew:                  true,
	model.PositionNomenclatureAssigned: true,
	model.PositionCalculating:          true,
	model.PositionCalculated:           true,
	model.PositionVerified:             true,
	model.PositionTransferred:          true,
	model.PositionInProposal:           true,
}

// PositionCreateInput — данные создания позиции.
type PositionCreateInput struct {
	Name                  string
	Description           string
	Quantity              float64
	Unit                  string
	NomenclatureNodeID    *uint
	TechnicalRequirements map[string]interface{}
}

// PositionUpdateInput — изменяемые поля позиции. nil означает "не менять".
type PositionUpdateInput struct {
	Name                  *string
	Description           *string
	Quantity              *float64
	Unit                  *string
	NomenclatureNodeID    *uint
	TechnicalRequirements map[string]interface{}
	PricePerUnit          *float64
}

// PositionService определяет операции с позициями тендера.
type PositionService interface {
	Create(tenderID uint, input PositionCreateInput, actorID uint) (*model.Position, error)
	Get(positionID uint) (*model.Position, error)
	ListByTender(tenderID uint) ([]model.Position, error)
	Update(tenderID, positionID uint, input PositionUpdateInput, actorID uint) (*model.Position, error)
	SetStatus(tenderID, positionID uint, status string, actorID uint) (*model.Position, error)
	Delete(tenderID, positionID, actorID uint) error
}

// positionService — реализация интерфейса PositionService.
type positionService struct {
	positionRepo repository.PositionRepository
	registry     RegistryService
	auditService AuditService
}

// NewPositionService создаёт новый экземпляр PositionService.
func NewPositionService(positionRepo repository.PositionRepository, registry RegistryService, auditService AuditService) PositionService {
	return &positionService{
		positionRepo: positionRepo,
		registry:     registry,
		auditService: auditService,
	}
}

// Create создаёт позицию тендера. Характеристики проверяются по
// действующей схеме выбранного узла классификатора.
func (s *positionService) Create(tenderID uint, input PositionCreateInput, actorID uint) (*model.Position, error) {
	if err := s.validateRequirements(input.NomenclatureNodeID, input.TechnicalRequirements); err != nil {
		return nil, err
	}

	requirements, err := json.Marshal(input.TechnicalRequirements)
	if err != nil {
		return nil, err
	}
	unit := input.Unit
	if unit == "" {
		unit = "шт"
	}

	position := &model.Position{
		TenderID:              tenderID,
		Name:                  input.Name,
		Description:           input.Description,
		Quantity:              input.Quantity,
		Unit:                  unit,
		NomenclatureNodeID:    input.NomenclatureNodeID,
		TechnicalRequirements: requirements,
		Status:                model.PositionNew,
		Currency:              "RUB",
	}
	if err := s.positionRepo.Create(position); err != nil {
		return nil, err
	}

	s.auditService.Log(model.AuditPositionAdded, "position", &position.ID, &tenderID, &actorID,
		map[string]interface{}{"name": position.Name})
	s.enqueueIndex(position)
	return position, nil
}

// Get возвращает позицию по идентификатору.
func (s *positionService) Get(positionID uint) (*model.Position, error) {
	position, err := s.positionRepo.FindByID(positionID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrPositionNotFound
	}
	return position, err
}

// ListByTender возвращает позиции тендера.
func (s *positionService) ListByTender(tenderID uint) ([]model.Position, error) {
	return s.positionRepo.FindByTender(tenderID)
}

// Update изменяет позицию и пересчитывает итоговую стоимость.
func (s *positionService) Update(tenderID, positionID uint, input PositionUpdateInput, actorID uint) (*model.Position, error) {
	position, err := s.getOwned(tenderID, positionID)
	if err != nil {
		return nil, err
	}

	changed := map[string]interface{}{}
	if input.Name != nil {
		position.Name = *input.Name
		changed["name"] = *input.Name
	}
	if input.Description != nil {
		position.Description = *input.Description
		changed["description"] = *input.Description
	}
	if input.Quantity != nil {
		position.Quantity = *input.Quantity
		changed["quantity"] = *input.Quantity
	}
	if input.Unit != nil {
		position.Unit = *input.Unit
		changed["unit"] = *input.Unit
	}
	if input.NomenclatureNodeID != nil {
		position.NomenclatureNodeID = input.NomenclatureNodeID
		changed["nomenclature_node_id"] = *input.NomenclatureNodeID
	}
	if input.TechnicalRequirements != nil {
		if err := s.validateRequirements(position.NomenclatureNodeID, input.TechnicalRequirements); err != nil {
			return nil, err
		}
		requirements, err := json.Marshal(input.TechnicalRequirements)
		if err != nil {
			return nil, err
		}
		position.TechnicalRequirements = requirements
		changed["technical_requirements"] = input.TechnicalRequirements
	}
	if input.PricePerUnit != nil {
		position.PricePerUnit = *input.PricePerUnit
		changed["price_per_unit"] = *input.PricePerUnit
	}
	position.TotalPrice = position.Quantity * position.PricePerUnit

	if err := s.positionRepo.Update(position); err != nil {
		return nil, err
	}
	s.auditService.Log(model.AuditPositionUpdated, "position", &position.ID, &tenderID, &actorID, changed)
	s.enqueueIndex(position)
	return position, nil
}

// SetStatus переводит позицию в новый статус.
func (s *positionService) SetStatus(tenderID, positionID uint, status string, actorID uint) (*model.Position, error) {
	if !allowedPositionStatuses[status] {
		return nil, ErrUnknownPositionStatus
	}
	position, err := s.getOwned(tenderID, positionID)
	if err != nil {
		return nil, err
	}

	previous := position.Status
	position.Status = status
	if err := s.positionRepo.Update(position); err != nil {
		return nil, err
	}
	s.auditService.Log(model.AuditPositionUpdated, "position", &position.ID, &tenderID, &actorID,
		map[string]interface{}{"status": status, "previous_status": previous})
	return position, nil
}

// Delete удаляет позицию тендера.
func (s *positionService) Delete(tenderID, positionID, actorID uint) error {
	position, err := s.getOwned(tenderID, positionID)
	if err != nil {
		return err
	}
	if err := s.positionRepo.Delete(position.ID); err != nil {
		return err
	}
	s.auditService.Log(model.AuditPositionDeleted, "position", &position.ID, &tenderID, &actorID,
		map[string]interface{}{"name": position.Name})

	task := tasks.IndexTask{
		Action:     tasks.ActionDelete,
		EntityType: "position",
		EntityID:   position.ID,
		TenderID:   tenderID,
	}
	if err := kafka.ProduceIndexTask(task); err != nil {
		log.Errorf("[PositionService] не удалось поставить задачу удаления из индекса для позиции %d: %v", position.ID, err)
	}
	return nil
}

// getOwned загружает позицию и проверяет её принадлежность тендеру.
func (s *positionService) getOwned(tenderID, positionID uint) (*model.Position, error) {
	position, err := s.Get(positionID)
	if err != nil {
		return nil, err
	}
	if position.TenderID != tenderID {
		return nil, ErrPositionTenderMismatch
	}
	return position, nil
}

// validateRequirements проверяет характеристики по действующей схеме узла.
// Пустые характеристики и позиции без узла не проверяются.
func (s *positionService) validateRequirements(nodeID *uint, requirements map[string]interface{}) error {
	if len(requirements) == 0 {
		return nil
	}
	if nodeID == nil {
		return ErrPositionNodeNotSet
	}
	return s.registry.ValidatePayload(*nodeID, requirements)
}

// enqueueIndex ставит задачу переиндексации позиции.
func (s *positionService) enqueueIndex(position *model.Position) {
	task := tasks.IndexTask{
		Action:     tasks.ActionIndex,
		EntityType: "position",
		EntityID:   position.ID,
		TenderID:   position.TenderID,
	}
	if err := kafka.ProduceIndexTask(task); err != nil {
		log.Errorf("[PositionService] не удалось поставить задачу индексации позиции %d: %v", position.ID, err)
	}
}
