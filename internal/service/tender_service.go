package service

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"tender-kb-go/internal/model"
	"tender-kb-go/internal/repository"
	"tender-kb-go/pkg/kafka"
	"tender-kb-go/pkg/log"
	"tender-kb-go/pkg/tasks"

	"gorm.io/gorm"
)

// Ошибки операций с тендерами.
var (
	ErrTenderNotFound       = errors.New("Тендер не найден")
	ErrTenderNumberTaken    = errors.New("Тендер с таким номером уже существует")
	ErrStageNotFound        = errors.New("Стадия не найдена")
	ErrTransitionForbidden  = errors.New("Переход между этими стадиями запрещён")
	ErrPositionsNotComplete = errors.New("Не все позиции тендера рассчитаны")
	ErrRoleRequired         = errors.New("Недостаточно прав для перевода на эту стадию")
)

// Терминальные стадии: из них переходов нет, отмена из них невозможна.
var terminalStages = map[string]bool{
	model.StageWon:       true,
	model.StageLost:      true,
	model.StageCancelled: true,
}

// TenderCreateInput — данные создания тендера.
type TenderCreateInput struct {
	Number          string
	Title           string
	Description     string
	Customer        string
	Source          string
	SourceURL       string
	DeadlineAt      time.Time
	InitialMaxPrice float64
	Currency        string
	Terms           map[string]interface{}
}

// TenderUpdateInput — изменяемые поля тендера. nil означает "не менять".
type TenderUpdateInput struct {
	Title           *string
	Description     *string
	Customer        *string
	SourceURL       *string
	DeadlineAt      *time.Time
	InitialMaxPrice *float64
	Terms           map[string]interface{}
}

// TenderService определяет операции с тендерами и их стадиями.
type TenderService interface {
	Create(input TenderCreateInput, actorID uint) (*model.Tender, error)
	Get(tenderID uint) (*model.Tender, error)
	List(filter repository.TenderFilter) ([]model.Tender, int64, error)
	Update(tenderID uint, input TenderUpdateInput, actorID uint) (*model.Tender, error)
	ChangeStage(tenderID uint, targetStageCode string, actor *model.User) (*model.Tender, error)
	AssignResponsible(tenderID, userID, actorID uint) error
	AssignEngineer(tenderID, userID, actorID uint) error
	Archive(tenderID, actorID uint) error
	ListStages() ([]model.Stage, error)
	SeedStages() error
}

// tenderService — реализация интерфейса TenderService.
type tenderService struct {
	tenderRepo   repository.TenderRepository
	positionRepo repository.PositionRepository
	auditService AuditService
}

// NewTenderService создаёт новый экземпляр TenderService.
func NewTenderService(tenderRepo repository.TenderRepository, positionRepo repository.PositionRepository, auditService AuditService) TenderService {
	return &tenderService{
		tenderRepo:   tenderRepo,
		positionRepo: positionRepo,
		auditService: auditService,
	}
}

// Create создаёт тендер на стадии "Обнаружен".
func (s *tenderService) Create(input TenderCreateInput, actorID uint) (*model.Tender, error) {
	// 1. Номер закупки уникален
	_, err := s.tenderRepo.FindByNumber(input.Number)
	if err == nil {
		return nil, ErrTenderNumberTaken
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	// 2. Новый тендер всегда начинает со стадии discovered
	stage, err := s.tenderRepo.FindStageByCode(model.StageDiscovered)
	if err != nil {
		return nil, ErrStageNotFound
	}

	terms, err := json.Marshal(input.Terms)
	if err != nil {
		return nil, err
	}
	source := input.Source
	if source == "" {
		source = model.SourceManual
	}
	currency := input.Currency
	if currency == "" {
		currency = "RUB"
	}

	tender := &model.Tender{
		Number:          input.Number,
		Title:           input.Title,
		Description:     input.Description,
		Customer:        input.Customer,
		Source:          source,
		SourceURL:       input.SourceURL,
		DeadlineAt:      input.DeadlineAt,
		InitialMaxPrice: input.InitialMaxPrice,
		Currency:        currency,
		Terms:           terms,
		StageID:         stage.ID,
	}
	if err := s.tenderRepo.Create(tender); err != nil {
		return nil, err
	}

	s.auditService.Log(model.AuditCreated, "tender", &tender.ID, &tender.ID, &actorID,
		map[string]interface{}{"number": tender.Number, "title": tender.Title})
	s.enqueueIndex(tender.ID)
	return tender, nil
}

// Get возвращает тендер по идентификатору.
func (s *tenderService) Get(tenderID uint) (*model.Tender, error) {
	tender, err := s.tenderRepo.FindByID(tenderID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrTenderNotFound
	}
	return tender, err
}

// List возвращает страницу тендеров по фильтру.
func (s *tenderService) List(filter repository.TenderFilter) ([]model.Tender, int64, error) {
	return s.tenderRepo.FindWithFilter(filter)
}

// Update изменяет поля тендера и пишет действие в журнал.
func (s *tenderService) Update(tenderID uint, input TenderUpdateInput, actorID uint) (*model.Tender, error) {
	tender, err := s.Get(tenderID)
	if err != nil {
		return nil, err
	}

	changed := map[string]interface{}{}
	if input.Title != nil {
		tender.Title = *input.Title
		changed["title"] = *input.Title
	}
	if input.Description != nil {
		tender.Description = *input.Description
		changed["description"] = *input.Description
	}
	if input.Customer != nil {
		tender.Customer = *input.Customer
		changed["customer"] = *input.Customer
	}
	if input.SourceURL != nil {
		tender.SourceURL = *input.SourceURL
		changed["source_url"] = *input.SourceURL
	}
	if input.DeadlineAt != nil {
		tender.DeadlineAt = *input.DeadlineAt
		changed["deadline_at"] = input.DeadlineAt.Format(time.RFC3339)
	}
	if input.InitialMaxPrice != nil {
		tender.InitialMaxPrice = *input.InitialMaxPrice
		changed["initial_max_price"] = *input.InitialMaxPrice
	}
	if input.Terms != nil {
		terms, err := json.Marshal(input.Terms)
		if err != nil {
			return nil, err
		}
		tender.Terms = terms
		changed["terms"] = input.Terms
	}

	if err := s.tenderRepo.Update(tender); err != nil {
		return nil, err
	}
	s.auditService.Log(model.AuditUpdated, "tender", &tender.ID, &tender.ID, &actorID, changed)
	s.enqueueIndex(tender.ID)
	return tender, nil
}

// ChangeStage переводит тендер на другую стадию.
// Переход должен существовать в графе; отмена разрешена с любой
// нетерминальной стадии. Дополнительно проверяются условия целевой стадии.
func (s *tenderService) ChangeStage(tenderID uint, targetStageCode string, actor *model.User) (*model.Tender, error) {
	tender, err := s.Get(tenderID)
	if err != nil {
		return nil, err
	}

	currentStage, err := s.tenderRepo.FindStageByID(tender.StageID)
	if err != nil {
		return nil, ErrStageNotFound
	}
	targetStage, err := s.tenderRepo.FindStageByCode(targetStageCode)
	if err != nil {
		return nil, ErrStageNotFound
	}

	if err := s.checkTransition(currentStage, targetStage); err != nil {
		return nil, err
	}

	// Условия целевой стадии
	if targetStage.RequiredRole != "" && actor.Role != targetStage.RequiredRole && actor.Role != model.RoleAdmin {
		return nil, ErrRoleRequired
	}
	if targetStage.RequiresAllPositionsCalculated {
		uncalculated, err := s.positionRepo.CountUncalculated(tender.ID)
		if err != nil {
			return nil, err
		}
		if uncalculated > 0 {
			return nil, ErrPositionsNotComplete
		}
	}

	tender.StageID = targetStage.ID
	if err := s.tenderRepo.Update(tender); err != nil {
		return nil, err
	}

	s.auditService.Log(model.AuditStageChanged, "tender", &tender.ID, &tender.ID, &actor.ID,
		map[string]interface{}{"from": currentStage.Code, "to": targetStage.Code})
	s.enqueueIndex(tender.ID)
	return tender, nil
}

// checkTransition проверяет допустимость перехода между стадиями.
func (s *tenderService) checkTransition(current, target *model.Stage) error {
	if terminalStages[current.Code] {
		return ErrTransitionForbidden
	}
	// Отмена допустима с любой нетерминальной стадии.
	if target.Code == model.StageCancelled {
		return nil
	}
	_, err := s.tenderRepo.FindTransition(current.ID, target.ID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrTransitionForbidden
	}
	return err
}

// AssignResponsible назначает ответственного менеджера.
func (s *tenderService) AssignResponsible(tenderID, userID, actorID uint) error {
	tender, err := s.Get(tenderID)
	if err != nil {
		return err
	}
	tender.ResponsibleID = &userID
	if err := s.tenderRepo.Update(tender); err != nil {
		return err
	}
	s.auditService.Log(model.AuditResponsibleAssigned, "tender", &tender.ID, &tender.ID, &actorID,
		map[string]interface{}{"responsible_id": userID})
	return nil
}

// AssignEngineer назначает инженера.
func (s *tenderService) AssignEngineer(tenderID, userID, actorID uint) error {
	tender, err := s.Get(tenderID)
	if err != nil {
		return err
	}
	tender.EngineerID = &userID
	if err := s.tenderRepo.Update(tender); err != nil {
		return err
	}
	s.auditService.Log(model.AuditEngineerAssigned, "tender", &tender.ID, &tender.ID, &actorID,
		map[string]interface{}{"engineer_id": userID})
	return nil
}

// Archive переводит тендер в архив (мягкое удаление).
func (s *tenderService) Archive(tenderID, actorID uint) error {
	tender, err := s.Get(tenderID)
	if err != nil {
		return err
	}
	tender.IsArchived = true
	if err := s.tenderRepo.Update(tender); err != nil {
		return err
	}
	s.auditService.Log(model.AuditUpdated, "tender", &tender.ID, &tender.ID, &actorID,
		map[string]interface{}{"is_archived": true})
	s.enqueueIndex(tender.ID)
	return nil
}

// ListStages возвращает справочник стадий.
func (s *tenderService) ListStages() ([]model.Stage, error) {
	return s.tenderRepo.FindAllStages()
}

// enqueueIndex ставит задачу переиндексации тендера.
func (s *tenderService) enqueueIndex(tenderID uint) {
	task := tasks.IndexTask{
		Action:     tasks.ActionIndex,
		EntityType: "tender",
		EntityID:   tenderID,
		TenderID:   tenderID,
	}
	if err := kafka.ProduceIndexTask(task); err != nil {
		log.Errorf("[TenderService] не удалось поставить задачу индексации тендера %d: %v", tenderID, err)
	}
}

// SeedStages идемпотентно наполняет справочник стадий и граф переходов.
func (s *tenderService) SeedStages() error {
	stagesData := []model.Stage{
		{Name: "Обнаружен", Code: model.StageDiscovered, Order: 1},
		{Name: "На рассмотрении", Code: model.StageReviewing, Order: 2},
		{Name: "В работе", Code: model.StageInProgress, Order: 3},
		{Name: "Расчёт стоимости", Code: model.StageCalculating, Order: 4},
		{Name: "Подготовка документов", Code: model.StagePreparingDocs, Order: 5, RequiresAllPositionsCalculated: true},
		{Name: "Подача", Code: model.StageSubmitted, Order: 6},
		{Name: "Ожидание результатов", Code: model.StageAwaitingResults, Order: 7},
		{Name: "Выигран", Code: model.StageWon, Order: 8},
		{Name: "Проигран", Code: model.StageLost, Order: 9},
		{Name: "Отменён", Code: model.StageCancelled, Order: 10},
	}

	byCode := make(map[string]uint, len(stagesData))
	for i := range stagesData {
		existing, err := s.tenderRepo.FindStageByCode(stagesData[i].Code)
		if err == nil {
			byCode[existing.Code] = existing.ID
			continue
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}
		if err := s.tenderRepo.CreateStage(&stagesData[i]); err != nil {
			return fmt.Errorf("не удалось создать стадию %s: %w", stagesData[i].Code, err)
		}
		byCode[stagesData[i].Code] = stagesData[i].ID
	}

	transitions := [][2]string{
		{model.StageDiscovered, model.StageReviewing},
		{model.StageReviewing, model.StageInProgress},
		{model.StageInProgress, model.StageCalculating},
		{model.StageCalculating, model.StagePreparingDocs},
		{model.StagePreparingDocs, model.StageSubmitted},
		// Возврат на доработку расчёта
		{model.StagePreparingDocs, model.StageCalculating},
		{model.StageSubmitted, model.StageAwaitingResults},
		{model.StageAwaitingResults, model.StageWon},
		{model.StageAwaitingResults, model.StageLost},
	}
	for _, edge := range transitions {
		fromID, toID := byCode[edge[0]], byCode[edge[1]]
		if fromID == 0 || toID == 0 {
			continue
		}
		_, err := s.tenderRepo.FindTransition(fromID, toID)
		if err == nil {
			continue
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}
		if err := s.tenderRepo.CreateTransition(&model.StageTransition{FromStageID: fromID, ToStageID: toID}); err != nil {
			return err
		}
	}
	return nil
}
