package repository

import (
	"tender-kb-go/internal/model"

	"gorm.io/gorm"
)

// TenderFilter — параметры выборки тендеров.
type TenderFilter struct {
	StageCode       string
	ResponsibleID   *uint
	Query           string
	IncludeArchived bool
	Offset          int
	Limit           int
}

// TenderRepository определяет операции с тендерами, стадиями и файлами.
type TenderRepository interface {
	Create(tender *model.Tender) error
	FindByID(tenderID uint) (*model.Tender, error)
	FindByNumber(number string) (*model.Tender, error)
	Update(tender *model.Tender) error
	FindWithFilter(filter TenderFilter) ([]model.Tender, int64, error)

	FindStageByID(stageID uint) (*model.Stage, error)
	FindStageByCode(code string) (*model.Stage, error)
	FindAllStages() ([]model.Stage, error)
	CreateStage(stage *model.Stage) error
	FindTransition(fromStageID, toStageID uint) (*model.StageTransition, error)
	CreateTransition(transition *model.StageTransition) error

	CreateFile(file *model.TenderFile) error
	FindFileByID(fileID uint) (*model.TenderFile, error)
	FindFilesByTender(tenderID uint) ([]model.TenderFile, error)
	UpdateFile(file *model.TenderFile) error
}

// tenderRepository — GORM-реализация интерфейса TenderRepository.
type tenderRepository struct {
	db *gorm.DB
}

// NewTenderRepository создаёт новый экземпляр TenderRepository.
func NewTenderRepository(db *gorm.DB) TenderRepository {
	return &tenderRepository{db: db}
}

// Create создаёт новый тендер.
func (r *tenderRepository) Create(tender *model.Tender) error {
	return r.db.Create(tender).Error
}

// FindByID ищет тендер по идентификатору.
func (r *tenderRepository) FindByID(tenderID uint) (*model.Tender, error) {
	var tender model.Tender
	err := r.db.First(&tender, tenderID).Error
	if err != nil {
		return nil, err
	}
	return &tender, nil
}

// FindByNumber ищет тендер по номеру закупки.
func (r *tenderRepository) FindByNumber(number string) (*model.Tender, error) {
	var tender model.Tender
	err := r.db.Where("number = ?", number).First(&tender).Error
	if err != nil {
		return nil, err
	}
	return &tender, nil
}

// Update сохраняет изменения тендера.
func (r *tenderRepository) Update(tender *model.Tender) error {
	return r.db.Save(tender).Error
}

// FindWithFilter возвращает страницу тендеров по фильтру и их общее число.
func (r *tenderRepository) FindWithFilter(filter TenderFilter) ([]model.Tender, int64, error) {
	var tenders []model.Tender
	var total int64

	db := r.db.Model(&model.Tender{})
	if !filter.IncludeArchived {
		db = db.Where("is_archived = ?", false)
	}
	if filter.StageCode != "" {
		db = db.Where("stage_id IN (?)",
			r.db.Model(&model.Stage{}).Select("id").Where("code = ?", filter.StageCode))
	}
	if filter.ResponsibleID != nil {
		db = db.Where("responsible_id = ?", *filter.ResponsibleID)
	}
	if filter.Query != "" {
		pattern := "%" + filter.Query + "%"
		db = db.Where("number LIKE ? OR title LIKE ? OR customer LIKE ?", pattern, pattern, pattern)
	}

	if err := db.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	err := db.Order("deadline_at ASC").Offset(filter.Offset).Limit(filter.Limit).Find(&tenders).Error
	if err != nil {
		return nil, 0, err
	}
	return tenders, total, nil
}

// FindStageByID ищет стадию по идентификатору.
func (r *tenderRepository) FindStageByID(stageID uint) (*model.Stage, error) {
	var stage model.Stage
	err := r.db.First(&stage, stageID).Error
	if err != nil {
		return nil, err
	}
	return &stage, nil
}

// FindStageByCode ищет стадию по коду.
func (r *tenderRepository) FindStageByCode(code string) (*model.Stage, error) {
	var stage model.Stage
	err := r.db.Where("code = ?", code).First(&stage).Error
	if err != nil {
		return nil, err
	}
	return &stage, nil
}

// FindAllStages возвращает все стадии в порядке воронки.
func (r *tenderRepository) FindAllStages() ([]model.Stage, error) {
	var stages []model.Stage
	err := r.db.Order("sort_order ASC").Find(&stages).Error
	return stages, err
}

// CreateStage создаёт стадию справочника.
func (r *tenderRepository) CreateStage(stage *model.Stage) error {
	return r.db.Create(stage).Error
}

// FindTransition ищет ребро графа переходов между двумя стадиями.
func (r *tenderRepository) FindTransition(fromStageID, toStageID uint) (*model.StageTransition, error) {
	var transition model.StageTransition
	err := r.db.Where("from_stage_id = ? AND to_stage_id = ?", fromStageID, toStageID).
		First(&transition).Error
	if err != nil {
		return nil, err
	}
	return &transition, nil
}

// CreateTransition создаёт ребро графа переходов.
func (r *tenderRepository) CreateTransition(transition *model.StageTransition) error {
	return r.db.Create(transition).Error
}

// CreateFile создаёт запись о файле тендера.
func (r *tenderRepository) CreateFile(file *model.TenderFile) error {
	return r.db.Create(file).Error
}

// FindFileByID ищет файл тендера по идентификатору.
func (r *tenderRepository) FindFileByID(fileID uint) (*model.TenderFile, error) {
	var file model.TenderFile
	err := r.db.First(&file, fileID).Error
	if err != nil {
		return nil, err
	}
	return &file, nil
}

// FindFilesByTender возвращает неархивированные файлы тендера.
func (r *tenderRepository) FindFilesByTender(tenderID uint) ([]model.TenderFile, error) {
	var files []model.TenderFile
	err := r.db.Where("tender_id = ? AND is_archived = ?", tenderID, false).
		Order("uploaded_at DESC").Find(&files).Error
	return files, err
}

// UpdateFile сохраняет изменения записи о файле.
func (r *tenderRepository) UpdateFile(file *model.TenderFile) error {
	return r.db.Save(file).Error
}
