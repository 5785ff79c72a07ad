package model

import (
	"time"

	"gorm.io/datatypes"
)

// Коды стадий тендера (фиксированные значения).
const (
	StageDiscovered      = "discovered"       // Обнаружен
	StageReviewing       = "reviewing"        // На рассмотрении
	StageInProgress      = "in_progress"      // В работе
	StageCalculating     = "calculating"      // Расчёт стоимости
	StagePreparingDocs   = "preparing_docs"   // Подготовка документов
	StageSubmitted       = "submitted"        // Подача
	StageAwaitingResults = "awaiting_results" // Ожидание результатов
	StageWon             = "won"              // Выигран
	StageLost            = "lost"             // Проигран
	StageCancelled       = "cancelled"        // Отменён
)

// Статусы позиции тендера.
const (
	PositionNew                  = "new"
	PositionNomenclatureAssigned = "nomenclature_assigned"
	PositionCalculating          = "calculating"
	PositionCalculated           = "calculated"
	PositionVerified             = "verified"
	PositionTransferred          = "transferred"
	PositionInProposal           = "in_proposal"
)

// Категории файлов тендера.
const (
	FileCategorySpecification  = "specification"  // ТЗ
	FileCategoryCommercial     = "commercial"     // Коммерческие требования
	FileCategoryCorrespondence = "correspondence" // Переписка
	FileCategoryClarification  = "clarification"  // Разъяснения
	FileCategoryOther          = "other"
)

// Источники тендеров.
const (
	SourceEIS         = "eis"
	SourceSberbankAST = "sberbank_ast"
	SourceRoseltorg   = "roseltorg"
	SourceManual      = "manual"
)

// Stage — справочник стадий воронки тендера.
type Stage struct {
	ID          uint   `gorm:"primaryKey;autoIncrement" json:"id"`
	Name        string `gorm:"type:varchar(255);not null;uniqueIndex" json:"name"`
	Code        string `gorm:"type:varchar(32);not null;uniqueIndex" json:"code"`
	Description string `gorm:"type:varchar(255)" json:"description,omitempty"`
	// Стадия может требовать роль и выполненные расчёты по всем позициям.
	RequiredRole                   string `gorm:"type:varchar(20)" json:"required_role,omitempty"`
	RequiresAllPositionsCalculated bool   `gorm:"not null;default:false" json:"requires_all_positions_calculated"`
	Order                          int    `gorm:"column:sort_order;not null;default:0" json:"order"`
}

// TableName задаёт имя таблицы для этой модели.
func (Stage) TableName() string {
	return "stages"
}

// StageTransition — разрешённое ребро графа переходов между стадиями.
type StageTransition struct {
	ID          uint `gorm:"primaryKey;autoIncrement" json:"id"`
	FromStageID uint `gorm:"not null;index" json:"from_stage_id"`
	ToStageID   uint `gorm:"not null;index" json:"to_stage_id"`
}

// TableName задаёт имя таблицы для этой модели.
func (StageTransition) TableName() string {
	return "stage_transitions"
}

// Tender — ORM-модель таблицы tenders.
type Tender struct {
	ID          uint   `gorm:"primaryKey;autoIncrement" json:"id"`
	Number      string `gorm:"type:varchar(64);not null;uniqueIndex" json:"number"`
	Title       string `gorm:"type:varchar(255);not null" json:"title"`
	Description string `gorm:"type:text" json:"description,omitempty"`
	Customer    string `gorm:"type:varchar(255);not null;default:''" json:"customer"`
	Source      string `gorm:"type:varchar(20);not null;default:manual" json:"source"`
	SourceURL   string `gorm:"type:varchar(512)" json:"source_url,omitempty"`

	DeadlineAt  time.Time  `gorm:"not null" json:"deadline_at"`
	PublishedAt *time.Time `json:"published_at,omitempty"`

	InitialMaxPrice float64 `gorm:"type:decimal(15,2)" json:"initial_max_price"`
	Currency        string  `gorm:"type:varchar(8);not null;default:RUB" json:"currency"`
	// Коммерческие условия (аванс, условия поставки, гарантия).
	Terms datatypes.JSON `gorm:"type:json" json:"terms"`

	StageID       uint  `gorm:"not null;index" json:"stage_id"`
	ResponsibleID *uint `json:"responsible_id,omitempty"`
	EngineerID    *uint `json:"engineer_id,omitempty"`

	IsArchived bool      `gorm:"not null;default:false" json:"is_archived"`
	CreatedAt  time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt  time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// TableName задаёт имя таблицы для этой модели.
func (Tender) TableName() string {
	return "tenders"
}

// TenderFile — файл тендера в MinIO. Удаление мягкое, через is_archived.
type TenderFile struct {
	ID           uint       `gorm:"primaryKey;autoIncrement" json:"id"`
	TenderID     uint       `gorm:"not null;index" json:"tender_id"`
	Filename     string     `gorm:"type:varchar(255);not null" json:"filename"`
	FilePath     string     `gorm:"type:varchar(512);not null" json:"file_path"`
	Category     string     `gorm:"type:varchar(32);not null" json:"category"`
	UploadedByID uint       `gorm:"not null" json:"uploaded_by_id"`
	UploadedAt   time.Time  `gorm:"autoCreateTime" json:"uploaded_at"`
	IsArchived   bool       `gorm:"not null;default:false" json:"is_archived"`
	ArchivedAt   *time.Time `json:"archived_at,omitempty"`
}

// TableName задаёт имя таблицы для этой модели.
func (TenderFile) TableName() string {
	return "tender_files"
}

// Position — позиция тендера.
type Position struct {
	ID          uint    `gorm:"primaryKey;autoIncrement" json:"id"`
	TenderID    uint    `gorm:"not null;index" json:"tender_id"`
	Name        string  `gorm:"type:varchar(255);not null" json:"name"`
	Description string  `gorm:"type:text" json:"description,omitempty"`
	Quantity    float64 `gorm:"type:decimal(10,3);not null;default:1" json:"quantity"`
	Unit        string  `gorm:"type:varchar(16);not null;default:шт" json:"unit"`

	// Привязка к узлу классификатора и атрибуты по его действующей схеме.
	NomenclatureNodeID    *uint          `gorm:"index" json:"nomenclature_node_id,omitempty"`
	TechnicalRequirements datatypes.JSON `gorm:"type:json" json:"technical_requirements,omitempty"`

	Status string `gorm:"type:varchar(32);not null;default:new" json:"status"`

	PricePerUnit float64 `gorm:"type:decimal(15,2)" json:"price_per_unit"`
	TotalPrice   float64 `gorm:"type:decimal(15,2)" json:"total_price"`
	Currency     string  `gorm:"type:varchar(8);not null;default:RUB" json:"currency"`

	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// TableName задаёт имя таблицы для этой модели.
func (Position) TableName() string {
	return "positions"
}
