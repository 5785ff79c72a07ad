package repository

import (
	"tender-kb-go/internal/model"

	"gorm.io/gorm"
)

// PositionRepository определяет операции с позициями тендеров.
type PositionRepository interface {
	Create(position *model.Position) error
	FindByID(positionID uint) (*model.Position, error)
	FindByTender(tenderID uint) ([]model.Position, error)
	Update(position *model.Position) error
	Delete(positionID uint) error
	CountUncalculated(tenderID uint) (int64, error)
}

// positionRepository — GORM-реализация интерфейса PositionRepository.
type positionRepository struct {
	db *gorm.DB
}

// NewPositionRepository создаёт новый экземпляр PositionRepository.
func NewPositionRepository(db *gorm.DB) PositionRepository {
	return &positionRepository{db: db}
}

// Create создаёт позицию.
func (r *positionRepository) Create(position *model.Position) error {
	return r.db.Create(position).Error
}

// FindByID ищет позицию по идентификатору.
func (r *positionRepository) FindByID(positionID uint) (*model.Position, error) {
	var position model.Position
	err := r.db.First(&position, positionID).Error
	if err != nil {
		return nil, err
	}
	return &position, nil
}

// FindByTender возвращает позиции тендера.
func (r *positionRepository) FindByTender(tenderID uint) ([]model.Position, error) {
	var positions []model.Position
	err := r.db.Where("tender_id = ?", tenderID).Order("id ASC").Find(&positions).Error
	return positions, err
}

// Update сохраняет изменения позиции.
func (r *positionRepository) Update(position *model.Position) error {
	return r.db.Save(position).Error
}

// Delete удаляет позицию.
func (r *positionRepository) Delete(positionID uint) error {
	return r.db.Delete(&model.Position{}, positionID).Error
}

// CountUncalculated считает позиции тендера без завершённого расчёта.
func (r *positionRepository) CountUncalculated(tenderID uint) (int64, error) {
	var count int64
	err := r.db.Model(&model.Position{}).
		Where("tender_id = ? AND status NOT IN ?", tenderID,
			[]string{model.PositionCalculated, model.PositionVerified, model.PositionTransferred, model.PositionInProposal}).
		Count(&count).Error
	return count, err
}
