package repository

import (
	"tender-kb-go/internal/model"

	"gorm.io/gorm"
)

// AuditRepository определяет операции с журналом действий.
type AuditRepository interface {
	Create(entry *model.AuditLog) error
	FindByTender(tenderID uint, offset, limit int) ([]model.AuditLog, int64, error)
	FindByEntity(entityType string, entityID uint, offset, limit int) ([]model.AuditLog, int64, error)
}

// auditRepository — GORM-реализация интерфейса AuditRepository.
type auditRepository struct {
	db *gorm.DB
}

// NewAuditRepository создаёт новый экземпляр AuditRepository.
func NewAuditRepository(db *gorm.DB) AuditRepository {
	return &auditRepository{db: db}
}

// Create добавляет запись журнала.
func (r *auditRepository) Create(entry *model.AuditLog) error {
	return r.db.Create(entry).Error
}

// FindByTender возвращает страницу журнала по тендеру, новые первыми.
func (r *auditRepository) FindByTender(tenderID uint, offset, limit int) ([]model.AuditLog, int64, error) {
	var entries []model.AuditLog
	var total int64

	db := r.db.Model(&model.AuditLog{}).Where("tender_id = ?", tenderID)
	if err := db.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	err := db.Order("created_at DESC").Offset(offset).Limit(limit).Find(&entries).Error
	if err != nil {
		return nil, 0, err
	}
	return entries, total, nil
}

// FindByEntity возвращает страницу журнала по произвольной сущности.
func (r *auditRepository) FindByEntity(entityType string, entityID uint, offset, limit int) ([]model.AuditLog, int64, error) {
	var entries []model.AuditLog
	var total int64

	db := r.db.Model(&model.AuditLog{}).
		Where("entity_type = ? AND entity_id = ?", entityType, entityID)
	if err := db.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	err := db.Order("created_at DESC").Offset(offset).Limit(limit).Find(&entries).Error
	if err != nil {
		return nil, 0, err
	}
	return entries, total, nil
}
