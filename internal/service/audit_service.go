// Package service содержит бизнес-логику приложения.
package service

import (
	"encoding/json"

	"tender-kb-go/internal/model"
	"tender-kb-go/internal/repository"
	"tender-kb-go/pkg/log"
)

// AuditService определяет операции журнала действий.
type AuditService interface {
	Log(action, entityType string, entityID *uint, tenderID, userID *uint, details map[string]interface{})
	ListByTender(tenderID uint, offset, limit int) ([]model.AuditLog, int64, error)
	ListByEntity(entityType string, entityID uint, offset, limit int) ([]model.AuditLog, int64, error)
}

// auditService — реализация интерфейса AuditService.
type auditService struct {
	auditRepo repository.AuditRepository
}

// NewAuditService создаёт новый экземпляр AuditService.
func NewAuditService(auditRepo repository.AuditRepository) AuditService {
	return &auditService{auditRepo: auditRepo}
}

// Log записывает действие в журнал. Ошибка записи не прерывает основную
// операцию, а только логируется.
func (s *auditService) Log(action, entityType string, entityID *uint, tenderID, userID *uint, details map[string]interface{}) {
	payload, err := json.Marshal(details)
	if err != nil {
		log.Errorf("[AuditService] не удалось сериализовать детали действия %s: %v", action, err)
		payload = []byte("{}")
	}
	entry := &model.AuditLog{
		TenderID:   tenderID,
		EntityType: entityType,
		EntityID:   entityID,
		UserID:     userID,
		Action:     action,
		Details:    payload,
	}
	if err := s.auditRepo.Create(entry); err != nil {
		log.Errorf("[AuditService] не удалось записать действие %s: %v", action, err)
	}
}

// ListByTender возвращает страницу журнала по тендеру.
func (s *auditService) ListByTender(tenderID uint, offset, limit int) ([]model.AuditLog, int64, error) {
	return s.auditRepo.FindByTender(tenderID, offset, limit)
}

// ListByEntity возвращает страницу журнала по сущности.
func (s *auditService) ListByEntity(entityType string, entityID uint, offset, limit int) ([]model.AuditLog, int64, error) {
	return s.auditRepo.FindByEntity(entityType, entityID, offset, limit)
}
