package service

import (
	"errors"
	"testing"

	"tender-kb-go/internal/model"

	"gorm.io/gorm"
)

// memPositionRepo — репозиторий позиций в памяти для тестов.
type memPositionRepo struct {
	positions map[uint]*model.Position
	nextID    uint
}

func newMemPositionRepo() *memPositionRepo {
	return &memPositionRepo{positions: map[uint]*model.Position{}}
}

func (m *memPositionRepo) Create(position *model.Position) error {
	m.nextID++
	position.ID = m.nextID
	copied := *position
	m.positions[position.ID] = &copied
	return nil
}

func (m *memPositionRepo) FindByID(positionID uint) (*model.Position, error) {
	position, ok := m.positions[positionID]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	copied := *position
	return &copied, nil
}

func (m *memPositionRepo) FindByTender(tenderID uint) ([]model.Position, error) {
	var result []model.Position
	for _, position := range m.positions {
		if position.TenderID == tenderID {
			result = append(result, *position)
		}
	}
	return result, nil
}

func (m *memPositionRepo) Update(position *model.Position) error {
	copied := *position
	m.positions[position.ID] = &copied
	return nil
}

func (m *memPositionRepo) Delete(positionID uint) error {
	delete(m.positions, positionID)
	return nil
}

func (m *memPositionRepo) CountUncalculated(tenderID uint) (int64, error) { return 0, nil }

// noopRegistry принимает любые характеристики.
type noopRegistry struct{}

func (noopRegistry) EffectiveSchema(nodeID uint) (map[string]interface{}, error) {
	return map[string]interface{}{}, nil
}
func (noopRegistry) ValidatePayload(nodeID uint, payload map[string]interface{}) error { return nil }
func (noopRegistry) Invalidate(nodeID uint)                                           {}

func newPositionTestService(t *testing.T) (PositionService, *model.Position) {
	t.Helper()
	svc := NewPositionService(newMemPositionRepo(), noopRegistry{}, noopAudit{})
	position, err := svc.Create(1, PositionCreateInput{Name: "Трансформатор ТМГ-250", Quantity: 2}, 1)
	if err != nil {
		t.Fatalf("не удалось создать позицию: %v", err)
	}
	return svc, position
}

func TestSetStatusAcceptsLifecycleStatuses(t *testing.T) {
	svc, position := newPositionTestService(t)

	statuses := []string{
		model.PositionNew,
		model.PositionNomenclatureAssigned,
		model.PositionCalculating,
		model.PositionCalculated,
		model.PositionVerified,
		model.PositionTransferred,
		model.PositionInProposal,
	}
	for _, status := range statuses {
		updated, err := svc.SetStatus(1, position.ID, status, 1)
		if err != nil {
			t.Errorf("статус %q должен быть допустим: %v", status, err)
			continue
		}
		if updated.Status != status {
			t.Errorf("позиция должна перейти в статус %q, получено %q", status, updated.Status)
		}
	}
}

func TestSetStatusRejectsUnknownStatus(t *testing.T) {
	svc, position := newPositionTestService(t)

	for _, status := range []string{"in_review", "draft", ""} {
		if _, err := svc.SetStatus(1, position.ID, status, 1); !errors.Is(err, ErrUnknownPositionStatus) {
			t.Errorf("статус %q должен быть отклонён, получено %v", status, err)
		}
	}
}

func TestSetStatusChecksTenderOwnership(t *testing.T) {
	svc, position := newPositionTestService(t)

	if _, err := svc.SetStatus(2, position.ID, model.PositionCalculated, 1); !errors.Is(err, ErrPositionTenderMismatch) {
		t.Fatalf("позиция чужого тендера должна быть отклонена, получено %v", err)
	}
}

func TestUpdateRecomputesTotalPrice(t *testing.T) {
	svc, position := newPositionTestService(t)

	price := 125000.0
	quantity := 3.0
	updated, err := svc.Update(1, position.ID, PositionUpdateInput{Quantity: &quantity, PricePerUnit: &price}, 1)
	if err != nil {
		t.Fatalf("не удалось обновить позицию: %v", err)
	}
	if updated.TotalPrice != 375000.0 {
		t.Errorf("итоговая стоимость должна пересчитаться, получено %v", updated.TotalPrice)
	}
}
