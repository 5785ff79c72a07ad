package service

import (
	"errors"
	"testing"
	"time"

	"tender-kb-go/internal/model"
	"tender-kb-go/internal/repository"

	"gorm.io/gorm"
)

// fakeTenderRepo — репозиторий тендеров в памяти для тестов.
type fakeTenderRepo struct {
	tenders     map[uint]*model.Tender
	stages      map[uint]*model.Stage
	transitions map[[2]uint]bool
	nextID      uint
}

func newFakeTenderRepo() *fakeTenderRepo {
	return &fakeTenderRepo{
		tenders:     map[uint]*model.Tender{},
		stages:      map[uint]*model.Stage{},
		transitions: map[[2]uint]bool{},
	}
}

func (f *fakeTenderRepo) Create(tender *model.Tender) error {
	f.nextID++
	tender.ID = f.nextID
	copied := *tender
	f.tenders[tender.ID] = &copied
	return nil
}

func (f *fakeTenderRepo) FindByID(tenderID uint) (*model.Tender, error) {
	tender, ok := f.tenders[tenderID]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	copied := *tender
	return &copied, nil
}

func (f *fakeTenderRepo) FindByNumber(number string) (*model.Tender, error) {
	for _, tender := range f.tenders {
		if tender.Number == number {
			copied := *tender
			return &copied, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (f *fakeTenderRepo) Update(tender *model.Tender) error {
	copied := *tender
	f.tenders[tender.ID] = &copied
	return nil
}

func (f *fakeTenderRepo) FindWithFilter(filter repository.TenderFilter) ([]model.Tender, int64, error) {
	var result []model.Tender
	for _, tender := range f.tenders {
		if !filter.IncludeArchived && tender.IsArchived {
			continue
		}
		result = append(result, *tender)
	}
	return result, int64(len(result)), nil
}

func (f *fakeTenderRepo) FindStageByID(stageID uint) (*model.Stage, error) {
	stage, ok := f.stages[stageID]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return stage, nil
}

func (f *fakeTenderRepo) FindStageByCode(code string) (*model.Stage, error) {
	for _, stage := range f.stages {
		if stage.Code == code {
			return stage, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (f *fakeTenderRepo) FindAllStages() ([]model.Stage, error) {
	var stages []model.Stage
	for _, stage := range f.stages {
		stages = append(stages, *stage)
	}
	return stages, nil
}

func (f *fakeTenderRepo) CreateStage(stage *model.Stage) error {
	f.nextID++
	stage.ID = f.nextID
	copied := *stage
	f.stages[stage.ID] = &copied
	return nil
}

func (f *fakeTenderRepo) FindTransition(fromStageID, toStageID uint) (*model.StageTransition, error) {
	if !f.transitions[[2]uint{fromStageID, toStageID}] {
		return nil, gorm.ErrRecordNotFound
	}
	return &model.StageTransition{FromStageID: fromStageID, ToStageID: toStageID}, nil
}

func (f *fakeTenderRepo) CreateTransition(transition *model.StageTransition) error {
	f.transitions[[2]uint{transition.FromStageID, transition.ToStageID}] = true
	return nil
}

func (f *fakeTenderRepo) CreateFile(file *model.TenderFile) error            { return nil }
func (f *fakeTenderRepo) FindFileByID(fileID uint) (*model.TenderFile, error) {
	return nil, gorm.ErrRecordNotFound
}
func (f *fakeTenderRepo) FindFilesByTender(tenderID uint) ([]model.TenderFile, error) {
	return nil, nil
}
func (f *fakeTenderRepo) UpdateFile(file *model.TenderFile) error { return nil }

// fakePositionRepo отдаёт фиксированное число нерассчитанных позиций.
type fakePositionRepo struct {
	uncalculated int64
}

func (f *fakePositionRepo) Create(position *model.Position) error                 { return nil }
func (f *fakePositionRepo) FindByID(positionID uint) (*model.Position, error)     { return nil, gorm.ErrRecordNotFound }
func (f *fakePositionRepo) FindByTender(tenderID uint) ([]model.Position, error)  { return nil, nil }
func (f *fakePositionRepo) Update(position *model.Position) error                 { return nil }
func (f *fakePositionRepo) Delete(positionID uint) error                          { return nil }
func (f *fakePositionRepo) CountUncalculated(tenderID uint) (int64, error) {
	return f.uncalculated, nil
}

// noopAudit — заглушка журнала действий.
type noopAudit struct{}

func (noopAudit) Log(action, entityType string, entityID *uint, tenderID, userID *uint, details map[string]interface{}) {
}
func (noopAudit) ListByTender(tenderID uint, offset, limit int) ([]model.AuditLog, int64, error) {
	return nil, 0, nil
}
func (noopAudit) ListByEntity(entityType string, entityID uint, offset, limit int) ([]model.AuditLog, int64, error) {
	return nil, 0, nil
}

func newStageTestService(t *testing.T, uncalculated int64) (TenderService, *fakeTenderRepo) {
	t.Helper()
	repo := newFakeTenderRepo()
	svc := NewTenderService(repo, &fakePositionRepo{uncalculated: uncalculated}, noopAudit{})
	if err := svc.SeedStages(); err != nil {
		t.Fatalf("не удалось наполнить справочник стадий: %v", err)
	}
	return svc, repo
}

func createTestTender(t *testing.T, svc TenderService, repo *fakeTenderRepo, stageCode string) *model.Tender {
	t.Helper()
	tender, err := svc.Create(TenderCreateInput{
		Number:     "0373-2026-001",
		Title:      "Поставка трансформаторов",
		DeadlineAt: time.Now().Add(72 * time.Hour),
	}, 1)
	if err != nil {
		t.Fatalf("не удалось создать тендер: %v", err)
	}
	if stageCode != model.StageDiscovered {
		stage, err := repo.FindStageByCode(stageCode)
		if err != nil {
			t.Fatalf("стадия %s не найдена: %v", stageCode, err)
		}
		tender.StageID = stage.ID
		if err := repo.Update(tender); err != nil {
			t.Fatalf("не удалось подготовить стадию тендера: %v", err)
		}
	}
	return tender
}

func adminActor() *model.User {
	return &model.User{ID: 1, Username: "admin", Role: model.RoleAdmin}
}

func TestChangeStageFollowsGraph(t *testing.T) {
	svc, repo := newStageTestService(t, 0)
	tender := createTestTender(t, svc, repo, model.StageDiscovered)

	updated, err := svc.ChangeStage(tender.ID, model.StageReviewing, adminActor())
	if err != nil {
		t.Fatalf("переход discovered -> reviewing должен быть разрешён: %v", err)
	}
	stage, err := repo.FindStageByID(updated.StageID)
	if err != nil || stage.Code != model.StageReviewing {
		t.Errorf("тендер должен оказаться на стадии reviewing, получено %v", stage)
	}
}

func TestChangeStageRejectsSkippedStage(t *testing.T) {
	svc, repo := newStageTestService(t, 0)
	tender := createTestTender(t, svc, repo, model.StageDiscovered)

	_, err := svc.ChangeStage(tender.ID, model.StageSubmitted, adminActor())
	if !errors.Is(err, ErrTransitionForbidden) {
		t.Fatalf("переход через несколько стадий должен быть запрещён, получено %v", err)
	}
}

func TestChangeStageAllowsCancelFromAnyActiveStage(t *testing.T) {
	svc, repo := newStageTestService(t, 0)
	tender := createTestTender(t, svc, repo, model.StageCalculating)

	if _, err := svc.ChangeStage(tender.ID, model.StageCancelled, adminActor()); err != nil {
		t.Fatalf("отмена с активной стадии должна быть разрешена: %v", err)
	}
}

func TestChangeStageBlocksTransitionsFromTerminalStage(t *testing.T) {
	svc, repo := newStageTestService(t, 0)
	tender := createTestTender(t, svc, repo, model.StageWon)

	_, err := svc.ChangeStage(tender.ID, model.StageCancelled, adminActor())
	if !errorsIsForbidden(err) {
		t.Fatalf("из терминальной стадии переходы невозможны, получено %v", err)
	}
}

func errorsIsForbidden(err error) bool {
	return errors.Is(err, ErrTransitionForbidden)
}

func TestChangeStageAllowsReturnForRework(t *testing.T) {
	svc, repo := newStageTestService(t, 0)
	tender := createTestTender(t, svc, repo, model.StagePreparingDocs)

	if _, err := svc.ChangeStage(tender.ID, model.StageCalculating, adminActor()); err != nil {
		t.Fatalf("возврат со стадии подготовки документов на расчёт должен быть разрешён: %v", err)
	}
}

func TestChangeStageRequiresCalculatedPositions(t *testing.T) {
	svc, repo := newStageTestService(t, 2)
	tender := createTestTender(t, svc, repo, model.StageCalculating)

	_, err := svc.ChangeStage(tender.ID, model.StagePreparingDocs, adminActor())
	if !errors.Is(err, ErrPositionsNotComplete) {
		t.Fatalf("переход к подготовке документов с нерассчитанными позициями должен быть запрещён, получено %v", err)
	}
}

func TestChangeStageEnforcesRequiredRole(t *testing.T) {
	svc, repo := newStageTestService(t, 0)
	tender := createTestTender(t, svc, repo, model.StagePreparingDocs)

	submitted, err := repo.FindStageByCode(model.StageSubmitted)
	if err != nil {
		t.Fatalf("стадия submitted не найдена: %v", err)
	}
	submitted.RequiredRole = model.RoleAdmin

	user := &model.User{ID: 2, Username: "manager", Role: model.RoleUser}
	if _, err := svc.ChangeStage(tender.ID, model.StageSubmitted, user); !errors.Is(err, ErrRoleRequired) {
		t.Fatalf("без нужной роли переход должен быть запрещён, получено %v", err)
	}
	if _, err := svc.ChangeStage(tender.ID, model.StageSubmitted, adminActor()); err != nil {
		t.Fatalf("администратор проходит ролевое ограничение: %v", err)
	}
}

func TestCreateTenderRejectsDuplicateNumber(t *testing.T) {
	svc, _ := newStageTestService(t, 0)
	input := TenderCreateInput{
		Number:     "0373-2026-002",
		Title:      "Поставка кабеля",
		DeadlineAt: time.Now().Add(24 * time.Hour),
	}
	if _, err := svc.Create(input, 1); err != nil {
		t.Fatalf("первое создание должно пройти: %v", err)
	}
	if _, err := svc.Create(input, 1); !errors.Is(err, ErrTenderNumberTaken) {
		t.Fatalf("повторный номер закупки должен быть отклонён, получено %v", err)
	}
}

func TestSeedStagesIsIdempotent(t *testing.T) {
	svc, repo := newStageTestService(t, 0)
	if err := svc.SeedStages(); err != nil {
		t.Fatalf("повторное наполнение справочника должно пройти без ошибок: %v", err)
	}
	stages, err := repo.FindAllStages()
	if err != nil {
		t.Fatalf("не удалось получить стадии: %v", err)
	}
	if len(stages) != 10 {
		t.Errorf("ожидалось 10 стадий, получено %d", len(stages))
	}
}
