package service

import (
	"errors"
	"testing"

	"tender-kb-go/internal/model"
	"tender-kb-go/internal/repository"

	"gorm.io/gorm"
)

// fakeNodeRepo — репозиторий классификатора в памяти для тестов.
type fakeNodeRepo struct {
	nodes     map[uint]*model.NomenclatureNode
	snapshots []*model.NomenclatureNodeVersion
	nextID    uint
}

func newFakeNodeRepo() *fakeNodeRepo {
	return &fakeNodeRepo{nodes: map[uint]*model.NomenclatureNode{}}
}

func (f *fakeNodeRepo) Create(node *model.NomenclatureNode) error {
	f.nextID++
	node.ID = f.nextID
	copied := *node
	f.nodes[node.ID] = &copied
	return nil
}

func (f *fakeNodeRepo) FindByID(nodeID uint) (*model.NomenclatureNode, error) {
	node, ok := f.nodes[nodeID]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	copied := *node
	return &copied, nil
}

func (f *fakeNodeRepo) FindByCode(code string) (*model.NomenclatureNode, error) {
	for _, node := range f.nodes {
		if node.Code == code {
			copied := *node
			return &copied, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (f *fakeNodeRepo) FindWithFilter(filter repository.NodeFilter) ([]model.NomenclatureNode, error) {
	var result []model.NomenclatureNode
	for _, node := range f.nodes {
		if filter.ParentID != nil && (node.ParentID == nil || *node.ParentID != *filter.ParentID) {
			continue
		}
		if filter.Depth != nil && node.Depth != *filter.Depth {
			continue
		}
		if filter.Status != "" && node.Status != filter.Status {
			continue
		}
		result = append(result, *node)
	}
	return result, nil
}

func (f *fakeNodeRepo) FindAll() ([]model.NomenclatureNode, error) {
	var result []model.NomenclatureNode
	for id := uint(1); id <= f.nextID; id++ {
		if node, ok := f.nodes[id]; ok {
			result = append(result, *node)
		}
	}
	return result, nil
}

func (f *fakeNodeRepo) Update(node *model.NomenclatureNode) error {
	copied := *node
	f.nodes[node.ID] = &copied
	return nil
}

func (f *fakeNodeRepo) CreateVersionSnapshot(snapshot *model.NomenclatureNodeVersion) error {
	copied := *snapshot
	f.snapshots = append(f.snapshots, &copied)
	return nil
}

func (f *fakeNodeRepo) FindVersionSnapshot(nodeID uint, version int) (*model.NomenclatureNodeVersion, error) {
	for _, snapshot := range f.snapshots {
		if snapshot.NodeID == nodeID && snapshot.Version == version {
			return snapshot, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (f *fakeNodeRepo) UpdateVersionSnapshot(snapshot *model.NomenclatureNodeVersion) error {
	for i, existing := range f.snapshots {
		if existing.NodeID == snapshot.NodeID && existing.Version == snapshot.Version {
			copied := *snapshot
			f.snapshots[i] = &copied
			return nil
		}
	}
	return gorm.ErrRecordNotFound
}

func (f *fakeNodeRepo) FindVersions(nodeID uint) ([]model.NomenclatureNodeVersion, error) {
	var result []model.NomenclatureNodeVersion
	for i := len(f.snapshots) - 1; i >= 0; i-- {
		if f.snapshots[i].NodeID == nodeID {
			result = append(result, *f.snapshots[i])
		}
	}
	return result, nil
}

func newNodeTestService() (NodeService, *fakeNodeRepo) {
	repo := newFakeNodeRepo()
	return NewNodeService(repo, noopAudit{}), repo
}

func mustCreateNode(t *testing.T, svc NodeService, parentID *uint, code, nodeType string) *model.NomenclatureNode {
	t.Helper()
	node, err := svc.Create(NodeCreateInput{
		ParentID: parentID,
		Code:     code,
		Name:     "Узел " + code,
		NodeType: nodeType,
	}, 1)
	if err != nil {
		t.Fatalf("не удалось создать узел %s: %v", code, err)
	}
	return node
}

func TestCreateNodeValidatesTypeAgainstParentLevel(t *testing.T) {
	svc, _ := newNodeTestService()
	segment := mustCreateNode(t, svc, nil, "10", model.NodeTypeSegment)

	if _, err := svc.Create(NodeCreateInput{
		Code: "10.10", Name: "Семейство без родителя", NodeType: model.NodeTypeFamily,
	}, 1); !errors.Is(err, ErrParentNodeDepth) {
		t.Errorf("семейство в корне должно быть отклонено, получено %v", err)
	}

	if _, err := svc.Create(NodeCreateInput{
		ParentID: &segment.ID, Code: "10.99", Name: "Класс под сегментом", NodeType: model.NodeTypeClass,
	}, 1); !errors.Is(err, ErrParentNodeDepth) {
		t.Errorf("класс сразу под сегментом должен быть отклонён, получено %v", err)
	}

	if _, err := svc.Create(NodeCreateInput{
		Code: "10.98", Name: "Неизвестный тип", NodeType: "division",
	}, 1); !errors.Is(err, ErrUnknownNodeType) {
		t.Errorf("неизвестный тип узла должен быть отклонён, получено %v", err)
	}
}

func TestCreateNodeRejectsDuplicateCode(t *testing.T) {
	svc, _ := newNodeTestService()
	mustCreateNode(t, svc, nil, "20", model.NodeTypeSegment)

	if _, err := svc.Create(NodeCreateInput{
		Code: "20", Name: "Дубль", NodeType: model.NodeTypeSegment,
	}, 1); !errors.Is(err, ErrNodeCodeTaken) {
		t.Fatalf("повторный код должен быть отклонён, получено %v", err)
	}
}

func TestTreeBuildsHierarchyAndPromotesOrphans(t *testing.T) {
	svc, repo := newNodeTestService()
	segment := mustCreateNode(t, svc, nil, "30", model.NodeTypeSegment)
	family := mustCreateNode(t, svc, &segment.ID, "30.10", model.NodeTypeFamily)
	mustCreateNode(t, svc, &family.ID, "30.10.01", model.NodeTypeClass)

	// Узел с потерянным родителем поднимается в корень.
	missing := uint(999)
	orphan := model.NomenclatureNode{ParentID: &missing, Code: "40.01", Name: "Сирота", NodeType: model.NodeTypeFamily, Depth: 1}
	if err := repo.Create(&orphan); err != nil {
		t.Fatalf("не удалось подготовить узел: %v", err)
	}

	roots, err := svc.Tree()
	if err != nil {
		t.Fatalf("не удалось построить дерево: %v", err)
	}
	if len(roots) != 2 {
		t.Fatalf("ожидалось 2 корня (сегмент и сирота), получено %d", len(roots))
	}
	if roots[0].Node.Code != "30" || len(roots[0].Children) != 1 {
		t.Errorf("у сегмента должно быть одно семейство, получено %+v", roots[0])
	}
	if len(roots[0].Children[0].Children) != 1 {
		t.Errorf("у семейства должен быть один класс")
	}
}

func TestUpdateNodeBumpsVersionAndClosesSnapshot(t *testing.T) {
	svc, repo := newNodeTestService()
	node := mustCreateNode(t, svc, nil, "50", model.NodeTypeSegment)

	newName := "Электрооборудование"
	updated, err := svc.Update(node.ID, NodeUpdateInput{Name: &newName}, 1)
	if err != nil {
		t.Fatalf("не удалось обновить узел: %v", err)
	}
	if updated.Version != 2 {
		t.Errorf("версия должна подняться до 2, получено %d", updated.Version)
	}

	first, err := repo.FindVersionSnapshot(node.ID, 1)
	if err != nil {
		t.Fatalf("снимок первой версии не найден: %v", err)
	}
	if first.EffectiveTo == nil {
		t.Errorf("снимок первой версии должен быть закрыт")
	}
	second, err := repo.FindVersionSnapshot(node.ID, 2)
	if err != nil {
		t.Fatalf("снимок второй версии не найден: %v", err)
	}
	if second.Name != newName || second.EffectiveTo != nil {
		t.Errorf("снимок второй версии должен быть открытым и с новым именем, получено %+v", second)
	}
}

func TestUpdateNodeWithoutChangesKeepsVersion(t *testing.T) {
	svc, _ := newNodeTestService()
	node := mustCreateNode(t, svc, nil, "60", model.NodeTypeSegment)

	updated, err := svc.Update(node.ID, NodeUpdateInput{}, 1)
	if err != nil {
		t.Fatalf("пустое обновление должно пройти: %v", err)
	}
	if updated.Version != 1 {
		t.Errorf("без изменений версия не должна меняться, получено %d", updated.Version)
	}
}

func TestArchiveNodeRequiresArchivedChildren(t *testing.T) {
	svc, repo := newNodeTestService()
	segment := mustCreateNode(t, svc, nil, "70", model.NodeTypeSegment)
	family := mustCreateNode(t, svc, &segment.ID, "70.10", model.NodeTypeFamily)

	if err := svc.Archive(segment.ID, 1); !errors.Is(err, ErrNodeHasActiveChilds) {
		t.Fatalf("архивация с активными дочерними узлами должна быть запрещена, получено %v", err)
	}

	if err := svc.Archive(family.ID, 1); err != nil {
		t.Fatalf("не удалось архивировать семейство: %v", err)
	}
	if err := svc.Archive(segment.ID, 1); err != nil {
		t.Fatalf("после архивации детей сегмент должен архивироваться: %v", err)
	}

	archived, err := repo.FindByID(segment.ID)
	if err != nil {
		t.Fatalf("узел не найден: %v", err)
	}
	if !archived.IsArchived || archived.Status != model.NodeStatusArchived || archived.EffectiveTo == nil {
		t.Errorf("архивный узел должен быть закрыт, получено %+v", archived)
	}
}

func TestChainWalksToRoot(t *testing.T) {
	svc, _ := newNodeTestService()
	segment := mustCreateNode(t, svc, nil, "80", model.NodeTypeSegment)
	family := mustCreateNode(t, svc, &segment.ID, "80.10", model.NodeTypeFamily)
	class := mustCreateNode(t, svc, &family.ID, "80.10.01", model.NodeTypeClass)

	chain, err := svc.Chain(class.ID)
	if err != nil {
		t.Fatalf("не удалось построить цепочку: %v", err)
	}
	if len(chain) != 3 {
		t.Fatalf("ожидалась цепочка из 3 узлов, получено %d", len(chain))
	}
	if chain[0].Code != "80" || chain[1].Code != "80.10" || chain[2].Code != "80.10.01" {
		t.Errorf("цепочка должна идти от корня к листу, получено %v", []string{chain[0].Code, chain[1].Code, chain[2].Code})
	}
}
