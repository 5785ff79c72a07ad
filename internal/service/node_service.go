package service

import (
	"encoding/json"
	"errors"
	"time"

	"tender-kb-go/internal/model"
	"tender-kb-go/internal/repository"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Ошибки операций с узлами классификатора.
var (
	ErrNodeNotFound        = errors.New("Узел классификатора не найден")
	ErrNodeCodeTaken       = errors.New("Узел с таким кодом уже существует")
	ErrNodeArchived        = errors.New("Узел классификатора архивирован")
	ErrUnknownNodeType     = errors.New("Недопустимый тип узла")
	ErrParentNodeDepth     = errors.New("Тип узла не соответствует уровню родителя")
	ErrNodeHasActiveChilds = errors.New("Нельзя архивировать узел с неархивными дочерними узлами")
)

// Порядок уровней дерева: сегмент, семейство, класс, категория.
var nodeTypeDepth = map[string]int{
	model.NodeTypeSegment:  0,
	model.NodeTypeFamily:   1,
	model.NodeTypeClass:    2,
	model.NodeTypeCategory: 3,
}

// NodeTree — узел дерева классификатора для выдачи наружу.
type NodeTree struct {
	Node     model.NomenclatureNode `json:"node"`
	Children []*NodeTree            `json:"children"`
}

// NodeCreateInput — данные создания узла.
type NodeCreateInput struct {
	ParentID *uint
	Code     string
	Name     string
	NodeType string
	Meta     map[string]interface{}
}

// NodeUpdateInput — изменяемые поля узла. nil означает "не менять".
type NodeUpdateInput struct {
	Name *string
	Meta map[string]interface{}
}

// NodeService определяет операции с деревом классификатора.
type NodeService interface {
	Get(nodeID uint) (*model.NomenclatureNode, error)
	List(filter repository.NodeFilter) ([]model.NomenclatureNode, error)
	Tree() ([]*NodeTree, error)
	Chain(nodeID uint) ([]model.NomenclatureNode, error)
	Create(input NodeCreateInput, actorID uint) (*model.NomenclatureNode, error)
	Update(nodeID uint, input NodeUpdateInput, actorID uint) (*model.NomenclatureNode, error)
	Archive(nodeID, actorID uint) error
	ListVersions(nodeID uint) ([]model.NomenclatureNodeVersion, error)
}

// nodeService — реализация интерфейса NodeService.
type nodeService struct {
	nodeRepo     repository.NodeRepository
	auditService AuditService
}

// NewNodeService создаёт новый экземпляр NodeService.
func NewNodeService(nodeRepo repository.NodeRepository, auditService AuditService) NodeService {
	return &nodeService{nodeRepo: nodeRepo, auditService: auditService}
}

// Get возвращает узел по идентификатору.
func (s *nodeService) Get(nodeID uint) (*model.NomenclatureNode, error) {
	node, err := s.nodeRepo.FindByID(nodeID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNodeNotFound
	}
	return node, err
}

// List возвращает узлы по фильтру.
func (s *nodeService) List(filter repository.NodeFilter) ([]model.NomenclatureNode, error) {
	return s.nodeRepo.FindWithFilter(filter)
}

// Tree строит дерево классификатора в памяти одним запросом.
func (s *nodeService) Tree() ([]*NodeTree, error) {
	nodes, err := s.nodeRepo.FindAll()
	if err != nil {
		return nil, err
	}

	byID := make(map[uint]*NodeTree, len(nodes))
	for i := range nodes {
		byID[nodes[i].ID] = &NodeTree{Node: nodes[i], Children: []*NodeTree{}}
	}

	var roots []*NodeTree
	for i := range nodes {
		entry := byID[nodes[i].ID]
		if nodes[i].ParentID == nil {
			roots = append(roots, entry)
			continue
		}
		parent, ok := byID[*nodes[i].ParentID]
		if !ok {
			// Родитель не найден, узел поднимается в корень.
			roots = append(roots, entry)
			continue
		}
		parent.Children = append(parent.Children, entry)
	}
	return roots, nil
}

// Chain возвращает цепочку узлов от корня до указанного узла включительно.
func (s *nodeService) Chain(nodeID uint) ([]model.NomenclatureNode, error) {
	var chain []model.NomenclatureNode
	current, err := s.Get(nodeID)
	if err != nil {
		return nil, err
	}
	for {
		chain = append([]model.NomenclatureNode{*current}, chain...)
		if current.ParentID == nil {
			break
		}
		current, err = s.Get(*current.ParentID)
		if err != nil {
			return nil, err
		}
	}
	return chain, nil
}

// Create создаёт узел и первый снимок его версии.
func (s *nodeService) Create(input NodeCreateInput, actorID uint) (*model.NomenclatureNode, error) {
	expectedDepth, ok := nodeTypeDepth[input.NodeType]
	if !ok {
		return nil, ErrUnknownNodeType
	}

	// Код узла уникален во всём дереве
	_, err := s.nodeRepo.FindByCode(input.Code)
	if err == nil {
		return nil, ErrNodeCodeTaken
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	depth := 0
	if input.ParentID != nil {
		parent, err := s.Get(*input.ParentID)
		if err != nil {
			return nil, err
		}
		if parent.IsArchived {
			return nil, ErrNodeArchived
		}
		depth = parent.Depth + 1
	}
	if depth != expectedDepth {
		return nil, ErrParentNodeDepth
	}

	meta, err := marshalMeta(input.Meta)
	if err != nil {
		return nil, err
	}
	node := &model.NomenclatureNode{
		ParentID:      input.ParentID,
		Code:          input.Code,
		Name:          input.Name,
		NodeType:      input.NodeType,
		Depth:         depth,
		Version:       1,
		EffectiveFrom: time.Now(),
		Status:        model.NodeStatusDraft,
		Meta:          meta,
	}
	if err := s.nodeRepo.Create(node); err != nil {
		return nil, err
	}
	if err := s.snapshot(node); err != nil {
		return nil, err
	}

	s.auditService.Log(model.AuditCreated, "nomenclature_node", &node.ID, nil, &actorID,
		map[string]interface{}{"code": node.Code, "name": node.Name})
	return node, nil
}

// Update изменяет узел: закрывает текущий снимок, поднимает версию
// и пишет новый снимок.
func (s *nodeService) Update(nodeID uint, input NodeUpdateInput, actorID uint) (*model.NomenclatureNode, error) {
	node, err := s.Get(nodeID)
	if err != nil {
		return nil, err
	}
	if node.IsArchived {
		return nil, ErrNodeArchived
	}

	changed := map[string]interface{}{}
	if input.Name != nil {
		node.Name = *input.Name
		changed["name"] = *input.Name
	}
	if input.Meta != nil {
		meta, err := marshalMeta(input.Meta)
		if err != nil {
			return nil, err
		}
		node.Meta = meta
		changed["metadata"] = input.Meta
	}
	if len(changed) == 0 {
		return node, nil
	}

	if err := s.closeCurrentSnapshot(node); err != nil {
		return nil, err
	}
	node.Version++
	node.EffectiveFrom = time.Now()
	if err := s.nodeRepo.Update(node); err != nil {
		return nil, err
	}
	if err := s.snapshot(node); err != nil {
		return nil, err
	}

	s.auditService.Log(model.AuditUpdated, "nomenclature_node", &node.ID, nil, &actorID, changed)
	return node, nil
}

// Archive архивирует узел: дочерние узлы должны быть архивированы раньше.
func (s *nodeService) Archive(nodeID, actorID uint) error {
	node, err := s.Get(nodeID)
	if err != nil {
		return err
	}
	if node.IsArchived {
		return nil
	}

	children, err := s.nodeRepo.FindWithFilter(repository.NodeFilter{ParentID: &node.ID})
	if err != nil {
		return err
	}
	for i := range children {
		if !children[i].IsArchived {
			return ErrNodeHasActiveChilds
		}
	}

	if err := s.closeCurrentSnapshot(node); err != nil {
		return err
	}
	now := time.Now()
	node.Version++
	node.IsArchived = true
	node.Status = model.NodeStatusArchived
	node.EffectiveFrom = now
	node.EffectiveTo = &now
	if err := s.nodeRepo.Update(node); err != nil {
		return err
	}
	if err := s.snapshot(node); err != nil {
		return err
	}

	s.auditService.Log(model.AuditNodeArchived, "nomenclature_node", &node.ID, nil, &actorID,
		map[string]interface{}{"code": node.Code})
	return nil
}

// ListVersions возвращает снимки версий узла, новые первыми.
func (s *nodeService) ListVersions(nodeID uint) ([]model.NomenclatureNodeVersion, error) {
	if _, err := s.Get(nodeID); err != nil {
		return nil, err
	}
	return s.nodeRepo.FindVersions(nodeID)
}

// closeCurrentSnapshot закрывает действующий снимок текущей версии.
func (s *nodeService) closeCurrentSnapshot(node *model.NomenclatureNode) error {
	snapshot, err := s.nodeRepo.FindVersionSnapshot(node.ID, node.Version)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	now := time.Now()
	snapshot.EffectiveTo = &now
	return s.nodeRepo.UpdateVersionSnapshot(snapshot)
}

// marshalMeta сериализует произвольные метаданные в JSON-колонку.
func marshalMeta(meta map[string]interface{}) (datatypes.JSON, error) {
	if meta == nil {
		return nil, nil
	}
	raw, err := json.Marshal(meta)
	if err != nil {
		return nil, err
	}
	return datatypes.JSON(raw), nil
}

// snapshot пишет снимок текущего состояния узла.
func (s *nodeService) snapshot(node *model.NomenclatureNode) error {
	return s.nodeRepo.CreateVersionSnapshot(&model.NomenclatureNodeVersion{
		NodeID:        node.ID,
		Version:       node.Version,
		ParentID:      node.ParentID,
		Code:          node.Code,
		Name:          node.Name,
		NodeType:      node.NodeType,
		Depth:         node.Depth,
		Status:        node.Status,
		IsArchived:    node.IsArchived,
		EffectiveFrom: node.EffectiveFrom,
		EffectiveTo:   node.EffectiveTo,
		Meta:          node.Meta,
	})
}
