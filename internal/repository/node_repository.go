package repository

import (
	"tender-kb-go/internal/model"

	"gorm.io/gorm"
)

// NodeFilter — параметры выборки узлов классификатора.
type NodeFilter struct {
	ParentID *uint
	Depth    *int
	Status   string
}

// NodeRepository определяет операции с узлами классификатора и их версиями.
type NodeRepository interface {
	Create(node *model.NomenclatureNode) error
	FindByID(nodeID uint) (*model.NomenclatureNode, error)
	FindByCode(code string) (*model.NomenclatureNode, error)
	FindWithFilter(filter NodeFilter) ([]model.NomenclatureNode, error)
	FindAll() ([]model.NomenclatureNode, error)
	Update(node *model.NomenclatureNode) error

	CreateVersionSnapshot(snapshot *model.NomenclatureNodeVersion) error
	FindVersionSnapshot(nodeID uint, version int) (*model.NomenclatureNodeVersion, error)
	UpdateVersionSnapshot(snapshot *model.NomenclatureNodeVersion) error
	FindVersions(nodeID uint) ([]model.NomenclatureNodeVersion, error)
}

// nodeRepository — GORM-реализация интерфейса NodeRepository.
type nodeRepository struct {
	db *gorm.DB
}

// NewNodeRepository создаёт новый экземпляр NodeRepository.
func NewNodeRepository(db *gorm.DB) NodeRepository {
	return &nodeRepository{db: db}
}

// Create создаёт узел классификатора.
func (r *nodeRepository) Create(node *model.NomenclatureNode) error {
	return r.db.Create(node).Error
}

// FindByID ищет узел по идентификатору.
func (r *nodeRepository) FindByID(nodeID uint) (*model.NomenclatureNode, error) {
	var node model.NomenclatureNode
	err := r.db.First(&node, nodeID).Error
	if err != nil {
		return nil, err
	}
	return &node, nil
}

// FindByCode ищет узел по коду.
func (r *nodeRepository) FindByCode(code string) (*model.NomenclatureNode, error) {
	var node model.NomenclatureNode
	err := r.db.Where("code = ?", code).First(&node).Error
	if err != nil {
		return nil, err
	}
	return &node, nil
}

// FindWithFilter возвращает узлы по фильтру, упорядоченные по коду.
func (r *nodeRepository) FindWithFilter(filter NodeFilter) ([]model.NomenclatureNode, error) {
	var nodes []model.NomenclatureNode
	db := r.db.Model(&model.NomenclatureNode{})
	if filter.ParentID != nil {
		db = db.Where("parent_id = ?", *filter.ParentID)
	}
	if filter.Depth != nil {
		db = db.Where("depth = ?", *filter.Depth)
	}
	if filter.Status != "" {
		db = db.Where("status = ?", filter.Status)
	}
	err := db.Order("code ASC").Find(&nodes).Error
	return nodes, err
}

// FindAll возвращает все узлы классификатора.
func (r *nodeRepository) FindAll() ([]model.NomenclatureNode, error) {
	var nodes []model.NomenclatureNode
	err := r.db.Order("code ASC").Find(&nodes).Error
	return nodes, err
}

// Update сохраняет изменения узла.
func (r *nodeRepository) Update(node *model.NomenclatureNode) error {
	return r.db.Save(node).Error
}

// CreateVersionSnapshot создаёт снимок версии узла.
func (r *nodeRepository) CreateVersionSnapshot(snapshot *model.NomenclatureNodeVersion) error {
	return r.db.Create(snapshot).Error
}

// FindVersionSnapshot ищет снимок указанной версии узла.
func (r *nodeRepository) FindVersionSnapshot(nodeID uint, version int) (*model.NomenclatureNodeVersion, error) {
	var snapshot model.NomenclatureNodeVersion
	err := r.db.Where("node_id = ? AND version = ?", nodeID, version).First(&snapshot).Error
	if err != nil {
		return nil, err
	}
	return &snapshot, nil
}

// UpdateVersionSnapshot сохраняет изменения снимка версии.
func (r *nodeRepository) UpdateVersionSnapshot(snapshot *model.NomenclatureNodeVersion) error {
	return r.db.Save(snapshot).Error
}

// FindVersions возвращает снимки версий узла, новые первыми.
func (r *nodeRepository) FindVersions(nodeID uint) ([]model.NomenclatureNodeVersion, error) {
	var snapshots []model.NomenclatureNodeVersion
	err := r.db.Where("node_id = ?", nodeID).Order("version DESC").Find(&snapshots).Error
	return snapshots, err
}
