package service

import (
	"context"
	"errors"
	"fmt"
	"mime/multipart"
	"path/filepath"
	"strings"
	"time"

	"tender-kb-go/internal/config"
	"tender-kb-go/internal/model"
	"tender-kb-go/internal/repository"
	"tender-kb-go/pkg/log"
	"tender-kb-go/pkg/storage"

	"github.com/google/uuid"
	"github.com/minio/minio-go/v7"
	"gorm.io/gorm"
)

// Ошибки операций с файлами тендеров.
var (
	ErrFileNotFound        = errors.New("Файл не найден")
	ErrUnknownFileCategory = errors.New("Недопустимая категория файла")
	ErrFileTypeUnsupported = errors.New("Файлы этого типа не поддерживаются")
)

// presignedURLTTL — срок жизни ссылки на скачивание.
const presignedURLTTL = time.Hour

var allowedFileCategories = map[string]bool{
	model.FileCategorySpecification:  true,
	model.FileCategoryCommercial:     true,
	model.FileCategoryCorrespondence: true,
	model.FileCategoryClarification:  true,
	model.FileCategoryOther:          true,
}

var allowedFileExtensions = map[string]bool{
	".pdf":  true,
	".doc":  true,
	".docx": true,
	".xls":  true,
	".xlsx": true,
	".zip":  true,
	".rar":  true,
	".txt":  true,
	".png":  true,
	".jpg":  true,
	".jpeg": true,
}

// FileService определяет операции с файлами тендеров.
type FileService interface {
	Upload(ctx context.Context, tenderID uint, fileName, category string, file multipart.File, size int64, actorID uint) (*model.TenderFile, error)
	ListByTender(tenderID uint) ([]model.TenderFile, error)
	DownloadURL(tenderID, fileID uint) (string, error)
	Delete(tenderID, fileID, actorID uint) error
}

// fileService — реализация интерфейса FileService.
type fileService struct {
	tenderRepo   repository.TenderRepository
	auditService AuditService
	minioCfg     config.MinIOConfig
}

// NewFileService создаёт новый экземпляр FileService.
func NewFileService(tenderRepo repository.TenderRepository, auditService AuditService, minioCfg config.MinIOConfig) FileService {
	return &fileService{
		tenderRepo:   tenderRepo,
		auditService: auditService,
		minioCfg:     minioCfg,
	}
}

// Upload сохраняет файл в MinIO и регистрирует его за тендером.
// Объект хранится под ключом {tenderID}/{uuid}{ext}, исходное имя
// остаётся только в базе.
func (s *fileService) Upload(ctx context.Context, tenderID uint, fileName, category string, file multipart.File, size int64, actorID uint) (*model.TenderFile, error) {
	if category == "" {
		category = model.FileCategoryOther
	}
	if !allowedFileCategories[category] {
		return nil, ErrUnknownFileCategory
	}
	ext := strings.ToLower(filepath.Ext(fileName))
	if !allowedFileExtensions[ext] {
		return nil, ErrFileTypeUnsupported
	}

	objectName := fmt.Sprintf("%d/%s%s", tenderID, uuid.NewString(), ext)
	_, err := storage.MinioClient.PutObject(ctx, s.minioCfg.BucketName, objectName, file, size, minio.PutObjectOptions{})
	if err != nil {
		log.Errorf("[FileService] не удалось сохранить файл %s в MinIO: %v", objectName, err)
		return nil, err
	}

	record := &model.TenderFile{
		TenderID:     tenderID,
		Filename:     fileName,
		FilePath:     objectName,
		Category:     category,
		UploadedByID: actorID,
		UploadedAt:   time.Now(),
	}
	if err := s.tenderRepo.CreateFile(record); err != nil {
		return nil, err
	}

	s.auditService.Log(model.AuditFileUploaded, "file", &record.ID, &tenderID, &actorID,
		map[string]interface{}{"filename": fileName, "category": category})
	return record, nil
}

// ListByTender возвращает неархивные файлы тендера.
func (s *fileService) ListByTender(tenderID uint) ([]model.TenderFile, error) {
	return s.tenderRepo.FindFilesByTender(tenderID)
}

// DownloadURL выдаёт временную ссылку на скачивание файла.
func (s *fileService) DownloadURL(tenderID, fileID uint) (string, error) {
	record, err := s.getOwned(tenderID, fileID)
	if err != nil {
		return "", err
	}
	return storage.GetPresignedURL(s.minioCfg.BucketName, record.FilePath, presignedURLTTL)
}

// Delete помечает файл архивным. Объект в MinIO не удаляется,
// история сохраняется для аудита.
func (s *fileService) Delete(tenderID, fileID, actorID uint) error {
	record, err := s.getOwned(tenderID, fileID)
	if err != nil {
		return err
	}
	now := time.Now()
	record.IsArchived = true
	record.ArchivedAt = &now
	if err := s.tenderRepo.UpdateFile(record); err != nil {
		return err
	}
	s.auditService.Log(model.AuditFileDeleted, "file", &record.ID, &tenderID, &actorID,
		map[string]interface{}{"filename": record.Filename})
	return nil
}

// getOwned загружает файл и проверяет его принадлежность тендеру.
func (s *fileService) getOwned(tenderID, fileID uint) (*model.TenderFile, error) {
	record, err := s.tenderRepo.FindFileByID(fileID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrFileNotFound
	}
	if err != nil {
		return nil, err
	}
	if record.TenderID != tenderID || record.IsArchived {
		return nil, ErrFileNotFound
	}
	return record, nil
}
