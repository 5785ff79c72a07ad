package service

import (
	"context"
	"errors"
	"testing"

	"tender-kb-go/internal/config"
	"tender-kb-go/internal/model"
)

func TestAllowedFileCategoriesMatchModel(t *testing.T) {
	categories := []string{
		model.FileCategorySpecification,
		model.FileCategoryCommercial,
		model.FileCategoryCorrespondence,
		model.FileCategoryClarification,
		model.FileCategoryOther,
	}
	for _, category := range categories {
		if !allowedFileCategories[category] {
			t.Errorf("категория %q должна быть допустима", category)
		}
	}
	if len(allowedFileCategories) != len(categories) {
		t.Errorf("лишние категории в списке допустимых: %v", allowedFileCategories)
	}
}

func TestUploadRejectsUnknownCategory(t *testing.T) {
	svc := NewFileService(newFakeTenderRepo(), noopAudit{}, config.MinIOConfig{})

	_, err := svc.Upload(context.Background(), 1, "тз.pdf", "documentation", nil, 0, 1)
	if !errors.Is(err, ErrUnknownFileCategory) {
		t.Fatalf("неизвестная категория должна быть отклонена, получено %v", err)
	}
}

func TestUploadRejectsUnsupportedExtension(t *testing.T) {
	svc := NewFileService(newFakeTenderRepo(), noopAudit{}, config.MinIOConfig{})

	_, err := svc.Upload(context.Background(), 1, "protocol.exe", model.FileCategoryOther, nil, 0, 1)
	if !errors.Is(err, ErrFileTypeUnsupported) {
		t.Fatalf("недопустимое расширение должно быть отклонено, получено %v", err)
	}
}
