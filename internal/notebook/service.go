// Package notebook implements the notebook tree commands.
package notebook

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/folio/internal/apperr"
	"github.com/starford/folio/internal/hierarchy"
	"github.com/starford/folio/internal/models"
)

// Store persists notebooks.
type Store interface {
	hierarchy.Source
	CreateNotebook(ctx context.Context, nb *models.Notebook) error
	ListNotebooks(ctx context.Context, workspaceID string) ([]models.Notebook, error)
	MoveNotebook(ctx context.Context, id string, newParent *string) (models.Notebook, error)
	DeleteNotebook(ctx context.Context, id string) error
}

// Service validates notebook commands before they reach the store.
type Service struct {
	store  Store
	logger *slog.Logger
}

// NewService returns a notebook Service.
func NewService(store Store, logger *slog.Logger) *Service {
	return &Service{store: store, logger: logger}
}

// CreateInput describes a new notebook. ParentID nil means root level.
type CreateInput struct {
	Name        string  `json:"name"`
	ParentID    *string `json:"parent_id"`
	WorkspaceID string  `json:"workspace_id"`
	FolderPath  string  `json:"folder_path"`
}

func (in CreateInput) validate() error {
	return validation.ValidateStruct(&in,
		validation.Field(&in.Name,
			validation.Required,
			validation.Length(1, 200),
			validation.By(noSlash),
		),
	)
}

func noSlash(value any) error {
	s, _ := value.(string)
	if strings.ContainsAny(s, `/\`) {
		return errors.New("must not contain path separators")
	}
	return nil
}

// Create adds a notebook at the end of its parent's children.
func (s *Service) Create(ctx context.Context, in CreateInput) (models.Notebook, error) {
	in.Name = strings.TrimSpace(in.Name)
	if err := in.validate(); err != nil {
		return models.Notebook{}, fmt.Errorf("notebook: create: %w: %w", apperr.ErrValidation, err)
	}
	if in.ParentID != nil {
		if _, err := s.store.GetNotebook(ctx, *in.ParentID); err != nil {
			return models.Notebook{}, fmt.Errorf("notebook: create: parent: %w", err)
		}
	}
	nb := models.Notebook{
		Name:        in.Name,
		ParentID:    in.ParentID,
		WorkspaceID: in.WorkspaceID,
		FolderPath:  in.FolderPath,
	}
	if err := s.store.CreateNotebook(ctx, &nb); err != nil {
		return models.Notebook{}, fmt.Errorf("notebook: create: %w", err)
	}
	s.logger.Info("notebook: created", slog.String("id", nb.ID), slog.String("name", nb.Name))
	return nb, nil
}

// Move re-parents id under newParent (nil = root level). Moving a notebook
// into itself or into one of its descendants is rejected.
func (s *Service) Move(ctx context.Context, id string, newParent *string) (models.Notebook, error) {
	if _, err := s.store.GetNotebook(ctx, id); err != nil {
		return models.Notebook{}, fmt.Errorf("notebook: move: %w", err)
	}
	if newParent != nil {
		if *newParent == id {
			return models.Notebook{}, fmt.Errorf("notebook: move %s into itself: %w", id, apperr.ErrValidation)
		}
		if _, err := s.store.GetNotebook(ctx, *newParent); err != nil {
			return models.Notebook{}, fmt.Errorf("notebook: move: parent: %w", err)
		}
		below, err := hierarchy.IsDescendant(ctx, s.store, id, *newParent)
		if err != nil {
			return models.Notebook{}, fmt.Errorf("notebook: move: %w", err)
		}
		if below {
			return models.Notebook{}, fmt.Errorf("notebook: move %s under its descendant %s: %w", id, *newParent, apperr.ErrValidation)
		}
	}
	nb, err := s.store.MoveNotebook(ctx, id, newParent)
	if err != nil {
		return models.Notebook{}, fmt.Errorf("notebook: move: %w", err)
	}
	s.logger.Info("notebook: moved", slog.String("id", id))
	return nb, nil
}

// Delete removes a notebook; its children move up to its parent.
func (s *Service) Delete(ctx context.Context, id string) error {
	if err := s.store.DeleteNotebook(ctx, id); err != nil {
		return fmt.Errorf("notebook: delete: %w", err)
	}
	s.logger.Info("notebook: deleted", slog.String("id", id))
	return nil
}

// List returns the notebooks of a workspace.
func (s *Service) List(ctx context.Context, workspaceID string) ([]models.Notebook, error) {
	out, err := s.store.ListNotebooks(ctx, workspaceID)
	if err != nil {
		return nil, fmt.Errorf("notebook: list: %w", err)
	}
	return out, nil
}

// Ancestors returns the parent chain of id, nearest first.
func (s *Service) Ancestors(ctx context.Context, id string) ([]string, error) {
	ids, err := hierarchy.AncestorIDs(ctx, s.store, id)
	if err != nil {
		return nil, fmt.Errorf("notebook: ancestors: %w", err)
	}
	return ids, nil
}
