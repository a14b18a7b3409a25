// Package workspace registers workspace folders and resolves which one a
// request operates on.
package workspace

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/folio/internal/apperr"
	"github.com/starford/folio/internal/models"
)

// Store persists workspaces.
type Store interface {
	RegisterWorkspace(ctx context.Context, folderPath string) (models.Workspace, error)
	GetWorkspace(ctx context.Context, id string) (models.Workspace, error)
	ActiveWorkspace(ctx context.Context) (models.Workspace, error)
	ActivateWorkspace(ctx context.Context, id string) error
	ListWorkspaces(ctx context.Context) ([]models.Workspace, error)
}

// Service wraps workspace persistence with validation.
type Service struct {
	store  Store
	logger *slog.Logger
}

// NewService returns a Service.
func NewService(store Store, logger *slog.Logger) *Service {
	return &Service{store: store, logger: logger}
}

// Register records folderPath, which must be an existing directory.
func (s *Service) Register(ctx context.Context, folderPath string) (models.Workspace, error) {
	err := validation.Validate(folderPath, validation.Required, validation.By(isDir))
	if err != nil {
		return models.Workspace{}, fmt.Errorf("workspace: folder %q: %w: %w", folderPath, apperr.ErrValidation, err)
	}
	ws, err := s.store.RegisterWorkspace(ctx, folderPath)
	if err != nil {
		return models.Workspace{}, fmt.Errorf("workspace: register: %w", err)
	}
	s.logger.Info("workspace: registered", slog.String("id", ws.ID), slog.String("path", ws.FolderPath))
	return ws, nil
}

// Activate makes id the single active workspace.
func (s *Service) Activate(ctx context.Context, id string) (models.Workspace, error) {
	if err := s.store.ActivateWorkspace(ctx, id); err != nil {
		return models.Workspace{}, fmt.Errorf("workspace: activate: %w", err)
	}
	ws, err := s.store.GetWorkspace(ctx, id)
	if err != nil {
		return models.Workspace{}, fmt.Errorf("workspace: activate: %w", err)
	}
	s.logger.Info("workspace: activated", slog.String("id", id))
	return ws, nil
}

// Resolve returns workspace id, or the active workspace when id is empty.
func (s *Service) Resolve(ctx context.Context, id string) (models.Workspace, error) {
	var (
		ws  models.Workspace
		err error
	)
	if id == "" {
		ws, err = s.store.ActiveWorkspace(ctx)
	} else {
		ws, err = s.store.GetWorkspace(ctx, id)
	}
	if err != nil {
		return models.Workspace{}, fmt.Errorf("workspace: resolve: %w", err)
	}
	return ws, nil
}

// List returns every registered workspace.
func (s *Service) List(ctx context.Context) ([]models.Workspace, error) {
	all, err := s.store.ListWorkspaces(ctx)
	if err != nil {
		return nil, fmt.Errorf("workspace: list: %w", err)
	}
	if all == nil {
		all = []models.Workspace{}
	}
	return all, nil
}

func isDir(value any) error {
	p, _ := value.(string)
	info, err := os.Stat(p)
	if err != nil {
		return err
	}
	if !info.IsDir() {
		return errors.New("not a directory")
	}
	return nil
}
