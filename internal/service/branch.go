package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/google/uuid"

	"devportal/internal/config"
	"devportal/internal/domain"
	"devportal/internal/domain/models"
	"devportal/internal/domain/repositories"
	"devportal/internal/domain/services"
)

// branchNameRule matches git-ish branch names: path-like segments of word
// characters, dots and dashes
var branchNameRule = validation.Match(regexp.MustCompile(`^[\w.-]+(/[\w.-]+)*$`)).
	Error("branch name may contain letters, digits, dots, dashes and slash-separated segments")

type branchService struct {
	branchRepo repositories.BranchRepository
	txManager  repositories.TransactionManager
	logger     *slog.Logger
}

// NewBranchService creates a new branch service
func NewBranchService(
	branchRepo repositories.BranchRepository,
	txManager repositories.TransactionManager,
	logger *slog.Logger,
) services.BranchService {
	return &branchService{
		branchRepo: branchRepo,
		txManager:  txManager,
		logger:     logger,
	}
}

// CreateBranch creates a named branch; the repository's first branch becomes
// its default
func (s *branchService) CreateBranch(ctx context.Context, req *services.CreateBranchRequest) (*models.Branch, error) {
	if req.RepositoryID == "" {
		return nil, fmt.Errorf("repository id is required: %w", domain.ErrValidation)
	}
	if err := validateBranchName(req.Name); err != nil {
		return nil, err
	}

	_, err := s.branchRepo.GetDefault(ctx, req.RepositoryID)
	isFirst := false
	if err != nil {
		if !errors.Is(err, domain.ErrNotFound) {
			return nil, err
		}
		isFirst = true
	}

	now := time.Now()
	branch := &models.Branch{
		ID:           uuid.New().String(),
		RepositoryID: req.RepositoryID,
		Name:         req.Name,
		Description:  req.Description,
		IsDefault:    isFirst,
		IsProtected:  req.IsProtected,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.branchRepo.Create(ctx, branch); err != nil {
		return nil, err
	}

	s.logger.Info("branch created",
		"id", branch.ID,
		"repository_id", branch.RepositoryID,
		"name", branch.Name,
		"is_default", branch.IsDefault,
	)
	return branch, nil
}

// ListBranches lists a repository's branches, default first
func (s *branchService) ListBranches(ctx context.Context, repositoryID string) ([]models.Branch, error) {
	if repositoryID == "" {
		return nil, fmt.Errorf("repository id is required: %w", domain.ErrValidation)
	}
	return s.branchRepo.ListByRepository(ctx, repositoryID)
}

// GetBranch retrieves a branch by name
func (s *branchService) GetBranch(ctx context.Context, repositoryID, name string) (*models.Branch, error) {
	if repositoryID == "" {
		return nil, fmt.Errorf("repository id is required: %w", domain.ErrValidation)
	}
	return s.branchRepo.GetByName(ctx, repositoryID, name)
}

// DefaultBranch retrieves the repository's default branch
func (s *branchService) DefaultBranch(ctx context.Context, repositoryID string) (*models.Branch, error) {
	if repositoryID == "" {
		return nil, fmt.Errorf("repository id is required: %w", domain.ErrValidation)
	}
	return s.branchRepo.GetDefault(ctx, repositoryID)
}

// SetDefaultBranch makes the named branch the repository's default
func (s *branchService) SetDefaultBranch(ctx context.Context, repositoryID, name string) error {
	branch, err := s.branchRepo.GetByName(ctx, repositoryID, name)
	if err != nil {
		return err
	}
	if branch.IsDefault {
		return nil
	}

	err = s.txManager.ExecTx(ctx, func(txCtx context.Context) error {
		return s.branchRepo.SetDefault(txCtx, repositoryID, branch.ID)
	})
	if err != nil {
		return err
	}

	s.logger.Info("default branch changed",
		"repository_id", repositoryID,
		"branch", name,
	)
	return nil
}

// DeleteBranch removes a branch; the default branch and protected branches
// are refused
func (s *branchService) DeleteBranch(ctx context.Context, repositoryID, name string) error {
	branch, err := s.branchRepo.GetByName(ctx, repositoryID, name)
	if err != nil {
		return err
	}
	if branch.IsDefault {
		return fmt.Errorf("cannot delete the default branch: %w", domain.ErrValidation)
	}
	if branch.IsProtected {
		return fmt.Errorf("branch '%s' is protected: %w", name, domain.ErrValidation)
	}

	if err := s.branchRepo.Delete(ctx, branch.ID); err != nil {
		return err
	}

	s.logger.Info("branch deleted", "repository_id", repositoryID, "branch", name)
	return nil
}

func validateBranchName(name string) error {
	err := validation.Validate(name,
		validation.Required,
		validation.Length(1, config.MaxBranchNameLength),
		branchNameRule,
	)
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrValidation, err)
	}
	return nil
}
