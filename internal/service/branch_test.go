package service

import (
	"context"
	"errors"
	"testing"

	"devportal/internal/domain"
	"devportal/internal/domain/services"
)

func TestCreateBranch_FirstBecomesDefault(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	main, err := env.branches.CreateBranch(ctx, &services.CreateBranchRequest{
		RepositoryID: "r1",
		Name:         "main",
	})
	if err != nil {
		t.Fatalf("CreateBranch failed: %v", err)
	}
	if !main.IsDefault {
		t.Fatalf("first branch must become the default")
	}

	dev, err := env.branches.CreateBranch(ctx, &services.CreateBranchRequest{
		RepositoryID: "r1",
		Name:         "dev",
	})
	if err != nil {
		t.Fatalf("CreateBranch failed: %v", err)
	}
	if dev.IsDefault {
		t.Fatalf("second branch must not be default")
	}

	// First branch of another repository is independent
	other, err := env.branches.CreateBranch(ctx, &services.CreateBranchRequest{
		RepositoryID: "r2",
		Name:         "main",
	})
	if err != nil {
		t.Fatalf("CreateBranch failed: %v", err)
	}
	if !other.IsDefault {
		t.Fatalf("first branch of r2 must be its default")
	}
}

func TestCreateBranch_Validation(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	tests := []struct {
		name       string
		branchName string
	}{
		{"empty name", ""},
		{"spaces", "my branch"},
		{"leading slash", "/main"},
		{"double slash", "feature//x"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := env.branches.CreateBranch(ctx, &services.CreateBranchRequest{
				RepositoryID: "r1",
				Name:         tt.branchName,
			})
			if !errors.Is(err, domain.ErrValidation) {
				t.Errorf("expected ErrValidation, got %v", err)
			}
		})
	}

	// Slash-separated segments are allowed
	if _, err := env.branches.CreateBranch(ctx, &services.CreateBranchRequest{
		RepositoryID: "r1",
		Name:         "feature/zip-export",
	}); err != nil {
		t.Fatalf("expected feature/zip-export to be valid, got %v", err)
	}
}

func TestCreateBranch_DuplicateName(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	req := &services.CreateBranchRequest{RepositoryID: "r1", Name: "main"}
	if _, err := env.branches.CreateBranch(ctx, req); err != nil {
		t.Fatalf("CreateBranch failed: %v", err)
	}
	if _, err := env.branches.CreateBranch(ctx, req); !errors.Is(err, domain.ErrConflict) {
		t.Fatalf("expected ErrConflict for duplicate branch name, got %v", err)
	}
}

func TestSetDefaultBranch(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	mustBranch(t, env, "r1", "main")
	mustBranch(t, env, "r1", "dev")

	if err := env.branches.SetDefaultBranch(ctx, "r1", "dev"); err != nil {
		t.Fatalf("SetDefaultBranch failed: %v", err)
	}

	def, err := env.branches.DefaultBranch(ctx, "r1")
	if err != nil {
		t.Fatalf("DefaultBranch failed: %v", err)
	}
	if def.Name != "dev" {
		t.Fatalf("expected dev as default, got %s", def.Name)
	}

	// Exactly one default
	branches, err := env.branches.ListBranches(ctx, "r1")
	if err != nil {
		t.Fatalf("ListBranches failed: %v", err)
	}
	defaults := 0
	for _, b := range branches {
		if b.IsDefault {
			defaults++
		}
	}
	if defaults != 1 {
		t.Fatalf("expected exactly one default branch, got %d", defaults)
	}
	if branches[0].Name != "dev" {
		t.Fatalf("default must sort first, got %s", branches[0].Name)
	}
}

func TestDeleteBranch_Refusals(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	mustBranch(t, env, "r1", "main")
	if _, err := env.branches.CreateBranch(ctx, &services.CreateBranchRequest{
		RepositoryID: "r1",
		Name:         "release",
		IsProtected:  true,
	}); err != nil {
		t.Fatalf("CreateBranch failed: %v", err)
	}
	mustBranch(t, env, "r1", "scratch")

	if err := env.branches.DeleteBranch(ctx, "r1", "main"); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected refusal deleting the default branch, got %v", err)
	}
	if err := env.branches.DeleteBranch(ctx, "r1", "release"); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected refusal deleting a protected branch, got %v", err)
	}
	if err := env.branches.DeleteBranch(ctx, "r1", "scratch"); err != nil {
		t.Fatalf("DeleteBranch failed: %v", err)
	}
	if _, err := env.branches.GetBranch(ctx, "r1", "scratch"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected deleted branch gone, got %v", err)
	}
}

func mustBranch(t *testing.T, env *testEnv, repositoryID, name string) {
	t.Helper()
	if _, err := env.branches.CreateBranch(context.Background(), &services.CreateBranchRequest{
		RepositoryID: repositoryID,
		Name:         name,
	}); err != nil {
		t.Fatalf("CreateBranch(%s) failed: %v", name, err)
	}
}
