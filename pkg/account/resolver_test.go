package account

import (
	"errors"
	"testing"

	"github.com/dbrevel/queryplane/internal/apperrors"
	"github.com/dbrevel/queryplane/pkg/model"
)

func seedRepo() *Repository {
	repo := NewRepository()
	repo.PutAccount(model.Account{ID: "acct-1", Name: "Acme", ModelMode: model.ModelModePlatform})
	repo.PutProject(model.Project{
		ID: "proj-1", AccountID: "acct-1", Name: "default",
		Key: "acme_project_key", RelationalURL: "postgresql://host/db",
	})
	return repo
}

func TestResolver_ResolvesByExactKeyMatch(t *testing.T) {
	r := NewResolver(seedRepo(), false, model.AccountConfig{})

	cfg, err := r.Resolve("acme_project_key")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if cfg.ID != "acct-1" {
		t.Errorf("cfg.ID = %q; want acct-1", cfg.ID)
	}
}

func TestResolver_UnknownKeyIsUnauthenticated(t *testing.T) {
	r := NewResolver(seedRepo(), false, model.AccountConfig{})

	_, err := r.Resolve("not-a-real-key")
	var ae *apperrors.Error
	if !errors.As(err, &ae) || ae.Kind != apperrors.Unauthenticated {
		t.Fatalf("err = %v; want Unauthenticated", err)
	}
}

func TestResolver_EmptyKeyIsUnauthenticated(t *testing.T) {
	r := NewResolver(seedRepo(), false, model.AccountConfig{})
	_, err := r.Resolve("")
	var ae *apperrors.Error
	if !errors.As(err, &ae) || ae.Kind != apperrors.Unauthenticated {
		t.Fatalf("err = %v; want Unauthenticated", err)
	}
}

func TestResolver_DemoKeyResolvesWhenEnabled(t *testing.T) {
	demo := model.AccountConfig{ID: "demo", Name: "Demo Account", RelationalURL: "postgresql://demo/db"}
	r := NewResolver(NewRepository(), true, demo)

	cfg, err := r.Resolve(DemoProjectKey)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if cfg.ID != "demo" {
		t.Errorf("cfg.ID = %q; want demo", cfg.ID)
	}
}

func TestResolver_DemoKeyRejectedWhenDisabled(t *testing.T) {
	demo := model.AccountConfig{ID: "demo"}
	r := NewResolver(NewRepository(), false, demo)

	_, err := r.Resolve(DemoProjectKey)
	if err == nil {
		t.Errorf("expected demo key to be rejected when demo mode is disabled")
	}
}

func TestResolver_ByoModeRequiresModelKey(t *testing.T) {
	repo := NewRepository()
	repo.PutAccount(model.Account{ID: "acct-1", ModelMode: model.ModelModeBYO, ModelKey: ""})
	repo.PutProject(model.Project{ID: "proj-1", AccountID: "acct-1", Key: "k1", RelationalURL: "postgresql://host/db"})
	r := NewResolver(repo, false, model.AccountConfig{})

	_, err := r.Resolve("k1")
	if err == nil {
		t.Errorf("expected error for byo account with no model key")
	}
}

func TestRepository_RotateKeyUpdatesLookup(t *testing.T) {
	repo := seedRepo()
	if !repo.RotateKey("proj-1", "new_key") {
		t.Fatalf("RotateKey failed")
	}
	if _, ok := repo.ProjectByKey("acme_project_key"); ok {
		t.Errorf("old key should no longer resolve")
	}
	if _, ok := repo.ProjectByKey("new_key"); !ok {
		t.Errorf("new key should resolve")
	}
}

func TestConstantTimeEqual(t *testing.T) {
	if !constantTimeEqual("abc", "abc") {
		t.Errorf("expected equal strings to match")
	}
	if constantTimeEqual("abc", "abd") {
		t.Errorf("expected different strings to not match")
	}
	if constantTimeEqual("abc", "abcd") {
		t.Errorf("expected different-length strings to not match")
	}
}
