package account

import (
	"crypto/subtle"
	"fmt"

	"github.com/dbrevel/queryplane/internal/apperrors"
	"github.com/dbrevel/queryplane/pkg/model"
)

// DemoProjectKey is the reserved key the original implementation wires to a
// built-in demo account (core/accounts.py's
// "dbrevel_demo_project_key" / DEMO_ACCOUNT_ENABLED), so a fresh deployment
// has something to query out of the box.
const DemoProjectKey = "dbrevel_demo_project_key"

// Resolver resolves a project API key into the AccountConfig the rest of
// the pipeline needs, grounded on accounts.py's
// get_account_by_api_key_async: an exact map lookup first, then a
// constant-time scan over every known key as a fallback so the lookup path
// doesn't leak a key prefix via early-exit string comparison timing.
type Resolver struct {
	repo        *Repository
	demoEnabled bool
	demoAccount model.AccountConfig
}

// NewResolver constructs a Resolver. When demoEnabled is true, DemoProjectKey
// always resolves to demoAccount regardless of what's registered in repo.
func NewResolver(repo *Repository, demoEnabled bool, demoAccount model.AccountConfig) *Resolver {
	return &Resolver{repo: repo, demoEnabled: demoEnabled, demoAccount: demoAccount}
}

// Resolve turns a project API key into an AccountConfig, or an
// Unauthenticated error if no project/account matches.
func (r *Resolver) Resolve(key string) (model.AccountConfig, error) {
	if key == "" {
		return model.AccountConfig{}, apperrors.New(apperrors.Unauthenticated, "account.Resolver.Resolve", fmt.Errorf("empty project key"))
	}

	if r.demoEnabled && constantTimeEqual(key, DemoProjectKey) {
		return r.demoAccount, nil
	}

	if project, ok := r.repo.ProjectByKey(key); ok {
		return r.buildConfig(project)
	}

	if project, ok := r.hashedKeyFallback(key); ok {
		return r.buildConfig(project)
	}

	return model.AccountConfig{}, apperrors.New(apperrors.Unauthenticated, "account.Resolver.Resolve", fmt.Errorf("no project matches the given key"))
}

// hashedKeyFallback scans every known project key with a constant-time
// comparison, so a miss takes the same time regardless of how many
// characters of key happened to match any candidate (spec.md §4.11, C11).
// Candidates are compared as raw key strings; no hashing is applied.
func (r *Resolver) hashedKeyFallback(key string) (model.Project, bool) {
	var match model.Project
	found := false
	for _, candidate := range r.repo.AllProjectKeys() {
		if constantTimeEqual(key, candidate) {
			if p, ok := r.repo.ProjectByKey(candidate); ok {
				match = p
				found = true
			}
		}
	}
	return match, found
}

func (r *Resolver) buildConfig(project model.Project) (model.AccountConfig, error) {
	acct, ok := r.repo.AccountByID(project.AccountID)
	if !ok {
		return model.AccountConfig{}, apperrors.New(apperrors.Unauthenticated, "account.Resolver.buildConfig", fmt.Errorf("project %s references unknown account %s", project.ID, project.AccountID))
	}

	cfg := model.AccountConfig{
		ID:            acct.ID,
		Name:          acct.Name,
		Key:           project.Key,
		RelationalURL: project.RelationalURL,
		DocumentURL:   project.DocumentURL,
		ModelMode:     acct.ModelMode,
		ModelKey:      acct.ModelKey,
	}
	if err := cfg.Validate(); err != nil {
		return model.AccountConfig{}, apperrors.New(apperrors.Unauthenticated, "account.Resolver.buildConfig", err)
	}
	return cfg, nil
}

// constantTimeEqual compares two strings without leaking timing
// information about how many leading bytes match, using
// crypto/subtle.ConstantTimeCompare. Unequal lengths are rejected before
// the constant-time compare, which is itself a length-based timing signal;
// spec.md's Open Questions accepts this as an acceptable residual leak
// since only the key material's validity, not its position, is sensitive.
func constantTimeEqual(a, b string) bool {
	if len(a) != len(b) {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}
