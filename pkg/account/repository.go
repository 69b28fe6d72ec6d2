// Package account implements the account/project repository and resolver
// (spec.md §4.11, §4.12): in-memory, mutex-guarded stores for Account and
// Project records, plus key-based resolution into the AccountConfig the
// rest of the pipeline consumes. It is grounded on the original Python
// implementation's core/accounts.py (ACCOUNTS_BY_KEY, get_account_by_api_key_async)
// and on the teacher's TransactionManager (server/transactions.go) for the
// mutex-guarded-map idiom.
package account

import (
	"sync"

	"github.com/dbrevel/queryplane/pkg/model"
)

// Repository stores Account and Project records in memory.
type Repository struct {
	mu       sync.RWMutex
	accounts map[string]model.Account
	projects map[string]model.Project // keyed by project ID
	byKey    map[string]string        // project key -> project ID
}

func NewRepository() *Repository {
	return &Repository{
		accounts: make(map[string]model.Account),
		projects: make(map[string]model.Project),
		byKey:    make(map[string]string),
	}
}

func (r *Repository) PutAccount(a model.Account) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.accounts[a.ID] = a
}

func (r *Repository) PutProject(p model.Project) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.projects[p.ID] = p
	r.byKey[p.Key] = p.ID
}

func (r *Repository) AccountByID(id string) (model.Account, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.accounts[id]
	return a, ok
}

func (r *Repository) ProjectByID(id string) (model.Project, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.projects[id]
	return p, ok
}

// ProjectByKey looks up a project by its exact API key, the fast path
// get_account_by_api_key_async takes before any hashed-key fallback.
func (r *Repository) ProjectByKey(key string) (model.Project, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.byKey[key]
	if !ok {
		return model.Project{}, false
	}
	p, ok := r.projects[id]
	return p, ok
}

// AllProjectKeys returns every known project key, used by the resolver's
// constant-time fallback scan (spec.md §4.11, invariant C11).
func (r *Repository) AllProjectKeys() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	keys := make([]string, 0, len(r.byKey))
	for k := range r.byKey {
		keys = append(keys, k)
	}
	return keys
}

// RotateKey replaces a project's API key, matching the project/account key
// rotation capability the original accounts.py's dataclasses imply but
// never implement as a standalone operation.
func (r *Repository) RotateKey(projectID, newKey string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.projects[projectID]
	if !ok {
		return false
	}
	delete(r.byKey, p.Key)
	p.Key = newKey
	r.projects[projectID] = p
	r.byKey[newKey] = projectID
	return true
}
