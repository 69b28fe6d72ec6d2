package adapter

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/dbrevel/queryplane/internal/apperrors"
	"github.com/dbrevel/queryplane/pkg/cipher"
	"github.com/dbrevel/queryplane/pkg/model"
)

// Bundle holds the adapters successfully created for one account, keyed by
// the fixed adapter names "postgres"/"mongodb" (spec.md §4.4).
type Bundle struct {
	adapters map[string]Adapter
}

func (b *Bundle) Get(name string) (Adapter, bool) {
	a, ok := b.adapters[name]
	return a, ok
}

func (b *Bundle) All() map[string]Adapter { return b.adapters }

func (b *Bundle) Schemas(ctx context.Context) (map[string]model.DatabaseSchema, error) {
	schemas := make(map[string]model.DatabaseSchema, len(b.adapters))
	for name, a := range b.adapters {
		s, err := a.IntrospectSchema(ctx)
		if err != nil {
			return nil, err
		}
		schemas[name] = s
	}
	return schemas, nil
}

func (b *Bundle) shutdown(ctx context.Context) {
	var wg sync.WaitGroup
	for name, a := range b.adapters {
		wg.Add(1)
		go func(name string, a Adapter) {
			defer wg.Done()
			closeCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
			defer cancel()
			if err := a.Close(closeCtx); err != nil {
				log.Printf("[adapter.factory] error closing adapter %s: %v", name, err)
			}
		}(name, a)
	}
	wg.Wait()
}

// Factory lazily creates and caches one Bundle per account, grounded on the
// teacher's TransactionManager (server/transactions.go): a mutex-guarded map
// keyed by an identifier, serialized so concurrent callers for the same key
// don't race to build duplicate state.
type Factory struct {
	mu       sync.Mutex
	bundles  map[string]*Bundle
	inFlight map[string]*sync.WaitGroup
	cipher   cipher.Decryptor

	// openPostgres/openDocument are swapped out in tests to avoid dialing a
	// real database; production callers get the package-level constructors.
	openPostgres func(dsn string, cfg PoolConfig) (Adapter, error)
	openDocument func(uri, database string, cfg PoolConfig) (Adapter, error)
}

// NewFactory constructs a Factory. decryptor decodes the account's stored
// database URLs before dialing (spec.md §3's "decryption is a pure function
// supplied by the environment" collaborator).
func NewFactory(decryptor cipher.Decryptor) *Factory {
	return &Factory{
		bundles:  make(map[string]*Bundle),
		inFlight: make(map[string]*sync.WaitGroup),
		cipher:   decryptor,
		openPostgres: func(dsn string, cfg PoolConfig) (Adapter, error) {
			return OpenPostgres(dsn, cfg)
		},
		openDocument: func(uri, database string, cfg PoolConfig) (Adapter, error) {
			return OpenDocument(uri, database, cfg)
		},
	}
}

// GetAdaptersForAccount returns the cached Bundle for account, building it
// on first use. Concurrent calls for the same account ID block on a single
// in-flight build rather than racing to dial twice.
func (f *Factory) GetAdaptersForAccount(ctx context.Context, account model.AccountConfig) (*Bundle, error) {
	f.mu.Lock()
	if b, ok := f.bundles[account.ID]; ok {
		f.mu.Unlock()
		return b, nil
	}
	if wg, building := f.inFlight[account.ID]; building {
		f.mu.Unlock()
		wg.Wait()
		f.mu.Lock()
		b, ok := f.bundles[account.ID]
		f.mu.Unlock()
		if !ok {
			return nil, apperrors.New(apperrors.NoAdapters, "adapter.Factory.GetAdaptersForAccount", fmt.Errorf("adapter build for account %s failed on another goroutine", account.ID))
		}
		return b, nil
	}

	wg := &sync.WaitGroup{}
	wg.Add(1)
	f.inFlight[account.ID] = wg
	f.mu.Unlock()

	b, err := f.createAdaptersForAccount(ctx, account)

	f.mu.Lock()
	delete(f.inFlight, account.ID)
	if err == nil {
		f.bundles[account.ID] = b
	}
	f.mu.Unlock()
	wg.Done()

	return b, err
}

// createAdaptersForAccount dials the relational adapter then the document
// adapter in sequence, tolerating the partial-connectivity case (spec.md
// §4.4, invariant: zero successes is fatal, one-of-two is a degraded but
// usable bundle), grounded on factory.py's _create_adapters_for_account.
func (f *Factory) createAdaptersForAccount(ctx context.Context, account model.AccountConfig) (*Bundle, error) {
	type result struct {
		name string
		a    Adapter
		err  error
	}

	var results []result

	if account.RelationalURL != "" {
		dsn, err := f.cipher.Decrypt(account.RelationalURL)
		if err != nil {
			results = append(results, result{name: model.AdapterPostgres, err: err})
		} else if a, err := f.openPostgres(dsn, DefaultPostgresPoolConfig()); err != nil {
			results = append(results, result{name: model.AdapterPostgres, err: err})
		} else {
			results = append(results, result{name: model.AdapterPostgres, a: a})
		}
	}

	if account.DocumentURL != "" {
		decrypted, err := f.cipher.Decrypt(account.DocumentURL)
		if err != nil {
			results = append(results, result{name: model.AdapterMongo, err: err})
		} else if uri, dbName, err := splitMongoURI(decrypted); err != nil {
			results = append(results, result{name: model.AdapterMongo, err: err})
		} else if a, err := f.openDocument(uri, dbName, DefaultMongoPoolConfig()); err != nil {
			results = append(results, result{name: model.AdapterMongo, err: err})
		} else {
			results = append(results, result{name: model.AdapterMongo, a: a})
		}
	}

	adapters := make(map[string]Adapter)
	var failures int
	for _, r := range results {
		if r.err != nil {
			log.Printf("[adapter.factory] WARN account=%s adapter=%s failed: %v", account.ID, r.name, r.err)
			failures++
			continue
		}
		adapters[r.name] = r.a
	}

	if len(adapters) == 0 {
		return nil, apperrors.New(apperrors.NoAdapters, "adapter.Factory.createAdaptersForAccount",
			fmt.Errorf("no adapters could be created for account %s", account.ID))
	}
	if failures > 0 {
		log.Printf("[adapter.factory] WARN account=%s running in degraded mode: %d/%d adapters available",
			account.ID, len(adapters), len(results))
	}

	return &Bundle{adapters: adapters}, nil
}

// splitMongoURI separates the connection URI from the database name the
// spec's account configuration embeds after it, e.g.
// "mongodb://host/dbname" -> ("mongodb://host/dbname", "dbname").
func splitMongoURI(raw string) (uri string, database string, err error) {
	idx := lastSlash(raw)
	if idx < 0 || idx == len(raw)-1 {
		return "", "", fmt.Errorf("document url %q has no trailing database name", raw)
	}
	return raw, raw[idx+1:], nil
}

func lastSlash(s string) int {
	for i := len(s) - 1; i >= 0; i-- {
		if s[i] == '/' {
			return i
		}
	}
	return -1
}

// Shutdown closes every cached bundle's adapters, each with a 2s timeout,
// in parallel across accounts.
func (f *Factory) Shutdown(ctx context.Context) {
	f.mu.Lock()
	bundles := make([]*Bundle, 0, len(f.bundles))
	for _, b := range f.bundles {
		bundles = append(bundles, b)
	}
	f.bundles = make(map[string]*Bundle)
	f.mu.Unlock()

	var wg sync.WaitGroup
	for _, b := range bundles {
		wg.Add(1)
		go func(b *Bundle) {
			defer wg.Done()
			b.shutdown(ctx)
		}(b)
	}
	wg.Wait()
}
