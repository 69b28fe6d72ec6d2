// Package bootstrap wires the process-wide component graph in explicit
// dependency order, grounded on the teacher's server construction sequence
// in server/server.go (config -> cache -> pool -> transaction manager ->
// worker pool), generalized from a single MySQL/AMQP server into this
// module's multi-adapter, multi-model pipeline.
package bootstrap

import (
	"context"
	"fmt"
	"log"

	"github.com/dbrevel/queryplane/internal/config"
	"github.com/dbrevel/queryplane/pkg/account"
	"github.com/dbrevel/queryplane/pkg/adapter"
	"github.com/dbrevel/queryplane/pkg/cache"
	"github.com/dbrevel/queryplane/pkg/cipher"
	"github.com/dbrevel/queryplane/pkg/executor"
	"github.com/dbrevel/queryplane/pkg/llm"
	"github.com/dbrevel/queryplane/pkg/model"
	"github.com/dbrevel/queryplane/pkg/retry"
)

// Container holds every process-wide singleton the CLI entrypoint needs,
// constructed once at startup and torn down once at shutdown.
type Container struct {
	Config     *config.Config
	Repository *account.Repository
	Resolver   *account.Resolver
	Factory    *adapter.Factory
	Synth      *llm.Synthesizer
	Validator  *llm.Validator
	Executor   *executor.Executor
	Cache      *cache.Advisory

	redisBacking *cache.RedisBacking
}

// New builds the Container in dependency order: config is already loaded by
// the caller; cipher and repository have no dependencies; the factory
// depends on the cipher; the synthesizer/validator depend on an LLM client;
// the executor and cache are independent leaves.
func New(cfg *config.Config) (*Container, error) {
	decryptor, err := cipher.NewAESGCM(cfg.EncryptionSecret)
	if err != nil {
		return nil, fmt.Errorf("bootstrap: constructing cipher: %w", err)
	}

	repo := account.NewRepository()

	demoAccount := model.AccountConfig{
		ID:            "demo",
		Name:          "Demo Account",
		Key:           account.DemoProjectKey,
		RelationalURL: cfg.DemoPostgresURL,
		DocumentURL:   cfg.DemoMongoURL,
		ModelMode:     model.ModelModePlatform,
	}
	resolver := account.NewResolver(repo, cfg.DemoAccountEnabled, demoAccount)

	factory := adapter.NewFactory(decryptor)

	client := llm.NewAnthropicClient(cfg.AnthropicAPIKey)
	models := llm.ModelIDs{Preferred: cfg.PreferredModel, Fallback: cfg.FallbackModel}
	policy := retry.Policy{
		MaxAttempts:  cfg.RetryMaxAttempts,
		InitialDelay: cfg.RetryInitialDelay,
		MaxDelay:     cfg.RetryMaxDelay,
		Base:         2,
		Jitter:       true,
	}
	synth := llm.NewSynthesizer(client, models, policy)
	validator := llm.NewValidator(client, models, policy)

	exec := executor.New(executor.Config{MaxConcurrency: cfg.MaxConcurrency, MaxRows: cfg.MaxRows})

	// A Redis-backed advisory cache is optional: when no RedisURL is
	// configured, or dialing it fails, the cache runs process-local only,
	// degrading exactly the way a live Redis outage would (cache.Advisory
	// treats a nil or failing Backing identically).
	var backing cache.Backing
	var redisBacking *cache.RedisBacking
	if cfg.CacheEnabled && cfg.RedisURL != "" {
		rb, err := cache.NewRedisBacking(cfg.RedisURL, "", 0)
		if err != nil {
			log.Printf("[bootstrap] redis backing unavailable, falling back to process-local cache: %v", err)
		} else {
			backing = rb
			redisBacking = rb
		}
	}

	advisory := cache.New(cache.Config{
		MaxSize:         cfg.CacheSize,
		DefaultTTL:      cfg.CacheTTL,
		CleanupInterval: cfg.CacheCleanupInterval,
	}, backing)

	return &Container{
		Config:       cfg,
		Repository:   repo,
		Resolver:     resolver,
		Factory:      factory,
		Synth:        synth,
		Validator:    validator,
		Executor:     exec,
		Cache:        advisory,
		redisBacking: redisBacking,
	}, nil
}

// Shutdown tears the container down in the reverse of its construction
// order: the Redis backing and the factory are the only resources requiring
// an orderly close (a pooled Redis client, live database connection pools);
// everything else is process-local.
func (c *Container) Shutdown(ctx context.Context) {
	if c.redisBacking != nil {
		if err := c.redisBacking.Close(); err != nil {
			log.Printf("[bootstrap] error closing redis backing: %v", err)
		}
	}
	c.Factory.Shutdown(ctx)
}
