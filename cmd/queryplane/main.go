// Command queryplane is a one-shot CLI entrypoint that resolves an account
// by project key, synthesizes and validates a query plan for a natural-
// language intent, executes it, and prints the masked result — grounded on
// the teacher's server/server.go main-wiring sequence (load config, build
// dependencies, run, shut down), generalized from a long-running AMQP
// consumer into a single request/response invocation since HTTP/queue
// transport is out of scope here.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/google/uuid"

	"github.com/dbrevel/queryplane/internal/apperrors"
	"github.com/dbrevel/queryplane/internal/bootstrap"
	"github.com/dbrevel/queryplane/internal/config"
	"github.com/dbrevel/queryplane/pkg/adapter"
	"github.com/dbrevel/queryplane/pkg/cache"
	"github.com/dbrevel/queryplane/pkg/executor"
	"github.com/dbrevel/queryplane/pkg/llm"
	"github.com/dbrevel/queryplane/pkg/model"
	"github.com/dbrevel/queryplane/pkg/security"
)

// bundleSource adapts an *adapter.Bundle to executor.AdapterSource. The two
// packages each declare their own narrow Adapter interface so neither
// depends on the other; this is the one place that bridges them.
type bundleSource struct{ bundle *adapter.Bundle }

func (s bundleSource) Get(name string) (executor.Adapter, bool) {
	return s.bundle.Get(name)
}

func main() {
	projectKey := flag.String("project-key", "", "Project API key identifying the caller's account")
	intent := flag.String("intent", "", "Natural-language intent to convert into a query plan")
	dryRun := flag.Bool("dry-run", false, "Synthesize and validate the plan without executing it")
	skipValidation := flag.Bool("skip-validation", false, "Skip the per-query safety validation pass")

	cfg := config.LoadFromFlags()

	if *projectKey == "" || *intent == "" {
		fmt.Fprintln(os.Stderr, `usage: queryplane -project-key=<key> -intent="..." [-dry-run] [-skip-validation]`)
		os.Exit(2)
	}

	container, err := bootstrap.New(cfg)
	if err != nil {
		log.Fatalf("bootstrap: %v", err)
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		container.Shutdown(ctx)
	}()

	ctx := context.Background()
	req := model.QueryRequest{Intent: *intent, DryRun: *dryRun, SkipValidation: *skipValidation}

	result, err := run(ctx, container, *projectKey, req)
	if err != nil {
		reportError(err)
		os.Exit(1)
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	_ = enc.Encode(result)
}

// run executes the full pipeline for one request: resolve account, validate
// intent, build adapters and schemas, synthesize a plan, optionally review
// each query for safety, execute, and mask the result.
func run(ctx context.Context, c *bootstrap.Container, projectKey string, req model.QueryRequest) (model.QueryResult, error) {
	start := time.Now()
	traceID := uuid.NewString()
	log.Printf("[queryplane] trace=%s starting request", traceID)

	account, err := c.Resolver.Resolve(projectKey)
	if err != nil {
		return model.QueryResult{}, err
	}

	if err := llm.ValidateIntent(req.Intent); err != nil {
		return model.QueryResult{}, err
	}

	bundle, err := c.Factory.GetAdaptersForAccount(ctx, account)
	if err != nil {
		return model.QueryResult{}, err
	}

	schemas, err := bundle.Schemas(ctx)
	if err != nil {
		return model.QueryResult{}, err
	}

	sec := model.SecurityContext{AccountID: account.ID}

	planKey := cache.KeyFrom("plan", account.ID, req.Intent, schemas)
	var plan model.QueryPlan
	hit := false
	if c.Config.CacheEnabled {
		plan, hit = cachedPlan(ctx, c.Cache, planKey)
	}
	if hit {
		log.Printf("[queryplane] trace=%s plan cache hit", traceID)
	} else {
		plan, err = c.Synth.Synthesize(ctx, req.Intent, schemas, sec)
		if err != nil {
			return model.QueryResult{}, err
		}
		if c.Config.CacheEnabled {
			c.Cache.Set(ctx, planKey, plan, 0)
		}
	}

	if !req.SkipValidation && !req.DryRun {
		for _, q := range plan.Queries {
			schema := schemas[q.Database]
			verdictKey := cache.KeyFrom("verdict", q, schema)

			var verdict llm.Verdict
			hit := false
			if c.Config.CacheEnabled {
				verdict, hit = cachedVerdict(ctx, c.Cache, verdictKey)
			}
			if !hit {
				verdict = c.Validator.Validate(ctx, q, schema)
				if c.Config.CacheEnabled {
					c.Cache.Set(ctx, verdictKey, verdict, 0)
				}
			}

			if !verdict.Safe {
				return model.QueryResult{}, apperrors.New(apperrors.QueryValidation, "main.run",
					fmt.Errorf("query against %s rejected: %v", q.Database, verdict.Issues))
			}
		}
	}

	rows, err := c.Executor.Execute(ctx, plan, bundleSource{bundle: bundle}, req.DryRun)
	if err != nil {
		return model.QueryResult{}, err
	}

	rows = security.Mask(rows, sec.FieldMasks)

	return model.QueryResult{
		Data: rows,
		Metadata: model.QueryMetadata{
			Plan:            plan,
			ExecutionTimeMS: float64(time.Since(start).Microseconds()) / 1000,
			RowsReturned:    len(rows),
			TraceID:         traceID,
			Timestamp:       time.Now(),
		},
	}, nil
}

// cachedPlan and cachedVerdict re-decode a cache hit through JSON rather
// than type-asserting it directly: a value read back from the process-local
// map is still the original struct, but one served from a Backing store
// (pkg/cache/redis.go) comes back as the generic map[string]any produced by
// json.Unmarshal, and a bare type assertion would treat that as a miss.
func cachedPlan(ctx context.Context, c *cache.Advisory, key string) (model.QueryPlan, bool) {
	v, ok := c.Get(ctx, key)
	if !ok {
		return model.QueryPlan{}, false
	}
	var plan model.QueryPlan
	if !decodeCached(v, &plan) {
		return model.QueryPlan{}, false
	}
	return plan, true
}

func cachedVerdict(ctx context.Context, c *cache.Advisory, key string) (llm.Verdict, bool) {
	v, ok := c.Get(ctx, key)
	if !ok {
		return llm.Verdict{}, false
	}
	var verdict llm.Verdict
	if !decodeCached(v, &verdict) {
		return llm.Verdict{}, false
	}
	return verdict, true
}

func decodeCached(v any, out any) bool {
	buf, err := json.Marshal(v)
	if err != nil {
		return false
	}
	return json.Unmarshal(buf, out) == nil
}

func reportError(err error) {
	var ae *apperrors.Error
	if errors.As(err, &ae) {
		fmt.Fprintf(os.Stderr, "error (%d %s): %v\n", ae.Kind.HTTPStatus(), ae.Kind, ae)
		return
	}
	fmt.Fprintf(os.Stderr, "error: %v\n", err)
}
