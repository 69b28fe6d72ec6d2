package llm

import (
	"context"
	"errors"
	"log"
	"regexp"
	"strings"

	"github.com/dbrevel/queryplane/internal/apperrors"
	"github.com/dbrevel/queryplane/pkg/model"
	"github.com/dbrevel/queryplane/pkg/retry"
)

// thoughtBlock strips a <thought>...</thought> preamble some model
// responses prepend before the JSON payload. Its contents are logged, not
// discarded, since they're useful for debugging plan-synthesis failures.
var thoughtBlock = regexp.MustCompile(`(?s)<thought>(.*?)</thought>`)

// ModelIDs is the [preferred, fallback] pair spec.md §4.6 requires: the
// preferred model is tried first, the fallback after any failure of the
// preferred model except InvalidPlan (a transport error exhausts retries against
// the SAME model before falling back; an InvalidPlan failure never falls
// back, since a different model is unlikely to fix a structurally bad
// prompt response on the same input).
type ModelIDs struct {
	Preferred string
	Fallback  string
}

// Synthesizer implements the plan synthesizer (spec.md §4.6), grounded on
// gemini.py's GeminiEngine.generate_query_plan.
type Synthesizer struct {
	client Client
	models ModelIDs
	policy retry.Policy
}

// NewSynthesizer constructs a Synthesizer. policy governs the retry backoff
// applied per model ID; DefaultPolicy (pkg/retry) matches retry.py's
// defaults used for exactly this call in the original implementation.
func NewSynthesizer(client Client, models ModelIDs, policy retry.Policy) *Synthesizer {
	return &Synthesizer{client: client, models: models, policy: policy}
}

// isTransportError reports whether err is an invocation-level failure - a
// network/API error, or a response with no usable content - rather than a
// response the model actually produced. It is the per-model retry
// predicate: only a transport failure earns a backed-off retry against the
// same model, matching gemini.py's exceptions=(ConnectionError, TimeoutError,
// OSError) retry filter.
func isTransportError(err error) bool {
	var ae *apperrors.Error
	if errors.As(err, &ae) {
		return ae.Kind == apperrors.ModelTransport
	}
	return true
}

// isInvalidPlan reports whether err is a genuine InvalidPlan failure: the
// model produced a response but it didn't parse into a valid plan. Per
// spec.md §4.6 step 4, this is the one per-model failure that must NOT
// trigger a fallback to the second model, since the same input is unlikely
// to parse any better there.
func isInvalidPlan(err error) bool {
	var ae *apperrors.Error
	return errors.As(err, &ae) && ae.Kind == apperrors.InvalidPlan
}

// Synthesize generates a QueryPlan for intent against schemas under sec.
// The caller is responsible for having already run ValidateIntent.
func (s *Synthesizer) Synthesize(ctx context.Context, intent string, schemas map[string]model.DatabaseSchema, sec model.SecurityContext) (model.QueryPlan, error) {
	prompt := buildPlanPrompt(intent, schemas, sec)
	params := DefaultGenerationParams()

	plan, err := s.synthesizeOneModel(ctx, s.models.Preferred, prompt, params)
	if err == nil {
		return plan, nil
	}

	if s.models.Fallback == "" || s.models.Fallback == s.models.Preferred {
		return model.QueryPlan{}, err
	}
	if isInvalidPlan(err) {
		return model.QueryPlan{}, err
	}

	log.Printf("[llm] preferred model %s failed (%v), falling back to %s", s.models.Preferred, err, s.models.Fallback)
	return s.synthesizeOneModel(ctx, s.models.Fallback, prompt, params)
}

// synthesizeOneModel runs the full per-model pipeline - invoke, strip the
// thought block, extract JSON, parse the plan - as a single retried unit, so
// a response that fails to parse is treated the same as an invocation
// failure for fallback purposes (spec.md §4.6 step 4: "on any other error,
// move to the next model"). Only a transport failure (isTransportError)
// consumes a backed-off retry against this same model; a response the model
// actually produced surfaces immediately so Synthesize can decide whether to
// fall back.
func (s *Synthesizer) synthesizeOneModel(ctx context.Context, modelID string, prompt string, params GenerationParams) (model.QueryPlan, error) {
	policy := s.policy
	policy.RetryOn = isTransportError

	return retry.Do(ctx, policy, func(ctx context.Context) (model.QueryPlan, error) {
		text, err := s.client.Generate(ctx, modelID, prompt, params)
		if err != nil {
			return model.QueryPlan{}, apperrors.New(apperrors.ModelTransport, "llm.Synthesizer.synthesizeOneModel", err)
		}

		text = stripThought(text)

		raw, err := ExtractJSON(text)
		if err != nil {
			return model.QueryPlan{}, apperrors.New(apperrors.InvalidJSON, "llm.Synthesizer.synthesizeOneModel", err)
		}

		return ParsePlan(raw)
	})
}

func stripThought(text string) string {
	if m := thoughtBlock.FindStringSubmatch(text); m != nil {
		log.Printf("[llm] model thought: %s", strings.TrimSpace(m[1]))
		return strings.TrimSpace(thoughtBlock.ReplaceAllString(text, ""))
	}
	return text
}
