package llm

import (
	"context"
	"log"

	"github.com/dbrevel/queryplane/internal/apperrors"
	"github.com/dbrevel/queryplane/pkg/model"
	"github.com/dbrevel/queryplane/pkg/retry"
)

// Severity mirrors gemini.py's validate_query severity levels.
type Severity string

const (
	SeverityLow    Severity = "low"
	SeverityMedium Severity = "medium"
	SeverityHigh   Severity = "high"
)

// Verdict is the structured result of a single query's security review.
type Verdict struct {
	Safe          bool
	Issues        []string
	Severity      Severity
	Suggestions   []string
	EstimatedCost string
}

// Validator implements the plan validator (spec.md §4.7), grounded on
// gemini.py's GeminiEngine.validate_query. It uses the same model pair and
// retry policy shape as the Synthesizer but fails CLOSED: any inability to
// obtain or parse a verdict is reported as unsafe rather than silently
// passed through.
type Validator struct {
	client Client
	models ModelIDs
	policy retry.Policy
}

func NewValidator(client Client, models ModelIDs, policy retry.Policy) *Validator {
	return &Validator{client: client, models: models, policy: policy}
}

// failClosedVerdict is returned whenever the model response can't be
// obtained or parsed, matching gemini.py's except-clause fallback of
// {"safe": False, "issues": [...], "severity": "high"}.
func failClosedVerdict(reason string) Verdict {
	return Verdict{
		Safe:     false,
		Issues:   []string{"failed to parse validation response: " + reason},
		Severity: SeverityHigh,
	}
}

// Validate reviews a single query against its owning schema.
func (v *Validator) Validate(ctx context.Context, query model.DatabaseQuery, schema model.DatabaseSchema) Verdict {
	prompt := buildValidationPrompt(query, schema)
	params := DefaultGenerationParams()

	verdict, err := v.validateOneModel(ctx, v.models.Preferred, prompt, params)
	if err == nil {
		return verdict
	}

	if v.models.Fallback != "" && v.models.Fallback != v.models.Preferred {
		log.Printf("[llm] preferred model %s failed validation call (%v), falling back to %s", v.models.Preferred, err, v.models.Fallback)
		verdict, err = v.validateOneModel(ctx, v.models.Fallback, prompt, params)
		if err == nil {
			return verdict
		}
	}

	log.Printf("[llm] validation request failed, failing closed: %v", err)
	return failClosedVerdict(err.Error())
}

// validateOneModel runs the full per-model pipeline - invoke, strip the
// thought block, extract JSON, parse the verdict - as a single retried unit,
// mirroring Synthesizer.synthesizeOneModel: only a transport failure
// consumes a backed-off retry against this model, and an unparsable
// response is fallback-eligible rather than silently adopted as the final
// verdict. Unlike plan synthesis there is no InvalidPlan-equivalent
// "don't bother falling back" kind for a verdict - any parse failure is
// worth a second opinion from the fallback model before failing closed.
func (v *Validator) validateOneModel(ctx context.Context, modelID string, prompt string, params GenerationParams) (Verdict, error) {
	policy := v.policy
	policy.RetryOn = isTransportError

	return retry.Do(ctx, policy, func(ctx context.Context) (Verdict, error) {
		text, err := v.client.Generate(ctx, modelID, prompt, params)
		if err != nil {
			return Verdict{}, apperrors.New(apperrors.ModelTransport, "llm.Validator.validateOneModel", err)
		}

		text = stripThought(text)

		raw, err := ExtractJSON(text)
		if err != nil {
			return Verdict{}, apperrors.New(apperrors.InvalidJSON, "llm.Validator.validateOneModel", err)
		}

		return parseVerdict(raw), nil
	})
}

func parseVerdict(raw map[string]any) Verdict {
	v := Verdict{Severity: SeverityMedium}

	if safe, ok := raw["safe"].(bool); ok {
		v.Safe = safe
	}
	if sev, ok := raw["severity"].(string); ok {
		v.Severity = Severity(sev)
	}
	if cost, ok := raw["estimated_cost"].(string); ok {
		v.EstimatedCost = cost
	}
	v.Issues = stringListOr(raw["issues"])
	v.Suggestions = stringListOr(raw["suggestions"])

	return v
}

func stringListOr(v any) []string {
	list, ok := v.([]any)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(list))
	for _, e := range list {
		if s, ok := e.(string); ok {
			out = append(out, s)
		}
	}
	return out
}
