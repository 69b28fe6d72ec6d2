package llm

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/dbrevel/queryplane/internal/apperrors"
	"github.com/dbrevel/queryplane/pkg/model"
	"github.com/dbrevel/queryplane/pkg/retry"
)

type scriptedClient struct {
	calls     []string
	responses map[string][]result
}

type result struct {
	text string
	err  error
}

func (s *scriptedClient) Generate(ctx context.Context, modelID string, prompt string, params GenerationParams) (string, error) {
	s.calls = append(s.calls, modelID)
	queue := s.responses[modelID]
	if len(queue) == 0 {
		return "", errors.New("scriptedClient: no more responses queued for " + modelID)
	}
	r := queue[0]
	s.responses[modelID] = queue[1:]
	return r.text, r.err
}

func fastPolicy() retry.Policy {
	return retry.Policy{MaxAttempts: 2, InitialDelay: time.Millisecond, MaxDelay: 5 * time.Millisecond}
}

func validPlanJSON() string {
	return `{"databases":["postgres"],"queries":[{"database":"postgres","query_type":"sql","query":"SELECT 1"}]}`
}

func TestSynthesizer_SucceedsOnPreferredModel(t *testing.T) {
	client := &scriptedClient{responses: map[string][]result{
		"preferred": {{text: validPlanJSON()}},
	}}
	s := NewSynthesizer(client, ModelIDs{Preferred: "preferred", Fallback: "fallback"}, fastPolicy())

	plan, err := s.Synthesize(context.Background(), "show all users", nil, model.SecurityContext{})
	if err != nil {
		t.Fatalf("Synthesize: %v", err)
	}
	if len(plan.Queries) != 1 {
		t.Errorf("plan = %#v", plan)
	}
	if len(client.calls) != 1 || client.calls[0] != "preferred" {
		t.Errorf("calls = %v; want only preferred", client.calls)
	}
}

func TestSynthesizer_FallsBackAfterTransportFailureExhaustsRetries(t *testing.T) {
	client := &scriptedClient{responses: map[string][]result{
		"preferred": {{err: errors.New("timeout")}, {err: errors.New("timeout")}, {err: errors.New("timeout")}},
		"fallback":  {{text: validPlanJSON()}},
	}}
	s := NewSynthesizer(client, ModelIDs{Preferred: "preferred", Fallback: "fallback"}, fastPolicy())

	plan, err := s.Synthesize(context.Background(), "show all users", nil, model.SecurityContext{})
	if err != nil {
		t.Fatalf("Synthesize: %v", err)
	}
	if len(plan.Queries) != 1 {
		t.Errorf("plan = %#v", plan)
	}
	if client.calls[len(client.calls)-1] != "fallback" {
		t.Errorf("expected final call against fallback model, calls = %v", client.calls)
	}
}

func TestSynthesizer_FallsBackOnUnparsableResponseFromPreferredModel(t *testing.T) {
	client := &scriptedClient{responses: map[string][]result{
		"preferred": {{text: "not json at all, sorry"}},
		"fallback":  {{text: validPlanJSON()}},
	}}
	s := NewSynthesizer(client, ModelIDs{Preferred: "preferred", Fallback: "fallback"}, fastPolicy())

	plan, err := s.Synthesize(context.Background(), "show all users", nil, model.SecurityContext{})
	if err != nil {
		t.Fatalf("Synthesize: %v", err)
	}
	if len(plan.Queries) != 1 {
		t.Errorf("plan = %#v", plan)
	}
	if client.calls[len(client.calls)-1] != "fallback" {
		t.Errorf("expected a response the preferred model produced but couldn't be parsed to still fall back, calls = %v", client.calls)
	}
}

func TestSynthesizer_DoesNotFallBackOnInvalidPlan(t *testing.T) {
	client := &scriptedClient{responses: map[string][]result{
		// Well-formed JSON, but missing "queries": a genuine InvalidPlan,
		// not an invocation or parse failure, so the fallback model must
		// never be consulted.
		"preferred": {{text: `{"databases":["postgres"]}`}},
	}}
	s := NewSynthesizer(client, ModelIDs{Preferred: "preferred", Fallback: "fallback"}, fastPolicy())

	_, err := s.Synthesize(context.Background(), "show all users", nil, model.SecurityContext{})
	if err == nil {
		t.Fatalf("expected error")
	}
	var ae *apperrors.Error
	if !errors.As(err, &ae) || ae.Kind != apperrors.InvalidPlan {
		t.Errorf("err = %v; want InvalidPlan", err)
	}
	for _, c := range client.calls {
		if c == "fallback" {
			t.Errorf("fallback model should not have been called for a genuine InvalidPlan failure")
		}
	}
}

func TestSynthesizer_StripsThoughtBlockBeforeParsing(t *testing.T) {
	text := "<thought>the user wants all active users</thought>\n" + validPlanJSON()
	client := &scriptedClient{responses: map[string][]result{"preferred": {{text: text}}}}
	s := NewSynthesizer(client, ModelIDs{Preferred: "preferred"}, fastPolicy())

	plan, err := s.Synthesize(context.Background(), "show all users", nil, model.SecurityContext{})
	if err != nil {
		t.Fatalf("Synthesize: %v", err)
	}
	if len(plan.Queries) != 1 {
		t.Errorf("plan = %#v", plan)
	}
}
