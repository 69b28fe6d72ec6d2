package llm

import (
	"fmt"
	"strings"

	"github.com/dbrevel/queryplane/internal/apperrors"
	"github.com/dbrevel/queryplane/pkg/model"
)

// mongoOperators are substrings that, found inside a string-shaped query
// body, indicate a Mongo aggregation/operator expression rather than SQL —
// used by the kind-inference cascade's fourth rule.
var mongoOperators = []string{"$match", "$group", "$project", "$lookup", "$unwind", "$sort", "$limit", "$where"}

// ParsePlan converts the raw JSON object extracted from a model response
// into a model.QueryPlan, running the exact query-kind normalization
// cascade gemini.py's generate_query_plan applies to each query entry
// before constructing QueryPlan(**plan_data):
//
//  1. an explicit query_type of mongodb/cross-db/cross_db/sql is honored as-is
//  2. an explicit query_type of aggregation/mongo/nosql is mapped to mongodb
//  3. a list-shaped query body is treated as mongodb
//  4. a string query body containing a Mongo operator substring is mongodb
//  5. a database name of "mongodb" or a "postgres*" prefix decides the kind
//  6. otherwise, the query body's shape (list vs string) decides the kind
func ParsePlan(raw map[string]any) (model.QueryPlan, error) {
	databases, err := stringSlice(raw["databases"])
	if err != nil {
		return model.QueryPlan{}, apperrors.New(apperrors.InvalidPlan, "llm.ParsePlan", fmt.Errorf("databases: %w", err))
	}

	rawQueries, ok := raw["queries"].([]any)
	if !ok {
		return model.QueryPlan{}, apperrors.New(apperrors.InvalidPlan, "llm.ParsePlan", fmt.Errorf("queries must be an array"))
	}

	queries := make([]model.DatabaseQuery, 0, len(rawQueries))
	for i, rq := range rawQueries {
		obj, ok := rq.(map[string]any)
		if !ok {
			return model.QueryPlan{}, apperrors.New(apperrors.InvalidPlan, "llm.ParsePlan", fmt.Errorf("queries[%d] is not an object", i))
		}
		q, err := parseQuery(obj)
		if err != nil {
			return model.QueryPlan{}, apperrors.New(apperrors.InvalidPlan, "llm.ParsePlan", fmt.Errorf("queries[%d]: %w", i, err))
		}
		queries = append(queries, q)
	}

	plan := model.QueryPlan{Databases: databases, Queries: queries}
	if err := plan.Validate(); err != nil {
		return model.QueryPlan{}, apperrors.New(apperrors.InvalidPlan, "llm.ParsePlan", err)
	}
	return plan, nil
}

func parseQuery(obj map[string]any) (model.DatabaseQuery, error) {
	database, _ := obj["database"].(string)

	q := model.DatabaseQuery{
		Database:   database,
		Collection: stringOr(obj["collection"], ""),
	}

	if params, ok := obj["parameters"].([]any); ok {
		q.Parameters = params
	}

	queryValue := obj["query"]
	if queryValue == nil {
		queryValue = obj["sql"]
	}

	explicitType, _ := obj["query_type"].(string)
	q.Kind = inferKind(explicitType, database, queryValue)

	switch q.Kind {
	case model.KindDocument:
		pipeline, err := toPipeline(queryValue)
		if err != nil {
			return model.DatabaseQuery{}, err
		}
		q.Pipeline = pipeline
	default:
		if s, ok := queryValue.(string); ok {
			q.SQL = s
		}
	}

	return q, nil
}

// inferKind runs the cascade described on ParsePlan.
func inferKind(explicitType, database string, queryValue any) model.DatabaseKind {
	switch strings.ToLower(explicitType) {
	case "mongodb":
		return model.KindDocument
	case "cross-db", "cross_db":
		return model.KindCross
	case "sql":
		return model.KindRelational
	case "aggregation", "mongo", "nosql":
		return model.KindDocument
	}

	if _, isList := queryValue.([]any); isList {
		return model.KindDocument
	}

	if s, ok := queryValue.(string); ok {
		for _, op := range mongoOperators {
			if strings.Contains(s, op) {
				return model.KindDocument
			}
		}
	}

	lowerDB := strings.ToLower(database)
	if lowerDB == "mongodb" {
		return model.KindDocument
	}
	if strings.HasPrefix(lowerDB, "postgres") {
		return model.KindRelational
	}

	// Final shape-based fallback: a string body with no Mongo-operator
	// substring and no recognizable database name is assumed to be SQL.
	return model.KindRelational
}

func toPipeline(queryValue any) ([]map[string]any, error) {
	list, ok := queryValue.([]any)
	if !ok {
		return nil, fmt.Errorf("mongodb query must be a list of pipeline stages")
	}
	out := make([]map[string]any, 0, len(list))
	for i, stage := range list {
		m, ok := stage.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("pipeline stage %d is not an object", i)
		}
		out = append(out, m)
	}
	return out, nil
}

func stringSlice(v any) ([]string, error) {
	list, ok := v.([]any)
	if !ok {
		return nil, fmt.Errorf("expected an array")
	}
	out := make([]string, 0, len(list))
	for _, e := range list {
		s, ok := e.(string)
		if !ok {
			return nil, fmt.Errorf("expected an array of strings")
		}
		out = append(out, s)
	}
	return out, nil
}

func stringOr(v any, def string) string {
	if s, ok := v.(string); ok {
		return s
	}
	return def
}
