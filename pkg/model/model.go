// Package model holds the data types shared across the query orchestration
// pipeline: account/project configuration, database schemas, security
// context, query plans, and results.
package model

import "time"

// ModelMode selects how an account's LLM credentials are sourced.
type ModelMode string

const (
	ModelModePlatform ModelMode = "platform"
	ModelModeBYO      ModelMode = "byo"
)

// Account is the billing/tenancy root. It owns model credentials only; database
// URLs live on the Project (see Project below).
type Account struct {
	ID        string
	Name      string
	ModelMode ModelMode
	ModelKey  string // required when ModelMode == ModelModeBYO
}

// Project is the per-tenant record holding database credentials and the
// opaque key used to resolve it from an inbound request.
type Project struct {
	ID            string
	AccountID     string
	Name          string
	Key           string
	RelationalURL string // encrypted at rest
	DocumentURL   string // encrypted at rest
}

// AccountConfig is the resolved, joined view of a Project and its parent
// Account that the rest of the pipeline operates on. It corresponds to
// spec.md's AccountConfig entity.
type AccountConfig struct {
	ID            string
	Name          string
	Key           string
	RelationalURL string
	DocumentURL   string
	ModelMode     ModelMode
	ModelKey      string
}

// Validate enforces the AccountConfig invariant: BYO mode requires a model key.
func (a AccountConfig) Validate() error {
	if a.ModelMode == ModelModeBYO && a.ModelKey == "" {
		return errMissingModelKey
	}
	return nil
}

// DatabaseKind tags which adapter family a schema or query targets.
type DatabaseKind string

const (
	KindRelational DatabaseKind = "relational"
	KindDocument   DatabaseKind = "document"
	KindCross      DatabaseKind = "cross"
)

// Fixed adapter name keys, per spec.md §4.4.
const (
	AdapterPostgres = "postgres"
	AdapterMongo    = "mongodb"
)

// ColumnSchema describes one relational column.
type ColumnSchema struct {
	Name       string
	Type       string
	Nullable   bool
	IsPrimary  bool
	ForeignKey string // "table.column", empty if none
}

// TableSchema describes one relational table.
type TableSchema struct {
	Name     string
	Columns  []ColumnSchema
	Indexes  []string
	RowCount *int64 // nil if unknown
}

// Relationship is a foreign-key edge between two qualified columns.
type Relationship struct {
	From string // "table.column"
	To   string // "table.column"
}

// FieldSchema describes one inferred document field.
type FieldSchema struct {
	TypeName string
	Nullable bool
	Examples []string // up to 3, each truncated to 50 chars
}

// CollectionSchema describes one document collection.
type CollectionSchema struct {
	Fields  map[string]FieldSchema
	Count   int64
	Indexes []string
}

// DatabaseSchema is a tagged variant over relational and document schemas.
type DatabaseSchema struct {
	Kind DatabaseKind
	Name string

	// Relational fields.
	Tables        map[string]TableSchema
	Relationships []Relationship

	// Document fields.
	Collections map[string]CollectionSchema
}

// SecurityContext carries the caller's identity and the row/field policy to
// enforce over a request.
type SecurityContext struct {
	UserID      string
	Role        string
	AccountID   string
	Permissions map[string]struct{}
	RowFilters  map[string]map[string]any // table -> column -> value
	FieldMasks  map[string][]string       // table -> fields
}

// HasPermission reports whether the permission set contains name.
func (s SecurityContext) HasPermission(name string) bool {
	_, ok := s.Permissions[name]
	return ok
}

// DatabaseQuery is one sub-query of a QueryPlan.
type DatabaseQuery struct {
	Database      string
	Kind          DatabaseKind
	SQL           string           // set when Kind == KindRelational
	Pipeline      []map[string]any // set when Kind == KindDocument
	Parameters    []any
	Collection    string // required when Kind == KindDocument
	EstimatedRows *int
}

// Validate enforces the DatabaseQuery invariant from spec.md §3.
func (q DatabaseQuery) Validate() error {
	switch q.Kind {
	case KindDocument:
		if q.Collection == "" {
			return errMissingCollection
		}
	case KindRelational:
		if q.SQL == "" {
			return errMissingSQLBody
		}
	}
	return nil
}

// QueryPlan is the model-synthesized description of what to run where.
type QueryPlan struct {
	Databases []string
	Queries   []DatabaseQuery
}

// Validate enforces invariant 1 from spec.md §8: every query's database must
// appear in Databases, and Databases must be non-empty.
func (p QueryPlan) Validate() error {
	if len(p.Databases) == 0 {
		return errEmptyDatabases
	}
	allowed := make(map[string]struct{}, len(p.Databases))
	for _, d := range p.Databases {
		allowed[d] = struct{}{}
	}
	for _, q := range p.Queries {
		if _, ok := allowed[q.Database]; !ok {
			return errQueryDatabaseNotDeclared
		}
		if err := q.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// Record is one row of a QueryResult, keyed by projected column/field name.
type Record map[string]any

// QueryMetadata describes how a QueryResult was produced.
type QueryMetadata struct {
	Plan            QueryPlan
	ExecutionTimeMS float64
	RowsReturned    int
	TraceID         string
	Timestamp       time.Time
}

// QueryResult is the unified tabular response returned to the caller.
type QueryResult struct {
	Data     []Record
	Metadata QueryMetadata
}

// QueryRequest is the inbound request the core operates on. Intent validation
// lives in llm.ValidateIntent; the HTTP/transport layer that parses this is
// out of scope (spec.md §1).
type QueryRequest struct {
	Intent         string
	Context        map[string]any
	DryRun         bool
	SkipValidation bool
}
