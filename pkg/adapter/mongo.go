package adapter

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/dbrevel/queryplane/internal/apperrors"
	"github.com/dbrevel/queryplane/pkg/model"
)

// validCollectionName matches mongodb.py's VALID_COLLECTION_NAME regex
// exactly: letters/underscore first, then letters/digits/underscore.
var validCollectionName = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// validateCollectionName rejects the same shapes mongodb.py's
// _validate_collection_name does: empty, system.-prefixed, containing NUL or
// '$', or not matching the identifier pattern.
func validateCollectionName(name string) error {
	if name == "" {
		return apperrors.New(apperrors.InvalidCollectionName, "adapter.Mongo", fmt.Errorf("collection name is empty"))
	}
	if strings.HasPrefix(name, "system.") {
		return apperrors.New(apperrors.InvalidCollectionName, "adapter.Mongo", fmt.Errorf("collection name %q uses the reserved system. prefix", name))
	}
	if strings.ContainsRune(name, 0) || strings.ContainsRune(name, '$') {
		return apperrors.New(apperrors.InvalidCollectionName, "adapter.Mongo", fmt.Errorf("collection name %q contains an illegal character", name))
	}
	if !validCollectionName.MatchString(name) {
		return apperrors.New(apperrors.InvalidCollectionName, "adapter.Mongo", fmt.Errorf("collection name %q doesn't match ^[A-Za-z_][A-Za-z0-9_]*$", name))
	}
	return nil
}

// Document is the document-store adapter (spec.md §4.3), grounded on
// mongodb.py's introspect_schema/execute/health_check and brought into Go
// idiom via go.mongodb.org/mongo-driver — a fresh domain dependency the
// teacher never uses, since burrowctl has no document-database concern.
type Document struct {
	client   *mongo.Client
	database string
	name     string

	schemaOnce sync.Once
	schema     model.DatabaseSchema
	schemaErr  error
}

// OpenDocument connects with the pool shape DefaultMongoPoolConfig
// describes: bounded pool size, server-selection/connect timeouts, and
// retryable reads/writes enabled.
func OpenDocument(uri, database string, cfg PoolConfig) (*Document, error) {
	clientOpts := options.Client().
		ApplyURI(uri).
		SetMaxPoolSize(uint64(cfg.MaxConns)).
		SetMinPoolSize(uint64(cfg.MinConns)).
		SetServerSelectionTimeout(cfg.ConnectTimeout).
		SetConnectTimeout(cfg.ConnectTimeout).
		SetSocketTimeout(cfg.CommandTimeout).
		SetMaxConnIdleTime(cfg.ConnMaxIdle).
		SetRetryReads(true).
		SetRetryWrites(true)

	ctx, cancel := context.WithTimeout(context.Background(), cfg.ConnectTimeout)
	defer cancel()

	client, err := mongo.Connect(ctx, clientOpts)
	if err != nil {
		return nil, apperrors.New(apperrors.ConnectionLost, "adapter.OpenDocument", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(ctx)
		return nil, apperrors.New(apperrors.ConnectionLost, "adapter.OpenDocument", err)
	}

	return &Document{client: client, database: database, name: model.AdapterMongo}, nil
}

func (d *Document) Name() string { return d.name }

// sampleSize caps schema introspection at up to 50 documents per collection
// to infer field shapes.
const sampleSize = 50

// maxFieldExamples and exampleTruncateLen match mongodb.py: up to 3 examples
// per field, each truncated to 50 characters.
const (
	maxFieldExamples  = 3
	exampleTruncateLen = 50
)

func (d *Document) IntrospectSchema(ctx context.Context) (model.DatabaseSchema, error) {
	d.schemaOnce.Do(func() {
		d.schema, d.schemaErr = d.introspect(ctx)
	})
	return d.schema, d.schemaErr
}

func (d *Document) introspect(ctx context.Context) (model.DatabaseSchema, error) {
	db := d.client.Database(d.database)

	names, err := db.ListCollectionNames(ctx, bson.D{})
	if err != nil {
		return model.DatabaseSchema{}, apperrors.New(apperrors.SchemaIntrospectionError, "adapter.Document.IntrospectSchema", err)
	}

	collections := make(map[string]model.CollectionSchema, len(names))
	for _, name := range names {
		coll := db.Collection(name)

		cur, err := coll.Find(ctx, bson.D{}, options.Find().SetLimit(sampleSize))
		if err != nil {
			return model.DatabaseSchema{}, apperrors.New(apperrors.SchemaIntrospectionError, "adapter.Document.IntrospectSchema", err)
		}

		fields := make(map[string]model.FieldSchema)
		for cur.Next(ctx) {
			var doc bson.M
			if err := cur.Decode(&doc); err != nil {
				cur.Close(ctx)
				return model.DatabaseSchema{}, apperrors.New(apperrors.SchemaIntrospectionError, "adapter.Document.IntrospectSchema", err)
			}
			mergeFieldSamples(fields, doc)
		}
		cur.Close(ctx)

		count, err := coll.CountDocuments(ctx, bson.D{})
		if err != nil {
			count = 0
		}

		idx, err := collectionIndexNames(ctx, coll)
		if err != nil {
			idx = nil
		}

		collections[name] = model.CollectionSchema{Fields: fields, Count: count, Indexes: idx}
	}

	return model.DatabaseSchema{
		Kind:        model.KindDocument,
		Name:        d.name,
		Collections: collections,
	}, nil
}

func mergeFieldSamples(fields map[string]model.FieldSchema, doc bson.M) {
	for k, v := range doc {
		f := fields[k]
		f.TypeName = bsonTypeName(v)
		if len(f.Examples) < maxFieldExamples {
			ex := truncateExample(fmt.Sprintf("%v", v))
			if !containsString(f.Examples, ex) {
				f.Examples = append(f.Examples, ex)
			}
		}
		fields[k] = f
	}
}

func containsString(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

func truncateExample(s string) string {
	if len(s) > exampleTruncateLen {
		return s[:exampleTruncateLen]
	}
	return s
}

func bsonTypeName(v any) string {
	switch v.(type) {
	case nil:
		return "null"
	case bool:
		return "bool"
	case int32, int64, int:
		return "int"
	case float64:
		return "float"
	case string:
		return "string"
	case bson.M, map[string]any:
		return "object"
	case bson.A, []any:
		return "array"
	default:
		return fmt.Sprintf("%T", v)
	}
}

func collectionIndexNames(ctx context.Context, coll *mongo.Collection) ([]string, error) {
	cur, err := coll.Indexes().List(ctx)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var names []string
	for cur.Next(ctx) {
		var idx bson.M
		if err := cur.Decode(&idx); err != nil {
			continue
		}
		if name, ok := idx["name"].(string); ok {
			names = append(names, name)
		}
	}
	return names, cur.Err()
}

// Execute runs an aggregation pipeline against query.Collection, appending a
// $limit stage when the pipeline doesn't already declare one (mirroring
// mongodb.py's execute), and converting _id values to string per document.
func (d *Document) Execute(ctx context.Context, query model.DatabaseQuery, maxDocs int) ([]model.Record, error) {
	if err := validateCollectionName(query.Collection); err != nil {
		return nil, err
	}
	if maxDocs <= 0 {
		maxDocs = defaultMaxRows
	}

	pipeline := appendLimitStage(query.Pipeline, maxDocs)

	bsonPipeline := make(mongo.Pipeline, 0, len(pipeline))
	for _, stage := range pipeline {
		bsonPipeline = append(bsonPipeline, bson.D(toBSOND(stage)))
	}

	coll := d.client.Database(d.database).Collection(query.Collection)
	cur, err := coll.Aggregate(ctx, bsonPipeline)
	if err != nil {
		return nil, apperrors.New(apperrors.ConnectionLost, "adapter.Document.Execute", err)
	}
	defer cur.Close(ctx)

	var records []model.Record
	for cur.Next(ctx) {
		var doc bson.M
		if err := cur.Decode(&doc); err != nil {
			return nil, apperrors.New(apperrors.ConnectionLost, "adapter.Document.Execute", err)
		}
		if id, ok := doc["_id"]; ok {
			doc["_id"] = fmt.Sprintf("%v", id)
		}
		records = append(records, model.Record(doc))
	}
	return records, cur.Err()
}

func appendLimitStage(pipeline []map[string]any, maxDocs int) []map[string]any {
	for _, stage := range pipeline {
		if _, ok := stage["$limit"]; ok {
			return pipeline
		}
	}
	out := make([]map[string]any, len(pipeline), len(pipeline)+1)
	copy(out, pipeline)
	return append(out, map[string]any{"$limit": maxDocs})
}

func toBSOND(m map[string]any) bson.D {
	d := make(bson.D, 0, len(m))
	for k, v := range m {
		d = append(d, bson.E{Key: k, Value: v})
	}
	return d
}

func (d *Document) HealthCheck(ctx context.Context) Health {
	start := time.Now()
	err := d.client.Ping(ctx, nil)
	return Health{OK: err == nil, Latency: time.Since(start), Err: err}
}

func (d *Document) Close(ctx context.Context) error {
	return d.client.Disconnect(ctx)
}
