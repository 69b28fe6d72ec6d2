package model

import "errors"

var (
	errMissingModelKey          = errors.New("model: byo mode requires a model key")
	errMissingCollection        = errors.New("model: document query requires a collection")
	errMissingSQLBody           = errors.New("model: relational query requires a sql body")
	errEmptyDatabases           = errors.New("model: plan must declare at least one database")
	errQueryDatabaseNotDeclared = errors.New("model: query references a database not in plan.databases")
)
