package adapter

import (
	"context"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/dbrevel/queryplane/pkg/model"
)

func TestPostgres_ExecuteAppendsLimitWhenAbsent(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	rows := sqlmock.NewRows([]string{"id", "name"}).AddRow([]byte("1"), []byte("alice"))
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT id, name FROM users LIMIT 10000`)).WillReturnRows(rows)

	p := newPostgresWithQuerier(db)
	got, err := p.Execute(context.Background(), model.DatabaseQuery{SQL: "SELECT id, name FROM users"}, 0)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if len(got) != 1 || got[0]["name"] != "alice" {
		t.Errorf("got = %#v", got)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestPostgres_ExecuteRespectsExplicitLimit(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	rows := sqlmock.NewRows([]string{"id"}).AddRow([]byte("1"))
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT id FROM users LIMIT 5`)).WillReturnRows(rows)

	p := newPostgresWithQuerier(db)
	_, err = p.Execute(context.Background(), model.DatabaseQuery{SQL: "SELECT id FROM users LIMIT 5"}, 500)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestPostgres_HealthCheckOK(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()
	mock.ExpectPing()

	p := newPostgresWithQuerier(db)
	h := p.HealthCheck(context.Background())
	if !h.OK {
		t.Errorf("expected healthy, got err=%v", h.Err)
	}
}

func TestPostgres_HealthCheckRetriesThenFails(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()
	// one initial ping plus three retries
	mock.ExpectPing().WillReturnError(context.DeadlineExceeded)
	mock.ExpectPing().WillReturnError(context.DeadlineExceeded)
	mock.ExpectPing().WillReturnError(context.DeadlineExceeded)
	mock.ExpectPing().WillReturnError(context.DeadlineExceeded)

	p := newPostgresWithQuerier(db)
	h := p.HealthCheck(context.Background())
	if h.OK {
		t.Errorf("expected unhealthy after exhausting retries")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}
