package pg

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jackc/pgx/v5/pgconn"

	"docket.org/internal/registry"
)

func letterRows() *sqlmock.Rows {
	return sqlmock.NewRows([]string{
		"id", "ref_no", "direction", "status", "confidentiality",
		"date_received", "date_on_letter",
		"sender_name", "sender_org", "recipient_department",
		"subject", "summary", "category", "tags",
		"file_bucket", "file_path", "file_name", "mime_type",
		"created_by", "created_at", "updated_at",
	})
}

func TestLetterInsertConflict(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	mock.ExpectExec("insert into letters").
		WillReturnError(&pgconn.PgError{Code: pgErrUniqueViolation})

	store := NewWithDB(db).Letters()
	l := registry.Letter{
		ID:              "l-1",
		RefNo:           "PROC/IN/2026/0001",
		Direction:       registry.DirectionIncoming,
		Status:          registry.StatusReceived,
		Confidentiality: registry.ConfidentialityPublic,
		DateReceived:    time.Now(),
		SenderName:      "Vendor LLC",
		Subject:         "Invoice",
		CreatedBy:       "u-1",
		CreatedAt:       time.Now(),
		UpdatedAt:       time.Now(),
	}
	if err := store.Insert(context.Background(), &l); !errors.Is(err, registry.ErrConflict) {
		t.Fatalf("Insert: expected ErrConflict, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestLetterFindNotFound(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	mock.ExpectQuery("select (.+) from letters where id").
		WithArgs("missing").
		WillReturnRows(letterRows())

	store := NewWithDB(db).Letters()
	if _, err := store.Find(context.Background(), "missing"); !errors.Is(err, registry.ErrNotFound) {
		t.Fatalf("Find: expected ErrNotFound, got %v", err)
	}
}

func TestLetterFindScansTags(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	now := time.Now()
	rows := letterRows().AddRow(
		"l-1", "PROC/IN/2026/0007", "INCOMING", "RECEIVED", "INTERNAL",
		now, nil,
		"Vendor LLC", "", "procurement",
		"Invoice", "", "invoices", []byte(`["urgent","q3"]`),
		"", "", "", "",
		"u-1", now, now,
	)
	mock.ExpectQuery("select (.+) from letters where id").
		WithArgs("l-1").
		WillReturnRows(rows)

	store := NewWithDB(db).Letters()
	l, err := store.Find(context.Background(), "l-1")
	if err != nil {
		t.Fatalf("Find: %v", err)
	}
	if l.Confidentiality != registry.ConfidentialityInternal {
		t.Fatalf("confidentiality = %q", l.Confidentiality)
	}
	if len(l.Tags) != 2 || l.Tags[0] != "urgent" {
		t.Fatalf("tags = %v", l.Tags)
	}
}

func TestLetterUpdateDynamicSet(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	status := registry.StatusArchived
	subject := "Amended invoice"

	mock.ExpectExec("update letters set status = \\$1, subject = \\$2, updated_at = now").
		WithArgs("ARCHIVED", "Amended invoice", "l-1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	now := time.Now()
	mock.ExpectQuery("select (.+) from letters where id").
		WithArgs("l-1").
		WillReturnRows(letterRows().AddRow(
			"l-1", "PROC/IN/2026/0007", "INCOMING", "ARCHIVED", "PUBLIC",
			now, nil,
			"Vendor LLC", "", "",
			"Amended invoice", "", "", []byte(`[]`),
			"", "", "", "",
			"u-1", now, now,
		))

	store := NewWithDB(db).Letters()
	l, err := store.Update(context.Background(), "l-1", registry.Patch{Status: &status, Subject: &subject})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if l.Status != registry.StatusArchived {
		t.Fatalf("status = %q", l.Status)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestLetterListBuildsFilters(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	mock.ExpectQuery("select (.+) from letters where direction = \\$1 and \\(subject ilike \\$2").
		WithArgs("INCOMING", "%invoice%", 50).
		WillReturnRows(letterRows())

	store := NewWithDB(db).Letters()
	_, err = store.List(context.Background(), registry.Filter{
		Direction: registry.DirectionIncoming,
		Query:     "invoice",
		Limit:     50,
	})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestRefNosWithPrefix(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	mock.ExpectQuery("select ref_no from letters where ref_no like").
		WithArgs("PROC/IN/2026/").
		WillReturnRows(sqlmock.NewRows([]string{"ref_no"}).
			AddRow("PROC/IN/2026/0001").
			AddRow("PROC/IN/2026/0002"))

	store := NewWithDB(db).Letters()
	refs, err := store.RefNosWithPrefix(context.Background(), "PROC/IN/2026/")
	if err != nil {
		t.Fatalf("RefNosWithPrefix: %v", err)
	}
	if len(refs) != 2 {
		t.Fatalf("refs = %v", refs)
	}
}
