package repository

import (
	"context"
	"errors"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/mkarpov/otpvault/internal/vaulterr"
)

func setupMock(t *testing.T) (*PostgresKV, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to open sqlmock database: %v", err)
	}
	kv := NewPostgresKV(db)
	cleanup := func() {
		db.Close()
	}
	return kv, mock, cleanup
}

func TestGet_Found(t *testing.T) {
	kv, mock, cleanup := setupMock(t)
	defer cleanup()

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT value FROM kv_entries WHERE name = $1`)).
		WithArgs("totp_secrets").
		WillReturnRows(sqlmock.NewRows([]string{"value"}).AddRow(`[]`))

	value, found, err := kv.Get(context.Background(), "totp_secrets")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !found || value != `[]` {
		t.Errorf("got (%q, %v), want (%q, true)", value, found, `[]`)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unfulfilled expectations: %v", err)
	}
}

func TestGet_Absent(t *testing.T) {
	kv, mock, cleanup := setupMock(t)
	defer cleanup()

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT value FROM kv_entries WHERE name = $1`)).
		WithArgs("missing").
		WillReturnRows(sqlmock.NewRows([]string{"value"}))

	_, found, err := kv.Get(context.Background(), "missing")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if found {
		t.Error("expected found=false for absent key")
	}
}

func TestGet_Error(t *testing.T) {
	kv, mock, cleanup := setupMock(t)
	defer cleanup()

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT value FROM kv_entries`)).
		WillReturnError(errors.New("connection refused"))

	_, _, err := kv.Get(context.Background(), "x")
	if kind := vaulterr.KindOf(err); kind != vaulterr.KindStorage {
		t.Errorf("kind = %v (err %v), want storage", kind, err)
	}
}

func TestPut_Upsert(t *testing.T) {
	kv, mock, cleanup := setupMock(t)
	defer cleanup()

	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO kv_entries (name, value, updated_at)`)).
		WithArgs("backup_2026-01-02_03-04-05.json", `{"count":0}`).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := kv.Put(context.Background(), "backup_2026-01-02_03-04-05.json", `{"count":0}`)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unfulfilled expectations: %v", err)
	}
}

func TestDelete(t *testing.T) {
	kv, mock, cleanup := setupMock(t)
	defer cleanup()

	mock.ExpectExec(regexp.QuoteMeta(`DELETE FROM kv_entries WHERE name = $1`)).
		WithArgs("backup_old.json").
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := kv.Delete(context.Background(), "backup_old.json"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestList_PageWithCursor(t *testing.T) {
	kv, mock, cleanup := setupMock(t)
	defer cleanup()

	// Three rows returned for limit 2 means one more page exists.
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT name FROM kv_entries`)).
		WithArgs(`backup\_%`, "", 3).
		WillReturnRows(sqlmock.NewRows([]string{"name"}).
			AddRow("backup_2026-01-01_00-00-00.json").
			AddRow("backup_2026-01-02_00-00-00.json").
			AddRow("backup_2026-01-03_00-00-00.json"))

	page, err := kv.List(context.Background(), ListOptions{Prefix: "backup_", Limit: 2})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(page.Entries) != 2 {
		t.Fatalf("len(entries) = %d, want 2", len(page.Entries))
	}
	if page.Complete {
		t.Error("page should not be complete")
	}
	if page.Cursor != "backup_2026-01-02_00-00-00.json" {
		t.Errorf("cursor = %q", page.Cursor)
	}
}

func TestList_FinalPage(t *testing.T) {
	kv, mock, cleanup := setupMock(t)
	defer cleanup()

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT name FROM kv_entries`)).
		WithArgs(`backup\_%`, "backup_2026-01-02_00-00-00.json", 51).
		WillReturnRows(sqlmock.NewRows([]string{"name"}).
			AddRow("backup_2026-01-03_00-00-00.json"))

	page, err := kv.List(context.Background(), ListOptions{
		Prefix: "backup_",
		Cursor: "backup_2026-01-02_00-00-00.json",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !page.Complete {
		t.Error("final page should be complete")
	}
	if page.Cursor != "" {
		t.Errorf("cursor = %q, want empty", page.Cursor)
	}
}

func TestEscapeLike(t *testing.T) {
	if got := escapeLike("backup_"); got != `backup\_` {
		t.Errorf("escapeLike = %q", got)
	}
	if got := escapeLike(`100%\`); got != `100\%\\` {
		t.Errorf("escapeLike = %q", got)
	}
}
