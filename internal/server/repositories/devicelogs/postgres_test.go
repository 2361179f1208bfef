package devicelogs

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/dmitrijs2005/palletkeeper/internal/server/models"
)

func newRepoWithMock(t *testing.T) (*PostgresRepository, sqlmock.Sqlmock, *sql.DB) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("sqlmock.New error: %v", err)
	}
	return NewPostgresRepository(db), mock, db
}

var (
	ts1     = time.Date(2025, 3, 1, 8, 0, 0, 0, time.UTC)
	ts2     = ts1.Add(time.Minute)
	logCols = []string{"id", "created_at", "message", "device_ip", "level"}
)

func TestCreate_Success(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	q := `(?s)INSERT\s+INTO\s+device_logs\s*\(message,\s*device_ip,\s*level\)\s*VALUES\s*\(\$1,\s*\$2,\s*\$3\)\s*RETURNING\s+id,\s*created_at`

	mock.ExpectQuery(q).
		WithArgs("reader 3 offline", "10.0.0.9", "WARN").
		WillReturnRows(sqlmock.NewRows([]string{"id", "created_at"}).AddRow(int64(5), ts1))

	l := &models.DeviceLog{Message: "reader 3 offline", DeviceIP: "10.0.0.9", Level: "WARN"}
	if err := repo.Create(context.Background(), l); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if l.ID != 5 || !l.Timestamp.Equal(ts1) {
		t.Fatalf("unexpected log: %+v", l)
	}
}

func TestCreate_DBError(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectQuery(`INSERT\s+INTO\s+device_logs`).WillReturnError(errors.New("db down"))

	err := repo.Create(context.Background(), &models.DeviceLog{Message: "m"})
	if err == nil || !regexp.MustCompile(`db error: .*db down`).MatchString(err.Error()) {
		t.Fatalf("expected wrapped db error, got %v", err)
	}
}

func TestList_AllLevels(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	q := `(?s)SELECT id, created_at, message, device_ip, level FROM device_logs\s+ORDER BY created_at DESC, id DESC LIMIT \$1`

	rows := sqlmock.NewRows(logCols).
		AddRow(int64(2), ts2, "pallet P-17 moved", "10.0.0.4", "INFO").
		AddRow(int64(1), ts1, "reader 3 offline", "10.0.0.9", "WARN")

	mock.ExpectQuery(q).WithArgs(100).WillReturnRows(rows)

	got, err := repo.List(context.Background(), 100, "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 2 || got[0].ID != 2 || got[1].Level != "WARN" {
		t.Fatalf("unexpected rows: %+v", got)
	}
}

func TestList_ByLevel(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	q := `(?s)FROM device_logs\s+WHERE level=\$1 ORDER BY created_at DESC, id DESC LIMIT \$2`

	mock.ExpectQuery(q).WithArgs("WARN", 10).
		WillReturnRows(sqlmock.NewRows(logCols).AddRow(int64(1), ts1, "reader 3 offline", "10.0.0.9", "WARN"))

	got, err := repo.List(context.Background(), 10, "WARN")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("want 1 row, got %d", len(got))
	}
}

func TestList_QueryError(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectQuery(`FROM device_logs`).WillReturnError(errors.New("db err"))

	_, err := repo.List(context.Background(), 10, "")
	if err == nil || !regexp.MustCompile(`failed to select device logs: .*db err`).MatchString(err.Error()) {
		t.Fatalf("expected wrapped select error, got %v", err)
	}
}

func TestList_RowsErr(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	rows := sqlmock.NewRows(logCols).
		AddRow(int64(2), ts2, "a", "", "INFO").
		AddRow(int64(1), ts1, "b", "", "INFO").
		RowError(1, errors.New("row-err"))

	mock.ExpectQuery(`FROM device_logs`).WillReturnRows(rows)

	_, err := repo.List(context.Background(), 10, "")
	if err == nil || err.Error() != "row-err" {
		t.Fatalf("expected rows.Err 'row-err', got %v", err)
	}
}

func TestStats(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM device_logs`).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(int64(3)))
	mock.ExpectQuery(`SELECT level, COUNT\(\*\) FROM device_logs GROUP BY level`).
		WillReturnRows(sqlmock.NewRows([]string{"level", "count"}).AddRow("INFO", int64(2)).AddRow("WARN", int64(1)))
	mock.ExpectQuery(`FROM device_logs ORDER BY created_at DESC, id DESC LIMIT 1`).
		WillReturnRows(sqlmock.NewRows(logCols).AddRow(int64(3), ts2, "last", "10.0.0.4", "INFO"))

	got, err := repo.Stats(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Total != 3 || got.ByLevel["INFO"] != 2 || got.ByLevel["WARN"] != 1 {
		t.Fatalf("unexpected stats: %+v", got)
	}
	if got.Last == nil || got.Last.Message != "last" {
		t.Fatalf("unexpected last log: %+v", got.Last)
	}
}

func TestStats_Empty(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM device_logs`).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(int64(0)))
	mock.ExpectQuery(`GROUP BY level`).
		WillReturnRows(sqlmock.NewRows([]string{"level", "count"}))
	mock.ExpectQuery(`LIMIT 1`).WillReturnError(sql.ErrNoRows)

	got, err := repo.Stats(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Total != 0 || len(got.ByLevel) != 0 || got.Last != nil {
		t.Fatalf("unexpected stats: %+v", got)
	}
}

func TestClear(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectExec(`DELETE FROM device_logs`).WillReturnResult(sqlmock.NewResult(0, 4))

	n, err := repo.Clear(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n != 4 {
		t.Fatalf("want 4 deleted, got %d", n)
	}

	mock.ExpectExec(`DELETE FROM device_logs`).WillReturnResult(sqlmock.NewErrorResult(errors.New("ra")))
	if _, err := repo.Clear(context.Background()); err == nil {
		t.Fatalf("expected rows affected error")
	}
}
