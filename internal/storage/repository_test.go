package storage

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"

	"ttseval/internal/items"
)

func TestAnnotationRepositoryPut(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	repo := NewAnnotationRepository(db)
	repo.now = func() time.Time { return now }

	mock.ExpectExec("INSERT INTO annotations").
		WithArgs("Male", "T-0001", []byte(`{"Notes":"ok"}`), now).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err = repo.Put(context.Background(), "Male", "T-0001", items.Annotation{"Notes": "ok"})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAnnotationRepositoryGet(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := NewAnnotationRepository(db)

	rows := sqlmock.NewRows([]string{"payload"}).AddRow([]byte(`{"Naturalness":"4"}`))
	mock.ExpectQuery("SELECT payload").
		WithArgs("Female", "T-0002").
		WillReturnRows(rows)

	ann, err := repo.Get(context.Background(), "Female", "T-0002")
	require.NoError(t, err)
	require.Equal(t, items.Annotation{"Naturalness": "4"}, ann)

	mock.ExpectQuery("SELECT payload").
		WithArgs("Female", "T-0003").
		WillReturnError(sql.ErrNoRows)

	_, err = repo.Get(context.Background(), "Female", "T-0003")
	require.ErrorIs(t, err, items.ErrNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAnnotationRepositoryExistsAndSheets(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := NewAnnotationRepository(db)

	mock.ExpectQuery("SELECT EXISTS").
		WithArgs("Male", "T-0001").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))
	mock.ExpectQuery("SELECT DISTINCT sheet_name").
		WillReturnRows(sqlmock.NewRows([]string{"sheet_name"}).AddRow("Female").AddRow("Male"))

	exists, err := repo.Exists(context.Background(), "Male", "T-0001")
	require.NoError(t, err)
	require.True(t, exists)

	names, err := repo.Sheets(context.Background())
	require.NoError(t, err)
	require.Equal(t, []string{"Female", "Male"}, names)
	require.NoError(t, mock.ExpectationsWereMet())
}
