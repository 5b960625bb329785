package repository

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sma-timetable/internal/models"
)

func newRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func TestSchoolRepositoryFindByUsername(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewSchoolRepository(db)

	start, end := "08:00:00", "14:00:00"
	rows := sqlmock.NewRows([]string{"id", "name", "username", "password_hash", "start_time", "end_time", "lecture_duration", "break_start_time", "break_duration", "created_at", "updated_at"}).
		AddRow("school-1", "North High", "north", "hash", start, end, 60, nil, 0, time.Now(), time.Now())
	mock.ExpectQuery(regexp.QuoteMeta("FROM schools WHERE LOWER(username) = LOWER($1) LIMIT 1")).
		WithArgs("north").
		WillReturnRows(rows)

	school, err := repo.FindByUsername(context.Background(), "north")
	require.NoError(t, err)
	assert.Equal(t, "school-1", school.ID)
	assert.True(t, school.HasDailyConfig())
	assert.Nil(t, school.BreakStartTime)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSchoolRepositoryFindByUsernameNotFound(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewSchoolRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("FROM schools WHERE LOWER(username) = LOWER($1)")).
		WithArgs("ghost").
		WillReturnError(sql.ErrNoRows)

	_, err := repo.FindByUsername(context.Background(), "ghost")
	assert.ErrorIs(t, err, sql.ErrNoRows)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSchoolRepositoryCreateAndExists(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewSchoolRepository(db)

	mock.ExpectExec("INSERT INTO schools").
		WithArgs(sqlmock.AnyArg(), "North High", "north", "hash", sqlmock.AnyArg(), sqlmock.AnyArg(), 45, sqlmock.AnyArg(), 15, sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))

	school := &models.School{Name: "North High", Username: "north", PasswordHash: "hash", LectureDuration: 45, BreakDuration: 15}
	require.NoError(t, repo.Create(context.Background(), school))
	assert.NotEmpty(t, school.ID)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT 1 FROM schools WHERE LOWER(username) = LOWER($1) LIMIT 1")).
		WithArgs("north").
		WillReturnRows(sqlmock.NewRows([]string{"1"}).AddRow(1))
	exists, err := repo.ExistsByUsername(context.Background(), "north")
	require.NoError(t, err)
	assert.True(t, exists)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT 1 FROM schools")).
		WithArgs("south").
		WillReturnError(sql.ErrNoRows)
	exists, err = repo.ExistsByUsername(context.Background(), "south")
	require.NoError(t, err)
	assert.False(t, exists)
	assert.NoError(t, mock.ExpectationsWereMet())
}
