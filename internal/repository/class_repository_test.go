package repository

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sma-timetable/internal/models"
)

func TestClassRepositoryFindByIDScopesBySchool(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewClassRepository(db)

	rows := sqlmock.NewRows([]string{"id", "school_id", "name", "created_at", "updated_at"}).
		AddRow("class-1", "school-1", "X IPA 1", time.Now(), time.Now())
	mock.ExpectQuery(regexp.QuoteMeta("FROM classes WHERE school_id = $1 AND id = $2")).
		WithArgs("school-1", "class-1").
		WillReturnRows(rows)
	mock.ExpectQuery(regexp.QuoteMeta("FROM classes WHERE school_id = $1 AND id = $2")).
		WithArgs("school-2", "class-1").
		WillReturnError(sql.ErrNoRows)

	class, err := repo.FindByID(context.Background(), "school-1", "class-1")
	require.NoError(t, err)
	assert.Equal(t, "X IPA 1", class.Name)

	_, err = repo.FindByID(context.Background(), "school-2", "class-1")
	assert.ErrorIs(t, err, sql.ErrNoRows)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestClassRepositoryExistsByNameMissing(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewClassRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT 1 FROM classes WHERE school_id = $1 AND LOWER(name) = LOWER($2) LIMIT 1")).
		WithArgs("school-1", "X IPA 2").
		WillReturnRows(sqlmock.NewRows([]string{"1"}))

	exists, err := repo.ExistsByName(context.Background(), "school-1", "X IPA 2")
	require.NoError(t, err)
	assert.False(t, exists)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestClassRepositoryCreate(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewClassRepository(db)

	mock.ExpectExec("INSERT INTO classes").
		WithArgs(sqlmock.AnyArg(), "school-1", "X IPA 1", sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))

	class := &models.Class{SchoolID: "school-1", Name: "X IPA 1"}
	require.NoError(t, repo.Create(context.Background(), class))
	assert.NotEmpty(t, class.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}
