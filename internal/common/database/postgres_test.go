package database

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunInTx_Commits(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE staging_applicants").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err = RunInTx(context.Background(), db, func(tx *sql.Tx) error {
		_, err := tx.Exec("UPDATE staging_applicants SET status = 'ARCHIVED'")
		return err
	})

	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRunInTx_RollsBackOnError(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	boom := errors.New("boom")
	mock.ExpectBegin()
	mock.ExpectRollback()

	err = RunInTx(context.Background(), db, func(tx *sql.Tx) error {
		return boom
	})

	assert.ErrorIs(t, err, boom)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRunInTx_BeginFailure(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectBegin().WillReturnError(errors.New("connection refused"))

	called := false
	err = RunInTx(context.Background(), db, func(tx *sql.Tx) error {
		called = true
		return nil
	})

	assert.Error(t, err)
	assert.Contains(t, err.Error(), "begin transaction")
	assert.False(t, called)
}

func TestMigrationNames(t *testing.T) {
	names, err := MigrationNames()
	require.NoError(t, err)
	assert.Contains(t, names, "000001_staging_pipeline.up.sql")
	assert.Contains(t, names, "000001_staging_pipeline.down.sql")
}
