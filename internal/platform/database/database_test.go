package database

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
)

type GatewaySuite struct {
	suite.Suite
	db  *DB
	ctx context.Context
}

func TestGatewaySuite(t *testing.T) {
	suite.Run(t, new(GatewaySuite))
}

func (s *GatewaySuite) SetupTest() {
	s.ctx = context.Background()
	cfg := DefaultConfig()
	cfg.Path = filepath.Join(s.T().TempDir(), "gateway.db")
	db, err := Open(s.ctx, cfg)
	s.Require().NoError(err)
	s.db = db
	_, err = s.db.Run(s.ctx, `CREATE TABLE widgets (id INTEGER PRIMARY KEY AUTOINCREMENT, name TEXT NOT NULL UNIQUE)`)
	s.Require().NoError(err)
}

func (s *GatewaySuite) TearDownTest() {
	s.Require().NoError(s.db.Close())
}

func (s *GatewaySuite) TestRunReportsChangesAndInsertedID() {
	res, err := s.db.Run(s.ctx, `INSERT INTO widgets (name) VALUES (?)`, "gear")
	s.Require().NoError(err)
	s.Equal(int64(1), res.Changes)
	s.Equal(int64(1), res.InsertedID)

	res, err = s.db.Run(s.ctx, `UPDATE widgets SET name = ? WHERE name = ?`, "cog", "missing")
	s.Require().NoError(err)
	s.Zero(res.Changes)
}

func (s *GatewaySuite) TestGetAndAll() {
	_, err := s.db.Run(s.ctx, `INSERT INTO widgets (name) VALUES (?), (?)`, "a", "b")
	s.Require().NoError(err)

	var name string
	s.Require().NoError(s.db.Get(s.ctx, &name, `SELECT name FROM widgets WHERE id = ?`, 2))
	s.Equal("b", name)

	var names []string
	s.Require().NoError(s.db.All(s.ctx, &names, `SELECT name FROM widgets ORDER BY id`))
	s.Equal([]string{"a", "b"}, names)

	err = s.db.Get(s.ctx, &name, `SELECT name FROM widgets WHERE id = ?`, 99)
	s.ErrorIs(err, sql.ErrNoRows)
}

func (s *GatewaySuite) TestRunInTxRollsBackOnError() {
	boom := errors.New("boom")
	err := s.db.RunInTx(s.ctx, func(ctx context.Context) error {
		if _, err := s.db.Run(ctx, `INSERT INTO widgets (name) VALUES (?)`, "ghost"); err != nil {
			return err
		}
		return boom
	})
	s.ErrorIs(err, boom)

	var count int
	s.Require().NoError(s.db.Get(s.ctx, &count, `SELECT COUNT(*) FROM widgets`))
	s.Zero(count)
}

func (s *GatewaySuite) TestRunInTxRollsBackOnPanic() {
	s.Panics(func() {
		_ = s.db.RunInTx(s.ctx, func(ctx context.Context) error {
			_, _ = s.db.Run(ctx, `INSERT INTO widgets (name) VALUES (?)`, "ghost")
			panic("boom")
		})
	})

	var count int
	s.Require().NoError(s.db.Get(s.ctx, &count, `SELECT COUNT(*) FROM widgets`))
	s.Zero(count)
}

func (s *GatewaySuite) TestNestedRunInTxJoinsOuter() {
	boom := errors.New("boom")
	err := s.db.RunInTx(s.ctx, func(ctx context.Context) error {
		inner := s.db.RunInTx(ctx, func(ctx context.Context) error {
			_, err := s.db.Run(ctx, `INSERT INTO widgets (name) VALUES (?)`, "inner")
			return err
		})
		s.Require().NoError(inner)
		return boom
	})
	s.ErrorIs(err, boom)

	var count int
	s.Require().NoError(s.db.Get(s.ctx, &count, `SELECT COUNT(*) FROM widgets`))
	s.Zero(count, "inner write must roll back with the outer transaction")
}

func (s *GatewaySuite) TestUniqueViolationIsClassified() {
	_, err := s.db.Run(s.ctx, `INSERT INTO widgets (name) VALUES (?)`, "dup")
	s.Require().NoError(err)
	_, err = s.db.Run(s.ctx, `INSERT INTO widgets (name) VALUES (?)`, "dup")
	s.Require().Error(err)
	s.True(IsUniqueViolation(err))
	s.False(IsForeignKeyViolation(err))
}

func (s *GatewaySuite) TestLockClauseIsEmptyOnSQLite() {
	s.Equal(DialectSQLite, s.db.Dialect())
	s.Empty(s.db.LockClause())
}

func TestOpenRejectsUnknownDriver(t *testing.T) {
	_, err := Open(context.Background(), Config{Driver: "oracle"})
	assert.Error(t, err)
}

func TestMigrateIsIdempotent(t *testing.T) {
	ctx := context.Background()
	cfg := DefaultConfig()
	cfg.Path = filepath.Join(t.TempDir(), "migrate.db")
	db, err := Open(ctx, cfg)
	require.NoError(t, err)
	defer db.Close() //nolint:errcheck

	require.NoError(t, Migrate(db))
	require.NoError(t, Migrate(db))

	var tables []string
	require.NoError(t, db.All(ctx, &tables,
		`SELECT name FROM sqlite_master WHERE type = 'table' AND name IN ('licenses', 'tenants', 'users') ORDER BY name`))
	assert.Equal(t, []string{"licenses", "tenants", "users"}, tables)
}

func TestIsUniqueViolationIgnoresOtherErrors(t *testing.T) {
	assert.False(t, IsUniqueViolation(nil))
	assert.False(t, IsUniqueViolation(errors.New("duplicate key")))
}
