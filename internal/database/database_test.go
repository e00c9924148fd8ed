package database

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"testing/fstest"

	"stackit/internal/config"
	"stackit/internal/models"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func openSQLite(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	return db
}

func TestAutoMigrate_EnforcesSingleAcceptedAnswer(t *testing.T) {
	db := openSQLite(t)
	require.NoError(t, AutoMigrate(db))

	author := models.User{Username: "asker", Email: "asker@example.com", Password: "x", Role: models.RoleUser}
	require.NoError(t, db.Create(&author).Error)
	q := models.Question{Title: "t", Description: "d", AuthorID: author.ID}
	require.NoError(t, db.Create(&q).Error)

	first := models.Answer{QuestionID: q.ID, Content: "a", AuthorID: author.ID, IsAccepted: true}
	require.NoError(t, db.Create(&first).Error)

	second := models.Answer{QuestionID: q.ID, Content: "b", AuthorID: author.ID, IsAccepted: true}
	err := db.Create(&second).Error
	require.Error(t, err)
	assert.True(t, IsUniqueViolation(err))

	// Unaccepted answers are unconstrained.
	third := models.Answer{QuestionID: q.ID, Content: "c", AuthorID: author.ID}
	assert.NoError(t, db.Create(&third).Error)
}

func TestAutoMigrate_BackfillsSearchText(t *testing.T) {
	db := openSQLite(t)
	require.NoError(t, AutoMigrate(db))

	author := models.User{Username: "asker", Email: "asker@example.com", Password: "x", Role: models.RoleUser}
	require.NoError(t, db.Create(&author).Error)
	q := models.Question{Title: "ÉCOLE", Description: "d", Tags: models.Tags{"a&b"}, AuthorID: author.ID}
	require.NoError(t, db.Create(&q).Error)
	assert.Equal(t, "école\x1fd\x1fa&b", q.SearchText, "set on insert")

	// Rows written before the column existed carry an empty value.
	require.NoError(t, db.Model(&q).UpdateColumn("search_text", "").Error)
	require.NoError(t, AutoMigrate(db))

	var got models.Question
	require.NoError(t, db.First(&got, q.ID).Error)
	assert.Equal(t, "école\x1fd\x1fa&b", got.SearchText)
}

func TestAutoMigrate_VoteLedgerUniqueness(t *testing.T) {
	db := openSQLite(t)
	require.NoError(t, AutoMigrate(db))

	v := models.Vote{UserID: 1, TargetID: 9, TargetType: models.TargetAnswer, Value: 1}
	require.NoError(t, db.Create(&v).Error)

	dup := models.Vote{UserID: 1, TargetID: 9, TargetType: models.TargetAnswer, Value: -1}
	assert.True(t, IsUniqueViolation(db.Create(&dup).Error))

	other := models.Vote{UserID: 1, TargetID: 9, TargetType: models.TargetQuestion, Value: -1}
	assert.NoError(t, db.Create(&other).Error)
}

func TestIsUniqueViolation(t *testing.T) {
	assert.False(t, IsUniqueViolation(nil))
	assert.True(t, IsUniqueViolation(&pgconn.PgError{Code: "23505"}))
	assert.True(t, IsUniqueViolation(fmt.Errorf("wrapped: %w", &pgconn.PgError{Code: "23505"})))
	assert.False(t, IsUniqueViolation(&pgconn.PgError{Code: "23503"}))
	assert.True(t, IsUniqueViolation(gorm.ErrDuplicatedKey))
	assert.True(t, IsUniqueViolation(errors.New("UNIQUE constraint failed: users.email")))
	assert.False(t, IsUniqueViolation(errors.New("syntax error")))
}

func TestIsConnectionError(t *testing.T) {
	assert.False(t, IsConnectionError(nil))
	assert.True(t, IsConnectionError(errors.New("dial tcp 127.0.0.1:5432: connect: connection refused")))
	assert.True(t, IsConnectionError(errors.New("sql: database is closed")))
	assert.False(t, IsConnectionError(errors.New("record not found")))
}

func TestSchemaPolicy(t *testing.T) {
	tests := []struct {
		name     string
		mode     string
		env      string
		driver   string
		wantSQL  bool
		wantAuto bool
		wantErr  bool
	}{
		{"hybrid development postgres", "", "development", DriverPostgres, true, true, false},
		{"hybrid production postgres", "hybrid", "production", DriverPostgres, true, false, false},
		{"sql mode", "sql", "development", DriverPostgres, true, false, false},
		{"auto development", "auto", "development", DriverPostgres, false, true, false},
		{"auto refused in production", "auto", "production", DriverPostgres, false, false, true},
		{"unknown mode", "yolo", "development", DriverPostgres, false, false, true},
		{"sqlite always auto", "hybrid", "production", DriverSQLite, false, true, false},
		{"sqlite rejects sql mode", "sql", "development", DriverSQLite, false, false, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &config.Config{DBSchemaMode: tt.mode, Env: tt.env}
			runSQL, runAuto, err := schemaPolicy(cfg, tt.driver)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantSQL, runSQL)
			assert.Equal(t, tt.wantAuto, runAuto)
		})
	}
}

func TestLoadMigrations(t *testing.T) {
	fsys := fstest.MapFS{
		"migrations/000002_second.up.sql":   {Data: []byte("SELECT 2;")},
		"migrations/000002_second.down.sql": {Data: []byte("SELECT -2;")},
		"migrations/000001_first.up.sql":    {Data: []byte("SELECT 1;")},
		"migrations/000001_first.down.sql":  {Data: []byte("SELECT -1;")},
		"migrations/README.md":              {Data: []byte("ignored")},
	}

	ms, err := LoadMigrations(fsys)
	require.NoError(t, err)
	require.Len(t, ms, 2)
	assert.Equal(t, 1, ms[0].Version)
	assert.Equal(t, "first", ms[0].Name)
	assert.Equal(t, "000002_second", ms[1].String())
	assert.Equal(t, "SELECT -2;", ms[1].DownScript)
}

func TestLoadMigrations_MissingDown(t *testing.T) {
	fsys := fstest.MapFS{
		"migrations/000001_first.up.sql": {Data: []byte("SELECT 1;")},
	}
	_, err := LoadMigrations(fsys)
	assert.Error(t, err)
}

func TestEmbeddedMigrations(t *testing.T) {
	ms := GetMigrations()
	require.NotEmpty(t, ms)
	assert.Equal(t, 1, ms[0].Version)
	assert.Contains(t, ms[0].UpScript, "idx_answers_one_accepted")
	assert.NotNil(t, GetMigrationByVersion(1))
	require.NotNil(t, GetMigrationByVersion(2))
	assert.Contains(t, GetMigrationByVersion(2).UpScript, "search_text")
	assert.Nil(t, GetMigrationByVersion(999))
}

func TestValidateAppliedVersions(t *testing.T) {
	registered := []Migration{{Version: 1}, {Version: 2}}
	assert.NoError(t, validateAppliedVersions(nil, registered))
	assert.NoError(t, validateAppliedVersions([]int{1, 2}, registered))
	err := validateAppliedVersions([]int{1, 7}, registered)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "000007")
}

func TestConnect_SQLite(t *testing.T) {
	cfg := &config.Config{
		Env:        "test",
		DBDriver:   DriverSQLite,
		SQLitePath: "file:" + t.Name() + "?mode=memory&cache=shared",
	}
	db, err := Connect(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = Close(db) })

	assert.False(t, IsPostgres(db))
	assert.NoError(t, Ping(context.Background(), db))
	assert.True(t, db.Migrator().HasTable(&models.Vote{}))
	assert.True(t, db.Migrator().HasIndex(&models.Answer{}, "idx_answers_one_accepted"))
}

func TestConnect_UnknownDriver(t *testing.T) {
	_, err := Connect(&config.Config{DBDriver: "mysql"})
	assert.Error(t, err)
}
