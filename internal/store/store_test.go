package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/2389/csvexport/internal/model"
)

// setupTestStore creates a temporary SQLite store for testing.
func setupTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	tmpDir := t.TempDir()
	dbPath := filepath.Join(tmpDir, "test.db")

	store, err := NewSQLiteStore(dbPath)
	require.NoError(t, err)

	t.Cleanup(func() {
		store.Close()
	})

	return store
}

func createTestUser(t *testing.T, s *SQLiteStore, id, username string, superuser bool) *User {
	t.Helper()
	user := &User{
		ID:          id,
		Username:    username,
		DisplayName: username,
		IsStaff:     true,
		IsSuperuser: superuser,
		IsActive:    true,
		CreatedAt:   time.Now().UTC().Truncate(time.Second),
	}
	require.NoError(t, s.CreateUser(context.Background(), user))
	return user
}

// seedFoo creates the app_foo table used across record tests.
func seedFoo(t *testing.T, s *SQLiteStore) *model.Meta {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, s.Exec(ctx, `CREATE TABLE app_foo (id INTEGER PRIMARY KEY, name TEXT, score REAL, note TEXT)`))
	require.NoError(t, s.Exec(ctx, `INSERT INTO app_foo (id, name, score, note) VALUES (1, 'the name', 1.5, NULL)`))
	require.NoError(t, s.Exec(ctx, `INSERT INTO app_foo (id, name, score, note) VALUES (2, 'another', 0, 'x')`))
	require.NoError(t, s.Exec(ctx, `INSERT INTO app_foo (id, name, score, note) VALUES (3, 'zeta', 2, '')`))

	return &model.Meta{
		AppLabel:   "app",
		ObjectName: "Foo",
		Table:      "app_foo",
		Fields:     []model.Field{{Name: "id"}, {Name: "name"}, {Name: "score"}, {Name: "note"}},
	}
}

func collectIDs(t *testing.T, qs model.QuerySet) []int64 {
	t.Helper()
	var ids []int64
	for rec, err := range qs {
		require.NoError(t, err)
		v, ok := rec.Value("id")
		require.True(t, ok)
		ids = append(ids, v.(int64))
	}
	return ids
}

func TestStore_OpenUnknownDriver(t *testing.T) {
	_, err := Open("postgres", filepath.Join(t.TempDir(), "x.db"))
	assert.Error(t, err)
}

func TestStore_OpenMemory(t *testing.T) {
	s, err := NewSQLiteStore(":memory:")
	require.NoError(t, err)
	defer s.Close()

	count, err := s.CountUsers(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, count)
}

func TestStore_CreateAndGetUser(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	created := createTestUser(t, s, "u-1", "alice", false)

	got, err := s.GetUser(ctx, "u-1")
	require.NoError(t, err)
	assert.Equal(t, created.Username, got.Username)
	assert.True(t, got.IsStaff)
	assert.False(t, got.IsSuperuser)
	assert.True(t, got.IsActive)
	assert.Equal(t, created.CreatedAt, got.CreatedAt)

	byName, err := s.GetUserByUsername(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, "u-1", byName.ID)
}

func TestStore_CreateUser_DuplicateUsername(t *testing.T) {
	s := setupTestStore(t)
	createTestUser(t, s, "u-1", "alice", false)

	err := s.CreateUser(context.Background(), &User{ID: "u-2", Username: "alice", DisplayName: "A", CreatedAt: time.Now()})
	assert.ErrorIs(t, err, ErrUsernameExists)
}

func TestStore_GetUser_NotFound(t *testing.T) {
	s := setupTestStore(t)

	_, err := s.GetUser(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrUserNotFound)

	_, err = s.GetUserByUsername(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrUserNotFound)
}

func TestStore_ListAndCountUsers(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()
	createTestUser(t, s, "u-1", "alice", false)
	createTestUser(t, s, "u-2", "bob", true)

	users, err := s.ListUsers(ctx)
	require.NoError(t, err)
	assert.Len(t, users, 2)

	count, err := s.CountUsers(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, count)
}

func TestStore_Sessions(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()
	createTestUser(t, s, "u-1", "alice", false)

	live := &Session{ID: "sess-live", UserID: "u-1", CreatedAt: time.Now(), ExpiresAt: time.Now().Add(time.Hour)}
	expired := &Session{ID: "sess-old", UserID: "u-1", CreatedAt: time.Now().Add(-2 * time.Hour), ExpiresAt: time.Now().Add(-time.Hour)}
	require.NoError(t, s.CreateSession(ctx, live))
	require.NoError(t, s.CreateSession(ctx, expired))

	got, err := s.GetSession(ctx, "sess-live")
	require.NoError(t, err)
	assert.Equal(t, "u-1", got.UserID)

	_, err = s.GetSession(ctx, "sess-old")
	assert.ErrorIs(t, err, ErrSessionNotFound)

	require.NoError(t, s.DeleteExpiredSessions(ctx))
	require.NoError(t, s.DeleteSession(ctx, "sess-live"))

	_, err = s.GetSession(ctx, "sess-live")
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestStore_Permissions(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()
	createTestUser(t, s, "u-1", "alice", false)

	require.NoError(t, s.GrantPermission(ctx, "u-1", "app.csv_foo"))
	require.NoError(t, s.GrantPermission(ctx, "u-1", "app.csv_foo"), "grant is idempotent")
	require.NoError(t, s.GrantPermission(ctx, "u-1", "app.csv_bar"))

	perms, err := s.ListPermissions(ctx, "u-1")
	require.NoError(t, err)
	assert.Equal(t, []string{"app.csv_bar", "app.csv_foo"}, perms)

	p, err := s.LoadPrincipal(ctx, "u-1")
	require.NoError(t, err)
	assert.True(t, p.HasPerm("app.csv_foo"))
	assert.False(t, p.HasPerm("app.csv_baz"))

	require.NoError(t, s.RevokePermission(ctx, "u-1", "app.csv_foo"))
	p, err = s.LoadPrincipal(ctx, "u-1")
	require.NoError(t, err)
	assert.False(t, p.HasPerm("app.csv_foo"))
}

func TestStore_GrantPermission_Invalid(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()
	createTestUser(t, s, "u-1", "alice", false)

	assert.Error(t, s.GrantPermission(ctx, "u-1", "csv_foo"))
	assert.Error(t, s.GrantPermission(ctx, "u-1", "a.b.c"))
	assert.ErrorIs(t, s.GrantPermission(ctx, "missing", "app.csv_foo"), ErrUserNotFound)
}

func TestStore_ListPermissions_Empty(t *testing.T) {
	s := setupTestStore(t)
	createTestUser(t, s, "u-1", "alice", false)

	perms, err := s.ListPermissions(context.Background(), "u-1")
	require.NoError(t, err)
	assert.NotNil(t, perms)
	assert.Empty(t, perms)
}

func TestStore_DescribeTable(t *testing.T) {
	s := setupTestStore(t)
	seedFoo(t, s)

	fields, err := s.DescribeTable(context.Background(), "app_foo")
	require.NoError(t, err)
	require.Len(t, fields, 4)
	assert.Equal(t, "id", fields[0].Name)
	assert.Equal(t, "INTEGER", fields[0].Type)
	assert.Equal(t, "note", fields[3].Name)

	_, err = s.DescribeTable(context.Background(), "missing_table")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = s.DescribeTable(context.Background(), "bad name")
	assert.ErrorIs(t, err, model.ErrInvalidIdentifier)
}

func TestStore_Records_ByIDs(t *testing.T) {
	s := setupTestStore(t)
	meta := seedFoo(t, s)

	ids := collectIDs(t, s.Records(context.Background(), meta, []string{"3", "1"}))
	assert.Equal(t, []int64{1, 3}, ids)
}

func TestStore_Records_UntypedPrimaryKey(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()
	require.NoError(t, s.Exec(ctx, `CREATE TABLE app_bar (id, name)`))
	require.NoError(t, s.Exec(ctx, `INSERT INTO app_bar (id, name) VALUES (1, 'one'), (2, 'two')`))
	meta := &model.Meta{AppLabel: "app", ObjectName: "Bar", Table: "app_bar"}

	ids := collectIDs(t, s.Records(ctx, meta, []string{"1"}))
	assert.Equal(t, []int64{1}, ids)

	ids = collectIDs(t, s.Records(ctx, meta, []string{"2", "1"}))
	assert.Equal(t, []int64{1, 2}, ids)
}

func TestStore_Records_TextPrimaryKey(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()
	require.NoError(t, s.Exec(ctx, `CREATE TABLE app_tag (code TEXT PRIMARY KEY, label TEXT)`))
	require.NoError(t, s.Exec(ctx, `INSERT INTO app_tag (code, label) VALUES ('7', 'seven'), ('007', 'bond'), ('x', 'ex')`))
	meta := &model.Meta{AppLabel: "app", ObjectName: "Tag", Table: "app_tag", PK: "code"}

	var codes []string
	for rec, err := range s.Records(ctx, meta, []string{"7", "007"}) {
		require.NoError(t, err)
		v, ok := rec.Value("code")
		require.True(t, ok)
		codes = append(codes, v.(string))
	}
	assert.Equal(t, []string{"007", "7"}, codes)
}

func TestPKArg(t *testing.T) {
	assert.Equal(t, int64(42), pkArg("42"))
	assert.Equal(t, int64(-3), pkArg("-3"))
	assert.Equal(t, "007", pkArg("007"))
	assert.Equal(t, "+1", pkArg("+1"))
	assert.Equal(t, "abc", pkArg("abc"))
}

func TestStore_Records_AllWhenNil(t *testing.T) {
	s := setupTestStore(t)
	meta := seedFoo(t, s)

	ids := collectIDs(t, s.Records(context.Background(), meta, nil))
	assert.Equal(t, []int64{1, 2, 3}, ids)
}

func TestStore_Records_EmptySelection(t *testing.T) {
	s := setupTestStore(t)
	meta := seedFoo(t, s)

	ids := collectIDs(t, s.Records(context.Background(), meta, []string{}))
	assert.Empty(t, ids)
}

func TestStore_Records_Ordering(t *testing.T) {
	s := setupTestStore(t)
	meta := seedFoo(t, s)
	meta.Ordering = []string{"name"}

	ids := collectIDs(t, s.Records(context.Background(), meta, nil))
	assert.Equal(t, []int64{2, 1, 3}, ids)

	meta.Ordering = []string{"-id"}
	ids = collectIDs(t, s.Records(context.Background(), meta, nil))
	assert.Equal(t, []int64{3, 2, 1}, ids)
}

func TestStore_Records_Values(t *testing.T) {
	s := setupTestStore(t)
	meta := seedFoo(t, s)

	var rows []model.Record
	for rec, err := range s.Records(context.Background(), meta, []string{"1"}) {
		require.NoError(t, err)
		rows = append(rows, rec)
	}
	require.Len(t, rows, 1)

	name, ok := rows[0].Value("name")
	assert.True(t, ok)
	assert.Equal(t, "the name", name)

	note, ok := rows[0].Value("note")
	assert.True(t, ok, "NULL columns are present")
	assert.Nil(t, note)

	_, ok = rows[0].Value("missing")
	assert.False(t, ok)
}

func TestStore_Records_InvalidMeta(t *testing.T) {
	s := setupTestStore(t)
	meta := &model.Meta{AppLabel: "app", ObjectName: "Foo", Table: "app_foo; DROP TABLE admin_users"}

	var gotErr error
	for _, err := range s.Records(context.Background(), meta, nil) {
		gotErr = err
	}
	assert.ErrorIs(t, gotErr, model.ErrInvalidIdentifier)
}

func TestStore_Records_MissingTable(t *testing.T) {
	s := setupTestStore(t)
	meta := &model.Meta{AppLabel: "app", ObjectName: "Ghost", Table: "app_ghost"}

	var gotErr error
	for _, err := range s.Records(context.Background(), meta, nil) {
		gotErr = err
	}
	assert.Error(t, gotErr)
}

func TestStore_ListAndCountRecords(t *testing.T) {
	s := setupTestStore(t)
	meta := seedFoo(t, s)

	ids := collectIDs(t, s.ListRecords(context.Background(), meta, 2))
	assert.Equal(t, []int64{1, 2}, ids)

	count, err := s.CountRecords(context.Background(), meta)
	require.NoError(t, err)
	assert.Equal(t, 3, count)
}
