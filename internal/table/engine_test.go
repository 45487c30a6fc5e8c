package table

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/tablekit/internal/dberr"
	"github.com/roach88/tablekit/internal/schema"
	"github.com/roach88/tablekit/internal/testutil"
)

func TestInsertGet_RoundTrip(t *testing.T) {
	ctx := context.Background()
	e := newReadyEngine(t, newRecorder(t), usersSchema())

	before := time.Now().UTC().Add(-time.Second)
	seed(t, e, [3]any{1, "a", 20})

	row, err := e.Get(ctx, 1)
	require.NoError(t, err)
	require.NotNil(t, row)

	values := row.Values()
	assert.Len(t, values, 5)
	assert.Equal(t, int64(1), row.Int64("id"))
	assert.Equal(t, "a", row.String("username"))
	assert.Equal(t, int64(20), row.Int64("age"))
	assert.Equal(t, false, values["banned"])
	assert.True(t, row.Time("created").After(before))
}

func TestInsert_Validation(t *testing.T) {
	ctx := context.Background()
	rec := newRecorder(t)
	e := newReadyEngine(t, rec, usersSchema())
	rec.reset()

	err := e.Insert(ctx, map[string]any{"id": 1})
	assert.True(t, dberr.IsValidation(err))
	assert.Contains(t, err.Error(), "username")

	err = e.Insert(ctx, map[string]any{"id": 1, "username": "a", "nickname": "x"})
	assert.True(t, dberr.IsUsage(err))

	err = e.Insert(ctx, map[string]any{"id": 1, "username": 7})
	assert.True(t, dberr.IsValidation(err))

	assert.Zero(t, rec.count("INSERT"))
}

func TestInsert_ConstraintViolation(t *testing.T) {
	ctx := context.Background()
	e := newReadyEngine(t, newRecorder(t), usersSchema())
	seed(t, e, [3]any{1, "a", 20})

	err := e.Insert(ctx, map[string]any{"id": 2, "username": "a"})
	require.Error(t, err)
	assert.True(t, dberr.IsConstraint(err))
}

func TestInsert_ReplacesCachedAbsence(t *testing.T) {
	ctx := context.Background()
	e := newReadyEngine(t, newRecorder(t), usersSchema())

	row, err := e.Get(ctx, 1)
	require.NoError(t, err)
	require.Nil(t, row)

	seed(t, e, [3]any{1, "a", 20})

	row, err = e.Get(ctx, 1)
	require.NoError(t, err)
	require.NotNil(t, row)
	assert.Equal(t, "a", row.String("username"))
}

func TestGet_CachesRowAndAbsence(t *testing.T) {
	ctx := context.Background()
	rec := newRecorder(t)
	e := newReadyEngine(t, rec, usersSchema())
	seed(t, e, [3]any{1, "a", 20})
	rec.reset()

	first, err := e.Get(ctx, 1)
	require.NoError(t, err)
	second, err := e.Get(ctx, int64(1))
	require.NoError(t, err)
	assert.Same(t, first, second)

	missing, err := e.Get(ctx, 2)
	require.NoError(t, err)
	assert.Nil(t, missing)
	missing, err = e.Get(ctx, 2)
	require.NoError(t, err)
	assert.Nil(t, missing)

	// one SELECT for key 2 at most; key 1 may have been collected after the
	// warm-up, so allow one for it as well
	assert.LessOrEqual(t, rec.count("SELECT"), 2)

	_, err = e.Get(ctx, nil)
	assert.True(t, dberr.IsUsage(err))
	_, err = e.Get(ctx, "one")
	assert.True(t, dberr.IsValidation(err))
}

func TestGetBy_UniqueVsNonUnique(t *testing.T) {
	ctx := context.Background()
	e := newReadyEngine(t, newRecorder(t), usersSchema())
	seed(t, e,
		[3]any{1, "a", 20},
		[3]any{2, "b", 20},
		[3]any{3, "c", 30},
	)

	rows, err := e.GetBy(ctx, "username", "a")
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, int64(1), rows[0].Int64("id"))

	rows, err = e.GetBy(ctx, "username", "nobody")
	require.NoError(t, err)
	assert.Empty(t, rows)

	row, err := e.GetOne(ctx, "username", "b")
	require.NoError(t, err)
	assert.Equal(t, int64(2), row.Int64("id"))

	row, err = e.GetOne(ctx, "username", "nobody")
	require.NoError(t, err)
	assert.Nil(t, row)

	rows, err = e.GetBy(ctx, "age", 20)
	require.NoError(t, err)
	assert.Len(t, rows, 2)

	_, err = e.GetOne(ctx, "age", 20)
	assert.True(t, dberr.IsUsage(err))

	_, err = e.GetBy(ctx, "nickname", "x")
	assert.True(t, dberr.IsUsage(err))
}

func TestList(t *testing.T) {
	ctx := context.Background()
	e := newReadyEngine(t, newRecorder(t), usersSchema())

	rows, err := e.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, rows)

	seed(t, e, [3]any{1, "a", 20}, [3]any{2, "b", nil})

	rows, err = e.List(ctx)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.True(t, rows[1].IsNull("age"))
}

func TestDelete_AbsenceIsImmediate(t *testing.T) {
	ctx := context.Background()
	rec := newRecorder(t)
	e := newReadyEngine(t, rec, usersSchema())
	seed(t, e, [3]any{1, "a", 20})

	held, err := e.Get(ctx, 1)
	require.NoError(t, err)
	require.NotNil(t, held)

	entered := make(chan struct{})
	release := make(chan struct{})
	rec.setHook(func(query string) {
		if strings.HasPrefix(query, "DELETE") {
			close(entered)
			<-release
		}
	})

	done := make(chan error, 1)
	go func() { done <- e.Delete(ctx, 1) }()
	<-entered
	rec.reset()

	// the backend delete has not run yet
	for range 2 {
		row, err := e.Get(ctx, 1)
		require.NoError(t, err)
		assert.Nil(t, row)
	}
	assert.Zero(t, rec.count("SELECT"))

	close(release)
	require.NoError(t, <-done)
	rec.setHook(nil)

	rows, err := e.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, rows)
}

func TestUpdate_PatchesCachedRow(t *testing.T) {
	ctx := context.Background()
	e := newReadyEngine(t, newRecorder(t), usersSchema())
	seed(t, e, [3]any{1, "a", 20})

	row, err := e.Get(ctx, 1)
	require.NoError(t, err)

	require.NoError(t, e.Update(ctx, 1, "age", 21))
	assert.Equal(t, int64(21), row.Int64("age"))

	require.NoError(t, e.Update(ctx, 1, "banned", true))
	assert.True(t, row.Bool("banned"))

	again, err := e.Get(ctx, 1)
	require.NoError(t, err)
	assert.Same(t, row, again)

	e.InvalidateCache()
	fresh, err := e.Get(ctx, 1)
	require.NoError(t, err)
	assert.NotSame(t, row, fresh)
	assert.Equal(t, int64(21), fresh.Int64("age"))
	assert.True(t, fresh.Bool("banned"))
}

func TestUpdate_FailedWriteDropsCachedRow(t *testing.T) {
	ctx := context.Background()
	e := newReadyEngine(t, newRecorder(t), usersSchema())
	seed(t, e, [3]any{1, "a", 20}, [3]any{2, "b", 30})

	row, err := e.Get(ctx, 1)
	require.NoError(t, err)

	err = e.Update(ctx, 1, "username", "b")
	require.Error(t, err)
	assert.True(t, dberr.IsConstraint(err))

	got, err := e.Get(ctx, 1)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.NotSame(t, row, got)
	assert.Equal(t, "a", got.String("username"))

	// same through UpdateBy on the primary key
	err = e.UpdateBy(ctx, "id", 1, "username", "b")
	require.Error(t, err)
	got, err = e.Get(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, "a", got.String("username"))
}

func TestUpdate_AbsentStillWritesBackend(t *testing.T) {
	ctx := context.Background()
	rec := newRecorder(t)
	e := newReadyEngine(t, rec, usersSchema())

	row, err := e.Get(ctx, 5)
	require.NoError(t, err)
	require.Nil(t, row)

	// a row written behind the cache's back
	_, err = e.Query(ctx, `INSERT INTO $tablename$ (id, username, banned) VALUES (5, 'x', 0)`)
	require.NoError(t, err)

	rec.reset()
	require.NoError(t, e.Update(ctx, 5, "age", 7))
	assert.Equal(t, 1, rec.count("UPDATE"))

	row, err = e.Get(ctx, 5)
	require.NoError(t, err)
	assert.Nil(t, row, "absence marker is left in place")

	e.InvalidateCache()
	row, err = e.Get(ctx, 5)
	require.NoError(t, err)
	require.NotNil(t, row)
	assert.Equal(t, int64(7), row.Int64("age"))
}

func TestUpdateBy_NonKeyClearsCache(t *testing.T) {
	ctx := context.Background()
	rec := newRecorder(t)
	e := newReadyEngine(t, rec, usersSchema())
	seed(t, e, [3]any{1, "a", 20}, [3]any{2, "b", 30})

	cached, err := e.Get(ctx, 2)
	require.NoError(t, err)

	require.NoError(t, e.UpdateBy(ctx, "age", 20, "age", 21))
	assert.Zero(t, e.cache.Len())

	rec.reset()
	again, err := e.Get(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, 1, rec.count("SELECT"))
	assert.NotSame(t, cached, again)

	rows, err := e.GetBy(ctx, "age", 21)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "a", rows[0].String("username"))
}

func TestUpdateBy_EncodesWithTargetColumn(t *testing.T) {
	ctx := context.Background()
	e := newReadyEngine(t, newRecorder(t), usersSchema())
	seed(t, e, [3]any{1, "a", 20})

	require.NoError(t, e.UpdateBy(ctx, "username", "a", "banned", true))

	row, err := e.Get(ctx, 1)
	require.NoError(t, err)
	assert.True(t, row.Bool("banned"))
}

func TestUpdateBy_PrimaryKeyKeepsCache(t *testing.T) {
	ctx := context.Background()
	e := newReadyEngine(t, newRecorder(t), usersSchema())
	seed(t, e, [3]any{1, "a", 20}, [3]any{2, "b", 30})

	one, err := e.Get(ctx, 1)
	require.NoError(t, err)
	two, err := e.Get(ctx, 2)
	require.NoError(t, err)

	require.NoError(t, e.UpdateBy(ctx, "id", 1, "age", 40))
	assert.Equal(t, int64(40), one.Int64("age"))

	again, err := e.Get(ctx, 2)
	require.NoError(t, err)
	assert.Same(t, two, again)
}

func TestDeleteBy(t *testing.T) {
	ctx := context.Background()
	e := newReadyEngine(t, newRecorder(t), usersSchema())
	seed(t, e, [3]any{1, "a", 20}, [3]any{2, "b", 20}, [3]any{3, "c", 30})

	three, err := e.Get(ctx, 3)
	require.NoError(t, err)
	require.NotNil(t, three)

	require.NoError(t, e.DeleteBy(ctx, "age", 20))
	assert.Zero(t, e.cache.Len())

	rows, err := e.List(ctx)
	require.NoError(t, err)
	require.Len(t, rows, 1)

	require.NoError(t, e.DeleteBy(ctx, "id", 3))
	row, err := e.Get(ctx, 3)
	require.NoError(t, err)
	assert.Nil(t, row)
}

func TestDeleteAll(t *testing.T) {
	ctx := context.Background()
	e := newReadyEngine(t, newRecorder(t), usersSchema())
	seed(t, e, [3]any{1, "a", 20}, [3]any{2, "b", 20})

	held, err := e.Get(ctx, 1)
	require.NoError(t, err)
	require.NotNil(t, held)

	require.NoError(t, e.DeleteAll(ctx))

	row, err := e.Get(ctx, 1)
	require.NoError(t, err)
	assert.Nil(t, row)

	rows, err := e.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, rows)
}

func TestQuery_TableNamePlaceholder(t *testing.T) {
	ctx := context.Background()
	rec := newRecorder(t)
	e := newReadyEngine(t, rec, usersSchema())
	seed(t, e, [3]any{1, "a", 20}, [3]any{2, "b", 30})

	recs, err := e.Query(ctx, `SELECT COUNT(*) AS n FROM $tablename$ WHERE age > ?`, 25)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, int64(1), recs[0]["n"])
	assert.Equal(t, 1, rec.count("SELECT COUNT(*) AS n FROM users WHERE"))
}

func TestEngine_TimestampKey(t *testing.T) {
	ctx := context.Background()
	tbl := schema.NewTable("events").
		Column("at", schema.Timestamp).PrimaryKey().
		Column("note", schema.Text).
		MustBuild()
	e := newReadyEngine(t, newRecorder(t), tbl)

	at := time.Date(2026, time.January, 2, 3, 4, 5, 6, time.UTC)
	require.NoError(t, e.Insert(ctx, map[string]any{"at": at, "note": "hi"}))

	row, err := e.Get(ctx, at.In(time.FixedZone("Z", 3600)))
	require.NoError(t, err)
	require.NotNil(t, row)
	assert.True(t, at.Equal(row.Time("at")))
	assert.Equal(t, "hi", row.String("note"))
}

func TestInsert_ProducerDefaults(t *testing.T) {
	ctx := context.Background()
	clock := testutil.NewClock()
	ids := testutil.NewSequence("note")
	tbl := schema.NewTable("notes").
		Column("id", schema.Text).PrimaryKey().Default(ids.Default()).
		Column("body", schema.Text).NotNull().
		Column("created", schema.Timestamp).NotNull().Default(clock.Default()).
		MustBuild()
	e := newReadyEngine(t, newRecorder(t), tbl)

	require.NoError(t, e.Insert(ctx, map[string]any{"body": "first"}))
	require.NoError(t, e.Insert(ctx, map[string]any{"body": "second"}))
	// explicit values win over producers
	require.NoError(t, e.Insert(ctx, map[string]any{"id": "pinned", "body": "third", "created": testutil.Epoch}))
	assert.Equal(t, int64(2), clock.Readings())

	row, err := e.Get(ctx, "note-0002")
	require.NoError(t, err)
	require.NotNil(t, row)
	assert.Equal(t, "second", row.String("body"))
	assert.True(t, testutil.Epoch.Add(time.Second).Equal(row.Time("created")))

	pinned, err := e.Get(ctx, "pinned")
	require.NoError(t, err)
	require.NotNil(t, pinned)
	assert.True(t, testutil.Epoch.Equal(pinned.Time("created")))
}

func TestAccessors(t *testing.T) {
	tbl := usersSchema()
	e := newReadyEngine(t, newRecorder(t), tbl)

	assert.Equal(t, "users", e.Name())
	assert.Same(t, tbl, e.Schema())
}
