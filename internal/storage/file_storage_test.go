package storage_test

import (
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edtech-engine/backend/internal/learner"
	"github.com/edtech-engine/backend/internal/search"
	"github.com/edtech-engine/backend/internal/storage"
)

func TestFileStorage_SaveAndGet(t *testing.T) {
	store, err := storage.NewFileStorage(t.TempDir())
	require.NoError(t, err)

	item := search.Item{ID: "algebra/101", Title: "Algebra Basics", Subject: "Math"}
	require.NoError(t, store.Save(item))

	got, err := store.Get("algebra/101")
	require.NoError(t, err)
	assert.Equal(t, item, *got)

	_, err = store.Get("missing")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestFileStorage_SaveRequiresID(t *testing.T) {
	store, err := storage.NewFileStorage(t.TempDir())
	require.NoError(t, err)

	assert.Error(t, store.Save(search.Item{Title: "No id"}))
}

func TestFileStorage_ListKeepsInsertionOrder(t *testing.T) {
	dir := t.TempDir()
	store, err := storage.NewFileStorage(dir)
	require.NoError(t, err)

	for _, id := range []string{"zeta", "alpha", "mid"} {
		require.NoError(t, store.Save(search.Item{ID: id, Title: id}))
	}
	// update keeps position
	require.NoError(t, store.Save(search.Item{ID: "zeta", Title: "Zeta v2"}))

	items, err := store.List()
	require.NoError(t, err)
	require.Len(t, items, 3)
	assert.Equal(t, "zeta", items[0].ID)
	assert.Equal(t, "Zeta v2", items[0].Title)
	assert.Equal(t, "alpha", items[1].ID)
	assert.Equal(t, "mid", items[2].ID)

	// reopen continues numbering after existing items
	reopened, err := storage.NewFileStorage(dir)
	require.NoError(t, err)
	require.NoError(t, reopened.Save(search.Item{ID: "last"}))

	items, err = reopened.List()
	require.NoError(t, err)
	assert.Equal(t, "last", items[3].ID)

	count, err := reopened.Count()
	require.NoError(t, err)
	assert.Equal(t, 4, count)
	assert.NoError(t, reopened.Close())
}

func TestFileStorage_LongIDsSharingPrefix(t *testing.T) {
	store, err := storage.NewFileStorage(t.TempDir())
	require.NoError(t, err)

	prefix := strings.Repeat("数", 40)
	urlPrefix := "https://example.com/courses/" + strings.Repeat("x", 250)
	ids := []string{prefix + "A", prefix + "B", urlPrefix + "/1", urlPrefix + "/2"}
	for _, id := range ids {
		require.NoError(t, store.Save(search.Item{ID: id, Title: "title " + id[len(id)-1:]}))
	}

	items, err := store.List()
	require.NoError(t, err)
	require.Len(t, items, len(ids))
	for i, id := range ids {
		assert.Equal(t, id, items[i].ID)

		got, err := store.Get(id)
		require.NoError(t, err)
		assert.Equal(t, id, got.ID)
	}

	_, err = store.Get(prefix + "C")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestActivityLog(t *testing.T) {
	log, err := storage.NewActivityLog(filepath.Join(t.TempDir(), "activity", "records.jsonl"))
	require.NoError(t, err)

	all, err := log.All()
	require.NoError(t, err)
	assert.Empty(t, all)

	require.NoError(t, log.Append(learner.Record{UserID: 1, Topic: "Algebra", QuizScore: 70, Rating: 4}))
	require.NoError(t, log.Append(learner.Record{UserID: 2, Topic: "Geometry", QuizScore: 50, Rating: 3}))
	require.NoError(t, log.Append(learner.Record{UserID: 1, Topic: "Calculus", QuizScore: 90, Rating: 5}))

	all, err = log.All()
	require.NoError(t, err)
	assert.Len(t, all, 3)

	mine, err := log.ForUser(1)
	require.NoError(t, err)
	require.Len(t, mine, 2)
	assert.Equal(t, "Algebra", mine[0].Topic)
	assert.Equal(t, "Calculus", mine[1].Topic)
}
