package storage

import (
	"context"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupLocalStorage(t *testing.T) *LocalStorage {
	t.Helper()
	logger := logrus.New()
	logger.SetLevel(logrus.FatalLevel)

	store, err := NewLocalStorage(LocalConfig{BasePath: t.TempDir()}, logger)
	require.NoError(t, err)
	return store
}

func TestLocalSaveAndGet(t *testing.T) {
	store := setupLocalStorage(t)
	ctx := context.Background()

	key := store.JoinPath("reports", "claims", "run_1.csv")
	require.NoError(t, store.Save(ctx, key, strings.NewReader("Claim,Amount\n")))

	reader, err := store.Get(ctx, key)
	require.NoError(t, err)
	defer reader.Close()

	data, err := io.ReadAll(reader)
	require.NoError(t, err)
	assert.Equal(t, "Claim,Amount\n", string(data))
}

func TestLocalExistsAndDelete(t *testing.T) {
	store := setupLocalStorage(t)
	ctx := context.Background()

	exists, err := store.Exists(ctx, "reports/missing.csv")
	require.NoError(t, err)
	assert.False(t, exists)

	require.NoError(t, store.Save(ctx, "reports/run.csv", strings.NewReader("x")))

	exists, err = store.Exists(ctx, "reports/run.csv")
	require.NoError(t, err)
	assert.True(t, exists)

	require.NoError(t, store.Delete(ctx, "reports/run.csv"))

	exists, err = store.Exists(ctx, "reports/run.csv")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestLocalList(t *testing.T) {
	store := setupLocalStorage(t)
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, "extracts/master-data/master_data_1.xml", strings.NewReader("<definitions/>")))
	require.NoError(t, store.Save(ctx, "extracts/offline-db/definitions_1.db3", strings.NewReader("blob")))
	require.NoError(t, store.Save(ctx, "reports/run.csv", strings.NewReader("x")))

	files, err := store.List(ctx, "extracts/")
	require.NoError(t, err)
	require.Len(t, files, 2)
	for _, f := range files {
		assert.True(t, strings.HasPrefix(f.Key, "extracts/"), f.Key)
	}
}

func TestLocalRejectsEscapingKeys(t *testing.T) {
	store := setupLocalStorage(t)
	ctx := context.Background()

	err := store.Save(ctx, "../outside.txt", strings.NewReader("x"))
	assert.Error(t, err)

	err = store.Save(ctx, "", strings.NewReader("x"))
	assert.Error(t, err)
}

func TestLocalPresignedURL(t *testing.T) {
	store := setupLocalStorage(t)
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, "reports/run.csv", strings.NewReader("x")))

	url, err := store.GetPresignedURL(ctx, "reports/run.csv", time.Minute)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(url, "file://"), url)
}
