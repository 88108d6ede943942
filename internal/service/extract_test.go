package service

import (
	"context"
	"database/sql"
	"io"
	"os"
	"path/filepath"
	"testing"

	"reportd/internal/cache"
	"reportd/internal/models"
	"reportd/internal/repository"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	_ "github.com/mattn/go-sqlite3"
)

func setupExtractService(t *testing.T) (*ExtractService, *MockStorage, *gorm.DB) {
	db := setupTestDB(t)
	logger := setupTestLogger()
	mockStorage := new(MockStorage)
	svc := NewExtractService(
		repository.NewDefinitionRepository(db),
		repository.NewExtractRepository(db),
		mockStorage,
		logger,
	)
	return svc, mockStorage, db
}

func seedDefinition(t *testing.T, db *gorm.DB, name string) {
	t.Helper()
	logger := setupTestLogger()
	definitions := NewDefinitionService(repository.NewDefinitionRepository(db), cache.NoopCache{}, logger)
	err := definitions.Create(context.Background(), &models.ReportDefinition{
		Name:       name,
		Engine:     models.EngineXLSX,
		Definition: testDefinitionBody,
		AuditUser:  "test-user",
	})
	require.NoError(t, err)
}

func TestCreateMasterDataSequences(t *testing.T) {
	svc, mockStorage, db := setupExtractService(t)
	seedDefinition(t, db, "custom_report")
	ctx := context.Background()

	mockStorage.On("JoinPath", mock.Anything).Return("extracts/key")
	mockStorage.On("Save", mock.Anything, "extracts/key", mock.Anything).Return(nil)

	first, err := svc.CreateMasterData(ctx, "test-user")
	require.NoError(t, err)
	assert.Equal(t, 1, first.Sequence)
	assert.Equal(t, "master_data_1.xml", first.Filename)
	assert.Equal(t, models.ExtractMasterData, first.Type)
	assert.Equal(t, models.DirectionExport, first.Direction)

	second, err := svc.CreateMasterData(ctx, "test-user")
	require.NoError(t, err)
	assert.Equal(t, 2, second.Sequence)
	assert.Equal(t, "master_data_2.xml", second.Filename)
}

func TestSequencesAreIndependentPerType(t *testing.T) {
	svc, mockStorage, _ := setupExtractService(t)
	ctx := context.Background()

	mockStorage.On("JoinPath", mock.Anything).Return("extracts/key")
	mockStorage.On("Save", mock.Anything, "extracts/key", mock.Anything).Return(nil)

	master, err := svc.CreateMasterData(ctx, "test-user")
	require.NoError(t, err)
	offline, err := svc.CreateOfflineDB(ctx, "test-user")
	require.NoError(t, err)

	assert.Equal(t, 1, master.Sequence)
	assert.Equal(t, 1, offline.Sequence)
	assert.Equal(t, "definitions_1.db3", offline.Filename)
}

func TestCreateMasterDataPayload(t *testing.T) {
	svc, mockStorage, db := setupExtractService(t)
	seedDefinition(t, db, "custom_report")

	var payload []byte
	mockStorage.On("JoinPath", mock.Anything).Return("extracts/key")
	mockStorage.On("Save", mock.Anything, "extracts/key", mock.Anything).
		Run(func(args mock.Arguments) {
			data, err := io.ReadAll(args.Get(2).(io.Reader))
			require.NoError(t, err)
			payload = data
		}).
		Return(nil)

	_, err := svc.CreateMasterData(context.Background(), "test-user")
	require.NoError(t, err)
	assert.Contains(t, string(payload), "<name>custom_report</name>")
	assert.Contains(t, string(payload), "<engine>xlsx</engine>")
}

func TestCreateOfflineDBContainsDefinitions(t *testing.T) {
	svc, mockStorage, db := setupExtractService(t)
	seedDefinition(t, db, "custom_report")

	var payload []byte
	mockStorage.On("JoinPath", mock.Anything).Return("extracts/key")
	mockStorage.On("Save", mock.Anything, "extracts/key", mock.Anything).
		Run(func(args mock.Arguments) {
			data, err := io.ReadAll(args.Get(2).(io.Reader))
			require.NoError(t, err)
			payload = data
		}).
		Return(nil)

	_, err := svc.CreateOfflineDB(context.Background(), "test-user")
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "extract.db3")
	require.NoError(t, os.WriteFile(path, payload, 0o600))

	offline, err := sql.Open("sqlite3", path)
	require.NoError(t, err)
	defer offline.Close()

	var name string
	err = offline.QueryRow(`SELECT name FROM report_definitions`).Scan(&name)
	require.NoError(t, err)
	assert.Equal(t, "custom_report", name)
}

func TestDuplicateSequencePerTypeRejected(t *testing.T) {
	_, _, db := setupExtractService(t)

	first := &models.Extract{
		Type:     models.ExtractMasterData,
		Sequence: 1,
		Filename: "master_data_1.xml",
		FileKey:  "extracts/master-data/master_data_1.xml",
	}
	require.NoError(t, db.Create(first).Error)

	// A concurrent creation that read the same max sequence must fail on
	// insert instead of sharing the filename.
	dup := &models.Extract{
		Type:     models.ExtractMasterData,
		Sequence: 1,
		Filename: "master_data_1.xml",
		FileKey:  "extracts/master-data/master_data_1.xml",
	}
	assert.Error(t, db.Create(dup).Error)

	// The same sequence under another type is fine.
	other := &models.Extract{
		Type:     models.ExtractOfflineDB,
		Sequence: 1,
		Filename: "definitions_1.db3",
		FileKey:  "extracts/offline-db/definitions_1.db3",
	}
	assert.NoError(t, db.Create(other).Error)
}

func TestRecordRollsBackOnStorageFailure(t *testing.T) {
	svc, mockStorage, _ := setupExtractService(t)
	ctx := context.Background()

	mockStorage.On("JoinPath", mock.Anything).Return("extracts/key")
	mockStorage.On("Save", mock.Anything, "extracts/key", mock.Anything).Return(assert.AnError)

	_, err := svc.CreateMasterData(ctx, "test-user")
	require.Error(t, err)

	extracts, err := svc.List(ctx, "")
	require.NoError(t, err)
	assert.Empty(t, extracts)
}

func TestExtractFileUnknown(t *testing.T) {
	svc, _, _ := setupExtractService(t)

	_, _, err := svc.File(context.Background(), uuid.New())
	assert.ErrorIs(t, err, ErrExtractNotFound)
}
