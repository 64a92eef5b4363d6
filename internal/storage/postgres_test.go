package storage

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/churnlabs/churnguard/internal/models"
)

func newMockStore(t *testing.T) (*PostgresStore, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return newPostgresStoreWithDB(db, zap.NewNop()), mock
}

func TestPostgresStoreCSVFile(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectExec("INSERT INTO documents").
		WithArgs("csv-1", "user-1", CollectionCSVFiles, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	id, err := s.StoreCSVFile(context.Background(), "user-1", &models.CSVDocument{
		ID:       "csv-1",
		FileName: "customers.csv",
	})
	require.NoError(t, err)
	assert.Equal(t, "csv-1", id)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStoreGeneratesID(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectExec("INSERT INTO documents").
		WithArgs(sqlmock.AnyArg(), "user-1", CollectionAnalytics, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	id, err := s.StoreAnalysis(context.Background(), "user-1", &models.AnalysisDocument{})
	require.NoError(t, err)
	assert.NotEmpty(t, id)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresLatestAnalysis(t *testing.T) {
	s, mock := newMockStore(t)

	payload, err := json.Marshal(&models.AnalysisDocument{
		ID:     "run-1",
		Status: models.AnalysisStatusCompleted,
	})
	require.NoError(t, err)

	mock.ExpectQuery("SELECT payload FROM documents").
		WithArgs("user-1", CollectionAnalytics).
		WillReturnRows(sqlmock.NewRows([]string{"payload"}).AddRow(payload))

	doc, err := s.LatestAnalysis(context.Background(), "user-1")
	require.NoError(t, err)
	assert.Equal(t, "run-1", doc.ID)
	assert.Equal(t, models.AnalysisStatusCompleted, doc.Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresLatestNotFound(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectQuery("SELECT payload FROM documents").
		WithArgs("user-1", CollectionCSVFiles).
		WillReturnRows(sqlmock.NewRows([]string{"payload"}))

	_, err := s.LatestCSVFile(context.Background(), "user-1")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresInsertFailure(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectExec("INSERT INTO documents").
		WillReturnError(errors.New("connection reset"))

	_, err := s.StoreCSVFile(context.Background(), "user-1", &models.CSVDocument{ID: "csv-1"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "csv_files")
}

func TestPostgresRecentChatInteractionsOrdering(t *testing.T) {
	s, mock := newMockStore(t)

	newer, _ := json.Marshal(&models.ChatInteraction{ID: "i2", Question: "second"})
	older, _ := json.Marshal(&models.ChatInteraction{ID: "i1", Question: "first"})

	// The query returns newest-first; the store reverses to oldest-first.
	mock.ExpectQuery("SELECT payload FROM documents").
		WithArgs("user-1", CollectionChat, 4).
		WillReturnRows(sqlmock.NewRows([]string{"payload"}).AddRow(newer).AddRow(older))

	interactions, err := s.RecentChatInteractions(context.Background(), "user-1", 4)
	require.NoError(t, err)
	require.Len(t, interactions, 2)
	assert.Equal(t, "first", interactions[0].Question)
	assert.Equal(t, "second", interactions[1].Question)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresListCampaigns(t *testing.T) {
	s, mock := newMockStore(t)

	c, _ := json.Marshal(&models.Campaign{ID: "camp-1", Name: "retention"})

	mock.ExpectQuery("SELECT payload FROM documents").
		WithArgs("user-1", CollectionCampaigns).
		WillReturnRows(sqlmock.NewRows([]string{"payload"}).AddRow(c))

	campaigns, err := s.ListCampaigns(context.Background(), "user-1")
	require.NoError(t, err)
	require.Len(t, campaigns, 1)
	assert.Equal(t, "retention", campaigns[0].Name)
}

func TestPostgresResetUserData(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectExec("DELETE FROM documents").
		WithArgs("user-1").
		WillReturnResult(sqlmock.NewResult(0, 3))

	require.NoError(t, s.ResetUserData(context.Background(), "user-1"))
	assert.NoError(t, mock.ExpectationsWereMet())
}
