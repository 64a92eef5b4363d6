package storage

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	_ "github.com/lib/pq"
	"go.uber.org/zap"

	"github.com/churnlabs/churnguard/internal/models"
)

//go:embed migrations.sql
var migrations embed.FS

type DatabaseConfig struct {
	Host        string
	Port        int
	User        string
	Password    string
	DBName      string
	SSLMode     string
	UseInMemory bool
}

// PostgresStore keeps every tenant document as a JSONB payload in a
// single documents table, partitioned by (user_id, collection).
type PostgresStore struct {
	db     *sql.DB
	logger *zap.Logger
}

func NewPostgresStore(config DatabaseConfig, logger *zap.Logger) (*PostgresStore, error) {
	connStr := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		config.Host, config.Port, config.User, config.Password, config.DBName, config.SSLMode)

	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, fmt.Errorf("error opening database: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("error connecting to the database: %w", err)
	}

	store := newPostgresStoreWithDB(db, logger)
	if err := store.initializeSchema(); err != nil {
		return nil, fmt.Errorf("error initializing database schema: %w", err)
	}

	return store, nil
}

func newPostgresStoreWithDB(db *sql.DB, logger *zap.Logger) *PostgresStore {
	return &PostgresStore{db: db, logger: logger}
}

func (s *PostgresStore) initializeSchema() error {
	migrationSQL, err := migrations.ReadFile("migrations.sql")
	if err != nil {
		return fmt.Errorf("error reading migrations file: %w", err)
	}

	if _, err := s.db.Exec(string(migrationSQL)); err != nil {
		return fmt.Errorf("error executing migrations: %w", err)
	}
	return nil
}

func (s *PostgresStore) StoreCSVFile(ctx context.Context, userID string, doc *models.CSVDocument) (string, error) {
	if doc.ID == "" {
		doc.ID = uuid.New().String()
	}
	return doc.ID, s.insert(ctx, userID, CollectionCSVFiles, doc.ID, doc)
}

func (s *PostgresStore) LatestCSVFile(ctx context.Context, userID string) (*models.CSVDocument, error) {
	doc := &models.CSVDocument{}
	if err := s.latest(ctx, userID, CollectionCSVFiles, doc); err != nil {
		return nil, err
	}
	return doc, nil
}

func (s *PostgresStore) StoreAnalysis(ctx context.Context, userID string, doc *models.AnalysisDocument) (string, error) {
	if doc.ID == "" {
		doc.ID = uuid.New().String()
	}
	return doc.ID, s.insert(ctx, userID, CollectionAnalytics, doc.ID, doc)
}

func (s *PostgresStore) LatestAnalysis(ctx context.Context, userID string) (*models.AnalysisDocument, error) {
	doc := &models.AnalysisDocument{}
	if err := s.latest(ctx, userID, CollectionAnalytics, doc); err != nil {
		return nil, err
	}
	return doc, nil
}

func (s *PostgresStore) StoreChatInteraction(ctx context.Context, userID string, doc *models.ChatInteraction) error {
	if doc.ID == "" {
		doc.ID = uuid.New().String()
	}
	return s.insert(ctx, userID, CollectionChat, doc.ID, doc)
}

func (s *PostgresStore) RecentChatInteractions(ctx context.Context, userID string, limit int) ([]*models.ChatInteraction, error) {
	query := `
		SELECT payload FROM documents
		WHERE user_id = $1 AND collection = $2
		ORDER BY created_at DESC
		LIMIT $3`

	rows, err := s.db.QueryContext(ctx, query, userID, CollectionChat, limit)
	if err != nil {
		return nil, fmt.Errorf("error querying chat interactions: %w", err)
	}
	defer rows.Close()

	var interactions []*models.ChatInteraction
	for rows.Next() {
		var payload []byte
		if err := rows.Scan(&payload); err != nil {
			return nil, fmt.Errorf("error scanning chat interaction: %w", err)
		}
		doc := &models.ChatInteraction{}
		if err := json.Unmarshal(payload, doc); err != nil {
			return nil, fmt.Errorf("error decoding chat interaction: %w", err)
		}
		interactions = append(interactions, doc)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	// Newest-first from the query; callers want oldest-first.
	for i, j := 0, len(interactions)-1; i < j; i, j = i+1, j-1 {
		interactions[i], interactions[j] = interactions[j], interactions[i]
	}
	return interactions, nil
}

func (s *PostgresStore) StoreCampaign(ctx context.Context, userID string, doc *models.Campaign) (string, error) {
	if doc.ID == "" {
		doc.ID = uuid.New().String()
	}
	return doc.ID, s.insert(ctx, userID, CollectionCampaigns, doc.ID, doc)
}

func (s *PostgresStore) ListCampaigns(ctx context.Context, userID string) ([]*models.Campaign, error) {
	query := `
		SELECT payload FROM documents
		WHERE user_id = $1 AND collection = $2
		ORDER BY created_at DESC`

	rows, err := s.db.QueryContext(ctx, query, userID, CollectionCampaigns)
	if err != nil {
		return nil, fmt.Errorf("error querying campaigns: %w", err)
	}
	defer rows.Close()

	var campaigns []*models.Campaign
	for rows.Next() {
		var payload []byte
		if err := rows.Scan(&payload); err != nil {
			return nil, fmt.Errorf("error scanning campaign: %w", err)
		}
		doc := &models.Campaign{}
		if err := json.Unmarshal(payload, doc); err != nil {
			return nil, fmt.Errorf("error decoding campaign: %w", err)
		}
		campaigns = append(campaigns, doc)
	}
	return campaigns, rows.Err()
}

func (s *PostgresStore) ResetUserData(ctx context.Context, userID string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM documents WHERE user_id = $1`, userID); err != nil {
		return fmt.Errorf("error resetting user data: %w", err)
	}
	s.logger.Info("user data reset", zap.String("user_id", userID))
	return nil
}

func (s *PostgresStore) Close() error {
	return s.db.Close()
}

func (s *PostgresStore) insert(ctx context.Context, userID, collection, id string, doc any) error {
	payload, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("error encoding document: %w", err)
	}

	query := `
		INSERT INTO documents (id, user_id, collection, payload)
		VALUES ($1, $2, $3, $4)`

	if _, err := s.db.ExecContext(ctx, query, id, userID, collection, payload); err != nil {
		return fmt.Errorf("error storing %s document: %w", collection, err)
	}
	return nil
}

func (s *PostgresStore) latest(ctx context.Context, userID, collection string, dst any) error {
	query := `
		SELECT payload FROM documents
		WHERE user_id = $1 AND collection = $2
		ORDER BY created_at DESC
		LIMIT 1`

	var payload []byte
	err := s.db.QueryRowContext(ctx, query, userID, collection).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("error querying latest %s document: %w", collection, err)
	}

	if err := json.Unmarshal(payload, dst); err != nil {
		return fmt.Errorf("error decoding %s document: %w", collection, err)
	}
	return nil
}
