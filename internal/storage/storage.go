// Package storage is the tenant-partitioned document store. Every read
// and write is scoped to a user id; "latest" reads resolve concurrent
// writers by newest timestamp.
package storage

import (
	"context"
	"errors"

	"github.com/churnlabs/churnguard/internal/models"
)

// ErrNotFound is returned when a tenant has no document in a collection.
var ErrNotFound = errors.New("document not found")

// Collection names.
const (
	CollectionCSVFiles  = "csv_files"
	CollectionAnalytics = "analytics"
	CollectionChat      = "chat_interactions"
	CollectionCampaigns = "campaigns"
)

type Store interface {
	StoreCSVFile(ctx context.Context, userID string, doc *models.CSVDocument) (string, error)
	LatestCSVFile(ctx context.Context, userID string) (*models.CSVDocument, error)

	StoreAnalysis(ctx context.Context, userID string, doc *models.AnalysisDocument) (string, error)
	LatestAnalysis(ctx context.Context, userID string) (*models.AnalysisDocument, error)

	StoreChatInteraction(ctx context.Context, userID string, doc *models.ChatInteraction) error
	// RecentChatInteractions returns up to limit interactions, oldest
	// first, suitable for building conversation context.
	RecentChatInteractions(ctx context.Context, userID string, limit int) ([]*models.ChatInteraction, error)

	StoreCampaign(ctx context.Context, userID string, doc *models.Campaign) (string, error)
	ListCampaigns(ctx context.Context, userID string) ([]*models.Campaign, error)

	// ResetUserData deletes every document the tenant owns.
	ResetUserData(ctx context.Context, userID string) error

	Close() error
}
