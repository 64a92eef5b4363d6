package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/churnlabs/churnguard/internal/models"
)

type memoryDocument struct {
	id        string
	createdAt time.Time
	payload   []byte
}

// MemoryStore is the in-memory Store used for development and tests.
// Documents are stored as encoded payloads so reads return isolated
// copies, matching the postgres implementation.
type MemoryStore struct {
	mu   sync.RWMutex
	seq  int
	docs map[string]map[string][]memoryDocument
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{docs: make(map[string]map[string][]memoryDocument)}
}

func (s *MemoryStore) StoreCSVFile(ctx context.Context, userID string, doc *models.CSVDocument) (string, error) {
	if doc.ID == "" {
		doc.ID = uuid.New().String()
	}
	return doc.ID, s.insert(userID, CollectionCSVFiles, doc.ID, doc)
}

func (s *MemoryStore) LatestCSVFile(ctx context.Context, userID string) (*models.CSVDocument, error) {
	doc := &models.CSVDocument{}
	if err := s.latest(userID, CollectionCSVFiles, doc); err != nil {
		return nil, err
	}
	return doc, nil
}

func (s *MemoryStore) StoreAnalysis(ctx context.Context, userID string, doc *models.AnalysisDocument) (string, error) {
	if doc.ID == "" {
		doc.ID = uuid.New().String()
	}
	return doc.ID, s.insert(userID, CollectionAnalytics, doc.ID, doc)
}

func (s *MemoryStore) LatestAnalysis(ctx context.Context, userID string) (*models.AnalysisDocument, error) {
	doc := &models.AnalysisDocument{}
	if err := s.latest(userID, CollectionAnalytics, doc); err != nil {
		return nil, err
	}
	return doc, nil
}

func (s *MemoryStore) StoreChatInteraction(ctx context.Context, userID string, doc *models.ChatInteraction) error {
	if doc.ID == "" {
		doc.ID = uuid.New().String()
	}
	return s.insert(userID, CollectionChat, doc.ID, doc)
}

func (s *MemoryStore) RecentChatInteractions(ctx context.Context, userID string, limit int) ([]*models.ChatInteraction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stored := s.collection(userID, CollectionChat)
	if len(stored) > limit {
		stored = stored[len(stored)-limit:]
	}

	interactions := make([]*models.ChatInteraction, 0, len(stored))
	for _, d := range stored {
		doc := &models.ChatInteraction{}
		if err := json.Unmarshal(d.payload, doc); err != nil {
			return nil, err
		}
		interactions = append(interactions, doc)
	}
	return interactions, nil
}

func (s *MemoryStore) StoreCampaign(ctx context.Context, userID string, doc *models.Campaign) (string, error) {
	if doc.ID == "" {
		doc.ID = uuid.New().String()
	}
	return doc.ID, s.insert(userID, CollectionCampaigns, doc.ID, doc)
}

func (s *MemoryStore) ListCampaigns(ctx context.Context, userID string) ([]*models.Campaign, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stored := s.collection(userID, CollectionCampaigns)
	campaigns := make([]*models.Campaign, 0, len(stored))
	for i := len(stored) - 1; i >= 0; i-- {
		doc := &models.Campaign{}
		if err := json.Unmarshal(stored[i].payload, doc); err != nil {
			return nil, err
		}
		campaigns = append(campaigns, doc)
	}
	return campaigns, nil
}

func (s *MemoryStore) ResetUserData(ctx context.Context, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.docs, userID)
	return nil
}

func (s *MemoryStore) Close() error { return nil }

func (s *MemoryStore) insert(userID, collection, id string, doc any) error {
	payload, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("error encoding document: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.docs[userID] == nil {
		s.docs[userID] = make(map[string][]memoryDocument)
	}
	// Monotonic sequence keeps ordering stable for writes within the
	// same clock tick.
	s.seq++
	s.docs[userID][collection] = append(s.docs[userID][collection], memoryDocument{
		id:        id,
		createdAt: time.Now().Add(time.Duration(s.seq) * time.Nanosecond),
		payload:   payload,
	})
	return nil
}

// collection returns the tenant's documents oldest-first. Callers must
// hold the read lock.
func (s *MemoryStore) collection(userID, collection string) []memoryDocument {
	stored := append([]memoryDocument(nil), s.docs[userID][collection]...)
	sort.SliceStable(stored, func(i, j int) bool {
		return stored[i].createdAt.Before(stored[j].createdAt)
	})
	return stored
}

func (s *MemoryStore) latest(userID, collection string, dst any) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stored := s.collection(userID, collection)
	if len(stored) == 0 {
		return ErrNotFound
	}
	return json.Unmarshal(stored[len(stored)-1].payload, dst)
}
