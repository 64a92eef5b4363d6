package server

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/churnlabs/churnguard/internal/analysis"
	"github.com/churnlabs/churnguard/internal/campaign"
	"github.com/churnlabs/churnguard/internal/gateway"
	"github.com/churnlabs/churnguard/internal/ingest"
	"github.com/churnlabs/churnguard/internal/models"
	"github.com/churnlabs/churnguard/internal/nlq"
	"github.com/churnlabs/churnguard/internal/storage"
)

// maxUploadBytes bounds the request body read; the validator applies the
// precise policy limit afterwards.
const maxUploadBytes = 32 << 20

type errorResponse struct {
	Error string `json:"error"`
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.Error("failed to encode response", zap.Error(err))
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, err error) {
	s.writeJSON(w, status, errorResponse{Error: err.Error()})
}

// handleUpload validates the uploaded CSV, runs header validation and
// persists the file. The validated table is not cached server-side; it
// is rehydrated from the stored document when analysis starts.
func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	user := userID(r)

	content, fileName, err := readUpload(r)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}

	table, outcome, err := s.validator.Validate(content)
	if err != nil {
		var verr *ingest.ValidationError
		if errors.As(err, &verr) {
			s.writeError(w, http.StatusUnprocessableEntity, err)
			return
		}
		s.writeError(w, http.StatusBadRequest, err)
		return
	}

	headerResult := s.headerValidator.Validate(r.Context(), table.Columns)
	if !headerResult.IsSuitable {
		s.writeJSON(w, http.StatusUnprocessableEntity, map[string]any{
			"outcome":           outcome,
			"header_validation": headerResult,
		})
		return
	}

	doc := &models.CSVDocument{
		ID:          uuid.New().String(),
		FileName:    fileName,
		FileContent: content,
		FileSize:    len(content),
		UploadDate:  time.Now(),
		RecordCount: outcome.NumRows,
		Columns:     table.Columns,
		MIMEType:    "text/csv",
	}
	fileID, err := s.store.StoreCSVFile(r.Context(), user, doc)
	if err != nil {
		s.logger.Error("failed to store uploaded CSV",
			zap.String("user_id", user), zap.Error(err))
		s.writeError(w, http.StatusInternalServerError, errors.New("failed to store uploaded file"))
		return
	}

	s.writeJSON(w, http.StatusOK, map[string]any{
		"csv_file_id":       fileID,
		"outcome":           outcome,
		"header_validation": headerResult,
	})
}

// readUpload accepts either a multipart form with a "file" field or a
// raw CSV body.
func readUpload(r *http.Request) ([]byte, string, error) {
	r.Body = http.MaxBytesReader(nil, r.Body, maxUploadBytes)

	if err := r.ParseMultipartForm(maxUploadBytes); err == nil {
		file, header, err := r.FormFile("file")
		if err != nil {
			return nil, "", errors.New("multipart form missing \"file\" field")
		}
		defer file.Close()
		content, err := io.ReadAll(file)
		if err != nil {
			return nil, "", err
		}
		return content, header.Filename, nil
	}

	content, err := io.ReadAll(r.Body)
	if err != nil {
		return nil, "", err
	}
	if len(content) == 0 {
		return nil, "", errors.New("empty request body")
	}
	return content, "upload.csv", nil
}

// handleAnalyze starts a background analysis over the tenant's latest
// upload and loads the query agent with the same dataset. The CSV
// attachment for full-table questions is best effort: a failed upload is
// reported but does not block the run.
func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	user := userID(r)

	doc, err := s.store.LatestCSVFile(r.Context(), user)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			s.writeError(w, http.StatusNotFound, errors.New("no uploaded CSV found, upload a file first"))
			return
		}
		s.writeError(w, http.StatusInternalServerError, err)
		return
	}

	table, _, err := s.validator.Validate(doc.FileContent)
	if err != nil {
		s.writeError(w, http.StatusUnprocessableEntity, err)
		return
	}

	runID := s.runner.Start(user, table, doc.ID)

	warning := ""
	if err := s.agentFor(user).Load(r.Context(), table, doc.ID, doc.FileContent); err != nil {
		s.logger.Warn("query agent dataset attach failed",
			zap.String("user_id", user), zap.Error(err))
		warning = "dataset attached without full-table context; detailed per-customer questions may be limited"
	}

	resp := map[string]any{
		"run_id": runID,
		"status": analysis.StatusRunning,
	}
	if warning != "" {
		resp["warning"] = warning
	}
	s.writeJSON(w, http.StatusAccepted, resp)
}

func (s *Server) handleAnalysisStatus(w http.ResponseWriter, r *http.Request) {
	user := userID(r)
	s.writeJSON(w, http.StatusOK, map[string]string{
		"status": s.runner.Status(r.Context(), user),
	})
}

func (s *Server) handleLatestAnalysis(w http.ResponseWriter, r *http.Request) {
	user := userID(r)

	doc, err := s.store.LatestAnalysis(r.Context(), user)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			s.writeError(w, http.StatusNotFound, errors.New("no analysis found, run an analysis first"))
			return
		}
		s.writeError(w, http.StatusInternalServerError, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{
		"analysis":        doc,
		"summary_message": analysis.SummaryMessage(doc.AnalysisResult),
	})
}

// handleProjection joins the latest analysis with its uploaded table and
// returns the derived customer rows.
func (s *Server) handleProjection(w http.ResponseWriter, r *http.Request) {
	user := userID(r)

	rows, err := s.latestProjection(r, user)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			s.writeError(w, http.StatusNotFound, errors.New("no analysis found, run an analysis first"))
			return
		}
		s.writeError(w, http.StatusInternalServerError, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{
		"customers": rows,
		"count":     len(rows),
	})
}

func (s *Server) latestProjection(r *http.Request, user string) ([]models.CustomerProjection, error) {
	analysisDoc, err := s.store.LatestAnalysis(r.Context(), user)
	if err != nil {
		return nil, err
	}

	// The original table is only needed for the email join; a missing or
	// unparseable upload degrades to placeholder emails.
	var table *ingest.Table
	if csvDoc, err := s.store.LatestCSVFile(r.Context(), user); err == nil {
		if parsed, err := ingest.ParseCSV(csvDoc.FileContent); err == nil {
			table = parsed
		}
	}

	return s.projections.Build(analysisDoc.AnalysisResult, table), nil
}

type chatRequest struct {
	Question  string `json:"question"`
	SessionID string `json:"session_id"`
}

// handleChat answers a question over the tenant's dataset. The agent is
// loaded lazily from the stored upload when analysis was started in a
// previous process.
func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	user := userID(r)

	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, errors.New("invalid JSON body"))
		return
	}
	if req.Question == "" {
		s.writeError(w, http.StatusBadRequest, errors.New("question is required"))
		return
	}

	agent := s.agentFor(user)
	if !agent.Loaded() {
		if err := s.loadAgentFromStore(r, user, agent); err != nil {
			if errors.Is(err, storage.ErrNotFound) {
				s.writeError(w, http.StatusNotFound, errors.New("no uploaded CSV found, upload a file first"))
				return
			}
			s.writeError(w, http.StatusInternalServerError, err)
			return
		}
	}

	history := s.conversationHistory(r, user)

	answer, err := agent.Ask(r.Context(), req.Question, history)
	if err != nil {
		switch {
		case errors.Is(err, nlq.ErrNoData):
			s.writeError(w, http.StatusNotFound, err)
		case errors.Is(err, gateway.ErrModelUnavailable):
			s.writeError(w, http.StatusServiceUnavailable, err)
		default:
			s.writeError(w, http.StatusBadGateway, err)
		}
		return
	}

	interaction := &models.ChatInteraction{
		ID:        uuid.New().String(),
		Timestamp: time.Now(),
		Question:  req.Question,
		Answer:    answer,
		SessionID: req.SessionID,
	}
	if err := s.store.StoreChatInteraction(r.Context(), user, interaction); err != nil {
		// The answer is already produced; losing the log entry is not
		// worth failing the request over.
		s.logger.Error("failed to store chat interaction",
			zap.String("user_id", user), zap.Error(err))
	}

	s.writeJSON(w, http.StatusOK, map[string]string{"answer": answer})
}

func (s *Server) loadAgentFromStore(r *http.Request, user string, agent *nlq.Agent) error {
	doc, err := s.store.LatestCSVFile(r.Context(), user)
	if err != nil {
		return err
	}
	table, _, err := s.validator.Validate(doc.FileContent)
	if err != nil {
		return err
	}
	if err := agent.Load(r.Context(), table, doc.ID, doc.FileContent); err != nil {
		s.logger.Warn("query agent dataset attach failed",
			zap.String("user_id", user), zap.Error(err))
	}
	return nil
}

// conversationHistory flattens stored interactions into prompt messages,
// oldest first. A read failure just yields an empty history.
func (s *Server) conversationHistory(r *http.Request, user string) []models.ChatMessage {
	interactions, err := s.store.RecentChatInteractions(r.Context(), user, 10)
	if err != nil {
		s.logger.Warn("failed to load chat history",
			zap.String("user_id", user), zap.Error(err))
		return nil
	}

	history := make([]models.ChatMessage, 0, len(interactions)*2)
	for _, it := range interactions {
		history = append(history,
			models.ChatMessage{Role: models.ChatRoleUser, Content: it.Question},
			models.ChatMessage{Role: models.ChatRoleAssistant, Content: it.Answer},
		)
	}
	return history
}

type campaignRequest struct {
	Name        string    `json:"name"`
	Type        string    `json:"type"`
	Segment     string    `json:"segment"`
	Template    string    `json:"template"`
	Priority    string    `json:"priority"`
	AgentName   string    `json:"agent_name"`
	CompanyName string    `json:"company_name"`
	ScheduledAt time.Time `json:"scheduled_at"`
}

func (s *Server) handleCreateCampaign(w http.ResponseWriter, r *http.Request) {
	user := userID(r)

	var req campaignRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, errors.New("invalid JSON body"))
		return
	}

	customers, err := s.latestProjection(r, user)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			s.writeError(w, http.StatusNotFound, errors.New("no analysis found, run an analysis first"))
			return
		}
		s.writeError(w, http.StatusInternalServerError, err)
		return
	}

	built, err := s.campaigns.Build(campaign.Request{
		Name:        req.Name,
		Type:        req.Type,
		Segment:     req.Segment,
		Template:    req.Template,
		Priority:    req.Priority,
		AgentName:   req.AgentName,
		CompanyName: req.CompanyName,
		ScheduledAt: req.ScheduledAt,
	}, customers)
	if err != nil {
		s.writeError(w, http.StatusUnprocessableEntity, err)
		return
	}

	if _, err := s.store.StoreCampaign(r.Context(), user, built); err != nil {
		s.writeError(w, http.StatusInternalServerError, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, built)
}

func (s *Server) handleListCampaigns(w http.ResponseWriter, r *http.Request) {
	user := userID(r)

	campaigns, err := s.store.ListCampaigns(r.Context(), user)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err)
		return
	}
	if campaigns == nil {
		campaigns = []*models.Campaign{}
	}
	s.writeJSON(w, http.StatusOK, map[string]any{
		"campaigns": campaigns,
		"count":     len(campaigns),
	})
}

func (s *Server) handleLimits(w http.ResponseWriter, r *http.Request) {
	limits := s.validator.Limits()
	s.writeJSON(w, http.StatusOK, map[string]int{
		"max_file_size_mb": limits.MaxFileSizeMB,
		"max_rows":         limits.MaxRows,
		"max_columns":      limits.MaxColumns,
		"min_rows":         limits.MinRows,
	})
}

// handleReset deletes all of the tenant's stored documents and drops its
// in-memory query agent.
func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	user := userID(r)

	if err := s.store.ResetUserData(r.Context(), user); err != nil {
		s.writeError(w, http.StatusInternalServerError, err)
		return
	}

	s.agentsMu.Lock()
	delete(s.agents, user)
	s.agentsMu.Unlock()

	s.logger.Info("user data reset", zap.String("user_id", user))
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "reset"})
}
