package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/churnlabs/churnguard/internal/analysis"
	"github.com/churnlabs/churnguard/internal/campaign"
	"github.com/churnlabs/churnguard/internal/contract"
	"github.com/churnlabs/churnguard/internal/gateway"
	"github.com/churnlabs/churnguard/internal/ingest"
	"github.com/churnlabs/churnguard/internal/models"
	"github.com/churnlabs/churnguard/internal/nlq"
	"github.com/churnlabs/churnguard/internal/projection"
	"github.com/churnlabs/churnguard/internal/prompt"
	"github.com/churnlabs/churnguard/internal/storage"
)

// stubGen routes canned responses by prompt shape so one stub serves
// header validation, analysis and chat.
type stubGen struct {
	analysisResponse string
	headerResponse   string
	chatResponse     string
}

func (s *stubGen) Available() bool { return true }

func (s *stubGen) GenerateText(ctx context.Context, promptText string, file *gateway.FileHandle) (string, error) {
	switch {
	case strings.Contains(promptText, "CSV Headers to Validate"):
		return s.headerResponse, nil
	case strings.Contains(promptText, "Dataset Overview:"):
		return s.analysisResponse, nil
	default:
		return s.chatResponse, nil
	}
}

func (s *stubGen) UploadCSV(ctx context.Context, content []byte, displayName string) (*gateway.FileHandle, error) {
	return &gateway.FileHandle{Name: "files/abc", URI: "uri://abc", MIMEType: "text/csv"}, nil
}

const testCSV = "customer_id,email,logins\nC001,a@example.com,3\nC002,b@example.com,17\n"

func analysisResponse() string {
	result := models.AnalysisResult{
		Summary: models.AnalysisSummary{TotalCustomers: 2, HighRiskCustomers: 1, TotalRevenueAtRisk: 9000},
		ChurnPredictions: map[string]models.PredictionRecord{
			"C001": {CustomerID: "C001", ChurnProbability: 0.9, RiskLevel: models.RiskHigh, EstimatedRevenueImpact: 8000},
			"C002": {CustomerID: "C002", ChurnProbability: 0.2, RiskLevel: models.RiskLow, EstimatedRevenueImpact: 1000},
		},
		CustomerSegments: map[string]any{},
	}
	raw, _ := json.Marshal(result)
	return string(raw)
}

func newTestServer(t *testing.T) (*Server, storage.Store) {
	t.Helper()
	return newTestServerWithHeaderResponse(t,
		`{"is_suitable": true, "confidence": "high", "reasoning": "ok", "message": "ok"}`)
}

func doJSON(t *testing.T, h http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func uploadCSV(t *testing.T, h http.Handler, csv string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/api/upload", strings.NewReader(csv))
	req.Header.Set("Content-Type", "text/csv")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func waitForAnalysis(t *testing.T, h http.Handler) {
	t.Helper()
	require.Eventually(t, func() bool {
		rec := doJSON(t, h, http.MethodGet, "/api/analysis/status", nil)
		return decodeBody(t, rec)["status"] == analysis.StatusCompleted
	}, 5*time.Second, 10*time.Millisecond)
}

func TestUploadHappyPath(t *testing.T) {
	srv, _ := newTestServer(t)
	h := srv.Router()

	rec := uploadCSV(t, h, testCSV)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	body := decodeBody(t, rec)
	assert.NotEmpty(t, body["csv_file_id"])

	outcome := body["outcome"].(map[string]any)
	assert.EqualValues(t, 2, outcome["num_rows"])
	assert.EqualValues(t, 3, outcome["num_columns"])
	assert.Equal(t, false, outcome["was_limited"])

	validation := body["header_validation"].(map[string]any)
	assert.Equal(t, true, validation["is_suitable"])
}

func TestUploadRejectsPolicyViolation(t *testing.T) {
	srv, _ := newTestServer(t)
	h := srv.Router()

	// 31 columns breaks the column limit.
	cols := make([]string, 31)
	row := make([]string, 31)
	for i := range cols {
		cols[i] = fmt.Sprintf("col%d", i)
		row[i] = "v"
	}
	csv := strings.Join(cols, ",") + "\n" + strings.Join(row, ",") + "\n"

	rec := uploadCSV(t, h, csv)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Contains(t, decodeBody(t, rec)["error"], "maximum allowed is 30")
}

func TestUploadUnsuitableHeaders(t *testing.T) {
	srv, _ := newTestServerWithHeaderResponse(t,
		`{"is_suitable": false, "confidence": "high", "reasoning": "no behavioral data", "message": "unsuitable"}`)
	h := srv.Router()

	rec := uploadCSV(t, h, testCSV)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	body := decodeBody(t, rec)
	validation := body["header_validation"].(map[string]any)
	assert.Equal(t, false, validation["is_suitable"])
	assert.Equal(t, "unsuitable", validation["message"])
}

func TestAnalyzeWithoutUpload(t *testing.T) {
	srv, _ := newTestServer(t)
	h := srv.Router()

	rec := doJSON(t, h, http.MethodPost, "/api/analyze", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestAnalyzeFlow(t *testing.T) {
	srv, _ := newTestServer(t)
	h := srv.Router()

	require.Equal(t, http.StatusOK, uploadCSV(t, h, testCSV).Code)

	rec := doJSON(t, h, http.MethodPost, "/api/analyze", nil)
	require.Equal(t, http.StatusAccepted, rec.Code, rec.Body.String())
	body := decodeBody(t, rec)
	assert.NotEmpty(t, body["run_id"])
	assert.Equal(t, analysis.StatusRunning, body["status"])

	waitForAnalysis(t, h)

	latest := doJSON(t, h, http.MethodGet, "/api/analysis/latest", nil)
	require.Equal(t, http.StatusOK, latest.Code)
	body = decodeBody(t, latest)

	doc := body["analysis"].(map[string]any)
	assert.Equal(t, models.AnalysisStatusCompleted, doc["status"])
	summary := doc["summary"].(map[string]any)
	assert.EqualValues(t, 2, summary["total_customers"])

	message := body["summary_message"].(string)
	assert.Contains(t, message, "CSV Analysis Complete")
	assert.Contains(t, message, "**Total Customers:** 2")
	assert.Contains(t, message, "**High Risk:** 1 customers (50.0%)")
}

func TestProjectionEndpoint(t *testing.T) {
	srv, _ := newTestServer(t)
	h := srv.Router()

	require.Equal(t, http.StatusOK, uploadCSV(t, h, testCSV).Code)
	require.Equal(t, http.StatusAccepted, doJSON(t, h, http.MethodPost, "/api/analyze", nil).Code)
	waitForAnalysis(t, h)

	rec := doJSON(t, h, http.MethodGet, "/api/projection", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	body := decodeBody(t, rec)
	assert.EqualValues(t, 2, body["count"])

	customers := body["customers"].([]any)
	first := customers[0].(map[string]any)
	assert.Equal(t, "C001", first["customer_id"])
	assert.Equal(t, "a@example.com", first["email"])
	assert.Equal(t, models.RiskHigh, first["risk_category"])
}

func TestProjectionWithoutAnalysis(t *testing.T) {
	srv, _ := newTestServer(t)
	h := srv.Router()

	rec := doJSON(t, h, http.MethodGet, "/api/projection", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestChatFlow(t *testing.T) {
	srv, store := newTestServer(t)
	h := srv.Router()

	require.Equal(t, http.StatusOK, uploadCSV(t, h, testCSV).Code)

	rec := doJSON(t, h, http.MethodPost, "/api/chat", chatRequest{Question: "How many customers?", SessionID: "s1"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "There are 2 customers.", decodeBody(t, rec)["answer"])

	interactions, err := store.RecentChatInteractions(context.Background(), defaultUserID, 10)
	require.NoError(t, err)
	require.Len(t, interactions, 1)
	assert.Equal(t, "How many customers?", interactions[0].Question)
	assert.Equal(t, "s1", interactions[0].SessionID)
}

func TestChatWithoutUpload(t *testing.T) {
	srv, _ := newTestServer(t)
	h := srv.Router()

	rec := doJSON(t, h, http.MethodPost, "/api/chat", chatRequest{Question: "hi"})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestChatRequiresQuestion(t *testing.T) {
	srv, _ := newTestServer(t)
	h := srv.Router()

	rec := doJSON(t, h, http.MethodPost, "/api/chat", chatRequest{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCampaignFlow(t *testing.T) {
	srv, _ := newTestServer(t)
	h := srv.Router()

	require.Equal(t, http.StatusOK, uploadCSV(t, h, testCSV).Code)
	require.Equal(t, http.StatusAccepted, doJSON(t, h, http.MethodPost, "/api/analyze", nil).Code)
	waitForAnalysis(t, h)

	rec := doJSON(t, h, http.MethodPost, "/api/campaigns", campaignRequest{
		Name:    "save the whales",
		Type:    models.CampaignTypeEmail,
		Segment: campaign.SegmentHighRisk,
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	body := decodeBody(t, rec)
	assert.Equal(t, "save the whales", body["name"])
	assert.EqualValues(t, 1, len(body["recipients"].([]any)))

	list := doJSON(t, h, http.MethodGet, "/api/campaigns", nil)
	require.Equal(t, http.StatusOK, list.Code)
	assert.EqualValues(t, 1, decodeBody(t, list)["count"])
}

func TestCampaignNoRecipients(t *testing.T) {
	srv, _ := newTestServer(t)
	h := srv.Router()

	require.Equal(t, http.StatusOK, uploadCSV(t, h, testCSV).Code)
	require.Equal(t, http.StatusAccepted, doJSON(t, h, http.MethodPost, "/api/analyze", nil).Code)
	waitForAnalysis(t, h)

	rec := doJSON(t, h, http.MethodPost, "/api/campaigns", campaignRequest{
		Name:    "nobody here",
		Type:    models.CampaignTypeEmail,
		Segment: campaign.SegmentMediumRisk,
	})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestLimitsEndpoint(t *testing.T) {
	srv, _ := newTestServer(t)
	h := srv.Router()

	rec := doJSON(t, h, http.MethodGet, "/api/limits", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	body := decodeBody(t, rec)
	assert.EqualValues(t, 10, body["max_file_size_mb"])
	assert.EqualValues(t, 100, body["max_rows"])
	assert.EqualValues(t, 30, body["max_columns"])
}

func TestResetEndpoint(t *testing.T) {
	srv, _ := newTestServer(t)
	h := srv.Router()

	require.Equal(t, http.StatusOK, uploadCSV(t, h, testCSV).Code)

	rec := doJSON(t, h, http.MethodPost, "/api/reset", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	// Everything is gone: analyze now has no upload to work from.
	assert.Equal(t, http.StatusNotFound, doJSON(t, h, http.MethodPost, "/api/analyze", nil).Code)
}

func TestTenantsAreIsolated(t *testing.T) {
	srv, _ := newTestServer(t)
	h := srv.Router()

	require.Equal(t, http.StatusOK, uploadCSV(t, h, testCSV).Code)

	req := httptest.NewRequest(http.MethodPost, "/api/analyze", nil)
	req.Header.Set("X-User-ID", "other-tenant")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func newTestServerWithHeaderResponse(t *testing.T, headerResponse string) (*Server, storage.Store) {
	t.Helper()
	logger := zap.NewNop()
	gen := &stubGen{
		analysisResponse: analysisResponse(),
		headerResponse:   headerResponse,
		chatResponse:     "There are 2 customers.",
	}

	store := storage.NewMemoryStore()
	assembler := prompt.NewAssembler("no-such-dir", logger)
	parser := contract.NewParser(logger)
	validator := ingest.NewValidator(ingest.Limits{MaxFileSizeMB: 10, MaxRows: 100, MaxColumns: 30, MinRows: 1}, logger)

	analyzer := analysis.NewAnalyzer(gen, assembler, parser, logger)
	runner := analysis.NewRunner(analyzer, store, logger)
	headerValidator := analysis.NewHeaderValidator(gen, assembler, parser, logger)
	projections := projection.NewBuilder(projection.Thresholds{}, logger)
	campaigns := campaign.NewBuilder(logger)
	newAgent := func() *nlq.Agent {
		return nlq.NewAgent(gen, assembler, nlq.NewRouter(nil), nlq.Options{}, logger)
	}

	return New(store, validator, headerValidator, runner, projections, campaigns, newAgent, logger), store
}
