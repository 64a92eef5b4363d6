package models

import "time"

// Analysis run status values persisted with AnalysisDocument.
const (
	AnalysisStatusCompleted = "completed"
	AnalysisStatusFailed    = "failed"
)

// CSVDocument is a stored upload, partitioned per tenant.
type CSVDocument struct {
	ID          string    `json:"id"`
	FileName    string    `json:"file_name"`
	FileContent []byte    `json:"file_content"`
	FileSize    int       `json:"file_size"`
	UploadDate  time.Time `json:"upload_date"`
	RecordCount int       `json:"record_count"`
	Columns     []string  `json:"columns"`
	MIMEType    string    `json:"mime_type"`
}

// AnalysisDocument is the persisted result of one analysis run.
type AnalysisDocument struct {
	ID               string                      `json:"id"`
	AnalysisDate     time.Time                   `json:"analysis_date"`
	AnalysisResult   *AnalysisResult             `json:"analysis_result"`
	Summary          AnalysisSummary             `json:"summary"`
	ChurnPredictions map[string]PredictionRecord `json:"churn_predictions"`
	Insights         Insights                    `json:"insights"`
	Analytics        Analytics                   `json:"analytics"`
	CSVFileID        string                      `json:"csv_file_id"`
	Status           string                      `json:"status"`
}

// ChatInteraction is one stored question/answer pair.
type ChatInteraction struct {
	ID        string    `json:"id"`
	Timestamp time.Time `json:"timestamp"`
	Question  string    `json:"question"`
	Answer    string    `json:"answer"`
	SessionID string    `json:"session_id"`
}

// ChatMessage is one unit of conversation history fed into a prompt.
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

const (
	ChatRoleUser      = "user"
	ChatRoleAssistant = "assistant"
)

// Campaign types and statuses.
const (
	CampaignTypeEmail = "email"
	CampaignTypeSMS   = "sms"
	CampaignTypeVoice = "voice"

	CampaignStatusScheduled = "scheduled"
	CampaignStatusCompleted = "completed"
)

// CampaignRecipient is one resolved outreach target.
type CampaignRecipient struct {
	CustomerID string `json:"customer_id"`
	Email      string `json:"email"`
	Message    string `json:"message"`
}

// Campaign is a stored outreach campaign. Send mechanics live outside
// this system; the campaign carries everything a sender needs.
type Campaign struct {
	ID             string              `json:"id"`
	Name           string              `json:"name"`
	Type           string              `json:"type"`
	Segment        string              `json:"segment"`
	Priority       string              `json:"priority"`
	ScheduledAt    time.Time           `json:"scheduled_at"`
	CreatedAt      time.Time           `json:"created_at"`
	Status         string              `json:"status"`
	Recipients     []CampaignRecipient `json:"recipients"`
	SkippedNoEmail int                 `json:"skipped_no_email"`
}
