// Package campaign builds outreach campaigns from the customer
// projection: segment selection, recipient resolution and message
// rendering. Actual email/SMS/voice delivery happens outside this
// system; a built campaign carries everything a sender needs.
package campaign

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/churnlabs/churnguard/internal/models"
	"github.com/churnlabs/churnguard/internal/projection"
)

// SMSMaxLength is the single-segment SMS limit.
const SMSMaxLength = 160

// Segment labels selectable for a campaign.
const (
	SegmentHighRisk     = "High Risk"
	SegmentMediumRisk   = "Medium Risk"
	SegmentLowRisk      = "Low Risk"
	SegmentAllCustomers = "All Customers"
)

var (
	ErrMissingFields = errors.New("campaign name and message template required")
	ErrNoRecipients  = errors.New("no customers found for the selected segment")
)

// Request describes a campaign to build. Template may be empty to use
// the built-in template for the campaign type.
type Request struct {
	Name        string
	Type        string
	Segment     string
	Template    string
	Priority    string
	AgentName   string
	CompanyName string
	ScheduledAt time.Time
}

type Builder struct {
	logger *zap.Logger
}

func NewBuilder(logger *zap.Logger) *Builder {
	return &Builder{logger: logger}
}

// Build resolves the segment's recipients from the projection and
// renders the message per customer. Email recipients without a real
// address are skipped and counted. SMS messages over the length limit
// reject the campaign.
func (b *Builder) Build(req Request, customers []models.CustomerProjection) (*models.Campaign, error) {
	template := req.Template
	if template == "" {
		template = defaultTemplate(req.Type)
	}
	if req.Name == "" || template == "" {
		return nil, ErrMissingFields
	}

	selected := selectSegment(customers, req.Segment)
	if len(selected) == 0 {
		return nil, ErrNoRecipients
	}

	recipients := make([]models.CampaignRecipient, 0, len(selected))
	skipped := 0
	for _, c := range selected {
		if req.Type == models.CampaignTypeEmail && c.Email == projection.PlaceholderEmail {
			skipped++
			continue
		}

		message := renderMessage(template, c, req)
		if req.Type == models.CampaignTypeSMS && len(message) > SMSMaxLength {
			return nil, fmt.Errorf("message too long: %d/%d characters", len(message), SMSMaxLength)
		}

		recipients = append(recipients, models.CampaignRecipient{
			CustomerID: c.CustomerID,
			Email:      c.Email,
			Message:    message,
		})
	}

	if skipped > 0 {
		b.logger.Warn("recipients without email addresses skipped",
			zap.String("campaign", req.Name),
			zap.Int("skipped", skipped))
	}
	if len(recipients) == 0 {
		return nil, ErrNoRecipients
	}

	scheduledAt := req.ScheduledAt
	if scheduledAt.IsZero() {
		scheduledAt = time.Now()
	}

	campaign := &models.Campaign{
		ID:             uuid.New().String(),
		Name:           req.Name,
		Type:           req.Type,
		Segment:        req.Segment,
		Priority:       req.Priority,
		ScheduledAt:    scheduledAt,
		CreatedAt:      time.Now(),
		Status:         models.CampaignStatusScheduled,
		Recipients:     recipients,
		SkippedNoEmail: skipped,
	}

	b.logger.Info("campaign built",
		zap.String("name", campaign.Name),
		zap.String("type", campaign.Type),
		zap.String("segment", campaign.Segment),
		zap.Int("recipients", len(recipients)),
		zap.Int("skipped_no_email", skipped))

	return campaign, nil
}

func selectSegment(customers []models.CustomerProjection, segment string) []models.CustomerProjection {
	switch segment {
	case SegmentHighRisk:
		return projection.ByRiskLevel(customers, models.RiskHigh)
	case SegmentMediumRisk:
		return projection.ByRiskLevel(customers, models.RiskMedium)
	case SegmentLowRisk:
		return projection.ByRiskLevel(customers, models.RiskLow)
	default:
		return customers
	}
}

func renderMessage(template string, c models.CustomerProjection, req Request) string {
	return strings.NewReplacer(
		"{customer_name}", c.CustomerID,
		"{agent_name}", req.AgentName,
		"{company_name}", req.CompanyName,
	).Replace(template)
}

func defaultTemplate(campaignType string) string {
	switch campaignType {
	case models.CampaignTypeEmail:
		return emailRetentionTemplate
	case models.CampaignTypeSMS:
		return smsDefaultTemplate
	case models.CampaignTypeVoice:
		return voiceDefaultScript
	default:
		return ""
	}
}
