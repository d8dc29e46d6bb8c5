// Package insight produces model-generated assessments of a company's
// financial trajectory from its staged financial records.
package insight

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	sdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// CompanyInput is the financial profile handed to the analyzer.
type CompanyInput struct {
	Name       string        `json:"name"`
	OrgNumber  string        `json:"orgnr"`
	Industries []string      `json:"industries,omitempty"`
	Years      []YearMetrics `json:"years"`
}

// YearMetrics is one fiscal year of headline figures, in KSEK.
type YearMetrics struct {
	Year    int      `json:"year"`
	Revenue *float64 `json:"revenue_ksek,omitempty"`
	Result  *float64 `json:"result_ksek,omitempty"`
	Equity  *float64 `json:"equity_ksek,omitempty"`
}

// Finding is the analyzer's structured assessment.
type Finding struct {
	Summary     string   `json:"summary"`
	GrowthTrend string   `json:"growth_trend"` // "growing", "flat", "declining", "unknown"
	RiskFlags   []string `json:"risk_flags,omitempty"`
}

// Analyzer assesses a company's financial profile.
type Analyzer interface {
	AnalyzeCompany(ctx context.Context, input CompanyInput) (*Finding, error)
}

// messenger is the slice of the Anthropic API the analyzer needs.
type messenger interface {
	createMessage(ctx context.Context, model string, system, user string) (string, error)
}

type analyzer struct {
	client messenger
	model  string
}

// New returns an Analyzer backed by the Anthropic API.
func New(apiKey, model string) Analyzer {
	return &analyzer{
		client: &sdkMessenger{client: sdk.NewClient(option.WithAPIKey(apiKey))},
		model:  model,
	}
}

const systemPrompt = `You are a financial analyst reviewing Swedish limited companies.
Figures are in KSEK from standardized annual accounts.
Respond with a single JSON object and nothing else:
{"summary": "<2-3 sentences>", "growth_trend": "growing|flat|declining|unknown", "risk_flags": ["<flag>", ...]}`

func (a *analyzer) AnalyzeCompany(ctx context.Context, input CompanyInput) (*Finding, error) {
	if len(input.Years) == 0 {
		return nil, eris.Errorf("insight: no financial years for %s", input.OrgNumber)
	}

	payload, err := json.Marshal(input)
	if err != nil {
		return nil, eris.Wrap(err, "insight: marshal input")
	}
	user := fmt.Sprintf("Assess this company:\n%s", payload)

	text, err := a.client.createMessage(ctx, a.model, systemPrompt, user)
	if err != nil {
		return nil, err
	}

	var finding Finding
	if err := json.Unmarshal([]byte(extractJSON(text)), &finding); err != nil {
		return nil, eris.Wrapf(err, "insight: parse response for %s", input.OrgNumber)
	}

	zap.L().Debug("company analyzed",
		zap.String("orgnr", input.OrgNumber),
		zap.String("growth_trend", finding.GrowthTrend))

	return &finding, nil
}

// extractJSON trims a markdown code fence if the model wrapped its answer in
// one.
func extractJSON(text string) string {
	text = strings.TrimSpace(text)
	if strings.HasPrefix(text, "```") {
		if i := strings.Index(text, "\n"); i >= 0 {
			text = text[i+1:]
		}
		text = strings.TrimSuffix(strings.TrimSpace(text), "```")
	}
	return strings.TrimSpace(text)
}

type sdkMessenger struct {
	client sdk.Client
}

func (m *sdkMessenger) createMessage(ctx context.Context, model, system, user string) (string, error) {
	msg, err := m.client.Messages.New(ctx, sdk.MessageNewParams{
		Model:     sdk.Model(model),
		MaxTokens: 1024,
		System:    []sdk.TextBlockParam{{Text: system}},
		Messages:  []sdk.MessageParam{sdk.NewUserMessage(sdk.NewTextBlock(user))},
	})
	if err != nil {
		return "", eris.Wrap(err, "insight: create message")
	}

	var sb strings.Builder
	for _, block := range msg.Content {
		if block.Type == "text" {
			sb.WriteString(block.Text)
		}
	}
	return sb.String(), nil
}
