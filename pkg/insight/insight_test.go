package insight

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeMessenger struct {
	response string
	err      error
	lastUser string
}

func (f *fakeMessenger) createMessage(_ context.Context, _ string, _, user string) (string, error) {
	f.lastUser = user
	return f.response, f.err
}

func testInput() CompanyInput {
	rev := 12000.0
	return CompanyInput{
		Name:      "Acme AB",
		OrgNumber: "5560001234",
		Years:     []YearMetrics{{Year: 2023, Revenue: &rev}},
	}
}

func TestAnalyzeCompany(t *testing.T) {
	fake := &fakeMessenger{
		response: `{"summary": "Steady revenue growth.", "growth_trend": "growing", "risk_flags": ["thin equity"]}`,
	}
	a := &analyzer{client: fake, model: "claude-sonnet-4-5-20250929"}

	finding, err := a.AnalyzeCompany(context.Background(), testInput())
	require.NoError(t, err)

	assert.Equal(t, "growing", finding.GrowthTrend)
	assert.Equal(t, []string{"thin equity"}, finding.RiskFlags)
	assert.True(t, strings.Contains(fake.lastUser, "5560001234"), "prompt must carry the org number")
}

func TestAnalyzeCompany_FencedResponse(t *testing.T) {
	fake := &fakeMessenger{
		response: "```json\n{\"summary\": \"Flat.\", \"growth_trend\": \"flat\"}\n```",
	}
	a := &analyzer{client: fake, model: "claude-sonnet-4-5-20250929"}

	finding, err := a.AnalyzeCompany(context.Background(), testInput())
	require.NoError(t, err)
	assert.Equal(t, "flat", finding.GrowthTrend)
}

func TestAnalyzeCompany_RejectsEmptyInput(t *testing.T) {
	a := &analyzer{client: &fakeMessenger{}, model: "m"}
	_, err := a.AnalyzeCompany(context.Background(), CompanyInput{OrgNumber: "5560001234"})
	require.Error(t, err)
}

func TestAnalyzeCompany_MalformedResponse(t *testing.T) {
	a := &analyzer{client: &fakeMessenger{response: "not json"}, model: "m"}
	_, err := a.AnalyzeCompany(context.Background(), testInput())
	require.Error(t, err)
}
