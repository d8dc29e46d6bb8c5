package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Smooother/nivo-web-sub001/internal/model"
)

func TestCommandsRegistered(t *testing.T) {
	want := []string{"segment", "enrich", "financials", "job", "export", "insight", "serve"}

	names := map[string]bool{}
	for _, c := range rootCmd.Commands() {
		names[c.Name()] = true
	}

	for _, name := range want {
		assert.True(t, names[name], "command %q not registered", name)
	}
}

func TestJobSubcommands(t *testing.T) {
	names := map[string]bool{}
	for _, c := range jobCmd.Commands() {
		names[c.Name()] = true
	}

	for _, name := range []string{"status", "stop", "pause", "resume", "restart", "reset-errors"} {
		assert.True(t, names[name], "job subcommand %q not registered", name)
	}
}

func TestInsightInput(t *testing.T) {
	company := model.StagedCompany{OrgNumber: "5560001234", Name: "Acme AB"}
	recs := []model.FinancialRecord{
		{Year: 2023, Metrics: map[string]float64{"sdi": 1200, "dr": 90}},
		{Year: 2021, Metrics: map[string]float64{"sdi": 800}},
		{Year: 2022, Metrics: map[string]float64{"ek": 300}},
	}

	input := insightInput(company, recs)

	require.Len(t, input.Years, 3)
	assert.Equal(t, 2021, input.Years[0].Year)
	assert.Equal(t, 2023, input.Years[2].Year)
	require.NotNil(t, input.Years[0].Revenue)
	assert.Equal(t, 800.0, *input.Years[0].Revenue)
	assert.Nil(t, input.Years[1].Revenue)
	require.NotNil(t, input.Years[1].Equity)
}
