// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chart

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtract(t *testing.T) {
	tests := []struct {
		name       string
		input      string
		wantText   string
		wantCharts int
		wantErrors int
	}{
		{
			name:     "plain text",
			input:    "Revenue grew 12% year over year.",
			wantText: "Revenue grew 12% year over year.",
		},
		{
			name:       "single chart",
			input:      "Before CHART_DATA:{\"type\":\"bar\",\"title\":\"Sales\"}:END_CHART after",
			wantText:   "Before  after",
			wantCharts: 1,
		},
		{
			name:       "chart error marker",
			input:      "x CHART_ERROR:{\"error\":\"no data\"}:END_CHART y",
			wantText:   "x  y",
			wantErrors: 1,
		},
		{
			name:     "malformed chart json is discarded",
			input:    "a CHART_DATA:{broken:END_CHART b",
			wantText: "a  b",
		},
		{
			name:       "multiple markers",
			input:      "CHART_DATA:{\"a\":1}:END_CHART mid CHART_DATA:{\"b\":{\"c\":2}}:END_CHART",
			wantText:   " mid ",
			wantCharts: 2,
		},
		{
			name:       "multiline json",
			input:      "CHART_DATA:{\n  \"type\": \"line\"\n}:END_CHART",
			wantText:   "",
			wantCharts: 1,
		},
		{
			name:     "unterminated marker is left alone",
			input:    "text CHART_DATA:{\"a\":1}",
			wantText: "text CHART_DATA:{\"a\":1}",
		},
		{
			name:       "marker formed by stripping is also removed",
			input:      "CHART_DA" + "CHART_DATA:{\"x\":1}:END_CHART" + "TA:{\"y\":2}:END_CHART",
			wantText:   "",
			wantCharts: 2,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := Extract(tt.input)
			assert.Equal(t, tt.wantText, res.Text)
			assert.Len(t, res.Charts, tt.wantCharts)
			assert.Len(t, res.Errors, tt.wantErrors)
			assert.False(t, HasMarker(res.Text))
		})
	}
}

func TestExtract_Idempotent(t *testing.T) {
	inputs := []string{
		"",
		"no markers here",
		"CHART_DATA:{\"type\":\"pie\"}:END_CHART tail",
		"CHART_DA" + "CHART_DATA:{}:END_CHART" + "TA:{}:END_CHART",
		"CHART_ERROR:nope:END_CHART CHART_DATA:{\"ok\":true}:END_CHART",
		"CHART_DATA:CHART_DATA:{}:END_CHART:{}:END_CHART",
	}

	for _, in := range inputs {
		once := Extract(in).Text
		twice := Extract(once).Text
		assert.Equal(t, once, twice, "input %q", in)
	}
}

func TestSettled(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"plain", "Sales rose.", "Sales rose."},
		{"open data marker", "Sales CHART_DATA:{\"type\":", "Sales "},
		{"open error marker", "Oops CHART_ERROR:{", "Oops "},
		{"trailing fragment", "Sales CHART_D", "Sales "},
		{"single letter fragment", "Sales C", "Sales "},
		{"fragment of error opener", "x CHART_ERR", "x "},
		{"closed markers already extracted", Extract("a CHART_DATA:{}:END_CHART b").Text, "a  b"},
		{"opener not at end", "CHART is fine", "CHART is fine"},
		{"empty", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Settled(tt.input))
		})
	}
}

func TestExtract_ChartsIffWellFormedData(t *testing.T) {
	assert.Empty(t, Extract("CHART_ERROR:{\"e\":1}:END_CHART").Charts)
	assert.Empty(t, Extract("CHART_DATA:[1,2]:END_CHART").Charts)
	assert.NotEmpty(t, Extract("CHART_DATA:{\"e\":1}:END_CHART").Charts)
}

func TestChart_Accessors(t *testing.T) {
	res := Extract("CHART_DATA:{\"type\":\"bar\",\"title\":\"Quarterly\"}:END_CHART")
	require.Len(t, res.Charts, 1)
	c := res.Charts[0]
	assert.Equal(t, KindData, c.Kind)
	assert.Equal(t, "bar", c.Type())
	assert.Equal(t, "Quarterly", c.Title())
}
