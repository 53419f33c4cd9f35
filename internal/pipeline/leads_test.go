package pipeline

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLeads(t *testing.T) {
	input := `
{"username":"octocat","name":"The Octocat","url":"https://github.com/octocat"}

# a comment line
{"username":"acme","url":"https://github.com/acme"}
`
	leads, err := ParseLeads(strings.NewReader(input))
	require.NoError(t, err)
	require.Len(t, leads, 2)
	assert.Equal(t, "octocat", leads[0].Username)
	assert.Equal(t, "The Octocat", leads[0].Name)
	assert.Equal(t, "https://github.com/octocat", leads[0].URL)
	assert.Equal(t, "acme", leads[1].Username)
	assert.Empty(t, leads[1].Name)
}

func TestParseLeadsReportsLineNumber(t *testing.T) {
	input := `{"username":"ok","url":"https://github.com/ok"}
{"username":"broken"
`
	_, err := ParseLeads(strings.NewReader(input))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "line 2")
}

func TestParseLeadsRejectsInvalidLead(t *testing.T) {
	_, err := ParseLeads(strings.NewReader(`{"username":"nourl"}`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "line 1")
}

func TestParseLeadsEmptyInput(t *testing.T) {
	leads, err := ParseLeads(strings.NewReader("\n\n# nothing here\n"))
	require.NoError(t, err)
	assert.Empty(t, leads)
}

func TestReadLeadsMissingFile(t *testing.T) {
	_, err := ReadLeads("does/not/exist.jsonl")
	require.Error(t, err)
}
