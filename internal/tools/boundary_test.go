package tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// scriptedReasoning replays canned responses in order. A response beginning
// with "ERR:" becomes a transport error.
type scriptedReasoning struct {
	responses []string
	calls     int
}

func (s *scriptedReasoning) Complete(ctx context.Context, req CompletionRequest) (json.RawMessage, error) {
	if s.calls >= len(s.responses) {
		return nil, fmt.Errorf("scripted reasoning exhausted after %d calls", s.calls)
	}
	resp := s.responses[s.calls]
	s.calls++
	if len(resp) > 4 && resp[:4] == "ERR:" {
		return nil, errors.New(resp[4:])
	}
	return json.RawMessage(resp), nil
}

type testOutput struct {
	Kind  string `json:"kind"`
	Count int    `json:"count"`
}

func (o *testOutput) Validate() error {
	if o.Kind != "alpha" && o.Kind != "beta" {
		return fmt.Errorf("unknown kind %q", o.Kind)
	}
	return nil
}

func TestCompleteJSON(t *testing.T) {
	ctx := context.Background()
	req := CompletionRequest{Schema: Schema{Name: "test_output"}}

	t.Run("first attempt succeeds", func(t *testing.T) {
		svc := &scriptedReasoning{responses: []string{`{"kind":"alpha","count":3}`}}
		out, err := CompleteJSON[testOutput](ctx, svc, req)
		require.NoError(t, err)
		assert.Equal(t, "alpha", out.Kind)
		assert.Equal(t, 3, out.Count)
		assert.Equal(t, 1, svc.calls)
	})

	t.Run("transport error retried once", func(t *testing.T) {
		svc := &scriptedReasoning{responses: []string{"ERR:connection reset", `{"kind":"beta","count":1}`}}
		out, err := CompleteJSON[testOutput](ctx, svc, req)
		require.NoError(t, err)
		assert.Equal(t, "beta", out.Kind)
		assert.Equal(t, 2, svc.calls)
	})

	t.Run("malformed output retried once", func(t *testing.T) {
		svc := &scriptedReasoning{responses: []string{`not json at all`, `{"kind":"alpha"}`}}
		out, err := CompleteJSON[testOutput](ctx, svc, req)
		require.NoError(t, err)
		assert.Equal(t, "alpha", out.Kind)
	})

	t.Run("stale fields never leak across attempts", func(t *testing.T) {
		svc := &scriptedReasoning{responses: []string{
			`{"kind":"gamma","count":42}`, // fails validation
			`{"kind":"alpha"}`,            // no count field
		}}
		out, err := CompleteJSON[testOutput](ctx, svc, req)
		require.NoError(t, err)
		assert.Equal(t, 0, out.Count, "second attempt must decode into a fresh value")
	})

	t.Run("second failure is terminal", func(t *testing.T) {
		svc := &scriptedReasoning{responses: []string{"ERR:timeout", "ERR:timeout again"}}
		_, err := CompleteJSON[testOutput](ctx, svc, req)
		var re *ReasoningError
		require.ErrorAs(t, err, &re)
		assert.Equal(t, 2, re.Attempts)
		assert.Equal(t, "test_output", re.Op)
		assert.Equal(t, 2, svc.calls)
	})

	t.Run("validation failure twice is terminal", func(t *testing.T) {
		svc := &scriptedReasoning{responses: []string{`{"kind":"x"}`, `{"kind":"y"}`}}
		_, err := CompleteJSON[testOutput](ctx, svc, req)
		var re *ReasoningError
		require.ErrorAs(t, err, &re)
	})

	t.Run("canceled context stops immediately", func(t *testing.T) {
		canceled, cancel := context.WithCancel(ctx)
		cancel()
		svc := &scriptedReasoning{responses: []string{`{"kind":"alpha"}`}}
		_, err := CompleteJSON[testOutput](canceled, svc, req)
		require.ErrorIs(t, err, context.Canceled)
		assert.Equal(t, 0, svc.calls)
	})
}

func TestSchemaJSONRendering(t *testing.T) {
	s := Schema{
		Name: "next_action",
		Properties: map[string]Property{
			"action": {Type: "string", Enum: []string{"search", "fetch", "finish"}},
			"links": {
				Type: "array",
				Items: &Property{
					Type: "object",
					Properties: map[string]Property{
						"url":    {Type: "string"},
						"reason": {Type: "string"},
					},
					Required: []string{"url"},
				},
			},
		},
		Required: []string{"action"},
	}

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(s.JSONSchema(), &decoded))

	assert.Equal(t, "object", decoded["type"])
	assert.Equal(t, false, decoded["additionalProperties"])
	assert.Equal(t, []any{"action"}, decoded["required"])

	props, ok := decoded["properties"].(map[string]any)
	require.True(t, ok)
	action := props["action"].(map[string]any)
	assert.Equal(t, []any{"search", "fetch", "finish"}, action["enum"])

	links := props["links"].(map[string]any)
	items := links["items"].(map[string]any)
	assert.Equal(t, false, items["additionalProperties"])
	assert.Equal(t, []any{"url"}, items["required"])
}
