package cli

import (
	"bytes"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/TimurManjosov/goflagclient/internal/client"
)

func sampleDetails() []client.EvaluationDetails {
	return []client.EvaluationDetails{
		{Key: "feature_x", Value: true, VariationID: "v-1"},
		{Key: "missing", Value: "fallback", IsDefaultValue: true, Error: errors.New("failed to find setting")},
	}
}

func TestPrintDetailsJSON(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, PrintDetails(&buf, sampleDetails(), FormatJSON))

	var out struct {
		Flags []struct {
			Key     string `json:"key"`
			Value   any    `json:"value"`
			Default bool   `json:"default"`
			Error   string `json:"error"`
		} `json:"flags"`
	}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &out))
	require.Len(t, out.Flags, 2)
	assert.Equal(t, "feature_x", out.Flags[0].Key)
	assert.Equal(t, true, out.Flags[0].Value)
	assert.False(t, out.Flags[0].Default)
	assert.True(t, out.Flags[1].Default)
	assert.Equal(t, "failed to find setting", out.Flags[1].Error)
}

func TestPrintDetailsYAML(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, PrintDetails(&buf, sampleDetails(), FormatYAML))

	out := buf.String()
	assert.Contains(t, out, "key: feature_x")
	assert.Contains(t, out, "value: true")
	assert.Contains(t, out, "error: failed to find setting")
}

func TestPrintDetailsTable(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, PrintDetails(&buf, sampleDetails(), FormatTable))

	out := buf.String()
	assert.Contains(t, out, "feature_x")
	assert.Contains(t, out, "v-1")
	assert.Contains(t, out, "fallback")
}

func TestPrintDetailsUnsupportedFormat(t *testing.T) {
	err := PrintDetails(&bytes.Buffer{}, sampleDetails(), OutputFormat("xml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported format")
}

func TestPrintDetailJSONIsSingleObject(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, PrintDetail(&buf, sampleDetails()[0], FormatJSON))

	var row map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &row))
	assert.Equal(t, "feature_x", row["key"])
}
