package metatools

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestToolSummaryJSONOmitsEmptyFields(t *testing.T) {
	summary := ToolSummary{Name: "get_repo", Backend: "github"}

	data, err := json.Marshal(summary)
	require.NoError(t, err)

	assert.NotContains(t, string(data), "first_sentence")
	assert.NotContains(t, string(data), "call_example")
}

func TestSearchToolsInputValidation(t *testing.T) {
	assert.Error(t, (&SearchToolsInput{}).Validate())
	assert.NoError(t, (&SearchToolsInput{TaskDescription: "find a repo"}).Validate())
}

func TestSearchToolsInputDefaults(t *testing.T) {
	input := SearchToolsInput{TaskDescription: "x"}
	assert.Equal(t, 10, input.GetLimit())
	assert.True(t, input.GetBrief())
}

func TestListToolsMetaInputDefaultPageSize(t *testing.T) {
	input := ListToolsMetaInput{}
	assert.Equal(t, 50, input.GetPageSize())
}

func TestToolInfoInputValidation(t *testing.T) {
	assert.Error(t, (&ToolInfoInput{}).Validate())
	input := &ToolInfoInput{ToolName: "github.get_repo"}
	require.NoError(t, input.Validate())
	assert.Equal(t, "brief", input.GetDetail())
}

func TestCallToolChainInputValidation(t *testing.T) {
	assert.Error(t, (&CallToolChainInput{}).Validate())
	input := &CallToolChainInput{Code: "github.get_repo({})"}
	require.NoError(t, input.Validate())
	assert.Equal(t, 200_000, input.GetMaxOutputSize())
}

func TestRegisterManualInputValidation(t *testing.T) {
	cases := []struct {
		name    string
		input   RegisterManualInput
		wantErr bool
	}{
		{"valid stdio", RegisterManualInput{Name: "local-tool", Transport: "stdio", Command: "./tool"}, false},
		{"valid http", RegisterManualInput{Name: "remote", Transport: "http", URL: "http://localhost:9000"}, false},
		{"missing name", RegisterManualInput{Transport: "stdio", Command: "./tool"}, true},
		{"bad name chars", RegisterManualInput{Name: "bad name!", Transport: "stdio", Command: "./tool"}, true},
		{"stdio without command", RegisterManualInput{Name: "x", Transport: "stdio"}, true},
		{"http without url", RegisterManualInput{Name: "x", Transport: "http"}, true},
		{"unknown transport", RegisterManualInput{Name: "x", Transport: "carrier-pigeon"}, true},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			err := c.input.Validate()
			if c.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestDeregisterManualInputValidation(t *testing.T) {
	assert.Error(t, (&DeregisterManualInput{}).Validate())
	assert.NoError(t, (&DeregisterManualInput{Name: "local-tool"}).Validate())
}
