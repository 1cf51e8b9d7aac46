package domain

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatus_String(t *testing.T) {
	assert.Equal(t, "Pending", StatusPending.String())
	assert.Equal(t, "Processing", StatusProcessing.String())
	assert.Equal(t, "Success", StatusSuccess.String())
	assert.Equal(t, "Failed", StatusFailed.String())
	assert.Equal(t, "Status(9)", Status(9).String())
}

func TestStatus_Terminal(t *testing.T) {
	assert.False(t, StatusPending.Terminal())
	assert.False(t, StatusProcessing.Terminal())
	assert.True(t, StatusSuccess.Terminal())
	assert.True(t, StatusFailed.Terminal())
}

func TestParseStatus(t *testing.T) {
	tests := []struct {
		input    string
		expected Status
		wantErr  bool
	}{
		{input: "Pending", expected: StatusPending},
		{input: "Failed", expected: StatusFailed},
		{input: "2", expected: StatusSuccess},
		{input: "pending", wantErr: true},
		{input: "7", wantErr: true},
		{input: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			status, err := ParseStatus(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expected, status)
		})
	}
}

func TestStatus_JSON(t *testing.T) {
	data, err := json.Marshal(StatusSuccess)
	require.NoError(t, err)
	assert.Equal(t, `"Success"`, string(data))

	_, err = json.Marshal(Status(-1))
	assert.Error(t, err)

	var s Status
	require.NoError(t, json.Unmarshal([]byte(`"Processing"`), &s))
	assert.Equal(t, StatusProcessing, s)

	require.NoError(t, json.Unmarshal([]byte(`3`), &s))
	assert.Equal(t, StatusFailed, s)

	assert.Error(t, json.Unmarshal([]byte(`"Winner"`), &s))
	assert.Error(t, json.Unmarshal([]byte(`12`), &s))
	assert.Error(t, json.Unmarshal([]byte(`{}`), &s))
}
