package types

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSuccessResponse_UnmarshalJSON(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    SuccessResponse
		wantErr bool
	}{
		{name: "boolean", input: `{"success":true,"displaytext":"done"}`, want: SuccessResponse{Success: true, DisplayText: "done"}},
		{name: "quoted true", input: `{"success":"true"}`, want: SuccessResponse{Success: true}},
		{name: "quoted false", input: `{"success":"false"}`, want: SuccessResponse{}},
		{name: "missing flag", input: `{"displaytext":"noop"}`, want: SuccessResponse{DisplayText: "noop"}},
		{name: "null flag", input: `{"success":null}`, want: SuccessResponse{}},
		{name: "garbage string", input: `{"success":"maybe"}`, wantErr: true},
		{name: "number", input: `{"success":1}`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got SuccessResponse
			err := json.Unmarshal([]byte(tt.input), &got)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
