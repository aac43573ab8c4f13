// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Billetterie Contributors

package config

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateSchema(t *testing.T) {
	data, err := GenerateSchema()
	require.NoError(t, err)

	var doc map[string]any
	require.NoError(t, json.Unmarshal(data, &doc))
	assert.Equal(t, SchemaID, doc["$id"])

	props := doc["properties"].(map[string]any)
	for _, key := range []string{"server", "database", "auth", "ratelimit", "observability", "log"} {
		assert.Contains(t, props, key)
	}

	auth := props["auth"].(map[string]any)["properties"].(map[string]any)
	ttl := auth["session_ttl"].(map[string]any)
	assert.Equal(t, "string", ttl["type"])
	assert.Nil(t, doc["required"])
}

func TestValidateSchema(t *testing.T) {
	tests := []struct {
		name    string
		yaml    string
		wantErr bool
	}{
		{name: "empty document", yaml: ""},
		{name: "partial", yaml: "server:\n  addr: ':8081'\n"},
		{name: "durations", yaml: "auth:\n  session_ttl: 12h30m\n  reset_ttl: 45m\n"},
		{name: "unknown key", yaml: "server:\n  port: 80\n", wantErr: true},
		{name: "bad enum", yaml: "log:\n  format: xml\n", wantErr: true},
		{name: "cost below minimum", yaml: "auth:\n  bcrypt_cost: 4\n", wantErr: true},
		{name: "numeric duration", yaml: "auth:\n  session_ttl: 3600\n", wantErr: true},
		{name: "malformed duration", yaml: "auth:\n  session_ttl: soon\n", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateSchema([]byte(tt.yaml))
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			assert.NoError(t, err)
		})
	}
}
