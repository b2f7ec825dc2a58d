package docs

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/swaggo/swag"
)

func TestSwaggerRegistrado(t *testing.T) {
	raw, err := swag.ReadDoc(SwaggerInfo.InstanceName())
	require.NoError(t, err)

	var doc struct {
		Paths map[string]any `json:"paths"`
	}
	require.NoError(t, json.Unmarshal([]byte(raw), &doc))
	for _, p := range []string{"/api/inventory/receive", "/api/inventory/issue", "/api/inventory/transfer",
		"/api/inventory/adjust", "/api/inventory/stocks", "/api/inventory/movements"} {
		assert.Contains(t, doc.Paths, p)
	}
}
