package masking

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMaskMetadata(t *testing.T) {
	out := MaskMetadata(map[string]any{
		"phone": "081234567890",
		"code":  "GAR-20240101ABCD",
		"changes": map[string]any{
			"email": "sales@example.com",
		},
		"": "dropped",
	})

	assert.Equal(t, "****7890", out["phone"])
	assert.Equal(t, "GAR-20240101ABCD", out["code"])
	assert.Equal(t, map[string]any{"email": "****.com"}, out["changes"])
	assert.NotContains(t, out, "")
}

func TestMaskValueShort(t *testing.T) {
	assert.Equal(t, "****", MaskValue("123"))
	assert.Equal(t, "", MaskValue("  "))
}
