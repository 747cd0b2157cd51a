package pattern

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Veraticus/the-paperwork-must-flow/internal/common"
	"github.com/Veraticus/the-paperwork-must-flow/internal/model"
)

func TestRuleSetYAML_RoundTrip(t *testing.T) {
	def := DefaultRuleSet()

	var buf bytes.Buffer
	require.NoError(t, WriteRuleSetYAML(&buf, def))

	loaded, err := LoadRuleSetYAML(&buf)
	require.NoError(t, err)
	assert.Equal(t, def.Name, loaded.Name)
	assert.Equal(t, def.Settings, loaded.Settings)
	assert.Equal(t, def.CategoryRules, loaded.CategoryRules)
}

func TestLoadRuleSetYAML(t *testing.T) {
	t.Run("missing thresholds take defaults", func(t *testing.T) {
		doc := `
name: Mine
category_rules:
  - name: Energy
    category: utilities
    patterns: [octopus]
`
		rs, err := LoadRuleSetYAML(strings.NewReader(doc))
		require.NoError(t, err)
		assert.Equal(t, model.DefaultSettings(), rs.Settings)
		assert.Equal(t, []string{"octopus"}, rs.CategoryRules[0].Patterns)
	})

	t.Run("unknown field", func(t *testing.T) {
		doc := `
name: Mine
colour: blue
category_rules:
  - name: Energy
    category: utilities
    patterns: [octopus]
`
		_, err := LoadRuleSetYAML(strings.NewReader(doc))
		assert.Error(t, err)
	})

	t.Run("invalid rule set", func(t *testing.T) {
		_, err := LoadRuleSetYAML(strings.NewReader("name: Empty\n"))
		assert.ErrorIs(t, err, common.ErrValidation)
	})
}
