package graph

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ---------------------------------------------------------------------------
// Builtin templates
// ---------------------------------------------------------------------------

func TestValidateBuiltinTemplates(t *testing.T) {
	assert.NoError(t, ValidateBuiltinTemplates())
}

func TestBuiltinTemplate_UnknownIntentFallsBackToGeneral(t *testing.T) {
	assert.Equal(t, BuiltinTemplate(IntentGeneral), BuiltinTemplate(Intent("nonsense")))
}

// ---------------------------------------------------------------------------
// AdaptLegacyTemplate
// ---------------------------------------------------------------------------

func TestAdaptLegacyTemplate(t *testing.T) {
	legacy := "Use the context:\n{context_str}\n\nQuestion: {query_str}"
	adapted := AdaptLegacyTemplate(legacy)

	assert.Contains(t, adapted, "{context}")
	assert.Contains(t, adapted, "{query}")
	assert.NotContains(t, adapted, "{context_str}")
	assert.NotContains(t, adapted, "{query_str}")
	assert.Contains(t, adapted, "80 words")
}

func TestAdaptLegacyTemplate_BrevityNotDuplicated(t *testing.T) {
	tmpl := "Answer {query} from {context}. Keep it under 80 words."
	adapted := AdaptLegacyTemplate(tmpl)
	assert.Equal(t, 1, strings.Count(adapted, "80 words"))
}

// ---------------------------------------------------------------------------
// PromptRegistry
// ---------------------------------------------------------------------------

func TestPromptRegistry_RegisterAdaptsAndLoads(t *testing.T) {
	t.Parallel()

	reg := NewPromptRegistry()
	reg.Register("v1_archetype", "Context: {context_str}\nQ: {query_str}")

	tmpl, err := reg.Load("v1_archetype")
	require.NoError(t, err)
	assert.Contains(t, tmpl, "{context}")
	assert.Contains(t, tmpl, "80 words")

	_, err = reg.Load("missing")
	assert.Error(t, err)

	assert.Equal(t, []string{"v1_archetype"}, reg.Names())
}

// ---------------------------------------------------------------------------
// RenderTemplate
// ---------------------------------------------------------------------------

func TestRenderTemplate(t *testing.T) {
	out := RenderTemplate("C: {context}\nQ: {query}", "ctx block", "the question")
	assert.Equal(t, "C: ctx block\nQ: the question", out)
}
