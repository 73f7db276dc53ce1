package graph

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/BaSui01/prism/testutil/mocks"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newChecker(t *testing.T, provider *mocks.MockProvider) *HallucinationChecker {
	t.Helper()
	checker, err := NewHallucinationChecker(provider, "", zap.NewNop())
	require.NoError(t, err)
	return checker
}

func TestHallucinationChecker_Grounded(t *testing.T) {
	t.Parallel()

	provider := mocks.NewMockProvider().WithResponse(`{"grounding": "grounded"}`)
	state := &State{Generation: "The fund holds 40 names."}
	newChecker(t, provider).Check(context.Background(), state)

	assert.Equal(t, Grounded, state.HallucinationCheck)
	assert.Equal(t, "The fund holds 40 names.", state.Generation)
}

func TestHallucinationChecker_NotGroundedAppendsDisclaimer(t *testing.T) {
	t.Parallel()

	provider := mocks.NewMockProvider().
		WithResponse(`{"grounding": "not_grounded", "reasoning": "figure absent from context"}`)
	state := &State{Generation: "The fund returned 99% last year."}
	newChecker(t, provider).Check(context.Background(), state)

	assert.Equal(t, NotGrounded, state.HallucinationCheck)
	assert.True(t, strings.HasSuffix(state.Generation, hallucinationDisclaimer))
	assert.Contains(t, state.Generation, "The fund returned 99% last year.")
}

func TestHallucinationChecker_UnknownVerdictIsUncertain(t *testing.T) {
	t.Parallel()

	provider := mocks.NewMockProvider().WithResponse(`{"grounding": "maybe"}`)
	state := &State{Generation: "answer"}
	newChecker(t, provider).Check(context.Background(), state)

	assert.Equal(t, Uncertain, state.HallucinationCheck)
	assert.Equal(t, "answer", state.Generation)
}

func TestHallucinationChecker_FailureLeavesAnswerUntouched(t *testing.T) {
	t.Parallel()

	provider := mocks.NewMockProvider().WithError(errors.New("llm down"))
	state := &State{Generation: "answer"}
	newChecker(t, provider).Check(context.Background(), state)

	assert.Equal(t, Uncertain, state.HallucinationCheck)
	assert.Equal(t, "answer", state.Generation)
}
