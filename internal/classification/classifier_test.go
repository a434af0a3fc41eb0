package classification

import (
	"testing"

	"github.com/hmasp-digital/triagem/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewClassifier(t *testing.T) {
	t.Run("default rules", func(t *testing.T) {
		c, err := NewClassifier(DefaultRules())
		require.NoError(t, err)
		require.NotNil(t, c)
	})

	t.Run("malformed heuristic pattern", func(t *testing.T) {
		rules := Rules{
			Heuristics: []Heuristic{
				{Intent: model.IntentConfirmed, Patterns: []string{`[unclosed`}},
			},
		}
		c, err := NewClassifier(rules)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to compile heuristic pattern")
		assert.Nil(t, c)
	})

	t.Run("zero thresholds filled with defaults", func(t *testing.T) {
		c, err := NewClassifier(Rules{})
		require.NoError(t, err)
		assert.InDelta(t, DefaultHighConfidence, c.Rules().HighConfidence, 0)
		assert.InDelta(t, DefaultFallbackConfidence, c.Rules().FallbackConfidence, 0)
	})
}

func TestClassify_EmptyInput(t *testing.T) {
	c, err := NewClassifier(DefaultRules())
	require.NoError(t, err)

	for _, input := range []string{"", "   ", "!?!?", "👍"} {
		result := c.Classify(input, model.ContextConfirmacao)
		assert.Equal(t, model.IntentUnknown, result.Intent, "input %q", input)
		assert.Zero(t, result.Confidence)
		assert.Empty(t, result.Normalized)
		assert.Equal(t, model.ContextConfirmacao, result.Context)
	}
}

func TestClassify_DirectNumbers(t *testing.T) {
	c, err := NewClassifier(DefaultRules())
	require.NoError(t, err)

	tests := []struct {
		name    string
		input   string
		ctx     model.ContextType
		want    model.Intent
		wantRaw model.Intent
	}{
		{name: "1 confirms under confirmacao", input: "1", ctx: model.ContextConfirmacao, want: model.IntentConfirmed, wantRaw: model.IntentNumber1},
		{name: "1 with period", input: " 1. ", ctx: model.ContextConfirmacao, want: model.IntentConfirmed, wantRaw: model.IntentNumber1},
		{name: "1 requests reschedule under desmarcacao", input: "1", ctx: model.ContextDesmarcacao, want: model.IntentReagendamento, wantRaw: model.IntentNumber1},
		{name: "1 without context stays raw", input: "1", ctx: model.ContextNone, want: model.IntentNumber1, wantRaw: model.IntentNumber1},
		{name: "2 declines under confirmacao", input: "2)", ctx: model.ContextConfirmacao, want: model.IntentDeclined, wantRaw: model.IntentNumber2},
		{name: "3 under desmarcacao", input: "3", ctx: model.ContextDesmarcacao, want: model.IntentSemReagendamento, wantRaw: model.IntentNumber3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := c.Classify(tt.input, tt.ctx)
			assert.Equal(t, tt.want, result.Intent)
			assert.Equal(t, tt.wantRaw, result.RawIntent)
			assert.InDelta(t, 1.0, result.Confidence, 0)
			assert.Equal(t, model.MethodDirectNumber, result.Method)
		})
	}
}

func TestClassify_Keywords(t *testing.T) {
	c, err := NewClassifier(DefaultRules())
	require.NoError(t, err)

	result := c.Classify("Confirmo, estarei lá", model.ContextConfirmacao)
	assert.Equal(t, model.IntentConfirmed, result.Intent)
	assert.Equal(t, model.MethodKeyword, result.Method)
	assert.GreaterOrEqual(t, result.Confidence, 0.75)
	assert.Contains(t, result.Matches, "confirmo")
	assert.Equal(t, "confirmo estarei la", result.Normalized)
}

func TestClassify_KeywordsBeatHeuristics(t *testing.T) {
	c, err := NewClassifier(DefaultRules())
	require.NoError(t, err)

	// "nao vou" is both a decline keyword and a decline heuristic; the
	// keyword stage answers first and records what it matched.
	result := c.Classify("não vou conseguir ir", model.ContextConfirmacao)
	assert.Equal(t, model.IntentDeclined, result.Intent)
	assert.Equal(t, model.MethodKeyword, result.Method)
	assert.Contains(t, result.Matches, "nao vou")
}

func TestClassify_Heuristics(t *testing.T) {
	c, err := NewClassifier(DefaultRules())
	require.NoError(t, err)

	// No decline keyword is a substring here; only the regex fires.
	result := c.Classify("infelizmente estou impedido", model.ContextConfirmacao)
	assert.Equal(t, model.IntentDeclined, result.Intent)
	assert.Equal(t, model.MethodNLP, result.Method)
	assert.InDelta(t, 0.75, result.Confidence, 0)
	assert.Empty(t, result.Matches)
}

func TestClassify_Fallback(t *testing.T) {
	c, err := NewClassifier(DefaultRules())
	require.NoError(t, err)

	result := c.Classify("oi, bom dia", model.ContextNone)
	assert.Equal(t, model.IntentFreeTalk, result.Intent)
	assert.Equal(t, model.MethodFallback, result.Method)
	assert.InDelta(t, 0.3, result.Confidence, 0)
	assert.False(t, result.NeedsConfirmation)
}

func TestClassify_LowConfidenceKeyword(t *testing.T) {
	rules := Rules{
		Dictionaries: map[model.Intent]Dictionary{
			model.IntentConfirmed: {
				Keywords:       []string{"talvez"},
				BaseConfidence: 0.60,
			},
		},
	}
	c, err := NewClassifier(rules)
	require.NoError(t, err)

	result := c.Classify("talvez amanha", model.ContextConfirmacao)
	assert.Equal(t, model.IntentConfirmed, result.Intent)
	assert.Equal(t, model.MethodKeywordLowConfidence, result.Method)
	assert.True(t, result.NeedsConfirmation)
	assert.InDelta(t, 0.65, result.Confidence, 0.001)
}

func TestClassify_ConfidenceBounds(t *testing.T) {
	c, err := NewClassifier(DefaultRules())
	require.NoError(t, err)

	inputs := []string{
		"", "1", "2.", "confirmo", "nao vou", "nao agendei nada",
		"oi bom dia", "quero falar com atendente", "👍", "tudo certo pode deixar",
	}
	for _, input := range inputs {
		for _, ctx := range []model.ContextType{model.ContextNone, model.ContextConfirmacao, model.ContextDesmarcacao} {
			result := c.Classify(input, ctx)
			assert.GreaterOrEqual(t, result.Confidence, 0.0, "input %q", input)
			assert.LessOrEqual(t, result.Confidence, 1.0, "input %q", input)
			assert.NotEmpty(t, result.Intent, "input %q", input)
		}
	}
}

func TestClassify_Idempotent(t *testing.T) {
	c, err := NewClassifier(DefaultRules())
	require.NoError(t, err)

	for _, input := range []string{"1", "confirmo sim", "nao sei ainda", "oi"} {
		first := c.Classify(input, model.ContextConfirmacao)
		second := c.Classify(input, model.ContextConfirmacao)
		assert.Equal(t, first, second, "input %q", input)
	}
}
