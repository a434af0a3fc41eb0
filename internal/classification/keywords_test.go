package classification

import (
	"testing"

	"github.com/hmasp-digital/triagem/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDetectKeywords(t *testing.T) {
	c, err := NewClassifier(DefaultRules())
	require.NoError(t, err)

	tests := []struct {
		name           string
		text           string
		wantIntent     model.Intent
		wantMatches    []string
		wantConfidence float64
	}{
		{
			name:           "single confirmation keyword",
			text:           "pode ser",
			wantIntent:     model.IntentConfirmed,
			wantMatches:    []string{"pode ser"},
			wantConfidence: 0.90,
		},
		{
			name:           "multiple matches raise confidence",
			text:           "confirmo estarei la",
			wantIntent:     model.IntentConfirmed,
			wantMatches:    []string{"confirmo", "estarei"},
			wantConfidence: 0.95,
		},
		{
			name:           "not scheduled beats plain decline",
			text:           "nao marquei essa consulta",
			wantIntent:     model.IntentNotScheduled,
			wantMatches:    []string{"nao marquei"},
			wantConfidence: 0.95,
		},
		{
			name:           "human agent request",
			text:           "quero falar com atendente",
			wantIntent:     model.IntentHumanAgent,
			wantMatches:    []string{"atendente", "quero falar"},
			wantConfidence: 0.98,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			match := c.DetectKeywords(tt.text, model.ContextNone)
			require.NotNil(t, match)
			assert.Equal(t, tt.wantIntent, match.Intent)
			assert.ElementsMatch(t, tt.wantMatches, match.Matches)
			assert.Len(t, match.Matches, match.MatchCount)
			assert.InDelta(t, tt.wantConfidence, match.Confidence, 0.001)
		})
	}
}

func TestDetectKeywords_NoMatch(t *testing.T) {
	c, err := NewClassifier(DefaultRules())
	require.NoError(t, err)

	assert.Nil(t, c.DetectKeywords("oi bom dia", model.ContextNone))
}

func TestDetectKeywords_ConfidenceCap(t *testing.T) {
	rules := DefaultRules()
	c, err := NewClassifier(rules)
	require.NoError(t, err)

	// Pile up confirmation keywords; the cap must hold regardless.
	match := c.DetectKeywords("confirmo sim vou estarei irei certo claro ok", model.ContextNone)
	require.NotNil(t, match)
	assert.InDelta(t, rules.MaxKeywordConfidence, match.Confidence, 0.001)
}

func TestDetectKeywords_ContextBreaksTies(t *testing.T) {
	rules := Rules{
		Dictionaries: map[model.Intent]Dictionary{
			model.IntentDeclined: {
				Keywords:       []string{"nao quero"},
				BaseConfidence: 0.85,
			},
			model.IntentSemReagendamento: {
				Keywords:       []string{"nao quero"},
				BaseConfidence: 0.85,
			},
		},
	}
	c, err := NewClassifier(rules)
	require.NoError(t, err)

	// Same phrase, same score: the context decides which intent it means.
	match := c.DetectKeywords("nao quero", model.ContextDesmarcacao)
	require.NotNil(t, match)
	assert.Equal(t, model.IntentSemReagendamento, match.Intent)

	match = c.DetectKeywords("nao quero", model.ContextConfirmacao)
	require.NotNil(t, match)
	assert.Equal(t, model.IntentDeclined, match.Intent)

	// Without context the sorted scan order wins, deterministically.
	match = c.DetectKeywords("nao quero", model.ContextNone)
	require.NotNil(t, match)
	assert.Equal(t, model.IntentDeclined, match.Intent)
}
