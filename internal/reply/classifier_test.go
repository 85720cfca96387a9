package reply

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/outreach-cli/internal/llm"
	"github.com/sells-group/outreach-cli/internal/model"
)

var testNow = time.Date(2025, 6, 2, 10, 0, 0, 0, time.UTC)

func newTestClassifier(c llm.Completer) *Classifier {
	return NewClassifier(c, WithClock(func() time.Time { return testNow }))
}

func TestClassifyKeywords(t *testing.T) {
	tests := []struct {
		name string
		text string
		cat  model.ReplyCategory
		conf model.Confidence
	}{
		{"out of office", "Bonjour, je suis absent, en congés jusqu’au 15 juin. De retour le 16.", model.ReplyOutOfOffice, model.ConfidenceHigh},
		{"unsubscribe", "STOP. Merci de me désinscrire de vos listes (RGPD).", model.ReplyUnsubscribe, model.ConfidenceHigh},
		{"positive", "Oui, intéressé ! Appelez-moi demain.", model.ReplyPositive, model.ConfidenceMedium},
		{"objection", "C'est trop cher pour nous.", model.ReplyObjection, model.ConfidenceLow},
		{"tie goes to the earlier category", "Pas intéressé, trop cher", model.ReplyNegative, model.ConfidenceLow},
		{"no longer interested", "Je ne suis plus intéressé, merci d'arrêter", model.ReplyNegative, model.ConfidenceMedium},
		{"nothing matches", "Merci pour votre message.", model.ReplyNeutral, model.ConfidenceLow},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ClassifyKeywords(tt.text)
			assert.Equal(t, tt.cat, got.Category)
			assert.Equal(t, tt.conf, got.Confidence)
		})
	}
}

func TestClassifyKeywords_NegatedInterest(t *testing.T) {
	tests := []struct {
		name string
		text string
		cat  model.ReplyCategory
	}{
		{"not at all", "Nous ne sommes pas du tout intéressés.", model.ReplyNegative},
		{"not really", "Pas vraiment intéressé, bonne journée.", model.ReplyNegative},
		{"never", "Jamais intéressé par ce genre d'offre.", model.ReplyNegative},
		{"disagreement", "Je ne suis pas d'accord avec votre analyse.", model.ReplyNegative},
		{"negation in an earlier clause", "Pas de souci. Je suis intéressé, appelez-moi.", model.ReplyPositive},
		{"why not stays positive", "Pourquoi pas, appelez-moi jeudi.", model.ReplyPositive},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ClassifyKeywords(tt.text)
			assert.Equal(t, tt.cat, got.Category)
			assert.NotZero(t, got.Hits)
		})
	}
}

func TestClassifyKeywords_NestedKeywordsCountOnce(t *testing.T) {
	tests := []struct {
		text string
		cat  model.ReplyCategory
		hits int
	}{
		{"Je suis absente.", model.ReplyOutOfOffice, 1},
		{"En congés.", model.ReplyOutOfOffice, 1},
		{"De retour le 3 juillet.", model.ReplyOutOfOffice, 1},
		{"Merci d'arrêter.", model.ReplyUnsubscribe, 1},
	}
	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			got := ClassifyKeywords(tt.text)
			assert.Equal(t, tt.cat, got.Category)
			assert.Equal(t, tt.hits, got.Hits)
			assert.Equal(t, model.ConfidenceLow, got.Confidence)
		})
	}
}

func TestClassify_NegatedInterestWithoutModelSuppresses(t *testing.T) {
	cls, err := newTestClassifier(nil).Classify(context.Background(), Inbound{
		OrgID: "org1", ContactEmail: "a@b.fr", Text: "Nous ne sommes pas du tout intéressés.",
	})
	require.NoError(t, err)
	assert.Equal(t, model.ReplyNegative, cls.Category)
	assert.True(t, cls.StopsSequence)
	assert.Equal(t, model.ActionSuppress, cls.Action)
}

func TestClassify_HighConfidenceSkipsModel(t *testing.T) {
	calls := 0
	c := newTestClassifier(llm.CompleterFunc(func(context.Context, string) (string, error) {
		calls++
		return "", nil
	}))

	cls, err := c.Classify(context.Background(), Inbound{OrgID: "org1", ContactEmail: "A@b.fr", Text: "Je suis absent, en congés, de retour le 16/06."})
	require.NoError(t, err)
	assert.Zero(t, calls)
	assert.Equal(t, model.ReplyOutOfOffice, cls.Category)
	assert.Equal(t, 1, cls.Tier)
	assert.Equal(t, "a@b.fr", cls.ContactEmail)
	assert.False(t, cls.StopsSequence)
	assert.Equal(t, model.ActionPauseSequence, cls.Action)
	require.NotNil(t, cls.ReturnDate)
	assert.Equal(t, time.Date(2025, 6, 16, 0, 0, 0, 0, time.UTC), *cls.ReturnDate)
}

func TestClassify_ModelRefinesLowConfidence(t *testing.T) {
	var prompt string
	c := newTestClassifier(llm.CompleterFunc(func(_ context.Context, p string) (string, error) {
		prompt = p
		return "```json\n" + `{"category": "objection", "sentiment": "negative", "confidence": "high",
			"objection_type": "price", "referral": null, "return_date": "",
			"suggested_reply": "Je comprends, nous avons une formule sans engagement."}` + "\n```", nil
	}))

	cls, err := c.Classify(context.Background(), Inbound{
		OrgID: "org1", ContactEmail: "a@b.fr", CompanyName: "Plomberie Durand",
		Text: "Votre offre ne rentre pas dans nos moyens.",
	})
	require.NoError(t, err)
	assert.Equal(t, 2, cls.Tier)
	assert.Equal(t, model.ReplyObjection, cls.Category)
	assert.Equal(t, model.ConfidenceHigh, cls.Confidence)
	assert.Equal(t, "price", cls.ObjectionType)
	assert.NotEmpty(t, cls.SuggestedReply)
	assert.True(t, cls.StopsSequence)
	assert.Equal(t, "high", cls.Priority)

	assert.Contains(t, prompt, "--- Reply ---")
	assert.Contains(t, prompt, "Plomberie Durand")
	assert.Contains(t, prompt, "- out_of_office")
}

func TestClassify_ModelFailureFallsBackToKeywords(t *testing.T) {
	tests := []struct {
		name   string
		answer string
		err    error
	}{
		{"upstream error", "", errors.New("overloaded")},
		{"prose", "It's probably positive.", nil},
		{"unknown category", `{"category": "maybe"}`, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestClassifier(llm.CompleterFunc(func(context.Context, string) (string, error) {
				return tt.answer, tt.err
			}))
			cls, err := c.Classify(context.Background(), Inbound{ContactEmail: "a@b.fr", Text: "Oui intéressé, appelez-moi."})
			require.NoError(t, err)
			assert.Equal(t, 1, cls.Tier)
			assert.Equal(t, model.ReplyPositive, cls.Category)
			assert.Equal(t, model.ConfidenceMedium, cls.Confidence)
			assert.Equal(t, model.ActionNotifyUrgent, cls.Action)
		})
	}
}

func TestClassify_ReferralExtraction(t *testing.T) {
	c := newTestClassifier(nil)
	cls, err := c.Classify(context.Background(), Inbound{
		ContactEmail: "jp@durand.fr",
		Text:         "Ce n'est pas moi, voir avec mon collègue Marc.Dupont@Durand.fr.",
	})
	require.NoError(t, err)
	assert.Equal(t, model.ReplyReferral, cls.Category)
	require.NotNil(t, cls.Referral)
	assert.Equal(t, "marc.dupont@durand.fr", cls.Referral.Email)
}

func TestClassify_Empty(t *testing.T) {
	_, err := newTestClassifier(nil).Classify(context.Background(), Inbound{Text: "  "})
	assert.True(t, eris.Is(err, ErrEmptyReply))
}

func TestExtractReturnDate(t *testing.T) {
	tests := []struct {
		text string
		want *time.Time
	}{
		{"de retour le 1er septembre", ptrTime(time.Date(2025, 9, 1, 0, 0, 0, 0, time.UTC))},
		{"retour le 12/01", ptrTime(time.Date(2026, 1, 12, 0, 0, 0, 0, time.UTC))},
		{"absent jusqu'au 20.06.25", ptrTime(time.Date(2025, 6, 20, 0, 0, 0, 0, time.UTC))},
		{"de retour le 3 mai 2024", ptrTime(time.Date(2024, 5, 3, 0, 0, 0, 0, time.UTC))},
		{"de retour bientôt", nil},
		{"le 31/02", nil},
	}
	for _, tt := range tests {
		got := extractReturnDate(tt.text, testNow, time.UTC)
		if tt.want == nil {
			assert.Nil(t, got, tt.text)
			continue
		}
		require.NotNil(t, got, tt.text)
		assert.Equal(t, *tt.want, *got, tt.text)
	}
}

func ptrTime(t time.Time) *time.Time { return &t }
