package sequence

import (
	"strings"

	"github.com/osteele/liquid"
	"github.com/rotisserie/eris"

	"github.com/sells-group/outreach-cli/internal/model"
)

// Tone of the fallback templates.
type Tone string

const (
	ToneFriendly Tone = "friendly"
	ToneFormal   Tone = "formal"
)

// formalFrom is the headcount from which the fallback switches to the
// formal tone.
const formalFrom = 20

// fallbackStep is one templated message.
type fallbackStep struct {
	day     int
	channel model.Channel
	angle   string
	subject string
	body    string
}

var fallbackTemplates = map[Tone][]fallbackStep{
	ToneFriendly: {
		{0, model.ChannelEmail, "insight", "{{ company }} et {{ niche }}",
			"Bonjour{% if first_name %} {{ first_name }}{% endif %},\n\n" +
				"En regardant {{ company }}{% if city %} à {{ city }}{% endif %}, une chose m'a frappé : {{ insight }}.\n\n" +
				"Nous aidons des entreprises comme la vôtre sur {{ niche }}. Dix minutes cette semaine pour en parler ?\n\n{{ sender }}"},
		{3, model.ChannelEmail, "social proof", "Ce que font vos voisins",
			"Bonjour{% if first_name %} {{ first_name }}{% endif %},\n\n" +
				"D'autres {{ sector }} de votre secteur ont déjà franchi le pas sur {{ niche }} et gagnent du temps chaque semaine.\n\n" +
				"Je vous montre comment en 10 minutes ?\n\n{{ sender }}"},
		{6, "", "nudge", "",
			"Bonjour{% if first_name %} {{ first_name }}{% endif %}, c'est {{ sender }}. Je vous ai écrit au sujet de {{ niche }} pour {{ company }}. Un créneau cette semaine ?"},
		{10, model.ChannelEmail, "cost of inaction", "Une question rapide",
			"Bonjour{% if first_name %} {{ first_name }}{% endif %},\n\n" +
				"Combien de clients {{ company }} perd-il chaque mois faute de {{ niche }} ?\n\n" +
				"Si la réponse vous intéresse, répondez simplement \"oui\".\n\n{{ sender }}"},
		{14, model.ChannelEmail, "breakup", "Je clos le dossier ?",
			"Bonjour{% if first_name %} {{ first_name }}{% endif %},\n\n" +
				"Sans retour de votre part, je ne vous relancerai plus au sujet de {{ niche }}.\n\n" +
				"Si le sujet revient, il suffit de répondre à ce message.\n\n{{ sender }}"},
	},
	ToneFormal: {
		{0, model.ChannelEmail, "insight", "{{ company }} : {{ niche }}",
			"{% if last_name %}Bonjour {{ first_name }} {{ last_name }}{% else %}Madame, Monsieur{% endif %},\n\n" +
				"Notre analyse de {{ company }} fait ressortir un point d'attention : {{ insight }}.\n\n" +
				"{{ sender_company }} accompagne les entreprises de votre taille sur {{ niche }}. Seriez-vous disponible pour un échange de 15 minutes ?\n\n" +
				"Cordialement,\n{{ sender }}"},
		{3, model.ChannelEmail, "social proof", "Retour d'expérience",
			"Madame, Monsieur,\n\n" +
				"Plusieurs {{ sector }} de taille comparable à {{ company }} nous ont confié {{ niche }}, avec des résultats mesurables dès le premier trimestre.\n\n" +
				"Puis-je vous présenter ces résultats lors d'un court rendez-vous ?\n\n" +
				"Cordialement,\n{{ sender }}"},
		{6, "", "nudge", "",
			"Bonjour, {{ sender }} ({{ sender_company }}). Je me tiens à votre disposition pour échanger sur {{ niche }} pour {{ company }}. Quel créneau vous conviendrait ?"},
		{10, model.ChannelEmail, "cost of inaction", "Priorités {{ year }}",
			"Madame, Monsieur,\n\n" +
				"{{ niche }} figure-t-il parmi les priorités de {{ company }} cette année ?\n\n" +
				"Une réponse courte me suffit pour vous adresser les éléments utiles.\n\n" +
				"Cordialement,\n{{ sender }}"},
		{14, model.ChannelEmail, "breakup", "Clôture de ma demande",
			"Madame, Monsieur,\n\n" +
				"Faute de retour, je clôture ma demande concernant {{ niche }}. Je reste joignable si le sujet devient d'actualité.\n\n" +
				"Cordialement,\n{{ sender }}"},
	},
}

// FallbackBuilder renders the deterministic five-step sequence used when
// the model output cannot be used.
type FallbackBuilder struct {
	engine    *liquid.Engine
	messaging model.Channel
}

// NewFallbackBuilder creates a builder. messaging selects sms or whatsapp
// for the short-message step.
func NewFallbackBuilder(messaging model.Channel) *FallbackBuilder {
	if !messaging.IsMessaging() {
		messaging = model.ChannelSMS
	}
	return &FallbackBuilder{engine: liquid.NewEngine(), messaging: messaging}
}

// ToneFor picks the tone from the company size. Unknown size is friendly.
func ToneFor(r *model.EnrichedRecord) Tone {
	if r.Employees() >= formalFrom {
		return ToneFormal
	}
	return ToneFriendly
}

// Build renders the five steps. The short-message step falls back to email
// when no mobile number is known.
func (f *FallbackBuilder) Build(r *model.EnrichedRecord, score *model.Score, icp model.ICP, year int) ([]model.SequenceStep, error) {
	tone := ToneFor(r)
	bindings := f.bindings(r, score, icp, year)

	steps := make([]model.SequenceStep, 0, len(fallbackTemplates[tone]))
	for i, t := range fallbackTemplates[tone] {
		ch := t.channel
		if ch == "" {
			ch = f.messaging
			if !hasMobile(r) {
				ch = model.ChannelEmail
			}
		}
		subject := t.subject
		if ch == model.ChannelEmail && subject == "" {
			subject = "{{ company }} et {{ niche }}"
		}
		sub, err := f.render(subject, bindings)
		if err != nil {
			return nil, eris.Wrapf(err, "sequence: render subject of step %d", i)
		}
		body, err := f.render(t.body, bindings)
		if err != nil {
			return nil, eris.Wrapf(err, "sequence: render body of step %d", i)
		}
		if ch.IsMessaging() {
			sub = ""
		}
		steps = append(steps, model.SequenceStep{
			Index:     i,
			Channel:   ch,
			DayOffset: t.day,
			Subject:   sub,
			Body:      body,
			Angle:     t.angle,
		})
	}
	return steps, nil
}

func (f *FallbackBuilder) render(tpl string, b liquid.Bindings) (string, error) {
	if tpl == "" {
		return "", nil
	}
	out, err := f.engine.ParseAndRenderString(tpl, b)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(out), nil
}

func (f *FallbackBuilder) bindings(r *model.EnrichedRecord, score *model.Score, icp model.ICP, year int) liquid.Bindings {
	first, last := r.Contact.FirstName, r.Contact.LastName
	if dm := r.DecisionMaker(); dm != nil && first == "" {
		parts := strings.Fields(dm.Name)
		if len(parts) > 0 {
			first = parts[0]
			last = strings.Join(parts[1:], " ")
		}
	}
	insight := "votre activité a tout pour se développer en ligne"
	if score != nil && score.StrongestSignal != nil && score.StrongestSignal.Insight != "" {
		insight = score.StrongestSignal.Insight
	}
	sector := r.Contact.Sector
	if sector == "" {
		sector = "entreprises"
	}
	sender := icp.SenderName
	if sender == "" {
		sender = icp.SenderCompany
	}
	b := liquid.Bindings{
		"company":        r.Contact.CompanyName,
		"sector":         sector,
		"niche":          icp.Niche,
		"insight":        insight,
		"sender":         sender,
		"sender_company": icp.SenderCompany,
		"year":           year,
	}
	// Empty strings are truthy in Liquid; leave unknown values unbound.
	for k, v := range map[string]string{"first_name": first, "last_name": last, "city": r.Contact.City} {
		if v != "" {
			b[k] = v
		}
	}
	return b
}

func hasMobile(r *model.EnrichedRecord) bool {
	phones := append(append([]string(nil), r.Phones...), r.Contact.Phones...)
	for _, p := range phones {
		d := strings.ReplaceAll(p, " ", "")
		if strings.HasPrefix(d, "06") || strings.HasPrefix(d, "07") {
			return true
		}
	}
	return false
}
