package sequence

import (
	"fmt"
	"strings"

	"github.com/sells-group/outreach-cli/internal/model"
)

// Style is the voice of a generated variant.
type Style string

const (
	StyleDirect   Style = "direct"
	StyleQuestion Style = "question"
)

// Word caps per channel.
const (
	maxEmailWords     = 120
	maxMessagingWords = 40
)

var forbiddenOpeners = []string{
	"J'espère que vous allez bien",
	"Je me permets de vous contacter",
	"Je suis ravi de",
	"Je vous contacte car",
	"Bonjour, je m'appelle",
}

var frameworkGuides = map[model.Framework]string{
	model.FrameworkPAS:  "Problem-Agitate-Solve: state the problem the prospect visibly has, make its cost concrete, then present the solution.",
	model.FrameworkPPP:  "Praise-Picture-Push: open with specific, sincere praise, picture the next level, then push one clear action.",
	model.FrameworkBAB:  "Before-After-Bridge: describe the current situation, the improved situation, and how the offer bridges them.",
	model.FrameworkAIDA: "Attention-Interest-Desire-Action: one striking hook, one relevant fact, one benefit, one action.",
}

var styleGuides = map[Style]string{
	StyleDirect:   "Direct: short declarative sentences, get to the point in the first line.",
	StyleQuestion: "Question-led: open every message with a question the prospect would answer yes to.",
}

// llmSequence is the JSON shape requested from the model.
type llmSequence struct {
	Justification string    `json:"justification"`
	Steps         []llmStep `json:"steps"`
}

type llmStep struct {
	Day     int    `json:"day"`
	Channel string `json:"channel"`
	Subject string `json:"subject"`
	Body    string `json:"body"`
	Angle   string `json:"angle"`
}

func buildPrompt(r *model.EnrichedRecord, score *model.Score, icp model.ICP, fw model.Framework, style Style) string {
	var b strings.Builder
	b.WriteString("You write B2B cold outreach sequences in French for small businesses.\n\n")

	b.WriteString("--- Offer ---\n")
	fmt.Fprintf(&b, "Niche: %s\n", icp.Niche)
	if icp.OfferCategory != "" {
		fmt.Fprintf(&b, "Category: %s\n", icp.OfferCategory)
	}
	if icp.SenderName != "" || icp.SenderCompany != "" {
		fmt.Fprintf(&b, "Sender: %s, %s\n", icp.SenderName, icp.SenderCompany)
	}

	b.WriteString("\n--- Prospect ---\n")
	writeProspect(&b, r, score)

	b.WriteString("\n--- Framework ---\n")
	b.WriteString(frameworkGuides[fw] + "\n")
	b.WriteString(styleGuides[style] + "\n")

	b.WriteString("\n--- Rules ---\n")
	b.WriteString("- 5 steps on days 0, 3, 6, 10 and 14.\n")
	fmt.Fprintf(&b, "- Emails: at most %d words, with a subject under 8 words.\n", maxEmailWords)
	fmt.Fprintf(&b, "- SMS or WhatsApp: at most %d words, no subject.\n", maxMessagingWords)
	b.WriteString("- Exactly one call to action per message.\n")
	b.WriteString("- Each step uses a different angle (insight, social proof, cost of inaction, question, breakup).\n")
	b.WriteString("- Use only the facts above. Never invent figures or clients.\n")
	b.WriteString("- Never open with: " + strings.Join(forbiddenOpeners, "; ") + ".\n")

	b.WriteString("\nAnswer with a single JSON object and nothing else:\n")
	b.WriteString(`{"justification": string, "steps": [{"day": number, "channel": "email"|"sms"|"whatsapp", "subject": string, "body": string, "angle": string}]}`)
	b.WriteString("\n")
	return b.String()
}

func writeProspect(b *strings.Builder, r *model.EnrichedRecord, score *model.Score) {
	fmt.Fprintf(b, "Company: %s\n", r.Contact.CompanyName)
	if r.Contact.City != "" {
		fmt.Fprintf(b, "City: %s\n", r.Contact.City)
	}
	if s := r.Sector(); s != "" {
		fmt.Fprintf(b, "Sector: %s\n", s)
	}
	if r.Description != "" {
		fmt.Fprintf(b, "Description: %s\n", truncateWords(r.Description, 60))
	}
	if dm := r.DecisionMaker(); dm != nil {
		fmt.Fprintf(b, "Decision-maker: %s", dm.Name)
		if dm.Role != "" {
			fmt.Fprintf(b, " (%s)", dm.Role)
		}
		b.WriteString("\n")
	}
	if n := r.Employees(); n >= 0 {
		fmt.Fprintf(b, "Employees: %d\n", n)
	}
	if r.Rating != nil {
		fmt.Fprintf(b, "Public rating: %.1f (%d reviews)\n", *r.Rating, r.ReviewCount)
	}
	if score == nil {
		return
	}
	for _, s := range score.Signals {
		fmt.Fprintf(b, "Signal: %s", s.Insight)
		if s.Evidence != "" {
			fmt.Fprintf(b, " [%s]", s.Evidence)
		}
		b.WriteString("\n")
	}
}

func truncateWords(s string, n int) string {
	f := strings.Fields(s)
	if len(f) <= n {
		return strings.Join(f, " ")
	}
	return strings.Join(f[:n], " ") + "..."
}
