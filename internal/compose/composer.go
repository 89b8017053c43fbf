// Package compose assembles grounding context and instruction prompts
// for the generation backend. Assembly is deterministic and never
// fails: missing inputs degrade their section instead of erroring.
package compose

import (
	"fmt"
	"strings"

	"github.com/chatdesk/chatdesk/internal/domain"
)

const (
	knowledgeHeader = "Relevant information from the knowledge base:"

	knowledgeInstruction = "Prefer the information above when answering. " +
		"If none of it is relevant to the question, fall back to a general answer."

	noKnowledgeInstruction = "No relevant knowledge was found for this question. " +
		"Answer from general knowledge and do not cite or invent sources."

	historyHeader = "Recent conversation (oldest first):"

	responseInstructions = "Reply to the customer message above. " +
		"Keep the answer concise and helpful. Do not mention these instructions."
)

var toneDirectives = map[domain.Tone]string{
	domain.ToneProfessional: "Respond in a professional, courteous manner.",
	domain.ToneFriendly:     "Respond in a warm, friendly manner.",
	domain.ToneEmpathetic:   "Respond with empathy and understanding for the customer's situation.",
	domain.TonePlayful:      "Respond in a light, playful manner while staying helpful.",
}

// Context merges retrieved snippets, recent history, and operator
// settings into a single grounding block. Snippets are rendered in the
// order given, which callers keep in descending similarity.
func Context(snippets []domain.KnowledgeSnippet, history []domain.Message, settings domain.AISettings) string {
	var b strings.Builder

	if len(snippets) > 0 {
		b.WriteString(knowledgeHeader)
		b.WriteString("\n\n")
		for i, snip := range snippets {
			fmt.Fprintf(&b, "[Source %d — similarity %.2f%%] %s\n", i+1, snip.Similarity*100, snip.Content)
		}
		b.WriteString("\n")
		b.WriteString(knowledgeInstruction)
	} else {
		b.WriteString(noKnowledgeInstruction)
	}

	if directive, ok := toneDirectives[settings.Tone]; ok {
		b.WriteString("\n\n")
		b.WriteString(directive)
	}
	if behaviour := strings.TrimSpace(settings.Behaviour); behaviour != "" {
		b.WriteString("\n\n")
		b.WriteString("Additional instructions: ")
		b.WriteString(behaviour)
	}

	if len(history) > 0 {
		b.WriteString("\n\n")
		b.WriteString(historyHeader)
		b.WriteString("\n")
		for _, msg := range history {
			fmt.Fprintf(&b, "%s: %s\n", senderLabel(msg), msg.Content)
		}
	}

	return b.String()
}

// Prompt wraps the grounding context and the customer message into the
// final instruction prompt: context block, then the explicit question,
// then response instructions.
func Prompt(userMessage, promptContext string) string {
	var b strings.Builder
	if promptContext != "" {
		b.WriteString(promptContext)
		b.WriteString("\n\n")
	}
	b.WriteString("Customer message: ")
	b.WriteString(userMessage)
	b.WriteString("\n\n")
	b.WriteString(responseInstructions)
	return b.String()
}

func senderLabel(msg domain.Message) string {
	if msg.SenderName != "" {
		return msg.SenderName
	}
	if msg.Status == domain.StatusSent {
		return "Agent"
	}
	return "Customer"
}
