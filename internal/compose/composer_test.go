package compose

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/chatdesk/chatdesk/internal/domain"
)

func TestContext_RendersSnippetsInOrder(t *testing.T) {
	snippets := []domain.KnowledgeSnippet{
		{Content: "We are open 9-5 Mon-Fri", Similarity: 0.82},
		{Content: "Closed on public holidays", Similarity: 0.61},
	}

	got := Context(snippets, nil, domain.DefaultAISettings())

	assert.Contains(t, got, "[Source 1 — similarity 82.00%] We are open 9-5 Mon-Fri")
	assert.Contains(t, got, "[Source 2 — similarity 61.00%] Closed on public holidays")
	assert.Less(t,
		strings.Index(got, "Source 1"),
		strings.Index(got, "Source 2"))
	assert.Contains(t, got, knowledgeInstruction)
	assert.NotContains(t, got, noKnowledgeInstruction)
}

func TestContext_NoKnowledge(t *testing.T) {
	got := Context(nil, nil, domain.DefaultAISettings())
	assert.Contains(t, got, noKnowledgeInstruction)
	assert.NotContains(t, got, knowledgeHeader)
}

func TestContext_ToneAndBehaviour(t *testing.T) {
	settings := domain.AISettings{
		Tone:      domain.ToneEmpathetic,
		Behaviour: "Always offer to escalate to a human.",
	}
	got := Context(nil, nil, settings)
	assert.Contains(t, got, toneDirectives[domain.ToneEmpathetic])
	assert.Contains(t, got, "Additional instructions: Always offer to escalate to a human.")

	// Unknown tone degrades to no directive rather than failing.
	got = Context(nil, nil, domain.AISettings{Tone: "Sarcastic"})
	assert.NotContains(t, got, "Respond")
}

func TestContext_History(t *testing.T) {
	history := []domain.Message{
		{Content: "Do you ship to Canada?", SenderName: "Alice", Status: domain.StatusReceived},
		{Content: "Yes, we do.", SenderName: "AI Assistant", Status: domain.StatusSent},
		{Content: "How much does it cost?", Status: domain.StatusReceived},
	}

	got := Context(nil, history, domain.DefaultAISettings())
	assert.Contains(t, got, historyHeader)
	assert.Contains(t, got, "Alice: Do you ship to Canada?")
	assert.Contains(t, got, "AI Assistant: Yes, we do.")
	assert.Contains(t, got, "Customer: How much does it cost?")
	assert.Less(t,
		strings.Index(got, "Do you ship to Canada?"),
		strings.Index(got, "How much does it cost?"))
}

func TestContext_NoHistorySection(t *testing.T) {
	got := Context(nil, nil, domain.DefaultAISettings())
	assert.NotContains(t, got, historyHeader)
}

func TestContext_ZeroSettings(t *testing.T) {
	// Composing must not fail on entirely missing settings.
	got := Context(nil, nil, domain.AISettings{})
	assert.Contains(t, got, noKnowledgeInstruction)
}

func TestPrompt(t *testing.T) {
	got := Prompt("What are your business hours?", "some context")

	ctxIdx := strings.Index(got, "some context")
	msgIdx := strings.Index(got, "Customer message: What are your business hours?")
	instrIdx := strings.Index(got, responseInstructions)
	assert.True(t, ctxIdx >= 0 && msgIdx > ctxIdx && instrIdx > msgIdx,
		"prompt must order context, question, instructions")
}

func TestPrompt_NoContext(t *testing.T) {
	got := Prompt("hello", "")
	assert.True(t, strings.HasPrefix(got, "Customer message: hello"))
}
