package domain

// Tone selects the voice of automated replies.
type Tone string

const (
	ToneProfessional Tone = "Professional"
	ToneFriendly     Tone = "Friendly"
	ToneEmpathetic   Tone = "Empathetic"
	TonePlayful      Tone = "Playful"
)

// Valid reports whether the tone is one of the supported values.
func (t Tone) Valid() bool {
	switch t {
	case ToneProfessional, ToneFriendly, ToneEmpathetic, TonePlayful:
		return true
	}
	return false
}

// ContextMemoryDisabled is the sentinel value that turns off conversation
// history in composed prompts.
const ContextMemoryDisabled = "Disable"

// Bounds on settings fields.
const (
	MaxBehaviourLength = 500
	MinTimeoutHours    = 1
	MaxTimeoutHours    = 6
)

// AISettings is the singleton configuration consumed by every pipeline
// invocation. It is fetched once per invocation and passed explicitly so
// tests can inject arbitrary values.
type AISettings struct {
	Tone Tone `json:"tone"`

	// Behaviour is free-text operator instruction, capped at
	// MaxBehaviourLength characters.
	Behaviour string `json:"behaviour"`

	// ContextMemory is "1", "2", "3", "5" or ContextMemoryDisabled.
	ContextMemory string `json:"contextMemoryLength"`

	// TimeoutHours bounds how far back conversation history is pulled.
	TimeoutHours int `json:"conversationTimeout"`
}

// DefaultAISettings returns the settings used before an operator has
// saved any.
func DefaultAISettings() AISettings {
	return AISettings{
		Tone:          ToneProfessional,
		ContextMemory: "3",
		TimeoutHours:  2,
	}
}

// MemoryTurns returns the number of prior turns to include, and whether
// history is enabled at all.
func (s AISettings) MemoryTurns() (int, bool) {
	switch s.ContextMemory {
	case "1":
		return 1, true
	case "2":
		return 2, true
	case "3":
		return 3, true
	case "5":
		return 5, true
	default:
		return 0, false
	}
}
