// Package completion wraps the external text-generation call. The caller
// always supplies the timeout through the context; on timeout the failure
// surfaces as a core.TransientError so the cognition layer can apply its
// failed-interaction handling instead of retrying here.
package completion

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/varkas/minion-mind/internal/memory"
	"github.com/varkas/minion-mind/internal/mood"
)

// Completer produces a reply for a fully rendered prompt.
type Completer interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// Config holds provider settings.
type Config struct {
	Endpoint    string        `json:"endpoint"`
	Model       string        `json:"model"`
	APIKey      string        `json:"api_key"`
	Temperature float64       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens"`
	Timeout     time.Duration `json:"timeout"` // default ceiling when the caller sets none
}

// PromptInput is everything the renderer folds into one prompt.
type PromptInput struct {
	Persona       string
	State         mood.EmotionalState
	ContextBlocks []memory.ContextBlock
	Incoming      string
}

// RenderPrompt builds the system-plus-user prompt: persona line, a mood
// snapshot the model can act on, memory context, then the incoming message.
func RenderPrompt(in PromptInput) string {
	var b strings.Builder
	if in.Persona != "" {
		b.WriteString(in.Persona)
		b.WriteString("\n\n")
	}

	fmt.Fprintf(&b, "[Current State]\nvalence=%.2f arousal=%.2f dominance=%.2f curiosity=%.2f creativity=%.2f sociability=%.2f\nenergy=%.2f stress=%.2f\n\n",
		in.State.Mood.Valence, in.State.Mood.Arousal, in.State.Mood.Dominance,
		in.State.Mood.Curiosity, in.State.Mood.Creativity, in.State.Mood.Sociability,
		in.State.Energy, in.State.Stress)

	if ctx := memory.FormatContextPrompt(in.ContextBlocks); ctx != "" {
		b.WriteString(ctx)
		b.WriteString("\n")
	}

	if in.Incoming != "" {
		b.WriteString("[Incoming Message]\n")
		b.WriteString(in.Incoming)
		b.WriteString("\n")
	}
	return b.String()
}
