package services

import (
	"embed"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/datafirst-hq/aidly-backend/internal/pkg/logger"
)

const promptPackEnv = "PROMPTS_FILE"

//go:embed prompts.yaml
var promptPackFS embed.FS

// fallback prompt strings used when the YAML pack is missing or invalid.
// The persona template is sent to the model verbatim; {context} and
// {question} are the only slots.
const fallbackPersonaTemplate = `
You are **Aidly**, the laid‑back support specialist at DATAFIRST.
You've been here for years and know every feature, quirk, and workaround like the back of your hand.

When you reply:
  - Speak like a teammate: warm, casual, and personable.
  - Vary your greeting: "Hey there!", "Hiya!", "What's up?".
  - Use empathy and small talk: "Hope you're doing alright," or "Sounds like that caught you off guard."
  - Paraphrase the user's question back briefly.
  - Answer directly and confidently—only using information in <context>.
  - If <context> doesn’t include the answer (or is empty), say:
      "Hmm, I don’t have enough info from what you’ve shared. Could you send me more details or a screenshot?"
  - If you truly have no idea, say:
      "Hmm, that's new to me. Can you share a bit more detail?"
  - Close with an offer to follow up: "Let me know if that helps," or "Give me a shout if you need more."

<context>
{context}
</context>

**User:** {question}  
**Aidly:**
`

const fallbackContextPreamble = "Here's what I know that might be relevant:"

const fallbackErrorReply = "I'm having trouble processing your question right now. Please try again."

const fallbackEmptyQuestionReply = "I didn't receive a question. Could you please ask something?"

const fallbackLanguageInstruction = "Respond in the user's language ({language})."

var fallbackGreetings = []string{
	"hey", "hi", "hello", "good morning", "good afternoon",
	"good evening", "what's up", "how are you", "sup",
}

type yamlPromptPack struct {
	Pack                string   `yaml:"pack"`
	Version             int      `yaml:"version"`
	PersonaTemplate     string   `yaml:"persona_template"`
	ContextPreamble     string   `yaml:"context_preamble"`
	ErrorReply          string   `yaml:"error_reply"`
	EmptyQuestionReply  string   `yaml:"empty_question_reply"`
	LanguageInstruction string   `yaml:"language_instruction"`
	Greetings           []string `yaml:"greetings"`
}

type promptPack struct {
	PersonaTemplate     string
	ContextPreamble     string
	ErrorReply          string
	EmptyQuestionReply  string
	LanguageInstruction string
	Greetings           []string
}

var packOnce sync.Once
var packCache *promptPack
var packErr error

func currentPromptPack(log *logger.Logger) *promptPack {
	packOnce.Do(func() {
		packCache, packErr = loadPromptPack()
	})
	if packErr != nil {
		if log != nil {
			log.Warn("prompts: pack load failed; using fallback", "error", packErr)
		}
		return nil
	}
	return packCache
}

func personaTemplate(log *logger.Logger) string {
	if p := currentPromptPack(log); p != nil && p.PersonaTemplate != "" {
		return p.PersonaTemplate
	}
	return fallbackPersonaTemplate
}

func contextPreamble(log *logger.Logger) string {
	if p := currentPromptPack(log); p != nil && p.ContextPreamble != "" {
		return p.ContextPreamble
	}
	return fallbackContextPreamble
}

func errorReply(log *logger.Logger) string {
	if p := currentPromptPack(log); p != nil && p.ErrorReply != "" {
		return p.ErrorReply
	}
	return fallbackErrorReply
}

func emptyQuestionReply(log *logger.Logger) string {
	if p := currentPromptPack(log); p != nil && p.EmptyQuestionReply != "" {
		return p.EmptyQuestionReply
	}
	return fallbackEmptyQuestionReply
}

func languageInstruction(log *logger.Logger) string {
	if p := currentPromptPack(log); p != nil && p.LanguageInstruction != "" {
		return p.LanguageInstruction
	}
	return fallbackLanguageInstruction
}

func greetingPhrases(log *logger.Logger) []string {
	if p := currentPromptPack(log); p != nil && len(p.Greetings) > 0 {
		return p.Greetings
	}
	return fallbackGreetings
}

// renderPersonaPrompt fills the persona template's slots. The context block
// comes from renderContextBlock and may be empty.
func renderPersonaPrompt(log *logger.Logger, contextText, question string) string {
	return strings.NewReplacer(
		"{context}", contextText,
		"{question}", question,
	).Replace(personaTemplate(log))
}

// renderContextBlock joins retrieved documents under the pack preamble.
// No documents means an empty block, not an empty preamble.
func renderContextBlock(log *logger.Logger, docs []string) string {
	if len(docs) == 0 {
		return ""
	}
	return contextPreamble(log) + "\n\n" + strings.Join(docs, "\n\n") + "\n\n"
}

// renderLanguageInstruction fills the target language code into the system
// instruction used when the asker's language is not English.
func renderLanguageInstruction(log *logger.Logger, lang string) string {
	return strings.ReplaceAll(languageInstruction(log), "{language}", lang)
}

func loadPromptPack() (*promptPack, error) {
	data, err := readPromptPack()
	if err != nil {
		return nil, err
	}

	var pack yamlPromptPack
	if err := yaml.Unmarshal(data, &pack); err != nil {
		return nil, err
	}
	if err := validatePromptPack(&pack); err != nil {
		return nil, err
	}

	greetings := make([]string, 0, len(pack.Greetings))
	for _, g := range pack.Greetings {
		greetings = append(greetings, strings.TrimSpace(g))
	}

	return &promptPack{
		PersonaTemplate:     pack.PersonaTemplate,
		ContextPreamble:     pack.ContextPreamble,
		ErrorReply:          pack.ErrorReply,
		EmptyQuestionReply:  pack.EmptyQuestionReply,
		LanguageInstruction: pack.LanguageInstruction,
		Greetings:           greetings,
	}, nil
}

func readPromptPack() ([]byte, error) {
	if path := strings.TrimSpace(os.Getenv(promptPackEnv)); path != "" {
		return os.ReadFile(path)
	}
	return promptPackFS.ReadFile("prompts.yaml")
}

func validatePromptPack(pack *yamlPromptPack) error {
	if pack == nil {
		return errors.New("missing pack")
	}
	if strings.TrimSpace(pack.Pack) != "support_chat" {
		return fmt.Errorf("unexpected pack: %s", pack.Pack)
	}
	if strings.TrimSpace(pack.PersonaTemplate) == "" {
		return errors.New("persona_template is required")
	}
	for _, slot := range []string{"{context}", "{question}"} {
		if !strings.Contains(pack.PersonaTemplate, slot) {
			return fmt.Errorf("persona_template: missing %s slot", slot)
		}
	}
	if strings.TrimSpace(pack.ContextPreamble) == "" {
		return errors.New("context_preamble is required")
	}
	if strings.TrimSpace(pack.ErrorReply) == "" {
		return errors.New("error_reply is required")
	}
	if strings.TrimSpace(pack.EmptyQuestionReply) == "" {
		return errors.New("empty_question_reply is required")
	}
	if strings.TrimSpace(pack.LanguageInstruction) == "" {
		return errors.New("language_instruction is required")
	}
	if !strings.Contains(pack.LanguageInstruction, "{language}") {
		return errors.New("language_instruction: missing {language} slot")
	}
	if len(pack.Greetings) == 0 {
		return errors.New("no greetings defined")
	}
	seen := map[string]bool{}
	for _, g := range pack.Greetings {
		g = strings.TrimSpace(g)
		if g == "" {
			return errors.New("greeting is empty")
		}
		if seen[g] {
			return fmt.Errorf("duplicate greeting: %s", g)
		}
		seen[g] = true
	}
	return nil
}
