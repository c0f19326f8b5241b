package services

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/datafirst-hq/aidly-backend/internal/pkg/logger"
	"github.com/datafirst-hq/aidly-backend/internal/platform/qdrant"
	"github.com/datafirst-hq/aidly-backend/internal/platform/translate"
)

// relevanceThreshold is the similarity score a hit must strictly exceed to
// enter the prompt. Hits at or below it are still logged for telemetry.
const relevanceThreshold = 0.6

const generationTemperature = 0.3

const defaultSearchK = 1

// AskRequest is one question against a workspace's knowledge base.
type AskRequest struct {
	Question    string
	WorkspaceID uuid.UUID

	// Language is the asker's preferred language code. Empty means English.
	Language string
}

// AskMetrics carries per-request telemetry destined for the interaction log.
type AskMetrics struct {
	RetrievalLatencyMS  int64
	GenerationLatencyMS int64
	RetrievedDocs       []RetrievedDocument
	NumRetrieved        int
	ModelName           string
	Temperature         float64
	SourceLanguage      string
	ResponseLanguage    string
	WasTranslated       bool
	OriginalQuestion    string
	TranslatedQuestion  *string

	// ContextText is the rendered context block, kept for token estimation.
	ContextText string

	// Err records soft failures (translation, retrieval, generation). The
	// caller still gets an answer.
	Err *string
}

// AskResult is the pipeline outcome. The pipeline never fails the caller:
// errors surface as a canned answer plus a note in the metrics.
type AskResult struct {
	Answer  string
	Metrics AskMetrics
}

// RagService answers support questions with retrieval-augmented generation.
// Each request runs preprocess, retrieve and generate in order; short
// greetings skip retrieval entirely.
type RagService interface {
	Ask(ctx context.Context, req AskRequest) AskResult
}

type ragService struct {
	log        *logger.Logger
	embedder   Embedder
	chat       Chat
	store      qdrant.VectorStore
	translator translate.Client
	searchK    int
}

func NewRagService(
	log *logger.Logger,
	embedder Embedder,
	chat Chat,
	store qdrant.VectorStore,
	translator translate.Client,
	searchK int,
) RagService {
	if searchK <= 0 {
		searchK = defaultSearchK
	}
	return &ragService{
		log:        log.With("service", "RagService"),
		embedder:   embedder,
		chat:       chat,
		store:      store,
		translator: translator,
		searchK:    searchK,
	}
}

func (s *ragService) Ask(ctx context.Context, req AskRequest) AskResult {
	m := AskMetrics{
		ModelName:        s.chat.Model(),
		Temperature:      generationTemperature,
		SourceLanguage:   "en",
		ResponseLanguage: "en",
		OriginalQuestion: req.Question,
	}

	if strings.TrimSpace(req.Question) == "" {
		return AskResult{Answer: emptyQuestionReply(s.log), Metrics: m}
	}

	lang := strings.ToLower(strings.TrimSpace(req.Language))
	if lang == "" {
		lang = "en"
	}
	m.SourceLanguage = lang
	m.ResponseLanguage = lang

	question := s.preprocess(ctx, req.Question, lang, &m)
	docs := s.retrieve(ctx, question, req.WorkspaceID, &m)
	answer := s.generate(ctx, question, docs, lang, &m)

	return AskResult{Answer: answer, Metrics: m}
}

// preprocess returns the text used for retrieval and generation. Non-English
// questions are translated to English so they match the indexed corpus; on
// failure the original text continues through the pipeline.
func (s *ragService) preprocess(ctx context.Context, question, lang string, m *AskMetrics) string {
	if lang == "en" || !s.translator.Enabled() {
		return question
	}
	translated, err := s.translator.Translate(ctx, question, lang, "en")
	if err != nil {
		s.log.Warn("question translation failed; continuing untranslated",
			"source_lang", lang,
			"error", err,
		)
		noteErr(m, fmt.Errorf("translate question: %w", err))
		return question
	}
	m.WasTranslated = true
	m.TranslatedQuestion = &translated
	return translated
}

// retrieve embeds the question and searches the workspace's chunks. Every
// hit is recorded in the metrics; only hits above the relevance threshold
// come back as prompt context, strongest first.
func (s *ragService) retrieve(ctx context.Context, question string, workspaceID uuid.UUID, m *AskMetrics) []string {
	normalized := strings.ToLower(strings.TrimSpace(question))
	if isGreeting(normalized, greetingPhrases(s.log)) {
		s.log.Debug("greeting detected; skipping retrieval")
		return nil
	}

	started := time.Now()
	defer func() { m.RetrievalLatencyMS = time.Since(started).Milliseconds() }()

	vector, err := s.embedder.Embed(ctx, question)
	if err != nil {
		s.log.Error("query embedding failed", "error", err)
		noteErr(m, fmt.Errorf("embed question: %w", err))
		return nil
	}

	hits, err := s.store.SearchWithScore(ctx, vector, s.searchK, workspaceID.String())
	if err != nil {
		s.log.Error("vector search failed", "workspace_id", workspaceID, "error", err)
		noteErr(m, fmt.Errorf("vector search: %w", err))
		return nil
	}

	sort.SliceStable(hits, func(i, j int) bool { return hits[i].Score > hits[j].Score })

	docs := make([]string, 0, len(hits))
	for i, hit := range hits {
		m.RetrievedDocs = append(m.RetrievedDocs, RetrievedDocument{
			DocID:       fmt.Sprintf("%s#%d", hit.SourceReference, i),
			Doc:         hit.Content,
			Score:       hit.Score,
			Source:      hit.SourceReference,
			WorkspaceID: workspaceID.String(),
		})
		if hit.Score > relevanceThreshold {
			docs = append(docs, hit.Content)
		}
	}
	m.NumRetrieved = len(m.RetrievedDocs)

	s.log.Debug("retrieval complete",
		"hits", len(hits),
		"kept", len(docs),
		"workspace_id", workspaceID,
	)
	return docs
}

// generate renders the persona prompt and invokes the model. A generation
// failure yields the canned error reply, never an error to the caller.
func (s *ragService) generate(ctx context.Context, question string, docs []string, lang string, m *AskMetrics) string {
	contextText := renderContextBlock(s.log, docs)
	m.ContextText = contextText

	prompt := renderPersonaPrompt(s.log, contextText, question)
	system := ""
	if lang != "en" {
		system = renderLanguageInstruction(s.log, lang)
	}

	started := time.Now()
	answer, err := s.chat.Generate(ctx, system, prompt, generationTemperature)
	m.GenerationLatencyMS = time.Since(started).Milliseconds()
	if err != nil {
		s.log.Error("generation failed", "model", s.chat.Model(), "error", err)
		noteErr(m, fmt.Errorf("generate answer: %w", err))
		return errorReply(s.log)
	}
	return answer
}

// isGreeting reports whether a normalized question is a short salutation:
// three whitespace tokens at most containing a known greeting.
func isGreeting(normalized string, phrases []string) bool {
	if len(strings.Fields(normalized)) > 3 {
		return false
	}
	for _, phrase := range phrases {
		if strings.Contains(normalized, phrase) {
			return true
		}
	}
	return false
}

func noteErr(m *AskMetrics, err error) {
	if err == nil {
		return
	}
	msg := err.Error()
	if m.Err != nil {
		msg = *m.Err + "; " + msg
	}
	m.Err = &msg
}
