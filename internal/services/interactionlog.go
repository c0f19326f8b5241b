package services

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/datafirst-hq/aidly-backend/internal/pkg/logger"
)

// RetrievedDocument is one scored chunk as the pipeline saw it, kept for
// offline analysis of retrieval quality.
type RetrievedDocument struct {
	DocID       string  `json:"doc_id"`
	Doc         string  `json:"doc"`
	Score       float64 `json:"score"`
	Source      string  `json:"source"`
	WorkspaceID string  `json:"workspace_id"`
}

// InteractionRecord captures one pipeline run. The logger fills in the
// timestamp, the process session id and the token estimates.
type InteractionRecord struct {
	UserID              *string
	UserQuery           string
	Response            string
	LatencyMS           int64
	RetrievedDocs       []RetrievedDocument
	RetrievalLatencyMS  *int64
	GenerationLatencyMS *int64
	ModelName           *string
	Temperature         *float64
	ConversationID      *string
	MessageID           *string
	SourceLanguage      string
	ResponseLanguage    string
	WasTranslated       bool
	OriginalQuestion    string
	TranslatedQuestion  *string
	Err                 *string

	// AdditionalContext is the context block that went into the prompt.
	// It feeds the token estimate and is not written to the file.
	AdditionalContext string
}

// FeedbackRecord captures a thumbs up or down on an assistant message.
type FeedbackRecord struct {
	MessageID         string
	UserID            *string
	FeedbackType      string
	OriginalQuery     string
	OriginalResponse  string
	ResponseLatencyMS *int64
	NumRetrievedDocs  *int
	ModelUsed         *string
	ConversationID    *string
	ClientIP          *string
}

type interactionEntry struct {
	Timestamp           string              `json:"timestamp"`
	SessionID           string              `json:"session_id"`
	UserID              *string             `json:"user_id"`
	UserQuery           string              `json:"user_query"`
	RetrievedDocs       []RetrievedDocument `json:"retrieved_docs"`
	PromptTokens        int                 `json:"prompt_tokens"`
	CompletionTokens    int                 `json:"completion_tokens"`
	TotalTokens         int                 `json:"total_tokens"`
	Response            string              `json:"response"`
	LatencyMS           int64               `json:"latency_ms"`
	RetrievalLatencyMS  *int64              `json:"retrieval_latency_ms"`
	GenerationLatencyMS *int64              `json:"generation_latency_ms"`
	ModelName           *string             `json:"model_name"`
	Temperature         *float64            `json:"temperature"`
	SimilarityThreshold *float64            `json:"similarity_threshold"`
	NumRetrieved        int                 `json:"num_retrieved"`
	ConversationID      *string             `json:"conversation_id"`
	MessageID           *string             `json:"message_id"`
	Error               *string             `json:"error"`
	SourceLanguage      string              `json:"source_language"`
	ResponseLanguage    string              `json:"response_language"`
	WasTranslated       bool                `json:"was_translated"`
	OriginalQuestion    string              `json:"original_question"`
	TranslatedQuestion  *string             `json:"translated_question"`
}

type feedbackEntry struct {
	Timestamp         string  `json:"timestamp"`
	SessionID         string  `json:"session_id"`
	MessageID         string  `json:"message_id"`
	UserID            *string `json:"user_id"`
	FeedbackType      string  `json:"feedback_type"`
	OriginalQuery     string  `json:"original_query"`
	OriginalResponse  string  `json:"original_response"`
	ResponseLatencyMS *int64  `json:"response_latency_ms"`
	NumRetrievedDocs  *int    `json:"num_retrieved_docs"`
	ModelUsed         *string `json:"model_used"`
	ConversationID    *string `json:"conversation_id"`
	ClientIP          *string `json:"client_ip"`
}

// InteractionLogger appends pipeline runs and feedback events as JSONL for
// offline analysis. Logging never fails the request that triggered it.
type InteractionLogger interface {
	LogInteraction(rec InteractionRecord)
	LogFeedback(rec FeedbackRecord)
	SessionID() string
	Close() error
}

type interactionLogger struct {
	log       *logger.Logger
	sessionID string

	mu           sync.Mutex
	interactions *os.File
	feedback     *os.File
}

// NewInteractionLogger opens (creating if needed) the two JSONL files under
// dir. The session id identifies this process in the log stream.
func NewInteractionLogger(log *logger.Logger, dir string) (InteractionLogger, error) {
	if dir == "" {
		dir = "logs"
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	interactions, err := os.OpenFile(filepath.Join(dir, "rag_interactions.jsonl"), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, err
	}
	feedback, err := os.OpenFile(filepath.Join(dir, "feedback_interactions.jsonl"), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		interactions.Close()
		return nil, err
	}
	return &interactionLogger{
		log:          log.With("service", "InteractionLogger"),
		sessionID:    uuid.NewString(),
		interactions: interactions,
		feedback:     feedback,
	}, nil
}

func (l *interactionLogger) LogInteraction(rec InteractionRecord) {
	docs := rec.RetrievedDocs
	if docs == nil {
		docs = []RetrievedDocument{}
	}

	fullPrompt := rec.AdditionalContext + "\nUser: " + rec.UserQuery
	promptTokens := estimateTokens(fullPrompt)
	completionTokens := estimateTokens(rec.Response)

	l.append(l.interactions, interactionEntry{
		Timestamp:           time.Now().UTC().Format(time.RFC3339Nano),
		SessionID:           l.sessionID,
		UserID:              rec.UserID,
		UserQuery:           rec.UserQuery,
		RetrievedDocs:       docs,
		PromptTokens:        promptTokens,
		CompletionTokens:    completionTokens,
		TotalTokens:         promptTokens + completionTokens,
		Response:            rec.Response,
		LatencyMS:           rec.LatencyMS,
		RetrievalLatencyMS:  rec.RetrievalLatencyMS,
		GenerationLatencyMS: rec.GenerationLatencyMS,
		ModelName:           rec.ModelName,
		Temperature:         rec.Temperature,
		SimilarityThreshold: nil,
		NumRetrieved:        len(docs),
		ConversationID:      rec.ConversationID,
		MessageID:           rec.MessageID,
		Error:               rec.Err,
		SourceLanguage:      rec.SourceLanguage,
		ResponseLanguage:    rec.ResponseLanguage,
		WasTranslated:       rec.WasTranslated,
		OriginalQuestion:    rec.OriginalQuestion,
		TranslatedQuestion:  rec.TranslatedQuestion,
	})
}

func (l *interactionLogger) LogFeedback(rec FeedbackRecord) {
	l.append(l.feedback, feedbackEntry{
		Timestamp:         time.Now().UTC().Format(time.RFC3339Nano),
		SessionID:         l.sessionID,
		MessageID:         rec.MessageID,
		UserID:            rec.UserID,
		FeedbackType:      rec.FeedbackType,
		OriginalQuery:     rec.OriginalQuery,
		OriginalResponse:  rec.OriginalResponse,
		ResponseLatencyMS: rec.ResponseLatencyMS,
		NumRetrievedDocs:  rec.NumRetrievedDocs,
		ModelUsed:         rec.ModelUsed,
		ConversationID:    rec.ConversationID,
		ClientIP:          rec.ClientIP,
	})
}

func (l *interactionLogger) SessionID() string {
	return l.sessionID
}

func (l *interactionLogger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	err := l.interactions.Close()
	if ferr := l.feedback.Close(); err == nil {
		err = ferr
	}
	return err
}

// append writes one newline-terminated JSON object in a single write so
// concurrent records never interleave.
func (l *interactionLogger) append(f *os.File, v any) {
	buf, err := json.Marshal(v)
	if err != nil {
		l.log.Error("marshal log entry failed", "error", err)
		return
	}
	buf = append(buf, '\n')

	l.mu.Lock()
	_, err = f.Write(buf)
	l.mu.Unlock()
	if err != nil {
		l.log.Error("write log entry failed", "error", err)
	}
}

// estimateTokens approximates usage at four bytes per token for English
// text, matching what the analysis tooling expects.
func estimateTokens(text string) int {
	if text == "" {
		return 0
	}
	return max(1, len(text)/4)
}
