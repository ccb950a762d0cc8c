package assistant

import (
	"context"
	"errors"
	"fmt"
	"time"

	log "log/slog"

	openai "github.com/sashabaranov/go-openai"

	"athena/internal/config"
)

// API is the slice of the OpenAI client the session manager drives:
// persona create/retrieve, thread create/retrieve, message append, run
// create/poll, newest-message fetch.
type API interface {
	CreateAssistant(ctx context.Context, request openai.AssistantRequest) (openai.Assistant, error)
	RetrieveAssistant(ctx context.Context, assistantID string) (openai.Assistant, error)
	CreateThread(ctx context.Context, request openai.ThreadRequest) (openai.Thread, error)
	RetrieveThread(ctx context.Context, threadID string) (openai.Thread, error)
	CreateMessage(ctx context.Context, threadID string, request openai.MessageRequest) (openai.Message, error)
	CreateRun(ctx context.Context, threadID string, request openai.RunRequest) (openai.Run, error)
	RetrieveRun(ctx context.Context, threadID string, runID string) (openai.Run, error)
	ListMessage(ctx context.Context, threadID string, limit *int, order *string, after *string, before *string, runID *string) (openai.MessagesList, error)
}

// Session owns the persona and conversation thread for one process lifetime.
// Both identifiers live here, not in package globals, so the orchestration
// core stays testable.
type Session struct {
	client API
	cfg    *config.Config

	assistantID string
	threadID    string

	pollInterval time.Duration
	runTimeout   time.Duration
}

func NewSession(client API, cfg *config.Config) *Session {
	return &Session{
		client:       client,
		cfg:          cfg,
		pollInterval: cfg.RunPollInterval,
		runTimeout:   cfg.RunTimeout,
	}
}

// EnsureAssistant retrieves the configured persona or creates a fresh one.
// Failure here is fatal to the caller: no conversation is possible without
// a persona.
func (s *Session) EnsureAssistant(ctx context.Context) error {
	if s.cfg.AssistantID != "" {
		a, err := s.client.RetrieveAssistant(ctx, s.cfg.AssistantID)
		if err == nil {
			log.Info("Using existing assistant", "id", a.ID)
			s.assistantID = a.ID
			return nil
		}
		log.Warn("Failed to retrieve assistant, creating a new one", "id", s.cfg.AssistantID, "err", err)
	}

	name := "Athena"
	instructions := s.cfg.Instructions

	a, err := s.client.CreateAssistant(ctx, openai.AssistantRequest{
		Name:         &name,
		Instructions: &instructions,
		Model:        s.cfg.Model,
		Tools:        assistantTools(s.cfg.Tools),
	})
	if err != nil {
		return fmt.Errorf("create assistant: %w", err)
	}

	log.Info("New assistant created", "id", a.ID)
	s.assistantID = a.ID
	return nil
}

// ensureThread returns a live thread ID. The cached value is tried first;
// any retrieval failure falls through to creation. Replacing the thread
// drops the prior conversation context, which is logged rather than hidden.
func (s *Session) ensureThread(ctx context.Context) (string, error) {
	if s.threadID != "" {
		_, err := s.client.RetrieveThread(ctx, s.threadID)
		if err == nil {
			return s.threadID, nil
		}
		log.Warn("Cached thread is gone, conversation history lost", "id", s.threadID, "err", err)
	}

	th, err := s.client.CreateThread(ctx, openai.ThreadRequest{})
	if err != nil {
		s.threadID = ""
		return "", fmt.Errorf("create thread: %w", err)
	}

	log.Info("New thread created", "id", th.ID)
	s.threadID = th.ID
	return th.ID, nil
}

// Ask submits one query and blocks until the reply is ready. It never
// returns an error: every failure degrades to an apology addressed to the
// user, so a single bad turn cannot end the session.
func (s *Session) Ask(ctx context.Context, query string) string {
	threadID, err := s.ensureThread(ctx)
	if err != nil {
		log.Error("No thread for this turn", "err", err)
		return "Failed to create or retrieve a thread. Cannot process the request."
	}

	reply, err := s.submitAndAwait(ctx, threadID, query)
	if err != nil {
		log.Error("Query failed", "err", err)

		var rf *runFailedError
		if errors.As(err, &rf) {
			return fmt.Sprintf("Run failed with status: %s", rf.status)
		}

		return fmt.Sprintf("I'm sorry, %s, I encountered an error while processing your request. How can I help you differently?", s.cfg.UserName)
	}

	return reply
}

// runFailedError marks a run that reached a terminal failure status. Unlike
// transport errors this is reported to the user with the status name.
type runFailedError struct {
	status openai.RunStatus
}

func (e *runFailedError) Error() string {
	return fmt.Sprintf("run failed with status: %s", e.status)
}

func (s *Session) submitAndAwait(ctx context.Context, threadID, query string) (string, error) {
	if _, err := s.client.CreateMessage(ctx, threadID, openai.MessageRequest{
		Role:    openai.ChatMessageRoleUser,
		Content: query,
	}); err != nil {
		return "", fmt.Errorf("append message: %w", err)
	}

	run, err := s.client.CreateRun(ctx, threadID, openai.RunRequest{
		AssistantID: s.assistantID,
		Instructions: fmt.Sprintf("Remember to address the user as %s and maintain your friendly, supportive demeanor. "+
			"If the user wants to start an Open Interpreter session, inform them to say 'Start Open Interpreter'.", s.cfg.UserName),
	})
	if err != nil {
		return "", fmt.Errorf("create run: %w", err)
	}

	if err := s.awaitRun(ctx, threadID, run.ID); err != nil {
		return "", err
	}

	return s.latestReply(ctx, threadID)
}

// awaitRun polls the run to a terminal status. Unlike the usual "poll
// forever" loop, a stuck run is abandoned after runTimeout so a dead remote
// dependency cannot hang the whole session.
func (s *Session) awaitRun(ctx context.Context, threadID, runID string) error {
	ctx, cancel := context.WithTimeout(ctx, s.runTimeout)
	defer cancel()

	ticker := time.NewTicker(s.pollInterval)
	defer ticker.Stop()

	for {
		run, err := s.client.RetrieveRun(ctx, threadID, runID)
		if err != nil {
			return fmt.Errorf("retrieve run: %w", err)
		}

		switch run.Status {
		case openai.RunStatusCompleted:
			return nil
		case openai.RunStatusFailed, openai.RunStatusCancelled, openai.RunStatusExpired:
			return &runFailedError{status: run.Status}
		}

		select {
		case <-ctx.Done():
			return fmt.Errorf("run %s did not finish: %w", runID, ctx.Err())
		case <-ticker.C:
		}
	}
}

// latestReply fetches the single newest message. If the thread's newest
// message is not the assistant's (or the thread is empty), the turn
// resolves to the "no response" fallback.
func (s *Session) latestReply(ctx context.Context, threadID string) (string, error) {
	limit := 1
	order := "desc"

	msgs, err := s.client.ListMessage(ctx, threadID, &limit, &order, nil, nil, nil)
	if err != nil {
		return "", fmt.Errorf("list messages: %w", err)
	}

	if len(msgs.Messages) > 0 {
		latest := msgs.Messages[0]
		if latest.Role == openai.ChatMessageRoleAssistant && len(latest.Content) > 0 && latest.Content[0].Text != nil {
			return latest.Content[0].Text.Value, nil
		}
	}

	return fmt.Sprintf("I'm sorry, %s, I didn't receive a response. How else can I assist you?", s.cfg.UserName), nil
}

func assistantTools(names []string) []openai.AssistantTool {
	tools := make([]openai.AssistantTool, 0, len(names))
	for _, n := range names {
		tools = append(tools, openai.AssistantTool{Type: openai.AssistantToolType(n)})
	}
	return tools
}
