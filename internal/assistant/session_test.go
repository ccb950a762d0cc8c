package assistant

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"athena/internal/config"
)

// fakeAPI scripts the remote service one call at a time.
type fakeAPI struct {
	retrieveAssistantErr error
	createAssistantErr   error

	retrieveThreadErr error
	createThreadErr   error

	createMessageErr error
	createRunErr     error

	runStatuses []openai.RunStatus
	runCalls    int

	messages       []openai.Message
	listMessageErr error

	createdThreads  int
	createdMessages int
	createdRuns     int
}

func (f *fakeAPI) CreateAssistant(_ context.Context, req openai.AssistantRequest) (openai.Assistant, error) {
	if f.createAssistantErr != nil {
		return openai.Assistant{}, f.createAssistantErr
	}
	return openai.Assistant{ID: "asst_new", Model: req.Model}, nil
}

func (f *fakeAPI) RetrieveAssistant(_ context.Context, id string) (openai.Assistant, error) {
	if f.retrieveAssistantErr != nil {
		return openai.Assistant{}, f.retrieveAssistantErr
	}
	return openai.Assistant{ID: id}, nil
}

func (f *fakeAPI) CreateThread(context.Context, openai.ThreadRequest) (openai.Thread, error) {
	if f.createThreadErr != nil {
		return openai.Thread{}, f.createThreadErr
	}
	f.createdThreads++
	return openai.Thread{ID: "thread_new"}, nil
}

func (f *fakeAPI) RetrieveThread(_ context.Context, id string) (openai.Thread, error) {
	if f.retrieveThreadErr != nil {
		return openai.Thread{}, f.retrieveThreadErr
	}
	return openai.Thread{ID: id}, nil
}

func (f *fakeAPI) CreateMessage(_ context.Context, threadID string, req openai.MessageRequest) (openai.Message, error) {
	if f.createMessageErr != nil {
		return openai.Message{}, f.createMessageErr
	}
	f.createdMessages++
	return openai.Message{ID: "msg_user", Role: req.Role}, nil
}

func (f *fakeAPI) CreateRun(_ context.Context, threadID string, req openai.RunRequest) (openai.Run, error) {
	if f.createRunErr != nil {
		return openai.Run{}, f.createRunErr
	}
	f.createdRuns++
	return openai.Run{ID: "run_1", AssistantID: req.AssistantID}, nil
}

func (f *fakeAPI) RetrieveRun(context.Context, string, string) (openai.Run, error) {
	i := f.runCalls
	if i >= len(f.runStatuses) {
		i = len(f.runStatuses) - 1 // stay on the terminal status
	}
	f.runCalls++
	return openai.Run{ID: "run_1", Status: f.runStatuses[i]}, nil
}

func (f *fakeAPI) ListMessage(context.Context, string, *int, *string, *string, *string, *string) (openai.MessagesList, error) {
	if f.listMessageErr != nil {
		return openai.MessagesList{}, f.listMessageErr
	}
	return openai.MessagesList{Messages: f.messages}, nil
}

func testConfig() *config.Config {
	return &config.Config{
		Model:           "gpt-4o",
		UserName:        "Alice",
		Instructions:    "be nice",
		Tools:           []string{"code_interpreter"},
		RunPollInterval: time.Millisecond,
		RunTimeout:      100 * time.Millisecond,
	}
}

func assistantMessage(text string) openai.Message {
	return openai.Message{
		Role: openai.ChatMessageRoleAssistant,
		Content: []openai.MessageContent{
			{Type: "text", Text: &openai.MessageText{Value: text}},
		},
	}
}

func TestEnsureAssistantReusesConfigured(t *testing.T) {
	api := &fakeAPI{}
	cfg := testConfig()
	cfg.AssistantID = "asst_existing"

	s := NewSession(api, cfg)
	if err := s.EnsureAssistant(context.Background()); err != nil {
		t.Fatalf("EnsureAssistant failed: %v", err)
	}
	if s.assistantID != "asst_existing" {
		t.Errorf("assistantID = %q, want asst_existing", s.assistantID)
	}
}

func TestEnsureAssistantFallsBackToCreate(t *testing.T) {
	api := &fakeAPI{retrieveAssistantErr: errors.New("not found")}
	cfg := testConfig()
	cfg.AssistantID = "asst_gone"

	s := NewSession(api, cfg)
	if err := s.EnsureAssistant(context.Background()); err != nil {
		t.Fatalf("EnsureAssistant failed: %v", err)
	}
	if s.assistantID != "asst_new" {
		t.Errorf("assistantID = %q, want asst_new", s.assistantID)
	}
}

func TestEnsureAssistantFatal(t *testing.T) {
	api := &fakeAPI{createAssistantErr: errors.New("api down")}
	s := NewSession(api, testConfig())
	if err := s.EnsureAssistant(context.Background()); err == nil {
		t.Fatal("expected error when persona cannot be created")
	}
}

func TestAskHappyPath(t *testing.T) {
	api := &fakeAPI{
		runStatuses: []openai.RunStatus{openai.RunStatusQueued, openai.RunStatusInProgress, openai.RunStatusCompleted},
		messages:    []openai.Message{assistantMessage("It is sunny today.")},
	}
	s := NewSession(api, testConfig())
	s.assistantID = "asst_1"

	reply := s.Ask(context.Background(), "what's the weather")
	if reply != "It is sunny today." {
		t.Errorf("reply = %q, want the assistant text verbatim", reply)
	}
	if api.createdMessages != 1 || api.createdRuns != 1 {
		t.Errorf("messages=%d runs=%d, want 1 and 1", api.createdMessages, api.createdRuns)
	}
	if api.runCalls < 3 {
		t.Errorf("run polled %d times, want at least 3", api.runCalls)
	}
}

func TestAskReusesLiveThread(t *testing.T) {
	api := &fakeAPI{
		runStatuses: []openai.RunStatus{openai.RunStatusCompleted},
		messages:    []openai.Message{assistantMessage("hi")},
	}
	s := NewSession(api, testConfig())
	s.assistantID = "asst_1"

	s.Ask(context.Background(), "one")
	s.Ask(context.Background(), "two")

	if api.createdThreads != 1 {
		t.Errorf("threads created = %d, want 1 (cached thread reused)", api.createdThreads)
	}
}

func TestAskThreadFailureSkipsRun(t *testing.T) {
	api := &fakeAPI{
		retrieveThreadErr: errors.New("gone"),
		createThreadErr:   errors.New("cannot create"),
	}
	s := NewSession(api, testConfig())
	s.assistantID = "asst_1"

	reply := s.Ask(context.Background(), "hello")
	if !strings.Contains(reply, "Failed to create or retrieve a thread") {
		t.Errorf("reply = %q, want thread failure report", reply)
	}
	if api.createdRuns != 0 || api.createdMessages != 0 {
		t.Error("no message or run may be submitted without a thread")
	}
}

func TestAskTerminalRunStatuses(t *testing.T) {
	for _, status := range []openai.RunStatus{
		openai.RunStatusFailed,
		openai.RunStatusCancelled,
		openai.RunStatusExpired,
	} {
		api := &fakeAPI{runStatuses: []openai.RunStatus{status}}
		s := NewSession(api, testConfig())
		s.assistantID = "asst_1"

		reply := s.Ask(context.Background(), "q")
		if !strings.Contains(reply, string(status)) {
			t.Errorf("status %s: reply %q does not name the status", status, reply)
		}
		if !strings.HasPrefix(reply, "Run failed with status:") {
			t.Errorf("status %s: reply %q is not the run-failure report", status, reply)
		}
	}
}

func TestAskRunTimeout(t *testing.T) {
	api := &fakeAPI{runStatuses: []openai.RunStatus{openai.RunStatusInProgress}}
	cfg := testConfig()
	cfg.RunTimeout = 10 * time.Millisecond

	s := NewSession(api, cfg)
	s.pollInterval = time.Millisecond
	s.runTimeout = cfg.RunTimeout
	s.assistantID = "asst_1"

	reply := s.Ask(context.Background(), "stuck")
	if !strings.Contains(reply, "Alice") {
		t.Errorf("reply = %q, want apology naming the user", reply)
	}
}

func TestAskWrongRoleFallback(t *testing.T) {
	api := &fakeAPI{
		runStatuses: []openai.RunStatus{openai.RunStatusCompleted},
		messages: []openai.Message{{
			Role: openai.ChatMessageRoleUser,
			Content: []openai.MessageContent{
				{Type: "text", Text: &openai.MessageText{Value: "echo"}},
			},
		}},
	}
	s := NewSession(api, testConfig())
	s.assistantID = "asst_1"

	reply := s.Ask(context.Background(), "anyone there?")
	if !strings.Contains(reply, "didn't receive a response") || !strings.Contains(reply, "Alice") {
		t.Errorf("reply = %q, want the no-response fallback naming the user", reply)
	}
}

func TestAskEmptyThreadFallback(t *testing.T) {
	api := &fakeAPI{runStatuses: []openai.RunStatus{openai.RunStatusCompleted}}
	s := NewSession(api, testConfig())
	s.assistantID = "asst_1"

	reply := s.Ask(context.Background(), "hello")
	if !strings.Contains(reply, "didn't receive a response") {
		t.Errorf("reply = %q, want the no-response fallback", reply)
	}
}

func TestAskApologyOnAPIError(t *testing.T) {
	api := &fakeAPI{createMessageErr: errors.New("500")}
	s := NewSession(api, testConfig())
	s.assistantID = "asst_1"

	reply := s.Ask(context.Background(), "hi")
	if !strings.Contains(reply, "I encountered an error") || !strings.Contains(reply, "Alice") {
		t.Errorf("reply = %q, want apology naming the user", reply)
	}
}
