package interpreter

import (
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"strings"

	log "log/slog"

	openai "github.com/sashabaranov/go-openai"
)

// API is the chat-completions surface the agent drives.
type API interface {
	CreateChatCompletion(ctx context.Context, request openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

const systemPrompt = `You are a command-execution agent on the user's machine.
You turn free-text instructions into shell commands via the run_shell tool and
report the outcome in one or two short spoken sentences. Never invent output
you did not receive from the tool.`

// maxToolRounds bounds tool-call loops within a single Chat call.
const maxToolRounds = 8

// Agent is the stateful command-execution backend. It keeps the full chat
// history for the lifetime of one interpreter session, so commands can build
// on each other.
type Agent struct {
	client  API
	model   string
	autoRun bool

	history []openai.ChatCompletionMessage

	// runShell is swapped out in tests.
	runShell func(ctx context.Context, command string) (string, error)
}

func NewAgent(client API, model string, autoRun bool) *Agent {
	a := &Agent{
		client:   client,
		model:    model,
		autoRun:  autoRun,
		runShell: runShell,
	}
	a.Reset()
	return a
}

// Reset drops accumulated context. Called when a new interpreter session starts.
func (a *Agent) Reset() {
	a.history = []openai.ChatCompletionMessage{
		{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
	}
}

// Chat forwards one utterance to the agent and returns its textual reply.
// Tool calls are resolved inline; the history grows with every exchange.
func (a *Agent) Chat(ctx context.Context, input string) (string, error) {
	a.history = append(a.history, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleUser,
		Content: input,
	})

	for round := 0; round < maxToolRounds; round++ {
		resp, err := a.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
			Model:    a.model,
			Messages: a.history,
			Tools:    []openai.Tool{shellTool()},
		})
		if err != nil {
			return "", fmt.Errorf("chat completion: %w", err)
		}
		if len(resp.Choices) == 0 {
			return "", fmt.Errorf("no choices in response")
		}

		msg := resp.Choices[0].Message
		a.history = append(a.history, msg)

		if len(msg.ToolCalls) == 0 {
			return msg.Content, nil
		}

		for _, call := range msg.ToolCalls {
			a.history = append(a.history, openai.ChatCompletionMessage{
				Role:       openai.ChatMessageRoleTool,
				ToolCallID: call.ID,
				Content:    a.resolveToolCall(ctx, call),
			})
		}
	}

	return "", fmt.Errorf("tool loop did not settle after %d rounds", maxToolRounds)
}

func (a *Agent) resolveToolCall(ctx context.Context, call openai.ToolCall) string {
	var args struct {
		Command string `json:"command"`
	}
	if err := json.Unmarshal([]byte(call.Function.Arguments), &args); err != nil || args.Command == "" {
		return fmt.Sprintf("invalid tool arguments: %s", call.Function.Arguments)
	}

	if !a.autoRun {
		log.Info("Auto-run disabled, command not executed", "command", args.Command)
		return fmt.Sprintf("execution is disabled (INTERPRETER_AUTO_RUN=false); the command %q was not run, tell the user what it would do instead", args.Command)
	}

	log.Info("Executing command", "command", args.Command)

	out, err := a.runShell(ctx, args.Command)
	if err != nil {
		return fmt.Sprintf("command failed: %v\n%s", err, out)
	}
	if strings.TrimSpace(out) == "" {
		return "command completed with no output"
	}
	return out
}

func shellTool() openai.Tool {
	return openai.Tool{
		Type: openai.ToolTypeFunction,
		Function: &openai.FunctionDefinition{
			Name:        "run_shell",
			Description: "Run a shell command on the user's machine and return its combined output.",
			Parameters: json.RawMessage(`{
				"type": "object",
				"properties": {
					"command": {
						"type": "string",
						"description": "The shell command to run."
					}
				},
				"required": ["command"]
			}`),
		},
	}
}

func runShell(ctx context.Context, command string) (string, error) {
	out, err := exec.CommandContext(ctx, "sh", "-c", command).CombinedOutput()
	return string(out), err
}
