package termui

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"text/template"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/fatih/color"
	"golang.org/x/term"

	"gitagent.dev/agenttool"
	"gitagent.dev/config"
	"gitagent.dev/fileops"
	"gitagent.dev/llm"
	"gitagent.dev/loop"
	"gitagent.dev/toolargs"
)

var (
	// toolUseTemplTxt defines how tool invocations appear in the terminal UI.
	// .input holds the arguments the tool extracted from the model's input.
	toolUseTemplTxt = `{{if .msg.ToolError}}〰️ {{end -}}
{{if eq .msg.ToolName "ModifyCode" -}}
 ⌨️  {{.input.file_path -}}
{{else if eq .msg.ToolName "ReadFile" -}}
 📖 {{.input.file_path -}}
{{else if eq .msg.ToolName "DeleteFile" -}}
 🗑️  {{.input.file_path -}}
{{else if eq .msg.ToolName "ListFiles" -}}
 📂 {{or .input.directory_path "." -}}
{{else if eq .msg.ToolName "CommitAndPush" -}}
 🌱 {{.input.file_path}}: {{.input.commit_message -}}
{{else if eq .msg.ToolName "CreateBranch" -}}
 🌿 new branch {{.input.branch_name -}}
{{else if eq .msg.ToolName "CheckoutBranch" -}}
 🌿 {{.input.branch_name -}}
{{else if eq .msg.ToolName "GetRepoStatus" -}}
 📋 Repository status
{{else if eq .msg.ToolName "GenerateDiff" -}}
 🔀 {{or .input.file_path "all changes" -}}
{{else if eq .msg.ToolName "StashChanges" -}}
 📦 {{if .input.pop}}pop stash{{else}}stash {{.input.message}}{{end -}}
{{else if eq .msg.ToolName "CreatePullRequest" -}}
 🔗 {{.input.branch}}: {{.input.title -}}
{{else if eq .msg.ToolName "RunCommand" -}}
 🖥️  {{.input.command -}}
{{else if eq .msg.ToolName "SearchCode" -}}
 🔍 {{.input.query}} in {{.input.file_pattern -}}
{{else if eq .msg.ToolName "RunTests" -}}
 🧪 {{or .input.test_path "all tests" -}}
{{else if eq .msg.ToolName "InstallDependencies" -}}
 📥 {{.input.requirements_file -}}
{{else if eq .msg.ToolName "AnalyzeCode" -}}
 🐛 {{.input.file_path -}}
{{else if eq .msg.ToolName "LintCode" -}}
 🧹 {{or .input.path "repository" -}}
{{else -}}
 🛠️  {{ .msg.ToolName}}: {{.msg.ToolInput -}}
{{end -}}
`
	toolUseTmpl = template.Must(template.New("tool_use").Parse(toolUseTemplTxt))
)

// Agent runs chat turns.
type Agent interface {
	Turn(ctx context.Context, text string) (string, error)
	TotalUsage() llm.Usage
	LastTurnDuration() time.Duration
	Messages() []loop.AgentMessage
	CurrentState() loop.State
	StateHistory() []loop.StateTransition
	Reset()
}

type TermUI struct {
	stdin  *os.File
	stdout *os.File

	cfg   *config.Config
	tools *agenttool.Registry
	agent Agent

	trm *term.Terminal

	// the chatMsgCh channel is for "conversation" messages: user input and model answers.
	chatMsgCh chan chatMessage
	// the log channel is for secondary messages, like tool calls and errors.
	termLogCh chan string

	// protects following
	mu         sync.Mutex
	oldState   *term.State
	cancelTurn context.CancelFunc
	toolCalls  int
	toolErrors int
	started    time.Time

	// Pending message count, for graceful shutdown
	messageWaitGroup sync.WaitGroup
}

type chatMessage struct {
	sender   string
	content  string
	thinking bool
}

// New creates the UI. Set the agent with SetAgent before Run; the agent's
// OnMessage should be ui.HandleMessage.
func New(cfg *config.Config, tools *agenttool.Registry) *TermUI {
	return &TermUI{
		cfg:       cfg,
		tools:     tools,
		stdin:     os.Stdin,
		stdout:    os.Stdout,
		chatMsgCh: make(chan chatMessage, 1),
		termLogCh: make(chan string, 1),
		started:   time.Now(),
	}
}

func (ui *TermUI) SetAgent(a Agent) {
	ui.agent = a
}

func (ui *TermUI) Run(ctx context.Context) error {
	if ui.agent == nil {
		return errors.New("termui: no agent")
	}
	fmt.Println(`📁 ` + ui.cfg.Root())
	if summary, err := fileops.Summary(ctx, ui.cfg); err == nil {
		fmt.Println(summary)
	}
	fmt.Println(`💬 type 'help' for help`)
	fmt.Println()

	if err := ui.initializeTerminalUI(ctx); err != nil {
		return err
	}
	return ui.inputLoop(ctx)
}

// HandleMessage displays one transcript entry. It is the agent's OnMessage.
func (ui *TermUI) HandleMessage(m loop.AgentMessage) {
	thinking := !m.EndOfTurn
	switch m.Type {
	case loop.AgentMessageType:
		ui.AppendChatMessage(chatMessage{thinking: thinking, sender: "🕴️ ", content: m.Content})
	case loop.ToolMessageType:
		ui.mu.Lock()
		ui.toolCalls++
		if m.ToolError {
			ui.toolErrors++
		}
		ui.mu.Unlock()
		ui.LogToolUse(&m)
	case loop.ErrorMessageType:
		ui.AppendSystemMessage("❌ %s", m.Content)
	case loop.UserMessageType:
		// already on screen
	default:
		ui.AppendSystemMessage("❌ Unexpected Message Type %s %v", m.Type, m)
	}
}

func (ui *TermUI) LogToolUse(m *loop.AgentMessage) {
	s, err := ui.formatToolUse(m)
	if err != nil {
		ui.AppendSystemMessage("error: %v", err)
		return
	}
	ui.AppendSystemMessage("%s", s)
	if m.ToolError {
		ui.AppendSystemMessage("   %s", color.RedString(firstLine(m.ToolResult)))
	}
}

func (ui *TermUI) formatToolUse(m *loop.AgentMessage) (string, error) {
	input, ok := ui.tools.Extract(m.ToolName, json.RawMessage(m.ToolInput))
	if !ok {
		input = toolargs.Args{}
	}
	var buf bytes.Buffer
	if err := toolUseTmpl.Execute(&buf, map[string]any{"msg": m, "input": map[string]any(input)}); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// transcriptLines renders msgs as one short line each.
func transcriptLines(msgs []loop.AgentMessage) []string {
	lines := make([]string, 0, len(msgs))
	for _, m := range msgs {
		ts := m.Timestamp.Format("15:04:05")
		switch m.Type {
		case loop.UserMessageType:
			lines = append(lines, fmt.Sprintf("%s 🦸 %s", ts, firstLine(m.Content)))
		case loop.AgentMessageType:
			lines = append(lines, fmt.Sprintf("%s 🕴️  %s", ts, firstLine(m.Content)))
		case loop.ToolMessageType:
			mark := "✓"
			if m.ToolError {
				mark = "✗"
			}
			lines = append(lines, fmt.Sprintf("%s 🛠️  %s %s %s", ts, m.ToolName, mark, firstLine(m.ToolResult)))
		case loop.ErrorMessageType:
			lines = append(lines, fmt.Sprintf("%s ❌ %s", ts, firstLine(m.Content)))
		}
	}
	return lines
}

// stateLines renders the current state and at most the last n transitions.
func stateLines(current loop.State, history []loop.StateTransition, n int) []string {
	lines := []string{fmt.Sprintf("State: %s", current)}
	if len(history) > n {
		history = history[len(history)-n:]
	}
	for _, tr := range history {
		lines = append(lines, fmt.Sprintf("- %s %s -> %s (%s)", tr.Timestamp.Format("15:04:05"), tr.From, tr.To, tr.Description))
	}
	return lines
}

func firstLine(s string) string {
	line, _, _ := strings.Cut(s, "\n")
	return line
}

const helpText = `General use:
Chat to ask the agent to work on the repository.

Special commands:
- help, ?             : Show this help message
- files               : Show the first files of the repository
- tools               : List the available tools
- /<Tool> <input>     : Call a tool directly (e.g. /ReadFile README.md)
- ! <command>         : Run a shell command in the repository
- usage               : Show token usage
- transcript          : Show the conversation so far, one line per message
- state               : Show the agent state and its recent transitions
- reset               : Forget the conversation
- stop, cancel, abort : Cancel the current turn
- exit, quit, q       : Exit`

func (ui *TermUI) inputLoop(ctx context.Context) error {
	for {
		line, err := ui.trm.ReadLine()
		if errors.Is(err, io.EOF) {
			ui.AppendSystemMessage("\n")
			line = "exit"
		} else if err != nil {
			return err
		}

		line = strings.TrimSpace(line)

		switch line {
		case "?", "help":
			ui.AppendSystemMessage("%s", helpText)
		case "files":
			summary, err := fileops.Summary(ctx, ui.cfg)
			if err != nil {
				ui.AppendSystemMessage("❌ %v", err)
				continue
			}
			ui.AppendSystemMessage("%s", summary)
		case "tools":
			for _, info := range ui.tools.Tools() {
				ui.AppendSystemMessage("- %s: %s", color.New(color.Bold).Sprint(info.Name), info.Description)
			}
		case "usage", "cost":
			ui.showUsage("💰 Current usage summary:")
		case "transcript":
			lines := transcriptLines(ui.agent.Messages())
			if len(lines) == 0 {
				ui.AppendSystemMessage("Nothing said yet")
			}
			for _, l := range lines {
				ui.AppendSystemMessage("%s", l)
			}
		case "state":
			for _, l := range stateLines(ui.agent.CurrentState(), ui.agent.StateHistory(), 10) {
				ui.AppendSystemMessage("%s", l)
			}
		case "reset":
			ui.agent.Reset()
			ui.AppendSystemMessage("🧽 Conversation cleared")
		case "stop", "cancel", "abort":
			if !ui.cancel() {
				ui.AppendSystemMessage("Nothing to cancel")
			}
		case "bye", "exit", "q", "quit":
			ui.cancel()
			ui.trm.SetPrompt("")
			ui.showUsage("💰 Final usage summary:")
			ui.AppendSystemMessage("\n👋 Goodbye!")
			ui.messageWaitGroup.Wait()
			return nil
		default:
			if line == "" {
				continue
			}
			if cmd, ok := strings.CutPrefix(line, "!"); ok {
				res := ui.tools.Invoke(ctx, agenttool.ToolRunCommand, toolargs.Structured(map[string]any{"command": strings.TrimSpace(cmd)}))
				ui.AppendSystemMessage("%s", res)
				continue
			}
			if call, ok := strings.CutPrefix(line, "/"); ok {
				name, input, _ := strings.Cut(call, " ")
				res := ui.tools.InvokeByName(ctx, name, toolargs.Text(input))
				ui.AppendSystemMessage("%s", res)
				continue
			}
			ui.startTurn(ctx, line)
		}
	}
}

// startTurn runs a chat turn in the background so "stop" stays responsive.
func (ui *TermUI) startTurn(ctx context.Context, text string) {
	ui.mu.Lock()
	if ui.cancelTurn != nil {
		ui.mu.Unlock()
		ui.AppendSystemMessage("⏳ Still working on the previous message; type 'stop' to cancel it")
		return
	}
	turnCtx, cancel := context.WithCancel(ctx)
	ui.cancelTurn = cancel
	ui.mu.Unlock()

	ui.updatePrompt(true)
	go func() {
		defer func() {
			ui.mu.Lock()
			ui.cancelTurn = nil
			ui.mu.Unlock()
			cancel()
			ui.updatePrompt(false)
		}()
		_, err := ui.agent.Turn(turnCtx, text)
		switch {
		case err == nil:
		case errors.Is(err, context.Canceled):
			ui.AppendSystemMessage("🛑 Turn cancelled")
		case errors.Is(err, loop.ErrIterationLimit):
			ui.AppendSystemMessage("🔁 Stopped after the iteration limit; say 'continue' to keep going")
		}
	}()
}

func (ui *TermUI) cancel() bool {
	ui.mu.Lock()
	defer ui.mu.Unlock()
	if ui.cancelTurn == nil {
		return false
	}
	ui.cancelTurn()
	return true
}

func (ui *TermUI) showUsage(title string) {
	usage := ui.agent.TotalUsage()
	ui.mu.Lock()
	calls, errs := ui.toolCalls, ui.toolErrors
	ui.mu.Unlock()
	ui.AppendSystemMessage("%s", title)
	ui.AppendSystemMessage("- Input tokens: %s", humanize.Comma(int64(usage.InputTokens)))
	ui.AppendSystemMessage("- Output tokens: %s", humanize.Comma(int64(usage.OutputTokens)))
	ui.AppendSystemMessage("- Tool calls: %d (%d failed)", calls, errs)
	ui.AppendSystemMessage("- Last turn: %s", ui.agent.LastTurnDuration().Round(time.Millisecond))
	ui.AppendSystemMessage("- Session started %s", humanize.Time(ui.started))
}

func (ui *TermUI) updatePrompt(thinking bool) {
	if ui.trm == nil {
		return
	}
	var t string
	if thinking {
		t = "*"
	}
	ui.trm.SetPrompt(fmt.Sprintf("%s%s> ", ui.cfg.RepoPath, t))
}

func (ui *TermUI) initializeTerminalUI(ctx context.Context) error {
	ui.mu.Lock()
	defer ui.mu.Unlock()

	if !term.IsTerminal(int(ui.stdin.Fd())) {
		return fmt.Errorf("chat requires terminal I/O; use 'gitagent call' for scripting")
	}

	oldState, err := term.MakeRaw(int(ui.stdin.Fd()))
	if err != nil {
		return err
	}
	ui.oldState = oldState
	ui.trm = term.NewTerminal(ui.stdin, "")
	width, height, err := term.GetSize(int(ui.stdin.Fd()))
	if err != nil {
		return fmt.Errorf("error getting terminal size: %w", err)
	}
	ui.trm.SetSize(width, height)
	// Handle terminal resizes...
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGWINCH)
	go func() {
		for {
			select {
			case <-ctx.Done():
				signal.Stop(sig)
				return
			case <-sig:
			}
			newWidth, newHeight, err := term.GetSize(int(ui.stdin.Fd()))
			if err != nil {
				continue
			}
			if newWidth != width || newHeight != height {
				width, height = newWidth, newHeight
				ui.trm.SetSize(width, height)
			}
		}
	}()

	ui.updatePrompt(false)

	// This is the only place where we should call ui.trm.Write:
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case msg := <-ui.chatMsgCh:
				func() {
					defer ui.messageWaitGroup.Done()
					// Update prompt before writing, because otherwise it doesn't redraw the prompt.
					ui.updatePrompt(msg.thinking)
					// The model often says nothing while it runs tools.
					if strings.TrimSpace(msg.content) == "" {
						return
					}
					ui.trm.Write([]byte(fmt.Sprintf("%s %s\n", msg.sender, msg.content)))
				}()
			case logLine := <-ui.termLogCh:
				func() {
					defer ui.messageWaitGroup.Done()
					ui.trm.Write([]byte(logLine + "\n"))
				}()
			}
		}
	}()

	return nil
}

func (ui *TermUI) RestoreOldState() error {
	ui.mu.Lock()
	defer ui.mu.Unlock()
	if ui.oldState == nil {
		return nil
	}
	return term.Restore(int(ui.stdin.Fd()), ui.oldState)
}

// AppendChatMessage is for showing responses to the user's request.
func (ui *TermUI) AppendChatMessage(msg chatMessage) {
	ui.messageWaitGroup.Add(1)
	ui.chatMsgCh <- msg
}

// AppendSystemMessage is for tool calls, errors and such that are not part of the conversation per se,
// but still need to be shown to the user.
func (ui *TermUI) AppendSystemMessage(fmtString string, args ...any) {
	ui.messageWaitGroup.Add(1)
	ui.termLogCh <- fmt.Sprintf(fmtString, args...)
}
