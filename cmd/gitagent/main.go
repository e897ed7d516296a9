package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"math/rand/v2"
	"net/http"
	"os"
	"os/signal"
	"runtime/debug"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/fatih/color"
	"github.com/richardlehane/crock32"

	"gitagent.dev/agenttool"
	"gitagent.dev/config"
	"gitagent.dev/git_tools"
	"gitagent.dev/history"
	"gitagent.dev/llm/oai"
	"gitagent.dev/loop"
	"gitagent.dev/mcp"
	"gitagent.dev/probe"
	"gitagent.dev/server"
	"gitagent.dev/skribe"
	"gitagent.dev/termui"
	"gitagent.dev/toolargs"
)

// errToolFailed makes `gitagent call` exit non-zero after printing the result.
var errToolFailed = errors.New("tool call failed")

func main() {
	err := run()
	if errors.Is(err, errToolFailed) {
		os.Exit(1)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v: %v\n", os.Args[0], err)
		os.Exit(1)
	}
}

const usageText = `usage: gitagent [flags] [command] [args]

Commands:
  chat [message]        interactive chat (default); with a message, run one turn and exit
  call <Tool> [input]   run one tool; input "-" is read from stdin
  mcp                   serve the tools over MCP on stdin/stdout
  serve                 serve the tools over HTTP
  probe                 check the external tools gitagent drives
  history               list recorded tool invocations
  version               print the version

Flags:
`

func run() error {
	repoPath := flag.String("C", "", "repository path (overrides LOCAL_REPO_PATH)")
	branch := flag.String("branch", "", "default branch (overrides DEFAULT_BRANCH)")
	historyDB := flag.String("history", "", "sqlite file to record tool invocations to (overrides GITAGENT_HISTORY_DB)")
	model := flag.String("model", "", "OpenAI model (overrides OPENAI_MODEL)")
	maxIterations := flag.Int("max-iterations", 0, "maximum model calls per chat turn (default 5)")
	doSync := flag.Bool("sync", false, "clone or pull the repository before starting")
	verbose := flag.Bool("verbose", false, "log to stderr at debug level")
	sessionID := flag.String("session-id", newSessionID(), "(internal) unique session id for this process")
	flag.Usage = func() {
		fmt.Fprint(flag.CommandLine.Output(), usageText)
		flag.PrintDefaults()
	}
	flag.Parse()

	cmd, args := "chat", flag.Args()
	if len(args) > 0 {
		cmd, args = args[0], args[1:]
	}
	if cmd == "version" {
		fmt.Println(version())
		return nil
	}

	cfg, err := config.Load(os.Getenv)
	if err != nil {
		return err
	}
	if *repoPath != "" {
		cfg.RepoPath = *repoPath
	}
	if *branch != "" {
		cfg.DefaultBranch = *branch
	}
	if *historyDB != "" {
		cfg.HistoryDB = *historyDB
	}
	if *model != "" {
		cfg.OpenAIModel = *model
	}
	if *maxIterations > 0 {
		cfg.MaxIterations = *maxIterations
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	// Add a global "session_id" to all logs using this context.
	ctx := skribe.ContextWithAttr(context.Background(), slog.String("session_id", *sessionID))
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	closeLog, err := setupLogging(cmd, len(args) > 0, *verbose)
	if err != nil {
		return err
	}
	defer closeLog()

	if os.Getpid() == 1 {
		if err := startReaper(ctx); err != nil {
			slog.WarnContext(ctx, "failed to start zombie reaper", "err", err)
		}
	}

	switch cmd {
	case "probe":
		return runProbe(ctx)
	case "history":
		return runHistory(ctx, cfg, args)
	}

	if *doSync {
		status, err := git_tools.Sync(ctx, cfg)
		if err != nil {
			return fmt.Errorf("sync repository: %s", cfg.Redact(err.Error()))
		}
		fmt.Fprintln(os.Stderr, status)
	}
	if _, err := probe.All(ctx, probe.Collaborators); err != nil {
		return err
	}

	store, err := openHistory(ctx, cfg)
	if err != nil {
		return err
	}
	defer store.Close()
	opts := []agenttool.Option{agenttool.WithSessionID(*sessionID)}
	if store != nil {
		opts = append(opts, agenttool.WithRecorder(store))
	}
	reg, err := agenttool.NewRegistry(cfg, agenttool.NewLocal(cfg), opts...)
	if err != nil {
		return err
	}

	switch cmd {
	case "call":
		return runCall(ctx, reg, args)
	case "mcp":
		return mcp.Serve(ctx, mcp.NewServer(reg, version()), os.Stdin, os.Stdout)
	case "serve":
		return runServe(ctx, cfg, reg, store, args)
	case "chat":
		return runChat(ctx, cfg, reg, args)
	}
	flag.Usage()
	return fmt.Errorf("unknown command %q", cmd)
}

// setupLogging logs to a temp file for the interactive chat, and to stderr
// otherwise. stdout is left to results and to the MCP protocol.
func setupLogging(cmd string, oneShot, verbose bool) (func(), error) {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	var h slog.Handler
	closeLog := func() {}
	if cmd == "chat" && !oneShot && !verbose {
		logFile, err := os.CreateTemp("", "gitagent-log-*")
		if err != nil {
			return nil, fmt.Errorf("cannot create log file: %v", err)
		}
		fmt.Printf("structured logs: %v\n", logFile.Name())
		closeLog = func() { logFile.Close() }
		h = slog.NewJSONHandler(logFile, &slog.HandlerOptions{Level: slog.LevelDebug})
	} else {
		h = slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})
	}
	slog.SetDefault(slog.New(skribe.AttrsWrap(h)))
	return closeLog, nil
}

func openHistory(ctx context.Context, cfg *config.Config) (*history.Store, error) {
	if cfg.HistoryDB == "" {
		return nil, nil
	}
	return history.Open(ctx, cfg.HistoryDB)
}

func runCall(ctx context.Context, reg *agenttool.Registry, args []string) error {
	if len(args) == 0 {
		return errors.New("call: missing tool name")
	}
	name, input := args[0], strings.Join(args[1:], " ")
	if input == "-" {
		b, err := io.ReadAll(os.Stdin)
		if err != nil {
			return fmt.Errorf("read input: %w", err)
		}
		input = string(b)
	}
	raw, err := toolargs.FromJSON([]byte(input))
	if err != nil {
		raw = toolargs.Text(input)
	}
	res := reg.InvokeByName(ctx, name, raw)
	fmt.Println(res)
	if res.IsErr() {
		return errToolFailed
	}
	return nil
}

func runServe(ctx context.Context, cfg *config.Config, reg *agenttool.Registry, store *history.Store, args []string) error {
	fs := flag.NewFlagSet("serve", flag.ContinueOnError)
	addr := fs.String("addr", "localhost:8080", "HTTP listen address")
	apiKey := fs.String("api-key", os.Getenv("GITAGENT_API_KEY"), "API key required on every route but /healthz")
	if err := fs.Parse(args); err != nil {
		return err
	}
	srv := server.New(cfg, reg, version())
	srv.APIKey = *apiKey
	if store != nil {
		srv.History = store
	}
	return srv.ListenAndServe(ctx, *addr)
}

func runChat(ctx context.Context, cfg *config.Config, reg *agenttool.Registry, args []string) error {
	if cfg.OpenAIKey == "" {
		return errors.New("OPENAI_API_KEY is not set")
	}
	svc := &oai.Service{
		HTTPC:  &http.Client{Timeout: 5 * time.Minute},
		APIKey: cfg.OpenAIKey,
		Model:  cfg.OpenAIModel,
	}
	agentConfig := loop.AgentConfig{
		Service:       svc,
		Tools:         reg.LLMTools(),
		MaxIterations: cfg.MaxIterations,
	}

	if len(args) > 0 {
		agent := loop.NewAgent(agentConfig)
		answer, err := agent.Turn(ctx, strings.Join(args, " "))
		if answer != "" {
			fmt.Println(answer)
		}
		if errors.Is(err, loop.ErrIterationLimit) {
			return nil
		}
		return err
	}

	ui := termui.New(cfg, reg)
	agentConfig.OnMessage = ui.HandleMessage
	ui.SetAgent(loop.NewAgent(agentConfig))
	defer func() {
		if err := ui.RestoreOldState(); err != nil {
			fmt.Fprintf(os.Stderr, "failed to restore terminal: %v\n", err)
		}
	}()
	return ui.Run(ctx)
}

func runProbe(ctx context.Context) error {
	reports, err := probe.All(ctx, probe.Collaborators)
	for _, r := range reports {
		switch {
		case r.Err != nil:
			color.Red("✗ %s", r)
		case !r.Found:
			color.Yellow("- %s", r)
		default:
			color.Green("✓ %s", r)
		}
	}
	return err
}

func runHistory(ctx context.Context, cfg *config.Config, args []string) error {
	fs := flag.NewFlagSet("history", flag.ContinueOnError)
	n := fs.Int("n", 20, "number of invocations to show")
	tool := fs.String("tool", "", "only show this tool")
	session := fs.String("session", "", "only show this session id")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if cfg.HistoryDB == "" {
		return errors.New("no history database; set GITAGENT_HISTORY_DB or -history")
	}
	store, err := history.Open(ctx, cfg.HistoryDB)
	if err != nil {
		return err
	}
	defer store.Close()

	recs, err := store.List(ctx, history.Filter{SessionID: *session, Tool: *tool, Limit: *n})
	if err != nil {
		return err
	}
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	for _, rec := range recs {
		result := firstLine(rec.Result)
		if rec.IsError {
			result = color.RedString(result)
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
			humanize.Time(rec.Started), rec.SessionID, rec.Tool, rec.Duration.Round(time.Millisecond), result)
	}
	return w.Flush()
}

func firstLine(s string) string {
	line, _, _ := strings.Cut(s, "\n")
	return line
}

func version() string {
	bi, ok := debug.ReadBuildInfo()
	if !ok {
		return "(devel)"
	}
	return fmt.Sprintf("%s@%v", bi.Path, bi.Main.Version)
}

// newSessionID generates a new 10-byte random session id.
func newSessionID() string {
	u1, u2 := rand.Uint64(), rand.Uint64N(1<<16)
	s := crock32.Encode(u1) + crock32.Encode(uint64(u2))
	if len(s) < 16 {
		s += strings.Repeat("0", 16-len(s))
	}
	return s[0:4] + "-" + s[4:8] + "-" + s[8:12] + "-" + s[12:16]
}
