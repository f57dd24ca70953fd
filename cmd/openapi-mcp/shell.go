package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/aapmcp/openapi-mcp/pkg/auth"
	"github.com/aapmcp/openapi-mcp/pkg/openapi2mcp"
	"github.com/chzyer/readline"
	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"
	"github.com/spf13/cobra"
)

const shellHelp = `Available commands:

  list                    List available tools
  schema <tool>           Show the input schema of a tool and an example call
  call <tool> <json-args> Call a tool with arguments
  reload                  Reload the spec
  help                    Show this help message
  exit                    Exit the shell
`

func newShellCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "shell",
		Short: "Call the generated tools interactively",
		Long: `Start an interactive prompt over an in-process server. Tool calls are
authenticated once with auth.stdio_token or auth.stdio_jwt, as on stdio.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, logger, err := opts.load()
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()

			a, err := newApp(cfg, logger)
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			if _, err := a.server.Reload(ctx); err != nil {
				return fmt.Errorf("loading spec from %s: %w", cfg.Spec.URL, err)
			}
			id, err := a.stdioIdentity(ctx)
			if err != nil {
				return fmt.Errorf("authenticating shell credentials: %w", err)
			}
			sh := newShell(auth.WithIdentity(ctx, id), a.server)
			return sh.run()
		},
	}
}

// shell drives an MCP server through JSON-RPC messages, the way a client on
// the other end of a transport would.
type shell struct {
	ctx    context.Context
	server *openapi2mcp.Server
	out    io.Writer
	nextID int
}

func newShell(ctx context.Context, server *openapi2mcp.Server) *shell {
	return &shell{ctx: ctx, server: server, out: os.Stdout, nextID: 1}
}

func (s *shell) run() error {
	rl, err := readline.NewEx(&readline.Config{
		Prompt:          "mcp> ",
		HistoryFile:     os.ExpandEnv("$HOME/.openapi_mcp_history"),
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
		AutoComplete:    s.completer(),
	})
	if err != nil {
		return fmt.Errorf("initializing readline: %w", err)
	}
	defer rl.Close()
	s.out = rl.Stdout()

	for {
		line, err := rl.Readline()
		if errors.Is(err, readline.ErrInterrupt) {
			if line == "" {
				return nil
			}
			continue
		}
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}
		if s.execute(line) {
			return nil
		}
		if strings.HasPrefix(strings.TrimSpace(line), "reload") {
			rl.Config.AutoComplete = s.completer()
		}
	}
}

func (s *shell) completer() *readline.PrefixCompleter {
	names := s.server.Caller().Tools().Names()
	callItems := make([]readline.PrefixCompleterInterface, 0, len(names))
	schemaItems := make([]readline.PrefixCompleterInterface, 0, len(names))
	for _, name := range names {
		callItems = append(callItems, readline.PcItem(name))
		schemaItems = append(schemaItems, readline.PcItem(name))
	}
	return readline.NewPrefixCompleter(
		readline.PcItem("list"),
		readline.PcItem("help"),
		readline.PcItem("reload"),
		readline.PcItem("exit"),
		readline.PcItem("quit"),
		readline.PcItem("call", callItems...),
		readline.PcItem("schema", schemaItems...),
	)
}

// execute runs one command line and reports whether the shell should exit.
func (s *shell) execute(line string) bool {
	line = strings.TrimSpace(line)
	command, rest, _ := strings.Cut(line, " ")
	rest = strings.TrimSpace(rest)
	switch command {
	case "":
	case "exit", "quit":
		return true
	case "help":
		fmt.Fprint(s.out, shellHelp)
	case "list":
		s.list()
	case "schema":
		s.schema(rest)
	case "call":
		s.call(rest)
	case "reload":
		tools, err := s.server.Reload(s.ctx)
		if err != nil {
			fmt.Fprintf(s.out, "[error] reload failed: %v\n", err)
			break
		}
		fmt.Fprintf(s.out, "Reloaded %d tools.\n", tools.Len())
	default:
		fmt.Fprintln(s.out, "[error] Unknown command. Type 'help' for available commands.")
	}
	return false
}

func (s *shell) list() {
	var result mcp.ListToolsResult
	if err := s.rpc("tools/list", map[string]any{}, &result); err != nil {
		fmt.Fprintf(s.out, "[error] %v\n", err)
		return
	}
	for _, tool := range result.Tools {
		fmt.Fprintf(s.out, "%s\t%s\n", tool.Name, tool.Description)
	}
}

func (s *shell) schema(name string) {
	tool, ok := s.server.Caller().Tools().Lookup(name)
	if !ok {
		fmt.Fprintf(s.out, "[error] No schema found for tool '%s'.\n", name)
		return
	}
	pretty, _ := json.MarshalIndent(tool.InputSchema, "", "  ")
	fmt.Fprintf(s.out, "Schema for %s (%s %s):\n%s\n", name, tool.Method, tool.Path, pretty)
	example, _ := json.Marshal(exampleArguments(tool.InputSchema))
	fmt.Fprintf(s.out, "Example: call %s %s\n", name, example)
}

func exampleArguments(schema openapi2mcp.InputSchema) map[string]any {
	names := make([]string, 0, len(schema.Properties))
	for name := range schema.Properties {
		names = append(names, name)
	}
	sort.Strings(names)
	example := make(map[string]any, len(names))
	for _, name := range names {
		switch schema.Properties[name].Type {
		case "integer", "number":
			example[name] = 123
		case "boolean":
			example[name] = true
		default:
			example[name] = "example"
		}
	}
	return example
}

func (s *shell) call(rest string) {
	name, rawArgs, _ := strings.Cut(rest, " ")
	if name == "" {
		fmt.Fprintln(s.out, "Usage: call <tool> <json-args>")
		return
	}
	args := map[string]any{}
	if strings.TrimSpace(rawArgs) != "" {
		if err := json.Unmarshal([]byte(rawArgs), &args); err != nil {
			fmt.Fprintf(s.out, "[error] Invalid JSON for args: %v\n", err)
			return
		}
	}
	var result struct {
		IsError bool `json:"isError"`
		Content []struct {
			Text string `json:"text"`
		} `json:"content"`
	}
	if err := s.rpc("tools/call", map[string]any{"name": name, "arguments": args}, &result); err != nil {
		fmt.Fprintf(s.out, "[error] %v\n", err)
		return
	}
	for _, c := range result.Content {
		if result.IsError {
			fmt.Fprintf(s.out, "[tool error] %s\n", c.Text)
			continue
		}
		fmt.Fprintln(s.out, prettyJSON(c.Text))
	}
}

func prettyJSON(text string) string {
	var v any
	if json.Unmarshal([]byte(text), &v) != nil {
		return text
	}
	pretty, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return text
	}
	return string(pretty)
}

func (s *shell) rpc(method string, params any, out any) error {
	msg, err := json.Marshal(map[string]any{
		"jsonrpc": "2.0",
		"id":      s.nextID,
		"method":  method,
		"params":  params,
	})
	if err != nil {
		return err
	}
	s.nextID++
	return decodeReply(s.ctx, s.server.MCPServer(), msg, out)
}

func decodeReply(ctx context.Context, srv *mcpserver.MCPServer, msg []byte, out any) error {
	switch reply := srv.HandleMessage(ctx, msg).(type) {
	case mcp.JSONRPCResponse:
		raw, err := json.Marshal(reply.Result)
		if err != nil {
			return err
		}
		return json.Unmarshal(raw, out)
	case mcp.JSONRPCError:
		return errors.New(reply.Error.Message)
	default:
		return fmt.Errorf("unexpected reply %T", reply)
	}
}
