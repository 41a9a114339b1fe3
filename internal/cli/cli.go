// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// cli.go - CLI parsing for insightdesk.
package cli

import (
	"fmt"
	"io"
	"strconv"
	"strings"
)

// Version information (can be overridden at build time)
var (
	Version   = "0.1.0"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

// Command represents the CLI command to execute.
type Command int

const (
	CmdChat Command = iota
	CmdAsk
	CmdResearch
	CmdSessions
	CmdBudget
	CmdModels
	CmdConfig
	CmdVersion
	CmdHelp
)

// String returns the command name as typed on the command line.
func (c Command) String() string {
	switch c {
	case CmdChat:
		return "chat"
	case CmdAsk:
		return "ask"
	case CmdResearch:
		return "research"
	case CmdSessions:
		return "sessions"
	case CmdBudget:
		return "budget"
	case CmdModels:
		return "models"
	case CmdConfig:
		return "config"
	case CmdVersion:
		return "version"
	case CmdHelp:
		return "help"
	default:
		return "unknown"
	}
}

// NeedsClient reports whether the command talks to the backend.
func (c Command) NeedsClient() bool {
	switch c {
	case CmdChat, CmdAsk, CmdResearch, CmdSessions, CmdBudget:
		return true
	default:
		return false
	}
}

// Args holds parsed CLI arguments.
type Args struct {
	// Global flags
	Quiet      bool
	Verbose    bool
	JSON       bool
	ConfigPath string
	Model      string
	Topic      string
	Mode       string
	Limit      int
	Session    string
	NewSession bool

	// Command-specific
	Query      string
	Subcommand string

	// Raw holds the arguments after the command name.
	Raw []string

	// Err is a flag parsing failure, reported when the command runs.
	Err error
}

const usageText = `insightdesk - terminal client for the insights research assistant

Usage:
  insightdesk                        Start interactive chat (default)
  insightdesk chat                   Interactive chat
  insightdesk ask "question"         Ask a single question
  insightdesk research "query"       Run a deep research job
  insightdesk sessions [list]        List sessions of the topic
  insightdesk sessions show <id>     Print a session transcript
  insightdesk sessions delete <id>   Delete a session (--confirm)
  insightdesk budget "draft"         Show the document budget for a draft
  insightdesk models                 List known models and context windows
  insightdesk config [show]          Show configuration
  insightdesk config path            Show the config file location
  insightdesk config init [--force]  Write a default config file
  insightdesk config get <key>       Read one setting (e.g. chat.default_model)
  insightdesk config set <key> <v>   Change one setting
  insightdesk version                Show version
  insightdesk help                   Show this help

Global flags:
  -t, --topic NAME      Analysis topic (remembered)
  -m, --model ID        Target model (remembered)
      --mode MODE       Sizing: auto, balanced, comprehensive, focused, custom
      --limit N         Document count for custom sizing
  -s, --session ID      Continue a specific session
  -n, --new             Start a new session
  -c, --config FILE     Load configuration from FILE
      --json            JSON output
  -q, --quiet           Minimal output
  -v, --verbose         Debug logging on stderr

Chat commands:
  /topic [name]  /sessions  /switch <id|#>  /new [title]  /delete <id>
  /model [id]  /mode [mode] [limit]  /research [on|off]  /budget [draft]
  /history  /help  /quit

Environment:
  INSIGHTDESK_HOME       Configuration directory (default ~/.insightdesk)
  INSIGHTDESK_BASE_URL   Backend URL (default http://localhost:8000)
  NO_COLOR               Disable colored output

Version: %s
`

// PrintUsage writes the usage text.
func PrintUsage(w io.Writer) {
	fmt.Fprintf(w, usageText, Version)
}

// PrintVersion writes version information.
func PrintVersion(w io.Writer) {
	fmt.Fprintf(w, "insightdesk version %s\n", Version)
	fmt.Fprintf(w, "  Git commit: %s\n", GitCommit)
	fmt.Fprintf(w, "  Build date: %s\n", BuildDate)
}

// Parse parses command-line arguments (without the program name).
func Parse(argv []string) (Command, Args) {
	remaining, parsedArgs := parseGlobalFlags(argv)

	if len(remaining) == 0 {
		return CmdChat, parsedArgs
	}

	word := remaining[0]
	cmd := strings.ToLower(word)
	remaining = remaining[1:]
	parsedArgs.Raw = remaining

	switch cmd {
	case "chat", "repl":
		return CmdChat, parsedArgs

	case "ask", "a":
		parsedArgs.Query = joinQuery(remaining)
		return CmdAsk, parsedArgs

	case "research", "r":
		parsedArgs.Query = joinQuery(remaining)
		return CmdResearch, parsedArgs

	case "sessions", "session":
		parseSubcommand(&parsedArgs, remaining)
		return CmdSessions, parsedArgs

	case "budget":
		parsedArgs.Query = joinQuery(remaining)
		return CmdBudget, parsedArgs

	case "models":
		return CmdModels, parsedArgs

	case "config":
		parseSubcommand(&parsedArgs, remaining)
		return CmdConfig, parsedArgs

	case "version", "--version":
		return CmdVersion, parsedArgs

	case "help", "-h", "--help":
		return CmdHelp, parsedArgs

	default:
		// Anything else is a question.
		parsedArgs.Raw = append([]string{word}, remaining...)
		parsedArgs.Query = joinQuery(parsedArgs.Raw)
		return CmdAsk, parsedArgs
	}
}

// parseGlobalFlags extracts global flags from args and returns remaining args.
func parseGlobalFlags(args []string) ([]string, Args) {
	var remaining []string
	var parsedArgs Args

	value := func(i *int, name string) string {
		if *i+1 < len(args) {
			*i++
			return args[*i]
		}
		if parsedArgs.Err == nil {
			parsedArgs.Err = ErrMissingArgument(name, "--"+name+" VALUE")
		}
		return ""
	}

	for i := 0; i < len(args); i++ {
		arg := args[i]

		name, inline, hasInline := strings.Cut(arg, "=")
		if !strings.HasPrefix(arg, "--") {
			name, inline, hasInline = arg, "", false
		}
		get := func(flag string) string {
			if hasInline {
				return inline
			}
			return value(&i, flag)
		}

		switch name {
		case "-q", "--quiet":
			parsedArgs.Quiet = true
		case "-v", "--verbose":
			parsedArgs.Verbose = true
		case "--json":
			parsedArgs.JSON = true
		case "-n", "--new":
			parsedArgs.NewSession = true
		case "-c", "--config":
			parsedArgs.ConfigPath = get("config")
		case "-m", "--model":
			parsedArgs.Model = get("model")
		case "-t", "--topic":
			parsedArgs.Topic = get("topic")
		case "-s", "--session":
			parsedArgs.Session = get("session")
		case "--mode":
			parsedArgs.Mode = strings.ToLower(get("mode"))
		case "--limit":
			raw := get("limit")
			n, err := strconv.Atoi(raw)
			if err != nil || n < 1 {
				if parsedArgs.Err == nil {
					parsedArgs.Err = NewValidationErrorWithExample("limit", raw,
						"must be a positive integer", "--mode custom --limit 80")
				}
				continue
			}
			parsedArgs.Limit = n
		default:
			remaining = append(remaining, arg)
		}
	}

	return remaining, parsedArgs
}

// parseSubcommand records the first positional argument as the subcommand.
func parseSubcommand(args *Args, remaining []string) {
	p := NewArgParser(remaining)
	args.Subcommand = strings.ToLower(p.Subcommand())
}

// joinQuery joins the words of a free-text argument.
func joinQuery(words []string) string {
	return strings.TrimSpace(strings.Join(words, " "))
}
