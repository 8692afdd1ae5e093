// Package cli parses meddoc's argv and renders help.
package cli

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

type Command string

const (
	CommandRun      Command = "run"
	CommandStatus   Command = "status"
	CommandNext     Command = "next"
	CommandBack     Command = "back"
	CommandRepeat   Command = "repeat"
	CommandListen   Command = "listen"
	CommandGoto     Command = "goto"
	CommandSet      Command = "set"
	CommandClear    Command = "clear"
	CommandSubmit   Command = "submit"
	CommandExit     Command = "exit"
	CommandSections Command = "sections"
	CommandServe    Command = "serve"
	CommandToken    Command = "token"
	CommandDevices  Command = "devices"
	CommandDoctor   Command = "doctor"
	CommandVersion  Command = "version"
	CommandHelp     Command = "help"
)

// arity is the positional-argument contract of a command. max < 0 means
// unbounded.
type arity struct{ min, max int }

var commands = map[Command]arity{
	CommandRun:      {},
	CommandStatus:   {},
	CommandNext:     {},
	CommandBack:     {},
	CommandRepeat:   {},
	CommandListen:   {},
	CommandGoto:     {min: 1, max: 1},
	CommandSet:      {min: 2, max: -1},
	CommandClear:    {min: 1, max: 1},
	CommandSubmit:   {},
	CommandExit:     {},
	CommandSections: {},
	CommandServe:    {},
	CommandToken:    {min: 1, max: 1},
	CommandDevices:  {},
	CommandDoctor:   {},
	CommandVersion:  {},
	CommandHelp:     {},
}

// Forwarded reports whether the command is sent to a running session over
// the control socket.
func (c Command) Forwarded() bool {
	switch c {
	case CommandStatus, CommandNext, CommandBack, CommandRepeat, CommandListen,
		CommandGoto, CommandSet, CommandClear, CommandSubmit, CommandExit:
		return true
	default:
		return false
	}
}

type Parsed struct {
	Command    Command
	Args       []string
	ConfigPath string
	ShowHelp   bool
}

// Parse reads `[--config PATH] <command> [args]`. Flags must precede the
// command; everything after it is positional.
func Parse(args []string) (Parsed, error) {
	parsed := Parsed{Command: CommandHelp, ShowHelp: true}

	for i := 0; i < len(args); i++ {
		arg := args[i]

		switch {
		case arg == "-h" || arg == "--help":
			parsed.Command, parsed.ShowHelp = CommandHelp, true
		case arg == "--version":
			parsed.Command, parsed.ShowHelp = CommandVersion, false
		case arg == "--config":
			i++
			if i >= len(args) {
				return Parsed{}, errors.New("--config requires a path")
			}
			parsed.ConfigPath = args[i]
		case strings.HasPrefix(arg, "--config="):
			parsed.ConfigPath = strings.TrimPrefix(arg, "--config=")
			if parsed.ConfigPath == "" {
				return Parsed{}, errors.New("--config requires a path")
			}
		case strings.HasPrefix(arg, "-"):
			return Parsed{}, fmt.Errorf("unknown flag: %s", arg)
		default:
			cmd := Command(arg)
			want, ok := commands[cmd]
			if !ok {
				return Parsed{}, fmt.Errorf("unknown command: %s", arg)
			}
			rest := args[i+1:]
			if err := checkArity(cmd, want, rest); err != nil {
				return Parsed{}, err
			}
			parsed.Command = cmd
			parsed.Args = append([]string(nil), rest...)
			parsed.ShowHelp = cmd == CommandHelp
			return parsed, nil
		}
	}

	return parsed, nil
}

func checkArity(cmd Command, want arity, rest []string) error {
	switch {
	case len(rest) < want.min:
		return fmt.Errorf("%s: %s", cmd, usage(cmd))
	case want.max >= 0 && len(rest) > want.max:
		if want.max == 0 {
			return fmt.Errorf("unexpected arguments after command %q", cmd)
		}
		return fmt.Errorf("%s: %s", cmd, usage(cmd))
	}
	if cmd == CommandGoto {
		if _, err := strconv.Atoi(rest[0]); err != nil {
			return fmt.Errorf("goto: section must be a number, got %q", rest[0])
		}
	}
	return nil
}

func usage(cmd Command) string {
	switch cmd {
	case CommandGoto:
		return "usage: goto N"
	case CommandSet:
		return "usage: set KEY VALUE"
	case CommandClear:
		return "usage: clear KEY"
	case CommandToken:
		return "usage: token EMAIL"
	default:
		return "usage: " + string(cmd)
	}
}

func HelpText(binaryName string) string {
	return fmt.Sprintf(`Usage:
  %[1]s [--config PATH] <command> [args]

Session:
  run             Start an intake session in this terminal
  status          Print the running session's position
  next            Move to the next section
  back            Move to the previous section (exits from the first)
  repeat          Speak the current prompt again
  listen          Start listening for an answer now
  goto N          Jump to section N (0-based)
  set KEY VALUE   Set a field in the current section
  clear KEY       Clear a field
  submit          Submit the form (last section only)
  exit            Abandon the session

Tools:
  sections        List the form sections and their fields
  serve           Run the document store service
  token EMAIL     Mint and save a sign-in token
  devices         List audio input devices
  doctor          Run configuration and environment checks
  version         Print version information
  help            Show this help

Flags:
  --config PATH   Config file path (default: $XDG_CONFIG_HOME/meddoc/config.jsonc)
  -h, --help      Show help
  --version       Show version
`, binaryName)
}
