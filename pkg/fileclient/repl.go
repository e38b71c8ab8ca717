package fileclient

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"os/exec"
	"runtime"
	"strings"

	"github.com/relayforge/relaysuite/pkg/logging"
)

// Repl drives a Client from line-oriented stdin input, per spec.md §6's
// "identify / get <name> / put <name> / clear" token set. It is kept
// deliberately minimal — no prompt styling, no history — since that surface
// is out of scope.
type Repl struct {
	Client *Client
	In     io.Reader
	Out    io.Writer
	Logger logging.Logger
}

// NewRepl returns a Repl reading from stdin and writing to stdout.
func NewRepl(client *Client, logger logging.Logger) *Repl {
	if logger == nil {
		logger = logging.Default()
	}
	return &Repl{Client: client, In: os.Stdin, Out: os.Stdout, Logger: logger}
}

// Run reads lines until EOF or a fatal I/O error, dispatching each as a
// command.
func (r *Repl) Run() error {
	scanner := bufio.NewScanner(r.In)
	for {
		fmt.Fprint(r.Out, "> ")
		if !scanner.Scan() {
			return scanner.Err()
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if err := r.dispatch(line); err != nil {
			fmt.Fprintf(r.Out, "error: %v\n", err)
		}
	}
}

func (r *Repl) dispatch(line string) error {
	fields := strings.Fields(line)
	cmd := fields[0]

	switch cmd {
	case "identify":
		name := "relaysuite-client"
		if len(fields) > 1 {
			name = fields[1]
		}
		return r.Client.Identify(name)

	case "get":
		if len(fields) < 2 {
			return fmt.Errorf("usage: get <name>")
		}
		return r.get(fields[1])

	case "put":
		if len(fields) < 2 {
			return fmt.Errorf("usage: put <name>")
		}
		return r.put(fields[1])

	case "clear":
		clearScreen(r.Out)
		return nil

	default:
		return fmt.Errorf("unknown command %q", cmd)
	}
}

func (r *Repl) get(name string) error {
	data, perm, err := r.Client.GetFile(name)
	if err != nil {
		return err
	}
	if err := os.WriteFile(name, data, os.FileMode(perm)); err != nil {
		return err
	}
	fmt.Fprintf(r.Out, "wrote %d bytes to %s\n", len(data), name)
	return nil
}

func (r *Repl) put(name string) error {
	data, err := os.ReadFile(name)
	if err != nil {
		return err
	}
	info, err := os.Stat(name)
	if err != nil {
		return err
	}
	if err := r.Client.PutFile(name, data, uint16(info.Mode().Perm())); err != nil {
		return err
	}
	fmt.Fprintf(r.Out, "sent %d bytes\n", len(data))
	return nil
}

func clearScreen(out io.Writer) {
	if runtime.GOOS == "windows" {
		cmd := exec.Command("cmd", "/c", "cls")
		cmd.Stdout = out
		_ = cmd.Run()
		return
	}
	fmt.Fprint(out, "\033[H\033[2J")
}
