package approval

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"sort"

	"golang.org/x/term"
)

// ConsoleChannel presents approval requests on a terminal and reads the
// operator's response line. Non-interactive sessions (no TTY on stdin)
// refuse to present, leaving resolution to the manager's timeout.
type ConsoleChannel struct {
	in          io.Reader
	out         io.Writer
	interactive bool
}

// NewConsoleChannel creates a channel on stdin/stdout, detecting
// interactivity from the terminal.
func NewConsoleChannel() *ConsoleChannel {
	return &ConsoleChannel{
		in:          os.Stdin,
		out:         os.Stdout,
		interactive: term.IsTerminal(int(os.Stdin.Fd())),
	}
}

// newConsoleChannelForTest wires arbitrary reader/writer pairs.
func newConsoleChannelForTest(in io.Reader, out io.Writer) *ConsoleChannel {
	return &ConsoleChannel{in: in, out: out, interactive: true}
}

// Present implements Channel.
func (c *ConsoleChannel) Present(req *Request) (string, error) {
	fmt.Fprintf(c.out, "\n=== APPROVAL REQUIRED [%s] ===\n", req.Type)
	fmt.Fprintf(c.out, "Request %s\n", req.ID)
	fmt.Fprintf(c.out, "%s\n", req.Description)

	if len(req.Context) > 0 {
		keys := make([]string, 0, len(req.Context))
		for k := range req.Context {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			fmt.Fprintf(c.out, "  %s: %v\n", k, req.Context[k])
		}
	}
	fmt.Fprintf(c.out, "Approve? [yes/no]: ")

	if !c.interactive {
		return "", fmt.Errorf("no interactive terminal for approval input")
	}

	scanner := bufio.NewScanner(c.in)
	if !scanner.Scan() {
		if err := scanner.Err(); err != nil {
			return "", fmt.Errorf("failed to read approval input: %w", err)
		}
		return "", fmt.Errorf("approval input closed")
	}
	return scanner.Text(), nil
}
