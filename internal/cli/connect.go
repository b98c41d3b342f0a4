package cli

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
)

const (
	quitCommand  = "QUIT"
	dialTimeout  = 10 * time.Second
	maxLineBytes = 64 * 1024
)

func newConnectCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "connect",
		Short: "Open an interactive chat session",
		Long: `Connect to the relay and chat.

Type REGISTER <user> <pass> or LOGIN <user> <pass> to sign in. Once paired,
every line you type goes to your partner; /who names them and /quit ends the
conversation. Typing QUIT closes the connection at any time.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			conn, err := net.DialTimeout("tcp", cfg.ServerAddr, dialTimeout)
			if err != nil {
				return fmt.Errorf("connect to %s: %w", cfg.ServerAddr, err)
			}
			_, _ = fmt.Fprintf(os.Stderr, "Connected to %s.\n", cfg.ServerAddr)

			return newChatSession(conn, os.Stdin, os.Stdout).run()
		},
	}
}

// chatSession pumps lines between the terminal and the relay. Server pushes
// are printed as they arrive while input is read independently.
type chatSession struct {
	conn net.Conn
	in   io.Reader
	out  io.Writer
}

func newChatSession(conn net.Conn, in io.Reader, out io.Writer) *chatSession {
	return &chatSession{conn: conn, in: in, out: out}
}

// run returns when the server closes the connection, the user types QUIT or
// input reaches EOF. The connection is always closed on return.
func (s *chatSession) run() error {
	received := make(chan error, 1)
	go func() { received <- s.receive() }()

	sent := make(chan error, 1)
	go func() { sent <- s.send() }()

	select {
	case err := <-received:
		_ = s.conn.Close()
		return err
	case err := <-sent:
		_ = s.conn.Close()
		<-received
		return err
	}
}

// receive prints every server line until the connection ends
func (s *chatSession) receive() error {
	scanner := bufio.NewScanner(s.conn)
	scanner.Buffer(make([]byte, 0, 1024), maxLineBytes)

	for scanner.Scan() {
		_, _ = fmt.Fprintln(s.out, scanner.Text())
	}

	err := scanner.Err()
	switch {
	case err == nil:
		_, _ = fmt.Fprintln(s.out, "Server disconnected. Conversation ended.")
		return nil
	case errors.Is(err, net.ErrClosed):
		return nil
	default:
		return fmt.Errorf("receive: %w", err)
	}
}

// send forwards input lines. Empty lines are skipped.
func (s *chatSession) send() error {
	scanner := bufio.NewScanner(s.in)
	scanner.Buffer(make([]byte, 0, 1024), maxLineBytes)

	for scanner.Scan() {
		line := strings.TrimRight(scanner.Text(), "\r")
		if strings.TrimSpace(line) == "" {
			continue
		}

		if _, err := io.WriteString(s.conn, line+"\n"); err != nil {
			if errors.Is(err, net.ErrClosed) {
				return nil
			}
			return fmt.Errorf("send: %w", err)
		}

		if strings.TrimSpace(line) == quitCommand {
			return nil
		}
	}
	return scanner.Err()
}
