package relay

import (
	"errors"
	"fmt"
	"strings"
)

// Pre-login commands
const (
	CmdRegister = "REGISTER"
	CmdLogin    = "LOGIN"
	CmdQuit     = "QUIT"
)

// In-band commands accepted once paired
const (
	InbandQuit = "/quit"
	InbandWho  = "/who"
)

// ErrUnknownCommand is returned for input that is not a recognised command
var ErrUnknownCommand = errors.New("unknown command")

// Reply prefixes
const (
	prefixSuccess = "SUCCESS: "
	prefixError   = "ERROR: "
)

// Server messages. Only the SUCCESS/ERROR prefixes are part of the protocol;
// the wording is informational.
const (
	msgWelcome          = "Welcome! Type REGISTER <user> <pass> OR LOGIN <user> <pass>"
	msgRegistered       = "Registered! Please LOGIN now."
	msgLoggedIn         = "Logged in."
	msgGoodbye          = "Goodbye."
	msgUserExists       = "User already exists."
	msgInvalidUsername  = "Invalid username. Use up to 32 characters without spaces."
	msgInvalidPassword  = "Invalid password. Use up to 72 characters without spaces."
	msgBadCredentials   = "Invalid username or password."
	msgAlreadyLoggedIn  = "User already logged in elsewhere."
	msgInvalidCommand   = "Invalid command. Use REGISTER or LOGIN."
	msgTooManyAttempts  = "Too many attempts. Please wait before trying again."
	msgInternal         = "Internal error."
	msgServerFull       = "Server is full. Try again later."
	msgWaiting          = "Waiting for a partner to connect. Please hold..."
	msgStillWaiting     = "Not paired yet. Please hold..."
	msgTimedOut         = "Timed out waiting for partner. Disconnecting."
	msgDisconnecting    = "Disconnecting..."
	msgUnknownInband    = "Unknown command."
	msgShuttingDown     = "Server is shutting down."
	msgPartnerLeftEarly = "Your partner disconnected before the conversation started."
)

// Command is a parsed pre-login line
type Command struct {
	Name string
	Args []string
}

// ParseCommand splits a line into an upper-cased command name and its arguments
func ParseCommand(line string) Command {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return Command{}
	}
	return Command{
		Name: strings.ToUpper(fields[0]),
		Args: fields[1:],
	}
}

// Credentials returns the username and password arguments of REGISTER or LOGIN
func (c Command) Credentials() (username, password string, err error) {
	if c.Name != CmdRegister && c.Name != CmdLogin {
		return "", "", ErrUnknownCommand
	}
	if len(c.Args) != 2 {
		return "", "", fmt.Errorf("%s expects <user> <pass>: %w", c.Name, ErrUnknownCommand)
	}
	return c.Args[0], c.Args[1], nil
}

// IsInband reports whether a paired client's line is an in-band command
func IsInband(line string) bool {
	return strings.HasPrefix(line, "/")
}

// ParseInband returns the normalised in-band command for a line starting with "/"
func ParseInband(line string) (string, error) {
	cmd := strings.ToLower(strings.TrimSpace(line))
	switch cmd {
	case InbandQuit, InbandWho:
		return cmd, nil
	default:
		return "", ErrUnknownCommand
	}
}

// isQuit reports whether a line asks to end the session in any state
func isQuit(line string) bool {
	trimmed := strings.TrimSpace(line)
	return strings.EqualFold(trimmed, CmdQuit) || strings.EqualFold(trimmed, InbandQuit)
}

func success(msg string) string {
	return prefixSuccess + msg
}

func failure(msg string) string {
	return prefixError + msg
}

func chatLine(sender, text string) string {
	return "[" + sender + "]: " + text
}

func partnerFound(name string) string {
	return "Partner " + name + " found! Start chatting."
}

func pairedWith(name string) string {
	return "You are paired with " + name + "."
}

func partnerDisconnected(name string) string {
	return "Your partner (" + name + ") has disconnected. Conversation ended."
}
