package relay

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"runtime/debug"
	"strings"
	"sync"

	"golang.org/x/time/rate"

	"github.com/mcoot/pairchat/internal/model"
	"github.com/mcoot/pairchat/internal/services/auth"
	"github.com/mcoot/pairchat/internal/services/session"
)

var (
	errPartnerGone = errors.New("partner is gone")
	errClientQuit  = errors.New("client quit")
)

// handler runs one connection through its lifecycle. All fields except lines
// and done are owned by the handler goroutine.
type handler struct {
	srv     *Server
	c       *conn
	logger  *slog.Logger
	limiter *rate.Limiter

	state       State
	username    string
	partner     model.ConnID
	partnerName string

	// lines carries input from the reader goroutine; closed on EOF or error
	lines chan string
	// done is closed by cleanup so the reader goroutine never blocks forever
	done        chan struct{}
	cleanupOnce sync.Once
}

func newHandler(srv *Server, c *conn) *handler {
	return &handler{
		srv:     srv,
		c:       c,
		logger:  srv.logger.With(slog.String("conn_id", string(c.id))),
		limiter: rate.NewLimiter(srv.cfg.AuthRate, srv.cfg.AuthBurst),
		state:   StateUnauthenticated,
		lines:   make(chan string),
		done:    make(chan struct{}),
	}
}

// run drives the connection from welcome to cleanup
func (h *handler) run(ctx context.Context) {
	defer h.cleanup()
	defer func() {
		if err := recover(); err != nil {
			h.logger.Error("panic recovered",
				slog.Any("error", err),
				slog.String("stack", string(debug.Stack())),
				slog.String("state", h.state.String()))
		}
	}()

	h.logger.Info("connection accepted", slog.String("remote_addr", h.c.remoteAddr()))
	go h.readLoop(h.logger)

	if err := h.c.send(msgWelcome); err != nil {
		return
	}
	if !h.authenticate(ctx) {
		return
	}
	if !h.pair(ctx) {
		return
	}
	h.relay(ctx)
}

// readLoop feeds newline-delimited input into h.lines
func (h *handler) readLoop(logger *slog.Logger) {
	defer close(h.lines)

	scanner := bufio.NewScanner(h.c.netConn)
	scanner.Buffer(make([]byte, 0, 1024), h.srv.cfg.MaxLineLength)

	for scanner.Scan() {
		line := strings.TrimSuffix(scanner.Text(), "\r")
		select {
		case h.lines <- line:
		case <-h.done:
			return
		}
	}

	if err := scanner.Err(); err != nil && !errors.Is(err, net.ErrClosed) {
		logger.Info("read failed", slog.String("error", err.Error()))
	}
}

// readLine returns the next input line. ok is false once the client is gone,
// the paired partner has left, or the server is shutting down.
func (h *handler) readLine(ctx context.Context) (string, bool) {
	select {
	case line, ok := <-h.lines:
		return line, ok
	case <-h.c.partnerLeft:
		return "", false
	case <-ctx.Done():
		h.reply(msgShuttingDown)
		return "", false
	}
}

// reply sends a line to this handler's own client. A failed write surfaces as
// a read failure on the next readLine, so it is only logged here.
func (h *handler) reply(line string) {
	if err := h.c.send(line); err != nil {
		h.logger.Debug("write failed", slog.String("error", err.Error()))
	}
}

// authenticate handles REGISTER/LOGIN until a login succeeds
func (h *handler) authenticate(ctx context.Context) bool {
	for {
		line, ok := h.readLine(ctx)
		if !ok {
			return false
		}

		cmd := ParseCommand(line)
		switch cmd.Name {
		case CmdRegister:
			h.register(ctx, cmd)
		case CmdLogin:
			if h.login(ctx, cmd) {
				return true
			}
		case CmdQuit:
			h.reply(success(msgGoodbye))
			return false
		default:
			h.reply(failure(msgInvalidCommand))
		}
	}
}

func (h *handler) register(ctx context.Context, cmd Command) {
	username, password, err := cmd.Credentials()
	if err != nil {
		h.reply(failure("Usage: REGISTER <user> <pass>"))
		return
	}
	if !h.limiter.Allow() {
		h.reply(failure(msgTooManyAttempts))
		return
	}

	err = h.srv.auth.Register(ctx, username, password)
	switch {
	case err == nil:
		h.reply(success(msgRegistered))
	case errors.Is(err, auth.ErrUsernameExists):
		h.reply(failure(msgUserExists))
	case errors.Is(err, auth.ErrInvalidUsername):
		h.reply(failure(msgInvalidUsername))
	case errors.Is(err, auth.ErrInvalidPassword):
		h.reply(failure(msgInvalidPassword))
	default:
		h.logger.Error("register failed", slog.String("error", err.Error()))
		h.reply(failure(msgInternal))
	}
}

func (h *handler) login(ctx context.Context, cmd Command) bool {
	username, password, err := cmd.Credentials()
	if err != nil {
		h.reply(failure("Usage: LOGIN <user> <pass>"))
		return false
	}
	if !h.limiter.Allow() {
		h.reply(failure(msgTooManyAttempts))
		return false
	}

	if err := h.srv.auth.Authenticate(ctx, username, password); err != nil {
		if errors.Is(err, auth.ErrInvalidCredentials) {
			h.reply(failure(msgBadCredentials))
		} else {
			h.logger.Error("authenticate failed", slog.String("error", err.Error()))
			h.reply(failure(msgInternal))
		}
		return false
	}

	if err := h.srv.registry.TryLogin(h.c.id, username); err != nil {
		h.logger.Info("login rejected", slog.String("username", username), slog.String("reason", err.Error()))
		h.reply(failure(msgAlreadyLoggedIn))
		return false
	}

	h.username = username
	h.state = StateAuthenticated
	h.logger = h.logger.With(slog.String("username", username))
	h.logger.Info("user logged in")
	h.reply(success(msgLoggedIn))
	return true
}

// pair enters the pairing pool and, if nobody is waiting, waits for a match
func (h *handler) pair(ctx context.Context) bool {
	partner, paired, err := h.srv.registry.EnterPool(h.c.id)
	if err != nil {
		h.logger.Error("enter pool failed", slog.String("error", err.Error()))
		h.reply(failure(msgInternal))
		return false
	}

	if !paired {
		h.state = StateWaiting
		h.logger.Info("waiting for partner")
		h.reply(msgWaiting)

		partner, err = h.waitForPartner(ctx)
		switch {
		case err == nil:
		case errors.Is(err, errClientQuit):
			h.reply(msgDisconnecting)
			return false
		case errors.Is(err, session.ErrPairingTimeout):
			h.logger.Info("pairing timed out", slog.Duration("timeout", h.srv.cfg.PairingTimeout))
			h.reply(msgTimedOut)
			return false
		default:
			if ctx.Err() != nil {
				h.reply(msgShuttingDown)
			}
			return false
		}
	}

	h.partner = partner
	name, ok := h.srv.registry.Username(partner)
	if !ok {
		h.reply(msgPartnerLeftEarly)
		return false
	}
	h.partnerName = name
	h.state = StatePaired

	h.logger.Info("paired", slog.String("partner_id", string(partner)), slog.String("partner", name))
	h.reply(partnerFound(name))
	return true
}

// waitForPartner blocks in the registry while a watcher keeps reading the
// socket, so a disconnect or quit during the wait ends it early.
func (h *handler) waitForPartner(ctx context.Context) (model.ConnID, error) {
	waitCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	stop := make(chan struct{})
	watched := make(chan error, 1)
	go func() {
		for {
			select {
			case <-stop:
				watched <- nil
				return
			case line, ok := <-h.lines:
				if !ok {
					cancel()
					watched <- io.EOF
					return
				}
				if isQuit(line) {
					cancel()
					watched <- errClientQuit
					return
				}
				h.reply(msgStillWaiting)
			}
		}
	}()

	partner, err := h.srv.registry.WaitForPartner(waitCtx, h.c.id, h.srv.cfg.PairingTimeout)
	close(stop)
	if watchErr := <-watched; errors.Is(watchErr, errClientQuit) {
		return partner, errClientQuit
	}
	return partner, err
}

// relay forwards chat lines to the partner and answers in-band commands
func (h *handler) relay(ctx context.Context) {
	for {
		line, ok := h.readLine(ctx)
		if !ok {
			return
		}

		if IsInband(line) {
			cmd, err := ParseInband(line)
			if err != nil {
				h.reply(msgUnknownInband)
				continue
			}
			switch cmd {
			case InbandQuit:
				h.reply(msgDisconnecting)
				return
			case InbandWho:
				h.reply(pairedWith(h.partnerName))
			}
			continue
		}

		if strings.TrimSpace(line) == "" {
			continue
		}

		if err := h.forward(line); err != nil {
			h.logger.Info("relay ended", slog.String("reason", err.Error()))
			return
		}
	}
}

// forward sends a chat line to the partner. The partner reference may be
// stale; it is checked against the registry and the connection table first.
func (h *handler) forward(text string) error {
	current, ok := h.srv.registry.Partner(h.c.id)
	if !ok || current != h.partner {
		return errPartnerGone
	}
	pc := h.srv.lookup(h.partner)
	if pc == nil {
		return errPartnerGone
	}

	if err := pc.send(chatLine(h.username, text)); err != nil {
		return fmt.Errorf("forward to partner: %w", err)
	}
	h.logger.Debug("message relayed", slog.Int("bytes", len(text)))
	return nil
}

// identity is the name this connection is known by in notices and logs
func (h *handler) identity() string {
	if h.username == "" {
		return model.AnonymousUser
	}
	return h.username
}
