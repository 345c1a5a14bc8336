// Package net is the TCP transport of the exchange. Connections are read by a
// pool of workers; decoded messages are handed to a single session handler
// which applies them one at a time.
package net

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"time"

	. "matchbook/internal/common"
	"matchbook/internal/config"
	"matchbook/internal/protocol"
	"matchbook/internal/utils"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
	tomb "gopkg.in/tomb.v2"
)

const messageDelimiter = '\n'

var ErrImproperConversion = errors.New("improper type conversion")

// Processor applies a decoded message to the exchange.
type Processor interface {
	Process(msg Message) error
}

// ClientSession contains relevant information pertaining to an individual
// connected TCP session. It is only ever held by one worker at a time.
type ClientSession struct {
	address string
	conn    net.Conn
	limiter *rate.Limiter
	buffer  []byte
	pending []byte // bytes read past the last delimiter
}

// ClientMessage links a message to the client sending it.
type ClientMessage struct {
	clientAddress string
	message       Message
}

type Server struct {
	cfg                config.ServerConfig
	processor          Processor
	pool               *utils.WorkerPool
	clientSessions     map[string]*ClientSession
	clientSessionsLock sync.Mutex
	clientMessages     chan ClientMessage
	log                zerolog.Logger
}

func New(cfg config.ServerConfig, processor Processor, log zerolog.Logger) *Server {
	log = log.With().Str("component", "server").Logger()
	return &Server{
		cfg:            cfg,
		processor:      processor,
		pool:           utils.NewWorkerPool(cfg.Workers, log),
		clientSessions: make(map[string]*ClientSession),
		clientMessages: make(chan ClientMessage, 1),
		log:            log,
	}
}

// Run listens on the configured address and serves until ctx is cancelled.
func (s *Server) Run(ctx context.Context) error {
	var lc net.ListenConfig
	listener, err := lc.Listen(ctx, "tcp", fmt.Sprintf("%s:%d", s.cfg.Address, s.cfg.Port))
	if err != nil {
		return fmt.Errorf("unable to start listener: %w", err)
	}
	return s.Serve(ctx, listener)
}

// Serve accepts connections on listener until ctx is cancelled or a worker
// fails. The listener is closed on return.
func (s *Server) Serve(ctx context.Context, listener net.Listener) error {
	t, _ := tomb.WithContext(ctx)

	s.pool.Setup(t, s.handleConnection)

	t.Go(func() error {
		return s.sessionHandler(t)
	})

	t.Go(func() error {
		return s.acceptLoop(t, listener)
	})

	t.Go(func() error {
		<-t.Dying()
		if err := listener.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
			s.log.Error().Err(err).Msg("unable to close listener")
		}
		return nil
	})

	s.log.Info().Stringer("address", listener.Addr()).Msg("server running")

	err := t.Wait()
	s.closeClientSessions()
	s.log.Info().Msg("server shut down")
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func (s *Server) acceptLoop(t *tomb.Tomb, listener net.Listener) error {
	for {
		s.log.Debug().Msg("listening for new client connections")
		conn, err := listener.Accept()
		if err != nil {
			select {
			case <-t.Dying():
				return nil
			default:
			}
			if errors.Is(err, net.ErrClosed) {
				return nil
			}
			s.log.Error().Err(err).Msg("error accepting client")
			continue
		}

		// Every session is a task in the pool queue at most once, so capping
		// sessions at the queue capacity keeps AddTask from blocking.
		session, ok := s.addClientSession(conn)
		if !ok {
			s.log.Warn().Str("address", conn.RemoteAddr().String()).Msg("too many clients, connection refused")
			_ = conn.Close()
			continue
		}
		s.log.Info().Str("address", session.address).Msg("new client added")

		// Pass over the connection to be read from.
		if !s.pool.AddTask(t, session) {
			return nil
		}
	}
}

// sessionHandler is the only caller of the processor: messages from every
// client are applied in the order the workers decoded them.
func (s *Server) sessionHandler(t *tomb.Tomb) error {
	for {
		select {
		case <-t.Dying():
			return nil
		case message := <-s.clientMessages:
			if err := s.processor.Process(message.message); err != nil {
				s.log.Error().
					Err(err).
					Str("address", message.clientAddress).
					Object("message", message.message).
					Msg("message dropped")
			}
		}
	}
}

// handleConnection is a short-lived worker method which reads what is
// available on the connection, decodes every complete message and passes them
// forward to sessionHandler. The session is then pushed back to the pool
// unless the client is gone.
// Note, any error returned from here is fatal.
func (s *Server) handleConnection(t *tomb.Tomb, task any) error {
	session, ok := task.(*ClientSession)
	if !ok {
		return ErrImproperConversion
	}

	select {
	case <-t.Dying():
		s.deleteClientSession(session)
		return nil
	default:
	}

	// Set max read timeout.
	if err := session.conn.SetReadDeadline(time.Now().Add(s.cfg.ReadTimeout)); err != nil {
		s.log.Error().
			Err(err).
			Str("address", session.address).
			Msg("failed setting deadline for connection")
		s.deleteClientSession(session)
		return nil
	}

	n, err := session.conn.Read(session.buffer)
	if n > 0 {
		session.pending = append(session.pending, session.buffer[:n]...)
		s.drain(t, session, false)
	}

	if err != nil {
		var netErr net.Error
		switch {
		case errors.As(err, &netErr) && netErr.Timeout():
			// Nothing to read yet.
		case errors.Is(err, io.EOF):
			// A client may send its last message without a delimiter.
			s.drain(t, session, true)
			s.log.Info().Str("address", session.address).Msg("client disconnected")
			s.deleteClientSession(session)
			return nil
		default:
			s.log.Error().
				Err(err).
				Str("address", session.address).
				Msg("error reading from connection")
			s.deleteClientSession(session)
			return nil
		}
	}

	// Push the client connection back to handle the next message.
	s.pool.AddTask(t, session)
	return nil
}

// drain forwards every delimited message buffered on the session. With final
// set, a trailing undelimited message is forwarded as well.
func (s *Server) drain(t *tomb.Tomb, session *ClientSession, final bool) {
	for {
		i := bytes.IndexByte(session.pending, messageDelimiter)
		if i < 0 {
			break
		}
		s.forward(t, session, session.pending[:i])
		session.pending = session.pending[i+1:]
	}

	if final && len(session.pending) > 0 {
		s.forward(t, session, session.pending)
		session.pending = nil
		return
	}
	if len(session.pending) > s.cfg.BufferSize {
		s.log.Warn().
			Str("address", session.address).
			Int("size", len(session.pending)).
			Msg("message exceeds buffer size, discarded")
		session.pending = nil
	}
}

func (s *Server) forward(t *tomb.Tomb, session *ClientSession, raw []byte) {
	// Clients may pad fixed size frames with NUL bytes.
	line := string(bytes.TrimSpace(bytes.Trim(raw, "\x00")))
	if line == "" {
		return
	}

	if session.limiter != nil && !session.limiter.Allow() {
		s.log.Warn().Str("address", session.address).Msg("rate limit exceeded, message dropped")
		return
	}

	message, err := protocol.Decode(line)
	if err != nil {
		s.log.Error().
			Err(err).
			Str("address", session.address).
			Str("raw", line).
			Msg("error parsing message")
		return
	}

	select {
	case s.clientMessages <- ClientMessage{clientAddress: session.address, message: message}:
	case <-t.Dying():
	}
}

// addClientSession is an atomic map add. Returns false when the server is
// at capacity.
func (s *Server) addClientSession(conn net.Conn) (*ClientSession, bool) {
	s.clientSessionsLock.Lock()
	defer s.clientSessionsLock.Unlock()

	if len(s.clientSessions) >= s.pool.Capacity() {
		return nil, false
	}

	session := &ClientSession{
		address: conn.RemoteAddr().String(),
		conn:    conn,
		buffer:  make([]byte, s.cfg.BufferSize),
	}
	if s.cfg.RateLimit.PerSecond > 0 {
		session.limiter = rate.NewLimiter(rate.Limit(s.cfg.RateLimit.PerSecond), s.cfg.RateLimit.Burst)
	}
	s.clientSessions[session.address] = session
	return session, true
}

// deleteClientSession is an atomic map remove. The connection is closed.
func (s *Server) deleteClientSession(session *ClientSession) {
	s.clientSessionsLock.Lock()
	defer s.clientSessionsLock.Unlock()

	s.closeLocked(session)
}

func (s *Server) closeClientSessions() {
	s.clientSessionsLock.Lock()
	defer s.clientSessionsLock.Unlock()

	for _, session := range s.clientSessions {
		s.closeLocked(session)
	}
}

func (s *Server) closeLocked(session *ClientSession) {
	if _, ok := s.clientSessions[session.address]; !ok {
		return
	}
	delete(s.clientSessions, session.address)
	if err := session.conn.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
		s.log.Error().Err(err).Str("address", session.address).Msg("unable to close connection")
	}
}

// Sessions returns the number of connected clients.
func (s *Server) Sessions() int {
	s.clientSessionsLock.Lock()
	defer s.clientSessionsLock.Unlock()

	return len(s.clientSessions)
}
