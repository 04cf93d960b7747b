package ws

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"

	"pirateisles/internal/protocol"
	"pirateisles/internal/sim/world"
)

const (
	helloTimeout = 5 * time.Second
	writeTimeout = 5 * time.Second
	readTimeout  = 60 * time.Second
	pingEvery    = 25 * time.Second
)

// Options tunes per-connection limits. Zero values pick defaults.
type Options struct {
	CommandsPerSec float64
	Burst          int
	OutQueue       int
	JoinTimeout    time.Duration
}

func (o Options) withDefaults() Options {
	if o.CommandsPerSec <= 0 {
		o.CommandsPerSec = 10
	}
	if o.Burst <= 0 {
		o.Burst = 20
	}
	if o.OutQueue <= 0 {
		o.OutQueue = 256
	}
	if o.JoinTimeout <= 0 {
		o.JoinTimeout = 5 * time.Second
	}
	return o
}

type Stats struct {
	Connections int64  `json:"connections"`
	Accepted    uint64 `json:"accepted"`
	Throttled   uint64 `json:"throttled"`
	Invalid     uint64 `json:"invalid"`
}

type Server struct {
	world     *world.World
	validator *protocol.Validator
	log       *log.Logger
	opts      Options

	upgrader websocket.Upgrader

	conns     atomic.Int64
	accepted  atomic.Uint64
	throttled atomic.Uint64
	invalid   atomic.Uint64
}

func NewServer(w *world.World, v *protocol.Validator, logger *log.Logger, opts Options) *Server {
	return &Server{
		world:     w,
		validator: v,
		log:       logger,
		opts:      opts.withDefaults(),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  16 * 1024,
			WriteBufferSize: 64 * 1024,
			CheckOrigin:     func(r *http.Request) bool { return true }, // dev default
		},
	}
}

func (s *Server) Stats() Stats {
	return Stats{
		Connections: s.conns.Load(),
		Accepted:    s.accepted.Load(),
		Throttled:   s.throttled.Load(),
		Invalid:     s.invalid.Load(),
	}
}

func (s *Server) Handler() http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		conn, err := s.upgrader.Upgrade(rw, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		nick, out := s.handshake(r.Context(), conn)
		if nick == "" {
			return
		}
		s.conns.Add(1)
		defer s.conns.Add(-1)
		s.log.Printf("connected %s from %s", nick, r.RemoteAddr)

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		go s.writeLoop(ctx, cancel, conn, out)
		s.readLoop(ctx, conn, nick, out)

		cancel()
		s.world.Leave() <- nick
		s.log.Printf("disconnected %s", nick)
	}
}

func (s *Server) writeLoop(ctx context.Context, cancel context.CancelFunc, conn *websocket.Conn, out <-chan []byte) {
	ping := time.NewTicker(pingEvery)
	defer ping.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ping.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeTimeout)); err != nil {
				cancel()
				return
			}
		case b := <-out:
			_ = conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := conn.WriteMessage(websocket.TextMessage, b); err != nil {
				cancel()
				return
			}
		}
	}
}

func (s *Server) readLoop(ctx context.Context, conn *websocket.Conn, nick string, out chan []byte) {
	limiter := rate.NewLimiter(rate.Limit(s.opts.CommandsPerSec), s.opts.Burst)
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(readTimeout))
	})
	for {
		if ctx.Err() != nil {
			return
		}
		_ = conn.SetReadDeadline(time.Now().Add(readTimeout))
		_, msg, err := conn.ReadMessage()
		if err != nil {
			return
		}
		// Seq is best effort here; the schema check below is authoritative.
		var c protocol.CommandMsg
		_ = json.Unmarshal(msg, &c)

		if base, err := protocol.DecodeBase(msg); err != nil || base.Type != protocol.TypeCommand {
			s.invalid.Add(1)
			s.reply(out, protocol.Reject(c.Seq, protocol.ErrBadRequest, "Expected CMD"))
			continue
		}
		if err := s.validator.ValidateCommand(msg); err != nil {
			s.invalid.Add(1)
			s.reply(out, protocol.Reject(c.Seq, protocol.ErrBadRequest, fmt.Sprintf("Invalid command: %v", err)))
			continue
		}
		if !limiter.Allow() {
			s.throttled.Add(1)
			s.reply(out, protocol.Reject(c.Seq, protocol.ErrRateLimit, "Too many commands"))
			continue
		}
		select {
		case s.world.Inbox() <- world.CommandEnvelope{PlayerID: nick, Cmd: c}:
			s.accepted.Add(1)
		default:
			s.throttled.Add(1)
			s.reply(out, protocol.Reject(c.Seq, protocol.ErrRateLimit, "Server busy"))
		}
	}
}

// reply queues a frame next to world output. When the queue is full the
// oldest frame is dropped.
func (s *Server) reply(out chan []byte, v any) {
	b, err := json.Marshal(v)
	if err != nil {
		s.log.Printf("marshal reply: %v", err)
		return
	}
	for i := 0; i < 2; i++ {
		select {
		case out <- b:
			return
		default:
		}
		select {
		case <-out:
		default:
		}
	}
}

func (s *Server) handshake(ctx context.Context, conn *websocket.Conn) (nick string, out chan []byte) {
	_ = conn.SetReadDeadline(time.Now().Add(helloTimeout))
	_, msg, err := conn.ReadMessage()
	if err != nil {
		return "", nil
	}
	if err := s.validator.ValidateHello(msg); err != nil {
		closeWith(conn, "expected HELLO")
		return "", nil
	}
	var hello protocol.HelloMsg
	if err := json.Unmarshal(msg, &hello); err != nil {
		closeWith(conn, "expected HELLO")
		return "", nil
	}
	if hello.ProtocolVersion != s.world.Tuning().ProtocolVersion {
		closeWith(conn, "bad protocol_version")
		return "", nil
	}

	out = make(chan []byte, s.opts.OutQueue)
	respCh := make(chan world.JoinResponse, 1)
	abandoned := make(chan struct{})
	req := world.JoinRequest{Nick: hello.Nick, Secret: hello.Secret, Out: out, Resp: respCh, Abandoned: abandoned}
	timeout := time.NewTimer(s.opts.JoinTimeout)
	defer timeout.Stop()

	select {
	case s.world.Join() <- req:
	case <-timeout.C:
		closeWith(conn, "join timed out")
		return "", nil
	case <-ctx.Done():
		return "", nil
	}

	var resp world.JoinResponse
	select {
	case resp = <-respCh:
	case <-timeout.C:
		close(abandoned)
		go s.releaseLateJoin(respCh)
		closeWith(conn, "join timed out")
		return "", nil
	case <-ctx.Done():
		close(abandoned)
		go s.releaseLateJoin(respCh)
		return "", nil
	}
	if !resp.OK() {
		closeWith(conn, resp.Code+": "+resp.Msg)
		return "", nil
	}
	if err := writeJSON(conn, resp.Welcome); err != nil {
		s.world.Leave() <- resp.Welcome.PlayerID
		return "", nil
	}
	return resp.Welcome.PlayerID, out
}

// releaseLateJoin waits briefly for a join the handshake gave up on. The
// world rejects abandoned joins it has not applied yet, so only one that was
// already applied can still arrive here, and it is taken offline again.
func (s *Server) releaseLateJoin(respCh <-chan world.JoinResponse) {
	t := time.NewTimer(s.opts.JoinTimeout)
	defer t.Stop()
	select {
	case resp := <-respCh:
		if resp.OK() {
			s.log.Printf("late join %s released", resp.Welcome.PlayerID)
			s.world.Leave() <- resp.Welcome.PlayerID
		}
	case <-t.C:
	}
}

func closeWith(conn *websocket.Conn, reason string) {
	_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.ClosePolicyViolation, reason), time.Now().Add(time.Second))
}

func writeJSON(conn *websocket.Conn, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	_ = conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	return conn.WriteMessage(websocket.TextMessage, b)
}
