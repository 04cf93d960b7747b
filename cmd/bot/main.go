package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"math/rand"
	"os"
	"os/signal"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"pirateisles/internal/protocol"
	"pirateisles/internal/sim/archipelago"
	"pirateisles/internal/sim/world"
)

func main() {
	var (
		url     = flag.String("url", "ws://localhost:8080/v1/ws", "ws url")
		nick    = flag.String("nick", "bot", "nick (suffixed with _N when -n > 1)")
		secret  = flag.String("secret", "", "password for the bot nicks")
		n       = flag.Int("n", 1, "number of bots")
		every   = flag.Duration("every", 3*time.Second, "pause between commands")
		version = flag.String("protocol", "1.0", "protocol version sent in HELLO")
	)
	flag.Parse()

	logger := log.New(os.Stdout, "[bot] ", log.LstdFlags|log.Lmicroseconds)
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	var wg sync.WaitGroup
	for i := 0; i < *n; i++ {
		name := *nick
		if *n > 1 {
			name = fmt.Sprintf("%s_%d", *nick, i+1)
		}
		b := &bot{
			nick:    name,
			secret:  *secret,
			version: *version,
			every:   *every,
			rng:     rand.New(rand.NewSource(time.Now().UnixNano() + int64(i))),
			log:     logger,
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := b.run(ctx, *url); err != nil {
				logger.Printf("%s: %v", b.nick, err)
			}
		}()
	}
	wg.Wait()
}

type stateView struct {
	Players []world.PlayerView `json:"players"`
	Nodes   []struct {
		ID            int   `json:"id"`
		DepletedUntil int64 `json:"depleted_until"`
	} `json:"resource_nodes"`
	Now int64 `json:"now"`
}

type bot struct {
	nick    string
	secret  string
	version string
	every   time.Duration
	rng     *rand.Rand
	log     *log.Logger

	mu    sync.Mutex
	state stateView
	self  world.PlayerView
	seq   int64
}

func (b *bot) run(ctx context.Context, url string) error {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		return fmt.Errorf("dial: %w", err)
	}
	defer conn.Close()

	hello := protocol.HelloMsg{Type: protocol.TypeHello, ProtocolVersion: b.version, Nick: b.nick, Secret: b.secret}
	if err := conn.WriteJSON(hello); err != nil {
		return fmt.Errorf("send HELLO: %w", err)
	}
	var welcome protocol.WelcomeMsg
	if err := conn.ReadJSON(&welcome); err != nil {
		return fmt.Errorf("read WELCOME: %w", err)
	}
	if g := welcome.OfflineGains; g != nil {
		b.log.Printf("%s: welcome back after %ds (+%d rum, +%d wood)", b.nick, g.Seconds, g.Rum, g.Wood)
	} else {
		b.log.Printf("%s: joined, map %.0fx%.0f", b.nick, welcome.WorldParams.MapWidth, welcome.WorldParams.MapHeight)
	}

	readErr := make(chan error, 1)
	go func() { readErr <- b.readLoop(conn) }()

	tick := time.NewTicker(b.every)
	defer tick.Stop()
	for {
		select {
		case <-ctx.Done():
			_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
			return nil
		case err := <-readErr:
			return err
		case <-tick.C:
			if c, ok := b.next(); ok {
				if err := conn.WriteJSON(c); err != nil {
					return fmt.Errorf("send: %w", err)
				}
			}
		}
	}
}

func (b *bot) readLoop(conn *websocket.Conn) error {
	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			return err
		}
		base, err := protocol.DecodeBase(msg)
		if err != nil {
			continue
		}
		switch base.Type {
		case protocol.TypeAck:
			var ack protocol.AckMsg
			if err := json.Unmarshal(msg, &ack); err == nil && !ack.OK && ack.Code != protocol.ErrRateLimit {
				b.log.Printf("%s: seq=%d %s %s", b.nick, ack.Seq, ack.Code, ack.Msg)
			}
		case protocol.TypeEvent:
			var ev struct {
				Event string          `json:"event"`
				Data  json.RawMessage `json:"data"`
			}
			if err := json.Unmarshal(msg, &ev); err != nil {
				continue
			}
			b.onEvent(ev.Event, ev.Data)
		}
	}
}

func (b *bot) onEvent(name string, data json.RawMessage) {
	switch name {
	case protocol.EventState:
		var st stateView
		if err := json.Unmarshal(data, &st); err != nil {
			return
		}
		b.mu.Lock()
		b.state = st
		for _, p := range st.Players {
			if p.Nick == b.nick {
				b.self = p
			}
		}
		b.mu.Unlock()
	case protocol.EventAttacked, protocol.EventWiped, protocol.EventRaidResult:
		b.log.Printf("%s: %s %s", b.nick, name, string(data))
	}
}

// next picks the bot's next command from the last state it saw.
func (b *bot) next() (protocol.CommandMsg, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.seq++
	c := protocol.CommandMsg{Type: protocol.TypeCommand, Seq: b.seq}
	switch {
	case b.self.DebrisGold > 0:
		c.Cmd = protocol.CmdCollectDebris
	case b.self.Rum >= 400*b.self.Tavern && b.rng.Intn(4) == 0:
		c.Cmd = protocol.CmdUpgradeTavern
	case b.self.Boats > 0:
		switch b.rng.Intn(3) {
		case 0:
			c.Cmd = protocol.CmdRaid
		case 1:
			idx := b.rng.Intn(archipelago.Count(b.nick))
			c.Cmd, c.Index = protocol.CmdHarvestArchipelago, &idx
		default:
			var open []int
			for _, n := range b.state.Nodes {
				if n.DepletedUntil <= b.state.Now {
					open = append(open, n.ID)
				}
			}
			if len(open) == 0 {
				c.Cmd = protocol.CmdRaid
				break
			}
			c.Cmd, c.NodeID = protocol.CmdHarvestResource, open[b.rng.Intn(len(open))]
		}
	default:
		b.seq--
		return c, false
	}
	return c, true
}
