package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	persistlog "pirateisles/internal/persistence/log"
	"pirateisles/internal/persistence/store"
	"pirateisles/internal/sim/world"
	"pirateisles/internal/transport/ws"
)

type httpDeps struct {
	world       *world.World
	ws          *ws.Server
	store       *store.Store // nil when the durable store is disabled
	outcomes    *persistlog.OutcomeLogger
	enableAdmin bool
}

func newMux(d httpDeps) *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(rw http.ResponseWriter, r *http.Request) {
		rw.WriteHeader(200)
		_, _ = rw.Write([]byte("ok"))
	})
	mux.HandleFunc("/metrics", func(rw http.ResponseWriter, r *http.Request) {
		rw.Header().Set("Content-Type", "text/plain; version=0.0.4")
		writeMetrics(rw, d)
	})
	if d.enableAdmin {
		// Local-only admin endpoints.
		mux.HandleFunc("/admin/v1/state", func(rw http.ResponseWriter, r *http.Request) {
			if !isLoopbackRemote(r.RemoteAddr) {
				http.Error(rw, "forbidden", http.StatusForbidden)
				return
			}
			ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
			defer cancel()
			st, err := d.world.RequestState(ctx)
			rw.Header().Set("Content-Type", "application/json")
			if err != nil {
				rw.WriteHeader(http.StatusServiceUnavailable)
				_ = json.NewEncoder(rw).Encode(map[string]any{"ok": false, "error": err.Error()})
				return
			}
			_ = json.NewEncoder(rw).Encode(st)
		})
		mux.HandleFunc("/admin/v1/snapshot", func(rw http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodPost {
				rw.WriteHeader(http.StatusMethodNotAllowed)
				return
			}
			if !isLoopbackRemote(r.RemoteAddr) {
				http.Error(rw, "forbidden", http.StatusForbidden)
				return
			}
			ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
			defer cancel()
			savedAt, err := d.world.RequestSnapshot(ctx)
			rw.Header().Set("Content-Type", "application/json")
			if err != nil {
				rw.WriteHeader(http.StatusServiceUnavailable)
				_ = json.NewEncoder(rw).Encode(map[string]any{"ok": false, "saved_at_ms": savedAt, "error": err.Error()})
				return
			}
			_ = json.NewEncoder(rw).Encode(map[string]any{"ok": true, "saved_at_ms": savedAt})
		})
	}
	if d.ws != nil {
		mux.HandleFunc("/v1/ws", d.ws.Handler())
	}
	return mux
}

func gauge(w io.Writer, name, help string) {
	fmt.Fprintf(w, "# HELP %s %s\n", name, help)
	fmt.Fprintf(w, "# TYPE %s gauge\n", name)
}

func counter(w io.Writer, name, help string) {
	fmt.Fprintf(w, "# HELP %s %s\n", name, help)
	fmt.Fprintf(w, "# TYPE %s counter\n", name)
}

// writeMetrics renders the minimal Prometheus exposition format.
func writeMetrics(rw io.Writer, d httpDeps) {
	m := d.world.Metrics()

	gauge(rw, "pirateisles_world_players", "Players known to the world.")
	fmt.Fprintf(rw, "pirateisles_world_players %d\n", m.Players)
	gauge(rw, "pirateisles_world_online", "Players currently online.")
	fmt.Fprintf(rw, "pirateisles_world_online %d\n", m.Online)
	gauge(rw, "pirateisles_world_clients", "Connected clients.")
	fmt.Fprintf(rw, "pirateisles_world_clients %d\n", m.Clients)

	gauge(rw, "pirateisles_world_missions", "Open missions by kind.")
	for _, k := range world.AllKinds {
		fmt.Fprintf(rw, "pirateisles_world_missions{kind=%q} %d\n", string(k), m.Missions[k])
	}

	gauge(rw, "pirateisles_world_queue_depth", "Channel backlog depth.")
	fmt.Fprintf(rw, "pirateisles_world_queue_depth{queue=%q} %d\n", "inbox", m.QueueDepths.Inbox)
	fmt.Fprintf(rw, "pirateisles_world_queue_depth{queue=%q} %d\n", "join", m.QueueDepths.Join)
	fmt.Fprintf(rw, "pirateisles_world_queue_depth{queue=%q} %d\n", "leave", m.QueueDepths.Leave)

	gauge(rw, "pirateisles_world_step_ms", "Last loop step duration in milliseconds.")
	fmt.Fprintf(rw, "pirateisles_world_step_ms %.3f\n", m.StepMS)

	if d.ws != nil {
		s := d.ws.Stats()
		gauge(rw, "pirateisles_ws_connections", "Open websocket sessions.")
		fmt.Fprintf(rw, "pirateisles_ws_connections %d\n", s.Connections)
		counter(rw, "pirateisles_ws_commands_total", "Inbound commands by outcome at the gateway.")
		fmt.Fprintf(rw, "pirateisles_ws_commands_total{result=%q} %d\n", "accepted", s.Accepted)
		fmt.Fprintf(rw, "pirateisles_ws_commands_total{result=%q} %d\n", "throttled", s.Throttled)
		fmt.Fprintf(rw, "pirateisles_ws_commands_total{result=%q} %d\n", "invalid", s.Invalid)
	}

	if d.store != nil {
		s := d.store.Stats()
		gauge(rw, "pirateisles_store_queue_depth", "Pending durable writes.")
		fmt.Fprintf(rw, "pirateisles_store_queue_depth %d\n", s.QueueDepth)
		gauge(rw, "pirateisles_store_queue_capacity", "Durable write queue capacity.")
		fmt.Fprintf(rw, "pirateisles_store_queue_capacity %d\n", s.QueueCapacity)
		counter(rw, "pirateisles_store_writes_total", "Durable writes by outcome.")
		fmt.Fprintf(rw, "pirateisles_store_writes_total{result=%q} %d\n", "written", s.Written)
		fmt.Fprintf(rw, "pirateisles_store_writes_total{result=%q} %d\n", "dropped", s.Dropped)
		fmt.Fprintf(rw, "pirateisles_store_writes_total{result=%q} %d\n", "failed", s.Failed)
	}

	if d.outcomes != nil {
		written, failed := d.outcomes.Counts()
		counter(rw, "pirateisles_outcomes_total", "Outcome log entries by result.")
		fmt.Fprintf(rw, "pirateisles_outcomes_total{result=%q} %d\n", "written", written)
		fmt.Fprintf(rw, "pirateisles_outcomes_total{result=%q} %d\n", "failed", failed)
	}
}

func isLoopbackRemote(remoteAddr string) bool {
	host := remoteAddr
	if h, _, err := net.SplitHostPort(remoteAddr); err == nil {
		host = h
	}
	host = strings.TrimPrefix(host, "[")
	host = strings.TrimSuffix(host, "]")
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}
