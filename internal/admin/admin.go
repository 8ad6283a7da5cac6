// Package admin implements the gateway's optional read-only HTTP admin API:
// backend/health status for operators, gated behind a CIDR allowlist. It is
// never on the client-facing MCP request path (the gateway's Non-goal is not
// authenticating MCP clients; this surface authenticates nobody either — it
// is kept off by default and bound, when enabled, to addresses the operator
// chooses).
package admin

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/jonwraymond/metatools-mcp/internal/backendmgr"
)

// StatusProvider is the subset of backendmgr.Manager the admin API needs.
type StatusProvider interface {
	Statuses() []backendmgr.Status
	InFlightCalls() int64
}

// Config controls where the admin server listens and who may reach it.
type Config struct {
	Listen       string
	AllowedCIDRs []string
}

// Server serves the read-only admin API.
type Server struct {
	cfg      Config
	provider StatusProvider
	log      *slog.Logger

	nets []*net.IPNet
	http *http.Server
}

// New builds a Server bound to cfg.Listen, refusing requests from addresses
// outside cfg.AllowedCIDRs.
func New(cfg Config, provider StatusProvider, log *slog.Logger) (*Server, error) {
	if log == nil {
		log = slog.Default()
	}
	nets := make([]*net.IPNet, 0, len(cfg.AllowedCIDRs))
	for _, cidr := range cfg.AllowedCIDRs {
		_, ipnet, err := net.ParseCIDR(cidr)
		if err != nil {
			return nil, fmt.Errorf("admin: invalid allowed_cidrs entry %q: %w", cidr, err)
		}
		nets = append(nets, ipnet)
	}

	s := &Server{cfg: cfg, provider: provider, log: log, nets: nets}

	mux := http.NewServeMux()
	mux.HandleFunc("/status", s.handleStatus)
	mux.HandleFunc("/healthz", s.handleHealthz)

	s.http = &http.Server{
		Addr:              cfg.Listen,
		Handler:           s.cidrGate(mux),
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s, nil
}

// Serve binds the listen address and blocks until ctx is cancelled.
func (s *Server) Serve(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.cfg.Listen)
	if err != nil {
		return fmt.Errorf("admin: listen %s: %w", s.cfg.Listen, err)
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- s.http.Serve(ln)
	}()

	s.log.Info("admin API listening", "addr", ln.Addr().String())

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return s.http.Shutdown(shutdownCtx)
	case err := <-errCh:
		if err == http.ErrServerClosed {
			return nil
		}
		return err
	}
}

// cidrGate rejects any request whose remote address doesn't fall within an
// allowed CIDR. An empty allowlist rejects everything, since an admin API
// with no configured allowlist has no safe default to fall back to.
func (s *Server) cidrGate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		host, _, err := net.SplitHostPort(r.RemoteAddr)
		if err != nil {
			host = r.RemoteAddr
		}
		ip := net.ParseIP(host)
		if ip == nil || !s.allowed(ip) {
			http.Error(w, "forbidden", http.StatusForbidden)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) allowed(ip net.IP) bool {
	for _, n := range s.nets {
		if n.Contains(ip) {
			return true
		}
	}
	return false
}

type backendStatusJSON struct {
	Name  string `json:"name"`
	State string `json:"state"`
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	statuses := s.provider.Statuses()
	out := make([]backendStatusJSON, 0, len(statuses))
	for _, st := range statuses {
		out = append(out, backendStatusJSON{Name: st.Name, State: st.State.String()})
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{
		"backends":  out,
		"in_flight": s.provider.InFlightCalls(),
	})
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}
