// Package daemon serves the background agent over loopback HTTP so
// foregrounds in other processes can reach it.
package daemon

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"time"

	"github.com/charmbracelet/log"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/websocket"
	jsoniter "github.com/json-iterator/go"
	"golang.org/x/sync/errgroup"

	"github.com/julianstephens/hydrate/internal/agent"
	"github.com/julianstephens/hydrate/internal/constants"
	hyerrors "github.com/julianstephens/hydrate/internal/errors"
	"github.com/julianstephens/hydrate/internal/lockfile"
	"github.com/julianstephens/hydrate/internal/logger"
	"github.com/julianstephens/hydrate/internal/models"
	"github.com/julianstephens/hydrate/internal/protocol"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

const (
	maxBodyBytes = 64 * 1024
	writeWait    = 5 * time.Second
	pingPeriod   = 30 * time.Second
)

type Daemon struct {
	agent    *agent.Agent
	lockPath string
	addr     string
	onListen func(lockfile.Lock)
	log      *log.Logger
	upgrader websocket.Upgrader
}

type Option func(*Daemon)

// WithAddr sets the listen address. Defaults to an ephemeral loopback port.
func WithAddr(addr string) Option { return func(d *Daemon) { d.addr = addr } }

// WithListenHook is called once the daemon is listening, before the agent
// starts, e.g. to point the tray's action callback at this daemon.
func WithListenHook(fn func(lockfile.Lock)) Option { return func(d *Daemon) { d.onListen = fn } }

func WithLogger(l *log.Logger) Option { return func(d *Daemon) { d.log = l } }

func New(a *agent.Agent, lockPath string, opts ...Option) *Daemon {
	d := &Daemon{
		agent:    a,
		lockPath: lockPath,
		addr:     "127.0.0.1:0",
		log:      logger.Named("daemon"),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Run listens, writes the lockfile, runs the agent and serves until ctx is
// done. The lockfile is removed on the way out.
func (d *Daemon) Run(ctx context.Context) error {
	if existing, err := lockfile.Find(d.lockPath, constants.AgentProcessName); err == nil {
		return fmt.Errorf("agent already running (pid %d)", existing.PID)
	}

	ln, err := net.Listen("tcp", d.addr)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", d.addr, err)
	}
	secret, err := lockfile.NewSecret()
	if err != nil {
		ln.Close()
		return err
	}
	lock := lockfile.Lock{Port: ln.Addr().(*net.TCPAddr).Port, PID: os.Getpid(), Secret: secret}
	if err := lockfile.Write(d.lockPath, lock); err != nil {
		ln.Close()
		return fmt.Errorf("writing lockfile: %w", err)
	}
	defer func() {
		if err := lockfile.Remove(d.lockPath, lock.PID); err != nil {
			d.log.Warn("Failed to remove lockfile", "error", err)
		}
	}()
	if d.onListen != nil {
		d.onListen(lock)
	}

	srv := &http.Server{
		Handler:           d.Handler(secret),
		ReadHeaderTimeout: 5 * time.Second,
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return d.agent.Run(ctx)
	})
	g.Go(func() error {
		d.log.Info("Agent daemon listening", "addr", ln.Addr().String(), "lockfile", d.lockPath)
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

// Handler returns the daemon's routes, all guarded by secret.
func (d *Daemon) Handler(secret string) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer,
		d.requestLogger,
		requireSecret(secret),
	)

	r.Post(protocol.PathMessages, d.postMessage)
	r.Get(protocol.PathSettings, d.getSettings)
	r.Post(protocol.PathCheck, d.postCheck)
	r.Post(protocol.PathActions, d.postAction)
	r.Get(protocol.PathEvents, d.events)

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusNotFound, "not found")
	})
	return r
}

func (d *Daemon) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		d.log.Debug("Request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"latency", time.Since(start).String(),
		)
	})
}

func requireSecret(secret string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			got := r.Header.Get(constants.SecretHeader)
			if subtle.ConstantTimeCompare([]byte(got), []byte(secret)) != 1 {
				writeError(w, http.StatusUnauthorized, "unauthorized")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func (d *Daemon) postMessage(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		writeError(w, http.StatusRequestEntityTooLarge, err.Error())
		return
	}
	env, err := protocol.Decode(body)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := d.agent.Deliver(r.Context(), env); err != nil {
		writeAgentError(w, err)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

func (d *Daemon) getSettings(w http.ResponseWriter, r *http.Request) {
	env, err := protocol.GetSettings()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	settings, err := d.agent.Query(r.Context(), env)
	if err != nil {
		writeAgentError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, settings)
}

func (d *Daemon) postCheck(w http.ResponseWriter, r *http.Request) {
	fired, err := d.agent.CheckAndFire(r.Context())
	if err != nil {
		writeAgentError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, protocol.CheckResult{Fired: fired})
}

func (d *Daemon) postAction(w http.ResponseWriter, r *http.Request) {
	var req protocol.ActionRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid action body")
		return
	}
	if err := models.Validator.Struct(req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid action %q", req.Action))
		return
	}
	if err := d.agent.HandleAction(r.Context(), chi.URLParam(r, "id"), req.Action); err != nil {
		writeAgentError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// events streams background envelopes to one attached foreground until
// either side goes away.
func (d *Daemon) events(w http.ResponseWriter, r *http.Request) {
	conn, err := d.upgrader.Upgrade(w, r, nil)
	if err != nil {
		d.log.Debug("Websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	sub, err := d.agent.Subscribe(ctx)
	if err != nil {
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseTryAgainLater, err.Error()),
			time.Now().Add(writeWait))
		return
	}

	// The reader only notices the peer going away.
	go func() {
		defer cancel()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ping := time.NewTicker(pingPeriod)
	defer ping.Stop()
	for {
		select {
		case <-ctx.Done():
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(writeWait))
			return
		case <-ping.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				return
			}
		case env, ok := <-sub:
			if !ok {
				return
			}
			data, err := protocol.Encode(env)
			if err != nil {
				d.log.Error("Failed to encode envelope", "error", err)
				continue
			}
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
				d.log.Debug("Foreground went away", "error", err)
				return
			}
		}
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func writeAgentError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, hyerrors.ErrAgentUnavailable):
		writeError(w, http.StatusServiceUnavailable, err.Error())
	case errors.Is(err, protocol.ErrUnknownType), errors.Is(err, protocol.ErrInvalidPayload):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}
