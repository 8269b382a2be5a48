package rpc

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/alecthomas/units"
	"github.com/canopy-network/batchdex/dex"
	"github.com/canopy-network/batchdex/lib"
	"github.com/julienschmidt/httprouter"
	"github.com/rs/cors"
	"golang.org/x/net/netutil"
	"golang.org/x/time/rate"
)

const (
	colon = ":"

	SoftwareVersion = "0.1.0-alpha"
	ContentType     = "Content-Type"
	ApplicationJSON = "application/json; charset=utf-8"
	TextHTML        = "text/html; charset=utf-8"

	localhost = "localhost"
)

// Server represents the rpc server of a batchdex node
type Server struct {
	// sm is the settlement engine the rpc reads and, through the admin routes, writes
	sm *dex.StateMachine
	// smMux serializes access to the state machine
	smMux sync.Mutex
	// config is the node configuration
	config lib.Config
	// limiter bounds the request rate of the query server
	limiter *rate.Limiter
	// servers are the running http servers
	servers []*http.Server
	// serversMux guards servers
	serversMux sync.Mutex
	// logger is the logger for the rpc server
	logger lib.LoggerI
}

// NewServer constructs and returns a new batchdex RPC server
func NewServer(sm *dex.StateMachine, config lib.Config, logger lib.LoggerI) *Server {
	limit := rate.Limit(config.RateLimitPerSec)
	if config.RateLimitPerSec <= 0 {
		limit = rate.Inf
	}
	return &Server{
		sm:      sm,
		config:  config,
		limiter: rate.NewLimiter(limit, config.RateLimitBurst),
		logger:  logger.WithModule("rpc"),
	}
}

// Start() starts the query and admin rpc servers
func (s *Server) Start() lib.ErrorI {
	s.logger.Infof("Starting RPC server at 0.0.0.0:%s", s.config.RPCPort)
	if err := s.startRPC(s.rateLimit(createRouter(s)), s.config.RPCPort); err != nil {
		return err
	}
	s.logger.Infof("Starting Admin RPC server at %s:%s", localhost, s.config.AdminPort)
	return s.startRPC(createAdminRouter(s), s.config.AdminPort)
}

// Stop() gracefully shuts down the rpc servers
func (s *Server) Stop() {
	s.serversMux.Lock()
	defer s.serversMux.Unlock()
	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(s.config.TimeoutS)*time.Second)
	defer cancel()
	for _, srv := range s.servers {
		if err := srv.Shutdown(ctx); err != nil {
			s.logger.Errorf("rpc server shutdown failed with err: %s", err.Error())
		}
	}
	s.servers = nil
}

// startRPC() listens on the port and serves the handler in the background
// connections beyond MaxConnections wait in the accept queue and slow requests time out
func (s *Server) startRPC(handler http.Handler, port string) lib.ErrorI {
	cor := cors.New(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "OPTIONS", "POST"},
	})
	timeout := time.Duration(s.config.TimeoutS) * time.Second
	ln, err := net.Listen("tcp", colon+port)
	if err != nil {
		return lib.NewError(lib.CodeInvalidArgument, lib.RPCModule, err.Error())
	}
	if s.config.MaxConnections > 0 {
		ln = netutil.LimitListener(ln, s.config.MaxConnections)
	}
	srv := &http.Server{
		Handler:           cor.Handler(http.TimeoutHandler(handler, timeout, lib.ErrServerTimeout().Error())),
		ReadHeaderTimeout: timeout,
	}
	s.serversMux.Lock()
	s.servers = append(s.servers, srv)
	s.serversMux.Unlock()
	go func() {
		if e := srv.Serve(ln); e != nil && !errors.Is(e, http.ErrServerClosed) {
			s.logger.Errorf("rpc server on port %s stopped with err: %s", port, e.Error())
		}
	}()
	return nil
}

// rateLimit() rejects requests above the configured rate with 429
func (s *Server) rateLimit(h http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !s.limiter.Allow() {
			write(w, lib.ErrRateLimited(), http.StatusTooManyRequests)
			return
		}
		h.ServeHTTP(w, r)
	})
}

// withState() executes the callback with exclusive access to the state machine
func (s *Server) withState(callback func(sm *dex.StateMachine) lib.ErrorI) lib.ErrorI {
	s.smMux.Lock()
	defer s.smMux.Unlock()
	return callback(s.sm)
}

// logHandler serves as a middleware that logs incoming RPC calls for debugging purposes.
type logHandler struct {
	path string
	h    httprouter.Handle
	log  lib.LoggerI
}

// Handle
func (h logHandler) Handle(resp http.ResponseWriter, req *http.Request, p httprouter.Params) {
	h.log.Debugf("%s %s", req.Method, h.path)
	h.h(resp, req, p)
}

// unmarshal reads request body and unmarshals it into ptr
func unmarshal(w http.ResponseWriter, r *http.Request, ptr interface{}) bool {
	bz, err := io.ReadAll(io.LimitReader(r.Body, int64(units.MB)))
	if err != nil {
		write(w, lib.ErrReadBody(err), http.StatusBadRequest)
		return false
	}
	defer func() { _ = r.Body.Close() }()
	// an empty body queries with the defaults
	if len(bz) == 0 {
		return true
	}
	if err = json.Unmarshal(bz, ptr); err != nil {
		write(w, ErrInvalidParam("body", err), http.StatusBadRequest)
		return false
	}
	return true
}

// write marshaled payload to w
func write(w http.ResponseWriter, payload interface{}, code int) {
	w.Header().Set(ContentType, ApplicationJSON)
	w.WriteHeader(code)
	// Marshal and indent the payload
	bz, _ := json.MarshalIndent(payload, "", "  ")
	_, _ = w.Write(bz)
}

// parseUint64FromString parses a string into a uint64, defaulting to 0
func parseUint64FromString(s string) uint64 {
	i, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0
	}
	return i
}
