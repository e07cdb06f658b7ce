// Package ggu implements the decision service's policy-ingestion API: an
// HTTP/JSON front door that accepts GGU_POLICY_ADD-shaped requests and
// routes each one, via the same RSS redirection table GK packets use, onto
// the owning shard's mailbox. The wire transport is not specified by the
// source (struct ggu_policy is filled in from a UDP notification in the
// real system, out of this module's scope per SPEC_FULL.md §6); HTTP/JSON
// stands in for it, grounded on the teacher's own explorer HTTP API.
package ggu

import (
	"encoding/json"
	"net"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"

	"gatekeeper/core/flow"
	"gatekeeper/core/gk"
	"gatekeeper/core/metrics"
)

// Router selects the shard mailbox responsible for a flow and the mailbox
// type itself are supplied by the caller, keeping this package decoupled
// from gk's Instance wiring (cmd/gatekeeper owns the shard pool).
type Router interface {
	ShardFor(k flow.Key) int
}

// Sender is implemented by each shard's policy mailbox; Server only needs
// to be able to hand off a Policy, not manage the mailbox's lifecycle.
type Sender interface {
	Send(p *gk.Policy) error
	Alloc() *gk.Policy
	Free(p *gk.Policy)
}

// Server exposes the policy-ingestion and stats HTTP API.
type Server struct {
	router     *mux.Router
	httpServer *http.Server
	shardRoute Router
	shards     []Sender
	metrics    *metrics.Registry
	log        *logrus.Entry
}

// policyRequest is the wire shape of a POLICY_ADD command.
type policyRequest struct {
	SrcIP   string `json:"src_ip"`
	DstIP   string `json:"dst_ip"`
	Proto   uint8  `json:"proto"`
	State   string `json:"state"`
	Granted struct {
		CapExpireSec  int `json:"cap_expire_sec"`
		TxRateKBSec   int `json:"tx_rate_kb_sec"`
		NextRenewalMs int `json:"next_renewal_ms"`
		RenewalStepMs int `json:"renewal_step_ms"`
	} `json:"granted,omitempty"`
	Declined struct {
		ExpireSec int `json:"expire_sec"`
	} `json:"declined,omitempty"`
}

// NewServer builds a Server listening on addr, routing policies via
// shardRoute onto shards (shards[i] must be the mailbox for shard i). reg
// backs the GET /v1/stats endpoint and the mailbox-full counter; it may be
// nil in tests that don't exercise either.
func NewServer(addr string, shardRoute Router, shards []Sender, reg *metrics.Registry, log *logrus.Entry) *Server {
	s := &Server{
		router:     mux.NewRouter(),
		shardRoute: shardRoute,
		shards:     shards,
		metrics:    reg,
		log:        log,
	}
	s.routes()
	s.httpServer = &http.Server{Addr: addr, Handler: s.router}
	return s
}

// Start runs the HTTP server, blocking until it is shut down.
func (s *Server) Start() error {
	return s.httpServer.ListenAndServe()
}

// Close gracefully stops the HTTP server.
func (s *Server) Close() error {
	return s.httpServer.Close()
}

func (s *Server) routes() {
	s.router.Use(s.loggingMiddleware)
	s.router.HandleFunc("/v1/policy", s.handlePolicyAdd).Methods("POST")
	s.router.HandleFunc("/v1/stats", s.handleStats).Methods("GET")
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.log.WithFields(logrus.Fields{"method": r.Method, "path": r.URL.Path}).Debug("ggu: request")
		next.ServeHTTP(w, r)
	})
}

func (s *Server) handlePolicyAdd(w http.ResponseWriter, r *http.Request) {
	var req policyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "bad request body", http.StatusBadRequest)
		return
	}

	srcIP := net.ParseIP(req.SrcIP)
	dstIP := net.ParseIP(req.DstIP)
	if srcIP == nil || dstIP == nil {
		http.Error(w, "invalid src_ip/dst_ip", http.StatusBadRequest)
		return
	}
	key := flow.KeyFromNetIP(srcIP, dstIP, req.Proto)

	var state gk.State
	switch req.State {
	case "granted":
		state = gk.StateGranted
	case "declined":
		state = gk.StateDeclined
	default:
		http.Error(w, "state must be granted or declined", http.StatusBadRequest)
		return
	}

	shardIdx := s.shardRoute.ShardFor(key)
	if shardIdx < 0 || shardIdx >= len(s.shards) {
		http.Error(w, "no shard available for flow", http.StatusInternalServerError)
		return
	}
	shard := s.shards[shardIdx]

	p := shard.Alloc()
	*p = gk.Policy{
		Flow:  key,
		State: state,
		Granted: gk.GrantedParams{
			CapExpireSec:  req.Granted.CapExpireSec,
			TxRateKBSec:   req.Granted.TxRateKBSec,
			NextRenewalMs: req.Granted.NextRenewalMs,
			RenewalStepMs: req.Granted.RenewalStepMs,
		},
		Declined: gk.DeclinedParams{ExpireSec: req.Declined.ExpireSec},
	}
	if err := shard.Send(p); err != nil {
		shard.Free(p)
		if s.metrics != nil {
			s.metrics.MailboxFull.Inc()
		}
		s.log.WithError(err).Warn("ggu: mailbox full, dropping policy command")
		http.Error(w, "shard mailbox full", http.StatusServiceUnavailable)
		return
	}

	w.WriteHeader(http.StatusAccepted)
	writeJSON(w, map[string]string{"status": "accepted"})
}

// handleStats reports the per-shard mailbox depth/capacity plus the
// process-wide packet and cache counters, a JSON complement to /metrics for
// operators who want a quick snapshot without a Prometheus scrape.
func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	type shardStats struct {
		Shard      int `json:"shard"`
		MailboxLen int `json:"mailbox_len"`
		MailboxCap int `json:"mailbox_cap"`
	}
	shards := make([]shardStats, len(s.shards))
	for i, sh := range s.shards {
		depth, ok := sh.(interface{ Len() int })
		capy, okc := sh.(interface{ Cap() int })
		st := shardStats{Shard: i}
		if ok {
			st.MailboxLen = depth.Len()
		}
		if okc {
			st.MailboxCap = capy.Cap()
		}
		shards[i] = st
	}

	resp := map[string]interface{}{"shards": shards}
	if s.metrics != nil {
		resp["packets_granted_total"] = metrics.Value(s.metrics.PacketsGranted)
		resp["packets_dropped_total"] = metrics.Value(s.metrics.PacketsDropped)
		resp["packets_requested_total"] = metrics.Value(s.metrics.PacketsRequested)
		resp["flow_table_full_total"] = metrics.Value(s.metrics.TableFull)
		resp["mailbox_full_total"] = metrics.Value(s.metrics.MailboxFull)
		resp["cache_hit_total"] = metrics.Value(s.metrics.CacheHit)
		resp["cache_miss_total"] = metrics.Value(s.metrics.CacheMiss)
		resp["flow_table_occupancy"] = metrics.Value(s.metrics.TableOccupancy)
		resp["cache_occupancy"] = metrics.Value(s.metrics.CacheOccupancy)
	}
	writeJSON(w, resp)
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}
