package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/nexusfab/fabric/internal/logger"
	"github.com/nexusfab/fabric/internal/registry"
	"github.com/nexusfab/fabric/internal/resilience"
	"github.com/nexusfab/fabric/internal/util"
)

type requestIDKey struct{}

// Server is the gateway's HTTP surface over one Fabric.
type Server struct {
	fabric *registry.Fabric
	log    *logger.StyledLogger
	mux    *http.ServeMux
	http   *http.Server
}

func NewServer(addr string, fabric *registry.Fabric, log *logger.StyledLogger) *Server {
	s := &Server{fabric: fabric, log: log, mux: http.NewServeMux()}

	routes := NewRouteRegistry(log)
	routes.Register("/healthz", http.MethodGet, "liveness probe", s.handleHealthz)
	routes.Register("/v1/call", http.MethodPost, "invoke one service method", s.handleCall)
	routes.Register("/v1/workflow", http.MethodPost, "run a multi-service workflow", s.handleWorkflow)
	routes.Register("/v1/metrics/json", http.MethodGet, "fabric metrics as JSON", s.handleMetricsJSON)
	routes.WireUp(s.mux)
	s.RegisterMetrics()

	s.http = &http.Server{Addr: addr, Handler: s.withRequestID(s.mux)}
	return s
}

// withRequestID tags every request with an id (reusing the request and
// response for the same value) and logs its method, path and latency.
func (s *Server) withRequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		requestID := r.Header.Get("X-Request-ID")
		if requestID == "" {
			requestID = util.GenerateRequestID()
		}
		w.Header().Set("X-Request-ID", requestID)
		ctx := context.WithValue(r.Context(), requestIDKey{}, requestID)

		next.ServeHTTP(w, r.WithContext(ctx))

		if s.log != nil {
			s.log.Info("request handled",
				"request_id", requestID,
				"method", r.Method,
				"path", r.URL.Path,
				"duration", time.Since(start),
			)
		}
	})
}

func (s *Server) ListenAndServe() error { return s.http.ListenAndServe() }

func (s *Server) Shutdown(ctx context.Context) error { return s.http.Shutdown(ctx) }

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

type callRequest struct {
	Payload map[string]interface{} `json:"payload"`
	Service string                  `json:"service"`
	Method  string                  `json:"method"`
}

type errorEnvelope struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (s *Server) handleCall(w http.ResponseWriter, r *http.Request) {
	var req callRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, resilience.InvalidArgument, err.Error())
		return
	}

	result, err := s.fabric.Call(r.Context(), req.Service, req.Method, req.Payload)
	if err != nil {
		writeResilienceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]interface{}{"result": result})
}

// writeResilienceError maps a pipeline error to an HTTP status and a stable
// error envelope, per the spec's error-handling design. PoolExhaustedError
// and ApplicationError share a FailureCode with other error types that map
// to a different status, so those two are matched by concrete type before
// falling back to the generic FailureCode switch.
func writeResilienceError(w http.ResponseWriter, err error) {
	var poolExhausted *resilience.PoolExhaustedError
	if errors.As(err, &poolExhausted) {
		writeError(w, http.StatusServiceUnavailable, resilience.CodeOf(err), err.Error())
		return
	}

	var appErr *resilience.ApplicationError
	if errors.As(err, &appErr) {
		writeError(w, http.StatusInternalServerError, resilience.CodeOf(err), appErr.Err.Error())
		return
	}

	code := resilience.CodeOf(err)
	status := httpStatusForCode(code)
	writeError(w, status, code, err.Error())
}

func httpStatusForCode(code resilience.FailureCode) int {
	switch code {
	case resilience.Unavailable:
		return http.StatusServiceUnavailable
	case resilience.DeadlineExceeded:
		return http.StatusGatewayTimeout
	case resilience.ResourceExhausted:
		return http.StatusTooManyRequests
	case resilience.InvalidArgument:
		return http.StatusBadRequest
	case resilience.NotFound:
		return http.StatusNotFound
	case resilience.PermissionDenied:
		return http.StatusForbidden
	case resilience.FailedPrecondition:
		return http.StatusPreconditionFailed
	case resilience.Cancelled:
		return 499
	default:
		return http.StatusInternalServerError
	}
}

func writeError(w http.ResponseWriter, status int, code resilience.FailureCode, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(errorEnvelope{Code: code.String(), Message: message})
}

// workflowStep is one call in an ordered workflow.
type workflowStep struct {
	Payload map[string]interface{} `json:"payload"`
	Service string                  `json:"service"`
	Method  string                  `json:"method"`
}

type workflowRequest struct {
	Type  string         `json:"type"` // "pipeline", "parallel", or "swarm"
	Steps []workflowStep `json:"steps"`
}

type workflowEvent struct {
	Result interface{} `json:"result,omitempty"`
	Error  string      `json:"error,omitempty"`
	Step   int         `json:"step"`
	Service string     `json:"service"`
	Method  string     `json:"method"`
}

// handleWorkflow streams one Server-Sent Event per completed step. "pipeline"
// runs steps in order; "parallel"/"swarm" run every step concurrently.
func (s *Server) handleWorkflow(w http.ResponseWriter, r *http.Request) {
	var req workflowRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, resilience.InvalidArgument, err.Error())
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, resilience.Internal, "streaming unsupported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	events := make(chan workflowEvent, len(req.Steps))

	switch req.Type {
	case "parallel", "swarm":
		var wg sync.WaitGroup
		for i, step := range req.Steps {
			wg.Add(1)
			go func(i int, step workflowStep) {
				defer wg.Done()
				events <- s.runStep(r.Context(), i, step)
			}(i, step)
		}
		go func() { wg.Wait(); close(events) }()
	default: // "pipeline"
		go func() {
			defer close(events)
			for i, step := range req.Steps {
				ev := s.runStep(r.Context(), i, step)
				events <- ev
				if ev.Error != "" {
					return
				}
			}
		}()
	}

	for ev := range events {
		data, _ := json.Marshal(ev)
		fmt.Fprintf(w, "data: %s\n\n", data)
		flusher.Flush()
	}
}

func (s *Server) runStep(ctx context.Context, i int, step workflowStep) workflowEvent {
	result, err := s.fabric.Call(ctx, step.Service, step.Method, step.Payload)
	ev := workflowEvent{Step: i, Service: step.Service, Method: step.Method}
	if err != nil {
		ev.Error = err.Error()
		return ev
	}
	ev.Result = result
	return ev
}

func (s *Server) handleMetricsJSON(w http.ResponseWriter, r *http.Request) {
	out := make(map[string]interface{}, len(s.fabric.Services))
	for name, svc := range s.fabric.Services {
		success, failure, rejected := svc.Breaker.Totals()
		live, idle := 0, 0
		if svc.Pool != nil {
			live, idle = svc.Pool.Stats()
		}
		out[name] = map[string]interface{}{
			"breaker_state":    svc.Breaker.State().String(),
			"success_total":    success,
			"failure_total":    failure,
			"rejected_total":   rejected,
			"pool_live":        live,
			"pool_idle":        idle,
		}
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(out)
}
