package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/sakkshm/aether/pkg/bus"
	"github.com/sakkshm/aether/pkg/memory"
)

const replyTimeout = 15 * time.Second

// wireRequest is the JSON envelope clients send over the websocket.
type wireRequest struct {
	RequestID    string `json:"requestId,omitempty"`
	Action       string `json:"action"`
	Prompt       string `json:"prompt,omitempty"`
	Origin       string `json:"origin,omitempty"`
	Query        string `json:"query,omitempty"`
	N            int    `json:"n,omitempty"`
	K            int    `json:"k,omitempty"`
	RefID        string `json:"id,omitempty"`
	RefTimestamp string `json:"timestamp,omitempty"`
}

type wireResponse struct {
	RequestID string `json:"requestId,omitempty"`
	Action    string `json:"action"`
	Status    string `json:"status"`
	Payload   any    `json:"payload,omitempty"`
	Message   string `json:"message,omitempty"`
}

// Server exposes the memory service over a websocket endpoint at /ws.
// Requests flow through the dispatcher so transports and execution stay
// decoupled.
type Server struct {
	svc        *memory.Service
	dispatcher *bus.Dispatcher
	upgrader   websocket.Upgrader
	log        *zap.SugaredLogger
}

func NewServer(svc *memory.Service, dispatcher *bus.Dispatcher, log *zap.SugaredLogger) *Server {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &Server{
		svc:        svc,
		dispatcher: dispatcher,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			// Local gateway; browser extensions connect from arbitrary origins.
			CheckOrigin: func(*http.Request) bool { return true },
		},
		log: log,
	}
}

// Run serves until ctx is cancelled. It also starts the pump that executes
// dispatched requests against the service.
func (s *Server) Run(ctx context.Context, host string, port int) error {
	go s.pump(ctx)

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.handleWS)
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	addr := net.JoinHostPort(host, fmt.Sprintf("%d", port))
	srv := &http.Server{Addr: addr, Handler: mux}

	errCh := make(chan error, 1)
	go func() {
		s.log.Infow("gateway listening", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}

// pump consumes dispatched requests and runs each against the service in
// its own goroutine, so one slow vector query does not stall the queue.
func (s *Server) pump(ctx context.Context) {
	for {
		req, ok := s.dispatcher.Consume(ctx)
		if !ok {
			return
		}
		go s.execute(ctx, req)
	}
}

func (s *Server) execute(ctx context.Context, req bus.Request) {
	var resp bus.Response
	switch req.Action {
	case bus.ActionSavePrompt:
		result := s.svc.SavePrompt(ctx, req.Prompt, req.Origin)
		resp = bus.Response{Status: result.Status, Message: result.Message, Payload: result}
	case bus.ActionGetLastPrompts:
		prompts, err := s.svc.LastPrompts(ctx, req.N)
		if err != nil {
			resp = bus.Response{Status: memory.StatusError, Message: err.Error()}
			break
		}
		resp = bus.Response{Status: memory.StatusSuccess, Payload: prompts}
	case bus.ActionGetTopK:
		results, mode, err := s.svc.TopKMemories(ctx, req.Query, req.K)
		if err != nil {
			resp = bus.Response{Status: memory.StatusError, Message: err.Error()}
			break
		}
		resp = bus.Response{Status: memory.StatusSuccess, Payload: map[string]any{
			"memories": results,
			"mode":     mode,
		}}
	case bus.ActionDeleteMemory:
		err := s.svc.DeleteMemory(ctx, memory.MemoryRef{ID: req.RefID, Timestamp: req.RefTimestamp})
		if err != nil {
			resp = bus.Response{Status: memory.StatusError, Message: err.Error()}
			break
		}
		resp = bus.Response{Status: memory.StatusSuccess}
	default:
		resp = bus.Response{Status: memory.StatusError, Message: "unknown action: " + req.Action}
	}

	if req.Reply != nil {
		select {
		case req.Reply <- resp:
		default:
		}
	}
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warnw("websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()
	s.log.Infow("client connected", "remote", r.RemoteAddr)

	var writeMu sync.Mutex
	send := func(resp wireResponse) {
		writeMu.Lock()
		defer writeMu.Unlock()
		if err := conn.WriteJSON(resp); err != nil {
			s.log.Debugw("write response failed", "error", err)
		}
	}

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.log.Warnw("client read failed", "error", err)
			}
			return
		}

		var wreq wireRequest
		if err := json.Unmarshal(data, &wreq); err != nil {
			send(wireResponse{Status: memory.StatusError, Message: "malformed request"})
			continue
		}

		go s.roundTrip(r.Context(), wreq, send)
	}
}

func (s *Server) roundTrip(ctx context.Context, wreq wireRequest, send func(wireResponse)) {
	reply := make(chan bus.Response, 1)
	ok := s.dispatcher.Publish(bus.Request{
		Action:       wreq.Action,
		Prompt:       wreq.Prompt,
		Origin:       wreq.Origin,
		Query:        wreq.Query,
		N:            wreq.N,
		K:            wreq.K,
		RefID:        wreq.RefID,
		RefTimestamp: wreq.RefTimestamp,
		Reply:        reply,
	})
	if !ok {
		send(wireResponse{RequestID: wreq.RequestID, Action: wreq.Action, Status: memory.StatusError, Message: "server busy"})
		return
	}

	timer := time.NewTimer(replyTimeout)
	defer timer.Stop()
	select {
	case resp := <-reply:
		send(wireResponse{
			RequestID: wreq.RequestID,
			Action:    wreq.Action,
			Status:    resp.Status,
			Payload:   resp.Payload,
			Message:   resp.Message,
		})
	case <-timer.C:
		send(wireResponse{RequestID: wreq.RequestID, Action: wreq.Action, Status: memory.StatusError, Message: "request timed out"})
	case <-ctx.Done():
	}
}
