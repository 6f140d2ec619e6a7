package main

import (
	"bufio"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/gorilla/websocket"

	"github.com/beigebox/beigebox/pkg/bbtypes"
)

// mountOpsEndpoints registers the harness/ensemble/operator "own endpoints
// that return streamed event objects" surface onto mux. Each route speaks
// SSE by default, grounded directly on internal/proxy/handlers.go's
// serveStream (same headers, same bufio.Writer-plus-http.Flusher-per-event
// relay, same "data: [DONE]\n\n" terminator), and upgrades to a WebSocket
// connection instead when the request asks for one, grounded on the
// donor's internal/gateway/ws_control_plane.go upgrader.
func (a *app) mountOpsEndpoints(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/v1/harness", a.handleHarness)
	mux.HandleFunc("POST /api/v1/ensemble", a.handleEnsemble)
	mux.HandleFunc("POST /api/v1/operator", a.handleOperator)
	mux.HandleFunc("GET /api/v1/replay", a.handleReplay)
}

// handleReplay serves the read-only "Replay & Semantic Map" derivations:
// ?conversation_id= reconstructs that conversation's merged message/wire
// timeline; an additional ?neighbors=1 also attaches the semantically
// nearest other conversations. Grounded on proxy.handleSearch's own
// query-string-plus-JSON-body style.
func (a *app) handleReplay(w http.ResponseWriter, r *http.Request) {
	convID := r.URL.Query().Get("conversation_id")
	w.Header().Set("Content-Type", "application/json")
	if convID == "" {
		http.Error(w, "conversation_id is required", http.StatusBadRequest)
		return
	}

	timeline, err := a.replay.Timeline(r.Context(), convID)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	resp := map[string]any{"conversation_id": convID, "timeline": timeline}
	if r.URL.Query().Get("neighbors") != "" {
		neighbors, err := a.replay.SemanticNeighbors(r.Context(), convID, 5)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		resp["neighbors"] = neighbors
	}
	_ = json.NewEncoder(w).Encode(resp)
}

type harnessRequest struct {
	Goal    string   `json:"goal"`
	Targets []string `json:"targets"`
}

func (a *app) handleHarness(w http.ResponseWriter, r *http.Request) {
	var req harnessRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid JSON body", http.StatusBadRequest)
		return
	}
	sink, ok := openSink(w, r)
	if !ok {
		return
	}
	defer sink.finish()

	hrun := a.newHarnessRunner()
	hrun.OnEvent = func(ev bbtypes.HarnessEvent) { sink.send(ev) }

	run, err := hrun.Run(r.Context(), req.Goal, req.Targets)
	if err != nil {
		sink.send(bbtypes.HarnessEvent{Type: bbtypes.HarnessEventError, Detail: map[string]any{"error": err.Error()}})
	}
	if a.store != nil {
		_ = a.store.StoreHarnessRun(r.Context(), run)
	}
}

type ensembleRequest struct {
	Prompt string   `json:"prompt"`
	Models []string `json:"models"`
}

func (a *app) handleEnsemble(w http.ResponseWriter, r *http.Request) {
	var req ensembleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid JSON body", http.StatusBadRequest)
		return
	}
	sink, ok := openSink(w, r)
	if !ok {
		return
	}
	defer sink.finish()

	result, err := a.newEnsembleRunner().Run(r.Context(), req.Prompt, req.Models)
	for _, ev := range result.Events {
		sink.send(ev)
	}
	if err != nil {
		sink.send(bbtypes.HarnessEvent{Type: bbtypes.HarnessEventError, Detail: map[string]any{"error": err.Error()}})
	}
}

type operatorRequest struct {
	Question string `json:"question"`
}

func (a *app) handleOperator(w http.ResponseWriter, r *http.Request) {
	var req operatorRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid JSON body", http.StatusBadRequest)
		return
	}
	sink, ok := openSink(w, r)
	if !ok {
		return
	}
	defer sink.finish()

	answer, err := a.newOperatorAgent().Run(r.Context(), req.Question)
	if err != nil {
		sink.send(bbtypes.HarnessEvent{Type: bbtypes.HarnessEventError, Detail: map[string]any{"error": err.Error()}})
	} else {
		sink.send(bbtypes.HarnessEvent{Type: bbtypes.HarnessEventFinish, Detail: map[string]any{"answer": answer}})
	}
}

// eventSink abstracts the SSE-vs-WebSocket event relay so the three
// handlers above don't need to know which transport a given request
// negotiated.
type eventSink interface {
	send(ev any)
	finish()
}

// openSink negotiates transport per spec.md §6's "additional WebSocket
// upgrade path at the same routes when the request's Upgrade header
// requests it": a request asking for "websocket" gets one, everything
// else gets the SSE relay every other BeigeBox streaming endpoint uses.
func openSink(w http.ResponseWriter, r *http.Request) (eventSink, bool) {
	if strings.EqualFold(r.Header.Get("Upgrade"), "websocket") {
		conn, err := wsUpgrader.Upgrade(w, r, nil)
		if err != nil {
			return nil, false
		}
		return &wsSink{conn: conn}, true
	}
	flusher, bw, ok := sseWriter(w)
	if !ok {
		return nil, false
	}
	return &sseSink{bw: bw, flusher: flusher}, true
}

var wsUpgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin:     func(*http.Request) bool { return true },
}

type wsSink struct {
	conn *websocket.Conn
}

func (s *wsSink) send(ev any) { _ = s.conn.WriteJSON(ev) }

func (s *wsSink) finish() {
	_ = s.conn.WriteJSON(map[string]string{"type": "done"})
	_ = s.conn.Close()
}

type sseSink struct {
	bw      *bufio.Writer
	flusher http.Flusher
}

func (s *sseSink) send(ev any) { writeSSE(s.bw, s.flusher, ev) }

func (s *sseSink) finish() { finishSSE(s.bw, s.flusher) }

func sseWriter(w http.ResponseWriter) (http.Flusher, *bufio.Writer, bool) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return nil, nil, false
	}
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	return flusher, bufio.NewWriter(w), true
}

func writeSSE(bw *bufio.Writer, flusher http.Flusher, ev any) {
	line, err := json.Marshal(ev)
	if err != nil {
		return
	}
	_, _ = bw.WriteString("data: ")
	_, _ = bw.Write(line)
	_, _ = bw.WriteString("\n\n")
	_ = bw.Flush()
	flusher.Flush()
}

func finishSSE(bw *bufio.Writer, flusher http.Flusher) {
	_, _ = bw.WriteString("data: [DONE]\n\n")
	_ = bw.Flush()
	flusher.Flush()
}
