package relay

import (
	"encoding/json"
	"io"
	"net/http"
	"sync"
	"time"
)

const maxSnapshotBytes = 8 << 20

// Handler is a stand-in for the hosted edge relay: POST stores the latest
// snapshot, GET serves it back with a relay metadata field attached.
type Handler struct {
	token string
	now   func() time.Time

	mu         sync.RWMutex
	last       json.RawMessage
	receivedAt time.Time
}

func NewHandler(token string) *Handler {
	return &Handler{token: token, now: time.Now}
}

type relayMeta struct {
	ReceivedAt time.Time `json:"receivedAt"`
	AgeSeconds float64   `json:"ageSeconds"`
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		h.store(w, r)
	case http.MethodGet:
		h.serve(w)
	default:
		w.Header().Set("Allow", "GET, POST")
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

func (h *Handler) store(w http.ResponseWriter, r *http.Request) {
	if h.token != "" && r.Header.Get("Authorization") != "Bearer "+h.token {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	body, err := io.ReadAll(io.LimitReader(r.Body, maxSnapshotBytes))
	if err != nil {
		http.Error(w, "failed to read body", http.StatusBadRequest)
		return
	}
	var probe map[string]json.RawMessage
	if err := json.Unmarshal(body, &probe); err != nil {
		http.Error(w, "snapshot must be a JSON object", http.StatusBadRequest)
		return
	}

	h.mu.Lock()
	h.last = body
	h.receivedAt = h.now()
	h.mu.Unlock()
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) serve(w http.ResponseWriter) {
	h.mu.RLock()
	last, receivedAt := h.last, h.receivedAt
	h.mu.RUnlock()

	if last == nil {
		http.Error(w, "no snapshot received yet", http.StatusServiceUnavailable)
		return
	}

	var doc map[string]json.RawMessage
	if err := json.Unmarshal(last, &doc); err != nil {
		http.Error(w, "stored snapshot is corrupt", http.StatusInternalServerError)
		return
	}
	meta, _ := json.Marshal(relayMeta{
		ReceivedAt: receivedAt,
		AgeSeconds: h.now().Sub(receivedAt).Seconds(),
	})
	doc["relay"] = meta

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(doc)
}
