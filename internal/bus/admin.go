package bus

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"tailscale.com/tsweb"
)

// tailHeader is what the debug tail shows for each message.
type tailHeader struct {
	Topic   string `json:"topic"`
	Kind    string `json:"kind"`
	StampNS int64  `json:"stamp_ns"`
	Summary string `json:"summary,omitempty"`
}

func header(m Message) tailHeader {
	h := tailHeader{Topic: m.Topic, Kind: m.Kind.String(), StampNS: m.Stamp.Nanos()}
	if d, ok := m.Payload.(Describer); ok {
		h.Summary = d.Describe()
	}
	return h
}

// AttachAdminRoutes adds a server-sent-events tail of message headers at
// /debug/bus-tail. Pass ?topics=depth,imu to filter.
func (b *Bus) AttachAdminRoutes(mux *http.ServeMux) {
	debug := tsweb.Debugger(mux)
	debug.HandleFunc("bus-tail", "tail published message headers (SSE)", b.handleTail)
}

func (b *Bus) handleTail(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming unsupported", http.StatusInternalServerError)
		return
	}

	var topics []string
	if q := strings.TrimSpace(r.URL.Query().Get("topics")); q != "" {
		for _, t := range strings.Split(q, ",") {
			if t = strings.TrimSpace(t); t != "" {
				topics = append(topics, t)
			}
		}
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no") // Disable buffering for nginx

	id, c := b.Subscribe(topics...)
	defer b.Unsubscribe(id)

	// Send initial ping to establish connection
	w.Write([]byte(": ping\n\n"))
	flusher.Flush()

	for {
		select {
		case m, ok := <-c:
			if !ok {
				return
			}
			payload, err := json.Marshal(header(m))
			if err != nil {
				continue
			}
			if _, err := fmt.Fprintf(w, "data: %s\n\n", payload); err != nil {
				return
			}
			flusher.Flush()
		case <-r.Context().Done():
			return
		}
	}
}
