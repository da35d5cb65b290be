package voter

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/iotaledger/fpc/packages/vote"
)

// wireEvent is the JSON shape streamed to websocket subscribers. It mirrors
// statusResponse's vocabulary rather than exposing the Event interface's Go
// type names directly.
type wireEvent struct {
	Kind       string `json:"kind"`
	ID         string `json:"id,omitempty"`
	ObjectType string `json:"objectType,omitempty"`
	Opinion    string `json:"opinion,omitempty"`
	Round      uint64 `json:"round,omitempty"`
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// websocketHub fans out every voter event to every currently connected
// websocket client. A slow client is dropped rather than allowed to back
// up the broadcast for everyone else.
type websocketHub struct {
	mu      sync.Mutex
	clients map[*websocket.Conn]chan wireEvent
}

func newWebsocketHub() *websocketHub {
	return &websocketHub{clients: make(map[*websocket.Conn]chan wireEvent)}
}

func (h *websocketHub) run(ctx context.Context) {
	mux := http.NewServeMux()
	mux.HandleFunc("/feed", h.handle)

	srv := &http.Server{Addr: websocketBindAddress(), Handler: mux}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	log.Infof("voter: websocket event feed listening on %s", srv.Addr)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Errorf("voter: websocket feed stopped: %s", err)
	}
}

func (h *websocketHub) handle(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Debugf("voter: websocket upgrade failed: %s", err)
		return
	}

	out := make(chan wireEvent, 64)
	h.mu.Lock()
	h.clients[conn] = out
	h.mu.Unlock()

	defer func() {
		h.mu.Lock()
		delete(h.clients, conn)
		h.mu.Unlock()
		conn.Close()
	}()

	for ev := range out {
		if err := conn.WriteJSON(ev); err != nil {
			return
		}
	}
}

// broadcast converts ev to the wire shape and fans it out to every
// connected client, dropping it for clients whose queue is full.
func (h *websocketHub) broadcast(ev vote.Event) {
	wire := toWireEvent(ev)

	h.mu.Lock()
	defer h.mu.Unlock()
	for conn, out := range h.clients {
		select {
		case out <- wire:
		default:
			delete(h.clients, conn)
			close(out)
			conn.Close()
		}
	}
}

func toWireEvent(ev vote.Event) wireEvent {
	switch t := ev.(type) {
	case vote.RoundExecutedEvent:
		return wireEvent{Kind: "RoundExecuted", Round: t.Stats.Round}
	case vote.FinalizedEvent:
		return wireEvent{Kind: "Finalized", ID: t.ID.String(), ObjectType: t.ObjectType.String(), Opinion: t.Opinion.String()}
	case vote.FailedEvent:
		return wireEvent{Kind: "Failed", ID: t.ID.String(), ObjectType: t.ObjectType.String(), Opinion: t.LastOpinion.String()}
	default:
		return wireEvent{Kind: "Unknown"}
	}
}
