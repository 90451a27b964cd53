package relay

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/gobwas/ws"
	"github.com/gobwas/ws/wsutil"
)

type wsMessage struct {
	Feed    string          `json:"feed"`
	Payload json.RawMessage `json:"payload"`
}

// WebSocketHandler upgrades the request and writes every relay event as a
// JSON text frame {"feed": ..., "payload": ...}. The ?feeds filter works as
// for SSEHandler. Client frames are read only to notice the close.
func WebSocketHandler(broker *Broker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		feedFilter := parseFeeds(r.URL.Query().Get("feeds"))

		conn, _, _, err := ws.UpgradeHTTP(r, w)
		if err != nil {
			slog.Debug("relay websocket upgrade failed", "error", err)
			return
		}
		defer conn.Close()

		id, ch := broker.Subscribe()
		defer broker.Unsubscribe(id)
		slog.Debug("relay websocket client connected", "subscriber_id", id)

		gone := make(chan struct{})
		go func() {
			defer close(gone)
			for {
				if _, _, err := wsutil.ReadClientData(conn); err != nil {
					slog.Debug("relay websocket read loop exit", "subscriber_id", id, "error", err)
					return
				}
			}
		}()

		for {
			select {
			case <-gone:
				return
			case <-r.Context().Done():
				return
			case evt, ok := <-ch:
				if !ok {
					return
				}
				if feedFilter != nil && !feedFilter[evt.Feed] {
					continue
				}
				data, err := json.Marshal(wsMessage{Feed: evt.Feed, Payload: payloadJSON(evt.Payload)})
				if err != nil {
					continue
				}
				if err := wsutil.WriteServerText(conn, data); err != nil {
					slog.Debug("relay websocket write failed", "subscriber_id", id, "error", err)
					return
				}
			}
		}
	}
}

// payloadJSON embeds p verbatim when it is valid JSON and as a string otherwise.
func payloadJSON(p string) json.RawMessage {
	if json.Valid([]byte(p)) {
		return json.RawMessage(p)
	}
	quoted, _ := json.Marshal(p)
	return quoted
}
