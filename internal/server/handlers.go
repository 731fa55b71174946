package server

import (
	"encoding/json"
	"fmt"
	"net/http"
)

// HealthText is the body served by the health endpoint.
const HealthText = "roomchat server is running!"

// WebSocketHandler upgrades GET requests on /ws and registers the new
// connection with the hub, which starts its pumps.
func WebSocketHandler(h *Hub) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			w.Header().Set("Allow", http.MethodGet)
			http.Error(w, "Method not allowed. WebSocket endpoint only accepts GET requests.", http.StatusMethodNotAllowed)
			return
		}

		conn, err := h.upgrader.Upgrade(w, r, nil)
		if err != nil {
			h.log.Warn().Err(err).Str("addr", r.RemoteAddr).Msg("WebSocket upgrade failed")
			return
		}

		client := NewClient(conn, h, r.RemoteAddr)
		select {
		case h.register <- client:
		case <-h.ctx.Done():
			_ = conn.Close()
		}
	}
}

// HealthHandler responds with a plain text liveness message.
func HealthHandler(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain")
	_, _ = fmt.Fprint(w, HealthText)
}

// RoomsHandler lists the live rooms and their member counts as JSON.
func RoomsHandler(h *Hub) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			w.Header().Set("Allow", http.MethodGet)
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(h.rooms.Rooms()); err != nil {
			h.log.Warn().Err(err).Msg("error writing rooms response")
		}
	}
}

// TestPageHandler serves a minimal browser client for trying the protocol:
// join a room, chat, whisper to a roster entry and recolor your bubble.
func TestPageHandler(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/html")
	_, _ = fmt.Fprint(w, testPage)
}

const testPage = `<!DOCTYPE html>
<html>
<head>
    <title>roomchat test</title>
    <style>
        body { font-family: Arial, sans-serif; margin: 20px; }
        #messages { border: 1px solid #ccc; height: 300px; padding: 10px; overflow-y: scroll; margin: 10px 0; }
        #roster li { cursor: pointer; }
        .bubble { display: inline-block; padding: 4px 8px; border-radius: 8px; margin: 2px 0; }
        .private { font-style: italic; }
        .status { color: gray; }
    </style>
</head>
<body>
    <h1>roomchat test</h1>
    <div>
        <input id="room" placeholder="room" value="lobby">
        <input id="name" placeholder="display name">
        <input id="uid" placeholder="user id">
        <input id="bubble" type="color" value="#e6f7ff">
        <button onclick="join()">Join</button>
        <button onclick="send('leave')">Leave</button>
        <button onclick="recolor()">Update color</button>
    </div>
    <ul id="roster"></ul>
    <div id="messages"></div>
    <input id="text" placeholder="message (click a roster entry to whisper)">
    <button onclick="chat()">Send</button>

    <script>
        const ws = new WebSocket((location.protocol === 'https:' ? 'wss://' : 'ws://') + location.host + '/ws');
        const $ = (id) => document.getElementById(id);
        let seq = 0;
        let whisperTo = '';

        function send(type, payload) {
            ws.send(JSON.stringify({ type: type, request_id: String(++seq), payload: payload }));
        }
        function join() {
            send('join', { room: $('room').value, displayName: $('name').value, userId: $('uid').value, bubbleColor: $('bubble').value });
        }
        function recolor() {
            send('updateProfile', { bubbleColor: $('bubble').value });
        }
        function chat() {
            const text = $('text').value.trim();
            if (!text) return;
            if (whisperTo) {
                send('private', { toUserId: whisperTo, text: text });
                show({ from: { displayName: 'me', bubbleColor: '#eee', textColor: '#222' }, text: text }, 'private');
                whisperTo = '';
            } else {
                send('chat', { text: text });
            }
            $('text').value = '';
        }
        function show(msg, cls) {
            const el = document.createElement('div');
            el.className = 'bubble ' + (cls || '');
            el.style.background = msg.from.bubbleColor;
            el.style.color = msg.from.textColor;
            el.textContent = msg.from.displayName + ': ' + (msg.text || msg.stamp || '');
            $('messages').appendChild(el);
            $('messages').appendChild(document.createElement('br'));
        }
        ws.onmessage = (event) => {
            const frame = JSON.parse(event.data);
            if (frame.type === 'roster') {
                $('roster').innerHTML = '';
                frame.payload.forEach((u) => {
                    const li = document.createElement('li');
                    li.textContent = u.displayName + ' (' + u.userId + ')';
                    li.onclick = () => { whisperTo = u.userId; };
                    $('roster').appendChild(li);
                });
            } else if (frame.type === 'chat') {
                show(frame.payload);
            } else if (frame.type === 'private') {
                show(frame.payload, 'private');
            } else if (frame.type === 'error') {
                const el = document.createElement('div');
                el.className = 'status';
                el.textContent = frame.payload.code + ': ' + frame.payload.message;
                $('messages').appendChild(el);
            }
        };
    </script>
</body>
</html>`
