// Package server exposes HTTP handlers, including WebSocket upgrades, health
// checks, and the built-in browser chat page.
package server

import (
	"fmt"
	"net/http"
)

// WebSocketHandler upgrades GET requests to WebSocket connections and
// registers each connection with hub. The hub starts the connection pumps.
func WebSocketHandler(hub *Hub) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "Method not allowed. WebSocket endpoint only accepts GET requests.", http.StatusMethodNotAllowed)
			return
		}

		conn, err := hub.upgrader.Upgrade(w, r, nil)
		if err != nil {
			hub.log.Warn("WebSocket upgrade failed", "addr", r.RemoteAddr, "error", err)
			return
		}

		client := NewClient(conn, hub, r.RemoteAddr)
		if err := hub.Register(client); err != nil {
			client.log.Warn("Rejecting connection", "error", err)
			_ = conn.Close()
		}
	}
}

// HealthHandler reports that the relay is running and how many connections are live.
func HealthHandler(hub *Hub) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		_, _ = fmt.Fprintf(w, "chatrelay is running! connections=%d", hub.Count())
	}
}

// ChatPageHandler serves a browser client with a join screen and a chat
// screen speaking the relay's event contract.
func ChatPageHandler(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "text/html")
	_, _ = fmt.Fprint(w, chatPage)
}

const chatPage = `<!DOCTYPE html>
<html>
<head>
    <title>chatrelay</title>
    <style>
        body { font-family: Arial, sans-serif; margin: 20px; }
        .screen { display: none; }
        .screen.active { display: block; }
        #messages {
            border: 1px solid #ccc;
            height: 300px;
            padding: 10px;
            overflow-y: scroll;
            margin: 10px 0;
            background-color: #f9f9f9;
        }
        .self { color: blue; text-align: right; }
        .peer { color: green; }
        .presence { color: gray; font-style: italic; text-align: center; }
        input[type="text"] { width: 300px; padding: 5px; margin-right: 10px; }
    </style>
</head>
<body>
    <div id="join-screen" class="screen active">
        <h1>Join chatroom</h1>
        <input type="text" id="username" placeholder="Username">
        <button id="join-user">Join</button>
    </div>
    <div id="chat-screen" class="screen">
        <button id="exit-chat">Exit</button>
        <div id="messages"></div>
        <input type="text" id="message-input" placeholder="Type a message...">
        <button id="send-message">Send</button>
    </div>
    <script>
        const ws = new WebSocket((location.protocol === 'https:' ? 'wss://' : 'ws://') + location.host + '/ws');
        const messages = document.getElementById('messages');
        const input = document.getElementById('message-input');
        let uname = '';

        function emit(event, data) {
            ws.send(JSON.stringify({event: event, data: data}));
        }

        function render(kind, payload) {
            const el = document.createElement('div');
            el.className = kind;
            if (kind === 'presence') {
                el.textContent = String(payload);
            } else {
                el.textContent = (kind === 'self' ? 'You' : payload.username) + ': ' + payload.text;
            }
            messages.appendChild(el);
            messages.scrollTop = messages.scrollHeight - messages.clientHeight;
        }

        document.getElementById('join-user').addEventListener('click', function () {
            const username = document.getElementById('username').value;
            if (username.length === 0) {
                return;
            }
            emit('newuser', username);
            uname = username;
            document.getElementById('join-screen').classList.remove('active');
            document.getElementById('chat-screen').classList.add('active');
        });

        document.getElementById('send-message').addEventListener('click', function () {
            const text = input.value;
            if (text.length === 0) {
                return;
            }
            render('self', {username: uname, text: text});
            emit('chat', {username: uname, text: text});
            input.value = '';
        });

        document.getElementById('exit-chat').addEventListener('click', function () {
            emit('exituser', uname);
            window.location.href = window.location.href;
        });

        ws.onmessage = function (event) {
            const env = JSON.parse(event.data);
            if (env.event === 'update') {
                render('presence', env.data);
            } else if (env.event === 'chat') {
                render('peer', env.data);
            }
        };
    </script>
</body>
</html>`
