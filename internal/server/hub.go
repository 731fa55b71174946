package server

import (
	"context"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/Tyrowin/roomchat/internal/config"
	"github.com/Tyrowin/roomchat/internal/protocol"
	"github.com/Tyrowin/roomchat/internal/room"
)

// Hub manages all WebSocket client connections and the per-room broadcast
// groups. Every inbound frame is handled by the Run loop, so room state is
// mutated by one goroutine at a time.
type Hub struct {
	clients    map[string]*Client
	groups     map[string]map[string]*Client
	rooms      *room.Manager
	inbound    chan inbound
	register   chan *Client
	unregister chan *Client
	mutex      sync.RWMutex
	wg         sync.WaitGroup
	ctx        context.Context
	cancel     context.CancelFunc
	done       chan struct{}
	cfg        config.Config
	upgrader   websocket.Upgrader
	log        zerolog.Logger
}

var _ room.Broadcaster = (*Hub)(nil)

// NewHub creates a Hub and its room manager from cfg. The returned Hub is
// ready once Run is started.
func NewHub(cfg config.Config, logger zerolog.Logger) *Hub {
	cfg = config.Sanitize(cfg)
	ctx, cancel := context.WithCancel(context.Background())
	h := &Hub{
		clients:    make(map[string]*Client),
		groups:     make(map[string]map[string]*Client),
		inbound:    make(chan inbound),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		ctx:        ctx,
		cancel:     cancel,
		done:       make(chan struct{}),
		cfg:        cfg,
		log:        logger,
	}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     newOriginPolicy(cfg.AllowedOrigins, logger).check,
	}
	h.rooms = room.NewManager(h,
		room.WithDuplicatePolicy(cfg.DuplicatePolicy),
		room.WithRoomEviction(cfg.EvictEmptyRooms),
	)
	return h
}

// Rooms returns the room manager driven by this hub.
func (h *Hub) Rooms() *room.Manager {
	return h.rooms
}

// ClientCount returns the number of registered connections.
func (h *Hub) ClientCount() int {
	h.mutex.RLock()
	defer h.mutex.RUnlock()
	return len(h.clients)
}

// Run starts the hub's event loop, handling client registration,
// unregistration and inbound frames until Shutdown is called. It should be
// run in its own goroutine.
func (h *Hub) Run() {
	defer close(h.done)

	for {
		select {
		case <-h.ctx.Done():
			h.shutdownClients()
			return

		case client := <-h.register:
			if client == nil {
				h.log.Warn().Msg("received nil client registration; skipping")
				continue
			}
			h.attach(client)

		case client := <-h.unregister:
			h.detach(client)

		case in := <-h.inbound:
			h.dispatch(in)
		}
	}
}

func (h *Hub) attach(client *Client) {
	h.mutex.Lock()
	client.closed = false
	h.clients[client.id] = client
	clientCount := len(h.clients)
	h.mutex.Unlock()
	client.log.Info().Int("clients", clientCount).Msg("client registered")

	if client.conn == nil {
		return
	}
	h.wg.Add(2)
	go func() {
		defer h.wg.Done()
		client.writePump()
	}()
	go func() {
		defer h.wg.Done()
		client.readPump()
	}()
}

// detach drops a closed connection from the hub and every group, then tells
// the room manager the connection is gone.
func (h *Hub) detach(client *Client) {
	h.mutex.Lock()
	if _, ok := h.clients[client.id]; ok {
		h.forget(client)
		clientCount := len(h.clients)
		h.mutex.Unlock()
		close(client.send)
		client.log.Info().Int("clients", clientCount).Msg("client unregistered")
	} else {
		h.mutex.Unlock()
	}

	if res, err := h.rooms.Disconnect(client.id); err == nil {
		client.log.Debug().Int("delivered", res.Delivered).Msg("session released on disconnect")
	}
}

// forget removes a client from the client map and all groups. The caller
// holds the write lock and must close client.send after releasing it.
func (h *Hub) forget(client *Client) {
	delete(h.clients, client.id)
	for name, members := range h.groups {
		delete(members, client.id)
		if len(members) == 0 {
			delete(h.groups, name)
		}
	}
	client.closed = true
}

// dispatch applies one decoded request to the room manager and answers the
// sender with an ack or error frame.
func (h *Hub) dispatch(in inbound) {
	id := in.client.id
	event := in.frame.Type

	var (
		res room.Result
		err error
	)
	switch req := in.request.(type) {
	case protocol.JoinRequest:
		res, err = h.rooms.Join(id, req.Params())
	case protocol.ChatRequest:
		res, err = h.rooms.Chat(id, req.Content())
	case protocol.PrivateRequest:
		res, err = h.rooms.Private(id, req.ToUserID, req.Content())
	case protocol.UpdateProfileRequest:
		res, err = h.rooms.UpdateProfile(id, req.Update())
	case protocol.LeaveRequest:
		res, err = h.rooms.Leave(id)
	default:
		err = &protocol.Error{Event: event, Code: protocol.CodeInvalidArgument, Message: "unsupported request"}
	}

	if err != nil {
		in.client.log.Info().Err(err).Str("event", event).Msg("request rejected")
		h.reject(in.client, in.frame.RequestID, event, err)
		return
	}

	in.client.log.Debug().Str("event", event).Int("delivered", res.Delivered).Msg("request handled")
	h.acknowledge(in.client, in.frame.RequestID, event, res.Delivered)
}

func (h *Hub) acknowledge(client *Client, requestID, event string, delivered int) {
	if !h.cfg.AckEvents {
		return
	}
	data, err := protocol.Ack(requestID, event, delivered)
	if err != nil {
		client.log.Error().Err(err).Msg("encode ack")
		return
	}
	h.reply(client, data)
}

func (h *Hub) reject(client *Client, requestID, event string, cause error) {
	if !h.cfg.AckEvents {
		return
	}
	data, err := protocol.Reject(requestID, event, protocol.CodeFor(cause), cause.Error())
	if err != nil {
		client.log.Error().Err(err).Msg("encode error frame")
		return
	}
	h.reply(client, data)
}

func (h *Hub) reply(client *Client, data []byte) {
	if !h.safeSend(client, data) {
		h.removeFailedClients([]*Client{client})
	}
}

// Subscribe adds a connection to a room's broadcast group.
func (h *Hub) Subscribe(connID, roomName string) {
	h.mutex.Lock()
	defer h.mutex.Unlock()

	client, ok := h.clients[connID]
	if !ok {
		return
	}
	members, ok := h.groups[roomName]
	if !ok {
		members = make(map[string]*Client)
		h.groups[roomName] = members
	}
	members[connID] = client
}

// Unsubscribe removes a connection from a room's broadcast group.
func (h *Hub) Unsubscribe(connID, roomName string) {
	h.mutex.Lock()
	defer h.mutex.Unlock()

	members, ok := h.groups[roomName]
	if !ok {
		return
	}
	delete(members, connID)
	if len(members) == 0 {
		delete(h.groups, roomName)
	}
}

// ToRoom sends an event to every member of a room's group and returns how
// many connections accepted it.
func (h *Hub) ToRoom(roomName, event string, payload any) int {
	data, err := protocol.Encode(event, "", payload)
	if err != nil {
		h.log.Error().Err(err).Str("room", roomName).Msg("encode broadcast")
		return 0
	}

	targets := h.groupSnapshot(roomName)
	delivered, failed := h.broadcastToClients(targets, data)
	h.removeFailedClients(failed)

	h.log.Debug().Str("room", roomName).Str("event", event).Int("delivered", delivered).Msg("broadcast")
	return delivered
}

// ToConn sends an event to one connection.
func (h *Hub) ToConn(connID, event string, payload any) bool {
	data, err := protocol.Encode(event, "", payload)
	if err != nil {
		h.log.Error().Err(err).Str("conn", connID).Msg("encode direct message")
		return false
	}

	h.mutex.RLock()
	client, ok := h.clients[connID]
	h.mutex.RUnlock()
	if !ok {
		return false
	}
	if !h.safeSend(client, data) {
		h.removeFailedClients([]*Client{client})
		return false
	}
	return true
}

// groupSnapshot returns a thread-safe snapshot of a room's members.
func (h *Hub) groupSnapshot(roomName string) []*Client {
	h.mutex.RLock()
	defer h.mutex.RUnlock()

	members := h.groups[roomName]
	clients := make([]*Client, 0, len(members))
	for _, client := range members {
		clients = append(clients, client)
	}
	return clients
}

// broadcastToClients queues data on every client and returns the clients
// whose buffers were full.
func (h *Hub) broadcastToClients(clients []*Client, data []byte) (int, []*Client) {
	var failed []*Client
	delivered := 0
	for _, client := range clients {
		if h.safeSend(client, data) {
			delivered++
			continue
		}
		failed = append(failed, client)
	}
	return delivered, failed
}

func (h *Hub) safeSend(client *Client, message []byte) bool {
	defer func() {
		if r := recover(); r != nil {
			h.log.Error().Interface("panic", r).Msg("recovered from panic in safeSend")
		}
	}()

	// Hold the read lock for the whole send so the channel cannot be closed
	// underneath us.
	h.mutex.RLock()
	defer h.mutex.RUnlock()

	if _, exists := h.clients[client.id]; !exists || client.closed {
		return false
	}

	select {
	case client.send <- message:
		return true
	default:
		return false
	}
}

// removeFailedClients drops slow consumers. Closing the send channel makes
// the write pump close the connection, which in turn unregisters the client
// and releases its session.
func (h *Hub) removeFailedClients(clientsToRemove []*Client) {
	if len(clientsToRemove) == 0 {
		return
	}

	h.mutex.Lock()
	var channelsToClose []chan []byte
	for _, client := range clientsToRemove {
		if _, exists := h.clients[client.id]; exists {
			h.forget(client)
			channelsToClose = append(channelsToClose, client.send)
			client.log.Warn().Msg("client removed due to full send buffer")
		}
	}
	h.mutex.Unlock()

	for _, ch := range channelsToClose {
		close(ch)
	}
}

// shutdownClients closes every live connection and its send channel.
func (h *Hub) shutdownClients() {
	h.log.Info().Msg("shutting down all client connections")

	h.mutex.Lock()
	clients := make([]*Client, 0, len(h.clients))
	for _, client := range h.clients {
		clients = append(clients, client)
		h.forget(client)
	}
	h.mutex.Unlock()

	for _, client := range clients {
		close(client.send)
		if client.conn != nil {
			if err := client.conn.Close(); err != nil && !isExpectedCloseError(err) {
				client.log.Warn().Err(err).Msg("error closing client connection")
			}
		}
	}

	h.log.Info().Int("clients", len(clients)).Msg("closed client connections")
}

// Shutdown stops the event loop and waits for all client goroutines to
// finish, or for the timeout to pass.
func (h *Hub) Shutdown(timeout time.Duration) error {
	h.log.Info().Msg("initiating hub shutdown")

	h.cancel()
	<-h.done

	done := make(chan struct{})
	go func() {
		h.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		h.log.Info().Msg("hub shutdown completed")
		return nil
	case <-time.After(timeout):
		h.log.Warn().Msg("hub shutdown timeout reached, some goroutines may still be running")
		return context.DeadlineExceeded
	}
}
