// Package room owns the in-memory room registry and session table of the
// chat relay and fans roster, chat and private events out through a
// Broadcaster supplied by the transport.
package room

import (
	"fmt"
	"sort"
	"sync"
)

// Event names emitted through the Broadcaster.
const (
	EventRoster  = "roster"
	EventChat    = "chat"
	EventPrivate = "private"
)

// Broadcaster is the transport collaborator. Delivery is fire-and-forget;
// the returned counts only report how many connections were handed the event.
type Broadcaster interface {
	// Subscribe adds a connection to a room's broadcast group.
	Subscribe(connID, room string)
	// Unsubscribe removes a connection from a room's broadcast group.
	Unsubscribe(connID, room string)
	// ToRoom sends an event to every connection in the room's group.
	ToRoom(room, event string, payload any) int
	// ToConn sends an event to a single connection.
	ToConn(connID, event string, payload any) bool
}

// Session binds one connection to the (room, userId) it joined as.
type Session struct {
	ConnID string
	Room   string
	UserID string
}

func (s Session) binding() binding {
	return binding{room: s.Room, userID: s.UserID}
}

type binding struct {
	room   string
	userID string
}

// Result reports the observable outcome of an operation.
type Result struct {
	// Delivered counts the connections the resulting events were handed to.
	Delivered int
}

// Summary describes a live room.
type Summary struct {
	Name    string `json:"name"`
	Members int    `json:"members"`
}

type chatRoom struct {
	name   string
	roster *roster
}

// Option configures a Manager.
type Option func(*Manager)

// WithDuplicatePolicy sets how duplicate (room, userId) joins are handled.
func WithDuplicatePolicy(p DuplicatePolicy) Option {
	return func(m *Manager) { m.duplicates = p }
}

// WithRoomEviction controls whether a room is dropped from the registry once
// its roster is empty. Enabled by default.
func WithRoomEviction(enabled bool) Option {
	return func(m *Manager) { m.evictEmpty = enabled }
}

// Manager is the room registry plus session table. A single mutex guards
// both tables; broadcasts are issued while it is held so that roster events
// leave in the same order as the mutations that produced them.
type Manager struct {
	mu         sync.Mutex
	rooms      map[string]*chatRoom
	sessions   map[string]Session
	bindings   map[binding]map[string]struct{}
	out        Broadcaster
	duplicates DuplicatePolicy
	evictEmpty bool
}

// NewManager returns an empty Manager delivering through out.
func NewManager(out Broadcaster, opts ...Option) *Manager {
	m := &Manager{
		rooms:      make(map[string]*chatRoom),
		sessions:   make(map[string]Session),
		bindings:   make(map[binding]map[string]struct{}),
		out:        out,
		duplicates: DuplicateReplace,
		evictEmpty: true,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Join binds connID to (p.Room, p.UserID), inserts or overwrites the profile
// and broadcasts the updated roster to the room. A connection already bound
// elsewhere leaves its previous binding first.
func (m *Manager) Join(connID string, p JoinParams) (Result, error) {
	if connID == "" || !p.valid() {
		return Result{}, fmt.Errorf("join: %w", ErrInvalidRequest)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	next := binding{room: p.Room, userID: p.UserID}
	if m.duplicates == DuplicateReject && m.boundElsewhere(next, connID) {
		return Result{}, fmt.Errorf("join %s as %s: %w", p.Room, p.UserID, ErrUserIDTaken)
	}

	var res Result
	if prev, ok := m.sessions[connID]; ok && prev.binding() != next {
		res.Delivered += m.release(prev, true)
	}

	r, ok := m.rooms[p.Room]
	if !ok {
		r = &chatRoom{name: p.Room, roster: newRoster()}
		m.rooms[p.Room] = r
	}
	r.roster.put(p.profile())
	m.bind(Session{ConnID: connID, Room: p.Room, UserID: p.UserID})
	m.out.Subscribe(connID, p.Room)

	res.Delivered += m.out.ToRoom(p.Room, EventRoster, r.roster.list())
	return res, nil
}

// Chat broadcasts a message from the connection's current profile to every
// member of its room, the sender included.
func (m *Manager) Chat(connID string, c Content) (Result, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	sess, sender, err := m.sender(connID)
	if err != nil {
		return Result{}, fmt.Errorf("chat: %w", err)
	}

	msg := Message{
		Type:        EventChat,
		From:        *sender,
		Text:        c.Text,
		ImageBase64: c.ImageBase64,
		Stamp:       c.Stamp,
	}
	return Result{Delivered: m.out.ToRoom(sess.Room, EventChat, msg)}, nil
}

// Private delivers a message only to the connections bound to
// (sender's room, toUserID). The sender gets no copy.
func (m *Manager) Private(connID, toUserID string, c Content) (Result, error) {
	if toUserID == "" {
		return Result{}, fmt.Errorf("private: %w", ErrInvalidRequest)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	sess, sender, err := m.sender(connID)
	if err != nil {
		return Result{}, fmt.Errorf("private: %w", err)
	}
	target, ok := m.rooms[sess.Room].roster.get(toUserID)
	if !ok {
		return Result{}, fmt.Errorf("private to %s: %w", toUserID, ErrUnknownRecipient)
	}

	msg := Message{
		Type:        EventPrivate,
		ToUserID:    target.UserID,
		From:        *sender,
		Text:        c.Text,
		ImageBase64: c.ImageBase64,
		Stamp:       c.Stamp,
	}
	var res Result
	for id := range m.bindings[binding{room: sess.Room, userID: target.UserID}] {
		if m.out.ToConn(id, EventPrivate, msg) {
			res.Delivered++
		}
	}
	return res, nil
}

// UpdateProfile applies a partial update to the connection's profile and
// rebroadcasts the roster.
func (m *Manager) UpdateProfile(connID string, u ProfileUpdate) (Result, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	sess, profile, err := m.sender(connID)
	if err != nil {
		return Result{}, fmt.Errorf("update profile: %w", err)
	}
	u.apply(profile)

	r := m.rooms[sess.Room]
	return Result{Delivered: m.out.ToRoom(sess.Room, EventRoster, r.roster.list())}, nil
}

// Leave drops the connection's session and roster entry, broadcasts the
// roster to the remaining members and unsubscribes the connection.
func (m *Manager) Leave(connID string) (Result, error) {
	return m.leave(connID, true)
}

// Disconnect is Leave for a connection the transport has already torn down;
// group membership is left to the transport.
func (m *Manager) Disconnect(connID string) (Result, error) {
	return m.leave(connID, false)
}

func (m *Manager) leave(connID string, unsubscribe bool) (Result, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	sess, ok := m.sessions[connID]
	if !ok {
		return Result{}, fmt.Errorf("leave: %w", ErrNotJoined)
	}
	return Result{Delivered: m.release(sess, unsubscribe)}, nil
}

// Roster returns a snapshot of a room's roster in insertion order, or nil if
// the room does not exist.
func (m *Manager) Roster(room string) []Profile {
	m.mu.Lock()
	defer m.mu.Unlock()

	r, ok := m.rooms[room]
	if !ok {
		return nil
	}
	return r.roster.list()
}

// Rooms lists live rooms sorted by name.
func (m *Manager) Rooms() []Summary {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]Summary, 0, len(m.rooms))
	for name, r := range m.rooms {
		out = append(out, Summary{Name: name, Members: r.roster.len()})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// SessionFor returns the session bound to connID.
func (m *Manager) SessionFor(connID string) (Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	sess, ok := m.sessions[connID]
	return sess, ok
}

// sender resolves the connection's session and live profile.
func (m *Manager) sender(connID string) (Session, *Profile, error) {
	sess, ok := m.sessions[connID]
	if !ok {
		return Session{}, nil, ErrNotJoined
	}
	r, ok := m.rooms[sess.Room]
	if !ok {
		return Session{}, nil, ErrStaleSession
	}
	profile, ok := r.roster.get(sess.UserID)
	if !ok {
		return Session{}, nil, ErrStaleSession
	}
	return sess, profile, nil
}

// release removes a session, its roster entry and, when requested, its
// group subscription. It returns how many connections got the roster update.
func (m *Manager) release(sess Session, unsubscribe bool) int {
	m.unbind(sess)

	delivered := 0
	if r, ok := m.rooms[sess.Room]; ok && r.roster.remove(sess.UserID) {
		delivered = m.out.ToRoom(sess.Room, EventRoster, r.roster.list())
		if m.evictEmpty && r.roster.len() == 0 {
			delete(m.rooms, sess.Room)
		}
	}
	if unsubscribe {
		m.out.Unsubscribe(sess.ConnID, sess.Room)
	}
	return delivered
}

func (m *Manager) bind(sess Session) {
	if prev, ok := m.sessions[sess.ConnID]; ok {
		m.unbind(prev)
	}
	m.sessions[sess.ConnID] = sess
	b := sess.binding()
	conns, ok := m.bindings[b]
	if !ok {
		conns = make(map[string]struct{})
		m.bindings[b] = conns
	}
	conns[sess.ConnID] = struct{}{}
}

func (m *Manager) unbind(sess Session) {
	delete(m.sessions, sess.ConnID)
	b := sess.binding()
	if conns, ok := m.bindings[b]; ok {
		delete(conns, sess.ConnID)
		if len(conns) == 0 {
			delete(m.bindings, b)
		}
	}
}

func (m *Manager) boundElsewhere(b binding, connID string) bool {
	for id := range m.bindings[b] {
		if id != connID {
			return true
		}
	}
	return false
}
