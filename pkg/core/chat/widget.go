package chat

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/jakechorley/skillconnect/pkg/core/model"
	"github.com/jakechorley/skillconnect/pkg/socket"
)

var (
	// ErrNoConversation is returned when sending without an open conversation
	ErrNoConversation = errors.New("no conversation is open")
	// ErrEmptyMessage is returned for blank messages
	ErrEmptyMessage = errors.New("message is empty")
)

const tempIDPrefix = "temp-"

// IsPending reports whether m is an optimistic copy still waiting for the server
func IsPending(m model.Message) bool {
	return strings.HasPrefix(m.ID, tempIDPrefix)
}

// API defines the chat operations needed
type API interface {
	ChatList(ctx context.Context) ([]model.ChatEntry, error)
	ChatHistory(ctx context.Context, appointmentID string) ([]model.Message, error)
	SendMessage(ctx context.Context, appointmentID, text string) (*model.Message, error)
	MarkSeen(ctx context.Context, appointmentID string) error
}

// Realtime is the listener side of the shared socket
type Realtime interface {
	On(event string, handler socket.Handler) socket.ListenerID
	Off(event string, ids ...socket.ListenerID)
	Emit(event string, args ...any) bool
}

// Options tunes the widget's timers
type Options struct {
	TypingIdle time.Duration
}

type typingPayload struct {
	AppointmentID string `json:"appointmentId"`
	UserID        string `json:"userId"`
}

// Widget is the chat model for one signed-in user. Unread counts are kept per
// appointment; conversation totals are always derived from them.
type Widget struct {
	api    API
	rt     Realtime
	self   model.UserRef
	logger *zap.Logger
	typing *Debouncer

	mu        sync.Mutex
	entries   []model.ChatEntry
	byAppt    map[string]int
	convs     []model.Conversation
	openUser  string
	activeApt string
	messages  []model.Message
	seenIDs   map[string]bool
	remote    map[string]bool // appointment id -> counterpart typing
	listeners map[string]socket.ListenerID
	onChange  func()
	onError   func(error)
}

// NewWidget creates a chat widget for the user self
func NewWidget(api API, rt Realtime, self model.UserRef, logger *zap.Logger, opts Options) *Widget {
	w := &Widget{
		api:       api,
		rt:        rt,
		self:      self,
		logger:    logger,
		byAppt:    make(map[string]int),
		seenIDs:   make(map[string]bool),
		remote:    make(map[string]bool),
		listeners: make(map[string]socket.ListenerID),
	}
	w.typing = NewDebouncer(opts.TypingIdle, func() { w.emitTyping(socket.EventTyping) }, func() { w.emitTyping(socket.EventStopTyping) })
	return w
}

// OnChange registers fn to run after every state change
func (w *Widget) OnChange(fn func()) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.onChange = fn
}

// OnError registers fn to receive failed API calls, including background ones
func (w *Widget) OnError(fn func(error)) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.onError = fn
}

// Load fetches the chat list and registers the user for message delivery
func (w *Widget) Load(ctx context.Context) error {
	entries, err := w.api.ChatList(ctx)
	if err != nil {
		return fmt.Errorf("failed to fetch chat list: %w", err)
	}

	w.mu.Lock()
	w.entries = entries
	w.reindexLocked()
	w.mu.Unlock()

	w.rt.Emit(socket.EventRegister, w.self.ID)
	w.logger.Debug("Chat list loaded", zap.Int("appointments", len(entries)))
	w.changed()
	return nil
}

// Listen subscribes to message, history and typing events
func (w *Widget) Listen() {
	handlers := map[string]socket.Handler{
		socket.EventNewMessage:          w.handleMessage,
		socket.EventMessageNotification: w.handleMessage,
		socket.EventChatHistory:         w.handleHistory,
		socket.EventUserTyping:          func(args []json.RawMessage) { w.handleTyping(args, true) },
		socket.EventUserStoppedTyping:   func(args []json.RawMessage) { w.handleTyping(args, false) },
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	for event, h := range handlers {
		if _, ok := w.listeners[event]; ok {
			continue
		}
		w.listeners[event] = w.rt.On(event, h)
	}
}

// Close removes the realtime subscriptions and flushes a pending stop-typing
func (w *Widget) Close() {
	w.typing.Flush()

	w.mu.Lock()
	listeners := w.listeners
	w.listeners = make(map[string]socket.ListenerID)
	w.mu.Unlock()

	for event, id := range listeners {
		w.rt.Off(event, id)
	}
}

// Conversations returns the grouped conversations, most recent first
func (w *Widget) Conversations() []model.Conversation {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]model.Conversation(nil), w.convs...)
}

// UnreadTotal is the badge count: the sum of every appointment's unread counter
func (w *Widget) UnreadTotal() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	total := 0
	for _, e := range w.entries {
		total += e.UnreadCount
	}
	return total
}

// Messages returns the open conversation's messages in arrival order
func (w *Widget) Messages() []model.Message {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]model.Message(nil), w.messages...)
}

// ActiveAppointment returns the appointment new messages are sent to
func (w *Widget) ActiveAppointment() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.activeApt
}

// CounterpartTyping reports whether the open conversation's counterpart is typing
func (w *Widget) CounterpartTyping() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.openUser == "" {
		return false
	}
	conv := w.conversationLocked(w.openUser)
	if conv == nil {
		return false
	}
	for _, id := range conv.AppointmentIDs {
		if w.remote[id] {
			return true
		}
	}
	return false
}

// Open makes the conversation with otherUserID current, loads its history and
// marks its unread messages seen
func (w *Widget) Open(ctx context.Context, otherUserID string) error {
	w.typing.Flush()

	w.mu.Lock()
	conv := w.conversationLocked(otherUserID)
	if conv == nil {
		w.mu.Unlock()
		return fmt.Errorf("no conversation with user %s", otherUserID)
	}
	appointments := append([]string(nil), conv.AppointmentIDs...)
	active := appointments[len(appointments)-1]
	if conv.LastMessage != nil && conv.HasAppointment(conv.LastMessage.AppointmentID) {
		active = conv.LastMessage.AppointmentID
	}
	w.openUser = otherUserID
	w.activeApt = active
	w.messages = nil
	w.seenIDs = make(map[string]bool)
	w.mu.Unlock()

	for _, id := range appointments {
		w.rt.Emit(socket.EventJoinChat, id)
	}

	var history []model.Message
	for _, id := range appointments {
		msgs, err := w.api.ChatHistory(ctx, id)
		if err != nil {
			return fmt.Errorf("failed to fetch chat history for %s: %w", id, err)
		}
		history = append(history, msgs...)
	}

	w.mu.Lock()
	if w.openUser == otherUserID {
		// Live messages that arrived during the fetch stay after the history
		live := w.messages
		w.messages = nil
		w.mergeLocked(history)
		w.messages = append(w.messages, live...)
	}
	w.mu.Unlock()

	w.markSeen(ctx, appointments, false)
	w.changed()
	return nil
}

// OpenAppointment opens the conversation that contains appointmentID
func (w *Widget) OpenAppointment(ctx context.Context, appointmentID string) error {
	w.mu.Lock()
	i, ok := w.byAppt[appointmentID]
	var other string
	if ok {
		other = w.entries[i].OtherUser.ID
	}
	w.mu.Unlock()

	if !ok {
		return fmt.Errorf("no chat for appointment %s", appointmentID)
	}
	if err := w.Open(ctx, other); err != nil {
		return err
	}

	w.mu.Lock()
	w.activeApt = appointmentID
	w.mu.Unlock()
	return nil
}

// CloseConversation leaves the open conversation
func (w *Widget) CloseConversation() {
	w.typing.Flush()
	w.mu.Lock()
	w.openUser = ""
	w.activeApt = ""
	w.messages = nil
	w.seenIDs = make(map[string]bool)
	w.mu.Unlock()
	w.changed()
}

// Keystroke signals local typing in the open conversation
func (w *Widget) Keystroke() {
	if w.ActiveAppointment() == "" {
		return
	}
	w.typing.Touch()
}

// Send appends the message optimistically with status "sent" and removes it again
// when the server rejects it
func (w *Widget) Send(ctx context.Context, text string) (*model.Message, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, ErrEmptyMessage
	}

	w.mu.Lock()
	appt := w.activeApt
	if appt == "" {
		w.mu.Unlock()
		return nil, ErrNoConversation
	}
	temp := model.Message{
		ID:            tempIDPrefix + uuid.NewString(),
		AppointmentID: appt,
		Sender:        w.self,
		Text:          text,
		Timestamp:     time.Now(),
		Status:        model.MessageSent,
	}
	w.messages = append(w.messages, temp)
	w.mu.Unlock()
	w.changed()

	w.typing.Flush()

	sent, err := w.api.SendMessage(ctx, appt, text)
	if err != nil {
		w.mu.Lock()
		w.removeMessageLocked(temp.ID)
		w.mu.Unlock()
		w.changed()
		w.logger.Warn("Failed to send message", zap.String("appointment_id", appt), zap.Error(err))
		w.failed(err)
		return nil, fmt.Errorf("failed to send message: %w", err)
	}

	if sent == nil || sent.ID == "" {
		sent = &temp
	} else if sent.AppointmentID == "" {
		sent.AppointmentID = appt
	}

	w.mu.Lock()
	if w.seenIDs[sent.ID] {
		// The realtime echo arrived before the response
		w.removeMessageLocked(temp.ID)
	} else {
		w.replaceMessageLocked(temp.ID, *sent)
	}
	w.setLastMessageLocked(appt, *sent)
	w.mu.Unlock()
	w.changed()

	return sent, nil
}

func (w *Widget) handleMessage(args []json.RawMessage) {
	var msg model.Message
	if err := socket.Decode(args, 0, &msg); err != nil {
		w.logger.Debug("Ignoring malformed message event", zap.Error(err))
		return
	}
	if msg.AppointmentID == "" {
		return
	}

	w.mu.Lock()
	if msg.ID != "" && w.seenIDs[msg.ID] {
		w.mu.Unlock()
		return
	}

	fromSelf := msg.Sender.ID != "" && msg.Sender.ID == w.self.ID
	if _, known := w.byAppt[msg.AppointmentID]; !known {
		if fromSelf {
			w.mu.Unlock()
			return
		}
		w.entries = append(w.entries, model.ChatEntry{AppointmentID: msg.AppointmentID, OtherUser: msg.Sender})
		w.byAppt[msg.AppointmentID] = len(w.entries) - 1
	}

	open := w.isOpenLocked(msg.AppointmentID)
	if open {
		// An echo of our own message confirms the optimistic copy
		if !fromSelf || !w.replacePendingLocked(msg) {
			w.appendLocked(msg)
		}
	} else if !fromSelf {
		w.entries[w.byAppt[msg.AppointmentID]].UnreadCount++
	}
	if msg.ID != "" {
		w.seenIDs[msg.ID] = true
	}
	w.setLastMessageLocked(msg.AppointmentID, msg)
	w.mu.Unlock()

	if open && !fromSelf {
		go w.markSeen(context.Background(), []string{msg.AppointmentID}, true)
	}
	w.changed()
}

func (w *Widget) handleHistory(args []json.RawMessage) {
	var msgs []model.Message
	if err := socket.Decode(args, 0, &msgs); err != nil {
		var wrapped struct {
			AppointmentID string          `json:"appointmentId"`
			Messages      []model.Message `json:"messages"`
		}
		if err := socket.Decode(args, 0, &wrapped); err != nil {
			w.logger.Debug("Ignoring malformed chat-history event", zap.Error(err))
			return
		}
		msgs = wrapped.Messages
		for i := range msgs {
			if msgs[i].AppointmentID == "" {
				msgs[i].AppointmentID = wrapped.AppointmentID
			}
		}
	}

	w.mu.Lock()
	var relevant []model.Message
	for _, m := range msgs {
		if w.isOpenLocked(m.AppointmentID) {
			relevant = append(relevant, m)
		}
	}
	w.mergeLocked(relevant)
	w.mu.Unlock()

	if len(relevant) > 0 {
		w.changed()
	}
}

func (w *Widget) handleTyping(args []json.RawMessage, typing bool) {
	var p typingPayload
	if err := socket.Decode(args, 0, &p); err != nil || p.AppointmentID == "" {
		return
	}
	if p.UserID != "" && p.UserID == w.self.ID {
		return
	}

	w.mu.Lock()
	if typing {
		w.remote[p.AppointmentID] = true
	} else {
		delete(w.remote, p.AppointmentID)
	}
	w.mu.Unlock()
	w.changed()
}

func (w *Widget) emitTyping(event string) {
	appt := w.ActiveAppointment()
	if appt == "" {
		return
	}
	w.rt.Emit(event, typingPayload{AppointmentID: appt, UserID: w.self.ID})
}

// markSeen clears the unread counters of appointments once the server accepts
// it. Without force, appointments with nothing unread locally are skipped.
func (w *Widget) markSeen(ctx context.Context, appointments []string, force bool) {
	for _, id := range appointments {
		w.mu.Lock()
		i, ok := w.byAppt[id]
		unread := ok && (force || w.entries[i].UnreadCount > 0)
		w.mu.Unlock()
		if !unread {
			continue
		}

		if err := w.api.MarkSeen(ctx, id); err != nil {
			w.logger.Warn("Failed to mark messages seen", zap.String("appointment_id", id), zap.Error(err))
			w.failed(err)
			continue
		}

		w.mu.Lock()
		if i, ok := w.byAppt[id]; ok {
			w.entries[i].UnreadCount = 0
		}
		w.regroupLocked()
		w.mu.Unlock()
	}
	w.changed()
}

func (w *Widget) isOpenLocked(appointmentID string) bool {
	if w.openUser == "" {
		return false
	}
	i, ok := w.byAppt[appointmentID]
	return ok && w.entries[i].OtherUser.ID == w.openUser
}

func (w *Widget) conversationLocked(otherUserID string) *model.Conversation {
	for i := range w.convs {
		if w.convs[i].OtherUser.ID == otherUserID {
			return &w.convs[i]
		}
	}
	return nil
}

func (w *Widget) reindexLocked() {
	w.byAppt = make(map[string]int, len(w.entries))
	for i, e := range w.entries {
		w.byAppt[e.AppointmentID] = i
	}
	w.regroupLocked()
}

func (w *Widget) regroupLocked() {
	w.convs = GroupConversations(w.entries)
}

func (w *Widget) setLastMessageLocked(appointmentID string, msg model.Message) {
	i, ok := w.byAppt[appointmentID]
	if !ok {
		return
	}
	last := w.entries[i].LastMessage
	if last == nil || !msg.Timestamp.Before(last.Timestamp) {
		m := msg
		w.entries[i].LastMessage = &m
	}
	w.regroupLocked()
}

func (w *Widget) appendLocked(msg model.Message) {
	w.messages = append(w.messages, msg)
}

// mergeLocked appends a history batch: messages not already present, ordered by
// timestamp among themselves. Messages already shown never move.
func (w *Widget) mergeLocked(msgs []model.Message) {
	var batch []model.Message
	for _, m := range msgs {
		if m.ID != "" && w.seenIDs[m.ID] {
			continue
		}
		if m.ID != "" {
			w.seenIDs[m.ID] = true
		}
		batch = append(batch, m)
	}
	sortMessages(batch)
	w.messages = append(w.messages, batch...)
}

// replacePendingLocked swaps the oldest optimistic copy of msg for the confirmed one
func (w *Widget) replacePendingLocked(msg model.Message) bool {
	for i, m := range w.messages {
		if IsPending(m) && m.AppointmentID == msg.AppointmentID && m.Text == msg.Text {
			w.messages[i] = msg
			return true
		}
	}
	return false
}

func (w *Widget) replaceMessageLocked(id string, msg model.Message) {
	for i, m := range w.messages {
		if m.ID == id {
			w.messages[i] = msg
			w.seenIDs[msg.ID] = true
			return
		}
	}
}

func (w *Widget) removeMessageLocked(id string) {
	for i, m := range w.messages {
		if m.ID == id {
			w.messages = append(w.messages[:i], w.messages[i+1:]...)
			return
		}
	}
}

func (w *Widget) changed() {
	w.mu.Lock()
	fn := w.onChange
	w.mu.Unlock()
	if fn != nil {
		fn()
	}
}

func (w *Widget) failed(err error) {
	w.mu.Lock()
	fn := w.onError
	w.mu.Unlock()
	if fn != nil {
		fn(err)
	}
}

func sortMessages(msgs []model.Message) {
	sort.SliceStable(msgs, func(i, j int) bool {
		return msgs[i].Timestamp.Before(msgs[j].Timestamp)
	})
}
