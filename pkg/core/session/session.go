// Package session owns the current identity (user or admin), its persisted
// cache and the lifecycle of the realtime connection.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/jakechorley/skillconnect/pkg/clients/apiclient"
	"github.com/jakechorley/skillconnect/pkg/core/model"
	"github.com/jakechorley/skillconnect/pkg/db"
	"github.com/jakechorley/skillconnect/pkg/socket"
)

// ErrBanned is returned when the server reports the account as banned
var ErrBanned = errors.New("account has been banned")

// ErrNotLoggedIn is returned by operations that need a stored token
var ErrNotLoggedIn = errors.New("not logged in")

// State is the session's position in the authentication state machine
type State int

const (
	Unauthenticated State = iota
	UserUnverified
	UserVerified
	AdminAuthenticated
)

func (s State) String() string {
	switch s {
	case Unauthenticated:
		return "unauthenticated"
	case UserUnverified:
		return "user (unverified)"
	case UserVerified:
		return "user"
	case AdminAuthenticated:
		return "admin"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// Snapshot is an immutable view of the session. At most one of User and Admin is set.
type Snapshot struct {
	User           *model.User
	Admin          *model.Admin
	TokenType      model.TokenType
	IsAuthorized   bool
	IsUserVerified bool
}

// State derives the state machine position from the snapshot
func (s Snapshot) State() State {
	switch {
	case !s.IsAuthorized:
		return Unauthenticated
	case s.Admin != nil:
		return AdminAuthenticated
	case s.User != nil && s.IsUserVerified:
		return UserVerified
	case s.User != nil:
		return UserUnverified
	}
	return Unauthenticated
}

// UserID returns the current user's id or "" for admins and anonymous sessions
func (s Snapshot) UserID() string {
	if s.User == nil {
		return ""
	}
	return s.User.ID
}

// API is the subset of the REST client the session needs
type API interface {
	UserProfile(ctx context.Context) (*model.User, error)
	AdminProfile(ctx context.Context) (*model.Admin, error)
	LoginUser(ctx context.Context, creds apiclient.Credentials) (*apiclient.UserLoginResult, error)
	LoginAdmin(ctx context.Context, creds apiclient.Credentials) (*apiclient.AdminLoginResult, error)
	LogoutUser(ctx context.Context) error
	LogoutAdmin(ctx context.Context) error
}

// Realtime is the subset of the socket client the session owns
type Realtime interface {
	UpdateToken(ctx context.Context, token string) error
	Disconnect()
	On(event string, handler socket.Handler) socket.ListenerID
	OnAuthFailure(fn func(reason string))
}

// Session is the process-wide identity store. Observers registered with Subscribe
// receive a snapshot after every change.
type Session struct {
	store  db.StateStore
	api    API
	rt     Realtime
	logger *zap.Logger

	mu        sync.Mutex
	snap      Snapshot
	fetching  bool
	observers map[int]func(Snapshot)
	nextObs   int
	notify    func(msg string)
}

// New creates a session seeded synchronously from the persisted state
func New(ctx context.Context, store db.StateStore, api API, rt Realtime, logger *zap.Logger) *Session {
	s := &Session{
		store:     store,
		api:       api,
		rt:        rt,
		logger:    logger,
		observers: make(map[int]func(Snapshot)),
		notify:    func(string) {},
	}
	s.snap = s.cachedSnapshot(ctx)
	return s
}

// SetNotifier sets the sink for user-visible messages such as "account banned"
func (s *Session) SetNotifier(fn func(msg string)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if fn == nil {
		fn = func(string) {}
	}
	s.notify = fn
}

// BindRealtime routes realtime authentication failures and verification updates into the session
func (s *Session) BindRealtime() {
	s.rt.OnAuthFailure(func(reason string) {
		s.evict(context.Background(), "Your session has ended: "+reason)
	})
	s.rt.On(socket.EventVerificationStatus, func(args []json.RawMessage) {
		var payload struct {
			IsVerified bool `json:"isVerified"`
		}
		if err := socket.Decode(args, 0, &payload); err != nil {
			s.logger.Debug("Ignoring malformed verification-status event", zap.Error(err))
			return
		}
		s.setVerified(context.Background(), payload.IsVerified)
	})
}

// Snapshot returns the current session state
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snap
}

// Subscribe registers fn to receive every future snapshot. The returned func unsubscribes.
func (s *Session) Subscribe(fn func(Snapshot)) func() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextObs++
	id := s.nextObs
	s.observers[id] = fn
	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.observers, id)
	}
}

// Token returns the stored bearer token or ""
func (s *Session) Token(ctx context.Context) string {
	v, _ := s.store.Get(ctx, db.KeyToken)
	return v
}

// FetchProfile reconciles the cached identity with the server. A call made while
// another fetch is in flight returns immediately without starting a new one.
func (s *Session) FetchProfile(ctx context.Context) error {
	s.mu.Lock()
	if s.fetching {
		s.mu.Unlock()
		s.logger.Debug("Profile fetch already in flight")
		return nil
	}
	s.fetching = true
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.fetching = false
		s.mu.Unlock()
	}()

	token := s.Token(ctx)
	if token == "" {
		s.logger.Debug("No stored token, session is unauthenticated")
		s.reset(ctx)
		return nil
	}

	tokenType, _ := s.store.Get(ctx, db.KeyTokenType)
	if model.TokenType(tokenType) == model.TokenTypeAdmin {
		return s.fetchAdmin(ctx, token)
	}
	return s.fetchUser(ctx, token)
}

func (s *Session) fetchAdmin(ctx context.Context, token string) error {
	admin, err := s.api.AdminProfile(ctx)
	if err != nil {
		return s.profileFailed(ctx, err)
	}

	s.persistAdmin(ctx, admin)
	s.publish(Snapshot{
		Admin:          admin,
		TokenType:      model.TokenTypeAdmin,
		IsAuthorized:   true,
		IsUserVerified: true,
	})
	s.connectRealtime(ctx, token)

	s.logger.Debug("Admin profile refreshed", zap.String("admin_id", admin.ID))
	return nil
}

func (s *Session) fetchUser(ctx context.Context, token string) error {
	user, err := s.api.UserProfile(ctx)
	if err != nil {
		return s.profileFailed(ctx, err)
	}
	if user.IsBanned() {
		s.forceLogout(ctx, "Your account has been banned. Please contact support.")
		return ErrBanned
	}

	s.persistUser(ctx, user)
	s.publish(Snapshot{
		User:           user,
		TokenType:      model.TokenTypeUser,
		IsAuthorized:   true,
		IsUserVerified: user.IsVerified,
	})
	s.connectRealtime(ctx, token)

	s.logger.Debug("User profile refreshed",
		zap.String("user_id", user.ID),
		zap.Bool("verified", user.IsVerified))
	return nil
}

func (s *Session) profileFailed(ctx context.Context, err error) error {
	switch {
	case apiclient.IsBanned(err):
		s.forceLogout(ctx, "Your account has been banned. Please contact support.")
		return ErrBanned

	case apiclient.IsNotVerified(err):
		snap := s.cachedSnapshot(ctx)
		if snap.User == nil {
			// No cached identity: an empty user keeps the state UserUnverified
			snap.User = &model.User{}
		}
		snap.IsAuthorized = true
		snap.IsUserVerified = false
		snap.TokenType = model.TokenTypeUser
		snap.Admin = nil
		s.publish(snap)
		s.connectRealtime(ctx, s.Token(ctx))
		s.logger.Info("Account not verified yet, restricted views stay locked")
		return nil

	case apiclient.IsForbidden(err):
		s.logger.Warn("Profile request denied, session left unchanged", zap.Error(err))
		return fmt.Errorf("access denied: %w", err)

	case apiclient.IsAuthFailure(err):
		s.forceLogout(ctx, "Your session has expired. Please log in again.")
		return fmt.Errorf("session rejected: %w", err)
	}

	cached := s.cachedSnapshot(ctx)
	if cached.IsAuthorized {
		s.logger.Warn("Profile refresh failed, using cached identity", zap.Error(err))
		s.publish(cached)
		return nil
	}

	s.logger.Warn("Profile refresh failed and no cached identity exists", zap.Error(err))
	s.clearPersisted(ctx, db.SessionKeys...)
	s.publish(Snapshot{})
	return fmt.Errorf("failed to fetch profile: %w", err)
}

// LoginUser authenticates a community member
func (s *Session) LoginUser(ctx context.Context, creds apiclient.Credentials, remember bool) (*model.User, error) {
	result, err := s.api.LoginUser(ctx, creds)
	if err != nil {
		if apiclient.IsBanned(err) {
			s.notifyMsg("Your account has been banned. Please contact support.")
			return nil, ErrBanned
		}
		return nil, fmt.Errorf("login failed: %w", err)
	}
	if result.Token == "" || result.User == nil {
		return nil, fmt.Errorf("login failed: server returned no token")
	}
	if result.User.IsBanned() {
		s.notifyMsg("Your account has been banned. Please contact support.")
		return nil, ErrBanned
	}

	s.clearPersisted(ctx, db.KeyAdmin)
	s.set(ctx, db.KeyToken, result.Token)
	s.set(ctx, db.KeyTokenType, string(model.TokenTypeUser))
	s.persistUser(ctx, result.User)
	s.rememberEmail(ctx, creds.Email, remember)

	s.publish(Snapshot{
		User:           result.User,
		TokenType:      model.TokenTypeUser,
		IsAuthorized:   true,
		IsUserVerified: result.User.IsVerified,
	})
	s.connectRealtime(ctx, result.Token)

	s.logger.Info("User logged in", zap.String("user_id", result.User.ID))
	return result.User, nil
}

// LoginAdmin authenticates an administrator
func (s *Session) LoginAdmin(ctx context.Context, creds apiclient.Credentials, remember bool) (*model.Admin, error) {
	result, err := s.api.LoginAdmin(ctx, creds)
	if err != nil {
		return nil, fmt.Errorf("admin login failed: %w", err)
	}
	if result.Token == "" || result.Admin == nil {
		return nil, fmt.Errorf("admin login failed: server returned no token")
	}

	s.clearPersisted(ctx, db.KeyUser)
	s.set(ctx, db.KeyToken, result.Token)
	s.set(ctx, db.KeyTokenType, string(model.TokenTypeAdmin))
	s.persistAdmin(ctx, result.Admin)
	s.rememberEmail(ctx, creds.Email, remember)

	s.publish(Snapshot{
		Admin:          result.Admin,
		TokenType:      model.TokenTypeAdmin,
		IsAuthorized:   true,
		IsUserVerified: true,
	})
	s.connectRealtime(ctx, result.Token)

	s.logger.Info("Admin logged in", zap.String("admin_id", result.Admin.ID))
	return result.Admin, nil
}

// Logout calls both server logout endpoints best-effort, then always clears local state
func (s *Session) Logout(ctx context.Context) {
	if s.Token(ctx) != "" {
		if err := s.api.LogoutUser(ctx); err != nil {
			s.logger.Debug("User logout call failed", zap.Error(err))
		}
		if err := s.api.LogoutAdmin(ctx); err != nil {
			s.logger.Debug("Admin logout call failed", zap.Error(err))
		}
	}

	s.clearPersisted(ctx, db.SessionKeys...)
	s.rt.Disconnect()
	s.publish(Snapshot{})
	s.logger.Info("Logged out")
}

// HandleError ends the session when err shows the server no longer accepts it:
// an invalid, expired or missing token, or a banned account. It reports whether
// the session was ended. Other errors, including wrong-role denials, are ignored.
func (s *Session) HandleError(ctx context.Context, err error) bool {
	if err == nil || (s.Token(ctx) == "" && !s.Snapshot().IsAuthorized) {
		return false
	}
	switch {
	case apiclient.IsBanned(err):
		s.forceLogout(ctx, "Your account has been banned. Please contact support.")
	case apiclient.IsForbidden(err):
		return false
	case apiclient.IsAuthFailure(err):
		s.forceLogout(ctx, "Your session has expired. Please log in again.")
	default:
		return false
	}
	return true
}

// RememberedEmail returns the email saved by a "remember me" login
func (s *Session) RememberedEmail(ctx context.Context) string {
	v, _ := s.store.Get(ctx, db.KeyRememberedEmail)
	return v
}

// SetLastPath records the last visited route for the current identity type
func (s *Session) SetLastPath(ctx context.Context, path string) {
	s.set(ctx, s.lastPathKey(), path)
}

// LastPath returns the last visited route for the current identity type
func (s *Session) LastPath(ctx context.Context) string {
	v, _ := s.store.Get(ctx, s.lastPathKey())
	return v
}

func (s *Session) lastPathKey() string {
	if s.Snapshot().TokenType == model.TokenTypeAdmin {
		return db.KeyAdminLastPath
	}
	return db.KeyUserLastPath
}

// forceLogout clears everything locally without contacting the server
func (s *Session) forceLogout(ctx context.Context, msg string) {
	s.clearPersisted(ctx, db.SessionKeys...)
	s.rt.Disconnect()
	s.publish(Snapshot{})
	s.logger.Warn("Session terminated", zap.String("reason", msg))
	s.notifyMsg(msg)
}

// evict handles a realtime authentication failure. The socket has already torn itself down.
func (s *Session) evict(ctx context.Context, msg string) {
	s.clearPersisted(ctx, db.SessionKeys...)
	s.publish(Snapshot{})
	s.logger.Warn("Token evicted", zap.String("reason", msg))
	s.notifyMsg(msg)
}

func (s *Session) reset(ctx context.Context) {
	s.clearPersisted(ctx, db.SessionKeys...)
	s.rt.Disconnect()
	s.publish(Snapshot{})
}

func (s *Session) setVerified(ctx context.Context, verified bool) {
	s.mu.Lock()
	snap := s.snap
	if snap.User == nil || snap.IsUserVerified == verified {
		s.mu.Unlock()
		return
	}
	user := *snap.User
	user.IsVerified = verified
	snap.User = &user
	snap.IsUserVerified = verified
	s.snap = snap
	observers := s.observersLocked()
	s.mu.Unlock()

	s.persistUser(ctx, &user)
	for _, fn := range observers {
		fn(snap)
	}
	if verified {
		s.notifyMsg("Your account has been verified.")
	}
}

func (s *Session) connectRealtime(ctx context.Context, token string) {
	if err := s.rt.UpdateToken(ctx, token); err != nil {
		s.logger.Warn("Failed to connect realtime channel", zap.Error(err))
	}
}

// publish replaces the snapshot and notifies observers outside the lock
func (s *Session) publish(snap Snapshot) {
	s.mu.Lock()
	s.snap = snap
	observers := s.observersLocked()
	s.mu.Unlock()

	for _, fn := range observers {
		fn(snap)
	}
}

func (s *Session) observersLocked() []func(Snapshot) {
	observers := make([]func(Snapshot), 0, len(s.observers))
	for _, fn := range s.observers {
		observers = append(observers, fn)
	}
	return observers
}

func (s *Session) notifyMsg(msg string) {
	s.mu.Lock()
	notify := s.notify
	s.mu.Unlock()
	notify(msg)
}
