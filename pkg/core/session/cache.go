package session

import (
	"context"
	"encoding/json"

	"go.uber.org/zap"

	"github.com/jakechorley/skillconnect/pkg/core/model"
	"github.com/jakechorley/skillconnect/pkg/db"
)

// cachedSnapshot rebuilds a snapshot from the persisted state. It never fails:
// unreadable entries are treated as absent.
func (s *Session) cachedSnapshot(ctx context.Context) Snapshot {
	token, _ := s.store.Get(ctx, db.KeyToken)
	authorized, _ := s.store.Get(ctx, db.KeyIsAuthorized)
	if token == "" || authorized != "true" {
		return Snapshot{}
	}

	tokenType, _ := s.store.Get(ctx, db.KeyTokenType)
	if model.TokenType(tokenType) == model.TokenTypeAdmin {
		var admin model.Admin
		if !s.getJSON(ctx, db.KeyAdmin, &admin) {
			return Snapshot{}
		}
		return Snapshot{
			Admin:          &admin,
			TokenType:      model.TokenTypeAdmin,
			IsAuthorized:   true,
			IsUserVerified: true,
		}
	}

	var user model.User
	if !s.getJSON(ctx, db.KeyUser, &user) {
		return Snapshot{}
	}
	return Snapshot{
		User:           &user,
		TokenType:      model.TokenTypeUser,
		IsAuthorized:   true,
		IsUserVerified: user.IsVerified,
	}
}

func (s *Session) getJSON(ctx context.Context, key string, out any) bool {
	raw, err := s.store.Get(ctx, key)
	if err != nil || raw == "" {
		return false
	}
	if err := json.Unmarshal([]byte(raw), out); err != nil {
		s.logger.Debug("Ignoring unreadable cached value", zap.String("key", key), zap.Error(err))
		return false
	}
	return true
}

func (s *Session) persistUser(ctx context.Context, user *model.User) {
	s.setJSON(ctx, db.KeyUser, user)
	s.clearPersisted(ctx, db.KeyAdmin)
	s.set(ctx, db.KeyIsAuthorized, "true")
}

func (s *Session) persistAdmin(ctx context.Context, admin *model.Admin) {
	s.setJSON(ctx, db.KeyAdmin, admin)
	s.clearPersisted(ctx, db.KeyUser)
	s.set(ctx, db.KeyIsAuthorized, "true")
}

func (s *Session) rememberEmail(ctx context.Context, email string, remember bool) {
	if remember {
		s.set(ctx, db.KeyRememberedEmail, email)
		return
	}
	s.clearPersisted(ctx, db.KeyRememberedEmail)
}

// The cache is best-effort: write failures are logged, never returned

func (s *Session) setJSON(ctx context.Context, key string, v any) {
	raw, err := json.Marshal(v)
	if err != nil {
		s.logger.Warn("Failed to encode cached value", zap.String("key", key), zap.Error(err))
		return
	}
	s.set(ctx, key, string(raw))
}

func (s *Session) set(ctx context.Context, key, value string) {
	if err := s.store.Set(ctx, key, value); err != nil {
		s.logger.Warn("Failed to persist client state", zap.String("key", key), zap.Error(err))
	}
}

func (s *Session) clearPersisted(ctx context.Context, keys ...string) {
	if err := s.store.Delete(ctx, keys...); err != nil {
		s.logger.Warn("Failed to clear client state", zap.Strings("keys", keys), zap.Error(err))
	}
}
