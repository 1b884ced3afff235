package commands

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/jakechorley/skillconnect/internal/config"
	"github.com/jakechorley/skillconnect/pkg/clients/apiclient"
	"github.com/jakechorley/skillconnect/pkg/core/model"
	"github.com/jakechorley/skillconnect/pkg/core/session"
	"github.com/jakechorley/skillconnect/pkg/db"
	"github.com/jakechorley/skillconnect/pkg/socket"
)

// AppContext holds the application dependencies shared across all commands
type AppContext struct {
	Cfg     *config.Config
	Env     string
	Store   db.StateStore
	API     *apiclient.Client
	Socket  *socket.Client
	Session *session.Session
	Logger  *zap.Logger
	Ctx     context.Context
}

var (
	errAdminOnly  = errors.New("this command needs an admin account; log in with 'adminLogin'")
	errUserOnly   = errors.New("this command needs a community account; log in with 'login'")
	errUnverified = errors.New("your account is awaiting verification")
)

// requireUser reconciles the session with the server and returns the logged-in community member.
// Unverified users are rejected unless allowUnverified is set.
func (app *AppContext) requireUser(allowUnverified bool) (*model.User, error) {
	if err := app.Session.FetchProfile(app.Ctx); err != nil {
		return nil, err
	}

	snap := app.Session.Snapshot()
	switch snap.State() {
	case session.Unauthenticated:
		return nil, fmt.Errorf("%w: run 'login' first", session.ErrNotLoggedIn)
	case session.AdminAuthenticated:
		return nil, errUserOnly
	case session.UserUnverified:
		if !allowUnverified {
			return nil, errUnverified
		}
	}
	return snap.User, nil
}

// requireAdmin reconciles the session with the server and returns the logged-in admin
func (app *AppContext) requireAdmin() (*model.Admin, error) {
	if err := app.Session.FetchProfile(app.Ctx); err != nil {
		return nil, err
	}

	snap := app.Session.Snapshot()
	switch snap.State() {
	case session.Unauthenticated:
		return nil, fmt.Errorf("%w: run 'adminLogin' first", session.ErrNotLoggedIn)
	case session.AdminAuthenticated:
		return snap.Admin, nil
	}
	return nil, errAdminOnly
}

// sessionFailed ends the stored session when err shows the server rejected it
func (app *AppContext) sessionFailed(err error) {
	if app.Session.HandleError(app.Ctx, err) {
		app.Logger.Debug("Session ended by failed call", zap.Error(err))
	}
}

// visit records the route a command corresponds to so the next session can resume there
func (app *AppContext) visit(path string) {
	app.Session.SetLastPath(app.Ctx, path)
}
