package apiclient

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/jakechorley/skillconnect/pkg/core/model"
	"github.com/jakechorley/skillconnect/pkg/db"
)

func newTestClient(t *testing.T, handler http.HandlerFunc, token string) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	store := db.NewMemoryStore()
	if token != "" {
		require.NoError(t, store.Set(context.Background(), db.KeyToken, token))
	}
	return NewClient(srv.URL, StoreTokenSource{Store: store}, 0, zap.NewNop())
}

func TestUserProfile_SendsBearerTokenAndUnwrapsEnvelope(t *testing.T) {
	var gotAuth string
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		assert.Equal(t, "/user/me", r.URL.Path)
		w.Write([]byte(`{"success":true,"data":{"user":{"_id":"u1","firstName":"Ada","isVerified":true}}}`))
	}, "tok-123")

	user, err := client.UserProfile(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "Bearer tok-123", gotAuth)
	assert.Equal(t, "u1", user.ID)
	assert.Equal(t, "Ada", user.FirstName)
	assert.True(t, user.IsVerified)
}

func TestUserProfile_BareObject(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"_id":"u2","firstName":"Bo"}`))
	}, "tok")

	user, err := client.UserProfile(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "u2", user.ID)
}

func TestAuthenticatedCall_WithoutToken(t *testing.T) {
	called := false
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		called = true
	}, "")

	_, err := client.UserProfile(context.Background())
	require.Error(t, err)
	assert.False(t, called, "request must not reach the server without a token")
	assert.True(t, errors.Is(err, ErrNoToken))
	assert.True(t, IsAuthFailure(err))
	assert.False(t, IsNetwork(err))
}

func TestLoginUser_IsAnonymous(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Empty(t, r.Header.Get("Authorization"))
		assert.Equal(t, http.MethodPost, r.Method)

		var creds Credentials
		require.NoError(t, json.NewDecoder(r.Body).Decode(&creds))
		assert.Equal(t, "a@example.com", creds.Email)

		w.Write([]byte(`{"token":"new-token","user":{"_id":"u1"}}`))
	}, "")

	result, err := client.LoginUser(context.Background(), Credentials{Email: "a@example.com", Password: "secret1"})
	require.NoError(t, err)
	assert.Equal(t, "new-token", result.Token)
	assert.Equal(t, "u1", result.User.ID)
}

func TestErrorClassification(t *testing.T) {
	tests := []struct {
		name        string
		status      int
		body        string
		banned      bool
		notVerified bool
		auth        bool
		forbidden   bool
		conflict    bool
	}{
		{name: "banned code", status: 403, body: `{"code":"ACCOUNT_BANNED","message":"Your account has been banned"}`, banned: true},
		{name: "banned status", status: 403, body: `{"status":"banned","message":"Access denied"}`, banned: true},
		{name: "not verified", status: 403, body: `{"message":"Account not verified"}`, notVerified: true},
		{name: "expired token", status: 401, body: `{"message":"Token expired"}`, auth: true},
		{name: "wrong role", status: 403, body: `{"message":"Admins only"}`, forbidden: true},
		{name: "wrong token type", status: 403, body: `{"code":"INVALID_TOKEN_TYPE","message":"Authentication error: Invalid token type"}`, forbidden: true},
		{name: "wrong token type unauthorized", status: 401, body: `{"message":"Invalid token type"}`, forbidden: true},
		{name: "invalid token", status: 403, body: `{"message":"Authentication error: Invalid token"}`, auth: true},
		{name: "conflict status", status: 409, body: `{"message":"Request was already accepted"}`, conflict: true},
		{name: "conflict message", status: 400, body: `{"error":"This request is being edited"}`, conflict: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			}, "tok")

			_, err := client.Bookings(context.Background())
			require.Error(t, err)

			var apiErr *APIError
			require.ErrorAs(t, err, &apiErr)
			assert.Equal(t, tt.status, apiErr.StatusCode)
			assert.Equal(t, tt.banned, IsBanned(err), "banned")
			assert.Equal(t, tt.notVerified, IsNotVerified(err), "not verified")
			assert.Equal(t, tt.auth, IsAuthFailure(err), "auth failure")
			assert.Equal(t, tt.forbidden, IsForbidden(err), "forbidden")
			assert.Equal(t, tt.conflict, IsConflict(err), "conflict")
			assert.False(t, IsNetwork(err))
		})
	}
}

func TestErrorBody_PlainText(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		io.WriteString(w, "upstream down")
	}, "tok")

	err := client.MarkSeen(context.Background(), "a1")
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, "upstream down", apiErr.Message)
}

func TestNetworkFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	client := NewClient(url, StaticTokenSource("tok"), 0, zap.NewNop())
	_, err := client.MatchingRequests(context.Background())
	require.Error(t, err)
	assert.True(t, IsNetwork(err))
	assert.False(t, IsAuthFailure(err))
}

func TestMatchingRequests_DecodesListShapes(t *testing.T) {
	bodies := []string{
		`[{"_id":"r1","status":"Waiting","requester":"u9"}]`,
		`{"data":[{"_id":"r1","status":"Waiting","requester":"u9"}]}`,
		`{"success":true,"requests":[{"_id":"r1","status":"Waiting","requester":{"_id":"u9","firstName":"Cy"}}]}`,
	}

	for _, body := range bodies {
		client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/user/matching-requests", r.URL.Path)
			w.Write([]byte(body))
		}, "tok")

		reqs, err := client.MatchingRequests(context.Background())
		require.NoError(t, err, body)
		require.Len(t, reqs, 1)
		assert.Equal(t, "r1", reqs[0].ID)
		assert.Equal(t, "u9", reqs[0].RequesterID())
	}
}

func TestRequestActions_Paths(t *testing.T) {
	type call struct{ method, path string }
	var calls []call

	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls = append(calls, call{r.Method, r.URL.Path})
		w.Write([]byte(`{"_id":"r1","status":"Working"}`))
	}, "tok")
	ctx := context.Background()

	_, err := client.AcceptRequest(ctx, "r1")
	require.NoError(t, err)
	require.NoError(t, client.DeclineRequest(ctx, "r1"))
	_, err = client.CancelRequest(ctx, "r1")
	require.NoError(t, err)
	_, err = client.UpdateRequest(ctx, "r1", model.ServiceRequestUpdate{TypeOfWork: "Plumbing"})
	require.NoError(t, err)
	require.NoError(t, client.DeleteRequest(ctx, "r1"))
	_, err = client.UpdateBookingStatus(ctx, "b1", "Complete")
	require.NoError(t, err)

	assert.Equal(t, []call{
		{http.MethodPost, "/user/service-request/r1/accept"},
		{http.MethodPost, "/user/service-request/r1/decline"},
		{http.MethodPut, "/user/service-request/r1/cancel"},
		{http.MethodPut, "/user/service-request/r1"},
		{http.MethodDelete, "/user/service-request/r1"},
		{http.MethodPut, "/user/booking/b1/status"},
	}, calls)
}

func TestChatHistory_QueryParameter(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/user/chat-history", r.URL.Path)
		assert.Equal(t, "a1", r.URL.Query().Get("appointmentId"))
		w.Write([]byte(`{"messages":[{"_id":"m1","appointmentId":"a1","message":"hi","status":"seen"}]}`))
	}, "tok")

	msgs, err := client.ChatHistory(context.Background(), "a1")
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, model.MessageSeen, msgs[0].Status)
	assert.Equal(t, "hi", msgs[0].Text)
}
