package server

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/phrasebook-app/apiserver/config"
	"github.com/phrasebook-app/apiserver/internal/auth"
	"github.com/phrasebook-app/apiserver/internal/pubsub"
	"github.com/phrasebook-app/apiserver/internal/resolvers"
	"github.com/phrasebook-app/apiserver/internal/store/memory"
	"github.com/phrasebook-app/apiserver/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testEnv struct {
	store  *memory.Store
	tokens *auth.TokenService
	server *httptest.Server
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	mem := memory.New()
	tokens, err := auth.NewTokenService("test-secret", time.Minute)
	require.NoError(t, err)
	bus := pubsub.NewBus[types.MessageCreated]()
	res := resolvers.New(resolvers.Deps{
		Messages:  mem.Messages(),
		Users:     mem.Users(),
		Tokens:    tokens,
		Publisher: bus,
		Feed:      bus,
	})
	srv := httptest.NewServer(Routes(res, tokens, []string{"*"}, nil))
	t.Cleanup(func() {
		bus.Close()
		srv.Close()
	})
	return &testEnv{store: mem, tokens: tokens, server: srv}
}

func (e *testEnv) do(t *testing.T, method, path, token string, body any) (*http.Response, []byte) {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}
	req, err := http.NewRequest(method, e.server.URL+path, reader)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("x-token", token)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	var buf bytes.Buffer
	_, err = buf.ReadFrom(resp.Body)
	require.NoError(t, err)
	return resp, buf.Bytes()
}

func (e *testEnv) signUp(t *testing.T, username string) string {
	t.Helper()
	resp, body := e.do(t, http.MethodPost, "/auth/sign-up", "", map[string]string{
		"username": username,
		"email":    username + "@example.com",
		"password": "password123",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(body))
	var token resolvers.Token
	require.NoError(t, json.Unmarshal(body, &token))
	return token.Token
}

func messageBody(sentence string) map[string]any {
	return map[string]any{
		"category":         "idiom",
		"keyPhrase":        "hit the sack",
		"keyPhraseMeaning": "go to bed",
		"sentence":         sentence,
		"sentenceMeaning":  "I am going to bed.",
	}
}

func TestHealthz(t *testing.T) {
	env := newTestEnv(t)
	resp, _ := env.do(t, http.MethodGet, "/healthz", "", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestMessageLifecycle(t *testing.T) {
	env := newTestEnv(t)
	token := env.signUp(t, "kevin")

	resp, body := env.do(t, http.MethodPost, "/messages", token, messageBody("I'm beat, time to hit the sack."))
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(body))
	var created struct {
		ID   int        `json:"id"`
		From string     `json:"from"`
		User types.User `json:"user"`
	}
	require.NoError(t, json.Unmarshal(body, &created))
	assert.Equal(t, "kevin", created.From)
	assert.Equal(t, "kevin", created.User.Username)

	resp, body = env.do(t, http.MethodPost, fmt.Sprintf("/messages/%d/like", created.ID), token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `{"ok":true}`, string(body))

	resp, body = env.do(t, http.MethodGet, fmt.Sprintf("/messages/%d", created.ID), "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var fetched types.Message
	require.NoError(t, json.Unmarshal(body, &fetched))
	assert.Equal(t, 1, fetched.Likes)

	resp, body = env.do(t, http.MethodGet, "/users/me", token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var me struct {
		Username   string `json:"username"`
		MessageIDs []int  `json:"messageIds"`
	}
	require.NoError(t, json.Unmarshal(body, &me))
	assert.Equal(t, []int{created.ID}, me.MessageIDs)

	resp, body = env.do(t, http.MethodDelete, fmt.Sprintf("/messages/%d", created.ID), token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `{"ok":true}`, string(body))

	resp, body = env.do(t, http.MethodGet, fmt.Sprintf("/messages/%d", created.ID), "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "null", strings.TrimSpace(string(body)))
}

func TestMessages_Pagination(t *testing.T) {
	env := newTestEnv(t)
	token := env.signUp(t, "kevin")
	for i := 0; i < 3; i++ {
		resp, _ := env.do(t, http.MethodPost, "/messages", token, messageBody(fmt.Sprintf("sentence %d", i)))
		require.Equal(t, http.StatusCreated, resp.StatusCode)
		time.Sleep(2 * time.Millisecond)
	}

	resp, body := env.do(t, http.MethodGet, "/messages?limit=2", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var page struct {
		Edges    []types.Message `json:"edges"`
		PageInfo types.PageInfo  `json:"pageInfo"`
	}
	require.NoError(t, json.Unmarshal(body, &page))
	require.Len(t, page.Edges, 2)
	assert.Equal(t, []int{3, 2}, []int{page.Edges[0].ID, page.Edges[1].ID})
	assert.True(t, page.PageInfo.HasNextPage)
	require.NotNil(t, page.PageInfo.EndCursor)

	resp, body = env.do(t, http.MethodGet, "/messages?limit=2&cursor="+*page.PageInfo.EndCursor, "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.NoError(t, json.Unmarshal(body, &page))
	require.Len(t, page.Edges, 1)
	assert.Equal(t, 1, page.Edges[0].ID)
	assert.False(t, page.PageInfo.HasNextPage)

	resp, _ = env.do(t, http.MethodGet, "/messages?cursor=%25%25bad", "", nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestErrorMapping(t *testing.T) {
	env := newTestEnv(t)
	owner := env.signUp(t, "kevin")
	other := env.signUp(t, "aaron")

	resp, body := env.do(t, http.MethodPost, "/messages", "", messageBody("anonymous"))
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Contains(t, string(body), `"code":"UNAUTHENTICATED"`)

	resp, body = env.do(t, http.MethodPost, "/messages", "not-a-token", messageBody("expired"))
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Contains(t, string(body), "Your session expired. Sign in again.")

	resp, _ = env.do(t, http.MethodPost, "/messages", owner, map[string]any{"category": "idiom"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, _ = env.do(t, http.MethodPost, "/messages", owner, messageBody("mine"))
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	resp, _ = env.do(t, http.MethodDelete, "/messages/1", other, nil)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	resp, _ = env.do(t, http.MethodPost, "/auth/sign-up", "", map[string]string{
		"username": "kevin", "email": "k2@example.com", "password": "password123",
	})
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	resp, _ = env.do(t, http.MethodPut, "/users/me/avatar", owner, nil)
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}

func TestSignIn_BearerHeader(t *testing.T) {
	env := newTestEnv(t)
	env.signUp(t, "chrisu")

	resp, body := env.do(t, http.MethodPost, "/auth/sign-in", "", map[string]string{
		"login": "chrisu@example.com", "password": "password123",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
	var token resolvers.Token
	require.NoError(t, json.Unmarshal(body, &token))

	req, err := http.NewRequest(http.MethodGet, env.server.URL+"/users/me", nil)
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer "+token.Token)
	meResp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer meResp.Body.Close()
	var me types.User
	require.NoError(t, json.NewDecoder(meResp.Body).Decode(&me))
	assert.Equal(t, "chrisu", me.Username)
}

func TestMessageStream(t *testing.T) {
	env := newTestEnv(t)
	token := env.signUp(t, "kevin")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, env.server.URL+"/messages/stream", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	created, body := env.do(t, http.MethodPost, "/messages", token, messageBody("streamed"))
	require.Equal(t, http.StatusCreated, created.StatusCode, string(body))

	scanner := bufio.NewScanner(resp.Body)
	var data string
	for scanner.Scan() {
		line := scanner.Text()
		if strings.HasPrefix(line, "data: ") {
			data = strings.TrimPrefix(line, "data: ")
			break
		}
	}
	require.NotEmpty(t, data)
	var event struct {
		Message struct {
			Sentence string     `json:"sentence"`
			User     types.User `json:"user"`
		} `json:"message"`
	}
	require.NoError(t, json.Unmarshal([]byte(data), &event))
	assert.Equal(t, "streamed", event.Message.Sentence)
	assert.Equal(t, "kevin", event.Message.User.Username)
}

func TestNew_MemoryDriver(t *testing.T) {
	cfg := config.Config{
		ServerPort: 0,
		Database:   config.DatabaseConfig{Driver: DriverMemory},
		Auth:       config.AuthConfig{JWTSecret: "secret", TokenTTL: time.Minute},
	}
	srv, err := New(context.Background(), cfg, nil)
	require.NoError(t, err)
	require.NotNil(t, srv.Router())
	assert.Nil(t, srv.bridge)
	assert.Nil(t, srv.db)
	assert.Greater(t, srv.httpServer.WriteTimeout, requestTimeout)
}

func TestNew_RequiresSecret(t *testing.T) {
	cfg := config.Config{Database: config.DatabaseConfig{Driver: DriverMemory}}
	_, err := New(context.Background(), cfg, nil)
	assert.Error(t, err)
}

func TestNew_UnknownDriver(t *testing.T) {
	cfg := config.Config{
		Database: config.DatabaseConfig{Driver: "sqlite"},
		Auth:     config.AuthConfig{JWTSecret: "secret"},
	}
	_, err := New(context.Background(), cfg, nil)
	assert.Error(t, err)
}
