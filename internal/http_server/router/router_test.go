package router

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"lockify/internal/auth"
	resp "lockify/internal/lib/api/response"
	"lockify/internal/lib/jwt"
	"lockify/internal/lib/logger/handlers/slogdiscard"
	"lockify/internal/lib/validator"
	"lockify/internal/models"
	"lockify/internal/storage/memory"
	"lockify/internal/vault"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type inbox struct {
	mu     sync.Mutex
	tokens map[string]string
}

func (i *inbox) Dispatch(email, token string) {
	i.mu.Lock()
	defer i.mu.Unlock()

	i.tokens[email] = token
}

func (i *inbox) token(email string) string {
	i.mu.Lock()
	defer i.mu.Unlock()

	return i.tokens[email]
}

type env struct {
	handler http.Handler
	inbox   *inbox
}

func newEnv(t *testing.T) *env {
	t.Helper()

	log := slogdiscard.NewDiscardLogger()
	store := memory.New()
	box := &inbox{tokens: map[string]string{}}
	issuer := jwt.NewIssuer("test-secret", time.Hour)

	return &env{
		handler: New(Deps{
			Log:      log,
			Validate: validator.New(),
			Auth:     auth.New(log, store, store, box, issuer),
			Vault:    vault.New(log, store),
			Tokens:   issuer,
		}),
		inbox: box,
	}
}

func (e *env) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}

	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	rr := httptest.NewRecorder()
	e.handler.ServeHTTP(rr, req)

	return rr
}

type loginResponse struct {
	resp.Response
	Token string            `json:"token"`
	User  models.PublicUser `json:"user"`
}

type entryResponse struct {
	resp.Response
	Entry models.Entry `json:"entry"`
}

type listResponse struct {
	resp.Response
	Entries []models.Entry `json:"entries"`
}

func decode[T any](t *testing.T, rr *httptest.ResponseRecorder) T {
	t.Helper()

	var v T
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &v), rr.Body.String())

	return v
}

// signUp registers, verifies and logs in an account, returning its token.
func (e *env) signUp(t *testing.T, firstName, email, gender string) string {
	t.Helper()

	rr := e.do(t, http.MethodPost, "/register", "", map[string]string{
		"firstName": firstName,
		"email":     email,
		"password":  "pw-" + firstName,
		"gender":    gender,
	})
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())

	rr = e.do(t, http.MethodGet, "/verification?token="+e.inbox.token(email), "", nil)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	rr = e.do(t, http.MethodPost, "/login", "", map[string]string{
		"email":    email,
		"password": "pw-" + firstName,
	})
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	return decode[loginResponse](t, rr).Token
}

func TestRouter_RegisterVerifyLogin(t *testing.T) {
	e := newEnv(t)

	rr := e.do(t, http.MethodPost, "/register", "", map[string]string{
		"firstName": "Alice",
		"email":     "alice@gmail.com",
		"password":  "s3cret",
		"gender":    "female",
	})
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	assert.NotContains(t, rr.Body.String(), "s3cret")
	assert.NotContains(t, rr.Body.String(), e.inbox.token("alice@gmail.com"))

	rr = e.do(t, http.MethodPost, "/register", "", map[string]string{
		"firstName": "Alice",
		"email":     "alice@gmail.com",
		"password":  "other",
		"gender":    "female",
	})
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr = e.do(t, http.MethodPost, "/login", "", map[string]string{
		"email":    "alice@gmail.com",
		"password": "s3cret",
	})
	assert.Equal(t, http.StatusUnauthorized, rr.Code)

	rr = e.do(t, http.MethodGet, "/verification?token=deadbeef", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)

	rr = e.do(t, http.MethodGet, "/verification?token="+e.inbox.token("alice@gmail.com"), "", nil)
	require.Equal(t, http.StatusOK, rr.Code)

	rr = e.do(t, http.MethodPost, "/login", "", map[string]string{
		"email":    "alice@gmail.com",
		"password": "wrong",
	})
	assert.Equal(t, http.StatusUnauthorized, rr.Code)

	rr = e.do(t, http.MethodPost, "/login", "", map[string]string{
		"email":    "alice@gmail.com",
		"password": "s3cret",
	})
	require.Equal(t, http.StatusOK, rr.Code)

	body := decode[loginResponse](t, rr)
	assert.NotEmpty(t, body.Token)
	assert.Equal(t, models.PublicUser{
		FirstName: "Alice",
		Email:     "alice@gmail.com",
		Gender:    "female",
	}, body.User)
	assert.NotContains(t, rr.Body.String(), "s3cret")
}

func TestRouter_RegisterRejectsForeignDomain(t *testing.T) {
	e := newEnv(t)

	rr := e.do(t, http.MethodPost, "/register", "", map[string]string{
		"firstName": "Carol",
		"email":     "carol@yahoo.com",
		"password":  "pw",
		"gender":    "other",
	})
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestRouter_RegisterRejectsBlankFirstName(t *testing.T) {
	e := newEnv(t)

	rr := e.do(t, http.MethodPost, "/register", "", map[string]string{
		"firstName": "   ",
		"email":     "blank@gmail.com",
		"password":  "pw",
		"gender":    "other",
	})
	require.Equal(t, http.StatusBadRequest, rr.Code, rr.Body.String())
	assert.Equal(t, resp.StatusError, decode[resp.Response](t, rr).Status)
	assert.Empty(t, e.inbox.token("blank@gmail.com"))

	rr = e.do(t, http.MethodPost, "/register", "", map[string]string{
		"firstName": "  Dana  ",
		"email":     "dana@gmail.com",
		"password":  "pw",
		"gender":    "other",
	})
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	assert.Contains(t, rr.Body.String(), `"firstName":"Dana"`)
}

func TestRouter_VaultRequiresToken(t *testing.T) {
	e := newEnv(t)

	rr := e.do(t, http.MethodGet, "/find", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
	assert.Equal(t, "Access denied", decode[resp.Response](t, rr).Message)

	rr = e.do(t, http.MethodGet, "/find", "not-a-jwt", nil)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
	assert.Equal(t, "Invalid token", decode[resp.Response](t, rr).Message)
}

func TestRouter_VaultIsolation(t *testing.T) {
	e := newEnv(t)

	alice := e.signUp(t, "Alice", "alice@gmail.com", "female")
	bob := e.signUp(t, "Bob", "bob@gmail.com", "male")

	rr := e.do(t, http.MethodPost, "/add", alice, map[string]string{
		"url":         "https://github.com",
		"password":    "gh-pass",
		"description": "work",
	})
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())

	created := decode[entryResponse](t, rr).Entry
	assert.Equal(t, "alice@gmail.com", created.UserEmail)
	assert.NotEmpty(t, created.ID)

	rr = e.do(t, http.MethodGet, "/find", bob, nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Empty(t, decode[listResponse](t, rr).Entries)

	rr = e.do(t, http.MethodGet, "/find/"+created.ID, bob, nil)
	assert.Equal(t, http.StatusNotFound, rr.Code)

	rr = e.do(t, http.MethodPut, "/update/"+created.ID, bob, map[string]string{
		"url":      "https://evil.example",
		"password": "x",
	})
	assert.Equal(t, http.StatusNotFound, rr.Code)

	rr = e.do(t, http.MethodDelete, "/delete/"+created.ID, bob, nil)
	assert.Equal(t, http.StatusNotFound, rr.Code)

	rr = e.do(t, http.MethodGet, "/find/"+created.ID, alice, nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "gh-pass", decode[entryResponse](t, rr).Entry.Password)

	rr = e.do(t, http.MethodPut, "/update/"+created.ID, alice, map[string]string{
		"url":      "https://github.com",
		"password": "rotated",
	})
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "rotated", decode[entryResponse](t, rr).Entry.Password)

	rr = e.do(t, http.MethodDelete, "/user/delete/alice@gmail.com", bob, nil)
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestRouter_DeleteAll(t *testing.T) {
	e := newEnv(t)

	alice := e.signUp(t, "Alice", "alice@gmail.com", "female")

	for _, u := range []string{"https://a.example", "https://b.example"} {
		rr := e.do(t, http.MethodPost, "/add", alice, map[string]string{"url": u, "password": "p"})
		require.Equal(t, http.StatusCreated, rr.Code)
	}

	rr := e.do(t, http.MethodGet, "/find", alice, nil)
	require.Equal(t, http.StatusOK, rr.Code)

	list := decode[listResponse](t, rr).Entries
	require.Len(t, list, 2)
	assert.Equal(t, "https://a.example", list[0].URL)
	assert.Equal(t, "https://b.example", list[1].URL)

	rr = e.do(t, http.MethodDelete, "/delete", alice, nil)
	require.Equal(t, http.StatusOK, rr.Code)

	rr = e.do(t, http.MethodGet, "/find", alice, nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `[]`, mustField(t, rr, "entries"))
}

func TestRouter_DeleteAccount(t *testing.T) {
	e := newEnv(t)

	alice := e.signUp(t, "Alice", "alice@gmail.com", "female")

	rr := e.do(t, http.MethodPost, "/add", alice, map[string]string{"url": "https://a.example", "password": "p"})
	require.Equal(t, http.StatusCreated, rr.Code)

	rr = e.do(t, http.MethodDelete, "/user/delete/alice@gmail.com", alice, nil)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	rr = e.do(t, http.MethodGet, "/find", alice, nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Empty(t, decode[listResponse](t, rr).Entries)

	rr = e.do(t, http.MethodPost, "/add", alice, map[string]string{"url": "https://a.example", "password": "p"})
	assert.Equal(t, http.StatusNotFound, rr.Code)

	rr = e.do(t, http.MethodPost, "/login", "", map[string]string{
		"email":    "alice@gmail.com",
		"password": "pw-Alice",
	})
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestRouter_Healthz(t *testing.T) {
	e := newEnv(t)

	rr := e.do(t, http.MethodGet, "/healthz", "", nil)
	assert.Equal(t, http.StatusOK, rr.Code)
}

func mustField(t *testing.T, rr *httptest.ResponseRecorder, name string) string {
	t.Helper()

	var m map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &m))

	raw, ok := m[name]
	require.True(t, ok, "missing field %q", name)

	return string(raw)
}
