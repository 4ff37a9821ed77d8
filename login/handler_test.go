package login

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"locktracker/users"
	"locktracker/web"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeUsers struct {
	byEmail    map[string]*users.User
	passwords  map[string]string
	resets     map[string]int
	resetCalls []string
}

func newFakeUsers() *fakeUsers {
	return &fakeUsers{byEmail: map[string]*users.User{}, passwords: map[string]string{}, resets: map[string]int{}}
}

func (f *fakeUsers) Create(_ context.Context, email, password string) (*users.User, error) {
	email = users.NormalizeEmail(email)
	if _, ok := f.byEmail[email]; ok {
		return nil, users.ErrEmailTaken
	}
	if len(password) < users.MinPasswordLength {
		return nil, users.ErrWeakPassword
	}
	u := &users.User{ID: len(f.byEmail) + 1, Email: email}
	f.byEmail[email] = u
	f.passwords[email] = password
	return u, nil
}

func (f *fakeUsers) Authenticate(_ context.Context, email, password string) (*users.User, error) {
	email = users.NormalizeEmail(email)
	u, ok := f.byEmail[email]
	if !ok || f.passwords[email] != password {
		return nil, users.ErrInvalidCredentials
	}
	return u, nil
}

func (f *fakeUsers) GetByEmail(_ context.Context, email string) (*users.User, error) {
	u, ok := f.byEmail[users.NormalizeEmail(email)]
	if !ok {
		return nil, users.ErrNotFound
	}
	return u, nil
}

func (f *fakeUsers) CreateResetToken(_ context.Context, userID int) (string, error) {
	token := "tok-" + time.Now().Format("150405.000000")
	f.resets[token] = userID
	return token, nil
}

func (f *fakeUsers) ResetPassword(_ context.Context, token, password string) error {
	f.resetCalls = append(f.resetCalls, token)
	if _, ok := f.resets[token]; !ok {
		return users.ErrInvalidResetToken
	}
	delete(f.resets, token)
	return nil
}

type fakeMail struct {
	welcomed []string
	links    []string
}

func (m *fakeMail) SendWelcome(to string) error { m.welcomed = append(m.welcomed, to); return nil }
func (m *fakeMail) SendPasswordReset(to, link string) error {
	m.links = append(m.links, link)
	return nil
}

func setupRouter(h *Handler, s *Signer) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.SetHTMLTemplate(web.Templates())
	h.RegisterRoutes(r)
	r.GET("/", RequirePage(s), func(c *gin.Context) {
		id, _ := CurrentUser(c)
		c.String(http.StatusOK, "hello "+id.Email)
	})
	r.GET("/api/me", RequireAPI(s), func(c *gin.Context) {
		id, _ := CurrentUser(c)
		c.JSON(http.StatusOK, id)
	})
	return r
}

func postForm(r http.Handler, path string, form url.Values, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	for _, c := range cookies {
		req.AddCookie(c)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func sessionCookie(t *testing.T, w *httptest.ResponseRecorder) *http.Cookie {
	t.Helper()
	for _, c := range w.Result().Cookies() {
		if c.Name == CookieName {
			return c
		}
	}
	t.Fatalf("no session cookie in response")
	return nil
}

func TestSignupLoginLogout(t *testing.T) {
	store, mail := newFakeUsers(), &fakeMail{}
	s := newSigner()
	r := setupRouter(NewHandler(store, s, mail, zap.NewNop(), "http://localhost:5000", false), s)

	w := postForm(r, "/signup", url.Values{"email": {"Sam@Example.com"}, "password": {"hunter22"}})
	require.Equal(t, http.StatusSeeOther, w.Code)
	assert.Equal(t, "/", w.Header().Get("Location"))
	assert.Equal(t, []string{"sam@example.com"}, mail.welcomed)

	w = postForm(r, "/login", url.Values{"email": {"sam@example.com"}, "password": {"hunter22"}})
	require.Equal(t, http.StatusSeeOther, w.Code)
	cookie := sessionCookie(t, w)
	assert.True(t, cookie.HttpOnly)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(cookie)
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "hello sam@example.com", w.Body.String())

	req = httptest.NewRequest(http.MethodGet, "/logout", nil)
	req.AddCookie(cookie)
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusSeeOther, w.Code)
	assert.Equal(t, "/login", w.Header().Get("Location"))

	// the old cookie is revoked
	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(cookie)
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusSeeOther, w.Code)
	assert.Equal(t, "/login", w.Header().Get("Location"))
}

func TestSignup_duplicate(t *testing.T) {
	store, mail := newFakeUsers(), &fakeMail{}
	s := newSigner()
	r := setupRouter(NewHandler(store, s, mail, zap.NewNop(), "", false), s)

	postForm(r, "/signup", url.Values{"email": {"sam@example.com"}, "password": {"hunter22"}})
	w := postForm(r, "/signup", url.Values{"email": {"sam@example.com"}, "password": {"hunter22"}})
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "already registered")
}

func TestLogin_invalidCredentials(t *testing.T) {
	store := newFakeUsers()
	s := newSigner()
	r := setupRouter(NewHandler(store, s, &fakeMail{}, zap.NewNop(), "", false), s)

	w := postForm(r, "/login", url.Values{"email": {"ghost@example.com"}, "password": {"whatever"}})
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), invalidCredentials)
	assert.Empty(t, w.Result().Cookies())
}

func TestRequireAPI(t *testing.T) {
	s := newSigner()
	r := setupRouter(NewHandler(newFakeUsers(), s, &fakeMail{}, zap.NewNop(), "", false), s)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/me", nil))
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	token, _, err := s.Sign(9, "kim@example.com")
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodGet, "/api/me", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "kim@example.com")
}

func TestForgotAndReset(t *testing.T) {
	store, mail := newFakeUsers(), &fakeMail{}
	s := newSigner()
	r := setupRouter(NewHandler(store, s, mail, zap.NewNop(), "http://localhost:5000", false), s)
	_, err := store.Create(context.Background(), "sam@example.com", "hunter22")
	require.NoError(t, err)

	// unknown addresses get the same answer and no email
	w := postForm(r, "/forgot-password", url.Values{"email": {"ghost@example.com"}})
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), forgotAck)
	assert.Empty(t, mail.links)

	w = postForm(r, "/forgot-password", url.Values{"email": {"sam@example.com"}})
	assert.Contains(t, w.Body.String(), forgotAck)
	require.Len(t, mail.links, 1)
	link, err := url.Parse(mail.links[0])
	require.NoError(t, err)
	assert.Equal(t, "/reset-password", link.Path)
	token := link.Query().Get("token")

	w = postForm(r, "/reset-password", url.Values{"token": {token}, "password": {"newpass1"}})
	require.Equal(t, http.StatusSeeOther, w.Code)
	assert.Equal(t, "/login?notice=password_reset", w.Header().Get("Location"))

	w = postForm(r, "/reset-password", url.Values{"token": {token}, "password": {"newpass1"}})
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "invalid or has expired")
}
