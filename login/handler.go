package login

import (
	"context"
	"errors"
	"net/http"
	"net/url"

	"locktracker/users"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// UserStore is the account storage the auth pages need.
type UserStore interface {
	Create(ctx context.Context, email, password string) (*users.User, error)
	Authenticate(ctx context.Context, email, password string) (*users.User, error)
	GetByEmail(ctx context.Context, email string) (*users.User, error)
	CreateResetToken(ctx context.Context, userID int) (string, error)
	ResetPassword(ctx context.Context, token, password string) error
}

// Notifier sends account emails.
type Notifier interface {
	SendWelcome(to string) error
	SendPasswordReset(to, resetLink string) error
}

const invalidCredentials = "Invalid email or password."

type Handler struct {
	users  UserStore
	signer *Signer
	mail   Notifier
	log    *zap.Logger
	appURL string
	secure bool
}

func NewHandler(u UserStore, s *Signer, mail Notifier, log *zap.Logger, appURL string, secureCookie bool) *Handler {
	return &Handler{users: u, signer: s, mail: mail, log: log, appURL: appURL, secure: secureCookie}
}

func (h *Handler) RegisterRoutes(r *gin.Engine) {
	r.GET("/signup", h.signupPage)
	r.POST("/signup", h.signup)
	r.GET("/login", h.loginPage)
	r.POST("/login", h.login)
	r.GET("/logout", h.logout)
	r.GET("/forgot-password", h.forgotPage)
	r.POST("/forgot-password", h.forgot)
	r.GET("/reset-password", h.resetPage)
	r.POST("/reset-password", h.reset)
}

func (h *Handler) startSession(c *gin.Context, u *users.User) bool {
	token, claims, err := h.signer.Sign(u.ID, u.Email)
	if err != nil {
		h.log.Error("login: sign token", zap.Int("user_id", u.ID), zap.Error(err))
		return false
	}
	maxAge := int(claims.Expiry().Sub(h.signer.now()).Seconds())
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(CookieName, token, maxAge, "/", "", h.secure, true)
	return true
}

func (h *Handler) signupPage(c *gin.Context) {
	c.HTML(http.StatusOK, "signup.html", gin.H{})
}

func (h *Handler) signup(c *gin.Context) {
	email := c.PostForm("email")
	password := c.PostForm("password")

	u, err := h.users.Create(c.Request.Context(), email, password)
	if err != nil {
		msg := "Signup failed. Please try again."
		switch {
		case errors.Is(err, users.ErrEmailTaken):
			msg = "This email is already registered. Try logging in."
		case errors.Is(err, users.ErrWeakPassword):
			msg = "Password must be at least 6 characters."
		case errors.Is(err, users.ErrInvalidEmail):
			msg = "Please enter a valid email address."
		default:
			h.log.Error("login: signup", zap.String("email", email), zap.Error(err))
		}
		c.HTML(http.StatusOK, "signup.html", gin.H{"error": msg, "email": email})
		return
	}
	if err := h.mail.SendWelcome(u.Email); err != nil {
		h.log.Warn("login: send welcome email", zap.String("email", u.Email), zap.Error(err))
	}
	if !h.startSession(c, u) {
		c.HTML(http.StatusOK, "signup.html", gin.H{"error": "Signup failed. Please try again."})
		return
	}
	c.Redirect(http.StatusSeeOther, "/")
}

func (h *Handler) loginPage(c *gin.Context) {
	c.HTML(http.StatusOK, "login.html", gin.H{"passwordReset": c.Query("notice") == "password_reset"})
}

func (h *Handler) login(c *gin.Context) {
	email := c.PostForm("email")
	u, err := h.users.Authenticate(c.Request.Context(), email, c.PostForm("password"))
	if err != nil {
		if !errors.Is(err, users.ErrInvalidCredentials) {
			h.log.Error("login: authenticate", zap.String("email", email), zap.Error(err))
		}
		c.HTML(http.StatusOK, "login.html", gin.H{"error": invalidCredentials, "email": email})
		return
	}
	if !h.startSession(c, u) {
		c.HTML(http.StatusOK, "login.html", gin.H{"error": invalidCredentials, "email": email})
		return
	}
	c.Redirect(http.StatusSeeOther, "/")
}

func (h *Handler) logout(c *gin.Context) {
	if token := RequestToken(c); token != "" {
		if err := h.signer.Revoke(c.Request.Context(), token); err != nil {
			h.log.Warn("login: revoke token", zap.Error(err))
		}
	}
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(CookieName, "", -1, "/", "", h.secure, true)
	c.Redirect(http.StatusSeeOther, "/login")
}

const forgotAck = "If that email is registered, a reset link is on its way."

func (h *Handler) forgotPage(c *gin.Context) {
	c.HTML(http.StatusOK, "forgot.html", gin.H{})
}

// forgot answers identically whether or not the account exists.
func (h *Handler) forgot(c *gin.Context) {
	ctx := c.Request.Context()
	email := c.PostForm("email")
	u, err := h.users.GetByEmail(ctx, email)
	if err == nil {
		token, err := h.users.CreateResetToken(ctx, u.ID)
		if err != nil {
			h.log.Error("login: create reset token", zap.Int("user_id", u.ID), zap.Error(err))
		} else {
			link := h.appURL + "/reset-password?token=" + url.QueryEscape(token)
			if err := h.mail.SendPasswordReset(u.Email, link); err != nil {
				h.log.Warn("login: send reset email", zap.String("email", u.Email), zap.Error(err))
			}
		}
	} else if !errors.Is(err, users.ErrNotFound) {
		h.log.Error("login: lookup for reset", zap.String("email", email), zap.Error(err))
	}
	c.HTML(http.StatusOK, "forgot.html", gin.H{"notice": forgotAck})
}

func (h *Handler) resetPage(c *gin.Context) {
	c.HTML(http.StatusOK, "reset.html", gin.H{"token": c.Query("token")})
}

func (h *Handler) reset(c *gin.Context) {
	token := c.PostForm("token")
	err := h.users.ResetPassword(c.Request.Context(), token, c.PostForm("password"))
	if err != nil {
		msg := "This reset link is invalid or has expired."
		switch {
		case errors.Is(err, users.ErrWeakPassword):
			msg = "Password must be at least 6 characters."
		case errors.Is(err, users.ErrInvalidResetToken):
		default:
			h.log.Error("login: reset password", zap.Error(err))
		}
		c.HTML(http.StatusOK, "reset.html", gin.H{"token": token, "error": msg})
		return
	}
	c.Redirect(http.StatusSeeOther, "/login?notice=password_reset")
}
