package authmock

import (
	"bytes"
	"crypto/rand"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/MrEthical07/goSession/internal/rate"
	"github.com/MrEthical07/goSession/jwt"
	"github.com/MrEthical07/goSession/middleware"
	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const (
	msgInvalidCredentials = "Invalid email or password"
	msgInvalidToken       = "Invalid token"
	msgRegistrationFailed = "Registration failed"
	msgValidationFailed   = "Validation failed"
)

// Options configures a Server. Zero values select defaults.
type Options struct {
	AccessTTL time.Duration

	// RegisterIssuesTokens makes /auth/register answer like /auth/login
	// instead of returning 201 {message, user}.
	RegisterIssuesTokens bool

	MaxFailedAttempts int
	LockoutDuration   time.Duration

	// MaxRefreshPerMinute throttles refresh per session with 429. Zero
	// disables it, as does MaxRegistrationsPerHour for sign-ups per IP.
	MaxRefreshPerMinute     int
	MaxRegistrationsPerHour int

	// Redis backs the attempt counters. When nil the server runs an
	// embedded miniredis.
	Redis redis.UniversalClient

	Hash HashParams

	// GinMode is passed to gin.SetMode when non-empty.
	GinMode string
	Logger  *slog.Logger
}

type user struct {
	id    string
	email string
	hash  string
}

type sessionRecord struct {
	sid            sessionID
	uid            string
	gen            uint64
	refreshHash    [32]byte
	accessExpired  bool
	refreshRevoked bool
}

// Server is the mock Auth Server.
type Server struct {
	opts    Options
	log     *slog.Logger
	tokens  *jwt.Manager
	limiter *rate.Limiter
	engine  *gin.Engine
	closers []func() error

	mu       sync.Mutex
	users    map[string]*user
	sessions map[sessionID]*sessionRecord
	bearers  []string

	refreshCalls  atomic.Int64
	logoutCalls   atomic.Int64
	refreshGate   atomic.Pointer[chan struct{}]
	refreshStatus atomic.Int32
	logoutDelay   atomic.Int64
}

// NewServer builds a Server with a random signing key.
func NewServer(opts Options) (*Server, error) {
	if opts.AccessTTL <= 0 {
		opts.AccessTTL = 15 * time.Minute
	}
	if opts.MaxFailedAttempts <= 0 {
		opts.MaxFailedAttempts = 5
	}
	if opts.LockoutDuration <= 0 {
		opts.LockoutDuration = 15 * time.Minute
	}
	if opts.Hash == (HashParams{}) {
		opts.Hash = HashParams{MemoryKB: 64 * 1024, Time: 3, Parallelism: 2}
	}
	log := opts.Logger
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}

	key := make([]byte, 32)
	if _, err := rand.Read(key); err != nil {
		return nil, err
	}
	tokens, err := jwt.NewManager(jwt.Config{AccessTTL: opts.AccessTTL, Key: key, Issuer: "gosession-mock"})
	if err != nil {
		return nil, err
	}

	if opts.GinMode != "" {
		gin.SetMode(opts.GinMode)
	}

	s := &Server{
		opts:     opts,
		log:      log,
		tokens:   tokens,
		users:    make(map[string]*user),
		sessions: make(map[sessionID]*sessionRecord),
	}

	rdb := opts.Redis
	if rdb == nil {
		mr, err := miniredis.Run()
		if err != nil {
			return nil, err
		}
		client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
		rdb = client
		s.closers = append(s.closers, client.Close, func() error { mr.Close(); return nil })
	}
	s.limiter = rate.New(rdb, rate.Config{
		MaxLoginAttempts:   opts.MaxFailedAttempts,
		LoginCooldown:      opts.LockoutDuration,
		MaxRefreshAttempts: opts.MaxRefreshPerMinute,
		RefreshWindow:      time.Minute,
		MaxRegistrations:   opts.MaxRegistrationsPerHour,
		RegisterWindow:     time.Hour,
	})

	s.engine = s.routes()
	return s, nil
}

// Close releases the embedded Redis, if any.
func (s *Server) Close() error {
	var errs []error
	for _, c := range s.closers {
		errs = append(errs, c())
	}
	s.closers = nil
	return errors.Join(errs...)
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.engine
}

func (s *Server) routes() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	auth := r.Group("/auth")
	auth.POST("/register", s.handleRegister)
	auth.POST("/login", s.handleLogin)
	auth.POST("/refresh", s.handleRefresh)
	auth.POST("/logout", s.handleLogout)

	api := r.Group("/api")
	api.Use(s.requireAccess)
	api.Any("/*path", s.handleDomain)
	return r
}

/*
====================================
TEST HOOKS
====================================
*/

// AddUser registers an account directly.
func (s *Server) AddUser(email, password string) error {
	hash, err := hashPassword(s.opts.Hash, password)
	if err != nil {
		return err
	}
	email = normalizeEmail(email)

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[email]; ok {
		return errors.New("authmock: user exists")
	}
	s.users[email] = &user{id: uuid.NewString(), email: email, hash: hash}
	return nil
}

// ExpireAccessTokens makes every access token issued so far fail with 401.
func (s *Server) ExpireAccessTokens() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, sess := range s.sessions {
		sess.accessExpired = true
	}
}

// RevokeRefreshTokens makes every current refresh token fail with 401.
func (s *Server) RevokeRefreshTokens() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, sess := range s.sessions {
		sess.refreshRevoked = true
	}
}

// HoldRefresh makes refresh requests wait until the returned release
// function is called.
func (s *Server) HoldRefresh() (release func()) {
	gate := make(chan struct{})
	s.refreshGate.Store(&gate)
	var once sync.Once
	return func() {
		once.Do(func() {
			s.refreshGate.Store(nil)
			close(gate)
		})
	}
}

// FailRefreshWith makes refresh answer with status (0 restores normal
// behaviour).
func (s *Server) FailRefreshWith(status int) {
	s.refreshStatus.Store(int32(status))
}

// SetLogoutDelay slows down /auth/logout.
func (s *Server) SetLogoutDelay(d time.Duration) {
	s.logoutDelay.Store(int64(d))
}

// RefreshCalls reports how many refresh requests reached the server.
func (s *Server) RefreshCalls() int64 {
	return s.refreshCalls.Load()
}

// LogoutCalls reports how many logout requests reached the server.
func (s *Server) LogoutCalls() int64 {
	return s.logoutCalls.Load()
}

// Bearers returns the access tokens presented to /api routes, in order.
func (s *Server) Bearers() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.bearers...)
}

// ActiveSessions reports sessions that can still refresh.
func (s *Server) ActiveSessions() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, sess := range s.sessions {
		if !sess.refreshRevoked {
			n++
		}
	}
	return n
}

/*
====================================
HANDLERS
====================================
*/

type credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type refreshBody struct {
	RefreshToken string `json:"refresh_token"`
}

func errorJSON(c *gin.Context, status int, msg string, details map[string]any) {
	body := gin.H{"error": msg}
	if len(details) > 0 {
		body["details"] = details
	}
	c.AbortWithStatusJSON(status, body)
}

func (s *Server) handleRegister(c *gin.Context) {
	var in credentials
	if err := c.ShouldBindJSON(&in); err != nil {
		errorJSON(c, http.StatusBadRequest, msgValidationFailed, map[string]any{"body": "Invalid JSON"})
		return
	}
	if err := s.limiter.AllowRegister(c.Request.Context(), c.ClientIP()); err != nil {
		errorJSON(c, http.StatusTooManyRequests, "Too many requests", nil)
		return
	}
	email := normalizeEmail(in.Email)
	if details := validateRegistration(email, in.Password); len(details) > 0 {
		errorJSON(c, http.StatusBadRequest, msgValidationFailed, details)
		return
	}
	if err := s.AddUser(email, in.Password); err != nil {
		errorJSON(c, http.StatusConflict, msgRegistrationFailed, nil)
		return
	}
	s.log.Info("authmock.registered", "email", email)

	if s.opts.RegisterIssuesTokens {
		s.issueForEmail(c, email)
		return
	}

	s.mu.Lock()
	u := s.users[email]
	s.mu.Unlock()
	c.JSON(http.StatusCreated, gin.H{
		"message": "User registered successfully",
		"user":    gin.H{"id": u.id, "email": u.email},
	})
}

func (s *Server) handleLogin(c *gin.Context) {
	var in credentials
	if err := c.ShouldBindJSON(&in); err != nil {
		errorJSON(c, http.StatusBadRequest, msgValidationFailed, map[string]any{"body": "Invalid JSON"})
		return
	}
	ctx := c.Request.Context()
	email := normalizeEmail(in.Email)

	// Locked accounts get the same answer as bad credentials.
	if err := s.limiter.CheckLogin(ctx, email, c.ClientIP()); err != nil {
		if !errors.Is(err, rate.ErrRateLimited) {
			errorJSON(c, http.StatusServiceUnavailable, "Service unavailable", nil)
			return
		}
		errorJSON(c, http.StatusUnauthorized, msgInvalidCredentials, nil)
		return
	}

	s.mu.Lock()
	u, ok := s.users[email]
	s.mu.Unlock()

	match := false
	if ok {
		match, _ = verifyPassword(in.Password, u.hash)
	}
	if !match {
		locked, err := s.limiter.RecordLoginFailure(ctx, email, c.ClientIP())
		if err != nil {
			s.log.Error("authmock.limiter", "error", err)
		}
		if locked {
			s.log.Warn("authmock.locked", "email", email)
		}
		errorJSON(c, http.StatusUnauthorized, msgInvalidCredentials, nil)
		return
	}

	if err := s.limiter.ResetLogin(ctx, email); err != nil {
		s.log.Error("authmock.limiter", "error", err)
	}
	s.issueForEmail(c, email)
}

func (s *Server) issueForEmail(c *gin.Context, email string) {
	sid, err := newSessionID()
	if err != nil {
		errorJSON(c, http.StatusInternalServerError, "Internal server error", nil)
		return
	}

	s.mu.Lock()
	u := s.users[email]
	sess := &sessionRecord{sid: sid, uid: u.id}
	s.sessions[sid] = sess
	s.mu.Unlock()

	s.rotate(c, sess)
}

// rotate issues a new access token and refresh token for sess. Callers must
// not hold s.mu.
func (s *Server) rotate(c *gin.Context, sess *sessionRecord) {
	secret, err := newRefreshSecret()
	if err != nil {
		errorJSON(c, http.StatusInternalServerError, "Internal server error", nil)
		return
	}

	s.mu.Lock()
	sess.gen++
	sess.refreshHash = hashRefreshSecret(secret)
	sess.accessExpired = false
	gen := sess.gen
	s.mu.Unlock()

	access, err := s.tokens.Issue(sess.uid, sess.sid.String(), gen)
	if err != nil {
		errorJSON(c, http.StatusInternalServerError, "Internal server error", nil)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"access_token":  access,
		"refresh_token": encodeRefreshToken(sess.sid, secret),
		"token_type":    "Bearer",
		"expires_in":    int64(s.opts.AccessTTL / time.Second),
	})
}

func (s *Server) handleRefresh(c *gin.Context) {
	s.refreshCalls.Add(1)

	if gate := s.refreshGate.Load(); gate != nil {
		select {
		case <-*gate:
		case <-c.Request.Context().Done():
			return
		}
	}
	if status := int(s.refreshStatus.Load()); status != 0 {
		errorJSON(c, status, http.StatusText(status), nil)
		return
	}

	var in refreshBody
	if err := c.ShouldBindJSON(&in); err != nil || in.RefreshToken == "" {
		errorJSON(c, http.StatusUnauthorized, msgInvalidToken, nil)
		return
	}
	sid, secret, err := decodeRefreshToken(in.RefreshToken)
	if err != nil {
		errorJSON(c, http.StatusUnauthorized, msgInvalidToken, nil)
		return
	}

	s.mu.Lock()
	sess, ok := s.sessions[sid]
	switch {
	case !ok || sess.refreshRevoked:
		s.mu.Unlock()
		errorJSON(c, http.StatusUnauthorized, msgInvalidToken, nil)
		return
	case sess.refreshHash != hashRefreshSecret(secret):
		// A spent token was replayed: revoke the whole session.
		delete(s.sessions, sid)
		s.mu.Unlock()
		s.log.Warn("authmock.refresh_reuse", "sid", sid.String())
		errorJSON(c, http.StatusUnauthorized, msgInvalidToken, nil)
		return
	}
	s.mu.Unlock()

	if err := s.limiter.AllowRefresh(c.Request.Context(), sid.String()); err != nil {
		errorJSON(c, http.StatusTooManyRequests, "Too many requests", nil)
		return
	}
	s.rotate(c, sess)
}

func (s *Server) handleLogout(c *gin.Context) {
	s.logoutCalls.Add(1)

	if d := time.Duration(s.logoutDelay.Load()); d > 0 {
		select {
		case <-time.After(d):
		case <-c.Request.Context().Done():
			return
		}
	}

	var in refreshBody
	_ = c.ShouldBindJSON(&in)
	if sid, _, err := decodeRefreshToken(in.RefreshToken); err == nil {
		s.mu.Lock()
		delete(s.sessions, sid)
		s.mu.Unlock()
	} else if token, ok := middleware.BearerToken(c.GetHeader("Authorization")); ok {
		if claims, err := s.tokens.Parse(token); err == nil {
			s.deleteSession(claims.SID)
		}
	}
	c.JSON(http.StatusOK, gin.H{"message": "Logged out successfully"})
}

func (s *Server) deleteSession(sidText string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for sid := range s.sessions {
		if sid.String() == sidText {
			delete(s.sessions, sid)
			return
		}
	}
}

func (s *Server) requireAccess(c *gin.Context) {
	token, ok := middleware.BearerToken(c.GetHeader("Authorization"))
	if !ok {
		errorJSON(c, http.StatusUnauthorized, "Missing bearer token", nil)
		return
	}

	s.mu.Lock()
	s.bearers = append(s.bearers, token)
	s.mu.Unlock()

	claims, err := s.tokens.Parse(token)
	if err != nil {
		errorJSON(c, http.StatusUnauthorized, msgInvalidToken, nil)
		return
	}

	s.mu.Lock()
	valid := false
	for _, sess := range s.sessions {
		if sess.sid.String() == claims.SID {
			valid = sess.gen == claims.Gen && !sess.accessExpired
			break
		}
	}
	s.mu.Unlock()

	if !valid {
		errorJSON(c, http.StatusUnauthorized, "Token expired", nil)
		return
	}
	c.Set("user_id", claims.UID)
	c.Next()
}

func (s *Server) handleDomain(c *gin.Context) {
	body, _ := io.ReadAll(io.LimitReader(c.Request.Body, 1<<20))
	c.JSON(http.StatusOK, gin.H{
		"method":  c.Request.Method,
		"path":    c.Param("path"),
		"query":   c.Request.URL.RawQuery,
		"user_id": c.GetString("user_id"),
		"body":    string(bytes.TrimSpace(body)),
	})
}

// String describes the server state for debugging.
func (s *Server) String() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return fmt.Sprintf("authmock{users=%d sessions=%d}", len(s.users), len(s.sessions))
}
