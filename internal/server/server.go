package server

import (
	"database/sql"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/dukerupert/habitflow/internal/auth"
	"github.com/dukerupert/habitflow/internal/config"
	"github.com/dukerupert/habitflow/internal/email"
	"github.com/dukerupert/habitflow/internal/handler"
	"github.com/dukerupert/habitflow/internal/middleware"
	"github.com/dukerupert/habitflow/internal/push"
	"github.com/dukerupert/habitflow/internal/store"
	ws "github.com/dukerupert/habitflow/internal/websocket"
)

// Auth endpoint limits, in requests per minute.
const (
	authRateLimit   = 10 // per client IP and email
	authIPRateLimit = 30 // per client IP
)

type Server struct {
	hub            *ws.Hub
	issuer         *auth.Issuer
	authH          *handler.AuthHandler
	profileH       *handler.ProfileHandler
	habitH         *handler.HabitHandler
	statsH         *handler.StatsHandler
	supportH       *handler.SupportHandler
	coachH         *handler.CoachHandler
	pushH          *handler.PushHandler
	habitStore     *store.HabitStore
	resetStore     *store.PasswordResetStore
	notifier       *push.Notifier
	emailLimiter   *middleware.Limiter
	ipLimiter      *middleware.Limiter
	allowedOrigins []string
	logger         *slog.Logger
}

func New(db *sql.DB, cfg config.Config, mailer *email.Client, replier handler.Replier, logger *slog.Logger) *Server {
	hub := ws.NewHub(logger.With("component", "websocket"))
	issuer := auth.NewIssuer(cfg.JWTSecret)

	userStore := store.NewUserStore(db)
	habitStore := store.NewHabitStore(db)
	completionStore := store.NewCompletionStore(db)
	supportStore := store.NewSupportStore(db)
	resetStore := store.NewPasswordResetStore(db)
	pushStore := store.NewPushStore(db)

	pushService := push.NewService(cfg.Push.VAPIDPublicKey, cfg.Push.VAPIDPrivateKey, cfg.Push.Subscriber)

	tz := cfg.DefaultTimezone

	return &Server{
		hub:            hub,
		issuer:         issuer,
		authH:          handler.NewAuthHandler(userStore, resetStore, issuer, mailer, logger.With("component", "auth")),
		profileH:       handler.NewProfileHandler(userStore, logger.With("component", "profile")),
		habitH:         handler.NewHabitHandler(userStore, habitStore, completionStore, hub, tz, logger.With("component", "habit")),
		statsH:         handler.NewStatsHandler(userStore, habitStore, completionStore, tz, logger.With("component", "stats")),
		supportH:       handler.NewSupportHandler(userStore, supportStore, logger.With("component", "support")),
		coachH:         handler.NewCoachHandler(userStore, habitStore, completionStore, replier, tz, logger.With("component", "coach")),
		pushH:          handler.NewPushHandler(pushStore, pushService, logger.With("component", "push")),
		habitStore:     habitStore,
		resetStore:     resetStore,
		notifier:       push.NewNotifier(pushService, pushStore, logger.With("component", "push")),
		emailLimiter:   middleware.NewLimiter(authRateLimit, time.Minute),
		ipLimiter:      middleware.NewLimiter(authIPRateLimit, time.Minute),
		allowedOrigins: cfg.AllowedOrigins(),
		logger:         logger,
	}
}

// HabitStore returns the habit store for the reminder scheduler.
func (s *Server) HabitStore() *store.HabitStore {
	return s.habitStore
}

// PasswordResetStore returns the reset store for cleanup tasks.
func (s *Server) PasswordResetStore() *store.PasswordResetStore {
	return s.resetStore
}

// PushNotifier returns the web push fan-out for the reminder scheduler.
func (s *Server) PushNotifier() *push.Notifier {
	return s.notifier
}

// Wait blocks until background work started by requests is done.
func (s *Server) Wait() {
	s.authH.Wait()
}

// CleanupRateLimits drops idle rate limit buckets.
func (s *Server) CleanupRateLimits() {
	s.emailLimiter.Cleanup()
	s.ipLimiter.Cleanup()
}

func (s *Server) Router() http.Handler {
	mux := http.NewServeMux()

	// Public routes
	mux.HandleFunc("GET /{$}", s.rootHandler)
	mux.HandleFunc("GET /health", s.healthHandler)
	mux.HandleFunc("GET /ws", ws.HandleWebSocket(s.hub, s.issuer, s.allowedOrigins, s.logger.With("component", "websocket")))
	mux.HandleFunc("POST /api/auth/signup", s.rateLimitedHandler(s.authH.Signup))
	mux.HandleFunc("POST /api/auth/login", s.rateLimitedHandler(s.authH.Login))
	mux.HandleFunc("POST /api/auth/forgot-password", s.rateLimitedHandler(s.authH.ForgotPassword))
	mux.HandleFunc("POST /api/auth/reset-password", s.rateLimitedHandler(s.authH.ResetPassword))

	s.registerProtectedRoutes(mux)

	mux.HandleFunc("/", s.notFoundHandler)

	var h http.Handler = mux
	h = middleware.CORS(s.allowedOrigins)(h)
	return middleware.RequestLogger(s.logger.With("component", "http"))(h)
}

func (s *Server) registerProtectedRoutes(mux *http.ServeMux) {
	requireAuth := middleware.RequireAuth(s.issuer)
	handle := func(pattern string, h http.HandlerFunc) {
		mux.Handle(pattern, requireAuth(h))
	}

	// Account
	handle("GET /api/auth/me", s.authH.Me)
	handle("POST /api/auth/change-password", s.authH.ChangePassword)
	handle("GET /api/profile", s.profileH.Get)
	handle("PUT /api/profile", s.profileH.Update)

	// Habits
	handle("POST /api/habits/create", s.habitH.Create)
	handle("GET /api/habits/user/{userId}", s.habitH.ListForUser)
	handle("GET /api/habits/one/{id}", s.habitH.Get)
	handle("PUT /api/habits/update/{id}", s.habitH.Update)
	handle("DELETE /api/habits/delete/{id}", s.habitH.Delete)
	handle("POST /api/habits/{id}/check-in", s.habitH.CheckIn)
	handle("POST /api/habits/{id}/undo-check-in", s.habitH.UndoCheckIn)
	handle("GET /api/habits/stats/overview", s.habitH.Summary)

	// Stats and calendar
	handle("GET /api/stats/overview", s.statsH.Overview)
	handle("GET /api/stats/weekly", s.statsH.Weekly)
	handle("GET /api/stats/top-habits", s.statsH.TopHabits)
	handle("GET /api/calendar/{year}/{month}", s.statsH.Calendar)

	handle("POST /api/support", s.supportH.Create)
	handle("GET /api/support", s.supportH.List)

	handle("POST /api/ai/coach", s.coachH.Chat)

	// Web push
	handle("GET /api/push/vapid-key", s.pushH.VAPIDKey)
	handle("POST /api/push/subscribe", s.pushH.Subscribe)
	handle("GET /api/push/subscriptions", s.pushH.List)
	handle("DELETE /api/push/subscriptions/{id}", s.pushH.Unsubscribe)
	handle("POST /api/push/test", s.pushH.Test)
}

func (s *Server) rootHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Write([]byte("HabitFlow API is running"))
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

func (s *Server) notFoundHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusNotFound)
	json.NewEncoder(w).Encode(map[string]any{"success": false, "message": "Route not found"})
}

// rateLimitedHandler limits h per client IP and, within that, per email in
// the request body.
func (s *Server) rateLimitedHandler(h http.HandlerFunc) http.HandlerFunc {
	perIP := middleware.RateLimit(s.ipLimiter, middleware.RealIP)
	perEmail := middleware.RateLimit(s.emailLimiter, middleware.IPAndEmail)
	return perIP(perEmail(h)).ServeHTTP
}
