package server

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/sparkcampus/doubts/backend/internal/aiagent"
	"github.com/sparkcampus/doubts/backend/internal/auth"
	"github.com/sparkcampus/doubts/backend/internal/config"
	"github.com/sparkcampus/doubts/backend/internal/database"
	"github.com/sparkcampus/doubts/backend/internal/handlers"
	"github.com/sparkcampus/doubts/backend/internal/identity"
	"github.com/sparkcampus/doubts/backend/internal/ledger"
	"github.com/sparkcampus/doubts/backend/internal/middleware"
	"github.com/sparkcampus/doubts/backend/internal/quota"
	"github.com/sparkcampus/doubts/backend/internal/services"
)

type Server struct {
	cfg     *config.Config
	db      database.Service
	handler *handlers.Handler
	auth    *middleware.Authenticator
	logger  *zap.Logger
}

// Build wires every service and handler over db. The database handle is
// owned by the caller.
func Build(cfg *config.Config, db database.Service, logger *zap.Logger) (*Server, error) {
	sessions, err := auth.NewSessionTokens(cfg.Auth.SessionSecret, cfg.Auth.SessionIssuer, cfg.Auth.SessionTTL)
	if err != nil {
		return nil, err
	}
	var firebase *auth.FirebaseVerifier
	if cfg.Auth.FirebaseProjectID != "" {
		certs := auth.NewCertSource(cfg.Auth.FirebaseCertsURL, &http.Client{Timeout: 10 * time.Second})
		firebase = auth.NewFirebaseVerifier(cfg.Auth.FirebaseProjectID, certs)
	}
	verifier := auth.NewVerifier(sessions, firebase)

	gdb := db.DB()
	reconciler := identity.NewReconciler(gdb, logger)
	credits := ledger.NewService(gdb, logger)
	doubts := services.NewDoubtService(gdb, credits, logger)
	answers := services.NewAnswerService(gdb, credits, logger)
	communities := services.NewCommunityService(gdb, doubts, answers, logger)

	handler := handlers.NewHandler(handlers.Deps{
		Config:      cfg,
		Logger:      logger,
		Verifier:    verifier,
		Passwords:   auth.NewPasswordService(cfg.Auth.BcryptCost),
		GitHub:      auth.NewGitHubProvider(cfg.Auth.GitHubClientID, cfg.Auth.GitHubClientSecret, cfg.Auth.GitHubRedirectURL),
		Reconciler:  reconciler,
		Ledger:      credits,
		Quota:       quota.NewGate(cfg.Quota.FreeQueries, cfg.Quota.CookieMaxAge, cfg.Auth.CookieSecure),
		AI:          aiagent.New(cfg.AIAgent, logger),
		Doubts:      doubts,
		Answers:     answers,
		Votes:       services.NewVoteService(gdb),
		Communities: communities,
		Search:      services.NewSearchService(gdb, communities),
		Chats:       services.NewChatService(gdb),
		Users:       services.NewUserService(gdb, credits, logger),
	})

	return &Server{
		cfg:     cfg,
		db:      db,
		handler: handler,
		auth:    middleware.NewAuthenticator(verifier, reconciler, cfg.Auth.CookieName, logger),
		logger:  logger,
	}, nil
}

// NewServer creates and configures the HTTP server
func (s *Server) NewServer() *http.Server {
	cfg := s.cfg.Server
	return &http.Server{
		Addr:         "0.0.0.0:" + cfg.Port,
		Handler:      s.RegisterRoutes(),
		IdleTimeout:  cfg.IdleTimeout,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}
}

// RegisterRoutes sets up all application routes
func (s *Server) RegisterRoutes() *gin.Engine {
	r := gin.New()
	r.Use(middleware.RequestLogger(s.logger), middleware.Recovery(s.logger))

	// CORS configuration
	r.Use(cors.New(cors.Config{
		AllowOrigins:     s.cfg.Server.AllowedOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS", "PATCH"},
		AllowHeaders:     []string{"Accept", "Authorization", "Content-Type", "X-Requested-With", "Idempotency-Key"},
		ExposeHeaders:    []string{"Content-Length", middleware.RequestIDHeader},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	r.GET("/health", s.health)

	h := s.handler
	optional := s.auth.OptionalAuth()

	api := r.Group("/api")
	{
		authGroup := api.Group("/auth")
		authGroup.POST("/register", h.Auth.Register)
		authGroup.POST("/login", h.Auth.Login)
		authGroup.POST("/firebase", h.Auth.Firebase)
		authGroup.POST("/sync", h.Auth.Sync)
		authGroup.GET("/session", h.Auth.Session)
		authGroup.GET("/github/login", h.Auth.GitHubLogin)
		authGroup.GET("/github/callback", h.Auth.GitHubCallback)
		authGroup.POST("/logout", h.Auth.Logout)

		// Doubt and answer reads
		api.GET("/doubts", h.Doubt.GetDoubts)
		api.GET("/doubts/:id", h.Doubt.GetDoubt)
		api.GET("/doubts/:id/answers", h.Doubt.GetAnswers)

		// Community reads report isMember when a credential is present
		api.GET("/communities", optional, h.Community.GetCommunities)
		api.GET("/communities/recent", optional, h.Community.GetRecentCommunities)
		api.GET("/communities/:id", optional, h.Community.GetCommunity)
		api.GET("/communities/:id/membership", optional, h.Community.GetMembership)
		api.GET("/communities/:id/posts", h.Community.GetPosts)
		api.GET("/communities/:id/posts/:postId/comments", h.Community.GetComments)

		api.GET("/search", h.Search.Search)
		api.GET("/users/:id", h.User.GetUserProfile)
		api.GET("/leaderboard", h.User.GetLeaderboard)

		api.GET("/ai/free-queries", h.AI.FreeQueriesInfo)
		api.POST("/ai/free-queries", optional, h.AI.FreeQuery)
		api.GET("/ai-agent/health", h.AI.Health)
		api.GET("/ai-agent/qa", h.AI.Greeting)
		api.GET("/ai-agent/chat", h.AI.Greeting)

		// Protected routes (authentication required)
		protected := api.Group("")
		protected.Use(s.auth.RequireAuth())
		{
			protected.GET("/me", h.Auth.GetMe)
			protected.GET("/users/me/profile", h.User.GetMyProfile)
			protected.PUT("/users/me/profile", h.User.UpdateMyProfile)

			protected.POST("/doubts", h.Doubt.CreateDoubt)
			protected.PUT("/doubts/:id", h.Doubt.UpdateDoubt)
			protected.POST("/doubts/:id/vote", h.Doubt.VoteDoubt)
			protected.POST("/doubts/:id/answers", h.Doubt.CreateAnswer)

			protected.POST("/answers", h.Answer.CreateAnswer)
			protected.PUT("/answers/:id", h.Answer.UpdateAnswer)
			protected.POST("/answers/:id/vote", h.Answer.VoteAnswer)
			protected.POST("/answers/:id/accept", h.Answer.AcceptAnswer)

			protected.POST("/communities", h.Community.CreateCommunity)
			protected.POST("/communities/:id/membership", h.Community.JoinCommunity)
			protected.DELETE("/communities/:id/membership", h.Community.LeaveCommunity)
			protected.POST("/communities/:id/posts", h.Community.CreatePost)
			protected.POST("/communities/:id/posts/:postId/comments", h.Community.CreateComment)

			protected.GET("/credits", h.Credit.GetCredits)
			protected.GET("/credits/history", h.Credit.GetHistory)
			protected.POST("/credits/redeem", h.Credit.Redeem)
			protected.POST("/credits/check", h.Credit.Check)
			protected.POST("/admin/credits", h.Credit.AdminAdjust)
			protected.POST("/admin/subscription", h.Credit.AdminSubscription)

			protected.POST("/ai-agent", h.AI.Agent)
			protected.POST("/ai-agent/chat", h.AI.Chat)
			protected.POST("/ai-agent/qa", h.AI.QA)
			protected.POST("/ai-agent/quiz", h.AI.Quiz)
			protected.POST("/ai-agent/flashcards", h.AI.Flashcards)
			protected.GET("/ai-agent/sessions", h.AI.ListSessions)
			protected.POST("/ai-agent/sessions", h.AI.CreateSession)
			protected.GET("/ai-agent/sessions/:id", h.AI.GetSession)
		}
	}

	return r
}

func (s *Server) health(c *gin.Context) {
	db := s.db.Health(c.Request.Context())
	status := http.StatusOK
	overall := "ok"
	if db["status"] != "up" {
		status = http.StatusServiceUnavailable
		overall = "degraded"
	}
	c.JSON(status, gin.H{"status": overall, "database": db})
}
