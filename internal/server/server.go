package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"anoa.com/forumboard/internal/agent"
	"anoa.com/forumboard/internal/agent/agents"
	"anoa.com/forumboard/internal/agent/providers"
	"anoa.com/forumboard/internal/config"
	"anoa.com/forumboard/internal/middleware"
	"anoa.com/forumboard/pkg/ratelimiter"
	"anoa.com/forumboard/pkg/sanitizer"
	"anoa.com/forumboard/pkg/storage"

	attachmentHttp "anoa.com/forumboard/internal/modules/attachment/delivery/http"
	attachmentService "anoa.com/forumboard/internal/modules/attachment/service"

	commentHttp "anoa.com/forumboard/internal/modules/comment/delivery/http"
	commentRepo "anoa.com/forumboard/internal/modules/comment/repository"
	commentService "anoa.com/forumboard/internal/modules/comment/service"

	moderationService "anoa.com/forumboard/internal/modules/moderation/service"

	notiHttp "anoa.com/forumboard/internal/modules/notification/delivery/http"
	notifService "anoa.com/forumboard/internal/modules/notification/service"

	ownershipService "anoa.com/forumboard/internal/modules/ownership/service"

	searchService "anoa.com/forumboard/internal/modules/search/service"

	threadHttp "anoa.com/forumboard/internal/modules/thread/delivery/http"
	threadRepo "anoa.com/forumboard/internal/modules/thread/repository"
	threadService "anoa.com/forumboard/internal/modules/thread/service"

	userHttp "anoa.com/forumboard/internal/modules/user/delivery/http"
	userRepo "anoa.com/forumboard/internal/modules/user/repository"
	userService "anoa.com/forumboard/internal/modules/user/service"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/meilisearch/meilisearch-go"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// Deps are the collaborators the server is built from. Everything except
// Config and DB may be nil; the matching feature is then disabled or falls
// back to its local implementation.
type Deps struct {
	Config      *config.Config
	DB          *gorm.DB
	Redis       *redis.Client
	Meili       meilisearch.ServiceManager
	FileStorage storage.FileStorage
	Completer   providers.Completer
	Classifier  providers.Classifier
	Logger      *slog.Logger
}

type Server struct {
	engine      *gin.Engine
	db          *gorm.DB
	redisClient *redis.Client
	scheduler   *agent.Scheduler
	httpServer  *http.Server
	logger      *slog.Logger
}

func NewServer(deps Deps) (*Server, error) {
	if deps.Config == nil || deps.DB == nil {
		return nil, errors.New("server needs a config and a database")
	}
	cfg := deps.Config
	db := deps.DB
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	clean := sanitizer.New()
	limiter := ratelimiter.New(deps.Redis, map[string]time.Duration{
		ratelimiter.ActionGlobal:  cfg.RateLimitGlobal,
		ratelimiter.ActionThread:  cfg.RateLimitThread,
		ratelimiter.ActionComment: cfg.RateLimitComment,
	}, logger)
	scheduler := agent.NewScheduler(cfg.AITaskTimeout, logger)

	userRepo := userRepo.NewUserRepository(db)
	authSvc := userService.NewAuthService(userRepo, cfg.JWTSecret, cfg.JWTTTL)
	userHandler := userHttp.NewUserHandler(authSvc)

	threadRepo := threadRepo.NewThreadRepository(db)
	commentRepo := commentRepo.NewCommentRepository(db)

	gate := moderationService.NewGate(deps.Classifier, logger)

	var searchSvc searchService.SearchService
	if deps.Meili != nil {
		searchSvc = searchService.NewMeiliSearchService(deps.Meili, clean, logger)
		reindex := agents.NewSearchReindexAgent(threadRepo, searchSvc, cfg.SearchReindexSchedule, logger)
		if err := scheduler.RegisterAgent(reindex); err != nil {
			return nil, err
		}
	}

	var attachmentSvc attachmentService.AttachmentService
	if deps.FileStorage != nil {
		attachmentSvc = attachmentService.NewAttachmentService(deps.FileStorage, cfg.MaxUploadBytes, logger)
	}

	// Thread Events Module
	notificationSvc := notifService.NewNotificationService(deps.Redis)
	notificationHandler := notiHttp.NewNotificationHandler(notificationSvc, cfg.AllowedOrigins, logger)

	forumBot := agent.NewForumBot(agent.ForumBotConfig{
		BotID:             cfg.ForumBotID,
		ThreadReplyDelay:  cfg.AutoReplyThreadDelay,
		CommentReplyDelay: cfg.AutoReplyCommentDelay,
	}, deps.Completer, threadRepo, commentRepo, scheduler, clean, notificationSvc, logger)

	threadSvc := threadService.NewService(threadRepo, commentRepo, gate, limiter, clean, searchSvc, attachmentSvc, forumBot, logger)
	threadHandler := threadHttp.NewThreadHandler(threadSvc)

	commentSvc := commentService.NewCommentService(commentRepo, threadRepo, gate, limiter, clean, forumBot, notificationSvc, logger)
	commentHandler := commentHttp.NewCommentHandler(commentSvc)

	ownershipSvc := ownershipService.NewOwnershipService(threadRepo, commentRepo)

	router := gin.New()

	setupCORS(router, cfg.AllowedOrigins)

	router.Use(gin.Recovery())
	router.Use(gin.LoggerWithConfig(gin.LoggerConfig{
		SkipPaths: []string{"/api/health", "/metrics"},
	}))

	authMiddleware := middleware.NewAuthMiddleware(userRepo, cfg.JWTSecret)
	requireAuth := authMiddleware.RequireAuth()

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := router.Group("/api")

	api.GET("/health", healthHandler(db, deps.Redis))

	users := api.Group("/users")
	{
		users.POST("/register", userHandler.Register)
		users.POST("/login", userHandler.Login)
	}

	threads := api.Group("/threads")
	{
		threads.GET("", threadHandler.ListThreads)
		threads.GET("/search", threadHandler.SearchThreads)
		threads.GET("/:id", threadHandler.GetThread)
		threads.GET("/:id/events", notificationHandler.ThreadEvents)

		threads.POST("", requireAuth, threadHandler.CreateThread)
		threads.PUT("/:id", requireAuth, middleware.RequireOwnership(ownershipSvc, ownershipService.ResourceThread), threadHandler.UpdateThread)
		threads.DELETE("/:id", requireAuth, middleware.RequireOwnership(ownershipSvc, ownershipService.ResourceThread), threadHandler.DeleteThread)
	}

	comments := api.Group("/comments")
	{
		comments.GET("/thread/:thread_id", commentHandler.GetCommentsByThread)
		comments.POST("", requireAuth, commentHandler.CreateComment)
		comments.DELETE("/:id", requireAuth, middleware.RequireOwnership(ownershipSvc, ownershipService.ResourceComment), commentHandler.DeleteComment)
	}

	if attachmentSvc != nil {
		attachmentHandler := attachmentHttp.NewAttachmentHandler(attachmentSvc)
		api.POST("/uploads", requireAuth, attachmentHandler.UploadAttachment)
	}

	return &Server{
		engine:      router,
		db:          db,
		redisClient: deps.Redis,
		scheduler:   scheduler,
		httpServer: &http.Server{
			Handler:           router,
			ReadHeaderTimeout: 10 * time.Second,
		},
		logger: logger.With("component", "server"),
	}, nil
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Scheduler is the background runner used by the bot and recurring agents.
func (s *Server) Scheduler() *agent.Scheduler {
	return s.scheduler
}

// Run starts the recurring agents and serves HTTP until Shutdown is called.
func (s *Server) Run(addr string) error {
	s.scheduler.Start()
	s.httpServer.Addr = addr
	s.logger.Info("http server listening", "addr", addr)
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops accepting requests, then waits for background tasks.
func (s *Server) Shutdown(ctx context.Context) error {
	httpErr := s.httpServer.Shutdown(ctx)
	if err := s.scheduler.Shutdown(ctx); err != nil {
		s.logger.Warn("background tasks did not finish", "error", err)
		if httpErr == nil {
			return err
		}
	}
	return httpErr
}

func setupCORS(router *gin.Engine, allowedOrigins string) {
	var origins []string
	for _, o := range strings.Split(allowedOrigins, ",") {
		if o = strings.TrimSpace(o); o != "" {
			origins = append(origins, o)
		}
	}
	if len(origins) == 0 {
		origins = []string{"http://localhost:3000"}
	}

	router.Use(cors.New(cors.Config{
		AllowOrigins:     origins,
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "HEAD", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization"},
		ExposeHeaders:    []string{"Content-Length", "Retry-After"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))
}
