package routes

import (
	"context"

	"github.com/JustSympa/agariki/internal/config"
	"github.com/JustSympa/agariki/internal/handlers"
	"github.com/JustSympa/agariki/internal/middleware"
	"github.com/JustSympa/agariki/internal/realtime"
	"github.com/JustSympa/agariki/internal/repository"
	"github.com/JustSympa/agariki/internal/services"
	websocket "github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// RegisterRoutes wires repositories, services and handlers. Background
// workers (the realtime hub and the Redis relay) stop when ctx is done.
// rdb may be nil, in which case the profile cache and realtime fan-out stay
// in process.
func RegisterRoutes(
	ctx context.Context,
	app *fiber.App,
	cfg *config.Config,
	db *pgxpool.Pool,
	rdb *redis.Client,
	logger *zap.Logger,
) error {
	if logger == nil {
		logger = zap.NewNop()
	}

	userRepo := repository.NewUserRepository(db)
	pointRepo := repository.NewPointRepository(db)
	conversationRepo := repository.NewConversationRepository(db)
	messageRepo := repository.NewMessageRepository(db)

	var profileCache services.ProfileCache
	if rdb != nil {
		profileCache = services.NewRedisProfileCache(rdb, cfg.ProfileCacheTTL)
	} else {
		profileCache = services.NewMemoryProfileCache(cfg.ProfileCacheTTL)
	}

	chatHub := realtime.NewHub(logger.Named("realtime"))
	go chatHub.Run(ctx)

	var publisher realtime.Publisher = chatHub
	if rdb != nil {
		relay := realtime.NewRedisRelay(rdb, chatHub, logger.Named("relay"))
		go func() {
			if err := relay.Run(ctx); err != nil && ctx.Err() == nil {
				logger.Error("redis relay stopped", zap.Error(err))
			}
		}()
		publisher = relay
	}

	profileService := services.NewProfileService(userRepo, profileCache, logger.Named("profile"))
	profileHandler := handlers.NewProfileHandler(profileService)
	pointService := services.NewPointService(pointRepo, userRepo)
	pointHandler := handlers.NewPointHandler(pointService)
	chatService := services.NewChatService(db, conversationRepo, messageRepo, userRepo, publisher, logger.Named("chat"))
	chatHandler := handlers.NewChatHandler(chatService, chatHub, cfg.JWTSecret)

	app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))
	if err := registerDocsRoutes(app, cfg); err != nil {
		return err
	}

	// The websocket handshake authenticates itself since browsers cannot
	// send an Authorization header on upgrade.
	app.Use("/ws", chatHandler.WebSocketAuth)
	app.Get("/ws", websocket.New(chatHandler.HandleWebSocket))

	api := app.Group("/api/v1", middleware.AuthRequired(cfg.JWTSecret))

	users := api.Group("/users")
	users.Post("", profileHandler.Register)
	users.Get("/me", profileHandler.GetMe)
	users.Put("/me", profileHandler.UpdateMe)
	users.Get("/search", profileHandler.SearchUsers)
	users.Get("/:id", profileHandler.GetUser)

	points := api.Group("/points")
	points.Get("", pointHandler.ListMine)
	points.Post("", pointHandler.Create)
	points.Put("/:id", pointHandler.Update)
	points.Delete("/:id", pointHandler.Delete)

	api.Get("/map/points", pointHandler.Discover)

	conversations := api.Group("/conversations")
	conversations.Get("", chatHandler.ListConversations)
	conversations.Post("", chatHandler.StartConversation)
	conversations.Get("/with/:userId", chatHandler.FindConversation)
	conversations.Get("/:id", chatHandler.GetConversation)
	conversations.Get("/:id/messages", chatHandler.GetMessages)
	conversations.Post("/:id/messages", chatHandler.SendMessage)
	conversations.Get("/:id/messages/last", chatHandler.LastMessage)
	conversations.Get("/:id/unread", chatHandler.UnreadCount)
	conversations.Put("/:id/read", chatHandler.MarkConversationRead)

	api.Put("/messages/:id/read", chatHandler.MarkMessageRead)

	return nil
}
