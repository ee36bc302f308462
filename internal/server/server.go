package server

import (
	"context"
	"log"

	"github.com/KakiharaShingo/Routy-sub000/internal/assets"
	"github.com/KakiharaShingo/Routy-sub000/internal/auth"
	"github.com/KakiharaShingo/Routy-sub000/internal/blobstore"
	"github.com/KakiharaShingo/Routy-sub000/internal/checkpoint"
	"github.com/KakiharaShingo/Routy-sub000/internal/config"
	"github.com/KakiharaShingo/Routy-sub000/internal/photoimport"
	"github.com/KakiharaShingo/Routy-sub000/internal/remotestore"
	"github.com/KakiharaShingo/Routy-sub000/internal/share"
	"github.com/KakiharaShingo/Routy-sub000/internal/stream"
	"github.com/KakiharaShingo/Routy-sub000/internal/sync"
	"github.com/KakiharaShingo/Routy-sub000/internal/trip"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/afero"
)

type Server struct {
	App    *fiber.App
	Cfg    config.Config
	DB     *pgxpool.Pool
	Redis  *redis.Client
	Stream *stream.Hub
	Gate   *auth.Gate
	Syncer *sync.Syncer
}

func NewServer(cfg config.Config, db *pgxpool.Pool, redisClient *redis.Client) *Server {
	app := fiber.New()
	app.Use(recover.New())
	app.Use(logger.New())

	s := &Server{
		App:    app,
		Cfg:    cfg,
		DB:     db,
		Redis:  redisClient,
		Stream: stream.NewHub(redisClient),
		Gate:   auth.NewGate(),
	}

	registerRoutes(s)
	return s
}

func registerRoutes(s *Server) {
	s.App.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})

	jwtMiddleware := auth.JWTMiddleware(s.Cfg.JWTSecret)

	tripSvc := trip.NewService(s.DB)
	checkpointSvc := checkpoint.NewService(s.DB)
	remote := remotestore.NewStore(s.Redis)
	blobs := blobstore.NewStore(s.DB, s.Cfg.StorageBaseURL, s.Cfg.PhotoTargetKB, s.Cfg.ThumbnailTargetKB)
	resolver := assets.NewFSResolver(afero.NewOsFs(), s.Cfg.PhotoAssetDir)

	s.Syncer = sync.NewSyncer(tripSvc, checkpointSvc, remote, blobs, resolver, s.Gate, s.Stream)

	hooks := auth.Hooks{
		OnSessionStart: func(user auth.User) {
			s.Gate.SignIn(user.ID)
			ctx := context.Background()
			if err := remote.SaveUserProfile(ctx, user.ID, map[string]string{
				"displayName": user.Username,
			}, true); err != nil {
				log.Printf("profile save for %s: %v", user.ID, err)
			}
			// pull the account's data onto this device in the background
			go s.Syncer.Sync(ctx, user.ID)
		},
		OnSessionEnd: func(ctx context.Context, userID string) error {
			s.Gate.SignOut()
			return tripSvc.PurgeUser(ctx, userID)
		},
	}

	auth.RegisterRoutes(s.App.Group("/auth"), auth.NewService(s.Cfg.JWTSecret, s.DB), hooks)
	trip.RegisterRoutes(s.App.Group("/trips"), tripSvc, jwtMiddleware)
	checkpoint.RegisterRoutes(s.App.Group("/checkpoints"), checkpointSvc, jwtMiddleware)
	photoimport.RegisterRoutes(s.App.Group("/import"), photoimport.NewService(checkpointSvc, resolver), jwtMiddleware)
	share.RegisterRoutes(s.App.Group("/share"), share.NewService(s.DB), jwtMiddleware)
	sync.RegisterRoutes(s.App.Group("/sync"), s.Syncer, jwtMiddleware)
	stream.RegisterRoutes(s.App.Group("/stream"), s.Stream)
}
