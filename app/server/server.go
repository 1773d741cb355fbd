package server

import (
	"context"
	"log"
	"log/slog"

	"github.com/gofiber/fiber/v2"

	"vidsearch/app/agent"
	"vidsearch/app/api"
	"vidsearch/fetch"
	"vidsearch/ingest"
	"vidsearch/model"
	"vidsearch/search"
	"vidsearch/store"
	"vidsearch/types"
)

var config = fiber.Config{
	ErrorHandler: api.ErrorHandler,
	BodyLimit:    50 * 1024 * 1024, // pdf uploads
}

type Server struct {
	cfg    types.Config
	logger *slog.Logger
	index  *store.PostgresStore
}

func NewServer(cfg types.Config) *Server {
	return &Server{
		cfg:    cfg,
		logger: slog.Default(),
	}
}

func (s *Server) Stop() {
	if s.index != nil {
		s.index.Close()
	}
	s.logger.Info("server stopped")
}

func (s *Server) Run() {
	ctx := context.Background()

	index, err := store.NewPostgresStore(ctx, s.cfg.ConnStr())
	if err != nil {
		log.Fatal("error to connect to Postgres database ", err)
		return
	}
	s.index = index

	if err := index.Init(ctx); err != nil {
		log.Fatal("error to create tables ", err)
		return
	}

	objects, err := s.objectStore(ctx)
	if err != nil {
		log.Fatal("error to init object storage ", err)
		return
	}

	var (
		embedder = model.NewEmbedder(s.cfg)
		llm      = agent.New(s.cfg)
		pipeline = ingest.NewPipeline(s.cfg, fetch.NewYouTubeSource(), embedder, index, objects, llm)
		engine   = search.New(embedder, index)

		app          = fiber.New(config)
		checkHandler = api.NewCheckHandler()
		trainHandler = api.NewTrainHandler(s.cfg, pipeline)
		queryHandler = api.NewQueryHandler(s.cfg, engine, objects)
		chatHandler  = api.NewChatHandler(s.cfg, embedder, objects, llm)

		check = app.Group("/check")
		apiv1 = app.Group("/api")
	)

	check.Get("/healthy", checkHandler.HandleHealthy)
	apiv1.Post("/train", trainHandler.HandleTrain)
	apiv1.Post("/train_video", trainHandler.HandleTrainVideo)
	apiv1.Get("/jobs/:id", trainHandler.HandleJob)
	apiv1.Get("/query", queryHandler.HandleQuery)
	apiv1.Get("/summary", queryHandler.HandleSummary)
	apiv1.Post("/llm_chat", chatHandler.HandleChat)

	if err := app.Listen(s.cfg.ServerAddr); err != nil {
		s.logger.Error("error to start server", "error", err.Error())
	}
}

// objectStore picks the durable mirror backend: a bucket when one is
// configured, the local data dir otherwise.
func (s *Server) objectStore(ctx context.Context) (store.ObjectStore, error) {
	if s.cfg.StorageBucket != "" {
		s.logger.Info("using bucket storage", "bucket", s.cfg.StorageBucket)
		return store.NewGCSStore(ctx, s.cfg.StorageBucket)
	}
	s.logger.Info("using file storage", "dir", s.cfg.DataDir)
	return store.NewFileStore(s.cfg.DataDir)
}
