package api

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"vidsearch/search"
	"vidsearch/segment"
	"vidsearch/store"
	"vidsearch/types"
)

type QueryHandler struct {
	cfg     types.Config
	engine  *search.Engine
	objects store.ObjectStore
}

func NewQueryHandler(cfg types.Config, engine *search.Engine, objects store.ObjectStore) *QueryHandler {
	return &QueryHandler{
		cfg:     cfg,
		engine:  engine,
		objects: objects,
	}
}

// HandleQuery runs a semantic search over a channel's collection.
func (h *QueryHandler) HandleQuery(c *fiber.Ctx) error {
	params := types.QueryParams{
		QueryPhrase: c.Query("query_phrase"),
		ChannelURL:  c.Query("channel_url"),
		CustomerKey: c.Query("customer_key"),
	}
	if errors := types.Validate(&params); len(errors) > 0 {
		return NewValidationError(errors)
	}
	if params.CustomerKey != h.cfg.CustomerKey {
		return ErrUnAuthorized("invalid customer key")
	}

	collection := segment.CollectionName(params.ChannelURL)
	results, err := h.engine.Query(c.Context(), collection, params.QueryPhrase, h.cfg.TopK, h.cfg.ScoreFloor)
	if err != nil {
		return err
	}
	return c.JSON(results)
}

// HandleSummary serves the stored summary for a video.
func (h *QueryHandler) HandleSummary(c *fiber.Ctx) error {
	videoID := c.Query("video_id")
	if videoID == "" {
		return NewValidationError(map[string]string{"video_id": "failed on 'required' tag"})
	}

	blob, err := h.objects.Get(c.Context(), store.SummaryKey(videoID))
	if err != nil {
		if errors.Is(err, store.ErrObjectNotFound) {
			return ErrNotFound(videoID, "summary")
		}
		return err
	}

	c.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	return c.Send(blob)
}
