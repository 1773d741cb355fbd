package api

import (
	"encoding/json"
	"errors"
	"log"
	"strings"

	"github.com/gofiber/fiber/v2"

	"vidsearch/app/agent"
	"vidsearch/model"
	"vidsearch/search"
	"vidsearch/store"
	"vidsearch/types"
)

type ChatHandler struct {
	cfg      types.Config
	embedder model.Embedder
	objects  store.ObjectStore
	agent    *agent.Agent
}

func NewChatHandler(cfg types.Config, embedder model.Embedder, objects store.ObjectStore, ag *agent.Agent) *ChatHandler {
	return &ChatHandler{
		cfg:      cfg,
		embedder: embedder,
		objects:  objects,
		agent:    ag,
	}
}

// HandleChat answers a question about one video from its mirrored
// transcript, pointing at the best-matching moment when the match is
// strong enough.
func (h *ChatHandler) HandleChat(c *fiber.Ctx) error {
	var params types.ChatParams
	if c.BodyParser(&params) != nil {
		return ErrBadRequest()
	}
	if errs := types.Validate(&params); len(errs) > 0 {
		return NewValidationError(errs)
	}

	blob, err := h.objects.Get(c.Context(), store.TranscriptKey(params.VideoID))
	if err != nil {
		if errors.Is(err, store.ErrObjectNotFound) {
			return ErrNotFound(params.VideoID, "video")
		}
		return err
	}

	var segments []types.Segment
	if err := json.Unmarshal(blob, &segments); err != nil {
		return err
	}

	vector, err := h.embedder.Embed(c.Context(), params.Question)
	if err != nil {
		return err
	}

	bestScore := 0.0
	var best *types.Segment
	for i := range segments {
		score := search.DotProduct(vector, segments[i].Embedding)
		if best == nil || score > bestScore {
			bestScore = score
			best = &segments[i]
		}
	}

	parts := make([]string, 0, len(segments))
	for _, s := range segments {
		parts = append(parts, s.Text)
	}
	answer, err := h.agent.GenerateAnswer(c.Context(), strings.Join(parts, " "), params.Question)
	if err != nil {
		return err
	}

	resp := fiber.Map{"answer": answer, "timestamp": nil}
	if best != nil && bestScore >= h.cfg.ChatThreshold {
		log.Printf("[CHAT] best segment %s scored %.2f", best.ID, bestScore)
		resp["timestamp"] = best.Start
		resp["url"] = best.URL
	}
	return c.JSON(resp)
}
