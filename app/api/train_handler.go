package api

import (
	"io"
	"log"
	"strings"

	"github.com/gofiber/fiber/v2"

	"vidsearch/ingest"
	"vidsearch/types"
)

type TrainHandler struct {
	cfg      types.Config
	pipeline *ingest.Pipeline
}

func NewTrainHandler(cfg types.Config, pipeline *ingest.Pipeline) *TrainHandler {
	return &TrainHandler{
		cfg:      cfg,
		pipeline: pipeline,
	}
}

// HandleTrain starts a full-channel ingestion. A multipart request
// carries PDF uploads instead, with each form field name holding the
// video id the file belongs to.
func (h *TrainHandler) HandleTrain(c *fiber.Ctx) error {
	if strings.HasPrefix(c.Get(fiber.HeaderContentType), fiber.MIMEMultipartForm) {
		return h.handleTrainPDFs(c)
	}

	var params types.TrainParams
	if c.BodyParser(&params) != nil {
		return ErrBadRequest()
	}
	if errors := types.Validate(&params); len(errors) > 0 {
		return NewValidationError(errors)
	}
	if params.CustomerKey != h.cfg.CustomerKey {
		return ErrUnAuthorized("invalid customer key")
	}

	job := h.pipeline.TrainChannel(params.ChannelURL)
	log.Printf("[TRAIN] channel %s -> job %s", params.ChannelURL, job.ID)
	return c.Status(fiber.StatusAccepted).JSON(fiber.Map{
		"job_id":     job.ID,
		"collection": job.Collection,
	})
}

func (h *TrainHandler) handleTrainPDFs(c *fiber.Ctx) error {
	form, err := c.MultipartForm()
	if err != nil {
		return ErrBadRequest()
	}

	channelURL := c.FormValue("channel_url")
	if channelURL == "" {
		return NewValidationError(map[string]string{"channel_url": "failed on 'required' tag"})
	}
	if c.FormValue("customer_key") != h.cfg.CustomerKey {
		return ErrUnAuthorized("invalid customer key")
	}

	var uploads []ingest.PDFUpload
	for videoID, headers := range form.File {
		for _, header := range headers {
			file, err := header.Open()
			if err != nil {
				return err
			}
			data, err := io.ReadAll(file)
			file.Close()
			if err != nil {
				return err
			}
			uploads = append(uploads, ingest.PDFUpload{
				VideoID: videoID,
				Name:    header.Filename,
				Data:    data,
			})
		}
	}
	if len(uploads) == 0 {
		return NewValidationError(map[string]string{"pdfs": "no files uploaded"})
	}

	job := h.pipeline.TrainPDFs(channelURL, uploads)
	log.Printf("[TRAIN] %d pdf(s) for %s -> job %s", len(uploads), channelURL, job.ID)
	return c.Status(fiber.StatusAccepted).JSON(fiber.Map{
		"job_id":     job.ID,
		"collection": job.Collection,
	})
}

// HandleTrainVideo ingests a single video. Already-processed videos
// short-circuit without spawning a job.
func (h *TrainHandler) HandleTrainVideo(c *fiber.Ctx) error {
	var params types.TrainVideoParams
	if c.BodyParser(&params) != nil {
		return ErrBadRequest()
	}
	if errors := types.Validate(&params); len(errors) > 0 {
		return NewValidationError(errors)
	}
	if params.CustomerKey != h.cfg.CustomerKey {
		return ErrUnAuthorized("invalid customer key")
	}

	job, already, err := h.pipeline.TrainVideo(c.Context(), params.ChannelURL, params.VideoURL)
	if err != nil {
		return err
	}
	if already {
		return c.JSON(fiber.Map{"result": "video already processed"})
	}
	return c.Status(fiber.StatusAccepted).JSON(fiber.Map{
		"job_id":     job.ID,
		"collection": job.Collection,
	})
}

// HandleJob reports the state of a background ingestion run.
func (h *TrainHandler) HandleJob(c *fiber.Ctx) error {
	id := c.Params("id")
	job, ok := h.pipeline.Jobs().Get(id)
	if !ok {
		return ErrNotFound(id, "job")
	}
	return c.JSON(job)
}
