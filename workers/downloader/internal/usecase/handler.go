package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"unicode/utf8"

	"mangadownloader/shared/application/ports"
	"mangadownloader/workers/downloader/internal/domain"
)

// Processor runs a decoded job.
type Processor interface {
	Process(ctx context.Context, job domain.Job) (domain.Outcome, error)
}

// JobHandler turns a runtime request into a Job and hands it to the pipeline.
// Bodies that are not UTF-8 JSON are poison and never retried.
type JobHandler struct {
	processor Processor
	logger    ports.Logger
}

var _ ports.Handler = (*JobHandler)(nil)

func NewJobHandler(processor Processor, logger ports.Logger) *JobHandler {
	return &JobHandler{
		processor: processor,
		logger:    logger,
	}
}

func (h *JobHandler) Handle(ctx context.Context, req ports.RuntimeRequest) (ports.RuntimeResponse, error) {
	job, err := h.decode(req.Payload)
	if err != nil {
		h.logger.Error("Discarding undecodable message", "request_id", req.ID, "error", err)
		return ports.RuntimeResponse{Error: err.Error()}, err
	}

	outcome, err := h.processor.Process(ctx, job)
	if err != nil {
		return ports.RuntimeResponse{Error: err.Error()}, err
	}

	return ports.RuntimeResponse{Success: true, Outcome: string(outcome)}, nil
}

func (h *JobHandler) decode(body []byte) (domain.Job, error) {
	var job domain.Job

	if !utf8.Valid(body) {
		return job, fmt.Errorf("%w: body is not valid UTF-8", ports.ErrPoisonMessage)
	}
	if err := json.Unmarshal(body, &job); err != nil {
		return job, fmt.Errorf("%w: %v", ports.ErrPoisonMessage, err)
	}
	return job, nil
}
