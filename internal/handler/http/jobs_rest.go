package httphandler

import (
	"net/http"

	"warehouse-notify/internal/usecase"
	"warehouse-notify/pkg/response"
)

// JobsHandler exposes the externally scheduled worker ticks. Each endpoint
// runs exactly one batch and reports its counts; the scheduler owns the
// cadence.
type JobsHandler struct {
	queue *usecase.QueueUsecase
	relay *usecase.RelayUsecase // nil when the event stream is not configured
}

func NewJobsHandler(queue *usecase.QueueUsecase, relay *usecase.RelayUsecase) *JobsHandler {
	return &JobsHandler{queue: queue, relay: relay}
}

func (h *JobsHandler) ProcessEvents(w http.ResponseWriter, r *http.Request) {
	summary, err := h.queue.ProcessEvents(r.Context())
	if err != nil {
		response.Error(w, http.StatusInternalServerError, err.Error())
		return
	}
	response.JSON(w, http.StatusOK, summary)
}

func (h *JobsHandler) ProcessEmailQueue(w http.ResponseWriter, r *http.Request) {
	summary, err := h.queue.ProcessEmailQueue(r.Context())
	if err != nil {
		response.Error(w, http.StatusInternalServerError, err.Error())
		return
	}
	response.JSON(w, http.StatusOK, summary)
}

func (h *JobsHandler) RelayEvents(w http.ResponseWriter, r *http.Request) {
	if h.relay == nil {
		response.Error(w, http.StatusServiceUnavailable, "event stream not configured")
		return
	}
	summary, err := h.relay.RelayEvents(r.Context())
	if err != nil {
		response.Error(w, http.StatusInternalServerError, err.Error())
		return
	}
	response.JSON(w, http.StatusOK, summary)
}
