package endpoints

import (
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/jackzampolin/foliate/internal/api"
	"github.com/jackzampolin/foliate/internal/events"
	"github.com/jackzampolin/foliate/internal/svcctx"
)

// pingInterval is how often an idle SSE stream emits a keep-alive event.
const pingInterval = 30 * time.Second

// JobEventsEndpoint handles GET /api/jobs/{id}/events, the SSE stream of a
// job's progress. Reconnecting clients send Last-Event-ID to replay missed
// events from the ring buffer.
type JobEventsEndpoint struct{}

var _ api.Endpoint = (*JobEventsEndpoint)(nil)

func (e *JobEventsEndpoint) Route() (string, string, http.HandlerFunc) {
	return "GET", "/api/jobs/{id}/events", e.handler
}

func (e *JobEventsEndpoint) RequiresInit() bool { return true }

// handler godoc
//
//	@Summary		Stream job events
//	@Description	Server-sent events for job progress; supports Last-Event-ID replay
//	@Tags			jobs
//	@Produce		text/event-stream
//	@Param			id				path	string	true	"Job ID"
//	@Param			Last-Event-ID	header	string	false	"Replay events after this ID"
//	@Success		200
//	@Failure		404	{object}	ErrorResponse
//	@Router			/api/jobs/{id}/events [get]
func (e *JobEventsEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	registry := svcctx.JobsFrom(r.Context())
	eventReg := svcctx.EventsFrom(r.Context())
	if registry == nil || eventReg == nil {
		writeError(w, http.StatusServiceUnavailable, "server not fully initialized")
		return
	}

	id := r.PathValue("id")
	job := registry.Get(id)
	if job == nil {
		writeError(w, http.StatusNotFound, "job not found")
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming not supported")
		return
	}

	emitter := eventReg.GetOrCreate(id)

	// A terminal job recovered from a previous process has no event history;
	// close immediately so subscribers get end-of-stream instead of silence.
	if job.Status.Terminal() && emitter.LastID() == 0 {
		emitter.Close()
	}

	var sub *events.Subscription
	if lastID, err := strconv.Atoi(r.Header.Get("Last-Event-ID")); err == nil {
		sub = emitter.SubscribeFrom(lastID)
	} else {
		sub = emitter.Subscribe()
	}
	defer emitter.Unsubscribe(sub)

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	// Streams can outlive the server's write timeout.
	rc := http.NewResponseController(w)
	_ = rc.SetWriteDeadline(time.Time{})

	ping := time.NewTicker(pingInterval)
	defer ping.Stop()

	for {
		select {
		case ev, open := <-sub.C:
			if !open {
				// Emitter closed: the job reached a terminal state.
				return
			}
			if _, err := io.WriteString(w, ev.Encode()); err != nil {
				return
			}
			flusher.Flush()
		case <-ping.C:
			if _, err := io.WriteString(w, "event: ping\ndata: {}\n\n"); err != nil {
				return
			}
			flusher.Flush()
		case <-r.Context().Done():
			return
		}
	}
}

func (e *JobEventsEndpoint) Command(getServerURL func() string) *cobra.Command {
	return &cobra.Command{
		Use:   "events <id>",
		Short: "Stream a job's progress events",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := api.NewClient(getServerURL())
			return client.Stream(cmd.Context(), "/api/jobs/"+args[0]+"/events", func(line string) {
				fmt.Println(line)
			})
		},
	}
}
