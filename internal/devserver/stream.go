package devserver

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/tidwall/sjson"

	"github.com/reportdash/reportctl/internal/status"
)

// generate streams a generation as server-sent events: a ": connected"
// comment, current_type progress frames, response_completed with the SQL,
// then done. A report marked FailGeneration is closed before done.
func (s *Server) generate(c *gin.Context) {
	r, ok := s.lookup(c)
	if !ok {
		return
	}
	ctx := c.Request.Context()

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Status(http.StatusOK)

	write := func(frame string) bool {
		if _, err := fmt.Fprint(c.Writer, frame); err != nil {
			return false
		}
		c.Writer.Flush()
		return true
	}
	if !write(": connected\n\n") {
		return
	}

	s.mu.Lock()
	current, _ := status.Parse(r.Status)
	if current == status.StatusComplete {
		s.mu.Unlock()
		write("event: done\ndata: \n\n")
		return
	}
	r.Status = string(status.StatusInProgress)
	prompt, fail := r.Prompt, r.FailGeneration
	s.mu.Unlock()

	log := s.logger.With("report_id", r.ID)
	log.Debug("Generation started")

	for i := 0; i < s.opts.Frames; i++ {
		if !sleep(ctx, s.opts.FrameDelay) {
			log.Debug("Generation stream closed by client")
			return
		}
		kind := progressTypes[i%len(progressTypes)]
		if !write(fmt.Sprintf("event: current_type\ndata: %q\n\n", kind)) {
			return
		}
	}

	if fail {
		s.setStatus(r, string(status.StatusError))
		log.Debug("Generation failed")
		return
	}

	query := generatedQuery(prompt)
	payload, err := sjson.Set(`{}`, "sql_query", query)
	if err != nil {
		s.setStatus(r, string(status.StatusError))
		return
	}
	if !write("event: response_completed\ndata: " + payload + "\n\n") {
		return
	}

	s.mu.Lock()
	r.Query = query
	r.Status = string(status.StatusComplete)
	r.UpdatedAt = time.Now().UTC()
	s.mu.Unlock()

	write("event: done\ndata: \n\n")
	log.Debug("Generation completed")
}

func (s *Server) setStatus(r *Report, st string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r.Status = st
	r.UpdatedAt = time.Now().UTC()
}

// sleep waits d or until ctx is done. It reports whether d elapsed.
func sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-ctx.Done():
		return false
	}
}

func generatedQuery(prompt string) string {
	return fmt.Sprintf("-- %s\nSELECT event, COUNT(*) AS count FROM events GROUP BY event ORDER BY count DESC", prompt)
}
