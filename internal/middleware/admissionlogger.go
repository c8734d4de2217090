package middleware

import (
	"context"
	"log"
	"time"

	"github.com/craftlab/ai-gateway/internal/admission"
	"github.com/craftlab/ai-gateway/internal/models"
	"github.com/craftlab/ai-gateway/internal/repository"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// AdmissionLogger persists admission decisions asynchronously. Entries
// go through a buffered channel to a batch-insert worker so the request
// path never blocks on Postgres; when the buffer is full entries are
// dropped rather than stalling traffic.
type AdmissionLogger struct {
	repo    *repository.AdmissionLogRepository
	entries chan models.AdmissionLog
	done    chan struct{}
}

func NewAdmissionLogger(repo *repository.AdmissionLogRepository, bufferSize int) *AdmissionLogger {
	l := &AdmissionLogger{
		repo:    repo,
		entries: make(chan models.AdmissionLog, bufferSize),
		done:    make(chan struct{}),
	}

	go l.worker()

	return l
}

func (l *AdmissionLogger) worker() {
	batch := make([]models.AdmissionLog, 0, 100)
	ticker := time.NewTicker(5 * time.Second)
	defer ticker.Stop()

	flush := func() {
		if len(batch) == 0 {
			return
		}
		if err := l.repo.CreateBatch(context.Background(), batch); err != nil {
			log.Printf("failed to insert admission logs: %v", err)
		}
		batch = make([]models.AdmissionLog, 0, 100)
	}

	for {
		select {
		case entry := <-l.entries:
			batch = append(batch, entry)
			if len(batch) >= 100 {
				flush()
			}
		case <-ticker.C:
			flush()
		case <-l.done:
			flush()
			return
		}
	}
}

// Stop flushes pending entries and stops the worker.
func (l *AdmissionLogger) Stop() {
	close(l.done)
}

// Middleware records one log entry per request that went through
// admission control.
func (l *AdmissionLogger) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		outcomeValue, exists := c.Get(OutcomeKey)
		if !exists {
			return
		}
		outcome, ok := outcomeValue.(*admission.Outcome)
		if !ok || outcome.State == admission.StateBypassed {
			return
		}

		var orgID *uuid.UUID
		if id, err := uuid.Parse(c.GetString("org_id")); err == nil {
			orgID = &id
		}

		violatedRule := ""
		if outcome.Rate != nil {
			violatedRule = outcome.Rate.Rule
		}

		entry := models.AdmissionLog{
			Timestamp:      start,
			OrganizationID: orgID,
			UserID:         c.GetString("user_id"),
			Method:         c.Request.Method,
			Path:           c.Request.URL.Path,
			Category:       outcome.Category,
			Service:        outcome.Service,
			State:          string(outcome.State),
			StatusCode:     c.Writer.Status(),
			ResponseTimeMs: int(time.Since(start).Milliseconds()),
			IPAddress:      c.ClientIP(),
			ViolatedRule:   violatedRule,
		}

		select {
		case l.entries <- entry:
		default:
			log.Println("admission log channel full, dropping entry")
		}
	}
}
