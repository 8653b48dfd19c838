package jobs

import (
	"context"
	"log"

	"mealtrail-backend/internal/services"

	"github.com/robfig/cron/v3"
)

// AssignmentRetryJob periodically retries partner assignment for orders that
// are still pending and unassigned - a no-candidate outcome at creation time
// is not final, partners come online all the time.
type AssignmentRetryJob struct {
	svc  *services.OrderService
	cron *cron.Cron
}

func NewAssignmentRetryJob(svc *services.OrderService) *AssignmentRetryJob {
	return &AssignmentRetryJob{
		svc:  svc,
		cron: cron.New(cron.WithSeconds()),
	}
}

// Start schedules the retry every 30 seconds.
func (j *AssignmentRetryJob) Start() error {
	_, err := j.cron.AddFunc("*/30 * * * * *", func() {
		if err := j.svc.AssignPending(context.Background()); err != nil {
			log.Printf("❌ Assignment retry job failed: %v", err)
		}
	})
	if err != nil {
		return err
	}

	j.cron.Start()
	log.Println("✅ Assignment retry job started (every 30s)")
	return nil
}

// Stop stops the retry job.
func (j *AssignmentRetryJob) Stop() {
	j.cron.Stop()
}
