package services

import (
	"context"
	"log"
	"time"

	"gorm.io/gorm"

	"asistencia_backend/models"
)

// StartSweepScheduler ticks every few minutes and runs the absence sweep for
// every institution. RunSweep itself enforces the per-institution cutoff and
// working-day preconditions and is idempotent, so firing it repeatedly after
// the cutoff is harmless: only the first effective run creates rows.
func StartSweepScheduler(ctx context.Context, db *gorm.DB, sweep *SweepService) {
	go func() {
		log.Println("sweep scheduler started")
		ticker := time.NewTicker(5 * time.Minute)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				log.Println("sweep scheduler stopped")
				return
			case <-ticker.C:
				var institutions []models.Institution
				if err := db.WithContext(ctx).Find(&institutions).Error; err != nil {
					log.Printf("sweep scheduler: list institutions: %v", err)
					continue
				}
				for _, inst := range institutions {
					runCtx, cancel := context.WithTimeout(ctx, 5*time.Minute)
					res, err := sweep.RunSweep(runCtx, inst.ID, time.Now())
					cancel()
					if err != nil {
						log.Printf("sweep scheduler: institution %d: %v", inst.ID, err)
						continue
					}
					if res.Marked > 0 || res.Notified > 0 {
						log.Printf("sweep institution %d: marked=%d notified=%d", inst.ID, res.Marked, res.Notified)
					}
				}
			}
		}
	}()
}
