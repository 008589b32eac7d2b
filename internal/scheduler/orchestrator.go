package scheduler

import (
	"context"
	"log"
	"time"

	"github.com/agreensr/sports-prop-odds-api-sub003/internal/cache"
	syncsvc "github.com/agreensr/sports-prop-odds-api-sub003/internal/sync"
)

// Orchestrator manages the recurring sync and settlement jobs
type Orchestrator struct {
	sync     *syncsvc.Service
	memCache *cache.Memory
	config   *Config
	cancel   context.CancelFunc

	// Task coordination
	oddsCtx          context.Context
	oddsCancel       context.CancelFunc
	scheduleCtx      context.Context
	scheduleCancel   context.CancelFunc
	settlementCtx    context.Context
	settlementCancel context.CancelFunc
	dailyCtx         context.Context
	dailyCancel      context.CancelFunc
}

// Config holds scheduler configuration
type Config struct {
	OddsPollInterval       time.Duration // Default: 10m
	SchedulePollInterval   time.Duration // Default: 1h
	SettlementInterval     time.Duration // Default: 5m
	DailyRosterHour        int           // Default: 4 (4 AM)
	EnableOddsPolling      bool          // Default: true
	EnableSchedulePolling  bool          // Default: true
	EnableSettlement       bool          // Default: true
	EnableDailyRosterSync  bool          // Default: true
	MaxRetries             int           // Default: 3
	RetryDelay             time.Duration // Default: 5s
}

// DefaultConfig returns default scheduler configuration
func DefaultConfig() *Config {
	return &Config{
		OddsPollInterval:      10 * time.Minute,
		SchedulePollInterval:  time.Hour,
		SettlementInterval:    5 * time.Minute,
		DailyRosterHour:       4,
		EnableOddsPolling:     true,
		EnableSchedulePolling: true,
		EnableSettlement:      true,
		EnableDailyRosterSync: true,
		MaxRetries:            3,
		RetryDelay:            5 * time.Second,
	}
}

// NewOrchestrator creates a new scheduler orchestrator
func NewOrchestrator(syncService *syncsvc.Service, memCache *cache.Memory, config *Config) *Orchestrator {
	if config == nil {
		config = DefaultConfig()
	}

	return &Orchestrator{
		sync:     syncService,
		memCache: memCache,
		config:   config,
	}
}

// Start begins all scheduled tasks and blocks until ctx is cancelled
func (o *Orchestrator) Start(ctx context.Context) {
	log.Println("╔════════════════════════════════════════╗")
	log.Println("║   Propwatch Scheduler Orchestrator    ║")
	log.Println("╚════════════════════════════════════════╝")
	log.Printf("Odds polling: %v (interval: %v)", o.config.EnableOddsPolling, o.config.OddsPollInterval)
	log.Printf("Schedule polling: %v (interval: %v)", o.config.EnableSchedulePolling, o.config.SchedulePollInterval)
	log.Printf("Settlement sweep: %v (interval: %v)", o.config.EnableSettlement, o.config.SettlementInterval)
	log.Printf("Daily roster sync: %v (at %02d:00)", o.config.EnableDailyRosterSync, o.config.DailyRosterHour)
	log.Println()

	ctx, cancel := context.WithCancel(ctx)
	o.cancel = cancel

	if o.config.EnableOddsPolling {
		o.oddsCtx, o.oddsCancel = context.WithCancel(ctx)
		go o.runOddsPolling(o.oddsCtx)
	}

	if o.config.EnableSchedulePolling {
		o.scheduleCtx, o.scheduleCancel = context.WithCancel(ctx)
		go o.runSchedulePolling(o.scheduleCtx)
	}

	if o.config.EnableSettlement {
		o.settlementCtx, o.settlementCancel = context.WithCancel(ctx)
		go o.runSettlementSweep(o.settlementCtx)
	}

	if o.config.EnableDailyRosterSync {
		o.dailyCtx, o.dailyCancel = context.WithCancel(ctx)
		go o.runDailyRosterSync(o.dailyCtx)
	}

	// Expired cache entries pile up between writes; sweep them out hourly.
	go o.runCacheSweep(ctx)

	<-ctx.Done()
	log.Println("Scheduler orchestrator stopping...")
}

// runOddsPolling refreshes prop lines on a fixed interval
func (o *Orchestrator) runOddsPolling(ctx context.Context) {
	log.Printf("→ Odds polling started (interval: %v)", o.config.OddsPollInterval)

	ticker := time.NewTicker(o.config.OddsPollInterval)
	defer ticker.Stop()

	// Run immediately on start
	o.pollOddsWithRetry(ctx)

	for {
		select {
		case <-ctx.Done():
			log.Println("→ Odds polling stopped")
			return
		case <-ticker.C:
			o.pollOddsWithRetry(ctx)
		}
	}
}

func (o *Orchestrator) pollOddsWithRetry(ctx context.Context) {
	for attempt := 1; attempt <= o.config.MaxRetries; attempt++ {
		result, err := o.sync.SyncOdds(ctx)
		if err == nil {
			if result.Predictions > 0 {
				log.Printf("  ✓ Odds sweep: %d events, %d predictions upserted (%d skipped)",
					result.Events, result.Predictions, result.Skipped)
			}
			return
		}

		log.Printf("  ⚠️  Odds sweep attempt %d/%d failed: %v", attempt, o.config.MaxRetries, err)
		if attempt < o.config.MaxRetries {
			select {
			case <-ctx.Done():
				return
			case <-time.After(o.config.RetryDelay):
			}
		}
	}
	log.Printf("  ❌ Odds sweep abandoned after %d attempts", o.config.MaxRetries)
}

// runSchedulePolling refreshes today's scoreboard on a fixed interval
func (o *Orchestrator) runSchedulePolling(ctx context.Context) {
	log.Printf("→ Schedule polling started (interval: %v)", o.config.SchedulePollInterval)

	ticker := time.NewTicker(o.config.SchedulePollInterval)
	defer ticker.Stop()

	o.pollSchedule(ctx)

	for {
		select {
		case <-ctx.Done():
			log.Println("→ Schedule polling stopped")
			return
		case <-ticker.C:
			o.pollSchedule(ctx)
		}
	}
}

func (o *Orchestrator) pollSchedule(ctx context.Context) {
	result, err := o.sync.SyncSchedule(ctx, time.Now())
	if err != nil {
		log.Printf("  ⚠️  Schedule sweep failed: %v", err)
		return
	}
	if result.Upserted > 0 {
		log.Printf("  ✓ Schedule sweep: %d games upserted (%d skipped)", result.Upserted, result.Skipped)
	}
}

// runSettlementSweep settles predictions for games that went final
func (o *Orchestrator) runSettlementSweep(ctx context.Context) {
	log.Printf("→ Settlement sweep started (interval: %v)", o.config.SettlementInterval)

	ticker := time.NewTicker(o.config.SettlementInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Println("→ Settlement sweep stopped")
			return
		case <-ticker.C:
			result, err := o.sync.ResolveFinishedGames(ctx)
			if err != nil {
				log.Printf("  ⚠️  Settlement sweep failed: %v", err)
				continue
			}
			if len(result.Settled) > 0 {
				log.Printf("  ✓ Settled %d predictions across %d games", len(result.Settled), result.GamesChecked)
			}
		}
	}
}

// runDailyRosterSync refreshes the full player roster once a day
func (o *Orchestrator) runDailyRosterSync(ctx context.Context) {
	log.Printf("→ Daily roster sync scheduler started (runs at %02d:00 daily)", o.config.DailyRosterHour)

	for {
		now := time.Now()
		nextRun := time.Date(now.Year(), now.Month(), now.Day(), o.config.DailyRosterHour, 0, 0, 0, now.Location())
		if now.After(nextRun) {
			nextRun = nextRun.Add(24 * time.Hour)
		}

		waitDuration := time.Until(nextRun)
		log.Printf("  Next roster sync: %s (in %v)", nextRun.Format("2006-01-02 15:04:05"), waitDuration.Round(time.Second))

		select {
		case <-ctx.Done():
			log.Println("→ Daily roster sync scheduler stopped")
			return
		case <-time.After(waitDuration):
			o.runRosterSyncTask(ctx)
		}
	}
}

func (o *Orchestrator) runRosterSyncTask(ctx context.Context) {
	startTime := time.Now()
	log.Println("═══ Roster Sync Starting ═══")

	result, err := o.sync.SyncRosters(ctx)
	if err != nil {
		log.Printf("❌ Roster sync failed: %v", err)
		return
	}

	log.Printf("✓ Roster sync complete in %v: %d resolved, %d skipped (source: %s)",
		time.Since(startTime).Round(time.Second), result.Resolved, result.Skipped, result.Source)
}

// runCacheSweep purges expired entries from the in-memory cache
func (o *Orchestrator) runCacheSweep(ctx context.Context) {
	ticker := time.NewTicker(time.Hour)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if removed := o.memCache.Sweep(); removed > 0 {
				log.Printf("  Cache sweep removed %d expired entries", removed)
			}
		}
	}
}

// Stop gracefully stops the scheduler
func (o *Orchestrator) Stop() {
	log.Println("Stopping scheduler orchestrator...")

	if o.oddsCancel != nil {
		o.oddsCancel()
	}
	if o.scheduleCancel != nil {
		o.scheduleCancel()
	}
	if o.settlementCancel != nil {
		o.settlementCancel()
	}
	if o.dailyCancel != nil {
		o.dailyCancel()
	}
	if o.cancel != nil {
		o.cancel()
	}

	log.Println("✓ Scheduler orchestrator stopped")
}

// TriggerRosterSync manually triggers a roster sync
func (o *Orchestrator) TriggerRosterSync(ctx context.Context) (*syncsvc.RosterResult, error) {
	log.Println("Manual roster sync triggered")
	return o.sync.SyncRosters(ctx)
}

// TriggerOddsSync manually triggers an odds sweep
func (o *Orchestrator) TriggerOddsSync(ctx context.Context) (*syncsvc.OddsResult, error) {
	log.Println("Manual odds sweep triggered")
	return o.sync.SyncOdds(ctx)
}

// GetStatus returns current scheduler status
func (o *Orchestrator) GetStatus() map[string]interface{} {
	return map[string]interface{}{
		"odds_polling_enabled":     o.config.EnableOddsPolling,
		"odds_poll_interval":       o.config.OddsPollInterval.String(),
		"schedule_polling_enabled": o.config.EnableSchedulePolling,
		"settlement_enabled":       o.config.EnableSettlement,
		"settlement_interval":      o.config.SettlementInterval.String(),
		"daily_roster_hour":        o.config.DailyRosterHour,
	}
}
