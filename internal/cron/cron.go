package cron

import (
	"context"
	"os"
	"sync"
	"time"

	"github.com/caarlos0/env/v6"
	"github.com/redis/go-redis/v9"
	cronv3 "github.com/robfig/cron/v3"

	"github.com/pawpal/petmail/config"
	cron_config "github.com/pawpal/petmail/internal/cron/config"
	"github.com/pawpal/petmail/internal/logger"
	"github.com/pawpal/petmail/internal/tracing"
)

// CONSTANTS
const (
	// GroupIdempotency is the group for idempotency table maintenance
	GroupIdempotency = "idempotency"

	// LeaseDuration is how long a replica holds a job once it starts it
	LeaseDuration = 5 * time.Minute

	leaseKeyPrefix = "petmail:cron:"
)

// LOCK MANAGEMENT
var jobLocks = struct {
	sync.Mutex
	locks map[string]*sync.Mutex
}{
	locks: map[string]*sync.Mutex{
		GroupIdempotency: new(sync.Mutex),
	},
}

// IdempotencyJobs is the maintenance work scheduled against processed_emails.
type IdempotencyJobs interface {
	Purge(ctx context.Context) (int64, error)
	ReportStale(ctx context.Context) (int64, error)
}

type CronManager struct {
	cfg         *config.Config
	log         logger.Logger
	cron        *cronv3.Cron
	redis       *redis.Client
	identity    string
	stopCh      chan struct{}
	stopOnce    sync.Once
	jobIDs      map[string]cronv3.EntryID
	idempotency IdempotencyJobs
}

// NewCronManager builds the scheduler. With a redis client each job run is
// leased so only one replica executes it; without one every replica runs it.
func NewCronManager(cfg *config.Config, log logger.Logger, rdb *redis.Client, idempotency IdempotencyJobs) *CronManager {
	identity := os.Getenv("POD_NAME")
	if identity == "" {
		identity, _ = os.Hostname()
	}
	if identity == "" {
		identity = "local"
	}
	return &CronManager{
		cfg:         cfg,
		log:         log,
		redis:       rdb,
		identity:    identity,
		stopCh:      make(chan struct{}),
		jobIDs:      make(map[string]cronv3.EntryID),
		idempotency: idempotency,
	}
}

// Start registers the jobs and starts the scheduler.
func (cm *CronManager) Start() error {
	if cm.redis == nil {
		cm.log.Info("Starting cron manager in local mode")
	} else {
		cm.log.Infof("Starting cron manager with redis job leases as %s", cm.identity)
	}
	return cm.StartCron()
}

// Stop gracefully stops the cron manager. Safe to call more than once.
func (cm *CronManager) Stop() {
	cm.stopOnce.Do(func() {
		if cm.cron != nil {
			cm.log.Info("Stopping cron manager")
			ctx := cm.cron.Stop()
			// Wait for jobs to finish
			<-ctx.Done()
		}
		close(cm.stopCh)
	})
}

// registerJobs adds all cron jobs to the scheduler
func (cm *CronManager) registerJobs(c *cronv3.Cron, cronConfig cron_config.Config) error {
	if cronConfig.CronScheduleHeartbeat != "" {
		id, err := c.AddFunc(cronConfig.CronScheduleHeartbeat, func() {
			defer tracing.RecoverAndLogToJaeger(cm.log)
			cm.log.Debugf("Cron heartbeat from %s", cm.identity)
		})
		if err != nil {
			return err
		}
		cm.jobIDs["heartbeat"] = id
		cm.log.Infof("Registered heartbeat job with schedule: %s", cronConfig.CronScheduleHeartbeat)
	}

	if cronConfig.CronScheduleIdempotencyPurge != "" && cm.idempotency != nil {
		id, err := c.AddFunc(cronConfig.CronScheduleIdempotencyPurge, cm.guarded("idempotency_purge", GroupIdempotency, cm.purgeProcessedEmails))
		if err != nil {
			return err
		}
		cm.jobIDs["idempotency_purge"] = id
		cm.log.Infof("Registered idempotency purge job with schedule: %s", cronConfig.CronScheduleIdempotencyPurge)
	}

	if cronConfig.CronScheduleStaleLockReport != "" && cm.idempotency != nil {
		id, err := c.AddFunc(cronConfig.CronScheduleStaleLockReport, cm.guarded("stale_lock_report", GroupIdempotency, cm.reportStaleLocks))
		if err != nil {
			return err
		}
		cm.jobIDs["stale_lock_report"] = id
		cm.log.Infof("Registered stale lock report job with schedule: %s", cronConfig.CronScheduleStaleLockReport)
	}
	return nil
}

// StartCron initializes and starts the cron scheduler
func (cm *CronManager) StartCron() error {
	var cronConfig cron_config.Config
	if err := env.Parse(&cronConfig); err != nil {
		return err
	}

	// seconds field enabled, overlapping runs skipped
	cronOptions := []cronv3.Option{
		cronv3.WithSeconds(),
		cronv3.WithChain(
			cronv3.SkipIfStillRunning(cronv3.DefaultLogger),
			cronv3.Recover(cronv3.DefaultLogger),
		),
	}
	c := cronv3.New(cronOptions...)
	if err := cm.registerJobs(c, cronConfig); err != nil {
		return err
	}
	c.Start()
	cm.cron = c
	return nil
}

// guarded serialises jobs of one group in this process and, when redis is
// configured, across replicas.
func (cm *CronManager) guarded(name, group string, job func()) func() {
	return func() {
		defer tracing.RecoverAndLogToJaeger(cm.log)
		jobLocks.locks[group].Lock()
		defer jobLocks.locks[group].Unlock()

		if !cm.lease(name) {
			cm.log.Debugf("Skipping %s, leased by another replica", name)
			return
		}
		job()
	}
}

func (cm *CronManager) lease(name string) bool {
	if cm.redis == nil {
		return true
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	ok, err := cm.redis.SetNX(ctx, leaseKeyPrefix+name, cm.identity, LeaseDuration).Result()
	if err != nil {
		// redis trouble should not stop maintenance
		cm.log.Warnf("Could not lease cron job %s, running locally: %v", name, err)
		return true
	}
	return ok
}

func (cm *CronManager) purgeProcessedEmails() {
	span, ctx := tracing.StartTracerSpan(context.Background(), "CronManager.purgeProcessedEmails")
	defer span.Finish()
	tracing.TagComponentCronJob(span)

	deleted, err := cm.idempotency.Purge(ctx)
	if err != nil {
		tracing.TraceErr(span, err)
		cm.log.Errorf("Failed to purge processed emails: %v", err)
		return
	}
	span.LogKV("deleted", deleted)
}

func (cm *CronManager) reportStaleLocks() {
	span, ctx := tracing.StartTracerSpan(context.Background(), "CronManager.reportStaleLocks")
	defer span.Finish()
	tracing.TagComponentCronJob(span)

	stale, err := cm.idempotency.ReportStale(ctx)
	if err != nil {
		tracing.TraceErr(span, err)
		cm.log.Errorf("Failed to report stale locks: %v", err)
		return
	}
	span.LogKV("stale", stale)
}
