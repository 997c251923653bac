package cron_config

type Config struct {
	// Heartbeat check, every minute
	CronScheduleHeartbeat string `env:"CRON_SCHEDULE_HEARTBEAT" envDefault:"0 * * * * *"`
	// Idempotency retention purge, daily at 03:00
	CronScheduleIdempotencyPurge string `env:"CRON_SCHEDULE_IDEMPOTENCY_PURGE" envDefault:"0 0 3 * * *"`
	// Stale lock report, every 5 minutes
	CronScheduleStaleLockReport string `env:"CRON_SCHEDULE_STALE_LOCK_REPORT" envDefault:"0 */5 * * * *"`
}
