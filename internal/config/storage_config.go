package config

import "time"

type Storage struct{}

var _ StorageConfig = Storage{}

// GetRedisAddr selects the Redis code store when set. Codes stay in memory otherwise.
func (Storage) GetRedisAddr() string {
	return GetEnv("REDIS_ADDR", "")
}

func (Storage) GetRedisPassword() string {
	return GetEnv("REDIS_PASSWORD", "")
}

func (Storage) GetRedisDB() int {
	return GetEnvInt("REDIS_DB", 0)
}

// GetDatabaseURL selects the Postgres consent store when set.
func (Storage) GetDatabaseURL() string {
	return GetEnv("DATABASE_URL", "")
}

// GetSweepInterval is how often expired codes, sessions and revoked token ids are purged.
func (Storage) GetSweepInterval() time.Duration {
	return GetEnvDuration("SWEEP_INTERVAL", time.Minute)
}
