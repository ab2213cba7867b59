package config

const (
	EnvPrefix = "BUILDMATCH"

	AppEnvDev  = "dev"
	AppEnvProd = "prod"

	DefaultAPIBaseURL = "http://localhost:3001"

	StorageDriverFile   = "file"
	StorageDriverSQLite = "sqlite"
	StorageDriverRedis  = "redis"
)

const (
	EnvAppEnv             = "BUILDMATCH_APP_ENV"
	EnvLogLevel           = "BUILDMATCH_LOG_LEVEL"
	EnvAPIURL             = "BUILDMATCH_API_URL"
	EnvAPITimeout         = "BUILDMATCH_API_TIMEOUT"
	EnvRealtimeEnabled    = "BUILDMATCH_REALTIME_ENABLED"
	EnvRealtimeAttempts   = "BUILDMATCH_REALTIME_RECONNECT_ATTEMPTS"
	EnvRealtimeDelay      = "BUILDMATCH_REALTIME_RECONNECT_DELAY"
	EnvStorageDriver      = "BUILDMATCH_STORAGE_DRIVER"
	EnvStoragePath        = "BUILDMATCH_STORAGE_PATH"
	EnvStorageKey         = "BUILDMATCH_STORAGE_KEY"
	EnvRedisURL           = "BUILDMATCH_REDIS_URL"
	EnvRedisAddr          = "BUILDMATCH_REDIS_ADDR"
	EnvComparisonMaxItems = "BUILDMATCH_COMPARISON_MAX_ITEMS"
	EnvStatusAddr         = "BUILDMATCH_STATUS_ADDR"
	EnvLoginEmail         = "BUILDMATCH_LOGIN_EMAIL"
	EnvLoginPassword      = "BUILDMATCH_LOGIN_PASSWORD"
)
