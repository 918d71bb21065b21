package models

import "time"

// Config represents the application configuration
type Config struct {
	// OwnerId scopes every repository call; the app is single-owner per
	// device but the stores never assume it.
	OwnerId string

	Local  LocalConfig
	Remote RemoteConfig
	Sync   SyncConfig
}

// LocalConfig holds embedded database settings
type LocalConfig struct {
	Path            string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
	PingTimeout     time.Duration
	CurrenciesFile  string
}

// RemoteConfig holds the managed backend connection settings
type RemoteConfig struct {
	DSN             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// SyncConfig holds sync engine settings
type SyncConfig struct {
	PollingInterval time.Duration
	BatchLimit      int
}
