package config

import (
	"log"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Settings struct {
	Port           int    `envconfig:"PORT" default:"3000"`
	DataPath       string `envconfig:"DATA_PATH" default:"/app/data"`
	LogPath        string `envconfig:"LOG_PATH" default:""`
	StorageBackend string `envconfig:"STORAGE_BACKEND" default:"database"`
	DatabaseURL    string `envconfig:"DATABASE_URL" default:"/app/data/bothive.db"`
	GatewayURL     string `envconfig:"GATEWAY_URL" default:"wss://gateway.bothive.dev/v1/session"`

	// Hosting limits and retention
	MaxBots       int           `envconfig:"MAX_BOTS" default:"50"`
	Retention     time.Duration `envconfig:"RETENTION" default:"72h"`
	SweepSchedule string        `envconfig:"SWEEP_SCHEDULE" default:"@hourly"`

	// Admin endpoints accept X-Admin-Token matching either the bcrypt
	// hash (preferred) or the plain token.
	AdminToken     string `envconfig:"ADMIN_TOKEN" default:""`
	AdminTokenHash string `envconfig:"ADMIN_TOKEN_HASH" default:""`

	// Optional YAML fleet file applied at boot
	ImportFile string `envconfig:"IMPORT_FILE" default:""`

	// Reconnect policy
	ReconnectMaxRetries     int           `envconfig:"RECONNECT_MAX_RETRIES" default:"10"`
	ReconnectInitialBackoff time.Duration `envconfig:"RECONNECT_INITIAL_BACKOFF" default:"1s"`
	ReconnectMaxBackoff     time.Duration `envconfig:"RECONNECT_MAX_BACKOFF" default:"60s"`
}

var Cfg Settings

func Load() {
	if err := envconfig.Process("BOTHIVE", &Cfg); err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
}
