package e2e

import (
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	// RELAY_ADDR points at a running relay; empty starts one in-process
	RelayAddr string `envconfig:"RELAY_ADDR"`
	// RELAY_HEALTH_ADDR is the relay's gRPC health endpoint, used with RELAY_ADDR
	HealthAddr   string `envconfig:"RELAY_HEALTH_ADDR"`
	SharedSecret string `envconfig:"SHARED_SECRET" default:"demo-shared-secret-min-32-chars!!"`
	// E2E_COLOURS enables colorized output for better log readability
	Colours bool          `envconfig:"E2E_COLOURS" default:"true"`
	Timeout time.Duration `envconfig:"E2E_TIMEOUT" default:"10s"`
}

func LoadConfig() (Config, error) {
	var cfg Config
	err := envconfig.Process("", &cfg)
	return cfg, err
}
