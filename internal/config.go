package internal

import (
	"fmt"
	"time"

	"session-lab/domain"
	apperrors "session-lab/errors"

	"github.com/Netflix/go-env"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
)

const (
	DefaultServer       = "http://localhost:46357"
	DefaultSharedSecret = "demo-shared-secret-min-32-chars!!"
)

// RelayConfig configures cmd/relay.
type RelayConfig struct {
	Host              string        `env:"RELAY_HOST,default=0.0.0.0"`
	Port              int           `env:"RELAY_PORT,default=46357" validate:"min=1,max=65535"`
	HealthPort        int           `env:"RELAY_HEALTH_PORT,default=46358" validate:"min=1,max=65535,nefield=Port"`
	SharedSecret      string        `env:"SHARED_SECRET,default=demo-shared-secret-min-32-chars!!" validate:"min=32"`
	HeartbeatInterval time.Duration `env:"HEARTBEAT_INTERVAL,default=30s" validate:"gt=0"`
	RestartInterval   time.Duration `env:"RESTART_INTERVAL,default=2s" validate:"gt=0"`
	LogLevel          string        `env:"LOG_LEVEL,default=INFO"`
}

// PeerConfig configures the interactive group console, cmd/peer.
type PeerConfig struct {
	Server            string        `env:"SERVER,default=http://localhost:46357" validate:"required"`
	SharedSecret      string        `env:"SHARED_SECRET,default=demo-shared-secret-min-32-chars!!" validate:"min=32"`
	Identity          string        `env:"IDENTITY" validate:"omitempty,identity"`
	SecureGroupKeying bool          `env:"SECURE_GROUP_KEYING,default=true"`
	PollTimeout       time.Duration `env:"POLL_TIMEOUT,default=2s" validate:"gt=0"`
	RequestTimeout    time.Duration `env:"REQUEST_TIMEOUT,default=10s" validate:"gt=0"`
	AutoReply         bool          `env:"AUTO_REPLY,default=false"`
	Colours           bool          `env:"COLOURS,default=true"`
	SinkTimeout       time.Duration `env:"SINK_TIMEOUT,default=1s" validate:"gt=0"`
	BadgerFilepath    string        `env:"BADGER_FILEPATH"`
	LogLevel          string        `env:"LOG_LEVEL,default=WARN"`
}

// ReceiverConfig configures the auto-replying point-to-point peer, cmd/receiver.
type ReceiverConfig struct {
	Server            string        `env:"SERVER,default=http://localhost:46357" validate:"required"`
	SharedSecret      string        `env:"SHARED_SECRET,default=demo-shared-secret-min-32-chars!!" validate:"min=32"`
	Identity          string        `env:"IDENTITY,default=org/alice/v1" validate:"identity"`
	SecureGroupKeying bool          `env:"SECURE_GROUP_KEYING,default=true"`
	PollTimeout       time.Duration `env:"POLL_TIMEOUT,default=60s" validate:"gt=0"`
	BadgerFilepath    string        `env:"BADGER_FILEPATH"`
	LogLevel          string        `env:"LOG_LEVEL,default=INFO"`
}

// SenderConfig configures the odd/even point-to-point sender, cmd/sender.
type SenderConfig struct {
	Server            string        `env:"SERVER,default=http://localhost:46357" validate:"required"`
	SharedSecret      string        `env:"SHARED_SECRET,default=demo-shared-secret-min-32-chars!!" validate:"min=32"`
	Identity          string        `env:"IDENTITY,default=org/bob/v1" validate:"identity"`
	Remote            string        `env:"REMOTE,default=org/alice/v1" validate:"identity,nefield=Identity"`
	SecureGroupKeying bool          `env:"SECURE_GROUP_KEYING,default=true"`
	Iterations        int           `env:"ITERATIONS,default=10" validate:"min=1"`
	Min               int           `env:"MIN,default=1"`
	Max               int           `env:"MAX,default=100" validate:"gtefield=Min"`
	ReplyTimeout      time.Duration `env:"REPLY_TIMEOUT,default=5s" validate:"gt=0"`
	Pause             time.Duration `env:"PAUSE,default=1s" validate:"gte=0"`
	LogLevel          string        `env:"LOG_LEVEL,default=INFO"`
}

// HistoryConfig configures cmd/history.
type HistoryConfig struct {
	BadgerFilepath string `env:"BADGER_FILEPATH,required=true" validate:"required"`
	LimitMessages  *int   `env:"LIMIT_MESSAGES" validate:"omitempty,min=1"`
	InspectPort    int    `env:"INSPECT_PORT,default=0" validate:"min=0,max=65535"`
	LogLevel       string `env:"LOG_LEVEL,default=WARN"`
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	_ = v.RegisterValidation("identity", func(fl validator.FieldLevel) bool {
		_, err := domain.ParseIdentity(fl.Field().String())
		return err == nil
	})
	return v
}

// Load reads an optional .env file, then the environment, into cfg and
// validates the result.
func Load[T any](cfg *T) error {
	_ = godotenv.Load()
	if _, err := env.UnmarshalFromEnviron(cfg); err != nil {
		return fmt.Errorf("%w: %v", apperrors.ErrInvalidConfig, err)
	}
	if err := validate.Struct(cfg); err != nil {
		return fmt.Errorf("%w: %v", apperrors.ErrInvalidConfig, err)
	}
	return nil
}
