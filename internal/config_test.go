package internal

import (
	"testing"
	"time"

	apperrors "session-lab/errors"

	"github.com/stretchr/testify/require"
)

func TestLoad_SenderDefaults(t *testing.T) {
	req := require.New(t)

	var cfg SenderConfig
	req.NoError(Load(&cfg))

	req.Equal(DefaultServer, cfg.Server)
	req.Equal(DefaultSharedSecret, cfg.SharedSecret)
	req.Equal("org/bob/v1", cfg.Identity)
	req.Equal("org/alice/v1", cfg.Remote)
	req.Equal(10, cfg.Iterations)
	req.Equal(1, cfg.Min)
	req.Equal(100, cfg.Max)
	req.Equal(5*time.Second, cfg.ReplyTimeout)
	req.Equal(time.Second, cfg.Pause)
}

func TestLoad_ReceiverDefaults(t *testing.T) {
	req := require.New(t)

	var cfg ReceiverConfig
	req.NoError(Load(&cfg))

	req.Equal("org/alice/v1", cfg.Identity)
	req.Equal(60*time.Second, cfg.PollTimeout)
	req.True(cfg.SecureGroupKeying)
}

func TestLoad_RelayFromEnvironment(t *testing.T) {
	req := require.New(t)
	t.Setenv("RELAY_PORT", "9000")
	t.Setenv("HEARTBEAT_INTERVAL", "5s")

	var cfg RelayConfig
	req.NoError(Load(&cfg))

	req.Equal(9000, cfg.Port)
	req.Equal(46358, cfg.HealthPort)
	req.Equal(5*time.Second, cfg.HeartbeatInterval)
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
		cfg  any
	}{
		{name: "short secret", env: map[string]string{"SHARED_SECRET": "too-short"}, cfg: &PeerConfig{}},
		{name: "malformed identity", env: map[string]string{"IDENTITY": "alice"}, cfg: &PeerConfig{}},
		{name: "sender talking to itself", env: map[string]string{"REMOTE": "org/bob/v1"}, cfg: &SenderConfig{}},
		{name: "inverted range", env: map[string]string{"MIN": "50", "MAX": "10"}, cfg: &SenderConfig{}},
		{name: "history without database", env: map[string]string{}, cfg: &HistoryConfig{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			var err error
			switch cfg := tt.cfg.(type) {
			case *PeerConfig:
				err = Load(cfg)
			case *SenderConfig:
				err = Load(cfg)
			case *HistoryConfig:
				err = Load(cfg)
			}
			require.ErrorIs(t, err, apperrors.ErrInvalidConfig)
		})
	}
}
