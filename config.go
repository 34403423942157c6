package smpp

import (
	"time"

	"github.com/caarlos0/env/v7"
)

// Config holds the options spec for the core recognises, loadable from the
// environment with github.com/caarlos0/env struct tags. Zero-value Config
// is usable: a zero BindTimeout, EnquireLinkInterval or InitialReconnectDelay
// falls back to its envDefault value, and LoadConfig fills in the documented
// defaults for anything unset in the environment.
type Config struct {
	// BindTimeout is the maximum time a session may spend in OPEN before
	// it is forcibly closed for failing to complete the bind handshake.
	BindTimeout time.Duration `env:"SMPP_BIND_TIMEOUT" envDefault:"30s"`
	// EnquireLinkInterval is the period of the link-check loop while bound.
	EnquireLinkInterval time.Duration `env:"SMPP_ENQUIRE_LINK_INTERVAL" envDefault:"55s"`
	// SendMultipartSAR enables SAR-based segmentation of long messages.
	SendMultipartSAR bool `env:"SEND_MULTIPART_SAR" envDefault:"false"`
	// SendMultipartUDH enables UDH-based segmentation of long messages.
	SendMultipartUDH bool `env:"SEND_MULTIPART_UDH" envDefault:"false"`
	// SendLongMessages moves single-segment payloads over 254 bytes into the
	// message_payload optional parameter, hex-encoded. When false they are
	// sent in short_message unchanged.
	SendLongMessages bool `env:"SEND_LONG_MESSAGES" envDefault:"false"`
	// InitialReconnectDelay seeds the reconnect scheduler's back-off.
	InitialReconnectDelay time.Duration `env:"INITIAL_RECONNECT_DELAY" envDefault:"5s"`
}

// LoadConfig reads Config from the process environment, applying defaults
// for anything not set.
func LoadConfig() (Config, error) {
	cfg := Config{}
	if err := env.Parse(&cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}
