package kafka

import (
	"crypto/tls"
	"fmt"

	"github.com/segmentio/kafka-go/sasl"
	"github.com/segmentio/kafka-go/sasl/plain"
	"github.com/segmentio/kafka-go/sasl/scram"
)

// saslMechanism returns the SASL mechanism configured in cfg, or nil when
// SASL is disabled.
func saslMechanism(cfg Config) (sasl.Mechanism, error) {
	if !cfg.SASLEnabled {
		return nil, nil
	}
	switch cfg.SASLMechanism {
	case "SCRAM-SHA-256":
		return scram.Mechanism(scram.SHA256, cfg.SASLUsername, cfg.SASLPassword)
	case "SCRAM-SHA-512":
		return scram.Mechanism(scram.SHA512, cfg.SASLUsername, cfg.SASLPassword)
	case "PLAIN", "":
		return plain.Mechanism{
			Username: cfg.SASLUsername,
			Password: cfg.SASLPassword,
		}, nil
	default:
		return nil, fmt.Errorf("unsupported SASL mechanism %q", cfg.SASLMechanism)
	}
}

func tlsConfig(cfg Config) *tls.Config {
	if !cfg.TLS {
		return nil
	}
	return &tls.Config{MinVersion: tls.VersionTLS12}
}
