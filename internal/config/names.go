package config

import (
	"fmt"
	"strings"
)

const (
	BackendCLI    = "cli"
	BackendOpenAI = "openai"
	BackendTone   = "tone"
)

const (
	TransportLocal = "local"
	TransportNATS  = "nats"
)

const (
	StoreMemory = "memory"
	StoreSQLite = "sqlite"
)

func NormalizeBackend(raw string) (string, error) {
	backend := strings.ToLower(strings.TrimSpace(raw))
	if backend == "" {
		backend = BackendCLI
	}
	switch backend {
	case BackendCLI, BackendOpenAI, BackendTone:
		return backend, nil
	case "local", "coqui":
		return BackendCLI, nil
	case "remote":
		return BackendOpenAI, nil
	default:
		return "", fmt.Errorf(
			"invalid backend %q (expected %s|%s|%s)",
			raw,
			BackendCLI,
			BackendOpenAI,
			BackendTone,
		)
	}
}

func NormalizeTransport(raw string) (string, error) {
	transport := strings.ToLower(strings.TrimSpace(raw))
	switch transport {
	case "", TransportLocal:
		return TransportLocal, nil
	case TransportNATS:
		return TransportNATS, nil
	default:
		return "", fmt.Errorf("invalid queue transport %q (expected %s|%s)", raw, TransportLocal, TransportNATS)
	}
}

func NormalizeStoreDriver(raw string) (string, error) {
	driver := strings.ToLower(strings.TrimSpace(raw))
	switch driver {
	case "", StoreMemory:
		return StoreMemory, nil
	case StoreSQLite, "sqlite3":
		return StoreSQLite, nil
	default:
		return "", fmt.Errorf("invalid store driver %q (expected %s|%s)", raw, StoreMemory, StoreSQLite)
	}
}
