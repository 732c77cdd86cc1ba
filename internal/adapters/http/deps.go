package http

import (
	"github.com/nats-io/nats.go"

	"github.com/aquadex/aquadex/internal/adapters/postgres"
	"github.com/aquadex/aquadex/internal/adapters/valkey"
	"github.com/aquadex/aquadex/internal/core/usecases"
)

// Dependencies holds all services needed by HTTP handlers.
// Infrastructure fields may be nil when the backing service is unavailable.
type Dependencies struct {
	Stores *usecases.StoreService
	NATS   *nats.Conn
	DB     *postgres.DB
	Cache  *valkey.Cache
}
