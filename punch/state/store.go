package state

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"fieldops.dev/punchclock/punch/models"
)

// DefaultSlot is the name the open punch is kept under.
const DefaultSlot = "punch_info"

// Store keeps the one open punch a worker may have. Load returns nil
// and no error when the worker is punched out.
type Store interface {
	Load(ctx context.Context) (*models.OpenPunch, error)
	Save(ctx context.Context, record models.OpenPunch) error
	Clear(ctx context.Context) error
}

// Closer is implemented by stores holding a connection.
type Closer interface {
	Close() error
}

var ErrCorruptRecord = errors.New("stored punch record is corrupt")

// ensure that we are satisfying the interface
var (
	_ = []Store{
		&MemoryStore{},
		&SqliteStore{},
		&RedisStore{},
	}
)

// SlotFor scopes the slot to a worker when one is configured, so
// several workers can share one database.
func SlotFor(worker string) string {
	if worker == "" {
		return DefaultSlot
	}
	return DefaultSlot + ":" + worker
}

func encode(record models.OpenPunch) ([]byte, error) {
	if err := record.Validate(); err != nil {
		return nil, err
	}
	return json.Marshal(record)
}

func decode(data []byte) (*models.OpenPunch, error) {
	var rec models.OpenPunch
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorruptRecord, err)
	}
	return &rec, nil
}
