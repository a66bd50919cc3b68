// an sqlite3 backed punch state store
package state

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"fieldops.dev/punchclock/punch/models"
	_ "github.com/mattn/go-sqlite3"
)

type SqliteStore struct {
	db        *sql.DB
	tableName string
	slot      string
}

type SqliteStoreOpt func(*SqliteStore)

func WithTableName(name string) SqliteStoreOpt {
	return func(s *SqliteStore) {
		s.tableName = name
	}
}

func WithSlot(slot string) SqliteStoreOpt {
	return func(s *SqliteStore) {
		s.slot = slot
	}
}

func NewSQLiteStore(dbPath string, opts ...SqliteStoreOpt) (*SqliteStore, error) {
	// https://github.com/mattn/go-sqlite3#connection-string
	params := []string{
		"_journal_mode=WAL",
		"_synchronous=FULL",
		"_busy_timeout=5000",
	}

	db, err := sql.Open("sqlite3", dbPath+"?"+strings.Join(params, "&"))
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite database: %w", err)
	}

	store := &SqliteStore{
		db:        db,
		tableName: "punch_state",
		slot:      DefaultSlot,
	}

	for _, o := range opts {
		o(store)
	}

	if err := store.init(); err != nil {
		db.Close()
		return nil, err
	}

	return store, nil
}

// creates the table; one row per slot
func (s *SqliteStore) init() error {
	createTable := fmt.Sprintf(`
	create table if not exists %s (
		slot text primary key,
		record text not null, -- json
		updated_at text not null default (strftime('%%Y-%%m-%%dT%%H:%%M:%%SZ', 'now'))
	);`, s.tableName)
	_, err := s.db.Exec(createTable)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", s.tableName, err)
	}
	return nil
}

func (s *SqliteStore) Load(ctx context.Context) (*models.OpenPunch, error) {
	query := fmt.Sprintf(`
		select record from %s where slot = ?;
	`, s.tableName)

	var data string
	err := s.db.QueryRowContext(ctx, query, s.slot).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load punch state: %w", err)
	}

	return decode([]byte(data))
}

func (s *SqliteStore) Save(ctx context.Context, record models.OpenPunch) error {
	data, err := encode(record)
	if err != nil {
		return err
	}

	query := fmt.Sprintf(`
		insert into %s (slot, record)
		values (?, ?)
		on conflict(slot) do update set
			record = excluded.record,
			updated_at = strftime('%%Y-%%m-%%dT%%H:%%M:%%SZ', 'now');
	`, s.tableName)

	if _, err := s.db.ExecContext(ctx, query, s.slot, string(data)); err != nil {
		return fmt.Errorf("failed to save punch state: %w", err)
	}
	return nil
}

func (s *SqliteStore) Clear(ctx context.Context) error {
	query := fmt.Sprintf(`
		delete from %s where slot = ?;
	`, s.tableName)

	if _, err := s.db.ExecContext(ctx, query, s.slot); err != nil {
		return fmt.Errorf("failed to clear punch state: %w", err)
	}
	return nil
}

func (s *SqliteStore) Close() error {
	return s.db.Close()
}
