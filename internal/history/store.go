package history

import (
	"fmt"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/acolita/hydra-sh/internal/adapters/realclock"
	"github.com/acolita/hydra-sh/internal/ports"
	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// entryRow is the table layout. Seq orders entries by arrival, which is
// also the eviction order.
type entryRow struct {
	Seq            uint   `gorm:"primaryKey;autoIncrement"`
	ID             string `gorm:"uniqueIndex;size:36"`
	Host           string `gorm:"index:idx_host_day;not null"`
	Day            string `gorm:"index:idx_host_day;size:10;not null"`
	User           string
	Cmd            string
	Output         string
	DurationMs     int64
	Timestamp      time.Time
	ConnectionName string
	ExecutionType  string `gorm:"size:32"`
}

func (entryRow) TableName() string { return "history_entries" }

func (r entryRow) entry() Entry {
	return Entry{
		ID:             r.ID,
		User:           r.User,
		Cmd:            r.Cmd,
		Output:         r.Output,
		Duration:       r.DurationMs,
		Timestamp:      r.Timestamp.UTC(),
		Host:           r.Host,
		ConnectionName: r.ConnectionName,
		ExecutionType:  r.ExecutionType,
	}
}

// Options configures a Store.
type Options struct {
	// Path is the sqlite database file. Its directory is created.
	Path      string
	MaxPerDay int
	Clock     ports.Clock
	Filesys   ports.FileSystem
}

// Store is the sqlite-backed history store. Appends are serialized so the
// per-day cap is applied atomically with the insert.
type Store struct {
	db        *gorm.DB
	clock     ports.Clock
	maxPerDay int

	mu sync.Mutex
}

// Open opens (and migrates) the database at opts.Path.
func Open(opts Options) (*Store, error) {
	if opts.MaxPerDay <= 0 {
		opts.MaxPerDay = DefaultMaxPerDay
	}
	if opts.Clock == nil {
		opts.Clock = realclock.New()
	}
	if opts.Filesys != nil {
		if dir := filepath.Dir(opts.Path); dir != "" && dir != "." {
			if err := opts.Filesys.MkdirAll(dir, 0o755); err != nil {
				return nil, storageErr("open", fmt.Errorf("create db directory: %w", err))
			}
		}
	}

	db, err := gorm.Open(sqlite.Open(opts.Path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, storageErr("open", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, storageErr("open", err)
	}
	// :memory: databases exist per connection.
	sqlDB.SetMaxOpenConns(1)
	if _, err := sqlDB.Exec("PRAGMA journal_mode=WAL"); err != nil {
		sqlDB.Close()
		return nil, storageErr("open", fmt.Errorf("set WAL mode: %w", err))
	}
	if err := db.AutoMigrate(&entryRow{}); err != nil {
		sqlDB.Close()
		return nil, storageErr("migrate", err)
	}

	return &Store{db: db, clock: opts.Clock, maxPerDay: opts.MaxPerDay}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return storageErr("close", err)
	}
	return storageErr("close", sqlDB.Close())
}

// SetMaxPerDay changes the cap for later appends.
func (s *Store) SetMaxPerDay(n int) {
	if n <= 0 {
		n = DefaultMaxPerDay
	}
	s.mu.Lock()
	s.maxPerDay = n
	s.mu.Unlock()
}

// Add stores e under host. A missing ID is generated and a zero Timestamp is
// set to now. When the day holds more than the cap, the oldest entries of
// that day are evicted.
func (s *Store) Add(host string, e Entry) (Entry, error) {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.Timestamp.IsZero() {
		e.Timestamp = s.clock.Now()
	}
	e.Timestamp = e.Timestamp.UTC()
	e.Host = host

	row := entryRow{
		ID:             e.ID,
		Host:           host,
		Day:            e.Day(),
		User:           e.User,
		Cmd:            e.Cmd,
		Output:         e.Output,
		DurationMs:     e.Duration,
		Timestamp:      e.Timestamp,
		ConnectionName: e.ConnectionName,
		ExecutionType:  e.ExecutionType,
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	err := s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&row).Error; err != nil {
			return err
		}

		var count int64
		if err := tx.Model(&entryRow{}).Where("host = ? AND day = ?", host, row.Day).Count(&count).Error; err != nil {
			return err
		}
		if excess := int(count) - s.maxPerDay; excess > 0 {
			var stale []uint
			if err := tx.Model(&entryRow{}).
				Where("host = ? AND day = ?", host, row.Day).
				Order("seq ASC").
				Limit(excess).
				Pluck("seq", &stale).Error; err != nil {
				return err
			}
			if err := tx.Delete(&entryRow{}, stale).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return Entry{}, storageErr("add", err)
	}
	return e, nil
}

// ByHost returns host's history grouped by day, newest first within a day.
func (s *Store) ByHost(host string) (ByDate, error) {
	var rows []entryRow
	if err := s.db.Where("host = ?", host).Order("seq DESC").Find(&rows).Error; err != nil {
		return nil, storageErr("read", err)
	}

	out := ByDate{}
	for _, r := range rows {
		out[r.Day] = append(out[r.Day], r.entry())
	}
	return out, nil
}

// All returns every host's history.
func (s *Store) All() (map[string]ByDate, error) {
	var rows []entryRow
	if err := s.db.Order("seq DESC").Find(&rows).Error; err != nil {
		return nil, storageErr("read", err)
	}

	out := map[string]ByDate{}
	for _, r := range rows {
		days, ok := out[r.Host]
		if !ok {
			days = ByDate{}
			out[r.Host] = days
		}
		days[r.Day] = append(days[r.Day], r.entry())
	}
	return out, nil
}

// Hosts lists the hosts with stored history, sorted.
func (s *Store) Hosts() ([]string, error) {
	var hosts []string
	if err := s.db.Model(&entryRow{}).Distinct().Pluck("host", &hosts).Error; err != nil {
		return nil, storageErr("read", err)
	}
	sort.Strings(hosts)
	return hosts, nil
}

// DeleteBefore removes every day older than day (a DateLayout key) and
// returns the number of entries removed.
func (s *Store) DeleteBefore(day string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	res := s.db.Where("day < ?", day).Delete(&entryRow{})
	if res.Error != nil {
		return 0, storageErr("prune", res.Error)
	}
	return res.RowsAffected, nil
}
