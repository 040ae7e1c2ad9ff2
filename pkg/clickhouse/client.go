package clickhouse

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2"
)

// Settings describes one ClickHouse endpoint and its pool.
type Settings struct {
	Host     string
	Port     int
	Database string
	User     string
	Password string
	HTTP     bool

	MaxOpen     int
	MaxIdle     int
	MaxLifetime time.Duration

	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	MaxExecution time.Duration
}

type Option func(*Settings)

// WithAddr sets the endpoint. A non-positive port keeps the native default.
func WithAddr(host string, port int) Option {
	return func(s *Settings) {
		s.Host = host
		if port > 0 {
			s.Port = port
		}
	}
}

// WithAuth sets database and credentials. An empty database keeps "default".
func WithAuth(database, user, password string) Option {
	return func(s *Settings) {
		if database != "" {
			s.Database = database
		}
		s.User, s.Password = user, password
	}
}

func WithPool(maxOpen, maxIdle int, lifetime time.Duration) Option {
	return func(s *Settings) {
		s.MaxOpen, s.MaxIdle = maxOpen, maxIdle
		if lifetime > 0 {
			s.MaxLifetime = lifetime
		}
	}
}

// WithTimeouts sets dial and read timeouts plus the server-side
// max_execution_time. Zero values leave the current setting.
func WithTimeouts(dial, read, maxExecution time.Duration) Option {
	return func(s *Settings) {
		if dial > 0 {
			s.DialTimeout = dial
		}
		if read > 0 {
			s.ReadTimeout = read
		}
		if maxExecution > 0 {
			s.MaxExecution = maxExecution
		}
	}
}

// WithHTTP switches from the native protocol to HTTP.
func WithHTTP(on bool) Option {
	return func(s *Settings) { s.HTTP = on }
}

func (s Settings) driverOptions() *clickhouse.Options {
	o := &clickhouse.Options{
		Addr:        []string{net.JoinHostPort(s.Host, strconv.Itoa(s.Port))},
		Auth:        clickhouse.Auth{Database: s.Database, Username: s.User, Password: s.Password},
		Protocol:    clickhouse.Native,
		DialTimeout: s.DialTimeout,
		ReadTimeout: s.ReadTimeout,
		Settings:    clickhouse.Settings{},
	}
	if s.HTTP {
		o.Protocol = clickhouse.HTTP
	}
	if s.MaxExecution > 0 {
		o.Settings["max_execution_time"] = int(s.MaxExecution.Seconds())
	}
	return o
}

// Client wraps a database/sql pool opened through clickhouse-go.
type Client struct {
	db       *sql.DB
	database string
}

// NewClient opens the pool and pings it within the dial timeout.
func NewClient(opts ...Option) (*Client, error) {
	s := Settings{
		Port:        9000,
		Database:    "default",
		User:        "default",
		MaxOpen:     10,
		MaxIdle:     5,
		MaxLifetime: 5 * time.Minute,
		DialTimeout: 5 * time.Second,
		ReadTimeout: 10 * time.Second,
	}
	for _, opt := range opts {
		opt(&s)
	}
	if s.Host == "" {
		return nil, errors.New("clickhouse: host is required")
	}

	db := clickhouse.OpenDB(s.driverOptions())
	db.SetMaxOpenConns(s.MaxOpen)
	db.SetMaxIdleConns(s.MaxIdle)
	db.SetConnMaxLifetime(s.MaxLifetime)

	ctx, cancel := context.WithTimeout(context.Background(), s.DialTimeout)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("clickhouse: ping %s: %w", s.Host, err)
	}
	return &Client{db: db, database: s.Database}, nil
}

func (c *Client) DB() *sql.DB { return c.db }

func (c *Client) Database() string { return c.database }

func (c *Client) Health(ctx context.Context) error { return c.db.PingContext(ctx) }

func (c *Client) Close() error { return c.db.Close() }

// InitSchema applies idempotent DDL in order and stops at the first failure.
func (c *Client) InitSchema(ctx context.Context, stmts []string) error {
	for i, stmt := range stmts {
		if _, err := c.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("clickhouse: schema statement %d: %w", i, err)
		}
	}
	return nil
}
