package clickhouse

import (
	"testing"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2"
)

func TestDriverOptions(t *testing.T) {
	s := Settings{Port: 9000, Database: "default", User: "default"}
	for _, opt := range []Option{
		WithAddr("ch.internal", 9440),
		WithAuth("market", "reader", "secret"),
		WithHTTP(true),
		WithTimeouts(2*time.Second, 0, 30*time.Second),
	} {
		opt(&s)
	}
	o := s.driverOptions()
	if len(o.Addr) != 1 || o.Addr[0] != "ch.internal:9440" {
		t.Fatalf("addr=%v", o.Addr)
	}
	if o.Auth.Database != "market" || o.Auth.Username != "reader" || o.Auth.Password != "secret" {
		t.Fatalf("auth=%+v", o.Auth)
	}
	if o.Protocol != clickhouse.HTTP {
		t.Fatalf("protocol=%v", o.Protocol)
	}
	if o.DialTimeout != 2*time.Second {
		t.Fatalf("dial timeout=%v", o.DialTimeout)
	}
	if o.Settings["max_execution_time"] != 30 {
		t.Fatalf("settings=%v", o.Settings)
	}
}

func TestOptionsKeepDefaultsOnZero(t *testing.T) {
	s := Settings{Port: 9000, Database: "default", ReadTimeout: time.Second}
	WithAddr("h", 0)(&s)
	WithAuth("", "u", "")(&s)
	WithTimeouts(0, 0, 0)(&s)
	if s.Port != 9000 || s.Database != "default" || s.ReadTimeout != time.Second {
		t.Fatalf("defaults overwritten: %+v", s)
	}
	if _, ok := s.driverOptions().Settings["max_execution_time"]; ok {
		t.Fatal("max_execution_time set without a limit")
	}
}

func TestNewClientRequiresHost(t *testing.T) {
	if _, err := NewClient(); err == nil {
		t.Fatalf("expected error without host")
	}
}
