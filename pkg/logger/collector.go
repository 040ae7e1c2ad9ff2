package logger

import (
	"context"
	"encoding/json"
	"os"
	"sort"
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/rs/zerolog"
	"github.com/sourcegraph/conc"
)

const publishTimeout = 30 * time.Second

// Publisher ships a LogBatch to topic.
type Publisher interface {
	PublishMessage(ctx context.Context, topic string, payload interface{}) error
}

// CollectionConfig configures a LogCollector. TimeInterval defaults to 30s
// and CountThreshold, the number of distinct entries that forces an early
// flush, to 100.
type CollectionConfig struct {
	Service        string
	TimeInterval   time.Duration
	CountThreshold int
	Topic          string
	Publisher      Publisher
}

// AggregatedLogEntry is one distinct (level, message, fields, caller) tuple
// and how often it was seen since the last flush.
type AggregatedLogEntry struct {
	Level     string                 `json:"level"`
	Message   string                 `json:"message"`
	Fields    map[string]interface{} `json:"fields"`
	Caller    string                 `json:"caller"`
	Count     int                    `json:"count"`
	FirstSeen time.Time              `json:"first_seen"`
	LastSeen  time.Time              `json:"last_seen"`
}

// LogBatch is the payload published on every flush.
type LogBatch struct {
	Service   string               `json:"service"`
	FlushedAt time.Time            `json:"flushed_at"`
	Entries   []AggregatedLogEntry `json:"entries"`
}

// LogCollector folds repeated warnings and errors into counted entries and
// publishes them periodically, on reaching the threshold, and on Close.
type LogCollector struct {
	cfg CollectionConfig

	mu      sync.Mutex
	entries map[uint64]*AggregatedLogEntry

	inflight conc.WaitGroup
	stop     chan struct{}
	done     chan struct{}
	once     sync.Once
	fallback zerolog.Logger
}

func NewLogCollector(config *CollectionConfig) *LogCollector {
	cfg := *config
	if cfg.TimeInterval <= 0 {
		cfg.TimeInterval = 30 * time.Second
	}
	if cfg.CountThreshold <= 0 {
		cfg.CountThreshold = 100
	}
	c := &LogCollector{
		cfg:      cfg,
		entries:  make(map[uint64]*AggregatedLogEntry),
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
		fallback: zerolog.New(os.Stderr).With().Timestamp().Str("component", "log_collector").Logger(),
	}
	go c.loop()
	return c
}

func (c *LogCollector) AddLog(level, message string, fields map[string]interface{}, caller string) {
	now := time.Now()
	id := fingerprint(level, message, fields, caller)

	c.mu.Lock()
	defer c.mu.Unlock()
	if e, ok := c.entries[id]; ok {
		e.Count++
		e.LastSeen = now
	} else {
		c.entries[id] = &AggregatedLogEntry{
			Level: level, Message: message, Fields: fields, Caller: caller,
			Count: 1, FirstSeen: now, LastSeen: now,
		}
	}
	if len(c.entries) >= c.cfg.CountThreshold {
		batch := c.drainLocked()
		c.inflight.Go(func() { c.publish(batch) })
	}
}

// Pending counts distinct entries waiting for the next flush.
func (c *LogCollector) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Close flushes what is pending and waits for every publish to return.
func (c *LogCollector) Close() {
	c.once.Do(func() { close(c.stop) })
	<-c.done
	c.inflight.Wait()
}

func (c *LogCollector) loop() {
	defer close(c.done)
	t := time.NewTicker(c.cfg.TimeInterval)
	defer t.Stop()
	for {
		select {
		case <-t.C:
			c.flush()
		case <-c.stop:
			c.flush()
			return
		}
	}
}

func (c *LogCollector) flush() {
	c.mu.Lock()
	batch := c.drainLocked()
	c.mu.Unlock()
	c.publish(batch)
}

// drainLocked empties the map and orders entries by count, then first sight.
func (c *LogCollector) drainLocked() []AggregatedLogEntry {
	if len(c.entries) == 0 {
		return nil
	}
	out := make([]AggregatedLogEntry, 0, len(c.entries))
	for _, e := range c.entries {
		out = append(out, *e)
	}
	c.entries = make(map[uint64]*AggregatedLogEntry)
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count == out[j].Count {
			return out[i].FirstSeen.Before(out[j].FirstSeen)
		}
		return out[i].Count > out[j].Count
	})
	return out
}

func (c *LogCollector) publish(entries []AggregatedLogEntry) {
	if len(entries) == 0 || c.cfg.Publisher == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
	defer cancel()
	batch := LogBatch{Service: c.cfg.Service, FlushedAt: time.Now().UTC(), Entries: entries}
	if err := c.cfg.Publisher.PublishMessage(ctx, c.cfg.Topic, batch); err != nil {
		c.fallback.Error().Err(err).Int("entries", len(entries)).Msg("publish aggregated logs")
	}
}

// fingerprint keys an entry. encoding/json sorts map keys, so equal field
// maps hash equally.
func fingerprint(level, message string, fields map[string]interface{}, caller string) uint64 {
	d := xxhash.New()
	for _, s := range []string{level, message, caller} {
		_, _ = d.WriteString(s)
		_, _ = d.Write([]byte{0})
	}
	if len(fields) > 0 {
		b, _ := json.Marshal(fields)
		_, _ = d.Write(b)
	}
	return d.Sum64()
}
