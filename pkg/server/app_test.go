package server

import (
	"context"
	"errors"
	"strings"
	"testing"

	applogger "MarketBrief/pkg/logger"
)

type fakeComponent struct {
	name     string
	startErr error
	stopErr  error
	events   *[]string
}

func (f *fakeComponent) Start() error {
	*f.events = append(*f.events, "start "+f.name)
	return f.startErr
}

func (f *fakeComponent) Stop(context.Context) error {
	*f.events = append(*f.events, "stop "+f.name)
	return f.stopErr
}

func TestRunContextOrdersLifecycle(t *testing.T) {
	var events []string
	app := New(nil, applogger.NewNop())
	app.Add("http", &fakeComponent{name: "http", events: &events})
	app.Add("scheduler", &fakeComponent{name: "scheduler", events: &events, stopErr: errors.New("late")})
	app.OnClose("store", func() error { events = append(events, "close store"); return nil })

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := app.RunContext(ctx)
	if err == nil || !strings.Contains(err.Error(), "stop scheduler") {
		t.Fatalf("expected joined stop error, got %v", err)
	}

	want := []string{"start http", "start scheduler", "stop scheduler", "stop http", "close store"}
	if strings.Join(events, ",") != strings.Join(want, ",") {
		t.Fatalf("events=%v", events)
	}
}

func TestRunContextStopsStartedOnFailure(t *testing.T) {
	var events []string
	app := New(nil, applogger.NewNop())
	app.Add("http", &fakeComponent{name: "http", events: &events})
	app.Add("consumer", &fakeComponent{name: "consumer", events: &events, startErr: errors.New("no brokers")})
	app.Add("scheduler", &fakeComponent{name: "scheduler", events: &events})

	err := app.RunContext(context.Background())
	if err == nil || !strings.Contains(err.Error(), "start consumer") {
		t.Fatalf("err=%v", err)
	}
	want := []string{"start http", "start consumer", "stop http"}
	if strings.Join(events, ",") != strings.Join(want, ",") {
		t.Fatalf("events=%v", events)
	}
}

func TestAddIgnoresNil(t *testing.T) {
	app := New(nil, applogger.NewNop())
	app.Add("queue", nil)
	if len(app.components) != 0 {
		t.Fatalf("nil component registered")
	}
}
