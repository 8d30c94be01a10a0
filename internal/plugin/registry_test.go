package plugin_test

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/spf13/viper"
	"go.uber.org/zap"

	"imagescout/internal/plugin"
)

// fakePlugin records lifecycle calls into a shared log.
type fakePlugin struct {
	name    string
	log     *[]string
	initErr error
	cfg     *viper.Viper
}

func (p *fakePlugin) Name() string    { return p.name }
func (p *fakePlugin) Version() string { return "0.0.1" }

func (p *fakePlugin) Init(cfg *viper.Viper, _ *zap.Logger) error {
	p.cfg = cfg
	*p.log = append(*p.log, "init:"+p.name)
	return p.initErr
}

func (p *fakePlugin) Start(context.Context) error {
	*p.log = append(*p.log, "start:"+p.name)
	return nil
}

func (p *fakePlugin) Stop() error {
	*p.log = append(*p.log, "stop:"+p.name)
	return nil
}

func (p *fakePlugin) Routes() []plugin.Route {
	return []plugin.Route{{Method: "GET", Path: "/ping", Handler: func(http.ResponseWriter, *http.Request) {}}}
}

func TestRegistryRejectsDuplicates(t *testing.T) {
	var log []string
	r := plugin.NewRegistry(zap.NewNop())

	if err := r.Register(&fakePlugin{name: "one", log: &log}); err != nil {
		t.Fatalf("Register: %v", err)
	}
	if err := r.Register(&fakePlugin{name: "one", log: &log}); err == nil {
		t.Fatal("Register accepted a duplicate name")
	}
}

func TestRegistryLifecycleOrder(t *testing.T) {
	var log []string
	r := plugin.NewRegistry(zap.NewNop())

	for _, name := range []string{"first", "second"} {
		if err := r.Register(&fakePlugin{name: name, log: &log}); err != nil {
			t.Fatalf("Register %s: %v", name, err)
		}
	}

	if err := r.InitAll(viper.New()); err != nil {
		t.Fatalf("InitAll: %v", err)
	}
	if err := r.StartAll(context.Background()); err != nil {
		t.Fatalf("StartAll: %v", err)
	}
	r.StopAll()

	want := []string{
		"init:first", "init:second",
		"start:first", "start:second",
		"stop:second", "stop:first", // Reverse order on shutdown
	}
	if len(log) != len(want) {
		t.Fatalf("log = %v, want %v", log, want)
	}
	for i := range want {
		if log[i] != want[i] {
			t.Fatalf("log[%d] = %q, want %q (full: %v)", i, log[i], want[i], log)
		}
	}
}

func TestRegistryInitAllStopsOnError(t *testing.T) {
	var log []string
	r := plugin.NewRegistry(zap.NewNop())

	boom := errors.New("boom")
	if err := r.Register(&fakePlugin{name: "bad", log: &log, initErr: boom}); err != nil {
		t.Fatalf("Register: %v", err)
	}
	if err := r.Register(&fakePlugin{name: "after", log: &log}); err != nil {
		t.Fatalf("Register: %v", err)
	}

	err := r.InitAll(viper.New())
	if !errors.Is(err, boom) {
		t.Fatalf("InitAll = %v, want wrapped boom", err)
	}
	for _, entry := range log {
		if entry == "init:after" {
			t.Error("InitAll continued past a failing plugin")
		}
	}
}

func TestRegistryPassesPluginConfigSection(t *testing.T) {
	var log []string
	p := &fakePlugin{name: "catalog", log: &log}
	r := plugin.NewRegistry(zap.NewNop())
	if err := r.Register(p); err != nil {
		t.Fatalf("Register: %v", err)
	}

	cfg := viper.New()
	cfg.Set("plugins.catalog.answer", 42)
	if err := r.InitAll(cfg); err != nil {
		t.Fatalf("InitAll: %v", err)
	}

	if p.cfg == nil || p.cfg.GetInt("answer") != 42 {
		t.Errorf("plugin config section not passed through (got %+v)", p.cfg)
	}
}

func TestRegistryAllRoutes(t *testing.T) {
	var log []string
	r := plugin.NewRegistry(zap.NewNop())
	if err := r.Register(&fakePlugin{name: "catalog", log: &log}); err != nil {
		t.Fatalf("Register: %v", err)
	}

	routes := r.AllRoutes()
	if len(routes["catalog"]) != 1 || routes["catalog"][0].Path != "/ping" {
		t.Errorf("AllRoutes = %+v, want catalog /ping", routes)
	}
}
