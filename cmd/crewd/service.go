package main

import (
	"fmt"
	"log"

	"github.com/opsmind-ai/crewd/internal/broker"
	"github.com/opsmind-ai/crewd/internal/bus"
	"github.com/opsmind-ai/crewd/internal/config"
	"github.com/opsmind-ai/crewd/internal/decision"
	"github.com/opsmind-ai/crewd/internal/events"
	"github.com/opsmind-ai/crewd/internal/loop"
	"github.com/opsmind-ai/crewd/internal/orchestrator"
	"github.com/opsmind-ai/crewd/internal/persona"
	"github.com/opsmind-ai/crewd/internal/store"
	"github.com/opsmind-ai/crewd/internal/tool"
	"github.com/opsmind-ai/crewd/internal/worker"
)

// service bundles the wired coordination stack behind one factory.
type service struct {
	cfg     *config.Config
	broker  broker.Broker
	store   store.Store
	catalog *persona.Catalog
	worker  *worker.Worker
}

// loadConfig honors the --config flag, falling back to discovery.
func loadConfig() (*config.Config, error) {
	if configPath != "" {
		return config.LoadFromPath(configPath)
	}
	return config.Load()
}

// newService wires broker, store, catalog, provider, loop, bus, orchestrator,
// and worker from configuration.
func newService() (*service, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	b, err := newBroker(cfg)
	if err != nil {
		return nil, err
	}

	var st store.Store
	if cfg.Store.SQLitePath != "" {
		st, err = store.OpenSQLite(cfg.Store.SQLitePath)
		if err != nil {
			return nil, fmt.Errorf("open store: %w", err)
		}
	} else {
		st = store.NewMemoryStore()
	}

	catalog := persona.Builtin()
	if cfg.Personas.Dir != "" {
		if err := catalog.LoadDir(cfg.Personas.Dir); err != nil {
			return nil, fmt.Errorf("load personas: %w", err)
		}
	}

	provider, err := newProvider(cfg)
	if err != nil {
		return nil, err
	}

	emitter := events.NewEmitter(b, events.DefaultChannel)
	msgBus := bus.New(b, st, emitter)
	execLoop := loop.New(catalog, tool.Builtin(), provider,
		loop.WithStore(st),
		loop.WithEmitter(emitter),
		loop.WithMaxDelegationDepth(cfg.Delegation.MaxDepth),
	)
	orch := orchestrator.New(catalog, provider, execLoop, msgBus, st, emitter)
	w := worker.New(b, orch,
		worker.WithQueue(cfg.Worker.Queue),
		worker.WithStore(st),
		worker.WithEmitter(emitter),
		worker.WithCallbackTimeout(cfg.Worker.CallbackTimeout),
	)

	return &service{
		cfg:     cfg,
		broker:  b,
		store:   st,
		catalog: catalog,
		worker:  w,
	}, nil
}

func newBroker(cfg *config.Config) (broker.Broker, error) {
	switch cfg.Broker.Kind {
	case "", "memory":
		return broker.NewMemory(), nil
	case "redis":
		b, err := broker.NewRedis(cfg.Broker.RedisURL)
		if err != nil {
			return nil, fmt.Errorf("connect redis: %w", err)
		}
		return b, nil
	default:
		return nil, fmt.Errorf("unknown broker kind %q", cfg.Broker.Kind)
	}
}

// newProvider selects the decision provider. Without an explicit kind, the
// Anthropic provider is used when a key is configured, the deterministic
// mock otherwise.
func newProvider(cfg *config.Config) (decision.Provider, error) {
	kind := cfg.Provider.Kind
	if kind == "" {
		if _, err := config.GetAPIKey(cfg); err == nil {
			kind = "anthropic"
		} else {
			kind = "mock"
		}
	}

	switch kind {
	case "mock":
		log.Println("[crewd] using the deterministic mock decision provider")
		return decision.NewMock(), nil
	case "anthropic":
		key, err := config.GetAPIKey(cfg)
		if err != nil {
			return nil, err
		}
		return decision.NewAnthropic(decision.AnthropicConfig{
			APIKey: key,
			Model:  cfg.Anthropic.Model,
		})
	default:
		return nil, fmt.Errorf("unknown provider kind %q", kind)
	}
}

func (s *service) Close() {
	if err := s.store.Close(); err != nil {
		log.Printf("[crewd] close store: %v", err)
	}
	if err := s.broker.Close(); err != nil {
		log.Printf("[crewd] close broker: %v", err)
	}
}
