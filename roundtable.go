// Package roundtable is the high-level façade that wires a discussion engine
// from configuration: a model provider, the generation service, a session
// store and the engine.Controller that drives turns.
//
// Most applications:
//  1. Load a config.Config (or start from config.Default())
//  2. Call New to obtain a Roundtable
//  3. Run the controller loop and issue commands through Controller
package roundtable

import (
	"context"
	"fmt"

	"github.com/anthropics/anthropic-sdk-go"

	"github.com/hupe1980/roundtable/config"
	"github.com/hupe1980/roundtable/core"
	"github.com/hupe1980/roundtable/engine"
	"github.com/hupe1980/roundtable/generation"
	"github.com/hupe1980/roundtable/logging"
	"github.com/hupe1980/roundtable/model"
	anthropicmodel "github.com/hupe1980/roundtable/model/anthropic"
	"github.com/hupe1980/roundtable/model/openai"
	"github.com/hupe1980/roundtable/session"
	"github.com/hupe1980/roundtable/session/jsonfile"
	"github.com/hupe1980/roundtable/session/sqlite"
)

// Options overrides pieces that would otherwise be built from the config.
type Options struct {
	// Model replaces the configured provider, e.g. a model.MockModel in tests.
	Model model.Model
	// SessionStore replaces the configured store.
	SessionStore core.SessionStore
	// Callbacks are passed to the controller.
	Callbacks *engine.CallbackManager
	// Logger defaults to the logger described by the config.
	Logger logging.Logger
}

// Roundtable aggregates the wired components.
type Roundtable struct {
	Controller *engine.Controller
	Generator  *generation.Service
	Store      core.SessionStore

	closers []func() error
}

// New builds a Roundtable from cfg.
func New(cfg *config.Config, optFns ...func(o *Options)) (*Roundtable, error) {
	if cfg == nil {
		d := config.Default()
		cfg = &d
	}
	opts := Options{}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.Logger == nil {
		opts.Logger = cfg.Logger()
	}

	rt := &Roundtable{}

	m := opts.Model
	if m == nil {
		var err error
		if m, err = NewModel(cfg.Model); err != nil {
			return nil, err
		}
	}

	timeout, err := cfg.ModelTimeout()
	if err != nil {
		return nil, err
	}
	rt.Generator = generation.New(m, func(o *generation.Options) {
		o.Timeout = timeout
		if cfg.Model.Words > 0 {
			o.Words = cfg.Model.Words
		}
		if cfg.Model.MaxTokens > 0 {
			o.MaxTokens = cfg.Model.MaxTokens
		}
		o.Stream = cfg.Model.Stream
		o.AnalysisWindow = cfg.Engine.AnalysisWindow
		o.Logger = withComponent(opts.Logger, "generation")
	})

	rt.Store = opts.SessionStore
	if rt.Store == nil {
		store, closer, err := OpenStore(cfg.Store, opts.Logger)
		if err != nil {
			return nil, err
		}
		rt.Store = store
		if closer != nil {
			rt.closers = append(rt.closers, closer)
		}
	}

	engineCfg, err := cfg.EngineConfig()
	if err != nil {
		return nil, err
	}
	rt.Controller = engine.New(rt.Generator, func(o *engine.Options) {
		o.Config = engineCfg
		o.SessionStore = rt.Store
		o.Model = m.Info().String()
		o.Callbacks = opts.Callbacks
		o.Logger = withComponent(opts.Logger, "engine")
	})

	return rt, nil
}

// Ping checks that the configured model answers.
func (rt *Roundtable) Ping(ctx context.Context) error {
	return rt.Generator.Ping(ctx)
}

// Close releases the store.
func (rt *Roundtable) Close() error {
	var first error
	for _, c := range rt.closers {
		if err := c(); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// NewModel instantiates the configured provider.
func NewModel(mc config.ModelConfig) (model.Model, error) {
	switch mc.Provider {
	case "ollama":
		return openai.NewOllamaModel(mc.Name, func(o *openai.Options) {
			if mc.BaseURL != "" {
				o.BaseURL = mc.BaseURL
			}
			o.Temperature = mc.Temperature
			o.MaxCompletionTokens = mc.MaxTokens
		}), nil
	case "openai":
		return openai.NewModel(func(o *openai.Options) {
			if mc.Name != "" {
				o.Model = mc.Name
			}
			o.APIKey = mc.APIKey
			o.BaseURL = mc.BaseURL
			o.Temperature = mc.Temperature
			o.MaxCompletionTokens = mc.MaxTokens
		}), nil
	case "anthropic":
		return anthropicmodel.NewModel(func(o *anthropicmodel.Options) {
			if mc.Name != "" {
				o.Model = anthropic.Model(mc.Name)
			}
			o.APIKey = mc.APIKey
			o.BaseURL = mc.BaseURL
			o.Temperature = mc.Temperature
			o.MaxTokens = mc.MaxTokens
		}), nil
	case "mock":
		return model.NewMockModel(mc.Name, "mock"), nil
	default:
		return nil, fmt.Errorf("unknown model provider %q", mc.Provider)
	}
}

// OpenStore instantiates the configured session store. The returned closer
// is nil for stores without resources.
func OpenStore(sc config.StoreConfig, logger logging.Logger) (core.SessionStore, func() error, error) {
	switch sc.Driver {
	case "memory":
		return session.NewInMemoryStore(), nil, nil
	case "sqlite":
		store, err := sqlite.Open(sc.Path, func(o *sqlite.Options) {
			o.Logger = withComponent(logger, "store")
		})
		if err != nil {
			return nil, nil, err
		}
		return store, store.Close, nil
	case "json":
		store, err := jsonfile.Open(sc.Path, func(o *jsonfile.Options) {
			o.Logger = withComponent(logger, "store")
		})
		if err != nil {
			return nil, nil, err
		}
		return store, nil, nil
	default:
		return nil, nil, fmt.Errorf("unknown store driver %q", sc.Driver)
	}
}

func withComponent(l logging.Logger, component string) logging.Logger {
	if sl, ok := l.(*logging.StructuredLogger); ok {
		return sl.WithComponent(component)
	}
	return l
}
