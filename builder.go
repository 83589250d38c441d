package goShield

import (
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/MrEthical07/goShield/authz"
	"github.com/MrEthical07/goShield/cache"
	"github.com/MrEthical07/goShield/permission"
	"github.com/MrEthical07/goShield/session"
	"github.com/redis/go-redis/v9"
)

// Builder assembles a SecurityManager. Configure it during initialization and
// call Build once; a Builder cannot be reused.
type Builder struct {
	config Config
	redis  redis.UniversalClient

	realms  []Realm
	modules []authz.Module

	eventSink EventSink
	logger    *slog.Logger
	cache     Cache
	limiter   AttemptLimiter
	dao       session.DAO
	clock     func() time.Time

	built bool
}

// New returns a Builder over the default configuration.
func New() *Builder {
	return &Builder{
		config: defaultConfig(),
	}
}

// WithConfig replaces the whole configuration.
func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cloneConfig(cfg)
	return b
}

// WithRedis selects Redis for session storage and, when caching is enabled,
// for the authorization cache.
func (b *Builder) WithRedis(client redis.UniversalClient) *Builder {
	b.redis = client
	return b
}

// WithRealm appends a realm. Realms are consulted in the order added.
func (b *Builder) WithRealm(r Realm) *Builder {
	b.realms = append(b.realms, r)
	return b
}

func (b *Builder) WithRealms(realms ...Realm) *Builder {
	b.realms = append(b.realms, realms...)
	return b
}

// WithModules adds voting modules after the built-in realm modules. They are
// used only in the modules authorization mode.
func (b *Builder) WithModules(modules ...authz.Module) *Builder {
	b.modules = append(b.modules, modules...)
	return b
}

// WithEventSink sets the event sink and enables event delivery.
func (b *Builder) WithEventSink(sink EventSink) *Builder {
	b.eventSink = sink
	b.config.Events.Enabled = sink != nil
	return b
}

// WithLogger injects a logger. Without one, Build creates a logger on
// stderr from the Logging config section.
func (b *Builder) WithLogger(logger *slog.Logger) *Builder {
	b.logger = logger
	return b
}

// WithCache sets the realm authorization cache and enables caching.
func (b *Builder) WithCache(c Cache) *Builder {
	b.cache = c
	b.config.Cache.Enabled = c != nil
	return b
}

// WithAttemptLimiter sets the failed-login limiter and enables throttling.
func (b *Builder) WithAttemptLimiter(l AttemptLimiter) *Builder {
	b.limiter = l
	b.config.Throttle.Enabled = l != nil
	return b
}

// WithSessionDAO overrides the session store chosen from the Redis client.
func (b *Builder) WithSessionDAO(dao session.DAO) *Builder {
	b.dao = dao
	return b
}

// WithClock overrides time.Now for sessions and events.
func (b *Builder) WithClock(clock func() time.Time) *Builder {
	b.clock = clock
	return b
}

func (b *Builder) WithMetricsEnabled(enabled bool) *Builder {
	b.config.Metrics.Enabled = enabled
	return b
}

func (b *Builder) WithLatencyHistograms(enabled bool) *Builder {
	b.config.Metrics.EnableLatencyHistograms = enabled
	return b
}

// Build validates the configuration and wires the SecurityManager. Missing
// realms are a wiring defect and fail with ErrIllegalState.
func (b *Builder) Build() (*SecurityManager, error) {
	if b.built {
		return nil, ErrBuilderUsed
	}

	cfg := cloneConfig(b.config)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	if len(b.realms) == 0 {
		return nil, fmt.Errorf("%w: at least one realm is required", ErrIllegalState)
	}
	for i, r := range b.realms {
		if r == nil {
			return nil, fmt.Errorf("%w: realm %d is nil", ErrIllegalState, i)
		}
	}

	limiter, err := b.attemptLimiter(cfg)
	if err != nil {
		return nil, err
	}

	logger := b.logger
	if logger == nil {
		l, err := NewLogger(cfg.Logging, os.Stderr)
		if err != nil {
			return nil, err
		}
		logger = l
	}
	clock := b.clock
	if clock == nil {
		clock = time.Now
	}
	metrics := NewMetrics(cfg.Metrics)
	resolver := permission.WildcardResolver{CaseSensitive: cfg.Authorization.CaseSensitive}

	// -------- REALMS --------
	realms := append([]Realm(nil), b.realms...)
	if cfg.Authorization.CaseSensitive {
		for _, r := range realms {
			if ra, ok := r.(ResolverAware); ok {
				if err := ra.SetResolver(resolver); err != nil {
					return nil, fmt.Errorf("%w: realm %q: %w", ErrIllegalState, r.Name(), err)
				}
			}
		}
	}
	if c := b.authzCache(cfg); c != nil {
		for i, r := range realms {
			realms[i] = NewCachingRealm(r, c, logger, metrics)
		}
	}

	sm := &SecurityManager{
		config:  cloneConfig(cfg),
		realms:  realms,
		metrics: metrics,
		logger:  logger,
		now:     clock,
	}
	sm.events = newEventDispatcher(cfg.Events, b.eventSink, logger, metrics)

	// -------- AUTHENTICATION --------
	opts := AuthenticatorOptions{Logger: logger, Metrics: metrics, Clock: clock, Limiter: limiter}
	if sm.events != nil {
		opts.Events = sm.events
	}
	authenticator, err := NewAuthenticator(NewRealmVerifier(realms...), opts)
	if err != nil {
		return nil, err
	}
	sm.authenticator = authenticator

	// -------- AUTHORIZATION --------
	var decider Decider
	switch cfg.Authorization.Mode {
	case AuthorizationModeModules:
		strategy, _ := authz.StrategyByName(cfg.Authorization.Strategy)
		modules := []authz.Module{
			NewRealmPermissionModule(resolver, realms...),
			NewRealmRoleModule(realms...),
		}
		modules = append(modules, b.modules...)
		engine, err := authz.NewEngine(strategy, modules...)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrIllegalState, err)
		}
		decider = NewModuleDecider(engine)
	default:
		decider = NewRealmDecider(realms...)
	}
	sm.authorizer = NewAuthorizer(decider, resolver, metrics)

	// -------- SESSIONS --------
	dao := b.dao
	if dao == nil {
		if b.redis != nil {
			dao = session.NewRedisDAO(b.redis, cfg.Session.RedisPrefix, cfg.Session.RecordTTL.Std(), nil)
		} else {
			dao = session.NewMemoryDAO(nil)
		}
	}
	sessions, err := session.NewManager(dao, session.ManagerConfig{
		DefaultTimeout: cfg.Session.DefaultTimeout.Std(),
		Clock:          clock,
		Logger:         logger,
		Listeners:      []session.Listener{sessionEvents{sm: sm}},
	})
	if err != nil {
		return nil, err
	}
	sm.sessions = sessions

	if cfg.Session.ReaperEnabled {
		sm.reaper = session.NewReaper(sessions, cfg.Session.ReaperInterval.Std())
		sm.reaper.OnSweep(func(n int) {
			metrics.Add(MetricSessionReaped, uint64(n))
		})
	}

	b.built = true

	return sm, nil
}

func (b *Builder) authzCache(cfg Config) Cache {
	if b.cache != nil {
		return b.cache
	}
	if !cfg.Cache.Enabled {
		return nil
	}
	if b.redis != nil {
		return cache.NewRedis(b.redis, cfg.Cache.Prefix, cfg.Cache.TTL.Std())
	}
	return cache.NewMemoryWithClock(cfg.Cache.TTL.Std(), b.clock)
}

func (b *Builder) attemptLimiter(cfg Config) (AttemptLimiter, error) {
	if !cfg.Throttle.Enabled {
		return nil, nil
	}
	if b.limiter != nil {
		return b.limiter, nil
	}
	if b.redis == nil {
		return nil, fmt.Errorf("%w: login throttling requires a Redis client or an attempt limiter", ErrIllegalState)
	}
	return NewRedisAttemptLimiter(b.redis, cfg.Throttle), nil
}
