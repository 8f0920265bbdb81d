package pomoAuth

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/MrEthical07/pomoAuth/account"
	"github.com/MrEthical07/pomoAuth/identity"
	internalaudit "github.com/MrEthical07/pomoAuth/internal/audit"
	"github.com/MrEthical07/pomoAuth/internal/logging"
	"github.com/MrEthical07/pomoAuth/internal/rate"
	"github.com/MrEthical07/pomoAuth/jwt"
	"github.com/MrEthical07/pomoAuth/mail"
	"github.com/MrEthical07/pomoAuth/oauth"
	"github.com/MrEthical07/pomoAuth/password"
	"github.com/MrEthical07/pomoAuth/revocation"
	"github.com/MrEthical07/pomoAuth/security"
	"github.com/redis/go-redis/v9"
)

// Builder assembles an Engine. Every collaborator is passed in; the builder
// never opens connections itself. A Builder can be used once.
type Builder struct {
	config Config
	redis  redis.UniversalClient

	accounts   account.Repository
	providers  []oauth.Client
	mailSender mail.Sender
	auditSink  AuditSink
	logger     *slog.Logger
	now        func() time.Time
	newTokenID func() string

	built bool
}

// New returns a Builder seeded with DefaultConfig.
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

// WithRedis sets the client backing the revocation store and login throttle.
func (b *Builder) WithRedis(client redis.UniversalClient) *Builder {
	b.redis = client
	return b
}

// WithAccountRepository sets the persistence layer.
func (b *Builder) WithAccountRepository(repo account.Repository) *Builder {
	b.accounts = repo
	return b
}

// WithOAuthClient registers a provider client. Providers without a client
// fail with ErrUnsupportedProvider.
func (b *Builder) WithOAuthClient(c oauth.Client) *Builder {
	if c != nil {
		b.providers = append(b.providers, c)
	}
	return b
}

// WithMailSender sets where account notifications go. Without one they are
// written to the logger.
func (b *Builder) WithMailSender(s mail.Sender) *Builder {
	b.mailSender = s
	return b
}

func (b *Builder) WithAuditSink(sink AuditSink) *Builder {
	b.auditSink = sink
	return b
}

func (b *Builder) WithLogger(l *slog.Logger) *Builder {
	b.logger = l
	return b
}

// WithClock overrides the wall clock used for iat, exp and cutoffs.
func (b *Builder) WithClock(now func() time.Time) *Builder {
	b.now = now
	return b
}

// WithTokenIDGenerator overrides the jti source.
func (b *Builder) WithTokenIDGenerator(gen func() string) *Builder {
	b.newTokenID = gen
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

// Build validates the configuration and wires the Engine.
func (b *Builder) Build() (*Engine, error) {
	if b.built {
		return nil, errors.New("builder already used")
	}

	cfg := cloneConfig(b.config)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if b.redis == nil {
		return nil, errors.New("redis client required")
	}
	if b.accounts == nil {
		return nil, errors.New("account repository required")
	}

	logger := b.logger
	if logger == nil {
		logger = logging.Discard()
	}
	now := b.now
	if now == nil {
		now = time.Now
	}

	// -------- PASSWORD HASHER --------
	hasher, err := password.NewHasher(password.Config{
		Memory:      cfg.Password.Memory,
		Time:        cfg.Password.Time,
		Parallelism: cfg.Password.Parallelism,
		SaltLength:  cfg.Password.SaltLength,
		KeyLength:   cfg.Password.KeyLength,
	})
	if err != nil {
		return nil, err
	}
	dummyHash, err := hasher.Hash("pomoauth-timing-equalizer")
	if err != nil {
		return nil, err
	}

	// -------- TOKENS --------
	codec, err := jwt.NewCodec(jwt.Config{
		Secret:    cfg.JWT.Secret,
		Algorithm: jwt.Algorithm(strings.ToUpper(cfg.JWT.Algorithm)),
		Issuer:    cfg.JWT.Issuer,
		Leeway:    cfg.JWT.Leeway,
		Now:       now,
	})
	if err != nil {
		return nil, err
	}

	store := revocation.NewStore(b.redis,
		revocation.WithPrefix(cfg.Revocation.KeyPrefix),
		revocation.WithClock(now),
	)

	tokens, err := security.NewService(codec, store, security.Config{
		AccessTTL:  cfg.JWT.AccessTTL,
		RefreshTTL: cfg.JWT.RefreshTTL,
		Now:        now,
		NewTokenID: b.newTokenID,
		Logger:     logger,
	})
	if err != nil {
		return nil, err
	}

	e := &Engine{
		config:    cfg,
		metrics:   NewMetrics(cfg.Metrics),
		logger:    logger,
		now:       now,
		hasher:    hasher,
		dummyHash: dummyHash,
		store:     store,
		tokens:    tokens,
		accounts:  b.accounts,
		providers: oauth.NewRegistry(b.providers...),
	}

	// -------- LOGIN THROTTLE --------
	if cfg.Security.EnableLoginThrottle {
		e.limiter = rate.New(b.redis, rate.Config{
			EnableIPThrottle: cfg.Security.EnableIPThrottle,
			MaxLoginAttempts: cfg.Security.MaxLoginAttempts,
			LoginWindow:      cfg.Security.LoginCooldownDuration,
		})
	}

	// -------- MAIL --------
	if cfg.Mail.Enabled {
		e.notifier = mail.NewNotifier(b.mailSender, logger)
	}

	// -------- IDENTITY --------
	e.reconciler, err = identity.NewReconciler(b.accounts, hasher, identity.Config{
		Logger: logger,
		Now:    now,
		OnProvisioned: func(ctx context.Context, acc account.Account) {
			e.metricInc(MetricAccountCreated)
			e.emitAudit(ctx, auditEventAccountCreated, true, acc.SubjectID(), "", nil, func() map[string]string {
				return map[string]string{"source": "oauth"}
			})
			e.notify(ctx, mail.KindWelcome, acc)
		},
	})
	if err != nil {
		return nil, err
	}

	// -------- AUDIT --------
	sink := b.auditSink
	if sink == nil {
		sink = NoOpSink{}
	}
	e.audit = internalaudit.NewDispatcher(internalaudit.Config{
		Enabled:    cfg.Audit.Enabled,
		BufferSize: cfg.Audit.BufferSize,
		DropIfFull: cfg.Audit.DropIfFull,
		Now:        now,
		Logger:     logger,
	}, sink)

	e.initFlowService()

	b.built = true
	return e, nil
}
