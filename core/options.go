package core

import "log/slog"

// Config holds the settings shared by every collection type.
type Config struct {
	CreateIfMissing bool
	ReadOnly        bool
	SyncWrites      bool
	Compression     bool
	CacheSize       int
	Logger          *slog.Logger
}

type Option func(*Config)

func defaultConfig() *Config {
	return &Config{
		CreateIfMissing: true,
		Logger:          slog.New(slog.DiscardHandler),
	}
}

func newConfig(opts []Option) *Config {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(cfg)
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.New(slog.DiscardHandler)
	}
	return cfg
}

// WithCreateIfMissing controls whether Open creates an absent backing file.
// It defaults to true.
func WithCreateIfMissing(create bool) Option {
	return func(c *Config) {
		c.CreateIfMissing = create
	}
}

// WithReadOnly opens the backing file for reading only. Mutations fail with
// ErrReadOnly and any number of read-only handles may share the file.
func WithReadOnly() Option {
	return func(c *Config) {
		c.ReadOnly = true
	}
}

// WithSyncWrites fsyncs the backing file after every mutation.
func WithSyncWrites() Option {
	return func(c *Config) {
		c.SyncWrites = true
	}
}

// WithCompression stores values s2-compressed. Whether a file holds
// compressed values is not recorded in it; every handle opening the file must
// agree.
func WithCompression() Option {
	return func(c *Config) {
		c.Compression = true
	}
}

// WithCacheSize keeps up to n recently read values in memory. It applies to
// Dictionary and ConcurrentDictionary.
func WithCacheSize(n int) Option {
	return func(c *Config) {
		c.CacheSize = n
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(c *Config) {
		c.Logger = logger
	}
}
