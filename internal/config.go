package internal

import "time"

// Config is the client connection configuration.
type Config struct {
	Host        string
	Port        int
	DialTimeout time.Duration
}

const DEFAULT_HOST = "127.0.0.1"
const DEFAULT_PORT = 6969
const DEFAULT_DIAL_TIMEOUT = 5 * time.Second

func DefaultConfig() *Config {
	return &Config{
		Host:        DEFAULT_HOST,
		Port:        DEFAULT_PORT,
		DialTimeout: DEFAULT_DIAL_TIMEOUT,
	}
}
