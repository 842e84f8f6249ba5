// Package config loads the engine's INI configuration, read once at boot.
package config

import "gopkg.in/ini.v1"

// Server holds the `[server]` section: where to reach the feed adapters and
// the history downloader.
type Server struct {
	HTTPURL    string
	TCPHost    string
	OrderPort  int
	TradePort  int
	SignalPort int // where TCPSink listens for alert subscribers
}

// Auth holds the `[auth]` section used to log in to the history downloader.
type Auth struct {
	Username string
	Password string
}

// Config is the engine's full boot-time configuration.
type Config struct {
	Server Server
	Auth   Auth
}

// Load reads and parses an INI file at path. Comments begin with ';'; string
// values may be quoted — both are handled by the ini.v1 parser directly.
func Load(path string) (*Config, error) {
	f, err := ini.Load(path)
	if err != nil {
		return nil, err
	}

	server := f.Section("server")
	auth := f.Section("auth")

	return &Config{
		Server: Server{
			HTTPURL:    server.Key("http_url").String(),
			TCPHost:    server.Key("tcp_host").String(),
			OrderPort:  server.Key("order_port").MustInt(0),
			TradePort:  server.Key("trade_port").MustInt(0),
			SignalPort: server.Key("signal_port").MustInt(0),
		},
		Auth: Auth{
			Username: auth.Key("username").String(),
			Password: auth.Key("password").String(),
		},
	}, nil
}
