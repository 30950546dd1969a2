package main

import (
	"os"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/kelseyhightower/envconfig"
	"github.com/m-mizutani/goerr/v2"
)

type config struct {
	Listen                  string
	Database                string
	Name                    string
	Description             string
	NsfmWords               []string
	AllowWellKnownPorts     bool
	ProtocolWhitelist       []string
	MaxSessionsPerHost      int
	MaxSessionsPerNamedHost int
	TrustedHosts            []string
	BannedHosts             []string
	ProxyHeaders            bool
	SessionTimeout          int
	LogRequests             bool
	AdminUser               string
	AdminPassHash           string `masq:"secret"`
}

func (c *config) IsTrustedHost(host string) bool {
	for _, v := range c.TrustedHosts {
		if host == v {
			return true
		}
	}
	return false
}

func (c *config) ContainsNsfmWords(str string) bool {
	str = strings.ToUpper(str)
	for _, s := range c.NsfmWords {
		if strings.Contains(str, s) {
			return true
		}
	}
	return false
}

func (c *config) AdminEnabled() bool {
	return c.AdminUser != "" && c.AdminPassHash != ""
}

func defaultConfig() *config {
	hostname, err := os.Hostname()
	if err != nil {
		hostname = "Unconfigured server"
	}

	return &config{
		Listen:                  "localhost:8080",
		Database:                "memory",
		Name:                    hostname,
		Description:             "A Drawpile listing server",
		NsfmWords:               []string{"18+", "NSFW", "NSFM"},
		AllowWellKnownPorts:     false,
		ProtocolWhitelist:       []string{},
		MaxSessionsPerHost:      3,
		MaxSessionsPerNamedHost: 10,
		TrustedHosts:            []string{},
		BannedHosts:             []string{},
		ProxyHeaders:            false,
		SessionTimeout:          10,
		LogRequests:             false,
	}
}

// loadConfig reads the defaults, then the configuration file (if any),
// then LF_* environment variables, each overriding the previous.
func loadConfig(path string) (*config, error) {
	cfg := defaultConfig()

	if len(path) > 0 {
		if _, err := toml.DecodeFile(path, cfg); err != nil {
			return nil, goerr.Wrap(err, "failed to read configuration file", goerr.V("path", path))
		}
	}

	if err := envconfig.Process("lf", cfg); err != nil {
		return nil, goerr.Wrap(err, "failed to read environment")
	}

	doNormalizations(cfg)

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func doNormalizations(cfg *config) {
	for i, s := range cfg.NsfmWords {
		cfg.NsfmWords[i] = strings.ToUpper(s)
	}

	if cfg.MaxSessionsPerNamedHost < cfg.MaxSessionsPerHost {
		cfg.MaxSessionsPerNamedHost = cfg.MaxSessionsPerHost
	}
}

func (c *config) validate() error {
	if c.Listen == "" {
		return goerr.New("listening address is not set")
	}
	if c.SessionTimeout < 1 {
		return goerr.New("session timeout must be at least one minute", goerr.V("timeout", c.SessionTimeout))
	}
	if (c.AdminUser == "") != (c.AdminPassHash == "") {
		return goerr.New("admin user and password hash must be set together")
	}
	return nil
}
