package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/knadh/koanf/providers/env/v2"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"

	"github.com/haukened/rr-blocklist/internal/dns/common/utils"
	"github.com/haukened/rr-blocklist/internal/dns/domain"
)

// Probe transports accepted by ProbeNet.
const (
	ProbeNetUDP    = "udp"
	ProbeNetTCP    = "tcp"
	ProbeNetTCPTLS = "tcp-tls"
)

// AppConfig holds configuration values parsed from environment variables.
type AppConfig struct {
	// Env is the runtime environment, either "dev" or "prod".
	Env string `koanf:"env" validate:"required,oneof=dev prod"`

	// LogLevel controls log verbosity: "debug", "info", "warn", or "error".
	LogLevel string `koanf:"log_level" validate:"required,oneof=debug info warn error"`

	// Feeds are the adblock-syntax lists to gather domains from.
	Feeds       []string      `koanf:"feeds" validate:"required,min=1,dive,http_url"`
	FeedTimeout time.Duration `koanf:"feed_timeout" validate:"required,gt=0"`

	// Primary and Secondary are resolver pools in probe order, as IP or IP:port.
	Primary   []string `koanf:"primary" validate:"required,min=1,dive,resolver_addr"`
	Secondary []string `koanf:"secondary" validate:"omitempty,dive,resolver_addr"`

	ProbeTimeout time.Duration `koanf:"probe_timeout" validate:"required,gt=0"`
	ProbeNet     string        `koanf:"probe_net" validate:"required,oneof=udp tcp tcp-tls"`

	// ProbeStrict requires an A record; otherwise any NOERROR reply counts.
	ProbeStrict bool `koanf:"probe_strict"`

	Workers       int     `koanf:"workers" validate:"required,gte=1,lte=1024"`
	QPS           float64 `koanf:"qps" validate:"required,gt=0"`
	ProgressEvery int     `koanf:"progress_every" validate:"required,gte=1"`

	// Output is the rule file written at the end of a complete run.
	Output string `koanf:"output" validate:"required"`

	// MetricsFile, when set, receives a prometheus textfile after the run.
	MetricsFile string `koanf:"metrics_file"`
}

// DEFAULT_APP_CONFIG defines the default application configuration: the
// hagezi pro.mini and tif.medium feeds, a domestic primary pool and a
// foreign secondary pool.
var DEFAULT_APP_CONFIG = AppConfig{
	Env:      "prod",
	LogLevel: "info",
	Feeds: []string{
		"https://raw.githubusercontent.com/hagezi/dns-blocklists/main/adblock/pro.mini.txt",
		"https://raw.githubusercontent.com/hagezi/dns-blocklists/main/adblock/tif.medium.txt",
	},
	FeedTimeout:   10 * time.Second,
	Primary:       []string{"114.114.114.114", "180.76.76.76", "223.5.5.5"},
	Secondary:     []string{"8.8.8.8", "1.1.1.1", "9.9.9.9"},
	ProbeTimeout:  3 * time.Second,
	ProbeNet:      ProbeNetUDP,
	ProbeStrict:   false,
	Workers:       32,
	QPS:           100,
	ProgressEvery: 100,
	Output:        "final_rules.txt",
	MetricsFile:   "",
}

// validResolverAddr accepts "IP" or "IP:port"; IPv6 with a port needs brackets.
func validResolverAddr(fl validator.FieldLevel) bool {
	_, err := utils.NormalizeResolverAddr(fl.Field().String())
	return err == nil
}

// envLoader is a function that loads environment variables with the prefix "DNS_".
// It transforms the keys to lowercase and removes the prefix.
// and can be mocked in tests.
var envLoader = func(k *koanf.Koanf) error {
	return k.Load(env.Provider(".", env.Opt{
		Prefix: "DNS_",
		TransformFunc: func(key, value string) (string, any) {
			key = strings.ToLower(strings.TrimPrefix(key, "DNS_"))
			value = strings.TrimSpace(value)

			if value == "" {
				return key, value
			}

			if strings.Contains(value, " ") || strings.Contains(value, ",") {
				parts := strings.FieldsFunc(value, func(r rune) bool {
					return r == ' ' || r == ','
				})
				return key, parts
			}

			return key, value
		},
	}), nil)
}

// defaultLoader loads DEFAULT_APP_CONFIG through the structs provider.
var defaultLoader = func(k *koanf.Koanf) error {
	return k.Load(structs.Provider(DEFAULT_APP_CONFIG, "koanf"), nil)
}

// registerValidation registers the custom "resolver_addr" tag.
var registerValidation = func(v *validator.Validate) error {
	return v.RegisterValidation("resolver_addr", validResolverAddr)
}

// Load parses environment variables and returns an AppConfig instance.
// It applies default values and runs validation automatically.
func Load() (*AppConfig, error) {
	k := koanf.New(".")

	err := defaultLoader(k)
	if err != nil {
		return nil, fmt.Errorf("error loading default config: %w", err)
	}

	err = envLoader(k)
	if err != nil {
		return nil, fmt.Errorf("error loading env: %w", err)
	}

	var cfg AppConfig
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("error unmarshalling config: %w", err)
	}

	validate := validator.New(validator.WithRequiredStructEnabled())
	err = registerValidation(validate)
	if err != nil {
		return nil, fmt.Errorf("error registering validation: %w", err)
	}

	err = validate.Struct(&cfg)
	if err != nil {
		return nil, fmt.Errorf("validation failed: %w", err)
	}

	return &cfg, nil
}

// Pools returns the resolver pools with every address in "ip:port" form.
// Bare IPs get port 853 for tcp-tls and 53 otherwise.
func (c *AppConfig) Pools() (primary, secondary domain.Pool, err error) {
	port := utils.DefaultDNSPort
	if c.ProbeNet == ProbeNetTCPTLS {
		port = utils.DefaultDoTPort
	}

	servers, err := utils.NormalizeResolverAddrs(c.Primary, port)
	if err != nil {
		return domain.Pool{}, domain.Pool{}, fmt.Errorf("primary pool: %w", err)
	}
	primary, err = domain.NewPool("primary", servers)
	if err != nil {
		return domain.Pool{}, domain.Pool{}, err
	}

	servers, err = utils.NormalizeResolverAddrs(c.Secondary, port)
	if err != nil {
		return domain.Pool{}, domain.Pool{}, fmt.Errorf("secondary pool: %w", err)
	}
	secondary = domain.Pool{Name: "secondary", Servers: servers}
	return primary, secondary, nil
}
