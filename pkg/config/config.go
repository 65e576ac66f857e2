// Package config описывает конфигурацию incallui: значения по умолчанию,
// проверку, загрузку через viper и выгрузку в YAML.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"net"
	"strings"
	"time"

	"github.com/arzzra/incallui/pkg/calllist"
	"github.com/arzzra/incallui/pkg/subscription"
)

// ErrInvalidConfig базовая ошибка проверки конфигурации
var ErrInvalidConfig = errors.New("invalid config")

// Config конфигурация приложения
type Config struct {
	SIP              SIPConfig      `mapstructure:"sip" yaml:"sip"`
	Features         FeaturesConfig `mapstructure:"features" yaml:"features"`
	TextResponses    []string       `mapstructure:"text_responses" yaml:"text_responses"`
	DisconnectDelays DelaysConfig   `mapstructure:"disconnect_delays" yaml:"disconnect_delays"`
	Log              LogConfig      `mapstructure:"log" yaml:"log"`
	Metrics          MetricsConfig  `mapstructure:"metrics" yaml:"metrics"`
}

// SIPConfig параметры SIP транспорта
type SIPConfig struct {
	ListenNetwork  string `mapstructure:"listen_network" yaml:"listen_network"`
	ListenAddr     string `mapstructure:"listen_addr" yaml:"listen_addr"`
	UserAgent      string `mapstructure:"user_agent" yaml:"user_agent"`
	ContactUser    string `mapstructure:"contact_user" yaml:"contact_user"`
	SubscriptionID int64  `mapstructure:"subscription_id" yaml:"subscription_id"`
}

// FeaturesConfig системные настройки и переключатели возможностей
type FeaturesConfig struct {
	DeviceProvisioned      bool    `mapstructure:"device_provisioned" yaml:"device_provisioned"`
	VideoUpgradeExtended   bool    `mapstructure:"video_upgrade_extended" yaml:"video_upgrade_extended"`
	AlternateCallProviders int     `mapstructure:"alternate_call_providers" yaml:"alternate_call_providers"`
	CallRecording          bool    `mapstructure:"call_recording" yaml:"call_recording"`
	Dsda                   bool    `mapstructure:"dsda" yaml:"dsda"`
	SlotSubscriptions      []int64 `mapstructure:"slot_subscriptions" yaml:"slot_subscriptions,omitempty"`
	AutoAnswer             bool    `mapstructure:"auto_answer" yaml:"auto_answer"`
}

// DelaysConfig задержки удаления завершенных вызовов
type DelaysConfig struct {
	Local  time.Duration `mapstructure:"local" yaml:"local"`
	Remote time.Duration `mapstructure:"remote" yaml:"remote"`
	Other  time.Duration `mapstructure:"other" yaml:"other"`
}

// LogConfig параметры логирования
type LogConfig struct {
	Level  string `mapstructure:"level" yaml:"level"`
	Format string `mapstructure:"format" yaml:"format"`
}

// MetricsConfig параметры HTTP эндпоинта метрик
type MetricsConfig struct {
	Enabled    bool   `mapstructure:"enabled" yaml:"enabled"`
	ListenAddr string `mapstructure:"listen_addr" yaml:"listen_addr"`
}

// Default конфигурация по умолчанию
func Default() *Config {
	delays := calllist.DefaultDisconnectDelays()
	return &Config{
		SIP: SIPConfig{
			ListenNetwork:  "udp",
			ListenAddr:     "127.0.0.1:5060",
			UserAgent:      "incallui",
			ContactUser:    "incallui",
			SubscriptionID: subscription.DefaultSubscriptionID,
		},
		Features: FeaturesConfig{
			DeviceProvisioned: true,
		},
		TextResponses: []string{
			"Не могу говорить, перезвоню позже",
			"Can't talk now",
		},
		DisconnectDelays: DelaysConfig{
			Local:  delays.Local,
			Remote: delays.Remote,
			Other:  delays.Other,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
		Metrics: MetricsConfig{
			Enabled:    false,
			ListenAddr: "127.0.0.1:9090",
		},
	}
}

var sipNetworks = map[string]bool{"udp": true, "tcp": true, "tls": true, "ws": true, "wss": true}

// Validate проверяет конфигурацию. Возвращает все найденные ошибки,
// каждая оборачивает ErrInvalidConfig.
func (c *Config) Validate() error {
	var errs []error
	fail := func(field, format string, args ...any) {
		errs = append(errs, fmt.Errorf("%w: %s: %s", ErrInvalidConfig, field, fmt.Sprintf(format, args...)))
	}

	if !sipNetworks[strings.ToLower(c.SIP.ListenNetwork)] {
		fail("sip.listen_network", "unsupported network %q", c.SIP.ListenNetwork)
	}
	if _, _, err := net.SplitHostPort(c.SIP.ListenAddr); err != nil {
		fail("sip.listen_addr", "%v", err)
	}
	if c.SIP.ContactUser == "" {
		fail("sip.contact_user", "must not be empty")
	}
	if c.SIP.SubscriptionID <= 0 {
		fail("sip.subscription_id", "must be positive, got %d", c.SIP.SubscriptionID)
	}

	if c.Features.AlternateCallProviders < 0 {
		fail("features.alternate_call_providers", "must not be negative")
	}
	if c.Features.Dsda {
		if len(c.Features.SlotSubscriptions) < 2 {
			fail("features.slot_subscriptions", "dsda needs at least two subscriptions")
		}
		seen := make(map[int64]bool, len(c.Features.SlotSubscriptions))
		for _, id := range c.Features.SlotSubscriptions {
			if id <= 0 || seen[id] {
				fail("features.slot_subscriptions", "invalid or duplicate subscription %d", id)
			}
			seen[id] = true
		}
	}

	for name, d := range map[string]time.Duration{
		"local":  c.DisconnectDelays.Local,
		"remote": c.DisconnectDelays.Remote,
		"other":  c.DisconnectDelays.Other,
	} {
		if d < 0 {
			fail("disconnect_delays."+name, "must not be negative")
		}
	}

	if _, err := parseLevel(c.Log.Level); err != nil {
		fail("log.level", "%v", err)
	}
	switch c.Log.Format {
	case "text", "json":
	default:
		fail("log.format", "unsupported format %q", c.Log.Format)
	}

	if c.Metrics.Enabled {
		if _, _, err := net.SplitHostPort(c.Metrics.ListenAddr); err != nil {
			fail("metrics.listen_addr", "%v", err)
		}
	}

	return errors.Join(errs...)
}

// Policy политика подписок по конфигурации
func (c *Config) Policy() subscription.Policy {
	if c.Features.Dsda {
		return subscription.NewDsda(c.Features.SlotSubscriptions...)
	}
	return subscription.NewSingleSim(c.SIP.SubscriptionID)
}

// Delays задержки удаления для CallList
func (c *Config) Delays() calllist.DisconnectDelays {
	return calllist.DisconnectDelays{
		Local:  c.DisconnectDelays.Local,
		Remote: c.DisconnectDelays.Remote,
		Other:  c.DisconnectDelays.Other,
	}
}

// Settings системные настройки для презентеров
func (c *Config) Settings() Settings {
	return Settings{features: c.Features}
}

// SlogLevel уровень логирования. Некорректное значение дает info.
func (c *Config) SlogLevel() slog.Level {
	level, err := parseLevel(c.Log.Level)
	if err != nil {
		return slog.LevelInfo
	}
	return level
}

func parseLevel(s string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return slog.LevelInfo, err
	}
	return level, nil
}
