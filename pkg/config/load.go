package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// EnvPrefix префикс переменных окружения: INCALLUI_SIP_LISTEN_ADDR и т.д.
const EnvPrefix = "INCALLUI"

// SetDefaults регистрирует значения по умолчанию в v. Без этого
// AutomaticEnv не видит ключи, которых нет в файле.
func SetDefaults(v *viper.Viper) {
	d := Default()
	v.SetDefault("sip.listen_network", d.SIP.ListenNetwork)
	v.SetDefault("sip.listen_addr", d.SIP.ListenAddr)
	v.SetDefault("sip.user_agent", d.SIP.UserAgent)
	v.SetDefault("sip.contact_user", d.SIP.ContactUser)
	v.SetDefault("sip.subscription_id", d.SIP.SubscriptionID)

	v.SetDefault("features.device_provisioned", d.Features.DeviceProvisioned)
	v.SetDefault("features.video_upgrade_extended", d.Features.VideoUpgradeExtended)
	v.SetDefault("features.alternate_call_providers", d.Features.AlternateCallProviders)
	v.SetDefault("features.call_recording", d.Features.CallRecording)
	v.SetDefault("features.dsda", d.Features.Dsda)
	v.SetDefault("features.slot_subscriptions", d.Features.SlotSubscriptions)
	v.SetDefault("features.auto_answer", d.Features.AutoAnswer)

	v.SetDefault("text_responses", d.TextResponses)

	v.SetDefault("disconnect_delays.local", d.DisconnectDelays.Local)
	v.SetDefault("disconnect_delays.remote", d.DisconnectDelays.Remote)
	v.SetDefault("disconnect_delays.other", d.DisconnectDelays.Other)

	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("log.format", d.Log.Format)

	v.SetDefault("metrics.enabled", d.Metrics.Enabled)
	v.SetDefault("metrics.listen_addr", d.Metrics.ListenAddr)
}

// Load собирает конфигурацию из v: значения по умолчанию, затем файл
// (если v его прочитал), затем окружение INCALLUI_*, затем флаги,
// привязанные через BindPFlag.
func Load(v *viper.Viper) (*Config, error) {
	SetDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Dump сериализует конфигурацию в YAML
func Dump(cfg *Config) ([]byte, error) {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal config: %w", err)
	}
	return data, nil
}
