package config

// Settings срез FeaturesConfig, который читают презентеры кнопок
type Settings struct {
	features FeaturesConfig
}

func (s Settings) DeviceProvisioned() bool     { return s.features.DeviceProvisioned }
func (s Settings) VideoUpgradeExtended() bool  { return s.features.VideoUpgradeExtended }
func (s Settings) AlternateCallProviders() int { return s.features.AlternateCallProviders }
func (s Settings) CallRecordingEnabled() bool  { return s.features.CallRecording }
