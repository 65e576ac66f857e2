package presenter

// Settings системные настройки, влияющие на набор кнопок
type Settings interface {
	// DeviceProvisioned устройство прошло первичную настройку
	DeviceProvisioned() bool
	// VideoUpgradeExtended разрешает апгрейд уже видео вызова
	VideoUpgradeExtended() bool
	// AlternateCallProviders количество альтернативных провайдеров видео
	AlternateCallProviders() int
	CallRecordingEnabled() bool
}

// StaticSettings неизменяемые настройки
type StaticSettings struct {
	Provisioned      bool
	ExtendedUpgrade  bool
	AlternateCallers int
	Recording        bool
}

func (s StaticSettings) DeviceProvisioned() bool     { return s.Provisioned }
func (s StaticSettings) VideoUpgradeExtended() bool  { return s.ExtendedUpgrade }
func (s StaticSettings) AlternateCallProviders() int { return s.AlternateCallers }
func (s StaticSettings) CallRecordingEnabled() bool  { return s.Recording }
