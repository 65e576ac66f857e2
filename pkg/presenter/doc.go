// Package presenter содержит презентеры экранов вызова: экран ответа,
// панель кнопок, видео и дополнительные кнопки. Презентеры подписываются
// на incall.Presenter и CallList в OnUiReady и отписываются в OnUiUnready.
// Все методы вызываются из UI потока.
package presenter

import "log/slog"

func componentLogger(logger *slog.Logger, name string) *slog.Logger {
	if logger == nil {
		logger = slog.Default()
	}
	return logger.With(slog.String("component", name))
}
