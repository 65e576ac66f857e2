// Package ui содержит общую основу экранных презентеров.
package ui

// Presenter хранит ссылку на контракт экрана U между OnUiReady и
// OnUiUnready. Встраивается в экранные презентеры.
type Presenter[U comparable] struct {
	ui    U
	ready bool
}

// OnUiReady экран готов принимать команды
func (p *Presenter[U]) OnUiReady(u U) {
	p.ui = u
	p.ready = true
}

// OnUiUnready экран уходит. Чужой экран не сбрасывает текущий.
func (p *Presenter[U]) OnUiUnready(u U) {
	if !p.ready || p.ui != u {
		return
	}
	var zero U
	p.ui = zero
	p.ready = false
}

// UI текущий экран и признак его наличия
func (p *Presenter[U]) UI() (U, bool) {
	return p.ui, p.ready
}
