// Package observer содержит набор слушателей, рассчитанный на частое чтение
// и редкую запись. Итерация идет по снимку, поэтому слушатель может
// добавлять и удалять себя прямо из колбэка.
package observer

import (
	"sync"
	"sync/atomic"
)

// Set набор уникальных слушателей с сохранением порядка добавления
type Set[T comparable] struct {
	mu       sync.Mutex
	snapshot atomic.Pointer[[]T]
}

// Add добавляет слушателя. Возвращает false если он уже есть.
func (s *Set[T]) Add(v T) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	cur := s.load()
	for _, x := range cur {
		if x == v {
			return false
		}
	}
	next := make([]T, len(cur), len(cur)+1)
	copy(next, cur)
	next = append(next, v)
	s.snapshot.Store(&next)
	return true
}

// Remove удаляет слушателя. Возвращает false если его не было.
func (s *Set[T]) Remove(v T) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	cur := s.load()
	for i, x := range cur {
		if x == v {
			next := make([]T, 0, len(cur)-1)
			next = append(next, cur[:i]...)
			next = append(next, cur[i+1:]...)
			s.snapshot.Store(&next)
			return true
		}
	}
	return false
}

// Contains проверяет наличие слушателя
func (s *Set[T]) Contains(v T) bool {
	for _, x := range s.load() {
		if x == v {
			return true
		}
	}
	return false
}

// Snapshot возвращает текущий снимок. Срез нельзя изменять.
func (s *Set[T]) Snapshot() []T {
	return s.load()
}

// Each вызывает fn для каждого слушателя из снимка
func (s *Set[T]) Each(fn func(T)) {
	for _, v := range s.load() {
		fn(v)
	}
}

// Len количество слушателей
func (s *Set[T]) Len() int {
	return len(s.load())
}

// Clear удаляет всех слушателей
func (s *Set[T]) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snapshot.Store(nil)
}

func (s *Set[T]) load() []T {
	if p := s.snapshot.Load(); p != nil {
		return *p
	}
	return nil
}
