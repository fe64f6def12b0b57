package session

import "sync"

// Selection holds the id of the task currently open, if any.
type Selection struct {
	mu     sync.RWMutex
	taskID int64
	set    bool
}

// NewSelection creates an empty selection.
func NewSelection() *Selection {
	return &Selection{}
}

// Select marks a task as the open one.
func (s *Selection) Select(taskID int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.taskID = taskID
	s.set = true
}

// Clear forgets the open task.
func (s *Selection) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.taskID = 0
	s.set = false
}

// Current returns the open task id and whether one is open.
func (s *Selection) Current() (int64, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.taskID, s.set
}
