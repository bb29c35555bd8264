package services

import (
	"strings"
	"sync"
)

// TableScope holds the table selection for each chat session. A session
// with no selection sees every base table.
type TableScope interface {
	// Get returns the selected table for sessionID, or "" when none is set.
	Get(sessionID string) string
	// Set restricts sessionID to table. An empty table clears the selection.
	Set(sessionID, table string)
	// Clear removes the selection for sessionID.
	Clear(sessionID string)
}

type tableScope struct {
	mu     sync.RWMutex
	tables map[string]string
}

// NewTableScope creates an in-memory, session-keyed table scope.
func NewTableScope() TableScope {
	return &tableScope{
		tables: make(map[string]string),
	}
}

func (s *tableScope) Get(sessionID string) string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.tables[sessionID]
}

func (s *tableScope) Set(sessionID, table string) {
	table = strings.TrimSpace(table)
	s.mu.Lock()
	defer s.mu.Unlock()
	if table == "" {
		delete(s.tables, sessionID)
		return
	}
	s.tables[sessionID] = table
}

func (s *tableScope) Clear(sessionID string) {
	s.mu.Lock()
	delete(s.tables, sessionID)
	s.mu.Unlock()
}

var _ TableScope = (*tableScope)(nil)
