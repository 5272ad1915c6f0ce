package storage

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
)

var (
	// ErrInvalidSymbol indicates the provided symbol violates validation rules.
	ErrInvalidSymbol = errors.New("symbol must have a positive id and a non-empty code")
)

// Symbol is a row of the symbol table.
type Symbol struct {
	ID   int64  `json:"id" db:"id"`
	Code string `json:"code" db:"code"`
}

// Storage provides read access to the symbol table.
type Storage interface {
	ListSymbols(ctx context.Context) ([]Symbol, error)
	// GetSymbol reports false when no symbol has the given id.
	GetSymbol(ctx context.Context, id int64) (Symbol, bool, error)
	Close()
}

// MemoryStorage keeps symbols in-memory and guards access with a RWMutex.
type MemoryStorage struct {
	mu      sync.RWMutex
	symbols map[int64]Symbol
}

// NewMemoryStorage seeds the storage with the given codes, assigning ids
// from 1 in order. Blank codes are rejected.
func NewMemoryStorage(codes ...string) (*MemoryStorage, error) {
	s := &MemoryStorage{
		symbols: make(map[int64]Symbol, len(codes)),
	}
	for i, code := range codes {
		if err := s.Upsert(Symbol{ID: int64(i + 1), Code: code}); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// ListSymbols returns a copy of all symbols ordered by id.
func (s *MemoryStorage) ListSymbols(ctx context.Context) ([]Symbol, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Symbol, 0, len(s.symbols))
	for _, sym := range s.symbols {
		out = append(out, sym)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// GetSymbol looks a symbol up by id.
func (s *MemoryStorage) GetSymbol(ctx context.Context, id int64) (Symbol, bool, error) {
	if err := ctx.Err(); err != nil {
		return Symbol{}, false, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	sym, ok := s.symbols[id]
	return sym, ok, nil
}

// Upsert validates, normalises, and stores the provided symbol.
func (s *MemoryStorage) Upsert(sym Symbol) error {
	sym.Code = strings.TrimSpace(sym.Code)
	if sym.ID <= 0 || sym.Code == "" {
		return ErrInvalidSymbol
	}

	s.mu.Lock()
	s.symbols[sym.ID] = sym
	s.mu.Unlock()

	return nil
}

// Close is a no-op.
func (s *MemoryStorage) Close() {}
