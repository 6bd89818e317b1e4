package memory

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"cashflow/internal/core"
	"cashflow/internal/store"
)

// Store is an in-memory transaction store used for local runs and tests.
type Store struct {
	mu      sync.RWMutex
	cats    []string
	methods []string
	items   map[string]core.Transaction
	// seq records insertion order, the last tie-break of List.
	seq     map[string]uint64
	nextSeq uint64
	now     func() time.Time
}

var _ store.Store = (*Store)(nil)

func New(cats, methods []string) *Store {
	return &Store{
		cats:    dedupe(cats),
		methods: dedupe(methods),
		items:   make(map[string]core.Transaction),
		seq:     make(map[string]uint64),
		now:     time.Now,
	}
}

// NewFromFiles seeds the directories from seed_categories.txt and
// seed_payment_methods.txt under base, with built-in defaults.
func NewFromFiles(base string) *Store {
	cats := readLines(filepath.Join(base, "seed_categories.txt"))
	methods := readLines(filepath.Join(base, "seed_payment_methods.txt"))
	if len(cats) == 0 {
		cats = []string{"Passagens", "Pacotes", "Hospedagem", "Fornecedores", "Comissões", "Despesas fixas"}
	}
	if len(methods) == 0 {
		methods = []string{"PIX", "Dinheiro", "Cartão de crédito", "Cartão de débito", "Transferência", "Boleto"}
	}
	return New(cats, methods)
}

func (s *Store) Create(_ context.Context, t core.Transaction) (core.Transaction, error) {
	if err := t.Validate(); err != nil {
		return core.Transaction{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now().UTC()
	t = t.Clone()
	t.ID = uuid.NewString()
	t.CreatedAt, t.UpdatedAt = now, now
	if t.Migration == core.Migrated && t.MigratedAt.IsZero() {
		t.MigratedAt = now
	}
	s.items[t.ID] = t
	s.nextSeq++
	s.seq[t.ID] = s.nextSeq
	return t.Clone(), nil
}

func (s *Store) Get(_ context.Context, id string) (core.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.items[id]
	if !ok {
		return core.Transaction{}, fmt.Errorf("%w: %s", store.ErrNotFound, id)
	}
	return t.Clone(), nil
}

func (s *Store) List(_ context.Context, f store.Filter) ([]core.Transaction, error) {
	if err := f.Validate(); err != nil {
		return nil, err
	}
	type entry struct {
		t   core.Transaction
		seq uint64
	}
	s.mu.RLock()
	matched := make([]entry, 0, len(s.items))
	for id, t := range s.items {
		if f.Match(t) {
			matched = append(matched, entry{t.Clone(), s.seq[id]})
		}
	}
	s.mu.RUnlock()
	sort.Slice(matched, func(i, j int) bool {
		a, b := matched[i], matched[j]
		if store.Less(a.t, b.t) || store.Less(b.t, a.t) {
			return store.Less(a.t, b.t)
		}
		return a.seq < b.seq
	})
	out := make([]core.Transaction, len(matched))
	for i, e := range matched {
		out[i] = e.t
	}
	return out, nil
}

func (s *Store) Update(_ context.Context, t core.Transaction) (core.Transaction, error) {
	if err := t.Validate(); err != nil {
		return core.Transaction{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.items[t.ID]
	if !ok {
		return core.Transaction{}, fmt.Errorf("%w: %s", store.ErrNotFound, t.ID)
	}
	t = t.Clone()
	t.Migration, t.MigratedAt = cur.Migration, cur.MigratedAt
	t.CreatedAt = cur.CreatedAt
	t.UpdatedAt = s.now().UTC()
	s.items[t.ID] = t
	return t.Clone(), nil
}

func (s *Store) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.items[id]; !ok {
		return fmt.Errorf("%w: %s", store.ErrNotFound, id)
	}
	delete(s.items, id)
	delete(s.seq, id)
	return nil
}

// MarkMigrated applies the migration only to a still-unmigrated record.
func (s *Store) MarkMigrated(_ context.Context, id string, target core.Type, at time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.items[id]
	if !ok {
		return false, fmt.Errorf("%w: %s", store.ErrNotFound, id)
	}
	if cur.IsMigrated() {
		return false, nil
	}
	cur.Type = target
	cur.Migration = core.Migrated
	cur.MigratedAt = at.UTC()
	cur.UpdatedAt = at.UTC()
	s.items[id] = cur
	return true, nil
}

func (s *Store) Categories(_ context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]string(nil), s.cats...), nil
}

func (s *Store) PaymentMethods(_ context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]string(nil), s.methods...), nil
}

func (s *Store) Close() error { return nil }

func readLines(path string) []string {
	f, err := os.Open(path)
	if err != nil {
		return nil
	}
	defer f.Close()
	var out []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		out = append(out, line)
	}
	return dedupe(out)
}

// dedupe drops blanks and duplicates, preserving input order.
func dedupe(in []string) []string {
	seen := map[string]struct{}{}
	out := make([]string, 0, len(in))
	for _, v := range in {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}
