// Package profile persists named watchlists of ticker symbols.
//
// Profiles are stored in a single bbolt file, one JSON record per
// profile keyed by a UUID. The store is safe for concurrent use;
// bbolt serializes writers internally.
package profile

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"go.etcd.io/bbolt"
)

// ── Errors ──────────────────────────────────────────────────────────────────

var (
	// ErrNotFound indicates no profile exists with the given ID.
	ErrNotFound = errors.New("profile not found")

	// ErrEmptyName indicates a profile was created with a blank name.
	ErrEmptyName = errors.New("profile name is empty")

	// ErrInvalidTicker indicates a ticker failed market-data validation
	// and was not added to the watchlist.
	ErrInvalidTicker = errors.New("invalid ticker")
)

// ── Types ───────────────────────────────────────────────────────────────────

// Profile is a named watchlist. Tickers are stored uppercase and
// deduplicated.
type Profile struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Tickers   []string  `json:"tickers"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Validator reports whether a ticker has usable market data. The
// string is a human-readable reason when the answer is no.
type Validator interface {
	Validate(ctx context.Context, ticker string) (bool, string)
}

var profilesBucket = []byte("profiles")

// Store is a bbolt-backed profile repository.
type Store struct {
	db  *bbolt.DB
	log zerolog.Logger
}

// Open opens (creating if needed) the profile database at path.
func Open(path string, log zerolog.Logger) (*Store, error) {
	db, err := bbolt.Open(path, 0o600, &bbolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("opening profile db %s: %w", path, err)
	}
	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(profilesBucket)
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("initializing profile db: %w", err)
	}
	return &Store{
		db:  db,
		log: log.With().Str("component", "profile").Logger(),
	}, nil
}

// Close releases the underlying database file.
func (s *Store) Close() error {
	return s.db.Close()
}

// ── Operations ──────────────────────────────────────────────────────────────

// Create stores a new empty profile and returns it.
func (s *Store) Create(name string) (*Profile, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, ErrEmptyName
	}

	now := time.Now().UTC()
	p := &Profile{
		ID:        uuid.New().String(),
		Name:      name,
		Tickers:   []string{},
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.put(p); err != nil {
		return nil, err
	}
	s.log.Info().Str("id", p.ID).Str("name", name).Msg("profile created")
	return p, nil
}

// Get returns the profile with the given ID.
func (s *Store) Get(id string) (*Profile, error) {
	var p *Profile
	err := s.db.View(func(tx *bbolt.Tx) error {
		raw := tx.Bucket(profilesBucket).Get([]byte(id))
		if raw == nil {
			return fmt.Errorf("%w: %s", ErrNotFound, id)
		}
		p = &Profile{}
		return json.Unmarshal(raw, p)
	})
	if err != nil {
		return nil, err
	}
	return p, nil
}

// List returns all profiles sorted by name.
func (s *Store) List() ([]*Profile, error) {
	var out []*Profile
	err := s.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket(profilesBucket).ForEach(func(_, raw []byte) error {
			p := &Profile{}
			if err := json.Unmarshal(raw, p); err != nil {
				return err
			}
			out = append(out, p)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// Delete removes the profile with the given ID.
func (s *Store) Delete(id string) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(profilesBucket)
		if b.Get([]byte(id)) == nil {
			return fmt.Errorf("%w: %s", ErrNotFound, id)
		}
		return b.Delete([]byte(id))
	})
}

// AddTickers appends symbols to a profile's watchlist without
// validation. Symbols are uppercased and duplicates are dropped.
func (s *Store) AddTickers(id string, tickers ...string) (*Profile, error) {
	p, err := s.Get(id)
	if err != nil {
		return nil, err
	}
	for _, t := range tickers {
		sym := NormalizeTicker(t)
		if sym == "" || contains(p.Tickers, sym) {
			continue
		}
		p.Tickers = append(p.Tickers, sym)
	}
	p.UpdatedAt = time.Now().UTC()
	if err := s.put(p); err != nil {
		return nil, err
	}
	return p, nil
}

// AddValidated adds a single ticker only if the validator confirms
// market data is available for it.
func (s *Store) AddValidated(ctx context.Context, id, ticker string, v Validator) (*Profile, error) {
	sym := NormalizeTicker(ticker)
	if sym == "" {
		return nil, fmt.Errorf("%w: empty symbol", ErrInvalidTicker)
	}
	if _, err := s.Get(id); err != nil {
		return nil, err
	}
	ok, reason := v.Validate(ctx, sym)
	if !ok {
		s.log.Warn().Str("ticker", sym).Str("reason", reason).Msg("ticker rejected")
		return nil, fmt.Errorf("%w: %s (%s)", ErrInvalidTicker, sym, reason)
	}
	return s.AddTickers(id, sym)
}

// RemoveTicker drops a symbol from a profile's watchlist. Removing a
// symbol that is not present is not an error.
func (s *Store) RemoveTicker(id, ticker string) (*Profile, error) {
	p, err := s.Get(id)
	if err != nil {
		return nil, err
	}
	sym := NormalizeTicker(ticker)
	kept := p.Tickers[:0]
	for _, t := range p.Tickers {
		if t != sym {
			kept = append(kept, t)
		}
	}
	p.Tickers = kept
	p.UpdatedAt = time.Now().UTC()
	if err := s.put(p); err != nil {
		return nil, err
	}
	return p, nil
}

// Rename changes a profile's display name.
func (s *Store) Rename(id, name string) (*Profile, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, ErrEmptyName
	}
	p, err := s.Get(id)
	if err != nil {
		return nil, err
	}
	p.Name = name
	p.UpdatedAt = time.Now().UTC()
	if err := s.put(p); err != nil {
		return nil, err
	}
	return p, nil
}

// ── Helpers ─────────────────────────────────────────────────────────────────

// NormalizeTicker uppercases and trims a symbol.
func NormalizeTicker(t string) string {
	return strings.ToUpper(strings.TrimSpace(t))
}

func (s *Store) put(p *Profile) error {
	raw, err := json.Marshal(p)
	if err != nil {
		return err
	}
	return s.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(profilesBucket).Put([]byte(p.ID), raw)
	})
}

func contains(ss []string, s string) bool {
	for _, v := range ss {
		if v == s {
			return true
		}
	}
	return false
}
