// Package template renders confirmation messages and keeps the configured
// message template.
package template

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/dgraph-io/ristretto/v2"
	"github.com/rs/zerolog"
)

const (
	DefaultTemplate = "check-in successful; name: {{name}}, serial: {{serial}}"
	DefaultCacheTTL = 6 * time.Hour

	propertyKey = "msgTemplate"
)

// PropertyStore is the persistent configuration the template lives in
type PropertyStore interface {
	Get(key string) (string, bool)
	Set(key, value string) error
}

// Store resolves the message template from cache, then the property store,
// then DefaultTemplate.
type Store struct {
	props PropertyStore
	cache *ristretto.Cache[string, string]
	ttl   time.Duration
	log   zerolog.Logger
}

func NewStore(props PropertyStore, ttl time.Duration, logger zerolog.Logger) (*Store, error) {
	cache, err := ristretto.NewCache(&ristretto.Config[string, string]{
		NumCounters: 100,
		MaxCost:     1 << 20,
		BufferItems: 64,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create template cache: %w", err)
	}
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}

	return &Store{
		props: props,
		cache: cache,
		ttl:   ttl,
		log:   logger.With().Str("component", "Template").Logger(),
	}, nil
}

// Get returns the current template
func (s *Store) Get() string {
	if tpl, ok := s.cache.Get(propertyKey); ok {
		return tpl
	}

	raw, ok := s.props.Get(propertyKey)
	if !ok || raw == "" {
		return DefaultTemplate
	}

	tpl := decode(raw)
	s.remember(tpl)
	return tpl
}

// Update persists tpl and refreshes the cache. The placeholder syntax is not
// checked.
func (s *Store) Update(tpl string) error {
	raw, err := json.Marshal(tpl)
	if err != nil {
		return fmt.Errorf("failed to encode template: %w", err)
	}
	if err := s.props.Set(propertyKey, string(raw)); err != nil {
		return fmt.Errorf("failed to save template: %w", err)
	}

	s.remember(tpl)
	s.log.Info().Str("template", tpl).Msg("Message template updated")
	return nil
}

func (s *Store) Close() {
	s.cache.Close()
}

func (s *Store) remember(tpl string) {
	s.cache.SetWithTTL(propertyKey, tpl, int64(len(tpl))+1, s.ttl)
	s.cache.Wait()
}

// decode reads a JSON-encoded template, falling back to the raw text
func decode(raw string) string {
	var tpl string
	if err := json.Unmarshal([]byte(raw), &tpl); err != nil {
		return raw
	}
	return tpl
}
