package rules

import (
	"context"
	"fmt"
	"strconv"
	"sync/atomic"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/erkinov-wtf/rmbot-sub002/internal/domain"
	"github.com/erkinov-wtf/rmbot-sub002/internal/repository"
	apperrors "github.com/erkinov-wtf/rmbot-sub002/pkg/util"
)

const (
	cacheKey           = "rules:active"
	cacheFieldVersion  = "version"
	cacheFieldDocument = "document"
)

// Provider serves the active rules snapshot. Reads are a single atomic
// pointer load; Publish and Rollback swap the pointer only after the new
// document validates and the database activation commits. Postgres is
// authoritative; redis is a write-through cache so sibling processes can
// warm up without hitting the database.
type Provider struct {
	store  repository.RulesRepository
	cache  *redis.Client
	logger *zap.Logger
	active atomic.Pointer[Snapshot]
}

// NewProvider wires a provider. Cache may be nil in tests.
func NewProvider(store repository.RulesRepository, cache *redis.Client, logger *zap.Logger) *Provider {
	return &Provider{store: store, cache: cache, logger: logger}
}

// Active returns the current snapshot. Callers must Load once at startup;
// afterwards Active never returns nil.
func (p *Provider) Active() *Snapshot {
	return p.active.Load()
}

// Load fetches the active version, preferring the cache, and installs it.
// Ran at startup and periodically by the worker to pick up versions
// published by other processes.
func (p *Provider) Load(ctx context.Context) error {
	version, doc, err := p.fromCache(ctx)
	if err != nil {
		version, doc, err = p.fromStore(ctx)
		if err != nil {
			return err
		}
		p.writeCache(ctx, version, doc)
	}

	if cur := p.active.Load(); cur != nil && cur.Version == version {
		return nil
	}
	snap, err := BuildSnapshot(version, doc)
	if err != nil {
		return fmt.Errorf("stored rules version %d: %w", version, err)
	}
	p.active.Store(snap)
	p.logger.Info("rules snapshot installed", zap.Int("version", snap.Version))
	return nil
}

// Publish validates a new document, stores it as the next version, flips
// the active pointer and installs the snapshot locally. An invalid document
// never reaches the database.
func (p *Provider) Publish(ctx context.Context, doc []byte, createdBy string) (*Snapshot, error) {
	if _, err := BuildSnapshot(0, doc); err != nil {
		return nil, apperrors.NewValidationError(err.Error(), nil)
	}
	stored, err := p.store.Publish(ctx, doc, createdBy)
	if err != nil {
		return nil, err
	}
	return p.install(ctx, stored)
}

// Rollback re-activates a previously published version.
func (p *Provider) Rollback(ctx context.Context, version int) (*Snapshot, error) {
	stored, err := p.store.Activate(ctx, version)
	if err != nil {
		return nil, err
	}
	return p.install(ctx, stored)
}

// Versions lists published revisions, newest first.
func (p *Provider) Versions(ctx context.Context, limit int) ([]domain.RulesVersion, error) {
	return p.store.List(ctx, limit)
}

// Version fetches one revision.
func (p *Provider) Version(ctx context.Context, version int) (domain.RulesVersion, error) {
	return p.store.Get(ctx, version)
}

func (p *Provider) install(ctx context.Context, stored domain.RulesVersion) (*Snapshot, error) {
	snap, err := BuildSnapshot(stored.Version, stored.Document)
	if err != nil {
		return nil, fmt.Errorf("stored rules version %d: %w", stored.Version, err)
	}
	p.active.Store(snap)
	p.writeCache(ctx, stored.Version, stored.Document)
	p.logger.Info("rules snapshot installed", zap.Int("version", snap.Version))
	return snap, nil
}

func (p *Provider) fromCache(ctx context.Context) (int, []byte, error) {
	if p.cache == nil {
		return 0, nil, redis.Nil
	}
	fields, err := p.cache.HGetAll(ctx, cacheKey).Result()
	if err != nil {
		return 0, nil, err
	}
	raw, ok := fields[cacheFieldDocument]
	if !ok {
		return 0, nil, redis.Nil
	}
	version, err := strconv.Atoi(fields[cacheFieldVersion])
	if err != nil {
		return 0, nil, fmt.Errorf("cached rules version: %w", err)
	}
	return version, []byte(raw), nil
}

func (p *Provider) fromStore(ctx context.Context) (int, []byte, error) {
	stored, err := p.store.Active(ctx)
	if err != nil {
		return 0, nil, fmt.Errorf("load active rules: %w", err)
	}
	return stored.Version, stored.Document, nil
}

func (p *Provider) writeCache(ctx context.Context, version int, doc []byte) {
	if p.cache == nil {
		return
	}
	err := p.cache.HSet(ctx, cacheKey,
		cacheFieldVersion, strconv.Itoa(version),
		cacheFieldDocument, string(doc),
	).Err()
	if err != nil {
		p.logger.Warn("rules cache write failed", zap.Error(err))
	}
}
