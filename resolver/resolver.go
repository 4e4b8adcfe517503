// Package resolver answers "what is this tag?" by composing the
// bundled knowledge base with the cached remote documentation path.
package resolver

import (
	"context"
	"errors"
	"log/slog"

	"github.com/gomarc/marclsp"
	"github.com/gomarc/marclsp/cache"
	"github.com/gomarc/marclsp/kb"
	"github.com/gomarc/marclsp/loc"
)

// Source is the read side of a definition store. Both the knowledge
// base and the resolver itself satisfy the tag-lookup shape.
type Source interface {
	LookupTag(tag string) (*kb.TagDefinition, bool)
	LookupSubfield(tag, code string) (*kb.SubfieldDefinition, bool)
}

// Fetcher produces a definition from a remote source.
type Fetcher interface {
	FetchTag(ctx context.Context, tag string) (*kb.TagDefinition, []byte, error)
}

// Status classifies a resolution outcome.
type Status int

const (
	// StatusFound means a definition was located.
	StatusFound Status = iota
	// StatusUnknownTag means every available source answered and none
	// knows the tag.
	StatusUnknownTag
	// StatusUnknownSubfield means the tag resolved but the requested
	// subfield code is not declared on it.
	StatusUnknownSubfield
	// StatusUnavailable means a source that might know the tag could
	// not be reached. The tag may still be valid.
	StatusUnavailable
)

func (s Status) String() string {
	switch s {
	case StatusFound:
		return "found"
	case StatusUnknownTag:
		return "unknown-tag"
	case StatusUnknownSubfield:
		return "unknown-subfield"
	default:
		return "unavailable"
	}
}

// Definition is a resolution result. Tag is set whenever the tag
// itself resolved, including for StatusUnknownSubfield.
type Definition struct {
	Status    Status
	Tag       *kb.TagDefinition
	Subfield  *kb.SubfieldDefinition
	FromCache bool
}

// Resolver resolves tag documentation. Lookup order is the knowledge
// base, then the cache tiers, then the remote documentation site.
type Resolver struct {
	base    *kb.KnowledgeBase
	manager *cache.Manager
	fetcher Fetcher
	remote  bool
	logger  *slog.Logger
}

// New builds a resolver over the knowledge base. With RemoteEnabled
// the resolver gets a cache manager and an LC client; otherwise
// resolution stops at the knowledge base.
func New(base *kb.KnowledgeBase, opts *marclsp.Options) (*Resolver, error) {
	if opts == nil {
		opts = marclsp.DefaultOptions()
	}
	r := &Resolver{
		base:   base,
		remote: opts.RemoteEnabled,
		logger: opts.Logger,
	}
	if r.logger == nil {
		r.logger = slog.Default()
	}
	if r.remote {
		manager, err := cache.NewManager(opts)
		if err != nil {
			return nil, err
		}
		r.manager = manager
		r.fetcher = loc.NewClient(
			loc.WithTimeout(opts.FetchTimeout),
			loc.WithLogger(r.logger),
		)
	}
	return r, nil
}

// SetMetrics attaches shared counters to the cache manager so cache
// and fetch activity shows up in the owner's metrics.
func (r *Resolver) SetMetrics(m *marclsp.Metrics) {
	if r.manager != nil {
		r.manager.SetMetrics(m)
	}
}

// SetFetcher replaces the remote fetcher. A nil fetcher disables the
// remote path.
func (r *Resolver) SetFetcher(f Fetcher) {
	r.fetcher = f
	r.remote = f != nil
}

// Resolve returns the definition for a tag. It never returns an
// error: remote trouble is reported as StatusUnavailable so feature
// providers can degrade instead of failing.
func (r *Resolver) Resolve(ctx context.Context, tag string) Definition {
	if def, ok := r.base.LookupTag(tag); ok {
		return Definition{Status: StatusFound, Tag: def}
	}

	// Only three-digit tags have documentation pages; anything else
	// is settled without touching the network.
	if !r.remote || r.manager == nil || r.fetcher == nil || !isNumericTag(tag) {
		return Definition{Status: StatusUnknownTag}
	}

	def, fromCache, err := r.manager.GetOrFetch(ctx, tag, func(ctx context.Context) (*kb.TagDefinition, []byte, error) {
		return r.fetcher.FetchTag(ctx, tag)
	})
	if err != nil {
		if errors.Is(err, loc.ErrNotFound) {
			return Definition{Status: StatusUnknownTag}
		}
		r.logger.Debug("documentation unavailable", "tag", tag, "error", err)
		return Definition{Status: StatusUnavailable}
	}
	return Definition{Status: StatusFound, Tag: def, FromCache: fromCache}
}

// ResolveSubfield resolves a tag and then a subfield code on it.
func (r *Resolver) ResolveSubfield(ctx context.Context, tag, code string) Definition {
	d := r.Resolve(ctx, tag)
	if d.Status != StatusFound {
		return d
	}
	if sf, ok := d.Tag.Subfields[code]; ok {
		d.Subfield = &sf
		return d
	}
	d.Status = StatusUnknownSubfield
	return d
}

// LookupTag satisfies Source using only synchronously available
// definitions: the knowledge base and already-cached remote entries
// are consulted, the network is not.
func (r *Resolver) LookupTag(tag string) (*kb.TagDefinition, bool) {
	if def, ok := r.base.LookupTag(tag); ok {
		return def, true
	}
	return nil, false
}

// LookupSubfield satisfies Source, knowledge base only.
func (r *Resolver) LookupSubfield(tag, code string) (*kb.SubfieldDefinition, bool) {
	return r.base.LookupSubfield(tag, code)
}

// Close releases the resolver's cache manager.
func (r *Resolver) Close() {
	if r.manager != nil {
		r.manager.Close()
	}
}

func isNumericTag(tag string) bool {
	if len(tag) != 3 {
		return false
	}
	for i := 0; i < 3; i++ {
		if tag[i] < '0' || tag[i] > '9' {
			return false
		}
	}
	return true
}
