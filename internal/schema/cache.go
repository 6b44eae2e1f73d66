package schema

import (
	"reflect"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/koba/sqlentity/internal/codec"
	"github.com/koba/sqlentity/internal/ormerr"
)

// Cache builds each entity schema once and keeps it for the life of the cache.
//
// A schema is stored before any of its foreign fields is resolved, so two
// entities referencing each other resolve through the cache without
// re-entering the builder.
type Cache struct {
	registry *codec.Registry

	mu       sync.RWMutex
	entities map[reflect.Type]*Entity
	decls    map[reflect.Type]EntityDecl

	group singleflight.Group
}

var defaultCache = NewCache(codec.Default())

// Default returns the process-wide cache bound to codec.Default.
func Default() *Cache {
	return defaultCache
}

// NewCache creates an empty cache resolving serializers through registry.
func NewCache(registry *codec.Registry) *Cache {
	return &Cache{
		registry: registry,
		entities: make(map[reflect.Type]*Entity),
		decls:    make(map[reflect.Type]EntityDecl),
	}
}

func (c *Cache) Registry() *codec.Registry {
	return c.registry
}

// Declare records decl as the declaration of t, taking precedence over a
// Declarer implementation. A schema already built for t is dropped.
func (c *Cache) Declare(t reflect.Type, decl EntityDecl) {
	t = entityType(t)
	c.mu.Lock()
	defer c.mu.Unlock()
	c.decls[t] = decl
	delete(c.entities, t)
}

// Lookup returns the schema of t, building it on first use. Concurrent
// lookups of the same type share one build. Nothing is cached on error.
func (c *Cache) Lookup(t reflect.Type) (*Entity, error) {
	if t == nil {
		return nil, ormerr.Configf("<nil>", "", "missing entity declaration")
	}
	t = entityType(t)
	if e, ok := c.cached(t); ok {
		return e, nil
	}

	v, err, _ := c.group.Do(t.PkgPath()+"/"+t.String(), func() (any, error) {
		if e, ok := c.cached(t); ok {
			return e, nil
		}
		decl, ok := c.declaration(t)
		if !ok {
			return nil, ormerr.Configf(t.Name(), "", "type %s has no entity declaration", t)
		}
		e, err := build(c, t, decl)
		if err != nil {
			zap.L().Named("schema").Debug("entity build failed", zap.Stringer("type", t), zap.Error(err))
			return nil, err
		}

		c.mu.Lock()
		c.entities[t] = e
		c.mu.Unlock()

		zap.L().Named("schema").Debug("entity built",
			zap.String("entity", e.Name()),
			zap.Stringer("type", t),
			zap.Int("fields", len(e.fields)),
			zap.Int("indexes", len(e.indexes)),
		)
		return e, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*Entity), nil
}

// Forget drops the schema of t so the next lookup rebuilds it.
func (c *Cache) Forget(t reflect.Type) {
	t = entityType(t)
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entities, t)
}

// Reset drops every built schema. Declarations are kept.
func (c *Cache) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entities = make(map[reflect.Type]*Entity)
}

func (c *Cache) cached(t reflect.Type) (*Entity, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.entities[t]
	return e, ok
}

func (c *Cache) declaration(t reflect.Type) (EntityDecl, bool) {
	c.mu.RLock()
	decl, ok := c.decls[t]
	c.mu.RUnlock()
	if ok {
		return decl, true
	}
	return declarationOf(t)
}

func (c *Cache) declared(t reflect.Type) bool {
	c.mu.RLock()
	_, ok := c.decls[t]
	c.mu.RUnlock()
	if ok {
		return true
	}
	_, ok = declarationOf(t)
	return ok
}

// DeclareFor declares the entity T on c.
func DeclareFor[T any](c *Cache, decl EntityDecl) {
	c.Declare(reflect.TypeOf((*T)(nil)).Elem(), decl)
}

// LookupFor returns the schema of the entity T.
func LookupFor[T any](c *Cache) (*Entity, error) {
	return c.Lookup(reflect.TypeOf((*T)(nil)).Elem())
}
