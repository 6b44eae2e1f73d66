package codec

import (
	"reflect"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
	"github.com/shopspring/decimal"
	"golang.org/x/text/currency"

	"github.com/koba/sqlentity/internal/ormerr"
)

// Registry maps value types to serializers.
//
// Custom serializers registered with Register take precedence over the
// built-in defaults. Changes affect later lookups only; schemas that already
// bound a serializer keep it.
type Registry struct {
	mu       sync.RWMutex
	custom   map[reflect.Type]Serializer
	defaults map[reflect.Type]Serializer
	enums    map[reflect.Type]*Enum
}

var defaultRegistry = NewRegistry()

// Default returns the process-wide registry.
func Default() *Registry {
	return defaultRegistry
}

// NewRegistry returns a registry holding the built-in serializers.
func NewRegistry() *Registry {
	r := &Registry{
		custom:   make(map[reflect.Type]Serializer),
		defaults: make(map[reflect.Type]Serializer),
		enums:    make(map[reflect.Type]*Enum),
	}
	r.defaults[reflect.TypeOf((*bool)(nil)).Elem()] = Bool
	r.defaults[reflect.TypeOf((**bool)(nil)).Elem()] = NullableBool
	r.defaults[reflect.TypeOf((*int32)(nil)).Elem()] = Int32
	r.defaults[reflect.TypeOf((**int32)(nil)).Elem()] = NullableInt32
	r.defaults[reflect.TypeOf((*int64)(nil)).Elem()] = Int64
	r.defaults[reflect.TypeOf((**int64)(nil)).Elem()] = NullableInt64
	r.defaults[reflect.TypeOf((*float64)(nil)).Elem()] = Float64
	r.defaults[reflect.TypeOf((**float64)(nil)).Elem()] = NullableFloat64
	r.defaults[reflect.TypeOf((*string)(nil)).Elem()] = String
	r.defaults[reflect.TypeOf((*time.Time)(nil)).Elem()] = DateString
	r.defaults[reflect.TypeOf((*decimal.Decimal)(nil)).Elem()] = Decimal
	r.defaults[reflect.TypeOf((*currency.Unit)(nil)).Elem()] = Currency
	r.defaults[reflect.TypeOf((*uuid.UUID)(nil)).Elem()] = UUID
	r.defaults[reflect.TypeOf((*ulid.ULID)(nil)).Elem()] = ULID
	return r
}

// Register installs s as the serializer of t, replacing any previous custom
// serializer for t.
func (r *Registry) Register(t reflect.Type, s Serializer) {
	if t == nil || s == nil {
		panic("codec: Register with nil type or serializer")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.custom[t] = s
}

// Unregister removes the custom serializer of t. The built-in default, if
// any, applies again.
func (r *Registry) Unregister(t reflect.Type) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.custom, t)
}

// RegisterEnum makes e a supported value type stored by variant name.
func (r *Registry) RegisterEnum(e *Enum) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.enums[e.typ] = e
	r.defaults[e.typ] = NewEnumString(e)
}

// Enum returns the enum registered for t.
func (r *Registry) Enum(t reflect.Type) (*Enum, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.enums[t]
	return e, ok
}

// Lookup returns the serializer of t: the custom serializer registered for t,
// else the built-in default. When nullable is set, primitive types are
// normalised to their nullable form before the default lookup.
func (r *Registry) Lookup(t reflect.Type, nullable bool) (Serializer, error) {
	if t == nil {
		return nil, ormerr.NewUnsupportedTypeError("<nil>")
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	if s, ok := r.custom[t]; ok {
		return s, nil
	}
	if nullable {
		t = normalize(t)
		if s, ok := r.custom[t]; ok {
			return s, nil
		}
	}
	if s, ok := r.defaults[t]; ok {
		return s, nil
	}
	return nil, ormerr.NewUnsupportedTypeError(t.String())
}

// Types returns every type with a serializer, sorted by name.
func (r *Registry) Types() []reflect.Type {
	r.mu.RLock()
	seen := make(map[reflect.Type]struct{}, len(r.defaults)+len(r.custom))
	for t := range r.defaults {
		seen[t] = struct{}{}
	}
	for t := range r.custom {
		seen[t] = struct{}{}
	}
	r.mu.RUnlock()

	types := make([]reflect.Type, 0, len(seen))
	for t := range seen {
		types = append(types, t)
	}
	sort.Slice(types, func(i, j int) bool {
		return types[i].String() < types[j].String()
	})
	return types
}

// IsPrimitive reports whether t is one of the non-null primitive types.
func IsPrimitive(t reflect.Type) bool {
	switch t {
	case reflect.TypeOf((*bool)(nil)).Elem(), reflect.TypeOf((*int32)(nil)).Elem(), reflect.TypeOf((*int64)(nil)).Elem(), reflect.TypeOf((*float64)(nil)).Elem():
		return true
	}
	return false
}

func normalize(t reflect.Type) reflect.Type {
	if IsPrimitive(t) {
		return reflect.PointerTo(t)
	}
	return t
}

// RegisterFor registers s for T on r.
func RegisterFor[T any](r *Registry, s Serializer) {
	r.Register(reflect.TypeOf((*T)(nil)).Elem(), s)
}

// LookupFor looks up the serializer of T on r.
func LookupFor[T any](r *Registry, nullable bool) (Serializer, error) {
	return r.Lookup(reflect.TypeOf((*T)(nil)).Elem(), nullable)
}
