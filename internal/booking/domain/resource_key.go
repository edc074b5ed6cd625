package domain

import (
	"errors"
	"fmt"
	"slices"
	"strconv"
	"strings"
)

// ErrNoResources is returned when a reservation names no resource.
var ErrNoResources = errors.New("at least one resource is required")

// ResourceKind distinguishes rooms from staff.
type ResourceKind string

const (
	ResourceRoom  ResourceKind = "room"
	ResourceStaff ResourceKind = "staff"
)

// IsValid reports whether k is a known kind.
func (k ResourceKind) IsValid() bool {
	return k == ResourceRoom || k == ResourceStaff
}

// ResourceKey identifies a resource that must never be double-booked.
type ResourceKey struct {
	Kind ResourceKind `json:"kind" validate:"required,oneof=room staff"`
	ID   int64        `json:"id" validate:"required,gt=0"`
}

// RoomKey is shorthand for a room resource.
func RoomKey(id int64) ResourceKey { return ResourceKey{Kind: ResourceRoom, ID: id} }

// StaffKey is shorthand for a staff resource.
func StaffKey(id int64) ResourceKey { return ResourceKey{Kind: ResourceStaff, ID: id} }

// String renders the key as "kind:id", which is also its lock name.
func (k ResourceKey) String() string {
	return string(k.Kind) + ":" + strconv.FormatInt(k.ID, 10)
}

// ParseResourceKey parses the "kind:id" form.
func ParseResourceKey(s string) (ResourceKey, error) {
	kind, id, ok := strings.Cut(s, ":")
	if !ok {
		return ResourceKey{}, fmt.Errorf("resource key %q: expected kind:id", s)
	}
	n, err := strconv.ParseInt(id, 10, 64)
	if err != nil {
		return ResourceKey{}, fmt.Errorf("resource key %q: %w", s, err)
	}
	key := ResourceKey{Kind: ResourceKind(kind), ID: n}
	if err := key.validate(); err != nil {
		return ResourceKey{}, err
	}
	return key, nil
}

func (k ResourceKey) validate() error {
	if !k.Kind.IsValid() {
		return fmt.Errorf("unknown resource kind %q", k.Kind)
	}
	if k.ID <= 0 {
		return fmt.Errorf("resource id must be positive, got %d", k.ID)
	}
	return nil
}

func compareResourceKeys(a, b ResourceKey) int {
	if c := strings.Compare(string(a.Kind), string(b.Kind)); c != 0 {
		return c
	}
	switch {
	case a.ID < b.ID:
		return -1
	case a.ID > b.ID:
		return 1
	}
	return 0
}

// NormalizeResourceKeys validates, sorts and de-duplicates keys.
func NormalizeResourceKeys(keys []ResourceKey) ([]ResourceKey, error) {
	if len(keys) == 0 {
		return nil, ErrNoResources
	}
	out := make([]ResourceKey, 0, len(keys))
	for _, k := range keys {
		if err := k.validate(); err != nil {
			return nil, err
		}
		out = append(out, k)
	}
	slices.SortFunc(out, compareResourceKeys)
	return slices.Compact(out), nil
}

// SharedResources returns the keys present in both sets, sorted.
func SharedResources(a, b []ResourceKey) []ResourceKey {
	var shared []ResourceKey
	for _, k := range a {
		if slices.Contains(b, k) && !slices.Contains(shared, k) {
			shared = append(shared, k)
		}
	}
	slices.SortFunc(shared, compareResourceKeys)
	return shared
}

// LockNames returns the advisory lock names for a key set.
func LockNames(keys []ResourceKey) []string {
	names := make([]string, len(keys))
	for i, k := range keys {
		names[i] = "resource:" + k.String()
	}
	return names
}
