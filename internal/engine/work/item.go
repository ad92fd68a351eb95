// Package work defines the unit of work the batch engine executes and the
// operation contract its callers supply.
package work

import (
	"context"
	"encoding/json"
	"fmt"
)

// Kind identifies which remote operation an item requires.
type Kind string

// Supported operation kinds.
const (
	KindCreate Kind = "create"
	KindRead   Kind = "read"
	KindUpdate Kind = "update"
	KindDelete Kind = "delete"
)

// Valid reports whether k is a supported operation kind.
func (k Kind) Valid() bool {
	switch k {
	case KindCreate, KindRead, KindUpdate, KindDelete:
		return true
	default:
		return false
	}
}

// Cacheable reports whether results for this kind may be served from the
// per-run read memo.
func (k Kind) Cacheable() bool {
	return k == KindRead
}

// Item is one unit of work: an operation kind, the remote key it targets,
// and an optional payload.
type Item struct {
	Kind    Kind           `yaml:"kind" json:"kind"`
	Key     string         `yaml:"key" json:"key"`
	Payload map[string]any `yaml:"payload,omitempty" json:"payload,omitempty"`
}

// Signature returns the item's structural-equality key. Two items with the
// same kind, key, and payload content produce the same signature regardless
// of identity; duplicate detection collapses on it.
func (i Item) Signature() string {
	// encoding/json sorts map keys, giving a canonical payload encoding.
	payload, err := json.Marshal(i.Payload)
	if err != nil {
		payload = []byte(fmt.Sprintf("%v", i.Payload))
	}
	return fmt.Sprintf("%s|%s|%s", i.Kind, i.Key, payload)
}

// CacheKey returns the key used for the per-run read memo. Unlike Signature
// it ignores the payload: reads of the same remote key fetch the same data.
func (i Item) CacheKey() string {
	return fmt.Sprintf("%s|%s", i.Kind, i.Key)
}

// Operation executes one item against the remote system and returns its
// result value. The engine is agnostic to transport, serialization, and
// auth; those live entirely inside the supplied Operation.
type Operation func(ctx context.Context, item Item) (any, error)

// OperationSet maps each kind to its Operation. Every kind present in a work
// list must have an entry.
type OperationSet map[Kind]Operation
