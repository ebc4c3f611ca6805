package selection

import (
	"time"

	"github.com/aretw0/rewind/pkg/ports"
	"github.com/aretw0/rewind/pkg/registry"
)

// Register adds the "simple" and "random" strategies to r.
func Register(r *registry.Registry) {
	r.RegisterStrategy("simple", func() ports.EventSelectionStrategy { return NewSimple() })
	r.RegisterStrategy("random", func() ports.EventSelectionStrategy { return NewRandom(time.Now().UnixNano()) })
}
