package entity

// Registry is the ordered set of live entities. Insertion order is creation
// order. Game loop goroutine only.
type Registry struct {
	entities []*Entity
}

func NewRegistry() *Registry {
	return &Registry{entities: make([]*Entity, 0, 64)}
}

func (r *Registry) add(e *Entity) {
	r.entities = append(r.entities, e)
}

// remove deletes e by identity and reports whether it was present.
func (r *Registry) remove(e *Entity) bool {
	for i, cur := range r.entities {
		if cur == e {
			r.entities = append(r.entities[:i], r.entities[i+1:]...)
			return true
		}
	}
	return false
}

func (r *Registry) Len() int { return len(r.entities) }

func (r *Registry) At(i int) *Entity { return r.entities[i] }

func (r *Registry) Contains(e *Entity) bool {
	for _, cur := range r.entities {
		if cur == e {
			return true
		}
	}
	return false
}

// Entities returns a copy in creation order.
func (r *Registry) Entities() []*Entity {
	out := make([]*Entity, len(r.entities))
	copy(out, r.entities)
	return out
}

func (r *Registry) Each(fn func(*Entity)) {
	for _, e := range r.entities {
		fn(e)
	}
}
