// Package pool implements the shared object pool collaborator: streamed road
// blocks, enemies and projectiles are acquired and released by prefab id
// instead of being allocated per instance.
package pool

type Factory func(prefabID string) interface{}

type Pool struct {
	factory Factory
	free    map[string][]interface{}

	allocated uint64
	reused    uint64
}

func New(factory Factory) *Pool {
	return &Pool{
		factory: factory,
		free:    map[string][]interface{}{},
	}
}

func (p *Pool) Acquire(prefabID string) interface{} {
	if list := p.free[prefabID]; len(list) > 0 {
		v := list[len(list)-1]
		p.free[prefabID] = list[:len(list)-1]
		p.reused++
		return v
	}
	p.allocated++
	return p.factory(prefabID)
}

func (p *Pool) Release(prefabID string, v interface{}) {
	if v == nil {
		return
	}
	p.free[prefabID] = append(p.free[prefabID], v)
}

// Stats reports lifetime allocation counters (allocated, reused).
func (p *Pool) Stats() (allocated, reused uint64) {
	return p.allocated, p.reused
}
