package wsbridge

import (
	"slices"
	"sync"

	"github.com/goliatone/go-formembed/pkg/builder"
	"github.com/goliatone/go-formembed/pkg/form"
)

// instance is the builder.Instance for one seeded builder on a page.
type instance struct {
	conn *pageConn

	mu        sync.Mutex
	schema    form.Schema
	listeners []func(form.Schema)
	destroyed bool
	done      chan struct{}
}

var _ builder.Instance = (*instance)(nil)

func newInstance(conn *pageConn, schema form.Schema) *instance {
	return &instance{conn: conn, schema: schema.Clone(), done: make(chan struct{})}
}

func (i *instance) CurrentSchema() form.Schema {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.schema.Clone()
}

func (i *instance) OnChange(fn func(form.Schema)) {
	if fn == nil {
		return
	}
	i.mu.Lock()
	i.listeners = append(i.listeners, fn)
	i.mu.Unlock()
}

func (i *instance) Reset(schema form.Schema) error {
	i.mu.Lock()
	if i.destroyed {
		i.mu.Unlock()
		return builder.ErrInstanceDestroyed
	}
	i.schema = schema.Clone()
	i.mu.Unlock()
	return i.conn.send(Message{Type: TypeReset, Schema: schema})
}

func (i *instance) Destroy() error {
	if !i.markDestroyed() {
		return nil
	}
	i.conn.unbind(i)
	if i.conn.isClosed() {
		return nil
	}
	return i.conn.send(Message{Type: TypeDestroy})
}

// markDestroyed reports whether this call performed the transition.
func (i *instance) markDestroyed() bool {
	i.mu.Lock()
	defer i.mu.Unlock()
	if i.destroyed {
		return false
	}
	i.destroyed = true
	i.listeners = nil
	close(i.done)
	return true
}

// Done is closed when the instance is destroyed or its page goes away.
func (i *instance) Done() <-chan struct{} {
	return i.done
}

func (i *instance) deliver(schema form.Schema) {
	i.mu.Lock()
	if i.destroyed {
		i.mu.Unlock()
		return
	}
	i.schema = schema.Clone()
	listeners := slices.Clone(i.listeners)
	i.mu.Unlock()

	for _, fn := range listeners {
		fn(schema.Clone())
	}
}
