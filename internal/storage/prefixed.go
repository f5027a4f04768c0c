package storage

import "context"

// Prefixed scopes every key of an underlying Storage under prefix, so several
// owners can keep state under the same logical key.
type Prefixed struct {
	next   Storage
	prefix string
}

func NewPrefixed(next Storage, prefix string) *Prefixed {
	return &Prefixed{next: next, prefix: prefix}
}

func (p *Prefixed) Get(ctx context.Context, key string) ([]byte, error) {
	return p.next.Get(ctx, p.prefix+key)
}

func (p *Prefixed) Set(ctx context.Context, key string, value []byte) error {
	return p.next.Set(ctx, p.prefix+key, value)
}

func (p *Prefixed) Delete(ctx context.Context, key string) error {
	return p.next.Delete(ctx, p.prefix+key)
}
