package store

import (
	"github.com/agentstation/catalogsync/pkg/authority"
)

// Option configures a filesystem store.
type Option func(*options)

type options struct {
	policy   authority.Policy
	nest     bool
	readOnly bool
}

func defaultOptions() *options {
	return &options{
		policy: authority.New(),
		nest:   true,
	}
}

// WithPolicy sets the field ownership policy used to classify loaded fields.
func WithPolicy(policy authority.Policy) Option {
	return func(o *options) {
		if policy != nil {
			o.policy = policy
		}
	}
}

// WithNestedServices controls whether new services that name a parent
// domain are written under domains/<domain>/services/<id>.
func WithNestedServices(enabled bool) Option {
	return func(o *options) {
		o.nest = enabled
	}
}

// WithReadOnly opens the store without recovery and rejects every
// mutation with ErrReadOnly.
func WithReadOnly() Option {
	return func(o *options) {
		o.readOnly = true
	}
}
