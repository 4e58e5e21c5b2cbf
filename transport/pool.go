package transport

import "sync"

// Pool hands out Clients keyed by CA-bundle path so accounts that pin their
// own certificate get a transport trusting that bundle while everything else
// shares the default client. Clients are built lazily and cached; an
// account's cert path takes precedence over the pool-wide one.
type Pool struct {
	base Options
	def  Client

	mu     sync.Mutex
	byPath map[string]Client
}

// NewPool builds a pool whose default client uses opts as-is.
func NewPool(opts Options) (*Pool, error) {
	def, err := New(opts)
	if err != nil {
		return nil, err
	}
	return &Pool{
		base:   opts,
		def:    def,
		byPath: make(map[string]Client),
	}, nil
}

// Default returns the pool-wide client.
func (p *Pool) Default() Client {
	return p.def
}

// For returns the client for certPath. An empty path, or the path the pool
// was built with, yields the default client.
func (p *Pool) For(certPath string) (Client, error) {
	if certPath == "" || certPath == p.base.CertPath {
		return p.def, nil
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if c, ok := p.byPath[certPath]; ok {
		return c, nil
	}
	c, err := New(Options{CertPath: certPath, Timeout: p.base.Timeout})
	if err != nil {
		return nil, err
	}
	p.byPath[certPath] = c
	return c, nil
}
