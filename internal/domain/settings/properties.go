package settings

import "sync"

// Properties is the process-wide ephemeral property store. Nothing here
// survives a restart; components use it for transient flags such as the
// published default-launcher exclusion.
type Properties struct {
	values sync.Map
}

// NewProperties creates an empty property store.
func NewProperties() *Properties {
	return &Properties{}
}

// Get returns the property value, or def when unset.
func (p *Properties) Get(key, def string) string {
	if v, ok := p.values.Load(key); ok {
		return v.(string)
	}
	return def
}

// Set stores a property value.
func (p *Properties) Set(key, value string) {
	p.values.Store(key, value)
}
