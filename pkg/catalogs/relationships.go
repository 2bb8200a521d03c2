package catalogs

// Ref points at another entity, optionally pinned to a version.
type Ref struct {
	ID      string `json:"id" yaml:"id"`
	Version string `json:"version,omitempty" yaml:"version,omitempty"`
}

// Badge is a small label rendered on an entity page.
type Badge struct {
	Content         string `json:"content" yaml:"content"`
	BackgroundColor string `json:"backgroundColor,omitempty" yaml:"backgroundColor,omitempty"`
	TextColor       string `json:"textColor,omitempty" yaml:"textColor,omitempty"`
	Icon            string `json:"icon,omitempty" yaml:"icon,omitempty"`
}

// Relationships holds the list-valued links of an entity.
type Relationships struct {
	Sends    []Ref `json:"sends,omitempty" yaml:"sends,omitempty"`       // Messages a service produces
	Receives []Ref `json:"receives,omitempty" yaml:"receives,omitempty"` // Messages a service consumes
	Channels []Ref `json:"channels,omitempty" yaml:"channels,omitempty"` // Channels a message travels on
	Services []Ref `json:"services,omitempty" yaml:"services,omitempty"` // Services owned by a domain
	Domain   *Ref  `json:"domain,omitempty" yaml:"domain,omitempty"`     // Parent domain of a service
}

// Clone returns a deep copy.
func (r Relationships) Clone() Relationships {
	out := Relationships{
		Sends:    cloneRefs(r.Sends),
		Receives: cloneRefs(r.Receives),
		Channels: cloneRefs(r.Channels),
		Services: cloneRefs(r.Services),
	}
	if r.Domain != nil {
		d := *r.Domain
		out.Domain = &d
	}
	return out
}

// IsZero reports whether no relationship is set.
func (r Relationships) IsZero() bool {
	return len(r.Sends) == 0 && len(r.Receives) == 0 && len(r.Channels) == 0 &&
		len(r.Services) == 0 && r.Domain == nil
}

func cloneRefs(refs []Ref) []Ref {
	if refs == nil {
		return nil
	}
	return append([]Ref(nil), refs...)
}
