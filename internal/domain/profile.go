package domain

import (
	"encoding/json"
)

// Profile holds the diagnostic data captured for a single request/response
// exchange, keyed by a unique token. Sub-request profiles hang off their
// parent via AddChild, forming a tree owned top-down through Children; the
// parent pointer is a plain back-reference and is only ever set through
// AddChild.
type Profile struct {
	Token      string
	IP         string
	Method     string
	URL        string
	Time       int64 // capture instant, epoch seconds
	StatusCode int

	parent     *Profile
	children   []*Profile
	collectors map[string]Collector
}

func NewProfile(token string) *Profile {
	return &Profile{Token: token, collectors: make(map[string]Collector)}
}

func (p *Profile) Parent() *Profile { return p.parent }

// ParentToken returns the parent's token, or "" for a root profile.
func (p *Profile) ParentToken() string {
	if p.parent == nil {
		return ""
	}
	return p.parent.Token
}

// SetParent records the back-reference only; it does not register p on the
// parent's child list. Callers building a tree go through AddChild.
func (p *Profile) SetParent(parent *Profile) { p.parent = parent }

// AddChild appends child and points its parent link back at p. No duplicate
// or cycle detection: adding a profile as its own descendant is a caller bug.
func (p *Profile) AddChild(child *Profile) {
	p.children = append(p.children, child)
	child.SetParent(p)
}

// ChildByToken scans immediate children only; it does not recurse. Returns
// nil when no child carries the token.
func (p *Profile) ChildByToken(token string) *Profile {
	for _, c := range p.children {
		if c.Token == token {
			return c
		}
	}
	return nil
}

func (p *Profile) Children() []*Profile { return p.children }

// SetChildren replaces the child list. Previous children keep their stale
// parent pointers; only the new list is re-linked.
func (p *Profile) SetChildren(children []*Profile) {
	p.children = nil
	for _, c := range children {
		p.AddChild(c)
	}
}

// AddCollector stores the snapshot under its own name, overwriting any
// previous snapshot with that name.
func (p *Profile) AddCollector(c Collector) {
	if p.collectors == nil {
		p.collectors = make(map[string]Collector)
	}
	p.collectors[c.Name()] = c
}

func (p *Profile) Collector(name string) (Collector, error) {
	c, ok := p.collectors[name]
	if !ok {
		return nil, &NotFoundError{Kind: "collector", Name: name}
	}
	return c, nil
}

func (p *Profile) HasCollector(name string) bool {
	_, ok := p.collectors[name]
	return ok
}

func (p *Profile) Collectors() map[string]Collector { return p.collectors }

func (p *Profile) SetCollectors(cs []Collector) {
	p.collectors = make(map[string]Collector, len(cs))
	for _, c := range cs {
		p.AddCollector(c)
	}
}

// profileJSON is the persisted shape: only these fields survive a
// round-trip. The parent link travels as the parent token; children are
// embedded recursively and re-linked on load.
type profileJSON struct {
	Token      string                     `json:"token"`
	Parent     string                     `json:"parent,omitempty"`
	Children   []*Profile                 `json:"children,omitempty"`
	Collectors map[string]json.RawMessage `json:"collectors,omitempty"`
	IP         string                     `json:"ip"`
	Method     string                     `json:"method"`
	URL        string                     `json:"url"`
	Time       int64                      `json:"time"`
	StatusCode int                        `json:"statusCode"`
}

func (p *Profile) MarshalJSON() ([]byte, error) {
	out := profileJSON{
		Token:      p.Token,
		Parent:     p.ParentToken(),
		Children:   p.children,
		IP:         p.IP,
		Method:     p.Method,
		URL:        p.URL,
		Time:       p.Time,
		StatusCode: p.StatusCode,
	}
	if len(p.collectors) > 0 {
		out.Collectors = make(map[string]json.RawMessage, len(p.collectors))
		for name, c := range p.collectors {
			data, err := json.Marshal(c)
			if err != nil {
				return nil, err
			}
			out.Collectors[name] = data
		}
	}
	return json.Marshal(out)
}

func (p *Profile) UnmarshalJSON(data []byte) error {
	var in profileJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}
	p.Token = in.Token
	p.IP = in.IP
	p.Method = in.Method
	p.URL = in.URL
	p.Time = in.Time
	p.StatusCode = in.StatusCode
	p.children = nil
	for _, c := range in.Children {
		p.AddChild(c)
	}
	p.collectors = make(map[string]Collector, len(in.Collectors))
	for name, raw := range in.Collectors {
		p.AddCollector(NewSnapshot(name, raw))
	}
	return nil
}
