package whois

import (
	"net/netip"
	"strings"

	"github.com/openrdap/rdap"
)

// Ownership is the registration record of the network holding an address.
type Ownership struct {
	Handle       string   `json:"handle,omitempty"`
	Name         string   `json:"name,omitempty"`
	StartAddress string   `json:"start_address,omitempty"`
	EndAddress   string   `json:"end_address,omitempty"`
	CIDRs        []string `json:"cidrs,omitempty"`
	IPVersion    string   `json:"ip_version,omitempty"`
	Country      string   `json:"country,omitempty"`
	Type         string   `json:"type,omitempty"`
	ParentHandle string   `json:"parent_handle,omitempty"`
	Status       []string `json:"status,omitempty"`
	Entities     []Entity `json:"entities,omitempty"`
	Events       []Event  `json:"events,omitempty"`
	RegistryURL  string   `json:"registry_url,omitempty"`
	Port43       string   `json:"port43,omitempty"`
}

// Entity is a contact or organisation attached to a network.
type Entity struct {
	Handle   string   `json:"handle,omitempty"`
	Roles    []string `json:"roles,omitempty"`
	Name     string   `json:"name,omitempty"`
	Email    string   `json:"email,omitempty"`
	Kind     string   `json:"kind,omitempty"`
	Entities []Entity `json:"entities,omitempty"`
}

// Event is a dated registry action such as registration or last change.
type Event struct {
	Action string `json:"action"`
	Actor  string `json:"actor,omitempty"`
	Date   string `json:"date"`
}

// HasRole reports whether any entity, at any depth, carries role.
func (o *Ownership) HasRole(role string) bool {
	var walk func([]Entity) bool
	walk = func(es []Entity) bool {
		for _, e := range es {
			for _, r := range e.Roles {
				if strings.EqualFold(r, role) {
					return true
				}
			}
			if walk(e.Entities) {
				return true
			}
		}
		return false
	}
	return walk(o.Entities)
}

func ownershipFromRDAP(n *rdap.IPNetwork) *Ownership {
	o := &Ownership{
		Handle:       n.Handle,
		Name:         n.Name,
		StartAddress: n.StartAddress,
		EndAddress:   n.EndAddress,
		IPVersion:    n.IPVersion,
		Country:      n.Country,
		Type:         n.Type,
		ParentHandle: n.ParentHandle,
		Status:       n.Status,
		Port43:       n.Port43,
		Entities:     entitiesFromRDAP(n.Entities),
		RegistryURL:  selfLink(n.Links),
	}
	for _, ev := range n.Events {
		o.Events = append(o.Events, Event{Action: ev.Action, Actor: ev.Actor, Date: ev.Date})
	}
	o.CIDRs = rangeToCIDRs(n.StartAddress, n.EndAddress)
	return o
}

func entitiesFromRDAP(in []rdap.Entity) []Entity {
	if len(in) == 0 {
		return nil
	}
	out := make([]Entity, 0, len(in))
	for _, e := range in {
		ent := Entity{
			Handle:   e.Handle,
			Roles:    e.Roles,
			Entities: entitiesFromRDAP(e.Entities),
		}
		if e.VCard != nil {
			ent.Name = e.VCard.Name()
			ent.Email = e.VCard.Email()
			if p := e.VCard.GetFirst("kind"); p != nil {
				ent.Kind = strings.Join(p.Values(), " ")
			}
		}
		out = append(out, ent)
	}
	return out
}

func selfLink(links []rdap.Link) string {
	for _, l := range links {
		if l.Rel == "self" {
			return l.Href
		}
	}
	return ""
}

// rangeToCIDRs summarises an inclusive address range into the minimal
// list of prefixes covering it. Unparsable or inverted ranges yield nil.
func rangeToCIDRs(start, end string) []string {
	lo, err := netip.ParseAddr(start)
	if err != nil {
		return nil
	}
	hi, err := netip.ParseAddr(end)
	if err != nil || lo.Is4() != hi.Is4() || hi.Less(lo) {
		return nil
	}

	var out []string
	for {
		bits := lo.BitLen()
		for bits > 0 {
			p := netip.PrefixFrom(lo, bits-1).Masked()
			if p.Addr() != lo || hi.Less(lastAddr(p)) {
				break
			}
			bits--
		}
		p := netip.PrefixFrom(lo, bits)
		out = append(out, p.String())

		last := lastAddr(p)
		if last == hi {
			return out
		}
		lo = last.Next()
		if !lo.IsValid() {
			return out
		}
	}
}

func lastAddr(p netip.Prefix) netip.Addr {
	b := p.Masked().Addr().AsSlice()
	host := len(b)*8 - p.Bits()
	for i := len(b) - 1; i >= 0 && host > 0; i-- {
		if host >= 8 {
			b[i] = 0xff
			host -= 8
			continue
		}
		b[i] |= byte(1<<host) - 1
		host = 0
	}
	a, _ := netip.AddrFromSlice(b)
	return a
}
