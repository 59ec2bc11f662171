package opt

import (
	"fmt"

	"nearp/internal/network"
)

// Catalog flattens the required elements of a network into services with
// ids 1..Len(): vertices first, then edges, then arcs, each in declaration
// order. It also tracks which services are still pending during one
// construction run.
type Catalog struct {
	services []Service
	served   []bool
	pending  int
}

func NewCatalog(net *network.Network) *Catalog {
	var svcs []Service
	add := func(kind ServiceKind, elem, head, tail, demand int, cost float64) {
		svcs = append(svcs, Service{
			ID:        len(svcs) + 1,
			Kind:      kind,
			ElementID: elem,
			Head:      head,
			Tail:      tail,
			Demand:    demand,
			Cost:      cost,
		})
	}
	for _, v := range net.Vertices {
		if v.Required {
			add(VertexService, v.ID, v.ID, v.ID, v.Demand, v.ServiceCost)
		}
	}
	for _, e := range net.Edges {
		if e.Required {
			add(EdgeService, e.ID, e.From, e.To, e.Demand, e.ServiceCost)
		}
	}
	for _, a := range net.Arcs {
		if a.Required {
			add(ArcService, a.ID, a.From, a.To, a.Demand, a.ServiceCost)
		}
	}
	return &Catalog{services: svcs, served: make([]bool, len(svcs)), pending: len(svcs)}
}

// Fresh returns a catalog sharing the services of c with every service
// pending again.
func (c *Catalog) Fresh() *Catalog {
	return &Catalog{services: c.services, served: make([]bool, len(c.services)), pending: len(c.services)}
}

func (c *Catalog) Len() int { return len(c.services) }

// Services returns every service in id order.
func (c *Catalog) Services() []Service { return append([]Service(nil), c.services...) }

func (c *Catalog) Get(id int) (Service, bool) {
	if id < 1 || id > len(c.services) {
		return Service{}, false
	}
	return c.services[id-1], true
}

// Pending returns the services not yet served, in id order.
func (c *Catalog) Pending() []Service {
	out := make([]Service, 0, c.pending)
	for i, s := range c.services {
		if !c.served[i] {
			out = append(out, s)
		}
	}
	return out
}

func (c *Catalog) IsServed(id int) bool { return id >= 1 && id <= len(c.served) && c.served[id-1] }

func (c *Catalog) MarkServed(id int) error {
	if id < 1 || id > len(c.services) {
		return fmt.Errorf("mark served: unknown service %d", id)
	}
	if c.served[id-1] {
		return fmt.Errorf("mark served: service %d already served", id)
	}
	c.served[id-1] = true
	c.pending--
	return nil
}

func (c *Catalog) AllServed() bool { return c.pending == 0 }
