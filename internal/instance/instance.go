// Package instance reads NEARP instance files: a "Key: value" header
// followed by whitespace separated sections for required vertices, required
// and optional edges, and required and optional arcs.
package instance

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"nearp/internal/network"
)

var ErrMalformed = errors.New("malformed instance")

type section int

const (
	sectionNone section = iota
	sectionReqVertices
	sectionReqEdges
	sectionEdges
	sectionReqArcs
	sectionArcs
)

// sectionHeaders maps the first token of a section header line.
var sectionHeaders = map[string]section{
	"ReN.": sectionReqVertices,
	"ReE.": sectionReqEdges,
	"EDGE": sectionEdges,
	"ReA.": sectionReqArcs,
	"ARC":  sectionArcs,
}

// header holds the declared counts, checked against what the sections
// actually contain.
type header struct {
	edges, arcs                    int
	reqVertices, reqEdges, reqArcs int
}

func ParseFile(path string) (*network.Network, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("parse instance: %w", err)
	}
	defer f.Close()
	net, err := Parse(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return net, nil
}

func ParseString(s string) (*network.Network, error) { return Parse(strings.NewReader(s)) }

// Parse reads one instance. A blank line closes the current section; a line
// reading END, or the end of input, closes the file.
func Parse(r io.Reader) (*network.Network, error) {
	net := &network.Network{}
	var h header
	cur := sectionNone

	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	line := 0
	for sc.Scan() {
		line++
		text := strings.TrimSpace(sc.Text())
		if text == "" {
			cur = sectionNone
			continue
		}
		if strings.EqualFold(text, "END") {
			break
		}
		fields := strings.Fields(text)
		if s, ok := sectionHeaders[fields[0]]; ok {
			cur = s
			continue
		}
		var err error
		if cur == sectionNone {
			err = h.apply(net, text)
		} else {
			err = parseRecord(net, cur, fields)
		}
		if err != nil {
			return nil, fmt.Errorf("parse instance: line %d: %w", line, err)
		}
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("parse instance: %w", err)
	}
	if err := h.check(net); err != nil {
		return nil, fmt.Errorf("parse instance: %w", err)
	}
	return net, nil
}

func (h *header) apply(net *network.Network, text string) error {
	key, value, ok := strings.Cut(text, ":")
	if !ok {
		return fmt.Errorf("expected \"key: value\", got %q: %w", text, ErrMalformed)
	}
	key = strings.ToLower(strings.TrimSpace(key))
	value = strings.TrimSpace(value)
	if key == "name" {
		net.Name = value
		return nil
	}

	var dst *int
	switch {
	case strings.HasPrefix(key, "optimal"):
		dst = &net.OptimalValue
	case strings.HasPrefix(key, "#vehicles"):
		dst = &net.Vehicles
	case strings.HasPrefix(key, "capacity"):
		dst = &net.Capacity
	case strings.HasPrefix(key, "depot"):
		dst = &net.Depot
	case strings.HasPrefix(key, "#nodes"):
		dst = &net.VertexCount
	case strings.HasPrefix(key, "#edges"):
		dst = &h.edges
	case strings.HasPrefix(key, "#arcs"):
		dst = &h.arcs
	case strings.HasPrefix(key, "#required n"):
		dst = &h.reqVertices
	case strings.HasPrefix(key, "#required e"):
		dst = &h.reqEdges
	case strings.HasPrefix(key, "#required a"):
		dst = &h.reqArcs
	default:
		// Unknown keys are ignored.
		return nil
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return fmt.Errorf("header %q: %v: %w", key, err, ErrMalformed)
	}
	*dst = n
	return nil
}

func (h *header) check(net *network.Network) error {
	if net.VertexCount == 0 {
		return fmt.Errorf("missing #Nodes: %w", ErrMalformed)
	}
	rv, re, ra := net.RequiredCounts()
	switch {
	case rv != h.reqVertices:
		return fmt.Errorf("declared %d required nodes, found %d: %w", h.reqVertices, rv, ErrMalformed)
	case re != h.reqEdges:
		return fmt.Errorf("declared %d required edges, found %d: %w", h.reqEdges, re, ErrMalformed)
	case ra != h.reqArcs:
		return fmt.Errorf("declared %d required arcs, found %d: %w", h.reqArcs, ra, ErrMalformed)
	case len(net.Edges) != h.edges:
		return fmt.Errorf("declared %d edges, found %d: %w", h.edges, len(net.Edges), ErrMalformed)
	case len(net.Arcs) != h.arcs:
		return fmt.Errorf("declared %d arcs, found %d: %w", h.arcs, len(net.Arcs), ErrMalformed)
	}
	return nil
}

func parseRecord(net *network.Network, s section, f []string) error {
	switch s {
	case sectionReqVertices:
		id, err := elementID(f, "N", 3)
		if err != nil {
			return err
		}
		demand, cost, err := demandCost(f[1], f[2])
		if err != nil {
			return err
		}
		net.Vertices = append(net.Vertices, network.Vertex{ID: id, Required: true, Demand: demand, ServiceCost: cost})

	case sectionReqEdges, sectionReqArcs:
		prefix := "E"
		if s == sectionReqArcs {
			prefix = "A"
		}
		id, err := elementID(f, prefix, 6)
		if err != nil {
			return err
		}
		from, to, transit, err := link(f)
		if err != nil {
			return err
		}
		demand, cost, err := demandCost(f[4], f[5])
		if err != nil {
			return err
		}
		if s == sectionReqEdges {
			net.Edges = append(net.Edges, network.Edge{ID: id, From: from, To: to, TransitCost: transit, Required: true, Demand: demand, ServiceCost: cost})
		} else {
			net.Arcs = append(net.Arcs, network.Arc{ID: id, From: from, To: to, TransitCost: transit, Required: true, Demand: demand, ServiceCost: cost})
		}

	case sectionEdges, sectionArcs:
		prefix := "NrE"
		if s == sectionArcs {
			prefix = "NrA"
		}
		id, err := elementID(f, prefix, 4)
		if err != nil {
			return err
		}
		from, to, transit, err := link(f)
		if err != nil {
			return err
		}
		if s == sectionEdges {
			net.Edges = append(net.Edges, network.Edge{ID: id, From: from, To: to, TransitCost: transit})
		} else {
			net.Arcs = append(net.Arcs, network.Arc{ID: id, From: from, To: to, TransitCost: transit})
		}
	}
	return nil
}

// elementID checks the field count and strips prefix from the id token.
func elementID(f []string, prefix string, want int) (int, error) {
	if len(f) < want {
		return 0, fmt.Errorf("expected %d fields, got %d: %w", want, len(f), ErrMalformed)
	}
	raw, ok := strings.CutPrefix(f[0], prefix)
	if !ok {
		return 0, fmt.Errorf("id %q lacks prefix %q: %w", f[0], prefix, ErrMalformed)
	}
	id, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("id %q: %w", f[0], ErrMalformed)
	}
	return id, nil
}

func link(f []string) (from, to int, transit float64, err error) {
	if from, err = strconv.Atoi(f[1]); err != nil {
		return 0, 0, 0, fmt.Errorf("from %q: %w", f[1], ErrMalformed)
	}
	if to, err = strconv.Atoi(f[2]); err != nil {
		return 0, 0, 0, fmt.Errorf("to %q: %w", f[2], ErrMalformed)
	}
	if transit, err = strconv.ParseFloat(f[3], 64); err != nil {
		return 0, 0, 0, fmt.Errorf("transit cost %q: %w", f[3], ErrMalformed)
	}
	return from, to, transit, nil
}

func demandCost(d, c string) (int, float64, error) {
	demand, err := strconv.Atoi(d)
	if err != nil {
		return 0, 0, fmt.Errorf("demand %q: %w", d, ErrMalformed)
	}
	cost, err := strconv.ParseFloat(c, 64)
	if err != nil {
		return 0, 0, fmt.Errorf("service cost %q: %w", c, ErrMalformed)
	}
	return demand, cost, nil
}
