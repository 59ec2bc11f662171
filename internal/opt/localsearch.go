package opt

// improvementEps is the smallest cost reduction a move must bring.
const improvementEps = 1e-6

// Improve runs local search on sol in place until no move improves it and
// returns how many moves were applied. Intra-route 2-opt and swap are
// best-improvement per route; inter-route relocate and exchange are
// first-improvement with a restart after every accepted move. Cost never
// increases, and a second call on the result applies no move.
func Improve(p *Problem, sol *Solution) MoveCounts {
	im := newImprover(p)
	var mc MoveCounts
	for {
		intra := false
		for i := range sol.Routes {
			if im.intraRoute(&sol.Routes[i], &mc) {
				intra = true
			}
		}
		inter := im.interRoute(sol.Routes, &mc)
		if !intra && !inter {
			break
		}
	}

	kept := sol.Routes[:0]
	sol.Cost = 0
	for _, r := range sol.Routes {
		if len(r.Services) == 0 {
			continue
		}
		r.Cost = p.routeCost(r.Services)
		sol.Cost += r.Cost
		kept = append(kept, r)
	}
	sol.Routes = kept
	return mc
}

type improver struct {
	p        *Problem
	capacity int
	buf      []Service
	buf2     []Service
}

func newImprover(p *Problem) *improver {
	return &improver{p: p, capacity: p.Network.Capacity}
}

func (im *improver) scratch(n int) []Service {
	if cap(im.buf) < n {
		im.buf = make([]Service, n)
	}
	return im.buf[:n]
}

func (im *improver) scratch2(n int) []Service {
	if cap(im.buf2) < n {
		im.buf2 = make([]Service, n)
	}
	return im.buf2[:n]
}

// intraRoute alternates 2-opt and swap on r until neither applies.
func (im *improver) intraRoute(r *Route, mc *MoveCounts) bool {
	moved := false
	for {
		a := im.twoOpt(r)
		if a {
			mc.TwoOpt++
		}
		b := im.swap(r)
		if b {
			mc.Swap++
		}
		if !a && !b {
			return moved
		}
		moved = true
	}
}

func reverse(s []Service) {
	for a, b := 0, len(s)-1; a < b; a, b = a+1, b-1 {
		s[a], s[b] = s[b], s[a]
	}
}

// twoOpt scans every segment [i,j] of r and applies the single reversal
// with the largest cost reduction, if it beats improvementEps.
func (im *improver) twoOpt(r *Route) bool {
	n := len(r.Services)
	if n < 2 {
		return false
	}
	base := im.p.routeCost(r.Services)
	bestGain, bi, bj := 0.0, -1, -1
	cand := im.scratch(n)
	for i := 0; i < n-1; i++ {
		for j := i + 1; j < n; j++ {
			copy(cand, r.Services)
			reverse(cand[i : j+1])
			if gain := base - im.p.routeCost(cand); gain > bestGain {
				bestGain, bi, bj = gain, i, j
			}
		}
	}
	if bi < 0 || bestGain <= improvementEps {
		return false
	}
	reverse(r.Services[bi : bj+1])
	r.Cost = im.p.routeCost(r.Services)
	return true
}

// swap is the best-improvement exchange of the services at two positions.
func (im *improver) swap(r *Route) bool {
	n := len(r.Services)
	if n < 2 {
		return false
	}
	base := im.p.routeCost(r.Services)
	bestGain, bi, bj := 0.0, -1, -1
	cand := im.scratch(n)
	copy(cand, r.Services)
	for i := 0; i < n-1; i++ {
		for j := i + 1; j < n; j++ {
			cand[i], cand[j] = cand[j], cand[i]
			gain := base - im.p.routeCost(cand)
			cand[i], cand[j] = cand[j], cand[i]
			if gain > bestGain {
				bestGain, bi, bj = gain, i, j
			}
		}
	}
	if bi < 0 || bestGain <= improvementEps {
		return false
	}
	r.Services[bi], r.Services[bj] = r.Services[bj], r.Services[bi]
	r.Cost = im.p.routeCost(r.Services)
	return true
}

// interRoute runs relocate to a fixed point, then exchange to a fixed
// point, and starts over whenever exchange moved something.
func (im *improver) interRoute(routes []Route, mc *MoveCounts) bool {
	moved := false
	for {
		for im.relocateOnce(routes) {
			mc.Relocate++
			moved = true
		}
		exchanged := false
		for im.exchangeOnce(routes) {
			mc.Exchange++
			exchanged = true
			moved = true
		}
		if !exchanged {
			return moved
		}
	}
}

// relocateOnce applies the first improving move of one service from route a
// into any position of another route b, scanning ordered pairs (a,b).
func (im *improver) relocateOnce(routes []Route) bool {
	for a := range routes {
		for b := range routes {
			if a == b {
				continue
			}
			ra, rb := &routes[a], &routes[b]
			before := im.p.routeCost(ra.Services) + im.p.routeCost(rb.Services)
			for i, s := range ra.Services {
				if rb.Demand+s.Demand > im.capacity {
					continue
				}
				without := im.scratch(len(ra.Services) - 1)
				copy(without, ra.Services[:i])
				copy(without[i:], ra.Services[i+1:])
				costA := im.p.routeCost(without)

				with := im.scratch2(len(rb.Services) + 1)
				for pos := 0; pos <= len(rb.Services); pos++ {
					copy(with, rb.Services[:pos])
					with[pos] = s
					copy(with[pos+1:], rb.Services[pos:])
					costB := im.p.routeCost(with)
					if before-(costA+costB) > improvementEps {
						ra.Services = append([]Service(nil), without...)
						ra.Demand -= s.Demand
						ra.Cost = costA
						rb.Services = append([]Service(nil), with...)
						rb.Demand += s.Demand
						rb.Cost = costB
						return true
					}
				}
			}
		}
	}
	return false
}

// exchangeOnce applies the first improving swap of one service of route a
// with one service of route b, scanning unordered pairs a < b.
func (im *improver) exchangeOnce(routes []Route) bool {
	for a := 0; a < len(routes); a++ {
		for b := a + 1; b < len(routes); b++ {
			ra, rb := &routes[a], &routes[b]
			before := im.p.routeCost(ra.Services) + im.p.routeCost(rb.Services)
			candA := im.scratch(len(ra.Services))
			candB := im.scratch2(len(rb.Services))
			copy(candA, ra.Services)
			copy(candB, rb.Services)
			for i, sa := range ra.Services {
				for j, sb := range rb.Services {
					if ra.Demand-sa.Demand+sb.Demand > im.capacity || rb.Demand-sb.Demand+sa.Demand > im.capacity {
						continue
					}
					candA[i], candB[j] = sb, sa
					costA, costB := im.p.routeCost(candA), im.p.routeCost(candB)
					if before-(costA+costB) > improvementEps {
						ra.Services = append([]Service(nil), candA...)
						rb.Services = append([]Service(nil), candB...)
						ra.Demand += sb.Demand - sa.Demand
						rb.Demand += sa.Demand - sb.Demand
						ra.Cost, rb.Cost = costA, costB
						return true
					}
					candA[i], candB[j] = sa, sb
				}
			}
		}
	}
	return false
}
