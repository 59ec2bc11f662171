package opt

// minIntensity keeps evaporated entries away from floating-point underflow.
const minIntensity = 1e-300

// Field is the pheromone table, a dense square matrix indexed by vertex id
// (row and column 0 included). Ants only read it; the colony writes it
// between iterations.
type Field struct {
	n   int
	tau []float64
}

// NewField sets every ordered pair of 0..vertexCount to 1.0.
func NewField(vertexCount int) *Field {
	n := vertexCount + 1
	f := &Field{n: n, tau: make([]float64, n*n)}
	for i := range f.tau {
		f.tau[i] = 1.0
	}
	return f
}

func (f *Field) At(from, to int) float64 { return f.tau[from*f.n+to] }

// Evaporate multiplies every entry by (1 - rate).
func (f *Field) Evaporate(rate float64) {
	keep := 1 - rate
	for i, v := range f.tau {
		v *= keep
		if v < minIntensity {
			v = minIntensity
		}
		f.tau[i] = v
	}
}

func (f *Field) Reinforce(from, to int, amount float64) {
	f.tau[from*f.n+to] += amount
}

// Min returns the smallest intensity in the field.
func (f *Field) Min() float64 {
	m := f.tau[0]
	for _, v := range f.tau[1:] {
		if v < m {
			m = v
		}
	}
	return m
}

// reinforcementAmount is 1/cost, with non-positive costs floored to 1.
func reinforcementAmount(cost float64) float64 {
	if cost <= 0 {
		return 1
	}
	return 1 / cost
}

// updateField is the pheromone update closing one iteration: evaporation,
// one deposit per ant solution, then the elitist deposit of best.
func updateField(f *Field, ants []Solution, best Solution, rate float64, depot int) {
	f.Evaporate(rate)
	for _, a := range ants {
		deposit(f, a, depot)
	}
	deposit(f, best, depot)
}

// deposit walks every route of sol from the depot through each service and
// back, reinforcing the deadhead legs the construction heuristic reads.
func deposit(f *Field, sol Solution, depot int) {
	amount := reinforcementAmount(sol.Cost)
	for _, r := range sol.Routes {
		cur := depot
		for _, s := range r.Services {
			f.Reinforce(cur, s.Head, amount)
			cur = s.Tail
		}
		f.Reinforce(cur, depot, amount)
	}
}
