package ir

type (
	// Program is everything the generator produces and the engine consumes.
	Program struct {
		Ints    []IntConst    `msgpack:"ints"`
		Floats  []FloatConst  `msgpack:"floats"`
		Strings []StringConst `msgpack:"strings"`

		Funcs []Func `msgpack:"funcs"`
		Quads []Quad `msgpack:"quads"`
	}

	IntConst struct {
		Value int32 `msgpack:"v"`
		Addr  Addr  `msgpack:"a"`
	}

	FloatConst struct {
		Value float64 `msgpack:"v"`
		Addr  Addr    `msgpack:"a"`
	}

	StringConst struct {
		Value string `msgpack:"v"`
		Addr  Addr   `msgpack:"a"`
	}

	// Func is the callable procedure metadata the engine needs.
	Func struct {
		Name   string `msgpack:"name"`
		Start  Addr   `msgpack:"start"`
		Params []Addr `msgpack:"params"`
		Locals int    `msgpack:"locals"`
	}
)

// Emit appends q and returns its index.
func (p *Program) Emit(q Quad) int {
	p.Quads = append(p.Quads, q)

	return len(p.Quads) - 1
}

// Fill writes target into the Result field of the quad at i.
func (p *Program) Fill(i, target int) {
	p.Quads[i].Result = Index(target)
}

// Next is the index the next emitted quad will get.
func (p *Program) Next() int {
	return len(p.Quads)
}
