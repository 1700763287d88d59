package pizza

// Composition summarises an order the way the participants see it: how many slices in total and, per topping,
// how many slices were requested with it.
type Composition struct {
	Requests    int            `json:"requests"`
	TotalSlices int            `json:"total_slices"`
	Approx      int            `json:"approx"`
	Toppings    map[string]int `json:"toppings"`
}

func Compose(requests []Request) Composition {
	c := Composition{Toppings: make(map[string]int)}
	for _, r := range requests {
		c.Requests++
		c.TotalSlices += r.Slices
		if r.Approx {
			c.Approx++
		}
		for _, t := range r.Toppings {
			c.Toppings[t] += r.Slices
		}
	}
	return c
}
