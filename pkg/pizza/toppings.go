package pizza

// toppingOrder is the order toppings are offered to participants in.
var toppingOrder = []string{
	"Green Olives", "Black Olives", "Mushrooms", "Onions", "Corn", "Peppers",
	"Xtra Cheese", "Mozzarella", "Spinach", "Tomatoes", "Pepperoni", "Bacon",
	"Anchovies", "Pineapple",
}

var toppingSet = func() map[string]struct{} {
	out := make(map[string]struct{}, len(toppingOrder))
	for _, t := range toppingOrder {
		out[t] = struct{}{}
	}
	return out
}()

// Toppings returns a copy of the topping vocabulary in display order.
func Toppings() []string {
	out := make([]string, len(toppingOrder))
	copy(out, toppingOrder)
	return out
}

func IsTopping(name string) bool {
	_, ok := toppingSet[name]
	return ok
}

// FilterToppings keeps only known toppings, dropping duplicates but keeping the first-seen order.
func FilterToppings(in []string) []string {
	out := make([]string, 0, len(in))
	seen := make(map[string]struct{}, len(in))
	for _, t := range in {
		if !IsTopping(t) {
			continue
		}
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	return out
}
