package engine

import "sort"

// StockEffect maps a product id to the signed change an order makes to its
// stock. Products with a zero net change are left out.
type StockEffect map[string]int

// OrderEffect is the one place that decides what an order does to
// inventory. It is pure; reversal is OrderEffect(old).Negate().
//
//	draft            -> nothing
//	return, GOOD     -> +(quantity + bonus)
//	return, EXPIRED  -> nothing (discarded, never restocked)
//	sale             -> -(quantity + bonus)
func OrderEffect(o Order) StockEffect {
	effect := StockEffect{}
	if o.IsDraft {
		return effect
	}
	for _, it := range o.Items {
		var delta int
		switch {
		case o.IsReturn && it.Condition == ConditionExpired:
			continue
		case o.IsReturn:
			delta = it.EffectiveQuantity()
		default:
			delta = -it.EffectiveQuantity()
		}
		effect.add(it.ProductID, delta)
	}
	return effect
}

func (e StockEffect) add(productID string, delta int) {
	if delta == 0 {
		return
	}
	e[productID] += delta
	if e[productID] == 0 {
		delete(e, productID)
	}
}

// Negate returns the effect that undoes e.
func (e StockEffect) Negate() StockEffect {
	out := make(StockEffect, len(e))
	for id, d := range e {
		out[id] = -d
	}
	return out
}

// Plus returns the sum of two effects.
func (e StockEffect) Plus(other StockEffect) StockEffect {
	out := make(StockEffect, len(e)+len(other))
	for id, d := range e {
		out.add(id, d)
	}
	for id, d := range other {
		out.add(id, d)
	}
	return out
}

// ProductIDs returns the touched product ids in sorted order.
func (e StockEffect) ProductIDs() []string {
	ids := make([]string, 0, len(e))
	for id := range e {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
