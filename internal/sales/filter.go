package sales

// filter.go translates a Filter into SQL predicates with numbered
// placeholders. Zero-valued fields impose no constraint; all active
// predicates are ANDed by the callers.

import "fmt"

// conditions appends one SQL predicate per active filter field to conds,
// and its bind values to args. Placeholders continue from len(args)+1.
func (f *Filter) conditions(conds []string, args []any) ([]string, []any) {
	if f == nil {
		return conds, args
	}

	eq := func(column, value string) {
		if value == "" {
			return
		}
		args = append(args, value)
		conds = append(conds, fmt.Sprintf("%s = $%d", column, len(args)))
	}

	eq("region", f.Region)
	eq("country", f.Country)
	eq("item_type", f.ItemType)
	eq("sales_channel", f.SalesChannel)
	eq("order_priority", f.OrderPriority)

	if f.OrderDateFrom != nil {
		args = append(args, f.OrderDateFrom.Time)
		conds = append(conds, fmt.Sprintf("order_date >= $%d", len(args)))
	}
	if f.OrderDateTo != nil {
		args = append(args, f.OrderDateTo.Time)
		conds = append(conds, fmt.Sprintf("order_date <= $%d", len(args)))
	}
	if f.MinProfit != nil {
		args = append(args, *f.MinProfit)
		conds = append(conds, fmt.Sprintf("total_profit >= $%d", len(args)))
	}
	if f.MaxProfit != nil {
		args = append(args, *f.MaxProfit)
		conds = append(conds, fmt.Sprintf("total_profit <= $%d", len(args)))
	}

	if f.Q != "" {
		like := "%" + f.Q + "%"
		args = append(args, like, like, like)
		n := len(args)
		conds = append(conds, fmt.Sprintf(
			"(country ILIKE $%d OR region ILIKE $%d OR item_type ILIKE $%d)",
			n-2, n-1, n))
	}

	return conds, args
}
