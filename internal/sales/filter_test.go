package sales

import (
	"reflect"
	"strings"
	"testing"
)

func TestFilter_Conditions_Nil(t *testing.T) {
	var f *Filter
	conds, args := f.conditions(nil, nil)
	if len(conds) != 0 || len(args) != 0 {
		t.Errorf("nil filter produced conds=%v args=%v", conds, args)
	}
}

func TestFilter_Conditions_Empty(t *testing.T) {
	conds, args := (&Filter{}).conditions(nil, nil)
	if len(conds) != 0 || len(args) != 0 {
		t.Errorf("empty filter produced conds=%v args=%v", conds, args)
	}
}

func TestFilter_Conditions_ExactMatches(t *testing.T) {
	f := &Filter{
		Region:        "Asia",
		Country:       "Japan",
		ItemType:      "Meat",
		SalesChannel:  "Online",
		OrderPriority: "C",
	}

	conds, args := f.conditions(nil, nil)

	want := []string{
		"region = $1",
		"country = $2",
		"item_type = $3",
		"sales_channel = $4",
		"order_priority = $5",
	}
	if !reflect.DeepEqual(conds, want) {
		t.Errorf("conds = %v, want %v", conds, want)
	}
	wantArgs := []any{"Asia", "Japan", "Meat", "Online", "C"}
	if !reflect.DeepEqual(args, wantArgs) {
		t.Errorf("args = %v, want %v", args, wantArgs)
	}
}

func TestFilter_Conditions_Ranges(t *testing.T) {
	from, _ := ParseDate("2013-01-01")
	to, _ := ParseDate("2013-12-31")
	minP, maxP := -100.0, 100.0

	f := &Filter{
		OrderDateFrom: &from,
		OrderDateTo:   &to,
		MinProfit:     &minP,
		MaxProfit:     &maxP,
	}

	conds, args := f.conditions(nil, nil)

	want := []string{
		"order_date >= $1",
		"order_date <= $2",
		"total_profit >= $3",
		"total_profit <= $4",
	}
	if !reflect.DeepEqual(conds, want) {
		t.Errorf("conds = %v, want %v", conds, want)
	}
	if len(args) != 4 {
		t.Fatalf("len(args) = %d, want 4", len(args))
	}
	if args[2] != -100.0 || args[3] != 100.0 {
		t.Errorf("profit args = %v, %v; want -100, 100", args[2], args[3])
	}
}

func TestFilter_Conditions_ZeroProfitBoundIsActive(t *testing.T) {
	// A pointer to zero is an explicit bound, unlike an absent field.
	zero := 0.0
	f := &Filter{MinProfit: &zero}

	conds, args := f.conditions(nil, nil)
	if len(conds) != 1 || len(args) != 1 {
		t.Fatalf("conds=%v args=%v, want one bound", conds, args)
	}
	if conds[0] != "total_profit >= $1" {
		t.Errorf("cond = %q", conds[0])
	}
}

func TestFilter_Conditions_Substring(t *testing.T) {
	f := &Filter{Q: "nor"}

	conds, args := f.conditions(nil, nil)
	if len(conds) != 1 {
		t.Fatalf("conds = %v, want 1", conds)
	}
	want := "(country ILIKE $1 OR region ILIKE $2 OR item_type ILIKE $3)"
	if conds[0] != want {
		t.Errorf("cond = %q, want %q", conds[0], want)
	}
	for i, a := range args {
		if a != "%nor%" {
			t.Errorf("args[%d] = %v, want %%nor%%", i, a)
		}
	}
}

func TestFilter_Conditions_PlaceholdersContinue(t *testing.T) {
	// When appended after existing args, placeholders must keep numbering.
	f := &Filter{Country: "Norway", Q: "baby"}

	conds, args := f.conditions([]string{"order_date >= $1"}, []any{"2013-01-01"})

	if len(args) != 5 {
		t.Fatalf("len(args) = %d, want 5", len(args))
	}
	if conds[1] != "country = $2" {
		t.Errorf("conds[1] = %q, want country = $2", conds[1])
	}
	if !strings.Contains(conds[2], "$3") || !strings.Contains(conds[2], "$5") {
		t.Errorf("conds[2] = %q, want placeholders $3..$5", conds[2])
	}
}
