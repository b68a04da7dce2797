package classify

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dec(s string) decimal.Decimal {
	v, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return v
}

func bar(index uint64, o, h, l, c string) Bar {
	return Bar{Index: index, Timestamp: int64(index) * 60, Open: dec(o), High: dec(h), Low: dec(l), Close: dec(c)}
}

func TestValidate_LowExceedsHigh(t *testing.T) {
	b := bar(0, "100", "90", "95", "92")
	require.Error(t, b.Validate(nil))
}

func TestValidate_MonotonicIndex(t *testing.T) {
	prev := bar(5, "100", "110", "95", "105")
	cur := bar(5, "105", "112", "100", "108")
	require.Error(t, cur.Validate(&prev))
	cur2 := bar(4, "105", "112", "100", "108")
	require.Error(t, cur2.Validate(&prev))
}

func TestClassify(t *testing.T) {
	prev := bar(0, "100", "110", "95", "105")
	cases := []struct {
		name string
		cur  Bar
		want Type
	}{
		{"inside", bar(1, "102", "108", "98", "104"), Inside},
		{"equal extremes are inside", bar(1, "102", "110", "95", "104"), Inside},
		{"type2 bull", bar(1, "106", "115", "100", "112"), Type2Bull},
		{"type2 bear", bar(1, "100", "105", "90", "93"), Type2Bear},
		{"outside", bar(1, "100", "120", "85", "90"), Outside},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, Classify(prev, tc.cur))
		})
	}
}
