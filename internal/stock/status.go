package stock

type Status string

const (
	StatusSufficient Status = "sufficient"
	StatusLow        Status = "low"
	StatusEmpty      Status = "empty"
)

// Valid reports whether s is one of the known statuses.
func (s Status) Valid() bool {
	switch s {
	case StatusSufficient, StatusLow, StatusEmpty:
		return true
	}
	return false
}

// Label returns the Indonesian display label used in notifications.
func (s Status) Label() string {
	switch s {
	case StatusSufficient:
		return "Cukup"
	case StatusLow:
		return "Hampir Habis"
	case StatusEmpty:
		return "Habis"
	}
	return string(s)
}

// Evaluate derives the stock status from a quantity and its reorder threshold.
// The threshold is inclusive: a quantity equal to the threshold is low.
// With a zero threshold an item is either empty or sufficient.
func Evaluate(quantity, threshold int) Status {
	quantity, threshold = clamp(quantity), clamp(threshold)
	switch {
	case quantity == 0:
		return StatusEmpty
	case quantity <= threshold:
		return StatusLow
	default:
		return StatusSufficient
	}
}

// SuggestedPurchase returns how many units bring quantity back up to threshold.
func SuggestedPurchase(quantity, threshold int) int {
	quantity, threshold = clamp(quantity), clamp(threshold)
	if quantity >= threshold {
		return 0
	}
	return threshold - quantity
}

// RestockQuantity is SuggestedPurchase with a floor of one unit for empty
// items, so an empty item with a zero threshold still gets a shopping entry.
func RestockQuantity(quantity, threshold int) int {
	n := SuggestedPurchase(quantity, threshold)
	if n == 0 && Evaluate(quantity, threshold) == StatusEmpty {
		return 1
	}
	return n
}

func clamp(n int) int {
	if n < 0 {
		return 0
	}
	return n
}
