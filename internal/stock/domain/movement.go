package domain

import "fmt"

// Check is a structured validation result. Validation failures are results,
// not errors, so callers can render the message directly.
type Check struct {
	Valid   bool   `json:"valid"`
	Message string `json:"message,omitempty"`
}

func invalid(format string, args ...interface{}) Check {
	return Check{Valid: false, Message: fmt.Sprintf(format, args...)}
}

var valid = Check{Valid: true}

// ValidateMove decides whether item may move to targetLocation given the set
// of locations locked by open counts. Pure: mutates nothing.
func ValidateMove(item *StockItem, targetLocation string, lockedLocations map[string]bool) Check {
	if item.IsArchived() {
		return invalid("item %s is archived and can no longer be moved", item.ID)
	}
	if item.Blocked {
		reason := ""
		if item.BlockReason != nil {
			reason = *item.BlockReason
		}
		return invalid("item %s is blocked (%s); unblock it before moving", item.ID, reason)
	}
	if IsVirtualLocation(targetLocation) {
		return invalid("location %s is a system marker and cannot be a move target", targetLocation)
	}
	if targetLocation == item.LocationCode {
		return invalid("item %s is already at %s", item.ID, targetLocation)
	}
	if lockedLocations[item.LocationCode] {
		return invalid("location %s is under an active inventory count", item.LocationCode)
	}
	if lockedLocations[targetLocation] {
		return invalid("location %s is under an active inventory count", targetLocation)
	}
	return valid
}

// ValidateConsumption decides whether item may be consumed given the locked
// location set. The quantity itself is never a reason to refuse: the engine
// clamps instead.
func ValidateConsumption(item *StockItem, lockedLocations map[string]bool) Check {
	if item.IsArchived() {
		return invalid("item %s is archived and fully consumed", item.ID)
	}
	if item.Blocked {
		reason := ""
		if item.BlockReason != nil {
			reason = *item.BlockReason
		}
		return invalid("item %s is blocked (%s) and cannot be consumed", item.ID, reason)
	}
	if lockedLocations[item.LocationCode] {
		return invalid("location %s is under an active inventory count", item.LocationCode)
	}
	return valid
}

// ValidateSplit decides whether quantity may be split off item onto a new
// unit at targetLocation. Splitting onto the item's own location is allowed.
func ValidateSplit(item *StockItem, quantity float64, targetLocation string, lockedLocations map[string]bool) Check {
	if item.IsArchived() {
		return invalid("item %s is archived and can no longer be split", item.ID)
	}
	if item.Blocked {
		return invalid("item %s is blocked and cannot be split", item.ID)
	}
	if IsVirtualLocation(targetLocation) {
		return invalid("location %s is a system marker and cannot receive a split", targetLocation)
	}
	if lockedLocations[item.LocationCode] || lockedLocations[targetLocation] {
		return invalid("source or target location is under an active inventory count")
	}
	if quantity <= 0 {
		return invalid("split quantity must be positive")
	}
	if quantity >= item.Quantity-QuantityEpsilon {
		return invalid("split quantity %.3f must be less than the item quantity %.3f", quantity, item.Quantity)
	}
	return valid
}
