package engine

import "github.com/google/uuid"

// OrderID is a globally unique, short ASCII identifier assigned by the
// engine at order acceptance.
type OrderID string

// newOrderID mints a time-based (version 1) UUID. We deliberately avoid a
// content-derived id: two identical submissions must still receive
// distinct identifiers.
func newOrderID() (OrderID, error) {
	id, err := uuid.NewUUID()
	if err != nil {
		return "", err
	}
	return OrderID(id.String()), nil
}
