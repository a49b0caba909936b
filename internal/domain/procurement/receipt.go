package procurement

// ReceiptStatus represents the derived receiving state of a purchase order
type ReceiptStatus string

const (
	ReceiptStatusNotApplicable     ReceiptStatus = "not_applicable"
	ReceiptStatusNotReceived       ReceiptStatus = "not_received"
	ReceiptStatusPartiallyReceived ReceiptStatus = "partially_received"
	ReceiptStatusFullyReceived     ReceiptStatus = "fully_received"
)

// IsValid checks if the status is a known ReceiptStatus
func (s ReceiptStatus) IsValid() bool {
	switch s {
	case ReceiptStatusNotApplicable, ReceiptStatusNotReceived,
		ReceiptStatusPartiallyReceived, ReceiptStatusFullyReceived:
		return true
	}
	return false
}

// String returns the string representation of ReceiptStatus
func (s ReceiptStatus) String() string {
	return string(s)
}

// ClassifyReceipt derives the receipt status of an order from its lines.
// Service lines (ordered quantity zero) are excluded from both the
// any-received and the completeness checks; an order with no material lines
// at all is NotApplicable.
func ClassifyReceipt(lines []PurchaseOrderLine) ReceiptStatus {
	anyMaterial := false
	anyReceived := false
	fullyReceived := true

	for _, line := range lines {
		if line.IsService() {
			continue
		}
		anyMaterial = true
		if line.ReceivedQty.IsPositive() {
			anyReceived = true
		}
		if line.ReceivedQty.LessThan(line.OrderedQty) {
			fullyReceived = false
		}
	}

	switch {
	case !anyMaterial:
		return ReceiptStatusNotApplicable
	case !anyReceived:
		return ReceiptStatusNotReceived
	case fullyReceived:
		return ReceiptStatusFullyReceived
	default:
		return ReceiptStatusPartiallyReceived
	}
}
