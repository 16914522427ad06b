package parts

import "time"

// QtyUnknown marks a record whose stock level could not be parsed.
const QtyUnknown = -1

// Record represents a single observation of a component at a supplier.
// Identity is (SupplierID, PartNumber); a fresher observation of the same
// part supersedes the older one rather than duplicating it.
type Record struct {
	SupplierID string
	PartNumber string

	// MPN is the normalized manufacturer part number, when known.
	MPN         string
	Description string

	// Qty is the listed available quantity, or QtyUnknown.
	Qty int

	// Price is the unit price as listed, kept as a decimal string to avoid
	// float drift; Currency is an ISO-ish code ("USD", "LKR", ...).
	Price    string
	Currency string

	PurchaseURL  string
	DatasheetURL string

	ObservedAt time.Time

	// StrategyVersion identifies the selector strategy that produced this
	// record, for audit and debugging of broken extractions.
	StrategyVersion int
}

// Query is one normalized BOM line handed to the matching engine by the
// file-import step.
type Query struct {
	PartNumber  string
	Description string
	Quantity    int
}

// WorkItem pairs a supplier with a query for a batch run.
type WorkItem struct {
	SupplierID string
	Query      string
}
