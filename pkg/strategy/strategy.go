// Package strategy defines selector strategies: declarative mappings from a
// supplier's search-results page to structured part fields, produced either
// by heuristic auto-detection or by manual configuration.
package strategy

import "errors"

// ErrDetectionFailed is returned when a sample page has too few repeated
// result blocks, or the detected mapping scores below the confidence floor.
var ErrDetectionFailed = errors.New("selector auto-detection failed")

// FieldSelectors maps part fields to CSS selectors evaluated relative to the
// result container. An empty selector means the field is not extracted;
// scraping tolerates partial coverage.
type FieldSelectors struct {
	PartNumber   string `json:"part_number,omitempty"`
	Description  string `json:"description,omitempty"`
	Price        string `json:"price,omitempty"`
	Quantity     string `json:"quantity,omitempty"`
	PurchaseLink string `json:"purchase_link,omitempty"`
}

// Strategy describes how to turn a supplier search into part records.
type Strategy struct {
	SupplierID string `json:"supplier_id"`

	// SearchURLTemplate contains a {query} placeholder.
	SearchURLTemplate string `json:"search_url_template"`

	// Container selects the repeated result block; field selectors are
	// evaluated inside each container match.
	Container string         `json:"container"`
	Fields    FieldSelectors `json:"fields"`

	// Confidence is the mean per-field detection score in [0,1]. Manual
	// strategies use 1.0 by convention.
	Confidence float64 `json:"confidence"`
	Manual     bool    `json:"manual"`

	// Version is assigned by the store; records carry it for audit.
	Version int `json:"version,omitempty"`
}

// Manual builds an operator-supplied strategy. It always takes precedence
// over an auto-detected one, regardless of that one's confidence.
func Manual(supplierID, searchURLTemplate, container string, fields FieldSelectors) Strategy {
	return Strategy{
		SupplierID:        supplierID,
		SearchURLTemplate: searchURLTemplate,
		Container:         container,
		Fields:            fields,
		Confidence:        1.0,
		Manual:            true,
	}
}
