package dbtypes

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
)

// LineItemSelection is the refund request for a single order line item.
type LineItemSelection struct {
	Qty     int  `json:"qty"`
	Restock bool `json:"restock"`
}

// LineItemSelections maps line item ids to their refund selection. Stored as
// JSON in refunds.line_items_data.
type LineItemSelections map[int64]LineItemSelection

func (s LineItemSelections) Value() (driver.Value, error) {
	return marshalJSONColumn(s, len(s) == 0)
}

func (s *LineItemSelections) Scan(src any) error {
	decoded := LineItemSelections{}
	if err := scanJSONColumn(src, &decoded); err != nil {
		return fmt.Errorf("LineItemSelections: %w", err)
	}
	*s = decoded
	return nil
}

// Qty returns the selected quantity for the line item, zero when absent.
func (s LineItemSelections) Qty(lineItemID int64) int {
	return s[lineItemID].Qty
}

// Clone returns an independent copy.
func (s LineItemSelections) Clone() LineItemSelections {
	out := make(LineItemSelections, len(s))
	for id, sel := range s {
		out[id] = sel
	}
	return out
}

// Quantities maps line item ids to a unit count. Stored as JSON in
// refunds.restocked_quantities.
type Quantities map[int64]int

func (q Quantities) Value() (driver.Value, error) {
	return marshalJSONColumn(q, len(q) == 0)
}

func (q *Quantities) Scan(src any) error {
	decoded := Quantities{}
	if err := scanJSONColumn(src, &decoded); err != nil {
		return fmt.Errorf("Quantities: %w", err)
	}
	*q = decoded
	return nil
}

// Clone returns an independent copy.
func (q Quantities) Clone() Quantities {
	out := make(Quantities, len(q))
	for id, n := range q {
		out[id] = n
	}
	return out
}

func marshalJSONColumn(v any, empty bool) (driver.Value, error) {
	if empty {
		return "{}", nil
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return string(raw), nil
}

func scanJSONColumn(src any, dest any) error {
	var raw []byte
	switch v := src.(type) {
	case nil:
		return nil
	case string:
		raw = []byte(v)
	case []byte:
		raw = v
	default:
		return fmt.Errorf("unsupported Scan type %T", src)
	}
	if len(raw) == 0 {
		return nil
	}
	return json.Unmarshal(raw, dest)
}
