// Package lineage stores parent/child relationships created by order splits
// and allocates split order numbers.
package lineage

import "time"

// SplitRecord links a split order to the order it was carved out of.
// Records are append-only.
type SplitRecord struct {
	ID            int64     `json:"id"`
	ParentOrderID string    `json:"parent_order_id"`
	ChildOrderID  string    `json:"child_order_id"`
	SplitReason   string    `json:"split_reason"`
	CreatedBy     string    `json:"created_by"`
	CreatedAt     time.Time `json:"created_at"`
}

// RelatedOrderIDs returns every order id mentioned by records except self,
// in first-seen order.
func RelatedOrderIDs(records []SplitRecord, self string) []string {
	seen := map[string]struct{}{self: {}}
	var ids []string
	for _, rec := range records {
		for _, id := range []string{rec.ParentOrderID, rec.ChildOrderID} {
			if id == "" {
				continue
			}
			if _, ok := seen[id]; ok {
				continue
			}
			seen[id] = struct{}{}
			ids = append(ids, id)
		}
	}
	return ids
}
