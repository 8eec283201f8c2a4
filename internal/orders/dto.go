package orders

import (
	"fmt"

	"github.com/orderbridge/orderbridge/internal/netsuite"
)

// HeaderInput is the header portion of an order edit submitted by the UI.
// Omitted fields decode to empty values.
type HeaderInput struct {
	Memo             netsuite.Text `json:"memo"`
	OtherRefNum      netsuite.Text `json:"otherrefnum"`
	TranDate         netsuite.Text `json:"tranDate"`
	LocationID       netsuite.Text `json:"location_id"`
	ReqInvMac5       netsuite.Text `json:"custbody_ar_req_inv_mac5"`
	ShipAddressList  netsuite.Text `json:"shipaddresslist"`
	SOMemo2          netsuite.Text `json:"custbodyar_so_memo2"`
	AllMemo          netsuite.Text `json:"custbody_ar_all_memo"`
	EstimateContract netsuite.Text `json:"custbody_ar_estimate_contrat1"`
}

// LineInput is one submitted line. Href is empty for lines the ERP does not know yet.
type LineInput struct {
	Href        string        `json:"href"`
	ItemID      netsuite.Text `json:"item_id"`
	Quantity    netsuite.Text `json:"quantity"`
	Rate        netsuite.Text `json:"rate"`
	Description netsuite.Text `json:"description"`
	Location    netsuite.Text `json:"location"`
	Discount    netsuite.Text `json:"custcol_ice_ld_discount"`
	Units       netsuite.Text `json:"inpt_units_11"`
}

// UpdateRequest is the body of POST /order/{id}/update.
type UpdateRequest struct {
	HeaderInput
	Items               []LineInput `json:"items" validate:"dive"`
	SelectedDepartments []string    `json:"selectedDepartments" validate:"dive,required"`
	UpdatedBy           string      `json:"updatedBy" validate:"required"`
}

// SplitItem is one line to move into the new order.
type SplitItem struct {
	ItemID      netsuite.Text `json:"item_id" validate:"required"`
	Quantity    netsuite.Text `json:"quantity" validate:"positive_qty"`
	Rate        netsuite.Text `json:"rate" validate:"numeric_or_blank"`
	Description netsuite.Text `json:"description"`
	Location    netsuite.Text `json:"location"`
	Discount    netsuite.Text `json:"custcol_ice_ld_discount" validate:"numeric_or_blank"`
	Units       netsuite.Text `json:"inpt_units_11"`
}

// SplitRequest is the body of the split endpoints.
type SplitRequest struct {
	ParentOrderID  string      `json:"parentOrderId"`
	SplitItems     []SplitItem `json:"splitItems" validate:"required,min=1,dive"`
	SplitReason    string      `json:"splitReason" validate:"max=500"`
	CreatedBy      string      `json:"createdBy" validate:"required"`
	IdempotencyKey string      `json:"-"`
}

// LineResult reports what happened to one submitted line.
type LineResult struct {
	Line    int    `json:"line"`
	Href    string `json:"href,omitempty"`
	Updated bool   `json:"updated"`
	Skipped bool   `json:"skipped,omitempty"`
	Status  int    `json:"status,omitempty"`
	Error   string `json:"error,omitempty"`
}

// UpdateResult summarises an update. Partial success is normal.
type UpdateResult struct {
	Success       bool         `json:"success"`
	Logs          []string     `json:"logs"`
	HeaderUpdated bool         `json:"headerUpdated"`
	ItemsUpdated  []LineResult `json:"itemsUpdated"`
}

func (r *UpdateResult) logf(format string, args ...any) {
	r.Logs = append(r.Logs, fmt.Sprintf(format, args...))
}

func (r *UpdateResult) changed() bool {
	if r.HeaderUpdated {
		return true
	}
	for _, l := range r.ItemsUpdated {
		if l.Updated {
			return true
		}
	}
	return false
}

func (r *UpdateResult) linesUpdated() int {
	n := 0
	for _, l := range r.ItemsUpdated {
		if l.Updated {
			n++
		}
	}
	return n
}

// SplitResult describes the order created by a split.
type SplitResult struct {
	Success        bool     `json:"success"`
	ParentOrderID  string   `json:"parentOrderId"`
	NewOrderID     string   `json:"newOrderId,omitempty"`
	NewOrderNumber string   `json:"newOrderNumber,omitempty"`
	Message        string   `json:"message,omitempty"`
	Logs           []string `json:"logs"`
}

func (r *SplitResult) logf(format string, args ...any) {
	r.Logs = append(r.Logs, fmt.Sprintf(format, args...))
}
