// Package netsuite talks to the NetSuite SuiteTalk REST record API.
package netsuite

import (
	"bytes"
	"encoding/json"
	"strings"
)

// Text is a JSON scalar decoded leniently. NetSuite and the staff UI disagree on
// whether ids, quantities and custom fields are strings, numbers or reference
// objects, so all of them collapse to their string form here.
type Text string

// UnmarshalJSON accepts strings, numbers, booleans, null and {"id": ...} objects.
func (t *Text) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*t = ""
		return nil
	}
	switch data[0] {
	case '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*t = Text(s)
	case '{':
		var ref Ref
		if err := json.Unmarshal(data, &ref); err != nil {
			return err
		}
		if ref.ID != "" {
			*t = ref.ID
		} else {
			*t = Text(ref.RefName)
		}
	case '[':
		return &json.UnsupportedValueError{Str: string(data)}
	default:
		*t = Text(data)
	}
	return nil
}

// String returns the raw value.
func (t Text) String() string {
	return string(t)
}

// Trimmed returns the value without surrounding whitespace.
func (t Text) Trimmed() string {
	return strings.TrimSpace(string(t))
}

// Ref is NetSuite's reference-object convention for linked records.
type Ref struct {
	ID      Text   `json:"id"`
	RefName string `json:"refName,omitempty"`
}

// RefID returns the referenced id or an empty string for a nil reference.
func RefID(r *Ref) string {
	if r == nil {
		return ""
	}
	return r.ID.Trimmed()
}

// RefPatch is the body shape used when writing a reference field.
type RefPatch struct {
	ID int64 `json:"id"`
}

// Link is a HATEOAS link returned by the REST API.
type Link struct {
	Rel  string `json:"rel"`
	Href string `json:"href"`
}

// SalesOrder carries the header fields this service reads and writes.
type SalesOrder struct {
	ID               Text   `json:"id"`
	TranID           Text   `json:"tranId"`
	Memo             Text   `json:"memo"`
	OtherRefNum      Text   `json:"otherRefNum"`
	TranDate         Text   `json:"tranDate"`
	Entity           *Ref   `json:"entity,omitempty"`
	Location         *Ref   `json:"location,omitempty"`
	ShipAddressList  *Ref   `json:"shipAddressList,omitempty"`
	ShipAddress      Text   `json:"shipAddress"`
	ReqInvMac5       Text   `json:"custbody_ar_req_inv_mac5"`
	SOMemo2          Text   `json:"custbodyar_so_memo2"`
	AllMemo          Text   `json:"custbody_ar_all_memo"`
	EstimateContract Text   `json:"custbody_ar_estimate_contrat1"`
	Total            Text   `json:"total"`
	Links            []Link `json:"links,omitempty"`
}

// Label returns the human document number, falling back to the internal id.
func (o *SalesOrder) Label() string {
	if o == nil {
		return ""
	}
	if tran := o.TranID.Trimmed(); tran != "" {
		return tran
	}
	return o.ID.Trimmed()
}

// OrderLine is one entry of the sales order item sublist. Href is not part of
// the ERP payload; the client sets it from the link used to fetch the line.
type OrderLine struct {
	Href        string `json:"href"`
	Line        Text   `json:"line"`
	Item        *Ref   `json:"item,omitempty"`
	Quantity    Text   `json:"quantity"`
	Rate        Text   `json:"rate"`
	Amount      Text   `json:"amount"`
	Description Text   `json:"description"`
	Location    *Ref   `json:"location,omitempty"`
	Discount    Text   `json:"custcol_ice_ld_discount"`
	Units       Text   `json:"inpt_units_11"`
}

// ItemID returns the referenced item id.
func (l OrderLine) ItemID() string {
	return RefID(l.Item)
}

// Address is one entry of a customer's address book.
type Address struct {
	Href            string `json:"href"`
	InternalID      Text   `json:"internalId"`
	Label           Text   `json:"label"`
	DefaultShipping bool   `json:"defaultShipping"`
	AddrText        Text   `json:"addrText"`
}

// Patch is a partial record body. Only the keys present are sent.
type Patch map[string]any

// PatchResult reports the outcome of a PATCH.
type PatchResult struct {
	Success bool `json:"success"`
	Status  int  `json:"status"`
}
