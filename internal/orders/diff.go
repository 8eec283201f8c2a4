package orders

import (
	"strings"

	"github.com/shopspring/decimal"

	"github.com/orderbridge/orderbridge/internal/netsuite"
)

type fieldKind int

const (
	kindText fieldKind = iota
	kindNumber
	kindDate
	kindRef
	kindBool
)

type field struct {
	key  string
	kind fieldKind
}

// Header and line fields in ERP key order.
var (
	headerFields = []field{
		{"memo", kindText},
		{"otherRefNum", kindText},
		{"tranDate", kindDate},
		{"location", kindRef},
		{"custbody_ar_req_inv_mac5", kindBool},
		{"shipAddressList", kindRef},
		{"custbodyar_so_memo2", kindText},
		{"custbody_ar_all_memo", kindText},
		{"custbody_ar_estimate_contrat1", kindText},
	}
	lineFields = []field{
		{"quantity", kindNumber},
		{"rate", kindNumber},
		{"description", kindText},
		{"location", kindRef},
		{"custcol_ice_ld_discount", kindNumber},
		{"inpt_units_11", kindText},
	}
)

func remoteHeaderValues(o *netsuite.SalesOrder) map[string]string {
	return map[string]string{
		"memo":                          o.Memo.String(),
		"otherRefNum":                   o.OtherRefNum.String(),
		"tranDate":                      o.TranDate.String(),
		"location":                      netsuite.RefID(o.Location),
		"custbody_ar_req_inv_mac5":      o.ReqInvMac5.String(),
		"shipAddressList":               netsuite.RefID(o.ShipAddressList),
		"custbodyar_so_memo2":           o.SOMemo2.String(),
		"custbody_ar_all_memo":          o.AllMemo.String(),
		"custbody_ar_estimate_contrat1": o.EstimateContract.String(),
	}
}

func localHeaderValues(h HeaderInput) map[string]string {
	return map[string]string{
		"memo":                          h.Memo.String(),
		"otherRefNum":                   h.OtherRefNum.String(),
		"tranDate":                      h.TranDate.String(),
		"location":                      h.LocationID.String(),
		"custbody_ar_req_inv_mac5":      h.ReqInvMac5.String(),
		"shipAddressList":               h.ShipAddressList.String(),
		"custbodyar_so_memo2":           h.SOMemo2.String(),
		"custbody_ar_all_memo":          h.AllMemo.String(),
		"custbody_ar_estimate_contrat1": h.EstimateContract.String(),
	}
}

func remoteLineValues(l *netsuite.OrderLine) map[string]string {
	return map[string]string{
		"quantity":                l.Quantity.String(),
		"rate":                    l.Rate.String(),
		"description":             l.Description.String(),
		"location":                netsuite.RefID(l.Location),
		"custcol_ice_ld_discount": l.Discount.String(),
		"inpt_units_11":           l.Units.String(),
	}
}

func localLineValues(l LineInput) map[string]string {
	return map[string]string{
		"quantity":                l.Quantity.String(),
		"rate":                    l.Rate.String(),
		"description":             l.Description.String(),
		"location":                l.Location.String(),
		"custcol_ice_ld_discount": l.Discount.String(),
		"inpt_units_11":           l.Units.String(),
	}
}

// DiffHeader returns the header fields whose local value differs from the ERP.
// An empty patch means nothing needs to be sent.
func DiffHeader(remote *netsuite.SalesOrder, local HeaderInput) netsuite.Patch {
	if remote == nil {
		remote = &netsuite.SalesOrder{}
	}
	return diff(headerFields, remoteHeaderValues(remote), localHeaderValues(local))
}

// DiffLine returns the line fields whose local value differs from the ERP.
func DiffLine(remote *netsuite.OrderLine, local LineInput) netsuite.Patch {
	if remote == nil {
		remote = &netsuite.OrderLine{}
	}
	return diff(lineFields, remoteLineValues(remote), localLineValues(local))
}

func diff(fields []field, remote, local map[string]string) netsuite.Patch {
	out := netsuite.Patch{}
	for _, f := range fields {
		r, l := remote[f.key], local[f.key]
		switch f.kind {
		case kindNumber:
			rn, rok := parseNumber(r)
			ln, lok := parseNumber(l)
			if rok && lok {
				if !rn.Equal(ln) {
					out[f.key] = ln.InexactFloat64()
				}
				continue
			}
			if strings.TrimSpace(r) != strings.TrimSpace(l) {
				out[f.key] = l
			}
		case kindRef:
			rn, rok := parseNumber(r)
			ln, lok := parseNumber(l)
			if rok && lok {
				if !rn.Equal(ln) {
					out[f.key] = refValue(ln)
				}
				continue
			}
			if strings.TrimSpace(r) != strings.TrimSpace(l) {
				out[f.key] = map[string]string{"id": strings.TrimSpace(l)}
			}
		case kindBool:
			rb, rok := parseBool(r)
			lb, lok := parseBool(l)
			if rok && lok {
				if rb != lb {
					out[f.key] = lb
				}
				continue
			}
			if strings.TrimSpace(r) != strings.TrimSpace(l) {
				out[f.key] = scalar(netsuite.Text(l))
			}
		case kindDate:
			ld := datePart(l)
			if datePart(r) != ld {
				out[f.key] = ld
			}
		default:
			if strings.TrimSpace(r) != strings.TrimSpace(l) {
				out[f.key] = l
			}
		}
	}
	return out
}

// parseNumber coerces a field to a decimal; blank counts as zero.
func parseNumber(s string) (decimal.Decimal, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Zero, true
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, false
	}
	return d, true
}

// parseBool reads a checkbox value; blank counts as unchecked.
func parseBool(s string) (bool, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "true", "t":
		return true, true
	case "false", "f", "":
		return false, true
	}
	return false, false
}

func refValue(d decimal.Decimal) any {
	if d.IsInteger() {
		return netsuite.RefPatch{ID: d.IntPart()}
	}
	return map[string]string{"id": d.String()}
}

// datePart keeps the YYYY-MM-DD portion of an ISO-8601 value.
func datePart(s string) string {
	s = strings.TrimSpace(s)
	if len(s) > 10 {
		return s[:10]
	}
	return s
}

// patchKeys lists patch keys in a stable order for logging.
func patchKeys(p netsuite.Patch, fields []field) []string {
	keys := make([]string, 0, len(p))
	for _, f := range fields {
		if _, ok := p[f.key]; ok {
			keys = append(keys, f.key)
		}
	}
	return keys
}
