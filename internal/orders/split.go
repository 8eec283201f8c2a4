package orders

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/orderbridge/orderbridge/internal/lineage"
	"github.com/orderbridge/orderbridge/internal/netsuite"
	"github.com/orderbridge/orderbridge/internal/shared"
)

// parentAdjustment is the planned change to one parent line.
type parentAdjustment struct {
	line      netsuite.OrderLine
	requested decimal.Decimal
	remaining decimal.Decimal
}

// planSplit matches requested items to parent lines by item id and computes
// the remaining parent quantities. Requests for the same item are summed and
// taken from the item's parent lines in order. It rejects unknown items and
// requests larger than the item's total quantity on the parent.
func planSplit(lines []netsuite.OrderLine, items []SplitItem) ([]parentAdjustment, error) {
	byItem := make(map[string][]netsuite.OrderLine, len(lines))
	for _, l := range lines {
		if id := l.ItemID(); id != "" {
			byItem[id] = append(byItem[id], l)
		}
	}

	var order []string
	requested := map[string]decimal.Decimal{}
	for _, it := range items {
		id := it.ItemID.Trimmed()
		qty, _ := parseNumber(it.Quantity.String())
		if _, ok := requested[id]; !ok {
			order = append(order, id)
		}
		requested[id] = requested[id].Add(qty)
	}

	var plan []parentAdjustment
	for _, id := range order {
		matches, ok := byItem[id]
		if !ok {
			return nil, fmt.Errorf("%w: item %s is not on the parent order", ErrValidation, id)
		}
		available := make([]decimal.Decimal, len(matches))
		total := decimal.Zero
		for i, line := range matches {
			qty, ok := parseNumber(line.Quantity.String())
			if !ok {
				return nil, fmt.Errorf("%w: item %s has an unreadable quantity %q", ErrValidation, id, line.Quantity)
			}
			available[i] = qty
			total = total.Add(qty)
		}
		if total.LessThan(requested[id]) {
			return nil, fmt.Errorf("%w: item %s requests %s but only %s remain across %d parent line(s)",
				ErrValidation, id, requested[id].String(), total.String(), len(matches))
		}

		left := requested[id]
		for i, line := range matches {
			if !left.IsPositive() {
				break
			}
			if !available[i].IsPositive() {
				continue
			}
			if line.Href == "" {
				return nil, fmt.Errorf("%w: item %s has no ERP line reference", ErrValidation, id)
			}
			take := decimal.Min(left, available[i])
			plan = append(plan, parentAdjustment{line: line, requested: take, remaining: available[i].Sub(take)})
			left = left.Sub(take)
		}
	}
	return plan, nil
}

// buildSplitHeader derives the new order header from the parent.
func buildSplitHeader(parent *netsuite.SalesOrder, number, reason string) netsuite.Patch {
	header := netsuite.Patch{}
	if id := netsuite.RefID(parent.Entity); id != "" {
		header["entity"] = refPatch(id)
	}
	if d := datePart(parent.TranDate.String()); d != "" {
		header["tranDate"] = d
	}
	if id := netsuite.RefID(parent.Location); id != "" {
		header["location"] = refPatch(id)
	}
	if id := netsuite.RefID(parent.ShipAddressList); id != "" {
		header["shipAddressList"] = refPatch(id)
	}
	copyText := func(key string, v netsuite.Text) {
		if v.Trimmed() != "" {
			header[key] = scalar(v)
		}
	}
	copyText("custbody_ar_req_inv_mac5", parent.ReqInvMac5)
	copyText("custbody_ar_estimate_contrat1", parent.EstimateContract)
	copyText("custbodyar_so_memo2", parent.SOMemo2)

	label := parent.Label()
	header["memo"] = fmt.Sprintf("Split from SO %s (%s)", label, number)
	otherRef := parent.OtherRefNum.Trimmed()
	if otherRef == "" {
		otherRef = label
	}
	header["otherRefNum"] = otherRef + "-SPLIT"

	remarks := []string{}
	if all := parent.AllMemo.Trimmed(); all != "" {
		remarks = append(remarks, all)
	}
	remarks = append(remarks, fmt.Sprintf("Split %s from %s", number, label))
	if r := strings.TrimSpace(reason); r != "" {
		remarks = append(remarks, "Reason: "+r)
	}
	header["custbody_ar_all_memo"] = strings.Join(remarks, " | ")
	return header
}

// buildSplitLine copies the caller's line fields onto a new line body.
// Numeric fields are already validated.
func buildSplitLine(it SplitItem) netsuite.Patch {
	line := netsuite.Patch{"item": refPatch(it.ItemID.Trimmed())}
	if q, ok := parseNumber(it.Quantity.String()); ok {
		line["quantity"] = q.InexactFloat64()
	}
	if v := it.Rate.Trimmed(); v != "" {
		if d, ok := parseNumber(v); ok {
			line["rate"] = d.InexactFloat64()
		}
	}
	if v := it.Description.String(); strings.TrimSpace(v) != "" {
		line["description"] = v
	}
	if v := it.Location.Trimmed(); v != "" {
		line["location"] = refPatch(v)
	}
	if v := it.Discount.Trimmed(); v != "" {
		if d, ok := parseNumber(v); ok {
			line["custcol_ice_ld_discount"] = d.InexactFloat64()
		}
	}
	if v := it.Units.Trimmed(); v != "" {
		line["inpt_units_11"] = v
	}
	return line
}

func refPatch(id string) any {
	d, ok := parseNumber(id)
	if ok && d.IsInteger() && strings.TrimSpace(id) != "" {
		return netsuite.RefPatch{ID: d.IntPart()}
	}
	return map[string]string{"id": id}
}

// scalar restores checkbox values that NetSuite expects as booleans.
func scalar(v netsuite.Text) any {
	if v.Trimmed() == "" {
		return v.String()
	}
	if b, ok := parseBool(v.String()); ok {
		return b
	}
	return v.String()
}

// CreateSplit moves the requested quantities from the parent order into a new
// order. ERP writes are not transactional: on failure the returned result
// (when non-nil) describes what was already applied.
func (s *Service) CreateSplit(ctx context.Context, parentID string, req SplitRequest) (*SplitResult, error) {
	if strings.TrimSpace(parentID) == "" {
		parentID = strings.TrimSpace(req.ParentOrderID)
	}
	if parentID == "" {
		return nil, fmt.Errorf("%w: parentOrderId is required", ErrValidation)
	}
	if err := s.validateStruct(req); err != nil {
		return nil, err
	}

	if req.IdempotencyKey != "" && s.idempotency != nil {
		if err := s.idempotency.CheckAndInsert(ctx, req.IdempotencyKey, moduleSplit); err != nil {
			return nil, err
		}
	}
	result, err := s.createSplit(ctx, parentID, req)
	if err != nil && req.IdempotencyKey != "" && s.idempotency != nil && (result == nil || result.NewOrderID == "") {
		if delErr := s.idempotency.Delete(ctx, req.IdempotencyKey, moduleSplit); delErr != nil {
			s.logger.Warn("release idempotency key", slog.Any("error", delErr))
		}
	}
	return result, err
}

func (s *Service) createSplit(ctx context.Context, parentID string, req SplitRequest) (*SplitResult, error) {
	logger := s.logger.With(slog.String("parent_order_id", parentID), slog.String("actor", req.CreatedBy))

	parent, err := s.gateway.FetchOrder(ctx, parentID)
	if err != nil {
		return nil, fmt.Errorf("fetch parent order %s: %w", parentID, err)
	}
	lines, err := s.gateway.FetchOrderLines(ctx, parentID)
	if err != nil {
		return nil, fmt.Errorf("fetch parent lines %s: %w", parentID, err)
	}
	plan, err := planSplit(lines, req.SplitItems)
	if err != nil {
		return nil, err
	}

	result := &SplitResult{ParentOrderID: parentID, Logs: []string{}}
	result.NewOrderNumber = s.numbers.Next(ctx)

	header := buildSplitHeader(parent, result.NewOrderNumber, req.SplitReason)
	newID, err := s.gateway.CreateOrder(ctx, header)
	if err != nil {
		logger.Error("create split order", slog.Any("error", err))
		result.logf("Create order failed: %s", netsuite.Message(err))
		return result, fmt.Errorf("create split order: %w", err)
	}
	result.NewOrderID = newID
	result.logf("Created order %s (%s)", newID, result.NewOrderNumber)
	logger = logger.With(slog.String("child_order_id", newID))

	if err := s.applySplitLines(ctx, newID, req.SplitItems, plan, result); err != nil {
		logger.Error("split left partially applied", slog.Any("error", err))
		s.recordLineage(ctx, logger, parentID, newID, req, result)
		return result, err
	}

	if err := s.recordLineage(ctx, logger, parentID, newID, req, result); err != nil {
		return result, err
	}

	total := decimal.Zero
	for _, adj := range plan {
		total = total.Add(adj.requested)
	}
	text := s.formatter.OrderSplit(parent.Label(), result.NewOrderNumber, newID, req.CreatedBy, len(req.SplitItems), total.InexactFloat64())
	if err := s.publishAll(ctx, s.coordChats, text); err != nil {
		logger.Warn("split notification failed", slog.Any("error", err))
	}
	s.recordAudit(ctx, logger, shared.AuditLog{
		Actor:    req.CreatedBy,
		Action:   "order.split",
		Entity:   auditEntity,
		EntityID: parentID,
		Meta: map[string]any{
			"child_order_id":   newID,
			"child_order_no":   result.NewOrderNumber,
			"lines":            len(req.SplitItems),
			"split_reason":     req.SplitReason,
			"parent_order_ref": parent.Label(),
		},
	})

	result.Success = true
	result.Message = fmt.Sprintf("Split order %s created from %s", result.NewOrderNumber, parent.Label())
	return result, nil
}

// applySplitLines creates the child lines, then shrinks or removes the parent lines.
// It stops at the first ERP failure.
func (s *Service) applySplitLines(ctx context.Context, newID string, items []SplitItem, plan []parentAdjustment, result *SplitResult) error {
	for i, it := range items {
		if err := s.gateway.CreateOrderLine(ctx, newID, buildSplitLine(it)); err != nil {
			result.logf("Line %d (item %s): create failed: %s", i+1, it.ItemID.Trimmed(), netsuite.Message(err))
			return fmt.Errorf("create split line %d: %w", i+1, err)
		}
		result.logf("Line %d (item %s): created with quantity %s", i+1, it.ItemID.Trimmed(), it.Quantity.Trimmed())
	}

	for _, adj := range plan {
		itemID := adj.line.ItemID()
		if adj.remaining.IsZero() {
			if err := s.gateway.DeleteOrderLine(ctx, adj.line.Href); err != nil {
				result.logf("Parent item %s: delete failed: %s", itemID, netsuite.Message(err))
				return fmt.Errorf("delete parent line for item %s: %w", itemID, err)
			}
			result.logf("Parent item %s: line removed", itemID)
			continue
		}
		res, err := s.gateway.PatchOrderLine(ctx, adj.line.Href, netsuite.Patch{"quantity": adj.remaining.InexactFloat64()})
		if err != nil {
			result.logf("Parent item %s: quantity update failed: %s", itemID, netsuite.Message(err))
			return fmt.Errorf("reduce parent line for item %s: %w", itemID, err)
		}
		result.logf("Parent item %s: quantity reduced to %s (status %d)", itemID, adj.remaining.String(), res.Status)
	}
	return nil
}

func (s *Service) recordLineage(ctx context.Context, logger *slog.Logger, parentID, childID string, req SplitRequest, result *SplitResult) error {
	rec := &lineage.SplitRecord{
		ParentOrderID: parentID,
		ChildOrderID:  childID,
		SplitReason:   req.SplitReason,
		CreatedBy:     req.CreatedBy,
	}
	if err := s.lineage.RecordSplit(ctx, rec); err != nil {
		logger.Error("record split lineage", slog.Any("error", err))
		result.logf("Split history could not be recorded")
		return fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	result.logf("Split history recorded")
	return nil
}
