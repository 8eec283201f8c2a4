package orders

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/orderbridge/orderbridge/internal/lineage"
	"github.com/orderbridge/orderbridge/internal/netsuite"
	"github.com/orderbridge/orderbridge/internal/reporting"
	"github.com/orderbridge/orderbridge/internal/workflow"
)

const familyFetchLimit = 4

// OrderView is the editable snapshot of an order returned to the UI.
type OrderView struct {
	SO                *netsuite.SalesOrder      `json:"so"`
	Items             []netsuite.OrderLine      `json:"items"`
	VenioSONumber     string                    `json:"venioSONumber"`
	CustomerName      string                    `json:"customerName"`
	ShippingAddresses []netsuite.Address        `json:"shippingAddresses"`
	Conditions        []reporting.Condition     `json:"conditions"`
	ItemMap           map[string]reporting.Item `json:"itemMap"`
	Locations         []reporting.Location      `json:"locations"`
	Workflow          *workflow.Assignment      `json:"workflow"`
}

// RelatedOrder is one order reachable through split history.
type RelatedOrder struct {
	OrderID       string               `json:"orderId"`
	SO            *netsuite.SalesOrder `json:"so"`
	Items         []netsuite.OrderLine `json:"items"`
	VenioSONumber string               `json:"venioSONumber"`
	Error         string               `json:"error,omitempty"`
}

// Family is the split history of an order plus the orders it mentions.
type Family struct {
	Splits        []lineage.SplitRecord `json:"splits"`
	RelatedOrders []RelatedOrder        `json:"relatedOrders"`
}

// View loads an order with its lines. Reporting, address and workflow lookups
// are best-effort and leave their fields empty on failure.
func (s *Service) View(ctx context.Context, orderID string) (*OrderView, error) {
	orderID = strings.TrimSpace(orderID)
	if orderID == "" {
		return nil, fmt.Errorf("%w: order id is required", ErrValidation)
	}
	order, err := s.gateway.FetchOrder(ctx, orderID)
	if err != nil {
		return nil, fmt.Errorf("fetch order %s: %w", orderID, err)
	}

	view := &OrderView{
		SO:                order,
		Items:             []netsuite.OrderLine{},
		ShippingAddresses: []netsuite.Address{},
		Conditions:        []reporting.Condition{},
		ItemMap:           map[string]reporting.Item{},
		Locations:         []reporting.Location{},
	}
	if order.Entity != nil {
		view.CustomerName = order.Entity.RefName
	}
	logger := s.logger.With(slog.String("order_id", orderID))

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		lines, err := s.gateway.FetchOrderLines(gctx, orderID)
		if err != nil {
			return fmt.Errorf("fetch lines %s: %w", orderID, err)
		}
		view.Items = lines
		return nil
	})
	if customerID := netsuite.RefID(order.Entity); customerID != "" {
		g.Go(func() error {
			addrs, err := s.gateway.FetchCustomerAddresses(gctx, customerID)
			if err != nil {
				logger.Warn("load shipping addresses", slog.String("customer_id", customerID), slog.Any("error", err))
				return nil
			}
			view.ShippingAddresses = addrs
			return nil
		})
	}
	if s.workflow != nil {
		g.Go(func() error {
			a, err := s.workflow.LatestAssignment(gctx, orderID)
			if err != nil {
				logger.Warn("load workflow assignment", slog.Any("error", err))
				return nil
			}
			view.Workflow = a
			return nil
		})
	}
	if s.reference != nil {
		g.Go(func() error {
			no, err := s.reference.VenioSONumber(gctx, orderID)
			if err != nil {
				logger.Warn("load venio number", slog.Any("error", err))
				return nil
			}
			view.VenioSONumber = no
			return nil
		})
		g.Go(func() error {
			conds, err := s.reference.Conditions(gctx)
			if err != nil {
				logger.Warn("load conditions", slog.Any("error", err))
				return nil
			}
			view.Conditions = conds
			return nil
		})
		g.Go(func() error {
			locs, err := s.reference.Locations(gctx)
			if err != nil {
				logger.Warn("load locations", slog.Any("error", err))
				return nil
			}
			view.Locations = locs
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	if s.reference != nil && len(view.Items) > 0 {
		ids := make([]string, 0, len(view.Items))
		for _, l := range view.Items {
			if id := l.ItemID(); id != "" {
				ids = append(ids, id)
			}
		}
		items, err := s.reference.ItemMap(ctx, ids)
		if err != nil {
			logger.Warn("load item map", slog.Any("error", err))
		} else if items != nil {
			view.ItemMap = items
		}
	}
	return view, nil
}

// Splits returns the split records that mention the order, newest first.
func (s *Service) Splits(ctx context.Context, orderID string) ([]lineage.SplitRecord, error) {
	orderID = strings.TrimSpace(orderID)
	if orderID == "" {
		return nil, fmt.Errorf("%w: order id is required", ErrValidation)
	}
	records, err := s.lineage.HistoryFor(ctx, orderID)
	if err != nil {
		return nil, fmt.Errorf("load split history %s: %w", orderID, err)
	}
	if records == nil {
		records = []lineage.SplitRecord{}
	}
	return records, nil
}

// Family loads the split history of an order and every other order it names.
// An order that cannot be loaded is reported with its error instead of failing
// the whole family.
func (s *Service) Family(ctx context.Context, orderID string) (*Family, error) {
	records, err := s.Splits(ctx, orderID)
	if err != nil {
		return nil, err
	}
	ids := lineage.RelatedOrderIDs(records, strings.TrimSpace(orderID))
	related := make([]RelatedOrder, len(ids))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(familyFetchLimit)
	for i, id := range ids {
		g.Go(func() error {
			related[i] = s.relatedOrder(gctx, id)
			return nil
		})
	}
	_ = g.Wait()
	return &Family{Splits: records, RelatedOrders: related}, nil
}

func (s *Service) relatedOrder(ctx context.Context, id string) RelatedOrder {
	out := RelatedOrder{OrderID: id, Items: []netsuite.OrderLine{}}
	order, err := s.gateway.FetchOrder(ctx, id)
	if err != nil {
		s.logger.Warn("load related order", slog.String("order_id", id), slog.Any("error", err))
		out.Error = netsuite.Message(err)
		return out
	}
	out.SO = order
	lines, err := s.gateway.FetchOrderLines(ctx, id)
	if err != nil {
		s.logger.Warn("load related order lines", slog.String("order_id", id), slog.Any("error", err))
		out.Error = netsuite.Message(err)
	} else {
		out.Items = lines
	}
	if s.reference != nil {
		if no, err := s.reference.VenioSONumber(ctx, id); err == nil {
			out.VenioSONumber = no
		}
	}
	return out
}
