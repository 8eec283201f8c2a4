// Package orders reconciles staff edits of NetSuite sales orders and splits
// orders into parent/child pairs.
package orders

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/orderbridge/orderbridge/internal/lineage"
	"github.com/orderbridge/orderbridge/internal/netsuite"
	"github.com/orderbridge/orderbridge/internal/notify"
	"github.com/orderbridge/orderbridge/internal/platform/httpx"
	"github.com/orderbridge/orderbridge/internal/reporting"
	"github.com/orderbridge/orderbridge/internal/shared"
	"github.com/orderbridge/orderbridge/internal/workflow"
)

var (
	// ErrValidation marks malformed caller input. Nothing was sent to the ERP.
	ErrValidation = httpx.ErrValidation
	// ErrPersistence marks a local store failure after ERP changes were applied.
	ErrPersistence = errors.New("orders: local persistence failed")
)

const (
	moduleSplit = "order.split"
	auditEntity = "sales_order"
)

// Gateway is the ERP surface used by the service.
type Gateway interface {
	FetchOrder(ctx context.Context, id string) (*netsuite.SalesOrder, error)
	FetchOrderLines(ctx context.Context, id string) ([]netsuite.OrderLine, error)
	FetchLine(ctx context.Context, href string) (*netsuite.OrderLine, error)
	PatchOrderHeader(ctx context.Context, id string, changes netsuite.Patch) (netsuite.PatchResult, error)
	PatchOrderLine(ctx context.Context, href string, changes netsuite.Patch) (netsuite.PatchResult, error)
	CreateOrder(ctx context.Context, header netsuite.Patch) (string, error)
	CreateOrderLine(ctx context.Context, orderID string, line netsuite.Patch) error
	DeleteOrderLine(ctx context.Context, href string) error
	FetchCustomerAddresses(ctx context.Context, customerID string) ([]netsuite.Address, error)
}

// LineageStore persists split records.
type LineageStore interface {
	RecordSplit(ctx context.Context, rec *lineage.SplitRecord) error
	HistoryFor(ctx context.Context, orderID string) ([]lineage.SplitRecord, error)
}

// NumberAllocator hands out split order numbers.
type NumberAllocator interface {
	Next(ctx context.Context) string
}

// WorkflowStore persists department review assignments.
type WorkflowStore interface {
	SaveAssignment(ctx context.Context, a *workflow.Assignment) error
	LatestAssignment(ctx context.Context, orderID string) (*workflow.Assignment, error)
	DepartmentRecipients(ctx context.Context, departments []string) ([]workflow.Recipient, error)
}

// AuditRecorder appends audit log rows.
type AuditRecorder interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// IdempotencyGuard rejects duplicate submissions.
type IdempotencyGuard interface {
	CheckAndInsert(ctx context.Context, key, module string) error
	Delete(ctx context.Context, key, module string) error
}

// ReferenceReader serves reporting data for order views.
type ReferenceReader interface {
	VenioSONumber(ctx context.Context, netsuiteID string) (string, error)
	Locations(ctx context.Context) ([]reporting.Location, error)
	Conditions(ctx context.Context) ([]reporting.Condition, error)
	ItemMap(ctx context.Context, itemIDs []string) (map[string]reporting.Item, error)
}

// ServiceParams groups the service dependencies. Audit, Idempotency and
// Reference are optional.
type ServiceParams struct {
	Gateway          Gateway
	Lineage          LineageStore
	Numbers          NumberAllocator
	Workflow         WorkflowStore
	Publisher        notify.Publisher
	Formatter        *notify.Formatter
	Audit            AuditRecorder
	Idempotency      IdempotencyGuard
	Reference        ReferenceReader
	CoordinationChat []string
	Logger           *slog.Logger
}

// Service implements order updates, splits and read views.
type Service struct {
	gateway     Gateway
	lineage     LineageStore
	numbers     NumberAllocator
	workflow    WorkflowStore
	publisher   notify.Publisher
	formatter   *notify.Formatter
	audit       AuditRecorder
	idempotency IdempotencyGuard
	reference   ReferenceReader
	coordChats  []string
	validate    *validator.Validate
	logger      *slog.Logger
}

// NewService constructs the service.
func NewService(p ServiceParams) *Service {
	logger := p.Logger
	if logger == nil {
		logger = slog.Default()
	}
	formatter := p.Formatter
	if formatter == nil {
		formatter = notify.NewFormatter("en")
	}
	return &Service{
		gateway:     p.Gateway,
		lineage:     p.Lineage,
		numbers:     p.Numbers,
		workflow:    p.Workflow,
		publisher:   p.Publisher,
		formatter:   formatter,
		audit:       p.Audit,
		idempotency: p.Idempotency,
		reference:   p.Reference,
		coordChats:  p.CoordinationChat,
		validate:    newValidator(),
		logger:      logger,
	}
}

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	_ = v.RegisterValidation("positive_qty", func(fl validator.FieldLevel) bool {
		d, ok := parseNumber(fl.Field().String())
		return ok && strings.TrimSpace(fl.Field().String()) != "" && d.IsPositive()
	})
	_ = v.RegisterValidation("numeric_or_blank", func(fl validator.FieldLevel) bool {
		_, ok := parseNumber(fl.Field().String())
		return ok
	})
	return v
}

func (s *Service) validateStruct(v any) error {
	if err := s.validate.Struct(v); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			msgs := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				msgs = append(msgs, describeFieldError(fe))
			}
			return fmt.Errorf("%w: %s", ErrValidation, strings.Join(msgs, "; "))
		}
		return fmt.Errorf("%w: %v", ErrValidation, err)
	}
	return nil
}

func describeFieldError(fe validator.FieldError) string {
	field := fe.Namespace()
	if idx := strings.Index(field, "."); idx >= 0 {
		field = field[idx+1:]
	}
	switch fe.Tag() {
	case "required":
		return field + " is required"
	case "min":
		return field + " must not be empty"
	case "positive_qty":
		return field + " must be a positive quantity"
	case "numeric_or_blank":
		return field + " must be a number"
	default:
		return field + " is invalid"
	}
}

// ApplyUpdate diffs the submitted header and lines against NetSuite and sends
// only the changed fields. Header and lines are patched independently; a
// failed patch is recorded in the result logs and processing continues.
func (s *Service) ApplyUpdate(ctx context.Context, orderID string, req UpdateRequest) (*UpdateResult, error) {
	if strings.TrimSpace(orderID) == "" {
		return nil, fmt.Errorf("%w: order id is required", ErrValidation)
	}
	if err := s.validateStruct(req); err != nil {
		return nil, err
	}

	order, err := s.gateway.FetchOrder(ctx, orderID)
	if err != nil {
		return nil, fmt.Errorf("fetch order %s: %w", orderID, err)
	}

	result := &UpdateResult{Success: true, Logs: []string{}, ItemsUpdated: []LineResult{}}
	logger := s.logger.With(slog.String("order_id", orderID), slog.String("actor", req.UpdatedBy))

	changes := DiffHeader(order, req.HeaderInput)
	if len(changes) == 0 {
		result.logf("No header changes detected")
	} else {
		res, err := s.gateway.PatchOrderHeader(ctx, orderID, changes)
		if err != nil {
			logger.Warn("header patch failed", slog.Any("fields", patchKeys(changes, headerFields)), slog.Any("error", err))
			result.logf("Header update failed: %s", netsuite.Message(err))
		} else {
			result.HeaderUpdated = true
			result.logf("Header updated (status %d): %s", res.Status, strings.Join(patchKeys(changes, headerFields), ", "))
		}
	}

	for i, line := range req.Items {
		result.ItemsUpdated = append(result.ItemsUpdated, s.updateLine(ctx, logger, i+1, line, result))
	}

	if result.changed() {
		s.afterUpdate(ctx, logger, order, orderID, req, result)
	}
	return result, nil
}

func (s *Service) updateLine(ctx context.Context, logger *slog.Logger, pos int, line LineInput, result *UpdateResult) LineResult {
	lr := LineResult{Line: pos, Href: strings.TrimSpace(line.Href)}
	if lr.Href == "" {
		lr.Skipped = true
		result.logf("Line %d: skipped, no ERP reference", pos)
		return lr
	}
	remote, err := s.gateway.FetchLine(ctx, lr.Href)
	if err != nil {
		logger.Warn("line fetch failed", slog.Int("line", pos), slog.Any("error", err))
		lr.Error = netsuite.Message(err)
		result.logf("Line %d: fetch failed: %s", pos, lr.Error)
		return lr
	}
	changes := DiffLine(remote, line)
	if len(changes) == 0 {
		result.logf("Line %d: no changes detected", pos)
		return lr
	}
	res, err := s.gateway.PatchOrderLine(ctx, lr.Href, changes)
	lr.Status = res.Status
	if err != nil {
		logger.Warn("line patch failed", slog.Int("line", pos), slog.Any("error", err))
		lr.Error = netsuite.Message(err)
		result.logf("Line %d: update failed: %s", pos, lr.Error)
		return lr
	}
	lr.Updated = true
	result.logf("Line %d: updated (status %d): %s", pos, res.Status, strings.Join(patchKeys(changes, lineFields), ", "))
	return lr
}

// afterUpdate runs the best-effort follow ups of a change-bearing update.
func (s *Service) afterUpdate(ctx context.Context, logger *slog.Logger, order *netsuite.SalesOrder, orderID string, req UpdateRequest, result *UpdateResult) {
	text := s.formatter.OrderUpdated(order.Label(), orderID, req.UpdatedBy, result.HeaderUpdated, result.linesUpdated())
	if err := s.publishAll(ctx, s.coordChats, text); err != nil {
		logger.Warn("coordination notification failed", slog.Any("error", err))
	}

	if len(req.SelectedDepartments) > 0 {
		s.requestReview(ctx, logger, order, orderID, req, result)
	}

	s.recordAudit(ctx, logger, shared.AuditLog{
		Actor:    req.UpdatedBy,
		Action:   "order.update",
		Entity:   auditEntity,
		EntityID: orderID,
		Meta: map[string]any{
			"header_updated": result.HeaderUpdated,
			"lines_updated":  result.linesUpdated(),
			"departments":    req.SelectedDepartments,
		},
	})
}

func (s *Service) requestReview(ctx context.Context, logger *slog.Logger, order *netsuite.SalesOrder, orderID string, req UpdateRequest, result *UpdateResult) {
	if s.workflow == nil {
		logger.Warn("workflow store not configured, skipping department review")
		return
	}
	assignment := &workflow.Assignment{OrderID: orderID, UpdatedBy: req.UpdatedBy, SelectedDepartments: req.SelectedDepartments}
	if err := s.workflow.SaveAssignment(ctx, assignment); err != nil {
		logger.Error("save workflow assignment", slog.Any("error", fmt.Errorf("%w: %v", ErrPersistence, err)))
		result.logf("Department assignment could not be saved")
		return
	}
	recipients, err := s.workflow.DepartmentRecipients(ctx, req.SelectedDepartments)
	if err != nil {
		logger.Warn("load department recipients", slog.Any("error", err))
		result.logf("Department notification failed")
		return
	}
	sent := 0
	for _, rcpt := range recipients {
		msg := notify.Message{
			ChatID:  rcpt.ChatID,
			Text:    s.formatter.ReviewRequest(order.Label(), orderID, req.UpdatedBy, rcpt.DepartmentCode),
			Buttons: notify.ReviewButtons(orderID),
		}
		if err := s.publish(ctx, msg); err != nil {
			logger.Warn("department notification failed", slog.String("department", rcpt.DepartmentCode), slog.Any("error", err))
			continue
		}
		sent++
	}
	result.logf("Review requested from %d recipient(s) in %s", sent, strings.Join(req.SelectedDepartments, ", "))
}

func (s *Service) publish(ctx context.Context, msg notify.Message) error {
	if s.publisher == nil {
		return errors.New("notification publisher not configured")
	}
	return s.publisher.Publish(ctx, msg)
}

func (s *Service) publishAll(ctx context.Context, chatIDs []string, text string) error {
	if len(chatIDs) == 0 {
		return nil
	}
	return notify.PublishAll(ctx, s.publisher, chatIDs, text)
}

func (s *Service) recordAudit(ctx context.Context, logger *slog.Logger, entry shared.AuditLog) {
	if s.audit == nil {
		return
	}
	if err := s.audit.Record(ctx, entry); err != nil {
		logger.Warn("audit record failed", slog.String("action", entry.Action), slog.Any("error", err))
	}
}
