package notifications

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/araddon/dateparse"
	"github.com/hashicorp/go-hclog"
	"gorm.io/gorm"

	"github.com/procurement-forge/reqflow/pkg/models"
)

// DefaultCurrency is used when a purchase request carries an amount but
// no currency code.
const DefaultCurrency = "LSL"

// HandlerDeps bundles the collaborators every transition handler needs.
type HandlerDeps struct {
	DB               *gorm.DB
	Resolver         *Resolver
	Templates        *TemplateResolver
	ProcurementEmail string
	Logger           hclog.Logger
}

// DefaultRegistry builds the production transition table. Every status
// change that produces email is listed here; anything else fails with
// UnregisteredTransitionError.
func DefaultRegistry(deps HandlerDeps) *Registry {
	r := NewRegistry()

	r.Register(
		Transition{Old: "", New: models.StatusSubmitted},
		&submittedHandler{deps: deps},
	)
	r.Register(
		Transition{Old: models.StatusSubmitted, New: models.StatusRevisionRequired},
		&revisionRequiredHandler{deps: deps},
	)
	r.Register(
		Transition{Old: models.StatusRevisionRequired, New: models.StatusSubmitted},
		&resubmittedHandler{deps: deps},
	)

	// Requests reach PENDING_APPROVAL either directly from submission
	// or after waiting in the queue; both notify the approver.
	pending := &pendingApprovalHandler{deps: deps}
	r.Register(Transition{Old: models.StatusSubmitted, New: models.StatusPendingApproval}, pending)
	r.Register(Transition{Old: models.StatusInQueue, New: models.StatusPendingApproval}, pending)

	r.Register(
		Transition{Old: models.StatusPendingApproval, New: models.StatusApproved},
		&approvalResultHandler{deps: deps, typ: "pr_approved", action: "approved"},
	)
	r.Register(
		Transition{Old: models.StatusPendingApproval, New: models.StatusRejected},
		&approvalResultHandler{deps: deps, typ: "pr_rejected", action: "rejected"},
	)

	return r
}

// templateData assembles the shared rendering context from a purchase
// request. Name resolution never fails; missing fields render as their
// documented placeholders.
func templateData(ctx context.Context, deps HandlerDeps, nc *Context) TemplateData {
	pr := nc.PR

	data := TemplateData{
		PRNumber:      nc.PRNumber,
		RequestorName: deps.Resolver.RequestorName(ctx, pr),
		ApproverName:  deps.Resolver.ApproverName(ctx, pr),
		Department:    pr.Department,
		Site:          pr.Site,
		Description:   pr.Description,
		Notes:         nc.Notes,
		IsUrgent:      pr.IsUrgent,
		URL:           nc.RequestURL(),
	}

	if nc.Actor != nil {
		data.ActorName = nc.Actor.DisplayName()
	}

	if pr.EstimatedAmount > 0 {
		currency := pr.Currency
		if currency == "" {
			currency = DefaultCurrency
		}
		data.Amount = fmt.Sprintf("%s %.2f", currency, pr.EstimatedAmount)
	}

	data.RequiredBy = formatRequiredDate(pr.RequiredDate)

	return data
}

// formatRequiredDate normalizes the free-form required date for
// display. Unparseable values pass through untouched rather than being
// dropped.
func formatRequiredDate(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	t, err := dateparse.ParseAny(raw)
	if err != nil {
		return raw
	}
	return t.Format("02 Jan 2006")
}

// reconcileApprover repairs currentApprover drift between the
// authoritative approver field and the workflow mirror before any
// recipient resolution reads the workflow. A failed write is logged and
// swallowed: dispatch continues against the authoritative field.
func reconcileApprover(ctx context.Context, deps HandlerDeps, nc *Context) error {
	ref := NormalizeRef(nc.PR.Approver)

	authoritative := ref.ID
	if authoritative == "" {
		authoritative = ref.Email
	}
	if authoritative == "" {
		return nil
	}

	wf, err := nc.PR.Workflow()
	if err != nil {
		return fmt.Errorf("failed to decode approval workflow: %w", err)
	}
	if wf.CurrentApprover == authoritative {
		return nil
	}

	deps.Logger.Warn("approver drift detected, reconciling workflow mirror",
		"pr_id", nc.PRID,
		"workflow_approver", wf.CurrentApprover,
		"authoritative_approver", authoritative,
	)

	wf.CurrentApprover = authoritative
	if err := nc.PR.SetWorkflow(wf); err != nil {
		return fmt.Errorf("failed to encode approval workflow: %w", err)
	}
	if err := nc.PR.SaveWorkflow(deps.DB.WithContext(ctx)); err != nil {
		return fmt.Errorf("failed to persist approval workflow: %w", err)
	}
	return nil
}

// submittedHandler notifies procurement that a new request arrived.
type submittedHandler struct {
	deps HandlerDeps
}

func (h *submittedHandler) Type() string { return "pr_submitted" }

func (h *submittedHandler) Recipients(ctx context.Context, nc *Context) (Recipients, error) {
	to := newAddrSet(h.deps.ProcurementEmail)

	cc := newAddrSet()
	if email := h.deps.Resolver.RequestorEmail(ctx, nc.PR); email != "" && !to.contains(email) {
		cc.add(email)
	}

	return Recipients{To: to.list(), CC: cc.list()}, nil
}

func (h *submittedHandler) Content(ctx context.Context, nc *Context) (*Content, error) {
	return h.deps.Templates.Resolve(h.Type(), templateData(ctx, h.deps, nc))
}

// revisionRequiredHandler tells the requestor their request was sent
// back for changes.
type revisionRequiredHandler struct {
	deps HandlerDeps
}

func (h *revisionRequiredHandler) Type() string { return "pr_revision_requested" }

func (h *revisionRequiredHandler) Recipients(ctx context.Context, nc *Context) (Recipients, error) {
	to := newAddrSet()
	if email := h.deps.Resolver.RequestorEmail(ctx, nc.PR); email != "" {
		to.add(email)
	}

	cc := newAddrSet()
	if !to.contains(h.deps.ProcurementEmail) {
		cc.add(h.deps.ProcurementEmail)
	}

	return Recipients{To: to.list(), CC: cc.list()}, nil
}

func (h *revisionRequiredHandler) Content(ctx context.Context, nc *Context) (*Content, error) {
	return h.deps.Templates.Resolve(h.Type(), templateData(ctx, h.deps, nc))
}

// resubmittedHandler notifies procurement that a revised request came
// back.
type resubmittedHandler struct {
	deps HandlerDeps
}

func (h *resubmittedHandler) Type() string { return "pr_resubmitted" }

func (h *resubmittedHandler) Recipients(ctx context.Context, nc *Context) (Recipients, error) {
	to := newAddrSet(h.deps.ProcurementEmail)

	cc := newAddrSet()
	if email := h.deps.Resolver.RequestorEmail(ctx, nc.PR); email != "" && !to.contains(email) {
		cc.add(email)
	}

	return Recipients{To: to.list(), CC: cc.list()}, nil
}

func (h *resubmittedHandler) Content(ctx context.Context, nc *Context) (*Content, error) {
	return h.deps.Templates.Resolve(h.Type(), templateData(ctx, h.deps, nc))
}

// pendingApprovalHandler asks the current approver to act.
type pendingApprovalHandler struct {
	deps HandlerDeps
}

func (h *pendingApprovalHandler) Type() string { return "pr_pending_approval" }

func (h *pendingApprovalHandler) BeforeTransition(ctx context.Context, nc *Context) error {
	return reconcileApprover(ctx, h.deps, nc)
}

func (h *pendingApprovalHandler) Recipients(ctx context.Context, nc *Context) (Recipients, error) {
	to := newAddrSet()
	if email := h.deps.Resolver.ApproverEmail(ctx, nc.PR); email != "" {
		to.add(email)
	}

	cc := newAddrSet()
	if email := h.deps.Resolver.RequestorEmail(ctx, nc.PR); email != "" && !to.contains(email) {
		cc.add(email)
	}
	if !to.contains(h.deps.ProcurementEmail) {
		cc.add(h.deps.ProcurementEmail)
	}

	return Recipients{To: to.list(), CC: cc.list()}, nil
}

func (h *pendingApprovalHandler) Content(ctx context.Context, nc *Context) (*Content, error) {
	return h.deps.Templates.Resolve(h.Type(), templateData(ctx, h.deps, nc))
}

// approvalResultHandler tells the requestor the outcome of the approval
// decision and records it in the approval history.
type approvalResultHandler struct {
	deps   HandlerDeps
	typ    string
	action string
}

func (h *approvalResultHandler) Type() string { return h.typ }

func (h *approvalResultHandler) BeforeTransition(ctx context.Context, nc *Context) error {
	return reconcileApprover(ctx, h.deps, nc)
}

func (h *approvalResultHandler) Recipients(ctx context.Context, nc *Context) (Recipients, error) {
	to := newAddrSet()
	if email := h.deps.Resolver.RequestorEmail(ctx, nc.PR); email != "" {
		to.add(email)
	}

	cc := newAddrSet()
	if email := h.deps.Resolver.ApproverEmail(ctx, nc.PR); email != "" && !to.contains(email) {
		cc.add(email)
	}
	if !to.contains(h.deps.ProcurementEmail) {
		cc.add(h.deps.ProcurementEmail)
	}

	return Recipients{To: to.list(), CC: cc.list()}, nil
}

func (h *approvalResultHandler) Content(ctx context.Context, nc *Context) (*Content, error) {
	return h.deps.Templates.Resolve(h.typ, templateData(ctx, h.deps, nc))
}

// AfterTransition appends the decision to the approval history. The
// notification already went out; a failure here is reported but does
// not fail the dispatch.
func (h *approvalResultHandler) AfterTransition(ctx context.Context, nc *Context) error {
	wf, err := nc.PR.Workflow()
	if err != nil {
		return fmt.Errorf("failed to decode approval workflow: %w", err)
	}

	approverID := wf.CurrentApprover
	if approverID == "" {
		ref := ApproverRef(nc.PR)
		approverID = ref.ID
		if approverID == "" {
			approverID = ref.Email
		}
	}

	wf.History = append(wf.History, models.ApprovalAction{
		ApproverID: approverID,
		Timestamp:  time.Now().UTC(),
		Action:     h.action,
	})

	if err := nc.PR.SetWorkflow(wf); err != nil {
		return fmt.Errorf("failed to encode approval workflow: %w", err)
	}
	if err := nc.PR.SaveWorkflow(h.deps.DB.WithContext(ctx)); err != nil {
		return fmt.Errorf("failed to persist approval history: %w", err)
	}
	return nil
}
