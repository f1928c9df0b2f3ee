package posting

import (
	"context"
	"time"

	journalapp "github.com/erp/posting/internal/application/journal"
	"github.com/erp/posting/internal/domain/journal"
	"github.com/erp/posting/internal/domain/posting"
	"github.com/erp/posting/internal/domain/shared"
	"github.com/erp/posting/internal/infrastructure/telemetry"
	"github.com/google/uuid"
)

// RegisterPayment settles a posted invoice in full. The payment entry is
// booked against cash and cleared with the partner line of the invoice,
// then Posted -> Paid.
func (o *Orchestrator) RegisterPayment(ctx context.Context, id uuid.UUID, req PaymentRequest) (*PostingResult, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "orchestrator", "register_payment")
	defer span.End()

	start := time.Now()
	parent := ctx
	ctx, cancel := context.WithTimeout(ctx, o.opts.Timeout)
	defer cancel()

	doc, err := o.documents.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := doc.EnsurePayable(); err != nil {
		return nil, o.finish(ctx, "payment", doc, start, err)
	}
	roles, err := o.roleMap(ctx)
	if err != nil {
		return nil, o.finish(ctx, "payment", doc, start, err)
	}

	var (
		paid    *posting.BusinessDocument
		payment *journal.JournalEntry
	)
	err = o.run(ctx, telemetry.PostingLabels("payment", string(doc.Type)), []string{doc.LockKey()}, func(repos TransactionalRepositories) error {
		var err error
		paid, payment, err = o.stagePayment(ctx, repos, id, req, roles)
		return err
	})
	if err != nil {
		err = o.finish(ctx, "payment", doc, start, err)
		telemetry.RecordError(span, err)
		return nil, err
	}
	o.finish(ctx, "payment", paid, start, nil)

	o.publish(parent, journalapp.Events(payment), o.drainDocument(paid))
	return o.result(paid, journalapp.ToEntryResponse(payment), nil), nil
}

func (o *Orchestrator) stagePayment(ctx context.Context, repos TransactionalRepositories, id uuid.UUID, req PaymentRequest, roles posting.RoleMap) (*posting.BusinessDocument, *journal.JournalEntry, error) {
	doc, err := repos.DocumentRepo().FindByID(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	if err := doc.EnsurePayable(); err != nil {
		return nil, nil, err
	}
	amount := doc.GrossTotal()
	if req.Amount != nil && !req.Amount.Equal(amount) {
		return nil, nil, shared.Errorf(shared.ErrInvalidInput, "payment of %s does not settle the invoice total %s", req.Amount, amount)
	}

	roleLines, err := o.rules.Expand(doc, []posting.ComponentAmount{{Component: posting.ComponentPayment, Amount: amount}})
	if err != nil {
		return nil, nil, err
	}
	lines, err := posting.BuildLines(doc, roleLines, roles)
	if err != nil {
		return nil, nil, err
	}
	date := time.Now()
	if req.PaymentDate != nil {
		date = *req.PaymentDate
	}
	reference := req.Reference
	if reference == "" {
		reference = doc.Reference
	}
	payment, err := o.journal.StageCreateAndPost(ctx, repos, journal.EntryHeader{
		EntryType:        journal.EntryPayment,
		PostingDate:      date,
		DocumentDate:     date,
		Description:      "Payment of " + string(doc.Type) + " " + doc.Reference,
		Reference:        reference,
		SourceDocumentID: &doc.ID,
	}, lines)
	if err != nil {
		return nil, nil, err
	}

	invoice, err := repos.EntryRepo().FindByID(ctx, *doc.JournalEntryID)
	if err != nil {
		return nil, nil, err
	}
	partnerAccount, err := o.partnerAccount(doc, roles)
	if err != nil {
		return nil, nil, err
	}
	invoiceLine, ok := partnerLine(invoice, partnerAccount, doc.PartnerID)
	if !ok {
		return nil, nil, shared.Errorf(shared.ErrInvalidState, "invoice entry %s has no open partner line", invoice.ID)
	}
	paymentLine, ok := partnerLine(payment, partnerAccount, doc.PartnerID)
	if !ok {
		return nil, nil, shared.Errorf(shared.ErrInvalidState, "payment entry %s has no partner line", payment.ID)
	}

	clearing, err := o.journal.StageClear(ctx, repos, []uuid.UUID{invoiceLine, paymentLine}, "PAY-"+doc.ID.String())
	if err != nil {
		return nil, nil, err
	}
	if err := doc.MarkPaid(payment.ID, clearing.ID); err != nil {
		return nil, nil, err
	}
	if err := repos.DocumentRepo().SaveWithLock(ctx, doc); err != nil {
		return nil, nil, err
	}
	return doc, payment, nil
}

// partnerAccount is the receivables or payables account the invoice left
// open for its partner
func (o *Orchestrator) partnerAccount(doc *posting.BusinessDocument, roles posting.RoleMap) (uuid.UUID, error) {
	role := posting.RoleReceivables
	if doc.Type == posting.TypePurchaseInvoice {
		role = posting.RolePayables
	}
	id, _, err := roles.ResolveRole(role)
	return id, err
}

func partnerLine(entry *journal.JournalEntry, accountID uuid.UUID, partnerID *uuid.UUID) (uuid.UUID, bool) {
	for _, l := range entry.Lines {
		if l.AccountID != accountID || !l.IsOpen() {
			continue
		}
		if partnerID != nil && (l.PartnerID == nil || *l.PartnerID != *partnerID) {
			continue
		}
		return l.ID, true
	}
	return uuid.Nil, false
}
