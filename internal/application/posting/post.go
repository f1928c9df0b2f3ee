package posting

import (
	"context"
	"fmt"
	"time"

	inventoryapp "github.com/erp/posting/internal/application/inventory"
	journalapp "github.com/erp/posting/internal/application/journal"
	"github.com/erp/posting/internal/domain/journal"
	"github.com/erp/posting/internal/domain/posting"
	"github.com/erp/posting/internal/domain/shared"
	"github.com/erp/posting/internal/domain/shared/valueobject"
	"github.com/erp/posting/internal/domain/tax"
	"github.com/erp/posting/internal/infrastructure/telemetry"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// linePlan is the resolved stock mutation of one document line; at most
// one field is set
type linePlan struct {
	issue    *inventoryapp.IssuePlan
	receive  *inventoryapp.ReceivePlan
	transfer *inventoryapp.TransferPlan
	adjust   *inventoryapp.AdjustPlan
}

func (p linePlan) lockKeys() []string {
	switch {
	case p.issue != nil:
		return p.issue.LockKeys()
	case p.receive != nil:
		return p.receive.LockKeys()
	case p.transfer != nil:
		return p.transfer.LockKeys()
	case p.adjust != nil:
		return p.adjust.LockKeys()
	}
	return nil
}

// Post books a draft: taxes, stock and journal in one transaction, then
// Draft -> Posted. Any failure leaves the document a draft with nothing
// booked.
func (o *Orchestrator) Post(ctx context.Context, id uuid.UUID) (*PostingResult, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "orchestrator", "post")
	defer span.End()

	start := time.Now()
	parent := ctx
	ctx, cancel := context.WithTimeout(ctx, o.opts.Timeout)
	defer cancel()

	doc, err := o.documents.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := doc.EnsurePostable(); err != nil {
		return nil, o.finish(ctx, "post", doc, start, err)
	}
	plans, err := o.planStock(ctx, doc)
	if err != nil {
		return nil, o.finish(ctx, "post", doc, start, err)
	}
	roles, err := o.roleMap(ctx)
	if err != nil {
		return nil, o.finish(ctx, "post", doc, start, err)
	}

	keys := []string{doc.LockKey()}
	for _, p := range plans {
		keys = append(keys, p.lockKeys()...)
	}

	var (
		posted *posting.BusinessDocument
		stock  *inventoryapp.StockResult
		entry  *journal.JournalEntry
	)
	err = o.run(ctx, telemetry.PostingLabels("post", string(doc.Type)), keys, func(repos TransactionalRepositories) error {
		var err error
		posted, stock, entry, err = o.stagePost(ctx, repos, id, plans, roles)
		return err
	})
	if err != nil {
		err = o.finish(ctx, "post", doc, start, err)
		telemetry.RecordError(span, err)
		return nil, err
	}
	o.finish(ctx, "post", posted, start, nil)
	o.metrics.RecordMovements(parent, stock.Movements)

	o.publish(parent, stock.Events, journalapp.Events(entry), o.drainDocument(posted))

	var entryResp *journalapp.EntryResponse
	if entry != nil {
		entryResp = journalapp.ToEntryResponse(entry)
	}
	return o.result(posted, entryResp, stock), nil
}

// planStock resolves the stock key of every line before locking. Lines
// naming the same new batch share one pre-allocated batch ID.
func (o *Orchestrator) planStock(ctx context.Context, doc *posting.BusinessDocument) ([]linePlan, error) {
	effect := doc.StockEffect()
	if effect == posting.EffectNone {
		return make([]linePlan, len(doc.Lines)), nil
	}

	plans := make([]linePlan, len(doc.Lines))
	newBatches := make(map[string]inventoryapp.ReceivePlan)
	date := doc.PostingDate
	ref := doc.StockReference()

	for i, l := range doc.Lines {
		in := inventoryapp.StockKeyInput{MaterialID: l.MaterialID, WarehouseID: doc.WarehouseID}
		if l.BatchNumber != nil {
			in.Batch = &inventoryapp.BatchInput{BatchNumber: *l.BatchNumber, ExpiresAt: l.BatchExpiresAt}
		}

		var err error
		switch effect {
		case posting.EffectIssue:
			var p inventoryapp.IssuePlan
			p, err = o.ledger.PlanIssue(ctx, inventoryapp.IssueRequest{
				StockKeyInput:  in,
				Quantity:       l.Quantity,
				AllowBackorder: doc.AllowBackorder,
				Reference:      ref,
				MovementDate:   &date,
			})
			plans[i].issue = &p
		case posting.EffectReceive:
			var p inventoryapp.ReceivePlan
			p, err = o.ledger.PlanReceive(ctx, inventoryapp.ReceiveRequest{
				StockKeyInput: in,
				Quantity:      l.Quantity,
				Reference:     ref,
				MovementDate:  &date,
			})
			if err == nil && p.NewBatch != nil {
				k := l.MaterialID.String() + "/" + p.NewBatch.BatchNumber
				if first, ok := newBatches[k]; ok {
					p.Key, p.NewBatch = first.Key, nil
				} else {
					newBatches[k] = p
				}
			}
			plans[i].receive = &p
		case posting.EffectTransfer:
			var p inventoryapp.TransferPlan
			p, err = o.ledger.PlanTransfer(ctx, inventoryapp.TransferRequest{
				StockKeyInput:   in,
				DestWarehouseID: *doc.DestWarehouseID,
				Quantity:        l.Quantity,
				Reference:       ref,
				MovementDate:    &date,
			})
			plans[i].transfer = &p
		case posting.EffectCount:
			counted := l.Quantity
			if l.CountedQuantity != nil {
				counted = *l.CountedQuantity
			}
			var p inventoryapp.AdjustPlan
			p, err = o.ledger.PlanAdjust(ctx, inventoryapp.AdjustRequest{
				StockKeyInput:   in,
				CountedQuantity: &counted,
				Reference:       ref,
				MovementDate:    &date,
			})
			plans[i].adjust = &p
		}
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", l.LineNo, err)
		}
	}
	return plans, nil
}

// stagePost runs the four posting steps inside the caller's transaction
func (o *Orchestrator) stagePost(ctx context.Context, repos TransactionalRepositories, id uuid.UUID, plans []linePlan, roles posting.RoleMap) (*posting.BusinessDocument, *inventoryapp.StockResult, *journal.JournalEntry, error) {
	doc, err := repos.DocumentRepo().FindByID(ctx, id)
	if err != nil {
		return nil, nil, nil, err
	}
	if err := doc.EnsurePostable(); err != nil {
		return nil, nil, nil, err
	}
	if len(plans) != len(doc.Lines) {
		return nil, nil, nil, shared.Errorf(shared.ErrConcurrencyConflict, "document %s lines changed while posting", doc.ID)
	}
	doc.ResetStamps()

	if err := o.stampTaxes(ctx, doc); err != nil {
		return nil, nil, nil, err
	}
	o.logger.Debug("Taxes stamped", zap.String("document_id", doc.ID.String()))

	stock, err := o.stageStock(ctx, repos, doc, plans)
	if err != nil {
		return nil, nil, nil, err
	}
	o.logger.Debug("Stock staged",
		zap.String("document_id", doc.ID.String()),
		zap.Int("movements", len(stock.Movements)),
	)

	entry, err := o.stageEntry(ctx, repos, doc, valuate(doc), roles)
	if err != nil {
		return nil, nil, nil, err
	}

	var entryID *uuid.UUID
	if entry != nil {
		entryID = &entry.ID
	}
	if err := doc.MarkPosted(entryID, stock.LockKeys()); err != nil {
		return nil, nil, nil, err
	}
	if err := repos.DocumentRepo().SaveWithLock(ctx, doc); err != nil {
		return nil, nil, nil, err
	}
	return doc, stock, entry, nil
}

// stampTaxes computes the base of every line and, for invoices, resolves
// and applies the tax rule at the posting date
func (o *Orchestrator) stampTaxes(ctx context.Context, doc *posting.BusinessDocument) error {
	for i := range doc.Lines {
		l := &doc.Lines[i]
		l.BaseAmount = valueobject.RoundMoney(l.Quantity.Mul(l.UnitPrice))
		if !doc.Type.IsInvoice() {
			continue
		}
		res, err := o.taxes.Resolve(ctx, tax.Query{
			NCMCode:       l.NCMCode,
			SourceState:   doc.SourceState,
			DestState:     doc.DestState,
			OperationType: doc.OperationType,
			At:            doc.PostingDate,
		})
		if err != nil {
			return fmt.Errorf("line %d: %w", l.LineNo, err)
		}
		l.TaxRuleID = &res.RuleID
		l.CFOP = res.CFOP
		l.CSTICMS = res.CSTICMS
		l.Taxes = o.taxes.Apply(l.BaseAmount, res)
	}
	return nil
}

// stageStock books the planned movement of every line and stamps its cost
func (o *Orchestrator) stageStock(ctx context.Context, repos TransactionalRepositories, doc *posting.BusinessDocument, plans []linePlan) (*inventoryapp.StockResult, error) {
	total := &inventoryapp.StockResult{}
	for i, p := range plans {
		l := &doc.Lines[i]
		var (
			res *inventoryapp.StockResult
			err error
		)
		switch {
		case p.issue != nil:
			res, err = o.ledger.StageIssue(ctx, repos, *p.issue)
			if err == nil {
				l.CostOfGoods = res.NetValue().Abs()
			}
		case p.receive != nil:
			plan := *p.receive
			plan.UnitCost = receiptUnitCost(doc, l)
			res, err = o.ledger.StageReceive(ctx, repos, plan)
			if err == nil {
				l.CostOfGoods = res.NetValue()
			}
		case p.transfer != nil:
			res, err = o.ledger.StageTransfer(ctx, repos, *p.transfer)
			if err == nil && len(res.Movements) > 0 {
				l.CostOfGoods = res.Movements[0].TotalCost.Abs()
			}
		case p.adjust != nil:
			res, err = o.ledger.StageAdjust(ctx, repos, *p.adjust)
			if err == nil {
				l.CostOfGoods = res.NetValue()
			}
		default:
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", l.LineNo, err)
		}
		total.Merge(res)
	}
	return total, nil
}

// receiptUnitCost values received goods. Purchases enter stock at landed
// cost: the base plus non-recoverable IPI less the recoverable taxes.
func receiptUnitCost(doc *posting.BusinessDocument, l *posting.DocumentLine) decimal.Decimal {
	if doc.Type != posting.TypePurchaseInvoice || l.Quantity.IsZero() {
		return valueobject.RoundCost(l.UnitPrice)
	}
	return valueobject.RoundCost(landedAmount(l).Div(l.Quantity))
}

func landedAmount(l *posting.DocumentLine) decimal.Decimal {
	return l.BaseAmount.Add(l.Taxes.IPI).Sub(l.Taxes.ICMS).Sub(l.Taxes.PIS).Sub(l.Taxes.COFINS)
}

// valuate sums the stamped line values into the components the posting
// rules expand
func valuate(doc *posting.BusinessDocument) []posting.ComponentAmount {
	var net, icms, ipi, pis, cofins, cost, gain, loss decimal.Decimal
	for _, l := range doc.Lines {
		net = net.Add(l.BaseAmount)
		icms = icms.Add(l.Taxes.ICMS)
		ipi = ipi.Add(l.Taxes.IPI)
		pis = pis.Add(l.Taxes.PIS)
		cofins = cofins.Add(l.Taxes.COFINS)
		cost = cost.Add(l.CostOfGoods)
		if l.CostOfGoods.IsPositive() {
			gain = gain.Add(l.CostOfGoods)
		} else {
			loss = loss.Add(l.CostOfGoods.Neg())
		}
	}

	switch doc.Type {
	case posting.TypeSalesInvoice:
		c := []posting.ComponentAmount{
			{Component: posting.ComponentNet, Amount: net},
			{Component: posting.ComponentIPI, Amount: ipi},
			{Component: posting.ComponentICMS, Amount: icms},
			{Component: posting.ComponentPIS, Amount: pis},
			{Component: posting.ComponentCOFINS, Amount: cofins},
		}
		if doc.AffectsStock {
			c = append(c, posting.ComponentAmount{Component: posting.ComponentCOGS, Amount: cost})
		}
		return c
	case posting.TypePurchaseInvoice:
		c := []posting.ComponentAmount{
			{Component: posting.ComponentNet, Amount: net},
			{Component: posting.ComponentIPI, Amount: ipi},
			{Component: posting.ComponentICMS, Amount: icms},
			{Component: posting.ComponentPIS, Amount: pis},
			{Component: posting.ComponentCOFINS, Amount: cofins},
		}
		if doc.AffectsStock {
			// inventory nets to the staged movement value
			landed := net.Add(ipi).Sub(icms).Sub(pis).Sub(cofins)
			c = append(c, posting.ComponentAmount{Component: posting.ComponentPriceDiff, Amount: landed.Sub(cost)})
		}
		return c
	case posting.TypeGoodsReceipt, posting.TypeGoodsIssue:
		return []posting.ComponentAmount{{Component: posting.ComponentStock, Amount: cost}}
	case posting.TypeInventoryCount:
		return []posting.ComponentAmount{
			{Component: posting.ComponentGain, Amount: gain},
			{Component: posting.ComponentLoss, Amount: loss},
		}
	}
	return nil
}

// stageEntry books the journal entry of the components. Documents whose
// components are all zero book none.
func (o *Orchestrator) stageEntry(ctx context.Context, repos TransactionalRepositories, doc *posting.BusinessDocument, components []posting.ComponentAmount, roles posting.RoleMap) (*journal.JournalEntry, error) {
	roleLines, err := o.rules.Expand(doc, components)
	if err != nil {
		return nil, err
	}
	lines, err := posting.BuildLines(doc, roleLines, roles)
	if err != nil {
		return nil, err
	}
	if len(lines) == 0 {
		return nil, nil
	}
	entry, err := o.journal.StageCreateAndPost(ctx, repos, journal.EntryHeader{
		EntryType:        doc.EntryType(),
		PostingDate:      doc.PostingDate,
		DocumentDate:     doc.DocumentDate,
		Description:      fmt.Sprintf("%s %s", doc.Type, doc.Reference),
		Reference:        doc.Reference,
		SourceDocumentID: &doc.ID,
	}, lines)
	if err != nil {
		return nil, err
	}
	o.logger.Debug("Journal entry staged",
		zap.String("document_id", doc.ID.String()),
		zap.String("entry_id", entry.ID.String()),
		zap.Int("lines", len(entry.Lines)),
	)
	return entry, nil
}
