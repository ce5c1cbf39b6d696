package service

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/recruitos/vendor-engine/internal/models"
	appErrors "github.com/recruitos/vendor-engine/pkg/errors"
	"github.com/recruitos/vendor-engine/pkg/export"
)

type csvRenderer interface {
	Render(data export.Dataset) ([]byte, error)
}

type pdfRenderer interface {
	Render(data export.Dataset, title string) ([]byte, error)
}

// StatementFormat selects the rendered statement type.
type StatementFormat string

const (
	StatementCSV StatementFormat = "csv"
	StatementPDF StatementFormat = "pdf"
)

// Statement is a rendered budget ledger export.
type Statement struct {
	Filename    string
	ContentType string
	Payload     []byte
}

// StatementService renders a budget's transaction ledger as a downloadable
// CSV or PDF statement.
type StatementService struct {
	budgets budgetRepository
	csv     csvRenderer
	pdf     pdfRenderer
	logger  *zap.Logger
}

// NewStatementService constructs the service with default renderers when nil.
func NewStatementService(budgets budgetRepository, csv csvRenderer, pdf pdfRenderer, logger *zap.Logger) *StatementService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if csv == nil {
		csv = export.NewCSVExporter()
	}
	if pdf == nil {
		pdf = export.NewPDFExporter()
	}
	return &StatementService{budgets: budgets, csv: csv, pdf: pdf, logger: logger}
}

// Generate renders the ledger of one budget, newest entries first.
func (s *StatementService) Generate(ctx context.Context, tenantID, budgetID string, format StatementFormat) (*Statement, error) {
	budget, err := s.budgets.FindByID(ctx, tenantID, budgetID)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "budget not found")
	}
	txns, err := s.budgets.ListTransactions(ctx, tenantID, budgetID, 0)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "transaction list failed")
	}

	rows := make([]map[string]string, 0, len(txns))
	for _, txn := range txns {
		counterparty := ""
		if txn.CounterpartyID != nil {
			counterparty = *txn.CounterpartyID
		}
		rows = append(rows, map[string]string{
			"Date":         txn.CreatedAt.UTC().Format(time.RFC3339),
			"Type":         string(txn.Type),
			"Amount":       models.FormatCents(txn.AmountCents),
			"Balance":      models.FormatCents(txn.BalanceCents),
			"Source":       txn.SourceType,
			"Source ID":    txn.SourceID,
			"Counterparty": counterparty,
			"Note":         txn.Note,
		})
	}
	dataset := export.Dataset{
		Headers: []string{"Date", "Type", "Amount", "Balance", "Source", "Source ID", "Counterparty", "Note"},
		Rows:    rows,
	}

	timestamp := time.Now().UTC().Format("20060102_150405")
	switch format {
	case StatementCSV:
		payload, err := s.csv.Render(dataset)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "csv render failed")
		}
		return &Statement{
			Filename:    fmt.Sprintf("budget_statement_%s_%s.csv", budget.ID, timestamp),
			ContentType: "text/csv",
			Payload:     payload,
		}, nil
	case StatementPDF:
		title := fmt.Sprintf("Budget Statement - %s (%s)", budget.Name, budget.Currency)
		payload, err := s.pdf.Render(dataset, title)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "pdf render failed")
		}
		return &Statement{
			Filename:    fmt.Sprintf("budget_statement_%s_%s.pdf", budget.ID, timestamp),
			ContentType: "application/pdf",
			Payload:     payload,
		}, nil
	default:
		return nil, appErrors.Clone(appErrors.ErrValidation, "unsupported statement format "+string(format))
	}
}
