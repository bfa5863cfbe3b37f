package scan

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/angelmondragon/cestaprecios/internal/catalog"
	"github.com/angelmondragon/cestaprecios/internal/lookup"
	"github.com/angelmondragon/cestaprecios/internal/ocr"
	"github.com/angelmondragon/cestaprecios/internal/receipt"
	"github.com/angelmondragon/cestaprecios/internal/staging"
	"github.com/angelmondragon/cestaprecios/pkg/enums"
	pkgerrors "github.com/angelmondragon/cestaprecios/pkg/errors"
	"github.com/angelmondragon/cestaprecios/pkg/logger"
	"github.com/angelmondragon/cestaprecios/pkg/metrics"
)

const summaryTemplate = "Ticket procesado: %d actualizados y %d nuevos añadidos."

// CatalogStore is the slice of the catalog the scan flow reads and commits to.
type CatalogStore interface {
	Products() []catalog.Product
	Commit(ctx context.Context, candidates []catalog.Candidate) (catalog.CommitResult, error)
}

// BarcodeLookup resolves barcodes against the food database.
type BarcodeLookup interface {
	Lookup(ctx context.Context, code string) (*lookup.Product, error)
}

// ServiceParams groups dependencies for the scan service.
type ServiceParams struct {
	Catalog  CatalogStore
	Lookup   BarcodeLookup
	OCR      ocr.Recognizer
	Sessions *staging.Registry
	Metrics  *metrics.ScanMetrics
	Logger   *logger.Logger
	Language string
}

// Service drives receipts, barcodes and manual entries through staging into the catalog.
type Service interface {
	StageReceiptText(ctx context.Context, text string) (staging.Snapshot, error)
	StageReceiptImage(ctx context.Context, image []byte) (staging.Snapshot, error)
	StageBarcode(ctx context.Context, code string, supermarket enums.Supermarket, price decimal.Decimal) (staging.Snapshot, error)
	StageManual(ctx context.Context, entry staging.ManualEntry) (staging.Snapshot, error)
	Session(ctx context.Context, id string) (staging.Snapshot, error)
	RemoveCandidate(ctx context.Context, id string, index int) (staging.Snapshot, error)
	EditCandidate(ctx context.Context, id string, index int, edit CandidateEdit) (staging.Snapshot, error)
	Cancel(ctx context.Context, id string) error
	Confirm(ctx context.Context, id string) (ConfirmResult, error)
}

// CandidateEdit carries optional name and raw price edits.
type CandidateEdit struct {
	Name  *string
	Price *string
}

// ConfirmResult reports a committed session.
type ConfirmResult struct {
	SessionID         string   `json:"sessionId"`
	Updated           int      `json:"updated"`
	Added             int      `json:"added"`
	UpdatedProductIDs []string `json:"updatedProductIds"`
	AddedProductIDs   []string `json:"addedProductIds"`
	Summary           string   `json:"summary"`
}

type service struct {
	catalog  CatalogStore
	lookup   BarcodeLookup
	ocr      ocr.Recognizer
	sessions *staging.Registry
	metrics  *metrics.ScanMetrics
	logg     *logger.Logger
	language string
}

// NewService builds a scan service with the required dependencies.
func NewService(params ServiceParams) (Service, error) {
	if params.Catalog == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "catalog is required")
	}
	if params.Sessions == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "session registry is required")
	}
	recognizer := params.OCR
	if recognizer == nil {
		recognizer = ocr.Disabled{}
	}
	logg := params.Logger
	if logg == nil {
		logg = logger.Nop()
	}
	language := strings.TrimSpace(params.Language)
	if language == "" {
		language = ocr.DefaultLanguage
	}
	return &service{
		catalog:  params.Catalog,
		lookup:   params.Lookup,
		ocr:      recognizer,
		sessions: params.Sessions,
		metrics:  params.Metrics,
		logg:     logg,
		language: language,
	}, nil
}

// StageReceiptText detects the chain, parses lines and opens a session.
// Nothing is staged when the chain is unknown or no line yields a product.
func (s *service) StageReceiptText(ctx context.Context, text string) (staging.Snapshot, error) {
	if strings.TrimSpace(text) == "" {
		return staging.Snapshot{}, pkgerrors.New(pkgerrors.CodeValidation, "receipt text is required")
	}

	parsed := receipt.ParseReceipt(text)
	if err := parsed.Require(); err != nil {
		s.metrics.IncReceipt(metrics.OutcomeNoSupermarket)
		s.logg.Warn(ctx, "scan.receipt_supermarket_unknown")
		return staging.Snapshot{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "supermarket not recognized")
	}

	ctx = s.logg.WithSupermarket(ctx, parsed.Supermarket.String())
	session := staging.FromReceipt(parsed.Lines, parsed.Supermarket, s.catalog.Products())
	if session.Len() == 0 {
		s.metrics.IncReceipt(metrics.OutcomeNoProducts)
		s.logg.Warn(ctx, "scan.receipt_no_products")
		return staging.Snapshot{}, pkgerrors.New(pkgerrors.CodeValidation, "no valid products detected")
	}

	s.metrics.IncReceipt(metrics.OutcomeStaged)
	return s.open(ctx, session), nil
}

func (s *service) StageReceiptImage(ctx context.Context, image []byte) (staging.Snapshot, error) {
	if len(image) == 0 {
		return staging.Snapshot{}, pkgerrors.New(pkgerrors.CodeValidation, "receipt image is required")
	}
	text, err := s.ocr.Recognize(ctx, image, s.language)
	if err != nil {
		s.metrics.IncReceipt(metrics.OutcomeRecognitionError)
		s.logg.Error(ctx, "scan.ocr_failed", err)
		if typed := pkgerrors.As(err); typed != nil && typed.Code() == pkgerrors.CodeDependency {
			return staging.Snapshot{}, err
		}
		return staging.Snapshot{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "receipt recognition failed")
	}
	return s.StageReceiptText(ctx, text)
}

// StageBarcode looks the code up and stages one candidate. A miss opens no session.
func (s *service) StageBarcode(ctx context.Context, code string, supermarket enums.Supermarket, price decimal.Decimal) (staging.Snapshot, error) {
	if !supermarket.IsValid() {
		return staging.Snapshot{}, pkgerrors.New(pkgerrors.CodeValidation, "supermarket is not supported").
			WithDetails(map[string]any{"supermarket": supermarket})
	}
	if price.IsNegative() {
		return staging.Snapshot{}, pkgerrors.New(pkgerrors.CodeValidation, "price must not be negative")
	}
	if s.lookup == nil {
		return staging.Snapshot{}, pkgerrors.New(pkgerrors.CodeDependency, "barcode lookup not configured")
	}

	ctx = s.logg.WithField(ctx, "barcode", code)
	product, err := s.lookup.Lookup(ctx, code)
	switch {
	case errors.Is(err, lookup.ErrNotFound):
		s.metrics.IncLookup(metrics.LookupNotFound)
		s.logg.Warn(ctx, "scan.barcode_not_found")
		if pkgerrors.IsCode(err, pkgerrors.CodeNotFound) {
			return staging.Snapshot{}, err
		}
		return staging.Snapshot{}, pkgerrors.Wrap(pkgerrors.CodeNotFound, err, "product not found")
	case err != nil:
		if !pkgerrors.IsCode(err, pkgerrors.CodeValidation) {
			s.metrics.IncLookup(metrics.LookupError)
			s.logg.Error(ctx, "scan.barcode_lookup_failed", err)
		}
		return staging.Snapshot{}, err
	}
	s.metrics.IncLookup(metrics.LookupFound)

	session := staging.FromBarcode(product.Code, product, supermarket, price, s.catalog.Products())
	return s.open(ctx, session), nil
}

func (s *service) StageManual(ctx context.Context, entry staging.ManualEntry) (staging.Snapshot, error) {
	if strings.TrimSpace(entry.Name) == "" {
		return staging.Snapshot{}, pkgerrors.New(pkgerrors.CodeValidation, "name is required")
	}
	if !entry.Price.IsPositive() {
		return staging.Snapshot{}, pkgerrors.New(pkgerrors.CodeValidation, "price must be greater than zero")
	}
	if !entry.Supermarket.IsValid() {
		return staging.Snapshot{}, pkgerrors.New(pkgerrors.CodeValidation, "supermarket is not supported").
			WithDetails(map[string]any{"supermarket": entry.Supermarket})
	}
	return s.open(ctx, staging.FromManual(entry)), nil
}

func (s *service) Session(_ context.Context, id string) (staging.Snapshot, error) {
	session, err := s.sessions.Get(id)
	if err != nil {
		return staging.Snapshot{}, err
	}
	return session.Snapshot(), nil
}

func (s *service) RemoveCandidate(_ context.Context, id string, index int) (staging.Snapshot, error) {
	session, err := s.sessions.Get(id)
	if err != nil {
		return staging.Snapshot{}, err
	}
	if err := session.Remove(index); err != nil {
		return staging.Snapshot{}, err
	}
	return session.Snapshot(), nil
}

// EditCandidate applies the name edit then the price edit. Unparseable prices and
// blank names are ignored.
func (s *service) EditCandidate(_ context.Context, id string, index int, edit CandidateEdit) (staging.Snapshot, error) {
	session, err := s.sessions.Get(id)
	if err != nil {
		return staging.Snapshot{}, err
	}
	if edit.Name != nil {
		if err := session.UpdateName(index, *edit.Name); err != nil {
			return staging.Snapshot{}, err
		}
	}
	if edit.Price != nil {
		if err := session.UpdatePrice(index, *edit.Price); err != nil {
			return staging.Snapshot{}, err
		}
	}
	return session.Snapshot(), nil
}

func (s *service) Cancel(ctx context.Context, id string) error {
	session, err := s.sessions.Get(id)
	if err != nil {
		return err
	}
	if err := session.Cancel(); err != nil {
		return err
	}
	s.sessions.Remove(id)
	s.logg.Info(s.logg.WithSessionID(ctx, id), "scan.session_cancelled")
	return nil
}

// Confirm validates every candidate and commits them in list order. A validation or
// commit failure leaves the session open for further edits.
func (s *service) Confirm(ctx context.Context, id string) (ConfirmResult, error) {
	session, err := s.sessions.Get(id)
	if err != nil {
		return ConfirmResult{}, err
	}
	ctx = s.logg.WithSessionID(ctx, id)

	var result catalog.CommitResult
	started := time.Now()
	err = session.ConfirmFunc(func(candidates []catalog.Candidate) error {
		if err := validateCandidates(candidates); err != nil {
			return err
		}
		committed, err := s.catalog.Commit(ctx, candidates)
		if err != nil {
			if errors.Is(err, catalog.ErrProductNotFound) {
				return pkgerrors.Wrap(pkgerrors.CodeNotFound, err, "linked product no longer exists; remove or relink the candidate")
			}
			if pkgerrors.As(err) == nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "commit failed")
			}
			return err
		}
		result = committed
		return nil
	})
	if err != nil {
		switch {
		case pkgerrors.IsCode(err, pkgerrors.CodeValidation), pkgerrors.IsCode(err, pkgerrors.CodeStateConflict):
		case pkgerrors.IsCode(err, pkgerrors.CodeNotFound):
			s.logg.Warn(ctx, "scan.commit_stale_link")
		default:
			s.logg.Error(ctx, "scan.commit_failed", err)
		}
		return ConfirmResult{}, err
	}
	s.sessions.Remove(id)
	s.metrics.ObserveCommit(result.Updated, result.Added, time.Since(started))
	s.logg.Info(s.logg.WithFields(ctx, map[string]any{
		"updated": result.Updated,
		"added":   result.Added,
	}), "scan.session_confirmed")

	return ConfirmResult{
		SessionID:         id,
		Updated:           result.Updated,
		Added:             result.Added,
		UpdatedProductIDs: nonNil(result.UpdatedProductIDs),
		AddedProductIDs:   nonNil(result.AddedProductIDs),
		Summary:           fmt.Sprintf(summaryTemplate, result.Updated, result.Added),
	}, nil
}

func (s *service) open(ctx context.Context, session *staging.Session) staging.Snapshot {
	s.sessions.Put(session)
	s.metrics.AddStaged(string(session.Source), session.Len())
	s.logg.Info(s.logg.WithFields(s.logg.WithSessionID(ctx, session.ID), map[string]any{
		"source":     session.Source,
		"candidates": session.Len(),
	}), "scan.session_opened")
	return session.Snapshot()
}

func validateCandidates(candidates []catalog.Candidate) error {
	for i, c := range candidates {
		switch {
		case strings.TrimSpace(c.Name) == "":
			return candidateError(i, "name is required")
		case !c.Price.IsPositive():
			return candidateError(i, "price must be greater than zero")
		case !c.Supermarket.IsValid():
			return candidateError(i, "supermarket is not supported")
		}
	}
	return nil
}

func candidateError(index int, msg string) error {
	return pkgerrors.Newf(pkgerrors.CodeValidation, "candidate %d: %s", index, msg).
		WithDetails(map[string]any{"index": index})
}

func nonNil(ids []string) []string {
	if ids == nil {
		return []string{}
	}
	return ids
}
