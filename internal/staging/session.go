package staging

import (
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/cestaprecios/internal/catalog"
	"github.com/angelmondragon/cestaprecios/pkg/enums"
	pkgerrors "github.com/angelmondragon/cestaprecios/pkg/errors"
)

type Source string

const (
	SourceReceipt Source = "receipt"
	SourceManual  Source = "manual"
	SourceBarcode Source = "barcode"
)

type State string

const (
	StateOpen      State = "open"
	StateConfirmed State = "confirmed"
	StateCancelled State = "cancelled"
)

// ErrSessionClosed is returned by every operation on a confirmed or cancelled session.
var ErrSessionClosed = pkgerrors.New(pkgerrors.CodeStateConflict, "staging session is closed")

// Session is an editable list of candidates waiting for confirmation.
// It never touches the catalog; Confirm hands the list back to the caller.
type Session struct {
	ID          string
	Source      Source
	Supermarket enums.Supermarket
	CreatedAt   time.Time

	mu         sync.Mutex
	state      State
	touchedAt  time.Time
	candidates []catalog.Candidate
}

// Snapshot is a point-in-time copy of a session, safe to serialize.
type Snapshot struct {
	ID          string              `json:"id"`
	Source      Source              `json:"source"`
	Supermarket enums.Supermarket   `json:"supermarket"`
	State       State               `json:"state"`
	CreatedAt   time.Time           `json:"createdAt"`
	Candidates  []catalog.Candidate `json:"candidates"`
}

func NewSession(source Source, supermarket enums.Supermarket, candidates []catalog.Candidate) *Session {
	now := time.Now().UTC()
	list := make([]catalog.Candidate, len(candidates))
	for i := range candidates {
		list[i] = candidates[i].Clone()
	}
	return &Session{
		ID:          uuid.NewString(),
		Source:      source,
		Supermarket: supermarket,
		CreatedAt:   now,
		state:       StateOpen,
		touchedAt:   now,
		candidates:  list,
	}
}

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Len returns the number of candidates currently staged.
func (s *Session) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.candidates)
}

// Candidates returns a copy of the current list.
func (s *Session) Candidates() []catalog.Candidate {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.copyCandidates()
}

func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Snapshot{
		ID:          s.ID,
		Source:      s.Source,
		Supermarket: s.Supermarket,
		State:       s.state,
		CreatedAt:   s.CreatedAt,
		Candidates:  s.copyCandidates(),
	}
}

// Remove deletes the candidate at index and shifts the rest down.
func (s *Session) Remove(index int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkIndex(index); err != nil {
		return err
	}
	s.candidates = append(s.candidates[:index], s.candidates[index+1:]...)
	s.touch()
	return nil
}

// UpdatePrice replaces the price when raw parses as a decimal (comma or dot).
// Anything else leaves the candidate unchanged without error.
func (s *Session) UpdatePrice(index int, raw string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkIndex(index); err != nil {
		return err
	}
	price, err := decimal.NewFromString(strings.Replace(strings.TrimSpace(raw), ",", ".", 1))
	if err != nil {
		return nil
	}
	s.candidates[index].Price = price
	s.touch()
	return nil
}

// UpdateName replaces the name when value is not blank.
func (s *Session) UpdateName(index int, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkIndex(index); err != nil {
		return err
	}
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return nil
	}
	s.candidates[index].Name = trimmed
	s.touch()
	return nil
}

func (s *Session) Cancel() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateOpen {
		return ErrSessionClosed
	}
	s.state = StateCancelled
	s.candidates = nil
	s.touch()
	return nil
}

// Confirm closes the session and returns the final list.
func (s *Session) Confirm() ([]catalog.Candidate, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateOpen {
		return nil, ErrSessionClosed
	}
	s.state = StateConfirmed
	s.touch()
	return s.copyCandidates(), nil
}

// ConfirmFunc hands the list to fn while holding the session lock and closes the
// session only when fn succeeds, so a failed commit leaves the session editable.
func (s *Session) ConfirmFunc(fn func([]catalog.Candidate) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateOpen {
		return ErrSessionClosed
	}
	if err := fn(s.copyCandidates()); err != nil {
		return err
	}
	s.state = StateConfirmed
	s.touch()
	return nil
}

func (s *Session) idleSince() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.touchedAt
}

func (s *Session) checkIndex(index int) error {
	if s.state != StateOpen {
		return ErrSessionClosed
	}
	if index < 0 || index >= len(s.candidates) {
		return pkgerrors.Newf(pkgerrors.CodeValidation, "candidate index %d out of range", index).
			WithDetails(map[string]any{"index": index, "size": len(s.candidates)})
	}
	return nil
}

func (s *Session) touch() {
	s.touchedAt = time.Now().UTC()
}

func (s *Session) copyCandidates() []catalog.Candidate {
	out := make([]catalog.Candidate, len(s.candidates))
	for i := range s.candidates {
		out[i] = s.candidates[i].Clone()
	}
	return out
}
