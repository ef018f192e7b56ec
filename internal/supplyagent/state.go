package supplyagent

import "github.com/jthomaschappell/echolingo-resurgence/internal/supply"

// Input is one worker message in both languages.
type Input struct {
	SpanishText string
	EnglishText string
	WorkerID    string
	MessageID   *string
}

// State accumulates the results of one run. It is owned by that run.
type State struct {
	SpanishText string
	EnglishText string
	WorkerID    string
	MessageID   *string

	IsSupplyRequest   bool
	Entities          *supply.Entities
	History           *supply.HistoryContext
	Supplier          *supply.SupplierRecommendation
	SupervisorMessage string
	SupplyRequestID   *string

	// Err is terminal. Stages after the one that set it do not run.
	Err error
}

// DetectResult is the output of Detect.
type DetectResult struct {
	IsSupplyRequest bool
}

// ExtractResult is the output of Extractor.Extract. Entities is nil
// exactly when Err is set.
type ExtractResult struct {
	Entities *supply.Entities
	Err      error
}

// HistoryResult is the output of HistoryLookup.Lookup. A nil History
// means the lookup could not be made.
type HistoryResult struct {
	History *supply.HistoryContext
}

// FormatResult is the output of Formatter.Format.
type FormatResult struct {
	Supplier          *supply.SupplierRecommendation
	SupervisorMessage string
	SupplyRequestID   *string
	Err               error
}

func newState(in Input) State {
	return State{
		SpanishText: in.SpanishText,
		EnglishText: in.EnglishText,
		WorkerID:    in.WorkerID,
		MessageID:   in.MessageID,
	}
}

func (s *State) mergeDetect(r DetectResult) {
	s.IsSupplyRequest = r.IsSupplyRequest
}

func (s *State) mergeExtract(r ExtractResult) {
	if r.Err != nil {
		s.Err = r.Err
		return
	}
	s.Entities = r.Entities
}

func (s *State) mergeHistory(r HistoryResult) {
	s.History = r.History
}

func (s *State) mergeFormat(r FormatResult) {
	if r.Err != nil {
		s.Err = r.Err
		return
	}
	s.Supplier = r.Supplier
	s.SupervisorMessage = r.SupervisorMessage
	s.SupplyRequestID = r.SupplyRequestID
}
