package service

import (
	"context"
	"encoding/json"
	"slices"
	"strings"

	"go.uber.org/zap"

	"github.com/spec-kit/repair-tracker/internal/config"
	"github.com/spec-kit/repair-tracker/internal/events"
	"github.com/spec-kit/repair-tracker/internal/jira"
)

// BoardTracker looks up and edits tasks in the tracker.
type BoardTracker interface {
	FindTaskBySerial(ctx context.Context, serial string) (json.RawMessage, bool, error)
	UpdateIssueFields(ctx context.Context, key string, fields map[string]any) error
}

// BoardUpdate carries tester readings for one board. Nil optional fields are
// left untouched.
type BoardUpdate struct {
	Serial     string  `json:"serial"`
	BoardModel string  `json:"boardModel"`
	Frequency  *string `json:"frequency,omitempty"`
	HashRate   *string `json:"hashRate,omitempty"`
}

// BoardResult reports what an update did.
type BoardResult struct {
	Serial   string            `json:"serial"`
	IssueKey string            `json:"issue_key,omitempty"`
	Changed  map[string]string `json:"changed"`
	Skipped  string            `json:"skipped,omitempty"`
	Warnings []string          `json:"warnings,omitempty"`
}

const (
	skipNoSerial = "no serial provided"
	skipNoModel  = "no board model provided"
	skipNoTask   = "no task found for serial"
)

// BoardService writes tester readings back to the tracker.
type BoardService struct {
	tracker    BoardTracker
	parser     *jira.Parser
	fields     config.JiraFields
	models     []string
	dispatcher events.Dispatcher
	logger     *zap.Logger
}

// BoardDependencies bundles collaborators of the board service.
type BoardDependencies struct {
	Tracker     BoardTracker
	Parser      *jira.Parser
	Fields      config.JiraFields
	BoardModels []string
	Dispatcher  events.Dispatcher
	Logger      *zap.Logger
}

// NewBoardService constructs the service.
func NewBoardService(deps BoardDependencies) *BoardService {
	return &BoardService{
		tracker:    deps.Tracker,
		parser:     deps.Parser,
		fields:     deps.Fields,
		models:     deps.BoardModels,
		dispatcher: deps.Dispatcher,
		logger:     deps.Logger,
	}
}

// UpdateBoard finds the task carrying the serial and updates the fields whose
// stored value differs. A missing serial, model or task is a skip, not an error.
// An unknown board model is left unchanged with a warning while the other
// fields are still applied.
func (s *BoardService) UpdateBoard(ctx context.Context, req BoardUpdate, actor events.Actor) (BoardResult, error) {
	serial := strings.TrimSpace(req.Serial)
	result := BoardResult{Serial: serial, Changed: map[string]string{}}

	switch {
	case serial == "":
		return s.skip(ctx, result, skipNoSerial, actor), nil
	case strings.TrimSpace(req.BoardModel) == "":
		return s.skip(ctx, result, skipNoModel, actor), nil
	}

	payload, found, err := s.tracker.FindTaskBySerial(ctx, serial)
	if err != nil {
		s.logger.Error("board lookup failed", zap.String("serial", serial), zap.Error(err))
		return BoardResult{}, err
	}
	if !found {
		return s.skip(ctx, result, skipNoTask, actor), nil
	}
	current, err := s.parser.ParseBoardFields(payload)
	if err != nil {
		return BoardResult{}, err
	}
	result.IssueKey = current.Key

	fields := map[string]any{}
	model := strings.TrimSpace(req.BoardModel)
	if current.BoardModel != model {
		if slices.Contains(s.models, model) {
			fields[s.fields.BoardModel] = map[string]string{"value": model}
			result.Changed["board_model"] = model
		} else {
			s.logger.Warn("invalid board model", zap.String("serial", serial), zap.String("board_model", model))
			result.Warnings = append(result.Warnings, "board model "+model+" is not a tracker option")
		}
	}
	if req.Frequency != nil && current.Frequency != strings.TrimSpace(*req.Frequency) {
		fields[s.fields.Frequency] = *req.Frequency
		result.Changed["frequency"] = *req.Frequency
	}
	if req.HashRate != nil && current.HashRate != strings.TrimSpace(*req.HashRate) {
		fields[s.fields.HashRate] = *req.HashRate
		result.Changed["hash_rate"] = *req.HashRate
	}

	if len(fields) == 0 {
		s.logger.Info("board up to date", zap.String("serial", serial), zap.String("issue", current.Key))
		return result, nil
	}
	if err := s.tracker.UpdateIssueFields(ctx, current.Key, fields); err != nil {
		s.logger.Error("board update failed", zap.String("serial", serial), zap.String("issue", current.Key), zap.Error(err))
		return BoardResult{}, err
	}
	s.logger.Info("board updated", zap.String("serial", serial), zap.String("issue", current.Key), zap.Any("changed", result.Changed))
	s.publish(ctx, events.New(events.EventBoardUpdated, "", actor, events.BoardUpdatedPayload{
		IssueKey: current.Key,
		Serial:   serial,
		Changed:  result.Changed,
	}))
	return result, nil
}

func (s *BoardService) skip(ctx context.Context, result BoardResult, reason string, actor events.Actor) BoardResult {
	result.Skipped = reason
	s.logger.Warn("board update skipped", zap.String("serial", result.Serial), zap.String("reason", reason))
	s.publish(ctx, events.New(events.EventBoardSkipped, "", actor, events.BoardSkippedPayload{Serial: result.Serial, Reason: reason}))
	return result
}

func (s *BoardService) publish(ctx context.Context, event events.Event) {
	if s.dispatcher == nil {
		return
	}
	if err := s.dispatcher.Publish(ctx, event); err != nil {
		s.logger.Warn("event handlers failed", zap.String("event", string(event.Type)), zap.Error(err))
	}
}
