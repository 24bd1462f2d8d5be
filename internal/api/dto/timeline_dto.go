package dto

import (
	"github.com/spec-kit/repair-tracker/internal/service"
	"github.com/spec-kit/repair-tracker/internal/timeline"
)

// TimelineResponse is the chart payload of get_timeline. Timeline is null
// when the epic has no qualifying issues.
type TimelineResponse struct {
	RT         string             `json:"rt"`
	Title      string             `json:"title"`
	Trimmed    bool               `json:"trimmed"`
	Days       []string           `json:"days"`
	Labels     []string           `json:"labels"`
	Timeline   *timeline.Timeline `json:"timeline"`
	Series     []timeline.Series  `json:"series"`
	Peak       *timeline.Peak     `json:"peak,omitempty"`
	NonWorking []timeline.Span    `json:"non_working"`
}

// NewTimelineResponse flattens a view for the wire.
func NewTimelineResponse(view service.TimelineView) TimelineResponse {
	resp := TimelineResponse{
		RT:         view.EpicKey,
		Title:      view.Title,
		Trimmed:    view.Trimmed,
		Days:       []string{},
		Labels:     []string{},
		Timeline:   view.Timeline,
		Series:     view.Series,
		Peak:       view.Peak,
		NonWorking: view.NonWorking,
	}
	if view.Timeline != nil {
		resp.Days = view.Timeline.Days
		resp.Labels = view.Timeline.Labels
	}
	return resp
}
