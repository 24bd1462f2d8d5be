package jira

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/spec-kit/repair-tracker/internal/config"
	"github.com/spec-kit/repair-tracker/internal/domain"
)

var testFields = config.JiraFields{
	RepairSummary: "customfield_10245",
	BoardModel:    "customfield_10230",
	Frequency:     "customfield_10229",
	HashRate:      "customfield_10153",
}

const taskPayload = `{
  "key": "RT-101",
  "fields": {
    "summary": "SN-0001",
    "created": "2025-01-01T08:00:00.000+0000",
    "issuetype": {"name": "Task"},
    "assignee": {"displayName": "Dana Smith"},
    "customfield_10245": "replaced\nchip",
    "customfield_10230": {"value": "BHB42831"},
    "comment": {"comments": [
      {"author": {"displayName": "B"}, "created": "2025-01-02T10:00:00.000+0000", "body": "second"},
      {"author": null, "created": "2025-01-01T10:00:00.000+0000", "body": "first"},
      {"author": {"displayName": "C"}, "created": "garbage", "body": "dropped"}
    ]}
  },
  "changelog": {"histories": [
    {"author": {"displayName": "A"}, "created": "2025-01-03T09:00:00.000+0000",
     "items": [{"field": "status", "fromString": "In Progress", "toString": "Done"}]},
    {"author": {"displayName": "A"}, "created": "2025-01-01T09:00:00.000+0000",
     "items": [{"field": "assignee", "fromString": "", "toString": "Dana"},
               {"field": "status", "fromString": "Backlog", "toString": "In Progress"}]},
    {"author": {"displayName": "A"}, "created": "not-a-date",
     "items": [{"field": "status", "fromString": "Done", "toString": "Scrap"}]}
  ]}
}`

const storyPayload = `{
  "key": "RT-102",
  "fields": {
    "summary": "CH-77",
    "created": "2025-01-01T08:00:00.000+0000",
    "issuetype": {"name": "Story"},
    "issuelinks": [
      {"outwardIssue": {"key": "RT-5"}},
      {"inwardIssue": {"key": "RT-6"}},
      {"outwardIssue": {"key": "RT-5"}}
    ]
  }
}`

func TestParseIssueTask(t *testing.T) {
	issue, err := NewParser(testFields).ParseIssue(json.RawMessage(taskPayload))
	if err != nil {
		t.Fatalf("ParseIssue() error = %v", err)
	}
	if issue.Kind != domain.IssueKindTask || issue.Story != nil {
		t.Fatalf("Kind = %q, Story = %v", issue.Kind, issue.Story)
	}
	if issue.Key != "RT-101" || issue.Serial != "SN-0001" || issue.Assignee != "Dana Smith" {
		t.Errorf("unexpected identity fields: %+v", issue)
	}
	if issue.BoardModel() != "BHB42831" {
		t.Errorf("BoardModel() = %q, want %q", issue.BoardModel(), "BHB42831")
	}
	if issue.RepairSummary != "replaced\nchip" {
		t.Errorf("RepairSummary = %q", issue.RepairSummary)
	}

	if len(issue.StatusHistory) != 2 {
		t.Fatalf("len(StatusHistory) = %d, want 2", len(issue.StatusHistory))
	}
	if issue.StatusHistory[0].ToStatus != "In Progress" || issue.StatusHistory[1].ToStatus != "Done" {
		t.Errorf("StatusHistory out of order: %+v", issue.StatusHistory)
	}

	if len(issue.Comments) != 2 {
		t.Fatalf("len(Comments) = %d, want 2", len(issue.Comments))
	}
	if issue.Comments[0].Body != "first" || issue.Comments[0].Author != "Unknown" {
		t.Errorf("Comments[0] = %+v", issue.Comments[0])
	}
}

func TestParseIssueStory(t *testing.T) {
	issue, err := NewParser(testFields).ParseIssue(json.RawMessage(storyPayload))
	if err != nil {
		t.Fatalf("ParseIssue() error = %v", err)
	}
	want := []string{"RT-5", "RT-6", "RT-5"}
	got := issue.LinkedIssues()
	if len(got) != len(want) {
		t.Fatalf("LinkedIssues() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("LinkedIssues()[%d] = %q, want %q", i, got[i], want[i])
		}
	}
	if issue.Task != nil {
		t.Errorf("Task = %+v, want nil", issue.Task)
	}
}

func TestParseIssueMalformed(t *testing.T) {
	tests := []struct {
		name    string
		payload string
		field   string
	}{
		{"missing key", `{"fields":{"created":"2025-01-01T00:00:00.000+0000","issuetype":{"name":"Task"}}}`, "key"},
		{"missing created", `{"key":"RT-1","fields":{"issuetype":{"name":"Task"}}}`, "created"},
		{"bad created", `{"key":"RT-1","fields":{"created":"yesterday","issuetype":{"name":"Task"}}}`, "created"},
		{"missing issuetype", `{"key":"RT-1","fields":{"created":"2025-01-01T00:00:00.000+0000"}}`, "issuetype"},
		{"not json", `{"key":`, "payload"},
	}
	parser := NewParser(testFields)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := parser.ParseIssue(json.RawMessage(tt.payload))
			var malformed *MalformedPayloadError
			if !errors.As(err, &malformed) {
				t.Fatalf("ParseIssue() error = %v, want MalformedPayloadError", err)
			}
			if malformed.Field != tt.field {
				t.Errorf("Field = %q, want %q", malformed.Field, tt.field)
			}
		})
	}
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name    string
		payload string
		want    domain.IssueKind
		ok      bool
	}{
		{"task", taskPayload, domain.IssueKindTask, true},
		{"story", storyPayload, domain.IssueKindStory, true},
		{"bug", `{"key":"RT-3","fields":{"issuetype":{"name":"Bug"}}}`, "Bug", false},
		{"missing", `{"key":"RT-3","fields":{}}`, "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := Classify(json.RawMessage(tt.payload))
			if got != tt.want || ok != tt.ok {
				t.Errorf("Classify() = (%q, %v), want (%q, %v)", got, ok, tt.want, tt.ok)
			}
		})
	}
}

func TestBuildEpicSkipsBadPayloads(t *testing.T) {
	payloads := []json.RawMessage{
		json.RawMessage(taskPayload),
		json.RawMessage(`{"key":"RT-9","fields":{"issuetype":{"name":"Task"}}}`),
		json.RawMessage(`{"key":"RT-10","fields":{"created":"2025-01-01T00:00:00.000+0000","issuetype":{"name":"Bug"}}}`),
		json.RawMessage(storyPayload),
	}
	meta := EpicMeta{Key: "RT-1", Title: "Order", Created: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)}
	epic, skipped := NewParser(testFields).BuildEpic(meta, payloads)
	if len(epic.Tasks) != 1 || len(epic.Stories) != 1 {
		t.Errorf("tasks = %d, stories = %d, want 1 and 1", len(epic.Tasks), len(epic.Stories))
	}
	if len(skipped) != 1 {
		t.Errorf("len(skipped) = %d, want 1", len(skipped))
	}
}

func TestParseTime(t *testing.T) {
	tests := []struct {
		in   string
		want time.Time
	}{
		{"2025-01-01T10:00:00.000+0000", time.Date(2025, 1, 1, 10, 0, 0, 0, time.UTC)},
		{"2025-01-01T23:30:00.000-0500", time.Date(2025, 1, 2, 4, 30, 0, 0, time.UTC)},
		{"2025-01-01T10:00:00Z", time.Date(2025, 1, 1, 10, 0, 0, 0, time.UTC)},
		{"2025-01-01T10:00:00", time.Date(2025, 1, 1, 10, 0, 0, 0, time.UTC)},
		{"2025-01-01 10:00:00", time.Date(2025, 1, 1, 10, 0, 0, 0, time.UTC)},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseTime(tt.in)
			if err != nil {
				t.Fatalf("ParseTime(%q) error = %v", tt.in, err)
			}
			if !got.Equal(tt.want) {
				t.Errorf("ParseTime(%q) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
	if _, err := ParseTime("01/02/2025"); err == nil {
		t.Error("ParseTime(01/02/2025) error = nil, want error")
	}
}

func TestCommentBodyDocumentFormat(t *testing.T) {
	raw := json.RawMessage(`{"type":"doc","content":[
	  {"type":"paragraph","content":[{"type":"text","text":"line one"}]},
	  {"type":"paragraph","content":[{"type":"text","text":"see "},{"type":"text","text":"scope.png"}]}
	]}`)
	if got, want := commentBody(raw), "line one\nsee scope.png"; got != want {
		t.Errorf("commentBody() = %q, want %q", got, want)
	}
}

func TestParseBoardFields(t *testing.T) {
	payload := json.RawMessage(`{"key":"RT-7","fields":{
	  "customfield_10230":{"value":"BHB56801"},
	  "customfield_10229":" 525 ",
	  "customfield_10153":null}}`)
	got, err := NewParser(testFields).ParseBoardFields(payload)
	if err != nil {
		t.Fatalf("ParseBoardFields() error = %v", err)
	}
	want := BoardFields{Key: "RT-7", BoardModel: "BHB56801", Frequency: "525"}
	if got != want {
		t.Errorf("ParseBoardFields() = %+v, want %+v", got, want)
	}
}

func TestNormalizeEpicKey(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"17080", "RT-17080"},
		{"RT-17080", "RT-17080"},
		{" 5 ", "RT-5"},
		{"", ""},
	}
	for _, tt := range tests {
		if got := NormalizeEpicKey("RT-", tt.in); got != tt.want {
			t.Errorf("NormalizeEpicKey(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestParseComments(t *testing.T) {
	cases := []struct {
		name     string
		comments string
		want     []string
	}{
		{name: "no comment field", want: []string{}},
		{
			name: "ordered by time",
			comments: `[{"created":"2025-01-03T10:00:00.000+0000","body":"late"},
				{"created":"2025-01-02T10:00:00.000+0000","body":"early"}]`,
			want: []string{"early", "late"},
		},
		{
			name: "ties keep payload order",
			comments: `[{"created":"2025-01-02T10:00:00.000+0000","body":"first"},
				{"created":"2025-01-02T10:00:00.000+0000","body":"second"}]`,
			want: []string{"first", "second"},
		},
		{
			name: "bad timestamp dropped",
			comments: `[{"created":"yesterday","body":"lost"},
				{"created":"2025-01-02T10:00:00.000+0000","body":"kept"}]`,
			want: []string{"kept"},
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			fields := `"summary":"SN-1"`
			if tc.comments != "" {
				fields += `,"comment":{"comments":` + tc.comments + `}`
			}
			got, err := ParseComments(json.RawMessage(`{"key":"RT-1","fields":{` + fields + `}}`))
			if err != nil {
				t.Fatalf("ParseComments() error = %v", err)
			}
			if len(got) != len(tc.want) {
				t.Fatalf("got %d comments, want %d", len(got), len(tc.want))
			}
			for i, c := range got {
				if c.Body != tc.want[i] {
					t.Errorf("comment %d body = %q, want %q", i, c.Body, tc.want[i])
				}
			}
		})
	}
}

func TestParseStatusHistory(t *testing.T) {
	cases := []struct {
		name      string
		histories string
		want      []string
	}{
		{name: "no changelog", want: []string{}},
		{
			name: "status items only, ordered by time",
			histories: `[
				{"created":"2025-01-03T09:00:00.000+0000","items":[{"field":"status","fromString":"In Progress","toString":"Done"}]},
				{"created":"2025-01-01T09:00:00.000+0000","items":[
					{"field":"assignee","fromString":"","toString":"Dana"},
					{"field":"status","fromString":"Backlog","toString":"In Progress"}]}]`,
			want: []string{"In Progress", "Done"},
		},
		{
			name: "ties keep changelog order",
			histories: `[
				{"created":"2025-01-01T09:00:00.000+0000","items":[{"field":"status","fromString":"Backlog","toString":"Triage"}]},
				{"created":"2025-01-01T09:00:00.000+0000","items":[{"field":"status","fromString":"Triage","toString":"Repair"}]}]`,
			want: []string{"Triage", "Repair"},
		},
		{
			name: "bad timestamp dropped",
			histories: `[
				{"created":"not a time","items":[{"field":"status","fromString":"Backlog","toString":"Lost"}]},
				{"created":"2025-01-02T09:00:00.000+0000","items":[{"field":"status","fromString":"Backlog","toString":"Kept"}]}]`,
			want: []string{"Kept"},
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			payload := `{"key":"RT-1","fields":{"summary":"SN-1"}}`
			if tc.histories != "" {
				payload = `{"key":"RT-1","fields":{"summary":"SN-1"},"changelog":{"histories":` + tc.histories + `}}`
			}
			got, err := ParseStatusHistory(json.RawMessage(payload))
			if err != nil {
				t.Fatalf("ParseStatusHistory() error = %v", err)
			}
			if len(got) != len(tc.want) {
				t.Fatalf("got %d changes, want %d: %+v", len(got), len(tc.want), got)
			}
			for i, change := range got {
				if change.ToStatus != tc.want[i] {
					t.Errorf("change %d to = %q, want %q", i, change.ToStatus, tc.want[i])
				}
			}
		})
	}
}
