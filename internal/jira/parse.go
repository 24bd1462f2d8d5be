package jira

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/spec-kit/repair-tracker/internal/config"
	"github.com/spec-kit/repair-tracker/internal/domain"
)

const unknownAuthor = "Unknown"

// MalformedPayloadError reports an issue payload whose required fields are
// missing or unparsable. It is fatal for that issue only.
type MalformedPayloadError struct {
	Key   string
	Field string
	Err   error
}

func (e *MalformedPayloadError) Error() string {
	key := e.Key
	if key == "" {
		key = "<unknown>"
	}
	if e.Err != nil {
		return fmt.Sprintf("malformed payload %s: field %s: %v", key, e.Field, e.Err)
	}
	return fmt.Sprintf("malformed payload %s: field %s missing", key, e.Field)
}

func (e *MalformedPayloadError) Unwrap() error {
	return e.Err
}

// Parser turns raw tracker payloads into domain issues.
type Parser struct {
	fields config.JiraFields
}

// NewParser builds a parser for the configured custom field ids.
func NewParser(fields config.JiraFields) *Parser {
	return &Parser{fields: fields}
}

type rawIssue struct {
	Key       string                     `json:"key"`
	Fields    map[string]json.RawMessage `json:"fields"`
	Changelog *rawChangelog              `json:"changelog"`
}

type rawChangelog struct {
	Histories []rawHistory `json:"histories"`
}

type rawHistory struct {
	Author  *rawUser  `json:"author"`
	Created string    `json:"created"`
	Items   []rawItem `json:"items"`
}

type rawItem struct {
	Field      string `json:"field"`
	FromString string `json:"fromString"`
	ToString   string `json:"toString"`
}

type rawUser struct {
	DisplayName string `json:"displayName"`
}

type rawNamed struct {
	Name string `json:"name"`
}

type rawOption struct {
	Value string `json:"value"`
}

type rawLink struct {
	OutwardIssue *struct {
		Key string `json:"key"`
	} `json:"outwardIssue"`
	InwardIssue *struct {
		Key string `json:"key"`
	} `json:"inwardIssue"`
}

type rawCommentPage struct {
	Comments []rawComment `json:"comments"`
}

type rawComment struct {
	Author  *rawUser        `json:"author"`
	Created string          `json:"created"`
	Body    json.RawMessage `json:"body"`
}

func decodeIssue(payload json.RawMessage) (*rawIssue, error) {
	var issue rawIssue
	if err := json.Unmarshal(payload, &issue); err != nil {
		return nil, &MalformedPayloadError{Field: "payload", Err: err}
	}
	if issue.Fields == nil {
		issue.Fields = map[string]json.RawMessage{}
	}
	return &issue, nil
}

// field decodes fields[name] into dst. A missing or null field leaves dst untouched.
func (r *rawIssue) field(name string, dst any) (bool, error) {
	raw, ok := r.Fields[name]
	if !ok || len(raw) == 0 || string(raw) == "null" {
		return false, nil
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return false, err
	}
	return true, nil
}

// Classify reads issuetype.name. ok is false for missing or unsupported types.
func Classify(payload json.RawMessage) (domain.IssueKind, bool) {
	issue, err := decodeIssue(payload)
	if err != nil {
		return "", false
	}
	var issueType rawNamed
	if found, err := issue.field("issuetype", &issueType); !found || err != nil {
		return "", false
	}
	kind := domain.IssueKind(issueType.Name)
	switch kind {
	case domain.IssueKindTask, domain.IssueKindStory:
		return kind, true
	default:
		return kind, false
	}
}

// ParseIssue extracts a domain issue from one payload.
// key, fields.created and fields.issuetype are required.
func (p *Parser) ParseIssue(payload json.RawMessage) (domain.Issue, error) {
	raw, err := decodeIssue(payload)
	if err != nil {
		return domain.Issue{}, err
	}
	if strings.TrimSpace(raw.Key) == "" {
		return domain.Issue{}, &MalformedPayloadError{Field: "key"}
	}

	var issueType rawNamed
	found, err := raw.field("issuetype", &issueType)
	if err != nil {
		return domain.Issue{}, &MalformedPayloadError{Key: raw.Key, Field: "issuetype", Err: err}
	}
	if !found || issueType.Name == "" {
		return domain.Issue{}, &MalformedPayloadError{Key: raw.Key, Field: "issuetype"}
	}

	var createdStr string
	found, err = raw.field("created", &createdStr)
	if err != nil || !found {
		return domain.Issue{}, &MalformedPayloadError{Key: raw.Key, Field: "created", Err: err}
	}
	created, err := ParseTime(createdStr)
	if err != nil {
		return domain.Issue{}, &MalformedPayloadError{Key: raw.Key, Field: "created", Err: err}
	}

	issue := domain.Issue{
		Kind:          domain.IssueKind(issueType.Name),
		Key:           raw.Key,
		Created:       created,
		Comments:      commentsOf(raw),
		StatusHistory: statusHistoryOf(raw),
	}
	_, _ = raw.field("summary", &issue.Serial)

	var assignee rawUser
	if found, _ := raw.field("assignee", &assignee); found {
		issue.Assignee = assignee.DisplayName
	}
	if p.fields.RepairSummary != "" {
		_, _ = raw.field(p.fields.RepairSummary, &issue.RepairSummary)
	}

	switch issue.Kind {
	case domain.IssueKindTask:
		issue.Task = &domain.TaskDetails{BoardModel: p.optionValue(raw, p.fields.BoardModel)}
	case domain.IssueKindStory:
		issue.Story = &domain.StoryDetails{LinkedIssues: linksOf(raw)}
	}
	return issue, nil
}

func (p *Parser) optionValue(raw *rawIssue, name string) string {
	if name == "" {
		return ""
	}
	var option rawOption
	if found, err := raw.field(name, &option); found && err == nil {
		return option.Value
	}
	var plain string
	if found, err := raw.field(name, &plain); found && err == nil {
		return plain
	}
	return ""
}

// ParseComments returns the comments of a payload ordered by timestamp.
// Comments with unparsable timestamps are dropped.
func ParseComments(payload json.RawMessage) ([]domain.Comment, error) {
	raw, err := decodeIssue(payload)
	if err != nil {
		return nil, err
	}
	return commentsOf(raw), nil
}

// ParseStatusHistory flattens the changelog into status changes ordered by timestamp.
// Entries with unparsable timestamps are dropped.
func ParseStatusHistory(payload json.RawMessage) ([]domain.StatusChange, error) {
	raw, err := decodeIssue(payload)
	if err != nil {
		return nil, err
	}
	return statusHistoryOf(raw), nil
}

func commentsOf(raw *rawIssue) []domain.Comment {
	var page rawCommentPage
	if found, err := raw.field("comment", &page); !found || err != nil {
		return []domain.Comment{}
	}
	comments := make([]domain.Comment, 0, len(page.Comments))
	for _, c := range page.Comments {
		ts, err := ParseTime(c.Created)
		if err != nil {
			continue
		}
		comments = append(comments, domain.Comment{
			Author:    authorName(c.Author),
			Timestamp: ts,
			Body:      commentBody(c.Body),
		})
	}
	domain.SortComments(comments)
	return comments
}

func statusHistoryOf(raw *rawIssue) []domain.StatusChange {
	changes := []domain.StatusChange{}
	if raw.Changelog == nil {
		return changes
	}
	for _, history := range raw.Changelog.Histories {
		ts, err := ParseTime(history.Created)
		if err != nil {
			continue
		}
		for _, item := range history.Items {
			if item.Field != "status" {
				continue
			}
			changes = append(changes, domain.StatusChange{
				Author:     authorName(history.Author),
				FromStatus: item.FromString,
				ToStatus:   item.ToString,
				Timestamp:  ts,
			})
		}
	}
	domain.SortStatusChanges(changes)
	return changes
}

func linksOf(raw *rawIssue) []string {
	var links []rawLink
	if found, err := raw.field("issuelinks", &links); !found || err != nil {
		return []string{}
	}
	keys := make([]string, 0, len(links))
	for _, link := range links {
		switch {
		case link.OutwardIssue != nil:
			keys = append(keys, link.OutwardIssue.Key)
		case link.InwardIssue != nil:
			keys = append(keys, link.InwardIssue.Key)
		}
	}
	return keys
}

func authorName(u *rawUser) string {
	if u == nil || u.DisplayName == "" {
		return unknownAuthor
	}
	return u.DisplayName
}

// commentBody accepts plain string bodies and document-format bodies.
func commentBody(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var plain string
	if err := json.Unmarshal(raw, &plain); err == nil {
		return plain
	}
	var doc adfNode
	if err := json.Unmarshal(raw, &doc); err != nil {
		return ""
	}
	var b strings.Builder
	doc.writeText(&b)
	return strings.TrimRight(b.String(), "\n")
}

type adfNode struct {
	Type    string    `json:"type"`
	Text    string    `json:"text"`
	Content []adfNode `json:"content"`
}

func (n adfNode) writeText(b *strings.Builder) {
	if n.Type == "text" {
		b.WriteString(n.Text)
	}
	if n.Type == "hardBreak" {
		b.WriteByte('\n')
	}
	for _, child := range n.Content {
		child.writeText(b)
	}
	if n.Type == "paragraph" {
		b.WriteByte('\n')
	}
}

var timeLayouts = []string{
	"2006-01-02T15:04:05.000-0700",
	"2006-01-02T15:04:05-0700",
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
}

// ParseTime parses tracker timestamps and normalizes them to UTC.
// Values without a zone are read as UTC.
func ParseTime(value string) (time.Time, error) {
	value = strings.TrimSpace(value)
	for _, layout := range timeLayouts {
		if ts, err := time.Parse(layout, value); err == nil {
			return ts.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized timestamp %q", value)
}

// EpicMeta is the listing metadata of an epic payload.
type EpicMeta struct {
	Key     string
	Title   string
	Created time.Time
}

// ParseEpicMeta reads key, summary and created from an epic payload.
func ParseEpicMeta(payload json.RawMessage) (EpicMeta, error) {
	raw, err := decodeIssue(payload)
	if err != nil {
		return EpicMeta{}, err
	}
	if raw.Key == "" {
		return EpicMeta{}, &MalformedPayloadError{Field: "key"}
	}
	meta := EpicMeta{Key: raw.Key}
	_, _ = raw.field("summary", &meta.Title)
	var createdStr string
	if found, err := raw.field("created", &createdStr); !found || err != nil {
		return EpicMeta{}, &MalformedPayloadError{Key: raw.Key, Field: "created", Err: err}
	}
	if meta.Created, err = ParseTime(createdStr); err != nil {
		return EpicMeta{}, &MalformedPayloadError{Key: raw.Key, Field: "created", Err: err}
	}
	return meta, nil
}

// BuildEpic parses every payload into an epic. Malformed payloads are skipped
// and returned alongside; unsupported issue types are dropped silently.
func (p *Parser) BuildEpic(meta EpicMeta, payloads []json.RawMessage) (*domain.Epic, []error) {
	issues := make([]domain.Issue, 0, len(payloads))
	var skipped []error
	for _, payload := range payloads {
		issue, err := p.ParseIssue(payload)
		if err != nil {
			skipped = append(skipped, err)
			continue
		}
		issues = append(issues, issue)
	}
	return domain.NewEpic(meta.Key, meta.Title, meta.Created, issues), skipped
}

// BoardFields are the tester-reported fields currently stored on a task.
type BoardFields struct {
	Key        string
	BoardModel string
	Frequency  string
	HashRate   string
}

// ParseBoardFields reads the board related custom fields of a task payload.
func (p *Parser) ParseBoardFields(payload json.RawMessage) (BoardFields, error) {
	raw, err := decodeIssue(payload)
	if err != nil {
		return BoardFields{}, err
	}
	out := BoardFields{Key: raw.Key, BoardModel: p.optionValue(raw, p.fields.BoardModel)}
	if p.fields.Frequency != "" {
		_, _ = raw.field(p.fields.Frequency, &out.Frequency)
	}
	if p.fields.HashRate != "" {
		_, _ = raw.field(p.fields.HashRate, &out.HashRate)
	}
	out.Frequency = strings.TrimSpace(out.Frequency)
	out.HashRate = strings.TrimSpace(out.HashRate)
	return out, nil
}

// NormalizeEpicKey prefixes bare epic numbers, so "17080" becomes "RT-17080".
func NormalizeEpicKey(prefix, key string) string {
	key = strings.TrimSpace(key)
	if key == "" || prefix == "" || strings.HasPrefix(key, prefix) {
		return key
	}
	return prefix + key
}
