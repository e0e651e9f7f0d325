package notifier

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/jmehdipour/hookrelay/internal/apperr"
	"github.com/jmehdipour/hookrelay/internal/model"
)

// TextSource selects how a record body becomes chat text.
type TextSource string

const (
	// TextRaw forwards the record body verbatim.
	TextRaw TextSource = "raw"
	// TextEnvelope decodes the body as a model.Envelope and summarizes its payload.
	TextEnvelope TextSource = "envelope"
)

func ParseTextSource(s string) (TextSource, bool) {
	switch TextSource(strings.ToLower(strings.TrimSpace(s))) {
	case "", TextRaw:
		return TextRaw, true
	case TextEnvelope:
		return TextEnvelope, true
	default:
		return TextRaw, false
	}
}

// maxSummaryRunes keeps summaries inside Telegram's 4096 character message limit.
const maxSummaryRunes = 4000

// Text extracts the chat text from one record.
func (s TextSource) Text(rec model.Record) (string, error) {
	if rec.Body == "" {
		return "", apperr.New(apperr.InvalidRecord, "record has no body")
	}
	if s != TextEnvelope {
		return rec.Body, nil
	}

	var env model.Envelope
	if err := json.Unmarshal([]byte(rec.Body), &env); err != nil {
		return "", apperr.Wrap(apperr.InvalidRecord, "record body is not an envelope", err)
	}
	p := bytes.TrimSpace(env.Payload)
	if len(p) == 0 || bytes.Equal(p, []byte("null")) {
		return "", apperr.New(apperr.InvalidRecord, "envelope has no payload")
	}
	return Summarize(env), nil
}

type ghPayload struct {
	Action     string `json:"action"`
	Ref        string `json:"ref"`
	Compare    string `json:"compare"`
	Zen        string `json:"zen"`
	Repository struct {
		FullName string `json:"full_name"`
	} `json:"repository"`
	Sender struct {
		Login string `json:"login"`
	} `json:"sender"`
	HeadCommit *struct {
		Message string `json:"message"`
	} `json:"head_commit"`
	PullRequest *ghItem `json:"pull_request"`
	Issue       *ghItem `json:"issue"`
	CheckRun    *struct {
		Name       string `json:"name"`
		Conclusion string `json:"conclusion"`
		HTMLURL    string `json:"html_url"`
	} `json:"check_run"`
}

type ghItem struct {
	Number  int    `json:"number"`
	Title   string `json:"title"`
	HTMLURL string `json:"html_url"`
}

// Summarize renders a one-line description of a GitHub event, e.g.
// "[octo/repo] push to main by alice: Fix flaky test https://github.com/...".
// Payloads that are not JSON objects fall back to their compact JSON.
func Summarize(env model.Envelope) string {
	var p ghPayload
	if err := json.Unmarshal(env.Payload, &p); err != nil {
		var buf bytes.Buffer
		if json.Compact(&buf, env.Payload) != nil {
			return truncate(string(env.Payload))
		}
		return truncate(buf.String())
	}

	var sb strings.Builder
	if p.Repository.FullName != "" {
		fmt.Fprintf(&sb, "[%s] ", p.Repository.FullName)
	}

	event := env.Header("X-GitHub-Event")
	if event == "" {
		event = "event"
	}
	sb.WriteString(event)
	if p.Action != "" {
		sb.WriteString(" " + p.Action)
	}
	if ref := shortRef(p.Ref); ref != "" {
		sb.WriteString(" to " + ref)
	}
	if p.Sender.Login != "" {
		sb.WriteString(" by " + p.Sender.Login)
	}

	var subject, link string
	switch {
	case p.PullRequest != nil:
		subject = fmt.Sprintf("#%d %s", p.PullRequest.Number, p.PullRequest.Title)
		link = p.PullRequest.HTMLURL
	case p.Issue != nil:
		subject = fmt.Sprintf("#%d %s", p.Issue.Number, p.Issue.Title)
		link = p.Issue.HTMLURL
	case p.CheckRun != nil:
		subject = strings.TrimSpace(p.CheckRun.Name + " " + p.CheckRun.Conclusion)
		link = p.CheckRun.HTMLURL
	case p.HeadCommit != nil:
		subject, _, _ = strings.Cut(p.HeadCommit.Message, "\n")
		link = p.Compare
	case p.Zen != "":
		subject = p.Zen
	}
	if subject = strings.TrimSpace(subject); subject != "" {
		sb.WriteString(": " + subject)
	}
	if link != "" {
		sb.WriteString(" " + link)
	}

	return truncate(sb.String())
}

func shortRef(ref string) string {
	for _, prefix := range []string{"refs/heads/", "refs/tags/"} {
		if strings.HasPrefix(ref, prefix) {
			return strings.TrimPrefix(ref, prefix)
		}
	}
	return ref
}

func truncate(s string) string {
	if utf8.RuneCountInString(s) <= maxSummaryRunes {
		return s
	}
	r := []rune(s)
	return string(r[:maxSummaryRunes-1]) + "…"
}
