package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"
)

type Slack struct {
	Webhook string
	Client  *http.Client
}

func NewSlack(webhook string) *Slack {
	if webhook == "" {
		return nil
	}
	return &Slack{
		Webhook: webhook,
		Client:  &http.Client{Timeout: 10 * time.Second},
	}
}

type slackField struct {
	Title string `json:"title"`
	Value string `json:"value"`
	Short bool   `json:"short"`
}

type slackAttachment struct {
	Color  string       `json:"color"`
	Title  string       `json:"title"`
	Fields []slackField `json:"fields"`
	Ts     int64        `json:"ts,omitempty"`
}

type slackPayload struct {
	Text        string            `json:"text"`
	Attachments []slackAttachment `json:"attachments,omitempty"`
}

// payloadFor renders a transition alert as a Slack message: a red attachment
// when the page went down, a green one when it recovered, with the verdict
// details as fields.
func payloadFor(a Alert) slackPayload {
	color := "danger"
	if a.Recovered {
		color = "good"
	}
	status := "n/a"
	if a.HTTPStatus != nil {
		status = strconv.Itoa(*a.HTTPStatus)
	}
	fields := []slackField{
		{Title: "URL", Value: a.URL},
		{Title: "Verdict", Value: a.Verdict, Short: true},
		{Title: "HTTP", Value: status, Short: true},
	}
	if a.Reason != "" {
		fields = append(fields, slackField{Title: "Reason", Value: a.Reason})
	}
	return slackPayload{
		Text: a.Title() + ": " + a.URL,
		Attachments: []slackAttachment{{
			Color:  color,
			Title:  a.Title(),
			Fields: fields,
			Ts:     a.ObservedAt.Unix(),
		}},
	}
}

func (s *Slack) Send(ctx context.Context, a Alert) error {
	if s == nil || s.Webhook == "" {
		return errors.New("slack disabled")
	}
	body, _ := json.Marshal(payloadFor(a))
	req, _ := http.NewRequestWithContext(ctx, http.MethodPost, s.Webhook, bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.Client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode/100 != 2 {
		return errors.New("slack non-2xx")
	}
	return nil
}
