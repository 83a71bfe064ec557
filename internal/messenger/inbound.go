package messenger

import (
	"encoding/json"
	"fmt"
)

// Inbound is one customer message extracted from a Cloud API webhook.
type Inbound struct {
	ID          string
	From        string
	ProfileName string
	Type        string
	Text        string
	ReplyID     string
	ReplyTitle  string
	Timestamp   string
}

type webhookEnvelope struct {
	Entry []struct {
		Changes []struct {
			Value struct {
				Contacts []struct {
					WaID    string `json:"wa_id"`
					Profile struct {
						Name string `json:"name"`
					} `json:"profile"`
				} `json:"contacts"`
				Messages []struct {
					ID        string `json:"id"`
					From      string `json:"from"`
					Timestamp string `json:"timestamp"`
					Type      string `json:"type"`
					Text      struct {
						Body string `json:"body"`
					} `json:"text"`
					Button struct {
						Payload string `json:"payload"`
						Text    string `json:"text"`
					} `json:"button"`
					Interactive struct {
						Type        string `json:"type"`
						ButtonReply struct {
							ID    string `json:"id"`
							Title string `json:"title"`
						} `json:"button_reply"`
						ListReply struct {
							ID    string `json:"id"`
							Title string `json:"title"`
						} `json:"list_reply"`
					} `json:"interactive"`
				} `json:"messages"`
			} `json:"value"`
		} `json:"changes"`
	} `json:"entry"`
}

// ParseWebhook extracts customer messages from a webhook body. Status
// callbacks and other change kinds carry no messages and yield an empty
// slice.
func ParseWebhook(body []byte) ([]Inbound, error) {
	var env webhookEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, fmt.Errorf("parse whatsapp webhook: %w", err)
	}

	var out []Inbound
	for _, entry := range env.Entry {
		for _, change := range entry.Changes {
			names := make(map[string]string, len(change.Value.Contacts))
			for _, c := range change.Value.Contacts {
				names[c.WaID] = c.Profile.Name
			}
			for _, msg := range change.Value.Messages {
				in := Inbound{
					ID:          msg.ID,
					From:        msg.From,
					ProfileName: names[msg.From],
					Type:        msg.Type,
					Timestamp:   msg.Timestamp,
				}
				switch msg.Type {
				case "text":
					in.Text = msg.Text.Body
				case "button":
					in.ReplyID = msg.Button.Payload
					in.ReplyTitle = msg.Button.Text
				case "interactive":
					switch msg.Interactive.Type {
					case "button_reply":
						in.ReplyID = msg.Interactive.ButtonReply.ID
						in.ReplyTitle = msg.Interactive.ButtonReply.Title
					case "list_reply":
						in.ReplyID = msg.Interactive.ListReply.ID
						in.ReplyTitle = msg.Interactive.ListReply.Title
					}
				}
				out = append(out, in)
			}
		}
	}
	return out, nil
}
