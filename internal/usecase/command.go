package usecase

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"order-agent/internal/extract"
)

// minCommandConfidence is the confidence below which an AI-suggested action
// is ignored and only its text is used.
const minCommandConfidence = 0.5

// Command is an action suggested by the AI collaborator. It is applied by
// the same state handlers that serve rule-based input.
type Command interface {
	command()
}

type AddItems struct{ Items []extract.Item }

type RemoveItem struct{ Flavor string }

type SetCustomerInfo struct{ Name, Email string }

type ConfirmOrder struct{}

type CancelOrder struct{}

type AnswerFaq struct{ Text string }

func (AddItems) command()        {}
func (RemoveItem) command()      {}
func (SetCustomerInfo) command() {}
func (ConfirmOrder) command()    {}
func (CancelOrder) command()     {}
func (AnswerFaq) command()       {}

const (
	aiIntentAddItems    = "add_items"
	aiIntentRemoveItem  = "remove_item"
	aiIntentSetCustomer = "set_customer_info"
	aiIntentConfirm     = "confirm_order"
	aiIntentCancel      = "cancel_order"
	aiIntentAnswer      = "answer_faq"
)

type extractedData struct {
	Items  []extract.Item `json:"items,omitempty"`
	Flavor string         `json:"flavor,omitempty"`
	Name   string         `json:"name,omitempty"`
	Email  string         `json:"email,omitempty"`
}

// aiReply is the structured reply requested from the AI collaborator.
type aiReply struct {
	Intent          string        `json:"intent"`
	Response        string        `json:"response"`
	ExtractedData   extractedData `json:"extractedData"`
	Confidence      float64       `json:"confidence"`
	NeedsEscalation bool          `json:"needsEscalation"`
}

func parseAIReply(raw string) (aiReply, error) {
	var out aiReply
	dec := json.NewDecoder(bytes.NewBufferString(strings.TrimSpace(raw)))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&out); err != nil {
		return aiReply{}, fmt.Errorf("usecase: decode ai reply: %w", err)
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		if err == nil {
			return aiReply{}, errors.New("usecase: decode ai reply: multiple JSON values")
		}
		return aiReply{}, fmt.Errorf("usecase: decode ai reply trailing data: %w", err)
	}
	out.Response = strings.TrimSpace(out.Response)
	return out, nil
}

// toCommand converts the reply into a Command. Low-confidence and unknown
// intents only answer.
func (r aiReply) toCommand() Command {
	if r.Confidence < minCommandConfidence {
		return AnswerFaq{Text: r.Response}
	}
	d := r.ExtractedData
	switch strings.ToLower(strings.TrimSpace(r.Intent)) {
	case aiIntentAddItems:
		if len(d.Items) > 0 {
			return AddItems{Items: d.Items}
		}
	case aiIntentRemoveItem:
		if strings.TrimSpace(d.Flavor) != "" {
			return RemoveItem{Flavor: d.Flavor}
		}
	case aiIntentSetCustomer:
		if strings.TrimSpace(d.Name) != "" || strings.TrimSpace(d.Email) != "" {
			return SetCustomerInfo{Name: d.Name, Email: d.Email}
		}
	case aiIntentConfirm:
		return ConfirmOrder{}
	case aiIntentCancel:
		return CancelOrder{}
	}
	return AnswerFaq{Text: r.Response}
}
