package stream

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/XavierBriggs/fortuna/services/odds-board/pkg/models"
	"github.com/XavierBriggs/fortuna/services/odds-board/pkg/oddsmath"
)

var (
	// ErrInvalidMessage is returned for payloads that are not a JSON object of the expected shape
	ErrInvalidMessage = errors.New("invalid message")

	// ErrMissingField is returned when a quote lacks a required field
	ErrMissingField = errors.New("missing required field")
)

// requiredFields must be present on every quote. The ones in nullableFields
// may carry an explicit null; the rest may not.
var requiredFields = []string{
	"event_id",
	"market_key",
	"book_key",
	"outcome_name",
	"point",
	"price",
	"decimal_odds",
	"implied_probability",
	"fair_price",
	"edge",
	"observed_at",
}

var nullableFields = map[string]bool{
	"point":      true,
	"fair_price": true,
	"edge":       true,
}

// Message is one decoded frame from the feed
type Message struct {
	Type  string
	Quote *models.Quote
	Error *models.ErrorMessage
}

// Decode parses a frame. A bare quote object and an odds_update envelope both
// yield a Message carrying a quote; other envelope types carry none.
func Decode(data []byte) (Message, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return Message{}, fmt.Errorf("%w: %v", ErrInvalidMessage, err)
	}

	typeRaw, isEnvelope := fields["type"]
	if !isEnvelope {
		quote, err := decodeQuote(fields, data)
		if err != nil {
			return Message{}, err
		}
		return Message{Type: models.MessageTypeOddsUpdate, Quote: &quote}, nil
	}

	var env models.ServerMessage
	if err := json.Unmarshal(data, &env); err != nil {
		return Message{}, fmt.Errorf("%w: envelope: %v", ErrInvalidMessage, err)
	}
	if env.Type == "" {
		return Message{}, fmt.Errorf("%w: empty message type %s", ErrInvalidMessage, typeRaw)
	}

	switch env.Type {
	case models.MessageTypeOddsUpdate:
		var payload map[string]json.RawMessage
		if err := json.Unmarshal(env.Payload, &payload); err != nil {
			return Message{}, fmt.Errorf("%w: payload: %v", ErrInvalidMessage, err)
		}
		if payload == nil {
			return Message{}, fmt.Errorf("%w: quote is null", ErrInvalidMessage)
		}
		data, err := fillBroadcasterFields(payload)
		if err != nil {
			return Message{}, err
		}
		quote, err := decodeQuote(payload, data)
		if err != nil {
			return Message{}, err
		}
		return Message{Type: env.Type, Quote: &quote}, nil

	case models.MessageTypeError:
		var errMsg models.ErrorMessage
		if err := json.Unmarshal(env.Payload, &errMsg); err != nil {
			return Message{}, fmt.Errorf("%w: error payload: %v", ErrInvalidMessage, err)
		}
		return Message{Type: env.Type, Error: &errMsg}, nil

	default:
		return Message{Type: env.Type}, nil
	}
}

// fillBroadcasterFields completes an odds_update payload as ws-broadcaster
// sends it: nil pointers are omitted rather than null, decimal_odds is not
// sent, and the observation time is normalized_at minus data_age_seconds.
// Fields the payload does carry are left as they are.
func fillBroadcasterFields(payload map[string]json.RawMessage) ([]byte, error) {
	for name := range nullableFields {
		if _, ok := payload[name]; !ok {
			payload[name] = json.RawMessage("null")
		}
	}

	if _, ok := payload["decimal_odds"]; !ok {
		if raw, ok := payload["price"]; ok {
			var price int
			if err := json.Unmarshal(raw, &price); err == nil {
				if dec, err := oddsmath.AmericanToDecimal(price); err == nil {
					payload["decimal_odds"], _ = json.Marshal(dec)
				}
			}
		}
	}

	if _, ok := payload["observed_at"]; !ok {
		if raw, ok := payload["normalized_at"]; ok {
			var normalizedAt time.Time
			if err := json.Unmarshal(raw, &normalizedAt); err == nil {
				var age float64
				if ageRaw, ok := payload["data_age_seconds"]; ok {
					_ = json.Unmarshal(ageRaw, &age)
				}
				observed := normalizedAt.Add(-time.Duration(age * float64(time.Second)))
				payload["observed_at"], _ = json.Marshal(observed)
			}
		}
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("%w: payload: %v", ErrInvalidMessage, err)
	}
	return data, nil
}

// decodeQuote validates field presence before decoding so that nothing
// partially decoded ever reaches the store
func decodeQuote(fields map[string]json.RawMessage, data []byte) (models.Quote, error) {
	if fields == nil {
		return models.Quote{}, fmt.Errorf("%w: quote is null", ErrInvalidMessage)
	}

	for _, name := range requiredFields {
		raw, ok := fields[name]
		if !ok {
			return models.Quote{}, fmt.Errorf("%w: %s", ErrMissingField, name)
		}
		if !nullableFields[name] && bytes.Equal(bytes.TrimSpace(raw), []byte("null")) {
			return models.Quote{}, fmt.Errorf("%w: %s is null", ErrMissingField, name)
		}
	}

	var q models.Quote
	if err := json.Unmarshal(data, &q); err != nil {
		return models.Quote{}, fmt.Errorf("%w: %v", ErrInvalidMessage, err)
	}
	return q, nil
}
