package entity

import (
	"encoding/json"
	"fmt"
	"net/url"

	"github.com/HumbleChaudhry/pixel-pipe/pkg/utils"
)

// ObjectCreatedNotification is what the object store emits when a blob is
// written. Key arrives URL-encoded (spaces as '+'), the way S3-style event
// records encode it.
type ObjectCreatedNotification struct {
	Bucket    string `json:"bucket"`
	Key       string `json:"key"`
	EventName string `json:"eventName"`
	EventTime string `json:"eventTime"`
}

// DecodedKey returns the real object key. Skipping this step makes the job
// id and every later storage lookup silently miss for keys with spaces or
// escaped characters.
func (n ObjectCreatedNotification) DecodedKey() (string, error) {
	key, err := url.QueryUnescape(n.Key)
	if err != nil {
		return "", fmt.Errorf("decode object key %q: %w", n.Key, err)
	}
	return key, nil
}

// FanOutMessage is published once per object-created event and consumed
// independently by every worker queue. It carries no processing state.
type FanOutMessage struct {
	Bucket    string `json:"bucket"`
	Key       string `json:"key"`
	EventName string `json:"eventName"`
	EventTime string `json:"eventTime"`
}

const fanOutSubject = "Image Upload Event"

// FanOutEnvelope is the single transport layer around a FanOutMessage:
// Message holds the serialized fan-out payload as a string. Consumers unwrap
// exactly one layer before reading the fan-out fields.
type FanOutEnvelope struct {
	Subject string `json:"Subject"`
	Message string `json:"Message"`
}

// WrapFanOut encodes msg into its transport envelope, ready for publishing.
func WrapFanOut(msg FanOutMessage) (json.RawMessage, error) {
	inner, err := json.Marshal(msg)
	if err != nil {
		return nil, fmt.Errorf("marshal fan-out message: %w", err)
	}
	return utils.ToRawMessage(FanOutEnvelope{
		Subject: fanOutSubject,
		Message: string(inner),
	})
}

// UnwrapFanOut decodes one envelope layer and then the fan-out payload.
func UnwrapFanOut(body []byte) (FanOutMessage, error) {
	var env FanOutEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		return FanOutMessage{}, fmt.Errorf("unmarshal envelope: %w", err)
	}
	var msg FanOutMessage
	if err := json.Unmarshal([]byte(env.Message), &msg); err != nil {
		return FanOutMessage{}, fmt.Errorf("unmarshal fan-out message: %w", err)
	}
	if msg.Bucket == "" || msg.Key == "" {
		return FanOutMessage{}, fmt.Errorf("fan-out message missing bucket or key")
	}
	return msg, nil
}
