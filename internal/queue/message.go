package queue

import (
	"encoding/json"
	"fmt"
	"time"
)

const (
	// TypeTranscriptSaved is emitted once per session after its transcript is written.
	TypeTranscriptSaved = "transcript.saved"
	messageVersion      = 1
)

// Message is the payload sent to downstream queue consumers.
type Message struct {
	Type      string `json:"type"`
	SessionID string `json:"sessionId"`
	ThreadID  string `json:"threadId"`
	Vacancy   string `json:"vacancy"`
	Key       string `json:"key"`
	Location  string `json:"location"`
	Bytes     int64  `json:"bytes"`
	SavedAt   string `json:"savedAt"`
	Version   int    `json:"version"`
}

// NewTranscriptSaved builds a transcript.saved event stamped with at.
func NewTranscriptSaved(sessionID, threadID, vacancy, key, location string, size int64, at time.Time) Message {
	return Message{
		Type:      TypeTranscriptSaved,
		SessionID: sessionID,
		ThreadID:  threadID,
		Vacancy:   vacancy,
		Key:       key,
		Location:  location,
		Bytes:     size,
		SavedAt:   at.UTC().Format(time.RFC3339),
		Version:   messageVersion,
	}
}

// EncodeMessage returns the JSON representation of a message.
func EncodeMessage(msg Message) ([]byte, error) {
	return json.Marshal(msg)
}

// DecodeMessage parses a JSON payload into a Message.
func DecodeMessage(payload []byte) (Message, error) {
	var msg Message
	if err := json.Unmarshal(payload, &msg); err != nil {
		return Message{}, err
	}
	if msg.Type == "" || msg.ThreadID == "" {
		return Message{}, fmt.Errorf("queue message missing type or threadId")
	}
	return msg, nil
}
