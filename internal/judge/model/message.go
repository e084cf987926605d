package model

import (
	"encoding/json"
	"fmt"
)

// JudgeMessage is the queue payload for one judge job. ContestID is passed
// through unchanged; the worker never interprets it.
type JudgeMessage struct {
	SubmissionID string `json:"submissionId"`
	ContestID    string `json:"contestId,omitempty"`
}

// DecodeJudgeMessage parses and validates a judge message body.
func DecodeJudgeMessage(body []byte) (JudgeMessage, error) {
	var msg JudgeMessage
	if err := json.Unmarshal(body, &msg); err != nil {
		return JudgeMessage{}, fmt.Errorf("decode judge message: %w", err)
	}
	if msg.SubmissionID == "" {
		return JudgeMessage{}, fmt.Errorf("judge message missing submissionId")
	}
	return msg, nil
}

// Encode serializes the message for publishing.
func (m JudgeMessage) Encode() ([]byte, error) {
	data, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("encode judge message: %w", err)
	}
	return data, nil
}
