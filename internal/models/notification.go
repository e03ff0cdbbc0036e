package models

import "time"

type Notification struct {
	Title string `json:"title"`
	Body  string `json:"body"`
}

type AlertKind string

const (
	AlertKindBelow     AlertKind = "below"
	AlertKindAbove     AlertKind = "above"
	AlertKindGenerator AlertKind = "generator"
	AlertKindTimeout   AlertKind = "timeout"
)

// AlertEvent is what the live feed publishes for each emitted notification.
// Recipient holds a masked token.
type AlertEvent struct {
	Kind         AlertKind    `json:"kind"`
	Topic        string       `json:"topic,omitempty"`
	Value        *float64     `json:"value,omitempty"`
	Recipient    string       `json:"recipient"`
	Notification Notification `json:"notification"`
	Delivered    bool         `json:"delivered"`
	Timestamp    time.Time    `json:"timestamp"`
}

// Reading is the latest observed value of a numeric topic.
type Reading struct {
	Topic      string    `json:"topic"`
	Label      string    `json:"label"`
	Unit       string    `json:"unit"`
	Value      float64   `json:"value"`
	ReceivedAt time.Time `json:"receivedAt"`
}
