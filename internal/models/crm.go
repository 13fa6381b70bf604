package models

import (
	"time"
)

// Contact is a CRM contact (HubSpot) or a cold-outreach lead (SmartLead).
type Contact struct {
	SyncedRecord
	Email          string `json:"email" gorm:"index"`
	FirstName      string `json:"first_name"`
	LastName       string `json:"last_name"`
	Company        string `json:"company"`
	LifecycleStage string `json:"lifecycle_stage"`
	LeadStatus     string `json:"lead_status"`
	CampaignID     string `json:"campaign_id"`
}

// Campaign is an email campaign from Klaviyo or SmartLead with its headline stats.
type Campaign struct {
	SyncedRecord
	Name         string     `json:"name"`
	Status       string     `json:"status"`
	Channel      string     `json:"channel"`
	Sent         int        `json:"sent"`
	Opens        int        `json:"opens"`
	Clicks       int        `json:"clicks"`
	Replies      int        `json:"replies"`
	Bounces      int        `json:"bounces"`
	Unsubscribes int        `json:"unsubscribes"`
	SentAt       *time.Time `json:"sent_at"`
}

// ChatTranscript is an archived LiveChat conversation.
type ChatTranscript struct {
	SyncedRecord
	CustomerName  string     `json:"customer_name"`
	CustomerEmail string     `json:"customer_email"`
	AgentEmail    string     `json:"agent_email"`
	StartedAt     time.Time  `json:"started_at" gorm:"index"`
	EndedAt       *time.Time `json:"ended_at"`
	MessageCount  int        `json:"message_count"`
	Rating        string     `json:"rating"`
	Tags          string     `json:"tags"`
	FirstMessage  string     `json:"first_message"`
}

// EmailMessage is the metadata of one Gmail message.
type EmailMessage struct {
	SyncedRecord
	Mailbox    string    `json:"mailbox" gorm:"index"`
	ThreadID   string    `json:"thread_id"`
	From       string    `json:"from"`
	To         string    `json:"to"`
	Subject    string    `json:"subject"`
	Snippet    string    `json:"snippet"`
	Labels     string    `json:"labels"`
	ReceivedAt time.Time `json:"received_at" gorm:"index"`
}
