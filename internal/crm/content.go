// ABOUTME: Type-specific engagement content shapes (email, task, meeting, call)
// ABOUTME: Notes carry their body as a plain string; unknown types carry no content

package crm

import "time"

// EmailAddress is one party on an email engagement.
type EmailAddress struct {
	Raw       string `json:"raw"`
	Email     string `json:"email"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
}

// EmailSender is the mailbox that sent an email engagement.
type EmailSender struct {
	Email string `json:"email"`
}

// EmailContent is the content of an EMAIL engagement. Body prefers the text part.
type EmailContent struct {
	Subject string         `json:"subject"`
	From    EmailAddress   `json:"from"`
	To      []EmailAddress `json:"to"`
	Cc      []EmailAddress `json:"cc"`
	Bcc     []EmailAddress `json:"bcc"`
	Sender  EmailSender    `json:"sender"`
	Body    string         `json:"body"`
}

// TaskContent is the content of a TASK engagement.
type TaskContent struct {
	Subject       string `json:"subject"`
	Body          string `json:"body"`
	Status        string `json:"status"`
	ForObjectType string `json:"forObjectType"`
}

// MeetingContent is the content of a MEETING engagement.
type MeetingContent struct {
	Title         string    `json:"title"`
	Body          string    `json:"body"`
	StartTime     time.Time `json:"startTime,omitzero"`
	EndTime       time.Time `json:"endTime,omitzero"`
	InternalNotes string    `json:"internalNotes"`
}

// CallContent is the content of a CALL engagement.
type CallContent struct {
	Body        string `json:"body"`
	FromNumber  string `json:"fromNumber"`
	ToNumber    string `json:"toNumber"`
	DurationMs  *int64 `json:"durationMs,omitempty"`
	Status      string `json:"status"`
	Disposition string `json:"disposition"`
}
