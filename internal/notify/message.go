// Package notify формирует уведомления о решении по аккаунту и доставляет их подписчикам.
package notify

import (
	"bytes"
	"fmt"
	"html/template"
)

// Approval содержит данные для уведомления об одобрении аккаунта.
type Approval struct {
	RecipientName string `json:"recipient_name"`
	Email         string `json:"email"`
	UniqueID      string `json:"unique_id"`
}

// Rejection содержит данные для уведомления об отказе.
type Rejection struct {
	RecipientName string `json:"recipient_name"`
	Email         string `json:"email"`
	Reason        string `json:"reason"`
}

// Message описывает готовое к отправке письмо.
type Message struct {
	To      string `json:"to"`
	Subject string `json:"subject"`
	Body    string `json:"body"`
}

var approvalTmpl = template.Must(template.New("approval").Parse(
	`<h2>Welcome, {{.RecipientName}}!</h2>
<p>Your account has been approved.</p>
<p>Your unique ID is <strong>{{.UniqueID}}</strong>. You can use it or your email to log in.</p>`))

var rejectionTmpl = template.Must(template.New("rejection").Parse(
	`<h2>Hello, {{.RecipientName}}</h2>
<p>Unfortunately your registration was not approved.</p>
<p>Reason: {{.Reason}}</p>`))

// RenderApproval формирует письмо об одобрении аккаунта.
func RenderApproval(a Approval) (Message, error) {
	var buf bytes.Buffer
	if err := approvalTmpl.Execute(&buf, a); err != nil {
		return Message{}, fmt.Errorf("render approval: %w", err)
	}
	return Message{To: a.Email, Subject: "Your account has been approved", Body: buf.String()}, nil
}

// RenderRejection формирует письмо об отказе в регистрации.
func RenderRejection(r Rejection) (Message, error) {
	var buf bytes.Buffer
	if err := rejectionTmpl.Execute(&buf, r); err != nil {
		return Message{}, fmt.Errorf("render rejection: %w", err)
	}
	return Message{To: r.Email, Subject: "Your registration was not approved", Body: buf.String()}, nil
}
