// internal/model/message.go
package model

// MailMessage is a rendered mail handed to a transport.
type MailMessage struct {
	TemplateKey string
	To          string
	Subject     string
	Body        string
	Context     map[string]string
}

// SMSMessage is a rendered text message handed to a transport.
type SMSMessage struct {
	TemplateKey string
	To          string
	Body        string
	Context     map[string]string
}
