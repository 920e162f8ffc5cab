// internal/mailer/mailer.go
package mailer

// Message is one outbound email.
type Message struct {
	From        string
	FromName    string
	To          string
	ReplyTo     string
	Subject     string
	HTML        string
	TrackOpens  bool
	TrackClicks bool
}

// Transport sends a message and returns the transport message id used later
// to correlate delivery events.
type Transport interface {
	Send(m Message) (string, error)
}
