// Package smtp delivers plain text mail over an authenticated STARTTLS relay.
package smtp

import "io"

// Client is the subset of *smtp.Client used to send one message.
type Client interface {
	Mail(from string) error
	Rcpt(to string) error
	Data() (io.WriteCloser, error)
	Quit() error
	Close() error
}

// TransportInterface opens relay sessions.
type TransportInterface interface {
	Connect() (Client, error)
	Sender() string
}
