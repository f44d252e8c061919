package smtp

import (
	"bytes"
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/emersion/go-sasl"
	gosmtp "github.com/emersion/go-smtp"

	"github.com/ignite/mailrelay/internal/store"
)

// NetTransport delivers messages over the wire. use_ssl selects implicit
// TLS; otherwise the connection starts plain and upgrades via STARTTLS when
// use_tls is set. use_ssl wins when both flags are set.
type NetTransport struct{}

// Deliver opens a connection to the account's SMTP host, authenticates, and
// submits the raw message. The context deadline bounds every command.
func (NetTransport) Deliver(ctx context.Context, a *store.Account, from string, rcpts []string, raw []byte) error {
	addr := net.JoinHostPort(a.Host, strconv.Itoa(a.Port))
	tlsConfig := &tls.Config{ServerName: a.Host}

	var c *gosmtp.Client
	var err error
	switch {
	case a.UseSSL:
		c, err = gosmtp.DialTLS(addr, tlsConfig)
	case a.UseTLS:
		c, err = gosmtp.DialStartTLS(addr, tlsConfig)
	default:
		c, err = gosmtp.Dial(addr)
	}
	if err != nil {
		return fmt.Errorf("dial %s: %w", addr, err)
	}
	defer c.Close()

	if deadline, ok := ctx.Deadline(); ok {
		remaining := time.Until(deadline)
		c.CommandTimeout = remaining
		c.SubmissionTimeout = remaining
	}

	if a.Username != "" {
		if err := c.Auth(sasl.NewPlainClient("", a.Username, a.Password)); err != nil {
			return fmt.Errorf("auth %s: %w", a.Username, err)
		}
	}

	if err := c.SendMail(from, rcpts, bytes.NewReader(raw)); err != nil {
		return fmt.Errorf("submit to %s: %w", addr, err)
	}
	return c.Quit()
}
