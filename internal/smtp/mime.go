package smtp

import (
	"bytes"
	"fmt"
	"io"
	"time"

	"github.com/emersion/go-message/mail"

	"github.com/ignite/mailrelay/internal/store"
)

// buildMIME renders the message as a single text/html MIME part with the
// account's identity in the From header. Bcc recipients appear only in the
// envelope, never in the headers.
func buildMIME(m *store.Message, a *store.Account) ([]byte, error) {
	var h mail.Header
	h.SetDate(time.Now())
	h.SetSubject(m.Subject)
	h.SetAddressList("From", []*mail.Address{{Name: a.DisplayName, Address: a.EmailAddress}})
	h.SetAddressList("To", toAddressList(m.Recipients))
	if len(m.Cc) > 0 {
		h.SetAddressList("Cc", toAddressList(m.Cc))
	}
	h.SetContentType("text/html", map[string]string{"charset": "utf-8"})

	var buf bytes.Buffer
	w, err := mail.CreateSingleInlineWriter(&buf, h)
	if err != nil {
		return nil, fmt.Errorf("create mime writer: %w", err)
	}
	if _, err := io.WriteString(w, m.HTMLBody); err != nil {
		w.Close()
		return nil, fmt.Errorf("write html body: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("finish mime body: %w", err)
	}
	return buf.Bytes(), nil
}

func toAddressList(addrs []string) []*mail.Address {
	list := make([]*mail.Address, len(addrs))
	for i, addr := range addrs {
		list[i] = &mail.Address{Address: addr}
	}
	return list
}
