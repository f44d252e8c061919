package service

import (
	"fmt"
	"regexp"

	"github.com/ignite/mailrelay/internal/store"
)

var emailRe = regexp.MustCompile(`^[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}$`)

// ValidationError describes rejected input. The message names the offending
// field so the API can surface it verbatim.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

func validationErrorf(format string, args ...interface{}) error {
	return &ValidationError{Message: fmt.Sprintf(format, args...)}
}

// IsValidEmail reports whether addr looks like a deliverable address.
func IsValidEmail(addr string) bool {
	return emailRe.MatchString(addr)
}

func validateCreateEmail(req *CreateEmailRequest) error {
	if req.Subject == "" {
		return validationErrorf("Missing required field: subject")
	}
	if req.HTMLContent == "" {
		return validationErrorf("Missing required field: html_content")
	}
	if len(req.Recipients) == 0 {
		return validationErrorf("Recipients must be a non-empty list")
	}
	for _, r := range req.Recipients {
		if !IsValidEmail(r) {
			return validationErrorf("Invalid recipient email format: %s", r)
		}
	}
	for _, cc := range req.Cc {
		if !IsValidEmail(cc) {
			return validationErrorf("Invalid CC email format: %s", cc)
		}
	}
	for _, bcc := range req.Bcc {
		if !IsValidEmail(bcc) {
			return validationErrorf("Invalid BCC email format: %s", bcc)
		}
	}
	if req.Priority != nil && (*req.Priority < store.PriorityHighest || *req.Priority > store.PriorityLowest) {
		return validationErrorf("Priority must be between 1 and 5")
	}
	return nil
}

func validateCreateAccount(req *CreateAccountRequest) error {
	switch {
	case req.Name == "":
		return validationErrorf("Missing required field: name")
	case req.EmailAddress == "":
		return validationErrorf("Missing required field: email_address")
	case req.Host == "":
		return validationErrorf("Missing required field: smtp_host")
	case req.Port == 0:
		return validationErrorf("Missing required field: smtp_port")
	case req.Username == "":
		return validationErrorf("Missing required field: username")
	case req.Password == "":
		return validationErrorf("Missing required field: password")
	}
	if !IsValidEmail(req.EmailAddress) {
		return validationErrorf("Invalid email address format")
	}
	if req.Port < 1 || req.Port > 65535 {
		return validationErrorf("SMTP port must be between 1 and 65535")
	}
	if req.DailyLimit != nil && *req.DailyLimit < 1 {
		return validationErrorf("Daily limit must be at least 1")
	}
	if req.HourlyLimit != nil && *req.HourlyLimit < 1 {
		return validationErrorf("Hourly limit must be at least 1")
	}
	return nil
}

func validateAccountPatch(p store.AccountPatch) error {
	if p.Empty() {
		return validationErrorf("No fields to update")
	}
	if p.EmailAddress != nil && !IsValidEmail(*p.EmailAddress) {
		return validationErrorf("Invalid email address format")
	}
	if p.Port != nil && (*p.Port < 1 || *p.Port > 65535) {
		return validationErrorf("SMTP port must be between 1 and 65535")
	}
	if p.DailyLimit != nil && *p.DailyLimit < 1 {
		return validationErrorf("Daily limit must be at least 1")
	}
	if p.HourlyLimit != nil && *p.HourlyLimit < 1 {
		return validationErrorf("Hourly limit must be at least 1")
	}
	return nil
}
