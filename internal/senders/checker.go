package senders

import (
	"strings"

	"go.uber.org/zap"
)

// Checker recognises mail sent by the client's own team or by system mailboxes.
// Such messages are never lead replies.
type Checker struct {
	domains []string
	locals  []string
	logger  *zap.Logger
}

// NewChecker creates a new sender checker
func NewChecker(domains, systemLocals []string, logger *zap.Logger) *Checker {
	if logger == nil {
		logger = zap.NewNop()
	}
	c := &Checker{
		domains: normalize(domains),
		locals:  normalize(systemLocals),
		logger:  logger,
	}
	if len(c.domains) > 0 {
		logger.Debug("Initialized internal sender checker", zap.Strings("domains", c.domains))
	}
	return c
}

// With returns a checker that also treats extra domains as internal
func (c *Checker) With(extraDomains []string) *Checker {
	if len(extraDomains) == 0 {
		return c
	}
	domains := append(append([]string{}, c.domains...), normalize(extraDomains)...)
	return &Checker{domains: domains, locals: c.locals, logger: c.logger}
}

// IsInternal reports whether the address belongs to an internal domain
// (subdomains included) or a system mailbox such as noreply
func (c *Checker) IsInternal(from string) bool {
	local, domain, ok := split(from)
	if !ok {
		return false
	}

	for _, l := range c.locals {
		if local == l || strings.HasPrefix(local, l+"+") {
			return true
		}
	}

	for _, d := range c.domains {
		if domain == d || strings.HasSuffix(domain, "."+d) {
			c.logger.Debug("Sender is internal",
				zap.String("domain", domain),
				zap.String("email", from))
			return true
		}
	}

	return false
}

func split(addr string) (local, domain string, ok bool) {
	addr = strings.ToLower(strings.TrimSpace(addr))
	if i := strings.LastIndex(addr, "<"); i >= 0 {
		addr = strings.TrimSuffix(addr[i+1:], ">")
	}
	at := strings.LastIndex(addr, "@")
	if at <= 0 || at == len(addr)-1 {
		return "", "", false
	}
	return addr[:at], addr[at+1:], true
}

func normalize(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		s = strings.ToLower(strings.TrimSpace(s))
		if s != "" {
			out = append(out, s)
		}
	}
	return out
}
