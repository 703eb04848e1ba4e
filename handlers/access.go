package handlers

import (
	"fmt"
	"net/http"
	"net/netip"
	"strings"

	"github.com/gin-gonic/gin"
)

// AccessList restricts which client addresses may call the API. Deny entries win over
// allow entries; an empty allow list admits every address not denied.
type AccessList struct {
	allow []netip.Prefix
	deny  []netip.Prefix
}

// NewAccessList parses CIDRs or bare IPs. It returns nil when both lists are empty.
func NewAccessList(allow, deny []string) (*AccessList, error) {
	acl := &AccessList{}
	var err error
	if acl.allow, err = parsePrefixes(allow); err != nil {
		return nil, fmt.Errorf("invalid api_allow_cidrs: %w", err)
	}
	if acl.deny, err = parsePrefixes(deny); err != nil {
		return nil, fmt.Errorf("invalid api_deny_cidrs: %w", err)
	}
	if len(acl.allow) == 0 && len(acl.deny) == 0 {
		return nil, nil
	}
	return acl, nil
}

func parsePrefixes(list []string) ([]netip.Prefix, error) {
	var out []netip.Prefix
	for _, raw := range list {
		raw = strings.TrimSpace(raw)
		if raw == "" {
			continue
		}
		if strings.Contains(raw, "/") {
			p, err := netip.ParsePrefix(raw)
			if err != nil {
				return nil, fmt.Errorf("invalid CIDR %q", raw)
			}
			out = append(out, p.Masked())
			continue
		}
		addr, err := netip.ParseAddr(raw)
		if err != nil {
			return nil, fmt.Errorf("invalid IP %q", raw)
		}
		addr = addr.Unmap()
		out = append(out, netip.PrefixFrom(addr, addr.BitLen()))
	}
	return out, nil
}

// Allows reports whether ip may call the API. A nil list allows everything.
func (a *AccessList) Allows(ip string) bool {
	if a == nil {
		return true
	}
	addr, err := netip.ParseAddr(ip)
	if err != nil {
		return false
	}
	addr = addr.Unmap()

	for _, p := range a.deny {
		if p.Contains(addr) {
			return false
		}
	}
	if len(a.allow) == 0 {
		return true
	}
	for _, p := range a.allow {
		if p.Contains(addr) {
			return true
		}
	}
	return false
}

// AccessControl rejects requests from addresses acl does not allow.
func AccessControl(acl *AccessList) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !acl.Allows(c.ClientIP()) {
			writeError(c, http.StatusForbidden, CodeForbidden, "Client address not allowed", c.ClientIP())
			c.Abort()
			return
		}
		c.Next()
	}
}
