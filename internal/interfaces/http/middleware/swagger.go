package middleware

import (
	"net"
	"net/http"
	"net/netip"

	"github.com/erp/posting/internal/interfaces/http/dto"
	"github.com/gin-gonic/gin"
)

// SwaggerConfig controls access to the API docs
type SwaggerConfig struct {
	Enabled bool
	// AllowedIPs lists addresses or CIDR ranges; empty allows everyone
	AllowedIPs []string
}

// SwaggerProtection hides the docs when disabled and restricts them to
// AllowedIPs otherwise. Unparsable entries are ignored.
func SwaggerProtection(cfg SwaggerConfig) gin.HandlerFunc {
	var prefixes []netip.Prefix
	for _, s := range cfg.AllowedIPs {
		if p, err := netip.ParsePrefix(s); err == nil {
			prefixes = append(prefixes, p.Masked())
			continue
		}
		if a, err := netip.ParseAddr(s); err == nil {
			prefixes = append(prefixes, netip.PrefixFrom(a.Unmap(), a.Unmap().BitLen()))
		}
	}

	return func(c *gin.Context) {
		if !cfg.Enabled {
			c.AbortWithStatusJSON(http.StatusNotFound, dto.NewErrorResponseWithRequestID(
				dto.ErrCodeRouteMissing, "API documentation is not available", GetRequestID(c)))
			return
		}
		if len(cfg.AllowedIPs) > 0 && !ipAllowed(clientAddr(c), prefixes) {
			c.AbortWithStatusJSON(http.StatusForbidden, dto.NewErrorResponseWithRequestID(
				dto.ErrCodeForbidden, "Access to API documentation is restricted", GetRequestID(c)))
			return
		}
		c.Next()
	}
}

func clientAddr(c *gin.Context) netip.Addr {
	if a, err := netip.ParseAddr(c.ClientIP()); err == nil {
		return a.Unmap()
	}
	host, _, err := net.SplitHostPort(c.Request.RemoteAddr)
	if err != nil {
		host = c.Request.RemoteAddr
	}
	a, _ := netip.ParseAddr(host)
	return a.Unmap()
}

func ipAllowed(a netip.Addr, prefixes []netip.Prefix) bool {
	if !a.IsValid() {
		return false
	}
	for _, p := range prefixes {
		if p.Contains(a) {
			return true
		}
	}
	return false
}
