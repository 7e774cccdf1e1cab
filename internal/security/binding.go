package security

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"net"
	"strings"
)

// Binding is the one-way-hashed network/device context a token is bound to.
// Raw IP and user agent never leave the process boundary inside a token.
type Binding struct {
	IPHash string
	UAHash string
}

// NewBinding hashes the raw ip and user agent into a Binding. Empty inputs
// produce empty hashes; a Binding with both hashes empty means "unbound".
func NewBinding(ip, userAgent string) *Binding {
	b := &Binding{}
	if s := strings.TrimSpace(ip); s != "" {
		b.IPHash = hashValue(s)
	}
	if s := strings.TrimSpace(userAgent); s != "" {
		b.UAHash = hashValue(s)
	}
	return b
}

// Matches compares the binding against hashes carried in token claims, in
// constant time. A claim hash that is empty is not compared; a claim hash that
// is set must match.
func (b *Binding) Matches(ipHash, uaHash string) bool {
	if b == nil {
		return false
	}
	ok := 1
	if ipHash != "" {
		ok &= subtle.ConstantTimeCompare([]byte(b.IPHash), []byte(ipHash))
	}
	if uaHash != "" {
		ok &= subtle.ConstantTimeCompare([]byte(b.UAHash), []byte(uaHash))
	}
	return ok == 1
}

// DeviceFingerprint derives a stable fingerprint from the user agent and a
// coarsened IP, so a session survives address churn within the same network.
// IPv4 is truncated to /24, IPv6 to /48.
func DeviceFingerprint(ip, userAgent string) string {
	return hashValue(strings.TrimSpace(userAgent) + "|" + CoarseIP(ip))
}

// CoarseIP returns the network prefix of ip: /24 for IPv4, /48 for IPv6.
// Unparseable input is returned trimmed, so the fingerprint stays deterministic.
func CoarseIP(ip string) string {
	ip = strings.TrimSpace(ip)
	parsed := net.ParseIP(ip)
	if parsed == nil {
		return ip
	}
	if v4 := parsed.To4(); v4 != nil {
		return (&net.IPNet{IP: v4.Mask(net.CIDRMask(24, 32)), Mask: net.CIDRMask(24, 32)}).IP.String()
	}
	return (&net.IPNet{IP: parsed.Mask(net.CIDRMask(48, 128)), Mask: net.CIDRMask(48, 128)}).IP.String()
}

func hashValue(s string) string {
	h := sha256.Sum256([]byte(s))
	return hex.EncodeToString(h[:])
}
