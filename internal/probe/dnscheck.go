package probe

import (
	"context"
	"errors"
	"net"
	"strings"
	"time"
)

// DNS classes appended to a CONNECTION ERROR reason to tell "the name does
// not exist" apart from "the host is there but unreachable".
const (
	DNSResolves    = "RESOLVES"
	DNSNxDomain    = "NXDOMAIN"
	DNSNoARecord   = "NO_A_RECORD"
	DNSServFail    = "SERVFAIL_or_TIMEOUT"
	DNSInvalidName = "INVALID_NAME"
)

var dnsTimeout = 3 * time.Second

// DNSClassifier resolves a hostname and buckets the outcome into one of the
// DNS classes above. Implemented by ResolverClassifier; faked in tests.
type DNSClassifier interface {
	Classify(ctx context.Context, host string) string
}

// ResolverClassifier classifies via the OS resolver.
type ResolverClassifier struct {
	Resolver *net.Resolver
}

func NewResolverClassifier() *ResolverClassifier {
	return &ResolverClassifier{Resolver: &net.Resolver{}}
}

func (c *ResolverClassifier) Classify(ctx context.Context, host string) string {
	host = strings.TrimSpace(host)
	if host == "" || strings.Contains(host, "://") {
		return DNSInvalidName
	}

	ctx, cancel := context.WithTimeout(ctx, dnsTimeout)
	defer cancel()

	ips, err := c.Resolver.LookupIP(ctx, "ip", host)
	if err == nil && len(ips) > 0 {
		return DNSResolves
	}

	class := ""
	if err != nil {
		var de *net.DNSError
		if errors.As(err, &de) {
			if de.IsNotFound {
				class = DNSNxDomain
			} else if de.IsTemporary || de.Timeout() {
				class = DNSServFail
			}
		}
	}

	// A zone with nameservers but no address records is a different failure
	// than a name that does not exist at all.
	if ns, nsErr := c.Resolver.LookupNS(ctx, host); nsErr == nil && len(ns) > 0 {
		if class == DNSNxDomain || class == "" {
			return DNSNoARecord
		}
	}

	if class == "" {
		class = DNSServFail
	}
	return class
}
