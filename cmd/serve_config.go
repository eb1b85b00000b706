package cmd

import (
	"fmt"
	"log"
	"net"
	"net/url"
	"os"
	"strings"
)

// loadEnvIfEmpty loads an environment variable into target if it's still
// empty, matching the flag-wins-then-env-then-default resolution order
// used throughout this command.
func loadEnvIfEmpty(target *string, envKey string) {
	if *target == "" {
		*target = os.Getenv(envKey)
	}
}

// validateSecureURL validates that a URL uses HTTPS and does not resolve
// to a private or loopback address, guarding against SSRF when the
// identity-service URL is operator-supplied. allowPrivate skips both the
// HTTPS requirement and the IP check, for in-cluster identity services
// reached over plain HTTP at a ClusterIP; a hostname is still required.
func validateSecureURL(urlStr string, fieldName string, allowPrivate bool) error {
	if urlStr == "" {
		return fmt.Errorf("%s must be a valid URL: empty URL provided", fieldName)
	}

	parsedURL, err := url.Parse(urlStr)
	if err != nil {
		return fmt.Errorf("%s must be a valid URL: %w", fieldName, err)
	}

	if parsedURL.Scheme != "https" && !allowPrivate {
		if parsedURL.Scheme == "" {
			return fmt.Errorf("%s must be a valid URL with HTTPS scheme", fieldName)
		}
		return fmt.Errorf("%s must use HTTPS (got: %s)", fieldName, parsedURL.Scheme)
	}

	hostname := parsedURL.Hostname()
	if hostname == "" {
		return fmt.Errorf("%s must have a valid hostname", fieldName)
	}

	if allowPrivate {
		return nil
	}

	if strings.ToLower(hostname) == "localhost" {
		return fmt.Errorf("%s cannot use localhost", fieldName)
	}

	ips, err := net.LookupIP(hostname)
	if err != nil {
		log.Printf("[WARN] could not resolve %s (%s) to validate IP address: %v", fieldName, hostname, err)
		return nil
	}

	for _, ip := range ips {
		if isPrivateOrLoopbackIP(ip) {
			return fmt.Errorf("%s resolves to a private or loopback IP address (%s), which could be a security risk", fieldName, ip.String())
		}
	}

	return nil
}

// isPrivateOrLoopbackIP checks if an IP address is private, loopback, or link-local.
func isPrivateOrLoopbackIP(ip net.IP) bool {
	if ip.IsLoopback() {
		return true
	}
	if ip.IsLinkLocalUnicast() || ip.IsLinkLocalMulticast() {
		return true
	}
	if ip4 := ip.To4(); ip4 != nil {
		if ip4[0] == 10 {
			return true
		}
		if ip4[0] == 172 && ip4[1] >= 16 && ip4[1] <= 31 {
			return true
		}
		if ip4[0] == 192 && ip4[1] == 168 {
			return true
		}
	}
	if len(ip) == net.IPv6len && (ip[0] == 0xfc || ip[0] == 0xfd) {
		return true
	}
	return false
}
