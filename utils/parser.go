package utils

import (
	"fmt"
	"net"
	"strconv"
)

func ParsePort(s string) (uint64, error) {
	n, err := strconv.ParseUint(s, 10, 16)
	if err != nil {
		return 0, fmt.Errorf("invalid port %q: %v", s, err)
	}
	return n, nil
}

// SplitAddr splits "host:port" into its parts.
func SplitAddr(addr string) (string, uint64, error) {
	host, portStr, err := net.SplitHostPort(addr)
	if err != nil {
		return "", 0, fmt.Errorf("invalid addr %q: %w", addr, err)
	}
	port, err := ParsePort(portStr)
	if err != nil {
		return "", 0, err
	}
	return host, port, nil
}

// BumpPort returns addr with its port moved by delta.
func BumpPort(addr string, delta int) (string, error) {
	host, port, err := SplitAddr(addr)
	if err != nil {
		return "", err
	}
	moved := int(port) + delta
	if moved < 0 || moved > 0xFFFF {
		return "", fmt.Errorf("port %d%+d out of range", port, delta)
	}
	return net.JoinHostPort(host, strconv.Itoa(moved)), nil
}
