package domain

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"
)

var (
	emailRegex  = regexp.MustCompile(`^[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}$`)
	handleRegex = regexp.MustCompile(`^[A-Za-z0-9_.]{1,30}$`)
)

const (
	MinPlayerNameLen = 2
	MaxPlayerNameLen = 40
	MaxGroupSize     = 20
)

// ValidateEmail checks if an email address is valid.
func ValidateEmail(email string) error {
	if email == "" {
		return fmt.Errorf("email is required")
	}
	if !emailRegex.MatchString(email) {
		return fmt.Errorf("invalid email format")
	}
	return nil
}

// NormalizePlayerName trims and validates a display name.
func NormalizePlayerName(name string) (string, error) {
	name = strings.Join(strings.Fields(name), " ")
	n := utf8.RuneCountInString(name)
	if n < MinPlayerNameLen || n > MaxPlayerNameLen {
		return "", fmt.Errorf("name must be %d-%d characters", MinPlayerNameLen, MaxPlayerNameLen)
	}
	return name, nil
}

// NormalizeHandle strips a leading @ and validates the social handle. Empty is allowed.
func NormalizeHandle(handle string) (string, error) {
	handle = strings.TrimPrefix(strings.TrimSpace(handle), "@")
	if handle == "" {
		return "", nil
	}
	if !handleRegex.MatchString(handle) {
		return "", fmt.Errorf("invalid handle %q", handle)
	}
	return handle, nil
}

// ValidateGroupSize checks that a group size is a positive integer within bounds.
func ValidateGroupSize(size int) error {
	if size < 1 || size > MaxGroupSize {
		return fmt.Errorf("group_size must be between 1 and %d, got %d", MaxGroupSize, size)
	}
	return nil
}

// ParseScore parses a submitted score, which must be a non-negative integer.
func ParseScore(raw string) (int64, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, fmt.Errorf("score is required")
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("score must be a whole number")
	}
	if v < 0 {
		return 0, fmt.Errorf("score must not be negative")
	}
	return v, nil
}
