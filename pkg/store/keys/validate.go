package keys

import (
	"errors"
	"fmt"
	"regexp"
)

var (
	// conservative ID validation: letters, digits, dot, underscore, dash
	// and a reasonable upper bound to protect DB key shapes.
	idRegexp = regexp.MustCompile(`^[A-Za-z0-9._-]{1,256}$`)
	// For keys, allow strict format matching
	messageKeyRegexp  = regexp.MustCompile(`^c:([A-Za-z0-9._-]{1,256}):m:([0-9]{1,20}):([0-9]{1,6})$`)
	convMetaKeyRegexp = regexp.MustCompile(`^c:([A-Za-z0-9._-]{1,256}):meta$`)
	typingKeyRegexp   = regexp.MustCompile(`^c:([A-Za-z0-9._-]{1,256}):typ:([A-Za-z0-9._-]{1,256})$`)
	readKeyRegexp     = regexp.MustCompile(`^c:([A-Za-z0-9._-]{1,256}):read:([A-Za-z0-9._-]{1,256})$`)
	profileKeyRegexp  = regexp.MustCompile(`^u:([A-Za-z0-9._-]{1,256}):profile$`)
	userConvRelRegexp = regexp.MustCompile(`^rel:u:([A-Za-z0-9._-]{1,256}):c:([A-Za-z0-9._-]{1,256})$`)
)

// ValidateID checks a conversation or message identifier.
func ValidateID(id string) error {
	if id == "" {
		return errors.New("id empty")
	}
	if !idRegexp.MatchString(id) {
		return fmt.Errorf("invalid id: %q", id)
	}
	return nil
}

func ValidateUserID(id string) error {
	if id == "" {
		return errors.New("user id empty")
	}
	if !idRegexp.MatchString(id) {
		return fmt.Errorf("invalid user id: %q", id)
	}
	return nil
}

// --- Key format validators ---

func ValidateMessageKey(key string) error {
	if !messageKeyRegexp.MatchString(key) {
		return fmt.Errorf("invalid message key format: %q", key)
	}
	return nil
}

func ValidateConversationMetaKey(key string) error {
	if !convMetaKeyRegexp.MatchString(key) {
		return fmt.Errorf("invalid conversation meta key format: %q", key)
	}
	return nil
}

func ValidateTypingKey(key string) error {
	if !typingKeyRegexp.MatchString(key) {
		return fmt.Errorf("invalid typing key format: %q", key)
	}
	return nil
}

func ValidateReadKey(key string) error {
	if !readKeyRegexp.MatchString(key) {
		return fmt.Errorf("invalid read key format: %q", key)
	}
	return nil
}

func ValidateProfileKey(key string) error {
	if !profileKeyRegexp.MatchString(key) {
		return fmt.Errorf("invalid profile key format: %q", key)
	}
	return nil
}

func ValidateUserInConversationKey(key string) error {
	if !userConvRelRegexp.MatchString(key) {
		return fmt.Errorf("invalid user conversation relation key format: %q", key)
	}
	return nil
}
