package keys

import (
	"fmt"
	"strconv"
	"strings"
)

type MessageKeyParts struct {
	ConvID string
	TS     int64
	Seq    uint64
}

type TypingKeyParts struct {
	ConvID string
	UserID string
}

type ReadKeyParts struct {
	ConvID string
	UserID string
}

func parsePaddedInt(s string, width int) (int64, error) {
	if len(s) == 0 || len(s) > width {
		return 0, fmt.Errorf("length invalid: %s", s)
	}
	trimmed := strings.TrimLeft(s, "0")
	if trimmed == "" {
		return 0, nil
	}
	v, err := strconv.ParseInt(trimmed, 10, 64)
	if err != nil {
		return 0, err
	}
	return v, nil
}

func parsePaddedUint(s string, width int) (uint64, error) {
	if len(s) == 0 || len(s) > width {
		return 0, fmt.Errorf("length invalid: %s", s)
	}
	trimmed := strings.TrimLeft(s, "0")
	if trimmed == "" {
		return 0, nil
	}
	v, err := strconv.ParseUint(trimmed, 10, 64)
	if err != nil {
		return 0, err
	}
	return v, nil
}

func ParseMessageKey(key string) (*MessageKeyParts, error) {
	parts := strings.Split(key, ":")
	if len(parts) != 5 || parts[0] != "c" || parts[2] != "m" {
		return nil, fmt.Errorf("invalid message storage key: %s", key)
	}
	ts, err := parsePaddedInt(parts[3], TSPadWidth)
	if err != nil {
		return nil, fmt.Errorf("invalid message key timestamp: %w", err)
	}
	seq, err := parsePaddedUint(parts[4], SeqPadWidth)
	if err != nil {
		return nil, fmt.Errorf("invalid message key sequence: %w", err)
	}
	return &MessageKeyParts{ConvID: parts[1], TS: ts, Seq: seq}, nil
}

func ParseConversationMetaKey(key string) (string, error) {
	parts := strings.Split(key, ":")
	if len(parts) != 3 || parts[0] != "c" || parts[2] != "meta" {
		return "", fmt.Errorf("invalid conversation meta key: %s", key)
	}
	return parts[1], nil
}

func ParseTypingKey(key string) (*TypingKeyParts, error) {
	parts := strings.Split(key, ":")
	if len(parts) != 4 || parts[0] != "c" || parts[2] != "typ" {
		return nil, fmt.Errorf("invalid typing key: %s", key)
	}
	return &TypingKeyParts{ConvID: parts[1], UserID: parts[3]}, nil
}

func ParseReadKey(key string) (*ReadKeyParts, error) {
	parts := strings.Split(key, ":")
	if len(parts) != 4 || parts[0] != "c" || parts[2] != "read" {
		return nil, fmt.Errorf("invalid read key: %s", key)
	}
	return &ReadKeyParts{ConvID: parts[1], UserID: parts[3]}, nil
}

func ParseProfileKey(key string) (string, error) {
	parts := strings.Split(key, ":")
	if len(parts) != 3 || parts[0] != "u" || parts[2] != "profile" {
		return "", fmt.Errorf("invalid profile key: %s", key)
	}
	return parts[1], nil
}

func ParseUserInConversationKey(key string) (userID, convID string, err error) {
	parts := strings.Split(key, ":")
	if len(parts) != 5 || parts[0] != "rel" || parts[1] != "u" || parts[3] != "c" {
		return "", "", fmt.Errorf("invalid user conversation relation key: %s", key)
	}
	return parts[2], parts[4], nil
}

func ParseKeyTimestamp(s string) (int64, error) {
	return parsePaddedInt(s, TSPadWidth)
}

func ParseKeySequence(s string) (uint64, error) {
	return parsePaddedUint(s, SeqPadWidth)
}
