package keys

import (
	"fmt"
)

func GenConversationMetaKey(convID string) (string, error) {
	if err := ValidateID(convID); err != nil {
		return "", err
	}
	return fmt.Sprintf(ConversationMetaKey, convID), nil
}

func GenMessageKey(convID string, ts int64, seq uint64) (string, error) {
	if err := ValidateID(convID); err != nil {
		return "", err
	}
	return fmt.Sprintf(MessageKey, convID, PadTS(ts), PadSeq(seq)), nil
}

func GenMessageIDKey(convID, msgID string) (string, error) {
	if err := ValidateID(convID); err != nil {
		return "", err
	}
	if err := ValidateID(msgID); err != nil {
		return "", err
	}
	return fmt.Sprintf(MessageIDKey, convID, msgID), nil
}

func GenTypingKey(convID, userID string) (string, error) {
	if err := ValidateID(convID); err != nil {
		return "", err
	}
	if err := ValidateUserID(userID); err != nil {
		return "", err
	}
	return fmt.Sprintf(TypingKey, convID, userID), nil
}

func GenReadKey(convID, userID string) (string, error) {
	if err := ValidateID(convID); err != nil {
		return "", err
	}
	if err := ValidateUserID(userID); err != nil {
		return "", err
	}
	return fmt.Sprintf(ReadKey, convID, userID), nil
}

func GenProfileKey(userID string) (string, error) {
	if err := ValidateUserID(userID); err != nil {
		return "", err
	}
	return fmt.Sprintf(ProfileKey, userID), nil
}

func GenUserInConversationKey(userID, convID string) (string, error) {
	if err := ValidateUserID(userID); err != nil {
		return "", err
	}
	if err := ValidateID(convID); err != nil {
		return "", err
	}
	return fmt.Sprintf(RelUserInConversation, userID, convID), nil
}

func GenMessagePrefix(convID string) (string, error) {
	if err := ValidateID(convID); err != nil {
		return "", err
	}
	return fmt.Sprintf(MessagePrefix, convID), nil
}

func GenTypingPrefix(convID string) (string, error) {
	if err := ValidateID(convID); err != nil {
		return "", err
	}
	return fmt.Sprintf(TypingPrefix, convID), nil
}

// helpers
func PadTS(ts int64) string {
	return fmt.Sprintf("%0*d", TSPadWidth, ts)
}

func PadSeq(seq uint64) string {
	return fmt.Sprintf("%0*d", SeqPadWidth, seq)
}
