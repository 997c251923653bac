package utils

import (
	"strings"
	"time"

	gonanoid "github.com/matoous/go-nanoid/v2"
)

const nanoIDAlphabet = "abcdefghijklmnopqrstuvwxyz0123456789"

func GenerateNanoIDWithPrefix(prefix string, size int) string {
	id, err := gonanoid.Generate(nanoIDAlphabet, size)
	if err != nil {
		panic(err)
	}
	if prefix == "" {
		return id
	}
	return prefix + "_" + id
}

func Now() time.Time {
	return time.Now().UTC()
}

func NormalizeMessageID(messageID string) string {
	messageID = strings.TrimSpace(messageID)
	messageID = strings.TrimPrefix(messageID, "<")
	messageID = strings.TrimSuffix(messageID, ">")
	return strings.TrimSpace(messageID)
}

// BuildMessageKey scopes a Message-Id to the pet it was delivered to, so an
// email copied to two pet aliases is processed once per pet.
func BuildMessageKey(messageID, petID string) string {
	return NormalizeMessageID(messageID) + "|" + petID
}
