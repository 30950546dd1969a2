package db

import (
	"crypto/rand"
	"encoding/base64"
)

func generateUpdateKey() (string, error) {
	keybytes := make([]byte, 128/8)
	_, err := rand.Read(keybytes)
	if err != nil {
		return "", err
	}
	return base64.URLEncoding.EncodeToString(keybytes), nil
}
