package service

import (
	"crypto/md5"
	"encoding/hex"
	"errors"
)

// Action tokens appended to the signing string per Digiflazz endpoint
const (
	ActionPriceList   = "pricelist"
	ActionTopup       = "topup"
	ActionCheckStatus = "checkstatus"
)

// Sign returns hex(md5(username + key + action)). It never produces a
// credential when any input is missing or hashing fails.
func Sign(username, key, action string) (string, error) {
	switch {
	case username == "":
		return "", credentialError("sign", errors.New("username is empty"))
	case key == "":
		return "", credentialError("sign", errors.New("api key is empty"))
	case action == "":
		return "", credentialError("sign", errors.New("action is empty"))
	}

	h := md5.New()
	if _, err := h.Write([]byte(username + key + action)); err != nil {
		return "", credentialError("sign", err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
