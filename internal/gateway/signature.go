package gateway

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// PaymentSignature returns hex(HMAC-SHA256(secret, orderID + "|" + paymentID)),
// the proof a gateway hands the client after a successful checkout.
func PaymentSignature(secret, orderID, paymentID string) string {
	return sign(secret, []byte(orderID+"|"+paymentID))
}

// VerifyPayment reports whether signature is the proof for (orderID,
// paymentID). The comparison is constant time.
func VerifyPayment(secret, orderID, paymentID, signature string) bool {
	expected := PaymentSignature(secret, orderID, paymentID)
	return hmac.Equal([]byte(expected), []byte(strings.ToLower(strings.TrimSpace(signature))))
}

// BodySignature returns hex(HMAC-SHA256(secret, body)) for webhook envelopes.
func BodySignature(secret string, body []byte) string {
	return sign(secret, body)
}

// VerifyBody reports whether signature authenticates body.
func VerifyBody(secret string, body []byte, signature string) bool {
	expected := BodySignature(secret, body)
	return hmac.Equal([]byte(expected), []byte(strings.ToLower(strings.TrimSpace(signature))))
}

func sign(secret string, msg []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	_, _ = mac.Write(msg)
	return hex.EncodeToString(mac.Sum(nil))
}
