package models

// Location is a WGS-84 coordinate pair.
type Location struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// Token is the rotating credential a presenter issues to prove co-presence.
// It is serialized to JSON and rendered as a QR code by the presenter UI.
// The nonce only guarantees uniqueness per emission so downstream rendering
// never caches a stale image; the verifier does not check it.
type Token struct {
	Location Location `json:"location"`
	IssuedAt int64    `json:"issuedAt"` // epoch millis
	Nonce    string   `json:"nonce,omitempty"`
}
