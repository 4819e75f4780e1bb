package models

// Credential is a short-lived signed value granting a participant access
// to a real-time audio channel at a given role.
type Credential struct {
	Token       string `json:"token"`
	ChannelName string `json:"channelName"`
	AppID       string `json:"appId"`
	UID         uint32 `json:"uid"`
	ExpiresIn   int    `json:"expiresIn"` // seconds
}
