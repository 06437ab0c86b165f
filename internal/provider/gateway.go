// Package provider abstracts the WhatsApp-compatible HTTP engines
// (Evolution, Codechat) behind a single Gateway interface. The engine is
// chosen once at construction from configuration; callers never see
// engine-specific wire shapes.
package provider

import (
	"context"
	"fmt"
	"strings"

	"github.com/waplink/waplink/internal/config"
)

// StateOpen is the engine's "connection is live" state.
const StateOpen = "open"

// InstanceAuth is the credential pair issued when an instance is created.
type InstanceAuth struct {
	InstanceID string `json:"instance_id"`
	Token      string `json:"token"`
}

// PairingPayload is the opaque pairing material handed to the end user.
// Code is the QR image data, PairingCode the numeric fallback, Count the
// engine's refresh counter.
type PairingPayload struct {
	Code        string `json:"code"`
	PairingCode string `json:"pairingCode"`
	Count       int    `json:"count"`
}

// RawChat is one entry of the engine's unresolved chat list.
type RawChat struct {
	ExternalID  string `json:"external_id"`
	IsGroupHint bool   `json:"is_group_hint"`
}

// ChatDetail is a fully resolved group or contact identity.
type ChatDetail struct {
	ExternalID  string `json:"external_id"`
	DisplayName string `json:"display_name"`
}

// TextMessage is an outbound text send.
type TextMessage struct {
	Number           string `json:"number"`
	Text             string `json:"text"`
	Delay            int    `json:"delay,omitempty"`
	LinkPreview      bool   `json:"linkPreview,omitempty"`
	MentionsEveryone bool   `json:"mentionsEveryOne,omitempty"`
}

// MediaMessage is an outbound media send. Media is a URL or base64 blob,
// passed through to the engine untouched.
type MediaMessage struct {
	Number    string `json:"number"`
	MediaType string `json:"mediatype"`
	Media     string `json:"media"`
	Caption   string `json:"caption,omitempty"`
	FileName  string `json:"fileName,omitempty"`
}

// Gateway is the provider abstraction consumed by the session manager and
// the chat sync pipeline. Every call takes the instance id (the connection
// id) and, where the engine requires it, the per-instance token.
type Gateway interface {
	Name() string

	CreateInstance(ctx context.Context, id, description string) (*InstanceAuth, error)
	DeleteInstance(ctx context.Context, id, token string) error

	GetPairingPayload(ctx context.Context, id, token string) (*PairingPayload, error)
	GetConnectionState(ctx context.Context, id, token string) (string, error)

	ListChats(ctx context.Context, id, token string) ([]RawChat, error)
	GetGroupDetail(ctx context.Context, id, token, externalID string) (*ChatDetail, error)
	LookupContact(ctx context.Context, id, token, externalID string) (*ChatDetail, error)
	// FetchAllGroups is the bulk fast path: one call returning every
	// group the instance participates in.
	FetchAllGroups(ctx context.Context, id, token string) ([]ChatDetail, error)

	SendText(ctx context.Context, id, token string, msg TextMessage) error
	SendMedia(ctx context.Context, id, token string, msg MediaMessage) error
}

// New selects and constructs the gateway for the configured engine.
func New(cfg *config.Config) (Gateway, error) {
	switch strings.ToLower(cfg.Engine) {
	case config.EngineEvolution:
		return NewEvolution(cfg.Evolution), nil
	case config.EngineCodechat:
		return NewCodechat(cfg.Codechat), nil
	default:
		return nil, fmt.Errorf("unknown engine %q", cfg.Engine)
	}
}
