package provider

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"github.com/waplink/waplink/internal/apperr"
	"github.com/waplink/waplink/internal/config"
)

// Codechat talks to a Codechat API deployment. The wire surface is a
// sibling of Evolution's with a different instance-create handshake.
type Codechat struct {
	engineClient
}

// NewCodechat creates the Codechat gateway.
func NewCodechat(cfg config.ProviderConfig) *Codechat {
	return &Codechat{engineClient: newEngineClient(cfg)}
}

func (c *Codechat) Name() string { return config.EngineCodechat }

func (c *Codechat) CreateInstance(ctx context.Context, id, description string) (*InstanceAuth, error) {
	body := map[string]any{
		"instanceName": id,
		"description":  description,
	}
	var resp struct {
		ID   string `json:"id"`
		Name string `json:"name"`
		Auth struct {
			ID    string `json:"id"`
			Token string `json:"token"`
		} `json:"Auth"`
	}
	if err := c.do(ctx, c.connect, http.MethodPost, "/instance/create", "", body, &resp); err != nil {
		return nil, err
	}
	if resp.Auth.Token == "" {
		return nil, apperr.Upstream("instance create: empty token in response", nil)
	}
	return &InstanceAuth{
		InstanceID: resp.Auth.ID,
		Token:      resp.Auth.Token,
	}, nil
}

func (c *Codechat) DeleteInstance(ctx context.Context, id, token string) error {
	return c.do(ctx, c.connect, http.MethodDelete, "/instance/delete/"+url.PathEscape(id), token, nil, nil)
}

func (c *Codechat) GetPairingPayload(ctx context.Context, id, token string) (*PairingPayload, error) {
	var resp PairingPayload
	if err := c.do(ctx, c.connect, http.MethodGet, "/instance/connect/"+url.PathEscape(id), token, nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *Codechat) GetConnectionState(ctx context.Context, id, token string) (string, error) {
	var resp struct {
		Instance struct {
			State string `json:"state"`
		} `json:"instance"`
		// Older Codechat builds report the state at the top level.
		State string `json:"state"`
	}
	if err := c.do(ctx, c.detail, http.MethodGet, "/instance/connectionState/"+url.PathEscape(id), token, nil, &resp); err != nil {
		return "", err
	}
	if resp.Instance.State != "" {
		return resp.Instance.State, nil
	}
	return resp.State, nil
}

func (c *Codechat) ListChats(ctx context.Context, id, token string) ([]RawChat, error) {
	var resp []struct {
		ID        string `json:"id"`
		RemoteJID string `json:"remoteJid"`
	}
	if err := c.do(ctx, c.connect, http.MethodGet, "/chat/findChats/"+url.PathEscape(id), token, nil, &resp); err != nil {
		return nil, err
	}

	chats := make([]RawChat, 0, len(resp))
	for _, entry := range resp {
		if entry.RemoteJID == "" {
			continue
		}
		chats = append(chats, RawChat{
			ExternalID:  entry.RemoteJID,
			IsGroupHint: IsGroupJID(entry.RemoteJID),
		})
	}
	return chats, nil
}

func (c *Codechat) GetGroupDetail(ctx context.Context, id, token, externalID string) (*ChatDetail, error) {
	if err := c.waitDetail(ctx); err != nil {
		return nil, err
	}

	path := fmt.Sprintf("/group/findGroupInfos/%s?groupJid=%s", url.PathEscape(id), url.QueryEscape(externalID))
	var resp struct {
		ID      string `json:"id"`
		Subject string `json:"subject"`
	}
	if err := c.do(ctx, c.detail, http.MethodGet, path, token, nil, &resp); err != nil {
		return nil, err
	}
	if resp.ID == "" {
		return nil, apperr.Upstream("group detail: empty id for "+externalID, nil)
	}
	return &ChatDetail{ExternalID: resp.ID, DisplayName: resp.Subject}, nil
}

func (c *Codechat) LookupContact(ctx context.Context, id, token, externalID string) (*ChatDetail, error) {
	if err := c.waitDetail(ctx); err != nil {
		return nil, err
	}

	body := map[string]any{
		"where": map[string]any{"remoteJid": externalID},
	}
	var resp []struct {
		RemoteJID string `json:"remoteJid"`
		PushName  string `json:"pushName"`
	}
	if err := c.do(ctx, c.detail, http.MethodPost, "/chat/findContacts/"+url.PathEscape(id), token, body, &resp); err != nil {
		return nil, err
	}
	if len(resp) == 0 {
		return nil, apperr.Upstream("contact lookup: no match for "+externalID, nil)
	}
	return &ChatDetail{ExternalID: resp[0].RemoteJID, DisplayName: resp[0].PushName}, nil
}

func (c *Codechat) FetchAllGroups(ctx context.Context, id, token string) ([]ChatDetail, error) {
	path := fmt.Sprintf("/group/fetchAllGroups/%s?getParticipants=false", url.PathEscape(id))
	var resp []struct {
		ID      string `json:"id"`
		Subject string `json:"subject"`
	}
	if err := c.do(ctx, c.connect, http.MethodGet, path, token, nil, &resp); err != nil {
		return nil, err
	}

	groups := make([]ChatDetail, 0, len(resp))
	for _, g := range resp {
		if g.ID == "" {
			continue
		}
		groups = append(groups, ChatDetail{ExternalID: g.ID, DisplayName: g.Subject})
	}
	return groups, nil
}

func (c *Codechat) SendText(ctx context.Context, id, token string, msg TextMessage) error {
	return c.do(ctx, c.connect, http.MethodPost, "/message/sendText/"+url.PathEscape(id), token, msg, nil)
}

func (c *Codechat) SendMedia(ctx context.Context, id, token string, msg MediaMessage) error {
	return c.do(ctx, c.connect, http.MethodPost, "/message/sendMedia/"+url.PathEscape(id), token, msg, nil)
}
