package provider

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"github.com/waplink/waplink/internal/apperr"
	"github.com/waplink/waplink/internal/config"
)

// Evolution talks to an Evolution API deployment. Instances are created
// with the Baileys integration and no full-history sync; roster sync is
// waplink's job.
type Evolution struct {
	engineClient
}

// NewEvolution creates the Evolution gateway.
func NewEvolution(cfg config.ProviderConfig) *Evolution {
	return &Evolution{engineClient: newEngineClient(cfg)}
}

func (e *Evolution) Name() string { return config.EngineEvolution }

func (e *Evolution) CreateInstance(ctx context.Context, id, description string) (*InstanceAuth, error) {
	body := map[string]any{
		"instanceName":    id,
		"integration":     "WHATSAPP-BAILEYS",
		"syncFullHistory": false,
	}
	var resp struct {
		Instance struct {
			InstanceID string `json:"instanceId"`
			Status     string `json:"status"`
		} `json:"instance"`
		Hash struct {
			APIKey string `json:"apikey"`
		} `json:"hash"`
	}
	if err := e.do(ctx, e.connect, http.MethodPost, "/instance/create", "", body, &resp); err != nil {
		return nil, err
	}
	if resp.Hash.APIKey == "" {
		return nil, apperr.Upstream("instance create: empty apikey in response", nil)
	}
	return &InstanceAuth{
		InstanceID: resp.Instance.InstanceID,
		Token:      resp.Hash.APIKey,
	}, nil
}

func (e *Evolution) DeleteInstance(ctx context.Context, id, token string) error {
	return e.do(ctx, e.connect, http.MethodDelete, "/instance/delete/"+url.PathEscape(id), token, nil, nil)
}

func (e *Evolution) GetPairingPayload(ctx context.Context, id, token string) (*PairingPayload, error) {
	var resp PairingPayload
	if err := e.do(ctx, e.connect, http.MethodGet, "/instance/connect/"+url.PathEscape(id), token, nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (e *Evolution) GetConnectionState(ctx context.Context, id, token string) (string, error) {
	var resp struct {
		Instance struct {
			State string `json:"state"`
		} `json:"instance"`
	}
	if err := e.do(ctx, e.detail, http.MethodGet, "/instance/connectionState/"+url.PathEscape(id), token, nil, &resp); err != nil {
		return "", err
	}
	return resp.Instance.State, nil
}

func (e *Evolution) ListChats(ctx context.Context, id, token string) ([]RawChat, error) {
	var resp []struct {
		ID        string `json:"id"`
		RemoteJID string `json:"remoteJid"`
	}
	if err := e.do(ctx, e.connect, http.MethodGet, "/chat/findChats/"+url.PathEscape(id), token, nil, &resp); err != nil {
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

func (e *Evolution) GetGroupDetail(ctx context.Context, id, token, externalID string) (*ChatDetail, error) {
	if err := e.waitDetail(ctx); err != nil {
		return nil, err
	}

	path := fmt.Sprintf("/group/findGroupInfos/%s?groupJid=%s", url.PathEscape(id), url.QueryEscape(externalID))
	var resp struct {
		ID       string `json:"id"`
		Subject  string `json:"subject"`
		PushName string `json:"pushName"`
	}
	if err := e.do(ctx, e.detail, http.MethodGet, path, token, nil, &resp); err != nil {
		return nil, err
	}
	if resp.ID == "" {
		return nil, apperr.Upstream("group detail: empty id for "+externalID, nil)
	}

	name := resp.Subject
	if name == "" {
		name = resp.PushName
	}
	return &ChatDetail{ExternalID: resp.ID, DisplayName: name}, nil
}

func (e *Evolution) LookupContact(ctx context.Context, id, token, externalID string) (*ChatDetail, error) {
	if err := e.waitDetail(ctx); err != nil {
		return nil, err
	}

	body := map[string]any{
		"where": map[string]any{"remoteJid": externalID},
	}
	var resp []struct {
		RemoteJID string `json:"remoteJid"`
		PushName  string `json:"pushName"`
	}
	if err := e.do(ctx, e.detail, http.MethodPost, "/chat/findContacts/"+url.PathEscape(id), token, body, &resp); err != nil {
		return nil, err
	}
	if len(resp) == 0 {
		return nil, apperr.Upstream("contact lookup: no match for "+externalID, nil)
	}
	return &ChatDetail{ExternalID: resp[0].RemoteJID, DisplayName: resp[0].PushName}, nil
}

func (e *Evolution) FetchAllGroups(ctx context.Context, id, token string) ([]ChatDetail, error) {
	path := fmt.Sprintf("/group/fetchAllGroups/%s?getParticipants=false", url.PathEscape(id))
	var resp []struct {
		ID      string `json:"id"`
		Subject string `json:"subject"`
	}
	if err := e.do(ctx, e.connect, http.MethodGet, path, token, nil, &resp); err != nil {
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

func (e *Evolution) SendText(ctx context.Context, id, token string, msg TextMessage) error {
	return e.do(ctx, e.connect, http.MethodPost, "/message/sendText/"+url.PathEscape(id), token, msg, nil)
}

func (e *Evolution) SendMedia(ctx context.Context, id, token string, msg MediaMessage) error {
	return e.do(ctx, e.connect, http.MethodPost, "/message/sendMedia/"+url.PathEscape(id), token, msg, nil)
}
