package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"chat-service/model"
)

var ErrUnauthorized = errors.New("client: unauthorized")

// API is the REST client used by the synchronizer.
type API struct {
	baseURL string
	token   string
	http    *http.Client
}

func NewAPI(baseURL, accessToken string, httpClient *http.Client) *API {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &API{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		token:   accessToken,
		http:    httpClient,
	}
}

type response struct {
	StatusCode int             `json:"statusCode"`
	Data       json.RawMessage `json:"data"`
	Message    string          `json:"message"`
	Success    bool            `json:"success"`
}

func (a *API) do(ctx context.Context, method, path string, body any, out any) error {
	var r io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return err
		}
		r = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, a.baseURL+path, r)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+a.token)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := a.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized {
		return ErrUnauthorized
	}

	var env response
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return fmt.Errorf("client: decode %s %s: %w", method, path, err)
	}
	if resp.StatusCode >= 400 || !env.Success {
		return fmt.Errorf("client: %s %s: %d %s", method, path, resp.StatusCode, env.Message)
	}
	if out == nil || len(env.Data) == 0 {
		return nil
	}
	return json.Unmarshal(env.Data, out)
}

func (a *API) ListChats(ctx context.Context) ([]model.ChatPayload, error) {
	var chats []model.ChatPayload
	if err := a.do(ctx, http.MethodGet, "/api/v1/chats", nil, &chats); err != nil {
		return nil, err
	}
	return chats, nil
}

// ListMessages returns the chat's messages, newest first.
func (a *API) ListMessages(ctx context.Context, chatID string) ([]model.MessagePayload, error) {
	var messages []model.MessagePayload
	if err := a.do(ctx, http.MethodGet, "/api/v1/messages/"+chatID, nil, &messages); err != nil {
		return nil, err
	}
	return messages, nil
}

func (a *API) SendMessage(ctx context.Context, chatID, content string) (*model.MessagePayload, error) {
	message := new(model.MessagePayload)
	if err := a.do(ctx, http.MethodPost, "/api/v1/messages/"+chatID, map[string]string{"content": content}, message); err != nil {
		return nil, err
	}
	return message, nil
}

func (a *API) DeleteMessage(ctx context.Context, chatID, messageID string) (*model.MessagePayload, error) {
	message := new(model.MessagePayload)
	if err := a.do(ctx, http.MethodDelete, "/api/v1/messages/"+chatID+"/"+messageID, nil, message); err != nil {
		return nil, err
	}
	return message, nil
}
