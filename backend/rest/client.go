////////////////////////////////////////////////////////////////////////////////
// Copyright © 2022 xx foundation                                             //
//                                                                            //
// Use of this source code is governed by a license that can be found in the  //
// LICENSE file.                                                              //
////////////////////////////////////////////////////////////////////////////////

// Package rest is a backend.Backend reached over HTTP.
package rest

import (
	"context"
	"encoding/json"
	"net/url"
	"strings"
	"time"

	"github.com/pkg/errors"
	jww "github.com/spf13/jwalterweatherman"
	"github.com/valyala/fasthttp"

	"gitlab.com/elixxir/chatsync/backend"
	"gitlab.com/elixxir/chatsync/models"
	"gitlab.com/elixxir/chatsync/wallet"
)

// Error messages.
const (
	requestErr = "%s %s failed: %+v"
	statusErr  = "%s %s returned %d: %s"
	decodeErr  = "failed to decode response of %s %s: %+v"
	encodeErr  = "failed to encode request to %s: %+v"
)

const (
	defaultTimeout = 10 * time.Second
	clientName     = "chatsync"
)

// Params contains the parameters of the Client.
type Params struct {
	// Timeout bounds each request when the context has no earlier deadline.
	Timeout time.Duration
}

// GetDefaultParams returns a Params object filled with the default values.
func GetDefaultParams() Params {
	return Params{Timeout: defaultTimeout}
}

// Client implements backend.Backend against the HTTP API served by the
// backend/server package.
type Client struct {
	baseURL string
	http    *fasthttp.Client
	params  Params
}

// NewClient returns a Client for the API at the base URL.
func NewClient(baseURL string, params Params) *Client {
	if params.Timeout <= 0 {
		params.Timeout = defaultTimeout
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http: &fasthttp.Client{
			Name:         clientName,
			ReadTimeout:  params.Timeout,
			WriteTimeout: params.Timeout,
		},
		params: params,
	}
}

// ListServers returns the servers the wallet is a member of.
func (c *Client) ListServers(ctx context.Context, member wallet.Address) (
	[]models.Server, error) {
	var servers []models.Server
	path := "/servers?member=" + url.QueryEscape(string(member))
	err := c.do(ctx, fasthttp.MethodGet, path, nil, "", &servers)
	return servers, err
}

// ListChannels returns the channels of the server.
func (c *Client) ListChannels(ctx context.Context, serverID string) (
	[]models.Channel, error) {
	var channels []models.Channel
	path := "/servers/" + url.PathEscape(serverID) + "/channels"
	err := c.do(ctx, fasthttp.MethodGet, path, nil, "", &channels)
	return channels, err
}

// GetChannel returns the channel.
func (c *Client) GetChannel(ctx context.Context, channelID string) (
	models.Channel, error) {
	var ch models.Channel
	err := c.do(ctx, fasthttp.MethodGet, "/channels/"+url.PathEscape(channelID),
		nil, "", &ch)
	return ch, err
}

// ListMembers returns the roster of the server.
func (c *Client) ListMembers(ctx context.Context, serverID string) (
	[]models.ServerMember, error) {
	var members []models.ServerMember
	path := "/servers/" + url.PathEscape(serverID) + "/members"
	err := c.do(ctx, fasthttp.MethodGet, path, nil, "", &members)
	return members, err
}

// GetProfile returns the profile of the wallet.
func (c *Client) GetProfile(ctx context.Context, w wallet.Address) (
	models.Profile, error) {
	var p models.Profile
	err := c.do(ctx, fasthttp.MethodGet, "/profiles/"+url.PathEscape(string(w)),
		nil, "", &p)
	return p, err
}

// UpdateChannelGroup binds the channel to the group on behalf of the actor.
func (c *Client) UpdateChannelGroup(ctx context.Context, channelID,
	groupID string, actor wallet.Address) error {
	body, err := json.Marshal(struct {
		GroupID string `json:"groupId"`
	}{groupID})
	if err != nil {
		return errors.Errorf(encodeErr, channelID, err)
	}
	return c.do(ctx, fasthttp.MethodPatch, "/channels/"+url.PathEscape(channelID),
		body, actor, nil)
}

// do sends the request and decodes a successful response into out. Error
// statuses are mapped back onto the backend errors.
func (c *Client) do(ctx context.Context, method, path string, body []byte,
	actor wallet.Address, out interface{}) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	jww.TRACE.Printf("[REST] %s %s", method, path)

	req := fasthttp.AcquireRequest()
	defer fasthttp.ReleaseRequest(req)
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseResponse(resp)

	req.SetRequestURI(c.baseURL + path)
	req.Header.SetMethod(method)
	req.Header.Set(fasthttp.HeaderAccept, "application/json")
	if actor != "" {
		req.Header.Set(backend.WalletHeader, string(actor))
	}
	if body != nil {
		req.Header.SetContentType("application/json")
		req.SetBody(body)
	}

	deadline := time.Now().Add(c.params.Timeout)
	if ctxDeadline, ok := ctx.Deadline(); ok && ctxDeadline.Before(deadline) {
		deadline = ctxDeadline
	}
	if err := c.http.DoDeadline(req, resp, deadline); err != nil {
		return errors.Errorf(requestErr, method, path, err)
	}

	status := resp.StatusCode()
	if status >= fasthttp.StatusBadRequest {
		return statusError(method, path, status, resp.Body())
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(resp.Body(), out); err != nil {
		return errors.Errorf(decodeErr, method, path, err)
	}
	return nil
}

func statusError(method, path string, status int, body []byte) error {
	var msg struct {
		Error string `json:"error"`
	}
	if json.Unmarshal(body, &msg) != nil || msg.Error == "" {
		msg.Error = strings.TrimSpace(string(body))
	}

	switch status {
	case fasthttp.StatusNotFound:
		return errors.WithMessagef(backend.ErrNotFound, "%s %s", method, path)
	case fasthttp.StatusForbidden:
		return errors.WithMessagef(backend.ErrForbidden, "%s %s", method, path)
	case fasthttp.StatusConflict:
		return errors.WithMessagef(backend.ErrGroupAlreadySet, "%s %s", method, path)
	default:
		return errors.Errorf(statusErr, method, path, status, msg.Error)
	}
}
