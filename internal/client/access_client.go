package client

import (
	"context"
	"net/url"

	"messaging-service/internal/domain"
	"messaging-service/pkg/httpclient"
)

// AccessClient talks to the platform's access service (permission/role
// store + membership directory) over its internal HTTP API. It implements
// both access.PermissionClient and access.DirectoryClient.
type AccessClient struct {
	http *httpclient.Client
}

func NewAccessClient(baseURL string) *AccessClient {
	return &AccessClient{http: httpclient.New(baseURL)}
}

type boolResult struct {
	OK bool `json:"ok"`
}

type idsResult struct {
	IDs []string `json:"ids"`
}

func (c *AccessClient) HasPermissions(ctx context.Context, userID string, scope domain.AccessContext, perms []domain.Permission) (bool, error) {
	req := struct {
		UserID      string               `json:"userId,omitempty"`
		Scope       domain.AccessContext `json:"scope"`
		Permissions []domain.Permission  `json:"permissions"`
	}{UserID: userID, Scope: scope, Permissions: perms}

	var res boolResult
	if err := c.http.PostJSON(ctx, "/internal/v1/permissions/check", req, &res); err != nil {
		return false, err
	}
	return res.OK, nil
}

func (c *AccessClient) HasTrust(ctx context.Context, userID string, minimum int) (bool, error) {
	req := struct {
		UserID  string `json:"userId"`
		Minimum int    `json:"minimum"`
	}{UserID: userID, Minimum: minimum}

	var res boolResult
	if err := c.http.PostJSON(ctx, "/internal/v1/trust/check", req, &res); err != nil {
		return false, err
	}
	return res.OK, nil
}

func (c *AccessClient) ChatMembers(ctx context.Context, chatID string) ([]string, error) {
	var res idsResult
	if err := c.http.GetJSON(ctx, "/internal/v1/chats/"+url.PathEscape(chatID)+"/members", &res); err != nil {
		return nil, err
	}
	return res.IDs, nil
}

func (c *AccessClient) IsCommunityMember(ctx context.Context, communityID, userID string) (bool, error) {
	var res boolResult
	path := "/internal/v1/communities/" + url.PathEscape(communityID) + "/members/" + url.PathEscape(userID)
	if err := c.http.GetJSON(ctx, path, &res); err != nil {
		return false, err
	}
	return res.OK, nil
}

func (c *AccessClient) FilterCommunityMembers(ctx context.Context, communityID string, userIDs []string) ([]string, error) {
	req := struct {
		UserIDs []string `json:"userIds"`
	}{UserIDs: userIDs}

	var res idsResult
	path := "/internal/v1/communities/" + url.PathEscape(communityID) + "/members/filter"
	if err := c.http.PostJSON(ctx, path, req, &res); err != nil {
		return nil, err
	}
	return res.IDs, nil
}

func (c *AccessClient) RolesWithChannelRead(ctx context.Context, communityID, channelID string) ([]string, error) {
	var res idsResult
	path := "/internal/v1/communities/" + url.PathEscape(communityID) + "/channels/" + url.PathEscape(channelID) + "/reader-roles"
	if err := c.http.GetJSON(ctx, path, &res); err != nil {
		return nil, err
	}
	return res.IDs, nil
}

func (c *AccessClient) RolesWithCallRead(ctx context.Context, callID, channelID string) ([]string, error) {
	var res idsResult
	path := "/internal/v1/calls/" + url.PathEscape(callID) + "/reader-roles?channelId=" + url.QueryEscape(channelID)
	if err := c.http.GetJSON(ctx, path, &res); err != nil {
		return nil, err
	}
	return res.IDs, nil
}

func (c *AccessClient) ArticleExists(ctx context.Context, articleID string) (bool, error) {
	var res boolResult
	if err := c.http.GetJSON(ctx, "/internal/v1/articles/"+url.PathEscape(articleID)+"/exists", &res); err != nil {
		return false, err
	}
	return res.OK, nil
}
