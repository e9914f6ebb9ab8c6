// Package workspace is a client for a chat-workspace Web API: resolving
// the user and channel directories, sending direct messages, and
// managing channel lifecycle (create, invite, purpose, topic).
//
// Directory lookups are deliberately uncached: every call re-derives
// its mapping from the API, so callers that need a stable view must
// snapshot the returned map themselves.
package workspace

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/c360studio/courseops/rest"
)

// DefaultBaseURL is the workspace Web API root used when no override is
// given.
const DefaultBaseURL = "https://slack.com/api"

var (
	// ErrUnknownChannel reports a channel name with no match in the
	// workspace directory at call time.
	ErrUnknownChannel = errors.New("unknown channel")
	// ErrUnknownUser reports a username with no match in the workspace
	// directory at call time.
	ErrUnknownUser = errors.New("unknown user")
)

// Account is a client for one workspace, authenticated by a bearer API
// token.
type Account struct {
	token     string
	baseURL   string
	sleepTime time.Duration
	client    *rest.Client
	logger    *slog.Logger

	// sleep is swapped out in tests.
	sleep func(time.Duration)
}

// Option configures an Account.
type Option func(*Account)

// WithBaseURL points the account at a different API root.
func WithBaseURL(baseURL string) Option {
	return func(a *Account) {
		a.baseURL = strings.TrimSuffix(baseURL, "/")
	}
}

// WithSleepTime sets the flat pause inserted between the calls of the
// channel-setup choreography.
func WithSleepTime(d time.Duration) Option {
	return func(a *Account) {
		a.sleepTime = d
	}
}

// WithRESTClient sets the underlying REST client.
func WithRESTClient(c *rest.Client) Option {
	return func(a *Account) {
		a.client = c
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(a *Account) {
		a.logger = logger
	}
}

// New creates an Account for the workspace reachable with token.
func New(token string, opts ...Option) *Account {
	a := &Account{
		token:     token,
		baseURL:   DefaultBaseURL,
		sleepTime: time.Second,
		logger:    slog.Default(),
		sleep:     time.Sleep,
	}
	for _, opt := range opts {
		opt(a)
	}
	if a.client == nil {
		a.client = rest.NewClient(rest.WithLogger(a.logger))
	}
	return a
}

func (a *Account) endpoint(method string) string {
	return a.baseURL + "/" + method
}

func (a *Account) authHeader() http.Header {
	return http.Header{"Authorization": []string{"Bearer " + a.token}}
}

// call issues one RPC-style POST. The API signals failures in-band with
// an "ok": false body, which call surfaces as an error.
func (a *Account) call(ctx context.Context, method string, in, out any) error {
	var payload []byte
	header := a.authHeader()
	if in != nil {
		var err error
		payload, err = json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode %s request: %w", method, err)
		}
		header.Set("Content-Type", "application/json")
	}

	_, body, err := a.client.Do(ctx, http.MethodPost, a.endpoint(method), header, payload)
	if err != nil {
		return fmt.Errorf("%s: %w", method, err)
	}

	var status struct {
		OK    *bool  `json:"ok"`
		Error string `json:"error"`
	}
	if err := json.Unmarshal(body, &status); err != nil {
		return fmt.Errorf("decode %s response: %w", method, err)
	}
	if status.OK != nil && !*status.OK {
		return fmt.Errorf("%s: API error %q", method, status.Error)
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("decode %s response: %w", method, err)
	}
	return nil
}

// UserIDs returns the username to user-id mapping for the workspace.
func (a *Account) UserIDs(ctx context.Context) (map[string]string, error) {
	var resp struct {
		Members []User `json:"members"`
	}
	if err := a.call(ctx, "users.list", nil, &resp); err != nil {
		return nil, err
	}

	ids := make(map[string]string, len(resp.Members))
	for _, user := range resp.Members {
		ids[user.Name] = user.ID
	}
	return ids, nil
}

// UserDMChannels returns the username to direct-message channel-id
// mapping. Users without an open DM channel map to the empty string.
func (a *Account) UserDMChannels(ctx context.Context) (map[string]string, error) {
	var resp struct {
		IMs []DMChannel `json:"ims"`
	}
	if err := a.call(ctx, "im.list", nil, &resp); err != nil {
		return nil, err
	}

	byUserID := make(map[string]string, len(resp.IMs))
	for _, dm := range resp.IMs {
		byUserID[dm.User] = dm.ID
	}

	users, err := a.UserIDs(ctx)
	if err != nil {
		return nil, err
	}

	channels := make(map[string]string, len(users))
	for name, id := range users {
		channels[name] = byUserID[id]
	}
	return channels, nil
}

// DirectMessageByUsername sends one direct message per entry of
// messages, keyed by username. It resolves DM channels once, then
// issues one send per entry, returning the sent text keyed by the
// resolved channel id so callers can verify what was delivered where.
//
// The first failed send aborts the remaining entries; messages already
// sent stay sent and are present in the returned map alongside the
// error.
func (a *Account) DirectMessageByUsername(ctx context.Context, messages map[string]string) (map[string]string, error) {
	channels, err := a.UserDMChannels(ctx)
	if err != nil {
		return nil, err
	}

	sent := make(map[string]string, len(messages))
	for username, text := range messages {
		channel, ok := channels[username]
		if !ok {
			return sent, fmt.Errorf("direct message %q: %w", username, ErrUnknownUser)
		}
		req := map[string]string{
			"channel": channel,
			"text":    text,
			"as_user": "true",
		}
		if err := a.call(ctx, "chat.postMessage", req, nil); err != nil {
			return sent, fmt.Errorf("direct message %q: %w", username, err)
		}
		a.logger.Debug("direct message sent", "username", username, "channel", channel)
		sent[channel] = text
	}
	return sent, nil
}

// PublicChannels lists the workspace's public channels, paging with the
// API's opaque cursor parameter.
func (a *Account) PublicChannels(ctx context.Context) *rest.Pager {
	return a.client.Paginate(ctx, rest.CursorParam{ItemsKey: "channels"}, rest.PageCall{
		Method: http.MethodPost,
		URL:    a.endpoint("channels.list"),
		Header: a.authHeader(),
	})
}

// PrivateChannels lists the private channels visible to the token in a
// single unpaged call.
func (a *Account) PrivateChannels(ctx context.Context) ([]Channel, error) {
	var resp struct {
		Groups []Channel `json:"groups"`
	}
	if err := a.call(ctx, "groups.list", nil, &resp); err != nil {
		return nil, err
	}
	return resp.Groups, nil
}

// PublicChannelIDs returns the lower-cased channel-name to channel-id
// mapping for public channels.
func (a *Account) PublicChannelIDs(ctx context.Context) (map[string]string, error) {
	channels, err := rest.CollectAs[Channel](a.PublicChannels(ctx))
	if err != nil {
		return nil, err
	}
	return channelIDsByName(channels), nil
}

// PrivateChannelIDs returns the lower-cased channel-name to channel-id
// mapping for private channels.
func (a *Account) PrivateChannelIDs(ctx context.Context) (map[string]string, error) {
	channels, err := a.PrivateChannels(ctx)
	if err != nil {
		return nil, err
	}
	return channelIDsByName(channels), nil
}

func channelIDsByName(channels []Channel) map[string]string {
	ids := make(map[string]string, len(channels))
	for _, channel := range channels {
		ids[strings.ToLower(channel.Name)] = channel.ID
	}
	return ids
}

// channelID resolves a channel name, case-insensitively, against the
// public or private directory at call time.
func (a *Account) channelID(ctx context.Context, name string, public bool) (string, error) {
	var (
		ids map[string]string
		err error
	)
	if public {
		ids, err = a.PublicChannelIDs(ctx)
	} else {
		ids, err = a.PrivateChannelIDs(ctx)
	}
	if err != nil {
		return "", err
	}

	id, ok := ids[strings.ToLower(name)]
	if !ok {
		return "", fmt.Errorf("channel %q: %w", name, ErrUnknownChannel)
	}
	return id, nil
}

func (a *Account) userID(ctx context.Context, name string) (string, error) {
	ids, err := a.UserIDs(ctx)
	if err != nil {
		return "", err
	}
	id, ok := ids[name]
	if !ok {
		return "", fmt.Errorf("user %q: %w", name, ErrUnknownUser)
	}
	return id, nil
}

// channelFamily names the endpoint prefix for the two channel kinds.
func channelFamily(public bool) string {
	if public {
		return "channels"
	}
	return "groups"
}

// CreateChannel creates a public or private channel and returns it.
func (a *Account) CreateChannel(ctx context.Context, name string, public bool) (*Channel, error) {
	req := map[string]any{"name": name, "validate": true}
	var resp struct {
		Channel *Channel `json:"channel"`
		Group   *Channel `json:"group"`
	}
	if err := a.call(ctx, channelFamily(public)+".create", req, &resp); err != nil {
		return nil, err
	}
	if resp.Channel != nil {
		return resp.Channel, nil
	}
	return resp.Group, nil
}

// invite adds a user to a channel, resolving both names at call time.
func (a *Account) invite(ctx context.Context, channelName, userName string, public bool) error {
	channel, err := a.channelID(ctx, channelName, public)
	if err != nil {
		return err
	}
	user, err := a.userID(ctx, userName)
	if err != nil {
		return err
	}
	req := map[string]string{"channel": channel, "user": user}
	return a.call(ctx, channelFamily(public)+".invite", req, nil)
}

// InviteToPublicChannel adds the named user to the named public channel.
func (a *Account) InviteToPublicChannel(ctx context.Context, channelName, userName string) error {
	return a.invite(ctx, channelName, userName, true)
}

// InviteToPrivateChannel adds the named user to the named private
// channel.
func (a *Account) InviteToPrivateChannel(ctx context.Context, channelName, userName string) error {
	return a.invite(ctx, channelName, userName, false)
}

// setChannelField sets one named field (purpose or topic) on a channel.
func (a *Account) setChannelField(ctx context.Context, channelName, field, value string, public bool) error {
	channel, err := a.channelID(ctx, channelName, public)
	if err != nil {
		return err
	}
	req := map[string]string{"channel": channel, field: value}
	endpoint := channelFamily(public) + ".set" + strings.ToUpper(field[:1]) + field[1:]
	return a.call(ctx, endpoint, req, nil)
}

// SetPublicChannelPurpose sets the purpose of the named public channel.
func (a *Account) SetPublicChannelPurpose(ctx context.Context, channelName, purpose string) error {
	return a.setChannelField(ctx, channelName, "purpose", purpose, true)
}

// SetPrivateChannelPurpose sets the purpose of the named private
// channel.
func (a *Account) SetPrivateChannelPurpose(ctx context.Context, channelName, purpose string) error {
	return a.setChannelField(ctx, channelName, "purpose", purpose, false)
}

// SetPublicChannelTopic sets the topic of the named public channel.
func (a *Account) SetPublicChannelTopic(ctx context.Context, channelName, topic string) error {
	return a.setChannelField(ctx, channelName, "topic", topic, true)
}

// SetPrivateChannelTopic sets the topic of the named private channel.
func (a *Account) SetPrivateChannelTopic(ctx context.Context, channelName, topic string) error {
	return a.setChannelField(ctx, channelName, "topic", topic, false)
}

// channelInfo fetches the current state of a channel by name.
func (a *Account) channelInfo(ctx context.Context, channelName string, public bool) (*Channel, error) {
	channel, err := a.channelID(ctx, channelName, public)
	if err != nil {
		return nil, err
	}
	req := map[string]string{"channel": channel}
	var resp struct {
		Channel *Channel `json:"channel"`
		Group   *Channel `json:"group"`
	}
	if err := a.call(ctx, channelFamily(public)+".info", req, &resp); err != nil {
		return nil, err
	}
	if resp.Channel != nil {
		return resp.Channel, nil
	}
	return resp.Group, nil
}

// GetPublicChannelInfo fetches the named public channel.
func (a *Account) GetPublicChannelInfo(ctx context.Context, channelName string) (*Channel, error) {
	return a.channelInfo(ctx, channelName, true)
}

// GetPrivateChannelInfo fetches the named private channel.
func (a *Account) GetPrivateChannelInfo(ctx context.Context, channelName string) (*Channel, error) {
	return a.channelInfo(ctx, channelName, false)
}

// CreateAndSetupChannel creates a channel and walks it through a fixed
// setup choreography: invite each user, set the purpose, set the topic,
// then fetch and return the finished channel. A flat pause follows
// every API call as a naive rate-limit avoidance measure. Any step's
// failure aborts the remaining steps; completed steps stay applied.
func (a *Account) CreateAndSetupChannel(ctx context.Context, name string, invitees []string, purpose, topic string, public bool) (*Channel, error) {
	if _, err := a.CreateChannel(ctx, name, public); err != nil {
		return nil, fmt.Errorf("create channel %q: %w", name, err)
	}
	a.logger.Info("channel created", "name", name, "public", public)

	for _, userName := range invitees {
		a.sleep(a.sleepTime)
		if err := a.invite(ctx, name, userName, public); err != nil {
			return nil, fmt.Errorf("invite %q to channel %q: %w", userName, name, err)
		}
	}

	a.sleep(a.sleepTime)
	if err := a.setChannelField(ctx, name, "purpose", purpose, public); err != nil {
		return nil, fmt.Errorf("set purpose of channel %q: %w", name, err)
	}

	a.sleep(a.sleepTime)
	if err := a.setChannelField(ctx, name, "topic", topic, public); err != nil {
		return nil, fmt.Errorf("set topic of channel %q: %w", name, err)
	}

	a.sleep(a.sleepTime)
	return a.channelInfo(ctx, name, public)
}
