// Package atproto posts to a Bluesky PDS and reads post metrics back.
package atproto

import (
	"context"
	"net/http"
	"sync"
	"time"

	comatproto "github.com/bluesky-social/indigo/api/atproto"
	appbsky "github.com/bluesky-social/indigo/api/bsky"
	"github.com/bluesky-social/indigo/lex/util"
	"github.com/bluesky-social/indigo/xrpc"
	"go.uber.org/zap"

	"github.com/teranos/postpulse/content"
	"github.com/teranos/postpulse/errors"
	"github.com/teranos/postpulse/internal/httpclient"
	"github.com/teranos/postpulse/logger"
	"github.com/teranos/postpulse/outbound"
	"github.com/teranos/postpulse/pulse/analytics"
)

// DefaultPDSHost is used when no host is configured.
const DefaultPDSHost = "https://bsky.social"

// PostCollection is the record collection posts are created in.
const PostCollection = "app.bsky.feed.post"

// Config identifies the posting account.
type Config struct {
	PDSHost     string
	Identifier  string
	AppPassword string
	HTTPClient  *http.Client // nil builds a guarded client
}

// Client is an outbound.Adapter and analytics.MetricsFetcher for one
// account. The session is created lazily and recreated once when the
// PDS rejects the access token.
type Client struct {
	cfg  Config
	log  *zap.SugaredLogger
	now  func() time.Time
	http *http.Client

	mu      sync.Mutex
	session *xrpc.Client
}

var (
	_ outbound.Adapter         = (*Client)(nil)
	_ analytics.MetricsFetcher = (*Client)(nil)
)

// New validates cfg and returns a client. No request is made until the
// first Post or FetchMetrics.
func New(cfg Config, log *zap.SugaredLogger) (*Client, error) {
	if cfg.PDSHost == "" {
		cfg.PDSHost = DefaultPDSHost
	}
	if cfg.Identifier == "" || cfg.AppPassword == "" {
		return nil, errors.WithHint(
			errors.New("atproto identifier and app password are required"),
			"set outbound.atproto.identifier and POSTPULSE_OUTBOUND_ATPROTO_APP_PASSWORD",
		)
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		if _, err := httpclient.ValidateURL(cfg.PDSHost, false); err != nil {
			return nil, errors.Wrapf(err, "invalid pds host %s", cfg.PDSHost)
		}
		httpClient = httpclient.New(30*time.Second, httpclient.Options{})
	}
	if log == nil {
		log = logger.ComponentLogger("atproto")
	}
	return &Client{
		cfg:  cfg,
		log:  log,
		now:  time.Now,
		http: httpClient,
	}, nil
}

func (c *Client) authed(ctx context.Context) (*xrpc.Client, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.session != nil {
		return c.session, nil
	}

	client := &xrpc.Client{Host: c.cfg.PDSHost, Client: c.http}
	session, err := comatproto.ServerCreateSession(ctx, client, &comatproto.ServerCreateSession_Input{
		Identifier: c.cfg.Identifier,
		Password:   c.cfg.AppPassword,
	})
	if err != nil {
		return nil, errors.Wrapf(err, "failed to create session with PDS %s for %s", c.cfg.PDSHost, c.cfg.Identifier)
	}
	client.Auth = &xrpc.AuthInfo{
		AccessJwt:  session.AccessJwt,
		RefreshJwt: session.RefreshJwt,
		Handle:     session.Handle,
		Did:        session.Did,
	}
	c.session = client
	c.log.Infow("Created PDS session", "handle", session.Handle, "pds", c.cfg.PDSHost)
	return client, nil
}

func (c *Client) dropSession() {
	c.mu.Lock()
	c.session = nil
	c.mu.Unlock()
}

// withSession runs fn with an authenticated client, recreating the
// session once if the PDS answers 401.
func (c *Client) withSession(ctx context.Context, fn func(*xrpc.Client) error) error {
	for attempt := 0; ; attempt++ {
		client, err := c.authed(ctx)
		if err != nil {
			return err
		}
		err = fn(client)
		if attempt == 0 && StatusCode(err) == http.StatusUnauthorized {
			c.log.Infow("PDS rejected session, re-authenticating")
			c.dropSession()
			continue
		}
		return err
	}
}

// Post implements outbound.Adapter. PDS error responses come back as
// non-OK results carrying the HTTP status; transport errors are returned.
func (c *Client) Post(ctx context.Context, body string) (outbound.Result, error) {
	var uri string
	err := c.withSession(ctx, func(client *xrpc.Client) error {
		resp, err := comatproto.RepoCreateRecord(ctx, client, &comatproto.RepoCreateRecord_Input{
			Collection: PostCollection,
			Repo:       client.Auth.Did,
			Record: &util.LexiconTypeDecoder{Val: &appbsky.FeedPost{
				Text:      body,
				CreatedAt: c.now().UTC().Format(time.RFC3339),
			}},
		})
		if err != nil {
			return err
		}
		uri = resp.Uri
		return nil
	})
	if err != nil {
		if code := StatusCode(err); code != 0 {
			return outbound.Result{StatusCode: code, ErrorMessage: err.Error()}, nil
		}
		return outbound.Result{}, err
	}
	return outbound.Result{OK: true, StatusCode: http.StatusOK, ExternalID: uri}, nil
}

// FetchMetrics implements analytics.MetricsFetcher using the at:// URI
// stored as the item's external id. Bluesky exposes no impression or
// bookmark counts, so those stay zero.
func (c *Client) FetchMetrics(ctx context.Context, item content.Item) (analytics.Metrics, error) {
	if item.ExternalID == "" {
		return analytics.Metrics{}, errors.NewInvalidRequestError("content item %s has no external id", item.ID)
	}

	var metrics analytics.Metrics
	err := c.withSession(ctx, func(client *xrpc.Client) error {
		out, err := appbsky.FeedGetPosts(ctx, client, []string{item.ExternalID})
		if err != nil {
			return err
		}
		if len(out.Posts) == 0 {
			return errors.NewNotFoundError("post not found: %s", item.ExternalID)
		}
		p := out.Posts[0]
		metrics = analytics.Metrics{
			Likes:   deref(p.LikeCount),
			Reposts: deref(p.RepostCount),
			Replies: deref(p.ReplyCount),
			Quotes:  deref(p.QuoteCount),
		}
		return nil
	})
	if err != nil {
		return analytics.Metrics{}, errors.Wrapf(err, "failed to fetch metrics for %s", item.ExternalID)
	}
	return metrics, nil
}

// StatusCode extracts the HTTP status of an XRPC error, or 0.
func StatusCode(err error) int {
	var xe *xrpc.Error
	if err != nil && errors.As(err, &xe) {
		return xe.StatusCode
	}
	return 0
}

func deref(n *int64) int64 {
	if n == nil {
		return 0
	}
	return *n
}
