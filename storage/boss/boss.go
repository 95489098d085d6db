/*
Package boss implements a remote-delegate engine that forwards cutout requests
to an upstream BOSS-compatible HTTP service, e.g., another dvidproxy or a bossDB
instance.  Absence upstream (HTTP 404) is reported as dvid.ErrNotFound so a
chain can fall back; every other failure is an I/O failure.
*/
package boss

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/janelia-flyem/dvidproxy/dvid"
	"github.com/janelia-flyem/dvidproxy/storage"
)

const (
	// TokenEnv is the environment variable consulted when no "token" setting is given.
	TokenEnv = "BOSS_APPLICATION_CREDENTIALS"

	// DefaultTimeout bounds each upstream request when the caller's context has no deadline.
	DefaultTimeout = 2 * time.Minute

	// DefaultMetadataEntries is the size of the channel and coordinate frame cache.
	DefaultMetadataEntries = 1024
)

func init() {
	storage.RegisterEngineType(Engine{
		storage.NewEngineInfo("boss", "Upstream BOSS-compatible cutout service", "0.1.0"),
	})
}

type Engine struct {
	storage.EngineInfo
}

// NewEngine returns a remote engine for the required "url" setting.  Optional
// settings are "token", "timeout" (seconds), "order" ("xyz" or "zyx" byte
// order used by the upstream) and "metadata_entries".
func (e Engine) NewEngine(config dvid.StoreConfig) (storage.Engine, error) {
	url, found, err := config.GetString("url")
	if err != nil {
		return nil, err
	}
	if !found || url == "" {
		return nil, fmt.Errorf("%q must be specified for boss configuration", "url")
	}
	opts := Options{Timeout: DefaultTimeout, MetadataEntries: DefaultMetadataEntries}
	if opts.Token, _, err = config.GetString("token"); err != nil {
		return nil, err
	}
	if opts.Token == "" {
		opts.Token = os.Getenv(TokenEnv)
	}
	secs, found, err := config.GetInt("timeout")
	if err != nil {
		return nil, err
	}
	if found {
		opts.Timeout = time.Duration(secs) * time.Second
	}
	order, _, err := config.GetString("order")
	if err != nil {
		return nil, err
	}
	switch strings.ToLower(order) {
	case "", "xyz":
	case "zyx":
		opts.ZYX = true
	default:
		return nil, fmt.Errorf("unknown byte order %q for boss engine", order)
	}
	entries, found, err := config.GetInt("metadata_entries")
	if err != nil {
		return nil, err
	}
	if found {
		opts.MetadataEntries = entries
	}
	return New(url, opts), nil
}

// Options configures a remote engine.
type Options struct {
	Token           string
	Timeout         time.Duration
	ZYX             bool // upstream sends and accepts Z-major (C order over Z, Y, X) bytes
	MetadataEntries int
	Client          *http.Client
}

// Remote is an engine whose medium is an upstream cutout service.
type Remote struct {
	url    string
	opts   Options
	client *http.Client
	meta   *metadataCache
}

// New returns a remote engine for the upstream base URL, e.g., "https://api.bossdb.io".
func New(url string, opts Options) *Remote {
	client := opts.Client
	if client == nil {
		client = &http.Client{Timeout: opts.Timeout}
	}
	return &Remote{
		url:    strings.TrimRight(url, "/"),
		opts:   opts,
		client: client,
		meta:   newMetadataCache(opts.MetadataEntries),
	}
}

func (r *Remote) String() string {
	return fmt.Sprintf("boss @ %s", r.url)
}

func (r *Remote) cutoutURL(c dvid.CoordinateFrame) string {
	return fmt.Sprintf("%s/v1/cutout/%s/", r.url, c)
}

func (r *Remote) channelURL(collection, experiment, channel string) string {
	return fmt.Sprintf("%s/v1/collection/%s/experiment/%s/channel/%s/", r.url, collection, experiment, channel)
}

func (r *Remote) experimentURL(collection, experiment string) string {
	return fmt.Sprintf("%s/v1/collection/%s/experiment/%s/", r.url, collection, experiment)
}

func (r *Remote) coordFrameURL(name string) string {
	return fmt.Sprintf("%s/v1/coord/%s/", r.url, name)
}

// do issues the request and returns the body of a 2xx response.  A 404 is an
// ErrNotFound error and any other failure an ErrIOFailure error.
func (r *Remote) do(ctx context.Context, method, url string, body []byte, accept string) ([]byte, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return nil, dvid.IOFailure(err, "building %s %s", method, url)
	}
	if r.opts.Token != "" {
		req.Header.Set("Authorization", "Token "+r.opts.Token)
	}
	if accept != "" {
		req.Header.Set("Accept", accept)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/octet-stream")
	}
	resp, err := r.client.Do(req)
	if err != nil {
		return nil, dvid.IOFailure(err, "%s %s", method, url)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, dvid.IOFailure(err, "reading response of %s %s", method, url)
	}
	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, dvid.NotFoundf("%s %s", method, url)
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		msg := strings.TrimSpace(string(data))
		if len(msg) > 200 {
			msg = msg[:200]
		}
		return nil, dvid.IOFailure(nil, "%s %s returned status %d: %s", method, url, resp.StatusCode, msg)
	}
	return data, nil
}

func (r *Remote) getJSON(ctx context.Context, url string, v interface{}) error {
	data, err := r.do(ctx, http.MethodGet, url, nil, "application/json")
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, v); err != nil {
		return dvid.IOFailure(err, "decoding JSON from %s", url)
	}
	return nil
}

// Get downloads the cutout from upstream.
func (r *Remote) Get(ctx context.Context, c dvid.CoordinateFrame) (*dvid.Volume, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}
	tlog := dvid.NewTimeLog()
	data, err := r.do(ctx, http.MethodGet, r.cutoutURL(c), nil, "application/octet-stream")
	if err != nil {
		return nil, err
	}
	size := c.Size()
	if r.opts.ZYX {
		size = dvid.Point3d{size[2], size[1], size[0]}
	}
	v, err := dvid.NewVolumeFromBytes(size, data)
	if err != nil {
		return nil, dvid.IOFailure(err, "upstream cutout %s", c)
	}
	if r.opts.ZYX {
		v = v.Transpose()
	}
	tlog.Debugf("Fetched %s of %s from %s\n", humanize.Bytes(uint64(len(data))), c, r)
	return v, nil
}

// Has returns true if the channel exists upstream and its experiment's
// coordinate frame contains the requested extent.
func (r *Remote) Has(ctx context.Context, c dvid.CoordinateFrame) (bool, error) {
	if err := c.Validate(); err != nil {
		return false, err
	}
	found, err := r.channelExists(ctx, c.Collection, c.Experiment, c.Channel)
	if err != nil || !found {
		return false, err
	}
	frame, found, err := r.experimentFrame(ctx, c.Collection, c.Experiment)
	if err != nil || !found {
		return false, err
	}
	return frame.Contains(c.Box()), nil
}

// Put uploads the cutout to upstream.
func (r *Remote) Put(ctx context.Context, c dvid.CoordinateFrame, v *dvid.Volume) error {
	if err := storage.CheckPut(c, v); err != nil {
		return err
	}
	if r.opts.ZYX {
		v = v.Transpose()
	}
	_, err := r.do(ctx, http.MethodPost, r.cutoutURL(c), v.Bytes(), "")
	return err
}
