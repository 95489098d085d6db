package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"
	"github.com/zenazn/goji/web"
	"github.com/zenazn/goji/web/middleware"
	"github.com/zenazn/goji/web/mutil"

	"github.com/janelia-flyem/dvidproxy/cache"
	"github.com/janelia-flyem/dvidproxy/dvid"
	"github.com/janelia-flyem/dvidproxy/storage"
)

const (
	cutoutPattern     = "/v1/cutout/:collection/:experiment/:channel/:resolution/:x/:y/:z"
	channelPattern    = "/v1/collection/:collection/experiment/:experiment/channel/:channel"
	experimentPattern = "/v1/collection/:collection/experiment/:experiment"
	coordPattern      = "/v1/coord/:coordframe"

	// DefaultCoordFrame is the coordinate frame name reported for every experiment.
	DefaultCoordFrame = "NoneSpecified"
)

// Service handles HTTP requests against a store, usually a layered stack.
type Service struct {
	store     storage.Engine
	config    ServerConfig
	maxCutout int64
	mux       *web.Mux
}

// NewService returns a service over the store with routes initialized.
func NewService(store storage.Engine, config ServerConfig) *Service {
	s := &Service{store: store, config: config, mux: web.New()}
	var err error
	if s.maxCutout, err = config.CutoutLimit(); err != nil {
		dvid.Errorf("%v, using %s\n", err, DefaultMaxCutoutSize)
		s.maxCutout, _ = ServerConfig{}.CutoutLimit()
	}
	s.initRoutes()
	return s
}

// Handler returns the service's HTTP handler, including CORS handling if
// domains are configured.
func (s *Service) Handler() http.Handler {
	if len(s.config.CorsDomains) == 0 {
		return s.mux
	}
	c := cors.New(cors.Options{
		AllowedOrigins:   s.config.CorsDomains,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodHead, http.MethodOptions},
		AllowedHeaders:   []string{"*"},
		AllowCredentials: true,
	})
	return c.Handler(s.mux)
}

func (s *Service) initRoutes() {
	s.mux.Use(middleware.RequestID)
	s.mux.Use(accessLog)
	s.mux.Use(middleware.Recoverer)
	s.mux.Use(middleware.AutomaticOptions)

	s.mux.Get("/api/server/info", s.serverInfoHandler)
	s.mux.Get("/api/server/stack", s.stackHandler)
	s.mux.Get("/metrics", promhttp.Handler())

	// Boss-style routes are given with a trailing slash but also accepted without.
	for _, suffix := range []string{"/", ""} {
		// HEAD must precede GET since goji routes HEAD requests to GET handlers.
		s.mux.Head(cutoutPattern+suffix, s.hasCutoutHandler)
		s.mux.Get(cutoutPattern+suffix, s.getCutoutHandler)
		s.mux.Post(cutoutPattern+suffix, s.putCutoutHandler)

		s.mux.Get(channelPattern+suffix, channelHandler)
		s.mux.Get(experimentPattern+suffix, experimentHandler)
		s.mux.Get(coordPattern+suffix, coordFrameHandler)
	}
	s.mux.NotFound(notFoundHandler)
}

// accessLog is middleware that logs each request with its duration.
func accessLog(c *web.C, h http.Handler) http.Handler {
	fn := func(w http.ResponseWriter, r *http.Request) {
		tlog := dvid.NewTimeLog()
		ww := mutil.WrapWriter(w)
		h.ServeHTTP(ww, r)
		tlog.Infof("HTTP %s: %s [%s] (%d, %s)\n", r.Method, r.URL, middleware.GetReqID(*c), ww.Status(), humanize.Bytes(uint64(ww.BytesWritten())))
	}
	return http.HandlerFunc(fn)
}

// requestContext returns the request's context bounded by the configured timeout.
func (s *Service) requestContext(r *http.Request) (context.Context, context.CancelFunc) {
	return context.WithTimeout(r.Context(), s.config.RequestTimeout())
}

// StatusCode returns the HTTP status for a storage error.
func StatusCode(err error) int {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	case dvid.IsNotFound(err):
		return http.StatusNotFound
	case dvid.IsInvalidRequest(err):
		return http.StatusBadRequest
	case dvid.IsNotSupported(err):
		return http.StatusNotImplemented
	default:
		return http.StatusInternalServerError
	}
}

// writeError logs the error and writes it with the mapped status code.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := StatusCode(err)
	if status >= 500 {
		dvid.Errorf("%s %s: %v\n", r.Method, r.URL, err)
	} else {
		dvid.Debugf("%s %s: %v\n", r.Method, r.URL, err)
	}
	http.Error(w, err.Error(), status)
}

// BadRequest writes a 400 error with a formatted message.
func BadRequest(w http.ResponseWriter, r *http.Request, format string, args ...interface{}) {
	writeError(w, r, dvid.InvalidRequestf(format, args...))
}

func writeJSON(w http.ResponseWriter, r *http.Request, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		dvid.Errorf("unable to write JSON for %s: %v\n", r.URL, err)
	}
}

// cutoutRequest parses the coordinate frame from the route and whether the
// payload bytes are in Z-major ("zyx") order.  Cutouts larger than the
// configured limit are rejected before anything is allocated for them.
func (s *Service) cutoutRequest(c web.C, r *http.Request) (coord dvid.CoordinateFrame, zyx bool, err error) {
	p := c.URLParams
	path := strings.Join([]string{p["collection"], p["experiment"], p["channel"], p["resolution"], p["x"], p["y"], p["z"]}, "/")
	if coord, err = dvid.ParseCutoutPath(path); err != nil {
		return
	}
	if err = coord.Box().CheckNumVoxels(s.maxCutout); err != nil {
		return
	}
	switch order := strings.ToLower(r.URL.Query().Get("order")); order {
	case "", "xyz":
	case "zyx":
		zyx = true
	default:
		err = dvid.InvalidRequestf("unknown order %q, expected xyz or zyx", order)
	}
	return
}

func (s *Service) getCutoutHandler(c web.C, w http.ResponseWriter, r *http.Request) {
	coord, zyx, err := s.cutoutRequest(c, r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	ctx, cancel := s.requestContext(r)
	defer cancel()

	v, err := s.store.Get(ctx, coord)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if zyx {
		v = v.Transpose()
	}
	w.Header().Set("Content-Type", "application/octet-stream")
	if _, err := w.Write(v.Bytes()); err != nil {
		dvid.Errorf("unable to write cutout %s: %v\n", coord, err)
	}
}

func (s *Service) hasCutoutHandler(c web.C, w http.ResponseWriter, r *http.Request) {
	coord, _, err := s.cutoutRequest(c, r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	ctx, cancel := s.requestContext(r)
	defer cancel()

	found, err := s.store.Has(ctx, coord)
	switch {
	case err != nil:
		writeError(w, r, err)
	case found:
		w.WriteHeader(http.StatusOK)
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func (s *Service) putCutoutHandler(c web.C, w http.ResponseWriter, r *http.Request) {
	coord, zyx, err := s.cutoutRequest(c, r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	numBytes := coord.Size().Prod()
	data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, numBytes+1))
	if err != nil {
		BadRequest(w, r, "unable to read %s payload for %s: %v", humanize.Bytes(uint64(numBytes)), coord, err)
		return
	}
	size := coord.Size()
	if zyx {
		size = dvid.Point3d{size[2], size[1], size[0]}
	}
	v, err := dvid.NewVolumeFromBytes(size, data)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if zyx {
		v = v.Transpose()
	}

	ctx, cancel := s.requestContext(r)
	defer cancel()
	if err := s.store.Put(ctx, coord, v); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusCreated)
}

func (s *Service) stackHandler(w http.ResponseWriter, r *http.Request) {
	var layers []string
	if stacker, ok := s.store.(cache.Stacker); ok {
		layers = stacker.Stack()
	} else {
		layers = []string{s.store.String()}
	}
	writeJSON(w, r, map[string]interface{}{"layers": layers})
}

func (s *Service) serverInfoHandler(w http.ResponseWriter, r *http.Request) {
	engines := make(map[string]string)
	for _, e := range storage.EngineTypes() {
		engines[e.GetName()] = e.GetSemVer().String()
	}
	writeJSON(w, r, map[string]interface{}{
		"store":   s.store.String(),
		"engines": engines,
		"timeout": s.config.RequestTimeout().String(),
	})
}

// The metadata handlers return static descriptions; every channel is uint8
// image data at base resolution 0 within an unbounded coordinate frame.

func channelHandler(c web.C, w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, map[string]interface{}{
		"name":                c.URLParams["channel"],
		"description":         "",
		"experiment":          c.URLParams["experiment"],
		"collection":          c.URLParams["collection"],
		"default_time_sample": 0,
		"type":                "image",
		"base_resolution":     0,
		"datatype":            "uint8",
		"creator":             "None",
		"sources":             []string{},
		"downsample_status":   "NOT_DOWNSAMPLED",
		"related":             []string{},
	})
}

func experimentHandler(c web.C, w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, map[string]interface{}{
		"name":              c.URLParams["experiment"],
		"collection":        c.URLParams["collection"],
		"coord_frame":       DefaultCoordFrame,
		"description":       "",
		"type":              "image",
		"base_resolution":   0,
		"datatype":          "uint8",
		"creator":           "None",
		"sources":           []string{},
		"downsample_status": "NOT_DOWNSAMPLED",
		"related":           []string{},
	})
}

func coordFrameHandler(c web.C, w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, map[string]interface{}{
		"name":            c.URLParams["coordframe"],
		"base_resolution": 0,
		"creator":         "None",
		"x_start":         0,
		"x_stop":          math.MaxInt32,
		"y_start":         0,
		"y_stop":          math.MaxInt32,
		"z_start":         0,
		"z_stop":          math.MaxInt32,
	})
}

func notFoundHandler(w http.ResponseWriter, r *http.Request) {
	http.Error(w, fmt.Sprintf("no route for %s %s", r.Method, r.URL.Path), http.StatusNotFound)
}
