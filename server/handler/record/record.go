// Package record exposes the recording pipeline over the control API:
// source acquisition, lifecycle actions, the crop-region picker, and
// the live status stream.
package record

import (
	"net/http"
	"strings"
	"sync"
	"time"

	"Reel/config"
	"Reel/modules"
	"Reel/service/recorder"
	"Reel/service/recorder/compositor"
	"Reel/service/recorder/encoder"
	"Reel/service/recorder/overlay"
	"Reel/service/recorder/region"
	"Reel/service/source"

	"github.com/gin-gonic/gin"
	jsoniter "github.com/json-iterator/go"
	"github.com/kataras/golog"
)

var logger = golog.Child("[record-api]")

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Service owns one capture session and its companion region selector.
type Service struct {
	mu       sync.Mutex
	cfg      *config.Config
	session  *recorder.Session
	selector *region.Selector
	provider source.Provider
}

func NewService(cfg *config.Config, provider source.Provider) *Service {
	return &Service{
		cfg:      cfg,
		provider: provider,
		session:  recorder.NewSession(provider, recorder.WithGlobalHooks()),
	}
}

// Session exposes the underlying capture session.
func (s *Service) Session() *recorder.Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.session
}

// startRequest is the JSON body accepted by /api/record/source. Zero
// fields fall back to the daemon config defaults.
type startRequest struct {
	Width               int      `json:"width"`
	Height              int      `json:"height"`
	FPS                 int      `json:"fps"`
	VideoBitrate        int      `json:"videoBitrate"`
	AudioBitrate        int      `json:"audioBitrate"`
	ContainerPreference []string `json:"containerPreference"`
	IncludeSystemAudio  bool     `json:"includeSystemAudio"`
	IncludeMic          bool     `json:"includeMic"`
	MicNoiseSuppression bool     `json:"micNoiseSuppression"`
	SystemVolume        *float64 `json:"systemVolume"`
	MicVolume           *float64 `json:"micVolume"`
	CursorHighlight     bool     `json:"cursorHighlight"`
	ClickEffect         bool     `json:"clickEffect"`
	KeyBadge            bool     `json:"keyBadge"`
	CropRegion          *region.Region `json:"cropRegion"`
	Webcam              *webcamRequest `json:"webcam"`
}

type webcamRequest struct {
	Anchor string `json:"anchor"`
	Size   int    `json:"size"`
	Shape  string `json:"shape"`
	Blur   bool   `json:"blur"`
}

func (s *Service) buildConfig(req startRequest) recorder.Config {
	defaults := s.cfg.Record
	enc := s.cfg.Encoder
	cfg := recorder.Config{
		OutputWidth:         pick(req.Width, defaults.Width),
		OutputHeight:        pick(req.Height, defaults.Height),
		FPS:                 pick(req.FPS, defaults.FPS),
		VideoBitrate:        pick(req.VideoBitrate, defaults.VideoBitrate),
		AudioBitrate:        pick(req.AudioBitrate, defaults.AudioBitrate),
		ContainerPreference: req.ContainerPreference,
		CropRegion:          req.CropRegion,
		IncludeSystemAudio:  req.IncludeSystemAudio,
		IncludeMic:          req.IncludeMic,
		MicNoiseSuppression: req.MicNoiseSuppression,
		SystemVolume:        defaults.SystemVolume,
		MicVolume:           defaults.MicVolume,
		Overlay: overlay.Toggles{
			CursorHighlight: req.CursorHighlight,
			ClickEffect:     req.ClickEffect,
			KeyBadge:        req.KeyBadge,
		},
		QueuePolicy:   encoder.QueuePolicy(enc.QueuePolicy),
		QueueSize:     enc.QueueSize,
		ChunkInterval: time.Duration(enc.ChunkIntervalMS) * time.Millisecond,
	}
	if len(cfg.ContainerPreference) == 0 {
		cfg.ContainerPreference = enc.Preference
	}
	if req.SystemVolume != nil {
		cfg.SystemVolume = *req.SystemVolume
	}
	if req.MicVolume != nil {
		cfg.MicVolume = *req.MicVolume
	}
	if req.Webcam != nil {
		cfg.Webcam = &compositor.WebcamConfig{
			Anchor: parseAnchor(req.Webcam.Anchor),
			Size:   req.Webcam.Size,
			Shape:  parseShape(req.Webcam.Shape),
			Blur:   req.Webcam.Blur,
		}
	}
	return cfg
}

// RequestSource acquires the configured sources and arms the session.
func (s *Service) RequestSource(ctx *gin.Context) {
	var req startRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		fail(ctx, http.StatusBadRequest, modules.ErrKindSourceUnavailable, err.Error())
		return
	}
	session := s.Session()
	if err := session.RequestSource(s.buildConfig(req)); err != nil {
		fail(ctx, http.StatusConflict, errKind(err), err.Error())
		return
	}
	ok(ctx, gin.H{`state`: session.State().String()})
}

// Start begins recording.
func (s *Service) Start(ctx *gin.Context) {
	session := s.Session()
	if err := session.Start(); err != nil {
		fail(ctx, http.StatusConflict, errKind(err), err.Error())
		return
	}
	ok(ctx, gin.H{`state`: session.State().String()})
}

// Pause suspends the scheduler and chunk emission.
func (s *Service) Pause(ctx *gin.Context) {
	s.lifecycle(ctx, s.Session().Pause)
}

// Resume restarts a paused session.
func (s *Service) Resume(ctx *gin.Context) {
	s.lifecycle(ctx, s.Session().Resume)
}

func (s *Service) lifecycle(ctx *gin.Context, op func() error) {
	if err := op(); err != nil {
		fail(ctx, http.StatusConflict, errKind(err), err.Error())
		return
	}
	ok(ctx, gin.H{`state`: s.Session().State().String()})
}

// Stop finalizes the artifact and reports its metadata; the payload is
// fetched separately through Artifact.
func (s *Service) Stop(ctx *gin.Context) {
	session := s.Session()
	artifact, err := session.Stop()
	if err != nil {
		fail(ctx, http.StatusConflict, errKind(err), err.Error())
		return
	}
	ok(ctx, gin.H{
		`artifact`: modules.ArtifactInfo{
			ID:              artifact.ID,
			MimeType:        artifact.MimeType,
			DurationSeconds: artifact.Duration.Seconds(),
			SizeBytes:       len(artifact.Data),
		},
	})
}

// Reset discards the artifact and rearms the session.
func (s *Service) Reset(ctx *gin.Context) {
	s.lifecycle(ctx, s.Session().Reset)
}

// Status reports the live session state.
func (s *Service) Status(ctx *gin.Context) {
	ok(ctx, gin.H{`status`: s.Session().Status()})
}

// Artifact streams the finished media object.
func (s *Service) Artifact(ctx *gin.Context) {
	artifact, err := s.Session().Artifact()
	if err != nil {
		fail(ctx, http.StatusNotFound, modules.ErrKindEncoding, err.Error())
		return
	}
	ctx.Header(`Content-Disposition`, `attachment; filename=recording-`+artifact.ID+extensionFor(artifact.MimeType))
	ctx.Data(http.StatusOK, artifact.MimeType, artifact.Data)
}

// Salvage returns partial chunks after a mid-session fault for callers
// that opt in to keeping them.
func (s *Service) Salvage(ctx *gin.Context) {
	chunks := s.Session().Salvage()
	var total int
	for _, chunk := range chunks {
		total += len(chunk)
	}
	ok(ctx, gin.H{`chunks`: len(chunks), `bytes`: total})
}

// Volume live-updates one of the two gains.
func (s *Service) Volume(ctx *gin.Context) {
	var req struct {
		Channel string  `json:"channel"`
		Volume  float64 `json:"volume"`
	}
	if err := ctx.ShouldBindJSON(&req); err != nil {
		fail(ctx, http.StatusBadRequest, modules.ErrKindSourceUnavailable, err.Error())
		return
	}
	switch strings.ToLower(req.Channel) {
	case `system`:
		s.Session().SetSystemVolume(req.Volume)
	case `mic`:
		s.Session().SetMicVolume(req.Volume)
	default:
		fail(ctx, http.StatusBadRequest, modules.ErrKindSourceUnavailable, `unknown channel `+req.Channel)
		return
	}
	ok(ctx, nil)
}

// Capabilities lists the registered containers with availability.
func (s *Service) Capabilities(ctx *gin.Context) {
	ok(ctx, gin.H{`encoders`: encoder.Instance().Capabilities()})
}

func ok(ctx *gin.Context, data gin.H) {
	body := gin.H{`code`: 0, `msg`: `success`}
	if data != nil {
		body[`data`] = data
	}
	respond(ctx, http.StatusOK, body)
}

func fail(ctx *gin.Context, status int, kind, msg string) {
	respond(ctx, status, gin.H{`code`: 1, `kind`: kind, `msg`: msg})
}

func respond(ctx *gin.Context, status int, body gin.H) {
	payload, err := json.Marshal(body)
	if err != nil {
		ctx.AbortWithStatus(http.StatusInternalServerError)
		return
	}
	ctx.Data(status, `application/json`, payload)
}

func errKind(err error) string {
	msg := err.Error()
	for _, kind := range []string{
		modules.ErrKindPermissionDenied,
		modules.ErrKindSourceUnavailable,
		modules.ErrKindEncoderInit,
		modules.ErrKindEncoding,
	} {
		if strings.HasPrefix(msg, kind) {
			return kind
		}
	}
	return modules.ErrKindSourceUnavailable
}

func pick(v, fallback int) int {
	if v > 0 {
		return v
	}
	return fallback
}

func parseAnchor(v string) compositor.Anchor {
	switch strings.ToLower(v) {
	case `top-left`:
		return compositor.AnchorTopLeft
	case `top-right`:
		return compositor.AnchorTopRight
	case `bottom-left`:
		return compositor.AnchorBottomLeft
	}
	return compositor.AnchorBottomRight
}

func parseShape(v string) compositor.Shape {
	if strings.ToLower(v) == `square` {
		return compositor.ShapeSquare
	}
	return compositor.ShapeCircle
}

func extensionFor(mime string) string {
	if mime == `video/x-msvideo` {
		return `.avi`
	}
	return `.bin`
}
