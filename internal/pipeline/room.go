package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"strings"
	"sync"
	"time"

	"github.com/artinstitute/galleryroom/internal/carousel"
	"github.com/artinstitute/galleryroom/internal/gallery"
	"github.com/artinstitute/galleryroom/internal/metrics"
	"github.com/artinstitute/galleryroom/internal/models"
	"github.com/artinstitute/galleryroom/internal/predict"
	"github.com/artinstitute/galleryroom/internal/reducer"
	"github.com/artinstitute/galleryroom/internal/ring"
	"github.com/artinstitute/galleryroom/internal/styles"
)

// User-facing messages
const (
	MsgSelectArtwork   = "Select an artwork to analyze."
	MsgMissingEndpoint = "Missing API URL. Set STYLE_API_URL in .env and restart the server."
	MsgBadMediaType    = "Please upload a JPG, PNG, or WebP image file."
	MsgNoStyle         = "No style returned from prediction."
	MsgPredictFailed   = "Prediction failed. Please try again."
	MsgGalleryFailed   = "Gallery request failed. Please try again."
	MsgTimedOut        = "The request timed out. Please try again."

	statusPredicting = "Identifying style from your upload..."
	statusGathering  = "Gathering %d works from the collection..."
)

var (
	// ErrRetryUnavailable is returned by RetryGallery when there is no failed gallery load to repeat
	ErrRetryUnavailable = errors.New("no failed gallery load to retry")
	// ErrNotInteractive is returned when opening an artwork that is out of range or hidden
	ErrNotInteractive = errors.New("artwork is not interactive")
)

// Reducer shrinks an image below a byte budget
type Reducer interface {
	Reduce(ctx context.Context, asset models.ImageAsset, budget int64) (*reducer.Result, error)
}

// Limits are the size and count limits applied by a Room
type Limits struct {
	PredictMaxBytes int64
	MaxUploadBytes  int64
	GalleryLimit    int
	TopK            int
}

// DefaultLimits returns the 300KB / 10MB / 24 / 5 limits
func DefaultLimits() Limits {
	return Limits{
		PredictMaxBytes: 300 * 1024,
		MaxUploadBytes:  10 * 1024 * 1024,
		GalleryLimit:    gallery.DefaultLimit,
		TopK:            5,
	}
}

// Deps are the collaborators shared by every Room
type Deps struct {
	Reducer   Reducer
	Predictor predict.Predictor
	Gallery   gallery.Source
	Styles    *styles.Lookup
	Limits    Limits
	Clock     func() time.Time
}

// Room is one browser's gallery: the selected upload, its predicted style,
// the merged carousel and the status of each async step. Every async step
// captures the generation it started under and drops its result when a
// newer selection or analyze has bumped it since.
type Room struct {
	ID        string
	CreatedAt time.Time

	deps     Deps
	carousel *carousel.Controller

	mu            sync.Mutex
	generation    uint64
	file          *models.ImageAsset
	previewURL    string
	style         string
	ranked        []models.RankedStyle
	gallery       []models.CarouselItem
	items         []models.CarouselItem
	startIndex    int
	predictStatus models.Status
	galleryStatus models.Status
	active        *models.CarouselItem
}

// NewRoom creates an empty room
func NewRoom(id string, deps Deps) *Room {
	if deps.Clock == nil {
		deps.Clock = time.Now
	}
	if deps.Limits == (Limits{}) {
		deps.Limits = DefaultLimits()
	}
	return &Room{
		ID:        id,
		CreatedAt: deps.Clock(),
		deps:      deps,
		carousel:  carousel.NewController(carousel.WithClock(deps.Clock)),
	}
}

// Carousel returns the rotation controller of the room
func (r *Room) Carousel() *carousel.Controller {
	return r.carousel
}

// SelectFile replaces the current upload. Any in-flight work is superseded.
// A nil asset clears the selection.
func (r *Room) SelectFile(asset *models.ImageAsset) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.generation++
	r.style = ""
	r.ranked = nil
	r.gallery = nil
	r.galleryStatus = models.Status{}
	r.active = nil
	r.file = nil
	r.previewURL = ""
	r.mergeLocked()

	if asset != nil {
		if err := r.validate(*asset); err != nil {
			r.predictStatus = models.Status{Error: err.Error()}
			return err
		}
		copied := *asset
		r.file = &copied
		r.previewURL = fmt.Sprintf("/static/uploads/%s?v=%d", r.ID, r.generation)
	}
	r.predictStatus = models.Status{}
	return nil
}

func (r *Room) validate(asset models.ImageAsset) error {
	if !strings.HasPrefix(asset.MediaType, "image/") {
		return &models.ValidationError{Message: MsgBadMediaType}
	}
	if asset.Size() > r.deps.Limits.MaxUploadBytes {
		return &models.ValidationError{Message: TooLargeMessage(r.deps.Limits.MaxUploadBytes)}
	}
	return nil
}

// File returns the current upload and its preview URL
func (r *Room) File() (models.ImageAsset, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.file == nil {
		return models.ImageAsset{}, false
	}
	return *r.file, true
}

// Analyze runs reduce, predict and gallery for the current upload. A result
// that was superseded while in flight is discarded and Analyze returns nil.
func (r *Room) Analyze(ctx context.Context) error {
	run, err := r.StartAnalyze()
	if err != nil {
		return err
	}
	return run(ctx)
}

// StartAnalyze checks the preconditions and marks the prediction as loading.
// The returned function does the work and may run on another goroutine.
func (r *Room) StartAnalyze() (func(context.Context) error, error) {
	gen, file, err := r.beginAnalyze()
	if err != nil {
		return nil, err
	}
	return func(ctx context.Context) error {
		return r.analyze(ctx, gen, file)
	}, nil
}

func (r *Room) analyze(ctx context.Context, gen uint64, file models.ImageAsset) error {
	result, err := r.deps.Reducer.Reduce(ctx, file, r.deps.Limits.PredictMaxBytes)
	if err != nil {
		outcome := metrics.OutcomeFailed
		if errors.Is(err, reducer.ErrCompressionExhausted) {
			outcome = metrics.OutcomeExhausted
		}
		metrics.ObserveReduction(outcome, 0)
		return r.failPredict(gen, fmt.Errorf("failed to reduce image: %w", err))
	}
	if result.Reduced {
		metrics.ObserveReduction(metrics.OutcomeReduced, result.Tries)
	} else {
		metrics.ObserveReduction(metrics.OutcomeUnchanged, 0)
	}
	if !r.current(gen, "reduce") {
		return nil
	}

	started := time.Now()
	prediction, err := r.deps.Predictor.Predict(ctx, result.Asset, r.deps.Limits.TopK)
	metrics.ObserveService("predict", time.Since(started).Seconds(), err)
	if err != nil {
		return r.failPredict(gen, fmt.Errorf("failed to predict style: %w", err))
	}
	style, err := prediction.Style()
	if err != nil {
		return r.failPredict(gen, err)
	}

	r.mu.Lock()
	if gen != r.generation {
		r.mu.Unlock()
		metrics.StaleDiscard("predict")
		return nil
	}
	r.style = style
	r.ranked = prediction.TopK
	r.predictStatus = models.Status{}
	err = r.beginGalleryLocked()
	r.mu.Unlock()
	if err != nil {
		return err
	}

	slog.Info("Style predicted", "room", r.ID, "style", style, "ranked", len(prediction.TopK))
	return r.fetchGallery(ctx, gen, style)
}

func (r *Room) beginAnalyze() (uint64, models.ImageAsset, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.file == nil {
		r.predictStatus = models.Status{Error: MsgSelectArtwork}
		return 0, models.ImageAsset{}, &models.ValidationError{Message: MsgSelectArtwork}
	}
	if r.deps.Reducer == nil || !configured(r.deps.Predictor) {
		r.predictStatus = models.Status{Error: MsgMissingEndpoint}
		return 0, models.ImageAsset{}, models.ErrMissingEndpoint
	}

	r.generation++
	r.predictStatus = models.Status{Loading: true}
	r.galleryStatus = models.Status{}
	r.gallery = nil
	r.active = nil
	r.mergeLocked()
	return r.generation, *r.file, nil
}

// RetryGallery repeats the gallery query for the current style after a
// failed load.
func (r *Room) RetryGallery(ctx context.Context) error {
	run, err := r.StartRetryGallery()
	if err != nil {
		return err
	}
	return run(ctx)
}

// StartRetryGallery marks the gallery as loading again. The returned function
// performs the query.
func (r *Room) StartRetryGallery() (func(context.Context) error, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.canRetryLocked() {
		return nil, ErrRetryUnavailable
	}
	if err := r.beginGalleryLocked(); err != nil {
		return nil, err
	}
	gen, style := r.generation, r.style
	return func(ctx context.Context) error {
		return r.fetchGallery(ctx, gen, style)
	}, nil
}

func (r *Room) canRetryLocked() bool {
	return r.style != "" && r.galleryStatus.Error != "" && !r.galleryStatus.Loading
}

func (r *Room) beginGalleryLocked() error {
	if !configured(r.deps.Gallery) {
		r.galleryStatus = models.Status{Error: MsgMissingEndpoint}
		return models.ErrMissingEndpoint
	}
	r.galleryStatus = models.Status{Loading: true}
	return nil
}

func (r *Room) fetchGallery(ctx context.Context, gen uint64, style string) error {
	started := time.Now()
	items, err := r.deps.Gallery.Fetch(ctx, style, r.deps.Limits.GalleryLimit)
	metrics.ObserveService("gallery", time.Since(started).Seconds(), err)

	r.mu.Lock()
	defer r.mu.Unlock()

	if gen != r.generation {
		metrics.StaleDiscard("gallery")
		return nil
	}
	if err != nil {
		r.galleryStatus = models.Status{Error: r.userMessage(err, MsgGalleryFailed)}
		slog.Error("Gallery load failed", "room", r.ID, "style", style, "err", err)
		return fmt.Errorf("failed to load gallery: %w", err)
	}

	r.gallery = gallery.Trim(items, r.deps.Limits.GalleryLimit)
	r.galleryStatus = models.Status{}
	r.mergeLocked()
	slog.Info("Gallery loaded", "room", r.ID, "style", style, "items", len(r.gallery), "focus", r.startIndex)
	return nil
}

func (r *Room) failPredict(gen uint64, err error) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if gen != r.generation {
		metrics.StaleDiscard("predict")
		return nil
	}
	r.predictStatus = models.Status{Error: r.userMessage(err, MsgPredictFailed)}
	slog.Error("Analyze failed", "room", r.ID, "err", err)
	return err
}

func (r *Room) current(gen uint64, step string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if gen != r.generation {
		metrics.StaleDiscard(step)
		return false
	}
	return true
}

// mergeLocked rebuilds the carousel sequence with the user's upload spliced
// into the middle of the gallery and resets the focus onto it.
func (r *Room) mergeLocked() {
	if r.previewURL == "" || len(r.gallery) == 0 {
		r.items = nil
		r.startIndex = 0
		r.carousel.Reset(0, 0)
		return
	}

	split := len(r.gallery) / 2
	user := models.CarouselItem{
		ID:       models.UserArtworkID,
		Artist:   models.UserArtist,
		Style:    r.style,
		ImageURL: r.previewURL,
		IsUser:   true,
	}

	items := make([]models.CarouselItem, 0, len(r.gallery)+1)
	items = append(items, r.gallery[:split]...)
	items = append(items, user)
	items = append(items, r.gallery[split:]...)

	r.items = items
	r.startIndex = split
	r.carousel.Reset(len(items), split)
}

// HandleInput feeds a rotation event to the carousel
func (r *Room) HandleInput(ev carousel.Event) bool {
	moved := r.carousel.Handle(ev)
	if moved {
		metrics.Rotation(string(ev.Kind))
	}
	return moved
}

// Layout projects the current carousel for a viewport width
func (r *Room) Layout(viewportWidth float64) Layout {
	r.mu.Lock()
	items := make([]models.CarouselItem, len(r.items))
	copy(items, r.items)
	state := r.carousel.State()
	r.mu.Unlock()

	slot := carousel.SlotWidth(viewportWidth)
	return Layout{
		Focus:      state.Focus,
		Count:      state.Count,
		Version:    state.Version,
		SlotWidth:  slot,
		Placements: carousel.ProjectItems(items, state.Focus, slot),
	}
}

// OpenArtwork shows the detail view for the item at index. Only items
// within the visible window can be opened.
func (r *Room) OpenArtwork(index int) (*Artwork, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	n := len(r.items)
	if index < 0 || index >= n {
		return nil, ErrNotInteractive
	}
	focus := r.carousel.State().Focus
	if ring.Distance(index, focus, n) > carousel.MaxVisible {
		return nil, ErrNotInteractive
	}

	item := r.items[index]
	r.active = &item
	return newArtwork(item), nil
}

// CloseArtwork dismisses the detail view
func (r *Room) CloseArtwork() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.active = nil
}

// Snapshot returns a read-only view of the room
func (r *Room) Snapshot() Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()

	s := Snapshot{
		SessionID:      r.ID,
		CreatedAt:      r.CreatedAt,
		PreviewURL:     r.previewURL,
		Style:          r.style,
		FormattedStyle: styles.FormatName(r.style),
		TopK:           append([]models.RankedStyle(nil), r.ranked...),
		PredictStatus:  r.predictStatus,
		GalleryStatus:  r.galleryStatus,
		Title:          styles.Title(r.style),
		Items:          append([]models.CarouselItem(nil), r.items...),
		StartIndex:     r.startIndex,
		Focus:          r.carousel.State().Focus,
		CanAnalyze:     r.file != nil,
		CanRetry:       r.canRetryLocked(),
	}
	if r.file != nil {
		s.FileName = r.file.Name
	}

	s.Description = r.deps.Styles.Description(r.style)
	if meta, ok := r.deps.Styles.Get(r.style); ok {
		s.Sources = meta.Sources
		s.Accessed = meta.Accessed
	}

	switch {
	case r.predictStatus.Loading:
		s.StatusLine = statusPredicting
	case r.galleryStatus.Loading:
		s.StatusLine = fmt.Sprintf(statusGathering, r.deps.Limits.GalleryLimit)
	}
	s.Error = r.predictStatus.Error
	if s.Error == "" {
		s.Error = r.galleryStatus.Error
	}

	if r.active != nil {
		s.Active = newArtwork(*r.active)
	}
	return s
}

func (r *Room) userMessage(err error, fallback string) string {
	var (
		validationErr *models.ValidationError
		serviceErr    *models.ServiceError
	)
	switch {
	case errors.Is(err, models.ErrMissingEndpoint):
		return MsgMissingEndpoint
	case errors.Is(err, reducer.ErrCompressionExhausted):
		return fmt.Sprintf("Unable to compress image below %s.", reducer.FormatBudget(r.deps.Limits.PredictMaxBytes))
	case errors.Is(err, predict.ErrNoStyle):
		return MsgNoStyle
	case errors.Is(err, context.DeadlineExceeded), isTimeout(err):
		return MsgTimedOut
	case errors.As(err, &validationErr):
		return validationErr.Message
	case errors.As(err, &serviceErr):
		return serviceErr.Display()
	}
	return fallback
}

// isTimeout catches client timeouts that do not wrap context.DeadlineExceeded
func isTimeout(err error) bool {
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

type configurable interface {
	Configured() bool
}

// configured reports whether a collaborator is present and, when it can
// tell, has an endpoint to talk to.
func configured(v any) bool {
	if v == nil {
		return false
	}
	if c, ok := v.(configurable); ok {
		return c.Configured()
	}
	return true
}

// TooLargeMessage is shown when an upload exceeds limit bytes
func TooLargeMessage(limit int64) string {
	return fmt.Sprintf("That file is too large. Please choose an image under %s.", formatMegabytes(limit))
}

func formatMegabytes(b int64) string {
	const mb = 1024 * 1024
	if b >= mb && b%mb == 0 {
		return fmt.Sprintf("%dMB", b/mb)
	}
	return reducer.FormatBudget(b)
}
