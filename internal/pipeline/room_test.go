package pipeline

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/artinstitute/galleryroom/internal/carousel"
	"github.com/artinstitute/galleryroom/internal/models"
	"github.com/artinstitute/galleryroom/internal/predict"
	"github.com/artinstitute/galleryroom/internal/reducer"
	"github.com/artinstitute/galleryroom/internal/styles"
)

type fakeReducer struct {
	err error
}

func (f *fakeReducer) Reduce(ctx context.Context, asset models.ImageAsset, budget int64) (*reducer.Result, error) {
	if f.err != nil {
		return nil, f.err
	}
	if asset.Size() <= budget {
		return &reducer.Result{Asset: asset}, nil
	}
	return &reducer.Result{
		Asset:   models.ImageAsset{Data: asset.Data[:budget], MediaType: reducer.OutputMediaType, Name: reducer.PredictFileName(asset.Name)},
		Reduced: true,
		Tries:   3,
	}, nil
}

type fakePredictor struct {
	mu         sync.Mutex
	prediction *predict.Prediction
	err        error
	started    chan struct{}
	release    chan struct{}
	seen       []models.ImageAsset
}

func (f *fakePredictor) Predict(ctx context.Context, image models.ImageAsset, topK int) (*predict.Prediction, error) {
	f.mu.Lock()
	f.seen = append(f.seen, image)
	f.mu.Unlock()
	if f.started != nil {
		f.started <- struct{}{}
	}
	if f.release != nil {
		<-f.release
	}
	return f.prediction, f.err
}

type fakeGallery struct {
	mu      sync.Mutex
	items   []models.CarouselItem
	errs    []error
	calls   int
	started chan struct{}
	release chan struct{}
}

func (f *fakeGallery) Fetch(ctx context.Context, style string, limit int) ([]models.CarouselItem, error) {
	f.mu.Lock()
	call := f.calls
	f.calls++
	f.mu.Unlock()

	if f.started != nil {
		f.started <- struct{}{}
	}
	if f.release != nil {
		<-f.release
	}
	if call < len(f.errs) && f.errs[call] != nil {
		return nil, f.errs[call]
	}
	return f.items, nil
}

func collection(n int) []models.CarouselItem {
	items := make([]models.CarouselItem, n)
	for i := range items {
		items[i] = models.CarouselItem{
			ID:       fmt.Sprintf("work-%d", i),
			Title:    fmt.Sprintf("Work %d", i),
			Artist:   "Painter",
			Style:    "Impressionism",
			ImageURL: fmt.Sprintf("https://example.org/%d.jpg", i),
		}
	}
	return items
}

func impressionism() *predict.Prediction {
	return &predict.Prediction{
		Predicted: &models.RankedStyle{Style: "Impressionism", Confidence: 0.8},
		TopK:      []models.RankedStyle{{Style: "Impressionism", Confidence: 0.8}, {Style: "Realism", Confidence: 0.1}},
	}
}

func upload(name string, size int) *models.ImageAsset {
	return &models.ImageAsset{Data: make([]byte, size), MediaType: "image/png", Name: name}
}

func newTestRoom(t *testing.T, p predict.Predictor, g *fakeGallery) *Room {
	t.Helper()
	lookup, err := styles.Default()
	if err != nil {
		t.Fatalf("Failed to load styles: %v", err)
	}
	return NewRoom("room-1", Deps{
		Reducer:   &fakeReducer{},
		Predictor: p,
		Gallery:   g,
		Styles:    lookup,
	})
}

func TestAnalyzeMergesUploadIntoGallery(t *testing.T) {
	predictor := &fakePredictor{prediction: impressionism()}
	room := newTestRoom(t, predictor, &fakeGallery{items: collection(30)})

	if err := room.SelectFile(upload("sunrise.png", 500*1024)); err != nil {
		t.Fatalf("Unexpected select error: %v", err)
	}
	if err := room.Analyze(context.Background()); err != nil {
		t.Fatalf("Unexpected analyze error: %v", err)
	}

	snap := room.Snapshot()
	if len(snap.Items) != 25 {
		t.Fatalf("Expected 25 items, got %d", len(snap.Items))
	}
	user := snap.Items[12]
	if !user.IsUser || user.ID != models.UserArtworkID || user.Artist != models.UserArtist {
		t.Errorf("Expected user artwork at 12, got %+v", user)
	}
	if user.Style != "Impressionism" || user.ImageURL != snap.PreviewURL || user.ImageURL == "" {
		t.Errorf("Unexpected user artwork fields: %+v", user)
	}
	if snap.Items[11].ID != "work-11" || snap.Items[13].ID != "work-12" {
		t.Errorf("Expected gallery order around the split, got %s / %s", snap.Items[11].ID, snap.Items[13].ID)
	}
	if snap.StartIndex != 12 || snap.Focus != 12 {
		t.Errorf("Expected start and focus 12, got %d/%d", snap.StartIndex, snap.Focus)
	}
	if snap.Title != "IMPRESSIONISM" || snap.Description == "" || len(snap.Sources) == 0 {
		t.Errorf("Unexpected style header: %q %q %v", snap.Title, snap.Description, snap.Sources)
	}
	if snap.PredictStatus.Loading || snap.GalleryStatus.Loading || snap.Error != "" || snap.StatusLine != "" {
		t.Errorf("Expected settled statuses, got %+v", snap)
	}
	if len(snap.TopK) != 2 {
		t.Errorf("Expected ranked predictions, got %v", snap.TopK)
	}

	if len(predictor.seen) != 1 {
		t.Fatalf("Expected one prediction call, got %d", len(predictor.seen))
	}
	sent := predictor.seen[0]
	if sent.Name != "sunrise-predict.jpg" || sent.Size() > 300*1024 {
		t.Errorf("Expected reduced payload, got %s (%d bytes)", sent.Name, sent.Size())
	}
}

func TestAnalyzeSplitsOddGallery(t *testing.T) {
	room := newTestRoom(t, &fakePredictor{prediction: impressionism()}, &fakeGallery{items: collection(5)})
	_ = room.SelectFile(upload("a.png", 10))
	if err := room.Analyze(context.Background()); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	snap := room.Snapshot()
	if len(snap.Items) != 6 || !snap.Items[2].IsUser || snap.Focus != 2 {
		t.Errorf("Expected user at 2 of 6, got focus %d in %d items", snap.Focus, len(snap.Items))
	}
}

func TestAnalyzeEmptyGalleryLeavesNoCarousel(t *testing.T) {
	room := newTestRoom(t, &fakePredictor{prediction: impressionism()}, &fakeGallery{})
	_ = room.SelectFile(upload("a.png", 10))
	if err := room.Analyze(context.Background()); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	snap := room.Snapshot()
	if len(snap.Items) != 0 || room.Carousel().State().Count != 0 {
		t.Errorf("Expected an empty wall, got %d items", len(snap.Items))
	}
	if snap.Style != "Impressionism" {
		t.Errorf("Expected style to be kept, got %s", snap.Style)
	}
}

func TestSelectFileValidation(t *testing.T) {
	tests := []struct {
		name     string
		asset    *models.ImageAsset
		expected string
	}{
		{
			name:     "not an image",
			asset:    &models.ImageAsset{Data: []byte("%PDF"), MediaType: "application/pdf", Name: "doc.pdf"},
			expected: MsgBadMediaType,
		},
		{
			name:     "too large",
			asset:    upload("huge.png", 10*1024*1024+1),
			expected: "That file is too large. Please choose an image under 10MB.",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			room := newTestRoom(t, &fakePredictor{}, &fakeGallery{})
			err := room.SelectFile(tt.asset)

			var validationErr *models.ValidationError
			if !errors.As(err, &validationErr) {
				t.Fatalf("Expected ValidationError, got %v", err)
			}
			snap := room.Snapshot()
			if snap.PredictStatus.Error != tt.expected {
				t.Errorf("Expected %q, got %q", tt.expected, snap.PredictStatus.Error)
			}
			if snap.CanAnalyze || snap.PreviewURL != "" {
				t.Error("Expected the rejected file to be cleared")
			}
		})
	}

	room := newTestRoom(t, &fakePredictor{}, &fakeGallery{})
	if err := room.SelectFile(upload("edge.png", 10*1024*1024)); err != nil {
		t.Errorf("Expected a file of exactly 10MB to be accepted, got %v", err)
	}
}

func TestAnalyzeFailures(t *testing.T) {
	tests := []struct {
		name      string
		reducer   Reducer
		predictor predict.Predictor
		selected  bool
		expected  string
	}{
		{
			name:      "nothing selected",
			reducer:   &fakeReducer{},
			predictor: &fakePredictor{prediction: impressionism()},
			expected:  MsgSelectArtwork,
		},
		{
			name:      "missing endpoint",
			reducer:   &fakeReducer{},
			predictor: predict.NewHTTPPredictor("", time.Second),
			selected:  true,
			expected:  MsgMissingEndpoint,
		},
		{
			name:      "compression exhausted",
			reducer:   &fakeReducer{err: fmt.Errorf("%w below 300KB", reducer.ErrCompressionExhausted)},
			predictor: &fakePredictor{prediction: impressionism()},
			selected:  true,
			expected:  "Unable to compress image below 300KB.",
		},
		{
			name:      "no style",
			reducer:   &fakeReducer{},
			predictor: &fakePredictor{prediction: &predict.Prediction{}},
			selected:  true,
			expected:  MsgNoStyle,
		},
		{
			name:      "service error",
			reducer:   &fakeReducer{},
			predictor: &fakePredictor{err: &models.ServiceError{Service: "Predict", StatusCode: 500}},
			selected:  true,
			expected:  "Predict request failed (500)",
		},
		{
			name:      "transport timeout",
			reducer:   &fakeReducer{},
			predictor: &fakePredictor{err: &models.ServiceError{Service: "Predict", Err: context.DeadlineExceeded}},
			selected:  true,
			expected:  MsgTimedOut,
		},
		{
			name:      "transport failure hides address",
			reducer:   &fakeReducer{},
			predictor: &fakePredictor{err: &models.ServiceError{Service: "Predict", Err: errors.New(`Post "http://10.0.0.5/predict-style": connection refused`)}},
			selected:  true,
			expected:  "Predict request failed",
		},
		{
			name:      "unknown failure",
			reducer:   &fakeReducer{},
			predictor: &fakePredictor{err: errors.New("socket closed")},
			selected:  true,
			expected:  MsgPredictFailed,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			room := NewRoom("room", Deps{Reducer: tt.reducer, Predictor: tt.predictor, Gallery: &fakeGallery{}})
			if tt.selected {
				_ = room.SelectFile(upload("a.png", 400*1024))
			}

			if err := room.Analyze(context.Background()); err == nil {
				t.Fatal("Expected analyze to fail")
			}
			snap := room.Snapshot()
			if snap.PredictStatus.Loading {
				t.Error("Expected loading to end")
			}
			if snap.PredictStatus.Error != tt.expected || snap.Error != tt.expected {
				t.Errorf("Expected %q, got %q", tt.expected, snap.PredictStatus.Error)
			}
			if len(snap.Items) != 0 {
				t.Error("Expected no carousel after a failure")
			}
		})
	}
}

func TestSupersededPredictionIsDiscarded(t *testing.T) {
	predictor := &fakePredictor{
		prediction: impressionism(),
		started:    make(chan struct{}, 1),
		release:    make(chan struct{}),
	}
	room := newTestRoom(t, predictor, &fakeGallery{items: collection(24)})
	_ = room.SelectFile(upload("first.png", 10))

	done := make(chan error, 1)
	go func() { done <- room.Analyze(context.Background()) }()
	<-predictor.started

	if got := room.Snapshot().StatusLine; got != "Identifying style from your upload..." {
		t.Errorf("Unexpected status line %q", got)
	}

	_ = room.SelectFile(upload("second.png", 10))
	close(predictor.release)

	if err := <-done; err != nil {
		t.Errorf("Expected a superseded analyze to end quietly, got %v", err)
	}
	snap := room.Snapshot()
	if snap.Style != "" || len(snap.Items) != 0 || snap.PredictStatus.Loading {
		t.Errorf("Expected stale prediction to be dropped, got style=%q items=%d", snap.Style, len(snap.Items))
	}
	if snap.FileName != "second.png" {
		t.Errorf("Expected the newer file to stay selected, got %s", snap.FileName)
	}
}

func TestSupersededGalleryIsDiscarded(t *testing.T) {
	g := &fakeGallery{items: collection(24), started: make(chan struct{}, 1), release: make(chan struct{})}
	room := newTestRoom(t, &fakePredictor{prediction: impressionism()}, g)
	_ = room.SelectFile(upload("first.png", 10))

	done := make(chan error, 1)
	go func() { done <- room.Analyze(context.Background()) }()
	<-g.started

	if got := room.Snapshot().StatusLine; got != "Gathering 24 works from the collection..." {
		t.Errorf("Unexpected status line %q", got)
	}

	_ = room.SelectFile(upload("second.png", 10))
	close(g.release)

	if err := <-done; err != nil {
		t.Errorf("Unexpected error: %v", err)
	}
	if items := room.Snapshot().Items; len(items) != 0 {
		t.Errorf("Expected stale gallery to be dropped, got %d items", len(items))
	}
}

func TestRetryGallery(t *testing.T) {
	g := &fakeGallery{items: collection(24), errs: []error{&models.ServiceError{Service: "Gallery", StatusCode: 503, Message: "collection offline"}}}
	room := newTestRoom(t, &fakePredictor{prediction: impressionism()}, g)

	if err := room.RetryGallery(context.Background()); !errors.Is(err, ErrRetryUnavailable) {
		t.Errorf("Expected ErrRetryUnavailable before any style, got %v", err)
	}

	_ = room.SelectFile(upload("a.png", 10))
	if err := room.Analyze(context.Background()); err == nil {
		t.Fatal("Expected gallery failure to surface")
	}

	snap := room.Snapshot()
	if snap.GalleryStatus.Error != "collection offline" || !snap.CanRetry {
		t.Fatalf("Expected retryable gallery error, got %+v", snap.GalleryStatus)
	}
	if snap.Style != "Impressionism" || snap.PredictStatus.Error != "" {
		t.Errorf("Expected prediction to stand, got %+v", snap)
	}

	if err := room.RetryGallery(context.Background()); err != nil {
		t.Fatalf("Unexpected retry error: %v", err)
	}
	snap = room.Snapshot()
	if len(snap.Items) != 25 || snap.Focus != 12 || snap.CanRetry {
		t.Errorf("Expected carousel after retry, got %d items focus %d", len(snap.Items), snap.Focus)
	}
	if err := room.RetryGallery(context.Background()); !errors.Is(err, ErrRetryUnavailable) {
		t.Errorf("Expected retry to be unavailable after success, got %v", err)
	}
}

func TestCarouselInteraction(t *testing.T) {
	room := newTestRoom(t, &fakePredictor{prediction: impressionism()}, &fakeGallery{items: collection(24)})
	_ = room.SelectFile(upload("a.png", 10))
	if err := room.Analyze(context.Background()); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	layout := room.Layout(1000)
	if layout.Count != 25 || layout.SlotWidth != 200 {
		t.Fatalf("Unexpected layout %d items slot %v", layout.Count, layout.SlotWidth)
	}
	center := layout.Placements[12]
	if !center.Transform.Center || !center.Item.IsUser || center.Transform.ZIndex != 100 {
		t.Errorf("Expected the upload at the center, got %+v", center)
	}

	if !room.HandleInput(carousel.Event{Kind: carousel.EventKey, Key: carousel.KeyRight}) {
		t.Fatal("Expected key to rotate")
	}
	if got := room.Layout(0).Focus; got != 13 {
		t.Errorf("Expected focus 13, got %d", got)
	}

	artwork, err := room.OpenArtwork(12)
	if err != nil {
		t.Fatalf("Unexpected open error: %v", err)
	}
	if artwork.Heading != "You" || artwork.FormattedStyle != "Impressionism" {
		t.Errorf("Unexpected artwork detail: %+v", artwork)
	}
	if room.Snapshot().Active == nil {
		t.Error("Expected active artwork in snapshot")
	}
	room.CloseArtwork()
	if room.Snapshot().Active != nil {
		t.Error("Expected artwork to close")
	}

	if _, err := room.OpenArtwork(0); !errors.Is(err, ErrNotInteractive) {
		t.Errorf("Expected far item to be hidden, got %v", err)
	}
	if _, err := room.OpenArtwork(99); !errors.Is(err, ErrNotInteractive) {
		t.Errorf("Expected out of range to fail, got %v", err)
	}
}

func TestSelectFileResetsCarousel(t *testing.T) {
	room := newTestRoom(t, &fakePredictor{prediction: impressionism()}, &fakeGallery{items: collection(24)})
	_ = room.SelectFile(upload("a.png", 10))
	_ = room.Analyze(context.Background())

	_ = room.SelectFile(upload("b.png", 10))
	snap := room.Snapshot()
	if len(snap.Items) != 0 || snap.Style != "" || snap.Title != "Awaiting Style" {
		t.Errorf("Expected a cleared room, got %+v", snap)
	}
	if !snap.CanAnalyze || snap.PreviewURL == "" {
		t.Error("Expected the new file to be ready")
	}
	if got := room.Carousel().State().Count; got != 0 {
		t.Errorf("Expected carousel to be emptied, got %d", got)
	}
}

func TestAnalyzeHungPredictorTimesOut(t *testing.T) {
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-release
	}))
	defer server.Close()
	defer close(release)

	tests := []struct {
		name          string
		clientTimeout time.Duration
		runTimeout    time.Duration
	}{
		{name: "client timeout", clientTimeout: 50 * time.Millisecond, runTimeout: time.Minute},
		{name: "analyze deadline", clientTimeout: time.Minute, runTimeout: 50 * time.Millisecond},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			room := NewRoom("room", Deps{
				Reducer:   &fakeReducer{},
				Predictor: predict.NewHTTPPredictor(server.URL, tt.clientTimeout),
				Gallery:   &fakeGallery{},
			})
			_ = room.SelectFile(upload("a.png", 10))

			ctx, cancel := context.WithTimeout(context.Background(), tt.runTimeout)
			defer cancel()
			if err := room.Analyze(ctx); err == nil {
				t.Fatal("Expected analyze to fail")
			}

			snap := room.Snapshot()
			if snap.PredictStatus.Error != MsgTimedOut {
				t.Errorf("Expected %q, got %q", MsgTimedOut, snap.PredictStatus.Error)
			}
			if strings.Contains(snap.PredictStatus.Error, server.URL) {
				t.Errorf("Expected message without service address, got %q", snap.PredictStatus.Error)
			}
		})
	}
}
