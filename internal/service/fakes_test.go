// fakes_test.go — in-memory реализации репозиториев для unit-тестов
// сервисного слоя. Интеграционные тесты с реальной БД живут в
// internal/repository.
package service

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"io"
	"log/slog"
	"sort"
	"testing"
	"time"

	"github.com/maltalist/maltalist-api/internal/domain/model"
	"github.com/maltalist/maltalist-api/internal/repository"
	"github.com/maltalist/maltalist-api/internal/sanitizer"
	"github.com/maltalist/maltalist-api/internal/storage/picstore"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// --- fakeListingRepo ---

type fakeListingRepo struct {
	listings map[int64]*model.Listing
	nextID   int64
}

func newFakeListingRepo() *fakeListingRepo {
	return &fakeListingRepo{listings: make(map[int64]*model.Listing), nextID: 1}
}

func (f *fakeListingRepo) Create(_ context.Context, l *model.Listing) error {
	l.ID = f.nextID
	f.nextID++
	now := time.Now().UTC()
	l.CreatedAt = now
	l.UpdatedAt = now
	cp := *l
	f.listings[l.ID] = &cp
	return nil
}

func (f *fakeListingRepo) GetByID(_ context.Context, id int64) (*model.Listing, error) {
	l, ok := f.listings[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *l
	return &cp, nil
}

func (f *fakeListingRepo) List(_ context.Context, category *string, approved *bool) ([]*model.Listing, error) {
	var result []*model.Listing
	for _, l := range f.listings {
		if category != nil && l.Category != *category {
			continue
		}
		if approved != nil && l.Approved != *approved {
			continue
		}
		cp := *l
		result = append(result, &cp)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result, nil
}

func (f *fakeListingRepo) ListByUser(_ context.Context, userID string) ([]*model.Listing, error) {
	var result []*model.Listing
	for _, l := range f.listings {
		if l.UserID == userID {
			cp := *l
			result = append(result, &cp)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result, nil
}

func (f *fakeListingRepo) Categories(_ context.Context) ([]string, error) {
	seen := make(map[string]bool)
	var categories []string
	for _, l := range f.listings {
		if !seen[l.Category] {
			seen[l.Category] = true
			categories = append(categories, l.Category)
		}
	}
	sort.Strings(categories)
	return categories, nil
}

func (f *fakeListingRepo) Update(_ context.Context, l *model.Listing) error {
	if _, ok := f.listings[l.ID]; !ok {
		return repository.ErrNotFound
	}
	l.UpdatedAt = time.Now().UTC()
	cp := *l
	f.listings[l.ID] = &cp
	return nil
}

func (f *fakeListingRepo) SetApproved(_ context.Context, id int64, approved bool) error {
	l, ok := f.listings[id]
	if !ok {
		return repository.ErrNotFound
	}
	l.Approved = approved
	return nil
}

func (f *fakeListingRepo) Delete(_ context.Context, id int64) error {
	if _, ok := f.listings[id]; !ok {
		return repository.ErrNotFound
	}
	delete(f.listings, id)
	return nil
}

// --- fakeUserRepo ---

type fakeUserRepo struct {
	users map[string]*model.User
}

func newFakeUserRepo() *fakeUserRepo {
	return &fakeUserRepo{users: make(map[string]*model.User)}
}

func (f *fakeUserRepo) Create(_ context.Context, u *model.User) error {
	if _, ok := f.users[u.ID]; ok {
		return repository.ErrConflict
	}
	for _, existing := range f.users {
		if existing.Email == u.Email {
			return repository.ErrConflict
		}
	}
	now := time.Now().UTC()
	u.CreatedAt = now
	u.LastOnline = now
	cp := *u
	f.users[u.ID] = &cp
	return nil
}

func (f *fakeUserRepo) GetByID(_ context.Context, id string) (*model.User, error) {
	u, ok := f.users[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (f *fakeUserRepo) GetByEmail(_ context.Context, email string) (*model.User, error) {
	for _, u := range f.users {
		if u.Email == email {
			cp := *u
			return &cp, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (f *fakeUserRepo) Update(_ context.Context, u *model.User) error {
	if _, ok := f.users[u.ID]; !ok {
		return repository.ErrNotFound
	}
	cp := *u
	f.users[u.ID] = &cp
	return nil
}

func (f *fakeUserRepo) TouchLastOnline(_ context.Context, id string) error {
	u, ok := f.users[id]
	if !ok {
		return repository.ErrNotFound
	}
	u.LastOnline = time.Now().UTC()
	return nil
}

func (f *fakeUserRepo) Delete(_ context.Context, id string) error {
	if _, ok := f.users[id]; !ok {
		return repository.ErrNotFound
	}
	delete(f.users, id)
	return nil
}

// --- fakeReportRepo ---

type fakeReportRepo struct {
	reports map[int64]*model.Report
	nextID  int64
}

func newFakeReportRepo() *fakeReportRepo {
	return &fakeReportRepo{reports: make(map[int64]*model.Report), nextID: 1}
}

func (f *fakeReportRepo) Create(_ context.Context, rep *model.Report) error {
	rep.ID = f.nextID
	f.nextID++
	rep.CreatedAt = time.Now().UTC()
	cp := *rep
	f.reports[rep.ID] = &cp
	return nil
}

func (f *fakeReportRepo) GetByID(_ context.Context, id int64) (*model.Report, error) {
	rep, ok := f.reports[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *rep
	return &cp, nil
}

func (f *fakeReportRepo) List(_ context.Context, status *model.ReportStatus) ([]*model.Report, error) {
	var result []*model.Report
	for _, rep := range f.reports {
		if status != nil && rep.Status != *status {
			continue
		}
		cp := *rep
		result = append(result, &cp)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result, nil
}

func (f *fakeReportRepo) UpdateStatus(_ context.Context, id int64, status model.ReportStatus, reviewedBy, notes *string) error {
	rep, ok := f.reports[id]
	if !ok {
		return repository.ErrNotFound
	}
	now := time.Now().UTC()
	rep.Status = status
	rep.ReviewedAt = &now
	rep.ReviewedBy = reviewedBy
	rep.ReviewNotes = notes
	return nil
}

func (f *fakeReportRepo) Delete(_ context.Context, id int64) error {
	if _, ok := f.reports[id]; !ok {
		return repository.ErrNotFound
	}
	delete(f.reports, id)
	return nil
}

// --- fakePromotionRepo ---

type fakePromotionRepo struct {
	promotions map[int64]*model.Promotion
	nextID     int64
}

func newFakePromotionRepo() *fakePromotionRepo {
	return &fakePromotionRepo{promotions: make(map[int64]*model.Promotion), nextID: 1}
}

func (f *fakePromotionRepo) Replace(_ context.Context, p *model.Promotion) error {
	for id, existing := range f.promotions {
		if existing.ListingID == p.ListingID {
			delete(f.promotions, id)
		}
	}
	p.ID = f.nextID
	f.nextID++
	cp := *p
	f.promotions[p.ID] = &cp
	return nil
}

func (f *fakePromotionRepo) GetByListing(_ context.Context, listingID int64) (*model.Promotion, error) {
	var latest *model.Promotion
	for _, p := range f.promotions {
		if p.ListingID != listingID {
			continue
		}
		if latest == nil || p.ExpirationDate.After(latest.ExpirationDate) {
			latest = p
		}
	}
	if latest == nil {
		return nil, repository.ErrNotFound
	}
	cp := *latest
	return &cp, nil
}

func (f *fakePromotionRepo) ListActive(_ context.Context, category *string, now time.Time) ([]*model.Promotion, error) {
	var result []*model.Promotion
	for _, p := range f.promotions {
		if !p.ExpirationDate.After(now) {
			continue
		}
		if category != nil && p.Category != *category {
			continue
		}
		cp := *p
		result = append(result, &cp)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result, nil
}

func (f *fakePromotionRepo) DeleteExpired(_ context.Context, now time.Time) (int64, error) {
	var deleted int64
	for id, p := range f.promotions {
		if !p.ExpirationDate.After(now) {
			delete(f.promotions, id)
			deleted++
		}
	}
	return deleted, nil
}

func (f *fakePromotionRepo) Delete(_ context.Context, id int64) error {
	if _, ok := f.promotions[id]; !ok {
		return repository.ErrNotFound
	}
	delete(f.promotions, id)
	return nil
}

// --- общие помощники ---

// testPicturesService собирает PicturesService поверх временной директории.
func testPicturesService(t *testing.T, listings repository.ListingRepository, users repository.UserRepository) *PicturesService {
	t.Helper()
	store, err := picstore.New(t.TempDir(), "/assets/img", testLogger())
	if err != nil {
		t.Fatalf("Ошибка создания picstore: %v", err)
	}
	cache := NewPictureURLCache(64, time.Minute)
	return NewPicturesService(store, cache, listings, users, testLogger())
}

func testImage(w, h int) image.Image {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{R: uint8(x % 256), G: uint8(y % 256), B: 64, A: 255})
		}
	}
	return img
}

func jpegCandidate(t *testing.T, name string) sanitizer.Candidate {
	t.Helper()
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, testImage(16, 16), nil); err != nil {
		t.Fatalf("ошибка кодирования JPEG: %v", err)
	}
	return sanitizer.Candidate{Filename: name, ContentType: "image/jpeg", Data: buf.Bytes()}
}

func pngCandidate(t *testing.T, name string) sanitizer.Candidate {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, testImage(16, 16)); err != nil {
		t.Fatalf("ошибка кодирования PNG: %v", err)
	}
	return sanitizer.Candidate{Filename: name, ContentType: "image/png", Data: buf.Bytes()}
}
