package picstore

import (
	"bytes"
	"errors"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/maltalist/maltalist-api/internal/sanitizer"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testStore(t *testing.T) *Store {
	t.Helper()
	s, err := New(t.TempDir(), "/assets/img", testLogger())
	if err != nil {
		t.Fatalf("не удалось создать Store: %v", err)
	}
	return s
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

func TestAddPictures_SequentialNaming(t *testing.T) {
	s := testStore(t)

	saved, err := s.AddPictures(KindListings, "42", []sanitizer.Candidate{
		jpegCandidate(t, "a.jpg"),
		pngCandidate(t, "b.png"),
	})
	if err != nil {
		t.Fatalf("неожиданная ошибка: %v", err)
	}
	want := []string{"Picture1.jpg", "Picture2.png"}
	if !reflect.DeepEqual(saved, want) {
		t.Errorf("имена = %v, ожидалось %v", saved, want)
	}

	// Дозапись продолжает нумерацию.
	saved, err = s.AddPictures(KindListings, "42", []sanitizer.Candidate{
		jpegCandidate(t, "c.jpg"),
	})
	if err != nil {
		t.Fatalf("неожиданная ошибка: %v", err)
	}
	if !reflect.DeepEqual(saved, []string{"Picture3.jpg"}) {
		t.Errorf("имена = %v, ожидалось [Picture3.jpg]", saved)
	}
}

func TestAddPictures_NextIndexIsMaxPlusOne(t *testing.T) {
	s := testStore(t)

	if _, err := s.AddPictures(KindListings, "7", []sanitizer.Candidate{
		jpegCandidate(t, "a.jpg"),
		jpegCandidate(t, "b.jpg"),
		jpegCandidate(t, "c.jpg"),
	}); err != nil {
		t.Fatalf("неожиданная ошибка: %v", err)
	}
	if err := s.DeletePicture(KindListings, "7", "Picture2.jpg"); err != nil {
		t.Fatalf("ошибка удаления: %v", err)
	}

	// После удаления Picture2 следующий индекс считается от максимума,
	// дырка не переиспользуется.
	saved, err := s.AddPictures(KindListings, "7", []sanitizer.Candidate{
		jpegCandidate(t, "d.jpg"),
	})
	if err != nil {
		t.Fatalf("неожиданная ошибка: %v", err)
	}
	if !reflect.DeepEqual(saved, []string{"Picture4.jpg"}) {
		t.Errorf("имена = %v, ожидалось [Picture4.jpg]", saved)
	}
}

func TestAddPictures_PerCallCap(t *testing.T) {
	tests := []struct {
		name       string
		kind       Kind
		candidates int
		wantSaved  int
	}{
		{"объявление: 11 кандидатов, записано 10", KindListings, 11, 10},
		{"пользователь: 2 кандидата, записан 1", KindUsers, 2, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := testStore(t)
			var candidates []sanitizer.Candidate
			for i := 0; i < tt.candidates; i++ {
				candidates = append(candidates, jpegCandidate(t, "f.jpg"))
			}

			saved, err := s.AddPictures(tt.kind, "id1", candidates)
			if err != nil {
				t.Fatalf("неожиданная ошибка: %v", err)
			}
			if len(saved) != tt.wantSaved {
				t.Errorf("записано %d, ожидалось %d", len(saved), tt.wantSaved)
			}

			names, err := s.ListPictures(tt.kind, "id1")
			if err != nil {
				t.Fatalf("ошибка листинга: %v", err)
			}
			if len(names) != tt.wantSaved {
				t.Errorf("на диске %d файлов, ожидалось %d", len(names), tt.wantSaved)
			}
		})
	}
}

// TestAddPictures_CapAcrossCalls — лимит вида ограничивает весь набор
// сущности, а не один вызов: повторные дозаписи не выводят директорию
// за пределы максимума.
func TestAddPictures_CapAcrossCalls(t *testing.T) {
	s := testStore(t)

	sixPack := func() []sanitizer.Candidate {
		var candidates []sanitizer.Candidate
		for i := 0; i < 6; i++ {
			candidates = append(candidates, jpegCandidate(t, "f.jpg"))
		}
		return candidates
	}

	saved, err := s.AddPictures(KindListings, "42", sixPack())
	if err != nil {
		t.Fatalf("неожиданная ошибка первого вызова: %v", err)
	}
	if len(saved) != 6 {
		t.Fatalf("первый вызов записал %d, ожидалось 6", len(saved))
	}

	saved, err = s.AddPictures(KindListings, "42", sixPack())
	if err != nil {
		t.Fatalf("неожиданная ошибка второго вызова: %v", err)
	}
	if len(saved) != 4 {
		t.Errorf("второй вызов записал %d, ожидалось 4 (бюджет до лимита)", len(saved))
	}

	names, err := s.ListPictures(KindListings, "42")
	if err != nil {
		t.Fatalf("ошибка листинга: %v", err)
	}
	if len(names) != KindListings.MaxPictures() {
		t.Errorf("на диске %d файлов, ожидалось %d", len(names), KindListings.MaxPictures())
	}

	// Набор заполнен — третий вызов не записывает ничего.
	saved, err = s.AddPictures(KindListings, "42", sixPack())
	if err != nil {
		t.Fatalf("неожиданная ошибка третьего вызова: %v", err)
	}
	if len(saved) != 0 {
		t.Errorf("третий вызов записал %d, ожидалось 0", len(saved))
	}
}

// TestAddPictures_AvatarSlotIsExclusive — второй вызов для пользователя
// с уже существующей аватаркой ничего не дописывает.
func TestAddPictures_AvatarSlotIsExclusive(t *testing.T) {
	s := testStore(t)

	if _, err := s.AddPictures(KindUsers, "user-1", []sanitizer.Candidate{jpegCandidate(t, "a.jpg")}); err != nil {
		t.Fatalf("неожиданная ошибка: %v", err)
	}

	saved, err := s.AddPictures(KindUsers, "user-1", []sanitizer.Candidate{jpegCandidate(t, "b.jpg")})
	if err != nil {
		t.Fatalf("неожиданная ошибка: %v", err)
	}
	if len(saved) != 0 {
		t.Errorf("второй вызов записал %d, ожидалось 0 — слот аватарки занят", len(saved))
	}
}

func TestAddPictures_AbortKeepsEarlierWrites(t *testing.T) {
	s := testStore(t)

	bad := sanitizer.Candidate{
		Filename:    "evil.jpg",
		ContentType: "image/jpeg",
		Data:        []byte("это не картинка, а текст"),
	}

	saved, err := s.AddPictures(KindListings, "9", []sanitizer.Candidate{
		jpegCandidate(t, "ok.jpg"),
		bad,
		jpegCandidate(t, "never.jpg"),
	})
	if !errors.Is(err, sanitizer.ErrInvalidSignature) {
		t.Fatalf("ошибка = %v, ожидалась ErrInvalidSignature", err)
	}
	if !reflect.DeepEqual(saved, []string{"Picture1.jpg"}) {
		t.Errorf("записанные = %v, ожидалось [Picture1.jpg]", saved)
	}

	// Первый файл остаётся, третий не записывался.
	names, err := s.ListPictures(KindListings, "9")
	if err != nil {
		t.Fatalf("ошибка листинга: %v", err)
	}
	if !reflect.DeepEqual(names, []string{"Picture1.jpg"}) {
		t.Errorf("на диске %v, ожидалось [Picture1.jpg]", names)
	}
}

func TestDeletePicture(t *testing.T) {
	tests := []struct {
		name     string
		filename string
		wantErr  error
	}{
		{"существующий файл", "Picture1.jpg", nil},
		{"отсутствующий файл", "Picture99.jpg", ErrNotFound},
		{"разделитель пути", "sub/Picture1.jpg", ErrInvalidFilename},
		{"обратный слэш", `..\Picture1.jpg`, ErrInvalidFilename},
		{"точки", "../secret", ErrInvalidFilename},
		{"пустое имя", "", ErrInvalidFilename},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := testStore(t)
			if _, err := s.AddPictures(KindListings, "5", []sanitizer.Candidate{
				jpegCandidate(t, "a.jpg"),
			}); err != nil {
				t.Fatalf("подготовка: %v", err)
			}

			err := s.DeletePicture(KindListings, "5", tt.filename)
			if tt.wantErr == nil {
				if err != nil {
					t.Fatalf("неожиданная ошибка: %v", err)
				}
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("ошибка = %v, ожидалась %v", err, tt.wantErr)
			}
		})
	}
}

func TestEntityIDTraversalRejected(t *testing.T) {
	s := testStore(t)

	if _, err := s.AddPictures(KindListings, "../evil", nil); !errors.Is(err, ErrInvalidFilename) {
		t.Errorf("AddPictures: ошибка = %v, ожидалась ErrInvalidFilename", err)
	}
	if _, err := s.ListPictures(KindListings, "a/b"); !errors.Is(err, ErrInvalidFilename) {
		t.Errorf("ListPictures: ошибка = %v, ожидалась ErrInvalidFilename", err)
	}
	if err := s.DeleteAll(KindUsers, ".."); !errors.Is(err, ErrInvalidFilename) {
		t.Errorf("DeleteAll: ошибка = %v, ожидалась ErrInvalidFilename", err)
	}
}

func TestListPictures_LexicographicOrder(t *testing.T) {
	s := testStore(t)
	dir := filepath.Join(s.BasePath(), "listings", "3")
	if err := os.MkdirAll(dir, 0o750); err != nil {
		t.Fatalf("подготовка: %v", err)
	}
	for _, name := range []string{"Picture2.jpg", "Picture10.jpg", "Picture1.jpg"} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte("x"), 0o640); err != nil {
			t.Fatalf("подготовка: %v", err)
		}
	}

	names, err := s.ListPictures(KindListings, "3")
	if err != nil {
		t.Fatalf("неожиданная ошибка: %v", err)
	}
	// Лексикографический порядок: Picture10 раньше Picture2.
	want := []string{"Picture1.jpg", "Picture10.jpg", "Picture2.jpg"}
	if !reflect.DeepEqual(names, want) {
		t.Errorf("порядок = %v, ожидался %v", names, want)
	}
}

// TestListPictures_SkipsTmpLeftovers — недописанный *.tmp после
// прерванной атомарной записи не попадает в листинг и не занимает слот.
func TestListPictures_SkipsTmpLeftovers(t *testing.T) {
	s := testStore(t)
	if _, err := s.AddPictures(KindListings, "5", []sanitizer.Candidate{
		jpegCandidate(t, "a.jpg"),
	}); err != nil {
		t.Fatalf("подготовка: %v", err)
	}

	dir := filepath.Join(s.BasePath(), "listings", "5")
	if err := os.WriteFile(filepath.Join(dir, "Picture2.jpg.tmp"), []byte("x"), 0o640); err != nil {
		t.Fatalf("подготовка: %v", err)
	}

	names, err := s.ListPictures(KindListings, "5")
	if err != nil {
		t.Fatalf("неожиданная ошибка: %v", err)
	}
	want := []string{"Picture1.jpg"}
	if !reflect.DeepEqual(names, want) {
		t.Errorf("листинг = %v, ожидался %v", names, want)
	}

	urls, err := s.PictureURLs(KindListings, "5")
	if err != nil {
		t.Fatalf("неожиданная ошибка: %v", err)
	}
	if len(urls) != 1 {
		t.Errorf("URL = %v, .tmp не должен попадать в публичные ссылки", urls)
	}
}

func TestListPictures_AbsentEntity(t *testing.T) {
	s := testStore(t)
	if _, err := s.ListPictures(KindListings, "404"); !errors.Is(err, ErrNotFound) {
		t.Errorf("ошибка = %v, ожидалась ErrNotFound", err)
	}
}

func TestPictureURLs(t *testing.T) {
	s := testStore(t)
	if _, err := s.AddPictures(KindUsers, "user-1", []sanitizer.Candidate{
		jpegCandidate(t, "avatar.jpg"),
	}); err != nil {
		t.Fatalf("подготовка: %v", err)
	}

	urls, err := s.PictureURLs(KindUsers, "user-1")
	if err != nil {
		t.Fatalf("неожиданная ошибка: %v", err)
	}
	want := []string{"/assets/img/users/user-1/Picture1.jpg"}
	if !reflect.DeepEqual(urls, want) {
		t.Errorf("URL = %v, ожидалось %v", urls, want)
	}
}

func TestReorderPictures(t *testing.T) {
	s := testStore(t)
	if _, err := s.AddPictures(KindListings, "11", []sanitizer.Candidate{
		jpegCandidate(t, "a.jpg"),
		jpegCandidate(t, "b.jpg"),
		jpegCandidate(t, "c.jpg"),
	}); err != nil {
		t.Fatalf("подготовка: %v", err)
	}

	err := s.ReorderPictures(KindListings, "11", []string{
		"Picture3.jpg", "Picture1.jpg", "Picture2.jpg",
	})
	if err != nil {
		t.Fatalf("неожиданная ошибка: %v", err)
	}

	names, err := s.ListPictures(KindListings, "11")
	if err != nil {
		t.Fatalf("ошибка листинга: %v", err)
	}
	want := []string{"001_Picture3.jpg", "002_Picture1.jpg", "003_Picture2.jpg"}
	if !reflect.DeepEqual(names, want) {
		t.Errorf("имена = %v, ожидалось %v", names, want)
	}

	// Scratch-директория удалена.
	if _, err := os.Stat(filepath.Join(s.BasePath(), "listings", "11_temp")); !os.IsNotExist(err) {
		t.Errorf("scratch-директория не удалена")
	}
}

func TestReorderPictures_StripsPreviousPrefix(t *testing.T) {
	s := testStore(t)
	if _, err := s.AddPictures(KindListings, "12", []sanitizer.Candidate{
		jpegCandidate(t, "a.jpg"),
		jpegCandidate(t, "b.jpg"),
	}); err != nil {
		t.Fatalf("подготовка: %v", err)
	}

	if err := s.ReorderPictures(KindListings, "12", []string{"Picture2.jpg", "Picture1.jpg"}); err != nil {
		t.Fatalf("первый reorder: %v", err)
	}
	if err := s.ReorderPictures(KindListings, "12", []string{"002_Picture1.jpg", "001_Picture2.jpg"}); err != nil {
		t.Fatalf("второй reorder: %v", err)
	}

	names, err := s.ListPictures(KindListings, "12")
	if err != nil {
		t.Fatalf("ошибка листинга: %v", err)
	}
	// Префиксы не накапливаются: старый срезается перед новым.
	want := []string{"001_Picture1.jpg", "002_Picture2.jpg"}
	if !reflect.DeepEqual(names, want) {
		t.Errorf("имена = %v, ожидалось %v", names, want)
	}
}

func TestReorderPictures_MissingFileRejectsWholeCall(t *testing.T) {
	s := testStore(t)
	if _, err := s.AddPictures(KindListings, "13", []sanitizer.Candidate{
		jpegCandidate(t, "a.jpg"),
		jpegCandidate(t, "b.jpg"),
	}); err != nil {
		t.Fatalf("подготовка: %v", err)
	}

	err := s.ReorderPictures(KindListings, "13", []string{
		"Picture1.jpg", "Picture99.jpg", "Picture2.jpg",
	})
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("ошибка = %v, ожидалась ErrNotFound", err)
	}

	// Ни одно переименование не выполнялось.
	names, err := s.ListPictures(KindListings, "13")
	if err != nil {
		t.Fatalf("ошибка листинга: %v", err)
	}
	if !reflect.DeepEqual(names, []string{"Picture1.jpg", "Picture2.jpg"}) {
		t.Errorf("имена = %v, файлы не должны были измениться", names)
	}
}

func TestReorderPictures_TraversalRejected(t *testing.T) {
	s := testStore(t)
	if _, err := s.AddPictures(KindListings, "14", []sanitizer.Candidate{
		jpegCandidate(t, "a.jpg"),
	}); err != nil {
		t.Fatalf("подготовка: %v", err)
	}

	err := s.ReorderPictures(KindListings, "14", []string{"../Picture1.jpg"})
	if !errors.Is(err, ErrInvalidFilename) {
		t.Errorf("ошибка = %v, ожидалась ErrInvalidFilename", err)
	}
}

func TestReplacePictures(t *testing.T) {
	s := testStore(t)
	if _, err := s.AddPictures(KindUsers, "u2", []sanitizer.Candidate{
		jpegCandidate(t, "old.jpg"),
	}); err != nil {
		t.Fatalf("подготовка: %v", err)
	}

	saved, err := s.ReplacePictures(KindUsers, "u2", []sanitizer.Candidate{
		pngCandidate(t, "new.png"),
	})
	if err != nil {
		t.Fatalf("неожиданная ошибка: %v", err)
	}
	if !reflect.DeepEqual(saved, []string{"Picture1.png"}) {
		t.Errorf("имена = %v, ожидалось [Picture1.png]", saved)
	}

	names, err := s.ListPictures(KindUsers, "u2")
	if err != nil {
		t.Fatalf("ошибка листинга: %v", err)
	}
	if !reflect.DeepEqual(names, []string{"Picture1.png"}) {
		t.Errorf("на диске %v, старые файлы должны быть удалены", names)
	}
}

func TestDeleteAll_AbsentIsNoop(t *testing.T) {
	s := testStore(t)
	if err := s.DeleteAll(KindListings, "nope"); err != nil {
		t.Errorf("неожиданная ошибка: %v", err)
	}
}
