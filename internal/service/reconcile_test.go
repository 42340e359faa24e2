package service

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/maltalist/maltalist-api/internal/domain/model"
	"github.com/maltalist/maltalist-api/internal/storage/picstore"
)

// reconcileFixture собирает сервис сверки поверх временного хранилища.
func reconcileFixture(t *testing.T) (*ReconcileService, *picstore.Store, *PictureURLCache, *fakeListingRepo, *fakeUserRepo) {
	t.Helper()

	store, err := picstore.New(t.TempDir(), "/assets/img", testLogger())
	if err != nil {
		t.Fatalf("Ошибка создания picstore: %v", err)
	}
	cache := NewPictureURLCache(64, time.Minute)
	listings := newFakeListingRepo()
	users := newFakeUserRepo()

	rs := NewReconcileService(store, cache, listings, users, time.Hour, testLogger())
	return rs, store, cache, listings, users
}

// mkEntityDir создаёт директорию сущности в хранилище напрямую.
func mkEntityDir(t *testing.T, store *picstore.Store, kind picstore.Kind, name string) string {
	t.Helper()
	dir := filepath.Join(store.BasePath(), string(kind), name)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatalf("Ошибка создания директории %s: %v", dir, err)
	}
	return dir
}

// ageDir сдвигает mtime директории в прошлое за порог брошенности.
func ageDir(t *testing.T, dir string) {
	t.Helper()
	old := time.Now().Add(-2 * time.Hour)
	if err := os.Chtimes(dir, old, old); err != nil {
		t.Fatalf("Ошибка изменения mtime %s: %v", dir, err)
	}
}

func dirExists(t *testing.T, dir string) bool {
	t.Helper()
	_, err := os.Stat(dir)
	if err == nil {
		return true
	}
	if os.IsNotExist(err) {
		return false
	}
	t.Fatalf("Ошибка проверки директории %s: %v", dir, err)
	return false
}

func TestReconcileRunOnce_RemovesOrphans(t *testing.T) {
	rs, store, cache, listings, users := reconcileFixture(t)
	ctx := context.Background()

	// Записи, существующие в БД
	listings.listings[1] = &model.Listing{ID: 1, UserID: "user-1", Title: "Велосипед"}
	users.users["user-1"] = &model.User{ID: "user-1", UserName: "Анна", Email: "anna@example.com"}

	// Директории на диске: живые, осиротевшие, брошенный scratch
	liveListing := mkEntityDir(t, store, picstore.KindListings, "1")
	orphanListing := mkEntityDir(t, store, picstore.KindListings, "2")
	staleScratch := mkEntityDir(t, store, picstore.KindListings, "2_temp")
	ageDir(t, staleScratch)
	liveUser := mkEntityDir(t, store, picstore.KindUsers, "user-1")
	orphanUser := mkEntityDir(t, store, picstore.KindUsers, "user-2")

	// Кэш URL для осиротевшего объявления должен быть инвалидирован
	cache.Set(picstore.KindListings, "2", []string{"/assets/img/listings/2/Picture1.jpg"})

	result, inProgress := rs.RunOnce(ctx)
	if inProgress {
		t.Fatal("Сверка не должна была сообщить о параллельном запуске")
	}
	if result == nil {
		t.Fatal("Ожидался ненулевой результат сверки")
	}

	if result.OrphanedListings != 1 {
		t.Errorf("OrphanedListings = %d, ожидалось 1", result.OrphanedListings)
	}
	if result.OrphanedUsers != 1 {
		t.Errorf("OrphanedUsers = %d, ожидалось 1", result.OrphanedUsers)
	}
	if result.StaleScratch != 1 {
		t.Errorf("StaleScratch = %d, ожидалось 1", result.StaleScratch)
	}
	if result.Checked != 4 {
		t.Errorf("Checked = %d, ожидалось 4", result.Checked)
	}
	if result.CompletedAt.Before(result.StartedAt) {
		t.Error("CompletedAt раньше StartedAt")
	}

	if !dirExists(t, liveListing) {
		t.Error("Директория живого объявления удалена")
	}
	if !dirExists(t, liveUser) {
		t.Error("Директория живого пользователя удалена")
	}
	if dirExists(t, orphanListing) {
		t.Error("Осиротевшая директория объявления не удалена")
	}
	if dirExists(t, orphanUser) {
		t.Error("Осиротевшая директория пользователя не удалена")
	}
	if dirExists(t, staleScratch) {
		t.Error("Брошенная временная директория не удалена")
	}

	if _, ok := cache.Get(picstore.KindListings, "2"); ok {
		t.Error("Кэш URL осиротевшего объявления не инвалидирован")
	}
}

// TestReconcileRunOnce_KeepsFreshScratch — свежая scratch-директория
// может принадлежать идущему reorder и не удаляется.
func TestReconcileRunOnce_KeepsFreshScratch(t *testing.T) {
	rs, store, _, _, _ := reconcileFixture(t)

	fresh := mkEntityDir(t, store, picstore.KindListings, "7_temp")

	result, inProgress := rs.RunOnce(context.Background())
	if inProgress {
		t.Fatal("Сверка не должна была сообщить о параллельном запуске")
	}
	if result.StaleScratch != 0 {
		t.Errorf("StaleScratch = %d, ожидалось 0", result.StaleScratch)
	}
	if !dirExists(t, fresh) {
		t.Error("Свежая scratch-директория не должна удаляться")
	}
}

func TestReconcileRunOnce_SkipsForeignDirs(t *testing.T) {
	rs, store, _, _, _ := reconcileFixture(t)

	// Директория с нечисловым именем объявлению принадлежать не может —
	// сверка её не трогает
	foreign := mkEntityDir(t, store, picstore.KindListings, "lost+found")

	result, inProgress := rs.RunOnce(context.Background())
	if inProgress {
		t.Fatal("Сверка не должна была сообщить о параллельном запуске")
	}
	if result.OrphanedListings != 0 {
		t.Errorf("OrphanedListings = %d, ожидалось 0", result.OrphanedListings)
	}
	if !dirExists(t, foreign) {
		t.Error("Посторонняя директория не должна удаляться")
	}
}

func TestReconcileRunOnce_SkipsWhenInProgress(t *testing.T) {
	rs, _, _, _, _ := reconcileFixture(t)

	rs.mu.Lock()
	rs.inProcess = true
	rs.mu.Unlock()

	result, inProgress := rs.RunOnce(context.Background())
	if !inProgress {
		t.Error("Ожидался флаг параллельного запуска")
	}
	if result != nil {
		t.Error("Результат при пропуске должен быть nil")
	}
	if !rs.IsInProgress() {
		t.Error("Флаг inProcess не должен сбрасываться пропущенным запуском")
	}
}

func TestReconcileRunOnce_EmptyStorage(t *testing.T) {
	rs, _, _, _, _ := reconcileFixture(t)

	result, inProgress := rs.RunOnce(context.Background())
	if inProgress {
		t.Fatal("Сверка не должна была сообщить о параллельном запуске")
	}
	if result.Checked != 0 {
		t.Errorf("Checked = %d, ожидалось 0 для пустого хранилища", result.Checked)
	}
}
