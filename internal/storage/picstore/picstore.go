// Пакет picstore — операции с картинками сущностей на диске.
// Директория сущности — источник истины для набора её картинок:
// имена Picture{n}.{ext} кодируют порядок отображения, отдельная
// таблица в БД не ведётся.
//
// Конкурентные записи по одной сущности не сериализуются: профиль
// нагрузки — редкие записи на сущность, гонка на вычислении
// следующего индекса принята как ограничение.
package picstore

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/maltalist/maltalist-api/internal/domain/model"
	"github.com/maltalist/maltalist-api/internal/sanitizer"
)

// Kind — вид сущности-владельца картинок.
type Kind string

const (
	// KindListings — картинки объявлений (до 10 штук)
	KindListings Kind = "listings"
	// KindUsers — аватарки пользователей (ровно одна)
	KindUsers Kind = "users"
)

// MaxPictures — лимит картинок для вида сущности.
func (k Kind) MaxPictures() int {
	if k == KindUsers {
		return model.MaxUserPictures
	}
	return model.MaxListingPictures
}

// Ошибки хранилища картинок.
var (
	// ErrInvalidFilename — имя содержит разделители пути или "..".
	ErrInvalidFilename = errors.New("некорректное имя файла")
	// ErrInvalidPath — итоговый путь выходит за пределы директории сущности.
	ErrInvalidPath = errors.New("путь выходит за пределы директории сущности")
	// ErrNotFound — файл или директория сущности не найдены.
	ErrNotFound = errors.New("картинка не найдена")
)

// pictureNameRe — имена последовательных картинок: Picture{n}.{ext}.
var pictureNameRe = regexp.MustCompile(`^Picture(\d+)\.`)

// orderPrefixRe — префикс порядка, проставляемый ReorderPictures.
var orderPrefixRe = regexp.MustCompile(`^\d{3}_`)

// Store — хранилище картинок на диске.
type Store struct {
	// basePath — корневая директория хранения (ML_PICTURES_DIR)
	basePath string
	// publicPrefix — префикс публичных URL (ML_PICTURES_URL_PREFIX)
	publicPrefix string
	logger       *slog.Logger
}

// New создаёт Store. Проверяет и создаёт корневую директорию.
func New(basePath, publicPrefix string, logger *slog.Logger) (*Store, error) {
	if err := os.MkdirAll(basePath, 0o750); err != nil {
		return nil, fmt.Errorf("не удалось создать директорию картинок %s: %w", basePath, err)
	}
	return &Store{
		basePath:     basePath,
		publicPrefix: strings.TrimRight(publicPrefix, "/"),
		logger:       logger.With(slog.String("component", "picstore")),
	}, nil
}

// BasePath возвращает корневую директорию хранения.
func (s *Store) BasePath() string {
	return s.basePath
}

// entityDir возвращает директорию сущности.
// entityID проходит ту же проверку имён, что и имена файлов:
// идентификатор приходит из URL и не должен уводить путь из basePath.
func (s *Store) entityDir(kind Kind, entityID string) (string, error) {
	if err := validateBareName(entityID); err != nil {
		s.logPathAttempt("entity_id", entityID)
		return "", err
	}
	return filepath.Join(s.basePath, string(kind), entityID), nil
}

// AddPictures прогоняет кандидатов через конвейер санитизации и
// дописывает их в директорию сущности под последовательными именами
// Picture{n}.{ext}. Следующий индекс — max существующих + 1.
//
// Лимит вида — структурный потолок набора, а не квота одного вызова:
// бюджет записи равен лимиту минус уже лежащие в директории картинки.
// Ошибка валидации любого кандидата прерывает остаток пакета; уже
// записанные в этом же вызове файлы НЕ откатываются — вызывающий код
// должен учитывать возможность частичного успеха.
func (s *Store) AddPictures(kind Kind, entityID string, candidates []sanitizer.Candidate) ([]string, error) {
	dir, err := s.entityDir(kind, entityID)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("не удалось создать директорию сущности: %w", err)
	}

	idx, current, err := s.nextIndex(dir)
	if err != nil {
		return nil, err
	}

	budget := kind.MaxPictures() - current
	if budget < 0 {
		budget = 0
	}
	var saved []string
	for _, c := range candidates {
		if len(saved) >= budget {
			break
		}

		res, err := sanitizer.Sanitize(c)
		if err != nil {
			return saved, err
		}

		name := fmt.Sprintf("Picture%d%s", idx, res.Extension)
		if err := writeFileAtomic(filepath.Join(dir, name), res.Data); err != nil {
			return saved, fmt.Errorf("ошибка записи %s: %w", name, err)
		}
		saved = append(saved, name)
		idx++
	}

	s.logger.Info("Картинки сохранены",
		slog.String("kind", string(kind)),
		slog.String("entity_id", entityID),
		slog.Int("count", len(saved)),
	)
	return saved, nil
}

// ReplacePictures удаляет директорию сущности целиком и записывает
// кандидатов заново начиная с Picture1.
func (s *Store) ReplacePictures(kind Kind, entityID string, candidates []sanitizer.Candidate) ([]string, error) {
	if err := s.DeleteAll(kind, entityID); err != nil {
		return nil, err
	}
	return s.AddPictures(kind, entityID, candidates)
}

// DeletePicture удаляет одну картинку по имени.
// Имя проверяется на разделители пути и "..", итоговый путь — на
// лексическую принадлежность директории сущности.
func (s *Store) DeletePicture(kind Kind, entityID, filename string) error {
	dir, err := s.entityDir(kind, entityID)
	if err != nil {
		return err
	}

	full, err := s.resolveInside(dir, filename)
	if err != nil {
		return err
	}

	if err := os.Remove(full); err != nil {
		if os.IsNotExist(err) {
			return ErrNotFound
		}
		return fmt.Errorf("ошибка удаления %s: %w", filename, err)
	}

	s.logger.Info("Картинка удалена",
		slog.String("kind", string(kind)),
		slog.String("entity_id", entityID),
		slog.String("filename", filename),
	)
	return nil
}

// ReorderPictures переименовывает картинки согласно требуемому порядку.
// Все имена проверяются на traversal и на существование до первого
// переименования. Файлы переносятся в scratch-директорию
// {entityID}_temp с префиксами порядка {NNN}_, затем возвращаются
// обратно; scratch удаляется.
//
// Атомарность best-effort: при ошибке на этапе staging выполняется
// попытка вернуть исходные имена, остаточная несогласованность
// логируется, а не замалчивается.
func (s *Store) ReorderPictures(kind Kind, entityID string, ordered []string) error {
	dir, err := s.entityDir(kind, entityID)
	if err != nil {
		return err
	}

	existing, err := s.ListPictures(kind, entityID)
	if err != nil {
		return err
	}
	present := make(map[string]bool, len(existing))
	for _, name := range existing {
		present[name] = true
	}

	// Проверяем весь план до первого переименования.
	for _, name := range ordered {
		if _, err := s.resolveInside(dir, name); err != nil {
			return err
		}
		if !present[name] {
			return fmt.Errorf("%w: %s", ErrNotFound, name)
		}
	}

	scratch := dir + "_temp"
	if err := os.MkdirAll(scratch, 0o750); err != nil {
		return fmt.Errorf("не удалось создать scratch-директорию: %w", err)
	}

	// Этап 1: переносим файлы в scratch под именами с префиксом порядка.
	// staged хранит соответствие scratch-имени исходному для отката.
	staged := make(map[string]string, len(ordered))
	for i, name := range ordered {
		newName := fmt.Sprintf("%03d_%s", i+1, orderPrefixRe.ReplaceAllString(name, ""))
		if err := os.Rename(filepath.Join(dir, name), filepath.Join(scratch, newName)); err != nil {
			s.restoreFromScratch(dir, scratch, staged)
			return fmt.Errorf("ошибка переноса %s в scratch: %w", name, err)
		}
		staged[newName] = name
	}

	// Этап 2: возвращаем файлы в директорию сущности под новыми именами.
	for newName := range staged {
		if err := os.Rename(filepath.Join(scratch, newName), filepath.Join(dir, newName)); err != nil {
			s.restoreFromScratch(dir, scratch, staged)
			return fmt.Errorf("ошибка возврата %s из scratch: %w", newName, err)
		}
	}

	if err := os.RemoveAll(scratch); err != nil {
		s.logger.Warn("Не удалось удалить scratch-директорию",
			slog.String("dir", scratch),
			slog.String("error", err.Error()),
		)
	}

	s.logger.Info("Порядок картинок изменён",
		slog.String("kind", string(kind)),
		slog.String("entity_id", entityID),
		slog.Int("count", len(ordered)),
	)
	return nil
}

// restoreFromScratch — best-effort возврат исходных имён после сбоя
// reorder. Неудачи отдельных переименований логируются и не прерывают
// восстановление остальных файлов.
func (s *Store) restoreFromScratch(dir, scratch string, staged map[string]string) {
	for newName, origName := range staged {
		src := filepath.Join(scratch, newName)
		if _, err := os.Stat(src); err != nil {
			// Файл уже возвращён на этапе 2 под новым именем: директория
			// осталась в смешанном состоянии из старых и новых имён.
			s.logger.Warn("Картинка осталась под новым именем после сбоя reorder",
				slog.String("original", origName),
				slog.String("renamed", newName),
			)
			continue
		}
		if err := os.Rename(src, filepath.Join(dir, origName)); err != nil {
			s.logger.Error("Не удалось восстановить картинку после сбоя reorder",
				slog.String("file", origName),
				slog.String("error", err.Error()),
			)
		}
	}
	if err := os.RemoveAll(scratch); err != nil {
		s.logger.Error("Scratch-директория не удалена после сбоя reorder",
			slog.String("dir", scratch),
			slog.String("error", err.Error()),
		)
	}
}

// ListPictures возвращает имена картинок сущности, отсортированные
// лексикографически. Именно лексикографический порядок определяет
// порядок отображения; для имён Picture{n} это означает, что
// Picture10 сортируется раньше Picture2 — поведение зафиксировано
// тестами как есть.
// Возвращает ErrNotFound, если директория сущности не существует.
func (s *Store) ListPictures(kind Kind, entityID string) ([]string, error) {
	dir, err := s.entityDir(kind, entityID)
	if err != nil {
		return nil, err
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("ошибка чтения директории сущности: %w", err)
	}

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if !isPictureEntry(e) {
			continue
		}
		names = append(names, e.Name())
	}
	sort.Strings(names)
	return names, nil
}

// PictureURLs возвращает публичные URL картинок сущности в порядке
// отображения. Шаблон: {publicPrefix}/{kind}/{entityID}/{filename}.
// Физические пути на диске наружу не отдаются.
func (s *Store) PictureURLs(kind Kind, entityID string) ([]string, error) {
	names, err := s.ListPictures(kind, entityID)
	if err != nil {
		return nil, err
	}
	urls := make([]string, 0, len(names))
	for _, name := range names {
		urls = append(urls, fmt.Sprintf("%s/%s/%s/%s", s.publicPrefix, kind, entityID, name))
	}
	return urls, nil
}

// DeleteAll удаляет директорию сущности рекурсивно.
// Отсутствующая директория — не ошибка.
func (s *Store) DeleteAll(kind Kind, entityID string) error {
	dir, err := s.entityDir(kind, entityID)
	if err != nil {
		return err
	}
	if err := os.RemoveAll(dir); err != nil {
		return fmt.Errorf("ошибка удаления директории сущности: %w", err)
	}
	return nil
}

// nextIndex вычисляет следующий последовательный индекс картинки
// (максимум по существующим Picture{n}.* плюс один, либо 1) и текущее
// количество картинок в директории. В количество входят и файлы с
// префиксом порядка после reorder — они занимают слоты набора.
func (s *Store) nextIndex(dir string) (int, int, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return 0, 0, fmt.Errorf("ошибка чтения директории сущности: %w", err)
	}

	maxIdx := 0
	count := 0
	for _, e := range entries {
		if !isPictureEntry(e) {
			continue
		}
		count++

		m := pictureNameRe.FindStringSubmatch(e.Name())
		if m == nil {
			continue
		}
		n, err := strconv.Atoi(m[1])
		if err != nil {
			continue
		}
		if n > maxIdx {
			maxIdx = n
		}
	}
	return maxIdx + 1, count, nil
}

// isPictureEntry отсекает то, что картинкой набора не является:
// поддиректории и недописанные *.tmp после прерванной атомарной записи.
func isPictureEntry(e os.DirEntry) bool {
	name := e.Name()
	if e.IsDir() || name == "" {
		return false
	}
	return !strings.HasSuffix(name, ".tmp")
}

// resolveInside проверяет имя файла и возвращает полный путь,
// гарантированно лежащий внутри dir.
func (s *Store) resolveInside(dir, filename string) (string, error) {
	if err := validateBareName(filename); err != nil {
		s.logPathAttempt("filename", filename)
		return "", err
	}

	full := filepath.Join(dir, filename)

	// Лексическая проверка принадлежности: после Join путь обязан
	// остаться внутри директории сущности.
	absDir, err := filepath.Abs(dir)
	if err != nil {
		return "", fmt.Errorf("ошибка разрешения пути: %w", err)
	}
	absFull, err := filepath.Abs(full)
	if err != nil {
		return "", fmt.Errorf("ошибка разрешения пути: %w", err)
	}
	if !strings.HasPrefix(absFull, absDir+string(filepath.Separator)) {
		s.logPathAttempt("path", full)
		return "", ErrInvalidPath
	}
	return full, nil
}

// logPathAttempt логирует попытку выхода за пределы директории —
// потенциальную атаку, заслуживающую внимания.
func (s *Store) logPathAttempt(field, value string) {
	s.logger.Warn("Отклонено небезопасное имя — возможная попытка path traversal",
		slog.String(field, value),
	)
}

// validateBareName — имя должно быть «голым»: без разделителей пути,
// без "..", непустым.
func validateBareName(name string) error {
	if name == "" || name == "." || name == ".." {
		return ErrInvalidFilename
	}
	if strings.ContainsAny(name, `/\`) {
		return ErrInvalidFilename
	}
	if strings.Contains(name, "..") {
		return ErrInvalidFilename
	}
	return nil
}

// writeFileAtomic записывает данные через временный файл:
// запись → fsync → атомарный rename. При ошибке временный файл
// удаляется, полузаписанный файл не может попасть в листинг.
func writeFileAtomic(path string, data []byte) error {
	tmp := path + ".tmp"

	f, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("ошибка создания временного файла: %w", err)
	}

	if _, err := f.Write(data); err != nil {
		f.Close()
		os.Remove(tmp)
		return fmt.Errorf("ошибка записи данных: %w", err)
	}

	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(tmp)
		return fmt.Errorf("ошибка fsync: %w", err)
	}

	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("ошибка закрытия файла: %w", err)
	}

	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("ошибка атомарного переименования: %w", err)
	}
	return nil
}
