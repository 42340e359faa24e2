// Пакет sanitizer — конвейер проверки и обезвреживания загружаемых
// картинок. Этапы: быстрая проверка (размер, расширение, MIME) →
// сигнатура формата → полное декодирование → повторное кодирование.
// Повторное кодирование — граница безопасности: в выходной файл
// попадают только декодированные пиксели, любые вложенные в контейнер
// данные (метаданные, полиглот-хвосты, стеганография) отбрасываются.
package sanitizer

import (
	"errors"
	"path/filepath"
	"strings"
)

// Лимиты конвейера.
const (
	// MaxFileSize — максимальный размер одного файла (5 MiB)
	MaxFileSize = 5 * 1024 * 1024
	// MaxDimension — максимальная сторона картинки после санитизации
	MaxDimension = 2048
	// JPEGQuality — качество JPEG при повторном кодировании
	JPEGQuality = 90
)

// Ошибки конвейера. Все проверки возвращают типизированные ошибки,
// чтобы API-слой мог отдать клиенту стабильный код.
var (
	// ErrEmptyFile — файл нулевой длины.
	ErrEmptyFile = errors.New("файл пуст")
	// ErrFileTooLarge — файл больше MaxFileSize.
	ErrFileTooLarge = errors.New("файл превышает максимальный размер 5 MiB")
	// ErrExtensionNotAllowed — расширение вне списка допустимых.
	ErrExtensionNotAllowed = errors.New("расширение файла не разрешено, допустимы JPG, PNG, GIF и WEBP")
	// ErrMimeTypeNotAllowed — заявленный MIME-тип вне списка допустимых.
	ErrMimeTypeNotAllowed = errors.New("MIME-тип не разрешён, допустимы только картинки")
	// ErrInvalidSignature — первые байты не совпали ни с одной сигнатурой.
	ErrInvalidSignature = errors.New("файл не похож на картинку: неизвестная сигнатура")
	// ErrNotAValidImage — содержимое не декодируется как растровая картинка.
	ErrNotAValidImage = errors.New("файл не является корректной картинкой или повреждён")
)

// allowedExtensions — допустимые расширения (в нижнем регистре).
var allowedExtensions = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
	".gif":  true,
	".webp": true,
}

// allowedMimeTypes — допустимые заявленные MIME-типы.
// Заявленный тип контролируется клиентом: это только предварительный
// фильтр, решающая проверка — декодирование.
var allowedMimeTypes = map[string]bool{
	"image/jpeg": true,
	"image/png":  true,
	"image/gif":  true,
	"image/webp": true,
}

// Candidate — непроверенный загруженный файл: содержимое плюс
// метаданные, заявленные клиентом. Живёт только в рамках одного запроса.
type Candidate struct {
	// Filename — имя файла, заявленное клиентом
	Filename string
	// ContentType — MIME-тип, заявленный клиентом
	ContentType string
	// Data — содержимое файла
	Data []byte
}

// Ext возвращает расширение заявленного имени файла в нижнем регистре.
func (c Candidate) Ext() string {
	return strings.ToLower(filepath.Ext(c.Filename))
}

// ValidateBasics — быстрая проверка без декодирования: длина,
// расширение, заявленный MIME-тип. Порядок фиксирован, проверка
// останавливается на первой ошибке.
func ValidateBasics(c Candidate) error {
	if len(c.Data) == 0 {
		return ErrEmptyFile
	}
	if len(c.Data) > MaxFileSize {
		return ErrFileTooLarge
	}
	if !allowedExtensions[c.Ext()] {
		return ErrExtensionNotAllowed
	}
	if !allowedMimeTypes[strings.ToLower(c.ContentType)] {
		return ErrMimeTypeNotAllowed
	}
	return nil
}

// Validate выполняет полную проверку кандидата: быстрые проверки,
// сигнатура формата и решающее полное декодирование.
func Validate(c Candidate) error {
	if err := ValidateBasics(c); err != nil {
		return err
	}
	if _, ok := Sniff(c.Data); !ok {
		return ErrInvalidSignature
	}
	if _, err := decodeImage(c.Data); err != nil {
		return ErrNotAValidImage
	}
	return nil
}
