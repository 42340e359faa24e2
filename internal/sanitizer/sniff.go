// sniff.go — определение формата картинки по сигнатуре (magic bytes).
// Читаются первые 8 байт, сравнение с фиксированными префиксами.
package sanitizer

import "bytes"

// Format — формат картинки, определённый по сигнатуре.
type Format string

const (
	FormatJPEG Format = "jpeg"
	FormatPNG  Format = "png"
	FormatGIF  Format = "gif"
	FormatWEBP Format = "webp"
)

// signatures — известные сигнатуры форматов.
// RIFF-префикс WEBP разделяется с другими RIFF-контейнерами (WAV, AVI),
// поэтому совпадение сигнатуры — необходимое, но не достаточное условие.
// Решающая проверка — полное декодирование.
var signatures = []struct {
	format Format
	prefix []byte
}{
	{FormatJPEG, []byte{0xFF, 0xD8, 0xFF}},
	{FormatPNG, []byte{0x89, 0x50, 0x4E, 0x47, 0x0D, 0x0A, 0x1A, 0x0A}},
	{FormatGIF, []byte("GIF87a")},
	{FormatGIF, []byte("GIF89a")},
	{FormatWEBP, []byte("RIFF")},
}

// Sniff определяет формат по первым байтам содержимого.
// Возвращает (формат, true) при совпадении с одной из сигнатур,
// иначе ("", false). Заявленные клиентом метаданные не используются.
func Sniff(data []byte) (Format, bool) {
	if len(data) < 8 {
		return "", false
	}
	head := data[:8]
	for _, sig := range signatures {
		if bytes.HasPrefix(head, sig.prefix) {
			return sig.format, true
		}
	}
	return "", false
}
