// reencode.go — декодирование и повторное кодирование картинки.
// Декодеры: stdlib (jpeg, png, gif) + golang.org/x/image/webp.
// Кодеры: stdlib + github.com/chai2010/webp (x/image/webp умеет
// только декодировать).
package sanitizer

import (
	"bytes"
	"fmt"
	"image"
	"image/gif"
	"image/jpeg"
	"image/png"
	"math"

	"github.com/chai2010/webp"
	"github.com/disintegration/imaging"

	_ "golang.org/x/image/webp" // регистрация webp-декодера в image.Decode
)

// Result — результат санитизации: свежий буфер и каноническое
// расширение, под которым файл должен быть сохранён.
type Result struct {
	// Data — повторно закодированное содержимое
	Data []byte
	// Extension — каноническое расширение (".jpg", ".png", ".gif", ".webp")
	Extension string
}

// decodeImage — решающая проверка содержимого: полное декодирование.
// Успех требует ненулевых размеров. Байтовый поток, который чисто
// декодируется в пиксели, не может одновременно быть исполняемым
// файлом или скриптом.
func decodeImage(data []byte) (image.Image, error) {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("ошибка декодирования: %w", err)
	}
	bounds := img.Bounds()
	if bounds.Dx() <= 0 || bounds.Dy() <= 0 {
		return nil, fmt.Errorf("нулевые размеры картинки: %dx%d", bounds.Dx(), bounds.Dy())
	}
	return img, nil
}

// fitDimensions вписывает размеры в квадрат MaxDimension с сохранением
// пропорций: большая сторона становится ровно MaxDimension, меньшая
// округляется арифметически (683 = round(1000 × 2048/3000)).
func fitDimensions(w, h int) (int, int) {
	scale := float64(MaxDimension) / float64(max(w, h))
	if w >= h {
		return MaxDimension, int(math.Round(float64(h) * scale))
	}
	return int(math.Round(float64(w) * scale)), MaxDimension
}

// Sanitize проверяет кандидата и возвращает повторно закодированную
// картинку. Полная валидация выполняется всегда, даже если вызывающий
// код уже проверял кандидата.
//
// Шаги:
//  1. Validate (быстрые проверки + сигнатура + декодирование)
//  2. Свежее декодирование — контейнер оригинала отбрасывается
//  3. Уменьшение до MaxDimension по большей стороне с сохранением пропорций
//  4. Кодирование в формат по заявленному расширению:
//     .png→PNG, .gif→GIF, .webp→WEBP, остальное→JPEG качества 90
func Sanitize(c Candidate) (*Result, error) {
	if err := Validate(c); err != nil {
		return nil, err
	}

	img, err := decodeImage(c.Data)
	if err != nil {
		return nil, ErrNotAValidImage
	}

	// Уменьшаем, только если превышена максимальная сторона.
	bounds := img.Bounds()
	if bounds.Dx() > MaxDimension || bounds.Dy() > MaxDimension {
		w, h := fitDimensions(bounds.Dx(), bounds.Dy())
		img = imaging.Resize(img, w, h, imaging.Lanczos)
	}

	var buf bytes.Buffer
	ext := c.Ext()
	switch ext {
	case ".png":
		if err := png.Encode(&buf, img); err != nil {
			return nil, fmt.Errorf("ошибка кодирования PNG: %w", err)
		}
		return &Result{Data: buf.Bytes(), Extension: ".png"}, nil
	case ".gif":
		if err := gif.Encode(&buf, img, nil); err != nil {
			return nil, fmt.Errorf("ошибка кодирования GIF: %w", err)
		}
		return &Result{Data: buf.Bytes(), Extension: ".gif"}, nil
	case ".webp":
		if err := webp.Encode(&buf, img, &webp.Options{Quality: float32(JPEGQuality)}); err != nil {
			return nil, fmt.Errorf("ошибка кодирования WEBP: %w", err)
		}
		return &Result{Data: buf.Bytes(), Extension: ".webp"}, nil
	default: // .jpg, .jpeg и всё нераспознанное
		if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: JPEGQuality}); err != nil {
			return nil, fmt.Errorf("ошибка кодирования JPEG: %w", err)
		}
		return &Result{Data: buf.Bytes(), Extension: ".jpg"}, nil
	}
}
